package flow

import (
	"errors"
	"testing"

	"github.com/BTreeMap/PigeonMail/internal/models"
)

func TestValidateSize(t *testing.T) {
	tests := []struct {
		in      string
		want    models.Size
		wantErr bool
	}{
		{"S", models.SizeS, false},
		{"m", models.SizeM, false},
		{"  l ", models.SizeL, false},
		{"XL", "", true},
		{"", "", true},
		{"small", "", true},
	}
	for _, tt := range tests {
		got, err := ValidateSize(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidSize) {
				t.Errorf("ValidateSize(%q) error = %v, want ErrInvalidSize", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ValidateSize(%q) unexpected error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ValidateSize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidateText(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"Al", "Al", false},
		{"  New York  ", "New York", false},
		{"Ян", "Ян", false},
		{"A", "", true},
		{"   a   ", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ValidateText(models.FieldName, tt.in)
		if tt.wantErr {
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Field != models.FieldName || !errors.Is(err, ErrTooShort) {
				t.Errorf("ValidateText(%q) error = %v, want too-short name rejection", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ValidateText(%q) unexpected error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ValidateText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidateDate(t *testing.T) {
	tests := []struct {
		in        string
		canonical string
		wantErr   error
	}{
		{"07.02.2026", "2026-02-07", nil},
		{" 7.2.2026 ", "2026-02-07", nil},
		{"29.02.2024", "2024-02-29", nil},
		{"31.02.2026", "", ErrDateInvalid},
		{"29.02.2025", "", ErrDateInvalid},
		{"00.01.2026", "", ErrDateInvalid},
		{"2026-02-07", "", ErrDateFormat},
		{"07/02/2026", "", ErrDateFormat},
		{"07.02.26", "", ErrDateFormat},
		{"tomorrow", "", ErrDateFormat},
	}
	for _, tt := range tests {
		got, err := ValidateDate(tt.in)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateDate(%q) error = %v, want %v", tt.in, err, tt.wantErr)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ValidateDate(%q) unexpected error: %v", tt.in, err)
		}
		if got.Canonical != tt.canonical {
			t.Errorf("ValidateDate(%q).Canonical = %q, want %q", tt.in, got.Canonical, tt.canonical)
		}
	}
}

func TestValidateDateKeepsDisplay(t *testing.T) {
	got, err := ValidateDate("  07.02.2026\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Display != "07.02.2026" {
		t.Errorf("Display = %q, want trimmed input", got.Display)
	}
}
