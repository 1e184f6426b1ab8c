package flow

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/BTreeMap/PigeonMail/internal/models"
)

// MinTextLength is the minimum trimmed rune count for names and cities.
const MinTextLength = 2

// Date layouts: users type day.month.year, storage uses ISO dates.
const (
	displayDateLayout   = "2.1.2006"
	canonicalDateLayout = "2006-01-02"
)

var datePattern = regexp.MustCompile(`^\d{1,2}\.\d{1,2}\.\d{4}$`)

// Validation rejection reasons.
var (
	ErrInvalidSize = errors.New("size must be one of S, M, L")
	ErrTooShort    = fmt.Errorf("value must be at least %d characters", MinTextLength)
	ErrDateFormat  = errors.New("date must look like DD.MM.YYYY")
	ErrDateInvalid = errors.New("date is not a real calendar date")
)

// ValidationError is a rejected input for a single field. It never mutates state.
type ValidationError struct {
	Field  models.Field
	Reason error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Reason
}

// DateValue holds both forms of an accepted date.
type DateValue struct {
	Canonical string // YYYY-MM-DD
	Display   string // trimmed user input
}

// ValidateSize accepts S, M or L in any case.
func ValidateSize(raw string) (models.Size, error) {
	choice := models.Size(strings.ToUpper(strings.TrimSpace(raw)))
	for _, s := range models.Sizes {
		if choice == s {
			return s, nil
		}
	}
	return "", &ValidationError{Field: models.FieldSize, Reason: ErrInvalidSize}
}

// ValidateText trims raw and requires at least MinTextLength runes.
func ValidateText(field models.Field, raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if utf8.RuneCountInString(text) < MinTextLength {
		return "", &ValidationError{Field: field, Reason: ErrTooShort}
	}
	return text, nil
}

// ValidateDate accepts strict day.month.year input that names a real calendar day.
func ValidateDate(raw string) (DateValue, error) {
	text := strings.TrimSpace(raw)
	if !datePattern.MatchString(text) {
		return DateValue{}, &ValidationError{Field: models.FieldDate, Reason: ErrDateFormat}
	}
	// time.Parse rejects out-of-range days such as 31.02.
	t, err := time.Parse(displayDateLayout, text)
	if err != nil {
		return DateValue{}, &ValidationError{Field: models.FieldDate, Reason: ErrDateInvalid}
	}
	return DateValue{Canonical: t.Format(canonicalDateLayout), Display: text}, nil
}
