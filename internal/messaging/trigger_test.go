package messaging

import (
	"testing"

	"github.com/BTreeMap/PigeonMail/internal/models"
)

func TestResolveTrigger(t *testing.T) {
	tests := []struct {
		text    string
		kind    TriggerKind
		flow    models.FlowKind
		command string
	}{
		{"/cancel", TriggerReset, "", "cancel"},
		{"/reset@PigeonMailBot", TriggerReset, "", "reset"},
		{"Cancel", TriggerReset, "", ""},
		{"  start   OVER ", TriggerReset, "", ""},
		{"/send", TriggerStart, models.FlowSend, "send"},
		{"/deliver@PigeonMailBot now", TriggerStart, models.FlowDeliver, "deliver"},
		{"Want to send", TriggerStart, models.FlowSend, ""},
		{"can deliver", TriggerStart, models.FlowDeliver, ""},
		{"/start", TriggerCommand, "", "start"},
		{"/Help", TriggerCommand, "", "help"},
		{"/unknown", TriggerCommand, "", "unknown"},
		{"M", TriggerText, "", ""},
		{"cancel my order", TriggerText, "", ""},
		{"07.02.2026", TriggerText, "", ""},
		{"", TriggerText, "", ""},
	}
	for _, tt := range tests {
		got := ResolveTrigger(tt.text)
		if got.Kind != tt.kind || got.Flow != tt.flow || got.Command != tt.command {
			t.Errorf("ResolveTrigger(%q) = %+v, want kind=%s flow=%q command=%q", tt.text, got, tt.kind, tt.flow, tt.command)
		}
	}
}

func TestTriggerKindString(t *testing.T) {
	names := map[TriggerKind]string{
		TriggerText:    "text",
		TriggerReset:   "reset",
		TriggerStart:   "start",
		TriggerCommand: "command",
	}
	for k, want := range names {
		if k.String() != want {
			t.Errorf("%d.String() = %q, want %q", k, k.String(), want)
		}
	}
}
