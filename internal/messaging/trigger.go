package messaging

import (
	"strings"

	"github.com/BTreeMap/PigeonMail/internal/flow"
	"github.com/BTreeMap/PigeonMail/internal/models"
)

// TriggerKind classifies an inbound message.
type TriggerKind int

const (
	// TriggerText is ordinary input for the current step.
	TriggerText TriggerKind = iota
	// TriggerReset cancels the current flow.
	TriggerReset
	// TriggerStart begins a flow.
	TriggerStart
	// TriggerCommand is any other slash command.
	TriggerCommand
)

func (k TriggerKind) String() string {
	switch k {
	case TriggerReset:
		return "reset"
	case TriggerStart:
		return "start"
	case TriggerCommand:
		return "command"
	default:
		return "text"
	}
}

// Trigger is the resolved meaning of one inbound message.
type Trigger struct {
	Kind    TriggerKind
	Flow    models.FlowKind // set for TriggerStart
	Command string          // lowercased, without slash or @botname, set for commands
}

var resetCommands = map[string]bool{"cancel": true, "reset": true}

var resetKeywords = map[string]bool{"cancel": true, "reset": true, "start over": true}

// menuCommands show the main menu when the user is idle.
var menuCommands = map[string]bool{"start": true, "menu": true, "help": true}

// ResolveTrigger classifies text once so routing never re-inspects the raw message.
func ResolveTrigger(text string) Trigger {
	normalized := strings.ToLower(strings.Join(strings.Fields(text), " "))

	if strings.HasPrefix(normalized, "/") {
		cmd := strings.TrimPrefix(strings.Fields(normalized)[0], "/")
		if at := strings.IndexByte(cmd, '@'); at >= 0 {
			cmd = cmd[:at]
		}
		if resetCommands[cmd] {
			return Trigger{Kind: TriggerReset, Command: cmd}
		}
		for kind, def := range flow.Definitions {
			if cmd == def.Command {
				return Trigger{Kind: TriggerStart, Flow: kind, Command: cmd}
			}
		}
		return Trigger{Kind: TriggerCommand, Command: cmd}
	}

	if resetKeywords[normalized] {
		return Trigger{Kind: TriggerReset}
	}
	for kind, def := range flow.Definitions {
		if normalized == def.MenuLabel {
			return Trigger{Kind: TriggerStart, Flow: kind}
		}
	}
	return Trigger{Kind: TriggerText}
}
