package flow

import (
	"fmt"
	"strings"

	"github.com/BTreeMap/PigeonMail/internal/models"
)

// Menu and command texts shared by the engine and the dispatcher.
const (
	MenuSendLabel    = "want to send"
	MenuDeliverLabel = "can deliver"

	welcomeText       = "Hi! Choose what you want to do:"
	guidanceText      = "Use /start to see the available commands."
	cancelledText     = "Cancelled. Choose what you want to do:"
	nothingToCancel   = "There is nothing to cancel. Choose what you want to do:"
	publishedText     = "Great, your request is published in the channel ✅"
	publishFailedText = "⚠️ We could not publish your request right now. Please send the date again to retry."
)

// stepSpec binds one step to its field, validator and messages.
type stepSpec struct {
	step      models.Step
	field     models.Field
	rejection string
	// parse returns the value stored for the field; the date step returns the canonical form.
	parse func(raw string) (string, error)
}

// steps is the single step sequence shared by both flow kinds.
var steps = []stepSpec{
	{
		step:      models.StepAwaitingSize,
		field:     models.FieldSize,
		rejection: "Please choose the size with the buttons: S / M / L",
		parse: func(raw string) (string, error) {
			s, err := ValidateSize(raw)
			return string(s), err
		},
	},
	{
		step:      models.StepAwaitingName,
		field:     models.FieldName,
		rejection: "The name is too short. Please enter your name again.",
		parse:     func(raw string) (string, error) { return ValidateText(models.FieldName, raw) },
	},
	{
		step:      models.StepAwaitingFromCity,
		field:     models.FieldFromCity,
		rejection: "The city name is too short. Where does the parcel travel from?",
		parse:     func(raw string) (string, error) { return ValidateText(models.FieldFromCity, raw) },
	},
	{
		step:      models.StepAwaitingToCity,
		field:     models.FieldToCity,
		rejection: "The city name is too short. Where does the parcel travel to?",
		parse:     func(raw string) (string, error) { return ValidateText(models.FieldToCity, raw) },
	},
	{
		step:      models.StepAwaitingDate,
		field:     models.FieldDate,
		rejection: "That date looks wrong. Please enter it as DD.MM.YYYY, for example 07.02.2026.",
		parse: func(raw string) (string, error) {
			d, err := ValidateDate(raw)
			return d.Canonical, err
		},
	},
}

// Definition carries the kind-specific texts of a flow.
type Definition struct {
	Kind      models.FlowKind
	MenuLabel string
	Command   string // start command without the slash
	Title     string // broadcast headline
	Emoji     string
	Prompts   map[models.Step]string
}

// Definitions holds both flow variants keyed by kind.
var Definitions = map[models.FlowKind]Definition{
	models.FlowSend: {
		Kind:      models.FlowSend,
		MenuLabel: MenuSendLabel,
		Command:   "send",
		Title:     "WANT TO SEND",
		Emoji:     "📦",
		Prompts: map[models.Step]string{
			models.StepAwaitingSize:     "What are you sending? Choose the parcel size:\n" + sizeLegend(),
			models.StepAwaitingName:     "Please enter your name.",
			models.StepAwaitingFromCity: "Which city is the parcel leaving from?",
			models.StepAwaitingToCity:   "Which city should it reach?",
			models.StepAwaitingDate:     "By when should it arrive? Enter the date as DD.MM.YYYY, for example 07.02.2026.",
		},
	},
	models.FlowDeliver: {
		Kind:      models.FlowDeliver,
		MenuLabel: MenuDeliverLabel,
		Command:   "deliver",
		Title:     "CAN DELIVER",
		Emoji:     "✈️",
		Prompts: map[models.Step]string{
			models.StepAwaitingSize:     "What can you take with you? Choose the parcel size:\n" + sizeLegend(),
			models.StepAwaitingName:     "Please enter your name.",
			models.StepAwaitingFromCity: "Which city are you travelling from?",
			models.StepAwaitingToCity:   "Which city are you travelling to?",
			models.StepAwaitingDate:     "When do you travel? Enter the date as DD.MM.YYYY, for example 07.02.2026.",
		},
	},
}

// DefinitionFor returns the definition of kind.
func DefinitionFor(kind models.FlowKind) (Definition, error) {
	def, ok := Definitions[kind]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrUnknownFlow, kind)
	}
	return def, nil
}

func sizeLegend() string {
	var b strings.Builder
	for i, s := range models.Sizes {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s — %s", s, s.Label())
	}
	return b.String()
}

func specFor(step models.Step) (stepSpec, bool) {
	for _, s := range steps {
		if s.step == step {
			return s, true
		}
	}
	return stepSpec{}, false
}

func isLastStep(step models.Step) bool {
	return len(steps) > 0 && steps[len(steps)-1].step == step
}

// MainMenu is the idle reply keyboard.
func MainMenu(text string) models.Reply {
	return models.Reply{
		Text:        text,
		Keyboard:    [][]string{{MenuSendLabel}, {MenuDeliverLabel}},
		Placeholder: "Choose an action",
	}
}

func sizeKeyboard(text string) models.Reply {
	row := make([]string, 0, len(models.Sizes))
	for _, s := range models.Sizes {
		row = append(row, string(s))
	}
	return models.Reply{
		Text:            text,
		Keyboard:        [][]string{row},
		OneTimeKeyboard: true,
		Placeholder:     "Choose the size (S/M/L)",
	}
}

// promptFor builds the reply that asks for step within def.
func promptFor(def Definition, step models.Step) models.Reply {
	text := def.Prompts[step]
	if step == models.StepAwaitingSize {
		return sizeKeyboard(text)
	}
	if step == models.StepAwaitingName {
		return models.Reply{Text: text, RemoveKeyboard: true}
	}
	return models.Reply{Text: text}
}

func rejectionFor(spec stepSpec) models.Reply {
	if spec.step == models.StepAwaitingSize {
		return sizeKeyboard(spec.rejection)
	}
	return models.Reply{Text: spec.rejection}
}
