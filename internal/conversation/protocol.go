package conversation

import (
	"strings"
	"unicode"

	"github.com/wolfman30/dental-ai-assistant/internal/session"
)

// Action is what the pipeline must do after a protocol step.
type Action string

const (
	// ActionConverse lets the dialogue engine answer; fields are still incomplete.
	ActionConverse Action = "converse"
	// ActionRecap shows the collected fields and asks for an explicit yes.
	ActionRecap Action = "recap"
	// ActionConfirm assembles the ticket, publishes the dispatch and acknowledges.
	ActionConfirm Action = "confirm"
	// ActionAskMissing answers a premature confirmation by listing missing fields.
	ActionAskMissing Action = "ask_missing"
)

// Input is everything the confirmation protocol looks at for one message.
type Input struct {
	// Affirmative is true when the message matches the affirmative token set.
	Affirmative bool
	// Marker is true when the dialogue engine emitted the confirmation marker.
	Marker bool
	// Complete is true when the fields for the active intent are all present.
	Complete bool
}

// Decision is the outcome of a protocol step.
type Decision struct {
	Next   session.State
	Action Action
}

// Step applies the confirmation protocol to one message. It has no side effects.
//
// Only a pending recap can be confirmed. A marker seen while collecting shows the
// recap when fields are complete. Confirmation always lands back in Collecting: the
// caller starts a new cycle.
func Step(state session.State, in Input) Decision {
	if state == session.StateAwaitingConfirmation && (in.Affirmative || in.Marker) {
		return Decision{Next: session.StateCollecting, Action: ActionConfirm}
	}
	if in.Complete {
		return Decision{Next: session.StateAwaitingConfirmation, Action: ActionRecap}
	}
	if in.Marker {
		return Decision{Next: session.StateCollecting, Action: ActionAskMissing}
	}
	return Decision{Next: session.StateCollecting, Action: ActionConverse}
}

var affirmativeTokens = map[string]struct{}{
	"oui":       {},
	"confirmer": {},
	"confirme":  {},
	"confirmé":  {},
	"ok":        {},
	"okay":      {},
	"yes":       {},
	"d'accord":  {},
	"daccord":   {},
}

var negationTokens = map[string]struct{}{
	"non": {}, "no": {}, "pas": {}, "annuler": {}, "annule": {},
}

// IsAffirmative reports whether text contains an affirmative token and no negation.
func IsAffirmative(text string) bool {
	text = strings.ReplaceAll(strings.ToLower(text), "’", "'")
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
	found := false
	for _, tok := range tokens {
		tok = strings.Trim(tok, "'")
		if _, neg := negationTokens[tok]; neg {
			return false
		}
		if _, ok := affirmativeTokens[tok]; ok {
			found = true
		}
	}
	return found
}
