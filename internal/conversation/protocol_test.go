package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wolfman30/dental-ai-assistant/internal/extraction"
	"github.com/wolfman30/dental-ai-assistant/internal/session"
)

func TestStep(t *testing.T) {
	collecting := session.StateCollecting
	awaiting := session.StateAwaitingConfirmation

	tests := []struct {
		name  string
		state session.State
		in    Input
		want  Decision
	}{
		{"collecting incomplete", collecting, Input{}, Decision{collecting, ActionConverse}},
		{"collecting complete", collecting, Input{Complete: true}, Decision{awaiting, ActionRecap}},
		{"affirmative while collecting", collecting, Input{Affirmative: true}, Decision{collecting, ActionConverse}},
		{"affirmative while collecting complete", collecting, Input{Affirmative: true, Complete: true}, Decision{awaiting, ActionRecap}},
		{"awaiting affirmative", awaiting, Input{Affirmative: true, Complete: true}, Decision{collecting, ActionConfirm}},
		{"awaiting affirmative ignores completeness", awaiting, Input{Affirmative: true}, Decision{collecting, ActionConfirm}},
		{"awaiting other reply still complete", awaiting, Input{Complete: true}, Decision{awaiting, ActionRecap}},
		{"awaiting other reply now incomplete", awaiting, Input{}, Decision{collecting, ActionConverse}},
		{"awaiting marker", awaiting, Input{Marker: true}, Decision{collecting, ActionConfirm}},
		{"marker complete shows recap first", collecting, Input{Marker: true, Complete: true}, Decision{awaiting, ActionRecap}},
		{"marker incomplete", collecting, Input{Marker: true}, Decision{collecting, ActionAskMissing}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Step(tt.state, tt.in))
		})
	}
}

func TestIsAffirmative(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"oui", true},
		{"OUI !", true},
		{"Oui, je confirme", true},
		{"confirmer", true},
		{"ok", true},
		{"yes", true},
		{"d'accord", true},
		{"D’accord merci", true},
		{"non", false},
		{"oui mais non", false},
		{"pas ok", false},
		{"bonjour", false},
		{"ouistiti", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAffirmative(tt.input))
		})
	}
}

func completeAppointment() extraction.Fields {
	f := func(v string) extraction.Field { return extraction.Field{Value: v, Source: extraction.SourceExtracted} }
	return extraction.Fields{
		Intent:       extraction.IntentAppointment,
		Name:         f("Marie"),
		Email:        f("marie@test.sn"),
		Phone:        f("771234567"),
		ServiceType:  f("Détartrage"),
		ProposedDate: f("2024-06-16"),
		ProposedTime: f("10h00"),
	}
}

func TestCompletenessBoundary(t *testing.T) {
	fields := completeAppointment()
	assert.Equal(t, ActionRecap, Step(session.StateCollecting, Input{Complete: fields.Complete()}).Action)

	fields.Phone = extraction.Field{}
	assert.False(t, fields.Complete())
	assert.Equal(t, ActionConverse, Step(session.StateCollecting, Input{Complete: fields.Complete()}).Action)
}

func TestRecapMessage(t *testing.T) {
	recap := RecapMessage(completeAppointment())
	for _, want := range []string{"Marie", "marie@test.sn", "771234567", "Détartrage", "16/06/2024", "10h00", "oui"} {
		assert.Contains(t, recap, want)
	}

	support := extraction.Fields{
		Intent:      extraction.IntentSupport,
		IssueType:   extraction.Field{Value: extraction.IssueBilling, Source: extraction.SourceExtracted},
		Description: extraction.Field{Value: "facture en double", Source: extraction.SourceExtracted},
	}
	assert.Contains(t, RecapMessage(support), "facture en double")
}

func TestMissingFieldsMessage(t *testing.T) {
	fields := completeAppointment()
	fields.Email = extraction.Field{}
	fields.ProposedTime = extraction.Field{}

	msg := MissingFieldsMessage(fields)
	assert.Contains(t, msg, "votre adresse e-mail")
	assert.Contains(t, msg, "l'heure souhaitée")
	assert.NotContains(t, msg, "votre nom")
}

func TestAssembleTicket(t *testing.T) {
	data := AssembleTicket(completeAppointment())
	assert.Equal(t, "appointment", string(data.Type))
	assert.Equal(t, "2024-06-16", data.ProposedDate)
	assert.Empty(t, data.IssueType)

	support := completeAppointment()
	support.Intent = extraction.IntentSupport
	support.IssueType = extraction.Field{Value: extraction.IssueComplaint, Source: extraction.SourceExtracted}
	data = AssembleTicket(support)
	assert.Equal(t, "support", string(data.Type))
	assert.Equal(t, extraction.IssueComplaint, data.IssueType)
	assert.Empty(t, data.ProposedDate)
}
