package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func userMsg(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func TestExtractFullBookingMessage(t *testing.T) {
	history := []Message{
		userMsg("Bonjour, je m'appelle Marie, mon email est marie@test.sn, tel 77 123 45 67, je veux un détartrage demain à 10h"),
	}

	fields := Extract(history, saturday)

	assert.Equal(t, IntentAppointment, fields.Intent)
	assert.Equal(t, "Marie", fields.Name.Value)
	assert.Equal(t, "marie@test.sn", fields.Email.Value)
	assert.Equal(t, "771234567", fields.Phone.Value)
	assert.Equal(t, "Détartrage", fields.ServiceType.Value)
	assert.Equal(t, SourceExtracted, fields.ServiceType.Source)
	assert.Equal(t, "10h00", fields.ProposedTime.Value)
	assert.Equal(t, "2024-06-16", fields.ProposedDate.Value)
	assert.True(t, fields.Complete())
}

func TestExtractAcrossMessages(t *testing.T) {
	history := []Message{
		userMsg("Bonjour"),
		{Role: "assistant", Content: "Bonjour ! Comment vous appelez-vous ? Demain 9h est libre."},
		userMsg("Awa"),
		userMsg("awa.diop@mail.sn"),
		userMsg("mon tel: +221 77 555 66 77"),
		userMsg("une extraction vendredi à 15h30"),
	}

	fields := Extract(history, saturday)

	assert.Equal(t, "Awa", fields.Name.Value)
	assert.Equal(t, "awa.diop@mail.sn", fields.Email.Value)
	assert.Equal(t, "775556677", fields.Phone.Value)
	assert.Equal(t, "Extraction", fields.ServiceType.Value)
	assert.Equal(t, "2024-06-21", fields.ProposedDate.Value)
	assert.Equal(t, "15h30", fields.ProposedTime.Value)
}

func TestExtractLatestMentionWins(t *testing.T) {
	history := []Message{
		userMsg("je m'appelle Marie, demain à 10h"),
		userMsg("finalement lundi à 14h"),
	}

	fields := Extract(history, saturday)

	assert.Equal(t, "Marie", fields.Name.Value)
	assert.Equal(t, "2024-06-17", fields.ProposedDate.Value)
	assert.Equal(t, "14h00", fields.ProposedTime.Value)
}

func TestExtractIgnoresAssistantMessages(t *testing.T) {
	history := []Message{
		{Role: "assistant", Content: "Je m'appelle Clara, contact@clinique.sn, tel 77 000 00 00"},
	}

	fields := Extract(history, saturday)

	assert.False(t, fields.Name.Present())
	assert.False(t, fields.Email.Present())
	assert.False(t, fields.Phone.Present())
}

func TestExtractServiceDefaults(t *testing.T) {
	fields := Extract([]Message{userMsg("Bonjour")}, saturday)
	assert.Equal(t, "Consultation", fields.ServiceType.Value)
	assert.Equal(t, SourceDefaulted, fields.ServiceType.Source)

	fields = Extract([]Message{userMsg("une consultation svp")}, saturday)
	assert.Equal(t, "Consultation", fields.ServiceType.Value)
	assert.Equal(t, SourceExtracted, fields.ServiceType.Source)

	fields = Extract([]Message{userMsg("une consultation"), userMsg("en fait j'ai une carie")}, saturday)
	assert.Equal(t, "Carie", fields.ServiceType.Value)
}

func TestExtractEmptyHistory(t *testing.T) {
	fields := Extract(nil, saturday)

	assert.Equal(t, IntentAppointment, fields.Intent)
	assert.ElementsMatch(t, []string{FieldName, FieldEmail, FieldPhone, FieldProposedDate, FieldProposedTime}, fields.Missing())
}

func TestExtractSupportRequest(t *testing.T) {
	history := []Message{
		userMsg("J'ai un problème avec ma facture du mois dernier"),
	}

	fields := Extract(history, saturday)

	assert.Equal(t, IntentSupport, fields.Intent)
	assert.Equal(t, IssueBilling, fields.IssueType.Value)
	assert.Equal(t, "J'ai un problème avec ma facture du mois dernier", fields.Description.Value)
	assert.ElementsMatch(t, []string{FieldName, FieldEmail, FieldPhone}, fields.Missing())
}

func TestExtractDateAnswersKeepName(t *testing.T) {
	history := []Message{
		userMsg("je m'appelle Marie, marie@test.sn, tel 77 123 45 67"),
		userMsg("Aujourd'hui"),
		userMsg("lundi"),
		userMsg("matin"),
	}

	fields := Extract(history, saturday)

	assert.Equal(t, "Marie", fields.Name.Value)
	assert.Equal(t, "2024-06-17", fields.ProposedDate.Value)
}

func TestExtractAppointmentOutranksGenericProblem(t *testing.T) {
	history := []Message{
		userMsg("j'ai un problème, j'ai mal de dents depuis hier, je veux un rendez-vous demain à 10h"),
	}

	fields := Extract(history, saturday)

	assert.Equal(t, IntentAppointment, fields.Intent)
	assert.Equal(t, "Douleur", fields.ServiceType.Value)
	assert.Equal(t, "2024-06-16", fields.ProposedDate.Value)
	assert.Equal(t, "10h00", fields.ProposedTime.Value)
	assert.False(t, fields.IssueType.Present())
}

func TestClassifyIntent(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		intent    Intent
		issueType string
	}{
		{"generic problem alone", "j'ai un problème", IntentSupport, IssueOther},
		{"generic problem with appointment", "problème de carie, je veux un rdv", IntentAppointment, ""},
		{"cancellation beats appointment", "je veux annuler mon rendez-vous", IntentSupport, IssueCancellation},
		{"billing beats service", "problème de facture pour mon détartrage", IntentSupport, IssueBilling},
		{"appointment", "un détartrage svp", IntentAppointment, ""},
		{"neither", "bonjour", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent, issue := classifyIntent(tt.input)
			assert.Equal(t, tt.intent, intent)
			assert.Equal(t, tt.issueType, issue)
		})
	}
}

func TestExtractPhone(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"tel 77 123 45 67", "771234567"},
		{"77.123.45.67", "771234567"},
		{"771234567", "771234567"},
		{"+221 77 123 45 67", "771234567"},
		{"+33 612 34 56 78", "+33612345678"},
		{"0033 612 34 56 78", "+33612345678"},
		{"tel 12", ""},
		{"pas de numéro", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractPhone(tt.input))
		})
	}
}

func TestExtractName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "introduction", input: "Je m'appelle Fatou Ndiaye et je voudrais un rdv", want: "Fatou Ndiaye"},
		{name: "curly apostrophe", input: "je m’appelle Ousmane", want: "Ousmane"},
		{name: "nom est", input: "Mon nom est Diallo.", want: "Diallo"},
		{name: "je suis", input: "je suis Aminata", want: "Aminata"},
		{name: "je suis not a name", input: "je suis disponible demain", want: ""},
		{name: "labelled", input: "nom: Seck", want: "Seck"},
		{name: "at most three words", input: "je m'appelle Jean Pierre Paul Marie", want: "Jean Pierre Paul"},
		{name: "single token", input: "Moussa!", want: "Moussa"},
		{name: "greeting", input: "Bonjour", want: ""},
		{name: "affirmative", input: "oui", want: ""},
		{name: "weekday", input: "lundi", want: ""},
		{name: "today", input: "Aujourd'hui", want: ""},
		{name: "today curly", input: "Aujourd’hui", want: ""},
		{name: "morning", input: "matin", want: ""},
		{name: "afternoon", input: "après-midi", want: ""},
		{name: "next", input: "Prochain", want: ""},
		{name: "month", input: "juillet", want: ""},
		{name: "name containing a marker", input: "Moïse", want: "Moïse"},
		{name: "service term", input: "détartrage", want: ""},
		{name: "email", input: "a@b.sn", want: ""},
		{name: "digits", input: "77123", want: ""},
		{name: "too short", input: "Al", want: ""},
		{name: "sentence", input: "je veux un rendez-vous", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractName(tt.input))
		})
	}
}

func TestExtractServiceType(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"un detartrage", "Détartrage"},
		{"j'ai des caries", "Carie"},
		{"une cavité", "Carie"},
		{"j'ai mal de dents", "Douleur"},
		{"des douleurs", "Douleur"},
		{"une prothèse", "Prothèse"},
		{"blanchiment", "Blanchiment"},
		{"orthodontie", "Orthodontie"},
		{"parodontologie", "Parodontologie"},
		{"rien", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractServiceType(tt.input))
		})
	}
}

func TestDetectSupportIssue(t *testing.T) {
	tests := []struct {
		input  string
		want   string
		wantOK bool
	}{
		{"je veux un remboursement", IssueBilling, true},
		{"je dépose une plainte", IssueComplaint, true},
		{"je veux annuler mon rendez-vous", IssueCancellation, true},
		{"problème sur le site web", IssueTechnical, true},
		{"j'ai un problème", IssueOther, true},
		{"contactez le support", IssueOther, true},
		{"un détartrage demain", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := DetectSupportIssue(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractNeverPanics(t *testing.T) {
	inputs := []string{
		"", " ", "@", "@@@", "+", "77", "h", ":", "/", "//", "99/99/9999", "31/02/", "je m'appelle",
		"nom:", "je suis", "\x00\xff", "😀😀", "tel +", "demain demain demain", "10h99h88h",
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() {
			Extract([]Message{userMsg(in)}, saturday)
		}, in)
	}
}
