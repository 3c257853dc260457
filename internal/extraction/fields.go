// Package extraction turns free-form French chat messages into structured booking fields.
package extraction

// Source records where a field value came from.
type Source string

const (
	SourceAbsent    Source = ""
	SourceExtracted Source = "extracted"
	SourceDefaulted Source = "defaulted"
)

// Field is one optional extracted value.
type Field struct {
	Value  string `json:"value,omitempty"`
	Source Source `json:"source,omitempty"`
}

// Present reports whether the field carries a usable value.
func (f Field) Present() bool {
	return f.Source != SourceAbsent && f.Value != ""
}

func extracted(v string) Field {
	if v == "" {
		return Field{}
	}
	return Field{Value: v, Source: SourceExtracted}
}

// Intent is the kind of request a conversation is heading towards.
type Intent string

const (
	IntentAppointment Intent = "appointment"
	IntentSupport     Intent = "support"
)

// Field names used in missing-field reports and recaps.
const (
	FieldName         = "name"
	FieldEmail        = "email"
	FieldPhone        = "phone"
	FieldServiceType  = "service_type"
	FieldProposedDate = "proposed_date"
	FieldProposedTime = "proposed_time"
	FieldIssueType    = "issue_type"
	FieldDescription  = "description"
)

// Fields is the best-effort record built from a conversation.
type Fields struct {
	Intent       Intent `json:"intent,omitempty"`
	Name         Field  `json:"name"`
	Email        Field  `json:"email"`
	Phone        Field  `json:"phone"`
	ServiceType  Field  `json:"service_type"`
	ProposedDate Field  `json:"proposed_date"`
	ProposedTime Field  `json:"proposed_time"`
	IssueType    Field  `json:"issue_type"`
	Description  Field  `json:"description"`
}

// ActiveIntent defaults to an appointment when nothing else was detected.
func (f Fields) ActiveIntent() Intent {
	if f.Intent == IntentSupport {
		return IntentSupport
	}
	return IntentAppointment
}

type requirement struct {
	name  string
	field Field
}

// Missing lists the required fields that are still empty for the active intent.
func (f Fields) Missing() []string {
	required := []requirement{
		{FieldName, f.Name},
		{FieldEmail, f.Email},
		{FieldPhone, f.Phone},
	}
	if f.ActiveIntent() == IntentSupport {
		required = append(required,
			requirement{FieldIssueType, f.IssueType},
			requirement{FieldDescription, f.Description},
		)
	} else {
		required = append(required,
			requirement{FieldServiceType, f.ServiceType},
			requirement{FieldProposedDate, f.ProposedDate},
			requirement{FieldProposedTime, f.ProposedTime},
		)
	}

	var missing []string
	for _, r := range required {
		if !r.field.Present() {
			missing = append(missing, r.name)
		}
	}
	return missing
}

// Complete reports whether every required field for the active intent is populated.
func (f Fields) Complete() bool {
	return len(f.Missing()) == 0
}
