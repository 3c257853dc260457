package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/dental-ai-assistant/internal/extraction"
)

// Fixed user-facing messages.
const (
	ProcessingMessage    = "Votre demande est en cours de traitement. Vous recevrez une confirmation par e-mail sous peu."
	InternalErrorMessage = "Une erreur interne est survenue."
	RefusalMessage       = "Désolé, je ne peux pas répondre à ce message. Je peux vous aider à prendre rendez-vous ou à contacter notre support."
)

var fieldLabels = map[string]string{
	extraction.FieldName:         "votre nom",
	extraction.FieldEmail:        "votre adresse e-mail",
	extraction.FieldPhone:        "votre numéro de téléphone",
	extraction.FieldServiceType:  "le type de soin",
	extraction.FieldProposedDate: "la date souhaitée",
	extraction.FieldProposedTime: "l'heure souhaitée",
	extraction.FieldIssueType:    "le type de problème",
	extraction.FieldDescription:  "une description du problème",
}

// RecapMessage lists the collected fields and asks for confirmation.
func RecapMessage(fields extraction.Fields) string {
	var b strings.Builder
	if fields.ActiveIntent() == extraction.IntentSupport {
		b.WriteString("Voici le récapitulatif de votre demande de support :\n")
		fmt.Fprintf(&b, "- Nom : %s\n", fields.Name.Value)
		fmt.Fprintf(&b, "- E-mail : %s\n", fields.Email.Value)
		fmt.Fprintf(&b, "- Téléphone : %s\n", fields.Phone.Value)
		fmt.Fprintf(&b, "- Type : %s\n", fields.IssueType.Value)
		fmt.Fprintf(&b, "- Description : %s\n", fields.Description.Value)
	} else {
		b.WriteString("Voici le récapitulatif de votre rendez-vous :\n")
		fmt.Fprintf(&b, "- Nom : %s\n", fields.Name.Value)
		fmt.Fprintf(&b, "- E-mail : %s\n", fields.Email.Value)
		fmt.Fprintf(&b, "- Téléphone : %s\n", fields.Phone.Value)
		fmt.Fprintf(&b, "- Soin : %s\n", fields.ServiceType.Value)
		fmt.Fprintf(&b, "- Date : %s\n", displayDate(fields.ProposedDate.Value))
		fmt.Fprintf(&b, "- Heure : %s\n", fields.ProposedTime.Value)
	}
	b.WriteString("Répondez « oui » pour confirmer, ou indiquez ce qu'il faut corriger.")
	return b.String()
}

// MissingFieldsMessage asks for whatever the active intent still lacks.
func MissingFieldsMessage(fields extraction.Fields) string {
	missing := fields.Missing()
	if len(missing) == 0 {
		return RecapMessage(fields)
	}
	labels := make([]string, 0, len(missing))
	for _, name := range missing {
		labels = append(labels, fieldLabels[name])
	}
	return "Pour finaliser votre demande, il me manque encore : " + strings.Join(labels, ", ") + "."
}

func displayDate(iso string) string {
	t, err := time.Parse("2006-01-02", iso)
	if err != nil {
		return iso
	}
	return t.Format("02/01/2006")
}
