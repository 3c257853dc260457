package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/wolfman30/dental-ai-assistant/internal/tickets"
	"github.com/wolfman30/dental-ai-assistant/pkg/logging"
)

// ConfirmationSender is the email side of the notification capability.
type ConfirmationSender interface {
	SendConfirmation(ctx context.Context, t tickets.Ticket, to string) error
}

// EmailNotifier renders ticket confirmations and hands them to an EmailSender.
type EmailNotifier struct {
	sender     EmailSender
	clinicName string
	logger     *logging.Logger
}

func NewEmailNotifier(sender EmailSender, clinicName string, logger *logging.Logger) *EmailNotifier {
	if sender == nil {
		panic("notify: email sender cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(clinicName) == "" {
		clinicName = defaultFromName
	}
	return &EmailNotifier{sender: sender, clinicName: clinicName, logger: logger}
}

// SendConfirmation emails the patient a summary of their ticket.
func (n *EmailNotifier) SendConfirmation(ctx context.Context, t tickets.Ticket, to string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return errors.New("notify: recipient email is required")
	}
	msg := EmailMessage{
		To:      to,
		ToName:  t.Name,
		Subject: n.subject(t),
		Body:    n.textBody(t),
		HTML:    n.htmlBody(t),
	}
	if err := n.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: confirmation for %s: %w", t.TicketID, err)
	}
	n.logger.Info("confirmation email sent", "ticket_id", t.TicketID, "type", t.Type)
	return nil
}

func (n *EmailNotifier) subject(t tickets.Ticket) string {
	if t.Type == tickets.TypeSupport {
		return fmt.Sprintf("%s - Demande de support %s", n.clinicName, t.TicketID)
	}
	return fmt.Sprintf("%s - Confirmation de rendez-vous %s", n.clinicName, t.TicketID)
}

func (n *EmailNotifier) summaryLines(t tickets.Ticket) [][2]string {
	lines := [][2]string{
		{"Numéro de ticket", t.TicketID},
		{"Nom", t.Name},
		{"Téléphone", t.Phone},
	}
	if t.Type == tickets.TypeSupport {
		return append(lines,
			[2]string{"Type de demande", t.IssueType},
			[2]string{"Description", t.Description},
		)
	}
	lines = append(lines,
		[2]string{"Soin", t.ServiceType},
		[2]string{"Date", t.ProposedDate},
		[2]string{"Heure", t.ProposedTime},
	)
	if t.CalendarEventLink != "" {
		lines = append(lines, [2]string{"Agenda", t.CalendarEventLink})
	}
	return lines
}

func (n *EmailNotifier) intro(t tickets.Ticket) string {
	if t.Type == tickets.TypeSupport {
		return "Nous avons bien reçu votre demande. Notre équipe vous recontactera rapidement."
	}
	return "Votre demande de rendez-vous a bien été enregistrée."
}

func (n *EmailNotifier) textBody(t tickets.Ticket) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Bonjour %s,\n\n%s\n\n", t.Name, n.intro(t))
	for _, line := range n.summaryLines(t) {
		fmt.Fprintf(&b, "%s : %s\n", line[0], line[1])
	}
	fmt.Fprintf(&b, "\nCordialement,\n%s\n", n.clinicName)
	return b.String()
}

func (n *EmailNotifier) htmlBody(t tickets.Ticket) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<p>Bonjour %s,</p><p>%s</p><ul>", html.EscapeString(t.Name), html.EscapeString(n.intro(t)))
	for _, line := range n.summaryLines(t) {
		fmt.Fprintf(&b, "<li><strong>%s :</strong> %s</li>", html.EscapeString(line[0]), html.EscapeString(line[1]))
	}
	fmt.Fprintf(&b, "</ul><p>Cordialement,<br>%s</p>", html.EscapeString(n.clinicName))
	return b.String()
}
