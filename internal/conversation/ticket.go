package conversation

import (
	"github.com/wolfman30/dental-ai-assistant/internal/extraction"
	"github.com/wolfman30/dental-ai-assistant/internal/tickets"
)

// AssembleTicket builds the dispatch payload from collected fields.
func AssembleTicket(fields extraction.Fields) tickets.TicketData {
	data := tickets.TicketData{
		Name:  fields.Name.Value,
		Email: fields.Email.Value,
		Phone: fields.Phone.Value,
	}
	if fields.ActiveIntent() == extraction.IntentSupport {
		data.Type = tickets.TypeSupport
		data.IssueType = fields.IssueType.Value
		data.Description = fields.Description.Value
		return data
	}
	data.Type = tickets.TypeAppointment
	data.ServiceType = fields.ServiceType.Value
	data.ProposedDate = fields.ProposedDate.Value
	data.ProposedTime = fields.ProposedTime.Value
	return data
}
