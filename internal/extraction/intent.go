package extraction

import "strings"

// Issue types recorded on support tickets.
const (
	IssueBilling      = "Facturation"
	IssueComplaint    = "Réclamation"
	IssueCancellation = "Annulation"
	IssueTechnical    = "Technique"
	IssueOther        = "Autre"
)

type issueRule struct {
	issue    string
	keywords []string
}

// Evaluated in order; the first rule with a matching keyword decides the issue type.
var issueRules = []issueRule{
	{IssueBilling, []string{"facture", "facturation", "remboursement", "rembourser", "paiement", "payé"}},
	{IssueComplaint, []string{"réclamation", "reclamation", "plainte", "mécontent", "mecontent"}},
	{IssueCancellation, []string{"annuler", "annulation"}},
	{IssueTechnical, []string{"bug", "site web", "site internet", "application", "technique"}},
}

var supportTriggers = []string{
	"problème", "probleme", "réclamation", "reclamation", "plainte", "facture",
	"remboursement", "support", "annuler", "annulation",
}

// DetectSupportIssue reports whether the message is a support request and classifies it.
func DetectSupportIssue(text string) (string, bool) {
	content := strings.ToLower(text)
	if !containsAny(content, supportTriggers) {
		return "", false
	}
	for _, rule := range issueRules {
		if containsAny(content, rule.keywords) {
			return rule.issue, true
		}
	}
	return IssueOther, true
}

// classifyIntent picks the intent a single message signals, if any. A generic trigger
// such as "problème" gives way to an appointment signal; a classified issue does not.
func classifyIntent(content string) (Intent, string) {
	issue, support := DetectSupportIssue(content)
	appointment := looksLikeAppointment(content)
	switch {
	case support && (issue != IssueOther || !appointment):
		return IntentSupport, issue
	case appointment:
		return IntentAppointment, ""
	default:
		return "", ""
	}
}
