package extraction

import (
	"regexp"
	"strings"
	"time"
	"unicode"
)

// Message is one turn of the conversation as seen by the extractor.
type Message struct {
	Role    string
	Content string
}

// RoleUser marks messages typed by the patient; other roles are ignored.
const RoleUser = "user"

const defaultServiceType = "Consultation"

var (
	emailRE = regexp.MustCompile(`[\w.+\-]+@[\w\-]+(?:\.[\w\-]+)*\.\w{2,}`)
	phoneRE = regexp.MustCompile(`(?:(?:\+|00)(\d{1,3})[\s.\-]?)?(\d{2,3}(?:[\s.\-]?\d{2,3}){2,4})`)

	introducedNameRE = regexp.MustCompile(`(?i)(?:je m['’]appelle|nom est|je suis)\s*([A-Za-zÀ-ÿ\- ]+)`)
	labelledNameRE   = regexp.MustCompile(`(?i)nom\s*[:\s]\s*([A-Za-zÀ-ÿ\- ]+)`)
	nameDenyRE       = regexp.MustCompile(`(?i)@|tel|mail|soin|rdv|rendez-vous|demain|` + weekdayAlternation + `|\d`)

	serviceRE = regexp.MustCompile(`(?i)(d[ée]tartrage|extraction|consultation|orthodontie|blanchiment|caries?|cavit[ée]s?|proth[èe]ses?|parodontologie|douleurs?|mal de dents?)`)
)

var phoneTriggers = []string{"77", "tel", "tél", "+"}

var dateTriggers = []string{"demain", "/", "lundi", "mardi", "mercredi", "jeudi", "vendredi", "samedi", "dimanche"}

// Words that end a captured name ("je m'appelle Awa et je voudrais...").
var nameStopWords = map[string]struct{}{
	"et": {}, "mon": {}, "ma": {}, "mes": {}, "je": {}, "j": {}, "pour": {}, "de": {}, "du": {},
	"le": {}, "la": {}, "les": {}, "un": {}, "une": {}, "à": {}, "a": {}, "avec": {}, "email": {},
	"mail": {}, "tel": {}, "tél": {}, "téléphone": {}, "telephone": {}, "numéro": {}, "numero": {},
	"et-je": {}, "merci": {}, "svp": {}, "demain": {},
}

// First words that show "je suis ..." is not an introduction.
var notANameWords = map[string]struct{}{
	"disponible": {}, "libre": {}, "intéressé": {}, "intéressée": {}, "interesse": {}, "malade": {},
	"en": {}, "très": {}, "tres": {}, "pas": {}, "là": {}, "la": {}, "désolé": {}, "désolée": {},
	"content": {}, "contente": {}, "un": {}, "une": {}, "client": {}, "cliente": {}, "patient": {},
	"patiente": {}, "d": {}, "de": {}, "ok": {}, "ravi": {}, "ravie": {},
}

// Single-word messages that are never names.
var nonNameTokens = map[string]struct{}{
	"bonjour": {}, "bonsoir": {}, "salut": {}, "hello": {}, "coucou": {}, "merci": {}, "oui": {},
	"non": {}, "ok": {}, "okay": {}, "yes": {}, "confirmer": {}, "confirme": {}, "parfait": {},
	"d'accord": {}, "daccord": {}, "svp": {}, "annuler": {}, "aide": {}, "urgent": {},

	// date and time markers answering "quand ?"
	"aujourd'hui": {}, "aujourdhui": {}, "hier": {}, "maintenant": {}, "bientôt": {}, "bientot": {},
	"matin": {}, "matinée": {}, "matinee": {}, "midi": {}, "après-midi": {}, "apres-midi": {},
	"aprem": {}, "soir": {}, "soirée": {}, "soiree": {}, "nuit": {}, "semaine": {}, "week-end": {},
	"weekend": {}, "prochain": {}, "prochaine": {}, "mois": {}, "heure": {}, "heures": {},
	"tôt": {}, "tot": {}, "tard": {}, "asap": {}, "janvier": {}, "février": {}, "fevrier": {},
	"mars": {}, "avril": {}, "mai": {}, "juin": {}, "juillet": {}, "août": {}, "aout": {},
	"septembre": {}, "octobre": {}, "novembre": {}, "décembre": {}, "decembre": {},
}

var serviceCanonical = map[string]string{
	"détartrage":     "Détartrage",
	"detartrage":     "Détartrage",
	"extraction":     "Extraction",
	"consultation":   "Consultation",
	"orthodontie":    "Orthodontie",
	"blanchiment":    "Blanchiment",
	"carie":          "Carie",
	"caries":         "Carie",
	"cavité":         "Carie",
	"cavités":        "Carie",
	"cavite":         "Carie",
	"cavites":        "Carie",
	"prothèse":       "Prothèse",
	"prothèses":      "Prothèse",
	"prothese":       "Prothèse",
	"protheses":      "Prothèse",
	"parodontologie": "Parodontologie",
	"douleur":        "Douleur",
	"douleurs":       "Douleur",
	"mal de dent":    "Douleur",
	"mal de dents":   "Douleur",
}

// Extract builds the best-effort field set from the conversation history.
// Messages are scanned most recent first and each field keeps the first value found,
// so the latest mention of every field wins independently.
func Extract(history []Message, today time.Time) Fields {
	var fields Fields
	var explicitConsultation bool

	for i := len(history) - 1; i >= 0; i-- {
		msg := history[i]
		if msg.Role != RoleUser {
			continue
		}
		original := strings.TrimSpace(msg.Content)
		if original == "" {
			continue
		}
		content := strings.ToLower(original)

		if !fields.Email.Present() && strings.Contains(content, "@") {
			fields.Email = extracted(ExtractEmail(content))
		}
		if !fields.Phone.Present() && containsAny(content, phoneTriggers) {
			fields.Phone = extracted(ExtractPhone(content))
		}
		if !fields.Name.Present() {
			fields.Name = extracted(ExtractName(original))
		}
		if !fields.ServiceType.Present() {
			switch service := ExtractServiceType(content); {
			case service == "":
			case service == defaultServiceType:
				explicitConsultation = true
			default:
				fields.ServiceType = extracted(service)
			}
		}
		if !fields.ProposedTime.Present() && (strings.Contains(content, "h") || strings.Contains(content, ":")) {
			fields.ProposedTime = extracted(NormalizeTime(content))
		}
		if !fields.ProposedDate.Present() && containsAny(content, dateTriggers) {
			fields.ProposedDate = extracted(NormalizeDate(content, today))
		}
		if fields.Intent == "" {
			intent, issue := classifyIntent(content)
			fields.Intent = intent
			if intent == IntentSupport {
				fields.IssueType = extracted(issue)
				fields.Description = extracted(original)
			}
		}
	}

	if !fields.ServiceType.Present() {
		if explicitConsultation {
			fields.ServiceType = extracted(defaultServiceType)
		} else {
			fields.ServiceType = Field{Value: defaultServiceType, Source: SourceDefaulted}
		}
	}
	if fields.Intent == "" {
		fields.Intent = IntentAppointment
	}
	return fields
}

// ExtractEmail returns the first address-shaped substring.
func ExtractEmail(text string) string {
	return emailRE.FindString(text)
}

// ExtractPhone returns the first plausible phone number as digits only.
// The Senegalese +221 prefix is dropped; other country codes are kept with a leading '+'.
func ExtractPhone(text string) string {
	for _, m := range phoneRE.FindAllStringSubmatch(text, -1) {
		digits := onlyDigits(m[2])
		if len(digits) < 7 || len(digits) > 12 {
			continue
		}
		country := m[1]
		if country == "" || country == "221" {
			return digits
		}
		return "+" + country + digits
	}
	return ""
}

// ExtractName applies the introduction, label and single-word rules in order.
func ExtractName(text string) string {
	text = strings.TrimSpace(text)
	if m := introducedNameRE.FindStringSubmatch(text); m != nil {
		if name := cleanName(m[1], true); name != "" {
			return name
		}
	}
	if m := labelledNameRE.FindStringSubmatch(text); m != nil {
		if name := cleanName(m[1], false); name != "" {
			return name
		}
	}
	return singleTokenName(text)
}

func cleanName(raw string, introduced bool) string {
	words := strings.Fields(raw)
	if len(words) == 0 {
		return ""
	}
	if _, bad := notANameWords[strings.ToLower(words[0])]; introduced && bad {
		return ""
	}
	var kept []string
	for _, w := range words {
		w = strings.Trim(w, "-")
		if w == "" {
			continue
		}
		if _, stop := nameStopWords[strings.ToLower(w)]; stop {
			break
		}
		kept = append(kept, w)
		if len(kept) == 3 {
			break
		}
	}
	return strings.Join(kept, " ")
}

func singleTokenName(text string) string {
	words := strings.Fields(text)
	if len(words) != 1 {
		return ""
	}
	token := strings.TrimFunc(words[0], func(r rune) bool {
		return unicode.IsPunct(r) && r != '-' && r != '\''
	})
	if len([]rune(token)) <= 2 {
		return ""
	}
	token = strings.ReplaceAll(token, "’", "'")
	lowered := strings.ToLower(token)
	if nameDenyRE.MatchString(lowered) {
		return ""
	}
	if _, ok := nonNameTokens[lowered]; ok {
		return ""
	}
	if ExtractServiceType(lowered) != "" {
		return ""
	}
	for _, r := range token {
		if !unicode.IsLetter(r) && r != '-' && r != '\'' {
			return ""
		}
	}
	return token
}

// ExtractServiceType maps the first dental vocabulary term to its canonical label.
// It returns "" when the text mentions no service at all.
func ExtractServiceType(text string) string {
	m := serviceRE.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	if canonical, ok := serviceCanonical[strings.ToLower(m[1])]; ok {
		return canonical
	}
	return capitalize(strings.ToLower(m[1]))
}

func looksLikeAppointment(content string) bool {
	return strings.Contains(content, "rdv") ||
		strings.Contains(content, "rendez-vous") ||
		strings.Contains(content, "rendez vous") ||
		serviceRE.MatchString(content)
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func capitalize(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return s
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
