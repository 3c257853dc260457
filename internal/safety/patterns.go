package safety

import (
	"context"
	"regexp"
	"strings"
)

// Messages scoring at or above this are refused.
const blockThreshold = 0.7

type pattern struct {
	re     *regexp.Regexp
	reason string
	weight float64
}

// ScanResult explains a pattern scan.
type ScanResult struct {
	Score   float64
	Reasons []string
}

// Blocked reports whether the score reached the refusal threshold.
func (r ScanResult) Blocked() bool {
	return r.Score >= blockThreshold
}

// Attempts to override the assistant's instructions, in English and French.
var injectionPatterns = []pattern{
	{regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above|earlier|your)\s+(instructions?|rules?|prompts?)`), "injection:ignore_instructions", 0.9},
	{regexp.MustCompile(`(?i)(ignore|oublie|oubliez|ignorez)\s+(toutes\s+)?(les|tes|vos)\s+(instructions?|règles|regles|consignes)(\s+précédentes|\s+precedentes)?`), "injection:ignore_instructions_fr", 0.9},
	{regexp.MustCompile(`(?i)disregard\s+(all\s+)?(previous|prior|your)\s+(instructions?|rules?)`), "injection:disregard", 0.9},
	{regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an|my)\s+|tu\s+es\s+maintenant\s+(un|une|mon|ma)\s+|vous\s+êtes\s+maintenant\s+(un|une)\s+`), "injection:role_reassignment", 0.7},
	{regexp.MustCompile(`(?i)new\s+instructions?\s*:|nouvelles?\s+instructions?\s*:|system\s*prompt\s*:|<<\s*sys(tem)?\s*>>`), "injection:new_instructions", 0.9},
	{regexp.MustCompile(`(?i)jailbreak|DAN\s*mode|developer\s*mode|mode\s+développeur|mode\s+developpeur`), "injection:jailbreak_keyword", 0.9},
	{regexp.MustCompile(`(?i)(pretend|imagine)\s+(that\s+)?you\s+(have\s+no|don'?t\s+have)\s+(rules?|restrictions?|limits?)|fais\s+comme\s+si\s+tu\s+n'?avais\s+(aucune|pas\s+de)\s+(règle|regle|limite)`), "injection:pretend_no_rules", 0.9},
}

// Attempts to pull the prompt or other patients' data out of the assistant.
var exfiltrationPatterns = []pattern{
	{regexp.MustCompile(`(?i)(reveal|show|print|repeat|tell\s+me)\s+(your\s+)?(system\s+prompt|instructions?|initial\s+prompt)`), "exfiltration:system_prompt", 0.8},
	{regexp.MustCompile(`(?i)(révèle|revele|montre|affiche|répète|repete|donne)[\s-]*(moi\s+)?(ton|tes|votre|vos)\s+(prompt|instructions?|consignes|règles|regles)`), "exfiltration:system_prompt_fr", 0.8},
	{regexp.MustCompile(`(?i)(liste|donne|montre)[\s-]*(moi\s+)?(les\s+)?(données|donnees|rendez-vous|numéros|numeros|emails?)\s+des\s+autres\s+patients`), "exfiltration:patient_data_fr", 0.8},
	{regexp.MustCompile(`(?i)\b(api|secret|aws|database|db)\s*(key|token|secret|password)s?\b|\b(clé|cle)\s+(api|secrète|secrete)\b`), "exfiltration:credentials", 0.8},
}

// Fake conversation boundaries and special tokens.
var contextPatterns = []pattern{
	{regexp.MustCompile(`(?i)\[/?INST\]|\[/?SYS\]|<\|im_start\|>|<\|im_end\|>|<\|system\|>`), "context:special_tokens", 0.9},
	{regexp.MustCompile(`(?i)###\s*(system|instruction|assistant)\s*:`), "context:role_markers", 0.7},
	{regexp.MustCompile(`<\s*(script|iframe|object|embed)\b`), "context:html_injection", 0.6},
}

// Signs that a generated reply leaks internals.
var leakPatterns = []pattern{
	{regexp.MustCompile(`(?i)my (system\s+)?prompt\s+(is|says)|mes\s+instructions\s+(sont|disent)|mon\s+prompt\s+(est|dit)`), "leak:prompt_disclosure", 1},
	{regexp.MustCompile(`(?i)(api[_\s]?key|secret[_\s]?key|access[_\s]?token)\s*[:=]\s*\S+`), "leak:credential", 1},
	{regexp.MustCompile(`AKIA[A-Z0-9]{16}`), "leak:aws_key", 1},
	{regexp.MustCompile(`(?i)(postgres|postgresql|redis|sqlite)://\S+`), "leak:database_url", 1},
	{regexp.MustCompile(`(?i)(SQLSTATE|row-level security|stack trace|traceback)`), "leak:internal_error", 1},
	{regexp.MustCompile(`(?i)` + regexp.QuoteMeta("[CONFIRM_APPOINTMENT]")), "leak:control_marker", 1},
}

// PatternClassifier scores text against a fixed pattern set. It never returns an error.
type PatternClassifier struct {
	patterns []pattern
}

// NewInboundClassifier screens patient messages for prompt injection.
func NewInboundClassifier() *PatternClassifier {
	all := make([]pattern, 0, len(injectionPatterns)+len(exfiltrationPatterns)+len(contextPatterns))
	all = append(all, injectionPatterns...)
	all = append(all, exfiltrationPatterns...)
	all = append(all, contextPatterns...)
	return &PatternClassifier{patterns: all}
}

// NewOutboundClassifier screens generated replies for leaks.
func NewOutboundClassifier() *PatternClassifier {
	return &PatternClassifier{patterns: leakPatterns}
}

func (c *PatternClassifier) IsSafe(_ context.Context, text string) (bool, error) {
	return !c.Scan(text).Blocked(), nil
}

// Scan returns the score and the reasons that fired. Several signals compound by 0.1 each.
func (c *PatternClassifier) Scan(text string) ScanResult {
	if strings.TrimSpace(text) == "" {
		return ScanResult{}
	}
	var reasons []string
	maxWeight := 0.0
	for _, p := range c.patterns {
		if p.re.MatchString(text) {
			reasons = append(reasons, p.reason)
			if p.weight > maxWeight {
				maxWeight = p.weight
			}
		}
	}
	score := maxWeight
	if len(reasons) > 1 {
		score = min(maxWeight+float64(len(reasons)-1)*0.1, 1.0)
	}
	return ScanResult{Score: score, Reasons: reasons}
}
