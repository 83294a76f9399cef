package contacts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sells-group/outreach-engine/internal/model"
)

// decisionMakerKeywords fuzzy-match contact titles to flag likely buyers.
var decisionMakerKeywords = []string{
	"ceo", "chief executive",
	"cfo", "chief financial",
	"coo", "chief operating",
	"cto", "chief technology",
	"cmo", "chief marketing",
	"president", "founder", "co-founder",
	"owner", "principal", "partner",
	"vp", "vice president",
	"director", "head of",
	"general manager", "managing",
}

// IsDecisionMaker reports whether a title matches the seniority keyword
// list.
func IsDecisionMaker(title string) bool {
	lower := strings.ToLower(title)
	for _, kw := range decisionMakerKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// scoreContact computes the confidence score: a base of 50, plus 25 for
// a known email, 15 for a LinkedIn profile, and 10 for a decision-maker
// title.
func scoreContact(c model.Contact) int {
	score := 50
	if c.Email != "" {
		score += 25
	}
	if c.LinkedInURL != "" {
		score += 15
	}
	if IsDecisionMaker(c.Title) {
		score += 10
	}
	return score
}

// ScoreAndRank scores every contact, sorts by decision-maker flag then
// confidence, and marks the top contact primary. Contacts without an
// email get deterministic pattern guesses from their name and the domain.
func ScoreAndRank(contacts []model.Contact, domain string) []model.Contact {
	out := make([]model.Contact, len(contacts))
	copy(out, contacts)

	for i := range out {
		out[i].IsDecisionMaker = IsDecisionMaker(out[i].Title)
		out[i].Confidence = scoreContact(out[i])
		out[i].IsPrimary = false
		if out[i].Email == "" {
			out[i].GuessedEmails = GuessEmails(out[i].Name, domain)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsDecisionMaker != out[j].IsDecisionMaker {
			return out[i].IsDecisionMaker
		}
		return out[i].Confidence > out[j].Confidence
	})

	if len(out) > 0 {
		out[0].IsPrimary = true
	}
	return out
}

// GuessEmails generates the standard corporate address patterns for a
// full name at a domain: first.last@, firstlast@, flast@, first@, last@.
func GuessEmails(fullName, domain string) []string {
	if domain == "" {
		return nil
	}

	fields := strings.Fields(strings.ToLower(strings.TrimSpace(fullName)))
	if len(fields) == 0 {
		return nil
	}

	first := sanitizeEmailToken(fields[0])
	if first == "" {
		return nil
	}
	if len(fields) == 1 {
		return []string{fmt.Sprintf("%s@%s", first, domain)}
	}

	last := sanitizeEmailToken(fields[len(fields)-1])
	if last == "" {
		return []string{fmt.Sprintf("%s@%s", first, domain)}
	}

	return []string{
		fmt.Sprintf("%s.%s@%s", first, last, domain),
		fmt.Sprintf("%s%s@%s", first, last, domain),
		fmt.Sprintf("%c%s@%s", first[0], last, domain),
		fmt.Sprintf("%s@%s", first, domain),
		fmt.Sprintf("%s@%s", last, domain),
	}
}

func sanitizeEmailToken(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
