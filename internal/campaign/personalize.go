package campaign

import (
	"strings"

	"github.com/osteele/liquid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-engine/internal/model"
)

// fillerValues are placeholder-shaped strings that sometimes come back
// from enrichment or extraction. They must never reach a rendered email.
var fillerValues = map[string]struct{}{
	"unknown":       {},
	"n/a":           {},
	"na":            {},
	"none":          {},
	"null":          {},
	"tbd":           {},
	"-":             {},
	"not available": {},
}

// Fallback phrases substituted when a binding is missing or filler.
const (
	fallbackCompany   = "your company"
	fallbackFirstName = "there"
	fallbackTitle     = "your role"
	fallbackIndustry  = "your industry"
	fallbackCity      = "your area"
)

// Personalizer renders email templates against a prospect and its
// primary contact.
type Personalizer struct {
	engine *liquid.Engine
}

// NewPersonalizer creates a template renderer.
func NewPersonalizer() *Personalizer {
	return &Personalizer{engine: liquid.NewEngine()}
}

// Render fills a template's subject and body from the prospect. Every
// binding is guaranteed non-empty so a template never renders a hole.
func (p *Personalizer) Render(tpl model.EmailTemplate, prospect *model.Prospect) (subject, body string, err error) {
	bindings := p.bindings(prospect)

	subject, err = p.engine.ParseAndRenderString(tpl.Subject, bindings)
	if err != nil {
		return "", "", eris.Wrapf(err, "campaign: render subject for sequence %d", tpl.Sequence)
	}
	body, err = p.engine.ParseAndRenderString(tpl.Body, bindings)
	if err != nil {
		return "", "", eris.Wrapf(err, "campaign: render body for sequence %d", tpl.Sequence)
	}
	return subject, body, nil
}

func (p *Personalizer) bindings(prospect *model.Prospect) map[string]any {
	var contact *model.Contact
	for i := range prospect.Contacts {
		if prospect.Contacts[i].IsPrimary {
			contact = &prospect.Contacts[i]
			break
		}
	}
	if contact == nil && len(prospect.Contacts) > 0 {
		contact = &prospect.Contacts[0]
	}

	var firstName, lastName, fullName, title string
	if contact != nil {
		fullName = contact.Name
		firstName, lastName = splitName(contact.Name)
		title = contact.Title
	}

	return map[string]any{
		"company_name": safeValue(prospect.CompanyName, fallbackCompany),
		"first_name":   safeValue(firstName, fallbackFirstName),
		"last_name":    safeValue(lastName, ""),
		"full_name":    safeValue(fullName, fallbackFirstName),
		"title":        safeValue(title, fallbackTitle),
		"industry":     safeValue(prospect.Industry, fallbackIndustry),
		"city":         safeValue(prospect.Location.City, fallbackCity),
		"state":        safeValue(prospect.Location.State, ""),
	}
}

// safeValue substitutes the fallback when a value is empty or a known
// filler string.
func safeValue(v, fallback string) string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return fallback
	}
	if _, filler := fillerValues[strings.ToLower(trimmed)]; filler {
		return fallback
	}
	return trimmed
}

func splitName(name string) (first, last string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], parts[len(parts)-1]
	}
}
