package contacts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/outreach-engine/internal/model"
	"github.com/sells-group/outreach-engine/pkg/anthropic"
)

// Volume bounds for the AI validation pass. Below the lower bound the
// extra call is not worth it; above the upper bound it is skipped for
// cost and latency, not correctness.
const (
	aiValidateMin = 3
	aiValidateMax = 15
)

// Validator deduplicates and sanity-checks extracted contacts.
type Validator struct {
	ai    anthropic.Client
	model string
}

// NewValidator creates a Validator. A nil AI client always uses the
// simple merge.
func NewValidator(ai anthropic.Client, aiModel string) *Validator {
	return &Validator{ai: ai, model: aiModel}
}

// Validate merges duplicates and, for mid-sized contact sets, runs an AI
// pass that may drop implausible entries. The AI pass degrades to the
// simple merge on any failure.
func (v *Validator) Validate(ctx context.Context, company string, contacts []model.Contact) []model.Contact {
	merged := mergeByName(contacts)

	if v.ai == nil || len(merged) < aiValidateMin || len(merged) > aiValidateMax {
		return merged
	}

	cleaned, err := v.validateWithAI(ctx, company, merged)
	if err != nil {
		zap.L().Debug("contacts: AI validation failed, keeping merged set",
			zap.Error(err))
		return merged
	}
	return cleaned
}

func (v *Validator) validateWithAI(ctx context.Context, company string, contacts []model.Contact) ([]model.Contact, error) {
	payload, err := json.Marshal(contacts)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(
		"Review this extracted contact list for %s. Remove entries that are not "+
			"real individual people (departments, placeholders, obviously garbled "+
			"names) and merge obvious duplicates. Reply with the cleaned JSON array "+
			"in the same shape and nothing else.\n\n%s",
		company, string(payload),
	)

	resp, err := v.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     v.model,
		MaxTokens: 2048,
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return nil, err
	}

	var cleaned []model.Contact
	if err := json.Unmarshal([]byte(extractJSONArray(resp.Text())), &cleaned); err != nil {
		return nil, fmt.Errorf("contacts: unparseable validation output: %w", err)
	}
	if len(cleaned) == 0 || len(cleaned) > len(contacts) {
		return nil, fmt.Errorf("contacts: implausible validation output size %d", len(cleaned))
	}
	return cleaned, nil
}

// mergeByName collapses contacts sharing a case-insensitive name. The
// entry with the higher provisional confidence wins; missing fields are
// backfilled from the loser.
func mergeByName(contacts []model.Contact) []model.Contact {
	byName := map[string]int{}
	var out []model.Contact

	for _, c := range contacts {
		key := strings.ToLower(strings.TrimSpace(c.Name))
		if key == "" {
			continue
		}

		idx, seen := byName[key]
		if !seen {
			byName[key] = len(out)
			out = append(out, c)
			continue
		}

		kept := out[idx]
		if scoreContact(c) > scoreContact(kept) {
			kept, c = c, kept
		}
		if kept.Title == "" {
			kept.Title = c.Title
		}
		if kept.Email == "" {
			kept.Email = c.Email
		}
		if kept.Phone == "" {
			kept.Phone = c.Phone
		}
		if kept.LinkedInURL == "" {
			kept.LinkedInURL = c.LinkedInURL
		}
		out[idx] = kept
	}

	return out
}
