package contacts

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-engine/internal/model"
)

func TestMergeByNameCaseInsensitive(t *testing.T) {
	t.Parallel()

	contacts := []model.Contact{
		{Name: "Jane Smith", Title: "CEO"},
		{Name: "jane smith", Email: "jane@acme.com"},
		{Name: "Bob Jones"},
	}

	out := mergeByName(contacts)
	require.Len(t, out, 2)

	// The email-bearing duplicate wins on confidence; title backfilled.
	assert.Equal(t, "jane@acme.com", out[0].Email)
	assert.Equal(t, "CEO", out[0].Title)
}

func TestMergeByNameKeepsHigherConfidenceFields(t *testing.T) {
	t.Parallel()

	contacts := []model.Contact{
		{Name: "Jane Smith", Email: "jane@acme.com", Phone: "555-0100"},
		{Name: "Jane Smith", Title: "VP Sales", LinkedInURL: "https://linkedin.com/in/jane"},
	}

	out := mergeByName(contacts)
	require.Len(t, out, 1)
	assert.Equal(t, "jane@acme.com", out[0].Email)
	assert.Equal(t, "555-0100", out[0].Phone)
	assert.Equal(t, "VP Sales", out[0].Title)
	assert.Equal(t, "https://linkedin.com/in/jane", out[0].LinkedInURL)
}

func TestMergeByNameDropsEmptyNames(t *testing.T) {
	t.Parallel()

	out := mergeByName([]model.Contact{{Name: ""}, {Name: "  "}, {Name: "Real Person"}})
	require.Len(t, out, 1)
}

func contactsNamed(names ...string) []model.Contact {
	out := make([]model.Contact, len(names))
	for i, n := range names {
		out[i] = model.Contact{Name: n}
	}
	return out
}

func TestValidateSkipsAIBelowThreshold(t *testing.T) {
	t.Parallel()

	ai := &stubAI{}
	v := NewValidator(ai, "m")

	out := v.Validate(context.Background(), "Acme", contactsNamed("A", "B"))
	assert.Len(t, out, 2)
	assert.Zero(t, ai.calls)
}

func TestValidateSkipsAIAboveThreshold(t *testing.T) {
	t.Parallel()

	names := make([]string, 16)
	for i := range names {
		names[i] = string(rune('A' + i))
	}
	ai := &stubAI{}
	v := NewValidator(ai, "m")

	out := v.Validate(context.Background(), "Acme", contactsNamed(names...))
	assert.Len(t, out, 16)
	assert.Zero(t, ai.calls)
}

func TestValidateRunsAIInMidRange(t *testing.T) {
	t.Parallel()

	ai := &stubAI{replies: []string{
		`[{"name":"Jane Smith","title":"CEO"},{"name":"Bob Jones","title":"CFO"}]`,
	}}
	v := NewValidator(ai, "m")

	out := v.Validate(context.Background(), "Acme", contactsNamed("Jane Smith", "Bob Jones", "Front Desk"))
	require.Equal(t, 1, ai.calls)
	require.Len(t, out, 2)
	assert.Equal(t, "Jane Smith", out[0].Name)
}

func TestValidateFallsBackOnAIError(t *testing.T) {
	t.Parallel()

	ai := &stubAI{err: errors.New("overloaded")}
	v := NewValidator(ai, "m")

	out := v.Validate(context.Background(), "Acme", contactsNamed("A", "B", "C"))
	assert.Len(t, out, 3)
}

func TestValidateFallsBackOnImplausibleOutput(t *testing.T) {
	t.Parallel()

	// More entries than the input cannot be a cleaned version of it.
	ai := &stubAI{replies: []string{
		`[{"name":"A"},{"name":"B"},{"name":"C"},{"name":"D"}]`,
	}}
	v := NewValidator(ai, "m")

	out := v.Validate(context.Background(), "Acme", contactsNamed("A", "B", "C"))
	assert.Len(t, out, 3)
}
