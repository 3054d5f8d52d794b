package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParallelPolicy_CanRunConcurrently(t *testing.T) {
	p := NewParallelPolicy(map[string][]string{
		"fulfilment": {"responder", "creator"},
		"reporting":  {"summarizer"},
	})

	tests := []struct {
		name      string
		candidate string
		running   Set
		want      bool
	}{
		{"exclusive on idle pool", "validator", nil, true},
		{"exclusive next to anything", "validator", NewSet("responder"), false},
		{"parallel on idle pool", "creator", nil, true},
		{"parallel next to parallel", "creator", NewSet("responder"), true},
		{"parallel across groups", "summarizer", NewSet("creator"), true},
		{"parallel next to exclusive", "creator", NewSet("validator"), false},
		{"parallel next to mixed", "creator", NewSet("responder", "reader"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.CanRunConcurrently(tt.candidate, tt.running))
		})
	}
}

func TestParallelPolicy_Groups(t *testing.T) {
	groups := map[string][]string{"fulfilment": {"responder", "creator"}}
	p := NewParallelPolicy(groups)
	groups["fulfilment"][0] = "mutated"

	assert.Equal(t, []string{"fulfilment"}, p.Groups())
	assert.Equal(t, []string{"responder", "creator"}, p.Members("fulfilment"))
	assert.True(t, p.IsParallelCapable("responder"))
	assert.False(t, p.IsParallelCapable("reader"))
}

func TestParallelPolicy_NoGroups(t *testing.T) {
	p := NewParallelPolicy(nil)
	assert.False(t, p.IsParallelCapable("reader"))
	assert.True(t, p.CanRunConcurrently("reader", nil))
	assert.False(t, p.CanRunConcurrently("reader", NewSet("validator")))
}
