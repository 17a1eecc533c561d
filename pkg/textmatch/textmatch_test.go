package textmatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainsPhrase(t *testing.T) {
	tests := []struct {
		text, phrase string
		want         bool
	}{
		{"Senate passes Clean Water Act", "clean water", true},
		{"Senate passes Clean Water Act", "water act", true},
		{"Local police budget vote", "ice", false},
		{"ICE raids reported downtown", "ice", true},
		{"Medicaid expansion", "", false},
		{"", "medicaid", false},
		{"Climate-change report", "climate change", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ContainsPhrase(tt.text, tt.phrase), "%q in %q", tt.phrase, tt.text)
	}
}

func TestFuzzyIsBidirectional(t *testing.T) {
	assert.True(t, Fuzzy("Warren", "Senator Elizabeth Warren"))
	assert.True(t, Fuzzy("Senator Elizabeth Warren", "Warren"))
	assert.False(t, Fuzzy("Al", "Alabama"))
	assert.False(t, Fuzzy("", "Warren"))
}

func TestKeyIgnoresOrderAndStopwords(t *testing.T) {
	assert.Equal(t, Key("The Senate passes budget"), Key("budget passes Senate"))
	assert.Equal(t, "budget passes senate", Key("Senate passes the budget"))
}

func TestJaccard(t *testing.T) {
	assert.Equal(t, 0.0, Jaccard(nil, []string{"a"}))
	assert.Equal(t, 1.0, Jaccard([]string{"a", "b"}, []string{"b", "a"}))
	assert.InDelta(t, 1.0/3.0, Jaccard([]string{"a", "b"}, []string{"b", "c"}), 1e-9)
}
