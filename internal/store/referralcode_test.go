package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferralCodeFromSeedIsStable(t *testing.T) {
	first := ReferralCodeFromSeed("ref:alice")
	second := ReferralCodeFromSeed("ref:alice")
	assert.Equal(t, first, second)
	assert.NotEqual(t, first, ReferralCodeFromSeed("ref:bob"))
}

func TestReferralCodeShape(t *testing.T) {
	for _, seed := range []string{"ref:a", "ref:some-uuid-here", "ref:x:3"} {
		code := ReferralCodeFromSeed(seed)
		require.True(t, strings.HasPrefix(code, "LUM-"), code)
		token := strings.TrimPrefix(code, "LUM-")
		assert.Len(t, token, 6)
		assert.Equal(t, strings.ToUpper(token), token)
	}
}

func TestReferralCodeCandidates(t *testing.T) {
	candidates := ReferralCodeCandidates("alice")
	require.Len(t, candidates, 39)
	assert.Equal(t, ReferralCodeFromSeed("ref:alice"), candidates[0])

	// Deterministic variants repeat across calls; random fallbacks do not.
	again := ReferralCodeCandidates("alice")
	assert.Equal(t, candidates[:7], again[:7])
	assert.NotEqual(t, candidates[7:], again[7:])
}
