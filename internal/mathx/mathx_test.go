package mathx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRound2(t *testing.T) {
	assert.Equal(t, 1.23, Round2(1.234))
	assert.Equal(t, 1.24, Round2(1.235))
	assert.Equal(t, 0.1, Round2(0.1))
	assert.Equal(t, -1.24, Round2(-1.235))
	assert.Equal(t, 0.0, Round2(0))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 5.0, Clamp(3, 5, 8))
	assert.Equal(t, 8.0, Clamp(9, 5, 8))
	assert.Equal(t, 6.5, Clamp(6.5, 5, 8))
}

func TestFloorToMinutes(t *testing.T) {
	at := time.Date(2026, 3, 14, 10, 44, 59, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC), FloorToMinutes(at, 15))
	assert.Equal(t, time.Date(2026, 3, 14, 10, 44, 0, 0, time.UTC), FloorToMinutes(at, 1))
}

func TestDeterministicNumber(t *testing.T) {
	a := DeterministicNumber("vault-balanced:2026-03-14T10:30:00Z")
	b := DeterministicNumber("vault-balanced:2026-03-14T10:30:00Z")
	assert.Equal(t, a, b)

	c := DeterministicNumber("vault-balanced:2026-03-14T10:45:00Z")
	assert.NotEqual(t, a, c)

	for _, seed := range []string{"", "x", "USDC-EURC-29538000", "a-much-longer-seed-string"} {
		v := DeterministicNumber(seed)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.Less(t, v, 1.0)
	}
}
