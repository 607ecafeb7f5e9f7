package admin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lummalabs/lumma-core/internal/errors"
	"github.com/lummalabs/lumma-core/internal/store"
	"github.com/lummalabs/lumma-core/internal/store/memory"
)

func TestSetVaultPauseRequiresToken(t *testing.T) {
	mem := memory.New()
	adm := New(mem, "secret")

	var authErr *errors.AuthorizationError
	_, err := adm.SetVaultPause(true, "")
	require.ErrorAs(t, err, &authErr)
	_, err = adm.SetVaultPause(true, "wrong")
	require.ErrorAs(t, err, &authErr)

	paused, err := adm.SetVaultPause(true, "secret")
	require.NoError(t, err)
	assert.True(t, paused)

	flag, err := mem.GetSystemFlag(store.VaultPauseFlag)
	require.NoError(t, err)
	assert.True(t, flag)
}

func TestSetVaultPauseRejectsAllWithoutConfiguredToken(t *testing.T) {
	adm := New(memory.New(), "")
	var authErr *errors.AuthorizationError
	_, err := adm.SetVaultPause(true, "")
	require.ErrorAs(t, err, &authErr)
}

func TestSystemState(t *testing.T) {
	mem := memory.New()
	adm := New(mem, "secret")
	_, err := mem.GetOrCreateUser("alice", "")
	require.NoError(t, err)

	state, err := adm.SystemState()
	require.NoError(t, err)
	assert.Equal(t, 1, state.Users)
	assert.False(t, state.Paused)
}
