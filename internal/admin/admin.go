// Package admin controls the global vault pause flag and exposes system
// counters.
package admin

import (
	"github.com/lummalabs/lumma-core/internal/errors"
	"github.com/lummalabs/lumma-core/internal/store"
	"github.com/lummalabs/lumma-core/pkg/logger"
)

type Admin struct {
	store store.Store
	token string
}

func New(s store.Store, adminToken string) *Admin {
	return &Admin{store: s, token: adminToken}
}

// SetVaultPause flips the global pause flag. The shared secret must be
// configured and match exactly; an unconfigured token rejects everything.
func (a *Admin) SetVaultPause(paused bool, token string) (bool, error) {
	if a.token == "" || token != a.token {
		return false, &errors.AuthorizationError{Message: "unauthorized admin token"}
	}
	if err := a.store.SetSystemFlag(store.VaultPauseFlag, paused); err != nil {
		return false, &errors.StorageError{Operation: "set pause flag", Err: err}
	}
	logger.Warn("Vault pause flag set to %v", paused)
	return paused, nil
}

// SystemState returns the global counters.
func (a *Admin) SystemState() (*store.SystemCounts, error) {
	counts, err := a.store.Counts()
	if err != nil {
		return nil, &errors.StorageError{Operation: "read system counts", Err: err}
	}
	return counts, nil
}
