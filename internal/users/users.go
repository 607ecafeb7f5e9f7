// Package users is the identity directory: get-or-create with wallet
// binding, unique referral code issuance (delegated to the store), and
// username binding.
package users

import (
	stderrors "errors"
	"regexp"
	"strings"

	"github.com/lummalabs/lumma-core/internal/errors"
	"github.com/lummalabs/lumma-core/internal/store"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_]{3,20}$`)

type Directory struct {
	store store.Store
}

func NewDirectory(s store.Store) *Directory {
	return &Directory{store: s}
}

// Profile returns the user, creating the record on first sight and binding
// the wallet address if one is supplied and none is set.
func (d *Directory) Profile(userID, walletAddress string) (*store.User, error) {
	user, err := d.store.GetOrCreateUser(userID, walletAddress)
	if err != nil {
		return nil, &errors.StorageError{Operation: "load user", Err: err}
	}
	return user, nil
}

// SetUsername binds a normalized username to the user. Usernames are
// lower-cased, shape-checked, and unique across the directory.
func (d *Directory) SetUsername(userID, username string) (*store.User, error) {
	normalized := strings.ToLower(strings.TrimSpace(username))
	if !usernamePattern.MatchString(normalized) {
		return nil, &errors.ValidationError{
			Field:   "username",
			Message: "must be 3-20 lowercase letters, numbers, or underscores",
		}
	}
	if _, err := d.store.GetOrCreateUser(userID, ""); err != nil {
		return nil, &errors.StorageError{Operation: "load user", Err: err}
	}
	user, err := d.store.SetUsername(userID, normalized)
	if err != nil {
		if stderrors.Is(err, store.ErrDuplicate) {
			return nil, &errors.ConflictError{Message: "username already taken"}
		}
		return nil, &errors.StorageError{Operation: "set username", Err: err}
	}
	return user, nil
}
