// Package nft issues swap-count gated milestone claims and derives the point
// boost from the highest claimed tier.
package nft

import (
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lummalabs/lumma-core/internal/errors"
	"github.com/lummalabs/lumma-core/internal/store"
	"github.com/lummalabs/lumma-core/pkg/logger"
)

// Tier is one milestone level. The special tier exists in the catalog but is
// awarded manually, never through Claim.
type Tier struct {
	Name          string  `json:"name"`
	SwapThreshold int     `json:"swapThreshold"`
	Boost         float64 `json:"boost"`
}

// tierTable is ordered highest first; CurrentBoost picks the first claimed
// match.
var tierTable = []Tier{
	{Name: "diamond", SwapThreshold: 250, Boost: 1.30},
	{Name: "gold", SwapThreshold: 100, Boost: 1.20},
	{Name: "silver", SwapThreshold: 50, Boost: 1.10},
	{Name: "bronze", SwapThreshold: 25, Boost: 1.05},
}

const specialTier = "special"

// Tiers returns the claimable tiers, highest first.
func Tiers() []Tier {
	return tierTable
}

func tierByName(name string) (Tier, bool) {
	for _, tier := range tierTable {
		if tier.Name == name {
			return tier, true
		}
	}
	return Tier{}, false
}

type Registry struct {
	store store.Store
	now   func() time.Time
}

func NewRegistry(s store.Store) *Registry {
	return &Registry{store: s, now: time.Now}
}

func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// CurrentBoost returns the multiplier of the highest tier the user has
// claimed, or 1.0 with nothing claimed.
func (r *Registry) CurrentBoost(userID string) (float64, error) {
	claims, err := r.store.ListNftClaims(userID)
	if err != nil {
		return 0, &errors.StorageError{Operation: "list nft claims", Err: err}
	}
	claimed := make(map[string]bool, len(claims))
	for _, claim := range claims {
		claimed[claim.Tier] = true
	}
	for _, tier := range tierTable {
		if claimed[tier.Name] {
			return tier.Boost, nil
		}
	}
	return 1.0, nil
}

// Claim issues the milestone claim for tier if the user's cumulative swap
// count meets the threshold and the tier has not been claimed before. The
// per-(user, tier) uniqueness is enforced by the store.
func (r *Registry) Claim(userID, tierName string) (*store.NftClaim, error) {
	if tierName == specialTier {
		return nil, &errors.ValidationError{Field: "tier", Message: "special NFTs are awarded manually"}
	}
	tier, ok := tierByName(tierName)
	if !ok {
		return nil, &errors.NotFoundError{Resource: "nft tier", Identifier: tierName}
	}
	if _, err := r.store.GetOrCreateUser(userID, ""); err != nil {
		return nil, &errors.StorageError{Operation: "load user", Err: err}
	}
	swaps, err := r.store.CountSwapEvents(userID)
	if err != nil {
		return nil, &errors.StorageError{Operation: "count swaps", Err: err}
	}
	if swaps < tier.SwapThreshold {
		return nil, &errors.ConflictError{
			Message: fmt.Sprintf("not eligible: %d swaps required for %s", tier.SwapThreshold, tier.Name),
		}
	}

	claim := &store.NftClaim{
		ID:        uuid.NewString(),
		UserID:    userID,
		Tier:      tier.Name,
		ClaimedAt: r.now().UTC(),
	}
	if err := r.store.InsertNftClaim(claim); err != nil {
		if stderrors.Is(err, store.ErrDuplicate) {
			return nil, &errors.ConflictError{Message: fmt.Sprintf("tier %s has already been claimed", tier.Name)}
		}
		return nil, &errors.StorageError{Operation: "insert nft claim", Err: err}
	}
	logger.Info("Milestone NFT claimed: user=%s tier=%s swaps=%d", userID, tier.Name, swaps)
	return claim, nil
}

// Eligibility reports swap progress and which tiers are claimable or claimed.
type Eligibility struct {
	Swaps    int      `json:"swaps"`
	Eligible []string `json:"eligible"`
	Claimed  []string `json:"claimed"`
}

// EligibleTiers lists the tiers whose thresholds the user's swap count meets,
// alongside already-claimed tiers.
func (r *Registry) EligibleTiers(userID string) (*Eligibility, error) {
	swaps, err := r.store.CountSwapEvents(userID)
	if err != nil {
		return nil, &errors.StorageError{Operation: "count swaps", Err: err}
	}
	claims, err := r.store.ListNftClaims(userID)
	if err != nil {
		return nil, &errors.StorageError{Operation: "list nft claims", Err: err}
	}

	eligibility := &Eligibility{Swaps: swaps, Eligible: []string{}, Claimed: []string{}}
	// Report eligibility lowest tier first.
	for i := len(tierTable) - 1; i >= 0; i-- {
		if swaps >= tierTable[i].SwapThreshold {
			eligibility.Eligible = append(eligibility.Eligible, tierTable[i].Name)
		}
	}
	for _, claim := range claims {
		eligibility.Claimed = append(eligibility.Claimed, claim.Tier)
	}
	return eligibility, nil
}
