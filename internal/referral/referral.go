// Package referral manages the referred-to-referrer graph: code binding,
// the organic-activity activation gate, and once-per-source-event reward
// propagation.
package referral

import (
	stderrors "errors"
	"time"

	"github.com/google/uuid"

	"github.com/lummalabs/lumma-core/internal/errors"
	"github.com/lummalabs/lumma-core/internal/mathx"
	"github.com/lummalabs/lumma-core/internal/store"
	"github.com/lummalabs/lumma-core/pkg/logger"
)

// RewardShare is the fraction of a settled source event credited to the
// referrer.
const RewardShare = 0.10

type Graph struct {
	store store.Store
	now   func() time.Time
}

func NewGraph(s store.Store) *Graph {
	return &Graph{store: s, now: time.Now}
}

// WithClock overrides the graph's clock; tests use this.
func (g *Graph) WithClock(now func() time.Time) *Graph {
	g.now = now
	return g
}

// ApplyCode binds userID as referred by the owner of code. The binding is
// at-most-once forever: a user with referredBy set can never rebind.
func (g *Graph) ApplyCode(userID, code string) (*store.ReferralLink, error) {
	user, err := g.store.GetOrCreateUser(userID, "")
	if err != nil {
		return nil, &errors.StorageError{Operation: "load user", Err: err}
	}
	if user.ReferredBy != "" {
		return nil, &errors.ConflictError{Message: "referral already bound"}
	}
	referrer, err := g.store.GetUserByReferralCode(code)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return nil, &errors.NotFoundError{Resource: "referral code", Identifier: code}
		}
		return nil, &errors.StorageError{Operation: "look up referral code", Err: err}
	}
	if referrer.ID == userID {
		return nil, &errors.ConflictError{Message: "self-referrals are not allowed"}
	}

	link := &store.ReferralLink{
		ID:             uuid.NewString(),
		ReferrerUserID: referrer.ID,
		ReferredUserID: userID,
		CreatedAt:      g.now().UTC(),
	}
	if err := g.store.InsertReferralLink(link); err != nil {
		if stderrors.Is(err, store.ErrDuplicate) {
			return nil, &errors.ConflictError{Message: "referral already bound"}
		}
		return nil, &errors.StorageError{Operation: "insert referral link", Err: err}
	}
	logger.Info("Referral bound: %s referred by %s", userID, referrer.ID)
	return link, nil
}

// EnableRewardsForUser activates the referral link where userID is the
// referred party, once the user has performed at least one vault or swap
// action. No-op if there is no link, the link is already enabled, or the
// user has no ledger activity yet.
func (g *Graph) EnableRewardsForUser(userID string) error {
	link, err := g.store.GetReferralLinkByReferred(userID)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return nil
		}
		return &errors.StorageError{Operation: "load referral link", Err: err}
	}
	if link.RewardsEnabledAt != nil {
		return nil
	}
	active, err := g.store.HasLedgerActivity(userID)
	if err != nil {
		return &errors.StorageError{Operation: "check ledger activity", Err: err}
	}
	if !active {
		return nil
	}
	if err := g.store.EnableReferralRewards(link.ID, g.now().UTC()); err != nil {
		return &errors.StorageError{Operation: "enable referral rewards", Err: err}
	}
	logger.Info("Referral rewards enabled for referred user %s", userID)
	return nil
}

// PropagateReward credits the referrer of sourceUserID with a share of a
// newly settled event. A given source event funds at most one reward, ever:
// the storage layer rejects duplicate (referrer, sourceEvent) inserts, and a
// duplicate attempt is silently a no-op.
func (g *Graph) PropagateReward(sourceUserID, sourceEventID string, sourcePoints float64) error {
	link, err := g.store.GetReferralLinkByReferred(sourceUserID)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return nil
		}
		return &errors.StorageError{Operation: "load referral link", Err: err}
	}
	if link.RewardsEnabledAt == nil {
		return nil
	}

	reward := &store.ReferralReward{
		ID:             uuid.NewString(),
		ReferrerUserID: link.ReferrerUserID,
		SourceUserID:   sourceUserID,
		SourceEventID:  sourceEventID,
		Points:         mathx.Round2(sourcePoints * RewardShare),
		CreatedAt:      g.now().UTC(),
	}
	if err := g.store.InsertReferralReward(reward); err != nil {
		if stderrors.Is(err, store.ErrDuplicate) {
			return nil
		}
		return &errors.StorageError{Operation: "insert referral reward", Err: err}
	}
	return nil
}

// Stats summarizes a referrer's invites and earnings.
type Stats struct {
	ReferralCode  string                 `json:"referralCode"`
	TotalInvites  int                    `json:"totalInvites"`
	ActiveInvites int                    `json:"activeInvites"`
	RewardsEarned float64                `json:"rewardsEarned"`
	Rewards       []store.ReferralReward `json:"rewards"`
}

// StatsFor reports the referral stats for userID as a referrer.
func (g *Graph) StatsFor(userID string) (*Stats, error) {
	user, err := g.store.GetOrCreateUser(userID, "")
	if err != nil {
		return nil, &errors.StorageError{Operation: "load user", Err: err}
	}
	links, err := g.store.ListReferralLinksByReferrer(userID)
	if err != nil {
		return nil, &errors.StorageError{Operation: "list referral links", Err: err}
	}
	rewards, err := g.store.ListReferralRewards(userID)
	if err != nil {
		return nil, &errors.StorageError{Operation: "list referral rewards", Err: err}
	}

	stats := &Stats{
		ReferralCode: user.ReferralCode,
		TotalInvites: len(links),
		Rewards:      rewards,
	}
	for _, link := range links {
		if link.RewardsEnabledAt != nil {
			stats.ActiveInvites++
		}
	}
	total := 0.0
	for _, reward := range rewards {
		total += reward.Points
	}
	stats.RewardsEarned = mathx.Round2(total)
	return stats, nil
}

// ActiveInviteCount counts the referrer's activated links; the quest engine
// uses this for invite requirements.
func (g *Graph) ActiveInviteCount(userID string) (int, error) {
	links, err := g.store.ListReferralLinksByReferrer(userID)
	if err != nil {
		return 0, &errors.StorageError{Operation: "list referral links", Err: err}
	}
	count := 0
	for _, link := range links {
		if link.RewardsEnabledAt != nil {
			count++
		}
	}
	return count, nil
}
