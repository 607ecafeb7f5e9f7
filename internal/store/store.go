// Package store defines the persistence contract the ledger components run
// against. Two implementations exist: a durable PostgreSQL store and a
// mutex-guarded in-memory store with identical constraint semantics, so the
// same domain logic runs unchanged on either.
package store

import (
	"errors"
	"time"
)

// VaultPauseFlag is the system flag key consulted by vault mutations.
const VaultPauseFlag = "vault_pause"

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate is returned when an insert violates a uniqueness
	// constraint. Concurrent duplicate attempts rely on this being raised by
	// the storage layer, not just application checks.
	ErrDuplicate = errors.New("store: duplicate")
)

// Store is the repository contract over the ledger entities. Implementations must
// keep each method atomic: a multi-step mutation either fully applies or
// fully fails.
type Store interface {
	// Users.
	GetOrCreateUser(userID, walletAddress string) (*User, error)
	GetUser(userID string) (*User, error)
	GetUserByReferralCode(code string) (*User, error)
	SetUsername(userID, username string) (*User, error)
	SetRiskFlag(userID string, flag RiskFlag) error

	// Point events. InsertPointEvent adjusts the owner's pending or settled
	// balance to match the event status in the same transaction.
	InsertPointEvent(event *PointEvent) error
	// SettleDuePointEvents moves every pending event whose settlesAt has
	// elapsed to settled, shifting its points from pending to settled balance
	// transactionally, and returns the newly settled events.
	SettleDuePointEvents(userID string, now time.Time) ([]PointEvent, error)
	CountPointEventsSince(userID string, since time.Time) (int, error)
	CountPointEventsForKeySince(userID, taskKey string, since time.Time) (int, error)
	LastPointEventForKey(userID, taskKey string) (*PointEvent, error)
	HasSettledPointEvent(userID, taskKey string) (bool, error)
	// CountSocialProofEvents counts the user's non-blocked events whose task
	// key is in taskKeys.
	CountSocialProofEvents(userID string, taskKeys []string) (int, error)

	// Abuse audit trail.
	InsertAbuseFlag(flag *AbuseFlag) error

	// Referrals. InsertReferralLink fails with ErrDuplicate if the referred
	// user is already bound. InsertReferralReward enforces the
	// (referrerUserId, sourceEventId) uniqueness constraint and credits the
	// referrer's settled balance in the same transaction.
	InsertReferralLink(link *ReferralLink) error
	GetReferralLinkByReferred(userID string) (*ReferralLink, error)
	ListReferralLinksByReferrer(userID string) ([]ReferralLink, error)
	EnableReferralRewards(linkID string, at time.Time) error
	InsertReferralReward(reward *ReferralReward) error
	ListReferralRewards(referrerUserID string) ([]ReferralReward, error)

	// Vault positions. UpdateVaultPosition runs fn under per-(user, vault)
	// serialization; fn mutates the position in place and the result is
	// persisted atomically.
	GetVaultPosition(userID, vaultID string) (*VaultPosition, error)
	ListVaultPositions(userID string) ([]VaultPosition, error)
	UpdateVaultPosition(userID, vaultID string, fn func(pos *VaultPosition) error) (*VaultPosition, error)
	InsertVaultEvent(event *VaultEvent) error
	CountVaultEvents(userID string, action VaultAction) (int, error)
	SumVaultFlows(vaultID string) (deposits, withdrawals float64, err error)
	// HasLedgerActivity reports whether the user has at least one vault or
	// swap event, the organic-activity gate for referral activation.
	HasLedgerActivity(userID string) (bool, error)

	// Swaps.
	InsertSwapEvent(event *SwapEvent) error
	CountSwapEvents(userID string) (int, error)
	ListSwapEvents(userID string) ([]SwapEvent, error)

	// Quest runs. CompleteQuestRun is guarded by the (questId, userId)
	// uniqueness constraint; completing an already-completed run returns
	// ErrDuplicate.
	GetQuestRun(userID, questID string) (*QuestRun, error)
	CompleteQuestRun(run *QuestRun) error

	// NFT claims, unique per (userId, tier).
	InsertNftClaim(claim *NftClaim) error
	ListNftClaims(userID string) ([]NftClaim, error)

	// Leaderboard.
	LeaderboardTotals(since time.Time) ([]LeaderboardTotal, error)
	InsertLeaderboardSnapshot(snapshot *LeaderboardSnapshot) error

	// System flags and counters.
	GetSystemFlag(key string) (bool, error)
	SetSystemFlag(key string, value bool) error
	Counts() (*SystemCounts, error)

	Close() error
}
