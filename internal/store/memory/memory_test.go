package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lummalabs/lumma-core/internal/store"
)

func TestGetOrCreateUserIsIdempotent(t *testing.T) {
	mem := New()
	first, err := mem.GetOrCreateUser("alice", "0xabc")
	require.NoError(t, err)
	second, err := mem.GetOrCreateUser("alice", "")
	require.NoError(t, err)
	assert.Equal(t, first.ReferralCode, second.ReferralCode)
	assert.Equal(t, "0xabc", second.WalletAddress)
}

func TestSettleDuePointEvents(t *testing.T) {
	mem := New()
	_, err := mem.GetOrCreateUser("alice", "")
	require.NoError(t, err)

	now := time.Now().UTC()
	due := now.Add(-time.Minute)
	notDue := now.Add(time.Hour)
	require.NoError(t, mem.InsertPointEvent(&store.PointEvent{
		ID: "due", UserID: "alice", TaskKey: "join_discord",
		Points: 100, Status: store.PointPending, CreatedAt: now.Add(-13 * time.Hour), SettlesAt: &due,
	}))
	require.NoError(t, mem.InsertPointEvent(&store.PointEvent{
		ID: "later", UserID: "alice", TaskKey: "follow_twitter",
		Points: 100, Status: store.PointPending, CreatedAt: now, SettlesAt: &notDue,
	}))

	settled, err := mem.SettleDuePointEvents("alice", now)
	require.NoError(t, err)
	require.Len(t, settled, 1)
	assert.Equal(t, "due", settled[0].ID)

	alice, err := mem.GetUser("alice")
	require.NoError(t, err)
	assert.Equal(t, 100.0, alice.PointsSettled)
	assert.Equal(t, 100.0, alice.PointsPending)

	// Settlement is one-way; a second sweep finds nothing.
	settled, err = mem.SettleDuePointEvents("alice", now)
	require.NoError(t, err)
	assert.Empty(t, settled)
}

func TestInsertReferralRewardDuplicate(t *testing.T) {
	mem := New()
	_, err := mem.GetOrCreateUser("alice", "")
	require.NoError(t, err)

	reward := &store.ReferralReward{
		ID: NewID(), ReferrerUserID: "alice", SourceUserID: "bob",
		SourceEventID: "event-1", Points: 10, CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, mem.InsertReferralReward(reward))

	dup := *reward
	dup.ID = NewID()
	assert.ErrorIs(t, mem.InsertReferralReward(&dup), store.ErrDuplicate)

	alice, err := mem.GetUser("alice")
	require.NoError(t, err)
	assert.Equal(t, 10.0, alice.PointsSettled)
}

func TestCompleteQuestRunDuplicate(t *testing.T) {
	mem := New()
	completedAt := time.Now().UTC()
	run := &store.QuestRun{
		ID: NewID(), QuestID: "arc-orbit", UserID: "alice",
		Status: store.QuestCompleted, CompletedAt: &completedAt, CreatedAt: completedAt,
	}
	require.NoError(t, mem.CompleteQuestRun(run))
	assert.ErrorIs(t, mem.CompleteQuestRun(run), store.ErrDuplicate)
}

func TestInsertNftClaimDuplicate(t *testing.T) {
	mem := New()
	claim := &store.NftClaim{ID: NewID(), UserID: "alice", Tier: "bronze", ClaimedAt: time.Now().UTC()}
	require.NoError(t, mem.InsertNftClaim(claim))

	dup := *claim
	dup.ID = NewID()
	assert.ErrorIs(t, mem.InsertNftClaim(&dup), store.ErrDuplicate)

	other := store.NftClaim{ID: NewID(), UserID: "alice", Tier: "silver", ClaimedAt: time.Now().UTC()}
	assert.NoError(t, mem.InsertNftClaim(&other))
}

func TestInsertReferralLinkDuplicate(t *testing.T) {
	mem := New()
	_, err := mem.GetOrCreateUser("alice", "")
	require.NoError(t, err)
	_, err = mem.GetOrCreateUser("bob", "")
	require.NoError(t, err)

	link := &store.ReferralLink{ID: NewID(), ReferrerUserID: "alice", ReferredUserID: "bob", CreatedAt: time.Now().UTC()}
	require.NoError(t, mem.InsertReferralLink(link))

	again := &store.ReferralLink{ID: NewID(), ReferrerUserID: "carol", ReferredUserID: "bob", CreatedAt: time.Now().UTC()}
	assert.ErrorIs(t, mem.InsertReferralLink(again), store.ErrDuplicate)
}

func TestUpdateVaultPositionRollsBackOnError(t *testing.T) {
	mem := New()
	_, err := mem.UpdateVaultPosition("alice", "vault-balanced", func(pos *store.VaultPosition) error {
		pos.PrincipalUsd = 100
		return nil
	})
	require.NoError(t, err)

	boom := assert.AnError
	_, err = mem.UpdateVaultPosition("alice", "vault-balanced", func(pos *store.VaultPosition) error {
		pos.PrincipalUsd = 9999
		return boom
	})
	require.ErrorIs(t, err, boom)

	pos, err := mem.GetVaultPosition("alice", "vault-balanced")
	require.NoError(t, err)
	assert.Equal(t, 100.0, pos.PrincipalUsd)
}

func TestCounts(t *testing.T) {
	mem := New()
	_, err := mem.GetOrCreateUser("alice", "")
	require.NoError(t, err)
	require.NoError(t, mem.SetSystemFlag(store.VaultPauseFlag, true))

	counts, err := mem.Counts()
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Users)
	assert.True(t, counts.Paused)
}
