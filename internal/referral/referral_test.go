package referral

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lummalabs/lumma-core/internal/errors"
	"github.com/lummalabs/lumma-core/internal/store"
	"github.com/lummalabs/lumma-core/internal/store/memory"
)

func newTestGraph() (*Graph, *memory.Store) {
	mem := memory.New()
	return NewGraph(mem), mem
}

func bindReferral(t *testing.T, graph *Graph, mem *memory.Store, referrerID, referredID string) *store.ReferralLink {
	t.Helper()
	referrer, err := mem.GetOrCreateUser(referrerID, "")
	require.NoError(t, err)
	link, err := graph.ApplyCode(referredID, referrer.ReferralCode)
	require.NoError(t, err)
	return link
}

func TestApplyCodeBindsOnce(t *testing.T) {
	graph, mem := newTestGraph()
	link := bindReferral(t, graph, mem, "alice", "bob")
	assert.Equal(t, "alice", link.ReferrerUserID)
	assert.Equal(t, "bob", link.ReferredUserID)
	assert.Nil(t, link.RewardsEnabledAt)

	bob, err := mem.GetUser("bob")
	require.NoError(t, err)
	assert.Equal(t, "alice", bob.ReferredBy)

	// Rebinding to anyone, including the same referrer, is rejected.
	carol, err := mem.GetOrCreateUser("carol", "")
	require.NoError(t, err)
	_, err = graph.ApplyCode("bob", carol.ReferralCode)
	var conflict *errors.ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestApplyCodeRejectsSelfReferral(t *testing.T) {
	graph, mem := newTestGraph()
	alice, err := mem.GetOrCreateUser("alice", "")
	require.NoError(t, err)

	_, err = graph.ApplyCode("alice", alice.ReferralCode)
	var conflict *errors.ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestApplyCodeUnknownCode(t *testing.T) {
	graph, _ := newTestGraph()
	_, err := graph.ApplyCode("bob", "LUM-ZZZZZZ")
	var notFound *errors.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestEnableRewardsRequiresActivity(t *testing.T) {
	graph, mem := newTestGraph()
	bindReferral(t, graph, mem, "alice", "bob")

	// No vault or swap activity yet: the gate stays shut.
	require.NoError(t, graph.EnableRewardsForUser("bob"))
	link, err := mem.GetReferralLinkByReferred("bob")
	require.NoError(t, err)
	assert.Nil(t, link.RewardsEnabledAt)

	require.NoError(t, mem.InsertSwapEvent(&store.SwapEvent{
		ID: "swap-1", UserID: "bob", FromAsset: "USDC", ToAsset: "EURC",
		Amount: 100, Rate: 1, OutAmount: 100, CreatedAt: time.Now().UTC(),
	}))
	require.NoError(t, graph.EnableRewardsForUser("bob"))
	link, err = mem.GetReferralLinkByReferred("bob")
	require.NoError(t, err)
	assert.NotNil(t, link.RewardsEnabledAt)
}

func TestPropagateRewardOncePerSourceEvent(t *testing.T) {
	graph, mem := newTestGraph()
	link := bindReferral(t, graph, mem, "alice", "bob")
	require.NoError(t, mem.EnableReferralRewards(link.ID, time.Now().UTC()))

	require.NoError(t, graph.PropagateReward("bob", "event-1", 200))
	require.NoError(t, graph.PropagateReward("bob", "event-1", 200))

	rewards, err := mem.ListReferralRewards("alice")
	require.NoError(t, err)
	require.Len(t, rewards, 1)
	assert.Equal(t, 20.0, rewards[0].Points)

	alice, err := mem.GetUser("alice")
	require.NoError(t, err)
	assert.Equal(t, 20.0, alice.PointsSettled)
}

func TestPropagateRewardSkipsInactiveLink(t *testing.T) {
	graph, mem := newTestGraph()
	bindReferral(t, graph, mem, "alice", "bob")

	require.NoError(t, graph.PropagateReward("bob", "event-1", 200))
	rewards, err := mem.ListReferralRewards("alice")
	require.NoError(t, err)
	assert.Empty(t, rewards)
}

func TestPropagateRewardWithoutLinkIsNoop(t *testing.T) {
	graph, mem := newTestGraph()
	_, err := mem.GetOrCreateUser("loner", "")
	require.NoError(t, err)
	assert.NoError(t, graph.PropagateReward("loner", "event-1", 100))
}

func TestStatsFor(t *testing.T) {
	graph, mem := newTestGraph()
	linkBob := bindReferral(t, graph, mem, "alice", "bob")
	bindReferral(t, graph, mem, "alice", "carol")
	require.NoError(t, mem.EnableReferralRewards(linkBob.ID, time.Now().UTC()))
	require.NoError(t, graph.PropagateReward("bob", "event-1", 200))
	require.NoError(t, graph.PropagateReward("bob", "event-2", 100))

	stats, err := graph.StatsFor("alice")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalInvites)
	assert.Equal(t, 1, stats.ActiveInvites)
	assert.Equal(t, 30.0, stats.RewardsEarned)
	assert.Len(t, stats.Rewards, 2)
	assert.NotEmpty(t, stats.ReferralCode)

	count, err := graph.ActiveInviteCount("alice")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
