// Package memory implements store.Store with process-local state. It mirrors
// the durable store's field names and constraint semantics (duplicate guards
// included) so components can swap between the two without behavior drift.
package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lummalabs/lumma-core/internal/store"
)

type Store struct {
	mu sync.RWMutex

	users        map[string]*store.User
	usedCodes    map[string]string
	usernames    map[string]string
	pointEvents  []*store.PointEvent
	abuseFlags   []*store.AbuseFlag
	links        []*store.ReferralLink
	rewards      []*store.ReferralReward
	rewardKeys   map[string]struct{}
	positions    map[string]*store.VaultPosition
	vaultEvents  []*store.VaultEvent
	swapEvents   []*store.SwapEvent
	questRuns    map[string]*store.QuestRun
	nftClaims    []*store.NftClaim
	nftClaimKeys map[string]struct{}
	snapshots    []*store.LeaderboardSnapshot
	flags        map[string]bool
}

func New() *Store {
	return &Store{
		users:        make(map[string]*store.User),
		usedCodes:    make(map[string]string),
		usernames:    make(map[string]string),
		rewardKeys:   make(map[string]struct{}),
		positions:    make(map[string]*store.VaultPosition),
		questRuns:    make(map[string]*store.QuestRun),
		nftClaimKeys: make(map[string]struct{}),
		flags:        make(map[string]bool),
	}
}

func posKey(userID, vaultID string) string    { return userID + "|" + vaultID }
func runKey(userID, questID string) string    { return questID + "|" + userID }
func rewardKey(referrer, event string) string { return referrer + "|" + event }

func (s *Store) GetOrCreateUser(userID, walletAddress string) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user, ok := s.users[userID]; ok {
		if walletAddress != "" && user.WalletAddress == "" {
			user.WalletAddress = walletAddress
		}
		return copyUser(user), nil
	}
	code := ""
	for _, candidate := range store.ReferralCodeCandidates(userID) {
		if _, taken := s.usedCodes[candidate]; !taken {
			code = candidate
			break
		}
	}
	if code == "" {
		return nil, store.ErrDuplicate
	}
	user := &store.User{
		ID:            userID,
		CreatedAt:     time.Now().UTC(),
		WalletAddress: walletAddress,
		ReferralCode:  code,
		RiskFlag:      store.RiskNone,
	}
	s.users[userID] = user
	s.usedCodes[code] = userID
	return copyUser(user), nil
}

func (s *Store) GetUser(userID string) (*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyUser(user), nil
}

func (s *Store) GetUserByReferralCode(code string) (*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.usedCodes[code]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyUser(s.users[userID]), nil
}

func (s *Store) SetUsername(userID, username string) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if owner, taken := s.usernames[username]; taken && owner != userID {
		return nil, store.ErrDuplicate
	}
	if user.Username != "" {
		delete(s.usernames, user.Username)
	}
	user.Username = username
	s.usernames[username] = userID
	return copyUser(user), nil
}

func (s *Store) SetRiskFlag(userID string, flag store.RiskFlag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	user.RiskFlag = flag
	return nil
}

func (s *Store) InsertPointEvent(event *store.PointEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[event.UserID]
	if !ok {
		return store.ErrNotFound
	}
	stored := copyEvent(event)
	s.pointEvents = append(s.pointEvents, stored)
	switch event.Status {
	case store.PointPending:
		user.PointsPending += event.Points
	case store.PointSettled:
		user.PointsSettled += event.Points
	}
	return nil
}

func (s *Store) SettleDuePointEvents(userID string, now time.Time) ([]store.PointEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	var settled []store.PointEvent
	for _, event := range s.pointEvents {
		if event.UserID != userID || event.Status != store.PointPending || event.SettlesAt == nil {
			continue
		}
		if event.SettlesAt.After(now) {
			continue
		}
		event.Status = store.PointSettled
		user.PointsPending = max0(user.PointsPending - event.Points)
		user.PointsSettled += event.Points
		settled = append(settled, *copyEvent(event))
	}
	return settled, nil
}

func (s *Store) CountPointEventsSince(userID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, event := range s.pointEvents {
		if event.UserID == userID && !event.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *Store) CountPointEventsForKeySince(userID, taskKey string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, event := range s.pointEvents {
		if event.UserID == userID && event.TaskKey == taskKey && !event.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *Store) LastPointEventForKey(userID, taskKey string) (*store.PointEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *store.PointEvent
	for _, event := range s.pointEvents {
		if event.UserID != userID || event.TaskKey != taskKey {
			continue
		}
		if latest == nil || event.CreatedAt.After(latest.CreatedAt) {
			latest = event
		}
	}
	if latest == nil {
		return nil, store.ErrNotFound
	}
	return copyEvent(latest), nil
}

func (s *Store) HasSettledPointEvent(userID, taskKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, event := range s.pointEvents {
		if event.UserID == userID && event.TaskKey == taskKey && event.Status == store.PointSettled {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) CountSocialProofEvents(userID string, taskKeys []string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make(map[string]struct{}, len(taskKeys))
	for _, key := range taskKeys {
		keys[key] = struct{}{}
	}
	count := 0
	for _, event := range s.pointEvents {
		if event.UserID != userID || event.Status == store.PointBlocked {
			continue
		}
		if _, ok := keys[event.TaskKey]; ok {
			count++
		}
	}
	return count, nil
}

func (s *Store) InsertAbuseFlag(flag *store.AbuseFlag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *flag
	s.abuseFlags = append(s.abuseFlags, &stored)
	return nil
}

func (s *Store) InsertReferralLink(link *store.ReferralLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.links {
		if existing.ReferredUserID == link.ReferredUserID {
			return store.ErrDuplicate
		}
	}
	referred, ok := s.users[link.ReferredUserID]
	if !ok {
		return store.ErrNotFound
	}
	referred.ReferredBy = link.ReferrerUserID
	stored := *link
	s.links = append(s.links, &stored)
	return nil
}

func (s *Store) GetReferralLinkByReferred(userID string) (*store.ReferralLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, link := range s.links {
		if link.ReferredUserID == userID {
			return copyLink(link), nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListReferralLinksByReferrer(userID string) ([]store.ReferralLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var links []store.ReferralLink
	for _, link := range s.links {
		if link.ReferrerUserID == userID {
			links = append(links, *copyLink(link))
		}
	}
	return links, nil
}

func (s *Store) EnableReferralRewards(linkID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, link := range s.links {
		if link.ID == linkID {
			if link.RewardsEnabledAt == nil {
				enabled := at
				link.RewardsEnabledAt = &enabled
			}
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) InsertReferralReward(reward *store.ReferralReward) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := rewardKey(reward.ReferrerUserID, reward.SourceEventID)
	if _, exists := s.rewardKeys[key]; exists {
		return store.ErrDuplicate
	}
	referrer, ok := s.users[reward.ReferrerUserID]
	if !ok {
		return store.ErrNotFound
	}
	stored := *reward
	s.rewards = append(s.rewards, &stored)
	s.rewardKeys[key] = struct{}{}
	referrer.PointsSettled += reward.Points
	return nil
}

func (s *Store) ListReferralRewards(referrerUserID string) ([]store.ReferralReward, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rewards []store.ReferralReward
	for _, reward := range s.rewards {
		if reward.ReferrerUserID == referrerUserID {
			rewards = append(rewards, *reward)
		}
	}
	return rewards, nil
}

func (s *Store) GetVaultPosition(userID, vaultID string) (*store.VaultPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.positions[posKey(userID, vaultID)]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *pos
	return &copied, nil
}

func (s *Store) ListVaultPositions(userID string) ([]store.VaultPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var positions []store.VaultPosition
	for _, pos := range s.positions {
		if pos.UserID == userID {
			positions = append(positions, *pos)
		}
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].VaultID < positions[j].VaultID })
	return positions, nil
}

func (s *Store) UpdateVaultPosition(userID, vaultID string, fn func(pos *store.VaultPosition) error) (*store.VaultPosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := posKey(userID, vaultID)
	pos, ok := s.positions[key]
	if !ok {
		pos = &store.VaultPosition{UserID: userID, VaultID: vaultID}
	}
	working := *pos
	if err := fn(&working); err != nil {
		return nil, err
	}
	s.positions[key] = &working
	copied := working
	return &copied, nil
}

func (s *Store) InsertVaultEvent(event *store.VaultEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *event
	s.vaultEvents = append(s.vaultEvents, &stored)
	return nil
}

func (s *Store) CountVaultEvents(userID string, action store.VaultAction) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, event := range s.vaultEvents {
		if event.UserID == userID && event.Action == action {
			count++
		}
	}
	return count, nil
}

func (s *Store) SumVaultFlows(vaultID string) (float64, float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var deposits, withdrawals float64
	for _, event := range s.vaultEvents {
		if event.VaultID != vaultID {
			continue
		}
		if event.Action == store.VaultDeposit {
			deposits += event.Amount
		} else {
			withdrawals += event.Amount
		}
	}
	return deposits, withdrawals, nil
}

func (s *Store) HasLedgerActivity(userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, event := range s.vaultEvents {
		if event.UserID == userID {
			return true, nil
		}
	}
	for _, event := range s.swapEvents {
		if event.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) InsertSwapEvent(event *store.SwapEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *event
	s.swapEvents = append(s.swapEvents, &stored)
	return nil
}

func (s *Store) CountSwapEvents(userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, event := range s.swapEvents {
		if event.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (s *Store) ListSwapEvents(userID string) ([]store.SwapEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var events []store.SwapEvent
	for _, event := range s.swapEvents {
		if event.UserID == userID {
			events = append(events, *event)
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].CreatedAt.After(events[j].CreatedAt) })
	return events, nil
}

func (s *Store) GetQuestRun(userID, questID string) (*store.QuestRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.questRuns[runKey(userID, questID)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyRun(run), nil
}

func (s *Store) CompleteQuestRun(run *store.QuestRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := runKey(run.UserID, run.QuestID)
	if existing, ok := s.questRuns[key]; ok && existing.Status == store.QuestCompleted {
		return store.ErrDuplicate
	}
	s.questRuns[key] = copyRun(run)
	return nil
}

func (s *Store) InsertNftClaim(claim *store.NftClaim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := claim.UserID + "|" + claim.Tier
	if _, exists := s.nftClaimKeys[key]; exists {
		return store.ErrDuplicate
	}
	stored := *claim
	s.nftClaims = append(s.nftClaims, &stored)
	s.nftClaimKeys[key] = struct{}{}
	return nil
}

func (s *Store) ListNftClaims(userID string) ([]store.NftClaim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var claims []store.NftClaim
	for _, claim := range s.nftClaims {
		if claim.UserID == userID {
			claims = append(claims, *claim)
		}
	}
	return claims, nil
}

func (s *Store) LeaderboardTotals(since time.Time) ([]store.LeaderboardTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	totals := make(map[string]float64)
	for _, event := range s.pointEvents {
		if event.Status != store.PointSettled || event.CreatedAt.Before(since) {
			continue
		}
		totals[event.UserID] += event.Points
	}
	for _, reward := range s.rewards {
		if reward.CreatedAt.Before(since) {
			continue
		}
		totals[reward.ReferrerUserID] += reward.Points
	}
	result := make([]store.LeaderboardTotal, 0, len(totals))
	for userID, points := range totals {
		result = append(result, store.LeaderboardTotal{UserID: userID, Points: points})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UserID < result[j].UserID })
	return result, nil
}

func (s *Store) InsertLeaderboardSnapshot(snapshot *store.LeaderboardSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *snapshot
	stored.Rows = append([]store.LeaderboardRow(nil), snapshot.Rows...)
	s.snapshots = append(s.snapshots, &stored)
	return nil
}

// Snapshots returns the persisted leaderboard audit trail, newest last.
func (s *Store) Snapshots() []store.LeaderboardSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshots := make([]store.LeaderboardSnapshot, 0, len(s.snapshots))
	for _, snapshot := range s.snapshots {
		snapshots = append(snapshots, *snapshot)
	}
	return snapshots
}

func (s *Store) GetSystemFlag(key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags[key], nil
}

func (s *Store) SetSystemFlag(key string, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags[key] = value
	return nil
}

func (s *Store) Counts() (*store.SystemCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &store.SystemCounts{
		Users:       len(s.users),
		Swaps:       len(s.swapEvents),
		PointEvents: len(s.pointEvents),
		AbuseFlags:  len(s.abuseFlags),
		Paused:      s.flags[store.VaultPauseFlag],
	}, nil
}

func (s *Store) Close() error {
	return nil
}

// NewID returns a fresh entity id.
func NewID() string {
	return uuid.NewString()
}

func max0(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func copyUser(user *store.User) *store.User {
	copied := *user
	return &copied
}

func copyEvent(event *store.PointEvent) *store.PointEvent {
	copied := *event
	if event.Metadata != nil {
		copied.Metadata = make(map[string]interface{}, len(event.Metadata))
		for k, v := range event.Metadata {
			copied.Metadata[k] = v
		}
	}
	if event.SettlesAt != nil {
		at := *event.SettlesAt
		copied.SettlesAt = &at
	}
	return &copied
}

func copyLink(link *store.ReferralLink) *store.ReferralLink {
	copied := *link
	if link.RewardsEnabledAt != nil {
		at := *link.RewardsEnabledAt
		copied.RewardsEnabledAt = &at
	}
	return &copied
}

func copyRun(run *store.QuestRun) *store.QuestRun {
	copied := *run
	if run.Progress != nil {
		copied.Progress = make(map[string]int, len(run.Progress))
		for k, v := range run.Progress {
			copied.Progress[k] = v
		}
	}
	if run.CompletedAt != nil {
		at := *run.CompletedAt
		copied.CompletedAt = &at
	}
	return &copied
}

var _ store.Store = (*Store)(nil)
