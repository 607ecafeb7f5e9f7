package postgres

import (
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lummalabs/lumma-core/internal/store"
)

func setupTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewWithDB(db), mock
}

func userRows(id, code string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "created_at", "wallet_address", "username", "referral_code",
		"referred_by", "points_settled", "points_pending", "risk_flag",
	}).AddRow(id, time.Now().UTC(), "", "", code, "", 0.0, 0.0, "none")
}

func TestGetUser(t *testing.T) {
	s, mock := setupTestStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, created_at, wallet_address, username, referral_code, referred_by, points_settled, points_pending, risk_flag FROM users WHERE id = $1`)).
		WithArgs("alice").
		WillReturnRows(userRows("alice", "LUM-ABC123"))

	user, err := s.GetUser("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.ID)
	assert.Equal(t, "LUM-ABC123", user.ReferralCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserNotFound(t *testing.T) {
	s, mock := setupTestStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE id = $1`)).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetUser("ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetUsernameDuplicate(t *testing.T) {
	s, mock := setupTestStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE users SET username = $2 WHERE id = $1`)).
		WithArgs("alice", "pioneer").
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := s.SetUsername("alice", "pioneer")
	assert.ErrorIs(t, err, store.ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertPointEventAdjustsSettledBalance(t *testing.T) {
	s, mock := setupTestStore(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO point_events`)).
		WithArgs("event-1", "alice", "complete_swap", 20.0, store.PointSettled, "", nil, now, sql.NullTime{}).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET points_settled = points_settled + $2 WHERE id = $1`)).
		WithArgs("alice", 20.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.InsertPointEvent(&store.PointEvent{
		ID: "event-1", UserID: "alice", TaskKey: "complete_swap",
		Points: 20, Status: store.PointSettled, CreatedAt: now,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertReferralRewardDuplicate(t *testing.T) {
	s, mock := setupTestStore(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO referral_rewards`)).
		WithArgs("reward-1", "alice", "bob", "event-1", 2.0, now).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.InsertReferralReward(&store.ReferralReward{
		ID: "reward-1", ReferrerUserID: "alice", SourceUserID: "bob",
		SourceEventID: "event-1", Points: 2, CreatedAt: now,
	})
	assert.ErrorIs(t, err, store.ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertReferralRewardCreditsReferrer(t *testing.T) {
	s, mock := setupTestStore(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO referral_rewards`)).
		WithArgs("reward-1", "alice", "bob", "event-1", 2.0, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET points_settled = points_settled + $2 WHERE id = $1`)).
		WithArgs("alice", 2.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.InsertReferralReward(&store.ReferralReward{
		ID: "reward-1", ReferrerUserID: "alice", SourceUserID: "bob",
		SourceEventID: "event-1", Points: 2, CreatedAt: now,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertNftClaimDuplicate(t *testing.T) {
	s, mock := setupTestStore(t)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO nft_claims`)).
		WillReturnError(&pq.Error{Code: "23505"})

	err := s.InsertNftClaim(&store.NftClaim{ID: "claim-1", UserID: "alice", Tier: "bronze", ClaimedAt: time.Now().UTC()})
	assert.ErrorIs(t, err, store.ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteQuestRunDuplicate(t *testing.T) {
	s, mock := setupTestStore(t)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO quest_runs`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	completedAt := time.Now().UTC()
	err := s.CompleteQuestRun(&store.QuestRun{
		ID: "run-1", QuestID: "arc-orbit", UserID: "alice",
		Status: store.QuestCompleted, CompletedAt: &completedAt, CreatedAt: completedAt,
	})
	assert.ErrorIs(t, err, store.ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSystemFlagDefaultsFalse(t *testing.T) {
	s, mock := setupTestStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM system_flags WHERE key = $1`)).
		WithArgs(store.VaultPauseFlag).
		WillReturnError(sql.ErrNoRows)

	value, err := s.GetSystemFlag(store.VaultPauseFlag)
	require.NoError(t, err)
	assert.False(t, value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCounts(t *testing.T) {
	s, mock := setupTestStore(t)
	mock.ExpectQuery(`SELECT \(SELECT COUNT\(\*\) FROM users\)`).
		WithArgs(store.VaultPauseFlag).
		WillReturnRows(sqlmock.NewRows([]string{"users", "swaps", "events", "flags", "paused"}).
			AddRow(3, 12, 40, 2, true))

	counts, err := s.Counts()
	require.NoError(t, err)
	assert.Equal(t, 3, counts.Users)
	assert.Equal(t, 12, counts.Swaps)
	assert.Equal(t, 40, counts.PointEvents)
	assert.Equal(t, 2, counts.AbuseFlags)
	assert.True(t, counts.Paused)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSumVaultFlows(t *testing.T) {
	s, mock := setupTestStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM vault_events WHERE vault_id = $1`)).
		WithArgs("vault-balanced").
		WillReturnRows(sqlmock.NewRows([]string{"deposits", "withdrawals"}).AddRow(5000.0, 1200.0))

	deposits, withdrawals, err := s.SumVaultFlows("vault-balanced")
	require.NoError(t, err)
	assert.Equal(t, 5000.0, deposits)
	assert.Equal(t, 1200.0, withdrawals)
	assert.NoError(t, mock.ExpectationsWereMet())
}
