// Package postgres implements store.Store on PostgreSQL. Uniqueness rules are
// enforced by database constraints so concurrent duplicate attempts surface as
// store.ErrDuplicate, and multi-step mutations run inside a transaction.
package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/lib/pq"

	"github.com/lummalabs/lumma-core/internal/store"
	"github.com/lummalabs/lumma-core/pkg/logger"
)

type Store struct {
	db *sql.DB
}

// Open connects, pings and migrates the database.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection without running migrations. Tests use
// this with sqlmock.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func runMigrations(db *sql.DB) error {
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("create postgres driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://migrations", "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("Database migrations completed successfully")
	return nil
}

func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == "23505"
}

const userColumns = `id, created_at, wallet_address, username, referral_code, referred_by, points_settled, points_pending, risk_flag`

func scanUser(row interface{ Scan(...interface{}) error }) (*store.User, error) {
	var user store.User
	err := row.Scan(&user.ID, &user.CreatedAt, &user.WalletAddress, &user.Username,
		&user.ReferralCode, &user.ReferredBy, &user.PointsSettled, &user.PointsPending, &user.RiskFlag)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) GetOrCreateUser(userID, walletAddress string) (*store.User, error) {
	user, err := s.GetUser(userID)
	if err == nil {
		if walletAddress != "" && user.WalletAddress == "" {
			err = s.db.QueryRow(`
				UPDATE users SET wallet_address = $2 WHERE id = $1
				RETURNING `+userColumns, userID, walletAddress).
				Scan(&user.ID, &user.CreatedAt, &user.WalletAddress, &user.Username,
					&user.ReferralCode, &user.ReferredBy, &user.PointsSettled, &user.PointsPending, &user.RiskFlag)
			if err != nil {
				return nil, fmt.Errorf("attach wallet address: %w", err)
			}
		}
		return user, nil
	}
	if err != store.ErrNotFound {
		return nil, err
	}

	for _, code := range store.ReferralCodeCandidates(userID) {
		created, err := scanUser(s.db.QueryRow(`
			INSERT INTO users (id, created_at, wallet_address, referral_code, risk_flag)
			VALUES ($1, now(), $2, $3, 'none')
			RETURNING `+userColumns, userID, walletAddress, code))
		if err == nil {
			return created, nil
		}
		if isUniqueViolation(err) {
			// A concurrent request may have created the row; a taken
			// referral code just advances to the next candidate.
			if existing, gerr := s.GetUser(userID); gerr == nil {
				return existing, nil
			}
			continue
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return nil, store.ErrDuplicate
}

func (s *Store) GetUser(userID string) (*store.User, error) {
	user, err := scanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (s *Store) GetUserByReferralCode(code string) (*store.User, error) {
	user, err := scanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE referral_code = $1`, code))
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by referral code: %w", err)
	}
	return user, nil
}

func (s *Store) SetUsername(userID, username string) (*store.User, error) {
	user, err := scanUser(s.db.QueryRow(`
		UPDATE users SET username = $2 WHERE id = $1
		RETURNING `+userColumns, userID, username))
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if isUniqueViolation(err) {
		return nil, store.ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("set username: %w", err)
	}
	return user, nil
}

func (s *Store) SetRiskFlag(userID string, flag store.RiskFlag) error {
	result, err := s.db.Exec(`UPDATE users SET risk_flag = $2 WHERE id = $1`, userID, flag)
	if err != nil {
		return fmt.Errorf("set risk flag: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set risk flag: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) InsertPointEvent(event *store.PointEvent) error {
	metadata, err := marshalJSON(event.Metadata)
	if err != nil {
		return err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO point_events (id, user_id, task_key, points, status, reason, metadata, created_at, settles_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		event.ID, event.UserID, event.TaskKey, event.Points, event.Status,
		event.Reason, metadata, event.CreatedAt, nullableTime(event.SettlesAt))
	if err != nil {
		return fmt.Errorf("insert point event: %w", err)
	}

	var column string
	switch event.Status {
	case store.PointPending:
		column = "points_pending"
	case store.PointSettled:
		column = "points_settled"
	}
	if column != "" {
		result, err := tx.Exec(`UPDATE users SET `+column+` = `+column+` + $2 WHERE id = $1`, event.UserID, event.Points)
		if err != nil {
			return fmt.Errorf("adjust balance: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("adjust balance: %w", err)
		}
		if affected == 0 {
			return store.ErrNotFound
		}
	}
	return tx.Commit()
}

func (s *Store) SettleDuePointEvents(userID string, now time.Time) ([]store.PointEvent, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(`
		SELECT id, user_id, task_key, points, status, reason, metadata, created_at, settles_at
		FROM point_events
		WHERE user_id = $1 AND status = 'pending' AND settles_at IS NOT NULL AND settles_at <= $2
		ORDER BY created_at
		FOR UPDATE`, userID, now)
	if err != nil {
		return nil, fmt.Errorf("select due events: %w", err)
	}
	due, err := collectPointEvents(rows)
	if err != nil {
		return nil, err
	}
	if len(due) == 0 {
		return nil, tx.Commit()
	}

	var settled []store.PointEvent
	for _, event := range due {
		if _, err := tx.Exec(`UPDATE point_events SET status = 'settled' WHERE id = $1`, event.ID); err != nil {
			return nil, fmt.Errorf("settle event: %w", err)
		}
		_, err := tx.Exec(`
			UPDATE users
			SET points_pending = GREATEST(points_pending - $2, 0),
			    points_settled = points_settled + $2
			WHERE id = $1`, userID, event.Points)
		if err != nil {
			return nil, fmt.Errorf("shift balance: %w", err)
		}
		event.Status = store.PointSettled
		settled = append(settled, event)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit settlement: %w", err)
	}
	return settled, nil
}

func (s *Store) CountPointEventsSince(userID string, since time.Time) (int, error) {
	return s.countRow(`SELECT COUNT(*) FROM point_events WHERE user_id = $1 AND created_at >= $2`, userID, since)
}

func (s *Store) CountPointEventsForKeySince(userID, taskKey string, since time.Time) (int, error) {
	return s.countRow(`SELECT COUNT(*) FROM point_events WHERE user_id = $1 AND task_key = $2 AND created_at >= $3`,
		userID, taskKey, since)
}

func (s *Store) LastPointEventForKey(userID, taskKey string) (*store.PointEvent, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, task_key, points, status, reason, metadata, created_at, settles_at
		FROM point_events
		WHERE user_id = $1 AND task_key = $2
		ORDER BY created_at DESC
		LIMIT 1`, userID, taskKey)
	if err != nil {
		return nil, fmt.Errorf("get last point event: %w", err)
	}
	events, err := collectPointEvents(rows)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, store.ErrNotFound
	}
	return &events[0], nil
}

func (s *Store) HasSettledPointEvent(userID, taskKey string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS (SELECT 1 FROM point_events WHERE user_id = $1 AND task_key = $2 AND status = 'settled')`,
		userID, taskKey).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check settled event: %w", err)
	}
	return exists, nil
}

func (s *Store) CountSocialProofEvents(userID string, taskKeys []string) (int, error) {
	return s.countRow(`
		SELECT COUNT(*) FROM point_events
		WHERE user_id = $1 AND status <> 'blocked' AND task_key = ANY($2)`,
		userID, pq.Array(taskKeys))
}

func (s *Store) InsertAbuseFlag(flag *store.AbuseFlag) error {
	_, err := s.db.Exec(`
		INSERT INTO abuse_flags (id, user_id, signal, score, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		flag.ID, flag.UserID, flag.Signal, flag.Score, flag.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert abuse flag: %w", err)
	}
	return nil
}

func (s *Store) InsertReferralLink(link *store.ReferralLink) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO referrals (id, referrer_user_id, referred_user_id, created_at)
		VALUES ($1, $2, $3, $4)`,
		link.ID, link.ReferrerUserID, link.ReferredUserID, link.CreatedAt)
	if isUniqueViolation(err) {
		return store.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert referral link: %w", err)
	}

	result, err := tx.Exec(`UPDATE users SET referred_by = $2 WHERE id = $1`, link.ReferredUserID, link.ReferrerUserID)
	if err != nil {
		return fmt.Errorf("mark referred user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark referred user: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return tx.Commit()
}

func (s *Store) GetReferralLinkByReferred(userID string) (*store.ReferralLink, error) {
	var link store.ReferralLink
	var enabledAt sql.NullTime
	err := s.db.QueryRow(`
		SELECT id, referrer_user_id, referred_user_id, created_at, rewards_enabled_at
		FROM referrals WHERE referred_user_id = $1`, userID).
		Scan(&link.ID, &link.ReferrerUserID, &link.ReferredUserID, &link.CreatedAt, &enabledAt)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get referral link: %w", err)
	}
	if enabledAt.Valid {
		link.RewardsEnabledAt = &enabledAt.Time
	}
	return &link, nil
}

func (s *Store) ListReferralLinksByReferrer(userID string) ([]store.ReferralLink, error) {
	rows, err := s.db.Query(`
		SELECT id, referrer_user_id, referred_user_id, created_at, rewards_enabled_at
		FROM referrals WHERE referrer_user_id = $1
		ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list referral links: %w", err)
	}
	defer rows.Close()

	var links []store.ReferralLink
	for rows.Next() {
		var link store.ReferralLink
		var enabledAt sql.NullTime
		if err := rows.Scan(&link.ID, &link.ReferrerUserID, &link.ReferredUserID, &link.CreatedAt, &enabledAt); err != nil {
			return nil, fmt.Errorf("scan referral link: %w", err)
		}
		if enabledAt.Valid {
			link.RewardsEnabledAt = &enabledAt.Time
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

func (s *Store) EnableReferralRewards(linkID string, at time.Time) error {
	result, err := s.db.Exec(`
		UPDATE referrals SET rewards_enabled_at = COALESCE(rewards_enabled_at, $2)
		WHERE id = $1`, linkID, at)
	if err != nil {
		return fmt.Errorf("enable referral rewards: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("enable referral rewards: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) InsertReferralReward(reward *store.ReferralReward) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		INSERT INTO referral_rewards (id, referrer_user_id, source_user_id, source_event_id, points, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (referrer_user_id, source_event_id) DO NOTHING`,
		reward.ID, reward.ReferrerUserID, reward.SourceUserID, reward.SourceEventID, reward.Points, reward.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert referral reward: %w", err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert referral reward: %w", err)
	}
	if inserted == 0 {
		return store.ErrDuplicate
	}

	result, err = tx.Exec(`UPDATE users SET points_settled = points_settled + $2 WHERE id = $1`,
		reward.ReferrerUserID, reward.Points)
	if err != nil {
		return fmt.Errorf("credit referrer: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("credit referrer: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return tx.Commit()
}

func (s *Store) ListReferralRewards(referrerUserID string) ([]store.ReferralReward, error) {
	rows, err := s.db.Query(`
		SELECT id, referrer_user_id, source_user_id, source_event_id, points, created_at
		FROM referral_rewards WHERE referrer_user_id = $1
		ORDER BY created_at`, referrerUserID)
	if err != nil {
		return nil, fmt.Errorf("list referral rewards: %w", err)
	}
	defer rows.Close()

	var rewards []store.ReferralReward
	for rows.Next() {
		var reward store.ReferralReward
		if err := rows.Scan(&reward.ID, &reward.ReferrerUserID, &reward.SourceUserID,
			&reward.SourceEventID, &reward.Points, &reward.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan referral reward: %w", err)
		}
		rewards = append(rewards, reward)
	}
	return rewards, rows.Err()
}

func (s *Store) GetVaultPosition(userID, vaultID string) (*store.VaultPosition, error) {
	pos, err := scanPosition(s.db.QueryRow(`
		SELECT user_id, vault_id, principal_usd, earned_usd, last_accrued_at
		FROM vault_positions WHERE user_id = $1 AND vault_id = $2`, userID, vaultID))
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get vault position: %w", err)
	}
	return pos, nil
}

func (s *Store) ListVaultPositions(userID string) ([]store.VaultPosition, error) {
	rows, err := s.db.Query(`
		SELECT user_id, vault_id, principal_usd, earned_usd, last_accrued_at
		FROM vault_positions WHERE user_id = $1
		ORDER BY vault_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list vault positions: %w", err)
	}
	defer rows.Close()

	var positions []store.VaultPosition
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vault position: %w", err)
		}
		positions = append(positions, *pos)
	}
	return positions, rows.Err()
}

func (s *Store) UpdateVaultPosition(userID, vaultID string, fn func(pos *store.VaultPosition) error) (*store.VaultPosition, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	pos, err := scanPosition(tx.QueryRow(`
		SELECT user_id, vault_id, principal_usd, earned_usd, last_accrued_at
		FROM vault_positions WHERE user_id = $1 AND vault_id = $2
		FOR UPDATE`, userID, vaultID))
	if err == sql.ErrNoRows {
		pos = &store.VaultPosition{UserID: userID, VaultID: vaultID}
	} else if err != nil {
		return nil, fmt.Errorf("lock vault position: %w", err)
	}

	if err := fn(pos); err != nil {
		return nil, err
	}

	_, err = tx.Exec(`
		INSERT INTO vault_positions (user_id, vault_id, principal_usd, earned_usd, last_accrued_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, vault_id) DO UPDATE
		SET principal_usd = EXCLUDED.principal_usd,
		    earned_usd = EXCLUDED.earned_usd,
		    last_accrued_at = EXCLUDED.last_accrued_at`,
		pos.UserID, pos.VaultID, pos.PrincipalUsd, pos.EarnedUsd, zeroableTime(pos.LastAccruedAt))
	if err != nil {
		return nil, fmt.Errorf("persist vault position: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit vault position: %w", err)
	}
	return pos, nil
}

func (s *Store) InsertVaultEvent(event *store.VaultEvent) error {
	_, err := s.db.Exec(`
		INSERT INTO vault_events (id, user_id, vault_id, action, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, event.UserID, event.VaultID, event.Action, event.Amount, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert vault event: %w", err)
	}
	return nil
}

func (s *Store) CountVaultEvents(userID string, action store.VaultAction) (int, error) {
	return s.countRow(`SELECT COUNT(*) FROM vault_events WHERE user_id = $1 AND action = $2`, userID, action)
}

func (s *Store) SumVaultFlows(vaultID string) (float64, float64, error) {
	var deposits, withdrawals float64
	err := s.db.QueryRow(`
		SELECT COALESCE(SUM(amount) FILTER (WHERE action = 'deposit'), 0),
		       COALESCE(SUM(amount) FILTER (WHERE action = 'withdraw'), 0)
		FROM vault_events WHERE vault_id = $1`, vaultID).Scan(&deposits, &withdrawals)
	if err != nil {
		return 0, 0, fmt.Errorf("sum vault flows: %w", err)
	}
	return deposits, withdrawals, nil
}

func (s *Store) HasLedgerActivity(userID string) (bool, error) {
	var active bool
	err := s.db.QueryRow(`
		SELECT EXISTS (SELECT 1 FROM vault_events WHERE user_id = $1)
		    OR EXISTS (SELECT 1 FROM swap_events WHERE user_id = $1)`, userID).Scan(&active)
	if err != nil {
		return false, fmt.Errorf("check ledger activity: %w", err)
	}
	return active, nil
}

func (s *Store) InsertSwapEvent(event *store.SwapEvent) error {
	_, err := s.db.Exec(`
		INSERT INTO swap_events (id, user_id, from_asset, to_asset, amount, rate, out_amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.ID, event.UserID, event.FromAsset, event.ToAsset,
		event.Amount, event.Rate, event.OutAmount, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert swap event: %w", err)
	}
	return nil
}

func (s *Store) CountSwapEvents(userID string) (int, error) {
	return s.countRow(`SELECT COUNT(*) FROM swap_events WHERE user_id = $1`, userID)
}

func (s *Store) ListSwapEvents(userID string) ([]store.SwapEvent, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, from_asset, to_asset, amount, rate, out_amount, created_at
		FROM swap_events WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list swap events: %w", err)
	}
	defer rows.Close()

	var events []store.SwapEvent
	for rows.Next() {
		var event store.SwapEvent
		if err := rows.Scan(&event.ID, &event.UserID, &event.FromAsset, &event.ToAsset,
			&event.Amount, &event.Rate, &event.OutAmount, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan swap event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (s *Store) GetQuestRun(userID, questID string) (*store.QuestRun, error) {
	var run store.QuestRun
	var progress []byte
	var completedAt sql.NullTime
	err := s.db.QueryRow(`
		SELECT id, quest_id, user_id, status, progress, completed_at, created_at
		FROM quest_runs WHERE user_id = $1 AND quest_id = $2`, userID, questID).
		Scan(&run.ID, &run.QuestID, &run.UserID, &run.Status, &progress, &completedAt, &run.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get quest run: %w", err)
	}
	if len(progress) > 0 {
		if err := json.Unmarshal(progress, &run.Progress); err != nil {
			return nil, fmt.Errorf("decode quest progress: %w", err)
		}
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	return &run, nil
}

func (s *Store) CompleteQuestRun(run *store.QuestRun) error {
	progress, err := marshalJSON(run.Progress)
	if err != nil {
		return err
	}
	result, err := s.db.Exec(`
		INSERT INTO quest_runs (id, quest_id, user_id, status, progress, completed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (quest_id, user_id) DO UPDATE
		SET status = EXCLUDED.status,
		    progress = EXCLUDED.progress,
		    completed_at = EXCLUDED.completed_at
		WHERE quest_runs.status <> 'completed'`,
		run.ID, run.QuestID, run.UserID, run.Status, progress, nullableTime(run.CompletedAt), run.CreatedAt)
	if err != nil {
		return fmt.Errorf("complete quest run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete quest run: %w", err)
	}
	if affected == 0 {
		return store.ErrDuplicate
	}
	return nil
}

func (s *Store) InsertNftClaim(claim *store.NftClaim) error {
	var tokenID sql.NullInt64
	if claim.TokenID != nil {
		tokenID = sql.NullInt64{Int64: *claim.TokenID, Valid: true}
	}
	_, err := s.db.Exec(`
		INSERT INTO nft_claims (id, user_id, tier, token_id, claimed_at)
		VALUES ($1, $2, $3, $4, $5)`,
		claim.ID, claim.UserID, claim.Tier, tokenID, claim.ClaimedAt)
	if isUniqueViolation(err) {
		return store.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert nft claim: %w", err)
	}
	return nil
}

func (s *Store) ListNftClaims(userID string) ([]store.NftClaim, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, tier, token_id, claimed_at
		FROM nft_claims WHERE user_id = $1
		ORDER BY claimed_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list nft claims: %w", err)
	}
	defer rows.Close()

	var claims []store.NftClaim
	for rows.Next() {
		var claim store.NftClaim
		var tokenID sql.NullInt64
		if err := rows.Scan(&claim.ID, &claim.UserID, &claim.Tier, &tokenID, &claim.ClaimedAt); err != nil {
			return nil, fmt.Errorf("scan nft claim: %w", err)
		}
		if tokenID.Valid {
			claim.TokenID = &tokenID.Int64
		}
		claims = append(claims, claim)
	}
	return claims, rows.Err()
}

func (s *Store) LeaderboardTotals(since time.Time) ([]store.LeaderboardTotal, error) {
	rows, err := s.db.Query(`
		SELECT user_id, SUM(points) FROM (
			SELECT user_id, points, created_at FROM point_events WHERE status = 'settled'
			UNION ALL
			SELECT referrer_user_id, points, created_at FROM referral_rewards
		) earnings
		WHERE created_at >= $1
		GROUP BY user_id
		ORDER BY user_id`, since)
	if err != nil {
		return nil, fmt.Errorf("aggregate leaderboard totals: %w", err)
	}
	defer rows.Close()

	var totals []store.LeaderboardTotal
	for rows.Next() {
		var total store.LeaderboardTotal
		if err := rows.Scan(&total.UserID, &total.Points); err != nil {
			return nil, fmt.Errorf("scan leaderboard total: %w", err)
		}
		totals = append(totals, total)
	}
	return totals, rows.Err()
}

func (s *Store) InsertLeaderboardSnapshot(snapshot *store.LeaderboardSnapshot) error {
	rowsJSON, err := marshalJSON(snapshot.Rows)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO leaderboard_snapshots (id, period, captured_at, entries)
		VALUES ($1, $2, $3, $4)`,
		snapshot.ID, snapshot.Period, snapshot.CapturedAt, rowsJSON)
	if err != nil {
		return fmt.Errorf("insert leaderboard snapshot: %w", err)
	}
	return nil
}

func (s *Store) GetSystemFlag(key string) (bool, error) {
	var value bool
	err := s.db.QueryRow(`SELECT value FROM system_flags WHERE key = $1`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get system flag: %w", err)
	}
	return value, nil
}

func (s *Store) SetSystemFlag(key string, value bool) error {
	_, err := s.db.Exec(`
		INSERT INTO system_flags (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, value)
	if err != nil {
		return fmt.Errorf("set system flag: %w", err)
	}
	return nil
}

func (s *Store) Counts() (*store.SystemCounts, error) {
	var counts store.SystemCounts
	err := s.db.QueryRow(`
		SELECT (SELECT COUNT(*) FROM users),
		       (SELECT COUNT(*) FROM swap_events),
		       (SELECT COUNT(*) FROM point_events),
		       (SELECT COUNT(*) FROM abuse_flags),
		       COALESCE((SELECT value FROM system_flags WHERE key = $1), false)`,
		store.VaultPauseFlag).
		Scan(&counts.Users, &counts.Swaps, &counts.PointEvents, &counts.AbuseFlags, &counts.Paused)
	if err != nil {
		return nil, fmt.Errorf("get system counts: %w", err)
	}
	return &counts, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) countRow(query string, args ...interface{}) (int, error) {
	var count int
	if err := s.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return count, nil
}

func collectPointEvents(rows *sql.Rows) ([]store.PointEvent, error) {
	defer rows.Close()
	var events []store.PointEvent
	for rows.Next() {
		var event store.PointEvent
		var metadata []byte
		var settlesAt sql.NullTime
		err := rows.Scan(&event.ID, &event.UserID, &event.TaskKey, &event.Points,
			&event.Status, &event.Reason, &metadata, &event.CreatedAt, &settlesAt)
		if err != nil {
			return nil, fmt.Errorf("scan point event: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &event.Metadata); err != nil {
				return nil, fmt.Errorf("decode event metadata: %w", err)
			}
		}
		if settlesAt.Valid {
			event.SettlesAt = &settlesAt.Time
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func scanPosition(row interface{ Scan(...interface{}) error }) (*store.VaultPosition, error) {
	var pos store.VaultPosition
	var accruedAt sql.NullTime
	err := row.Scan(&pos.UserID, &pos.VaultID, &pos.PrincipalUsd, &pos.EarnedUsd, &accruedAt)
	if err != nil {
		return nil, err
	}
	if accruedAt.Valid {
		pos.LastAccruedAt = accruedAt.Time
	}
	return &pos, nil
}

func marshalJSON(v interface{}) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode json column: %w", err)
	}
	return encoded, nil
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func zeroableTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

var _ store.Store = (*Store)(nil)
