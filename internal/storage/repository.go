package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"palmbudget/internal/policy"
	"palmbudget/internal/sweep"
)

const (
	insertSweepEventSQL = `INSERT INTO sweep_events (
        user_addr,
        source_bucket,
        destination_bucket,
        amount,
        yield_bps,
        swept_at
    ) VALUES ($1,$2,$3,$4,$5,$6);`

	listRecentSweepsSQL = `SELECT
        id, user_addr, source_bucket, destination_bucket, amount, yield_bps, swept_at, created_at
    FROM sweep_events
    ORDER BY swept_at DESC
    LIMIT $1;`

	listSweepsBetweenSQL = `SELECT
        id, user_addr, source_bucket, destination_bucket, amount, yield_bps, swept_at, created_at
    FROM sweep_events
    WHERE swept_at >= $1
      AND swept_at < $2
    ORDER BY swept_at;`

	countSweepsSQL = `SELECT COUNT(*) FROM sweep_events;`

	upsertAuthorizationSQL = `INSERT INTO user_configs (user_addr, authorized)
    VALUES ($1, $2)
    ON CONFLICT (user_addr) DO UPDATE
    SET authorized = EXCLUDED.authorized, updated_at = now();`

	upsertMinimumBalanceSQL = `INSERT INTO user_configs (user_addr, min_balance)
    VALUES ($1, $2)
    ON CONFLICT (user_addr) DO UPDATE
    SET min_balance = EXCLUDED.min_balance, updated_at = now();`

	upsertRatioSQL = `INSERT INTO user_configs (user_addr, ratio_bills, ratio_savings, ratio_growth, ratio_spendable)
    VALUES ($1, $2, $3, $4, $5)
    ON CONFLICT (user_addr) DO UPDATE
    SET ratio_bills     = EXCLUDED.ratio_bills,
        ratio_savings   = EXCLUDED.ratio_savings,
        ratio_growth    = EXCLUDED.ratio_growth,
        ratio_spendable = EXCLUDED.ratio_spendable,
        updated_at      = now();`

	getUserConfigSQL = `SELECT
        user_addr, authorized, min_balance, ratio_bills, ratio_savings, ratio_growth, ratio_spendable, updated_at
    FROM user_configs
    WHERE user_addr = $1;`

	listAuthorizedUsersSQL = `SELECT user_addr FROM user_configs WHERE authorized ORDER BY user_addr;`

	// Compare-and-set: the WHERE clause makes a no-op toggle report zero
	// rows, so callers learn whether the flag actually flipped.
	setPausedSQL = `UPDATE system_flags SET paused = $1, updated_at = now()
    WHERE singleton AND paused <> $1;`

	isPausedSQL = `SELECT paused FROM system_flags WHERE singleton;`
)

func normalizeUser(user string) string {
	return strings.ToLower(strings.TrimSpace(user))
}

// RecordSweep appends one executed sweep to the audit log.
func (s *Store) RecordSweep(ctx context.Context, rec sweep.Record) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	return s.withRetry(ctx, func() error {
		_, execErr := pool.Exec(ctx, insertSweepEventSQL,
			normalizeUser(rec.User),
			rec.Source.String(),
			rec.Destination.String(),
			rec.Amount.String(),
			rec.YieldBps,
			rec.Timestamp,
		)
		if execErr != nil {
			return fmt.Errorf("insert sweep event: %w", execErr)
		}
		return nil
	})
}

// ListRecentSweeps lists the latest audit records, newest first.
func (s *Store) ListRecentSweeps(ctx context.Context, limit int) ([]SweepEvent, error) {
	return s.querySweeps(ctx, listRecentSweepsSQL, limit)
}

// ListSweepsBetween lists audit records inside a time window, oldest first.
func (s *Store) ListSweepsBetween(ctx context.Context, from, to time.Time) ([]SweepEvent, error) {
	return s.querySweeps(ctx, listSweepsBetweenSQL, from, to)
}

func (s *Store) querySweeps(ctx context.Context, query string, args ...interface{}) ([]SweepEvent, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, query, args...)
	if queryErr != nil {
		return nil, fmt.Errorf("list sweep events: %w", queryErr)
	}
	defer rows.Close()

	events := make([]SweepEvent, 0)
	for rows.Next() {
		event, scanErr := scanSweepEvent(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		events = append(events, event)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return events, nil
}

// CountSweeps counts stored audit records.
func (s *Store) CountSweeps(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countSweepsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count sweep events: %w", scanErr)
	}
	return count, nil
}

// SetAuthorization upserts the user's opt-in flag.
func (s *Store) SetAuthorization(ctx context.Context, user string, enabled bool) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	return s.withRetry(ctx, func() error {
		if _, execErr := pool.Exec(ctx, upsertAuthorizationSQL, normalizeUser(user), enabled); execErr != nil {
			return fmt.Errorf("upsert authorization: %w", execErr)
		}
		return nil
	})
}

// Authorize opts the user into automatic sweeping.
func (s *Store) Authorize(ctx context.Context, user string) error {
	return s.SetAuthorization(ctx, user, true)
}

// Revoke opts the user out of automatic sweeping.
func (s *Store) Revoke(ctx context.Context, user string) error {
	return s.SetAuthorization(ctx, user, false)
}

// IsAuthorized reports the user's persisted opt-in flag.
func (s *Store) IsAuthorized(ctx context.Context, user string) (bool, error) {
	cfg, err := s.userConfig(ctx, user)
	if err != nil {
		return false, err
	}
	if cfg == nil {
		return false, nil
	}
	return cfg.Authorized, nil
}

// SetMinimumBalance upserts the user's minimum-balance override.
func (s *Store) SetMinimumBalance(ctx context.Context, user string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return errors.New("storage: minimum balance cannot be negative")
	}
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	return s.withRetry(ctx, func() error {
		if _, execErr := pool.Exec(ctx, upsertMinimumBalanceSQL, normalizeUser(user), amount.String()); execErr != nil {
			return fmt.Errorf("upsert minimum balance: %w", execErr)
		}
		return nil
	})
}

// MinimumBalance returns the user's override or the system default.
func (s *Store) MinimumBalance(ctx context.Context, user string) (decimal.Decimal, error) {
	cfg, err := s.userConfig(ctx, user)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if cfg == nil || cfg.MinimumBalance == nil {
		return s.defaults.MinimumBalance, nil
	}
	return *cfg.MinimumBalance, nil
}

// SetRatio validates and upserts the user's split ratio.
func (s *Store) SetRatio(ctx context.Context, user string, ratio policy.SplitRatio) error {
	if err := ratio.Validate(); err != nil {
		return err
	}
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	return s.withRetry(ctx, func() error {
		if _, execErr := pool.Exec(ctx, upsertRatioSQL, normalizeUser(user),
			int16(ratio.Bills), int16(ratio.Savings), int16(ratio.Growth), int16(ratio.Spendable)); execErr != nil {
			return fmt.Errorf("upsert split ratio: %w", execErr)
		}
		return nil
	})
}

// Ratio returns the user's split or the system preset.
func (s *Store) Ratio(ctx context.Context, user string) (policy.SplitRatio, error) {
	cfg, err := s.userConfig(ctx, user)
	if err != nil {
		return policy.SplitRatio{}, err
	}
	if cfg == nil || cfg.Ratio == nil {
		return s.defaults.Ratio, nil
	}
	return *cfg.Ratio, nil
}

// AuthorizedUsers lists every opted-in user, sorted.
func (s *Store) AuthorizedUsers(ctx context.Context) ([]string, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listAuthorizedUsersSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list authorized users: %w", queryErr)
	}
	defer rows.Close()

	users := make([]string, 0)
	for rows.Next() {
		var user string
		if err := rows.Scan(&user); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// SetPaused flips the persisted pause flag with compare-and-set
// semantics; changed reports whether the flag actually transitioned.
func (s *Store) SetPaused(ctx context.Context, paused bool) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}
	tag, execErr := pool.Exec(ctx, setPausedSQL, paused)
	if execErr != nil {
		return false, fmt.Errorf("set paused: %w", execErr)
	}
	return tag.RowsAffected() > 0, nil
}

// IsPaused reads the persisted pause flag.
func (s *Store) IsPaused(ctx context.Context) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}
	var paused bool
	if scanErr := pool.QueryRow(ctx, isPausedSQL).Scan(&paused); scanErr != nil {
		return false, fmt.Errorf("read paused flag: %w", scanErr)
	}
	return paused, nil
}

func (s *Store) userConfig(ctx context.Context, user string) (*UserConfig, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	var (
		cfg       UserConfig
		minStr    sql.NullString
		bills     sql.NullInt16
		savings   sql.NullInt16
		growth    sql.NullInt16
		spendable sql.NullInt16
	)
	row := pool.QueryRow(ctx, getUserConfigSQL, normalizeUser(user))
	if scanErr := row.Scan(&cfg.User, &cfg.Authorized, &minStr, &bills, &savings, &growth, &spendable, &cfg.UpdatedAt); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("read user config: %w", scanErr)
	}

	if minStr.Valid {
		min, convErr := decimal.NewFromString(minStr.String)
		if convErr != nil {
			return nil, fmt.Errorf("parse minimum balance: %w", convErr)
		}
		cfg.MinimumBalance = &min
	}
	if bills.Valid && savings.Valid && growth.Valid && spendable.Valid {
		ratio := policy.SplitRatio{
			Bills:     uint(bills.Int16),
			Savings:   uint(savings.Int16),
			Growth:    uint(growth.Int16),
			Spendable: uint(spendable.Int16),
		}
		cfg.Ratio = &ratio
	}
	return &cfg, nil
}

func scanSweepEvent(rows pgx.Rows) (SweepEvent, error) {
	var (
		event     SweepEvent
		amountStr string
	)
	if err := rows.Scan(
		&event.ID,
		&event.User,
		&event.Source,
		&event.Destination,
		&amountStr,
		&event.YieldBps,
		&event.SweptAt,
		&event.CreatedAt,
	); err != nil {
		return SweepEvent{}, err
	}

	amount, convErr := decimal.NewFromString(amountStr)
	if convErr != nil {
		return SweepEvent{}, fmt.Errorf("parse sweep amount: %w", convErr)
	}
	event.Amount = amount
	return event, nil
}

var _ sweep.Recorder = (*Store)(nil)
var _ sweep.AuthorizationSource = (*Store)(nil)
