// Package sqlstore implements ledger.Store on top of sqlx. The same queries
// serve Postgres (lib/pq) and SQLite (go-sqlite3); bindvars are rebound per
// driver and row locks are taken only where the dialect supports them.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/vpnshop/core/logger"
	"github.com/m3rciful/vpnshop/internal/ledger"
)

const component = "ledger"

// Store is a SQL-backed ledger.
type Store struct {
	db       *sqlx.DB
	rowLocks bool
}

var _ ledger.Store = (*Store)(nil)

// New wraps an open database handle. The schema must already be migrated.
func New(db *sqlx.DB) *Store {
	return &Store{
		db:       db,
		rowLocks: db.DriverName() == "postgres",
	}
}

func (s *Store) q(query string) string {
	return s.db.Rebind(query)
}

func (s *Store) EnsureUser(ctx context.Context, id int64, username string) (ledger.User, error) {
	username = strings.TrimSpace(username)
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO users (id, username, credit, discount_used, approval)
		VALUES (?, ?, 0, FALSE, 'pending')
		ON CONFLICT (id) DO UPDATE SET username = CASE
			WHEN excluded.username <> '' THEN excluded.username
			ELSE users.username
		END`), id, username)
	if err != nil {
		return ledger.User{}, fmt.Errorf("ensure user %d: %w", id, err)
	}
	return s.User(ctx, id)
}

func (s *Store) User(ctx context.Context, id int64) (ledger.User, error) {
	var u ledger.User
	err := s.db.GetContext(ctx, &u, s.q(`
		SELECT id, username, credit, discount_used, approval
		FROM users WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.User{}, ledger.ErrUserNotFound
	}
	if err != nil {
		return ledger.User{}, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

func (s *Store) SetApproval(ctx context.Context, id int64, status ledger.Approval) error {
	if !status.Valid() {
		return fmt.Errorf("set approval %d: unknown status %q", id, status)
	}
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE users SET approval = ? WHERE id = ?`), string(status), id)
	if err != nil {
		return fmt.Errorf("set approval %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrUserNotFound
	}
	return nil
}

// RedeemDiscount looks the code up and flips the one-shot flag in the same
// transaction. The conditional update is the gate: a concurrent redemption
// that already set the flag leaves zero affected rows.
func (s *Store) RedeemDiscount(ctx context.Context, id int64, code string) (int64, error) {
	start := time.Now()
	var value int64
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var u ledger.User
		if err := tx.GetContext(ctx, &u, s.lockQuery(`
			SELECT id, username, credit, discount_used, approval
			FROM users WHERE id = ?`), id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ledger.ErrUserNotFound
			}
			return err
		}
		if u.DiscountUsed {
			return ledger.ErrDiscountUsed
		}
		if err := tx.GetContext(ctx, &value, s.q(`SELECT value FROM codes WHERE code = ?`), code); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ledger.ErrCodeNotFound
			}
			return err
		}
		res, err := tx.ExecContext(ctx, s.q(`
			UPDATE users SET credit = credit + ?, discount_used = TRUE
			WHERE id = ? AND discount_used = FALSE`), value, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ledger.ErrDiscountUsed
		}
		return nil
	})
	logger.Debug(ctx, component, "ledger.redeem",
		slog.Int64("user_id", id),
		slog.String("status", logger.Status(err)),
		slog.Duration("duration", logger.Took(start)),
	)
	if err != nil {
		return 0, wrapUnlessSentinel("redeem discount", err)
	}
	return value, nil
}

// Transfer debits the sender only when the balance covers the amount, then
// credits the receiver. Any failure rolls both writes back.
func (s *Store) Transfer(ctx context.Context, from, to, amount int64) error {
	if amount <= 0 {
		return ledger.ErrInvalidAmount
	}
	if from == to {
		return ledger.ErrSelfTransfer
	}
	start := time.Now()
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if s.rowLocks {
			// Lock both rows in id order so opposing transfers cannot deadlock.
			lo, hi := from, to
			if lo > hi {
				lo, hi = hi, lo
			}
			var ids []int64
			if err := tx.SelectContext(ctx, &ids, s.q(`
				SELECT id FROM users WHERE id IN (?, ?) ORDER BY id FOR UPDATE`), lo, hi); err != nil {
				return err
			}
			if len(ids) != 2 {
				return ledger.ErrUserNotFound
			}
		}

		res, err := tx.ExecContext(ctx, s.q(`
			UPDATE users SET credit = credit - ?
			WHERE id = ? AND credit >= ?`), amount, from, amount)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			var exists int
			if err := tx.GetContext(ctx, &exists, s.q(`SELECT COUNT(1) FROM users WHERE id = ?`), from); err != nil {
				return err
			}
			if exists == 0 {
				return ledger.ErrUserNotFound
			}
			return ledger.ErrInsufficientFunds
		}

		res, err = tx.ExecContext(ctx, s.q(`UPDATE users SET credit = credit + ? WHERE id = ?`), amount, to)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ledger.ErrUserNotFound
		}
		return nil
	})
	logger.Debug(ctx, component, "ledger.transfer",
		slog.Int64("user_id", from),
		slog.Int64("target_id", to),
		slog.Int64("amount", amount),
		slog.String("status", logger.Status(err)),
		slog.Duration("duration", logger.Took(start)),
	)
	return wrapUnlessSentinel("transfer", err)
}

func (s *Store) Credit(ctx context.Context, id, amount int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE users SET credit = credit + ? WHERE id = ?`), amount, id)
	if err != nil {
		return false, fmt.Errorf("credit user %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("credit user %d: %w", id, err)
	}
	return n > 0, nil
}

func (s *Store) UpsertService(ctx context.Context, svc ledger.Service) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO services (kind, content, is_file) VALUES (?, ?, ?)
		ON CONFLICT (kind) DO UPDATE SET content = excluded.content, is_file = excluded.is_file`),
		string(svc.Kind), svc.Content, svc.IsFile)
	if err != nil {
		return fmt.Errorf("upsert service %s: %w", svc.Kind, err)
	}
	return nil
}

func (s *Store) Service(ctx context.Context, kind ledger.ServiceKind) (ledger.Service, error) {
	var svc ledger.Service
	err := s.db.GetContext(ctx, &svc, s.q(`SELECT kind, content, is_file FROM services WHERE kind = ?`), string(kind))
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Service{}, ledger.ErrServiceNotFound
	}
	if err != nil {
		return ledger.Service{}, fmt.Errorf("get service %s: %w", kind, err)
	}
	return svc, nil
}

func (s *Store) InsertCode(ctx context.Context, code ledger.DiscountCode) error {
	res, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO codes (code, value) VALUES (?, ?)
		ON CONFLICT (code) DO NOTHING`), code.Code, code.Value)
	if err != nil {
		return fmt.Errorf("insert code: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrDuplicateCode
	}
	return nil
}

func (s *Store) Code(ctx context.Context, code string) (ledger.DiscountCode, error) {
	var c ledger.DiscountCode
	err := s.db.GetContext(ctx, &c, s.q(`SELECT code, value FROM codes WHERE code = ?`), code)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.DiscountCode{}, ledger.ErrCodeNotFound
	}
	if err != nil {
		return ledger.DiscountCode{}, fmt.Errorf("get code: %w", err)
	}
	return c, nil
}

func (s *Store) UserIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := s.db.SelectContext(ctx, &ids, `SELECT id FROM users ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	return ids, nil
}

func (s *Store) PendingUsers(ctx context.Context) ([]ledger.User, error) {
	var users []ledger.User
	err := s.db.SelectContext(ctx, &users, s.q(`
		SELECT id, username, credit, discount_used, approval
		FROM users WHERE approval <> ? ORDER BY id`), string(ledger.ApprovalApproved))
	if err != nil {
		return nil, fmt.Errorf("list pending users: %w", err)
	}
	return users, nil
}

func (s *Store) lockQuery(query string) string {
	if s.rowLocks {
		query += " FOR UPDATE"
	}
	return s.q(query)
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func wrapUnlessSentinel(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{
		ledger.ErrUserNotFound,
		ledger.ErrInsufficientFunds,
		ledger.ErrDiscountUsed,
		ledger.ErrCodeNotFound,
	} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
