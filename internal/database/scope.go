package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Scope is a per-request database session. A user scope runs every query in
// a transaction where row-level security sees the caller's id; the
// privileged scope bypasses it for the emergency matching flow.
type Scope struct {
	db         *sqlx.DB
	userID     string
	role       string
	privileged bool
}

// Scopes builds scopes over one pool. RLSRole, when set, is assumed with
// SET LOCAL ROLE inside user transactions.
type Scopes struct {
	DB      *sqlx.DB
	RLSRole string
}

func NewScopes(db *sqlx.DB, rlsRole string) *Scopes {
	return &Scopes{DB: db, RLSRole: rlsRole}
}

// ForUser returns a scope bound to the caller. An empty id gives an
// anonymous scope.
func (s *Scopes) ForUser(userID string) *Scope {
	return &Scope{db: s.DB, userID: userID, role: s.RLSRole}
}

// Privileged returns a scope that sets no claim and no role. It is for
// tables without row-level security (profiles, rooms, emergency requests);
// mood_logs and chat_logs force their policies even on the owner.
func (s *Scopes) Privileged() *Scope {
	return &Scope{db: s.DB, privileged: true}
}

func (s *Scope) UserID() string { return s.userID }

func (s *Scope) IsPrivileged() bool { return s.privileged }

// Run executes fn in a transaction, committing when fn returns nil.
func (s *Scope) Run(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if !s.privileged {
		if s.role != "" {
			if _, err = tx.ExecContext(ctx, "SET LOCAL ROLE "+pq.QuoteIdentifier(s.role)); err != nil {
				return fmt.Errorf("set role: %w", err)
			}
		}
		if _, err = tx.ExecContext(ctx, `SELECT set_config('request.jwt.claim.sub', $1, true)`, s.userID); err != nil {
			return fmt.Errorf("set claim: %w", err)
		}
	}

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
