package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Sessions hands out connections scoped to a single operation.
type Sessions struct {
	db *sqlx.DB
}

// NewSessions wraps a connection pool.
func NewSessions(db *sqlx.DB) *Sessions {
	return &Sessions{db: db}
}

// DriverName reports the underlying driver, used for dialect decisions.
func (s *Sessions) DriverName() string {
	return s.db.DriverName()
}

// Session is one exclusive connection. The holder must call Release.
type Session struct {
	conn *sqlx.Conn
}

// Acquire reserves a connection from the pool.
func (s *Sessions) Acquire(ctx context.Context) (*Session, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return &Session{conn: conn}, nil
}

// Release returns the connection to the pool. Calling it twice is a no-op.
func (s *Session) Release() {
	if s.conn == nil {
		return
	}
	_ = s.conn.Close()
	s.conn = nil
}

// Get scans a single row into dest.
func (s *Session) Get(ctx context.Context, dest any, query string, args ...any) error {
	return s.conn.GetContext(ctx, dest, s.conn.Rebind(query), args...)
}

// Select scans all rows into dest.
func (s *Session) Select(ctx context.Context, dest any, query string, args ...any) error {
	return s.conn.SelectContext(ctx, dest, s.conn.Rebind(query), args...)
}

// InTx runs fn in a transaction on the session's connection. It commits when
// fn returns nil and rolls back otherwise.
func (s *Session) InTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
