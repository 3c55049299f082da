package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"tutor-service/pkg/response"
)

const defaultQueryTimeout = 5 * time.Second

type Storage struct {
	db      *sqlx.DB
	timeout time.Duration
}

func New(storagePath string, queryTimeout time.Duration, maxOpenConns int) (*Storage, error) {
	const op = "storage.postgres.New"

	db, err := sqlx.Open("postgres", storagePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	return NewWithDB(db, queryTimeout), nil
}

// NewWithDB wraps an already opened handle.
func NewWithDB(db *sqlx.DB, queryTimeout time.Duration) *Storage {
	if queryTimeout <= 0 {
		queryTimeout = defaultQueryTimeout
	}

	return &Storage{db: db, timeout: queryTimeout}
}

func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Close()
}

func (s *Storage) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return wrap("storage.postgres.Ping", err)
	}
	return nil
}

func (s *Storage) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// inTx runs fn in a transaction and commits when fn returns nil.
func (s *Storage) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

// classify maps driver failures onto the domain error set.
func classify(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return response.ErrNotFound
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return response.ErrServer
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "23505":
			return response.ErrAlreadyExists
		case pqErr.Code == "23P01":
			return response.ErrSlotConflict
		case pqErr.Code == "23503", pqErr.Code == "22P02":
			return response.ErrNotFound
		case pqErr.Code.Class() == "08", pqErr.Code.Class() == "53", pqErr.Code == "57P01", pqErr.Code == "57014":
			return response.ErrServer
		}
		return nil
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return response.ErrServer
	}

	return nil
}

func wrap(op string, err error) error {
	if errors.Is(err, response.ErrNotFound) || errors.Is(err, response.ErrAlreadyExists) ||
		errors.Is(err, response.ErrSlotConflict) || errors.Is(err, response.ErrServer) ||
		errors.Is(err, response.ErrInvalidStateTransition) {
		return fmt.Errorf("%s: %w", op, err)
	}

	if sentinel := classify(err); sentinel != nil {
		if sentinel == response.ErrNotFound {
			return fmt.Errorf("%s: %w", op, sentinel)
		}
		return fmt.Errorf("%s: %w: %w", op, sentinel, err)
	}

	return fmt.Errorf("%s: %w", op, err)
}
