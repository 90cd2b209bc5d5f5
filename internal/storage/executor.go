package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/Divas-Gupta30/ai-utility-suite/internal/metrics"
	"github.com/Divas-Gupta30/ai-utility-suite/internal/retry"
)

// Result is a fully read query result.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Executor runs model-generated SQL inside a transaction, retrying on
// failure and rolling back between attempts.
type Executor struct {
	db       *sqlx.DB
	policy   retry.Policy
	readOnly  bool
	queryOnly bool
	provider  string
	logger   *zap.Logger
}

type ExecutorOption func(*Executor)

// ReadOnly opens every transaction as READ ONLY.
func ReadOnly() ExecutorOption { return func(e *Executor) { e.readOnly = true } }

// QueryOnly switches the connection to PRAGMA query_only for the length of
// each query. SQLite ignores READ ONLY transactions, so this is how its
// executors refuse writes.
func QueryOnly() ExecutorOption { return func(e *Executor) { e.queryOnly = true } }

// Provider sets the label queries are counted under. Defaults to postgres.
func Provider(name string) ExecutorOption { return func(e *Executor) { e.provider = name } }

func NewExecutor(db *sqlx.DB, policy retry.Policy, logger *zap.Logger, opts ...ExecutorOption) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	policy.Logger = logger
	e := &Executor{db: db, policy: policy, provider: metrics.ProviderPostgres, logger: logger}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Query runs query and returns every row.
func (e *Executor) Query(ctx context.Context, query string, args ...any) (*Result, error) {
	var tx *sqlx.Tx
	release := func() {}
	rollback := func() {
		if tx != nil {
			_ = tx.Rollback()
			tx = nil
		}
		release()
		release = func() {}
	}

	return retry.Do(ctx, e.policy, "execute query", func(ctx context.Context) (*Result, error) {
		var err error
		tx, release, err = e.begin(ctx)
		if err != nil {
			return nil, fmt.Errorf("begin: %w", err)
		}
		res, err := readAll(ctx, tx, query, args...)
		metrics.ObserveExternal(e.provider, err)
		if err != nil {
			return nil, err
		}
		err = tx.Commit()
		tx = nil
		release()
		release = func() {}
		if err != nil {
			return nil, fmt.Errorf("commit: %w", err)
		}
		return res, nil
	}, rollback)
}

// begin opens a transaction. The returned func gives a query_only
// connection back to the pool once the transaction has ended.
func (e *Executor) begin(ctx context.Context) (*sqlx.Tx, func(), error) {
	opts := &sql.TxOptions{ReadOnly: e.readOnly}
	if !e.queryOnly {
		tx, err := e.db.BeginTxx(ctx, opts)
		return tx, func() {}, err
	}

	noop := func() {}
	conn, err := e.db.Connx(ctx)
	if err != nil {
		return nil, noop, err
	}
	if _, err := conn.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
		conn.Close()
		return nil, noop, err
	}
	release := func() {
		if _, err := conn.ExecContext(context.Background(), "PRAGMA query_only = OFF"); err != nil {
			e.logger.Warn("reset query_only", zap.Error(err))
		}
		conn.Close()
	}
	tx, err := conn.BeginTxx(ctx, opts)
	if err != nil {
		release()
		return nil, noop, err
	}
	return tx, release, nil
}

// Run executes query and renders the rows the way the answer prompt expects.
func (e *Executor) Run(ctx context.Context, query string) (string, error) {
	res, err := e.Query(ctx, query)
	if err != nil {
		return "", err
	}
	e.logger.Debug("query result", zap.Int("rows", len(res.Rows)))
	return FormatRows(res.Rows), nil
}

func readAll(ctx context.Context, tx *sqlx.Tx, query string, args ...any) (*Result, error) {
	rows, err := tx.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	res := &Result{Columns: cols}
	for rows.Next() {
		vals, err := rows.SliceScan()
		if err != nil {
			return nil, err
		}
		res.Rows = append(res.Rows, vals)
	}
	return res, rows.Err()
}
