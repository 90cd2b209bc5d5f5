// Package access resolves which ERP tables a user may query and describes
// their columns for prompt building.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Divas-Gupta30/ai-utility-suite/internal/metrics"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrNoGroups      = errors.New("user does not belong to any groups")
	ErrNoModelAccess = errors.New("no model access found")
)

// User is a row of res_users.
type User struct {
	ID     int64
	Active bool
}

// ModelAccess is one ir_model_access grant.
type ModelAccess struct {
	ModelID int64
	Read    bool
	Update  bool
	Create  bool
	Delete  bool
}

// Column is one row of information_schema.columns.
type Column struct {
	Table    string
	Name     string
	DataType string
}

// Catalog is the set of metadata lookups the permission chain needs.
type Catalog interface {
	User(ctx context.Context, login string) (User, error)
	GroupIDs(ctx context.Context, userID int64) ([]int64, error)
	ModelAccess(ctx context.Context, groupIDs []int64) ([]ModelAccess, error)
	ModelNames(ctx context.Context, modelIDs []int64) ([]string, error)
	BaseTables(ctx context.Context) ([]string, error)
	Columns(ctx context.Context, schema string, tables []string) ([]Column, error)
}

// PGCatalog reads the ERP metadata tables through a pgx pool.
type PGCatalog struct {
	pool *pgxpool.Pool
}

func NewPGCatalog(pool *pgxpool.Pool) *PGCatalog {
	return &PGCatalog{pool: pool}
}

func (c *PGCatalog) User(ctx context.Context, login string) (User, error) {
	var u User
	err := c.pool.QueryRow(ctx,
		`SELECT id, active FROM res_users WHERE login = $1`, login).Scan(&u.ID, &u.Active)
	metrics.ObserveExternal(metrics.ProviderPostgres, ignoreNoRows(err))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, fmt.Errorf("%q: %w", login, ErrUserNotFound)
	}
	if err != nil {
		return User{}, fmt.Errorf("query res_users: %w", err)
	}
	return u, nil
}

func (c *PGCatalog) GroupIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := c.pool.Query(ctx, `SELECT gid FROM res_groups_users_rel WHERE uid = $1`, userID)
	if err != nil {
		metrics.ObserveExternal(metrics.ProviderPostgres, err)
		return nil, fmt.Errorf("query res_groups_users_rel: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	metrics.ObserveExternal(metrics.ProviderPostgres, err)
	return ids, err
}

func (c *PGCatalog) ModelAccess(ctx context.Context, groupIDs []int64) ([]ModelAccess, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT model_id, perm_read, perm_write, perm_create, perm_unlink
		FROM ir_model_access
		WHERE group_id = ANY($1)`, groupIDs)
	if err != nil {
		metrics.ObserveExternal(metrics.ProviderPostgres, err)
		return nil, fmt.Errorf("query ir_model_access: %w", err)
	}
	grants, err := pgx.CollectRows(rows, pgx.RowToStructByPos[ModelAccess])
	metrics.ObserveExternal(metrics.ProviderPostgres, err)
	return grants, err
}

func (c *PGCatalog) ModelNames(ctx context.Context, modelIDs []int64) ([]string, error) {
	rows, err := c.pool.Query(ctx, `SELECT model FROM ir_model WHERE id = ANY($1)`, modelIDs)
	if err != nil {
		metrics.ObserveExternal(metrics.ProviderPostgres, err)
		return nil, fmt.Errorf("query ir_model: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	metrics.ObserveExternal(metrics.ProviderPostgres, err)
	return names, err
}

func (c *PGCatalog) BaseTables(ctx context.Context) ([]string, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = 'public' AND table_type = 'BASE TABLE'`)
	if err != nil {
		metrics.ObserveExternal(metrics.ProviderPostgres, err)
		return nil, fmt.Errorf("query information_schema.tables: %w", err)
	}
	tables, err := pgx.CollectRows(rows, pgx.RowTo[string])
	metrics.ObserveExternal(metrics.ProviderPostgres, err)
	return tables, err
}

func (c *PGCatalog) Columns(ctx context.Context, schema string, tables []string) ([]Column, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT table_name, column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = ANY($2)
		ORDER BY table_name, ordinal_position`, schema, tables)
	if err != nil {
		metrics.ObserveExternal(metrics.ProviderPostgres, err)
		return nil, fmt.Errorf("query information_schema.columns: %w", err)
	}
	cols, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Column])
	metrics.ObserveExternal(metrics.ProviderPostgres, err)
	return cols, err
}

func ignoreNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	return err
}
