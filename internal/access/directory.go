package access

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/Divas-Gupta30/ai-utility-suite/internal/retry"
)

// Directory answers permission and schema questions for the Q&A assistant.
// Every catalog lookup runs under the retry policy.
type Directory struct {
	catalog Catalog
	policy  retry.Policy
	logger  *zap.Logger
}

func NewDirectory(catalog Catalog, policy retry.Policy, logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	policy.Logger = logger
	return &Directory{catalog: catalog, policy: policy, logger: logger}
}

// TablesForUser walks res_users, group membership, model access and
// ir_model to list the tables login can read. An inactive account yields
// nil and no error.
func (d *Directory) TablesForUser(ctx context.Context, login string) ([]string, error) {
	user, err := retry.Do(ctx, d.policy, "fetch user info", func(ctx context.Context) (User, error) {
		u, err := d.catalog.User(ctx, login)
		if errors.Is(err, ErrUserNotFound) {
			return u, retry.Permanent(err)
		}
		return u, err
	}, nil)
	if err != nil {
		return nil, err
	}
	d.logger.Info("user info", zap.Int64("user_id", user.ID), zap.Bool("active", user.Active))
	if !user.Active {
		d.logger.Info("user has no access", zap.String("login", login))
		return nil, nil
	}

	groups, err := retry.Do(ctx, d.policy, "fetch group IDs", func(ctx context.Context) ([]int64, error) {
		return d.catalog.GroupIDs(ctx, user.ID)
	}, nil)
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("user %q: %w", login, ErrNoGroups)
	}

	grants, err := retry.Do(ctx, d.policy, "fetch model access", func(ctx context.Context) ([]ModelAccess, error) {
		return d.catalog.ModelAccess(ctx, groups)
	}, nil)
	if err != nil {
		return nil, err
	}
	if len(grants) == 0 {
		return nil, fmt.Errorf("user %q: %w", login, ErrNoModelAccess)
	}
	modelIDs := make([]int64, 0, len(grants))
	for _, g := range grants {
		modelIDs = append(modelIDs, g.ModelID)
	}
	d.logger.Debug("model access",
		zap.Int("groups", len(groups)),
		zap.Int("grants", len(grants)),
		zap.Any("crud", crudMap(grants)))

	names, err := retry.Do(ctx, d.policy, "fetch table names", func(ctx context.Context) ([]string, error) {
		return d.catalog.ModelNames(ctx, modelIDs)
	}, nil)
	if err != nil {
		return nil, err
	}
	tables := make([]string, 0, len(names))
	for _, n := range names {
		tables = append(tables, strings.ReplaceAll(n, ".", "_"))
	}
	d.logger.Info("tables for user", zap.String("login", login), zap.Int("tables", len(tables)))
	return tables, nil
}

// CRUD is the permission set granted on one model.
type CRUD struct {
	Create bool `json:"create"`
	Read   bool `json:"read"`
	Update bool `json:"update"`
	Delete bool `json:"delete"`
}

func crudMap(grants []ModelAccess) map[int64]CRUD {
	m := make(map[int64]CRUD, len(grants))
	for _, g := range grants {
		m[g.ModelID] = CRUD{Create: g.Create, Read: g.Read, Update: g.Update, Delete: g.Delete}
	}
	return m
}

// MatchTables splits tables into those present in the database and those
// that are not, keeping the input order.
func (d *Directory) MatchTables(ctx context.Context, tables []string) (matched, mismatched []string, err error) {
	existing, err := retry.Do(ctx, d.policy, "fetch table metadata", d.catalog.BaseTables, nil)
	if err != nil {
		return nil, nil, err
	}
	for _, t := range tables {
		if slices.Contains(existing, t) {
			matched = append(matched, t)
		} else {
			mismatched = append(mismatched, t)
		}
	}
	d.logger.Debug("matched tables",
		zap.Int("database_tables", len(existing)),
		zap.Int("matched", len(matched)),
		zap.Int("mismatched", len(mismatched)))
	return matched, mismatched, nil
}

// CountUserTables returns how many of login's tables exist in the database.
func (d *Directory) CountUserTables(ctx context.Context, login string) (int, error) {
	tables, err := d.TablesForUser(ctx, login)
	if err != nil {
		return 0, err
	}
	matched, _, err := d.MatchTables(ctx, tables)
	if err != nil {
		return 0, err
	}
	return len(matched), nil
}

// TableInfo renders the columns of tables in schema for a prompt.
func (d *Directory) TableInfo(ctx context.Context, tables []string, schema string) (string, error) {
	if len(tables) == 0 {
		return "No tables provided.", nil
	}
	if schema == "" {
		schema = "public"
	}
	cols, err := retry.Do(ctx, d.policy, "fetch table info", func(ctx context.Context) ([]Column, error) {
		return d.catalog.Columns(ctx, schema, tables)
	}, nil)
	if err != nil {
		return "", err
	}
	return RenderTableInfo(cols), nil
}

// RenderTableInfo groups columns by table, sorted by table name.
func RenderTableInfo(cols []Column) string {
	byTable := make(map[string][]string)
	for _, c := range cols {
		byTable[c.Table] = append(byTable[c.Table], fmt.Sprintf("%s (%s)", c.Name, normalizeType(c.DataType)))
	}
	names := make([]string, 0, len(byTable))
	for t := range byTable {
		names = append(names, t)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, t := range names {
		fmt.Fprintf(&b, "Table: %s\nColumns: %s\n\n", t, strings.Join(byTable[t], ", "))
	}
	return strings.TrimSpace(b.String())
}

func normalizeType(dtype string) string {
	switch {
	case dtype == "character varying" || dtype == "varchar":
		return "text"
	case strings.HasPrefix(dtype, "timestamp"):
		return "timestamp"
	case strings.HasPrefix(dtype, "character"):
		return "char"
	}
	return dtype
}
