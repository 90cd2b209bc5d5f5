package procurement

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// TableName is the table LoadDatabase fills for the chatbot.
const TableName = "procurement"

const createTable = `CREATE TABLE procurement (
	"Plant" TEXT,
	"Material" TEXT,
	"Supplier/Supplying Plant" TEXT,
	"Short Text" TEXT,
	"Net Price" REAL,
	"Currency" TEXT,
	"Quantity in SKU" REAL
)`

const insertRow = `INSERT INTO procurement (
	"Plant", "Material", "Supplier/Supplying Plant", "Short Text", "Net Price", "Currency", "Quantity in SKU"
) VALUES (?, ?, ?, ?, ?, ?, ?)`

// LoadDatabase replaces the procurement table with records.
func LoadDatabase(ctx context.Context, db *sqlx.DB, records []Record) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS procurement`); err != nil {
		return fmt.Errorf("drop table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, insertRow)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.Plant, r.Material, nullString(r.Supplier), nullString(r.ShortText),
			nullNumber(r.NetPrice), nullString(r.Currency), nullNumber(r.Quantity)); err != nil {
			return fmt.Errorf("insert %s/%s: %w", r.Plant, r.Material, err)
		}
	}
	return tx.Commit()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullNumber(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.InexactFloat64()
}
