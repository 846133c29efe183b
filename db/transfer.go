package db

import (
	"context"
	"fmt"

	"github.com/andys/netcollector/flow"
)

// ExecBatch runs stmt once per row inside a single transaction. Either every
// row of the batch is committed or none is.
func (c *Connection) ExecBatch(ctx context.Context, stmt Statement, rows []flow.Row) (int64, error) {
	if c.db == nil {
		return 0, fmt.Errorf("sql: database is closed")
	}
	if len(rows) == 0 {
		return 0, nil
	}

	c.logQuery(stmt.SQL)

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	prepared, err := tx.PrepareContext(ctx, stmt.SQL)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare query: %s, error: %w", stmt.SQL, err)
	}
	defer prepared.Close()

	var affected int64
	for i, row := range rows {
		if len(row) != len(stmt.Columns) {
			return 0, fmt.Errorf("row %d of %s has %d values, expected %d", i, stmt.Flow, len(row), len(stmt.Columns))
		}
		res, err := prepared.ExecContext(ctx, row...)
		if err != nil {
			return 0, fmt.Errorf("failed to execute query: %s, error: %w", stmt.SQL, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			affected += n
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return affected, nil
}
