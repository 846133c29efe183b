package db

import (
	"context"
	"fmt"
	"strings"
)

// ColumnSchema represents the structure of a table column
type ColumnSchema struct {
	Name     string
	Type     string
	Nullable bool
	IsKey    bool
}

// TableColumns returns the columns of table in ordinal order
func (c *Connection) TableColumns(ctx context.Context, table string) ([]ColumnSchema, error) {
	var query string
	switch c.Type {
	case MySQL:
		query = `
        SELECT
            COLUMN_NAME,
            DATA_TYPE,
            CASE WHEN IS_NULLABLE = 'YES' THEN 1 ELSE 0 END as IS_NULLABLE,
            CASE WHEN COLUMN_KEY IN ('PRI', 'UNI') THEN 1 ELSE 0 END as IS_KEY
        FROM information_schema.COLUMNS
        WHERE TABLE_SCHEMA = DATABASE()
            AND TABLE_NAME = ?
        ORDER BY ORDINAL_POSITION`
	case PostgreSQL:
		query = `
        SELECT
            c.column_name,
            c.data_type,
            CASE WHEN c.is_nullable = 'YES' THEN 1 ELSE 0 END as is_nullable,
            CASE WHEN k.column_name IS NOT NULL THEN 1 ELSE 0 END as is_key
        FROM information_schema.columns c
        LEFT JOIN (
            SELECT kcu.table_name, kcu.column_name
            FROM information_schema.table_constraints tc
            JOIN information_schema.key_column_usage kcu
                ON tc.constraint_name = kcu.constraint_name
            WHERE tc.constraint_type IN ('PRIMARY KEY', 'UNIQUE')
        ) k ON c.table_name = k.table_name AND c.column_name = k.column_name
        WHERE c.table_schema = 'public'
            AND c.table_name = $1
        ORDER BY c.ordinal_position`
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.Type)
	}

	rows, err := c.db.QueryContext(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query schema: %w", err)
	}
	defer rows.Close()

	columns := make([]ColumnSchema, 0)
	for rows.Next() {
		var col ColumnSchema
		if err := rows.Scan(&col.Name, &col.Type, &col.Nullable, &col.IsKey); err != nil {
			return nil, fmt.Errorf("failed to scan schema row: %w", err)
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schema rows: %w", err)
	}

	return columns, nil
}

// CheckColumns verifies that table exists and has every column a flow writes
func (c *Connection) CheckColumns(ctx context.Context, table string, want []string) error {
	columns, err := c.TableColumns(ctx, table)
	if err != nil {
		return err
	}
	if len(columns) == 0 {
		return fmt.Errorf("table %s does not exist", table)
	}

	have := make(map[string]bool, len(columns))
	for _, col := range columns {
		have[strings.ToLower(col.Name)] = true
	}
	var missing []string
	for _, col := range want {
		if !have[strings.ToLower(col)] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("table %s is missing columns: %s", table, strings.Join(missing, ", "))
	}
	return nil
}
