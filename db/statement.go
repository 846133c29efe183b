package db

import (
	"fmt"
	"strings"

	"github.com/andys/netcollector/flow"
)

// Statement is the parameterized SQL rendered for one flow
type Statement struct {
	Flow    string
	Table   string
	Columns []string
	SQL     string
}

func escapeIdentifier(identifier string, dbType DBType) string {
	switch dbType {
	case MySQL:
		return fmt.Sprintf("`%s`", strings.ReplaceAll(identifier, "`", "``"))
	case PostgreSQL:
		return fmt.Sprintf(`"%s"`, strings.ReplaceAll(identifier, `"`, `""`))
	default:
		return identifier
	}
}

func escapeIdentifiers(identifiers []string, dbType DBType) []string {
	escaped := make([]string, len(identifiers))
	for i, id := range identifiers {
		escaped[i] = escapeIdentifier(id, dbType)
	}
	return escaped
}

func placeholders(n int, dbType DBType) []string {
	out := make([]string, n)
	for i := range out {
		if dbType == PostgreSQL {
			out[i] = fmt.Sprintf("$%d", i+1)
		} else {
			out[i] = "?"
		}
	}
	return out
}

// BuildStatement renders the INSERT or upsert statement for a flow. Values are
// always bound as parameters.
func BuildStatement(dbType DBType, def flow.Definition) (Statement, error) {
	if len(def.Columns) == 0 {
		return Statement{}, fmt.Errorf("flow %s has no columns", def.Name)
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		escapeIdentifier(def.Table, dbType),
		strings.Join(escapeIdentifiers(def.Columns, dbType), ", "),
		strings.Join(placeholders(len(def.Columns), dbType), ", "),
	)

	if def.WriteMode.Upsert() {
		switch dbType {
		case MySQL:
			query += " ON DUPLICATE KEY UPDATE " + strings.Join(mysqlUpdateClauses(def.Columns), ", ")
		case PostgreSQL:
			clause, err := postgresConflictClause(def)
			if err != nil {
				return Statement{}, err
			}
			query += clause
		default:
			return Statement{}, fmt.Errorf("unsupported database type: %s", dbType)
		}
	}

	return Statement{
		Flow:    def.Name,
		Table:   def.Table,
		Columns: def.Columns,
		SQL:     query,
	}, nil
}

func mysqlUpdateClauses(columns []string) []string {
	clauses := make([]string, len(columns))
	for i, col := range columns {
		escaped := escapeIdentifier(col, MySQL)
		clauses[i] = fmt.Sprintf("%s = VALUES(%s)", escaped, escaped)
	}
	return clauses
}

func postgresConflictClause(def flow.Definition) (string, error) {
	if len(def.KeyColumns) == 0 {
		return "", fmt.Errorf("flow %s: upsert on %s needs key_columns", def.Name, PostgreSQL)
	}
	keys := make(map[string]bool, len(def.KeyColumns))
	for _, k := range def.KeyColumns {
		keys[k] = true
	}

	updateClauses := make([]string, 0, len(def.Columns))
	for _, col := range def.Columns {
		if keys[col] {
			continue
		}
		escaped := escapeIdentifier(col, PostgreSQL)
		updateClauses = append(updateClauses, fmt.Sprintf("%s = EXCLUDED.%s", escaped, escaped))
	}

	target := strings.Join(escapeIdentifiers(def.KeyColumns, PostgreSQL), ", ")
	if len(updateClauses) == 0 {
		return fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", target), nil
	}
	return fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s", target, strings.Join(updateClauses, ", ")), nil
}
