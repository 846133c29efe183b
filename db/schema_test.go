package db

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/frankban/quicktest"
)

func TestTableColumns_MySQL(t *testing.T) {
	c := quicktest.New(t)
	dbMock, mock, err := sqlmock.New()
	c.Assert(err, quicktest.IsNil)
	defer dbMock.Close()

	mock.ExpectQuery("FROM information_schema.COLUMNS").
		WithArgs("hosts").
		WillReturnRows(sqlmock.NewRows([]string{
			"COLUMN_NAME", "DATA_TYPE", "IS_NULLABLE", "IS_KEY",
		}).
			AddRow("mac_address", "varchar", false, true).
			AddRow("ip_address", "varchar", true, false),
		)

	conn := &Connection{db: dbMock, Type: MySQL}
	columns, err := conn.TableColumns(context.Background(), "hosts")
	c.Assert(err, quicktest.IsNil)
	c.Assert(columns, quicktest.DeepEquals, []ColumnSchema{
		{Name: "mac_address", Type: "varchar", Nullable: false, IsKey: true},
		{Name: "ip_address", Type: "varchar", Nullable: true, IsKey: false},
	})
}

func TestTableColumns_PostgreSQL(t *testing.T) {
	c := quicktest.New(t)
	dbMock, mock, err := sqlmock.New()
	c.Assert(err, quicktest.IsNil)
	defer dbMock.Close()

	mock.ExpectQuery("FROM information_schema.columns").
		WithArgs("hosts").
		WillReturnRows(sqlmock.NewRows([]string{
			"column_name", "data_type", "is_nullable", "is_key",
		}).AddRow("mac_address", "character varying", false, true))

	conn := &Connection{db: dbMock, Type: PostgreSQL}
	columns, err := conn.TableColumns(context.Background(), "hosts")
	c.Assert(err, quicktest.IsNil)
	c.Assert(columns, quicktest.HasLen, 1)
	c.Assert(columns[0].IsKey, quicktest.IsTrue)
}

func TestTableColumns_Errors(t *testing.T) {
	c := quicktest.New(t)

	conn := &Connection{Type: "sqlite"}
	_, err := conn.TableColumns(context.Background(), "hosts")
	c.Assert(err, quicktest.ErrorMatches, "unsupported database type: sqlite")

	dbMock, mock, err := sqlmock.New()
	c.Assert(err, quicktest.IsNil)
	defer dbMock.Close()
	mock.ExpectQuery("FROM information_schema.COLUMNS").WillReturnError(errors.New("fail"))
	conn = &Connection{db: dbMock, Type: MySQL}
	_, err = conn.TableColumns(context.Background(), "hosts")
	c.Assert(err, quicktest.ErrorMatches, "failed to query schema: fail")

	dbMock2, mock2, err := sqlmock.New()
	c.Assert(err, quicktest.IsNil)
	defer dbMock2.Close()
	rows := sqlmock.NewRows([]string{"COLUMN_NAME", "DATA_TYPE", "IS_NULLABLE", "IS_KEY"}).
		AddRow("id", "int", false, true)
	rows.RowError(0, errors.New("row error"))
	mock2.ExpectQuery("FROM information_schema.COLUMNS").WillReturnRows(rows)
	conn = &Connection{db: dbMock2, Type: MySQL}
	_, err = conn.TableColumns(context.Background(), "hosts")
	c.Assert(err, quicktest.ErrorMatches, "error iterating schema rows: row error")
}

func TestCheckColumns(t *testing.T) {
	c := quicktest.New(t)
	dbMock, mock, err := sqlmock.New()
	c.Assert(err, quicktest.IsNil)
	defer dbMock.Close()
	conn := &Connection{db: dbMock, Type: MySQL}

	schemaRows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"COLUMN_NAME", "DATA_TYPE", "IS_NULLABLE", "IS_KEY"}).
			AddRow("mac_address", "varchar", false, true).
			AddRow("IP_Address", "varchar", true, false)
	}

	mock.ExpectQuery("FROM information_schema.COLUMNS").WithArgs("hosts").WillReturnRows(schemaRows())
	err = conn.CheckColumns(context.Background(), "hosts", []string{"mac_address", "ip_address"})
	c.Assert(err, quicktest.IsNil)

	mock.ExpectQuery("FROM information_schema.COLUMNS").WithArgs("hosts").WillReturnRows(schemaRows())
	err = conn.CheckColumns(context.Background(), "hosts", []string{"mac_address", "chart_color", "active"})
	c.Assert(err, quicktest.ErrorMatches, "table hosts is missing columns: chart_color, active")

	mock.ExpectQuery("FROM information_schema.COLUMNS").WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "DATA_TYPE", "IS_NULLABLE", "IS_KEY"}))
	err = conn.CheckColumns(context.Background(), "nope", []string{"a"})
	c.Assert(err, quicktest.ErrorMatches, "table nope does not exist")
}
