package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

type DBType string

const (
	MySQL      DBType = "mysql"
	PostgreSQL DBType = "postgres"
)

// Connection represents a database connection
type Connection struct {
	db      *sql.DB
	Type    DBType
	verbose func(query string)
}

// Option configures a Connection
type Option func(*Connection)

// WithQueryLog calls fn with every statement before it runs
func WithQueryLog(fn func(query string)) Option {
	return func(c *Connection) {
		c.verbose = fn
	}
}

// TypeFromURL returns the dialect named by the URL scheme
func TypeFromURL(dbURL string) (DBType, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return "", fmt.Errorf("invalid database URL: %w", err)
	}
	switch u.Scheme {
	case "mysql":
		return MySQL, nil
	case "postgres", "postgresql":
		return PostgreSQL, nil
	default:
		return "", fmt.Errorf("unsupported database type: %s", u.Scheme)
	}
}

// dsn converts the URL form into what the driver expects
func dsn(dbURL string) (DBType, string, error) {
	dbType, err := TypeFromURL(dbURL)
	if err != nil {
		return "", "", err
	}
	if dbType == PostgreSQL {
		return dbType, dbURL, nil
	}

	u, _ := url.Parse(dbURL)
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}
	cfg.ParseTime = true
	return dbType, cfg.FormatDSN(), nil
}

// Connect establishes a database connection from a URL string
func Connect(ctx context.Context, dbURL string, opts ...Option) (*Connection, error) {
	dbType, dataSource, err := dsn(dbURL)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(string(dbType), dataSource)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	// The persistence worker is the only user; one connection keeps
	// statement order identical to dequeue order.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewConnection(db, dbType, opts...), nil
}

// NewConnection wraps an already opened database
func NewConnection(db *sql.DB, dbType DBType, opts ...Option) *Connection {
	conn := &Connection{db: db, Type: dbType}
	for _, opt := range opts {
		opt(conn)
	}
	return conn
}

// Close closes the database connection
func (c *Connection) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *Connection) logQuery(query string) {
	if c.verbose != nil {
		c.verbose(query)
	}
}

// IsConnectionLost reports whether err means the session to the store is gone
// and a new connection has to be opened.
func IsConnectionLost(err error) bool {
	return errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, mysql.ErrInvalidConn)
}
