// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

const (
	dbDriver   = "mysql"
	dbPoolSize = 4
	dbConnLife = 30 * time.Minute
	dbTimeout  = 5
)

var ErrBadDSN = fmt.Errorf("history database DSN is required")

type SQLClient struct {
	db      *sql.DB
	timeout time.Duration
}

func (sc *SQLClient) context(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, sc.timeout)
}

func (sc *SQLClient) Close() error {
	if sc.db != nil {
		err := sc.db.Close()
		sc.db = nil
		return err
	}
	return nil
}

func (sc *SQLClient) GetDB() *sql.DB {
	return sc.db
}

func (sc *SQLClient) Ping(ctx context.Context) error {
	ctx, cancel := sc.context(ctx)
	defer cancel()
	return sc.db.PingContext(ctx)
}

// NewSQLClient opens and pings a MySQL/MariaDB connection. timeout is in
// seconds and bounds every statement.
func NewSQLClient(ctx context.Context, dsn string, timeout int) (*SQLClient, error) {
	if dsn == "" {
		return nil, ErrBadDSN
	}

	db, err := sql.Open(dbDriver, dsn)
	if err != nil {
		return nil, err
	}

	db.SetConnMaxLifetime(dbConnLife)
	db.SetMaxOpenConns(dbPoolSize)
	db.SetMaxIdleConns(dbPoolSize)

	if timeout < 1 {
		timeout = dbTimeout
	}

	sc := &SQLClient{
		db:      db,
		timeout: time.Duration(timeout) * time.Second,
	}

	if err = sc.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return sc, nil
}
