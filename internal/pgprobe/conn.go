// Copyright 2024-2025 ApeCloud, Ltd.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package pgprobe implements the single dedicated probe connection used by
// the topology discoverer. It is the concrete realization of the
// connection contract the discoverer treats as an external collaborator:
// Connect, CheckReadOnly, Execute, Close.
package pgprobe

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SentinelApplicationName is a constant, stable identifier stamped onto
// every probe connection's application_name startup parameter so that
// probe traffic is trivially greppable in server-side logs and
// pg_stat_activity. It is cosmetic: it plays no role in role classification
// or sync-standby matching.
var SentinelApplicationName = "pgtopology-probe-" + uuid.MustParse("6ae6c6b0-9a8f-4c2e-8a27-1a8f2a6f7d3e").String()

// Conn is a single dedicated probe connection to one candidate host.
type Conn struct {
	pg *pgx.Conn
}

// Connect establishes a new probe connection to dsn. The connection is
// tagged with SentinelApplicationName and must complete (including TCP
// handshake and authentication) before ctx's deadline.
func Connect(ctx context.Context, dsn string) (*Conn, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pgprobe: parse dsn: %w", err)
	}
	cfg.RuntimeParams["application_name"] = SentinelApplicationName

	pg, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgprobe: connect: %w", err)
	}
	return &Conn{pg: pg}, nil
}

// CheckReadOnly reports whether the connected server is currently a
// read-only standby. It returns true for replicas (including promoted-but-
// still-recovering standbys) and false for a read-write primary.
func (c *Conn) CheckReadOnly(ctx context.Context) (bool, error) {
	var inRecovery bool
	if err := c.pg.QueryRow(ctx, "SELECT pg_is_in_recovery()").Scan(&inRecovery); err != nil {
		return false, fmt.Errorf("pgprobe: check read-only: %w", err)
	}
	return inRecovery, nil
}

// Execute runs a query expected to return a single row with a single
// textual column, such as SHOW synchronous_standby_names. A query that
// returns no rows yields the empty string, not an error.
func (c *Conn) Execute(ctx context.Context, sql string) (string, error) {
	var value string
	err := c.pg.QueryRow(ctx, sql).Scan(&value)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("pgprobe: execute %q: %w", sql, err)
	}
	return value, nil
}

// Close synchronously closes the underlying connection. Safe to call on a
// connection whose server has already gone away.
func (c *Conn) Close(ctx context.Context) error {
	return c.pg.Close(ctx)
}
