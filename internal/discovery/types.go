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

// Package discovery implements the PostgreSQL cluster topology discoverer:
// periodic per-host probing, role classification and RTT ranking,
// published as two read-optimized snapshots for a high-throughput reader
// path.
package discovery

import (
	"context"
	"sync"
	"time"
)

// Connection is the contract a probe connection must satisfy: the wire
// connection itself is an external collaborator (see internal/pgprobe for
// the concrete pgx-backed implementation), swappable in tests for a fake.
type Connection interface {
	CheckReadOnly(ctx context.Context) (bool, error)
	Execute(ctx context.Context, sql string) (string, error)
	Close(ctx context.Context) error
}

// Connector establishes a new Connection to dsn, failing with a
// recoverable connection error on any connect failure.
type Connector func(ctx context.Context, dsn string) (Connection, error)

// HostRole classifies a candidate host as last observed by the discoverer.
type HostRole uint8

const (
	// RoleNone means the host is unreachable, or has not yet been probed.
	RoleNone HostRole = iota
	// RoleMaster means the host answered the read-only check as read-write.
	RoleMaster
	// RoleSlave means the host is a read-only replica not known to be
	// synchronous.
	RoleSlave
	// RoleSyncSlave means the host is a read-only replica whose app name
	// was listed by the cluster's master as a synchronous standby.
	RoleSyncSlave
)

func (r HostRole) String() string {
	switch r {
	case RoleMaster:
		return "master"
	case RoleSlave:
		return "slave"
	case RoleSyncSlave:
		return "sync_slave"
	default:
		return "none"
	}
}

// unknownRTT is the sentinel RTT value for a host with RoleNone.
const unknownRTT = time.Duration(-1)

// hostState is one candidate host's state, owned exclusively by the
// discoverer for its lifetime. It is mutated only by its own probe task
// between publish points; never shared across probe tasks.
type hostState struct {
	dsn     string
	appName string

	mu sync.Mutex

	conn               Connection
	role               HostRole
	rtt                time.Duration
	detectedSyncSlaves []string
}

func newHostState(dsn, appName string) *hostState {
	return &hostState{
		dsn:     dsn,
		appName: appName,
		role:    RoleNone,
		rtt:     unknownRTT,
	}
}

// reset clears role, rtt and detectedSyncSlaves and drops the connection.
// It does not close the connection; callers that are dropping a possibly
// broken connection must close it themselves first.
func (h *hostState) reset() {
	h.conn = nil
	h.role = RoleNone
	h.rtt = unknownRTT
	h.detectedSyncSlaves = nil
}

// closeConn synchronously closes and clears the probe connection, if any.
func (h *hostState) closeConn(ctx context.Context) {
	h.mu.Lock()
	conn := h.conn
	h.conn = nil
	h.mu.Unlock()

	if conn != nil {
		_ = conn.Close(ctx)
	}
}

// snapshot is the immutable view of a hostState's fields taken after a
// probe cycle, used by DiscoveryLoop's aggregation step without holding
// hostState's lock across the whole cycle.
type snapshot struct {
	index              int
	appName            string
	role               HostRole
	rtt                time.Duration
	detectedSyncSlaves []string
}

func (h *hostState) snapshot(index int) snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return snapshot{
		index:              index,
		appName:            h.appName,
		role:               h.role,
		rtt:                h.rtt,
		detectedSyncSlaves: append([]string(nil), h.detectedSyncSlaves...),
	}
}
