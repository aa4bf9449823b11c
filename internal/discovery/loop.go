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

package discovery

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/apecloud/pgtopology/internal/periodic"
	"github.com/apecloud/pgtopology/internal/pgprobe"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DiscoveryInterval is the default cadence of a full discovery cycle.
const DiscoveryInterval = time.Second

var loopLog = logrus.WithField("component", "discovery")

// Discoverer continuously classifies a fixed list of candidate PostgreSQL
// hosts and publishes two read-optimized views of the result: hosts alive
// ordered by RTT, and a role-to-hosts index. Construction runs the first
// discovery cycle synchronously so no caller ever observes the
// pre-initialized, empty state.
type Discoverer struct {
	dsns  []string
	hosts []*hostState

	views     *views
	connect   Connector
	collector Recorder

	ticker *periodic.Task
}

// defaultConnector wraps pgprobe.Connect, upcasting its concrete *Conn to
// the Connection interface this package depends on.
func defaultConnector(ctx context.Context, dsn string) (Connection, error) {
	return pgprobe.Connect(ctx, dsn)
}

// Option configures a Discoverer at construction time.
type Option func(*Discoverer)

// WithConnector overrides the connector used to establish probe
// connections. Intended for tests; production callers should leave this
// at its pgx-backed default.
func WithConnector(connect Connector) Option {
	return func(d *Discoverer) { d.connect = connect }
}

// WithRecorder overrides the observability Recorder. Defaults to a no-op
// if not supplied.
func WithRecorder(collector Recorder) Option {
	return func(d *Discoverer) { d.collector = collector }
}

// New constructs a Discoverer over dsns and runs the first discovery cycle
// before returning. dsns is never mutated and is stable for the lifetime
// of the Discoverer.
func New(ctx context.Context, dsns []string, opts ...Option) (*Discoverer, error) {
	hosts := make([]*hostState, len(dsns))
	for i, dsn := range dsns {
		appName, err := deriveAppName(dsn)
		if err != nil {
			return nil, err
		}
		hosts[i] = newHostState(dsn, appName)
	}

	d := &Discoverer{
		dsns:      append([]string(nil), dsns...),
		hosts:     hosts,
		views:     newViews(),
		connect:   defaultConnector,
		collector: noopRecorder{},
	}
	for _, opt := range opts {
		opt(d)
	}

	d.runDiscovery(ctx)
	d.ticker = periodic.Start(DiscoveryInterval, func() {
		d.runDiscovery(context.Background())
	})

	return d, nil
}

// GetDsnList returns the immutable, ordered list of candidate DSNs.
func (d *Discoverer) GetDsnList() []string {
	return d.dsns
}

// GetAliveDsnIndices returns the current AliveByRtt snapshot.
func (d *Discoverer) GetAliveDsnIndices() []int {
	return d.views.AliveByRtt()
}

// GetIndicesByRole returns the current IndicesByRole snapshot.
func (d *Discoverer) GetIndicesByRole() IndicesByRole {
	return d.views.IndicesByRole()
}

// Close stops the periodic discovery cycle and synchronously closes every
// host's probe connection. It blocks until any in-flight cycle completes.
func (d *Discoverer) Close() {
	d.ticker.Stop()
	for _, h := range d.hosts {
		h.closeConn(context.Background())
	}
}

// runDiscovery performs one full cycle: fan out a probe per host, join
// them all, promote sync-slaves by name match, sort alive hosts by RTT,
// and publish. It always publishes, even if every host is unreachable.
func (d *Discoverer) runDiscovery(ctx context.Context) {
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for i, h := range d.hosts {
		i, h := i, h
		g.Go(func() error {
			runCheck(gctx, i, h, d.connect, d.collector)
			return nil
		})
	}
	// runCheck never returns an error; Wait only blocks for the join.
	_ = g.Wait()

	snaps := make([]snapshot, 0, len(d.hosts))
	for i, h := range d.hosts {
		s := h.snapshot(i)
		if s.role != RoleNone {
			snaps = append(snaps, s)
		}
	}

	promoteSyncSlaves(snaps)

	sort.SliceStable(snaps, func(i, j int) bool {
		return snaps[i].rtt < snaps[j].rtt
	})

	alive := make([]int, len(snaps))
	for i, s := range snaps {
		alive[i] = s.index
	}

	byRole := buildIndicesByRole(snaps)

	d.views.publishAliveByRtt(alive)
	d.views.publishIndicesByRole(byRole)

	d.collector.ObserveCycle(time.Since(start).Seconds())
	loopLog.WithFields(logrus.Fields{
		"alive": len(alive),
		"total": len(d.hosts),
	}).Debug("discovery cycle published")
}

// promoteSyncSlaves finds the unique master in snaps (if any) and, for
// every name in its detectedSyncSlaves, promotes every snapshot whose
// app name matches case-insensitively from Slave to SyncSlave. With no
// master, or more than one, nothing is promoted. Quadratic in
// |snaps| x |sync names|, acceptable at expected cluster sizes.
func promoteSyncSlaves(snaps []snapshot) {
	var syncNames []string
	masters := 0
	for _, s := range snaps {
		if s.role == RoleMaster {
			masters++
			syncNames = s.detectedSyncSlaves
		}
	}
	if masters != 1 || len(syncNames) == 0 {
		return
	}

	for i := range snaps {
		if snaps[i].role != RoleSlave {
			continue
		}
		for _, name := range syncNames {
			if strings.EqualFold(snaps[i].appName, name) {
				snaps[i].role = RoleSyncSlave
				break
			}
		}
	}
}

// buildIndicesByRole iterates snaps in their already-RTT-sorted order and
// buckets each index by role, additionally appending SyncSlave indices to
// the Slave bucket.
func buildIndicesByRole(snaps []snapshot) IndicesByRole {
	byRole := IndicesByRole{}
	for _, s := range snaps {
		byRole[s.role] = append(byRole[s.role], s.index)
		if s.role == RoleSyncSlave {
			byRole[RoleSlave] = append(byRole[RoleSlave], s.index)
		}
	}
	return byRole
}
