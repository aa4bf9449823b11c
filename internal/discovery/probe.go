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
	"time"

	"github.com/apecloud/pgtopology/internal/sstandby"
	"github.com/sirupsen/logrus"
)

// checkTimeout is the single deadline governing connect, read-only check
// and (when the host is a master) the synchronous_standby_names query,
// collectively, for one probe.
const checkTimeout = time.Second

var probeLog = logrus.WithField("component", "probe")

// Recorder receives observability side-effects of a probe cycle. It is
// implemented by *internal/metrics.Collector; tests may supply a no-op or
// recording fake. Nothing in Recorder affects control flow.
type Recorder interface {
	ObserveHost(index int, appName, role string, rttMicros float64)
	IncProbeFailure(index int)
	ObserveCycle(seconds float64)
}

// noopRecorder discards every observation; used when no Recorder is
// supplied.
type noopRecorder struct{}

func (noopRecorder) ObserveHost(int, string, string, float64) {}
func (noopRecorder) IncProbeFailure(int)                      {}
func (noopRecorder) ObserveCycle(float64)                     {}

// runCheck probes one host and updates its hostState in place. It never
// returns an error: every failure is captured and converted into
// role=None, matching the "per-host errors never escape RunCheck"
// propagation policy.
//
// The five state fields (conn, role, rtt, detectedSyncSlaves, plus the
// implicit "is this a valid result") move together: an armed reset guard
// clears all of them unless explicitly released at the very end, so a
// probe that fails partway through never leaves a mix of stale and fresh
// fields behind.
func runCheck(ctx context.Context, index int, h *hostState, connect Connector, collector Recorder) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	h.mu.Lock()
	conn := h.conn
	h.mu.Unlock()

	released := false
	defer func() {
		if released {
			return
		}
		h.mu.Lock()
		h.reset()
		h.mu.Unlock()
		collector.ObserveHost(index, h.appName, RoleNone.String(), 0)
		collector.IncProbeFailure(index)
	}()

	dropConn := func() {
		if conn != nil {
			_ = conn.Close(context.Background())
			conn = nil
		}
	}

	if conn == nil {
		var err error
		conn, err = connect(ctx, h.dsn)
		if err != nil {
			probeLog.WithFields(logrus.Fields{"index": index, "app_name": h.appName}).
				WithError(err).Warn("failed to connect to candidate host")
			return
		}
	}

	t0 := time.Now()
	readOnly, err := conn.CheckReadOnly(ctx)
	if err != nil {
		probeLog.WithFields(logrus.Fields{"index": index, "app_name": h.appName}).
			WithError(err).Warn("read-only check failed, dropping connection")
		dropConn()
		return
	}
	rtt := time.Since(t0)

	role := RoleSlave
	if !readOnly {
		role = RoleMaster
	}

	var syncSlaves []string
	if role == RoleMaster {
		raw, err := conn.Execute(ctx, "SHOW synchronous_standby_names")
		if err != nil {
			probeLog.WithFields(logrus.Fields{"index": index, "app_name": h.appName}).
				WithError(err).Warn("failed to read synchronous_standby_names, dropping connection")
			dropConn()
			return
		}
		syncSlaves = sstandby.Parse(raw)
	}

	h.mu.Lock()
	h.conn = conn
	h.role = role
	h.rtt = rtt
	h.detectedSyncSlaves = syncSlaves
	h.mu.Unlock()

	collector.ObserveHost(index, h.appName, role.String(), float64(rtt.Microseconds()))
	released = true
}
