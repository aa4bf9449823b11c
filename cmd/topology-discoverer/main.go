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

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/apecloud/pgtopology/internal/discovery"
	"github.com/apecloud/pgtopology/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// dsnList accumulates repeated -dsn flags into an ordered list, preserving
// the index-is-the-handle contract the discoverer relies on.
type dsnList []string

func (d *dsnList) String() string {
	return strings.Join(*d, ",")
}

func (d *dsnList) Set(value string) error {
	*d = append(*d, value)
	return nil
}

var (
	dsns       dsnList
	listenAddr = "0.0.0.0:9187"
	logLevel   = int(logrus.InfoLevel)
)

func init() {
	flag.Var(&dsns, "dsn", "A candidate PostgreSQL connection string. May be repeated; order is the stable index handle used in published views.")
	flag.StringVar(&listenAddr, "listen-address", listenAddr, "Address to serve /metrics and /debug/topology on.")
	flag.IntVar(&logLevel, "loglevel", logLevel, "The log level to use.")
}

func main() {
	flag.Parse()
	logrus.SetLevel(logrus.Level(logLevel))

	if len(dsns) == 0 {
		logrus.Fatalln("at least one -dsn is required")
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector()
	registry.MustRegister(collector)

	d, err := discovery.New(context.Background(), dsns, discovery.WithRecorder(collector))
	if err != nil {
		logrus.WithError(err).Fatalln("failed to start topology discoverer")
	}

	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	http.HandleFunc("/debug/topology", debugTopologyHandler(d))

	server := &http.Server{Addr: listenAddr}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatalln("debug/metrics server failed")
		}
	}()

	logrus.WithField("listen_address", listenAddr).Info("topology discoverer started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logrus.Info("shutting down")
	_ = server.Shutdown(context.Background())
	d.Close()
}

// debugTopologyView is the read-only JSON rendering of the two published
// views, standing in for the "consumer request router" spec.md treats as
// an external collaborator. It opens no PostgreSQL connections itself.
type debugTopologyView struct {
	AliveByRtt    []int            `json:"alive_by_rtt"`
	IndicesByRole map[string][]int `json:"indices_by_role"`
}

func debugTopologyHandler(d *discovery.Discoverer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		byRole := d.GetIndicesByRole()
		rendered := make(map[string][]int, len(byRole))
		for role, indices := range byRole {
			rendered[role.String()] = indices
		}

		view := debugTopologyView{
			AliveByRtt:    d.GetAliveDsnIndices(),
			IndicesByRole: rendered,
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(view); err != nil {
			logrus.WithError(err).Warn("failed to encode topology view")
			http.Error(w, fmt.Sprintf("encode error: %v", err), http.StatusInternalServerError)
		}
	}
}
