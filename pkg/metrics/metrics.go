// Copyright 2025 The nimbus-go Authors
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

// package metrics provides Prometheus metrics for the application.
package metrics

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsTotal is a counter for the total number of connections.
	ConnectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nimbus_go_connections_total",
		Help: "The total number of connections made to the broker.",
	})

	// PacketsReceivedTotal counts decoded packets by type.
	PacketsReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nimbus_go_packets_received_total",
		Help: "The total number of packets received, by packet type.",
	},
		[]string{"type"},
	)

	// MessagesRoutedTotal counts publish messages delivered to subscribers.
	MessagesRoutedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nimbus_go_messages_routed_total",
		Help: "The total number of publish messages routed to active subscribers.",
	})

	// MessagesQueuedOffline counts publish messages queued for inactive clients.
	MessagesQueuedOffline = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nimbus_go_messages_queued_offline_total",
		Help: "The total number of publish messages queued for disconnected clients.",
	})

	// RetainedMessages gauges the number of retained messages held.
	RetainedMessages = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nimbus_go_retained_messages",
		Help: "The current number of retained messages stored by the broker.",
	})

	// AuthFailuresTotal counts rejected connection attempts.
	AuthFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nimbus_go_auth_failures_total",
		Help: "The total number of connections refused by the authentication store.",
	})

	// BackupsTotal counts state snapshots written to the backup file.
	BackupsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nimbus_go_backups_total",
		Help: "The total number of backup snapshots written.",
	})

	// SupervisorRestartsTotal is a counter for the total number of supervisor restarts.
	SupervisorRestartsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nimbus_go_supervisor_restarts_total",
		Help: "The total number of times a supervised actor has been restarted.",
	},
		[]string{"actor_id"},
	)
)

// Serve starts an HTTP server to expose the Prometheus metrics.
func Serve(addr string) {
	http.Handle("/metrics", promhttp.Handler())
	log.Printf("Metrics server listening on %s", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		logFatalf("Metrics server failed: %v", err)
	}
}

// logFatalf can be replaced by tests to prevent process exit.
var logFatalf = log.Fatalf
