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

// package main is the entrypoint for the nimbus-go broker.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nimbusmq/nimbus-go/pkg/actor"
	"github.com/nimbusmq/nimbus-go/pkg/auth"
	"github.com/nimbusmq/nimbus-go/pkg/broker"
	"github.com/nimbusmq/nimbus-go/pkg/config"
	"github.com/nimbusmq/nimbus-go/pkg/logfile"
	"github.com/nimbusmq/nimbus-go/pkg/metrics"
	"github.com/nimbusmq/nimbus-go/pkg/persistent"
	"github.com/nimbusmq/nimbus-go/pkg/supervisor"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML or JSON configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logWriter, err := logfile.New(cfg.Broker.LogFile)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer logWriter.Close()
	log.SetOutput(logWriter)

	log.Printf("[INFO] Starting nimbus-go broker, node %s", cfg.Broker.NodeID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := auth.NewRegistry(cfg.Broker.LoginFile)
	defer registry.Close()

	b := broker.New(cfg.Broker.NodeID, registry, cfg.Key(), cfg.Broker.Protocol.AdminID)

	sup := supervisor.NewOneForOneSupervisor()
	specs := []supervisor.Spec{
		{
			ID:      "broker-engine",
			Actor:   b,
			Restart: supervisor.RestartPermanent,
			Mailbox: b.Mailbox(),
		},
	}

	if cfg.Broker.Persistence.BackupFile != "" {
		if cfg.Broker.Persistence.InitializeWithBackup {
			records, err := persistent.Load(cfg.Broker.Persistence.BackupFile)
			if err != nil {
				log.Printf("[WARN] Failed to read backup file, starting empty: %v", err)
			} else if records != nil {
				log.Printf("[INFO] Restoring broker state from %s", cfg.Broker.Persistence.BackupFile)
				b.Restore(records)
			}
		}

		persistMailbox := actor.NewMailbox()
		b.EnableBackups(persistMailbox, time.Duration(cfg.Broker.Persistence.BackupIntervalSeconds)*time.Second)
		specs = append(specs, supervisor.Spec{
			ID:      "persistence-manager",
			Actor:   persistent.NewManager(cfg.Broker.Persistence.BackupFile),
			Restart: supervisor.RestartPermanent,
			Mailbox: persistMailbox,
		})
	}

	if err := sup.Start(ctx, specs); err != nil {
		log.Fatalf("Failed to start supervisor: %v", err)
	}

	go func() {
		if err := b.StartServer(ctx, cfg.Broker.ListenAddress); err != nil {
			log.Fatalf("Broker server failed: %v", err)
		}
	}()

	go metrics.Serve(cfg.Broker.MetricsPort)

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)
	<-shutdownChan

	log.Printf("[INFO] Shutdown signal received, shutting down")
}
