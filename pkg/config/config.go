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

// Package config provides configuration management for nimbus-go: the broker
// listen address, the shared packet encryption key, and the file paths and
// intervals used by authentication, logging and backup persistence.
package config

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"log"
	"path/filepath"
	"strings"

	"github.com/nimbusmq/nimbus-go/pkg/encryption"
	"gopkg.in/yaml.v2"
)

// ProtocolConfig holds the settings shared by every connection: the symmetric
// packet key and the administrator identity allowed to register new clients.
type ProtocolConfig struct {
	// Key is the AES-256 packet key. It must be exactly 32 bytes long and
	// identical on every client that talks to this broker.
	Key string `yaml:"key" json:"key"`
	// AdminID names the client that may publish to the registration topic.
	AdminID string `yaml:"admin_id" json:"admin_id"`
}

// PersistenceConfig holds the backup and restore settings.
type PersistenceConfig struct {
	// BackupFile is the snapshot path. Empty disables periodic backups.
	BackupFile string `yaml:"backup_file" json:"backup_file"`
	// BackupIntervalSeconds is the period between snapshots.
	BackupIntervalSeconds int `yaml:"backup_interval_seconds" json:"backup_interval_seconds"`
	// InitializeWithBackup restores broker state from BackupFile on startup.
	InitializeWithBackup bool `yaml:"initialize_with_backup" json:"initialize_with_backup"`
}

// BrokerConfig represents the broker-level configuration.
type BrokerConfig struct {
	NodeID        string            `yaml:"node_id" json:"node_id"`
	ListenAddress string            `yaml:"listen_address" json:"listen_address"`
	MetricsPort   string            `yaml:"metrics_port" json:"metrics_port"`
	LogFile       string            `yaml:"log_file" json:"log_file"`
	LoginFile     string            `yaml:"login_file" json:"login_file"`
	Protocol      ProtocolConfig    `yaml:"protocol" json:"protocol"`
	Persistence   PersistenceConfig `yaml:"persistence" json:"persistence"`
}

// Config represents the complete nimbus-go configuration.
type Config struct {
	Broker BrokerConfig `yaml:"broker" json:"broker"`
}

// DefaultConfig returns a configuration with sensible defaults for a local
// single-node broker.
func DefaultConfig() *Config {
	return &Config{
		Broker: BrokerConfig{
			NodeID:        "nimbus-go-node",
			ListenAddress: ":1883",
			MetricsPort:   ":8082",
			LogFile:       "nimbus.log",
			LoginFile:     "logins.txt",
			Protocol: ProtocolConfig{
				Key:     strings.Repeat("0", encryption.KeySize),
				AdminID: "admin",
			},
			Persistence: PersistenceConfig{
				BackupFile:            "backup.txt",
				BackupIntervalSeconds: 60,
				InitializeWithBackup:  false,
			},
		},
	}
}

// LoadConfig loads configuration from a YAML or JSON file.
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		return DefaultConfig(), nil
	}

	data, err := ioutil.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	config := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(configPath))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log.Printf("[INFO] Configuration loaded from %s", configPath)
	return config, nil
}

// SaveConfig saves configuration to a YAML or JSON file.
func SaveConfig(config *Config, configPath string) error {
	var data []byte
	var err error

	ext := strings.ToLower(filepath.Ext(configPath))
	switch ext {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(config)
	case ".json":
		data, err = json.MarshalIndent(config, "", "  ")
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := ioutil.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", configPath, err)
	}

	log.Printf("[INFO] Configuration saved to %s", configPath)
	return nil
}

// Key returns the packet encryption key as a byte slice.
func (c *Config) Key() []byte {
	return []byte(c.Broker.Protocol.Key)
}

// validateConfig validates the configuration.
func validateConfig(config *Config) error {
	if config.Broker.NodeID == "" {
		return fmt.Errorf("broker node_id cannot be empty")
	}

	if config.Broker.ListenAddress == "" {
		return fmt.Errorf("broker listen_address cannot be empty")
	}

	if len(config.Broker.Protocol.Key) != encryption.KeySize {
		return fmt.Errorf("protocol key must be exactly %d bytes, got %d",
			encryption.KeySize, len(config.Broker.Protocol.Key))
	}

	if config.Broker.Protocol.AdminID == "" {
		return fmt.Errorf("protocol admin_id cannot be empty")
	}

	if config.Broker.Persistence.BackupIntervalSeconds <= 0 {
		return fmt.Errorf("persistence backup_interval_seconds must be positive")
	}

	return nil
}
