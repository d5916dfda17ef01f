// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads the YAML bootstrap configuration for the modcore
// kernel: where module data lives on disk, and the tuning knobs for the
// scheduler, async task manager, and metrics server.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound is returned by Load when the given path does not exist.
var ErrConfigNotFound = errors.New("config file not found")

// SchedulerConfig tunes the cooperative scheduler (C5).
type SchedulerConfig struct {
	MaxTasksPerTick int `yaml:"max_tasks_per_tick"`
}

// AsyncConfig tunes the async task manager (C6).
type AsyncConfig struct {
	MaxRunningTasks int `yaml:"max_running_tasks"`
	MaxPendingTasks int `yaml:"max_pending_tasks"`
	MaxTasksPerTick int `yaml:"max_tasks_per_tick"`
	// HistoryLimit is parsed and defaulted but not passed to the async
	// task manager, whose history cap is fixed at 100 terminal tasks.
	HistoryLimit int `yaml:"history_limit"`
}

// MetricsConfig controls the optional prometheus HTTP endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Config is the root kernel configuration.
type Config struct {
	DataRoot  string          `yaml:"data_root"`
	LogLevel  string          `yaml:"log_level"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Async     AsyncConfig     `yaml:"async"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// Default returns a Config with sane defaults applied.
func Default() *Config {
	return &Config{
		DataRoot: "./modcore_data",
		LogLevel: "info",
		Scheduler: SchedulerConfig{
			MaxTasksPerTick: 10,
		},
		Async: AsyncConfig{
			MaxRunningTasks: 16,
			MaxPendingTasks: 128,
			MaxTasksPerTick: 10,
			HistoryLimit:    100,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9090",
		},
	}
}

// Load reads and parses a YAML config file, filling in defaults for any
// field the file omits. Returns ErrConfigNotFound if path does not exist.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	//nolint:gosec // G304: path is an operator-supplied config location
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	d := Default()
	if cfg.DataRoot == "" {
		cfg.DataRoot = d.DataRoot
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = d.LogLevel
	}
	if cfg.Scheduler.MaxTasksPerTick <= 0 {
		cfg.Scheduler.MaxTasksPerTick = d.Scheduler.MaxTasksPerTick
	}
	if cfg.Async.MaxRunningTasks <= 0 {
		cfg.Async.MaxRunningTasks = d.Async.MaxRunningTasks
	}
	if cfg.Async.MaxPendingTasks <= 0 {
		cfg.Async.MaxPendingTasks = d.Async.MaxPendingTasks
	}
	if cfg.Async.MaxTasksPerTick <= 0 {
		cfg.Async.MaxTasksPerTick = d.Async.MaxTasksPerTick
	}
	if cfg.Async.HistoryLimit <= 0 {
		cfg.Async.HistoryLimit = d.Async.HistoryLimit
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = d.Metrics.Addr
	}
}
