// Copyright 2020-2021 The OS-NVR Authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; version 2.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package config holds the engine's environment and persisted presets/profiles,
// grounded on the teacher's ConfigEnv (YAML-backed) and group.Manager (per-id
// JSON file persistence).
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// Env mirrors the MLT_* environment variables of §6.
type Env struct {
	DataDir    string `yaml:"dataDir"`    // MLT_DATA
	Profile    string `yaml:"profile"`    // MLT_PROFILE
	Repository string `yaml:"repository"` // MLT_REPOSITORY
	AVCacheLen int    `yaml:"avCacheLen"` // MLT_AVFORMAT_PRODUCER_CACHE
}

// NewEnvFromOS reads the MLT_* environment variables, falling back to
// reasonable defaults for any that are unset.
func NewEnvFromOS() Env {
	env := Env{
		DataDir:    os.Getenv("MLT_DATA"),
		Profile:    os.Getenv("MLT_PROFILE"),
		Repository: os.Getenv("MLT_REPOSITORY"),
		AVCacheLen: 4,
	}
	if env.DataDir == "" {
		env.DataDir = "/usr/share/mlt/data"
	}
	if env.Profile == "" {
		env.Profile = "atsc_720p_25"
	}
	return env
}

// ReadEnvFile parses a YAML environment file, the way the teacher's
// ConfigEnv is loaded from disk.
func ReadEnvFile(path string) (Env, error) {
	var env Env
	raw, err := os.ReadFile(path)
	if err != nil {
		return Env{}, fmt.Errorf("read env file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &env); err != nil {
		return Env{}, fmt.Errorf("unmarshal env file: %w", err)
	}
	return env, nil
}

// PresetsDir is where named property-bag presets are persisted.
func (e Env) PresetsDir() string {
	return filepath.Join(e.DataDir, "presets")
}

// CacheDir is where the service cache's durable overflow store lives.
func (e Env) CacheDir() string {
	return filepath.Join(e.DataDir, "cache")
}
