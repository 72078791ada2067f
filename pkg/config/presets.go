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

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Preset is a named set of property assignments, persisted one JSON file per
// id, the way the teacher's group.Manager persists group configs.
type Preset map[string]string

// ID returns the preset's id.
func (p Preset) ID() string { return p["id"] }

type presets map[string]Preset

// PresetManager manages on-disk presets.
type PresetManager struct {
	path    string
	presets presets
	mu      sync.Mutex
}

// NewPresetManager loads every *.json file under path.
func NewPresetManager(path string) (*PresetManager, error) {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return nil, fmt.Errorf("could not create presets directory: %w", err)
	}

	files, err := readConfigs(path)
	if err != nil {
		return nil, fmt.Errorf("could not read preset files: %w", err)
	}

	all := make(presets)
	for _, file := range files {
		var p Preset
		if err := json.Unmarshal(file, &p); err != nil {
			return nil, fmt.Errorf("could not unmarshal preset: %w", err)
		}
		all[p.ID()] = p
	}

	return &PresetManager{path: path, presets: all}, nil
}

func readConfigs(path string) ([][]byte, error) {
	var files [][]byte
	err := filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if strings.HasSuffix(p, ".json") {
			file, err := os.ReadFile(p)
			if err != nil {
				return fmt.Errorf("could not read file: %v: %w", p, err)
			}
			files = append(files, file)
		}
		return nil
	})
	return files, err
}

// Set creates or replaces a preset and persists it to disk.
func (m *PresetManager) Set(id string, p Preset) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.presets[id] = p

	raw, err := json.MarshalIndent(p, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal preset: %w", err)
	}
	return os.WriteFile(m.configPath(id), raw, 0o600)
}

// ErrPresetNotExist is returned by Delete when id is unknown.
var ErrPresetNotExist = errors.New("preset does not exist")

// Delete removes a preset by id.
func (m *PresetManager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.presets[id]; !exists {
		return ErrPresetNotExist
	}
	delete(m.presets, id)
	return os.Remove(m.configPath(id))
}

// Get returns a preset by id.
func (m *PresetManager) Get(id string) (Preset, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.presets[id]
	return p, ok
}

// Names returns every known preset id.
func (m *PresetManager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.presets))
	for id := range m.presets {
		names = append(names, id)
	}
	return names
}

func (m *PresetManager) configPath(id string) string {
	return filepath.Join(m.path, id+".json")
}
