// Package store implements the on-disk JSON persistence for AppConfig
// and the advisory TargetState cache, using the tmp+rename
// atomic-replace pattern throughout so a crash mid-write never leaves
// a half-written file at the destination path.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/netwatch/netwatch/pkg/model"
)

// CacheEntry is one element of the cache.json array.
type CacheEntry struct {
	ID           string              `json:"id"`
	Records      []model.ProbeRecord `json:"records"`
	CurrentState bool                `json:"current_state"`
}

// LoadConfig reads and parses path. If path does not exist, it writes
// a default AppConfig to path and returns that default, so a fresh
// deployment gets a usable config file on its very first run.
func LoadConfig(path string) (model.AppConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		def := model.AppConfig{
			Targets:           []model.Target{},
			Alert:             model.AlertConfig{Webhooks: []model.WebhookConfig{}},
			DataRetentionDays: model.DefaultDataRetentionDays,
		}
		if writeErr := SaveConfig(path, def); writeErr != nil {
			return model.AppConfig{}, fmt.Errorf("write default config: %w", writeErr)
		}
		return def, nil
	}
	if err != nil {
		return model.AppConfig{}, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := model.AppConfig{DataRetentionDays: model.DefaultDataRetentionDays}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return model.AppConfig{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path via tmp+rename.
func SaveConfig(path string, cfg model.AppConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return atomicWrite(path, data)
}

// LoadCache reads cache.json at path. Any read or parse failure is
// treated as "no cache" — the cache is advisory history, never the
// source of truth, so callers should log the error themselves and
// proceed with an empty slice rather than fail startup.
func LoadCache(path string) ([]CacheEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []CacheEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// SaveCache writes entries to path via tmp+rename.
func SaveCache(path string, entries []CacheEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}
	return atomicWrite(path, data)
}

// atomicWrite writes data to a sibling temp file and renames it over
// path, so readers never observe a partially written file. Grounded on
// the tmp+rename cache-save convention used elsewhere in the pack.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", closeErr)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
