package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPidState_CommitAndLoad(t *testing.T) {
	dir := t.TempDir()
	p := NewPidState(dir)

	p.PersistPid("g", "m", "i1", 111)
	p.PersistPid("g", "m", "i2", 222)

	if err := p.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	loaded, err := NewPidState(dir).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded["g/m/i1"] != 111 || loaded["g/m/i2"] != 222 {
		t.Errorf("Load() = %v, want pids 111 and 222", loaded)
	}
}

func TestPidState_LoadMissingFileIsNotError(t *testing.T) {
	dir := t.TempDir()
	loaded, err := NewPidState(dir).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded != nil {
		t.Errorf("Load() = %v, want nil for missing file", loaded)
	}
}

func TestPidState_Clear(t *testing.T) {
	dir := t.TempDir()
	p := NewPidState(dir)
	p.PersistPid("g", "m", "i1", 111)
	if err := p.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	if err := p.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	if _, err := NewPidState(dir).Load(); err != nil {
		t.Fatalf("Load() after Clear() error = %v", err)
	}
	path := filepath.Join(dir, "pidstate.json")
	if _, statErr := os.Stat(path); statErr == nil {
		t.Errorf("expected %s to be removed after Clear()", path)
	}
}
