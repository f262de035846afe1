package config

import (
	"strings"
	"testing"

	"github.com/nocturnehq/nocturne/errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Action != ActionNone {
		t.Errorf("Action = %v, want none", cfg.Action)
	}
	if cfg.SettingsPath == "" || cfg.LibraryPath == "" {
		t.Error("file paths should have defaults")
	}
	if len(cfg.Files) != 0 {
		t.Errorf("Files = %v, want empty", cfg.Files)
	}
}

func TestLoadSingleAction(t *testing.T) {
	tests := []struct {
		flag string
		want Action
	}{
		{"--play-pause", ActionPlayPause},
		{"--play", ActionPlay},
		{"--pause", ActionPause},
		{"--stop", ActionStop},
		{"--previous", ActionPrevious},
		{"--next", ActionNext},
	}

	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			cfg, err := Load([]string{tt.flag})
			if err != nil {
				t.Fatalf("Load(%s) error: %v", tt.flag, err)
			}
			if cfg.Action != tt.want {
				t.Errorf("Action = %v, want %v", cfg.Action, tt.want)
			}
		})
	}
}

func TestLoadExclusiveActions(t *testing.T) {
	_, err := Load([]string{"--play-pause", "--stop"})
	if err == nil {
		t.Fatal("Load should refuse two one-shot actions")
	}
	if !errors.IsCategory(err, errors.CategoryConfig) {
		t.Errorf("error category = %v, want config", err)
	}
	if !strings.Contains(err.Error(), "--play-pause") {
		t.Errorf("error should name the exclusive set: %v", err)
	}
}

func TestLoadFilesAndOverrides(t *testing.T) {
	cfg, err := Load([]string{
		"--config", "/tmp/s.conf",
		"--library", "/tmp/l.conf",
		"--background",
		"/music/a.mp3", "/music/b.mp3",
	})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.SettingsPath != "/tmp/s.conf" || cfg.LibraryPath != "/tmp/l.conf" {
		t.Errorf("paths = %q/%q", cfg.SettingsPath, cfg.LibraryPath)
	}
	if !cfg.Background {
		t.Error("background hint should be set")
	}
	if len(cfg.Files) != 2 || cfg.Files[0] != "/music/a.mp3" {
		t.Errorf("Files = %v", cfg.Files)
	}
}

func TestShortlistOverridesLibrary(t *testing.T) {
	cfg, err := Load([]string{"--library", "/tmp/l.conf", "--shortlist", "/tmp/short.conf"})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.LibraryPath != "/tmp/short.conf" {
		t.Errorf("LibraryPath = %q, want the shortlist", cfg.LibraryPath)
	}
}
