// Package config parses the command line and resolves the file locations.
package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nocturnehq/nocturne/errors"
)

// Version is stamped at build time.
var Version = "dev"

// Action is a one-shot playback command sent to a running instance.
type Action int

const (
	ActionNone Action = iota
	ActionPlayPause
	ActionPlay
	ActionPause
	ActionStop
	ActionPrevious
	ActionNext
)

func (a Action) String() string {
	switch a {
	case ActionPlayPause:
		return "play-pause"
	case ActionPlay:
		return "play"
	case ActionPause:
		return "pause"
	case ActionStop:
		return "stop"
	case ActionPrevious:
		return "previous"
	case ActionNext:
		return "next"
	default:
		return "none"
	}
}

type Config struct {
	SettingsPath string
	LibraryPath  string
	LogLevel     string

	Background  bool
	Shortlist   string
	ShowVersion bool

	HTTPEnabled    bool
	HTTPPort       string
	RateLimitRPS   float64
	RateLimitBurst int

	Action Action
	// Files are the non-option arguments, imported into the library.
	Files []string
}

func defaults() *Config {
	dir := configDir()
	return &Config{
		SettingsPath:   getEnvOrDefault("NOCTURNE_SETTINGS", filepath.Join(dir, "settings.conf")),
		LibraryPath:    getEnvOrDefault("NOCTURNE_LIBRARY", filepath.Join(dir, "library.conf")),
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort:       getEnvOrDefault("NOCTURNE_PORT", "4744"),
		RateLimitRPS:   10,
		RateLimitBurst: 20,
	}
}

func configDir() string {
	if base, err := os.UserConfigDir(); err == nil {
		return filepath.Join(base, "nocturne")
	}
	return "."
}

// Load parses the command line. The one-shot playback flags are mutually
// exclusive; passing more than one is an error.
func Load(args []string) (*Config, error) {
	cfg := defaults()
	var playPause, play, pause, stop, previous, next bool

	root := &cobra.Command{
		Use:           "nocturne [files...]",
		Short:         "Personal music player core",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Files = args
			return nil
		},
	}

	flags := root.Flags()
	flags.StringVarP(&cfg.SettingsPath, "config", "c", cfg.SettingsPath, "Settings file path")
	flags.StringVarP(&cfg.LibraryPath, "library", "l", cfg.LibraryPath, "Library file path")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flags.BoolVar(&cfg.Background, "background", false, "Start without raising a front-end")
	flags.BoolVarP(&cfg.ShowVersion, "version", "V", false, "Print the version and exit")
	flags.StringVar(&cfg.Shortlist, "shortlist", "", "Alternative library file for this run")
	flags.BoolVar(&cfg.HTTPEnabled, "http", false, "Expose the HTTP remote surface")
	flags.StringVar(&cfg.HTTPPort, "http-port", cfg.HTTPPort, "HTTP remote port")

	flags.BoolVar(&playPause, "play-pause", false, "Toggle playback in the running instance")
	flags.BoolVar(&play, "play", false, "Start playback in the running instance")
	flags.BoolVar(&pause, "pause", false, "Pause playback in the running instance")
	flags.BoolVar(&stop, "stop", false, "Stop playback in the running instance")
	flags.BoolVar(&previous, "previous", false, "Play the previous song in the running instance")
	flags.BoolVar(&next, "next", false, "Play the next song in the running instance")

	flags.MarkHidden("shortlist")

	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		return nil, err
	}

	action, err := resolveAction(playPause, play, pause, stop, previous, next)
	if err != nil {
		return nil, err
	}
	cfg.Action = action

	if cfg.Shortlist != "" {
		cfg.LibraryPath = cfg.Shortlist
	}

	return cfg, nil
}

func resolveAction(playPause, play, pause, stop, previous, next bool) (Action, error) {
	var action Action
	count := 0
	for _, candidate := range []struct {
		set    bool
		action Action
	}{
		{playPause, ActionPlayPause},
		{play, ActionPlay},
		{pause, ActionPause},
		{stop, ActionStop},
		{previous, ActionPrevious},
		{next, ActionNext},
	} {
		if candidate.set {
			action = candidate.action
			count++
		}
	}

	if count > 1 {
		return ActionNone, errors.New(errors.CategoryConfig, "EXCLUSIVE_ACTIONS",
			"only one of --play-pause, --play, --pause, --stop, --previous, --next may be given")
	}
	return action, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
