package main

import (
	"context"
	goerrors "errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nocturnehq/nocturne/config"
	"github.com/nocturnehq/nocturne/errors"
	"github.com/nocturnehq/nocturne/intelligence"
	"github.com/nocturnehq/nocturne/library"
	"github.com/nocturnehq/nocturne/models"
	"github.com/nocturnehq/nocturne/playback"
	"github.com/nocturnehq/nocturne/remote"
	"github.com/nocturnehq/nocturne/server"
	"github.com/nocturnehq/nocturne/settings"
	"github.com/nocturnehq/nocturne/songmanager"
	"github.com/nocturnehq/nocturne/statistics"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if cfg.ShowVersion {
		fmt.Printf("nocturne %s\n", config.Version)
		return
	}

	// A one-shot action never starts a player of its own; it only talks
	// to an already-running instance.
	if cfg.Action != config.ActionNone {
		if err := sendAction(cfg.Action); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	logger := newLogger(cfg.LogLevel)
	if cfg.Background {
		logger.Info("Background start requested, detachment is left to the launcher")
	}

	prefs := settings.New(cfg.SettingsPath, logger)
	if err := prefs.Read(); err != nil {
		logger.WithError(err).Warn("Settings could not be fully read, continuing with defaults")
	}

	lib := library.New(cfg.LibraryPath, logger)
	if err := lib.Read(); err != nil {
		logger.WithError(err).Warn("Library could not be fully read")
	}

	stats := statistics.New(logger)
	intel := intelligence.New(logger)
	manager := songmanager.New(lib, prefs, intel, stats, logger)
	session := playback.New(manager, prefs, playback.NewLogOutput(logger), logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	bus := remote.New(lib, manager, session, func() { quit <- syscall.SIGTERM }, nil, logger)
	if err := bus.Start(); err != nil {
		var nerr *errors.NocturneError
		if goerrors.As(err, &nerr) && nerr.Code == "ALREADY_RUNNING" {
			handOver(cfg, logger)
			return
		}
		logger.WithError(err).Warn("Session bus unavailable, remote control disabled")
	}

	// Bus properties and the media-player facet follow the core through
	// the notify hook.
	notify := func(event models.Event) { bus.HandleEvent(event) }
	manager.SetNotify(notify)
	session.SetNotify(notify)

	importFiles(cfg, lib, manager, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	if updated := lib.RefreshMetadata(ctx, false); updated > 0 {
		logger.WithField("updated", updated).Info("Metadata refreshed")
	}
	cancel()

	manager.Sync()

	var httpServer *server.Server
	if cfg.HTTPEnabled {
		httpServer = server.New(cfg, lib, manager, session, logger)
		if err := httpServer.Start(); err != nil {
			logger.WithError(err).Error("Could not start the HTTP remote")
			os.Exit(1)
		}
	}

	<-quit
	logger.Info("Shutting down")

	session.Stop()

	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("HTTP remote did not shut down cleanly")
		}
		cancel()
	}
	bus.Stop()

	if err := lib.Write(false); err != nil {
		logger.WithError(err).Error("Could not write the library file")
	}
	if err := prefs.Write(false); err != nil {
		logger.WithError(err).Error("Could not write the settings file")
	}
}

func newLogger(level string) *logrus.Logger {
	logger := logrus.New()
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)
	return logger
}

// sendAction forwards a playback command to the running instance.
func sendAction(action config.Action) error {
	client, err := remote.Connect()
	if err != nil {
		return err
	}
	defer client.Close()
	return client.SendAction(action)
}

// handOver forwards the command line to the instance that beat us to the
// bus name, then leaves it in charge.
func handOver(cfg *config.Config, logger *logrus.Logger) {
	client, err := remote.Connect()
	if err != nil {
		logger.WithError(err).Error("Another instance is running but could not be reached")
		os.Exit(1)
	}
	defer client.Close()

	for _, path := range cfg.Files {
		added, err := client.AddSong(path)
		if err != nil {
			logger.WithError(err).WithField("path", path).Warn("Could not hand over file")
			continue
		}
		logger.WithFields(logrus.Fields{"path": path, "added": added}).Info("Handed over to the running instance")
	}
	if err := client.Raise(); err != nil {
		logger.WithError(err).Debug("Running instance did not raise")
	}
}

func importFiles(cfg *config.Config, lib *library.Library, manager *songmanager.Manager, logger *logrus.Logger) {
	added := 0
	for _, path := range cfg.Files {
		added += lib.AddPath(path, models.CheckDefault, func(song *models.Song, index, total int) {
			logger.WithFields(logrus.Fields{
				"uri":   song.URI,
				"index": index,
				"total": total,
			}).Info("Song added")
		})
	}
	if added > 0 {
		manager.SongsUpdated()
	}
}
