// Package settings owns the keyed-text settings file and hands the
// intelligence engine its filter and modifier parameters.
package settings

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"

	"github.com/nocturnehq/nocturne/errors"
	"github.com/nocturnehq/nocturne/models"
	"github.com/nocturnehq/nocturne/statistics"
)

// File versioning. Files written by a newer software version are ignored
// and never overwritten.
const (
	FileVersion    = 20221201
	MinFileVersion = 20221201
)

// Group names in the settings file.
const (
	GroupProperties = "Properties"
	GroupGeneral    = "General"
	GroupFilter     = "FilterOptions"
	GroupModifiers  = "ProbabilityModifiers"

	KeyVersion = "FileVersion"

	// DefaultDynamicGroup hosts late-registered keys that are opaque to
	// the core.
	DefaultDynamicGroup = "Interface"
)

// General holds the top-level preferences.
type General struct {
	UsedVolume            float64
	SongPrefix            string
	UpdateInterval        int
	PreferPlayFromRam     bool
	MinimumPlayedFraction float64
	FullPlayedFraction    float64
}

// DefaultGeneral returns the General defaults.
func DefaultGeneral() General {
	return General{
		UsedVolume:            80.0,
		UpdateInterval:        100,
		PreferPlayFromRam:     false,
		MinimumPlayedFraction: 0.2,
		FullPlayedFraction:    0.8,
	}
}

// DefaultFilter returns the filter defaults.
func DefaultFilter() models.Filter {
	return models.Filter{
		RecentArtists:           0,
		RemoveRecentsAmount:     0,
		RemoveRecentsPercentage: 50.0,
		UseRating:               true,
		UseScore:                true,
		RatingIncludeZero:       true,
		RatingMin:               50,
		RatingMax:               100,
		ScoreMin:                25.0,
		ScoreMax:                100.0,
	}
}

// DefaultModifiers returns the probability-modifier defaults.
func DefaultModifiers() models.Modifiers {
	return models.Modifiers{
		UseRating:            true,
		UseLastPlayed:        true,
		InvertSkipCount:      true,
		RatingMultiplier:     1.0,
		ScoreMultiplier:      1.0,
		PlayCountMultiplier:  1.0,
		SkipCountMultiplier:  1.0,
		LastPlayedMultiplier: 1.0,
	}
}

// Settings is the read-mostly settings store. All accessors return
// snapshots so a mid-run change never has a partial effect.
type Settings struct {
	mu     sync.RWMutex
	logger *logrus.Logger
	path   string

	general   General
	filter    models.Filter
	modifiers models.Modifiers

	dynamicGroup string
	dynamic      map[string]string

	writeQueued bool
	readOnly    bool
}

func New(path string, logger *logrus.Logger) *Settings {
	return &Settings{
		logger:       logger,
		path:         path,
		general:      DefaultGeneral(),
		filter:       DefaultFilter(),
		modifiers:    DefaultModifiers(),
		dynamicGroup: DefaultDynamicGroup,
		dynamic:      make(map[string]string),
	}
}

// Path returns the settings file location.
func (s *Settings) Path() string {
	return s.path
}

// SetDynamicGroup changes the group that hosts late-registered keys.
func (s *Settings) SetDynamicGroup(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name != "" {
		s.dynamicGroup = name
	}
}

// Dynamic returns a late-registered value. Key lookup is case-insensitive,
// matching the rest of the file format.
func (s *Settings) Dynamic(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.dynamic[strings.ToLower(key)]
	return v, ok
}

// SetDynamic stores a late-registered value and queues a rewrite.
func (s *Settings) SetDynamic(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dynamic[strings.ToLower(key)] = value
	s.writeQueued = true
}

// Filter returns a snapshot of the filter configuration.
func (s *Settings) Filter() *models.Filter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f := s.filter
	return &f
}

// Modifiers returns a snapshot of the probability-modifier configuration.
func (s *Settings) Modifiers() *models.Modifiers {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := s.modifiers
	return &m
}

// General returns a snapshot of the top-level preferences.
func (s *Settings) General() General {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.general
}

// StatsConfig builds the statistics configuration for one playback event.
func (s *Settings) StatsConfig(incognito bool) statistics.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return statistics.Config{
		Incognito:          incognito,
		MinPlayedFraction:  s.general.MinimumPlayedFraction,
		FullPlayedFraction: s.general.FullPlayedFraction,
	}
}

// SetVolume records the last-used volume.
func (s *Settings) SetVolume(volume float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if volume < 0 || volume > 100 {
		s.logger.WithField("volume", volume).Warn("Unable to set volume: value out of range")
		return
	}
	s.general.UsedVolume = volume
	s.writeQueued = true
}

// UpdateFilter replaces the filter configuration.
func (s *Settings) UpdateFilter(f models.Filter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = f
	s.writeQueued = true
}

// UpdateModifiers replaces the probability-modifier configuration.
func (s *Settings) UpdateModifiers(m models.Modifiers) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modifiers = m
	s.writeQueued = true
}

// QueueWrite marks the settings dirty so the next Write flushes them.
func (s *Settings) QueueWrite() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeQueued = true
}

// Read loads the settings file. Missing files and missing keys fall back to
// defaults; out-of-range values keep the default and queue a rewrite; a file
// written by a newer software version is refused and left untouched.
func (s *Settings) Read() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := ini.LoadSources(ini.LoadOptions{Insensitive: true}, s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.WithField("path", s.path).Info("No settings file yet; using defaults")
			s.writeQueued = true
			return nil
		}
		return errors.Wrap(err, errors.CategorySettings, "READ_FAILED", "settings file read failed").
			WithContext("path", s.path)
	}

	version := file.Section(GroupProperties).Key(KeyVersion).MustInt(0)
	if version > FileVersion {
		s.readOnly = true
		s.logger.WithFields(logrus.Fields{
			"path":    s.path,
			"version": version,
		}).Warn("Settings file is written by a newer version of the software; ignoring it")
		return errors.ErrSettingsVersion
	}
	if version != 0 && version < MinFileVersion {
		s.logger.WithField("version", version).Info("Settings file is written by an older software version")
		s.writeQueued = true
	}

	coerced := false
	r := &reader{logger: s.logger, coerced: &coerced}

	gen := file.Section(GroupGeneral)
	def := DefaultGeneral()
	s.general.UsedVolume = r.float(gen, "UsedVolume", def.UsedVolume, 0, 100)
	s.general.SongPrefix = r.str(gen, "SongPrefix", def.SongPrefix)
	s.general.UpdateInterval = r.int(gen, "UpdateInterval", def.UpdateInterval, 0, 60000)
	s.general.PreferPlayFromRam = r.boolean(gen, "PreferPlayFromRam", def.PreferPlayFromRam)
	s.general.MinimumPlayedFraction = r.float(gen, "MinimumPlayedFraction", def.MinimumPlayedFraction, 0, 1)
	s.general.FullPlayedFraction = r.float(gen, "FullPlayedFraction", def.FullPlayedFraction, 0, 1)

	fil := file.Section(GroupFilter)
	df := DefaultFilter()
	s.filter.RecentArtists = r.int(fil, "RemoveSameRecentArtist", df.RecentArtists, 0, 25)
	s.filter.RemoveRecentsAmount = r.int(fil, "AmountOfRecentsToRemove", df.RemoveRecentsAmount, 0, 100)
	s.filter.RemoveRecentsPercentage = r.float(fil, "PercentageOfRecentsToRemove", df.RemoveRecentsPercentage, 0, 100)
	s.filter.UseRating = r.boolean(fil, "EnableRating", df.UseRating)
	s.filter.UseScore = r.boolean(fil, "EnableScore", df.UseScore)
	s.filter.UsePlayCount = r.boolean(fil, "EnablePlayCount", df.UsePlayCount)
	s.filter.UseSkipCount = r.boolean(fil, "EnableSkipCount", df.UseSkipCount)
	s.filter.UseLastPlayed = r.boolean(fil, "EnableLastPlayed", df.UseLastPlayed)
	s.filter.RatingIncludeZero = r.boolean(fil, "RatingIncludeZero", df.RatingIncludeZero)
	s.filter.PlayCountInvert = r.boolean(fil, "PlayCountInvertThreshold", df.PlayCountInvert)
	s.filter.SkipCountInvert = r.boolean(fil, "SkipCountInvertThreshold", df.SkipCountInvert)
	s.filter.LastPlayedInvert = r.boolean(fil, "LastPlayedInvertThreshold", df.LastPlayedInvert)
	s.filter.RatingMin = r.int(fil, "RatingMin", df.RatingMin, 0, 100)
	s.filter.RatingMax = r.int(fil, "RatingMax", df.RatingMax, 0, 100)
	s.filter.ScoreMin = r.float(fil, "ScoreMin", df.ScoreMin, 0, 100)
	s.filter.ScoreMax = r.float(fil, "ScoreMax", df.ScoreMax, 0, 100)
	s.filter.PlayCountThreshold = r.int(fil, "PlayCountThreshold", df.PlayCountThreshold, 0, math.MaxInt32)
	s.filter.SkipCountThreshold = r.int(fil, "SkipCountThreshold", df.SkipCountThreshold, 0, math.MaxInt32)
	s.filter.LastPlayedThreshold = r.int64(fil, "LastPlayedThreshold", df.LastPlayedThreshold, 0, math.MaxInt64)

	mod := file.Section(GroupModifiers)
	dm := DefaultModifiers()
	s.modifiers.UseRating = r.boolean(mod, "RatingModifiesProbability", dm.UseRating)
	s.modifiers.UseScore = r.boolean(mod, "ScoreModifiesProbability", dm.UseScore)
	s.modifiers.UsePlayCount = r.boolean(mod, "PlayCountModifiesProbability", dm.UsePlayCount)
	s.modifiers.UseSkipCount = r.boolean(mod, "SkipCountModifiesProbability", dm.UseSkipCount)
	s.modifiers.UseLastPlayed = r.boolean(mod, "LastPlayedModifiesProbability", dm.UseLastPlayed)
	s.modifiers.InvertRating = r.boolean(mod, "RatingInvertedProbability", dm.InvertRating)
	s.modifiers.InvertScore = r.boolean(mod, "ScoreInvertedProbability", dm.InvertScore)
	s.modifiers.InvertPlayCount = r.boolean(mod, "PlaycountInvertedProbability", dm.InvertPlayCount)
	s.modifiers.InvertSkipCount = r.boolean(mod, "SkipcountInvertedProbability", dm.InvertSkipCount)
	s.modifiers.InvertLastPlayed = r.boolean(mod, "LastplayedInvertedProbability", dm.InvertLastPlayed)
	s.modifiers.DefaultRating = r.int(mod, "DefaultRating", dm.DefaultRating, 0, 100)
	s.modifiers.RatingMultiplier = r.float(mod, "RatingMultiplier", dm.RatingMultiplier, 0, 10)
	s.modifiers.ScoreMultiplier = r.float(mod, "ScoreMultiplier", dm.ScoreMultiplier, 0, 10)
	s.modifiers.PlayCountMultiplier = r.float(mod, "PlayCountMultiplier", dm.PlayCountMultiplier, 0, 10)
	s.modifiers.SkipCountMultiplier = r.float(mod, "SkipCountMultiplier", dm.SkipCountMultiplier, 0, 10)
	s.modifiers.LastPlayedMultiplier = r.float(mod, "LastPlayedMultiplier", dm.LastPlayedMultiplier, 0, 10)

	if file.HasSection(s.dynamicGroup) {
		for _, key := range file.Section(s.dynamicGroup).Keys() {
			s.dynamic[key.Name()] = key.Value()
		}
	}

	if coerced {
		s.writeQueued = true
	}

	return nil
}

// Write serialises the settings when dirty (or when forced). Writes are
// refused entirely when the file on disk is from a newer software version.
func (s *Settings) Write(force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readOnly {
		s.logger.Info("Settings file belongs to a newer version; not writing")
		return nil
	}
	if !s.writeQueued && !force {
		return nil
	}

	file := ini.Empty()

	file.Section(GroupProperties).Key(KeyVersion).SetValue(formatInt(FileVersion))

	gen := file.Section(GroupGeneral)
	setFloat(gen, "UsedVolume", s.general.UsedVolume)
	if s.general.SongPrefix != "" {
		gen.Key("SongPrefix").SetValue(s.general.SongPrefix)
	}
	gen.Key("UpdateInterval").SetValue(formatInt(s.general.UpdateInterval))
	setBool(gen, "PreferPlayFromRam", s.general.PreferPlayFromRam)
	setFloat(gen, "MinimumPlayedFraction", s.general.MinimumPlayedFraction)
	setFloat(gen, "FullPlayedFraction", s.general.FullPlayedFraction)

	fil := file.Section(GroupFilter)
	fil.Key("RemoveSameRecentArtist").SetValue(formatInt(s.filter.RecentArtists))
	fil.Key("AmountOfRecentsToRemove").SetValue(formatInt(s.filter.RemoveRecentsAmount))
	setFloat(fil, "PercentageOfRecentsToRemove", s.filter.RemoveRecentsPercentage)
	setBool(fil, "EnableRating", s.filter.UseRating)
	setBool(fil, "EnableScore", s.filter.UseScore)
	setBool(fil, "EnablePlayCount", s.filter.UsePlayCount)
	setBool(fil, "EnableSkipCount", s.filter.UseSkipCount)
	setBool(fil, "EnableLastPlayed", s.filter.UseLastPlayed)
	setBool(fil, "RatingIncludeZero", s.filter.RatingIncludeZero)
	setBool(fil, "PlayCountInvertThreshold", s.filter.PlayCountInvert)
	setBool(fil, "SkipCountInvertThreshold", s.filter.SkipCountInvert)
	setBool(fil, "LastPlayedInvertThreshold", s.filter.LastPlayedInvert)
	fil.Key("RatingMin").SetValue(formatInt(s.filter.RatingMin))
	fil.Key("RatingMax").SetValue(formatInt(s.filter.RatingMax))
	setFloat(fil, "ScoreMin", s.filter.ScoreMin)
	setFloat(fil, "ScoreMax", s.filter.ScoreMax)
	fil.Key("PlayCountThreshold").SetValue(formatInt(s.filter.PlayCountThreshold))
	fil.Key("SkipCountThreshold").SetValue(formatInt(s.filter.SkipCountThreshold))
	fil.Key("LastPlayedThreshold").SetValue(formatInt64(s.filter.LastPlayedThreshold))

	mod := file.Section(GroupModifiers)
	setBool(mod, "RatingModifiesProbability", s.modifiers.UseRating)
	setBool(mod, "ScoreModifiesProbability", s.modifiers.UseScore)
	setBool(mod, "PlayCountModifiesProbability", s.modifiers.UsePlayCount)
	setBool(mod, "SkipCountModifiesProbability", s.modifiers.UseSkipCount)
	setBool(mod, "LastPlayedModifiesProbability", s.modifiers.UseLastPlayed)
	setBool(mod, "RatingInvertedProbability", s.modifiers.InvertRating)
	setBool(mod, "ScoreInvertedProbability", s.modifiers.InvertScore)
	setBool(mod, "PlaycountInvertedProbability", s.modifiers.InvertPlayCount)
	setBool(mod, "SkipcountInvertedProbability", s.modifiers.InvertSkipCount)
	setBool(mod, "LastplayedInvertedProbability", s.modifiers.InvertLastPlayed)
	mod.Key("DefaultRating").SetValue(formatInt(s.modifiers.DefaultRating))
	setFloat(mod, "RatingMultiplier", s.modifiers.RatingMultiplier)
	setFloat(mod, "ScoreMultiplier", s.modifiers.ScoreMultiplier)
	setFloat(mod, "PlayCountMultiplier", s.modifiers.PlayCountMultiplier)
	setFloat(mod, "SkipCountMultiplier", s.modifiers.SkipCountMultiplier)
	setFloat(mod, "LastPlayedMultiplier", s.modifiers.LastPlayedMultiplier)

	if len(s.dynamic) > 0 {
		dyn := file.Section(s.dynamicGroup)
		for key, value := range s.dynamic {
			dyn.Key(key).SetValue(value)
		}
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Wrap(err, errors.CategorySettings, "WRITE_FAILED", "could not create settings directory").
			WithContext("path", s.path)
	}
	if err := file.SaveTo(s.path); err != nil {
		return errors.Wrap(err, errors.CategorySettings, "WRITE_FAILED", "settings file write failed").
			WithContext("path", s.path)
	}

	s.writeQueued = false
	s.logger.WithField("path", s.path).Debug("Settings written")

	return nil
}
