package library

import (
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

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

const (
	GroupProperties = "Properties"
	KeyVersion      = "FileVersion"
)

// Read loads the library file. Each song group is keyed by the song's tag;
// a group under the legacy Location key is upgraded to URI and the file is
// queued for a rewrite. Statistics outside their valid range keep the song's
// defaults. A file written by a newer software version is refused and left
// untouched.
func (l *Library) Read() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	file, err := ini.LoadSources(ini.LoadOptions{Insensitive: true}, l.path)
	if err != nil {
		if os.IsNotExist(err) {
			l.logger.WithField("path", l.path).Info("No library file yet; starting empty")
			return nil
		}
		return errors.Wrap(err, errors.CategoryLibrary, "READ_FAILED", "library file read failed").
			WithContext("path", l.path)
	}

	version := file.Section(GroupProperties).Key(KeyVersion).MustInt(0)
	if version > FileVersion {
		l.readOnly = true
		l.logger.WithFields(logrus.Fields{
			"path":    l.path,
			"version": version,
		}).Warn("Library file is written by a newer version of the software; ignoring it")
		return errors.ErrLibraryVersion
	}

	dirty := false

	for _, sec := range file.Sections() {
		name := sec.Name()
		if name == ini.DefaultSection || strings.EqualFold(name, GroupProperties) {
			continue
		}

		uri := sec.Key("URI").String()
		if uri == "" {
			// Legacy files stored the location instead of the URI.
			location := sec.Key("Location").String()
			if location == "" {
				l.logger.WithField("group", name).Warn("Song group without URI; skipping")
				dirty = true
				continue
			}
			uri = uriFromLocation(location)
			dirty = true
		}

		song := models.NewSong(uri)
		l.readSong(sec, song, &dirty)

		if err := l.add(song); err != nil {
			l.logger.WithFields(logrus.Fields{
				"group": name,
				"uri":   uri,
			}).Warn("Duplicate song in library file; skipping")
			dirty = true
		}
	}

	// add() marks the library dirty; a clean read should not queue a write.
	l.writeQueued = dirty

	l.logger.WithFields(logrus.Fields{
		"path":  l.path,
		"songs": len(l.songs),
	}).Info("Library loaded")

	return nil
}

func (l *Library) readSong(sec *ini.Section, song *models.Song, dirty *bool) {
	song.Title = sec.Key("Title").String()
	song.Artist = sec.Key("Artist").String()
	song.AlbumArtist = sec.Key("AlbumArtist").String()
	song.Album = sec.Key("Album").String()

	song.TrackNumber = l.fileInt(sec, "TrackNumber", 0, dirty, func(v int) bool { return v >= 0 })
	song.Duration = l.fileInt(sec, "Duration", 0, dirty, func(v int) bool { return v >= 0 })
	song.MetadataUpdated = l.fileInt64(sec, "LastMetadataUpdate", 0, dirty, func(v int64) bool { return v >= 0 })

	song.Rating = l.fileInt(sec, "Rating", song.Rating, dirty, statistics.ValidRating)
	song.Score = l.fileFloat(sec, "Score", song.Score, dirty, statistics.ValidScore)
	song.PlayCount = l.fileInt(sec, "PlayCount", song.PlayCount, dirty, statistics.ValidPlayCount)
	song.SkipCount = l.fileInt(sec, "SkipCount", song.SkipCount, dirty, statistics.ValidSkipCount)
	song.LastPlayed = l.fileInt64(sec, "LastPlayed", song.LastPlayed, dirty, statistics.ValidLastPlayed)
}

func (l *Library) fileInt(sec *ini.Section, key string, def int, dirty *bool, valid func(int) bool) int {
	if !sec.HasKey(key) {
		return def
	}
	v, err := sec.Key(key).Int()
	if err != nil || !valid(v) {
		l.reject(sec, key)
		*dirty = true
		return def
	}
	return v
}

func (l *Library) fileInt64(sec *ini.Section, key string, def int64, dirty *bool, valid func(int64) bool) int64 {
	if !sec.HasKey(key) {
		return def
	}
	v, err := sec.Key(key).Int64()
	if err != nil || !valid(v) {
		l.reject(sec, key)
		*dirty = true
		return def
	}
	return v
}

func (l *Library) fileFloat(sec *ini.Section, key string, def float64, dirty *bool, valid func(float64) bool) float64 {
	if !sec.HasKey(key) {
		return def
	}
	v, err := sec.Key(key).Float64()
	if err != nil || !valid(v) {
		l.reject(sec, key)
		*dirty = true
		return def
	}
	return v
}

func (l *Library) reject(sec *ini.Section, key string) {
	l.logger.WithFields(logrus.Fields{
		"group": sec.Name(),
		"key":   key,
		"value": sec.Key(key).String(),
	}).Warn("Library value rejected; keeping the default")
}

// uriFromLocation converts a legacy Location value to the canonical URI form
// stored here: bare unescaped paths, the same canonicalisation NewSong
// applies. Old files wrote the location as an escaped file:// URI.
func uriFromLocation(location string) string {
	uri := strings.TrimPrefix(location, "file://")
	if unescaped, err := url.PathUnescape(uri); err == nil {
		return unescaped
	}
	return uri
}

// Write serialises the library when dirty (or when forced). Comments in the
// file are not preserved across writes. Writes are refused entirely when the
// file on disk is from a newer software version.
func (l *Library) Write(force bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.readOnly {
		l.logger.Info("Library file belongs to a newer version; not writing")
		return nil
	}
	if !l.writeQueued && !force {
		return nil
	}

	file := ini.Empty()
	file.Section(GroupProperties).Key(KeyVersion).SetValue(strconv.Itoa(FileVersion))

	for _, song := range l.songs {
		sec := file.Section(song.Tag)
		sec.Key("URI").SetValue(song.URI)

		if song.Title != "" {
			sec.Key("Title").SetValue(song.Title)
		}
		if song.Artist != "" {
			sec.Key("Artist").SetValue(song.Artist)
		}
		if song.AlbumArtist != "" {
			sec.Key("AlbumArtist").SetValue(song.AlbumArtist)
		}
		if song.Album != "" {
			sec.Key("Album").SetValue(song.Album)
		}
		if song.TrackNumber > 0 {
			sec.Key("TrackNumber").SetValue(strconv.Itoa(song.TrackNumber))
		}
		if song.Duration > 0 {
			sec.Key("Duration").SetValue(strconv.Itoa(song.Duration))
		}
		if song.MetadataUpdated > 0 {
			sec.Key("LastMetadataUpdate").SetValue(strconv.FormatInt(song.MetadataUpdated, 10))
		}

		if song.Rating > 0 {
			sec.Key("Rating").SetValue(strconv.Itoa(song.Rating))
		}
		sec.Key("Score").SetValue(strconv.FormatFloat(song.Score, 'g', -1, 64))
		if song.PlayCount > 0 {
			sec.Key("PlayCount").SetValue(strconv.Itoa(song.PlayCount))
		}
		if song.SkipCount > 0 {
			sec.Key("SkipCount").SetValue(strconv.Itoa(song.SkipCount))
		}
		if song.LastPlayed > 0 {
			sec.Key("LastPlayed").SetValue(strconv.FormatInt(song.LastPlayed, 10))
		}
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return errors.Wrap(err, errors.CategoryLibrary, "WRITE_FAILED", "could not create library directory").
			WithContext("path", l.path)
	}
	if err := file.SaveTo(l.path); err != nil {
		return errors.Wrap(err, errors.CategoryLibrary, "WRITE_FAILED", "library file write failed").
			WithContext("path", l.path)
	}

	l.writeQueued = false
	l.logger.WithFields(logrus.Fields{
		"path":  l.path,
		"songs": len(l.songs),
	}).Debug("Library written")

	return nil
}
