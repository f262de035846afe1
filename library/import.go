package library

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nocturnehq/nocturne/models"
)

// AddFunc is the progress hook for bulk imports. index is 1-based.
type AddFunc func(song *models.Song, index, total int)

// AddPath imports a file or directory tree into the library. Directories
// recurse in alphabetical order; dotfiles are skipped. The check mode decides
// which file classifications qualify. Returns the number of songs added.
func (l *Library) AddPath(path string, check models.CheckMode, onAdded AddFunc) int {
	// Dotfiles never import, not even with checking off.
	if strings.HasPrefix(filepath.Base(path), ".") {
		l.logger.WithField("path", path).Info("Dotfile, not adding")
		return 0
	}

	if check == models.CheckNone {
		// No inspection at all: trust the caller.
		song := models.NewSong(path)
		if err := l.Add(song); err != nil {
			l.logger.WithField("uri", path).Debug("Song already in library")
			return 0
		}
		if onAdded != nil {
			onAdded(song, 1, 1)
		}
		return 1
	}

	var candidates []string
	l.collect(path, check, &candidates)

	added := 0
	total := len(candidates)
	for i, candidate := range candidates {
		song := models.NewSong(candidate)
		if err := l.Add(song); err != nil {
			l.logger.WithField("uri", candidate).Debug("Song already in library")
			continue
		}
		added++
		if onAdded != nil {
			onAdded(song, i+1, total)
		}
	}

	l.logger.WithFields(logrus.Fields{
		"path":  path,
		"added": added,
	}).Info("Import finished")

	return added
}

func (l *Library) collect(path string, check models.CheckMode, out *[]string) {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return
	}

	fileType, mimeType := l.inspector.FileType(path)
	switch fileType {
	case models.FileDirectory:
		for _, entry := range l.inspector.DirectoryFiles(path) {
			l.collect(entry, check, out)
		}
	case models.FileMimeAudio:
		*out = append(*out, path)
	case models.FileMimeUnknown:
		l.logger.WithField("path", path).Warn("Could not determine a MIME type; this file will not be added")
	case models.FileMimeMedia:
		if check == models.CheckMedia {
			*out = append(*out, path)
		} else {
			l.logger.WithFields(logrus.Fields{
				"path": path,
				"mime": mimeType,
			}).Debug("Skipping non-audio file")
		}
	case models.FileMimeIrrelevant:
		l.logger.WithFields(logrus.Fields{
			"path": path,
			"mime": mimeType,
		}).Debug("Skipping irrelevant file")
	default:
		l.logger.WithField("path", path).Warn("Skipping unreadable entry")
	}
}

// UpdateFSInfo refreshes a song's filesystem view: the modification time,
// the display name and the availability status. A playing song keeps its
// status.
func (l *Library) UpdateFSInfo(song *models.Song) {
	if song == nil {
		return
	}

	info, err := os.Stat(song.URI)
	if err != nil {
		song.Modified = -1
		song.Status = models.StatusNotFound
		return
	}

	song.Modified = info.ModTime().Unix()
	song.DisplayName = info.Name()
	if song.Status != models.StatusPlaying {
		song.Status = models.StatusAvailable
	}
}

// RefreshMetadata re-extracts metadata for every member whose file changed
// since the last extraction, or for all members when forced. Songs whose file
// is gone are marked not-found and left alone. Returns the number of songs
// updated.
func (l *Library) RefreshMetadata(ctx context.Context, force bool) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	updated := 0
	for _, song := range l.songs {
		l.UpdateFSInfo(song)
		if song.Modified < 0 {
			continue
		}
		if !force && song.MetadataUpdated != 0 && song.MetadataUpdated > song.Modified {
			continue
		}

		fields, err := l.extractor.Extract(ctx, song.URI)
		if err != nil {
			l.logger.WithError(err).WithField("uri", song.URI).Warn("Metadata extraction failed")
			continue
		}

		song.Title = fields.Title
		song.Artist = fields.Artist
		song.AlbumArtist = fields.AlbumArtist
		song.Album = fields.Album
		song.TrackNumber = fields.TrackNumber
		if fields.Duration > 0 {
			song.Duration = fields.Duration
		}
		song.MetadataUpdated = time.Now().Unix()
		updated++
	}

	if updated > 0 {
		l.writeQueued = true
	}

	return updated
}
