// Package library holds the persistent song collection: an ordered list of
// unique songs backed by a keyed-text file.
package library

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/nocturnehq/nocturne/errors"
	"github.com/nocturnehq/nocturne/inspector"
	"github.com/nocturnehq/nocturne/metadata"
	"github.com/nocturnehq/nocturne/models"
)

// Library is the ordered, hash-unique song collection. The order is the
// user's list order and is preserved across restarts.
type Library struct {
	mu     sync.RWMutex
	logger *logrus.Logger
	path   string

	songs  []*models.Song
	byHash map[uint32]*models.Song

	inspector *inspector.Inspector
	extractor metadata.Extractor

	writeQueued bool
	readOnly    bool
}

func New(path string, logger *logrus.Logger) *Library {
	return &Library{
		logger:    logger,
		path:      path,
		byHash:    make(map[uint32]*models.Song),
		inspector: inspector.New(logger),
		extractor: metadata.New(logger),
	}
}

// SetExtractor replaces the metadata extractor. Used by tests.
func (l *Library) SetExtractor(e metadata.Extractor) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.extractor = e
}

// Path returns the library file location.
func (l *Library) Path() string {
	return l.path
}

// Len returns the number of songs.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.songs)
}

// Songs returns a snapshot of the list order. The song pointers are shared;
// the slice is the caller's own.
func (l *Library) Songs() []*models.Song {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*models.Song, len(l.songs))
	copy(out, l.songs)
	return out
}

// ByHash returns the member with the given identity hash.
func (l *Library) ByHash(hash uint32) *models.Song {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.byHash[hash]
}

// Contains reports whether the song is a current member.
func (l *Library) Contains(song *models.Song) bool {
	if song == nil {
		return false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.byHash[song.Hash] == song
}

// Add appends a song to the list. Songs hash fast, so membership is a map
// probe; a duplicate hash is refused.
func (l *Library) Add(song *models.Song) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.add(song)
}

func (l *Library) add(song *models.Song) error {
	if song == nil || song.Hash == 0 {
		return errors.New(errors.CategoryLibrary, "INVALID_SONG", "cannot add a song without an identity")
	}
	if _, exists := l.byHash[song.Hash]; exists {
		return errors.ErrSongNotUnique
	}

	song.InLibrary = true
	if song.Status == models.StatusUnknown {
		song.Status = models.StatusAvailable
	}
	l.songs = append(l.songs, song)
	l.byHash[song.Hash] = song
	l.writeQueued = true

	return nil
}

// Remove takes a song out of the list. Removing a non-member is a no-op.
func (l *Library) Remove(song *models.Song) {
	if song == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.byHash[song.Hash] != song {
		return
	}

	for i, s := range l.songs {
		if s == song {
			l.songs = append(l.songs[:i], l.songs[i+1:]...)
			break
		}
	}
	delete(l.byHash, song.Hash)
	song.InLibrary = false
	l.writeQueued = true
}

// MoveBefore moves a song directly before another. Both must be members;
// otherwise the list is left untouched.
func (l *Library) MoveBefore(song, anchor *models.Song) {
	l.move(song, anchor, false)
}

// MoveAfter moves a song directly after another. Both must be members;
// otherwise the list is left untouched.
func (l *Library) MoveAfter(song, anchor *models.Song) {
	l.move(song, anchor, true)
}

func (l *Library) move(song, anchor *models.Song, after bool) {
	if song == nil || anchor == nil || song == anchor {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.byHash[song.Hash] != song || l.byHash[anchor.Hash] != anchor {
		return
	}

	from := -1
	for i, s := range l.songs {
		if s == song {
			from = i
			break
		}
	}
	if from < 0 {
		return
	}
	l.songs = append(l.songs[:from], l.songs[from+1:]...)

	to := -1
	for i, s := range l.songs {
		if s == anchor {
			to = i
			break
		}
	}
	if to < 0 {
		// Should not happen; restore the original position.
		l.songs = append(l.songs, song)
		return
	}
	if after {
		to++
	}

	l.songs = append(l.songs, nil)
	copy(l.songs[to+1:], l.songs[to:])
	l.songs[to] = song
	l.writeQueued = true
}

// QueueWrite marks the library dirty so the next Write flushes it.
func (l *Library) QueueWrite() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writeQueued = true
}

// Summary reports, per metadata column, whether any and whether all songs
// carry a value. The list views use this to decide which columns to show.
type Summary struct {
	AnyTrackNumber bool
	AllTrackNumber bool
	AnyTitle       bool
	AllTitle       bool
	AnyArtist      bool
	AllArtist      bool
	AnyAlbum       bool
	AllAlbum       bool
	AnyDuration    bool
	AllDuration    bool
}

// Summarize scans the list once and reports which metadata columns are in
// use. A column is "all" when every member fills it; an empty library counts
// as all-filled.
func (l *Library) Summarize() Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var trackNumber, title, artist, album, duration int
	for _, s := range l.songs {
		if s.TrackNumber > 0 {
			trackNumber++
		}
		if s.Title != "" {
			title++
		}
		if s.Artist != "" {
			artist++
		}
		if s.Album != "" {
			album++
		}
		if s.Duration > 1 {
			duration++
		}
	}

	n := len(l.songs)
	return Summary{
		AnyTrackNumber: trackNumber > 0,
		AllTrackNumber: trackNumber == n,
		AnyTitle:       title > 0,
		AllTitle:       title == n,
		AnyArtist:      artist > 0,
		AllArtist:      artist == n,
		AnyAlbum:       album > 0,
		AllAlbum:       album == n,
		AnyDuration:    duration > 0,
		AllDuration:    duration == n,
	}
}
