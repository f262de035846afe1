// Package songmanager tracks what is playing, what just played and what
// comes next, and feeds the intelligence engine its context.
package songmanager

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/nocturnehq/nocturne/intelligence"
	"github.com/nocturnehq/nocturne/library"
	"github.com/nocturnehq/nocturne/models"
	"github.com/nocturnehq/nocturne/settings"
	"github.com/nocturnehq/nocturne/statistics"
)

const (
	// HistoryLimit bounds the played-song history.
	HistoryLimit = 100
	// RecentArtistsLimit bounds the recent-artist-hash list.
	RecentArtistsLimit = 50
)

// Manager owns the selection state: the current song, the bounded history,
// the precomputed up-next list, the user queue and the recent artists.
type Manager struct {
	mu sync.Mutex

	logger   *logrus.Logger
	library  *library.Library
	settings *settings.Settings
	intel    *intelligence.Service
	stats    *statistics.Rules

	current       *models.Song
	history       []*models.Song
	upNext        []*models.Song
	queue         []*models.Song
	recentArtists []uint32

	incognito bool
	notify    models.Notify
}

func New(lib *library.Library, cfg *settings.Settings, intel *intelligence.Service,
	stats *statistics.Rules, logger *logrus.Logger) *Manager {
	return &Manager{
		logger:   logger,
		library:  lib,
		settings: cfg,
		intel:    intel,
		stats:    stats,
	}
}

// SetNotify installs the event hook. A nil hook means nobody is listening.
func (m *Manager) SetNotify(notify models.Notify) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notify = notify
}

// emit invokes the hook. Callers must not hold the lock.
func (m *Manager) emit(event models.Event) {
	m.mu.Lock()
	notify := m.notify
	m.mu.Unlock()
	if notify != nil {
		notify(event)
	}
}

// Current returns the song that is playing, if any.
func (m *Manager) Current() *models.Song {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Incognito reports whether statistics mutations are suppressed.
func (m *Manager) Incognito() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.incognito
}

func (m *Manager) SetIncognito(incognito bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.incognito == incognito {
		return
	}
	m.incognito = incognito
	m.logger.WithField("incognito", incognito).Info("Incognito mode changed")
}

// SongIsPlaying records the song that playback has started. The song is
// consumed from the queue and the up-next list if it sits there.
func (m *Manager) SongIsPlaying(song *models.Song) {
	if song == nil {
		return
	}

	m.mu.Lock()

	m.queue = removeFromList(m.queue, song)
	song.Queued = false
	m.upNext = removeFromList(m.upNext, song)

	if m.current != nil && m.current != song && m.current.Status == models.StatusPlaying {
		m.current.Status = models.StatusAvailable
	}
	song.Status = models.StatusPlaying
	m.current = song

	event := m.songsChangedEvent()
	m.mu.Unlock()

	m.logger.WithField("song", song.NameNotEmpty()).Info("Song started")
	m.emit(event)
}

// GetNextSong returns the upcoming song without consuming it, running the
// intelligence engine when nothing is precomputed. Entries that left the
// library in the meantime are discarded and the computation retried.
func (m *Manager) GetNextSong() *models.Song {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextLocked()
}

func (m *Manager) nextLocked() *models.Song {
	for {
		if len(m.upNext) == 0 {
			chosen := m.chooseLocked()
			if chosen == nil {
				return nil
			}
			m.upNext = append(m.upNext, chosen)
		}

		head := m.upNext[0]
		if m.library.Contains(head) {
			return head
		}
		m.upNext = m.upNext[1:]
	}
}

// chooseLocked runs one intelligence pass over a library snapshot with the
// current song excluded and its artist hash treated as already recent.
func (m *Manager) chooseLocked() *models.Song {
	available := m.library.Songs()
	if m.current != nil {
		available = removeFromList(available, m.current)
	}

	recent := m.recentArtists
	if m.current != nil {
		if hash := m.current.ArtistHash(); hash != 0 {
			recent = append([]uint32{hash}, recent...)
		}
	}

	in := intelligence.Context{
		Available:     available,
		History:       m.history,
		UpNext:        m.upNext,
		RecentArtists: recent,
	}
	return m.intel.ChooseSong(in, m.settings.Filter(), m.settings.Modifiers())
}

// NextSong consumes and returns the song playback should start next. The
// user queue takes priority over the precomputed up-next list.
func (m *Manager) NextSong() *models.Song {
	m.mu.Lock()
	defer m.mu.Unlock()

	for len(m.queue) > 0 {
		song := m.queue[0]
		m.queue = m.queue[1:]
		song.Queued = false
		if m.library.Contains(song) {
			return song
		}
	}

	song := m.nextLocked()
	if song != nil {
		m.upNext = m.upNext[1:]
	}
	return song
}

// AddPlayed files a finished song: history, recent artists, then the
// statistics rules in their fixed order (score, play count, skip count,
// last played). Incognito suppresses the statistics and the library flush.
func (m *Manager) AddPlayed(song *models.Song, fraction float64, skipScore bool) {
	if song == nil {
		return
	}

	m.mu.Lock()

	m.history = append([]*models.Song{song}, m.history...)
	if len(m.history) > HistoryLimit {
		m.history = m.history[:HistoryLimit]
	}

	if hash := song.ArtistHash(); hash != 0 {
		m.recentArtists = append([]uint32{hash}, m.recentArtists...)
		if len(m.recentArtists) > RecentArtistsLimit {
			m.recentArtists = m.recentArtists[:RecentArtistsLimit]
		}
	}

	if !m.incognito {
		cfg := m.settings.StatsConfig(m.incognito)
		if !skipScore {
			m.stats.ApplyPlayedScore(song, fraction, cfg)
		}
		m.stats.ApplyPlayedPlayCount(song, fraction, false, cfg)
		m.stats.ApplyPlayedSkipCount(song, fraction, false, cfg)
		m.stats.ApplyPlayedLastPlayed(song, fraction, 0, cfg)
		m.library.QueueWrite()
	}

	if song.Status == models.StatusPlaying {
		song.Status = models.StatusAvailable
	}
	if m.current == song {
		m.current = nil
	}
	m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"song":     song.NameNotEmpty(),
		"fraction": fraction,
	}).Info("Song filed as played")

	m.emit(models.Event{Type: models.EventStatsUpdated, Current: song})
}

// RevertToPrevious pops the most recent history entry for replay and puts
// the current song back on top of up-next. Reverting with nothing playing
// only pops the history.
func (m *Manager) RevertToPrevious() *models.Song {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.history) == 0 {
		return nil
	}

	previous := m.history[0]
	m.history = m.history[1:]

	if m.current != nil {
		m.upNext = append([]*models.Song{m.current}, m.upNext...)
	}

	m.logger.WithField("song", previous.NameNotEmpty()).Info("Reverting to previous song")
	return previous
}

// RefreshNext throws the precomputed choices away; the next request runs the
// intelligence engine again.
func (m *Manager) RefreshNext() {
	m.mu.Lock()
	m.upNext = nil
	m.mu.Unlock()
	m.emitChanged()
}

// ClearNext drops the precomputed choices without announcing anything.
func (m *Manager) ClearNext() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upNext = nil
}

// History returns a snapshot, most recent first.
func (m *Manager) History() []*models.Song {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Song, len(m.history))
	copy(out, m.history)
	return out
}

// Previous returns the most recent history entry without consuming it.
func (m *Manager) Previous() *models.Song {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.history) == 0 {
		return nil
	}
	return m.history[0]
}

// Queue returns a snapshot of the user queue in play order.
func (m *Manager) Queue() []*models.Song {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Song, len(m.queue))
	copy(out, m.queue)
	return out
}

// SetQueued adds a song to (or removes it from) the strict-FIFO user queue.
func (m *Manager) SetQueued(song *models.Song, queued bool) {
	m.mu.Lock()

	if song == nil {
		m.mu.Unlock()
		return
	}

	if queued {
		if !song.Queued {
			m.queue = append(m.queue, song)
			song.Queued = true
		}
	} else {
		m.queue = removeFromList(m.queue, song)
		song.Queued = false
	}
	m.mu.Unlock()

	m.emitChanged()
}

// Sync is the quiescent-point hook: precompute the next choice, flush the
// library and drop references the bounded lists no longer need.
func (m *Manager) Sync() {
	m.mu.Lock()
	m.nextLocked()
	m.mu.Unlock()

	if err := m.library.Write(false); err != nil {
		m.logger.WithError(err).Warn("Deferred library write failed")
		m.emit(models.Event{Type: models.EventMessage, Message: "The library could not be saved."})
	}
}

// SongsUpdated reacts to a library change: up-next entries that left the
// library are dropped and the change is announced.
func (m *Manager) SongsUpdated() {
	m.mu.Lock()
	kept := m.upNext[:0]
	for _, song := range m.upNext {
		if m.library.Contains(song) {
			kept = append(kept, song)
		}
	}
	m.upNext = kept

	remaining := m.queue[:0]
	for _, song := range m.queue {
		if m.library.Contains(song) {
			remaining = append(remaining, song)
		} else {
			song.Queued = false
		}
	}
	m.queue = remaining
	m.mu.Unlock()

	m.emitChanged()
}

// emitChanged builds and emits the songs-changed report. Callers must not
// hold the lock; the hook may call back into the manager.
func (m *Manager) emitChanged() {
	m.mu.Lock()
	event := m.songsChangedEvent()
	m.mu.Unlock()
	m.emit(event)
}

// songsChangedEvent reports previous/current/next. The user queue outranks
// the up-next list; a current song flagged stop-after suppresses the next
// announcement. Callers hold the lock.
func (m *Manager) songsChangedEvent() models.Event {
	var previous *models.Song
	if len(m.history) > 0 {
		previous = m.history[0]
	}

	var next *models.Song
	switch {
	case m.current != nil && m.current.StopAfter:
		next = nil
	case len(m.queue) > 0:
		next = m.queue[0]
	case len(m.upNext) > 0:
		next = m.upNext[0]
	}

	return models.Event{
		Type:     models.EventSongsChanged,
		Previous: previous,
		Current:  m.current,
		Next:     next,
	}
}

func removeFromList(songs []*models.Song, song *models.Song) []*models.Song {
	for i, candidate := range songs {
		if candidate == song {
			out := make([]*models.Song, 0, len(songs)-1)
			out = append(out, songs[:i]...)
			return append(out, songs[i+1:]...)
		}
	}
	return songs
}
