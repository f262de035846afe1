// Package playback owns the playback session state and turns the output
// collaborator's reports into statistics and selection updates. The audio
// pipeline itself lives behind the Output interface.
package playback

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/nocturnehq/nocturne/models"
	"github.com/nocturnehq/nocturne/settings"
	"github.com/nocturnehq/nocturne/songmanager"
)

// Output is the audio collaborator. Start is asynchronous: the collaborator
// acknowledges with StreamStarted and later reports PositionUpdated,
// EndOfStream or StreamError on the session.
type Output interface {
	Start(song *models.Song) error
	SetPaused(paused bool)
	Seek(seconds float64)
	Stop()
}

// Session tracks what the player is doing and with which song, computes the
// played fraction, and drives the song manager through the song life cycle.
type Session struct {
	mu sync.Mutex

	logger   *logrus.Logger
	manager  *songmanager.Manager
	settings *settings.Settings
	output   Output
	notify   models.Notify

	state    models.PlaybackState
	position float64
	duration float64
}

func New(manager *songmanager.Manager, cfg *settings.Settings, output Output,
	logger *logrus.Logger) *Session {
	return &Session{
		logger:   logger,
		manager:  manager,
		settings: cfg,
		output:   output,
	}
}

// SetNotify installs the event hook.
func (s *Session) SetNotify(notify models.Notify) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notify = notify
}

func (s *Session) emit(event models.Event) {
	s.mu.Lock()
	notify := s.notify
	s.mu.Unlock()
	if notify != nil {
		notify(event)
	}
}

// State returns the current playback state.
func (s *Session) State() models.PlaybackState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Position returns the playback position in seconds.
func (s *Session) Position() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// Duration returns the stream duration in seconds, 0 when unknown.
func (s *Session) Duration() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration
}

// Volume returns the session volume percentage.
func (s *Session) Volume() float64 {
	return s.settings.General().UsedVolume
}

// SetVolume stores the session volume percentage.
func (s *Session) SetVolume(volume float64) {
	s.settings.SetVolume(volume)
}

// Play resumes a paused stream or starts the next song.
func (s *Session) Play() {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	switch state {
	case models.PlaybackPaused:
		s.output.SetPaused(false)
		s.setState(models.PlaybackPlaying)
	case models.PlaybackStopped:
		s.startSong(s.manager.NextSong())
	}
}

// Pause pauses a playing stream.
func (s *Session) Pause() {
	if s.State() != models.PlaybackPlaying {
		return
	}
	s.output.SetPaused(true)
	s.setState(models.PlaybackPaused)
}

// PlayPause toggles between playing and paused, starting playback when
// stopped.
func (s *Session) PlayPause() {
	if s.State() == models.PlaybackPlaying {
		s.Pause()
	} else {
		s.Play()
	}
}

// Stop ends playback. A partially heard song is filed as skipped.
func (s *Session) Stop() {
	s.finishCurrent(false)
	s.output.Stop()
	s.setState(models.PlaybackStopped)
}

// Next files the current song with the heard fraction and starts the
// following one.
func (s *Session) Next() {
	s.finishCurrent(false)
	s.startSong(s.manager.NextSong())
}

// Previous replays the most recently played song. The current song goes
// back on top of up-next without touching its statistics.
func (s *Session) Previous() {
	previous := s.manager.RevertToPrevious()
	if previous == nil {
		s.logger.Info("No previous song to go back to")
		return
	}
	s.finishCurrent(true)
	s.startSong(previous)
}

// PlaySong starts a specific song, filing whatever was playing.
func (s *Session) PlaySong(song *models.Song) {
	if song == nil {
		return
	}
	s.finishCurrent(false)
	s.startSong(song)
}

// Seek jumps to a position given as a percentage of the stream.
func (s *Session) Seek(percentage float64) {
	if percentage < 0 || percentage > 100 {
		s.logger.WithField("percentage", percentage).Warn("Seek out of range")
		return
	}

	s.mu.Lock()
	duration := s.duration
	s.mu.Unlock()
	if duration <= 0 {
		return
	}

	s.output.Seek(duration * percentage / 100.0)
}

// SetPosition jumps to an absolute position in seconds.
func (s *Session) SetPosition(seconds float64) {
	if seconds < 0 {
		return
	}
	s.output.Seek(seconds)
}

func (s *Session) setState(state models.PlaybackState) {
	s.mu.Lock()
	if s.state == state {
		s.mu.Unlock()
		return
	}
	s.state = state
	s.mu.Unlock()

	s.logger.WithField("state", state.String()).Info("Playback state changed")
	s.emit(models.Event{Type: models.EventStateChanged, State: state})
}

// startSong hands a song to the output. Start failures are mapped onto the
// song's status; the session stops rather than aborting the process.
func (s *Session) startSong(song *models.Song) {
	if song == nil {
		s.setState(models.PlaybackStopped)
		return
	}

	if err := s.output.Start(song); err != nil {
		s.logger.WithError(err).WithField("song", song.NameNotEmpty()).Warn("Could not start song")
		s.markFailed(song, err)
		s.setState(models.PlaybackStopped)
		s.emit(models.Event{
			Type:    models.EventMessage,
			Message: "Unable to play " + song.NameNotEmpty(),
		})
	}
}

// finishCurrent files the current song with the fraction heard so far.
// skipScore leaves the score untouched, used when the listener goes back
// rather than away.
func (s *Session) finishCurrent(skipScore bool) {
	current := s.manager.Current()
	if current == nil {
		return
	}

	fraction := s.playedFraction()
	s.manager.AddPlayed(current, fraction, skipScore)

	s.mu.Lock()
	s.position = 0
	s.duration = 0
	s.mu.Unlock()
}

func (s *Session) playedFraction() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.duration <= 0 {
		return 0
	}
	fraction := s.position / s.duration
	if fraction < 0 {
		fraction = 0
	} else if fraction > 1 {
		fraction = 1
	}
	return fraction
}

// StreamStarted is the output's acknowledgement that a song is audible.
// The expensive follow-up work (precomputing the next choice, flushing the
// library) runs here so it never delays the start itself.
func (s *Session) StreamStarted(song *models.Song, duration float64) {
	s.mu.Lock()
	s.position = 0
	s.duration = duration
	s.mu.Unlock()

	// Tags rarely carry a playing time; the decoded stream does.
	if song != nil && song.Duration == 0 && duration > 0 {
		song.Duration = int(duration)
	}

	s.manager.SongIsPlaying(song)
	s.setState(models.PlaybackPlaying)
	s.manager.Sync()
}

// PositionUpdated is the output's progress report.
func (s *Session) PositionUpdated(seconds float64) {
	s.mu.Lock()
	s.position = seconds
	s.mu.Unlock()
	s.emit(models.Event{Type: models.EventPositionUpdated, Position: seconds})
}

// EndOfStream files the finished song and moves on. The stop-after flag is
// read before the next-song computation.
func (s *Session) EndOfStream() {
	current := s.manager.Current()
	stopAfter := current != nil && current.StopAfter

	if current != nil {
		s.mu.Lock()
		if s.duration > 0 {
			// The whole stream was heard.
			s.position = s.duration
		}
		s.mu.Unlock()
		s.finishCurrent(false)
		current.StopAfter = false
	}

	if stopAfter {
		s.output.Stop()
		s.setState(models.PlaybackStopped)
		return
	}
	s.startSong(s.manager.NextSong())
}

// StreamError maps an output failure onto the current song and stops. The
// partially-heard statistics apply only when some but not all of the stream
// was played.
func (s *Session) StreamError(err error) {
	current := s.manager.Current()
	if current != nil {
		s.markFailed(current, err)
		fraction := s.playedFraction()
		if fraction > 0 && fraction < 1 {
			s.manager.AddPlayed(current, fraction, false)
		}
	}

	s.output.Stop()
	s.setState(models.PlaybackStopped)
	s.emit(models.Event{Type: models.EventMessage, Message: "Playback failed"})
}

// markFailed distinguishes a missing resource from a transient failure.
func (s *Session) markFailed(song *models.Song, err error) {
	if isNotFound(song, err) {
		song.Status = models.StatusNotFound
		song.Modified = -1
		return
	}
	song.Status = models.StatusAvailable
}

func isNotFound(song *models.Song, err error) bool {
	if os.IsNotExist(err) {
		return true
	}
	// The output may wrap its own error type; trust the filesystem.
	if _, statErr := os.Stat(song.URI); os.IsNotExist(statErr) {
		return true
	}
	return false
}
