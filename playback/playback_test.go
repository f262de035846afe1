package playback

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/nocturnehq/nocturne/intelligence"
	"github.com/nocturnehq/nocturne/library"
	"github.com/nocturnehq/nocturne/models"
	"github.com/nocturnehq/nocturne/settings"
	"github.com/nocturnehq/nocturne/songmanager"
	"github.com/nocturnehq/nocturne/statistics"
)

type fakeOutput struct {
	started  []*models.Song
	stops    int
	paused   []bool
	seeks    []float64
	startErr error
}

func (f *fakeOutput) Start(song *models.Song) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, song)
	return nil
}

func (f *fakeOutput) SetPaused(paused bool) { f.paused = append(f.paused, paused) }
func (f *fakeOutput) Seek(seconds float64)  { f.seeks = append(f.seeks, seconds) }
func (f *fakeOutput) Stop()                 { f.stops++ }

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func testSession(t *testing.T) (*Session, *songmanager.Manager, *library.Library, *fakeOutput) {
	t.Helper()
	logger := testLogger()
	dir := t.TempDir()
	lib := library.New(filepath.Join(dir, "library.conf"), logger)
	cfg := settings.New(filepath.Join(dir, "settings.conf"), logger)
	intel := intelligence.NewWithRand(logger, rand.New(rand.NewSource(11)))
	stats := statistics.New(logger)
	manager := songmanager.New(lib, cfg, intel, stats, logger)
	output := &fakeOutput{}
	return New(manager, cfg, output, logger), manager, lib, output
}

func fillLibrary(t *testing.T, lib *library.Library, n int) []*models.Song {
	t.Helper()
	songs := make([]*models.Song, 0, n)
	for i := 0; i < n; i++ {
		s := models.NewSong(fmt.Sprintf("/music/%02d.mp3", i))
		if err := lib.Add(s); err != nil {
			t.Fatal(err)
		}
		songs = append(songs, s)
	}
	return songs
}

func TestPlayFromStopped(t *testing.T) {
	sess, _, lib, out := testSession(t)
	fillLibrary(t, lib, 3)

	sess.Play()
	if len(out.started) != 1 {
		t.Fatalf("output started %d songs, want 1", len(out.started))
	}
}

func TestPlayFromEmptyLibrary(t *testing.T) {
	sess, _, _, out := testSession(t)
	sess.Play()
	if len(out.started) != 0 {
		t.Error("nothing should start from an empty library")
	}
	if sess.State() != models.PlaybackStopped {
		t.Errorf("state = %v, want stopped", sess.State())
	}
}

func TestStreamStartedMarksPlaying(t *testing.T) {
	sess, manager, lib, _ := testSession(t)
	songs := fillLibrary(t, lib, 3)

	sess.StreamStarted(songs[0], 180)

	if sess.State() != models.PlaybackPlaying {
		t.Errorf("state = %v, want playing", sess.State())
	}
	if manager.Current() != songs[0] {
		t.Error("the acknowledged song should be current")
	}
	if songs[0].Status != models.StatusPlaying {
		t.Errorf("song status = %v, want playing", songs[0].Status)
	}
	if songs[0].Duration != 180 {
		t.Errorf("Duration = %d, want 180 filled in from the stream", songs[0].Duration)
	}
	if _, err := os.Stat(lib.Path()); err != nil {
		t.Errorf("stream start should trigger the deferred library flush: %v", err)
	}
}

func TestPauseAndResume(t *testing.T) {
	sess, _, lib, out := testSession(t)
	songs := fillLibrary(t, lib, 3)
	sess.StreamStarted(songs[0], 180)

	sess.Pause()
	if sess.State() != models.PlaybackPaused {
		t.Fatalf("state after pause = %v", sess.State())
	}
	sess.PlayPause()
	if sess.State() != models.PlaybackPlaying {
		t.Fatalf("state after resume = %v", sess.State())
	}
	if len(out.paused) != 2 || !out.paused[0] || out.paused[1] {
		t.Errorf("pause sequence = %v, want [true false]", out.paused)
	}
}

func TestEndOfStreamFilesFullPlay(t *testing.T) {
	sess, manager, lib, out := testSession(t)
	songs := fillLibrary(t, lib, 3)
	song := songs[0]
	song.Score = 70.0
	song.PlayCount = 3

	sess.StreamStarted(song, 180)
	sess.PositionUpdated(170)
	sess.EndOfStream()

	if song.Score != 77.5 {
		t.Errorf("score = %v, want 77.5", song.Score)
	}
	if song.PlayCount != 4 {
		t.Errorf("play count = %d, want 4", song.PlayCount)
	}
	if song.SkipCount != 0 {
		t.Errorf("skip count = %d, want 0", song.SkipCount)
	}
	if manager.Previous() != song {
		t.Error("the finished song should top the history")
	}
	if len(out.started) != 1 {
		t.Errorf("output started %d follow-ups, want 1", len(out.started))
	}
}

func TestEndOfStreamStopAfter(t *testing.T) {
	sess, _, lib, out := testSession(t)
	songs := fillLibrary(t, lib, 3)
	songs[0].StopAfter = true

	sess.StreamStarted(songs[0], 180)
	sess.EndOfStream()

	if len(out.started) != 0 {
		t.Error("stop-after should suppress the follow-up start")
	}
	if sess.State() != models.PlaybackStopped {
		t.Errorf("state = %v, want stopped", sess.State())
	}
	if songs[0].StopAfter {
		t.Error("the stop-after flag should be cleared once honoured")
	}
}

func TestNextFilesSkip(t *testing.T) {
	sess, _, lib, out := testSession(t)
	songs := fillLibrary(t, lib, 3)
	song := songs[0]

	sess.StreamStarted(song, 100)
	sess.PositionUpdated(30)
	sess.Next()

	if song.PlayCount != 1 {
		t.Errorf("play count = %d, want 1 (fraction above minimum)", song.PlayCount)
	}
	if song.SkipCount != 1 {
		t.Errorf("skip count = %d, want 1 (fraction below full)", song.SkipCount)
	}
	if len(out.started) != 1 {
		t.Errorf("output started %d songs, want 1", len(out.started))
	}
}

func TestPreviousKeepsScore(t *testing.T) {
	sess, _, lib, out := testSession(t)
	songs := fillLibrary(t, lib, 3)
	first := songs[0]
	first.Score = 70.0

	sess.StreamStarted(first, 100)
	sess.PositionUpdated(100)
	sess.EndOfStream()
	if len(out.started) != 1 {
		t.Fatalf("no follow-up started")
	}
	scoreAfterPlay := first.Score

	second := out.started[0]
	sess.StreamStarted(second, 100)
	sess.PositionUpdated(10)
	sess.Previous()

	if out.started[len(out.started)-1] != first {
		t.Error("Previous should restart the song that just played")
	}
	if second.Score != models.InitialScore {
		t.Errorf("a revert must not rescore the interrupted song: %v", second.Score)
	}
	if first.Score != scoreAfterPlay {
		t.Errorf("score changed by revert: %v != %v", first.Score, scoreAfterPlay)
	}
}

func TestPreviousWithNoHistory(t *testing.T) {
	sess, _, lib, out := testSession(t)
	fillLibrary(t, lib, 3)
	sess.Previous()
	if len(out.started) != 0 {
		t.Error("nothing should start when there is no history")
	}
}

func TestStreamErrorMissingFile(t *testing.T) {
	sess, _, lib, _ := testSession(t)
	songs := fillLibrary(t, lib, 3)
	song := songs[0]

	sess.StreamStarted(song, 100)
	sess.StreamError(os.ErrNotExist)

	if song.Status != models.StatusNotFound {
		t.Errorf("status = %v, want not-found", song.Status)
	}
	if song.Modified != -1 {
		t.Errorf("modified = %d, want -1", song.Modified)
	}
	if sess.State() != models.PlaybackStopped {
		t.Errorf("state = %v, want stopped", sess.State())
	}
}

func TestStreamErrorPartialStats(t *testing.T) {
	sess, _, lib, _ := testSession(t)
	songs := fillLibrary(t, lib, 3)
	song := songs[0]

	// Nothing heard: no stats at all.
	sess.StreamStarted(song, 100)
	sess.StreamError(os.ErrNotExist)
	if song.PlayCount != 0 || song.SkipCount != 0 {
		t.Errorf("stats after unheard failure = %d/%d, want 0/0", song.PlayCount, song.SkipCount)
	}

	// Partially heard: the fraction counts.
	song.Status = models.StatusAvailable
	sess.StreamStarted(song, 100)
	sess.PositionUpdated(50)
	sess.StreamError(os.ErrNotExist)
	if song.PlayCount != 1 {
		t.Errorf("play count after partial failure = %d, want 1", song.PlayCount)
	}
}

func TestSeek(t *testing.T) {
	sess, _, lib, out := testSession(t)
	songs := fillLibrary(t, lib, 3)
	sess.StreamStarted(songs[0], 200)

	sess.Seek(25)
	if len(out.seeks) != 1 || out.seeks[0] != 50 {
		t.Errorf("seeks = %v, want [50]", out.seeks)
	}

	sess.Seek(150)
	if len(out.seeks) != 1 {
		t.Error("an out-of-range percentage must be rejected")
	}
}
