package songmanager

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
	"github.com/nocturnehq/nocturne/statistics"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func testManager(t *testing.T) (*Manager, *library.Library) {
	t.Helper()
	logger := testLogger()
	dir := t.TempDir()
	lib := library.New(filepath.Join(dir, "library.conf"), logger)
	cfg := settings.New(filepath.Join(dir, "settings.conf"), logger)
	intel := intelligence.NewWithRand(logger, rand.New(rand.NewSource(7)))
	stats := statistics.New(logger)
	return New(lib, cfg, intel, stats, logger), lib
}

func addSongs(t *testing.T, lib *library.Library, n int) []*models.Song {
	t.Helper()
	songs := make([]*models.Song, 0, n)
	for i := 0; i < n; i++ {
		s := models.NewSong(fmt.Sprintf("/music/%02d.mp3", i))
		s.Artist = fmt.Sprintf("Artist %02d", i)
		if err := lib.Add(s); err != nil {
			t.Fatalf("Add: %v", err)
		}
		songs = append(songs, s)
	}
	return songs
}

func TestGetNextSongEmptyLibrary(t *testing.T) {
	m, _ := testManager(t)
	if got := m.GetNextSong(); got != nil {
		t.Errorf("GetNextSong on an empty library = %v, want nil", got)
	}
}

func TestGetNextSongPeeks(t *testing.T) {
	m, lib := testManager(t)
	addSongs(t, lib, 5)

	first := m.GetNextSong()
	if first == nil {
		t.Fatal("GetNextSong returned nil with songs available")
	}
	if again := m.GetNextSong(); again != first {
		t.Error("GetNextSong should not consume the precomputed choice")
	}
}

func TestGetNextSongSkipsRemoved(t *testing.T) {
	m, lib := testManager(t)
	addSongs(t, lib, 5)

	first := m.GetNextSong()
	lib.Remove(first)

	next := m.GetNextSong()
	if next == nil {
		t.Fatal("GetNextSong returned nil after a removal")
	}
	if next == first {
		t.Error("a removed song must not be advertised as next")
	}
}

func TestNextSongConsumes(t *testing.T) {
	m, lib := testManager(t)
	addSongs(t, lib, 5)

	peeked := m.GetNextSong()
	popped := m.NextSong()
	if popped != peeked {
		t.Error("NextSong should return the advertised choice")
	}
	if m.GetNextSong() == popped {
		t.Error("NextSong should have consumed the choice")
	}
}

func TestQueueTakesPriority(t *testing.T) {
	m, lib := testManager(t)
	songs := addSongs(t, lib, 5)

	m.GetNextSong()
	m.SetQueued(songs[3], true)
	if !songs[3].Queued {
		t.Error("queued flag should be set")
	}

	if got := m.NextSong(); got != songs[3] {
		t.Errorf("NextSong = %v, want the queued song", got.NameNotEmpty())
	}
	if songs[3].Queued {
		t.Error("queued flag should be cleared on consumption")
	}
}

func TestQueueIsFIFO(t *testing.T) {
	m, lib := testManager(t)
	songs := addSongs(t, lib, 5)

	m.SetQueued(songs[2], true)
	m.SetQueued(songs[0], true)
	m.SetQueued(songs[4], true)
	m.SetQueued(songs[0], false)

	if got := m.NextSong(); got != songs[2] {
		t.Errorf("first from queue = %v, want songs[2]", got.NameNotEmpty())
	}
	if got := m.NextSong(); got != songs[4] {
		t.Errorf("second from queue = %v, want songs[4]", got.NameNotEmpty())
	}
}

func TestAddPlayedUpdatesStats(t *testing.T) {
	m, lib := testManager(t)
	songs := addSongs(t, lib, 3)
	song := songs[0]
	song.Score = 70.0
	song.PlayCount = 3

	m.SongIsPlaying(song)
	m.AddPlayed(song, 0.9, false)

	if song.Score != 77.5 {
		t.Errorf("score = %v, want 77.5", song.Score)
	}
	if song.PlayCount != 4 {
		t.Errorf("play count = %d, want 4", song.PlayCount)
	}
	if song.SkipCount != 0 {
		t.Errorf("skip count = %d, want 0", song.SkipCount)
	}
	if song.LastPlayed == 0 {
		t.Error("last played should be set")
	}
	if m.Current() != nil {
		t.Error("current should be cleared after filing")
	}
	if m.Previous() != song {
		t.Error("history head should be the filed song")
	}
}

func TestAddPlayedIncognito(t *testing.T) {
	m, lib := testManager(t)
	songs := addSongs(t, lib, 3)
	song := songs[0]
	song.Score = 70.0

	// Flush so the dirty flag truly reflects playback activity.
	if err := lib.Write(true); err != nil {
		t.Fatal(err)
	}

	m.SetIncognito(true)
	m.SongIsPlaying(song)
	m.AddPlayed(song, 1.0, false)

	if song.Score != 70.0 || song.PlayCount != 0 || song.LastPlayed != 0 {
		t.Errorf("incognito playback changed stats: %v/%d/%d",
			song.Score, song.PlayCount, song.LastPlayed)
	}

	path := lib.Path()
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := lib.Write(false); err != nil {
		t.Fatal(err)
	}
	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("incognito playback should not dirty the library")
	}

	if m.Previous() != song {
		t.Error("incognito playback should still reach the history")
	}
}

func TestRevertSymmetry(t *testing.T) {
	m, lib := testManager(t)
	songs := addSongs(t, lib, 3)
	played := songs[0]
	nowPlaying := songs[1]

	m.SongIsPlaying(played)
	m.AddPlayed(played, 1.0, false)
	m.SongIsPlaying(nowPlaying)

	got := m.RevertToPrevious()
	if got != played {
		t.Errorf("RevertToPrevious = %v, want the filed song", got.NameNotEmpty())
	}
	if next := m.GetNextSong(); next != nowPlaying {
		t.Errorf("next after revert = %v, want the interrupted song", next.NameNotEmpty())
	}
}

func TestRevertWithNothingPlaying(t *testing.T) {
	m, lib := testManager(t)
	songs := addSongs(t, lib, 2)

	m.SongIsPlaying(songs[0])
	m.AddPlayed(songs[0], 1.0, false)

	// Nothing is playing now; the revert must not advertise a phantom song.
	got := m.RevertToPrevious()
	if got != songs[0] {
		t.Errorf("RevertToPrevious = %v, want songs[0]", got)
	}

	if next := m.GetNextSong(); next == nil {
		t.Error("GetNextSong should still work after a revert with nothing playing")
	}
}

func TestRevertEmptyHistory(t *testing.T) {
	m, _ := testManager(t)
	if got := m.RevertToPrevious(); got != nil {
		t.Errorf("RevertToPrevious with no history = %v, want nil", got)
	}
}

func TestHistoryBounded(t *testing.T) {
	m, lib := testManager(t)
	m.SetIncognito(true)
	for i := 0; i < HistoryLimit+20; i++ {
		s := models.NewSong(fmt.Sprintf("/music/bulk-%03d.mp3", i))
		if err := lib.Add(s); err != nil {
			t.Fatal(err)
		}
		m.AddPlayed(s, 1.0, false)
	}
	if got := len(m.History()); got != HistoryLimit {
		t.Errorf("history length = %d, want %d", got, HistoryLimit)
	}
}

func TestSongsChangedEvent(t *testing.T) {
	m, lib := testManager(t)
	songs := addSongs(t, lib, 5)

	var last models.Event
	seen := 0
	m.SetNotify(func(e models.Event) {
		if e.Type == models.EventSongsChanged {
			last = e
			seen++
		}
	})

	m.SongIsPlaying(songs[0])
	if seen == 0 {
		t.Fatal("SongIsPlaying should announce a songs-changed event")
	}
	if last.Current != songs[0] {
		t.Errorf("announced current = %v, want songs[0]", last.Current)
	}

	m.SetQueued(songs[2], true)
	if last.Next != songs[2] {
		t.Error("the queue head should be announced as next")
	}

	songs[0].StopAfter = true
	m.RefreshNext()
	if last.Next != nil {
		t.Error("stop-after should suppress the next announcement")
	}
}

func TestSongsUpdatedDropsForeigners(t *testing.T) {
	m, lib := testManager(t)
	songs := addSongs(t, lib, 3)

	m.SetQueued(songs[1], true)
	next := m.GetNextSong()

	lib.Remove(songs[1])
	lib.Remove(next)
	m.SongsUpdated()

	if songs[1].Queued {
		t.Error("a removed song should lose its queued flag")
	}
	if got := m.GetNextSong(); got == next && !lib.Contains(next) {
		t.Error("a removed song should not stay advertised as next")
	}
}

func TestSyncPrecomputesAndFlushes(t *testing.T) {
	m, lib := testManager(t)
	addSongs(t, lib, 3)

	m.Sync()

	if _, err := os.Stat(lib.Path()); err != nil {
		t.Errorf("Sync should flush the dirty library: %v", err)
	}
	if m.GetNextSong() == nil {
		t.Error("Sync should leave a precomputed next choice")
	}
}
