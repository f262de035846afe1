package statistics

import (
	"math"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nocturnehq/nocturne/models"
)

func testRules() *Rules {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return New(logger)
}

func testSong() *models.Song {
	return models.NewSong("file:///music/test.mp3")
}

func TestUpdateRating(t *testing.T) {
	tests := []struct {
		name     string
		current  int
		rating   int
		increase int
		expected int
	}{
		{name: "Set directly", current: 0, rating: 80, increase: 0, expected: 80},
		{name: "Reset with -1", current: 80, rating: -1, increase: 0, expected: 0},
		{name: "Increase", current: 40, rating: 0, increase: 20, expected: 60},
		{name: "Decrease", current: 40, rating: 0, increase: -20, expected: 20},
		{name: "Increase above max rejected", current: 90, rating: 0, increase: 20, expected: 90},
		{name: "Decrease to zero rejected", current: 10, rating: 0, increase: -10, expected: 10},
		{name: "Decrease below min rejected", current: 10, rating: 0, increase: -20, expected: 10},
		{name: "Out-of-range value rejected", current: 30, rating: 150, increase: 150, expected: 30},
		{name: "Negative value rejected", current: 30, rating: -5, increase: 150, expected: 30},
		{name: "Max boundary", current: 0, rating: 100, increase: 0, expected: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules := testRules()
			song := testSong()
			song.Rating = tt.current

			rules.UpdateRating(song, tt.rating, tt.increase)

			if song.Rating != tt.expected {
				t.Errorf("Rating = %d, want %d", song.Rating, tt.expected)
			}
			if !ValidRating(song.Rating) {
				t.Errorf("Rating %d left the valid range", song.Rating)
			}
		})
	}
}

func TestUpdateRatingStaysInRange(t *testing.T) {
	// Arbitrary update sequences must never leave the stored rating
	// outside [0,100].
	rules := testRules()
	song := testSong()

	inputs := []struct{ rating, increase int }{
		{50, 0}, {0, 60}, {0, -200}, {101, 0}, {-1, 0}, {0, 100}, {0, 100},
		{99, 0}, {0, 1}, {0, 1}, {-7, 0}, {0, -100000},
	}

	for _, in := range inputs {
		rules.UpdateRating(song, in.rating, in.increase)
		if !ValidRating(song.Rating) {
			t.Fatalf("Rating %d out of range after (%d, %d)", song.Rating, in.rating, in.increase)
		}
	}
}

func TestUpdateScore(t *testing.T) {
	tests := []struct {
		name     string
		current  float64
		score    float64
		increase float64
		expected float64
	}{
		{name: "Set directly", current: 50, score: 75.5, increase: 0, expected: 75.5},
		{name: "Reset with -1", current: 80, score: -1, increase: 0, expected: 0},
		{name: "Increase", current: 40, score: 0, increase: 10.5, expected: 50.5},
		{name: "Increase above max rejected", current: 95, score: 0, increase: 10, expected: 95},
		{name: "Decrease below min rejected", current: 5, score: 0, increase: -10, expected: 5},
		{name: "Out-of-range value rejected", current: 30, score: 120, increase: 200, expected: 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules := testRules()
			song := testSong()
			song.Score = tt.current

			rules.UpdateScore(song, tt.score, tt.increase)

			if math.Abs(song.Score-tt.expected) > 1e-9 {
				t.Errorf("Score = %v, want %v", song.Score, tt.expected)
			}
		})
	}
}

func TestUpdateCounts(t *testing.T) {
	rules := testRules()
	song := testSong()

	rules.UpdatePlayCount(song, 0, 1)
	rules.UpdatePlayCount(song, 0, 1)
	if song.PlayCount != 2 {
		t.Errorf("PlayCount = %d, want 2", song.PlayCount)
	}

	rules.UpdatePlayCount(song, 0, -3)
	if song.PlayCount != 2 {
		t.Errorf("PlayCount below zero should be rejected, got %d", song.PlayCount)
	}

	rules.UpdatePlayCount(song, 7, 0)
	if song.PlayCount != 7 {
		t.Errorf("PlayCount = %d, want 7", song.PlayCount)
	}

	rules.UpdatePlayCount(song, -1, 0)
	if song.PlayCount != 0 {
		t.Errorf("PlayCount reset failed, got %d", song.PlayCount)
	}

	rules.UpdateSkipCount(song, 0, 1)
	rules.UpdateSkipCount(song, 0, -1)
	if song.SkipCount != 0 {
		t.Errorf("SkipCount = %d, want 0", song.SkipCount)
	}
}

func TestUpdateLastPlayed(t *testing.T) {
	rules := testRules()
	song := testSong()

	rules.UpdateLastPlayed(song, 1700000000, 0)
	if song.LastPlayed != 1700000000 {
		t.Errorf("LastPlayed = %d, want 1700000000", song.LastPlayed)
	}

	rules.UpdateLastPlayed(song, -1, 0)
	if song.LastPlayed != 0 {
		t.Errorf("LastPlayed reset failed, got %d", song.LastPlayed)
	}
}

func TestApplyPlayedScore(t *testing.T) {
	cfg := Config{MinPlayedFraction: 0.2, FullPlayedFraction: 0.8}

	tests := []struct {
		name      string
		playCount int
		oldScore  float64
		fraction  float64
		expected  float64
	}{
		{
			name:      "First play full fraction",
			playCount: 0,
			oldScore:  50,
			fraction:  1.0,
			expected:  75,
		},
		{
			name:      "Running mean",
			playCount: 3,
			oldScore:  60,
			fraction:  1.0,
			expected:  70, // (60*3 + 100) / 4
		},
		{
			name:      "Fraction above full-played clamps to 1.0",
			playCount: 3,
			oldScore:  70,
			fraction:  0.9,
			expected:  77.5, // (70*3 + 100) / 4
		},
		{
			name:      "Partial play drags score down",
			playCount: 1,
			oldScore:  80,
			fraction:  0.5,
			expected:  65, // (80 + 50) / 2
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules := testRules()
			song := testSong()
			song.PlayCount = tt.playCount
			song.Score = tt.oldScore

			rules.ApplyPlayedScore(song, tt.fraction, cfg)

			if math.Abs(song.Score-tt.expected) > 1e-9 {
				t.Errorf("Score = %v, want %v", song.Score, tt.expected)
			}
		})
	}
}

func TestApplyPlayedScoreInvalidFraction(t *testing.T) {
	rules := testRules()
	cfg := Config{MinPlayedFraction: 0.2, FullPlayedFraction: 0.8}

	song := testSong()
	song.Score = 60

	rules.ApplyPlayedScore(song, -0.1, cfg)
	rules.ApplyPlayedScore(song, 1.1, cfg)

	if song.Score != 60 {
		t.Errorf("Invalid fractions must not change the score, got %v", song.Score)
	}
}

func TestApplyPlayedPlayCount(t *testing.T) {
	cfg := Config{MinPlayedFraction: 0.2, FullPlayedFraction: 0.8}

	tests := []struct {
		name     string
		fraction float64
		expected int
	}{
		{name: "Full play counts", fraction: 1.0, expected: 1},
		{name: "At minimum counts", fraction: 0.2, expected: 1},
		{name: "Below minimum does not count", fraction: 0.1, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules := testRules()
			song := testSong()

			rules.ApplyPlayedPlayCount(song, tt.fraction, false, cfg)

			if song.PlayCount != tt.expected {
				t.Errorf("PlayCount = %d, want %d", song.PlayCount, tt.expected)
			}
		})
	}
}

func TestApplyPlayedSkipCount(t *testing.T) {
	cfg := Config{MinPlayedFraction: 0.2, FullPlayedFraction: 0.8}

	tests := []struct {
		name     string
		fraction float64
		expected int
	}{
		{name: "Early skip counts", fraction: 0.1, expected: 1},
		{name: "Mid skip counts", fraction: 0.5, expected: 1},
		{name: "Near-full play is not a skip", fraction: 0.9, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules := testRules()
			song := testSong()

			rules.ApplyPlayedSkipCount(song, tt.fraction, false, cfg)

			if song.SkipCount != tt.expected {
				t.Errorf("SkipCount = %d, want %d", song.SkipCount, tt.expected)
			}
		})
	}
}

func TestApplyPlayedLastPlayed(t *testing.T) {
	cfg := Config{MinPlayedFraction: 0.2, FullPlayedFraction: 0.8}
	rules := testRules()

	song := testSong()
	rules.ApplyPlayedLastPlayed(song, 1.0, 1700000000, cfg)
	if song.LastPlayed != 1700000000 {
		t.Errorf("LastPlayed = %d, want 1700000000", song.LastPlayed)
	}

	song = testSong()
	before := time.Now().Unix()
	rules.ApplyPlayedLastPlayed(song, 1.0, 0, cfg)
	after := time.Now().Unix()
	if song.LastPlayed < before || song.LastPlayed > after {
		t.Errorf("LastPlayed = %d, expected current time", song.LastPlayed)
	}

	song = testSong()
	rules.ApplyPlayedLastPlayed(song, 0.1, 0, cfg)
	if song.LastPlayed != 0 {
		t.Error("Below-minimum fraction must not set last played")
	}
}

func TestIncognitoSuppressesAllStatUpdates(t *testing.T) {
	cfg := Config{Incognito: true, MinPlayedFraction: 0.2, FullPlayedFraction: 0.8}
	rules := testRules()

	song := testSong()
	song.Score = 60
	song.PlayCount = 2

	rules.ApplyPlayedScore(song, 1.0, cfg)
	rules.ApplyPlayedPlayCount(song, 1.0, false, cfg)
	rules.ApplyPlayedSkipCount(song, 0.3, false, cfg)
	rules.ApplyPlayedLastPlayed(song, 1.0, 0, cfg)

	if song.Score != 60 || song.PlayCount != 2 || song.SkipCount != 0 || song.LastPlayed != 0 {
		t.Error("Incognito mode must not mutate any stat")
	}
}

func TestUpdateOrderContract(t *testing.T) {
	// The score averaging uses the pre-increment play count; running the
	// rules in the documented order on scenario A must give 77.5.
	cfg := Config{MinPlayedFraction: 0.2, FullPlayedFraction: 0.8}
	rules := testRules()

	song := testSong()
	song.Rating = 80
	song.Score = 70
	song.PlayCount = 3

	fraction := 0.9
	rules.ApplyPlayedScore(song, fraction, cfg)
	rules.ApplyPlayedPlayCount(song, fraction, false, cfg)
	rules.ApplyPlayedSkipCount(song, fraction, false, cfg)
	rules.ApplyPlayedLastPlayed(song, fraction, 0, cfg)

	if math.Abs(song.Score-77.5) > 1e-9 {
		t.Errorf("Score = %v, want 77.5", song.Score)
	}
	if song.PlayCount != 4 {
		t.Errorf("PlayCount = %d, want 4", song.PlayCount)
	}
	if song.SkipCount != 0 {
		t.Errorf("SkipCount = %d, want 0", song.SkipCount)
	}
	if song.LastPlayed == 0 {
		t.Error("LastPlayed should be set")
	}
}

func TestInvertHelpers(t *testing.T) {
	if InvertRating(0) != 0 {
		t.Error("Unrated must stay unrated when inverted")
	}
	if InvertRating(30) != 70 {
		t.Errorf("InvertRating(30) = %d, want 70", InvertRating(30))
	}
	if InvertScore(30) != 70 {
		t.Errorf("InvertScore(30) = %v, want 70", InvertScore(30))
	}
	if InvertScore(0) != 100 {
		t.Errorf("InvertScore(0) = %v, want 100", InvertScore(0))
	}
}
