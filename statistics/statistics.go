// Package statistics implements the deterministic, range-checked rules that
// mutate per-song counters after playback.
package statistics

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nocturnehq/nocturne/models"
)

// Stat ranges. Counters and timestamps have no upper bound.
const (
	RatingMin = 0
	RatingMax = 100

	ScoreMin = 0.0
	ScoreMax = 100.0

	PlayCountMin = 0
	SkipCountMin = 0

	LastPlayedMin = int64(0)
)

// Config carries the settings consulted by the played-fraction rules. The
// struct is rebuilt from settings for every playback event so a mid-flight
// settings change has no partial effect.
type Config struct {
	Incognito          bool
	MinPlayedFraction  float64
	FullPlayedFraction float64
}

// Rules applies stat updates with range enforcement and logging.
type Rules struct {
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *Rules {
	return &Rules{logger: logger}
}

func ValidRating(rating int) bool {
	return rating >= RatingMin && rating <= RatingMax
}

func ValidScore(score float64) bool {
	return score >= ScoreMin && score <= ScoreMax
}

func ValidPlayCount(count int) bool {
	return count >= PlayCountMin
}

func ValidSkipCount(count int) bool {
	return count >= SkipCountMin
}

func ValidLastPlayed(lastPlayed int64) bool {
	return lastPlayed >= LastPlayedMin
}

// InvertRating mirrors a rating within its range. Unrated stays unrated.
func InvertRating(rating int) int {
	if !ValidRating(rating) {
		return 0
	}
	if rating == 0 {
		return 0
	}
	return (RatingMax - rating) + RatingMin
}

// InvertScore mirrors a score within its range.
func InvertScore(score float64) float64 {
	if !ValidScore(score) {
		return 0.0
	}
	return (ScoreMax - score) + ScoreMin
}

// UpdateRating sets a song's rating to rating, or adds increase to the
// current value when rating is 0. A rating of -1 resets to 0. Results
// outside the rating range are rejected and the prior value preserved.
func (r *Rules) UpdateRating(song *models.Song, rating, increase int) {
	name := song.NameNotEmpty()

	var value int
	switch {
	case rating == -1:
		value = 0
		r.logger.WithField("song", name).Debug("Rating has been reset")
	case rating != 0 && rating >= RatingMin && rating <= RatingMax:
		value = rating
	case increase >= -RatingMax && increase <= RatingMax:
		value = song.Rating + increase
		if value <= RatingMin || value > RatingMax {
			r.logger.WithFields(logrus.Fields{
				"song":   name,
				"result": value,
			}).Warn("Increasing rating resulted in an invalid value; value is unchanged")
			return
		}
	default:
		r.logger.WithFields(logrus.Fields{
			"song":   name,
			"rating": rating,
		}).Warn("No valid parameters in attempt to update rating")
		return
	}

	song.Rating = value
}

// UpdateScore sets a song's score to score, or adds increase to the current
// value when score is 0. A score of -1 resets to 0.
func (r *Rules) UpdateScore(song *models.Song, score, increase float64) {
	name := song.NameNotEmpty()

	var value float64
	switch {
	case score == -1:
		value = 0
		r.logger.WithField("song", name).Debug("Score has been reset")
	case score != 0 && score >= ScoreMin && score <= ScoreMax:
		value = score
	case increase >= -ScoreMax && increase <= ScoreMax:
		value = song.Score + increase
		if value < ScoreMin || value > ScoreMax {
			r.logger.WithFields(logrus.Fields{
				"song":   name,
				"result": value,
			}).Warn("Increasing score resulted in an invalid value; value is unchanged")
			return
		}
	default:
		r.logger.WithFields(logrus.Fields{
			"song":  name,
			"score": score,
		}).Warn("No valid parameters in attempt to update score")
		return
	}

	song.Score = value
}

// UpdatePlayCount sets a song's play count to count when increase is 0,
// otherwise adds increase to the current count. A count of -1 resets to 0.
func (r *Rules) UpdatePlayCount(song *models.Song, count, increase int) {
	name := song.NameNotEmpty()

	var value int
	switch {
	case count == -1:
		value = 0
		r.logger.WithField("song", name).Debug("Play count has been reset")
	case increase == 0:
		value = count
	default:
		value = song.PlayCount + increase
	}

	if value < PlayCountMin {
		r.logger.WithFields(logrus.Fields{
			"song":   name,
			"result": value,
		}).Warn("Play count update resulted in an invalid value; value is unchanged")
		return
	}

	song.PlayCount = value
}

// UpdateSkipCount sets a song's skip count to count when increase is 0,
// otherwise adds increase to the current count. A count of -1 resets to 0.
func (r *Rules) UpdateSkipCount(song *models.Song, count, increase int) {
	name := song.NameNotEmpty()

	var value int
	switch {
	case count == -1:
		value = 0
		r.logger.WithField("song", name).Debug("Skip count has been reset")
	case increase == 0:
		value = count
	default:
		value = song.SkipCount + increase
	}

	if value < SkipCountMin {
		r.logger.WithFields(logrus.Fields{
			"song":   name,
			"result": value,
		}).Warn("Skip count update resulted in an invalid value; value is unchanged")
		return
	}

	song.SkipCount = value
}

// UpdateLastPlayed sets a song's last-played timestamp, or adds increase to
// the current value when lastPlayed is negative but not -1. A value of -1
// resets to 0.
func (r *Rules) UpdateLastPlayed(song *models.Song, lastPlayed int64, increase int64) {
	name := song.NameNotEmpty()

	var value int64
	switch {
	case lastPlayed == -1:
		value = 0
		r.logger.WithField("song", name).Debug("Last played has been reset")
	case lastPlayed >= 0:
		value = lastPlayed
	default:
		value = song.LastPlayed + increase
		if value <= LastPlayedMin {
			r.logger.WithFields(logrus.Fields{
				"song":   name,
				"result": value,
			}).Warn("Increasing last played resulted in an invalid value; value is unchanged")
			return
		}
	}

	song.LastPlayed = value
}

// ApplyPlayedScore derives the next score from the fraction of the stream
// that was actually listened to. The running mean uses the pre-increment
// play count, so this must run before ApplyPlayedPlayCount.
func (r *Rules) ApplyPlayedScore(song *models.Song, fraction float64, cfg Config) {
	if cfg.Incognito {
		r.logger.Info("Incognito mode active; not updating score")
		return
	}

	if fraction < 0.0 || fraction > 1.0 {
		r.logger.WithField("fraction", fraction).Info("Invalid calculated played fraction")
		return
	}

	if fraction > cfg.FullPlayedFraction {
		// The listener may just skip the silence at the end; treat as
		// fully played.
		fraction = 1.0
	}

	playCount := song.PlayCount
	oldScore := song.Score

	if !ValidScore(oldScore) {
		r.logger.WithFields(logrus.Fields{
			"song":  song.NameNotEmpty(),
			"score": oldScore,
		}).Warn("Invalid score")
		return
	}

	var newScore float64
	if playCount <= PlayCountMin {
		// Average of old and new; a fresh song starts at 50.
		newScore = (oldScore + fraction*100.0) / 2.0
	} else {
		// Running mean weighted by the amount of prior plays.
		newScore = (oldScore*float64(playCount) + fraction*100.0) / float64(playCount+1)
	}

	if newScore < ScoreMin {
		newScore = ScoreMin
	} else if newScore > ScoreMax {
		newScore = ScoreMax
	}

	r.UpdateScore(song, newScore, 0)
}

// ApplyPlayedPlayCount bumps the play count when enough of the song was
// heard to count as a play.
func (r *Rules) ApplyPlayedPlayCount(song *models.Song, fraction float64, decrease bool, cfg Config) {
	if cfg.Incognito {
		r.logger.Info("Incognito mode active; not updating play count")
		return
	}

	if fraction < cfg.MinPlayedFraction {
		r.logger.Info("Below minimum played fraction; not updating play count")
		return
	}

	if decrease {
		r.UpdatePlayCount(song, 0, -1)
	} else {
		r.UpdatePlayCount(song, 0, 1)
	}
}

// ApplyPlayedSkipCount bumps the skip count unless the song was effectively
// played to the end.
func (r *Rules) ApplyPlayedSkipCount(song *models.Song, fraction float64, decrease bool, cfg Config) {
	if cfg.Incognito {
		r.logger.Info("Incognito mode active; not updating skip count")
		return
	}

	if fraction > cfg.FullPlayedFraction {
		r.logger.Info("Above full played fraction; not updating skip count")
		return
	}

	if decrease {
		r.UpdateSkipCount(song, 0, -1)
	} else {
		r.UpdateSkipCount(song, 0, 1)
	}
}

// ApplyPlayedLastPlayed records when the song was last heard. A timestamp of
// 0 means "now".
func (r *Rules) ApplyPlayedLastPlayed(song *models.Song, fraction float64, timestamp int64, cfg Config) {
	if cfg.Incognito {
		r.logger.Info("Incognito mode active; not updating last played")
		return
	}

	if fraction < cfg.MinPlayedFraction {
		r.logger.Info("Below minimum played fraction; not updating last played")
		return
	}

	if timestamp == 0 {
		timestamp = time.Now().Unix()
	}

	r.UpdateLastPlayed(song, timestamp, 0)
}
