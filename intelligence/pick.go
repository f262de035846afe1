package intelligence

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nocturnehq/nocturne/models"
	"github.com/nocturnehq/nocturne/statistics"
)

// Pick draws one song from the candidates, each weighted by its entry count.
// A song whose contributions sum below zero is disqualified; a song summing
// to zero still receives a single entry so it can be drawn. Returns nil when
// nothing can be drawn.
func (s *Service) Pick(songs []*models.Song, mods *models.Modifiers) *models.Song {
	if len(songs) == 0 {
		return nil
	}

	now := time.Now().Unix()

	entries := make([]int64, len(songs))
	var total int64
	for i, song := range songs {
		e := s.entriesFor(song, mods, now)
		entries[i] = e
		if e > 0 {
			total += e
		}
	}

	if total <= 0 {
		s.logger.Debug("No song holds any entries; nothing to draw")
		return nil
	}

	k := s.rng.Int63n(total) + 1
	var sum int64
	for i, song := range songs {
		if entries[i] <= 0 {
			continue
		}
		sum += entries[i]
		if sum >= k {
			s.logger.WithFields(logrus.Fields{
				"song":    song.NameNotEmpty(),
				"entries": entries[i],
				"total":   total,
			}).Debug("Song drawn")
			return song
		}
	}

	// Unreachable while total is the sum of the positive entries.
	return songs[len(songs)-1]
}

// entriesFor accumulates the weighted contributions of one song. Negative
// totals mean disqualified (-1); zero totals are floored at one entry.
func (s *Service) entriesFor(song *models.Song, mods *models.Modifiers, now int64) int64 {
	var e int64

	if mods.UseRating {
		rating := song.Rating
		if mods.InvertRating {
			rating = statistics.InvertRating(rating)
		} else if rating == 0 {
			rating = mods.DefaultRating
		}
		e += int64(rating) * scaled(mods.RatingMultiplier)
	}

	if mods.UseScore {
		score := song.Score
		if mods.InvertScore {
			score = statistics.InvertScore(score)
		}
		e += int64(score * float64(scaled(mods.ScoreMultiplier)))
	}

	if mods.UsePlayCount {
		e += fracShape(int64(song.PlayCount), fracWidth, shapeRange, mods.InvertPlayCount) *
			scaled(mods.PlayCountMultiplier)
	}

	if mods.UseSkipCount {
		e += fracShape(int64(song.SkipCount), fracWidth, shapeRange, mods.InvertSkipCount) *
			scaled(mods.SkipCountMultiplier)
	}

	if mods.UseLastPlayed {
		timeSince := now - song.LastPlayed
		if timeSince < 0 {
			timeSince = 0
		}
		e += sqrtShape(timeSince, sqrtWidth, shapeRange, mods.InvertLastPlayed) *
			scaled(mods.LastPlayedMultiplier)
	}

	if e < 0 {
		return -1
	}
	if e == 0 {
		return 1
	}
	return e
}

func scaled(multiplier float64) int64 {
	return int64(multiplier * entryScale)
}

// fracShape rises from 0 toward r with fracShape(a) == r/2; inverted it
// falls from r toward 0. Saturation keeps heavily-played songs from
// dominating.
func fracShape(x, a, r int64, invert bool) int64 {
	if x < 0 {
		x = 0
	}
	if invert {
		return (a * r) / (x + a)
	}
	return (-a*r)/(x+a) + r
}

// sqrtShape scales sub-linearly with elapsed seconds and saturates at r
// after one year; inverted it starts at r and falls to 0.
func sqrtShape(x, a, r int64, invert bool) int64 {
	if x < 0 {
		x = 0
	}
	if x >= oneYear {
		if invert {
			return 0
		}
		return r
	}
	v := int64(float64(r) * math.Sqrt(float64(x)) / float64(a))
	if invert {
		return r - v
	}
	return v
}
