// Package intelligence picks the next song: a filtering stage narrows the
// candidate list, a weighted draw samples from what is left.
package intelligence

import (
	"math/rand"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nocturnehq/nocturne/models"
	"github.com/nocturnehq/nocturne/statistics"
)

// Shape constants. entryScale keeps sub-unit user multipliers representable
// as integers; the curve parameters give each statistic a contribution in
// [0, shapeRange].
const (
	entryScale = 1000
	shapeRange = 100

	fracWidth = 100
	sqrtWidth = 5616 // ~sqrt(one year in seconds)

	oneYear = 365 * 24 * 3600
)

// Context carries the inputs of one selection run. All slices are snapshots
// owned by the caller; the engine never mutates song state.
type Context struct {
	Available     []*models.Song
	History       []*models.Song
	UpNext        []*models.Song
	RecentArtists []uint32
}

type Service struct {
	logger *logrus.Logger
	rng    *rand.Rand
}

func New(logger *logrus.Logger) *Service {
	return NewWithRand(logger, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewWithRand injects the random source. Used by tests.
func NewWithRand(logger *logrus.Logger, rng *rand.Rand) *Service {
	return &Service{logger: logger, rng: rng}
}

// ChooseSong runs both stages and returns the winner, or nil when no
// candidate survives.
func (s *Service) ChooseSong(in Context, filter *models.Filter, mods *models.Modifiers) *models.Song {
	candidates := s.Filter(in, filter)
	return s.Pick(candidates, mods)
}

// Filter narrows the candidate list. The stage order is a contract: invalid
// removal, then recent-artist removal, then the per-statistic predicates,
// then recent-play removal. The artist filter runs before the percentage
// based removal so the percentage is computed against the already-filtered
// set.
func (s *Service) Filter(in Context, filter *models.Filter) []*models.Song {
	out := make([]*models.Song, 0, len(in.Available))
	for _, song := range in.Available {
		if song == nil || song.Status != models.StatusAvailable {
			continue
		}
		out = append(out, song)
	}

	out = s.filterRecentArtists(out, in.RecentArtists, filter)

	// One wall-clock sample so every last-played check sees the same now.
	now := time.Now().Unix()
	out = s.filterStats(out, filter, now)

	out = s.removeRecent(out, in, filter)

	s.logger.WithFields(logrus.Fields{
		"candidates": len(in.Available),
		"remaining":  len(out),
	}).Debug("Filter finished")

	return out
}

func (s *Service) filterRecentArtists(songs []*models.Song, recent []uint32, filter *models.Filter) []*models.Song {
	n := filter.RecentArtists
	if n <= 0 || len(recent) == 0 {
		return songs
	}
	if n > len(recent) {
		n = len(recent)
	}
	recent = recent[:n]

	out := songs[:0]
	for _, song := range songs {
		hash := song.ArtistHash()
		if hash != 0 && containsHash(recent, hash) {
			continue
		}
		out = append(out, song)
	}
	return out
}

func containsHash(hashes []uint32, hash uint32) bool {
	for _, h := range hashes {
		if h == hash {
			return true
		}
	}
	return false
}

func (s *Service) filterStats(songs []*models.Song, filter *models.Filter, now int64) []*models.Song {
	// A nonpositive bound means the rating and score filters are off.
	checkRating := filter.UseRating &&
		filter.RatingMin > 0 && filter.RatingMax > 0 &&
		statistics.ValidRating(filter.RatingMin) && statistics.ValidRating(filter.RatingMax)
	checkScore := filter.UseScore &&
		filter.ScoreMin > 0 && filter.ScoreMax > 0 &&
		statistics.ValidScore(filter.ScoreMin) && statistics.ValidScore(filter.ScoreMax)
	checkPlayCount := filter.UsePlayCount && filter.PlayCountThreshold > 0
	checkSkipCount := filter.UseSkipCount && filter.SkipCountThreshold > 0
	checkLastPlayed := filter.UseLastPlayed && filter.LastPlayedThreshold > 0

	if !checkRating && !checkScore && !checkPlayCount && !checkSkipCount && !checkLastPlayed {
		return songs
	}

	out := songs[:0]
	for _, song := range songs {
		if checkRating && !keepRating(song, filter) {
			continue
		}
		if checkScore {
			if !statistics.ValidScore(song.Score) ||
				song.Score < filter.ScoreMin || song.Score > filter.ScoreMax {
				continue
			}
		}
		if checkPlayCount && !keepCount(song.PlayCount, filter.PlayCountThreshold, filter.PlayCountInvert) {
			continue
		}
		if checkSkipCount && !keepCount(song.SkipCount, filter.SkipCountThreshold, filter.SkipCountInvert) {
			continue
		}
		if checkLastPlayed {
			timeSince := now - song.LastPlayed
			if timeSince < 0 {
				timeSince = -timeSince
			}
			if filter.LastPlayedInvert {
				if timeSince > filter.LastPlayedThreshold {
					continue
				}
			} else if timeSince < filter.LastPlayedThreshold {
				continue
			}
		}
		out = append(out, song)
	}
	return out
}

func keepRating(song *models.Song, filter *models.Filter) bool {
	if song.Rating == 0 && filter.RatingIncludeZero {
		return true
	}
	if !statistics.ValidRating(song.Rating) {
		return false
	}
	return song.Rating >= filter.RatingMin && song.Rating <= filter.RatingMax
}

func keepCount(count, threshold int, invert bool) bool {
	if count < 0 {
		return false
	}
	if invert {
		return count <= threshold
	}
	return count >= threshold
}

// removeRecent drops recently-played songs. The removal budget is consumed
// by the up-next items first, then the history items, whether or not they
// are still present in the working list; what is left of the budget falls
// on the songs most recently played.
func (s *Service) removeRecent(songs []*models.Song, in Context, filter *models.Filter) []*models.Song {
	budget := int(float64(len(songs)) * filter.RemoveRecentsPercentage / 100.0)
	budget += filter.RemoveRecentsAmount
	if budget <= 0 {
		return songs
	}

	for _, song := range in.UpNext {
		if budget <= 0 {
			return songs
		}
		songs = removeSong(songs, song)
		budget--
	}
	for _, song := range in.History {
		if budget <= 0 {
			return songs
		}
		songs = removeSong(songs, song)
		budget--
	}

	byAge := make([]*models.Song, len(songs))
	copy(byAge, songs)
	sort.SliceStable(byAge, func(i, j int) bool {
		return byAge[i].LastPlayed > byAge[j].LastPlayed
	})

	for _, song := range byAge {
		if budget <= 0 {
			break
		}
		// Never-played songs do not count as recent and keep the budget.
		if song.LastPlayed <= 0 {
			continue
		}
		songs = removeSong(songs, song)
		budget--
	}

	return songs
}

func removeSong(songs []*models.Song, song *models.Song) []*models.Song {
	if song == nil {
		return songs
	}
	for i, candidate := range songs {
		if candidate == song {
			return append(songs[:i], songs[i+1:]...)
		}
	}
	return songs
}
