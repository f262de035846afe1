package models

import (
	"fmt"
	"net/url"
	"path"

	"github.com/nocturnehq/nocturne/hasher"
)

// SongStatus is the lifecycle state of a song.
type SongStatus int

const (
	StatusUnknown SongStatus = iota
	StatusAvailable
	StatusPlaying
	StatusNotFound
)

func (s SongStatus) String() string {
	switch s {
	case StatusAvailable:
		return "available"
	case StatusPlaying:
		return "playing"
	case StatusNotFound:
		return "not-found"
	default:
		return "unknown"
	}
}

// PlaybackState is the state reported by the playback collaborator.
type PlaybackState int

const (
	PlaybackStopped PlaybackState = iota
	PlaybackPlaying
	PlaybackPaused
)

func (s PlaybackState) String() string {
	switch s {
	case PlaybackPlaying:
		return "Playing"
	case PlaybackPaused:
		return "Paused"
	default:
		return "Stopped"
	}
}

// CheckMode selects how bulk import inspects candidate files.
type CheckMode int

const (
	CheckNone CheckMode = iota
	CheckAudio
	CheckMedia
)

// CheckDefault is used when a caller passes an unset check mode.
const CheckDefault = CheckAudio

// FileType is the classification returned by the file inspector.
type FileType int

const (
	FileUnknown FileType = iota
	FileError
	FileDirectory
	FileMimeUnknown
	FileMimeAudio
	FileMimeMedia
	FileMimeIrrelevant
)

// Song is one library entity per track. The URI, hash and tag are fixed at
// construction; hash == Hash(URI) holds for the song's whole lifetime.
type Song struct {
	URI         string
	Name        string
	DisplayName string
	Hash        uint32
	Tag         string

	// Modified is the filesystem mtime in Unix seconds; 0 when unknown,
	// -1 when the file was not found.
	Modified int64

	Title           string
	Artist          string
	AlbumArtist     string
	Album           string
	TrackNumber     int
	Duration        int
	MetadataUpdated int64

	Rating     int
	Score      float64
	PlayCount  int
	SkipCount  int
	LastPlayed int64

	InLibrary bool
	Queued    bool
	StopAfter bool
	Status    SongStatus
}

// InitialScore seeds new songs in the middle of the score range.
const InitialScore = 50.0

// NewSong creates a song for the given URI. Escaped URIs are stored in their
// unescaped form so the identity hash is stable no matter how the location
// was spelled.
func NewSong(uri string) *Song {
	if unescaped, err := url.PathUnescape(uri); err == nil {
		uri = unescaped
	}

	hash := hasher.Hash(uri)

	return &Song{
		URI:   uri,
		Name:  path.Base(uri),
		Hash:  hash,
		Tag:   NewTag(hash),
		Score: InitialScore,
	}
}

// NewTag renders the printable identifier used as the song's group name in
// the library file.
func NewTag(hash uint32) string {
	if hash == 0 {
		return ""
	}
	return fmt.Sprintf("song-%x", hash)
}

// ArtistHash is the artist-identity hash: the folded hash of the album
// artist, or of the artist when no album artist is known.
func (s *Song) ArtistHash() uint32 {
	if h := hasher.FoldedHash(s.AlbumArtist); h != 0 {
		return h
	}
	return hasher.FoldedHash(s.Artist)
}

// NameNotEmpty returns a printable name for messages.
func (s *Song) NameNotEmpty() string {
	if s == nil {
		return "(none)"
	}
	if s.DisplayName != "" {
		return s.DisplayName
	}
	if s.Name != "" {
		return s.Name
	}
	return s.URI
}

// Filter parameterises the filtering stage of the intelligence engine.
type Filter struct {
	RecentArtists           int
	RemoveRecentsAmount     int
	RemoveRecentsPercentage float64

	UseRating     bool
	UseScore      bool
	UsePlayCount  bool
	UseSkipCount  bool
	UseLastPlayed bool

	RatingIncludeZero bool
	PlayCountInvert   bool
	SkipCountInvert   bool
	LastPlayedInvert  bool

	RatingMin int
	RatingMax int
	ScoreMin  float64
	ScoreMax  float64

	PlayCountThreshold  int
	SkipCountThreshold  int
	LastPlayedThreshold int64
}

// Modifiers parameterises the weighted-draw stage of the intelligence
// engine.
type Modifiers struct {
	UseRating     bool
	UseScore      bool
	UsePlayCount  bool
	UseSkipCount  bool
	UseLastPlayed bool

	InvertRating     bool
	InvertScore      bool
	InvertPlayCount  bool
	InvertSkipCount  bool
	InvertLastPlayed bool

	RatingMultiplier     float64
	ScoreMultiplier      float64
	PlayCountMultiplier  float64
	SkipCountMultiplier  float64
	LastPlayedMultiplier float64

	DefaultRating int
}

// EventType enumerates the notifications emitted by the core.
type EventType int

const (
	EventSongsChanged EventType = iota
	EventStatsUpdated
	EventMessage
	EventStateChanged
	EventPositionUpdated
	EventNotification
)

// Event is the single typed notification consumed by external collaborators.
type Event struct {
	Type EventType

	Previous *Song
	Current  *Song
	Next     *Song

	Message  string
	State    PlaybackState
	Position float64
}

// Notify is the fan-out hook installed by collaborators interested in core
// events. A nil hook is valid and means nobody is listening.
type Notify func(Event)
