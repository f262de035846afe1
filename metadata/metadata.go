// Package metadata extracts tag information from audio files.
package metadata

import (
	"context"
	"os"
	"time"

	"github.com/dhowden/tag"
	"github.com/sirupsen/logrus"

	"github.com/nocturnehq/nocturne/errors"
)

// DefaultTimeout bounds how long a single extraction may block.
const DefaultTimeout = 3 * time.Second

// Fields holds the metadata read from one file.
type Fields struct {
	Title       string
	Artist      string
	AlbumArtist string
	Album       string
	TrackNumber int
	Duration    int
}

// Extractor is the metadata collaborator consumed by the library.
type Extractor interface {
	Extract(ctx context.Context, path string) (*Fields, error)
}

// TagExtractor reads metadata with a hard per-file timeout. On timeout the
// caller keeps its previous metadata.
type TagExtractor struct {
	logger  *logrus.Logger
	timeout time.Duration
}

func New(logger *logrus.Logger) *TagExtractor {
	return &TagExtractor{
		logger:  logger,
		timeout: DefaultTimeout,
	}
}

func NewWithTimeout(logger *logrus.Logger, timeout time.Duration) *TagExtractor {
	return &TagExtractor{
		logger:  logger,
		timeout: timeout,
	}
}

type extractResult struct {
	fields *Fields
	err    error
}

func (e *TagExtractor) Extract(ctx context.Context, path string) (*Fields, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	done := make(chan extractResult, 1)
	go func() {
		done <- e.read(path)
	}()

	select {
	case res := <-done:
		return res.fields, res.err
	case <-ctx.Done():
		e.logger.WithField("path", path).Warn("Metadata extraction timed out")
		return nil, errors.New(errors.CategoryMetadata, "TIMEOUT", "metadata extraction timed out").
			WithContext("path", path)
	}
}

func (e *TagExtractor) read(path string) extractResult {
	f, err := os.Open(path)
	if err != nil {
		return extractResult{err: errors.Wrap(err, errors.CategoryMetadata, "OPEN_FAILED", "failed to open file")}
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return extractResult{err: errors.Wrap(err, errors.CategoryMetadata, "PARSE_FAILED", "metadata extraction failed").
			WithContext("path", path)}
	}

	track, _ := m.Track()

	return extractResult{fields: &Fields{
		Title:       m.Title(),
		Artist:      m.Artist(),
		AlbumArtist: m.AlbumArtist(),
		Album:       m.Album(),
		TrackNumber: track,
	}}
}
