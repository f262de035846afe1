// Package inspector classifies filesystem entries for the bulk-import
// pipeline.
package inspector

import (
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/nocturnehq/nocturne/models"
)

// fallbackTypes covers common media extensions the platform MIME table may
// not list.
var fallbackTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".opus": "audio/opus",
	".wav":  "audio/x-wav",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".wma":  "audio/x-ms-wma",
	".mka":  "audio/x-matroska",
	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
}

type Inspector struct {
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *Inspector {
	return &Inspector{logger: logger}
}

// FileType returns the classification of path and, for regular files, the
// MIME type it was derived from.
func (i *Inspector) FileType(path string) (models.FileType, string) {
	info, err := os.Stat(path)
	if err != nil {
		i.logger.WithError(err).WithField("path", path).Warn("Failed to get file info")
		return models.FileError, ""
	}

	switch {
	case info.IsDir():
		return models.FileDirectory, ""
	case info.Mode().IsRegular():
		ext := strings.ToLower(filepath.Ext(path))
		mimeType := mime.TypeByExtension(ext)
		if mimeType == "" {
			mimeType = fallbackTypes[ext]
		}
		if mimeType == "" {
			return models.FileMimeUnknown, ""
		}
		if strings.HasPrefix(mimeType, "audio/") {
			return models.FileMimeAudio, mimeType
		}
		if strings.HasPrefix(mimeType, "video/") {
			return models.FileMimeMedia, mimeType
		}
		return models.FileMimeIrrelevant, mimeType
	default:
		return models.FileUnknown, ""
	}
}

// DirectoryFiles lists the entries of a directory, sorted alphabetically so
// recursive imports walk in a stable order.
func (i *Inspector) DirectoryFiles(path string) []string {
	entries, err := os.ReadDir(path)
	if err != nil {
		i.logger.WithError(err).WithField("path", path).Warn("Could not open directory")
		return nil
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		files = append(files, filepath.Join(path, entry.Name()))
	}
	sort.Strings(files)

	return files
}
