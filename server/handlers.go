package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/nocturnehq/nocturne/models"
)

// songView is the JSON rendering of one song.
type songView struct {
	ID         string  `json:"id"`
	URI        string  `json:"uri"`
	Title      string  `json:"title,omitempty"`
	Artist     string  `json:"artist,omitempty"`
	Album      string  `json:"album,omitempty"`
	Duration   int     `json:"duration,omitempty"`
	Rating     int     `json:"rating,omitempty"`
	Score      float64 `json:"score"`
	PlayCount  int     `json:"playCount"`
	SkipCount  int     `json:"skipCount"`
	LastPlayed int64   `json:"lastPlayed,omitempty"`
	Status     string  `json:"status"`
	Queued     bool    `json:"queued,omitempty"`
}

func viewOf(song *models.Song) *songView {
	if song == nil {
		return nil
	}
	return &songView{
		ID:         strconv.FormatUint(uint64(song.Hash), 16),
		URI:        song.URI,
		Title:      song.Title,
		Artist:     song.Artist,
		Album:      song.Album,
		Duration:   song.Duration,
		Rating:     song.Rating,
		Score:      song.Score,
		PlayCount:  song.PlayCount,
		SkipCount:  song.SkipCount,
		LastPlayed: song.LastPlayed,
		Status:     song.Status.String(),
		Queued:     song.Queued,
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Warn("Failed to encode response")
	}
}

func (s *Server) writeOK(w http.ResponseWriter) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"status": "error", "error": message})
}

func (s *Server) songByID(id string) *models.Song {
	hash, err := strconv.ParseUint(id, 16, 32)
	if err != nil {
		return nil
	}
	return s.library.ByHash(uint32(hash))
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	s.session.Play()
	s.writeOK(w)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.session.Pause()
	s.writeOK(w)
}

func (s *Server) handlePlayPause(w http.ResponseWriter, r *http.Request) {
	s.session.PlayPause()
	s.writeOK(w)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.session.Stop()
	s.writeOK(w)
}

func (s *Server) handlePrevious(w http.ResponseWriter, r *http.Request) {
	s.session.Previous()
	s.writeOK(w)
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	s.session.Next()
	s.writeOK(w)
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	percentage, err := strconv.ParseFloat(r.URL.Query().Get("percentage"), 64)
	if err != nil || percentage < 0 || percentage > 100 {
		s.writeError(w, http.StatusBadRequest, "percentage must be between 0 and 100")
		return
	}
	s.session.Seek(percentage)
	s.writeOK(w)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"state":     s.session.State().String(),
		"position":  s.session.Position(),
		"duration":  s.session.Duration(),
		"volume":    s.session.Volume(),
		"incognito": s.manager.Incognito(),
		"current":   viewOf(s.manager.Current()),
		"previous":  viewOf(s.manager.Previous()),
		"next":      viewOf(s.manager.GetNextSong()),
		"songs":     s.library.Len(),
	})
}

func (s *Server) handleSongs(w http.ResponseWriter, r *http.Request) {
	songs := s.library.Songs()
	views := make([]*songView, 0, len(songs))
	for _, song := range songs {
		views = append(views, viewOf(song))
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleAddSong(w http.ResponseWriter, r *http.Request) {
	uri := r.URL.Query().Get("uri")
	if uri == "" || len(uri) > MaxURILength {
		s.writeError(w, http.StatusBadRequest, "missing or oversized uri")
		return
	}

	added := s.library.AddPath(uri, models.CheckDefault, nil)
	if added > 0 {
		s.library.RefreshMetadata(r.Context(), false)
		s.manager.SongsUpdated()
	}

	s.logger.WithFields(map[string]interface{}{
		"uri":   sanitizeForLogging(uri),
		"added": added,
	}).Info("Add song requested")

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "added": added})
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	queue := s.manager.Queue()
	views := make([]*songView, 0, len(queue))
	for _, song := range queue {
		views = append(views, viewOf(song))
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleSetQueued(w http.ResponseWriter, r *http.Request) {
	song := s.songByID(mux.Vars(r)["id"])
	if song == nil {
		s.writeError(w, http.StatusNotFound, "unknown song id")
		return
	}

	queued := true
	if raw := r.URL.Query().Get("queued"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "queued must be a boolean")
			return
		}
		queued = parsed
	}

	s.manager.SetQueued(song, queued)
	s.writeOK(w)
}

func (s *Server) handleIncognito(w http.ResponseWriter, r *http.Request) {
	enabled, err := strconv.ParseBool(r.URL.Query().Get("enabled"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "enabled must be a boolean")
		return
	}
	s.manager.SetIncognito(enabled)
	s.writeOK(w)
}

func (s *Server) handleRefreshMetadata(w http.ResponseWriter, r *http.Request) {
	updated := s.library.RefreshMetadata(context.Background(), r.URL.Query().Get("force") == "true")
	s.manager.SongsUpdated()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "updated": updated})
}
