package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/MimeLyc/hardsub-translator/internal/persistence"
	"github.com/MimeLyc/hardsub-translator/internal/service"
	"github.com/MimeLyc/hardsub-translator/internal/subtitle"
	"github.com/MimeLyc/hardsub-translator/pkg/log"
)

const (
	defaultVideoPageSize = 20
	maxVideoPageSize     = 100
	maxSubtitleUpload    = 10 << 20
	presignTTL           = 15 * time.Minute
)

type videoResponse struct {
	*service.VideoRecord
	Subtitles []*service.SubtitleRecord `json:"subtitles"`
}

func (s *Server) handleVideos(w http.ResponseWriter, r *http.Request) {
	if s.videos == nil {
		writeError(w, http.StatusNotImplemented, "video store is not configured")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	offset := parsePositiveIntWithDefault(r.URL.Query().Get("skip"), 0)
	limit := parsePositiveIntWithDefault(r.URL.Query().Get("limit"), defaultVideoPageSize)
	if limit <= 0 {
		limit = defaultVideoPageSize
	}
	limit = min(limit, maxVideoPageSize)

	videos, err := s.videos.ListVideos(r.Context(), offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if videos == nil {
		videos = []*service.VideoRecord{}
	}
	writeJSON(w, http.StatusOK, videos)
}

func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	if s.videos == nil {
		writeError(w, http.StatusNotImplemented, "video store is not configured")
		return
	}

	switch r.Method {
	case http.MethodGet:
		resp, ok := s.loadVideo(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, resp)
	case http.MethodDelete:
		resp, ok := s.loadVideo(w, r)
		if !ok {
			return
		}
		s.deleteObjects(r, resp)
		if err := s.videos.DeleteVideo(r.Context(), resp.ID); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleVideoSubtitle(w http.ResponseWriter, r *http.Request) {
	if s.videos == nil {
		writeError(w, http.StatusNotImplemented, "video store is not configured")
		return
	}
	kind := service.SubtitleKind(r.PathValue("kind"))
	if kind != service.SubtitleOriginal && kind != service.SubtitleTranslated {
		writeError(w, http.StatusNotFound, "unknown subtitle kind")
		return
	}

	resp, ok := s.loadVideo(w, r)
	if !ok {
		return
	}
	var sub *service.SubtitleRecord
	for _, candidate := range resp.Subtitles {
		if candidate.Kind == kind {
			sub = candidate
			break
		}
	}
	if sub == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("video has no %s subtitle", kind))
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.serveSubtitle(w, r, sub)
	case http.MethodPut:
		s.replaceSubtitle(w, r, sub)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) loadVideo(w http.ResponseWriter, r *http.Request) (*videoResponse, bool) {
	video, err := s.videos.GetVideo(r.Context(), r.PathValue("id"))
	if errors.Is(err, persistence.ErrNotFound) {
		writeError(w, http.StatusNotFound, "video not found")
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	subs, err := s.videos.ListSubtitles(r.Context(), video.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	if subs == nil {
		subs = []*service.SubtitleRecord{}
	}
	return &videoResponse{VideoRecord: video, Subtitles: subs}, true
}

// serveSubtitle prefers the local artifact and falls back to a presigned
// redirect when only the uploaded copy is known.
func (s *Server) serveSubtitle(w http.ResponseWriter, r *http.Request, sub *service.SubtitleRecord) {
	if sub.Path != "" {
		if _, err := os.Stat(sub.Path); err == nil {
			w.Header().Set("Content-Type", "application/x-subrip; charset=utf-8")
			w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(sub.Path)))
			http.ServeFile(w, r, sub.Path)
			return
		}
	}
	if sub.URL != "" && s.objects != nil {
		signed, err := s.objects.PresignedURL(r.Context(), sub.URL, s.buckets.Subtitle, presignTTL)
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		http.Redirect(w, r, signed, http.StatusTemporaryRedirect)
		return
	}
	writeError(w, http.StatusNotFound, "subtitle file is not available")
}

// replaceSubtitle stores an edited SRT over the existing artifact and swaps
// the uploaded object when one exists.
func (s *Server) replaceSubtitle(w http.ResponseWriter, r *http.Request, sub *service.SubtitleRecord) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSubtitleUpload))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "subtitle body too large")
		return
	}
	parsed, err := subtitle.ReadSRTBytes(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(parsed.Lines) == 0 {
		writeError(w, http.StatusBadRequest, "subtitle contains no records")
		return
	}
	if sub.Path == "" {
		writeError(w, http.StatusConflict, "subtitle has no local path")
		return
	}

	if err := subtitle.NewWriter().Write(sub.Path, parsed); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sub.URL != "" && s.objects != nil {
		url, err := s.objects.Replace(r.Context(), sub.URL, s.buckets.Subtitle, sub.Path)
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		sub.URL = url
	}
	if err := s.videos.UpdateSubtitle(r.Context(), sub); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	log.Info("Replaced %s subtitle of video %s (%d records)", sub.Kind, sub.VideoID, len(parsed.Lines))
	writeJSON(w, http.StatusOK, sub)
}

func (s *Server) deleteObjects(r *http.Request, video *videoResponse) {
	if s.objects == nil {
		return
	}
	if video.VideoURL != "" {
		if err := s.objects.Delete(r.Context(), video.VideoURL, s.buckets.Video); err != nil {
			log.Warn("Failed to delete video object %s: %v", video.VideoURL, err)
		}
	}
	for _, sub := range video.Subtitles {
		if sub.URL == "" {
			continue
		}
		if err := s.objects.Delete(r.Context(), sub.URL, s.buckets.Subtitle); err != nil {
			log.Warn("Failed to delete subtitle object %s: %v", sub.URL, err)
		}
	}
}
