package httpapi

import (
	"errors"
	"io/fs"
	"net/http"

	"github.com/MimeLyc/hardsub-translator/internal/jobs"
	"github.com/MimeLyc/hardsub-translator/internal/subtitle"
)

const (
	defaultJobPreviewLimit = 80
	maxJobPreviewLimit     = 500
)

type jobDetailResponse struct {
	Job           *jobs.Job        `json:"job"`
	Preview       []jobPreviewLine `json:"preview"`
	TotalLines    int              `json:"total_lines"`
	PreviewOffset int              `json:"preview_offset"`
	PreviewLimit  int              `json:"preview_limit"`
}

type jobPreviewLine struct {
	Index      int    `json:"index"`
	Start      string `json:"start"`
	End        string `json:"end"`
	Original   string `json:"original"`
	Translated string `json:"translated"`
}

func (s *Server) handleJobDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	job, ok := s.queue.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	offset := parsePositiveIntWithDefault(r.URL.Query().Get("offset"), 0)
	limit := parsePositiveIntWithDefault(r.URL.Query().Get("limit"), defaultJobPreviewLimit)
	if limit <= 0 {
		limit = defaultJobPreviewLimit
	}
	limit = min(limit, maxJobPreviewLimit)

	resp := jobDetailResponse{
		Job:           job,
		Preview:       []jobPreviewLine{},
		PreviewOffset: offset,
		PreviewLimit:  limit,
	}
	if job.Result != nil {
		source, err := readLinesIfExists(job.Result.SubtitlePath)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		translated, err := readLinesIfExists(job.Result.TranslatedPath)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.TotalLines = max(len(source), len(translated))
		resp.Preview = buildPreviewLines(source, translated, offset, limit)
	}
	writeJSON(w, http.StatusOK, resp)
}

// buildPreviewLines pairs original and translated records by position. The
// translated file wins for timing when both exist.
func buildPreviewLines(source, translated []subtitle.Line, offset, limit int) []jobPreviewLine {
	total := max(len(source), len(translated))
	if offset >= total {
		return []jobPreviewLine{}
	}
	end := min(offset+limit, total)

	ret := make([]jobPreviewLine, 0, end-offset)
	for i := offset; i < end; i++ {
		var line jobPreviewLine
		if i < len(source) {
			line.Index = source[i].Index
			line.Start = subtitle.FormatTimestamp(source[i].StartTime)
			line.End = subtitle.FormatTimestamp(source[i].EndTime)
			line.Original = source[i].Text
		}
		if i < len(translated) {
			line.Index = translated[i].Index
			line.Start = subtitle.FormatTimestamp(translated[i].StartTime)
			line.End = subtitle.FormatTimestamp(translated[i].EndTime)
			line.Translated = translated[i].Text
		}
		ret = append(ret, line)
	}
	return ret
}

func readLinesIfExists(path string) ([]subtitle.Line, error) {
	if path == "" {
		return nil, nil
	}
	file, err := subtitle.NewReader().Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return file.Lines, nil
}
