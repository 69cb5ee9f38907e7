package api

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/lox/weathertrack/internal/backup"
	"github.com/lox/weathertrack/internal/history"
	"github.com/lox/weathertrack/internal/models"
)

// maxImportBytes bounds an uploaded backup.
const maxImportBytes = 32 << 20

// historyStatus maps history store failures to a response code.
func historyStatus(err error) int {
	switch {
	case errors.Is(err, history.ErrFormat):
		return http.StatusBadRequest
	case errors.Is(err, history.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type historyResponse struct {
	LocationKey string            `json:"locationKey"`
	Days        int               `json:"days"`
	Snapshots   []models.Snapshot `json:"snapshots"`
	Degraded    bool              `json:"degraded,omitempty"`
}

// handleHistory answers with an empty, degraded series when storage is down
// so the page can still render without a chart.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := coords(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	days, err := positiveInt(r.URL.Query().Get("days"), "days", history.DefaultHistoryDays)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := historyResponse{LocationKey: models.LocationKey(lat, lon), Days: days}
	snaps, err := s.history.History(r.Context(), lat, lon, days)
	switch {
	case errors.Is(err, history.ErrStorageUnavailable):
		log.Printf("api: history %s: %v", resp.LocationKey, err)
		resp.Snapshots = []models.Snapshot{}
		resp.Degraded = true
	case err != nil:
		log.Printf("api: history %s: %v", resp.LocationKey, err)
		writeError(w, historyStatus(err), "history unavailable")
		return
	default:
		resp.Snapshots = snaps
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.history.Clear(r.Context()); err != nil {
		log.Printf("api: clear history: %v", err)
		writeError(w, historyStatus(err), "could not clear history")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := s.history.Export(r.Context())
	if err != nil {
		log.Printf("api: export history: %v", err)
		writeError(w, historyStatus(err), "could not export history")
		return
	}

	name := "weather-history-" + time.Now().Format("2006-01-02") + ".json"
	contentType := "application/json"
	if r.URL.Query().Get("compress") == "true" {
		data = backup.Compress(data)
		name += ".zst"
		contentType = "application/zstd"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// handleImport accepts a plain or zstd-framed export in the request body.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "backup too large")
		return
	}

	data, err := backup.Decompress(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	n, err := s.history.Import(r.Context(), data)
	if err != nil {
		log.Printf("api: import history: %v", err)
		writeError(w, historyStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"imported": n})
}

func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := coords(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	temp, err := parseFloat(r.URL.Query().Get("temp"), "temp")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snaps, err := s.history.GenerateSample(r.Context(), lat, lon, r.URL.Query().Get("name"), temp)
	if err != nil {
		log.Printf("api: sample history: %v", err)
		writeError(w, historyStatus(err), "could not generate sample history")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"generated": len(snaps)})
}

func (s *Server) handleHistoryInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.history.Info(r.Context())
	if err != nil {
		log.Printf("api: history info: %v", err)
		writeError(w, historyStatus(err), "history unavailable")
		return
	}
	writeJSON(w, http.StatusOK, info)
}
