package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lox/weathertrack/internal/store"
)

type placeRequest struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

func decodePlace(w http.ResponseWriter, r *http.Request) (placeRequest, error) {
	var p placeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return p, err
	}
	p.Name = strings.TrimSpace(p.Name)
	return p, checkCoords(p.Lat, p.Lon)
}

func (s *Server) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	favs, err := s.state.ListFavorites(r.Context())
	if err != nil {
		log.Printf("api: list favorites: %v", err)
		writeError(w, http.StatusInternalServerError, "favorites unavailable")
		return
	}
	writeJSON(w, http.StatusOK, favs)
}

func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	p, err := decodePlace(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	added, err := s.state.AddFavorite(r.Context(), p.Name, p.Lat, p.Lon)
	if err != nil {
		log.Printf("api: add favorite: %v", err)
		writeError(w, http.StatusInternalServerError, "could not add favorite")
		return
	}
	if !added {
		writeJSON(w, http.StatusConflict, map[string]any{
			"added": false,
			"error": "already a favorite or favorites full",
			"max":   store.MaxFavorites,
		})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]bool{"added": true})
}

func (s *Server) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.state.RemoveFavorite(r.Context(), id); err != nil {
		log.Printf("api: remove favorite %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "could not remove favorite")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetLocation(w http.ResponseWriter, r *http.Request) {
	loc, err := s.state.LastLocation(r.Context())
	if err != nil {
		log.Printf("api: last location: %v", err)
		writeError(w, http.StatusInternalServerError, "location unavailable")
		return
	}
	if loc == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

func (s *Server) handleSaveLocation(w http.ResponseWriter, r *http.Request) {
	p, err := decodePlace(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	loc, err := s.state.SaveLocation(r.Context(), p.Lat, p.Lon, p.Name)
	if err != nil {
		log.Printf("api: save location: %v", err)
		writeError(w, http.StatusInternalServerError, "could not save location")
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

func (s *Server) handleClearLocation(w http.ResponseWriter, r *http.Request) {
	if err := s.state.ClearLocation(r.Context()); err != nil {
		log.Printf("api: clear location: %v", err)
		writeError(w, http.StatusInternalServerError, "could not clear location")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
