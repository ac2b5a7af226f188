package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/shirabe/internal/manifest"
	"github.com/hyperjump/shirabe/internal/models"
	"github.com/hyperjump/shirabe/internal/vector"
	"go.uber.org/zap"
)

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req models.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("ingest request",
		zap.String("dataset", req.DatasetID),
		zap.String("source", req.Source),
		zap.String("version", req.Version),
		zap.Bool("upsert", req.Upsert))

	entry, err := s.ingest.Submit(r.Context(), &req)
	if err != nil {
		if errors.Is(err, manifest.ErrDuplicateVersion) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("submit failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusAccepted, models.IngestResponse{
		Message:   "ingest started",
		DatasetID: req.DatasetID,
		Version:   entry.Version,
		TaskID:    entry.ID,
	})
}

func (s *Server) handleGetManifest(w http.ResponseWriter, r *http.Request) {
	datasetID := chi.URLParam(r, "dataset_id")
	m := s.ingest.GetManifest(r.Context(), datasetID)
	s.respondJSON(w, http.StatusOK, m)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	datasetID := chi.URLParam(r, "dataset_id")
	version := chi.URLParam(r, "version")

	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	idx, ok := s.catalog.Get(datasetID, version)
	if !ok {
		s.respondError(w, http.StatusNotFound, "no built index for this dataset version")
		return
	}
	results, err := idx.Query(r.Context(), req.Query, s.embedder, req.TopK)
	if err != nil {
		if errors.Is(err, vector.ErrInvalidTopK) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("query failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, models.QueryResponse{Results: results})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"indexes": s.catalog.Len(),
		"config": map[string]interface{}{
			"storage_backend":      s.config.Storage.Backend,
			"embedding_dimensions": s.embedder.Dimensions(),
			"chunk_size":           s.config.Ingest.ChunkSize,
			"chunk_overlap":        s.config.Ingest.ChunkOverlap,
			"max_concurrent":       s.config.Ingest.MaxConcurrent,
		},
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
