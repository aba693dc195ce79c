package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/custseg/internal/models"
	"github.com/hyperjump/custseg/internal/pipeline"
	"github.com/hyperjump/custseg/internal/storage"
	"go.uber.org/zap"
)

const maxRequestBytes = 64 << 20

// segmentationRequest carries the entity tables and optional overrides of the
// server's segmentation config.
type segmentationRequest struct {
	Source             string        `json:"source"`
	Tables             models.Tables `json:"tables"`
	TargetClusterCount int           `json:"target_cluster_count,omitempty"`
	ClusterNames       []string      `json:"cluster_name_table,omitempty"`
	RandomSeed         *int64        `json:"random_seed,omitempty"`
	SkipElbow          bool          `json:"skip_elbow,omitempty"`
}

func (s *Server) handleCreateSegmentation(w http.ResponseWriter, r *http.Request) {
	var req segmentationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cfg := s.segmentation
	if req.TargetClusterCount > 0 {
		cfg.TargetClusterCount = req.TargetClusterCount
	}
	if req.ClusterNames != nil {
		cfg.ClusterNames = req.ClusterNames
	}
	if req.RandomSeed != nil {
		cfg.RandomSeed = req.RandomSeed
	}
	if req.SkipElbow {
		cfg.Elbow.Disabled = true
	}
	if req.Source == "" {
		req.Source = "api"
	}

	s.logger.Debug("segmentation request",
		zap.String("source", req.Source),
		zap.Int("k", cfg.TargetClusterCount),
		zap.Int("accounts", len(req.Tables.Accounts)),
		zap.Int("transactions", len(req.Tables.Transactions)),
		zap.Int("loans", len(req.Tables.Loans)))

	res, err := pipeline.NewRunner(&cfg, pipeline.WithLogger(s.logger)).Run(r.Context(), req.Tables)
	if err != nil {
		s.logger.Warn("segmentation failed", zap.Error(err))
		s.respondPipelineError(w, err)
		return
	}

	run := res.Run(req.Source)
	if err := s.storage.SaveRun(r.Context(), run); err != nil {
		s.logger.Error("saving run failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, run)
}

func (s *Server) handleListSegmentations(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		s.respondError(w, http.StatusBadRequest, "invalid offset")
		return
	}
	limit, err := queryInt(r, "limit", 20)
	if err != nil || limit < 1 || limit > 1000 {
		s.respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	runs, err := s.storage.ListRuns(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list runs failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []*models.Run{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"runs": runs, "offset": offset, "limit": limit})
}

func (s *Server) handleGetSegmentation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := s.storage.GetRun(r.Context(), id)
	if errors.Is(err, storage.ErrRunNotFound) {
		s.respondError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.logger.Error("get run failed", zap.String("id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, run)
}

func (s *Server) handleDeleteSegmentation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete run request", zap.String("id", id))
	err := s.storage.DeleteRun(r.Context(), id)
	if errors.Is(err, storage.ErrRunNotFound) {
		s.respondError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.logger.Error("deletion failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	count, err := s.storage.CountRuns(r.Context())
	if err != nil {
		s.logger.Error("status: count runs failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"runs": count,
		"config": map[string]interface{}{
			"target_cluster_count": s.segmentation.TargetClusterCount,
			"cluster_name_table":   s.segmentation.ClusterNames,
			"random_seed":          s.segmentation.Seed(),
			"init":                 s.segmentation.Init,
			"fill_policy":          s.segmentation.FillPolicy,
		},
	}
	if sized, ok := s.storage.(interface{ SizeBytes() (int64, error) }); ok {
		if n, err := sized.SizeBytes(); err == nil {
			resp["disk_usage_bytes"] = n
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrConfigurationMismatch):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondPipelineError(w http.ResponseWriter, err error) {
	body := map[string]string{"error": err.Error()}
	if c := pipeline.Condition(err); c != "" {
		body["condition"] = c
	}
	var se *pipeline.StageError
	if errors.As(err, &se) {
		body["stage"] = string(se.Stage)
	}
	s.respondJSON(w, statusFor(err), body)
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
