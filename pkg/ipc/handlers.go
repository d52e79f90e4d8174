package ipc

import (
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/odvcencio/autotap/pkg/autoclick"
	apperrors "github.com/odvcencio/autotap/pkg/errors"
	"github.com/odvcencio/autotap/pkg/logging"
)

type statusResponse struct {
	Running   bool                      `json:"running"`
	RunID     string                    `json:"run_id,omitempty"`
	ElapsedMS int64                     `json:"elapsed_ms"`
	URL       string                    `json:"url,omitempty"`
	Config    configView                `json:"config"`
	Metrics   autoclick.MetricsSnapshot `json:"metrics"`
}

type configView struct {
	IntervalMS int64               `json:"interval_ms"`
	DurationMS int64               `json:"duration_ms"`
	Points     []autoclick.Point   `json:"points"`
	Highlight  bool                `json:"highlight"`
	Mode       autoclick.ClickMode `json:"mode"`
}

// configRequest is a partial update. Absent fields keep their value.
type configRequest struct {
	IntervalMS *int64               `json:"interval_ms"`
	DurationMS *int64               `json:"duration_ms"`
	Points     *[]autoclick.Point   `json:"points"`
	Highlight  *bool                `json:"highlight"`
	Mode       *autoclick.ClickMode `json:"mode"`
}

// maxMillis is the largest millisecond count a time.Duration can hold.
const maxMillis = int64(math.MaxInt64 / int64(time.Millisecond))

// validate rejects values that cannot become a loop configuration.
// Non-positive timing is left to Start, which reports it.
func (req configRequest) validate() error {
	for name, ms := range map[string]*int64{"interval_ms": req.IntervalMS, "duration_ms": req.DurationMS} {
		if ms != nil && (*ms > maxMillis || *ms < -maxMillis) {
			return apperrors.New(apperrors.ErrCodeConfigInvalid,
				fmt.Sprintf("%s out of range: %d", name, *ms)).WithContext("field", name)
		}
	}
	if req.Points != nil {
		if err := autoclick.ValidatePoints(*req.Points); err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeConfigInvalid, "points")
		}
	}
	return nil
}

func (req configRequest) apply(cfg autoclick.Config) autoclick.Config {
	if req.IntervalMS != nil {
		cfg.Interval = time.Duration(*req.IntervalMS) * time.Millisecond
	}
	if req.DurationMS != nil {
		cfg.Duration = time.Duration(*req.DurationMS) * time.Millisecond
	}
	if req.Points != nil {
		cfg.Points = append([]autoclick.Point{}, (*req.Points)...)
	}
	if req.Highlight != nil {
		cfg.Highlight = *req.Highlight
	}
	if req.Mode != nil {
		cfg.Mode = *req.Mode
	}
	return cfg
}

func (s *Server) status() statusResponse {
	state := s.loop.State()
	cfg := s.loop.Config()
	return statusResponse{
		Running:   state.Running,
		RunID:     state.RunID,
		ElapsedMS: state.Elapsed.Milliseconds(),
		URL:       s.cfg.PageURL,
		Config: configView{
			IntervalMS: cfg.Interval.Milliseconds(),
			DurationMS: cfg.Duration.Milliseconds(),
			Points:     cfg.Points,
			Highlight:  cfg.Highlight,
			Mode:       cfg.Mode,
		},
		Metrics: s.loop.Metrics().Snapshot(),
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]any{
		"status":  "ok",
		"version": s.cfg.Version,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.status())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.loop.Start(); err != nil {
		status := http.StatusInternalServerError
		if apperrors.IsCode(err, apperrors.ErrCodeConfigInvalid) {
			status = http.StatusBadRequest
		}
		respondError(w, status, err)
		return
	}
	respondJSON(w, s.status())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.loop.Stop()
	respondJSON(w, s.status())
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	var req configRequest
	if status, err := decodeJSONBody(w, r, &req, maxBodyBytesSmall, false); err != nil {
		respondError(w, status, apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "decode config update"))
		return
	}
	if err := req.validate(); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	s.loop.Apply(req.apply(s.loop.Config()))
	_ = s.logger.Info(logging.CategoryConfig, "config.updated", "click configuration replaced over HTTP", nil)
	respondJSON(w, s.status())
}
