package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/loadstone-dev/loadstone/app/core/analysis"
	"github.com/loadstone-dev/loadstone/app/core/games"
	"github.com/loadstone-dev/loadstone/app/core/report"
)

// maxRequestBody bounds analyze request bodies. Mod lists are plain text;
// anything beyond this is not a mod list.
const maxRequestBody = 2 << 20

// errorEnvelope is the JSON error shape. Report rides along when a deadline
// stopped the analysis partway and a partial result exists.
type errorEnvelope struct {
	Error  *analysis.Error         `json:"error"`
	Report *report.CanonicalReport `json:"report,omitempty"`
}

type gamesResponse struct {
	Games []games.Game `json:"games"`
}

type healthResponse struct {
	Status string `json:"status"`
}

// handleAnalyze runs one analysis. POST /api/analyze
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var req analysis.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge,
				analysis.Errorf(analysis.KindValidation, "request body exceeds %d bytes", tooLarge.Limit), nil)
			return
		}
		s.writeError(w, http.StatusBadRequest,
			analysis.NewError(analysis.KindValidation, "invalid request body", err.Error()), nil)
		return
	}

	result, err := s.analyzer.Analyze(r.Context(), req)
	if err != nil {
		structured := structuredError(err, "analysis failed")
		var partial *report.CanonicalReport
		if result.PartialReason != "" {
			partial = &result
		}
		s.log.Warn("Server: analyze failed",
			zap.String("game", req.Game), zap.String("kind", string(structured.Kind)), zap.Error(err))
		s.writeError(w, statusOf(structured.Kind), structured, partial)
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// handleGames lists the supported games. GET /api/games
func (s *Server) handleGames(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, gamesResponse{Games: s.analyzer.SupportedGames()})
}

// handleMasterlistInfo reports the cached masterlist state for one game.
// GET /api/masterlist/{game}
func (s *Server) handleMasterlistInfo(w http.ResponseWriter, r *http.Request) {
	game := r.PathValue("game")
	info, err := s.analyzer.MasterlistInfo(game)
	if err != nil {
		structured := structuredError(err, "masterlist lookup failed")
		s.writeError(w, statusOf(structured.Kind), structured, nil)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

// handleHealthz answers liveness probes. GET /api/healthz
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// structuredError extracts the engine's structured error, wrapping anything
// else as internal.
func structuredError(err error, message string) *analysis.Error {
	var structured *analysis.Error
	if errors.As(err, &structured) {
		return structured
	}
	return analysis.NewError(analysis.KindInternal, message, err.Error())
}

// statusOf maps the structured error kinds onto HTTP statuses.
func statusOf(kind analysis.ErrorKind) int {
	switch kind {
	case analysis.KindValidation:
		return http.StatusBadRequest
	case analysis.KindSourceUnavailable:
		return http.StatusServiceUnavailable
	case analysis.KindDeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Server: encoding response failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, cause *analysis.Error, partial *report.CanonicalReport) {
	s.writeJSON(w, status, errorEnvelope{Error: cause, Report: partial})
}
