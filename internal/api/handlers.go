package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/followwatch/internal/tracker"
)

const maxRequestBody = 1 << 20

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type addTrackerRequest struct {
	Handle            string `json:"handle"`
	InstagramUsername string `json:"instagramUsername"`
	Email             string `json:"email"`
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := s.accounts.Signup(r.Context(), req.Email, req.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := s.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) addTracker(w http.ResponseWriter, r *http.Request) {
	var req addTrackerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	handle := req.Handle
	if strings.TrimSpace(handle) == "" {
		handle = req.InstagramUsername
	}
	t, err := s.trackers.Create(r.Context(), tracker.CreateRequest{
		OwnerID:       userFrom(r.Context()).ID,
		Handle:        handle,
		NotifyAddress: req.Email,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) listTrackers(w http.ResponseWriter, r *http.Request) {
	trackers, err := s.trackers.List(r.Context(), userFrom(r.Context()).ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if trackers == nil {
		trackers = []tracker.Tracker{}
	}
	writeJSON(w, http.StatusOK, trackers)
}

func (s *Server) removeTracker(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.trackers.Remove(r.Context(), userFrom(r.Context()).ID, id); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) mediaCheck(w http.ResponseWriter, r *http.Request) {
	if s.media == nil {
		writeError(w, http.StatusServiceUnavailable, "media check is not configured")
		return
	}
	res, err := s.media.Check(r.Context(), chi.URLParam(r, "handle"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

// fail maps err onto the HTTP status taxonomy and writes it.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.Error(err))
		if status == http.StatusInternalServerError {
			msg = "internal server error"
		}
	}
	writeError(w, status, msg)
}

func statusFor(err error) int {
	var upstream *tracker.UpstreamError
	switch {
	case errors.Is(err, tracker.ErrInvalidInput),
		errors.Is(err, tracker.ErrIneligible),
		errors.Is(err, tracker.ErrLimitReached):
		return http.StatusBadRequest
	case errors.Is(err, tracker.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, tracker.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, tracker.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, tracker.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, tracker.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &upstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
