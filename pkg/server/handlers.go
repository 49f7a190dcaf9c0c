package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"taxmate-hq/throttle/pkg/telemetry/logging"
	"taxmate-hq/throttle/pkg/telemetry/tracing"
	"taxmate-hq/throttle/pkg/throttle"
)

// maxBodyBytes bounds admission request bodies.
const maxBodyBytes = 64 << 10

// Quota headers set on admission responses for tracked categories.
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRetryAfter         = "Retry-After"
)

// AdmitRequest is the body of POST /v1/admit.
type AdmitRequest struct {
	UserID   string `json:"user_id"`
	Category string `json:"category"`
}

// AdmitResponse reports an admission decision.
type AdmitResponse struct {
	Allowed           bool             `json:"allowed"`
	Outcome           throttle.Outcome `json:"outcome"`
	Category          string           `json:"category"`
	Limit             int              `json:"limit"`
	Remaining         int              `json:"remaining"`
	ResetAt           time.Time        `json:"reset_at"`
	RetryAfterSeconds int              `json:"retry_after_seconds,omitempty"`
	Message           string           `json:"message,omitempty"`
}

// QuotaResponse is the body of GET /v1/users/{user_id}/quota.
type QuotaResponse struct {
	UserID     string                                       `json:"user_id"`
	Categories map[throttle.Category]throttle.CategoryStats `json:"categories"`
}

// PolicyView is the wire form of a policy.
type PolicyView struct {
	MaxRequests   int    `json:"max_requests"`
	Window        string `json:"window"`
	WindowSeconds int64  `json:"window_seconds"`
	Description   string `json:"description,omitempty"`
}

// PoliciesResponse is the body of GET /v1/policies.
type PoliciesResponse struct {
	Policies map[throttle.Category]PolicyView `json:"policies"`
}

func (s *Server) handleAdmit(w http.ResponseWriter, r *http.Request) {
	var req AdmitRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		msg := "request body must be a JSON object with user_id and category"
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			msg = "request body too large"
		} else if errors.Is(err, io.EOF) {
			msg = "request body is empty"
		}
		writeError(w, r, http.StatusBadRequest, ErrorTypeInvalidRequest, msg)
		return
	}

	req.UserID = strings.TrimSpace(req.UserID)
	req.Category = strings.TrimSpace(req.Category)
	if req.UserID == "" {
		writeError(w, r, http.StatusBadRequest, ErrorTypeInvalidRequest, "user_id is required")
		return
	}
	if req.Category == "" {
		writeError(w, r, http.StatusBadRequest, ErrorTypeInvalidRequest, "category is required")
		return
	}

	ctx := logging.WithUser(r.Context(), req.UserID)
	ctx = logging.WithCategory(ctx, req.Category)

	now := s.clock()
	d := s.throttle.Check(req.UserID, throttle.Category(req.Category), now)
	tracing.RecordDecision(ctx, d)

	resp := AdmitResponse{
		Allowed:   d.Allowed(),
		Outcome:   d.Outcome,
		Category:  req.Category,
		Limit:     d.Limit,
		Remaining: d.Remaining,
		ResetAt:   d.ResetAt,
	}

	if d.Outcome == throttle.OutcomeAdmitted || d.Outcome == throttle.OutcomeDenied {
		h := w.Header()
		h.Set(HeaderRateLimitLimit, strconv.Itoa(d.Limit))
		h.Set(HeaderRateLimitRemaining, strconv.Itoa(d.Remaining))
		h.Set(HeaderRateLimitReset, strconv.FormatInt(d.ResetAt.Unix(), 10))
	}

	if d.Outcome == throttle.OutcomeFailOpen {
		s.logger.WarnContext(ctx, "admission failed open", "error", d.Err)
	}

	if d.Outcome != throttle.OutcomeDenied {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	retry := retryAfterSeconds(d.RetryAfter(now))
	resp.RetryAfterSeconds = retry
	resp.Message = denialMessage(s.throttle, d, retry)
	w.Header().Set(HeaderRetryAfter, strconv.Itoa(retry))
	writeJSON(w, http.StatusTooManyRequests, resp)
}

func (s *Server) handleQuota(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	if strings.TrimSpace(userID) == "" {
		writeError(w, r, http.StatusBadRequest, ErrorTypeInvalidRequest, "user_id is required")
		return
	}

	writeJSON(w, http.StatusOK, QuotaResponse{
		UserID:     userID,
		Categories: s.throttle.UserStats(userID, s.clock()),
	})
}

func (s *Server) handleResetUser(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	if !s.throttle.ResetUser(userID) {
		writeError(w, r, http.StatusNotFound, ErrorTypeNotFound, fmt.Sprintf("user %q is not tracked", userID))
		return
	}
	s.logger.InfoContext(logging.WithUser(r.Context(), userID), "user quota reset")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.throttle.GlobalStats(s.clock()))
}

func (s *Server) handlePolicies(w http.ResponseWriter, r *http.Request) {
	policies := s.throttle.Policies()
	resp := PoliciesResponse{Policies: make(map[throttle.Category]PolicyView, len(policies))}
	for category, p := range policies {
		resp.Policies[category] = PolicyView{
			MaxRequests:   p.MaxRequests,
			Window:        p.Window.String(),
			WindowSeconds: int64(p.Window / time.Second),
			Description:   p.Description,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// retryAfterSeconds rounds d up to whole seconds, with a floor of one.
func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

func denialMessage(th *throttle.Throttle, d throttle.Decision, retry int) string {
	quota := fmt.Sprintf("%d requests", d.Limit)
	if p, ok := th.Policy(d.Category); ok && p.Description != "" {
		quota = p.Description
	}
	return fmt.Sprintf("Rate limit exceeded for %s (%s). Try again in %s.",
		d.Category, quota, time.Duration(retry)*time.Second)
}
