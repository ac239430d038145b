package http

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/city-events-etl/internal/adapter/postgres"
	"github.com/couchcryptid/city-events-etl/internal/domain"
)

const (
	defaultLimit = 500
	maxLimit     = 5000
	dateLayout   = "2006-01-02"
)

type listResponse struct {
	Events []domain.EventRecord `json:"events"`
	Count  int                  `json:"count"`
}

// handleListEvents serves GET /v1/events. Supported query parameters:
// category, location, weather (exact match), from and to (YYYY-MM-DD, both
// inclusive), limit and offset.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	f, err := s.parseFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, err := s.events.List(r.Context(), f)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "list events failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if events == nil {
		events = []domain.EventRecord{}
	}
	writeJSON(w, http.StatusOK, listResponse{Events: events, Count: len(events)})
}

// handleSummary serves GET /v1/events/summary.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.events.Summary(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "summarize events failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) parseFilter(q url.Values) (postgres.Filter, error) {
	f := postgres.Filter{
		Category: q.Get("category"),
		Location: q.Get("location"),
		Weather:  q.Get("weather"),
		Limit:    defaultLimit,
	}

	if v := q.Get("from"); v != "" {
		t, err := time.ParseInLocation(dateLayout, v, s.loc)
		if err != nil {
			return f, fmt.Errorf("invalid from date %q, want YYYY-MM-DD", v)
		}
		f.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.ParseInLocation(dateLayout, v, s.loc)
		if err != nil {
			return f, fmt.Errorf("invalid to date %q, want YYYY-MM-DD", v)
		}
		end := t.AddDate(0, 0, 1)
		f.To = &end
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return f, fmt.Errorf("from must not be after to")
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil || n == 0 || n > maxLimit {
			return f, fmt.Errorf("limit must be between 1 and %d", maxLimit)
		}
		f.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return f, fmt.Errorf("invalid offset %q", v)
		}
		f.Offset = n
	}
	return f, nil
}
