package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/marcin-skalski/seatwatch/internal/course"
	"github.com/marcin-skalski/seatwatch/internal/fetch"
	"github.com/marcin-skalski/seatwatch/internal/store"
)

const maxBodyBytes = 1 << 20

type handler struct {
	catalog   store.Catalog
	validator TargetValidator
	baseURL   string
	logger    *slog.Logger
}

type errorResponse struct {
	Error string `json:"error"`
}

// emailList accepts either a JSON array or one comma separated string.
type emailList []string

func (e *emailList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*e = list
		return nil
	}
	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return errors.New("emails must be a string or a list of strings")
	}
	*e = strings.Split(joined, ",")
	return nil
}

type createCourseRequest struct {
	CRN            int       `json:"crn"`
	Name           string    `json:"name"`
	Semester       string    `json:"semester"`
	Year           int       `json:"year"`
	Emails         emailList `json:"emails"`
	NotifyNextTerm bool      `json:"notify_next_term"`
}

type courseResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Target         string    `json:"target"`
	Recipients     []string  `json:"recipients"`
	Desired        bool      `json:"desired"`
	Running        bool      `json:"running"`
	NotifyNextTerm bool      `json:"notify_next_term"`
	CreatedAt      time.Time `json:"created_at"`
}

type deactivateRequest struct {
	Code string `json:"code"`
}

type deactivateResponse struct {
	Stopped int `json:"stopped"`
}

func toResponse(it store.WatchedItem) courseResponse {
	recipients := it.Recipients
	if recipients == nil {
		recipients = []string{}
	}
	return courseResponse{
		ID:             it.ID,
		Name:           it.Name,
		Target:         it.Target,
		Recipients:     recipients,
		Desired:        it.Desired,
		Running:        it.Running,
		NotifyNextTerm: it.NotifyNextTerm,
		CreatedAt:      it.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// createCourse handles POST /api/courses.
func (h *handler) createCourse(w http.ResponseWriter, r *http.Request) {
	var req createCourseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	sem, err := course.ParseSemester(req.Semester)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c := course.Course{CRN: req.CRN, Name: strings.TrimSpace(req.Name), Semester: sem, Year: req.Year}
	if err := c.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	emails, err := parseEmails(req.Emails)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	target := c.URL(h.baseURL)
	if err := h.validator.Validate(r.Context(), target); err != nil {
		h.logger.Info("rejected signup, seat page unusable", "course", c.String(), "target", target, "err", err)
		status, msg := validationStatus(err)
		writeError(w, status, msg)
		return
	}

	item, err := h.catalog.CreateItem(r.Context(), store.NewItem{
		Course:         c,
		Target:         target,
		Emails:         emails,
		NotifyNextTerm: req.NotifyNextTerm,
	})
	if err != nil {
		h.logger.Error("create item failed", "course", c.String(), "err", err)
		writeError(w, http.StatusInternalServerError, "failed to save course")
		return
	}

	h.logger.Info("course added", "id", item.ID, "course", c.String(), "recipients", len(emails))
	writeJSON(w, http.StatusCreated, toResponse(item))
}

// listCourses handles GET /api/courses.
func (h *handler) listCourses(w http.ResponseWriter, r *http.Request) {
	items, err := h.catalog.ListItems(r.Context())
	if err != nil {
		h.logger.Error("list items failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to list courses")
		return
	}

	out := make([]courseResponse, 0, len(items))
	for _, it := range items {
		out = append(out, toResponse(it))
	}
	writeJSON(w, http.StatusOK, out)
}

// deactivate handles POST /api/deactivate.
func (h *handler) deactivate(w http.ResponseWriter, r *http.Request) {
	var req deactivateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	stopped, err := h.catalog.Deactivate(r.Context(), code)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "unknown deactivation code")
		return
	case err != nil:
		h.logger.Error("deactivate failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to deactivate")
		return
	}

	h.logger.Info("recipient deactivated", "courses_stopped", stopped)
	writeJSON(w, http.StatusOK, deactivateResponse{Stopped: stopped})
}

// parseEmails normalizes, validates and dedupes the submitted addresses.
func parseEmails(raw []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		addr, err := mail.ParseAddress(s)
		if err != nil {
			return nil, fmt.Errorf("invalid email %q", s)
		}
		a := strings.ToLower(addr.Address)
		if seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	if len(out) == 0 {
		return nil, store.ErrNoEmails
	}
	return out, nil
}

func validationStatus(err error) (int, string) {
	var httpErr *fetch.HTTPError
	switch {
	case errors.Is(err, fetch.ErrSeatingTableNotFound), errors.Is(err, fetch.ErrMalformedSeating):
		return http.StatusUnprocessableEntity, "no seating information found for that course"
	case errors.As(err, &httpErr):
		return http.StatusBadGateway, fmt.Sprintf("seat page returned HTTP %d", httpErr.StatusCode)
	default:
		return http.StatusBadGateway, "seat page could not be reached"
	}
}
