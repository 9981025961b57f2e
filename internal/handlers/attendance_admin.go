package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/BradenHooton/cadmium/internal/auth"
	"github.com/BradenHooton/cadmium/internal/models"
	pkghttp "github.com/BradenHooton/cadmium/pkg/http"
	"github.com/go-chi/chi/v5"
)

// AttendanceAdminServiceInterface defines the management view over every account's attendance
type AttendanceAdminServiceInterface interface {
	ListAll(ctx context.Context, filter models.AttendanceFilter) ([]*models.Attendance, error)
	UpdateAttendance(ctx context.Context, actorID, id string, changes models.AttendanceChanges) (*models.Attendance, error)
	DeleteAttendance(ctx context.Context, actorID, id string) error
}

// AttendanceAdminHandler lets management review and correct attendance
type AttendanceAdminHandler struct {
	service AttendanceAdminServiceInterface
}

func NewAttendanceAdminHandler(service AttendanceAdminServiceInterface) *AttendanceAdminHandler {
	return &AttendanceAdminHandler{service: service}
}

// UpdateAttendanceRequest represents the request body for correcting a record; omitted fields are unchanged
type UpdateAttendanceRequest struct {
	Shift *string `json:"shift" validate:"omitempty,oneof=opening afternoon closing"`
	Date  *string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Notes *string `json:"notes" validate:"omitempty,max=500"`
}

// ManagementAttendanceResponse is returned by GET /panel/attendance
type ManagementAttendanceResponse struct {
	Records []*models.Attendance `json:"records"`
	Shifts  []ShiftResponse      `json:"shifts"`
	Limit   int                  `json:"limit"`
	Offset  int                  `json:"offset"`
}

func parseWorkDate(raw string) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, raw, models.ShopTimezone)
}

// List handles GET /panel/attendance?account_id=&from=&to=
func (h *AttendanceAdminHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 30, 365)
	filter := models.AttendanceFilter{Limit: limit, Offset: offset}

	q := r.URL.Query()
	if accountID := q.Get("account_id"); accountID != "" {
		if err := ValidateVar(accountID, "uuid"); err != nil {
			pkghttp.WriteBadRequest(w, "Invalid account id")
			return
		}
		filter.AccountID = accountID
	}
	for key, dst := range map[string]*time.Time{"from": &filter.From, "to": &filter.To} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		parsed, err := parseWorkDate(raw)
		if err != nil {
			pkghttp.WriteBadRequest(w, "Invalid date")
			return
		}
		*dst = parsed
	}

	records, err := h.service.ListAll(r.Context(), filter)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}
	if records == nil {
		records = []*models.Attendance{}
	}

	pkghttp.WriteJSON(w, http.StatusOK, ManagementAttendanceResponse{
		Records: records,
		Shifts:  shiftTable(),
		Limit:   limit,
		Offset:  offset,
	})
}

// Update handles PATCH /panel/attendance/{id}
//
// @Summary Correct an attendance record
// @Accept json
// @Param request body UpdateAttendanceRequest true "Attendance changes"
// @Produce json
// @Success 200 {object} models.Attendance
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /panel/attendance/{id} [patch]
func (h *AttendanceAdminHandler) Update(w http.ResponseWriter, r *http.Request) {
	session := auth.GetSessionFromContext(r)
	if session == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	id := chi.URLParam(r, "id")
	if err := ValidateVar(id, "required,uuid"); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid attendance id")
		return
	}

	var req UpdateAttendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.Shift != nil {
		shift := strings.ToLower(strings.TrimSpace(*req.Shift))
		req.Shift = &shift
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	var changes models.AttendanceChanges
	if req.Shift != nil {
		shift := models.Shift(*req.Shift)
		changes.Shift = &shift
	}
	if req.Date != nil {
		date, err := parseWorkDate(*req.Date)
		if err != nil {
			pkghttp.WriteBadRequest(w, "Invalid date")
			return
		}
		changes.Date = &date
	}
	if req.Notes != nil {
		notes := strings.TrimSpace(*req.Notes)
		changes.Notes = &notes
	}

	record, err := h.service.UpdateAttendance(r.Context(), session.AccountID, id, changes)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrUnknownShift):
			pkghttp.WriteBadRequest(w, "Unknown shift")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Attendance record not found")
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "Attendance already registered for this date")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, record)
}

// Delete handles DELETE /panel/attendance/{id}
func (h *AttendanceAdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	session := auth.GetSessionFromContext(r)
	if session == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	id := chi.URLParam(r, "id")
	if err := ValidateVar(id, "required,uuid"); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid attendance id")
		return
	}

	if err := h.service.DeleteAttendance(r.Context(), session.AccountID, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Attendance record not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
