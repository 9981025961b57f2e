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
)

// AttendanceServiceInterface defines the attendance contract
type AttendanceServiceInterface interface {
	Register(ctx context.Context, accountID string, shift models.Shift, date time.Time, notes string) (*models.Attendance, error)
	ListForAccount(ctx context.Context, accountID string, limit int) ([]*models.Attendance, error)
}

// AttendanceHandler lets collaborators register and review their shifts
type AttendanceHandler struct {
	service AttendanceServiceInterface
}

// NewAttendanceHandler creates a new AttendanceHandler
func NewAttendanceHandler(service AttendanceServiceInterface) *AttendanceHandler {
	return &AttendanceHandler{service: service}
}

// RegisterAttendanceRequest represents the request body for registering a shift
type RegisterAttendanceRequest struct {
	Shift string `json:"shift" validate:"required,oneof=opening afternoon closing"`
	Date  string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Notes string `json:"notes" validate:"max=500"`
}

// ShiftResponse describes one entry of the shift table
type ShiftResponse struct {
	Shift string `json:"shift"`
	Hours string `json:"hours"`
}

// AttendanceListResponse is returned by GET /attendance
type AttendanceListResponse struct {
	Records []*models.Attendance `json:"records"`
	Shifts  []ShiftResponse      `json:"shifts"`
}

var shiftOrder = []models.Shift{models.ShiftOpening, models.ShiftAfternoon, models.ShiftClosing}

func shiftTable() []ShiftResponse {
	shifts := make([]ShiftResponse, 0, len(shiftOrder))
	for _, s := range shiftOrder {
		hours, err := models.HoursFor(s)
		if err != nil {
			continue
		}
		shifts = append(shifts, ShiftResponse{Shift: string(s), Hours: hours.String()})
	}
	return shifts
}

// List handles GET /attendance
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	session := auth.GetSessionFromContext(r)
	if session == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	limit, _ := pagination(r, 30, 365)
	records, err := h.service.ListForAccount(r.Context(), session.AccountID, limit)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}
	if records == nil {
		records = []*models.Attendance{}
	}

	pkghttp.WriteJSON(w, http.StatusOK, AttendanceListResponse{Records: records, Shifts: shiftTable()})
}

// Register handles POST /attendance
//
// @Summary Register a worked shift
// @Accept json
// @Param request body RegisterAttendanceRequest true "Attendance request"
// @Produce json
// @Success 201 {object} models.Attendance
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /attendance [post]
func (h *AttendanceHandler) Register(w http.ResponseWriter, r *http.Request) {
	session := auth.GetSessionFromContext(r)
	if session == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req RegisterAttendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	req.Shift = strings.ToLower(strings.TrimSpace(req.Shift))
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	var date time.Time
	if req.Date != "" {
		parsed, err := time.ParseInLocation(time.DateOnly, req.Date, models.ShopTimezone)
		if err != nil {
			pkghttp.WriteBadRequest(w, "Invalid date")
			return
		}
		date = parsed
	}

	record, err := h.service.Register(r.Context(), session.AccountID, models.Shift(req.Shift), date, strings.TrimSpace(req.Notes))
	if err != nil {
		switch {
		case errors.Is(err, models.ErrUnknownShift):
			pkghttp.WriteBadRequest(w, "Unknown shift")
		case errors.Is(err, models.ErrForbidden):
			pkghttp.WriteForbidden(w, "Only active collaborators can register attendance")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Account not found")
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "Attendance already registered for this date")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, record)
}
