package exam

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"examportal/internal/app/apiresp"
	"examportal/internal/app/apperr"
	"examportal/internal/auth"
)

type catalogService interface {
	ListActive(ctx context.Context) ([]Exam, error)
	Create(ctx context.Context, in CreateExamInput) (*Exam, error)
	Update(ctx context.Context, examID uuid.UUID, in UpdateExamInput) (*Exam, error)
	Delete(ctx context.Context, examID uuid.UUID) error
}

type Handler struct {
	svc catalogService
}

type examRequest struct {
	Title           *string `json:"title"`
	Description     *string `json:"description"`
	DurationMinutes *int    `json:"duration_minutes"`
	TotalMarks      *int    `json:"total_marks"`
	PassingMarks    *int    `json:"passing_marks"`
	IsActive        *bool   `json:"is_active"`
}

func NewHandler(svc catalogService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	exams, err := h.svc.ListActive(r.Context())
	if err != nil {
		apiresp.WriteError(w, err)
		return
	}
	apiresp.WriteJSON(w, http.StatusOK, exams)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req examRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteErrorKind(w, apperr.Validation, "invalid request body")
		return
	}

	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		apiresp.WriteErrorKind(w, apperr.Unauthorized, "Unauthorized")
		return
	}

	in := CreateExamInput{
		CreatedBy:       user.ID,
		DurationMinutes: req.DurationMinutes,
		TotalMarks:      req.TotalMarks,
		PassingMarks:    req.PassingMarks,
		IsActive:        req.IsActive,
	}
	if req.Title != nil {
		in.Title = *req.Title
	}
	if req.Description != nil {
		in.Description = *req.Description
	}

	created, err := h.svc.Create(r.Context(), in)
	if err != nil {
		apiresp.WriteError(w, err)
		return
	}
	apiresp.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	examID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apiresp.WriteErrorKind(w, apperr.Validation, "invalid exam id")
		return
	}

	var req examRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteErrorKind(w, apperr.Validation, "invalid request body")
		return
	}

	updated, err := h.svc.Update(r.Context(), examID, UpdateExamInput{
		Title:           req.Title,
		Description:     req.Description,
		DurationMinutes: req.DurationMinutes,
		TotalMarks:      req.TotalMarks,
		PassingMarks:    req.PassingMarks,
		IsActive:        req.IsActive,
	})
	if err != nil {
		apiresp.WriteError(w, err)
		return
	}
	apiresp.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	examID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apiresp.WriteErrorKind(w, apperr.Validation, "invalid exam id")
		return
	}

	if err := h.svc.Delete(r.Context(), examID); err != nil {
		apiresp.WriteError(w, err)
		return
	}
	apiresp.WriteJSON(w, http.StatusOK, map[string]string{"message": "Exam deleted successfully"})
}
