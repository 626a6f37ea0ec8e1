package report

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"examportal/internal/app/apiresp"
	"examportal/internal/app/apperr"
)

type reportService interface {
	ExamResults(ctx context.Context, examID uuid.UUID) (*ExamResults, error)
	ExportResultsExcel(ctx context.Context, examID uuid.UUID) ([]byte, error)
}

type Handler struct {
	svc reportService
}

func NewHandler(svc reportService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Results(w http.ResponseWriter, r *http.Request) {
	examID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apiresp.WriteErrorKind(w, apperr.Validation, "invalid exam id")
		return
	}

	results, err := h.svc.ExamResults(r.Context(), examID)
	if err != nil {
		apiresp.WriteError(w, err)
		return
	}
	apiresp.WriteJSON(w, http.StatusOK, results)
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	examID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apiresp.WriteErrorKind(w, apperr.Validation, "invalid exam id")
		return
	}

	data, err := h.svc.ExportResultsExcel(r.Context(), examID)
	if err != nil {
		apiresp.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=exam-results-%s.xlsx", examID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
