package attempt

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

type attemptService interface {
	Start(ctx context.Context, examID, studentID uuid.UUID) (*Attempt, error)
	SubmitAnswer(ctx context.Context, in SubmitAnswerInput) (*Answer, error)
	Submit(ctx context.Context, attemptID uuid.UUID) (*Attempt, error)
	ListMine(ctx context.Context, studentID uuid.UUID) ([]AttemptSummary, error)
	Detail(ctx context.Context, attemptID uuid.UUID) (*AttemptDetail, error)
	Owner(ctx context.Context, attemptID uuid.UUID) (uuid.UUID, error)
}

type Handler struct {
	svc attemptService
}

type submitAnswerRequest struct {
	QuestionID     string `json:"question_id"`
	SelectedAnswer string `json:"selected_answer"`
}

func NewHandler(svc attemptService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		apiresp.WriteErrorKind(w, apperr.Unauthorized, "Unauthorized")
		return
	}

	examID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apiresp.WriteErrorKind(w, apperr.Validation, "invalid exam id")
		return
	}

	created, err := h.svc.Start(r.Context(), examID, user.ID)
	if err != nil {
		apiresp.WriteError(w, err)
		return
	}
	apiresp.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		apiresp.WriteErrorKind(w, apperr.Unauthorized, "Unauthorized")
		return
	}

	attemptID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apiresp.WriteErrorKind(w, apperr.Validation, "invalid attempt id")
		return
	}

	var req submitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteErrorKind(w, apperr.Validation, "invalid request body")
		return
	}
	questionID, err := uuid.Parse(req.QuestionID)
	if err != nil {
		apiresp.WriteErrorKind(w, apperr.Validation, "invalid question_id")
		return
	}
	if req.SelectedAnswer == "" {
		apiresp.WriteErrorKind(w, apperr.Validation, "selected_answer is required")
		return
	}

	if err := h.authorizeAttemptAccess(r, user, attemptID); err != nil {
		apiresp.WriteError(w, err)
		return
	}

	answer, err := h.svc.SubmitAnswer(r.Context(), SubmitAnswerInput{
		AttemptID:      attemptID,
		QuestionID:     questionID,
		SelectedAnswer: req.SelectedAnswer,
	})
	if err != nil {
		apiresp.WriteError(w, err)
		return
	}
	apiresp.WriteJSON(w, http.StatusOK, answer)
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		apiresp.WriteErrorKind(w, apperr.Unauthorized, "Unauthorized")
		return
	}

	attemptID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apiresp.WriteErrorKind(w, apperr.Validation, "invalid attempt id")
		return
	}

	if err := h.authorizeAttemptAccess(r, user, attemptID); err != nil {
		apiresp.WriteError(w, err)
		return
	}

	updated, err := h.svc.Submit(r.Context(), attemptID)
	if err != nil {
		apiresp.WriteError(w, err)
		return
	}
	apiresp.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		apiresp.WriteErrorKind(w, apperr.Unauthorized, "Unauthorized")
		return
	}

	items, err := h.svc.ListMine(r.Context(), user.ID)
	if err != nil {
		apiresp.WriteError(w, err)
		return
	}
	apiresp.WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) Detail(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		apiresp.WriteErrorKind(w, apperr.Unauthorized, "Unauthorized")
		return
	}

	attemptID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apiresp.WriteErrorKind(w, apperr.Validation, "invalid attempt id")
		return
	}

	if err := h.authorizeAttemptAccess(r, user, attemptID); err != nil {
		apiresp.WriteError(w, err)
		return
	}

	detail, err := h.svc.Detail(r.Context(), attemptID)
	if err != nil {
		apiresp.WriteError(w, err)
		return
	}
	apiresp.WriteJSON(w, http.StatusOK, detail)
}

// authorizeAttemptAccess binds attempt routes to their owner. Instructors
// and admins may reach any attempt; students only their own.
func (h *Handler) authorizeAttemptAccess(r *http.Request, user *auth.User, attemptID uuid.UUID) error {
	if user.Role == "instructor" || user.Role == "admin" {
		return nil
	}

	ownerID, err := h.svc.Owner(r.Context(), attemptID)
	if err != nil {
		return err
	}
	if ownerID != user.ID {
		return apperr.New(apperr.Forbidden, "forbidden")
	}
	return nil
}
