package question

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"examportal/internal/app/apiresp"
	"examportal/internal/app/apperr"
)

type questionService interface {
	ListByExam(ctx context.Context, examID uuid.UUID) ([]Question, error)
	Create(ctx context.Context, in CreateInput) (*Question, error)
	Update(ctx context.Context, questionID uuid.UUID, in UpdateInput) (*Question, error)
	Delete(ctx context.Context, questionID uuid.UUID) error
}

type Handler struct {
	svc questionService
}

type questionRequest struct {
	ExamID        string  `json:"exam_id"`
	QuestionText  *string `json:"question_text"`
	OptionA       *string `json:"option_a"`
	OptionB       *string `json:"option_b"`
	OptionC       *string `json:"option_c"`
	OptionD       *string `json:"option_d"`
	CorrectAnswer *string `json:"correct_answer"`
	Marks         *int    `json:"marks"`
}

func NewHandler(svc questionService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) ListByExam(w http.ResponseWriter, r *http.Request) {
	examID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apiresp.WriteErrorKind(w, apperr.Validation, "invalid exam id")
		return
	}

	items, err := h.svc.ListByExam(r.Context(), examID)
	if err != nil {
		apiresp.WriteError(w, err)
		return
	}
	apiresp.WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteErrorKind(w, apperr.Validation, "invalid request body")
		return
	}
	examID, err := uuid.Parse(req.ExamID)
	if err != nil {
		apiresp.WriteErrorKind(w, apperr.Validation, "invalid exam_id")
		return
	}

	in := CreateInput{ExamID: examID}
	if req.QuestionText != nil {
		in.QuestionText = *req.QuestionText
	}
	if req.OptionA != nil {
		in.OptionA = *req.OptionA
	}
	if req.OptionB != nil {
		in.OptionB = *req.OptionB
	}
	if req.OptionC != nil {
		in.OptionC = *req.OptionC
	}
	if req.OptionD != nil {
		in.OptionD = *req.OptionD
	}
	if req.CorrectAnswer != nil {
		in.CorrectAnswer = *req.CorrectAnswer
	}
	if req.Marks != nil {
		in.Marks = *req.Marks
	}

	created, err := h.svc.Create(r.Context(), in)
	if err != nil {
		apiresp.WriteError(w, err)
		return
	}
	apiresp.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	questionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apiresp.WriteErrorKind(w, apperr.Validation, "invalid question id")
		return
	}

	var req questionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteErrorKind(w, apperr.Validation, "invalid request body")
		return
	}

	updated, err := h.svc.Update(r.Context(), questionID, UpdateInput{
		QuestionText:  req.QuestionText,
		OptionA:       req.OptionA,
		OptionB:       req.OptionB,
		OptionC:       req.OptionC,
		OptionD:       req.OptionD,
		CorrectAnswer: req.CorrectAnswer,
		Marks:         req.Marks,
	})
	if err != nil {
		apiresp.WriteError(w, err)
		return
	}
	apiresp.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	questionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apiresp.WriteErrorKind(w, apperr.Validation, "invalid question id")
		return
	}

	if err := h.svc.Delete(r.Context(), questionID); err != nil {
		apiresp.WriteError(w, err)
		return
	}
	apiresp.WriteJSON(w, http.StatusOK, map[string]string{"message": "Question deleted successfully"})
}
