package attempt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"examportal/internal/app/apperr"
	"examportal/internal/auth"
)

type mockAttemptService struct {
	startFn        func(ctx context.Context, examID, studentID uuid.UUID) (*Attempt, error)
	submitAnswerFn func(ctx context.Context, in SubmitAnswerInput) (*Answer, error)
	submitFn       func(ctx context.Context, attemptID uuid.UUID) (*Attempt, error)
	listMineFn     func(ctx context.Context, studentID uuid.UUID) ([]AttemptSummary, error)
	detailFn       func(ctx context.Context, attemptID uuid.UUID) (*AttemptDetail, error)
	ownerFn        func(ctx context.Context, attemptID uuid.UUID) (uuid.UUID, error)
}

func (m *mockAttemptService) Start(ctx context.Context, examID, studentID uuid.UUID) (*Attempt, error) {
	if m.startFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.startFn(ctx, examID, studentID)
}

func (m *mockAttemptService) SubmitAnswer(ctx context.Context, in SubmitAnswerInput) (*Answer, error) {
	if m.submitAnswerFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.submitAnswerFn(ctx, in)
}

func (m *mockAttemptService) Submit(ctx context.Context, attemptID uuid.UUID) (*Attempt, error) {
	if m.submitFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.submitFn(ctx, attemptID)
}

func (m *mockAttemptService) ListMine(ctx context.Context, studentID uuid.UUID) ([]AttemptSummary, error) {
	if m.listMineFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.listMineFn(ctx, studentID)
}

func (m *mockAttemptService) Detail(ctx context.Context, attemptID uuid.UUID) (*AttemptDetail, error) {
	if m.detailFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.detailFn(ctx, attemptID)
}

func (m *mockAttemptService) Owner(ctx context.Context, attemptID uuid.UUID) (uuid.UUID, error) {
	if m.ownerFn == nil {
		return uuid.Nil, errors.New("not implemented")
	}
	return m.ownerFn(ctx, attemptID)
}

func newTestRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Post("/api/exams/{id}/start", h.Start)
	r.Post("/api/attempts/{id}/submit-answer", h.SubmitAnswer)
	r.Post("/api/attempts/{id}/submit", h.Submit)
	r.Get("/api/my-attempts", h.ListMine)
	r.Get("/api/attempts/{id}", h.Detail)
	return r
}

func doRequest(t *testing.T, r http.Handler, method, path string, body []byte, user *auth.User) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if user != nil {
		req = req.WithContext(auth.ContextWithUser(req.Context(), user))
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func student(id uuid.UUID) *auth.User {
	return &auth.User{ID: id, Email: "student@example.test", FullName: "Test Student", Role: "student"}
}

func TestStartCreatesAttempt(t *testing.T) {
	examID := uuid.New()
	studentID := uuid.New()
	svc := &mockAttemptService{
		startFn: func(ctx context.Context, gotExam, gotStudent uuid.UUID) (*Attempt, error) {
			if gotExam != examID {
				t.Fatalf("exam id = %s, want %s", gotExam, examID)
			}
			if gotStudent != studentID {
				t.Fatalf("student id = %s, want %s", gotStudent, studentID)
			}
			return &Attempt{
				ID:         uuid.New(),
				ExamID:     gotExam,
				StudentID:  gotStudent,
				TotalMarks: 100,
				Status:     "in_progress",
				StartedAt:  time.Now().UTC(),
			}, nil
		},
	}
	r := newTestRouter(NewHandler(svc))

	rec := doRequest(t, r, http.MethodPost, "/api/exams/"+examID.String()+"/start", nil, student(studentID))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body: %s)", rec.Code, http.StatusCreated, rec.Body.String())
	}

	var got Attempt
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Status != "in_progress" {
		t.Fatalf("status = %q, want in_progress", got.Status)
	}
	if got.TotalMarks != 100 {
		t.Fatalf("total_marks = %d, want 100", got.TotalMarks)
	}
}

func TestStartWithoutUserIsUnauthorized(t *testing.T) {
	r := newTestRouter(NewHandler(&mockAttemptService{}))

	rec := doRequest(t, r, http.MethodPost, "/api/exams/"+uuid.NewString()+"/start", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestStartUnknownExamIsNotFound(t *testing.T) {
	svc := &mockAttemptService{
		startFn: func(ctx context.Context, examID, studentID uuid.UUID) (*Attempt, error) {
			return nil, apperr.New(apperr.NotFound, "exam not found")
		},
	}
	r := newTestRouter(NewHandler(svc))

	rec := doRequest(t, r, http.MethodPost, "/api/exams/"+uuid.NewString()+"/start", nil, student(uuid.New()))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["code"] != "not_found" {
		t.Fatalf("code = %q, want not_found", body["code"])
	}
	if body["error"] != "exam not found" {
		t.Fatalf("error = %q, want exam not found", body["error"])
	}
}

func TestSubmitAnswerScoresAndReturnsStoredRow(t *testing.T) {
	attemptID := uuid.New()
	questionID := uuid.New()
	studentID := uuid.New()

	svc := &mockAttemptService{
		ownerFn: func(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
			return studentID, nil
		},
		submitAnswerFn: func(ctx context.Context, in SubmitAnswerInput) (*Answer, error) {
			if in.AttemptID != attemptID || in.QuestionID != questionID {
				t.Fatalf("unexpected input: %+v", in)
			}
			return &Answer{
				AttemptID:      in.AttemptID,
				QuestionID:     in.QuestionID,
				SelectedAnswer: in.SelectedAnswer,
				IsCorrect:      true,
				MarksObtained:  50,
				AnsweredAt:     time.Now().UTC(),
			}, nil
		},
	}
	r := newTestRouter(NewHandler(svc))

	body, _ := json.Marshal(map[string]string{
		"question_id":     questionID.String(),
		"selected_answer": "B",
	})
	rec := doRequest(t, r, http.MethodPost, "/api/attempts/"+attemptID.String()+"/submit-answer", body, student(studentID))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body: %s)", rec.Code, http.StatusOK, rec.Body.String())
	}

	var got Answer
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !got.IsCorrect || got.MarksObtained != 50 {
		t.Fatalf("answer = %+v, want correct with 50 marks", got)
	}
}

func TestSubmitAnswerOnForeignAttemptIsForbidden(t *testing.T) {
	svc := &mockAttemptService{
		ownerFn: func(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
			return uuid.New(), nil
		},
	}
	r := newTestRouter(NewHandler(svc))

	body, _ := json.Marshal(map[string]string{
		"question_id":     uuid.NewString(),
		"selected_answer": "A",
	})
	rec := doRequest(t, r, http.MethodPost, "/api/attempts/"+uuid.NewString()+"/submit-answer", body, student(uuid.New()))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestSubmitAnswerMissingSelection(t *testing.T) {
	r := newTestRouter(NewHandler(&mockAttemptService{}))

	body, _ := json.Marshal(map[string]string{"question_id": uuid.NewString()})
	rec := doRequest(t, r, http.MethodPost, "/api/attempts/"+uuid.NewString()+"/submit-answer", body, student(uuid.New()))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestSubmitReturnsFinalizedAttempt(t *testing.T) {
	attemptID := uuid.New()
	studentID := uuid.New()
	submittedAt := time.Now().UTC()

	svc := &mockAttemptService{
		ownerFn: func(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
			return studentID, nil
		},
		submitFn: func(ctx context.Context, id uuid.UUID) (*Attempt, error) {
			return &Attempt{
				ID:          id,
				StudentID:   studentID,
				TotalMarks:  100,
				Status:      "submitted",
				Score:       50,
				IsPassed:    true,
				SubmittedAt: &submittedAt,
			}, nil
		},
	}
	r := newTestRouter(NewHandler(svc))

	rec := doRequest(t, r, http.MethodPost, "/api/attempts/"+attemptID.String()+"/submit", nil, student(studentID))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var got Attempt
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Status != "submitted" || got.Score != 50 || !got.IsPassed {
		t.Fatalf("attempt = %+v, want submitted score 50 passed", got)
	}
}

func TestDetailAllowsInstructorOnForeignAttempt(t *testing.T) {
	attemptID := uuid.New()
	svc := &mockAttemptService{
		detailFn: func(ctx context.Context, id uuid.UUID) (*AttemptDetail, error) {
			return &AttemptDetail{
				Attempt: Attempt{ID: id, Status: "submitted"},
				Answers: []AnswerDetail{},
			}, nil
		},
	}
	r := newTestRouter(NewHandler(svc))

	instructor := &auth.User{ID: uuid.New(), Role: "instructor"}
	rec := doRequest(t, r, http.MethodGet, "/api/attempts/"+attemptID.String(), nil, instructor)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestListMineUsesCallerIdentity(t *testing.T) {
	studentID := uuid.New()
	svc := &mockAttemptService{
		listMineFn: func(ctx context.Context, gotStudent uuid.UUID) ([]AttemptSummary, error) {
			if gotStudent != studentID {
				t.Fatalf("student id = %s, want %s", gotStudent, studentID)
			}
			return []AttemptSummary{
				{Attempt: Attempt{ID: uuid.New(), Status: "submitted"}, Exam: ExamInfo{Title: "Algebra"}},
			}, nil
		},
	}
	r := newTestRouter(NewHandler(svc))

	rec := doRequest(t, r, http.MethodGet, "/api/my-attempts", nil, student(studentID))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var got []AttemptSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 1 || got[0].Exam.Title != "Algebra" {
		t.Fatalf("attempts = %+v, want one row with exam title", got)
	}
}
