package attempt

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"examportal/internal/app/apperr"
)

type Attempt struct {
	ID          uuid.UUID  `json:"id"`
	ExamID      uuid.UUID  `json:"exam_id"`
	StudentID   uuid.UUID  `json:"student_id"`
	TotalMarks  int        `json:"total_marks"`
	Status      string     `json:"status"`
	Score       int        `json:"score"`
	IsPassed    bool       `json:"is_passed"`
	StartedAt   time.Time  `json:"started_at"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
}

type Answer struct {
	AttemptID      uuid.UUID `json:"attempt_id"`
	QuestionID     uuid.UUID `json:"question_id"`
	SelectedAnswer string    `json:"selected_answer"`
	IsCorrect      bool      `json:"is_correct"`
	MarksObtained  int       `json:"marks_obtained"`
	AnsweredAt     time.Time `json:"answered_at"`
}

// ExamInfo is the slice of the exam embedded in attempt listings.
type ExamInfo struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type AttemptSummary struct {
	Attempt
	Exam ExamInfo `json:"exam"`
}

// QuestionInfo is embedded in answer details so a finished attempt can be
// reviewed against the answer key.
type QuestionInfo struct {
	QuestionText  string `json:"question_text"`
	OptionA       string `json:"option_a"`
	OptionB       string `json:"option_b"`
	OptionC       string `json:"option_c"`
	OptionD       string `json:"option_d"`
	CorrectAnswer string `json:"correct_answer"`
}

type AnswerDetail struct {
	Answer
	Question QuestionInfo `json:"question"`
}

type AttemptDetail struct {
	Attempt Attempt        `json:"attempt"`
	Answers []AnswerDetail `json:"answers"`
}

type SubmitAnswerInput struct {
	AttemptID      uuid.UUID
	QuestionID     uuid.UUID
	SelectedAnswer string
}

type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

const attemptColumns = `id, exam_id, student_id, total_marks, status, score, is_passed, started_at, submitted_at`

func scanAttempt(row interface{ Scan(dest ...interface{}) error }) (*Attempt, error) {
	a := &Attempt{}
	var submittedAt sql.NullTime
	err := row.Scan(
		&a.ID,
		&a.ExamID,
		&a.StudentID,
		&a.TotalMarks,
		&a.Status,
		&a.Score,
		&a.IsPassed,
		&a.StartedAt,
		&submittedAt,
	)
	if err != nil {
		return nil, err
	}
	if submittedAt.Valid {
		a.SubmittedAt = &submittedAt.Time
	}
	return a, nil
}

// Start opens a new attempt with the exam's total marks copied onto it.
// Nothing prevents a student from holding several in-progress attempts on
// the same exam; retakes are a feature of the portal.
func (s *Service) Start(ctx context.Context, examID, studentID uuid.UUID) (*Attempt, error) {
	var totalMarks int
	err := s.db.QueryRowContext(ctx, `
		SELECT total_marks
		FROM exams
		WHERE id = $1
	`, examID).Scan(&totalMarks)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "exam not found")
		}
		return nil, apperr.Wrap(apperr.Downstream, err, "load exam")
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO exam_attempts (id, exam_id, student_id, total_marks, status)
		VALUES ($1, $2, $3, $4, 'in_progress')
		RETURNING `+attemptColumns+`
	`, uuid.New(), examID, studentID, totalMarks)

	a, err := scanAttempt(row)
	if err != nil {
		return nil, apperr.Wrap(apperr.Downstream, err, "insert attempt")
	}
	return a, nil
}

// SubmitAnswer grades and stores one answer. The write is an upsert keyed
// by (attempt_id, question_id): re-answering a question replaces the
// earlier row and its scoring. The attempt's status is deliberately not
// checked here.
func (s *Service) SubmitAnswer(ctx context.Context, in SubmitAnswerInput) (*Answer, error) {
	var correctAnswer string
	var marks int
	err := s.db.QueryRowContext(ctx, `
		SELECT correct_answer, marks
		FROM questions
		WHERE id = $1
	`, in.QuestionID).Scan(&correctAnswer, &marks)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "question not found")
		}
		return nil, apperr.Wrap(apperr.Downstream, err, "load question")
	}

	isCorrect, marksObtained := ScoreAnswer(correctAnswer, in.SelectedAnswer, marks)

	answer := &Answer{
		AttemptID:      in.AttemptID,
		QuestionID:     in.QuestionID,
		SelectedAnswer: in.SelectedAnswer,
		IsCorrect:      isCorrect,
		MarksObtained:  marksObtained,
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO student_answers (attempt_id, question_id, selected_answer, is_correct, marks_obtained)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (attempt_id, question_id)
		DO UPDATE SET
			selected_answer = EXCLUDED.selected_answer,
			is_correct      = EXCLUDED.is_correct,
			marks_obtained  = EXCLUDED.marks_obtained,
			answered_at     = now()
		RETURNING answered_at
	`, in.AttemptID, in.QuestionID, in.SelectedAnswer, isCorrect, marksObtained).Scan(&answer.AnsweredAt)
	if err != nil {
		return nil, apperr.Wrap(apperr.Downstream, err, "upsert answer")
	}

	return answer, nil
}

// Submit finalizes an attempt: the score is the sum of marks_obtained
// over the answers stored at call time (unanswered questions contribute
// nothing), pass state is score >= the exam's passing marks. The attempt
// row is locked for the read-sum-write sequence so concurrent submits
// serialize. Calling again recomputes from the current answer set.
func (s *Service) Submit(ctx context.Context, attemptID uuid.UUID) (*Attempt, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.Downstream, err, "begin submit tx")
	}
	defer func() { _ = tx.Rollback() }()

	var examID uuid.UUID
	err = tx.QueryRowContext(ctx, `
		SELECT exam_id
		FROM exam_attempts
		WHERE id = $1
		FOR UPDATE
	`, attemptID).Scan(&examID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "attempt not found")
		}
		return nil, apperr.Wrap(apperr.Downstream, err, "lock attempt")
	}

	var totalScore int
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(marks_obtained), 0)
		FROM student_answers
		WHERE attempt_id = $1
	`, attemptID).Scan(&totalScore)
	if err != nil {
		return nil, apperr.Wrap(apperr.Downstream, err, "sum answers")
	}

	var passingMarks int
	err = tx.QueryRowContext(ctx, `
		SELECT passing_marks
		FROM exams
		WHERE id = $1
	`, examID).Scan(&passingMarks)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "exam not found")
		}
		return nil, apperr.Wrap(apperr.Downstream, err, "load passing marks")
	}

	row := tx.QueryRowContext(ctx, `
		UPDATE exam_attempts
		SET status       = 'submitted',
		    submitted_at = now(),
		    score        = $2,
		    is_passed    = $3
		WHERE id = $1
		RETURNING `+attemptColumns+`
	`, attemptID, totalScore, Passed(totalScore, passingMarks))

	a, err := scanAttempt(row)
	if err != nil {
		return nil, apperr.Wrap(apperr.Downstream, err, "finalize attempt")
	}

	if err := tx.Commit(); err != nil {
		return nil, apperr.Wrap(apperr.Downstream, err, "commit submit")
	}
	return a, nil
}

func (s *Service) ListMine(ctx context.Context, studentID uuid.UUID) ([]AttemptSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.exam_id, a.student_id, a.total_marks, a.status, a.score, a.is_passed, a.started_at, a.submitted_at,
		       e.title, e.description
		FROM exam_attempts a
		JOIN exams e ON e.id = a.exam_id
		WHERE a.student_id = $1
		ORDER BY a.started_at DESC
	`, studentID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Downstream, err, "query attempts")
	}
	defer rows.Close()

	out := make([]AttemptSummary, 0)
	for rows.Next() {
		var item AttemptSummary
		var submittedAt sql.NullTime
		err := rows.Scan(
			&item.ID,
			&item.ExamID,
			&item.StudentID,
			&item.TotalMarks,
			&item.Status,
			&item.Score,
			&item.IsPassed,
			&item.StartedAt,
			&submittedAt,
			&item.Exam.Title,
			&item.Exam.Description,
		)
		if err != nil {
			return nil, apperr.Wrap(apperr.Downstream, err, "scan attempt")
		}
		if submittedAt.Valid {
			item.SubmittedAt = &submittedAt.Time
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.Downstream, err, "iterate attempts")
	}
	return out, nil
}

// Detail returns the attempt plus every stored answer joined with its
// question, answer key included.
func (s *Service) Detail(ctx context.Context, attemptID uuid.UUID) (*AttemptDetail, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+attemptColumns+`
		FROM exam_attempts
		WHERE id = $1
	`, attemptID)
	a, err := scanAttempt(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "attempt not found")
		}
		return nil, apperr.Wrap(apperr.Downstream, err, "load attempt")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sa.attempt_id, sa.question_id, sa.selected_answer, sa.is_correct, sa.marks_obtained, sa.answered_at,
		       q.question_text, q.option_a, q.option_b, q.option_c, q.option_d, q.correct_answer
		FROM student_answers sa
		JOIN questions q ON q.id = sa.question_id
		WHERE sa.attempt_id = $1
		ORDER BY sa.answered_at ASC
	`, attemptID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Downstream, err, "query answers")
	}
	defer rows.Close()

	answers := make([]AnswerDetail, 0)
	for rows.Next() {
		var item AnswerDetail
		err := rows.Scan(
			&item.AttemptID,
			&item.QuestionID,
			&item.SelectedAnswer,
			&item.IsCorrect,
			&item.MarksObtained,
			&item.AnsweredAt,
			&item.Question.QuestionText,
			&item.Question.OptionA,
			&item.Question.OptionB,
			&item.Question.OptionC,
			&item.Question.OptionD,
			&item.Question.CorrectAnswer,
		)
		if err != nil {
			return nil, apperr.Wrap(apperr.Downstream, err, "scan answer")
		}
		answers = append(answers, item)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.Downstream, err, "iterate answers")
	}

	return &AttemptDetail{Attempt: *a, Answers: answers}, nil
}

// Owner reports which student an attempt belongs to.
func (s *Service) Owner(ctx context.Context, attemptID uuid.UUID) (uuid.UUID, error) {
	var studentID uuid.UUID
	err := s.db.QueryRowContext(ctx, `
		SELECT student_id
		FROM exam_attempts
		WHERE id = $1
	`, attemptID).Scan(&studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, apperr.New(apperr.NotFound, "attempt not found")
		}
		return uuid.Nil, apperr.Wrap(apperr.Downstream, err, "load attempt owner")
	}
	return studentID, nil
}
