package question

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"examportal/internal/app/apperr"
)

const pgForeignKeyViolation = "23503"

type Question struct {
	ID            uuid.UUID `json:"id"`
	ExamID        uuid.UUID `json:"exam_id"`
	QuestionText  string    `json:"question_text"`
	OptionA       string    `json:"option_a"`
	OptionB       string    `json:"option_b"`
	OptionC       string    `json:"option_c"`
	OptionD       string    `json:"option_d"`
	CorrectAnswer string    `json:"correct_answer"`
	Marks         int       `json:"marks"`
	CreatedAt     time.Time `json:"created_at"`
}

type CreateInput struct {
	ExamID        uuid.UUID
	QuestionText  string
	OptionA       string
	OptionB       string
	OptionC       string
	OptionD       string
	CorrectAnswer string
	Marks         int
}

type UpdateInput struct {
	QuestionText  *string
	OptionA       *string
	OptionB       *string
	OptionC       *string
	OptionD       *string
	CorrectAnswer *string
	Marks         *int
}

type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

const questionColumns = `id, exam_id, question_text, option_a, option_b, option_c, option_d, correct_answer, marks, created_at`

func validAnswerKey(v string) bool {
	switch v {
	case "A", "B", "C", "D":
		return true
	}
	return false
}

func scanQuestion(row interface{ Scan(dest ...interface{}) error }) (*Question, error) {
	q := &Question{}
	err := row.Scan(
		&q.ID,
		&q.ExamID,
		&q.QuestionText,
		&q.OptionA,
		&q.OptionB,
		&q.OptionC,
		&q.OptionD,
		&q.CorrectAnswer,
		&q.Marks,
		&q.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (s *Service) ListByExam(ctx context.Context, examID uuid.UUID) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+questionColumns+`
		FROM questions
		WHERE exam_id = $1
		ORDER BY created_at ASC
	`, examID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Downstream, err, "query questions")
	}
	defer rows.Close()

	out := make([]Question, 0)
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.Downstream, err, "scan question")
		}
		out = append(out, *q)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.Downstream, err, "iterate questions")
	}
	return out, nil
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*Question, error) {
	in.QuestionText = strings.TrimSpace(in.QuestionText)
	if in.ExamID == uuid.Nil || in.QuestionText == "" ||
		in.OptionA == "" || in.OptionB == "" || in.OptionC == "" || in.OptionD == "" {
		return nil, apperr.New(apperr.Validation, "exam_id, question_text and all four options are required")
	}
	if !validAnswerKey(in.CorrectAnswer) {
		return nil, apperr.New(apperr.Validation, "correct_answer must be one of A, B, C, D")
	}
	if in.Marks <= 0 {
		in.Marks = 1
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO questions (id, exam_id, question_text, option_a, option_b, option_c, option_d, correct_answer, marks)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+questionColumns+`
	`, uuid.New(), in.ExamID, in.QuestionText, in.OptionA, in.OptionB, in.OptionC, in.OptionD, in.CorrectAnswer, in.Marks)

	q, err := scanQuestion(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return nil, apperr.New(apperr.NotFound, "exam not found")
		}
		return nil, apperr.Wrap(apperr.Downstream, err, "insert question")
	}
	return q, nil
}

func (s *Service) Update(ctx context.Context, questionID uuid.UUID, in UpdateInput) (*Question, error) {
	if in.CorrectAnswer != nil && !validAnswerKey(*in.CorrectAnswer) {
		return nil, apperr.New(apperr.Validation, "correct_answer must be one of A, B, C, D")
	}
	if in.Marks != nil && *in.Marks <= 0 {
		return nil, apperr.New(apperr.Validation, "marks must be positive")
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE questions
		SET question_text  = COALESCE($2, question_text),
		    option_a       = COALESCE($3, option_a),
		    option_b       = COALESCE($4, option_b),
		    option_c       = COALESCE($5, option_c),
		    option_d       = COALESCE($6, option_d),
		    correct_answer = COALESCE($7, correct_answer),
		    marks          = COALESCE($8, marks)
		WHERE id = $1
		RETURNING `+questionColumns+`
	`, questionID, in.QuestionText, in.OptionA, in.OptionB, in.OptionC, in.OptionD, in.CorrectAnswer, in.Marks)

	q, err := scanQuestion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "question not found")
		}
		return nil, apperr.Wrap(apperr.Downstream, err, "update question")
	}
	return q, nil
}

func (s *Service) Delete(ctx context.Context, questionID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM questions WHERE id = $1`, questionID)
	if err != nil {
		return apperr.Wrap(apperr.Downstream, err, "delete question")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Wrap(apperr.Downstream, err, "delete question result")
	}
	if n == 0 {
		return apperr.New(apperr.NotFound, "question not found")
	}
	return nil
}
