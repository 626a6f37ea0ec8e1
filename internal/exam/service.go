package exam

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"examportal/internal/app/apperr"
)

type Exam struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	DurationMinutes int        `json:"duration_minutes"`
	TotalMarks      int        `json:"total_marks"`
	PassingMarks    int        `json:"passing_marks"`
	IsActive        bool       `json:"is_active"`
	CreatedBy       *uuid.UUID `json:"created_by"`
	CreatedAt       time.Time  `json:"created_at"`
}

// CreateExamInput numeric fields are pointers so absence (take the
// default) is distinct from an explicit bad value (reject).
type CreateExamInput struct {
	Title           string
	Description     string
	DurationMinutes *int
	TotalMarks      *int
	PassingMarks    *int
	IsActive        *bool
	CreatedBy       uuid.UUID
}

// UpdateExamInput carries only the fields present in the request body;
// nil pointers keep the stored values.
type UpdateExamInput struct {
	Title           *string
	Description     *string
	DurationMinutes *int
	TotalMarks      *int
	PassingMarks    *int
	IsActive        *bool
}

type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

const examColumns = `id, title, description, duration_minutes, total_marks, passing_marks, is_active, created_by, created_at`

func scanExam(row interface{ Scan(dest ...interface{}) error }) (*Exam, error) {
	e := &Exam{}
	var createdBy uuid.NullUUID
	err := row.Scan(
		&e.ID,
		&e.Title,
		&e.Description,
		&e.DurationMinutes,
		&e.TotalMarks,
		&e.PassingMarks,
		&e.IsActive,
		&createdBy,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if createdBy.Valid {
		e.CreatedBy = &createdBy.UUID
	}
	return e, nil
}

func (s *Service) ListActive(ctx context.Context) ([]Exam, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+examColumns+`
		FROM exams
		WHERE is_active = TRUE
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, apperr.Wrap(apperr.Downstream, err, "query exams")
	}
	defer rows.Close()

	out := make([]Exam, 0)
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.Downstream, err, "scan exam")
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.Downstream, err, "iterate exams")
	}
	return out, nil
}

func (s *Service) Create(ctx context.Context, in CreateExamInput) (*Exam, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.New(apperr.Validation, "title is required")
	}

	duration := 60
	if in.DurationMinutes != nil {
		if *in.DurationMinutes <= 0 {
			return nil, apperr.New(apperr.Validation, "duration_minutes must be positive")
		}
		duration = *in.DurationMinutes
	}
	totalMarks := 100
	if in.TotalMarks != nil {
		if *in.TotalMarks <= 0 {
			return nil, apperr.New(apperr.Validation, "total_marks must be positive")
		}
		totalMarks = *in.TotalMarks
	}
	passingMarks := 40
	if in.PassingMarks != nil {
		if *in.PassingMarks <= 0 {
			return nil, apperr.New(apperr.Validation, "passing_marks must be positive")
		}
		passingMarks = *in.PassingMarks
	}
	isActive := true
	if in.IsActive != nil {
		isActive = *in.IsActive
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO exams (id, title, description, duration_minutes, total_marks, passing_marks, is_active, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+examColumns+`
	`, uuid.New(), title, strings.TrimSpace(in.Description), duration, totalMarks, passingMarks, isActive, in.CreatedBy)

	e, err := scanExam(row)
	if err != nil {
		return nil, apperr.Wrap(apperr.Downstream, err, "insert exam")
	}
	return e, nil
}

func (s *Service) Update(ctx context.Context, examID uuid.UUID, in UpdateExamInput) (*Exam, error) {
	if in.DurationMinutes != nil && *in.DurationMinutes <= 0 {
		return nil, apperr.New(apperr.Validation, "duration_minutes must be positive")
	}
	if in.TotalMarks != nil && *in.TotalMarks <= 0 {
		return nil, apperr.New(apperr.Validation, "total_marks must be positive")
	}
	if in.PassingMarks != nil && *in.PassingMarks <= 0 {
		return nil, apperr.New(apperr.Validation, "passing_marks must be positive")
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE exams
		SET title            = COALESCE($2, title),
		    description      = COALESCE($3, description),
		    duration_minutes = COALESCE($4, duration_minutes),
		    total_marks      = COALESCE($5, total_marks),
		    passing_marks    = COALESCE($6, passing_marks),
		    is_active        = COALESCE($7, is_active)
		WHERE id = $1
		RETURNING `+examColumns+`
	`, examID, in.Title, in.Description, in.DurationMinutes, in.TotalMarks, in.PassingMarks, in.IsActive)

	e, err := scanExam(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "exam not found")
		}
		return nil, apperr.Wrap(apperr.Downstream, err, "update exam")
	}
	return e, nil
}

func (s *Service) Delete(ctx context.Context, examID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM exams WHERE id = $1`, examID)
	if err != nil {
		return apperr.Wrap(apperr.Downstream, err, "delete exam")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Wrap(apperr.Downstream, err, "delete exam result")
	}
	if n == 0 {
		return apperr.New(apperr.NotFound, "exam not found")
	}
	return nil
}
