package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"examportal/internal/app/apperr"
)

type ExamSummary struct {
	ExamID       uuid.UUID `json:"exam_id"`
	Title        string    `json:"title"`
	TotalMarks   int       `json:"total_marks"`
	PassingMarks int       `json:"passing_marks"`
	Participants int       `json:"participants"`
	Submitted    int       `json:"submitted"`
	AverageScore float64   `json:"average_score"`
	HighestScore int       `json:"highest_score"`
	LowestScore  int       `json:"lowest_score"`
	PassRate     float64   `json:"pass_rate"`
}

type AttemptRow struct {
	AttemptID    uuid.UUID  `json:"attempt_id"`
	StudentName  string     `json:"student_name"`
	StudentEmail string     `json:"student_email"`
	Status       string     `json:"status"`
	Score        int        `json:"score"`
	IsPassed     bool       `json:"is_passed"`
	StartedAt    time.Time  `json:"started_at"`
	SubmittedAt  *time.Time `json:"submitted_at,omitempty"`
}

type ExamResults struct {
	Summary  ExamSummary  `json:"summary"`
	Attempts []AttemptRow `json:"attempts"`
}

type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

func (s *Service) ExamResults(ctx context.Context, examID uuid.UUID) (*ExamResults, error) {
	summary := ExamSummary{ExamID: examID}
	err := s.db.QueryRowContext(ctx, `
		SELECT title, total_marks, passing_marks
		FROM exams
		WHERE id = $1
	`, examID).Scan(&summary.Title, &summary.TotalMarks, &summary.PassingMarks)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "exam not found")
		}
		return nil, apperr.Wrap(apperr.Downstream, err, "load exam")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, p.full_name, p.email, a.status, a.score, a.is_passed, a.started_at, a.submitted_at
		FROM exam_attempts a
		JOIN profiles p ON p.id = a.student_id
		WHERE a.exam_id = $1
		ORDER BY a.started_at DESC
	`, examID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Downstream, err, "query attempts")
	}
	defer rows.Close()

	attempts := make([]AttemptRow, 0)
	for rows.Next() {
		var item AttemptRow
		var submittedAt sql.NullTime
		err := rows.Scan(
			&item.AttemptID,
			&item.StudentName,
			&item.StudentEmail,
			&item.Status,
			&item.Score,
			&item.IsPassed,
			&item.StartedAt,
			&submittedAt,
		)
		if err != nil {
			return nil, apperr.Wrap(apperr.Downstream, err, "scan attempt")
		}
		if submittedAt.Valid {
			item.SubmittedAt = &submittedAt.Time
		}
		attempts = append(attempts, item)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.Downstream, err, "iterate attempts")
	}

	summary = summarize(summary, attempts)
	return &ExamResults{Summary: summary, Attempts: attempts}, nil
}

// summarize aggregates over submitted attempts only; in-progress rows
// count as participants but carry no score yet.
func summarize(summary ExamSummary, attempts []AttemptRow) ExamSummary {
	summary.Participants = len(attempts)

	scoreSum := 0
	passed := 0
	for _, a := range attempts {
		if a.Status != "submitted" {
			continue
		}
		if summary.Submitted == 0 || a.Score > summary.HighestScore {
			summary.HighestScore = a.Score
		}
		if summary.Submitted == 0 || a.Score < summary.LowestScore {
			summary.LowestScore = a.Score
		}
		summary.Submitted++
		scoreSum += a.Score
		if a.IsPassed {
			passed++
		}
	}
	if summary.Submitted > 0 {
		summary.AverageScore = float64(scoreSum) / float64(summary.Submitted)
		summary.PassRate = float64(passed) / float64(summary.Submitted)
	}
	return summary
}

// ExportResultsExcel renders the same rows as ExamResults into an xlsx
// workbook, one attempt per row.
func (s *Service) ExportResultsExcel(ctx context.Context, examID uuid.UUID) ([]byte, error) {
	results, err := s.ExamResults(ctx, examID)
	if err != nil {
		return nil, err
	}
	return renderResultsWorkbook(results)
}

func renderResultsWorkbook(results *ExamResults) ([]byte, error) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	headers := []string{"student_name", "student_email", "status", "score", "total_marks", "is_passed", "started_at", "submitted_at"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for i, a := range results.Attempts {
		row := i + 2
		submittedAt := ""
		if a.SubmittedAt != nil {
			submittedAt = a.SubmittedAt.UTC().Format(time.RFC3339)
		}
		values := []interface{}{
			a.StudentName,
			a.StudentEmail,
			a.Status,
			a.Score,
			results.Summary.TotalMarks,
			a.IsPassed,
			a.StartedAt.UTC().Format(time.RFC3339),
			submittedAt,
		}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, apperr.Wrap(apperr.Downstream, err, fmt.Sprintf("write results workbook for exam %s", results.Summary.ExamID))
	}
	return buf.Bytes(), nil
}
