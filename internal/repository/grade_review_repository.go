package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/classroom-grading-api/internal/models"
)

// OpenReviewConstraint is the partial unique index allowing one open review per student and composition.
const OpenReviewConstraint = "grade_reviews_open_uniq"

const gradeReviewColumns = `id, classroom_id, student_id, current_grade, expected_grade, explanation, status, created_at, updated_at`

// GradeReviewRepository persists grade reviews.
type GradeReviewRepository struct {
	db queryer
}

// NewGradeReviewRepository creates a new repository instance.
func NewGradeReviewRepository(db *sqlx.DB) *GradeReviewRepository {
	return &GradeReviewRepository{db: db}
}

// FindByID returns a review of a classroom.
func (r *GradeReviewRepository) FindByID(ctx context.Context, classroomID, id string) (*models.GradeReview, error) {
	var review models.GradeReview
	query := `SELECT ` + gradeReviewColumns + ` FROM grade_reviews WHERE classroom_id = $1 AND id = $2`
	if err := r.db.GetContext(ctx, &review, query, classroomID, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find grade review: %w", err)
	}
	return &review, nil
}

// List returns reviews matching the filter, newest first.
func (r *GradeReviewRepository) List(ctx context.Context, filter models.GradeReviewFilter) ([]models.GradeReview, error) {
	query := `SELECT ` + gradeReviewColumns + ` FROM grade_reviews WHERE 1=1`
	args := []interface{}{}
	if filter.ClassroomID != "" {
		query += fmt.Sprintf(" AND classroom_id = $%d", len(args)+1)
		args = append(args, filter.ClassroomID)
	}
	if filter.StudentID != "" {
		query += fmt.Sprintf(" AND student_id = $%d", len(args)+1)
		args = append(args, filter.StudentID)
	}
	if filter.CompositionName != "" {
		query += fmt.Sprintf(" AND current_grade->>'name' = $%d", len(args)+1)
		args = append(args, filter.CompositionName)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			statuses[i] = string(status)
		}
		query += fmt.Sprintf(" AND status = ANY($%d)", len(args)+1)
		args = append(args, pq.Array(statuses))
	}
	query += " ORDER BY created_at DESC"
	var reviews []models.GradeReview
	if err := r.db.SelectContext(ctx, &reviews, query, args...); err != nil {
		return nil, fmt.Errorf("list grade reviews: %w", err)
	}
	return reviews, nil
}

// Create inserts a PENDING review.
func (r *GradeReviewRepository) Create(ctx context.Context, review *models.GradeReview) error {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	if review.Status == "" {
		review.Status = models.ReviewStatusPending
	}
	now := time.Now().UTC()
	review.CreatedAt = now
	review.UpdatedAt = now
	const query = `INSERT INTO grade_reviews (id, classroom_id, student_id, current_grade, expected_grade, explanation, status, created_at, updated_at)
        VALUES (:id, :classroom_id, :student_id, :current_grade, :expected_grade, :explanation, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, review); err != nil {
		return fmt.Errorf("create grade review: %w", err)
	}
	return nil
}

// Advance moves a review from one status to another. It reports false when the review was not in from.
func (r *GradeReviewRepository) Advance(ctx context.Context, id string, from, to models.ReviewStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE grade_reviews SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`,
		id, from, to, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("advance grade review: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Finalize closes a review with the decided grade.
func (r *GradeReviewRepository) Finalize(ctx context.Context, id string, expected models.GradeEntry) error {
	res, err := r.db.ExecContext(ctx, `UPDATE grade_reviews SET status = $2, expected_grade = $3, updated_at = $4 WHERE id = $1`,
		id, models.ReviewStatusFinal, expected, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("finalize grade review: %w", err)
	}
	return expectAffected(res)
}

// FinalizeByComposition forces every open review on a composition to FINAL.
func (r *GradeReviewRepository) FinalizeByComposition(ctx context.Context, classroomID, name string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE grade_reviews SET status = $3, updated_at = $4
        WHERE classroom_id = $1 AND current_grade->>'name' = $2 AND status <> $3`,
		classroomID, name, models.ReviewStatusFinal, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("finalize reviews by composition: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
