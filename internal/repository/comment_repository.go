package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classroom-grading-api/internal/models"
)

// CommentRepository persists review comments.
type CommentRepository struct {
	db queryer
}

// NewCommentRepository creates a new repository instance.
func NewCommentRepository(db *sqlx.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// ListByReview returns a review thread oldest first, with author names.
func (r *CommentRepository) ListByReview(ctx context.Context, reviewID string) ([]models.CommentOnReview, error) {
	const query = `SELECT c.id, c.grade_review_id, c.user_id, COALESCE(u.full_name, '') AS full_name, c.comment, c.created_at, c.updated_at
        FROM review_comments c LEFT JOIN users u ON u.id = c.user_id
        WHERE c.grade_review_id = $1 ORDER BY c.created_at ASC`
	var comments []models.CommentOnReview
	if err := r.db.SelectContext(ctx, &comments, query, reviewID); err != nil {
		return nil, fmt.Errorf("list review comments: %w", err)
	}
	return comments, nil
}

// FindByID returns a comment of a review.
func (r *CommentRepository) FindByID(ctx context.Context, reviewID, id string) (*models.CommentOnReview, error) {
	var comment models.CommentOnReview
	const query = `SELECT id, grade_review_id, user_id, comment, created_at, updated_at FROM review_comments WHERE grade_review_id = $1 AND id = $2`
	if err := r.db.GetContext(ctx, &comment, query, reviewID, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find review comment: %w", err)
	}
	return &comment, nil
}

// Create inserts a comment.
func (r *CommentRepository) Create(ctx context.Context, comment *models.CommentOnReview) error {
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	comment.CreatedAt = now
	comment.UpdatedAt = now
	const query = `INSERT INTO review_comments (id, grade_review_id, user_id, comment, created_at, updated_at)
        VALUES (:id, :grade_review_id, :user_id, :comment, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, comment); err != nil {
		return fmt.Errorf("create review comment: %w", err)
	}
	return nil
}

// UpdateText replaces the text of a comment.
func (r *CommentRepository) UpdateText(ctx context.Context, comment *models.CommentOnReview) error {
	comment.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `UPDATE review_comments SET comment = $2, updated_at = $3 WHERE id = $1`, comment.ID, comment.Comment, comment.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update review comment: %w", err)
	}
	return expectAffected(res)
}
