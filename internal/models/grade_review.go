package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// ReviewStatus is the lifecycle state of a grade review.
type ReviewStatus string

const (
	ReviewStatusPending    ReviewStatus = "PENDING"
	ReviewStatusProcessing ReviewStatus = "PROCESSING"
	ReviewStatusFinal      ReviewStatus = "FINAL"
)

// GradeEntry is a named grade value, stored as jsonb.
type GradeEntry struct {
	Name  string `json:"name"`
	Grade string `json:"value"`
}

// Value implements driver.Valuer.
func (g GradeEntry) Value() (driver.Value, error) {
	return json.Marshal(g)
}

// Scan implements sql.Scanner.
func (g *GradeEntry) Scan(src interface{}) error {
	return scanJSON(src, g)
}

// GradeReview is a student's dispute of one composition grade.
type GradeReview struct {
	ID            string       `db:"id" json:"id"`
	ClassroomID   string       `db:"classroom_id" json:"classroom_id"`
	StudentID     string       `db:"student_id" json:"student_id"`
	CurrentGrade  GradeEntry   `db:"current_grade" json:"current_grade"`
	ExpectedGrade GradeEntry   `db:"expected_grade" json:"expected_grade"`
	Explanation   string       `db:"explanation" json:"explanation"`
	Status        ReviewStatus `db:"status" json:"status"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updated_at"`
}

// GradeReviewFilter narrows review listings. Empty fields are ignored.
type GradeReviewFilter struct {
	ClassroomID     string
	StudentID       string
	CompositionName string
	Statuses        []ReviewStatus
}

// CommentOnReview is one message in a review thread.
type CommentOnReview struct {
	ID            string    `db:"id" json:"id"`
	GradeReviewID string    `db:"grade_review_id" json:"grade_review_id"`
	UserID        string    `db:"user_id" json:"user_id"`
	FullName      string    `db:"full_name" json:"full_name,omitempty"`
	Comment       string    `db:"comment" json:"comment"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
