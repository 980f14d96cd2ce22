package dto

import "github.com/noah-isme/classroom-grading-api/internal/models"

// CreateGradeReviewRequest is a student's dispute of one composition grade.
type CreateGradeReviewRequest struct {
	GradeName     string `json:"grade_name" validate:"required,max=120"`
	ExpectedValue string `json:"expected_value" validate:"required"`
	Explanation   string `json:"explanation" validate:"max=2000"`
}

// FinalizeGradeReviewRequest carries the decided grade value.
type FinalizeGradeReviewRequest struct {
	Value string `json:"value" validate:"required"`
}

// ListGradeReviewsRequest narrows staff review listings.
type ListGradeReviewsRequest struct {
	Status    models.ReviewStatus `form:"status" validate:"omitempty,oneof=PENDING PROCESSING FINAL"`
	GradeName string              `form:"grade_name"`
}

// CommentRequest creates or edits a review comment.
type CommentRequest struct {
	Comment string `json:"comment" validate:"required,max=2000"`
}
