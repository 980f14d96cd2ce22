package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-grading-api/internal/dto"
	"github.com/noah-isme/classroom-grading-api/internal/models"
	"github.com/noah-isme/classroom-grading-api/internal/service"
	appErrors "github.com/noah-isme/classroom-grading-api/pkg/errors"
	"github.com/noah-isme/classroom-grading-api/pkg/response"
)

type gradeReviewService interface {
	Create(ctx context.Context, actor service.Actor, classroomID string, req dto.CreateGradeReviewRequest) (*models.GradeReview, bool, error)
	List(ctx context.Context, actor service.Actor, classroomID string, req dto.ListGradeReviewsRequest) ([]models.GradeReview, error)
	Get(ctx context.Context, actor service.Actor, classroomID, reviewID string) (*models.GradeReview, error)
	Finalize(ctx context.Context, actor service.Actor, classroomID, reviewID string, req dto.FinalizeGradeReviewRequest) (*models.GradeReview, error)
}

type commentService interface {
	List(ctx context.Context, actor service.Actor, classroomID, reviewID string) ([]models.CommentOnReview, error)
	Create(ctx context.Context, actor service.Actor, classroomID, reviewID string, req dto.CommentRequest) (*models.CommentOnReview, error)
	Update(ctx context.Context, actor service.Actor, classroomID, reviewID, commentID string, req dto.CommentRequest) (*models.CommentOnReview, error)
}

// ReviewHandler serves grade reviews and their comment threads.
type ReviewHandler struct {
	reviews  gradeReviewService
	comments commentService
}

// NewReviewHandler builds a new handler.
func NewReviewHandler(reviews gradeReviewService, comments commentService) *ReviewHandler {
	return &ReviewHandler{reviews: reviews, comments: comments}
}

// Create godoc
// @Summary Request a grade review
// @Description Returns 201 for a new review and 200 with the existing review when one is already open for the composition.
// @Tags Grade Reviews
// @Accept json
// @Produce json
// @Param id path string true "Classroom ID"
// @Param payload body dto.CreateGradeReviewRequest true "Review request"
// @Success 201 {object} response.Envelope
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /classrooms/{id}/reviews [post]
func (h *ReviewHandler) Create(c *gin.Context) {
	var req dto.CreateGradeReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
		return
	}
	review, created, err := h.reviews.Create(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if created {
		response.Created(c, review)
		return
	}
	response.JSON(c, http.StatusOK, review, nil)
}

// List godoc
// @Summary List grade reviews
// @Description Students only see their own reviews.
// @Tags Grade Reviews
// @Produce json
// @Param id path string true "Classroom ID"
// @Param status query string false "PENDING, PROCESSING or FINAL"
// @Param grade_name query string false "Composition name"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{id}/reviews [get]
func (h *ReviewHandler) List(c *gin.Context) {
	var req dto.ListGradeReviewsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	reviews, err := h.reviews.List(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reviews, nil)
}

// Get godoc
// @Summary Get a grade review
// @Description A staff read of a PENDING review moves it to PROCESSING.
// @Tags Grade Reviews
// @Produce json
// @Param id path string true "Classroom ID"
// @Param reviewId path string true "Review ID"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{id}/reviews/{reviewId} [get]
func (h *ReviewHandler) Get(c *gin.Context) {
	review, err := h.reviews.Get(c.Request.Context(), actorFromContext(c), c.Param("id"), c.Param("reviewId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, review, nil)
}

// Finalize godoc
// @Summary Finalize a grade review
// @Tags Grade Reviews
// @Accept json
// @Produce json
// @Param id path string true "Classroom ID"
// @Param reviewId path string true "Review ID"
// @Param payload body dto.FinalizeGradeReviewRequest true "Decided value"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /classrooms/{id}/reviews/{reviewId}/finalize [post]
func (h *ReviewHandler) Finalize(c *gin.Context) {
	var req dto.FinalizeGradeReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid finalize payload"))
		return
	}
	review, err := h.reviews.Finalize(c.Request.Context(), actorFromContext(c), c.Param("id"), c.Param("reviewId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, review, nil)
}

// ListComments godoc
// @Summary List review comments
// @Tags Grade Reviews
// @Produce json
// @Param id path string true "Classroom ID"
// @Param reviewId path string true "Review ID"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{id}/reviews/{reviewId}/comments [get]
func (h *ReviewHandler) ListComments(c *gin.Context) {
	comments, err := h.comments.List(c.Request.Context(), actorFromContext(c), c.Param("id"), c.Param("reviewId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, comments, nil)
}

// CreateComment godoc
// @Summary Comment on a review
// @Tags Grade Reviews
// @Accept json
// @Produce json
// @Param id path string true "Classroom ID"
// @Param reviewId path string true "Review ID"
// @Param payload body dto.CommentRequest true "Comment"
// @Success 201 {object} response.Envelope
// @Router /classrooms/{id}/reviews/{reviewId}/comments [post]
func (h *ReviewHandler) CreateComment(c *gin.Context) {
	var req dto.CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid comment payload"))
		return
	}
	comment, err := h.comments.Create(c.Request.Context(), actorFromContext(c), c.Param("id"), c.Param("reviewId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, comment)
}

// UpdateComment godoc
// @Summary Edit your own comment
// @Tags Grade Reviews
// @Accept json
// @Produce json
// @Param id path string true "Classroom ID"
// @Param reviewId path string true "Review ID"
// @Param commentId path string true "Comment ID"
// @Param payload body dto.CommentRequest true "Comment"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{id}/reviews/{reviewId}/comments/{commentId} [patch]
func (h *ReviewHandler) UpdateComment(c *gin.Context) {
	var req dto.CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid comment payload"))
		return
	}
	comment, err := h.comments.Update(c.Request.Context(), actorFromContext(c), c.Param("id"), c.Param("reviewId"), c.Param("commentId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, comment, nil)
}
