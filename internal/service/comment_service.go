package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-grading-api/internal/dto"
	"github.com/noah-isme/classroom-grading-api/internal/models"
	appErrors "github.com/noah-isme/classroom-grading-api/pkg/errors"
)

type commentStore interface {
	ListByReview(ctx context.Context, reviewID string) ([]models.CommentOnReview, error)
	FindByID(ctx context.Context, reviewID, id string) (*models.CommentOnReview, error)
	Create(ctx context.Context, comment *models.CommentOnReview) error
	UpdateText(ctx context.Context, comment *models.CommentOnReview) error
}

type reviewFinder interface {
	FindByID(ctx context.Context, classroomID, id string) (*models.GradeReview, error)
}

type classroomMemberStore interface {
	membershipFinder
	memberLister
}

// CommentService manages the discussion thread of a grade review.
type CommentService struct {
	access    classroomAccess
	members   memberLister
	reviews   reviewFinder
	comments  commentStore
	notifier  Notifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCommentService constructs the service.
func NewCommentService(classrooms classroomFinder, memberships classroomMemberStore, reviews reviewFinder, comments commentStore, notifier Notifier, validate *validator.Validate, logger *zap.Logger) *CommentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommentService{
		access:    classroomAccess{classrooms: classrooms, memberships: memberships},
		members:   memberships,
		reviews:   reviews,
		comments:  comments,
		notifier:  notifier,
		validator: validate,
		logger:    logger,
	}
}

// List returns the thread oldest first.
func (s *CommentService) List(ctx context.Context, actor Actor, classroomID, reviewID string) ([]models.CommentOnReview, error) {
	if _, _, err := s.participant(ctx, actor, classroomID, reviewID, false); err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByReview(ctx, reviewID)
	if err != nil {
		return nil, internalError(err, "failed to list comments")
	}
	return comments, nil
}

// Create appends a comment and notifies the other participants.
func (s *CommentService) Create(ctx context.Context, actor Actor, classroomID, reviewID string, req dto.CommentRequest) (*models.CommentOnReview, error) {
	scope, review, err := s.participant(ctx, actor, classroomID, reviewID, true)
	if err != nil {
		return nil, err
	}
	req.Comment = strings.TrimSpace(req.Comment)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid comment payload")
	}
	comment := &models.CommentOnReview{GradeReviewID: review.ID, UserID: actor.UserID, FullName: actor.FullName, Comment: req.Comment}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, internalError(err, "failed to create comment")
	}

	members, err := s.members.ListByClassroom(ctx, classroomID)
	if err != nil {
		s.logger.Sugar().Warnw("comment notification skipped", "review_id", review.ID, "code", appErrors.CodeOf(err), "error", err)
		return comment, nil
	}
	studentUserID := ""
	if owner := memberByStudentID(members, review.StudentID); owner != nil {
		studentUserID = owner.UserID
	}
	s.notifier.Notify(ctx, CommentRecipients(scope.Classroom, members, studentUserID, actor.UserID),
		fmt.Sprintf("%s commented on the review of %s in %s", displayName(actor), review.CurrentGrade.Name, scope.Classroom.Name),
		reviewLink(classroomID, review.ID))
	return comment, nil
}

// Update edits the text of the actor's own comment.
func (s *CommentService) Update(ctx context.Context, actor Actor, classroomID, reviewID, commentID string, req dto.CommentRequest) (*models.CommentOnReview, error) {
	if _, _, err := s.participant(ctx, actor, classroomID, reviewID, true); err != nil {
		return nil, err
	}
	req.Comment = strings.TrimSpace(req.Comment)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid comment payload")
	}
	comment, err := s.comments.FindByID(ctx, reviewID, commentID)
	if err != nil {
		return nil, storeError(err, "comment")
	}
	if comment.UserID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrNoPermission, "")
	}
	comment.Comment = req.Comment
	if err := s.comments.UpdateText(ctx, comment); err != nil {
		return nil, storeError(err, "comment")
	}
	return comment, nil
}

// participant authorizes the actor on a review thread. Writes are subject to the classroom lock.
func (s *CommentService) participant(ctx context.Context, actor Actor, classroomID, reviewID string, write bool) (ClassroomScope, *models.GradeReview, error) {
	scope, err := s.access.scope(ctx, actor, classroomID)
	if err != nil {
		return scope, nil, err
	}
	if err := Authorize(actor, scope, ActionComment).Err(); err != nil {
		return scope, nil, err
	}
	if write {
		if err := checkLock(actor, scope.Classroom, ActionComment); err != nil {
			return scope, nil, err
		}
	}
	role := scope.Role(actor)
	if role == models.ClassroomRoleStudent {
		if err := RequireStudentID(scope.Membership); err != nil {
			return scope, nil, err
		}
	}
	review, err := s.reviews.FindByID(ctx, classroomID, reviewID)
	if err != nil {
		return scope, nil, storeError(err, "grade review")
	}
	if role == models.ClassroomRoleStudent && review.StudentID != scope.Membership.StudentIDValue() {
		return scope, nil, appErrors.Clone(appErrors.ErrNoPermission, "")
	}
	return scope, review, nil
}
