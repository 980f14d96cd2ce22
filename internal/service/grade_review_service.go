package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-grading-api/internal/dto"
	"github.com/noah-isme/classroom-grading-api/internal/models"
	"github.com/noah-isme/classroom-grading-api/internal/repository"
	"github.com/noah-isme/classroom-grading-api/pkg/database"
	appErrors "github.com/noah-isme/classroom-grading-api/pkg/errors"
)

type gradeReviewStore interface {
	FindByID(ctx context.Context, classroomID, id string) (*models.GradeReview, error)
	List(ctx context.Context, filter models.GradeReviewFilter) ([]models.GradeReview, error)
	Create(ctx context.Context, review *models.GradeReview) error
	Advance(ctx context.Context, id string, from, to models.ReviewStatus) (bool, error)
}

type memberLister interface {
	ListByClassroom(ctx context.Context, classroomID string, roles ...models.ClassroomRole) ([]models.Membership, error)
}

// GradeReviewService runs the dispute lifecycle PENDING -> PROCESSING -> FINAL.
type GradeReviewService struct {
	access    classroomAccess
	members   memberLister
	reviews   gradeReviewStore
	gradebook gradebookStore
	notifier  Notifier
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGradeReviewService constructs the state machine.
func NewGradeReviewService(classrooms classroomFinder, memberships membershipStore, reviews gradeReviewStore, gradebook gradebookStore, notifier Notifier, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *GradeReviewService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeReviewService{
		access:    classroomAccess{classrooms: classrooms, memberships: memberships},
		members:   memberships,
		reviews:   reviews,
		gradebook: gradebook,
		notifier:  notifier,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// Create opens a dispute for the actor's own grade. An open review for the same composition is
// returned unchanged with created=false.
func (s *GradeReviewService) Create(ctx context.Context, actor Actor, classroomID string, req dto.CreateGradeReviewRequest) (*models.GradeReview, bool, error) {
	scope, _, err := s.access.require(ctx, actor, classroomID, ActionCreateReview)
	if err != nil {
		return nil, false, err
	}
	req.GradeName = strings.TrimSpace(req.GradeName)
	req.ExpectedValue = strings.TrimSpace(req.ExpectedValue)
	if err := s.validator.Struct(req); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade review payload")
	}
	structure := scope.Classroom.GradeStructure
	if structure == nil {
		return nil, false, appErrors.Clone(appErrors.ErrStructureMissing, "")
	}
	if err := RequireStudentID(scope.Membership); err != nil {
		return nil, false, err
	}
	studentID := scope.Membership.StudentIDValue()
	composition, ok := structure.Composition(req.GradeName)
	if !ok {
		return nil, false, appErrors.Clone(appErrors.ErrNotFound, "grade composition not found")
	}
	if err := ValidateGradeValue(req.ExpectedValue, structure.Total); err != nil {
		return nil, false, err
	}
	entry, err := s.gradebook.FindEntry(ctx, classroomID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "student not found in roster")
		}
		return nil, false, internalError(err, "failed to load roster entry")
	}
	grade := findGrade(entry.Grades, composition.Name)
	if grade == nil {
		return nil, false, appErrors.Clone(appErrors.ErrNotFound, "grade has not been entered yet")
	}

	existing, err := s.reviews.List(ctx, models.GradeReviewFilter{ClassroomID: classroomID, StudentID: studentID, CompositionName: composition.Name})
	if err != nil {
		return nil, false, internalError(err, "failed to load grade reviews")
	}
	for i := range existing {
		if existing[i].Status != models.ReviewStatusFinal {
			return &existing[i], false, nil
		}
	}
	if len(existing) > 0 {
		return nil, false, appErrors.Clone(appErrors.ErrAlreadyFinal, "")
	}

	review := &models.GradeReview{
		ClassroomID:   classroomID,
		StudentID:     studentID,
		CurrentGrade:  models.GradeEntry{Name: composition.Name, Grade: grade.Value},
		ExpectedGrade: models.GradeEntry{Name: composition.Name, Grade: req.ExpectedValue},
		Explanation:   strings.TrimSpace(req.Explanation),
		Status:        models.ReviewStatusPending,
	}
	if err := s.reviews.Create(ctx, review); err != nil {
		if database.IsUniqueViolation(err, repository.OpenReviewConstraint) {
			return nil, false, appErrors.Clone(appErrors.ErrDuplicateReview, "")
		}
		return nil, false, internalError(err, "failed to create grade review")
	}
	s.metrics.ReviewTransition(models.ReviewStatusPending)

	teachers, err := s.members.ListByClassroom(ctx, classroomID, models.ClassroomRoleTeacher)
	if err != nil {
		s.logger.Sugar().Warnw("review notification skipped", "review_id", review.ID, "code", appErrors.CodeOf(err), "error", err)
		return review, true, nil
	}
	s.notifier.Notify(ctx, ReviewCreatedRecipients(scope.Classroom, teachers, actor.UserID),
		fmt.Sprintf("%s requested a review of %s in %s", displayName(actor), composition.Name, scope.Classroom.Name),
		reviewLink(classroomID, review.ID))
	return review, true, nil
}

// List returns every review for staff and only the caller's own reviews for students.
func (s *GradeReviewService) List(ctx context.Context, actor Actor, classroomID string, req dto.ListGradeReviewsRequest) ([]models.GradeReview, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid filter")
	}
	scope, staff, err := s.reviewScope(ctx, actor, classroomID)
	if err != nil {
		return nil, err
	}
	filter := models.GradeReviewFilter{ClassroomID: classroomID, CompositionName: strings.TrimSpace(req.GradeName)}
	if req.Status != "" {
		filter.Statuses = []models.ReviewStatus{req.Status}
	}
	if !staff {
		filter.StudentID = scope.Membership.StudentIDValue()
	}
	reviews, err := s.reviews.List(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to list grade reviews")
	}
	return reviews, nil
}

// Get returns one review. A teacher or host opening a PENDING review moves it to PROCESSING.
func (s *GradeReviewService) Get(ctx context.Context, actor Actor, classroomID, reviewID string) (*models.GradeReview, error) {
	scope, staff, err := s.reviewScope(ctx, actor, classroomID)
	if err != nil {
		return nil, err
	}
	review, err := s.reviews.FindByID(ctx, classroomID, reviewID)
	if err != nil {
		return nil, storeError(err, "grade review")
	}
	if !staff {
		if review.StudentID != scope.Membership.StudentIDValue() {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grade review not found")
		}
		return review, nil
	}
	if review.Status == models.ReviewStatusPending && IsStaff(scope.Role(actor)) {
		moved, err := s.reviews.Advance(ctx, review.ID, models.ReviewStatusPending, models.ReviewStatusProcessing)
		if err != nil {
			return nil, internalError(err, "failed to open grade review")
		}
		if moved {
			s.metrics.ReviewTransition(models.ReviewStatusProcessing)
		}
		review.Status = models.ReviewStatusProcessing
	}
	return review, nil
}

// Finalize resolves a dispute: the grade takes the decided value, the student's total is
// recomputed and the review becomes FINAL.
func (s *GradeReviewService) Finalize(ctx context.Context, actor Actor, classroomID, reviewID string, req dto.FinalizeGradeReviewRequest) (*models.GradeReview, error) {
	scope, _, err := s.access.require(ctx, actor, classroomID, ActionFinalizeReview)
	if err != nil {
		return nil, err
	}
	req.Value = strings.TrimSpace(req.Value)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid finalize payload")
	}
	structure := scope.Classroom.GradeStructure
	if structure == nil {
		return nil, appErrors.Clone(appErrors.ErrStructureMissing, "")
	}
	review, err := s.reviews.FindByID(ctx, classroomID, reviewID)
	if err != nil {
		return nil, storeError(err, "grade review")
	}
	if review.Status == models.ReviewStatusFinal {
		return nil, appErrors.Clone(appErrors.ErrAlreadyFinal, "")
	}
	composition, ok := structure.Composition(review.CurrentGrade.Name)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "grade composition not found")
	}
	if err := ValidateGradeValue(req.Value, structure.Total); err != nil {
		return nil, err
	}
	entry, err := s.gradebook.FindEntry(ctx, classroomID, review.StudentID)
	if err != nil {
		return nil, storeError(err, "student")
	}
	grade := findGrade(entry.Grades, composition.Name)
	if grade == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "grade not found")
	}

	grade.Value = req.Value
	total, dirty := RecomputeTotal(entry, structure)
	decided := models.GradeEntry{Name: composition.Name, Grade: req.Value}
	err = s.gradebook.InTx(ctx, func(ctx context.Context, tx repository.Gradebook) error {
		if err := tx.UpsertGrade(ctx, grade); err != nil {
			return err
		}
		if dirty {
			if err := tx.UpdateTotal(ctx, entry.ID, total); err != nil {
				return err
			}
		}
		return tx.FinalizeReview(ctx, review.ID, decided)
	})
	if err != nil {
		return nil, internalError(err, "failed to finalize grade review")
	}
	s.metrics.ReviewTransition(models.ReviewStatusFinal)
	if dirty {
		s.metrics.TotalsUpdated(1)
	}
	review.Status = models.ReviewStatusFinal
	review.ExpectedGrade = decided

	s.notifyStudent(ctx, scope.Classroom, review)
	return review, nil
}

// reviewScope authorizes review reads. staff is true for callers allowed to see every review.
func (s *GradeReviewService) reviewScope(ctx context.Context, actor Actor, classroomID string) (ClassroomScope, bool, error) {
	scope, err := s.access.scope(ctx, actor, classroomID)
	if err != nil {
		return scope, false, err
	}
	if Authorize(actor, scope, ActionViewAllReviews).Allowed {
		return scope, true, nil
	}
	if err := Authorize(actor, scope, ActionViewOwnReview).Err(); err != nil {
		return scope, false, err
	}
	if err := RequireStudentID(scope.Membership); err != nil {
		return scope, false, err
	}
	return scope, false, nil
}

func (s *GradeReviewService) notifyStudent(ctx context.Context, classroom *models.Classroom, review *models.GradeReview) {
	students, err := s.members.ListByClassroom(ctx, classroom.ID, models.ClassroomRoleStudent)
	if err != nil {
		s.logger.Sugar().Warnw("finalize notification skipped", "review_id", review.ID, "code", appErrors.CodeOf(err), "error", err)
		return
	}
	member := memberByStudentID(students, review.StudentID)
	if member == nil {
		return
	}
	s.notifier.Notify(ctx, []string{member.UserID},
		fmt.Sprintf("Your review of %s in %s has been finalized", review.CurrentGrade.Name, classroom.Name),
		reviewLink(classroom.ID, review.ID))
}

func findGrade(grades []models.Grade, name string) *models.Grade {
	for i := range grades {
		if grades[i].Name == name {
			return &grades[i]
		}
	}
	return nil
}

func reviewLink(classroomID, reviewID string) string {
	return fmt.Sprintf("/classrooms/%s/tab-review-grade/%s", classroomID, reviewID)
}

func displayName(actor Actor) string {
	if actor.FullName != "" {
		return actor.FullName
	}
	if actor.Email != "" {
		return actor.Email
	}
	return "A student"
}
