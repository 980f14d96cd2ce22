package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-grading-api/internal/dto"
	"github.com/noah-isme/classroom-grading-api/internal/models"
	"github.com/noah-isme/classroom-grading-api/internal/repository"
	"github.com/noah-isme/classroom-grading-api/pkg/database"
	appErrors "github.com/noah-isme/classroom-grading-api/pkg/errors"
)

const (
	classroomCodeConstraint = "classrooms_code_key"
	studentIDConstraint     = "memberships_classroom_student_uniq"
	joinCodeAttempts        = 3
)

type classroomStore interface {
	classroomFinder
	ListForUser(ctx context.Context, userID string) ([]models.Classroom, error)
	List(ctx context.Context, filter models.ClassroomFilter) ([]models.Classroom, int, error)
	Create(ctx context.Context, classroom *models.Classroom) error
	UpdateInfo(ctx context.Context, classroom *models.Classroom) error
	SetActive(ctx context.Context, id string, active bool) error
}

type membershipStore interface {
	membershipFinder
	FindByStudentID(ctx context.Context, classroomID, studentID string) (*models.Membership, error)
	ListByClassroom(ctx context.Context, classroomID string, roles ...models.ClassroomRole) ([]models.Membership, error)
	ListMembers(ctx context.Context, classroomID string) ([]models.Member, error)
	Create(ctx context.Context, membership *models.Membership) error
	Delete(ctx context.Context, classroomID, userID string) error
	UpdateStudentID(ctx context.Context, id string, studentID *string) error
}

type gradebookStore interface {
	repository.Gradebook
	InTx(ctx context.Context, fn func(ctx context.Context, tx repository.Gradebook) error) error
}

// ClassroomService orchestrates classroom lifecycle, membership and rubric replacement.
type ClassroomService struct {
	classrooms  classroomStore
	memberships membershipStore
	gradebook   gradebookStore
	notifier    Notifier
	access      classroomAccess
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewClassroomService constructs the orchestrator.
func NewClassroomService(classrooms classroomStore, memberships membershipStore, gradebook gradebookStore, notifier Notifier, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ClassroomService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassroomService{
		classrooms:  classrooms,
		memberships: memberships,
		gradebook:   gradebook,
		notifier:    notifier,
		access:      classroomAccess{classrooms: classrooms, memberships: memberships},
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
	}
}

// Create opens a classroom hosted by the actor.
func (s *ClassroomService) Create(ctx context.Context, actor Actor, req dto.CreateClassroomRequest) (*models.Classroom, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid classroom payload")
	}
	classroom := &models.Classroom{
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
		Section:     strings.TrimSpace(req.Section),
		Subject:     strings.TrimSpace(req.Subject),
		Room:        strings.TrimSpace(req.Room),
		HostID:      actor.UserID,
		Active:      true,
	}
	var err error
	for attempt := 0; attempt < joinCodeAttempts; attempt++ {
		classroom.ID = ""
		classroom.Code = newJoinCode()
		if err = s.classrooms.Create(ctx, classroom); err == nil {
			return classroom, nil
		}
		if !database.IsUniqueViolation(err, classroomCodeConstraint) {
			break
		}
	}
	return nil, internalError(err, "failed to create classroom")
}

// Get returns a classroom visible to the actor.
func (s *ClassroomService) Get(ctx context.Context, actor Actor, id string) (*models.Classroom, error) {
	scope, _, err := s.access.require(ctx, actor, id, ActionViewClassroom)
	if err != nil {
		return nil, err
	}
	return scope.Classroom, nil
}

// ListMine returns classrooms the actor hosts or has joined.
func (s *ClassroomService) ListMine(ctx context.Context, actor Actor) ([]models.Classroom, error) {
	classrooms, err := s.classrooms.ListForUser(ctx, actor.UserID)
	if err != nil {
		return nil, internalError(err, "failed to list classrooms")
	}
	return classrooms, nil
}

// ListAll pages every classroom. Admin only.
func (s *ClassroomService) ListAll(ctx context.Context, actor Actor, req dto.ListClassroomsRequest) ([]models.Classroom, *models.Pagination, error) {
	if !actor.IsAdmin() {
		return nil, nil, appErrors.Clone(appErrors.ErrNoPermission, "")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid filter")
	}
	page, size := normalizePage(req.Page, req.PageSize)
	classrooms, total, err := s.classrooms.List(ctx, models.ClassroomFilter{Active: req.Active, Search: req.Search, Page: page, PageSize: size})
	if err != nil {
		return nil, nil, internalError(err, "failed to list classrooms")
	}
	return classrooms, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// UpdateInfo changes the descriptive fields of a classroom.
func (s *ClassroomService) UpdateInfo(ctx context.Context, actor Actor, id string, req dto.UpdateClassroomRequest) (*models.Classroom, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid classroom payload")
	}
	scope, _, err := s.access.require(ctx, actor, id, ActionEditClassroom)
	if err != nil {
		return nil, err
	}
	classroom := *scope.Classroom
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "name cannot be blank")
		}
		classroom.Name = name
	}
	if req.Description != nil {
		classroom.Description = strings.TrimSpace(*req.Description)
	}
	if req.Section != nil {
		classroom.Section = strings.TrimSpace(*req.Section)
	}
	if req.Subject != nil {
		classroom.Subject = strings.TrimSpace(*req.Subject)
	}
	if req.Room != nil {
		classroom.Room = strings.TrimSpace(*req.Room)
	}
	if err := s.classrooms.UpdateInfo(ctx, &classroom); err != nil {
		return nil, storeError(err, "classroom")
	}
	return &classroom, nil
}

// SetActive locks or unlocks a classroom and tells every member.
func (s *ClassroomService) SetActive(ctx context.Context, actor Actor, id string, active bool) (*models.Classroom, error) {
	scope, _, err := s.access.require(ctx, actor, id, ActionLockClassroom)
	if err != nil {
		return nil, err
	}
	classroom := *scope.Classroom
	if classroom.Active == active {
		return &classroom, nil
	}
	if err := s.classrooms.SetActive(ctx, id, active); err != nil {
		return nil, storeError(err, "classroom")
	}
	classroom.Active = active

	members, err := s.memberships.ListByClassroom(ctx, id)
	if err != nil {
		s.logger.Sugar().Warnw("lock notification skipped", "classroom_id", id, "code", appErrors.CodeOf(err), "error", err)
		return &classroom, nil
	}
	verb := "locked"
	if active {
		verb = "unlocked"
	}
	s.notifier.Notify(ctx, AllMemberRecipients(&classroom, members),
		fmt.Sprintf("Classroom %s has been %s", classroom.Name, verb),
		classroomLink(id))
	return &classroom, nil
}

// ListMembers returns the teachers and students of a classroom.
func (s *ClassroomService) ListMembers(ctx context.Context, actor Actor, id string) ([]models.Member, error) {
	if _, _, err := s.access.require(ctx, actor, id, ActionViewMembers); err != nil {
		return nil, err
	}
	members, err := s.memberships.ListMembers(ctx, id)
	if err != nil {
		return nil, internalError(err, "failed to list members")
	}
	return members, nil
}

// KickMember removes a member. Teachers may only remove students; nobody removes the host.
func (s *ClassroomService) KickMember(ctx context.Context, actor Actor, id, userID string) error {
	scope, _, err := s.access.require(ctx, actor, id, ActionKickStudent)
	if err != nil {
		return err
	}
	if userID == scope.Classroom.HostID {
		return appErrors.Clone(appErrors.ErrNoPermission, "")
	}
	target, err := s.memberships.Find(ctx, id, userID)
	if err != nil {
		return storeError(err, "member")
	}
	if target.Role == models.ClassroomRoleTeacher {
		if err := Authorize(actor, scope, ActionKickTeacher).Err(); err != nil {
			return err
		}
	}
	if err := s.memberships.Delete(ctx, id, userID); err != nil {
		return storeError(err, "member")
	}
	return nil
}

// Leave removes the actor's own membership.
func (s *ClassroomService) Leave(ctx context.Context, actor Actor, id string) error {
	scope, decision, err := s.access.require(ctx, actor, id, ActionLeave)
	if err != nil {
		return err
	}
	if decision.Role == models.ClassroomRoleHost {
		return appErrors.Clone(appErrors.ErrValidation, "the host cannot leave their own classroom")
	}
	if scope.Membership == nil {
		return appErrors.Clone(appErrors.ErrNotFound, "member not found")
	}
	if err := s.memberships.Delete(ctx, id, actor.UserID); err != nil {
		return storeError(err, "member")
	}
	return nil
}

// UpdateStudentID sets the actor's roster id. The id must be unique within the classroom.
func (s *ClassroomService) UpdateStudentID(ctx context.Context, actor Actor, id string, req dto.UpdateStudentIDRequest) (*models.Membership, error) {
	req.StudentID = strings.TrimSpace(req.StudentID)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student id")
	}
	scope, _, err := s.access.require(ctx, actor, id, ActionUpdateOwnStudentID)
	if err != nil {
		return nil, err
	}
	membership := scope.Membership
	if membership == nil || membership.Role != models.ClassroomRoleStudent {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only students carry a student id")
	}
	if membership.StudentIDValue() == req.StudentID {
		return membership, nil
	}
	existing, err := s.memberships.FindByStudentID(ctx, id, req.StudentID)
	switch {
	case err == nil && existing.ID != membership.ID:
		return nil, appErrors.Clone(appErrors.ErrConflict, "student id already taken in this classroom")
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return nil, internalError(err, "failed to check student id")
	}
	studentID := req.StudentID
	if err := s.memberships.UpdateStudentID(ctx, membership.ID, &studentID); err != nil {
		if database.IsUniqueViolation(err, studentIDConstraint) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student id already taken in this classroom")
		}
		return nil, storeError(err, "member")
	}
	updated := *membership
	updated.StudentID = &studentID
	return &updated, nil
}

// UpdateGradeStructure replaces the rubric. Pruning, forced finalization, the structure write and
// total recomputation share one transaction; students hear about newly final compositions after commit.
func (s *ClassroomService) UpdateGradeStructure(ctx context.Context, actor Actor, id string, structure *models.GradeStructure) (*models.Classroom, error) {
	scope, _, err := s.access.require(ctx, actor, id, ActionEditRubric)
	if err != nil {
		return nil, err
	}
	structure = normalizeStructure(structure)
	if err := ValidateGradeStructure(structure); err != nil {
		return nil, err
	}
	prev := scope.Classroom.GradeStructure
	removed := RemovedCompositions(prev, structure)
	changes := DiffFinalFlags(prev, structure)

	updated := 0
	err = s.gradebook.InTx(ctx, func(ctx context.Context, tx repository.Gradebook) error {
		if _, err := tx.DeleteGradesByNames(ctx, id, removed); err != nil {
			return err
		}
		for _, name := range changes.Unfinalized {
			if _, err := tx.FinalizeReviewsByComposition(ctx, id, name); err != nil {
				return err
			}
		}
		if err := tx.UpdateGradeStructure(ctx, id, structure); err != nil {
			return err
		}
		n, err := recomputeTotals(ctx, tx, id, structure)
		updated = n
		return err
	})
	if err != nil {
		return nil, internalError(err, "failed to update grade structure")
	}
	s.metrics.TotalsUpdated(updated)
	s.logger.Sugar().Infow("grade structure replaced", "classroom_id", id, "removed", removed,
		"finalized", changes.Finalized, "unfinalized", changes.Unfinalized, "totals_updated", updated)

	classroom := *scope.Classroom
	classroom.GradeStructure = structure
	s.notifyFinalized(ctx, &classroom, changes.Finalized)
	return &classroom, nil
}

// DeleteGradeStructure clears the rubric, prunes every grade and resets cached totals.
func (s *ClassroomService) DeleteGradeStructure(ctx context.Context, actor Actor, id string) error {
	scope, _, err := s.access.require(ctx, actor, id, ActionEditRubric)
	if err != nil {
		return err
	}
	prev := scope.Classroom.GradeStructure
	if prev == nil {
		return appErrors.Clone(appErrors.ErrStructureMissing, "")
	}
	err = s.gradebook.InTx(ctx, func(ctx context.Context, tx repository.Gradebook) error {
		if _, err := tx.DeleteGradesByNames(ctx, id, prev.Names()); err != nil {
			return err
		}
		if err := tx.UpdateGradeStructure(ctx, id, nil); err != nil {
			return err
		}
		return tx.ResetTotals(ctx, id)
	})
	if err != nil {
		return internalError(err, "failed to delete grade structure")
	}
	return nil
}

func (s *ClassroomService) notifyFinalized(ctx context.Context, classroom *models.Classroom, finalized []string) {
	if len(finalized) == 0 {
		return
	}
	students, err := s.memberships.ListByClassroom(ctx, classroom.ID, models.ClassroomRoleStudent)
	if err != nil {
		s.logger.Sugar().Warnw("finalized notification skipped", "classroom_id", classroom.ID, "code", appErrors.CodeOf(err), "error", err)
		return
	}
	recipients := StudentRecipients(students)
	for _, name := range finalized {
		s.notifier.Notify(ctx, recipients,
			fmt.Sprintf("%s grades for %s have been finalized", name, classroom.Name),
			fmt.Sprintf("/classrooms/%s/tab-my-info", classroom.ID))
	}
}

// recomputeTotals rewrites every cached total that no longer matches the rubric and returns how many changed.
func recomputeTotals(ctx context.Context, tx repository.Gradebook, classroomID string, structure *models.GradeStructure) (int, error) {
	entries, err := tx.ListRoster(ctx, classroomID)
	if err != nil {
		return 0, err
	}
	changed := 0
	for i := range entries {
		total, dirty := RecomputeTotal(&entries[i], structure)
		if !dirty {
			continue
		}
		if err := tx.UpdateTotal(ctx, entries[i].ID, total); err != nil {
			return changed, err
		}
		changed++
	}
	return changed, nil
}

func classroomLink(id string) string {
	return "/classrooms/" + id
}

func newJoinCode() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
