package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/noah-isme/classroom-grading-api/internal/models"
	appErrors "github.com/noah-isme/classroom-grading-api/pkg/errors"
)

type classroomFinder interface {
	FindByID(ctx context.Context, id string) (*models.Classroom, error)
}

type membershipFinder interface {
	Find(ctx context.Context, classroomID, userID string) (*models.Membership, error)
}

// lockExempt lists actions still allowed on a locked classroom. Reads never check the lock.
var lockExempt = map[Action]struct{}{
	ActionLockClassroom: {},
}

var readOnlyActions = map[Action]struct{}{
	ActionViewClassroom:      {},
	ActionViewMembers:        {},
	ActionViewRoster:         {},
	ActionViewOwnRosterEntry: {},
	ActionExportGradebook:    {},
	ActionViewAllReviews:     {},
	ActionViewOwnReview:      {},
}

// classroomAccess resolves the actor's scope in a classroom and applies the matrix plus the lock.
type classroomAccess struct {
	classrooms  classroomFinder
	memberships membershipFinder
}

func (a classroomAccess) scope(ctx context.Context, actor Actor, classroomID string) (ClassroomScope, error) {
	classroom, err := a.classrooms.FindByID(ctx, classroomID)
	if err != nil {
		return ClassroomScope{}, storeError(err, "classroom")
	}
	scope := ClassroomScope{Classroom: classroom}
	if classroom.HostID == actor.UserID {
		return scope, nil
	}
	membership, err := a.memberships.Find(ctx, classroomID, actor.UserID)
	switch {
	case err == nil:
		scope.Membership = membership
	case errors.Is(err, sql.ErrNoRows):
	default:
		return ClassroomScope{}, storeError(err, "membership")
	}
	return scope, nil
}

// require loads the scope and fails unless action is allowed. Mutating actions also fail on a locked classroom.
func (a classroomAccess) require(ctx context.Context, actor Actor, classroomID string, action Action) (ClassroomScope, Decision, error) {
	scope, err := a.scope(ctx, actor, classroomID)
	if err != nil {
		return scope, Decision{}, err
	}
	decision := Authorize(actor, scope, action)
	if err := decision.Err(); err != nil {
		return scope, decision, err
	}
	if err := checkLock(actor, scope.Classroom, action); err != nil {
		return scope, decision, err
	}
	return scope, decision, nil
}

func checkLock(actor Actor, classroom *models.Classroom, action Action) error {
	if classroom.Active || actor.IsAdmin() {
		return nil
	}
	if _, ok := readOnlyActions[action]; ok {
		return nil
	}
	if _, ok := lockExempt[action]; ok {
		return nil
	}
	return appErrors.Clone(appErrors.ErrClassroomLocked, "")
}

// storeError maps a repository miss to NOT_FOUND and anything else to INTERNAL_ERROR.
func storeError(err error, entity string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, entity+" not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load "+entity)
}

func internalError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
