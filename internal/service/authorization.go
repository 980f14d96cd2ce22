package service

import (
	"github.com/noah-isme/classroom-grading-api/internal/models"
	appErrors "github.com/noah-isme/classroom-grading-api/pkg/errors"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID   string
	Email    string
	FullName string
	Role     models.PlatformRole
}

// IsAdmin reports whether the actor is a platform administrator.
func (a Actor) IsAdmin() bool {
	return a.Role == models.PlatformRoleAdmin
}

// Action is a classroom-scoped operation subject to the authorization matrix.
type Action string

const (
	ActionViewClassroom      Action = "classroom:view"
	ActionEditClassroom      Action = "classroom:edit"
	ActionLockClassroom      Action = "classroom:lock"
	ActionViewMembers        Action = "members:view"
	ActionKickStudent        Action = "members:kick_student"
	ActionKickTeacher        Action = "members:kick_teacher"
	ActionInvite             Action = "members:invite"
	ActionLeave              Action = "members:leave"
	ActionUpdateOwnStudentID Action = "members:update_student_id"
	ActionEditRubric         Action = "rubric:edit"
	ActionViewRoster         Action = "roster:view"
	ActionViewOwnRosterEntry Action = "roster:view_own"
	ActionUploadRoster       Action = "roster:upload"
	ActionEditGrades         Action = "grades:edit"
	ActionExportGradebook    Action = "grades:export"
	ActionViewAllReviews     Action = "reviews:view_all"
	ActionViewOwnReview      Action = "reviews:view_own"
	ActionCreateReview       Action = "reviews:create"
	ActionFinalizeReview     Action = "reviews:finalize"
	ActionComment            Action = "reviews:comment"
)

var teacherActions = map[Action]struct{}{
	ActionViewClassroom:   {},
	ActionViewMembers:     {},
	ActionKickStudent:     {},
	ActionInvite:          {},
	ActionLeave:           {},
	ActionEditRubric:      {},
	ActionViewRoster:      {},
	ActionUploadRoster:    {},
	ActionEditGrades:      {},
	ActionExportGradebook: {},
	ActionViewAllReviews:  {},
	ActionFinalizeReview:  {},
	ActionComment:         {},
}

var studentActions = map[Action]struct{}{
	ActionViewClassroom:      {},
	ActionViewMembers:        {},
	ActionLeave:              {},
	ActionUpdateOwnStudentID: {},
	ActionViewOwnRosterEntry: {},
	ActionViewOwnReview:      {},
	ActionCreateReview:       {},
	ActionComment:            {},
}

// ClassroomScope is what the matrix knows about the classroom and the actor's membership in it.
type ClassroomScope struct {
	Classroom  *models.Classroom
	Membership *models.Membership
}

// Role resolves the actor's role in the classroom, or "" for non-members.
func (s ClassroomScope) Role(actor Actor) models.ClassroomRole {
	if s.Classroom != nil && s.Classroom.HostID == actor.UserID {
		return models.ClassroomRoleHost
	}
	if s.Membership != nil && s.Membership.UserID == actor.UserID {
		return s.Membership.Role
	}
	return ""
}

// Decision is the outcome of an authorization check. Reason is for logs only.
type Decision struct {
	Allowed bool
	Role    models.ClassroomRole
	Reason  string
}

// Err returns NO_PERMISSION for a denied decision. The message never says which rule failed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return appErrors.Clone(appErrors.ErrNoPermission, "")
}

// Authorize evaluates the matrix: admin, then host, then teacher set, then student set.
func Authorize(actor Actor, scope ClassroomScope, action Action) Decision {
	role := scope.Role(actor)
	if actor.IsAdmin() {
		return Decision{Allowed: true, Role: role, Reason: "platform admin"}
	}
	switch role {
	case models.ClassroomRoleHost:
		return Decision{Allowed: true, Role: role, Reason: "classroom host"}
	case models.ClassroomRoleTeacher:
		_, ok := teacherActions[action]
		return Decision{Allowed: ok, Role: role, Reason: "teacher matrix"}
	case models.ClassroomRoleStudent:
		_, ok := studentActions[action]
		return Decision{Allowed: ok, Role: role, Reason: "student matrix"}
	default:
		return Decision{Allowed: false, Reason: "not a member"}
	}
}

// RequireStudentID fails STUDENT_ID_REQUIRED when the membership has no roster id.
func RequireStudentID(membership *models.Membership) error {
	if !membership.HasStudentID() {
		return appErrors.Clone(appErrors.ErrStudentIDRequired, "")
	}
	return nil
}

// IsStaff reports whether role may manage the classroom's grades.
func IsStaff(role models.ClassroomRole) bool {
	return role == models.ClassroomRoleHost || role == models.ClassroomRoleTeacher
}
