package dto

import "github.com/noah-isme/classroom-grading-api/internal/models"

// SendInvitationsRequest invites accounts by email to join a classroom with a role.
type SendInvitationsRequest struct {
	Role   models.ClassroomRole `json:"role" validate:"required,oneof=HOST TEACHER STUDENT"`
	Emails []string             `json:"emails" validate:"required,min=1,max=100,dive,required,email"`
}

// SendInvitationsResult reports per-recipient delivery.
type SendInvitationsResult struct {
	Sent   []string `json:"sent"`
	Failed []string `json:"failed"`
}

// AcceptInvitationRequest joins a classroom. Teachers must present an invitation token.
type AcceptInvitationRequest struct {
	Role  models.ClassroomRole `json:"role" validate:"required,oneof=HOST TEACHER STUDENT"`
	Token string               `json:"token"`
}
