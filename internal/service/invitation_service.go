package service

import (
	"context"
	"fmt"
	"net/mail"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-grading-api/internal/dto"
	"github.com/noah-isme/classroom-grading-api/internal/models"
	"github.com/noah-isme/classroom-grading-api/pkg/database"
	appErrors "github.com/noah-isme/classroom-grading-api/pkg/errors"
	appMail "github.com/noah-isme/classroom-grading-api/pkg/mail"
)

type invitationSigner interface {
	Sign(classroomID, role, email string) (string, error)
	Verify(token, classroomID, role, email string) error
}

type membershipWriter interface {
	membershipFinder
	Create(ctx context.Context, membership *models.Membership) error
}

// InvitationConfig carries the mail settings used for invitation links.
type InvitationConfig struct {
	WebLink    string
	TemplateID string
}

// InvitationService mails signed classroom invitations and admits accepted ones.
type InvitationService struct {
	access      classroomAccess
	memberships membershipWriter
	mailer      appMail.Mailer
	signer      invitationSigner
	cfg         InvitationConfig
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewInvitationService constructs the service.
func NewInvitationService(classrooms classroomFinder, memberships membershipWriter, mailer appMail.Mailer, signer invitationSigner, cfg InvitationConfig, validate *validator.Validate, logger *zap.Logger) *InvitationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvitationService{
		access:      classroomAccess{classrooms: classrooms, memberships: memberships},
		memberships: memberships,
		mailer:      mailer,
		signer:      signer,
		cfg:         cfg,
		validator:   validate,
		logger:      logger,
	}
}

// Send mails one invitation per address. A failed send is logged and reported, never fatal.
func (s *InvitationService) Send(ctx context.Context, actor Actor, classroomID string, req dto.SendInvitationsRequest) (*dto.SendInvitationsResult, error) {
	scope, _, err := s.access.require(ctx, actor, classroomID, ActionInvite)
	if err != nil {
		return nil, err
	}
	req.Role = models.ClassroomRole(strings.ToUpper(string(req.Role)))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid invitation payload")
	}
	if req.Role == models.ClassroomRoleHost {
		return nil, appErrors.Clone(appErrors.ErrNoPermission, "")
	}

	result := &dto.SendInvitationsResult{Sent: []string{}, Failed: []string{}}
	seen := map[string]struct{}{}
	for _, raw := range req.Emails {
		email := strings.ToLower(strings.TrimSpace(raw))
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}
		if err := s.sendOne(ctx, actor, scope.Classroom, req.Role, email); err != nil {
			s.logger.Sugar().Warnw("invitation not sent", "classroom_id", classroomID, "email", email, "error", err)
			result.Failed = append(result.Failed, email)
			continue
		}
		result.Sent = append(result.Sent, email)
	}
	return result, nil
}

func (s *InvitationService) sendOne(ctx context.Context, actor Actor, classroom *models.Classroom, role models.ClassroomRole, email string) error {
	token, err := s.signer.Sign(classroom.ID, string(role), email)
	if err != nil {
		return fmt.Errorf("sign invitation: %w", err)
	}
	link := invitationLink(s.cfg.WebLink, classroom.ID, role, token)
	roleLabel := strings.ToLower(string(role))
	msg := appMail.Message{
		To:         mail.Address{Address: email},
		Subject:    fmt.Sprintf("Invitation to join %s", classroom.Name),
		Text:       fmt.Sprintf("%s invited you to join %s as a %s. Open %s to accept.", displayName(actor), classroom.Name, roleLabel, link),
		TemplateID: s.cfg.TemplateID,
		TemplateData: map[string]interface{}{
			"classroom_name": classroom.Name,
			"inviter":        displayName(actor),
			"role":           roleLabel,
			"link":           link,
		},
	}
	return s.mailer.Send(ctx, msg)
}

// Accept admits the actor into a classroom. Teachers need a token issued for their email;
// students may join directly but a presented token must still verify.
func (s *InvitationService) Accept(ctx context.Context, actor Actor, classroomID string, req dto.AcceptInvitationRequest) (*models.Membership, error) {
	req.Role = models.ClassroomRole(strings.ToUpper(string(req.Role)))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid invitation payload")
	}
	if req.Role == models.ClassroomRoleHost {
		return nil, appErrors.Clone(appErrors.ErrNoPermission, "")
	}
	scope, err := s.access.scope(ctx, actor, classroomID)
	if err != nil {
		return nil, err
	}
	if scope.Role(actor) != "" {
		return nil, appErrors.Clone(appErrors.ErrConflict, "already a member of this classroom")
	}
	if err := checkLock(actor, scope.Classroom, ActionLeave); err != nil {
		return nil, err
	}
	token := strings.TrimSpace(req.Token)
	if req.Role == models.ClassroomRoleTeacher && token == "" {
		return nil, appErrors.Clone(appErrors.ErrNoPermission, "")
	}
	if token != "" {
		if err := s.signer.Verify(token, classroomID, string(req.Role), actor.Email); err != nil {
			s.logger.Sugar().Infow("invitation rejected", "classroom_id", classroomID, "user_id", actor.UserID, "error", err)
			return nil, appErrors.Clone(appErrors.ErrNoPermission, "")
		}
	}

	membership := &models.Membership{ClassroomID: classroomID, UserID: actor.UserID, Role: req.Role}
	if err := s.memberships.Create(ctx, membership); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "already a member of this classroom")
		}
		return nil, internalError(err, "failed to join classroom")
	}
	return membership, nil
}

func invitationLink(base, classroomID string, role models.ClassroomRole, token string) string {
	query := url.Values{}
	query.Set("classroomId", classroomID)
	query.Set("role", string(role))
	query.Set("token", token)
	return strings.TrimRight(base, "/") + "/invitation?" + query.Encode()
}
