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

type invitationService interface {
	Send(ctx context.Context, actor service.Actor, classroomID string, req dto.SendInvitationsRequest) (*dto.SendInvitationsResult, error)
	Accept(ctx context.Context, actor service.Actor, classroomID string, req dto.AcceptInvitationRequest) (*models.Membership, error)
}

// InvitationHandler issues and redeems classroom invitations.
type InvitationHandler struct {
	service invitationService
}

// NewInvitationHandler builds a new handler.
func NewInvitationHandler(service invitationService) *InvitationHandler {
	return &InvitationHandler{service: service}
}

// Send godoc
// @Summary Email classroom invitations
// @Tags Invitations
// @Accept json
// @Produce json
// @Param id path string true "Classroom ID"
// @Param payload body dto.SendInvitationsRequest true "Recipients"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{id}/invitations [post]
func (h *InvitationHandler) Send(c *gin.Context) {
	var req dto.SendInvitationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid invitation payload"))
		return
	}
	result, err := h.service.Send(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Accept godoc
// @Summary Join a classroom
// @Description Students may join with the classroom id alone. Teachers need the emailed token.
// @Tags Invitations
// @Accept json
// @Produce json
// @Param id path string true "Classroom ID"
// @Param payload body dto.AcceptInvitationRequest true "Role and token"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /classrooms/{id}/join [post]
func (h *InvitationHandler) Accept(c *gin.Context) {
	var req dto.AcceptInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid join payload"))
		return
	}
	membership, err := h.service.Accept(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, membership)
}
