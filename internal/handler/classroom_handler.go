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

type classroomService interface {
	Create(ctx context.Context, actor service.Actor, req dto.CreateClassroomRequest) (*models.Classroom, error)
	Get(ctx context.Context, actor service.Actor, id string) (*models.Classroom, error)
	ListMine(ctx context.Context, actor service.Actor) ([]models.Classroom, error)
	ListAll(ctx context.Context, actor service.Actor, req dto.ListClassroomsRequest) ([]models.Classroom, *models.Pagination, error)
	UpdateInfo(ctx context.Context, actor service.Actor, id string, req dto.UpdateClassroomRequest) (*models.Classroom, error)
	SetActive(ctx context.Context, actor service.Actor, id string, active bool) (*models.Classroom, error)
	ListMembers(ctx context.Context, actor service.Actor, id string) ([]models.Member, error)
	KickMember(ctx context.Context, actor service.Actor, id, userID string) error
	Leave(ctx context.Context, actor service.Actor, id string) error
	UpdateStudentID(ctx context.Context, actor service.Actor, id string, req dto.UpdateStudentIDRequest) (*models.Membership, error)
	UpdateGradeStructure(ctx context.Context, actor service.Actor, id string, structure *models.GradeStructure) (*models.Classroom, error)
	DeleteGradeStructure(ctx context.Context, actor service.Actor, id string) error
}

// ClassroomHandler exposes classroom lifecycle, membership and rubric endpoints.
type ClassroomHandler struct {
	service classroomService
}

// NewClassroomHandler builds a new handler.
func NewClassroomHandler(service classroomService) *ClassroomHandler {
	return &ClassroomHandler{service: service}
}

// Create godoc
// @Summary Create a classroom
// @Tags Classrooms
// @Accept json
// @Produce json
// @Param payload body dto.CreateClassroomRequest true "Classroom payload"
// @Success 201 {object} response.Envelope
// @Router /classrooms [post]
func (h *ClassroomHandler) Create(c *gin.Context) {
	var req dto.CreateClassroomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid classroom payload"))
		return
	}
	classroom, err := h.service.Create(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, classroom)
}

// ListMine godoc
// @Summary List classrooms the caller hosts or joined
// @Tags Classrooms
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /classrooms [get]
func (h *ClassroomHandler) ListMine(c *gin.Context) {
	classrooms, err := h.service.ListMine(c.Request.Context(), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classrooms, nil)
}

// ListAll godoc
// @Summary List every classroom (admin)
// @Tags Admin
// @Produce json
// @Param active query bool false "Filter by active flag"
// @Param search query string false "Name or code search"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admin/classrooms [get]
func (h *ClassroomHandler) ListAll(c *gin.Context) {
	var req dto.ListClassroomsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	classrooms, pagination, err := h.service.ListAll(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classrooms, pagination)
}

// Get godoc
// @Summary Get a classroom
// @Tags Classrooms
// @Produce json
// @Param id path string true "Classroom ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /classrooms/{id} [get]
func (h *ClassroomHandler) Get(c *gin.Context) {
	classroom, err := h.service.Get(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classroom, nil)
}

// UpdateInfo godoc
// @Summary Update classroom details
// @Tags Classrooms
// @Accept json
// @Produce json
// @Param id path string true "Classroom ID"
// @Param payload body dto.UpdateClassroomRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{id} [patch]
func (h *ClassroomHandler) UpdateInfo(c *gin.Context) {
	var req dto.UpdateClassroomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid classroom payload"))
		return
	}
	classroom, err := h.service.UpdateInfo(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classroom, nil)
}

// SetActive godoc
// @Summary Lock or unlock a classroom
// @Tags Classrooms
// @Accept json
// @Produce json
// @Param id path string true "Classroom ID"
// @Param payload body dto.SetActiveRequest true "Active flag"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{id}/active [put]
func (h *ClassroomHandler) SetActive(c *gin.Context) {
	var req dto.SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Active == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "active flag is required"))
		return
	}
	classroom, err := h.service.SetActive(c.Request.Context(), actorFromContext(c), c.Param("id"), *req.Active)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classroom, nil)
}

// ListMembers godoc
// @Summary List classroom members
// @Tags Members
// @Produce json
// @Param id path string true "Classroom ID"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{id}/members [get]
func (h *ClassroomHandler) ListMembers(c *gin.Context) {
	members, err := h.service.ListMembers(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, members, nil)
}

// KickMember godoc
// @Summary Remove a member
// @Tags Members
// @Param id path string true "Classroom ID"
// @Param userId path string true "User ID"
// @Success 204
// @Router /classrooms/{id}/members/{userId} [delete]
func (h *ClassroomHandler) KickMember(c *gin.Context) {
	if err := h.service.KickMember(c.Request.Context(), actorFromContext(c), c.Param("id"), c.Param("userId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Leave godoc
// @Summary Leave a classroom
// @Tags Members
// @Param id path string true "Classroom ID"
// @Success 204
// @Router /classrooms/{id}/leave [post]
func (h *ClassroomHandler) Leave(c *gin.Context) {
	if err := h.service.Leave(c.Request.Context(), actorFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UpdateStudentID godoc
// @Summary Set the caller's student id
// @Tags Members
// @Accept json
// @Produce json
// @Param id path string true "Classroom ID"
// @Param payload body dto.UpdateStudentIDRequest true "Student id"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{id}/student-id [put]
func (h *ClassroomHandler) UpdateStudentID(c *gin.Context) {
	var req dto.UpdateStudentIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid student id payload"))
		return
	}
	membership, err := h.service.UpdateStudentID(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, membership, nil)
}

// UpdateGradeStructure godoc
// @Summary Replace the grade structure
// @Description Prunes grades of removed compositions, forces reviews of un-finalized compositions to FINAL and recomputes totals.
// @Tags Grade Structure
// @Accept json
// @Produce json
// @Param id path string true "Classroom ID"
// @Param payload body dto.GradeStructureRequest true "Rubric"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /classrooms/{id}/grade-structure [put]
func (h *ClassroomHandler) UpdateGradeStructure(c *gin.Context) {
	var req dto.GradeStructureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid grade structure payload"))
		return
	}
	classroom, err := h.service.UpdateGradeStructure(c.Request.Context(), actorFromContext(c), c.Param("id"), req.Structure())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classroom, nil)
}

// DeleteGradeStructure godoc
// @Summary Delete the grade structure and every grade
// @Tags Grade Structure
// @Param id path string true "Classroom ID"
// @Success 204
// @Failure 412 {object} response.Envelope
// @Router /classrooms/{id}/grade-structure [delete]
func (h *ClassroomHandler) DeleteGradeStructure(c *gin.Context) {
	if err := h.service.DeleteGradeStructure(c.Request.Context(), actorFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
