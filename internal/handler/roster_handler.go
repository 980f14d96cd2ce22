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
	"github.com/noah-isme/classroom-grading-api/pkg/spreadsheet"
)

const uploadField = "file"

type rosterService interface {
	ListRoster(ctx context.Context, actor service.Actor, classroomID string) ([]models.StudentListEntry, error)
	GetEntry(ctx context.Context, actor service.Actor, classroomID, studentID string) (*models.StudentListEntry, error)
	UploadRoster(ctx context.Context, actor service.Actor, classroomID string, rows [][]string) (*dto.UploadResult, error)
	UploadGrades(ctx context.Context, actor service.Actor, classroomID, gradeName string, rows [][]string) (*dto.UploadResult, error)
	UpdateGrade(ctx context.Context, actor service.Actor, classroomID, studentID, gradeName string, req dto.UpdateGradeRequest) (*models.StudentListEntry, error)
	Export(ctx context.Context, actor service.Actor, classroomID string, format dto.ExportFormat) (*dto.ExportFile, error)
}

// RosterHandler serves the gradebook: roster entries, grade edits, uploads and exports.
type RosterHandler struct {
	service rosterService
}

// NewRosterHandler builds a new handler.
func NewRosterHandler(service rosterService) *RosterHandler {
	return &RosterHandler{service: service}
}

// ListRoster godoc
// @Summary List gradebook entries
// @Description Students only see their own entry.
// @Tags Gradebook
// @Produce json
// @Param id path string true "Classroom ID"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{id}/students [get]
func (h *RosterHandler) ListRoster(c *gin.Context) {
	entries, err := h.service.ListRoster(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// GetEntry godoc
// @Summary Get one gradebook entry
// @Tags Gradebook
// @Produce json
// @Param id path string true "Classroom ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classrooms/{id}/students/{studentId} [get]
func (h *RosterHandler) GetEntry(c *gin.Context) {
	entry, err := h.service.GetEntry(c.Request.Context(), actorFromContext(c), c.Param("id"), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// UploadRoster godoc
// @Summary Import the student roster
// @Description Accepts CSV or XLSX with "Student ID" and "Full Name" columns.
// @Tags Gradebook
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Classroom ID"
// @Param file formData file true "Roster spreadsheet"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{id}/students/upload [post]
func (h *RosterHandler) UploadRoster(c *gin.Context) {
	rows, ok := readUpload(c)
	if !ok {
		return
	}
	result, err := h.service.UploadRoster(c.Request.Context(), actorFromContext(c), c.Param("id"), rows)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// UploadGrades godoc
// @Summary Import one composition's grades
// @Description Accepts CSV or XLSX with "Student ID" and "Grade" columns. The whole file is rejected on any invalid row.
// @Tags Gradebook
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Classroom ID"
// @Param gradeName query string true "Composition name"
// @Param file formData file true "Grade spreadsheet"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{id}/grades/upload [post]
func (h *RosterHandler) UploadGrades(c *gin.Context) {
	gradeName := c.Query("gradeName")
	if gradeName == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "gradeName is required"))
		return
	}
	rows, ok := readUpload(c)
	if !ok {
		return
	}
	result, err := h.service.UploadGrades(c.Request.Context(), actorFromContext(c), c.Param("id"), gradeName, rows)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// UpdateGrade godoc
// @Summary Set one grade
// @Tags Gradebook
// @Accept json
// @Produce json
// @Param id path string true "Classroom ID"
// @Param studentId path string true "Student ID"
// @Param gradeName path string true "Composition name"
// @Param payload body dto.UpdateGradeRequest true "Grade value"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{id}/students/{studentId}/grades/{gradeName} [put]
func (h *RosterHandler) UpdateGrade(c *gin.Context) {
	var req dto.UpdateGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid grade payload"))
		return
	}
	entry, err := h.service.UpdateGrade(c.Request.Context(), actorFromContext(c), c.Param("id"), c.Param("studentId"), c.Param("gradeName"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// Export godoc
// @Summary Download the gradebook
// @Tags Gradebook
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Classroom ID"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Router /classrooms/{id}/gradebook/export [get]
func (h *RosterHandler) Export(c *gin.Context) {
	file, err := h.service.Export(c.Request.Context(), actorFromContext(c), c.Param("id"), dto.ExportFormat(c.Query("format")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

func readUpload(c *gin.Context) ([][]string, bool) {
	header, err := c.FormFile(uploadField)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return nil, false
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unable to open upload"))
		return nil, false
	}
	defer file.Close()

	rows, err := spreadsheet.ReadFile(header.Filename, file)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable spreadsheet"))
		return nil, false
	}
	return rows, true
}
