package dto

import "github.com/noah-isme/classroom-grading-api/internal/models"

// CreateClassroomRequest is the payload for opening a classroom. The caller becomes its host.
type CreateClassroomRequest struct {
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description" validate:"max=500"`
	Section     string `json:"section" validate:"max=60"`
	Subject     string `json:"subject" validate:"max=120"`
	Room        string `json:"room" validate:"max=60"`
}

// UpdateClassroomRequest lists the descriptive fields a host or admin may change. Nil fields are kept.
type UpdateClassroomRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=120"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	Section     *string `json:"section" validate:"omitempty,max=60"`
	Subject     *string `json:"subject" validate:"omitempty,max=120"`
	Room        *string `json:"room" validate:"omitempty,max=60"`
}

// SetActiveRequest locks (false) or unlocks (true) a classroom.
type SetActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// ListClassroomsRequest captures admin listing query parameters.
type ListClassroomsRequest struct {
	Active   *bool  `form:"active"`
	Search   string `form:"search"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"page_size" validate:"omitempty,min=1,max=100"`
}

// UpdateStudentIDRequest sets the caller's roster id in a classroom.
type UpdateStudentIDRequest struct {
	StudentID string `json:"student_id" validate:"required,max=64"`
}

// GradeStructureRequest replaces a classroom's rubric.
type GradeStructureRequest struct {
	Total        models.Decimal            `json:"total"`
	Compositions []models.GradeComposition `json:"compositions"`
}

// Structure converts the payload into the persisted model.
func (r GradeStructureRequest) Structure() *models.GradeStructure {
	return &models.GradeStructure{Total: r.Total, Compositions: r.Compositions}
}
