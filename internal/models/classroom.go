package models

import "time"

// ClassroomRole is a user's role inside one classroom.
type ClassroomRole string

const (
	ClassroomRoleHost    ClassroomRole = "HOST"
	ClassroomRoleTeacher ClassroomRole = "TEACHER"
	ClassroomRoleStudent ClassroomRole = "STUDENT"
)

// Valid reports whether r is one of the known classroom roles.
func (r ClassroomRole) Valid() bool {
	switch r {
	case ClassroomRoleHost, ClassroomRoleTeacher, ClassroomRoleStudent:
		return true
	}
	return false
}

// Classroom is a course with one host and a weighted grade structure.
// Active=false means the classroom is locked.
type Classroom struct {
	ID             string          `db:"id" json:"id"`
	Name           string          `db:"name" json:"name"`
	Description    string          `db:"description" json:"description"`
	Section        string          `db:"section" json:"section"`
	Subject        string          `db:"subject" json:"subject"`
	Room           string          `db:"room" json:"room"`
	Code           string          `db:"code" json:"code"`
	HostID         string          `db:"host_id" json:"host_id"`
	GradeStructure *GradeStructure `db:"grade_structure" json:"grade_structure"`
	Active         bool            `db:"active" json:"active"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// ClassroomFilter drives the admin listing.
type ClassroomFilter struct {
	Active   *bool
	Search   string
	Page     int
	PageSize int
}

// Membership links a user to a classroom as teacher or student.
type Membership struct {
	ID          string        `db:"id" json:"id"`
	ClassroomID string        `db:"classroom_id" json:"classroom_id"`
	UserID      string        `db:"user_id" json:"user_id"`
	Role        ClassroomRole `db:"role" json:"role"`
	StudentID   *string       `db:"student_id" json:"student_id,omitempty"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
}

// HasStudentID reports whether the membership carries a non-empty roster id.
func (m *Membership) HasStudentID() bool {
	return m != nil && m.StudentID != nil && *m.StudentID != ""
}

// StudentIDValue returns the roster id or "".
func (m *Membership) StudentIDValue() string {
	if !m.HasStudentID() {
		return ""
	}
	return *m.StudentID
}

// Member is a membership joined with the account it belongs to.
type Member struct {
	Membership
	Email    string `db:"email" json:"email"`
	FullName string `db:"full_name" json:"full_name"`
}
