package models

import "time"

// ZeroTotal is the cached total of a student with no usable grades.
const ZeroTotal = "0.00"

// StudentListEntry is a roster row, keyed by the classroom-scoped student id.
type StudentListEntry struct {
	ID          string    `db:"id" json:"id"`
	ClassroomID string    `db:"classroom_id" json:"classroom_id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	FullName    string    `db:"full_name" json:"full_name"`
	Total       string    `db:"total" json:"total"`
	Grades      []Grade   `db:"-" json:"grades"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Grade is a single composition score for a roster entry.
type Grade struct {
	ID            string    `db:"id" json:"id"`
	StudentListID string    `db:"student_list_id" json:"student_list_id"`
	Name          string    `db:"name" json:"name"`
	Value         string    `db:"value" json:"value"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
