package models

import "time"

// Subject pairs a tutor and a student around a named topic. Both sides are
// optional at creation and referenced by account id, never by embedded rows.
type Subject struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	TutorID     *string   `db:"tutor_id" json:"tutor_id,omitempty"`
	StudentID   *string   `db:"student_id" json:"student_id,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// SubjectDetail joins display names onto a subject for list views.
type SubjectDetail struct {
	Subject
	TutorName   *string `db:"tutor_name" json:"tutor_name,omitempty"`
	StudentName *string `db:"student_name" json:"student_name,omitempty"`
}

// SubjectFilter captures filtering criteria for listing subjects.
type SubjectFilter struct {
	TutorID   string
	StudentID string
	Search    string
	Page      int
	PageSize  int
}
