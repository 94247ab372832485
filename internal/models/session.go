package models

import "time"

// SessionStatus is the lifecycle state of a tutoring session.
// The lifecycle is one way: Scheduled may move to Completed or Cancelled,
// terminal states never transition again.
type SessionStatus string

const (
	SessionScheduled SessionStatus = "Scheduled"
	SessionCompleted SessionStatus = "Completed"
	SessionCancelled SessionStatus = "Cancelled"
)

// Terminal reports whether the status permits no further transition.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionCancelled
}

// Session is a scheduled or past meeting between a student and a tutor.
type Session struct {
	ID            string        `db:"id" json:"id"`
	SessionNumber int           `db:"session_number" json:"session_number"`
	SessionDate   time.Time     `db:"session_date" json:"session_date"`
	Status        SessionStatus `db:"status" json:"status"`
	SubjectID     string        `db:"subject_id" json:"subject_id"`
	StudentID     string        `db:"student_id" json:"student_id"`
	TutorID       string        `db:"tutor_id" json:"tutor_id"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// SessionDetail joins subject and participant names onto a session.
type SessionDetail struct {
	Session
	SubjectName string `db:"subject_name" json:"subject_name"`
	StudentName string `db:"student_name" json:"student_name"`
	TutorName   string `db:"tutor_name" json:"tutor_name"`
}

// SessionDay groups a day's sessions for schedule views.
type SessionDay struct {
	Date     time.Time       `json:"date"`
	Sessions []SessionDetail `json:"sessions"`
}

// SessionFilter captures filtering criteria for listing sessions.
type SessionFilter struct {
	TutorID   string
	StudentID string
	SubjectID string
	Status    *SessionStatus
}
