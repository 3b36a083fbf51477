package models

import "time"

// EventType enumerates the kinds of academic events.
type EventType string

const (
	EventTypeLecture      EventType = "Palestra"
	EventTypeSeminar      EventType = "Seminário"
	EventTypeShortCourse  EventType = "Minicurso"
	EventTypeAcademicWeek EventType = "Semana Acadêmica"
)

// DateLayout is the wire format of event dates.
const DateLayout = "2006-01-02"

// Event is an academic event with a seat limit.
type Event struct {
	ID                     string    `db:"id" json:"id"`
	Name                   string    `db:"name" json:"name"`
	Type                   EventType `db:"type" json:"type"`
	StartDate              time.Time `db:"start_date" json:"start_date"`
	EndDate                time.Time `db:"end_date" json:"end_date"`
	Schedule               string    `db:"schedule" json:"schedule"`
	Location               string    `db:"location" json:"location"`
	Capacity               int       `db:"capacity" json:"capacity"`
	OrganizerID            string    `db:"organizer_id" json:"organizer_id"`
	ResponsibleProfessorID string    `db:"responsible_professor_id" json:"responsible_professor_id"`
	BannerURL              *string   `db:"banner_url" json:"banner_url,omitempty"`
	CreatedAt              time.Time `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time `db:"updated_at" json:"updated_at"`
}

// StartsAt returns the first instant of the start date in loc.
func (e *Event) StartsAt(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := e.StartDate.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// Started reports whether now is at or after the event start.
func (e *Event) Started(now time.Time, loc *time.Location) bool {
	return !now.Before(e.StartsAt(loc))
}

// AcceptsEnrollment reports whether now is not past the event start.
func (e *Event) AcceptsEnrollment(now time.Time, loc *time.Location) bool {
	return !now.After(e.StartsAt(loc))
}

// OwnedBy reports whether userID organizes the event.
func (e *Event) OwnedBy(userID string) bool {
	return e != nil && userID != "" && e.OrganizerID == userID
}

// EventSummary is the public listing shape of an event.
type EventSummary struct {
	ID            string    `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	Location      string    `db:"location" json:"location"`
	StartDate     time.Time `db:"start_date" json:"start_date"`
	OrganizerName string    `db:"organizer_name" json:"organizer_name"`
}
