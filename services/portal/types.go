package portal

import "time"

// Course is one calendar entry as extracted from the portal. Immutable once
// extracted; ID is assigned by the portal and is what deduplication keys on.
type Course struct {
	ID       string    `json:"id"`
	Begin    time.Time `json:"begin"`
	End      time.Time `json:"end"`
	Subject  string    `json:"subject"`
	Teachers []string  `json:"teachers,omitempty"`
	Rooms    []string  `json:"rooms,omitempty"`
	Campus   []string  `json:"campus,omitempty"`
	// Groups holds the portal group names this course is associated with.
	Groups []string `json:"groups,omitempty"`
	// MeetingLink is the optional conferencing link, empty when the course
	// has none.
	MeetingLink string `json:"meeting_link,omitempty"`
}

type Day struct {
	Date    time.Time `json:"date"`
	Courses []Course  `json:"courses"`
}

type Week struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	// Days are in ascending date order; within a day courses are ordered
	// by start time.
	Days []Day `json:"days"`
}

type Status string

const (
	StatusOpen       Status = "open"
	StatusClosed     Status = "closed"
	StatusNotStarted Status = "not-started"
)

// PresenceStatus is the attendance state of one course, recomputed per
// request and only cached briefly.
type PresenceStatus struct {
	Begin   time.Time `json:"begin"`
	End     time.Time `json:"end"`
	Subject string    `json:"subject"`
	Teacher string    `json:"teacher,omitempty"`
	// FormURL points at the portal's attendance form for this course.
	FormURL string `json:"form_url,omitempty"`
	Status  Status  `json:"status"`
}
