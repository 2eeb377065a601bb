package persistence

import "time"

// AvailabilityWindow is a stored tutor availability window. Date is a
// YYYY-MM-DD calendar date and the times are minutes after local midnight.
type AvailabilityWindow struct {
	TutorID     string
	Date        string
	SlotID      string
	StartMinute int
	EndMinute   int
	Timezone    string
	UpdatedAt   time.Time
}

// Session is a stored teaching session. ScheduledStart keeps the offset it
// was created with.
type Session struct {
	ID                 string
	TutorID            string
	Title              string
	ScheduledStart     time.Time
	DurationMinutes    int
	MaxParticipants    int
	Status             string
	LinkedSlotID       string
	EnrolledStudentIDs []string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
