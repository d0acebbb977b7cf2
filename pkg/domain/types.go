package domain

import "time"

// LogStatus tracks the lifecycle of a scheduled dose.
type LogStatus string

const (
	LogPending LogStatus = "PENDING"
	LogTaken   LogStatus = "TAKEN"
	LogMissed  LogStatus = "MISSED"
	LogSkipped LogStatus = "SKIPPED"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"-"`
}

type Medication struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	Name            string          `json:"name"`
	Dosage          string          `json:"dosage"`
	Unit            string          `json:"unit"`
	Frequency       string          `json:"frequency"`
	TimeSlots       []string        `json:"timeSlots"`
	StartDate       time.Time       `json:"startDate"`
	EndDate         *time.Time      `json:"endDate,omitempty"`
	TotalSupply     int             `json:"totalSupply"`
	CurrentSupply   int             `json:"currentSupply"`
	RefillReminder  int             `json:"refillReminder"`
	Instructions    string          `json:"instructions,omitempty"`
	ReminderEnabled bool            `json:"reminderEnabled"`
	CreatedAt       time.Time       `json:"createdAt"`
	Logs            []MedicationLog `json:"logs"`
}

type MedicationLog struct {
	ID            string    `json:"id"`
	MedicationID  string    `json:"medicationId"`
	UserID        string    `json:"userId"`
	ScheduledTime time.Time `json:"scheduledTime"`
	Status        LogStatus `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
}
