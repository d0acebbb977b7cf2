package store

import (
	"time"

	"medremind/pkg/domain"
)

// Store defines persistence operations for users, medications, and dose logs.
type Store interface {
	// users
	SaveUser(domain.User) error
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)

	// medications
	CreateMedication(domain.Medication) error
	GetMedication(id string) (domain.Medication, bool, error)
	// ListMedicationsByUser returns the user's medications newest first,
	// each carrying its logs scheduled at or after logsSince in ascending
	// scheduled-time order.
	ListMedicationsByUser(userID string, logsSince time.Time) ([]domain.Medication, error)

	// dose logs
	// CreateMedicationLogs bulk-inserts logs, silently skipping records
	// that collide on (medication, scheduledTime).
	CreateMedicationLogs(logs []domain.MedicationLog) error
	ListLogsByMedication(medicationID string, since time.Time) ([]domain.MedicationLog, error)
}

// SessionStore issues and validates identity tokens.
type SessionStore interface {
	NewSession(user domain.User) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
}
