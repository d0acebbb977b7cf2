package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string    `gorm:"primaryKey"`
	Email        string    `gorm:"uniqueIndex;not null"`
	Name         string    `gorm:"not null"`
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

type MedicationModel struct {
	ID              string         `gorm:"primaryKey"`
	UserID          string         `gorm:"not null;index"`
	Name            string         `gorm:"not null"`
	Dosage          string         `gorm:"not null"`
	Unit            string         `gorm:"not null"`
	Frequency       string         `gorm:"not null"`
	TimeSlots       datatypes.JSON `gorm:"not null"`
	StartDate       time.Time      `gorm:"not null"`
	EndDate         *time.Time
	TotalSupply     int `gorm:"not null"`
	CurrentSupply   int `gorm:"not null"`
	RefillReminder  int `gorm:"not null"`
	Instructions    string
	ReminderEnabled bool      `gorm:"not null"`
	CreatedAt       time.Time `gorm:"not null;index"`
}

type MedicationLogModel struct {
	ID            string    `gorm:"primaryKey"`
	MedicationID  string    `gorm:"not null;uniqueIndex:idx_log_med_scheduled"`
	UserID        string    `gorm:"not null;index"`
	ScheduledTime time.Time `gorm:"not null;uniqueIndex:idx_log_med_scheduled"`
	Status        string    `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null"`
}
