package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"medremind/pkg/domain"
)

const migrateLockID int64 = 52805280

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&UserModel{}, &MedicationModel{}, &MedicationLogModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		if err := tx.Exec(`
			DO $$
			BEGIN
				DELETE FROM medication_log_models l
				WHERE NOT EXISTS (SELECT 1 FROM medication_models m WHERE m.id = l.medication_id);
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'medication_log_models'
					AND constraint_name = 'medication_log_models_medication_id_fkey'
				) THEN
					ALTER TABLE medication_log_models
					ADD CONSTRAINT medication_log_models_medication_id_fkey
					FOREIGN KEY (medication_id) REFERENCES medication_models(id) ON DELETE CASCADE;
				END IF;
			END $$;
		`).Error; err != nil {
			return fmt.Errorf("ensure log foreign keys: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "name", "password_hash", "updated_at"}),
	}).Create(&model).Error
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// CreateMedication stores a new medication.
func (s *GormStore) CreateMedication(m domain.Medication) error {
	model, err := medicationToModel(m)
	if err != nil {
		return err
	}
	return s.db.Create(&model).Error
}

// GetMedication retrieves a medication.
func (s *GormStore) GetMedication(id string) (domain.Medication, bool, error) {
	var model MedicationModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Medication{}, false, nil
		}
		return domain.Medication{}, false, err
	}
	return medicationFromModel(model), true, nil
}

// ListMedicationsByUser returns medications newest first with their upcoming logs attached.
func (s *GormStore) ListMedicationsByUser(userID string, logsSince time.Time) ([]domain.Medication, error) {
	var models []MedicationModel
	if err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	var logModels []MedicationLogModel
	if err := s.db.Where("user_id = ? AND scheduled_time >= ?", userID, logsSince).
		Order("scheduled_time ASC").
		Find(&logModels).Error; err != nil {
		return nil, err
	}
	logsByMedication := make(map[string][]domain.MedicationLog, len(models))
	for _, lm := range logModels {
		logsByMedication[lm.MedicationID] = append(logsByMedication[lm.MedicationID], logFromModel(lm))
	}
	res := make([]domain.Medication, 0, len(models))
	for _, m := range models {
		med := medicationFromModel(m)
		med.Logs = logsByMedication[m.ID]
		if med.Logs == nil {
			med.Logs = []domain.MedicationLog{}
		}
		res = append(res, med)
	}
	return res, nil
}

// CreateMedicationLogs bulk-inserts dose logs, skipping duplicate
// (medication, scheduledTime) pairs.
func (s *GormStore) CreateMedicationLogs(logs []domain.MedicationLog) error {
	if len(logs) == 0 {
		return nil
	}
	models := make([]MedicationLogModel, 0, len(logs))
	for _, l := range logs {
		models = append(models, logToModel(l))
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "medication_id"}, {Name: "scheduled_time"}},
		DoNothing: true,
	}).CreateInBatches(&models, 200).Error
}

// ListLogsByMedication returns logs scheduled at or after since, ascending.
func (s *GormStore) ListLogsByMedication(medicationID string, since time.Time) ([]domain.MedicationLog, error) {
	var models []MedicationLogModel
	if err := s.db.Where("medication_id = ? AND scheduled_time >= ?", medicationID, since).
		Order("scheduled_time ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.MedicationLog, 0, len(models))
	for _, m := range models {
		res = append(res, logFromModel(m))
	}
	return res, nil
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Email:        m.Email,
		Name:         m.Name,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func medicationToModel(m domain.Medication) (MedicationModel, error) {
	slots, err := json.Marshal(m.TimeSlots)
	if err != nil {
		return MedicationModel{}, fmt.Errorf("marshal time slots: %w", err)
	}
	return MedicationModel{
		ID:              m.ID,
		UserID:          m.UserID,
		Name:            m.Name,
		Dosage:          m.Dosage,
		Unit:            m.Unit,
		Frequency:       m.Frequency,
		TimeSlots:       slots,
		StartDate:       m.StartDate,
		EndDate:         m.EndDate,
		TotalSupply:     m.TotalSupply,
		CurrentSupply:   m.CurrentSupply,
		RefillReminder:  m.RefillReminder,
		Instructions:    m.Instructions,
		ReminderEnabled: m.ReminderEnabled,
		CreatedAt:       m.CreatedAt,
	}, nil
}

func medicationFromModel(m MedicationModel) domain.Medication {
	var slots []string
	if len(m.TimeSlots) > 0 {
		_ = json.Unmarshal(m.TimeSlots, &slots)
	}
	return domain.Medication{
		ID:              m.ID,
		UserID:          m.UserID,
		Name:            m.Name,
		Dosage:          m.Dosage,
		Unit:            m.Unit,
		Frequency:       m.Frequency,
		TimeSlots:       slots,
		StartDate:       m.StartDate,
		EndDate:         m.EndDate,
		TotalSupply:     m.TotalSupply,
		CurrentSupply:   m.CurrentSupply,
		RefillReminder:  m.RefillReminder,
		Instructions:    m.Instructions,
		ReminderEnabled: m.ReminderEnabled,
		CreatedAt:       m.CreatedAt,
	}
}

func logToModel(l domain.MedicationLog) MedicationLogModel {
	return MedicationLogModel{
		ID:            l.ID,
		MedicationID:  l.MedicationID,
		UserID:        l.UserID,
		ScheduledTime: l.ScheduledTime,
		Status:        string(l.Status),
		CreatedAt:     l.CreatedAt,
	}
}

func logFromModel(m MedicationLogModel) domain.MedicationLog {
	status := domain.LogStatus(m.Status)
	if status == "" {
		status = domain.LogPending
	}
	return domain.MedicationLog{
		ID:            m.ID,
		MedicationID:  m.MedicationID,
		UserID:        m.UserID,
		ScheduledTime: m.ScheduledTime,
		Status:        status,
		CreatedAt:     m.CreatedAt,
	}
}
