package app

import (
	"fmt"
	"strings"
	"time"

	"medremind/internal/schedule"
	"medremind/internal/util"
	"medremind/pkg/auth"
	"medremind/pkg/domain"
	"medremind/pkg/store"
)

// logProjectionDays is how many calendar days of dose logs are generated
// when a medication is created (today and tomorrow).
const logProjectionDays = 2

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL string
	JWTSecret   string
	SessionTTL  time.Duration
	JWTIssuer   string
	JWTAudience string
	JWTLeeway   time.Duration
	Store       store.Store
	Sessions    store.SessionStore
}

// App is the core application service wiring together storage and auth logic.
type App struct {
	store    store.Store
	sessions store.SessionStore
}

// New constructs the application with database storage and token issuance.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}
	sessions := cfg.Sessions
	if sessions == nil {
		var err error
		sessions, err = store.NewJWTSessionStore(cfg.JWTSecret, cfg.SessionTTL, store.JWTOptions{
			Issuer:   cfg.JWTIssuer,
			Audience: cfg.JWTAudience,
			Leeway:   cfg.JWTLeeway,
		})
		if err != nil {
			return nil, fmt.Errorf("init jwt session store: %w", err)
		}
	}
	return &App{store: dataStore, sessions: sessions}, nil
}

// Register creates an account and issues an identity token.
func (a *App) Register(email, password, name string) (domain.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	name = strings.TrimSpace(name)
	if email == "" || password == "" || name == "" {
		return domain.User{}, "", ErrRegistrationFieldsRequired
	}
	if err := auth.ValidatePassword(password); err != nil {
		return domain.User{}, "", err
	}
	exists, err := a.store.HasUserEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, "", ErrEmailTaken
	}
	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:           util.NewID(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, "", fmt.Errorf("save user: %w", err)
	}
	token, err := a.sessions.NewSession(user)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue token: %w", err)
	}
	return user, token, nil
}

// Login validates credentials and issues an identity token.
func (a *App) Login(email, password string) (domain.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return domain.User{}, "", ErrEmailAndPasswordRequired
	}
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, "", ErrInvalidCredentials
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	token, err := a.sessions.NewSession(user)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue token: %w", err)
	}
	return user, token, nil
}

// UserFromToken resolves a user from an identity token.
func (a *App) UserFromToken(token string) (domain.User, bool) {
	uid, ok, err := a.sessions.GetUserIDByToken(token)
	if err != nil || !ok {
		return domain.User{}, false
	}
	user, found, err := a.store.GetUserByID(uid)
	if err != nil || !found {
		return domain.User{}, false
	}
	return user, true
}

// ListMedications returns the user's medications newest first, each with its
// logs from the start of today onward in ascending scheduled-time order.
func (a *App) ListMedications(userID string) ([]domain.Medication, error) {
	now := time.Now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	meds, err := a.store.ListMedicationsByUser(userID, startOfDay)
	if err != nil {
		return nil, fmt.Errorf("list medications: %w", err)
	}
	return meds, nil
}

// CreateMedicationInput carries the caller-supplied medication fields.
// Pointer fields distinguish "absent" from an explicit zero value.
type CreateMedicationInput struct {
	Name            string
	Dosage          string
	Unit            string
	Frequency       string
	TimeSlots       []string
	StartDate       time.Time
	EndDate         *time.Time
	TotalSupply     int
	RefillReminder  *int
	Instructions    string
	ReminderEnabled *bool
}

func (in CreateMedicationInput) complete() bool {
	return strings.TrimSpace(in.Name) != "" &&
		strings.TrimSpace(in.Dosage) != "" &&
		strings.TrimSpace(in.Unit) != "" &&
		strings.TrimSpace(in.Frequency) != "" &&
		len(in.TimeSlots) > 0 &&
		!in.StartDate.IsZero() &&
		in.TotalSupply > 0
}

// CreateMedication stores a new medication and projects its dose logs for
// today and tomorrow. Duplicate (medication, scheduledTime) pairs from
// overlapping projections are skipped by the store.
func (a *App) CreateMedication(userID string, in CreateMedicationInput) (domain.Medication, error) {
	if !in.complete() {
		return domain.Medication{}, ErrMissingFields
	}
	refillReminder := int(float64(in.TotalSupply) * 0.2)
	if in.RefillReminder != nil {
		refillReminder = *in.RefillReminder
	}
	reminderEnabled := true
	if in.ReminderEnabled != nil {
		reminderEnabled = *in.ReminderEnabled
	}
	now := time.Now().UTC()
	med := domain.Medication{
		ID:              util.NewID(),
		UserID:          userID,
		Name:            in.Name,
		Dosage:          in.Dosage,
		Unit:            in.Unit,
		Frequency:       in.Frequency,
		TimeSlots:       in.TimeSlots,
		StartDate:       in.StartDate,
		EndDate:         in.EndDate,
		TotalSupply:     in.TotalSupply,
		CurrentSupply:   in.TotalSupply,
		RefillReminder:  refillReminder,
		Instructions:    in.Instructions,
		ReminderEnabled: reminderEnabled,
		CreatedAt:       now,
	}
	if err := a.store.CreateMedication(med); err != nil {
		return domain.Medication{}, fmt.Errorf("save medication: %w", err)
	}
	logs := schedule.ProjectLogs(med.ID, userID, med.TimeSlots, now, logProjectionDays)
	if err := a.store.CreateMedicationLogs(logs); err != nil {
		// The medication row stays; see DESIGN.md on create/log consistency.
		return domain.Medication{}, fmt.Errorf("create dose logs: %w", err)
	}
	med.Logs = []domain.MedicationLog{}
	return med, nil
}
