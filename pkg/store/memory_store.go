package store

import (
	"sort"
	"sync"
	"time"

	"medremind/pkg/domain"
)

// MemoryStore keeps all records in-process. Used by tests and local runs
// without Postgres.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[string]domain.User // key: user ID
	email   map[string]string      // email -> user ID
	meds    map[string]domain.Medication
	medSeq  []string // medication IDs in insertion order
	logs    map[string]domain.MedicationLog
	logKeys map[string]string // medicationID|scheduledTime -> log ID
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]domain.User),
		email:   make(map[string]string),
		meds:    make(map[string]domain.Medication),
		logs:    make(map[string]domain.MedicationLog),
		logKeys: make(map[string]string),
	}
}

// SaveUser registers or replaces a user.
func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

// HasUserEmail checks if email exists.
func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.email[email]
	return ok, nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.email[email]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// CreateMedication stores a new medication.
func (m *MemoryStore) CreateMedication(med domain.Medication) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.meds[med.ID]; !exists {
		m.medSeq = append(m.medSeq, med.ID)
	}
	med.Logs = nil
	m.meds[med.ID] = med
	return nil
}

// GetMedication retrieves a medication by ID.
func (m *MemoryStore) GetMedication(id string) (domain.Medication, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	med, ok := m.meds[id]
	return med, ok, nil
}

// ListMedicationsByUser returns medications newest first with upcoming logs attached.
func (m *MemoryStore) ListMedicationsByUser(userID string, logsSince time.Time) ([]domain.Medication, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Medication, 0)
	for _, id := range m.medSeq {
		med, ok := m.meds[id]
		if !ok || med.UserID != userID {
			continue
		}
		med.Logs = m.logsSinceLocked(med.ID, logsSince)
		res = append(res, med)
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

// CreateMedicationLogs bulk-inserts logs, skipping duplicate
// (medication, scheduledTime) pairs.
func (m *MemoryStore) CreateMedicationLogs(logs []domain.MedicationLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range logs {
		key := l.MedicationID + "|" + l.ScheduledTime.Format(time.RFC3339Nano)
		if _, exists := m.logKeys[key]; exists {
			continue
		}
		m.logKeys[key] = l.ID
		m.logs[l.ID] = l
	}
	return nil
}

// ListLogsByMedication returns logs scheduled at or after since, ascending.
func (m *MemoryStore) ListLogsByMedication(medicationID string, since time.Time) ([]domain.MedicationLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.logsSinceLocked(medicationID, since), nil
}

func (m *MemoryStore) logsSinceLocked(medicationID string, since time.Time) []domain.MedicationLog {
	res := make([]domain.MedicationLog, 0)
	for _, l := range m.logs {
		if l.MedicationID != medicationID || l.ScheduledTime.Before(since) {
			continue
		}
		res = append(res, l)
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].ScheduledTime.Before(res[j].ScheduledTime)
	})
	return res
}
