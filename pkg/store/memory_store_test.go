package store

import (
	"testing"
	"time"

	"medremind/pkg/domain"
)

func TestMemoryStoreUserRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	u := domain.User{ID: "u1", Email: "a@example.com", Name: "A", PasswordHash: "h"}
	if err := s.SaveUser(u); err != nil {
		t.Fatalf("save user: %v", err)
	}
	ok, err := s.HasUserEmail("a@example.com")
	if err != nil || !ok {
		t.Fatalf("expected email to exist, ok=%v err=%v", ok, err)
	}
	got, found, err := s.GetUserByEmail("a@example.com")
	if err != nil || !found || got.ID != "u1" {
		t.Fatalf("get by email: got=%+v found=%v err=%v", got, found, err)
	}
	if _, found, _ := s.GetUserByID("missing"); found {
		t.Fatalf("expected missing user to not be found")
	}
}

func TestMemoryStoreCreateMedicationLogsSkipsDuplicates(t *testing.T) {
	s := NewMemoryStore()
	at := time.Date(2024, 1, 31, 8, 0, 0, 0, time.UTC)
	first := []domain.MedicationLog{
		{ID: "l1", MedicationID: "m1", UserID: "u1", ScheduledTime: at, Status: domain.LogPending},
		{ID: "l2", MedicationID: "m1", UserID: "u1", ScheduledTime: at.Add(12 * time.Hour), Status: domain.LogPending},
	}
	if err := s.CreateMedicationLogs(first); err != nil {
		t.Fatalf("create logs: %v", err)
	}
	// Overlapping batch: one duplicate slot, one new day.
	second := []domain.MedicationLog{
		{ID: "l3", MedicationID: "m1", UserID: "u1", ScheduledTime: at, Status: domain.LogPending},
		{ID: "l4", MedicationID: "m1", UserID: "u1", ScheduledTime: at.AddDate(0, 0, 1), Status: domain.LogPending},
	}
	if err := s.CreateMedicationLogs(second); err != nil {
		t.Fatalf("create overlapping logs: %v", err)
	}
	logs, err := s.ListLogsByMedication("m1", time.Time{})
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) != 3 {
		t.Fatalf("expected 3 logs after duplicate skip, got %d", len(logs))
	}
	for i := 1; i < len(logs); i++ {
		if logs[i].ScheduledTime.Before(logs[i-1].ScheduledTime) {
			t.Fatalf("expected ascending scheduled times, got %v before %v", logs[i].ScheduledTime, logs[i-1].ScheduledTime)
		}
	}
	// The first writer wins on a duplicate slot.
	if logs[0].ID != "l1" {
		t.Fatalf("expected original log to survive duplicate insert, got %s", logs[0].ID)
	}
}

func TestMemoryStoreListMedicationsByUser(t *testing.T) {
	s := NewMemoryStore()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	older := domain.Medication{ID: "m1", UserID: "u1", Name: "A", CreatedAt: base}
	newer := domain.Medication{ID: "m2", UserID: "u1", Name: "B", CreatedAt: base.Add(time.Hour)}
	other := domain.Medication{ID: "m3", UserID: "u2", Name: "C", CreatedAt: base}
	for _, m := range []domain.Medication{older, newer, other} {
		if err := s.CreateMedication(m); err != nil {
			t.Fatalf("create medication: %v", err)
		}
	}
	pastLog := domain.MedicationLog{ID: "l1", MedicationID: "m2", UserID: "u1", ScheduledTime: base.AddDate(0, 0, -1)}
	futureLog := domain.MedicationLog{ID: "l2", MedicationID: "m2", UserID: "u1", ScheduledTime: base.AddDate(0, 0, 1)}
	if err := s.CreateMedicationLogs([]domain.MedicationLog{pastLog, futureLog}); err != nil {
		t.Fatalf("create logs: %v", err)
	}

	meds, err := s.ListMedicationsByUser("u1", base)
	if err != nil {
		t.Fatalf("list medications: %v", err)
	}
	if len(meds) != 2 {
		t.Fatalf("expected 2 medications for u1, got %d", len(meds))
	}
	if meds[0].ID != "m2" || meds[1].ID != "m1" {
		t.Fatalf("expected newest-first order, got %s then %s", meds[0].ID, meds[1].ID)
	}
	if len(meds[0].Logs) != 1 || meds[0].Logs[0].ID != "l2" {
		t.Fatalf("expected only the future log attached, got %+v", meds[0].Logs)
	}
	if len(meds[1].Logs) != 0 {
		t.Fatalf("expected no logs for m1, got %d", len(meds[1].Logs))
	}
}
