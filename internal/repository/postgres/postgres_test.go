package postgres

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"car_intake/internal/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRepo(t *testing.T) *IntakeRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "intake.db")), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.Intake{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewIntakeRepository(db)
}

func payload(branch string) map[string]any {
	return map[string]any{
		"client": map[string]any{"firstName": "فهد", "branch": branch},
		"order": map[string]any{
			"services": []any{map[string]any{"id": "service-1", "serviceType": "polish", "servicePrice": "100"}},
		},
	}
}

func TestIntakeRepository_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if err := repo.SaveIntake(ctx, "ref-1", payload("riyadh")); err != nil {
		t.Fatalf("SaveIntake вернул ошибку: %v", err)
	}
	got, err := repo.GetByReference(ctx, "ref-1")
	if err != nil {
		t.Fatalf("GetByReference: %v", err)
	}
	if got.Branch != "riyadh" || got.ClientName != "فهد" || got.ServiceTypes != "polish" {
		t.Errorf("unexpected intake: %+v", got)
	}
	if got.Total.String() != "105" {
		t.Errorf("Total = %s, want 105", got.Total)
	}

	if _, err := repo.GetByReference(ctx, "missing"); !errors.Is(err, ErrIntakeNotFound) {
		t.Errorf("ожидали ErrIntakeNotFound, получили %v", err)
	}
}

func TestIntakeRepository_ResubmitUpdatesAndRequeues(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if err := repo.SaveIntake(ctx, "ref-1", payload("riyadh")); err != nil {
		t.Fatal(err)
	}
	first, _ := repo.GetByReference(ctx, "ref-1")
	if err := repo.UpdateSheetIsSynced(ctx, first.ID, true); err != nil {
		t.Fatal(err)
	}
	unsynced, err := repo.GetUnsyncedIntakes(ctx)
	if err != nil || len(unsynced) != 0 {
		t.Fatalf("ожидали 0 несинхронизированных, получили %d (%v)", len(unsynced), err)
	}

	if err := repo.SaveIntake(ctx, "ref-1", payload("dammam")); err != nil {
		t.Fatalf("повторная отправка: %v", err)
	}
	unsynced, err = repo.GetUnsyncedIntakes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(unsynced) != 1 || unsynced[0].Branch != "dammam" || unsynced[0].ID != first.ID {
		t.Errorf("unexpected unsynced rows: %+v", unsynced)
	}
}
