package intake_sync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"car_intake/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type fakeRepo struct {
	mu      sync.Mutex
	intakes []model.Intake
	synced  map[uint]bool
}

func newFakeRepo(refs ...string) *fakeRepo {
	r := &fakeRepo{synced: map[uint]bool{}}
	for i, ref := range refs {
		r.intakes = append(r.intakes, model.Intake{Model: gorm.Model{ID: uint(i + 1)}, Reference: ref})
	}
	return r
}

func (r *fakeRepo) SaveIntake(ctx context.Context, reference string, payload map[string]any) error {
	return nil
}

func (r *fakeRepo) GetByReference(ctx context.Context, reference string) (*model.Intake, error) {
	return nil, errors.New("not implemented")
}

func (r *fakeRepo) GetUnsyncedIntakes(ctx context.Context) ([]model.Intake, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Intake
	for _, in := range r.intakes {
		if !r.synced[in.ID] {
			out = append(out, in)
		}
	}
	return out, nil
}

func (r *fakeRepo) UpdateSheetIsSynced(ctx context.Context, id uint, synced bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.synced[id] = synced
	return nil
}

func (r *fakeRepo) syncedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ok := range r.synced {
		if ok {
			n++
		}
	}
	return n
}

type fakeSheet struct {
	mu       sync.Mutex
	rows     []string
	failRefs map[string]bool
}

func (s *fakeSheet) AppendIntake(intake model.Intake) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failRefs[intake.Reference] {
		return errors.New("quota exceeded")
	}
	s.rows = append(s.rows, intake.Reference)
	return nil
}

func (s *fakeSheet) appended() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.rows...)
}

func TestNewWorker_InvalidSchedule(t *testing.T) {
	_, err := NewWorker(&fakeSheet{}, newFakeRepo(), zaptest.NewLogger(t), "every ten minutes", nil)
	require.Error(t, err)
}

func TestSyncUnsynced_FailedAppendStaysQueued(t *testing.T) {
	repo := newFakeRepo("ref-1", "ref-2", "ref-3")
	sheet := &fakeSheet{failRefs: map[string]bool{"ref-2": true}}
	w, err := NewWorker(sheet, repo, zaptest.NewLogger(t), "@every 1h", nil)
	require.NoError(t, err)

	assert.Equal(t, 2, w.SyncUnsynced(context.Background()))
	assert.Equal(t, []string{"ref-1", "ref-3"}, sheet.appended())

	pending, err := repo.GetUnsyncedIntakes(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "ref-2", pending[0].Reference)

	sheet.failRefs = nil
	assert.Equal(t, 1, w.SyncUnsynced(context.Background()))
	assert.Equal(t, 0, w.SyncUnsynced(context.Background()))
}

func TestRun_ForceUpdateAndShutdown(t *testing.T) {
	defer goleak.VerifyNone(t)

	repo := newFakeRepo("ref-1", "ref-2")
	sheet := &fakeSheet{}
	w, err := NewWorker(sheet, repo, zaptest.NewLogger(t), "@every 1h", make(chan struct{}, 1))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	w.ForceUpdate()
	require.Eventually(t, func() bool { return repo.syncedCount() == 2 }, time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{"ref-1", "ref-2"}, sheet.appended())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("воркер не остановился после отмены контекста")
	}
}

func TestForceUpdate_DoesNotBlock(t *testing.T) {
	w, err := NewWorker(&fakeSheet{}, newFakeRepo(), zaptest.NewLogger(t), "*/5 * * * *", make(chan struct{}, 1))
	require.NoError(t, err)
	w.ForceUpdate()
	w.ForceUpdate()
	assert.Len(t, w.forceUpdateCh, 1)
}
