package intake_sync

import (
	"context"
	"fmt"
	"sync"

	"car_intake/internal/domain"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Worker выгружает сохраненные заявки в таблицу по расписанию и по сигналу.
type Worker struct {
	logger       *zap.Logger
	SheetService domain.SheetService
	IntakeRepo   domain.IntakeRepo

	schedule      string
	forceUpdateCh chan struct{}
	mu            sync.Mutex
}

// NewWorker проверяет расписание (формат cron или "@every 10m") и создает воркер.
// forceUpdateCh общий с обработчиком бота: он пишет туда после каждой отправки заявки.
func NewWorker(sheetService domain.SheetService, intakeRepo domain.IntakeRepo, logger *zap.Logger, schedule string, forceUpdateCh chan struct{}) (*Worker, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid sync schedule %q: %w", schedule, err)
	}
	if forceUpdateCh == nil {
		forceUpdateCh = make(chan struct{}, 1)
	}
	return &Worker{
		logger:        logger,
		SheetService:  sheetService,
		IntakeRepo:    intakeRepo,
		schedule:      schedule,
		forceUpdateCh: forceUpdateCh,
	}, nil
}

// Run блокируется до отмены ctx. Дожидается завершения текущей выгрузки.
func (w *Worker) Run(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(w.schedule, func() { w.SyncUnsynced(ctx) }); err != nil {
		return fmt.Errorf("schedule sync: %w", err)
	}
	c.Start()
	w.logger.Info("intake sync started", zap.String("schedule", w.schedule))

	for {
		select {
		case <-w.forceUpdateCh:
			w.SyncUnsynced(ctx)
		case <-ctx.Done():
			<-c.Stop().Done()
			w.logger.Info("intake sync stopped")
			return nil
		}
	}
}

// SyncUnsynced выгружает заявки с SheetIsSynced=false и возвращает число выгруженных.
// Заявка, которую не удалось выгрузить, остается в очереди до следующего запуска.
func (w *Worker) SyncUnsynced(ctx context.Context) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	intakes, err := w.IntakeRepo.GetUnsyncedIntakes(ctx)
	if err != nil {
		w.logger.Error("error getting unsynced intakes", zap.Error(err))
		return 0
	}
	synced := 0
	for _, intake := range intakes {
		if ctx.Err() != nil {
			break
		}
		if err := w.SheetService.AppendIntake(intake); err != nil {
			w.logger.Error("error appending intake to sheet", zap.Error(err), zap.String("reference", intake.Reference))
			continue
		}
		if err := w.IntakeRepo.UpdateSheetIsSynced(ctx, intake.ID, true); err != nil {
			w.logger.Error("error updating SheetIsSynced", zap.Error(err), zap.String("reference", intake.Reference))
			continue
		}
		synced++
	}
	if synced > 0 {
		w.logger.Info("intakes synced", zap.Int("count", synced), zap.Int("pending", len(intakes)-synced))
	}
	return synced
}

// ForceUpdate немедленно запускает выгрузку
func (w *Worker) ForceUpdate() {
	select {
	case w.forceUpdateCh <- struct{}{}:
	default:
	}
}
