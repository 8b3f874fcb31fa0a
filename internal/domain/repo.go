package domain

import (
	"context"

	"car_intake/internal/model"
)

type IntakeRepo interface {
	// Сохранение нормализованной заявки; повторная отправка с тем же reference обновляет запись
	SaveIntake(ctx context.Context, reference string, payload map[string]any) error

	// Получение заявки по внешнему номеру
	GetByReference(ctx context.Context, reference string) (*model.Intake, error)

	// Получение всех заявок с SheetIsSynced=false
	GetUnsyncedIntakes(ctx context.Context) ([]model.Intake, error)

	// Обновление поля SheetIsSynced по id
	UpdateSheetIsSynced(ctx context.Context, id uint, synced bool) error
}
