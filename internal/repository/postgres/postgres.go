package postgres

import (
	"context"
	"errors"
	"fmt"

	"car_intake/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrIntakeNotFound = errors.New("intake not found")

type IntakeRepository struct {
	DB *gorm.DB
}

func NewIntakeRepository(db *gorm.DB) *IntakeRepository {
	return &IntakeRepository{DB: db}
}

// SaveIntake вставка или обновление заявки по reference.
// После обновления заявка снова попадает в очередь выгрузки.
func (r *IntakeRepository) SaveIntake(ctx context.Context, reference string, payload map[string]any) error {
	intake, err := model.NewIntake(reference, payload)
	if err != nil {
		return err
	}
	err = r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "reference"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"updated_at", "client_name", "phone", "branch", "plate_number",
				"service_types", "service_count", "total", "payload", "sheet_is_synced",
			}),
		}).
		Create(intake).Error
	if err != nil {
		return fmt.Errorf("save intake %s: %w", reference, err)
	}
	return nil
}

// Получение заявки по reference
func (r *IntakeRepository) GetByReference(ctx context.Context, reference string) (*model.Intake, error) {
	var intake model.Intake
	err := r.DB.WithContext(ctx).Where("reference = ?", reference).First(&intake).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrIntakeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &intake, nil
}

// Получение всех заявок с SheetIsSynced=false
func (r *IntakeRepository) GetUnsyncedIntakes(ctx context.Context) ([]model.Intake, error) {
	var intakes []model.Intake
	err := r.DB.WithContext(ctx).Where("sheet_is_synced = ?", false).Order("id").Find(&intakes).Error
	return intakes, err
}

// Обновление поля SheetIsSynced по id
func (r *IntakeRepository) UpdateSheetIsSynced(ctx context.Context, id uint, synced bool) error {
	return r.DB.WithContext(ctx).Model(&model.Intake{}).Where("id = ?", id).Update("sheet_is_synced", synced).Error
}
