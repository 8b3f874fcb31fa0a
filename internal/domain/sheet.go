package domain

import "car_intake/internal/model"

type SheetService interface {
	AppendIntake(intake model.Intake) error
}
