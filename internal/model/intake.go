package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"car_intake/internal/form"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Intake сохраненная заявка: нормализованная запись формы и колонки для поиска и выгрузки.
type Intake struct {
	gorm.Model
	Reference     string          `json:"reference" gorm:"type:varchar(64);uniqueIndex"`
	ClientName    string          `json:"client_name" gorm:"type:varchar(255)"`
	Phone         string          `json:"phone" gorm:"type:varchar(32);index"`
	Branch        string          `json:"branch" gorm:"type:varchar(64)"`
	PlateNumber   string          `json:"plate_number" gorm:"type:varchar(16);index"`
	ServiceTypes  string          `json:"service_types" gorm:"type:varchar(255)"`
	ServiceCount  int             `json:"service_count"`
	Total         decimal.Decimal `json:"total" gorm:"type:numeric(12,2)"`
	Payload       datatypes.JSON  `json:"payload"`
	SheetIsSynced bool            `json:"sheet_is_synced" gorm:"default:false"`
}

// intakeView поля нормализованной записи, нужные для колонок.
type intakeView struct {
	Client struct {
		FirstName   string `json:"firstName"`
		LastName    string `json:"lastName"`
		CompanyName string `json:"companyName"`
		Phone       string `json:"phone"`
		Branch      string `json:"branch"`
	} `json:"client"`
	Order struct {
		Car struct {
			Plate string `json:"carPlateNumber"`
		} `json:"carSummary"`
		Services []struct {
			ServiceType  string              `json:"serviceType"`
			ServicePrice decimal.NullDecimal `json:"servicePrice"`
		} `json:"services"`
	} `json:"order"`
}

// NewIntake строит строку таблицы из нормализованной записи.
// Итог складывается из цен услуг с налогом.
func NewIntake(reference string, payload map[string]any) (*Intake, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	var v intakeView
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	name := strings.TrimSpace(v.Client.FirstName + " " + v.Client.LastName)
	if v.Client.CompanyName != "" {
		name = strings.TrimSpace(v.Client.CompanyName + " / " + name)
	}

	total := decimal.Zero
	kinds := make([]string, 0, len(v.Order.Services))
	for _, s := range v.Order.Services {
		if s.ServiceType != "" {
			kinds = append(kinds, s.ServiceType)
		}
		if !s.ServicePrice.Valid {
			continue
		}
		if b, ok := form.ComputePriceBreakdown(s.ServicePrice.Decimal); ok {
			total = total.Add(b.Total)
		}
	}

	return &Intake{
		Reference:    reference,
		ClientName:   name,
		Phone:        v.Client.Phone,
		Branch:       v.Client.Branch,
		PlateNumber:  v.Order.Car.Plate,
		ServiceTypes: strings.Join(kinds, ","),
		ServiceCount: len(v.Order.Services),
		Total:        total,
		Payload:      datatypes.JSON(data),
	}, nil
}

// PayloadMap сохраненная запись в виде JSON-объекта.
func (i *Intake) PayloadMap() (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(i.Payload, &m); err != nil {
		return nil, err
	}
	return m, nil
}
