package sheet

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"car_intake/internal/model"

	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const createdAtLayout = "02.01.2006 15:04"

type SheetService struct {
	SpreadsheetID string
	SheetID       string
	SheetName     string
	srv           *sheets.Service
	limiter       *rate.Limiter
	colMap        ColumnMap
}

type ColumnMap map[string]int // например: "N": 0, "Reference": 1, ...

// Создает ColumnMap по умолчанию (жестко заданный порядок)
func NewDefaultColumnMap() ColumnMap {
	return ColumnMap{
		"N":         0,
		"Reference": 1,
		"Name":      2,
		"Phone":     3,
		"Branch":    4,
		"Plate":     5,
		"Services":  6,
		"Total":     7,
		"CreatedAt": 8,
	}
}

// Создает ColumnMap из строки порядка (например: "N,Reference,Name,Phone")
func CreateColumnMapFromOrder(order string) ColumnMap {
	if strings.TrimSpace(order) == "" {
		return NewDefaultColumnMap()
	}
	m := make(ColumnMap)
	idx := 0
	for _, field := range strings.Split(order, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		m[field] = idx
		idx++
	}
	return m
}

// Width количество колонок в строке.
func (m ColumnMap) Width() int {
	width := 0
	for _, idx := range m {
		if idx+1 > width {
			width = idx + 1
		}
	}
	return width
}

// Row раскладывает заявку по колонкам. Неизвестные колонки остаются пустыми.
func (m ColumnMap) Row(intake model.Intake) []interface{} {
	values := make([]interface{}, m.Width())
	for i := range values {
		values[i] = ""
	}
	for field, idx := range m {
		switch field {
		case "N":
			values[idx] = intake.ID
		case "Reference":
			values[idx] = intake.Reference
		case "Name":
			values[idx] = intake.ClientName
		case "Phone":
			values[idx] = intake.Phone
		case "Branch":
			values[idx] = intake.Branch
		case "Plate":
			values[idx] = intake.PlateNumber
		case "Services":
			values[idx] = intake.ServiceTypes
		case "Total":
			values[idx] = intake.Total.StringFixed(2)
		case "CreatedAt":
			values[idx] = intake.CreatedAt.Format(createdAtLayout)
		}
	}
	return values
}

// Конструктор SheetService. pauseMs минимальная пауза между запросами в миллисекундах.
func NewSheetService(base64Creds, spreadsheetID, sheetID string, pauseMs int, colMap ColumnMap) (*SheetService, error) {
	ctx := context.Background()
	credBytes, err := base64.StdEncoding.DecodeString(base64Creds)
	if err != nil {
		return nil, fmt.Errorf("не удается декодировать credentials из base64: %v", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, credBytes, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("не удается создать credentials из JSON: %v", err)
	}
	srv, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("не удается инициализировать сервис Google Sheets: %v", err)
	}

	s := &SheetService{
		SpreadsheetID: spreadsheetID,
		SheetID:       sheetID,
		srv:           srv,
		limiter:       newLimiter(pauseMs),
		colMap:        colMap,
	}

	// Получаем имя листа
	if err := s.fetchSheetName(); err != nil {
		return nil, fmt.Errorf("не удается получить имя листа: %v", err)
	}

	return s, nil
}

func newLimiter(pauseMs int) *rate.Limiter {
	if pauseMs <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Duration(pauseMs)*time.Millisecond), 1)
}

func (s *SheetService) fetchSheetName() error {
	s.Wait()

	resp, err := s.srv.Spreadsheets.Get(s.SpreadsheetID).Do()
	if err != nil {
		return fmt.Errorf("ошибка получения информации о таблице: %v", err)
	}

	for _, sheet := range resp.Sheets {
		if fmt.Sprint(sheet.Properties.SheetId) == s.SheetID {
			s.SheetName = sheet.Properties.Title
			return nil
		}
	}

	return fmt.Errorf("лист с ID %s не найден", s.SheetID)
}

// Лимитер: вызывает паузу между запросами
func (s *SheetService) Wait() {
	_ = s.limiter.Wait(context.Background())
}

// AppendIntake добавляет заявку строкой после последней заполненной.
func (s *SheetService) AppendIntake(intake model.Intake) error {
	s.Wait()

	vr := &sheets.ValueRange{
		Values: [][]interface{}{s.colMap.Row(intake)},
	}
	rangeStr := fmt.Sprintf("%s!A1", s.SheetName)
	_, err := s.srv.Spreadsheets.Values.Append(s.SpreadsheetID, rangeStr, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Do()
	if err != nil {
		return fmt.Errorf("ошибка вставки в таблицу: %w", err)
	}
	return nil
}
