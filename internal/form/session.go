package form

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrLastService      = errors.New("the last remaining service cannot be removed")
	ErrServiceNotFound  = errors.New("service not found")
	ErrNegativePrice    = errors.New("service price must not be negative")
	ErrPlateIncomplete  = errors.New("plate number has empty cells")
	ErrEmptyPayload     = errors.New("nothing to submit")
	ErrUnexpectedRecord = errors.New("unexpected record shape")
)

// Persister внешний получатель нормализованной записи.
type Persister interface {
	SaveIntake(ctx context.Context, reference string, payload map[string]any) error
}

// Session одна сессия редактирования формы приема. Идентификаторы строк
// выдаются локальным счетчиком и не переиспользуются после удаления.
// Сессия не потокобезопасна: у нее один писатель.
type Session struct {
	Reference string
	Client    ClientRecord
	Order     OrderRecord

	resolver   *Resolver
	plateWidth int
	nextID     int
}

// NewSession новая форма с одной пустой услугой.
func NewSession() *Session {
	s := &Session{
		Reference:  uuid.NewString(),
		resolver:   defaultResolver,
		plateWidth: PlateWidthShort,
	}
	s.AddService()
	return s
}

// LoadSession сессия редактирования уже существующей записи.
// Строкам без id выдаются новые, счетчик продолжает максимальный номер.
func LoadSession(reference string, client ClientRecord, order OrderRecord) *Session {
	s := &Session{
		Reference: reference,
		Client:    client,
		Order:     OrderRecord{Car: order.Car},
		resolver:  defaultResolver,
	}
	if s.Reference == "" {
		s.Reference = uuid.NewString()
	}
	if s.Client.Car == (CarSummary{}) {
		s.Client.Car = order.Car
	}
	s.plateWidth = ParsePlate(s.Client.Car.CarPlateNumber).Width()
	s.Client.Car.CarPlateNumber = ParsePlate(s.Client.Car.CarPlateNumber).Encode()

	for _, svc := range order.Services {
		s.observeID(svc.ID)
		if svc.Guarantee != nil {
			s.observeID(svc.Guarantee.ID)
		}
	}
	for _, svc := range order.Services {
		if svc.ID == "" {
			s.nextID++
			svc.ID = s.newID("service")
		}
		if svc.Guarantee == nil {
			svc.Guarantee = &GuaranteeRecord{}
		}
		g := *svc.Guarantee
		if g.ID == "" {
			s.nextID++
			g.ID = s.newID("guarantee")
		}
		g.StartDate = calendarDate(g.StartDate)
		g.EndDate = calendarDate(g.EndDate)
		svc.Guarantee = &g
		svc.ServiceDate = calendarDate(svc.ServiceDate)
		s.Order.Services = append(s.Order.Services, svc)
	}
	if len(s.Order.Services) == 0 {
		s.AddService()
	}
	return s
}

// LoadSessionFromPayload восстанавливает сессию из сохраненной записи.
func LoadSessionFromPayload(reference string, payload map[string]any) (*Session, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return LoadSession(reference, rec.Client, rec.Order), nil
}

func calendarDate(s string) string {
	if t, ok := ParseDate(s); ok {
		return t.Format(DateLayout)
	}
	return s
}

func (s *Session) observeID(id string) {
	i := strings.LastIndexByte(id, '-')
	if i < 0 {
		return
	}
	if n, err := strconv.Atoi(id[i+1:]); err == nil && n > s.nextID {
		s.nextID = n
	}
}

func (s *Session) newID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, s.nextID)
}

// AddService добавляет пустую услугу с пустой гарантией.
func (s *Session) AddService() ServiceRecord {
	s.nextID++
	svc := ServiceRecord{
		ID:        s.newID("service"),
		Guarantee: &GuaranteeRecord{ID: s.newID("guarantee")},
	}
	s.Order.Services = append(s.Order.Services, svc)
	return svc
}

// RemoveService удаляет услугу вместе с ее гарантией. Последнюю услугу удалить нельзя.
func (s *Session) RemoveService(id string) error {
	i, err := s.index(id)
	if err != nil {
		return err
	}
	if len(s.Order.Services) == 1 {
		return ErrLastService
	}
	s.Order.Services = append(s.Order.Services[:i:i], s.Order.Services[i+1:]...)
	return nil
}

// Service копия услуги по id.
func (s *Session) Service(id string) (ServiceRecord, error) {
	i, err := s.index(id)
	if err != nil {
		return ServiceRecord{}, err
	}
	return s.Order.Services[i], nil
}

func (s *Session) index(id string) (int, error) {
	for i, svc := range s.Order.Services {
		if svc.ID == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrServiceNotFound, id)
}

func (s *Session) update(id string, fn func(*ServiceRecord) error) error {
	i, err := s.index(id)
	if err != nil {
		return err
	}
	svc := s.Order.Services[i]
	if err := fn(&svc); err != nil {
		return err
	}
	s.Order.Services[i] = svc
	return nil
}

// Resolver резолвер, через который сессия меняет атрибуты.
func (s *Session) Resolver() *Resolver { return s.resolver }

func (s *Session) SetServiceType(id string, kind ServiceType) error {
	return s.update(id, func(svc *ServiceRecord) error {
		*svc = s.resolver.ChangeKind(*svc, kind)
		return nil
	})
}

func (s *Session) SetServiceField(id string, f Field, value string) error {
	return s.update(id, func(svc *ServiceRecord) error {
		next, err := s.resolver.SetField(*svc, f, value)
		if err != nil {
			return fmt.Errorf("%s: %w", f, err)
		}
		*svc = next
		return nil
	})
}

func (s *Session) SetDealDetails(id, details string) error {
	return s.update(id, func(svc *ServiceRecord) error {
		svc.DealDetails = strings.TrimSpace(details)
		return nil
	})
}

// SetServicePrice nil очищает цену.
func (s *Session) SetServicePrice(id string, price *decimal.Decimal) error {
	if price != nil && price.IsNegative() {
		return ErrNegativePrice
	}
	return s.update(id, func(svc *ServiceRecord) error {
		if price == nil {
			svc.ServicePrice = nil
			return nil
		}
		p := *price
		svc.ServicePrice = &p
		return nil
	})
}

func (s *Session) SetServiceDate(id, date string) error {
	return s.update(id, func(svc *ServiceRecord) error {
		svc.ServiceDate = calendarDate(date)
		return nil
	})
}

// PriceBreakdown разбивка цены услуги, если цена задана.
func (s *Session) PriceBreakdown(id string) (PriceBreakdown, bool) {
	svc, err := s.Service(id)
	if err != nil || svc.ServicePrice == nil {
		return PriceBreakdown{}, false
	}
	return ComputePriceBreakdown(*svc.ServicePrice)
}

func (s *Session) SetGuaranteeType(id, label string) error {
	return s.updateGuarantee(id, true, func(g *GuaranteeRecord) {
		g.TypeGuarantee = strings.TrimSpace(label)
	})
}

func (s *Session) SetGuaranteeStart(id, date string) error {
	return s.updateGuarantee(id, true, func(g *GuaranteeRecord) {
		g.StartDate = calendarDate(date)
	})
}

// SetGuaranteeTerms не трогает дату окончания.
func (s *Session) SetGuaranteeTerms(id, terms string) error {
	return s.updateGuarantee(id, false, func(g *GuaranteeRecord) { g.Terms = terms })
}

func (s *Session) SetGuaranteeNotes(id, notes string) error {
	return s.updateGuarantee(id, false, func(g *GuaranteeRecord) { g.Notes = notes })
}

// updateGuarantee при recompute пересчитывает дату окончания одной и той же
// функцией; если ее нельзя вычислить, прежнее значение стирается.
func (s *Session) updateGuarantee(id string, recompute bool, fn func(*GuaranteeRecord)) error {
	return s.update(id, func(svc *ServiceRecord) error {
		g := GuaranteeRecord{}
		if svc.Guarantee != nil {
			g = *svc.Guarantee
		}
		if g.ID == "" {
			s.nextID++
			g.ID = s.newID("guarantee")
		}
		fn(&g)
		if recompute {
			g.EndDate = GuaranteeEndDate(g.StartDate, g.TypeGuarantee)
		}
		svc.Guarantee = &g
		return nil
	})
}

// Plate номер автомобиля в виде ячеек.
func (s *Session) Plate() Plate {
	return DecodePlate(s.Client.Car.CarPlateNumber, s.plateWidth)
}

func (s *Session) SetPlateCell(i int, ch string) {
	s.setPlate(s.Plate().SetCell(i, ch))
}

// SetPlate заполняет ячейки подряд символами code, остальные очищаются.
func (s *Session) SetPlate(code string) {
	p := DecodePlate("", s.plateWidth)
	i := 0
	for _, r := range code {
		if normalizeCell(r) == Placeholder {
			continue
		}
		p = p.SetCell(i, string(r))
		i++
	}
	s.setPlate(p)
}

func (s *Session) SetPlateWidth(width int) {
	s.setPlate(s.Plate().Resize(width))
}

func (s *Session) setPlate(p Plate) {
	s.plateWidth = p.Width()
	s.Client.Car.CarPlateNumber = p.Encode()
}

// Record копия записи в том виде, в каком она отображается в форме.
func (s *Session) Record() Record {
	rec := Record{Client: s.Client, Order: s.Order}
	rec.Order.Car = s.Client.Car
	rec.Order.Services = append([]ServiceRecord(nil), s.Order.Services...)
	return rec
}

// Payload нормализованная запись для сохранения. Номер с пустыми ячейками
// не отправляется; полностью пустой номер опускается.
func (s *Session) Payload() (map[string]any, error) {
	rec := s.Record()
	plate := s.Plate()
	if !plate.Empty() && !plate.Complete() {
		return nil, ErrPlateIncomplete
	}
	rec.Client.Car.CarPlateNumber = plate.Value()
	rec.Order.Car.CarPlateNumber = plate.Value()

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	out := Normalize(raw)
	if out == nil {
		return nil, ErrEmptyPayload
	}
	m, ok := out.(map[string]any)
	if !ok {
		return nil, ErrUnexpectedRecord
	}
	return m, nil
}

// Submit один вызов получателя. Ошибка получателя возвращается как есть,
// сессия при этом не меняется.
func (s *Session) Submit(ctx context.Context, p Persister) error {
	payload, err := s.Payload()
	if err != nil {
		return err
	}
	return p.SaveIntake(ctx, s.Reference, payload)
}
