package form

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// ServiceType основной дискриминатор услуги.
type ServiceType string

const (
	Polish     ServiceType = "polish"
	Protection ServiceType = "protection"
	Insulator  ServiceType = "insulator"
	Additions  ServiceType = "additions"
)

// Field ключ атрибута в JSON-представлении записи.
type Field string

const (
	FieldServiceType  Field = "serviceType"
	FieldDealDetails  Field = "dealDetails"
	FieldServicePrice Field = "servicePrice"
	FieldServiceDate  Field = "serviceDate"

	FieldPolishType    Field = "polishType"
	FieldPolishSubType Field = "polishSubType"

	FieldProtectionFinish   Field = "protectionFinish"
	FieldProtectionSize     Field = "protectionSize"
	FieldProtectionCoverage Field = "protectionCoverage"

	FieldInsulatorType     Field = "insulatorType"
	FieldInsulatorCoverage Field = "insulatorCoverage"

	FieldAdditionType Field = "additionType"
	FieldWashScope    Field = "washScope"
)

// Attributes вариант атрибутов конкретного вида услуги.
// Реализации есть только в этом пакете, менять значения может только Resolver.
type Attributes interface {
	Kind() ServiceType
	Get(f Field) string
	with(f Field, v string) (Attributes, bool)
}

// NewAttributes пустой вариант для вида услуги; nil для неизвестного вида.
func NewAttributes(kind ServiceType) Attributes {
	switch kind {
	case Polish:
		return PolishAttributes{}
	case Protection:
		return ProtectionAttributes{}
	case Insulator:
		return InsulatorAttributes{}
	case Additions:
		return AdditionsAttributes{}
	}
	return nil
}

type PolishAttributes struct {
	PolishType    string
	PolishSubType string
}

func (PolishAttributes) Kind() ServiceType { return Polish }

func (a PolishAttributes) Get(f Field) string {
	switch f {
	case FieldPolishType:
		return a.PolishType
	case FieldPolishSubType:
		return a.PolishSubType
	}
	return ""
}

func (a PolishAttributes) with(f Field, v string) (Attributes, bool) {
	switch f {
	case FieldPolishType:
		a.PolishType = v
	case FieldPolishSubType:
		a.PolishSubType = v
	default:
		return a, false
	}
	return a, true
}

type ProtectionAttributes struct {
	ProtectionFinish   string
	ProtectionSize     string
	ProtectionCoverage string
}

func (ProtectionAttributes) Kind() ServiceType { return Protection }

func (a ProtectionAttributes) Get(f Field) string {
	switch f {
	case FieldProtectionFinish:
		return a.ProtectionFinish
	case FieldProtectionSize:
		return a.ProtectionSize
	case FieldProtectionCoverage:
		return a.ProtectionCoverage
	}
	return ""
}

func (a ProtectionAttributes) with(f Field, v string) (Attributes, bool) {
	switch f {
	case FieldProtectionFinish:
		a.ProtectionFinish = v
	case FieldProtectionSize:
		a.ProtectionSize = v
	case FieldProtectionCoverage:
		a.ProtectionCoverage = v
	default:
		return a, false
	}
	return a, true
}

type InsulatorAttributes struct {
	InsulatorType     string
	InsulatorCoverage string
}

func (InsulatorAttributes) Kind() ServiceType { return Insulator }

func (a InsulatorAttributes) Get(f Field) string {
	switch f {
	case FieldInsulatorType:
		return a.InsulatorType
	case FieldInsulatorCoverage:
		return a.InsulatorCoverage
	}
	return ""
}

func (a InsulatorAttributes) with(f Field, v string) (Attributes, bool) {
	switch f {
	case FieldInsulatorType:
		a.InsulatorType = v
	case FieldInsulatorCoverage:
		a.InsulatorCoverage = v
	default:
		return a, false
	}
	return a, true
}

type AdditionsAttributes struct {
	AdditionType string
	WashScope    string
}

func (AdditionsAttributes) Kind() ServiceType { return Additions }

func (a AdditionsAttributes) Get(f Field) string {
	switch f {
	case FieldAdditionType:
		return a.AdditionType
	case FieldWashScope:
		return a.WashScope
	}
	return ""
}

func (a AdditionsAttributes) with(f Field, v string) (Attributes, bool) {
	switch f {
	case FieldAdditionType:
		a.AdditionType = v
	case FieldWashScope:
		a.WashScope = v
	default:
		return a, false
	}
	return a, true
}

// GuaranteeRecord гарантия, принадлежащая ровно одной услуге.
// Даты хранятся в формате DateLayout.
type GuaranteeRecord struct {
	ID            string `json:"id"`
	TypeGuarantee string `json:"typeGuarantee"`
	StartDate     string `json:"startDate"`
	EndDate       string `json:"endDate"`
	Terms         string `json:"terms" validate:"max=2000"`
	Notes         string `json:"notes" validate:"max=2000"`
}

// ServiceRecord заказанная услуга. Attributes либо nil, либо соответствует ServiceType.
// JSON-теги описывают имена полей для валидации; сериализация идет через MarshalJSON.
type ServiceRecord struct {
	ID           string           `json:"id" validate:"required"`
	ServiceType  ServiceType      `json:"serviceType" validate:"required,oneof=polish protection insulator additions"`
	Attributes   Attributes       `json:"-" validate:"-"`
	DealDetails  string           `json:"dealDetails" validate:"max=2000"`
	ServicePrice *decimal.Decimal `json:"servicePrice" validate:"-"`
	ServiceDate  string           `json:"serviceDate" validate:"omitempty,datetime=2006-01-02"`
	Guarantee    *GuaranteeRecord `json:"guarantee"`
}

// Attr значение атрибута варианта или пустая строка.
func (s ServiceRecord) Attr(f Field) string {
	if s.Attributes == nil {
		return ""
	}
	return s.Attributes.Get(f)
}

// MarshalJSON выдает плоский объект: атрибуты варианта лежат рядом с общими полями.
// Поля других видов услуг в вывод не попадают.
func (s ServiceRecord) MarshalJSON() ([]byte, error) {
	m := map[string]any{
		"id":                      s.ID,
		string(FieldServiceType):  string(s.ServiceType),
		string(FieldDealDetails):  s.DealDetails,
		string(FieldServiceDate):  s.ServiceDate,
		string(FieldServicePrice): nil,
	}
	if s.ServicePrice != nil {
		m[string(FieldServicePrice)] = json.Number(s.ServicePrice.String())
	}
	if s.Attributes != nil {
		for _, f := range defaultSchema.KindFields(s.Attributes.Kind()) {
			m[string(f)] = s.Attributes.Get(f)
		}
	}
	if s.Guarantee != nil {
		m["guarantee"] = s.Guarantee
	}
	return json.Marshal(m)
}

// UnmarshalJSON принимает плоский объект. Атрибуты проходят через Resolver,
// поэтому значения, не применимые к виду услуги, отбрасываются.
func (s *ServiceRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	str := func(key Field) (string, error) { return rawString(raw[string(key)]) }

	var out ServiceRecord
	var err error
	if out.ID, err = rawString(raw["id"]); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	kind, err := str(FieldServiceType)
	if err != nil {
		return fmt.Errorf("%s: %w", FieldServiceType, err)
	}
	if out.DealDetails, err = str(FieldDealDetails); err != nil {
		return fmt.Errorf("%s: %w", FieldDealDetails, err)
	}
	if out.ServiceDate, err = str(FieldServiceDate); err != nil {
		return fmt.Errorf("%s: %w", FieldServiceDate, err)
	}
	price, err := str(FieldServicePrice)
	if err != nil {
		return fmt.Errorf("%s: %w", FieldServicePrice, err)
	}
	if price != "" {
		d, err := decimal.NewFromString(price)
		if err != nil {
			return fmt.Errorf("%s: %w", FieldServicePrice, err)
		}
		out.ServicePrice = &d
	}
	if g, ok := raw["guarantee"]; ok && !isNull(g) {
		out.Guarantee = &GuaranteeRecord{}
		if err := json.Unmarshal(g, out.Guarantee); err != nil {
			return fmt.Errorf("guarantee: %w", err)
		}
	}

	r := defaultResolver
	out = r.ChangeKind(out, ServiceType(kind))
	for _, f := range defaultSchema.KindFields(out.ServiceType) {
		v, err := str(f)
		if err != nil {
			return fmt.Errorf("%s: %w", f, err)
		}
		if v == "" {
			continue
		}
		if next, err := r.SetField(out, f, v); err == nil {
			out = next
		}
	}
	*s = out
	return nil
}

// CarSummary сведения об автомобиле клиента.
type CarSummary struct {
	Manufacturer   string `json:"carManufacturer" validate:"max=100"`
	Model          string `json:"carModel" validate:"max=100"`
	Color          string `json:"carColor" validate:"max=50"`
	Size           string `json:"carSize" validate:"omitempty,oneof=small medium large x_large"`
	CarPlateNumber string `json:"carPlateNumber" validate:"required,plate"`
}

// ClientRecord карточка клиента.
type ClientRecord struct {
	FirstName   string     `json:"firstName" validate:"required,max=100"`
	LastName    string     `json:"lastName" validate:"required,max=100"`
	CompanyName string     `json:"companyName" validate:"required_if=ClientType company,max=255"`
	Phone       string     `json:"phone" validate:"required,numeric,len=10,startswith=05"`
	Email       string     `json:"email" validate:"omitempty,email"`
	ClientType  string     `json:"clientType" validate:"required,oneof=individual company"`
	Branch      string     `json:"branch" validate:"required"`
	Car         CarSummary `json:"carSummary"`
}

// OrderRecord заказ: автомобиль и услуги в порядке добавления.
type OrderRecord struct {
	Car      CarSummary      `json:"carSummary"`
	Services []ServiceRecord `json:"services" validate:"min=1,dive"`
}

// Record полная запись формы приема.
type Record struct {
	Client ClientRecord `json:"client"`
	Order  OrderRecord  `json:"order"`
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// rawString читает строку или число; отсутствующее значение и null дают "".
func rawString(raw json.RawMessage) (string, error) {
	if isNull(raw) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}
