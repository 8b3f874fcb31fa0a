package form

import "errors"

var ErrFieldNotApplicable = errors.New("field is not applicable to the service")

// Resolver единственное место, где материализуются и очищаются варианты атрибутов.
type Resolver struct {
	schema *Schema
}

func NewResolver(schema *Schema) *Resolver {
	return &Resolver{schema: schema}
}

var defaultResolver = NewResolver(defaultSchema)

// ResolveVisibleFields видимые поля услуги по встроенной таблице.
func ResolveVisibleFields(rec ServiceRecord) []Field {
	return defaultResolver.VisibleFields(rec)
}

// OnKindChange смена вида услуги по встроенной таблице.
func OnKindChange(rec ServiceRecord, kind ServiceType) ServiceRecord {
	return defaultResolver.ChangeKind(rec, kind)
}

// VisibleFields базовые поля плюс атрибуты, применимые к текущему виду
// и выбранным значениям дискриминаторов. Для неизвестного вида только базовые.
func (r *Resolver) VisibleFields(rec ServiceRecord) []Field {
	out := append([]Field(nil), r.schema.Base...)
	k, ok := r.schema.Kind(rec.ServiceType)
	if !ok || rec.Attributes == nil {
		return out
	}
	var walk func([]FieldSpec)
	walk = func(fields []FieldSpec) {
		for _, f := range fields {
			out = append(out, f.Key)
			if f.Gates != nil {
				walk(f.Gates[rec.Attributes.Get(f.Key)])
			}
		}
	}
	walk(k.Fields)
	return out
}

// IsVisible проверяет одно поле.
func (r *Resolver) IsVisible(rec ServiceRecord, f Field) bool {
	for _, v := range r.VisibleFields(rec) {
		if v == f {
			return true
		}
	}
	return false
}

// PendingField первый видимый атрибут вида услуги, который еще не заполнен.
func (r *Resolver) PendingField(rec ServiceRecord) (FieldSpec, bool) {
	if rec.Attributes == nil {
		return FieldSpec{}, false
	}
	for _, f := range r.VisibleFields(rec)[len(r.schema.Base):] {
		if rec.Attributes.Get(f) == "" {
			return r.schema.Field(rec.ServiceType, f)
		}
	}
	return FieldSpec{}, false
}

// ChangeKind меняет вид услуги. Все атрибуты прежнего вида, включая
// вложенные, сбрасываются; общие поля и гарантия сохраняются.
// Повторный выбор того же вида ничего не меняет.
func (r *Resolver) ChangeKind(rec ServiceRecord, kind ServiceType) ServiceRecord {
	if rec.ServiceType == kind && rec.Attributes != nil {
		return rec
	}
	rec.ServiceType = kind
	rec.Attributes = nil
	if _, ok := r.schema.Kind(kind); ok {
		rec.Attributes = NewAttributes(kind)
	}
	return rec
}

// SetField записывает атрибут. Для дискриминатора сначала очищаются поля,
// которые он открывает, затем записывается новое значение.
// Поле, не видимое в текущем состоянии, не записывается.
func (r *Resolver) SetField(rec ServiceRecord, f Field, v string) (ServiceRecord, error) {
	if f == FieldServiceType {
		return r.ChangeKind(rec, ServiceType(v)), nil
	}
	if rec.Attributes == nil {
		return rec, ErrFieldNotApplicable
	}
	if _, ok := r.schema.Field(rec.ServiceType, f); !ok || !r.IsVisible(rec, f) {
		return rec, ErrFieldNotApplicable
	}
	attrs := rec.Attributes
	for _, g := range r.schema.GatedBy(rec.ServiceType, f) {
		attrs, _ = attrs.with(g, "")
	}
	attrs, ok := attrs.with(f, v)
	if !ok {
		return rec, ErrFieldNotApplicable
	}
	rec.Attributes = attrs
	return rec, nil
}
