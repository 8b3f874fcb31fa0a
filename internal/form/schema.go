package form

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed schema.yaml
var schemaYAML []byte

// Option одно допустимое значение поля перечисления.
type Option struct {
	Value string `yaml:"value"`
	Label string `yaml:"label"`
}

// FieldSpec описывает атрибут услуги. Если у поля есть Gates, оно является
// дискриминатором: поля из Gates[v] применимы только при значении v.
type FieldSpec struct {
	Key     Field                  `yaml:"key"`
	Label   string                 `yaml:"label"`
	Options []Option               `yaml:"options"`
	Gates   map[string][]FieldSpec `yaml:"gates"`
}

// OptionByText ищет вариант по подписи или значению.
func (f FieldSpec) OptionByText(text string) (Option, bool) {
	for _, o := range f.Options {
		if o.Label == text || o.Value == text {
			return o, true
		}
	}
	return Option{}, false
}

// KindSpec набор атрибутов одного вида услуги.
type KindSpec struct {
	Kind   ServiceType `yaml:"kind"`
	Label  string      `yaml:"label"`
	Fields []FieldSpec `yaml:"fields"`
}

// Schema декларативная таблица видов услуг и справочников формы.
type Schema struct {
	Base        []Field    `yaml:"base"`
	Kinds       []KindSpec `yaml:"kinds"`
	ClientTypes []Option   `yaml:"clientTypes"`
	CarSizes    []Option   `yaml:"carSizes"`
	Guarantees  []string   `yaml:"guarantees"`

	byKind map[ServiceType]int
	fields map[ServiceType]map[Field]FieldSpec
}

// ParseSchema разбирает таблицу из YAML и строит индексы.
func ParseSchema(data []byte) (*Schema, error) {
	s := &Schema{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	s.byKind = make(map[ServiceType]int, len(s.Kinds))
	s.fields = make(map[ServiceType]map[Field]FieldSpec, len(s.Kinds))
	for i, k := range s.Kinds {
		if _, dup := s.byKind[k.Kind]; dup {
			return nil, fmt.Errorf("parse schema: duplicate kind %q", k.Kind)
		}
		s.byKind[k.Kind] = i
		idx := make(map[Field]FieldSpec)
		walkFields(k.Fields, func(f FieldSpec) { idx[f.Key] = f })
		s.fields[k.Kind] = idx
	}
	return s, nil
}

var defaultSchema = mustParseSchema(schemaYAML)

func mustParseSchema(data []byte) *Schema {
	s, err := ParseSchema(data)
	if err != nil {
		panic(err)
	}
	return s
}

// DefaultSchema встроенная таблица услуг.
func DefaultSchema() *Schema { return defaultSchema }

// Kind возвращает описание вида услуги.
func (s *Schema) Kind(kind ServiceType) (KindSpec, bool) {
	i, ok := s.byKind[kind]
	if !ok {
		return KindSpec{}, false
	}
	return s.Kinds[i], true
}

// Field возвращает описание атрибута в рамках вида услуги,
// включая поля, скрытые за дискриминаторами.
func (s *Schema) Field(kind ServiceType, key Field) (FieldSpec, bool) {
	f, ok := s.fields[kind][key]
	return f, ok
}

// KindFields все атрибуты вида услуги в порядке таблицы, без повторов.
func (s *Schema) KindFields(kind ServiceType) []Field {
	k, ok := s.Kind(kind)
	if !ok {
		return nil
	}
	var out []Field
	seen := map[Field]bool{}
	walkFields(k.Fields, func(f FieldSpec) {
		if !seen[f.Key] {
			seen[f.Key] = true
			out = append(out, f.Key)
		}
	})
	return out
}

// GatedBy атрибуты, применимость которых зависит от дискриминатора key
// при любом его значении, включая вложенные уровни.
func (s *Schema) GatedBy(kind ServiceType, key Field) []Field {
	f, ok := s.Field(kind, key)
	if !ok {
		return nil
	}
	var out []Field
	seen := map[Field]bool{}
	for _, opt := range f.Options {
		walkFields(f.Gates[opt.Value], func(g FieldSpec) {
			if !seen[g.Key] {
				seen[g.Key] = true
				out = append(out, g.Key)
			}
		})
	}
	return out
}

// walkFields обходит поля в порядке таблицы. Ветки gates перебираются
// в порядке Options, чтобы результат не зависел от порядка обхода map.
func walkFields(fields []FieldSpec, fn func(FieldSpec)) {
	for _, f := range fields {
		fn(f)
		for _, opt := range f.Options {
			walkFields(f.Gates[opt.Value], fn)
		}
	}
}
