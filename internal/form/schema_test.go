package form

import (
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSchema_Kinds(t *testing.T) {
	s := DefaultSchema()
	for _, kind := range []ServiceType{Polish, Protection, Insulator, Additions} {
		_, ok := s.Kind(kind)
		assert.True(t, ok, "kind %s missing", kind)
	}
	_, ok := s.Kind("unknown")
	assert.False(t, ok)
	assert.Equal(t, []Field{FieldServiceType, FieldDealDetails, FieldServicePrice, FieldServiceDate}, s.Base)
}

func TestSchema_KindFields(t *testing.T) {
	s := DefaultSchema()
	tests := []struct {
		kind ServiceType
		want []Field
	}{
		{Polish, []Field{FieldPolishType, FieldPolishSubType}},
		{Protection, []Field{FieldProtectionFinish, FieldProtectionSize, FieldProtectionCoverage}},
		{Insulator, []Field{FieldInsulatorType, FieldInsulatorCoverage}},
		{Additions, []Field{FieldAdditionType, FieldWashScope}},
		{"unknown", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.KindFields(tt.kind), "kind %s", tt.kind)
	}
}

func TestSchema_GatedBy(t *testing.T) {
	s := DefaultSchema()
	assert.Equal(t, []Field{FieldPolishSubType}, s.GatedBy(Polish, FieldPolishType))
	assert.Equal(t, []Field{FieldProtectionSize}, s.GatedBy(Protection, FieldProtectionFinish))
	assert.Equal(t, []Field{FieldWashScope}, s.GatedBy(Additions, FieldAdditionType))
	assert.Empty(t, s.GatedBy(Protection, FieldProtectionCoverage))
	assert.Empty(t, s.GatedBy(Insulator, FieldInsulatorType))
}

// Каждое поле таблицы должно храниться в своем варианте атрибутов.
func TestSchema_MatchesVariants(t *testing.T) {
	s := DefaultSchema()
	for _, k := range s.Kinds {
		attrs := NewAttributes(k.Kind)
		require.NotNil(t, attrs, "no variant for %s", k.Kind)
		for _, f := range s.KindFields(k.Kind) {
			next, ok := attrs.with(f, "x")
			require.True(t, ok, "%s does not store %s", k.Kind, f)
			assert.Equal(t, "x", next.Get(f))
		}
	}
}

// Справочники таблицы и правила oneof в тегах не должны расходиться.
func TestSchema_CatalogsMatchValidationTags(t *testing.T) {
	s := DefaultSchema()
	oneof := func(typ reflect.Type, field string) []string {
		f, ok := typ.FieldByName(field)
		require.True(t, ok)
		for _, rule := range strings.Split(f.Tag.Get("validate"), ",") {
			if strings.HasPrefix(rule, "oneof=") {
				return strings.Fields(strings.TrimPrefix(rule, "oneof="))
			}
		}
		t.Fatalf("no oneof rule on %s", field)
		return nil
	}
	values := func(opts []Option) []string {
		var out []string
		for _, o := range opts {
			out = append(out, o.Value)
		}
		return out
	}
	assert.Equal(t, values(s.CarSizes), oneof(reflect.TypeOf(CarSummary{}), "Size"))
	assert.Equal(t, values(s.ClientTypes), oneof(reflect.TypeOf(ClientRecord{}), "ClientType"))

	var kinds []string
	for _, k := range s.Kinds {
		kinds = append(kinds, string(k.Kind))
	}
	assert.Equal(t, kinds, oneof(reflect.TypeOf(ServiceRecord{}), "ServiceType"))
}

func TestSchema_GuaranteesParse(t *testing.T) {
	for _, label := range DefaultSchema().Guarantees {
		n, ok := GuaranteeYears(label)
		assert.True(t, ok, label)
		assert.Positive(t, n, label)
	}
}

func TestParseSchema_Errors(t *testing.T) {
	_, err := ParseSchema([]byte("kinds: [{kind: polish}, {kind: polish}]"))
	assert.Error(t, err)
	_, err = ParseSchema([]byte("kinds: {"))
	assert.Error(t, err)
}
