package form

import (
	"time"

	"car_intake/pkg/prune"
)

const (
	keyServices  = "services"
	keyGuarantee = "guarantee"
)

// Normalize приводит JSON-подобную запись к минимальному виду перед сохранением.
// Возвращает nil, если от записи ничего не осталось. Повторный вызов
// на результате ничего не меняет.
//
// Порядок проходов:
//  1. удаление гарантий без типа и дат;
//  2. общая очистка пустой структуры (pkg/prune);
//  3. отбор услуг: остаются только услуги с видом, описанием сделки
//     или типом гарантии, после чего очистка повторяется;
//  4. перевод дат гарантии в метки времени.
func Normalize(record any) any {
	v := dropBlankGuarantees(record)
	v = prune.Value(v)
	v = prune.Value(retainServices(v))
	return stampGuaranteeDates(v)
}

func dropBlankGuarantees(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			if k == keyGuarantee {
				if g, ok := child.(map[string]any); ok && blankGuarantee(g) {
					continue
				}
			}
			out[k] = dropBlankGuarantees(child)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = dropBlankGuarantees(child)
		}
		return out
	}
	return v
}

// blankGuarantee проверяет значения уже после очистки: вложенная пустая
// структура вроде [""] тоже считается отсутствующей.
func blankGuarantee(g map[string]any) bool {
	return prune.Value(g["typeGuarantee"]) == nil &&
		prune.Value(g["startDate"]) == nil &&
		prune.Value(g["endDate"]) == nil
}

func retainServices(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			if arr, ok := child.([]any); ok && k == keyServices {
				out[k] = prune.Filter(arr, isMeaningfulService)
				continue
			}
			out[k] = retainServices(child)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = retainServices(child)
		}
		return out
	}
	return v
}

// isMeaningfulService новая незаполненная услуга не сохраняется,
// даже если у нее есть id.
func isMeaningfulService(v any) bool {
	s, ok := v.(map[string]any)
	if !ok {
		return false
	}
	if !prune.IsEmpty(s[string(FieldServiceType)]) || !prune.IsEmpty(s[string(FieldDealDetails)]) {
		return true
	}
	g, ok := s[keyGuarantee].(map[string]any)
	return ok && !prune.IsEmpty(g["typeGuarantee"])
}

func stampGuaranteeDates(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if g, ok := child.(map[string]any); ok && k == keyGuarantee {
				stampDate(g, "startDate")
				stampDate(g, "endDate")
				continue
			}
			stampGuaranteeDates(child)
		}
	case []any:
		for _, child := range t {
			stampGuaranteeDates(child)
		}
	}
	return v
}

// stampDate переводит календарную дату в метку времени (полночь UTC).
// Неразбираемое значение остается как есть.
func stampDate(g map[string]any, key string) {
	s, ok := g[key].(string)
	if !ok {
		return
	}
	if t, ok := ParseDate(s); ok {
		g[key] = t.UTC().Format(time.RFC3339)
	}
}
