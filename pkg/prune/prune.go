// Package prune удаляет пустую структуру из JSON-подобных значений.
//
// Пакет ничего не знает о предметной области: он работает только с тем,
// что возвращает encoding/json при декодировании в any
// (map[string]any, []any, string, float64, json.Number, bool, nil).
package prune

// IsEmpty сообщает, считается ли значение пустым: nil, пустая строка,
// пустой объект или пустой массив.
func IsEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	}
	return false
}

// Value возвращает копию v без пустых скаляров, объектов и массивов.
// Если после очистки ничего не осталось, возвращается nil.
// Исходное значение не изменяется.
func Value(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return Object(t)
	case []any:
		return Array(t)
	}
	if IsEmpty(v) {
		return nil
	}
	return v
}

// Object очищает каждое свойство объекта и отбрасывает пустые.
// Пустой результат возвращается как nil.
func Object(m map[string]any) any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if pv := Value(v); pv != nil {
			out[k] = pv
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Array очищает каждый элемент массива и отбрасывает пустые, сохраняя порядок.
func Array(a []any) any {
	out := make([]any, 0, len(a))
	for _, v := range a {
		if pv := Value(v); pv != nil {
			out = append(out, pv)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Filter оставляет в массиве только элементы, для которых keep вернул true.
// Пустой результат возвращается как nil.
func Filter(a []any, keep func(any) bool) any {
	out := make([]any, 0, len(a))
	for _, v := range a {
		if keep(v) {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
