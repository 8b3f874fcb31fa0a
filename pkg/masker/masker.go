package masker

import (
	"reflect"
	"time"

	"go.uber.org/zap"
)

// LogConfigs логгирует структуры, в том числе вложенные.
// Если поле помечено тегом masked, то оно будет логгироваться замаскированным.
// Каждая структура логируется отдельной строкой. Вложенные поля не логгируются отдельно.
func LogConfigs(logger *zap.Logger, configs ...interface{}) error {
	for _, config := range configs {

		v := reflect.ValueOf(config)
		t := reflect.TypeOf(config)

		// Если config не указатель, то ошибка
		if v.Kind() == reflect.Ptr {
			v = v.Elem()
			t = t.Elem()
		} else {
			return ErrConfigNotPointer
		}

		// Получение мапы полей
		masked := maskStructFields(v, t)

		logger.Info("Config", zap.Any(t.Name(), masked))
	}
	return nil
}

// maskStructFields маскирует поля структуры, если они отмечены тегом masked
func maskStructFields(v reflect.Value, t reflect.Type) map[string]interface{} {
	result := make(map[string]interface{})
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)
		masked := fieldType.Tag.Get("masked")

		switch field.Kind() {

		// Если поле структура, то рекурсивная обработка и добавление вложенных полей в мапу.
		case reflect.Struct:
			result[fieldType.Name] = maskStructFields(field, field.Type())

		// Если поле строка и помечено тегом masked, то маскируется.
		case reflect.String:
			if masked == "true" {
				result[fieldType.Name] = maskSensitiveData(field.String())
			} else {
				result[fieldType.Name] = field.String()
			}

		// Список строк маскируется поэлементно.
		case reflect.Slice:
			if masked == "true" && field.Type().Elem().Kind() == reflect.String {
				items := make([]string, field.Len())
				for j := range items {
					items[j] = maskSensitiveData(field.Index(j).String())
				}
				result[fieldType.Name] = items
			} else {
				result[fieldType.Name] = field.Interface()
			}

		// Длительности логгируются строкой, например "24h0m0s".
		case reflect.Int64:
			if d, ok := field.Interface().(time.Duration); ok {
				result[fieldType.Name] = d.String()
			} else {
				result[fieldType.Name] = field.Interface()
			}

		// Остальные поля добавляются в мапу как есть.
		default:
			result[fieldType.Name] = field.Interface()
		}
	}
	return result
}

// maskSensitiveData маскирует строку, оставляя только первый и последний символы.
// Считает символы, а не байты, поэтому не рвет арабские и кириллические значения.
// Если строка короче 3 символов, то возвращается "****".
func maskSensitiveData(data string) string {
	runes := []rune(data)
	if len(runes) <= 2 {
		return "****"
	}
	return string(runes[0]) + "****" + string(runes[len(runes)-1])
}
