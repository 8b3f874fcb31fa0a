package form

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Violations нарушения правил: путь поля -> код правила.
type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return lowerFirst(f.Name)
		}
		return name
	})
	_ = v.RegisterValidation("plate", func(fl validator.FieldLevel) bool {
		return ValidPlate(fl.Field().String())
	})
	v.RegisterStructValidation(guaranteeRules, GuaranteeRecord{})
	return v
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// guaranteeRules даты должны разбираться, дата окончания не раньше начала,
// дата начала обязательна при выбранном типе гарантии.
func guaranteeRules(sl validator.StructLevel) {
	g := sl.Current().Interface().(GuaranteeRecord)
	start, startOK := ParseDate(g.StartDate)
	end, endOK := ParseDate(g.EndDate)
	if g.StartDate != "" && !startOK {
		sl.ReportError(g.StartDate, "startDate", "StartDate", "datetime", DateLayout)
	}
	if g.EndDate != "" && !endOK {
		sl.ReportError(g.EndDate, "endDate", "EndDate", "datetime", DateLayout)
	}
	if g.TypeGuarantee != "" && g.StartDate == "" {
		sl.ReportError(g.StartDate, "startDate", "StartDate", "required_with", "TypeGuarantee")
	}
	if g.TypeGuarantee != "" {
		if _, ok := GuaranteeYears(g.TypeGuarantee); !ok {
			sl.ReportError(g.TypeGuarantee, "typeGuarantee", "TypeGuarantee", "duration", "")
		}
	}
	if startOK && endOK && end.Before(start) {
		sl.ReportError(g.EndDate, "endDate", "EndDate", "gtefield", "StartDate")
	}
}

// Validate проверяет запись формы целиком. Поля атрибутов проверяются
// по таблице услуг: каждое видимое поле обязательно и должно быть из списка.
func Validate(rec Record) Violations {
	out := Violations{}
	if err := validate.Struct(rec); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			out["record"] = err.Error()
			return out
		}
		for _, fe := range verrs {
			out[trimNamespace(fe.Namespace())] = fe.Tag()
		}
	}
	for i, svc := range rec.Order.Services {
		prefix := fmt.Sprintf("order.services[%d].", i)
		if svc.ServicePrice != nil && svc.ServicePrice.IsNegative() {
			out[prefix+string(FieldServicePrice)] = "min"
		}
		if svc.Attributes == nil {
			continue
		}
		for _, f := range defaultResolver.VisibleFields(svc)[len(defaultSchema.Base):] {
			spec, _ := defaultSchema.Field(svc.ServiceType, f)
			v := svc.Attributes.Get(f)
			switch {
			case v == "":
				out[prefix+string(f)] = "required"
			case len(spec.Options) > 0:
				if _, ok := spec.OptionByText(v); !ok {
					out[prefix+string(f)] = "oneof"
				}
			}
		}
	}
	return out
}

func trimNamespace(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
