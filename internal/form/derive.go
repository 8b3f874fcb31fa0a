package form

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout формат календарных дат в записи формы.
const DateLayout = "2006-01-02"

// TaxRate ставка налога, включаемого в цену услуги.
var TaxRate = decimal.RequireFromString("0.05")

// GuaranteeYears извлекает число лет из подписи вида "3 سنوات".
// Допускаются арабско-индийские цифры.
func GuaranteeYears(label string) (int, bool) {
	label = strings.TrimSpace(label)
	var b strings.Builder
	for _, r := range label {
		d, ok := digitValue(r)
		if !ok {
			break
		}
		b.WriteByte(byte('0' + d))
	}
	n, err := strconv.Atoi(b.String())
	if err != nil {
		return 0, false
	}
	return n, true
}

// ComputeGuaranteeEndDate дата окончания гарантии включительно:
// начало плюс N лет минус один день. Если подпись не разбирается
// или число лет не положительное, результата нет.
func ComputeGuaranteeEndDate(start time.Time, durationLabel string) (time.Time, bool) {
	if start.IsZero() {
		return time.Time{}, false
	}
	years, ok := GuaranteeYears(durationLabel)
	if !ok || years <= 0 {
		return time.Time{}, false
	}
	return start.AddDate(years, 0, 0).AddDate(0, 0, -1), true
}

// GuaranteeEndDate то же для строковых дат формы; "" означает отсутствие значения.
func GuaranteeEndDate(startDate, durationLabel string) string {
	start, ok := ParseDate(startDate)
	if !ok {
		return ""
	}
	end, ok := ComputeGuaranteeEndDate(start, durationLabel)
	if !ok {
		return ""
	}
	return end.Format(DateLayout)
}

// ParseDate принимает календарную дату или метку времени RFC3339.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

// PriceBreakdown цена без налога, налог и итог.
type PriceBreakdown struct {
	Base  decimal.Decimal `json:"base"`
	Tax   decimal.Decimal `json:"tax"`
	Total decimal.Decimal `json:"total"`
}

// ComputePriceBreakdown для нулевой цены разбивки нет.
// Отрицательные цены отсекаются валидацией раньше.
func ComputePriceBreakdown(base decimal.Decimal) (PriceBreakdown, bool) {
	if base.IsZero() {
		return PriceBreakdown{}, false
	}
	return PriceBreakdown{
		Base:  base,
		Tax:   base.Mul(TaxRate).Round(2),
		Total: base.Mul(decimal.NewFromInt(1).Add(TaxRate)).Round(2),
	}, true
}

// ToLocalizedCalendar дата по хиджре для отображения, например "19/06/1445 هـ".
// Используется табличный календарь; обратного преобразования нет.
func ToLocalizedCalendar(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	y, m, d := hijriFromJDN(julianDayNumber(t.Year(), int(t.Month()), t.Day()))
	if y <= 0 {
		return ""
	}
	return fmt.Sprintf("%02d/%02d/%04d هـ", d, m, y)
}

// LocalizeDate то же для строковой даты; ошибка разбора дает "".
func LocalizeDate(s string) string {
	t, ok := ParseDate(s)
	if !ok {
		return ""
	}
	return ToLocalizedCalendar(t)
}

func julianDayNumber(y, m, d int) int {
	a := (m - 14) / 12
	return (1461*(y+4800+a))/4 +
		(367*(m-2-12*a))/12 -
		(3*((y+4900+a)/100))/4 +
		d - 32075
}

func hijriFromJDN(jd int) (year, month, day int) {
	l := jd - 1948440 + 10632
	n := (l - 1) / 10631
	l = l - 10631*n + 354
	j := ((10985-l)/5316)*((50*l)/17719) + (l/5670)*((43*l)/15238)
	l = l - ((30-j)/15)*((17719*j)/50) - (j/16)*((15238*j)/43) + 29
	month = (24 * l) / 709
	day = l - (709*month)/24
	year = 30*n + j - 30
	return year, month, day
}

func digitValue(r rune) (int, bool) {
	switch {
	case r >= '0' && r <= '9':
		return int(r - '0'), true
	case r >= '٠' && r <= '٩':
		return int(r - '٠'), true
	case r >= '۰' && r <= '۹':
		return int(r - '۰'), true
	}
	return 0, false
}

// NormalizeDigits заменяет восточно-арабские цифры на ASCII.
func NormalizeDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if d, ok := digitValue(r); ok {
			return rune('0' + d)
		}
		return r
	}, s)
}
