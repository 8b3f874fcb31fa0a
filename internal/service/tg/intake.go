package tg

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"car_intake/internal/form"

	"github.com/shopspring/decimal"
)

// draft черновик заявки одного оператора.
type draft struct {
	Session *form.Session
	// Услуга, которую оператор сейчас заполняет
	Current string
}

func newDraft() *draft {
	s := form.NewSession()
	return &draft{Session: s, Current: s.Order.Services[0].ID}
}

// draftFromSession черновик для правки сохраненной заявки: текущей становится последняя услуга.
func draftFromSession(s *form.Session) *draft {
	return &draft{Session: s, Current: s.Order.Services[len(s.Order.Services)-1].ID}
}

func normalizeName(name string) string {
	parts := strings.Fields(name)
	for i, part := range parts {
		runes := []rune(part)
		runes[0] = unicode.ToUpper(runes[0])
		for j := 1; j < len(runes); j++ {
			runes[j] = unicode.ToLower(runes[j])
		}
		parts[i] = string(runes)
	}
	return strings.Join(parts, " ")
}

func isName(s string) bool {
	for _, r := range s {
		if !(unicode.IsLetter(r) || unicode.Is(unicode.Mn, r) || r == '-' || r == '\'') {
			return false
		}
	}
	return s != ""
}

func extractDigits(s string) string {
	var b strings.Builder
	for _, r := range form.NormalizeDigits(s) {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// normalizeSaudiPhone приводит мобильный номер к виду 05XXXXXXXX.
// Принимаются варианты с +966, 00966 и без ведущего нуля.
func normalizeSaudiPhone(raw string) (string, bool) {
	phone := extractDigits(raw)
	switch {
	case strings.HasPrefix(phone, "00966"):
		phone = "0" + phone[5:]
	case strings.HasPrefix(phone, "966"):
		phone = "0" + phone[3:]
	case strings.HasPrefix(phone, "5"):
		phone = "0" + phone
	}
	if len(phone) != 10 || !strings.HasPrefix(phone, "05") {
		return "", false
	}
	return phone, true
}

func formatPhone(phone string) string {
	if len(phone) != 10 {
		return phone
	}
	return fmt.Sprintf("%s %s %s", phone[:3], phone[3:6], phone[6:])
}

var priceNoise = strings.NewReplacer(",", "", "٬", "", "٫", ".", " ", "", "ر.س", "", "SAR", "", "sar", "")

// parsePrice разбирает цену без налога. Пустая строка и "-" очищают цену.
func parsePrice(raw string) (*decimal.Decimal, error) {
	s := priceNoise.Replace(form.NormalizeDigits(strings.TrimSpace(raw)))
	if s == "" || s == "-" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid price %q", raw)
	}
	if d.IsNegative() {
		return nil, form.ErrNegativePrice
	}
	return &d, nil
}

var dateLayouts = []string{form.DateLayout, "02/01/2006", "2/1/2006", "02.01.2006", "2.1.2006"}

// parseDate разбирает дату оператора: ISO, ДД/ММ/ГГГГ или ДД.ММ.ГГГГ.
func parseDate(raw string) (string, bool) {
	s := form.NormalizeDigits(strings.TrimSpace(raw))
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(form.DateLayout), true
		}
	}
	return "", false
}

func today() string {
	return time.Now().Format(form.DateLayout)
}

// renderPlate ячейки номера через пробел, пустые показаны как "_".
func renderPlate(p form.Plate) string {
	cells := p.Cells()
	for i, c := range cells {
		if c == "" {
			cells[i] = string(form.Placeholder)
		}
	}
	return strings.Join(cells, " ")
}

var plateCellCmd = regexp.MustCompile(`^(\d+)\s+(\S)$`)

// applyPlateText применяет ввод оператора к номеру: "3 B" правит третью ячейку,
// "-3" очищает ее, любой другой текст заполняет номер целиком слева направо.
func applyPlateText(s *form.Session, text string) {
	text = form.NormalizeDigits(strings.TrimSpace(text))
	if m := plateCellCmd.FindStringSubmatch(text); m != nil {
		i, _ := strconv.Atoi(m[1])
		s.SetPlateCell(i-1, m[2])
		return
	}
	if strings.HasPrefix(text, "-") {
		if i, err := strconv.Atoi(text[1:]); err == nil {
			s.SetPlateCell(i-1, "")
			return
		}
	}
	s.SetPlate(text)
}

func optionLabel(options []form.Option, value string) string {
	for _, o := range options {
		if o.Value == value {
			return o.Label
		}
	}
	return value
}

func kindLabel(schema *form.Schema, kind form.ServiceType) string {
	if k, ok := schema.Kind(kind); ok {
		return k.Label
	}
	return string(kind)
}

func formatBreakdown(b form.PriceBreakdown) string {
	return fmt.Sprintf("السعر: %s\nالضريبة %s%%: %s\nالإجمالي: %s",
		b.Base.StringFixed(2), form.TaxRate.Shift(2).String(), b.Tax.StringFixed(2), b.Total.StringFixed(2))
}

// formatDate дата с хиджрой, например "2024-01-01 (19/06/1445 هـ)".
func formatDate(date string) string {
	if date == "" {
		return "-"
	}
	if hijri := form.LocalizeDate(date); hijri != "" {
		return fmt.Sprintf("%s (%s)", date, hijri)
	}
	return date
}

// guaranteeText срок гарантии с датами окончания по григорианскому календарю и хиджре.
func guaranteeText(g *form.GuaranteeRecord) string {
	if g.TypeGuarantee == "" {
		return ""
	}
	if g.EndDate == "" {
		return "الضمان: " + g.TypeGuarantee
	}
	return fmt.Sprintf("الضمان: %s\nمن %s\nإلى %s", g.TypeGuarantee, formatDate(g.StartDate), formatDate(g.EndDate))
}

func describeService(schema *form.Schema, svc form.ServiceRecord) string {
	var b strings.Builder
	b.WriteString(kindLabel(schema, svc.ServiceType))
	if svc.ServiceType == "" {
		b.WriteString("بدون نوع")
	}
	visible := form.ResolveVisibleFields(svc)
	for _, f := range visible[len(schema.Base):] {
		v := svc.Attr(f)
		if v == "" {
			continue
		}
		spec, _ := schema.Field(svc.ServiceType, f)
		fmt.Fprintf(&b, "\n  %s: %s", spec.Label, optionLabel(spec.Options, v))
	}
	if svc.DealDetails != "" {
		fmt.Fprintf(&b, "\n  تفاصيل: %s", svc.DealDetails)
	}
	if svc.ServicePrice != nil {
		if br, ok := form.ComputePriceBreakdown(*svc.ServicePrice); ok {
			fmt.Fprintf(&b, "\n  %s", strings.ReplaceAll(formatBreakdown(br), "\n", "\n  "))
		}
	}
	if svc.ServiceDate != "" {
		fmt.Fprintf(&b, "\n  التاريخ: %s", formatDate(svc.ServiceDate))
	}
	if svc.Guarantee != nil {
		if text := guaranteeText(svc.Guarantee); text != "" {
			fmt.Fprintf(&b, "\n  %s", strings.ReplaceAll(text, "\n", " "))
		}
	}
	return b.String()
}

// summary текст заявки для подтверждения оператором.
func summary(schema *form.Schema, s *form.Session) string {
	c := s.Client
	var b strings.Builder
	fmt.Fprintf(&b, "رقم الطلب: %s\n", s.Reference)
	fmt.Fprintf(&b, "الفرع: %s\n", c.Branch)
	fmt.Fprintf(&b, "العميل: %s %s", c.FirstName, c.LastName)
	if c.CompanyName != "" {
		fmt.Fprintf(&b, " (%s)", c.CompanyName)
	}
	fmt.Fprintf(&b, "\nالجوال: %s\n", formatPhone(c.Phone))
	fmt.Fprintf(&b, "السيارة: %s %s %s %s\n", c.Car.Manufacturer, c.Car.Model, c.Car.Color, optionLabel(schema.CarSizes, c.Car.Size))
	fmt.Fprintf(&b, "اللوحة: %s\n", renderPlate(s.Plate()))

	total := decimal.Zero
	for i, svc := range s.Order.Services {
		fmt.Fprintf(&b, "\n%d. %s", i+1, describeService(schema, svc))
		if svc.ServicePrice != nil {
			if br, ok := form.ComputePriceBreakdown(*svc.ServicePrice); ok {
				total = total.Add(br.Total)
			}
		}
	}
	fmt.Fprintf(&b, "\n\nالمجموع شامل الضريبة: %s", total.StringFixed(2))
	return b.String()
}

// formatViolations ошибки проверки построчно в стабильном порядке.
func formatViolations(v form.Violations) string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = fmt.Sprintf("• %s: %s", k, v[k])
	}
	return strings.Join(lines, "\n")
}

// parseAttrData разбирает callback "attr:<поле>:<значение>".
func parseAttrData(data string) (form.Field, string, bool) {
	rest, ok := strings.CutPrefix(data, cbAttr)
	if !ok {
		return "", "", false
	}
	field, value, ok := strings.Cut(rest, ":")
	if !ok || field == "" || value == "" {
		return "", "", false
	}
	return form.Field(field), value, true
}

// parseAdmins список ID операторов из строки "123,456". Нечисловые значения пропускаются.
func parseAdmins(raw string) []int64 {
	var out []int64
	for _, part := range strings.Split(raw, ",") {
		if id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64); err == nil {
			out = append(out, id)
		}
	}
	return out
}
