package form

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Placeholder занимает пустую ячейку в каноническом коде номера.
const Placeholder = '_'

const (
	PlateWidthShort = 7
	PlateWidthLong  = 8
)

// Буквы без регистра (арабские) допускаются как есть, латиница только заглавная.
var platePattern = regexp.MustCompile(`^[\p{Lu}\p{Lo}0-9]{7,8}$`)

// ValidPlate проверяет номер для отправки: 7 или 8 букв и цифр без заполнителей.
func ValidPlate(code string) bool {
	return platePattern.MatchString(code)
}

// Plate номер как упорядоченный набор односимвольных ячеек.
type Plate struct {
	cells []rune
}

func clampWidth(width int) int {
	if width >= PlateWidthLong {
		return PlateWidthLong
	}
	return PlateWidthShort
}

// DecodePlate раскладывает канонический код по ячейкам заданной ширины.
// Короткий код дополняется пустыми ячейками, длинный обрезается.
func DecodePlate(code string, width int) Plate {
	width = clampWidth(width)
	p := Plate{cells: make([]rune, width)}
	runes := []rune(code)
	for i := range p.cells {
		p.cells[i] = Placeholder
		if i < len(runes) {
			p.cells[i] = normalizeCell(runes[i])
		}
	}
	return p
}

// ParsePlate выбирает ширину по длине кода.
func ParsePlate(code string) Plate {
	return DecodePlate(code, utf8.RuneCountInString(code))
}

func normalizeCell(r rune) rune {
	if r == Placeholder || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
		return Placeholder
	}
	if d, ok := digitValue(r); ok {
		return rune('0' + d)
	}
	return unicode.ToUpper(r)
}

func (p Plate) Width() int {
	if len(p.cells) == 0 {
		return PlateWidthShort
	}
	return len(p.cells)
}

// Cells содержимое ячеек; пустая ячейка дает "".
func (p Plate) Cells() []string {
	p = p.ensure()
	out := make([]string, len(p.cells))
	for i, r := range p.cells {
		if r != Placeholder {
			out[i] = string(r)
		}
	}
	return out
}

// SetCell записывает первый символ ch в ячейку i; пустая строка очищает ячейку.
// Индекс вне диапазона игнорируется.
func (p Plate) SetCell(i int, ch string) Plate {
	p = p.clone()
	if i < 0 || i >= len(p.cells) {
		return p
	}
	r, _ := utf8.DecodeRuneInString(ch)
	if ch == "" {
		r = Placeholder
	}
	p.cells[i] = normalizeCell(r)
	return p
}

// Resize переключает ширину: расширение добавляет пустую ячейку в конец,
// сужение отбрасывает последнюю.
func (p Plate) Resize(width int) Plate {
	width = clampWidth(width)
	src := p.ensure().cells
	out := Plate{cells: make([]rune, width)}
	for i := range out.cells {
		out.cells[i] = Placeholder
		if i < len(src) {
			out.cells[i] = src[i]
		}
	}
	return out
}

// Encode канонический код ровно из Width() символов.
func (p Plate) Encode() string {
	return string(p.ensure().cells)
}

// Value код без заполнителей.
func (p Plate) Value() string {
	return strings.ReplaceAll(p.Encode(), string(Placeholder), "")
}

// Complete все ячейки заполнены.
func (p Plate) Complete() bool {
	return ValidPlate(p.Encode())
}

// Empty ни одна ячейка не заполнена.
func (p Plate) Empty() bool {
	return p.Value() == ""
}

// EncodeCell правка одной ячейки поверх канонической строки.
func EncodeCell(code string, width, i int, ch string) string {
	return DecodePlate(code, width).SetCell(i, ch).Encode()
}

func (p Plate) ensure() Plate {
	if len(p.cells) == 0 {
		return DecodePlate("", PlateWidthShort)
	}
	return p
}

func (p Plate) clone() Plate {
	p = p.ensure()
	return Plate{cells: append([]rune(nil), p.cells...)}
}
