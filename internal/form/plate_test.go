package form

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlate_RoundTrip(t *testing.T) {
	for _, code := range []string{"ABC1234", "ABCD1234", "أبج1234", "1234567", "AB12CD34"} {
		assert.True(t, ValidPlate(code), code)
		assert.Equal(t, code, ParsePlate(code).Encode(), code)
		assert.Equal(t, code, DecodePlate(code, len([]rune(code))).Encode(), code)
	}
}

func TestPlate_Decode(t *testing.T) {
	p := DecodePlate("AB_1", 7)
	assert.Equal(t, 7, p.Width())
	assert.Equal(t, []string{"A", "B", "", "1", "", "", ""}, p.Cells())
	assert.Equal(t, "AB_1___", p.Encode())
	assert.Equal(t, "AB1", p.Value())
	assert.False(t, p.Complete())

	assert.Equal(t, "ABCDEFG", DecodePlate("ABCDEFGHIJ", 7).Encode())
	assert.Equal(t, 8, DecodePlate("", 12).Width())
	assert.Equal(t, 7, DecodePlate("", 3).Width())
	assert.Equal(t, "_______", Plate{}.Encode())
}

func TestPlate_SetCell(t *testing.T) {
	p := DecodePlate("", 7).SetCell(0, "a").SetCell(1, "b").SetCell(6, "٩")
	assert.Equal(t, "AB____9", p.Encode())

	p = p.SetCell(1, "")
	assert.Equal(t, "A_____9", p.Encode())

	assert.Equal(t, "A_____9", p.SetCell(7, "X").Encode())
	assert.Equal(t, "A_____9", p.SetCell(-1, "X").Encode())
	assert.Equal(t, "A_____9", p.SetCell(1, "-").Encode())
	assert.Equal(t, "AX____9", p.SetCell(1, "xyz").Encode())
}

func TestPlate_SetCellDoesNotAlias(t *testing.T) {
	a := DecodePlate("ABC1234", 7)
	b := a.SetCell(0, "Z")
	assert.Equal(t, "ABC1234", a.Encode())
	assert.Equal(t, "ZBC1234", b.Encode())
}

func TestPlate_Resize(t *testing.T) {
	p := DecodePlate("ABC1234", 7)
	wide := p.Resize(8)
	assert.Equal(t, "ABC1234_", wide.Encode())
	assert.False(t, wide.Complete())

	full := wide.SetCell(7, "5")
	assert.True(t, full.Complete())
	assert.Equal(t, "ABC1234", full.Resize(7).Encode())
}

func TestEncodeCell(t *testing.T) {
	assert.Equal(t, "__X____", EncodeCell("", 7, 2, "x"))
	assert.Equal(t, "AB_D____", EncodeCell("ABCD", 8, 2, ""))
	assert.Equal(t, "ABCDEF_", EncodeCell("ABCDEFGH", 7, 6, ""))
}

func TestValidPlate(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"ABC1234", true},
		{"ABCD1234", true},
		{"abc1234", false},
		{"ABC123", false},
		{"ABC12345X", false},
		{"ABC_234", false},
		{"ABC 234", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidPlate(tt.code), tt.code)
	}
}
