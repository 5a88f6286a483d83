package lottery

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lottery-ledger/internal/model"
)

func TestParseWinningNumber(t *testing.T) {
	d, err := ParseWinningNumber("482")
	require.NoError(t, err)
	assert.Equal(t, Draw{Number: "482", A: "4", B: "8", C: "2"}, d)

	for _, bad := range []string{"", "48", "4821", " 482", "48a", "4 2", "٤٨٢"} {
		_, err := ParseWinningNumber(bad)
		assert.ErrorIs(t, err, ErrInvalidWinningNumber, "input %q", bad)
	}
}

func TestValidateSelection(t *testing.T) {
	tests := []struct {
		name     string
		betType  model.BetType
		position string
		selected string
		isBox    bool
		wantErr  error
	}{
		{"single A", model.BetTypeSingle, PositionA, "4", false, nil},
		{"single C zero", model.BetTypeSingle, PositionC, "0", false, nil},
		{"single with pair position", model.BetTypeSingle, PositionAB, "4", false, ErrInvalidPosition},
		{"single two digits", model.BetTypeSingle, PositionB, "44", false, ErrInvalidNumber},
		{"single box", model.BetTypeSingle, PositionA, "4", true, ErrBoxNotAllowed},
		{"double AB", model.BetTypeDouble, PositionAB, "48", false, nil},
		{"double AC", model.BetTypeDouble, PositionAC, "42", false, nil},
		{"double BA is not a position", model.BetTypeDouble, "BA", "84", false, ErrInvalidPosition},
		{"double non-digit", model.BetTypeDouble, PositionBC, "8x", false, ErrInvalidNumber},
		{"triple", model.BetTypeTriple, "", "482", false, nil},
		{"triple box", model.BetTypeTriple, "", "248", true, nil},
		{"triple with position", model.BetTypeTriple, "ABC", "482", false, ErrInvalidPosition},
		{"triple short", model.BetTypeTriple, "", "48", false, ErrInvalidNumber},
		{"unknown type", model.BetType("quad"), "", "4821", false, ErrInvalidBetType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSelection(tt.betType, tt.position, tt.selected, tt.isBox)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestIsWinner_Draw482(t *testing.T) {
	d, err := ParseWinningNumber("482")
	require.NoError(t, err)

	tests := []struct {
		name     string
		betType  model.BetType
		position string
		selected string
		isBox    bool
		want     bool
	}{
		{"single A 4", model.BetTypeSingle, PositionA, "4", false, true},
		{"single B 8", model.BetTypeSingle, PositionB, "8", false, true},
		{"single C 2", model.BetTypeSingle, PositionC, "2", false, true},
		{"single A 8", model.BetTypeSingle, PositionA, "8", false, false},
		{"double AB 48", model.BetTypeDouble, PositionAB, "48", false, true},
		{"double AB 84", model.BetTypeDouble, PositionAB, "84", false, false},
		{"double BC 82", model.BetTypeDouble, PositionBC, "82", false, true},
		{"double AC 42", model.BetTypeDouble, PositionAC, "42", false, true},
		{"double AC 24", model.BetTypeDouble, PositionAC, "24", false, false},
		{"triple 482", model.BetTypeTriple, "", "482", false, true},
		{"triple 248", model.BetTypeTriple, "", "248", false, false},
		{"triple box 248", model.BetTypeTriple, "", "248", true, true},
		{"triple box 824", model.BetTypeTriple, "", "824", true, true},
		{"triple box 448", model.BetTypeTriple, "", "448", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsWinner(d, tt.betType, tt.position, tt.selected, tt.isBox)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsWinner_DuplicateDigitBox(t *testing.T) {
	d, err := ParseWinningNumber("511")
	require.NoError(t, err)

	assert.True(t, IsWinner(d, model.BetTypeTriple, "", "151", true))
	assert.True(t, IsWinner(d, model.BetTypeTriple, "", "115", true))
	assert.True(t, IsWinner(d, model.BetTypeTriple, "", "511", true))
	assert.False(t, IsWinner(d, model.BetTypeTriple, "", "512", true))
	assert.False(t, IsWinner(d, model.BetTypeTriple, "", "551", true))
	assert.False(t, IsWinner(d, model.BetTypeTriple, "", "115", false))
}

func TestIsWinner_InvalidSelectionNeverWins(t *testing.T) {
	d, err := ParseWinningNumber("482")
	require.NoError(t, err)

	assert.False(t, IsWinner(d, model.BetTypeSingle, PositionAB, "4", false))
	assert.False(t, IsWinner(d, model.BetTypeDouble, PositionAB, "48", true))
	assert.False(t, IsWinner(d, model.BetTypeTriple, "ABC", "482", false))
}

func TestIsBetWinner(t *testing.T) {
	d, err := ParseWinningNumber("482")
	require.NoError(t, err)

	pos := PositionAB
	assert.True(t, IsBetWinner(d, &model.Bet{BetType: model.BetTypeDouble, Position: &pos, SelectedNumber: "48"}))
	assert.True(t, IsBetWinner(d, &model.Bet{BetType: model.BetTypeTriple, SelectedNumber: "284", IsBox: true}))
	assert.False(t, IsBetWinner(d, &model.Bet{BetType: model.BetTypeTriple, SelectedNumber: "284"}))
}

func TestPrice(t *testing.T) {
	l := &model.Lottery{
		SingleDigitPrice:     decimal.NewFromInt(11),
		SingleDigitWinAmount: decimal.NewFromInt(100),
		DoubleDigitPrice:     decimal.NewFromInt(12),
		DoubleDigitWinAmount: decimal.NewFromInt(1000),
		TripleDigitPrice:     decimal.NewFromInt(13),
		TripleDigitWinAmount: decimal.NewFromInt(10000),
		TripleBoxPrice:       decimal.NewFromInt(14),
		TripleBoxWinAmount:   decimal.NewFromInt(2000),
	}

	price, win := Price(l, model.BetTypeSingle, false)
	assert.True(t, price.Equal(decimal.NewFromInt(11)))
	assert.True(t, win.Equal(decimal.NewFromInt(100)))

	price, win = Price(l, model.BetTypeDouble, false)
	assert.True(t, price.Equal(decimal.NewFromInt(12)))
	assert.True(t, win.Equal(decimal.NewFromInt(1000)))

	price, win = Price(l, model.BetTypeTriple, false)
	assert.True(t, price.Equal(decimal.NewFromInt(13)))
	assert.True(t, win.Equal(decimal.NewFromInt(10000)))

	price, win = Price(l, model.BetTypeTriple, true)
	assert.True(t, price.Equal(decimal.NewFromInt(14)))
	assert.True(t, win.Equal(decimal.NewFromInt(2000)))
}
