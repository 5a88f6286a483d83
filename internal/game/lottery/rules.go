// Package lottery implements the fixed-odds digit rules: which selections
// are valid wagers and which of them win against a declared draw.
package lottery

import (
	"errors"
	"slices"

	"lottery-ledger/internal/model"
)

// Positions a bet can target. Triple bets cover all three digits and carry
// no position.
const (
	PositionA  = "A"
	PositionB  = "B"
	PositionC  = "C"
	PositionAB = "AB"
	PositionBC = "BC"
	PositionAC = "AC"
)

// Rule errors.
var (
	ErrInvalidBetType       = errors.New("invalid bet type")
	ErrInvalidPosition      = errors.New("invalid position for bet type")
	ErrInvalidNumber        = errors.New("selected number has the wrong length or a non-digit character")
	ErrBoxNotAllowed        = errors.New("box is only allowed on triple bets")
	ErrInvalidWinningNumber = errors.New("winning number must be exactly 3 digits")
)

// Draw is a parsed 3-digit winning number.
type Draw struct {
	Number  string
	A, B, C string
}

// ParseWinningNumber splits a declared winning number into its digits.
// The input must be exactly three ASCII digits; nothing is trimmed.
func ParseWinningNumber(s string) (Draw, error) {
	if len(s) != 3 || !isDigits(s) {
		return Draw{}, ErrInvalidWinningNumber
	}
	return Draw{Number: s, A: s[0:1], B: s[1:2], C: s[2:3]}, nil
}

// Digits returns the concatenated winning digits for a bet position.
// Double positions keep the fixed AB, BC, AC order.
func (d Draw) Digits(position string) (string, bool) {
	switch position {
	case PositionA:
		return d.A, true
	case PositionB:
		return d.B, true
	case PositionC:
		return d.C, true
	case PositionAB:
		return d.A + d.B, true
	case PositionBC:
		return d.B + d.C, true
	case PositionAC:
		return d.A + d.C, true
	}
	return "", false
}

// DigitCount returns how many digits a bet type covers.
func DigitCount(betType model.BetType) int {
	switch betType {
	case model.BetTypeSingle:
		return 1
	case model.BetTypeDouble:
		return 2
	case model.BetTypeTriple:
		return 3
	}
	return 0
}

// ValidateSelection checks that a bet type, position, selected number and box
// flag form a supported combination.
func ValidateSelection(betType model.BetType, position, selected string, isBox bool) error {
	switch betType {
	case model.BetTypeSingle:
		if position != PositionA && position != PositionB && position != PositionC {
			return ErrInvalidPosition
		}
	case model.BetTypeDouble:
		if position != PositionAB && position != PositionBC && position != PositionAC {
			return ErrInvalidPosition
		}
	case model.BetTypeTriple:
		if position != "" {
			return ErrInvalidPosition
		}
	default:
		return ErrInvalidBetType
	}

	if isBox && betType != model.BetTypeTriple {
		return ErrBoxNotAllowed
	}
	if len(selected) != DigitCount(betType) || !isDigits(selected) {
		return ErrInvalidNumber
	}
	return nil
}

// IsWinner decides a single wager against a draw.
//   - single: selected equals the digit at the bet's position
//   - double: selected equals the two digits at the position, in order
//   - triple: selected equals the winning number exactly
//   - triple box: sorted digits of selected equal sorted winning digits
//
// Invalid selections never win.
func IsWinner(d Draw, betType model.BetType, position, selected string, isBox bool) bool {
	if ValidateSelection(betType, position, selected, isBox) != nil {
		return false
	}

	switch betType {
	case model.BetTypeSingle, model.BetTypeDouble:
		digits, ok := d.Digits(position)
		return ok && selected == digits
	case model.BetTypeTriple:
		if isBox {
			return sortDigits(selected) == sortDigits(d.Number)
		}
		return selected == d.Number
	}
	return false
}

// IsBetWinner is IsWinner applied to a stored bet row.
func IsBetWinner(d Draw, bet *model.Bet) bool {
	return IsWinner(d, bet.BetType, bet.PositionString(), bet.SelectedNumber, bet.IsBox)
}

// PriceKey identifies which price-table column applies to a wager.
type PriceKey string

const (
	PriceSingle    PriceKey = "single"
	PriceDouble    PriceKey = "double"
	PriceTriple    PriceKey = "triple"
	PriceTripleBox PriceKey = "triple_box"
)

// PriceKeyFor maps a bet type and box flag to its price-table column.
func PriceKeyFor(betType model.BetType, isBox bool) PriceKey {
	switch betType {
	case model.BetTypeSingle:
		return PriceSingle
	case model.BetTypeDouble:
		return PriceDouble
	}
	if isBox {
		return PriceTripleBox
	}
	return PriceTriple
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// sortDigits returns the characters of s in ascending order, keeping duplicates.
func sortDigits(s string) string {
	b := []byte(s)
	slices.Sort(b)
	return string(b)
}
