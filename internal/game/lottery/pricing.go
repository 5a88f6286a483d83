package lottery

import (
	"github.com/shopspring/decimal"

	"lottery-ledger/internal/model"
)

// Price returns the per-unit stake and per-unit win amount the lottery's
// price table assigns to a wager.
func Price(l *model.Lottery, betType model.BetType, isBox bool) (unitPrice, unitWin decimal.Decimal) {
	switch PriceKeyFor(betType, isBox) {
	case PriceSingle:
		return l.SingleDigitPrice, l.SingleDigitWinAmount
	case PriceDouble:
		return l.DoubleDigitPrice, l.DoubleDigitWinAmount
	case PriceTripleBox:
		return l.TripleBoxPrice, l.TripleBoxWinAmount
	default:
		return l.TripleDigitPrice, l.TripleDigitWinAmount
	}
}
