package billing

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	pricePrinter = message.NewPrinter(language.English)
)

// MicrosToDecimal converts a price in micro-units (1/1,000,000 of the
// currency unit) to a decimal amount.
func MicrosToDecimal(micros int64) decimal.Decimal {
	return decimal.New(micros, -6)
}

// DecimalToMicros converts an amount to micro-units, truncating anything
// below one micro.
func DecimalToMicros(amount decimal.Decimal) int64 {
	return amount.Shift(6).IntPart()
}

// FormatPrice renders a micro-unit price for display, e.g. "$ 1.99". Unknown
// currency codes fall back to "1.99 XYZ".
func FormatPrice(micros int64, currencyCode string) string {
	amount := MicrosToDecimal(micros)

	unit, err := currency.ParseISO(currencyCode)
	if err != nil {
		return fmt.Sprintf("%s %s", amount.StringFixed(2), currencyCode)
	}

	return pricePrinter.Sprint(currency.Symbol(unit.Amount(amount.InexactFloat64())))
}

// NewOneTimeOffer builds an offer from a micro-unit price.
func NewOneTimeOffer(micros int64, currencyCode string) *OneTimePurchaseOffer {
	return &OneTimePurchaseOffer{
		FormattedPrice: FormatPrice(micros, currencyCode),
		PriceMicros:    micros,
		CurrencyCode:   currencyCode,
	}
}
