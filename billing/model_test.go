package billing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMicros(t *testing.T) {
	require.True(t, decimal.RequireFromString("1.99").Equal(MicrosToDecimal(1_990_000)))
	require.Equal(t, int64(1_990_000), DecimalToMicros(decimal.RequireFromString("1.99")))
	require.Equal(t, int64(1), DecimalToMicros(decimal.RequireFromString("0.0000019")))
}

func TestFormatPrice(t *testing.T) {
	assert.Contains(t, FormatPrice(1_990_000, "USD"), "1.99")
	assert.Contains(t, FormatPrice(1_990_000, "USD"), "$")
	assert.Equal(t, "4.50 XYZ1", FormatPrice(4_500_000, "XYZ1"))

	offer := NewOneTimeOffer(990_000, "EUR")
	require.Equal(t, int64(990_000), offer.PriceMicros)
	require.Equal(t, "EUR", offer.CurrencyCode)
	assert.Contains(t, offer.FormattedPrice, "0.99")
}

func TestPurchase_FirstProductID(t *testing.T) {
	require.Equal(t, "", (&Purchase{}).FirstProductID())
	require.Equal(t, "a", (&Purchase{ProductIDs: []string{"a", "b"}}).FirstProductID())
}

func TestClone(t *testing.T) {
	p := &Purchase{ProductIDs: []string{"a"}, PurchaseToken: "t"}
	cloned := p.Clone()
	cloned.ProductIDs[0] = "b"
	require.Equal(t, "a", p.ProductIDs[0])
	require.Equal(t, "t", cloned.PurchaseToken)

	d := &ProductDetails{ProductID: "a", OneTimeOffer: &OneTimePurchaseOffer{PriceMicros: 1}}
	clonedDetails := d.Clone()
	clonedDetails.OneTimeOffer.PriceMicros = 2
	require.Equal(t, int64(1), d.OneTimeOffer.PriceMicros)
}

func TestResponseCode(t *testing.T) {
	require.Equal(t, "OK", ResponseCodeOK.String())
	require.Equal(t, "USER_CANCELED", ResponseCodeUserCanceled.String())
	require.Equal(t, "RESPONSE_CODE(42)", ResponseCode(42).String())
	require.True(t, OK().IsOK())
	require.False(t, ResultOf(ResponseCodeError).IsOK())
}
