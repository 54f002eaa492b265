package shops

import "github.com/shopspring/decimal"

// PlatformFee sums the configured fees for paymentDue, rounding the running
// total to cents after each fee.
func PlatformFee(fees []Fee, paymentDue float64) float64 {
	due := decimal.NewFromFloat(paymentDue)
	sum := decimal.Zero
	for _, fee := range fees {
		if fee.Value == 0 {
			continue
		}
		v := decimal.NewFromFloat(fee.Value)
		if fee.CurrencyCode == "%" {
			sum = sum.Add(due.Mul(v).Div(decimal.NewFromInt(100)))
		} else {
			sum = sum.Add(v)
		}
		sum = sum.Round(2)
	}
	f, _ := sum.Float64()
	return f
}

// PlatformFee computes the shop's fee for paymentDue.
func (c *Config) PlatformFee(paymentDue float64) float64 {
	if c == nil {
		return 0
	}
	return PlatformFee(c.PlatformFees, paymentDue)
}
