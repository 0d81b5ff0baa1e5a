package listing

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrZeroPrice marks a listing whose price is zero or unreadable. Such a
// listing is a scraping failure, not a priced observation, and is dropped.
var ErrZeroPrice = errors.New("listing price is zero or unparseable")

var hundred = decimal.NewFromInt(100)

// PriceStats holds the discount derived from a price pair.
type PriceStats struct {
	DollarsOff         decimal.Decimal
	DiscountPercentage decimal.Decimal
}

// ParsePrice reads a display price such as "$1,299.99" with the numeric
// coercion rule. Text without digits yields an invalid NullDecimal.
func ParsePrice(raw string) decimal.NullDecimal {
	n, ok := ExtractNumber(raw)
	if !ok {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(n))
}

// ParseOptionalPrice is ParsePrice for a price that may be missing.
func ParseOptionalPrice(raw *string) decimal.NullDecimal {
	if raw == nil {
		return decimal.NullDecimal{}
	}
	return ParsePrice(*raw)
}

// ComputePriceStats returns dollars off and the discount percentage rounded
// to two places. Null inputs count as zero, and a zero full price yields a
// zero discount rather than a division.
func ComputePriceStats(price, fullPrice decimal.NullDecimal) PriceStats {
	p := orZero(price)
	full := orZero(fullPrice)
	if full.IsZero() {
		return PriceStats{DollarsOff: decimal.Zero, DiscountPercentage: decimal.Zero}
	}
	off := full.Sub(p)
	return PriceStats{
		DollarsOff:         off,
		DiscountPercentage: off.Div(full).Mul(hundred).Round(2),
	}
}

func orZero(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}
