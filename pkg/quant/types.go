package quant

import (
	"fmt"
	"math"
	"strconv"
)

// PriceMicros represents a price multiplied by 1,000,000 (10^6).
// E.g., 1.23 USD = 1,230,000 PriceMicros.
type PriceMicros int64

// QtySats represents a quantity multiplied by 100,000,000 (10^8).
// E.g., 1.0 BTC = 100,000,000 QtySats.
type QtySats int64

const (
	PriceScale = 1_000_000
	QtyScale   = 100_000_000
)

// ToPriceMicros converts a float64 (from an external API) to PriceMicros.
// Only used at the boundary. Internal logic works in PriceMicros directly.
func ToPriceMicros(f float64) PriceMicros {
	return PriceMicros(math.Round(f * PriceScale))
}

// ToQtySats converts a float64 to QtySats.
func ToQtySats(f float64) QtySats {
	return QtySats(math.Round(f * QtyScale))
}

// ToPriceMicrosStr converts a numeric string to PriceMicros.
func ToPriceMicrosStr(s string) PriceMicros {
	f, _ := strconv.ParseFloat(s, 64)
	return ToPriceMicros(f)
}

// ToQtySatsStr converts a numeric string to QtySats.
func ToQtySatsStr(s string) QtySats {
	f, _ := strconv.ParseFloat(s, 64)
	return ToQtySats(f)
}

func (p PriceMicros) String() string {
	return fmt.Sprintf("%.6f", float64(p)/PriceScale)
}

func (q QtySats) String() string {
	return fmt.Sprintf("%.8f", float64(q)/QtyScale)
}

// Float returns the boundary float representation of a price.
func (p PriceMicros) Float() float64 {
	return float64(p) / PriceScale
}

// Float returns the boundary float representation of a quantity.
func (q QtySats) Float() float64 {
	return float64(q) / QtyScale
}
