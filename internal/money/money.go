package money

// Money represents a monetary value stored in minor units.
type Money = int64

// Currency minimum charge amounts in minor units. A discounted price is never
// allowed to drop below this floor while remaining non-zero.
var minPrice = map[string]Money{
	"usd": 99,
	"eur": 79,
	"gbp": 59,
	"cad": 129,
	"aud": 129,
	"jpy": 100,
}

// MinPrice returns the smallest chargeable non-zero price for the currency.
// Unknown currencies fall back to the USD floor.
func MinPrice(currency string) Money {
	if v, ok := minPrice[normalize(currency)]; ok {
		return v
	}
	return minPrice["usd"]
}

// RoundHalfUpBps applies a basis-point rate to an amount, rounding half up.
// 10000 bps == 100%.
func RoundHalfUpBps(amount Money, bps int64) Money {
	if amount <= 0 || bps <= 0 {
		return 0
	}
	return (amount*bps + 5000) / 10000
}

// RoundHalfEvenBps applies a basis-point rate to an amount, rounding an exact
// half cent to the nearest even cent. Advertised discount percentages use this
// so a 50% cut on 4999 yields 2500 while a 70% cut on 1395 yields 976.
func RoundHalfEvenBps(amount Money, bps int64) Money {
	if amount <= 0 || bps <= 0 {
		return 0
	}
	p := amount * bps
	q := p / 10000
	r := p % 10000
	if r*2 > 10000 || (r*2 == 10000 && q%2 != 0) {
		q++
	}
	return q
}

// RoundHalfUpPerMille applies a per-thousand rate to an amount, rounding half up.
func RoundHalfUpPerMille(amount Money, perMille int64) Money {
	if amount <= 0 || perMille <= 0 {
		return 0
	}
	return (amount*perMille + 500) / 1000
}

// HalfHalfUp returns half of the amount rounded half up.
func HalfHalfUp(amount Money) Money {
	if amount <= 0 {
		return 0
	}
	return (amount + 1) / 2
}

// Clamp bounds v to the range [lo, hi].
func Clamp(v, lo, hi Money) Money {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func normalize(currency string) string {
	out := make([]byte, 0, len(currency))
	for i := 0; i < len(currency); i++ {
		c := currency[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}
