package timestamp

import (
	"math"
	"strconv"
)

const (
	// DefaultThreshold is the smallest integer value treated as a timestamp.
	// 1e9 seconds is 2001-09-09, which keeps ordinary numbers out.
	DefaultThreshold = 1e9

	// MillisecondCutoff is a policy constant, not a derived fact: integer
	// parts below it are read as seconds, everything at or above it as
	// milliseconds. Values near the cutoff are always milliseconds.
	MillisecondCutoff = 1e12

	// maxMillis is 2^63, the first millisecond count an int64 cannot hold.
	maxMillis = 0x1p63
)

// Unit is the epoch unit a token was read in.
type Unit int

const (
	// Seconds means the integer part counts seconds since the epoch.
	Seconds Unit = iota
	// Milliseconds means the integer part counts milliseconds since the epoch.
	Milliseconds
)

// String returns the lowercase unit name.
func (u Unit) String() string {
	switch u {
	case Seconds:
		return "seconds"
	case Milliseconds:
		return "milliseconds"
	default:
		return "unknown"
	}
}

// MarshalText encodes the unit by name.
func (u Unit) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

// Reason is the outcome of classifying a token. Rejections are not errors;
// the token is simply not a timestamp.
type Reason int

const (
	// Accepted marks a qualifying token.
	Accepted Reason = iota
	// ReasonNotFinite marks an integer part too large for a float64.
	ReasonNotFinite
	// ReasonBelowThreshold marks an integer part under the threshold.
	ReasonBelowThreshold
	// ReasonOutOfRange marks an instant whose millisecond count overflows int64.
	ReasonOutOfRange
)

// String returns a short machine-friendly label.
func (r Reason) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case ReasonNotFinite:
		return "not_finite"
	case ReasonBelowThreshold:
		return "below_threshold"
	case ReasonOutOfRange:
		return "out_of_range"
	default:
		return "unknown"
	}
}

// MarshalText encodes the reason by label.
func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Classification is a token that qualified as a timestamp.
type Classification struct {
	Token Token

	// Value is the parsed integer part.
	Value float64

	Unit Unit

	// Millis is the instant in milliseconds since the epoch.
	Millis int64
}

// Classify decides whether tok is a timestamp candidate under threshold
// and, if so, in which unit. The fractional part never feeds into the
// instant; it is only a display suffix.
func Classify(tok Token, threshold float64) (Classification, Reason) {
	value, err := strconv.ParseFloat(tok.Integer, 64)
	if err != nil || math.IsInf(value, 0) || math.IsNaN(value) {
		return Classification{}, ReasonNotFinite
	}
	if value < threshold {
		return Classification{}, ReasonBelowThreshold
	}

	unit := Milliseconds
	millis := value
	if value < MillisecondCutoff {
		unit = Seconds
		millis = value * 1000
	}
	if millis >= maxMillis {
		return Classification{}, ReasonOutOfRange
	}

	return Classification{
		Token:  tok,
		Value:  value,
		Unit:   unit,
		Millis: int64(millis),
	}, Accepted
}
