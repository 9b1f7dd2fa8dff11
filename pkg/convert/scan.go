package convert

import "github.com/gnana997/unixtime/pkg/timestamp"

// Finding is one scanned literal with its classification outcome.
type Finding struct {
	Token     timestamp.Token  `json:"token"`
	Text      string           `json:"text"`
	Reason    timestamp.Reason `json:"reason"`
	Unit      *timestamp.Unit  `json:"unit,omitempty"`
	Formatted string           `json:"formatted,omitempty"`
	UTC       string           `json:"utc,omitempty"`
}

// Qualifies reports whether the literal would be converted.
func (f Finding) Qualifies() bool {
	return f.Reason == timestamp.Accepted
}

// Scan reports every word-bounded literal in text, qualifying or not.
// It never produces edits; hosts use it for diagnostics and watch output.
func Scan(cfg Config, text string) []Finding {
	var out []Finding
	for tok := range timestamp.Tokens(text) {
		f := Finding{Token: tok, Text: tok.Text()}
		cls, reason := timestamp.Classify(tok, cfg.Threshold)
		f.Reason = reason
		if reason == timestamp.Accepted {
			r := cfg.render(cls)
			unit := cls.Unit
			f.Unit = &unit
			f.Formatted = timestamp.Format(r.Local, tok.Fraction)
			f.UTC = timestamp.Format(r.UTC, tok.Fraction)
		}
		out = append(out, f)
	}
	return out
}

// Qualifying filters findings down to the ones that would be converted.
func Qualifying(findings []Finding) []Finding {
	var out []Finding
	for _, f := range findings {
		if f.Qualifies() {
			out = append(out, f)
		}
	}
	return out
}
