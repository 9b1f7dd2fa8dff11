package convert

import (
	"errors"
	"fmt"
	"sort"

	"github.com/gnana997/unixtime/pkg/edit"
	"github.com/gnana997/unixtime/pkg/timestamp"
)

// ErrInvalidRange is returned for selections outside the text or
// overlapping each other.
var ErrInvalidRange = errors.New("invalid selection range")

// Level is the severity of a Notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
)

// Notice is the message a host shows after a batch conversion.
type Notice struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

const (
	msgNothingInBuffer    = "No Unix timestamps found to convert."
	msgNothingInSelection = "No Unix timestamps found in the selection."
)

// Range is a selected byte range [Start, End) of a document.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Result is the outcome of a batch conversion.
type Result struct {
	Transaction edit.Transaction `json:"transaction"`
	Count       int              `json:"count"`
	Notice      Notice           `json:"notice"`
}

// Empty reports whether nothing qualified.
func (r Result) Empty() bool {
	return r.Count == 0
}

// Apply applies the whole transaction to text, or nothing on error.
func (r Result) Apply(text string) (string, error) {
	return r.Transaction.Apply(text)
}

// HoverResult describes the timestamp under a cursor.
type HoverResult struct {
	Token timestamp.Token `json:"token"`
	Unit  timestamp.Unit  `json:"unit"`
	Local string          `json:"local"`
	UTC   string          `json:"utc"`
	Zone  string          `json:"zone"`

	// Display is the text a host shows in its hover widget.
	Display string `json:"display"`
}

// Hover resolves the literal under offset. It returns false when there is
// no literal there or the literal does not qualify.
func Hover(cfg Config, text string, offset int) (HoverResult, bool) {
	tok, ok := timestamp.TokenAt(text, offset)
	if !ok {
		return HoverResult{}, false
	}
	cls, reason := timestamp.Classify(tok, cfg.Threshold)
	if reason != timestamp.Accepted {
		return HoverResult{}, false
	}

	r := cfg.render(cls)
	h := HoverResult{
		Token: tok,
		Unit:  cls.Unit,
		Local: timestamp.Format(r.Local, tok.Fraction),
		UTC:   timestamp.Format(r.UTC, tok.Fraction),
		Zone:  r.Zone,
	}
	h.Display = fmt.Sprintf("🕒 **%s:** %s", h.Zone, h.Local)
	if cfg.ShowUTC {
		h.Display += fmt.Sprintf("  \n🌐 **UTC:** %s", h.UTC)
	}
	return h, true
}

// All converts every qualifying literal in text.
func All(cfg Config, text string) Result {
	var tx edit.Transaction
	collect(cfg, text, 0, &tx)
	return finish(tx, msgNothingInBuffer)
}

// Selections converts qualifying literals inside each range. Every range is
// scanned on its own, so word boundaries are judged against the selected
// text only. Ranges must lie within text and must not overlap.
func Selections(cfg Config, text string, ranges []Range) (Result, error) {
	sorted, err := normalizeRanges(ranges, len(text))
	if err != nil {
		return Result{}, err
	}

	var tx edit.Transaction
	for _, r := range sorted {
		collect(cfg, text[r.Start:r.End], r.Start, &tx)
	}
	return finish(tx, msgNothingInSelection), nil
}

// collect appends one edit per qualifying token of text, shifting offsets
// by base.
func collect(cfg Config, text string, base int, tx *edit.Transaction) {
	for tok := range timestamp.Tokens(text) {
		cls, reason := timestamp.Classify(tok, cfg.Threshold)
		if reason != timestamp.Accepted {
			continue
		}
		r := cfg.render(cls)
		tx.Add(edit.Edit{
			Start:   base + tok.Start,
			End:     base + tok.End,
			NewText: timestamp.Format(r.Local, tok.Fraction),
		})
	}
}

func finish(tx edit.Transaction, emptyMessage string) Result {
	n := tx.Len()
	if n == 0 {
		return Result{Notice: Notice{Level: LevelWarning, Message: emptyMessage}}
	}
	return Result{
		Transaction: tx,
		Count:       n,
		Notice: Notice{
			Level:   LevelInfo,
			Message: fmt.Sprintf("Converted %d Unix timestamp(s) to date-time.", n),
		},
	}
}

func normalizeRanges(ranges []Range, size int) ([]Range, error) {
	sorted := make([]Range, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	for i, r := range sorted {
		if r.Start < 0 || r.End < r.Start || r.End > size {
			return nil, fmt.Errorf("%w: [%d,%d) in text of %d bytes", ErrInvalidRange, r.Start, r.End, size)
		}
		if i > 0 && sorted[i-1].End > r.Start {
			return nil, fmt.Errorf("%w: [%d,%d) overlaps [%d,%d)", ErrInvalidRange,
				sorted[i-1].Start, sorted[i-1].End, r.Start, r.End)
		}
	}
	return sorted, nil
}
