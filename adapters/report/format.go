// Package report renders attribution and geometry results as console text,
// markdown with an HTML rendering, and JSON.
package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"lakeattr/domain/attribution"
	"lakeattr/domain/gev"
)

// num formats v with four significant digits, keeping Inf and NaN visible.
func num(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	}
	return strconv.FormatFloat(v, 'g', 4, 64)
}

// estimate formats "value [low, high]" with flags appended.
func estimate(e attribution.Estimate) string {
	var b strings.Builder
	b.WriteString(num(e.Value))
	if e.Interval != nil {
		fmt.Fprintf(&b, " [%s, %s]", num(e.Interval.Low), num(e.Interval.High))
	}
	if len(e.Flags) > 0 {
		flags := make([]string, len(e.Flags))
		for i, f := range e.Flags {
			flags[i] = string(f)
		}
		fmt.Fprintf(&b, " (%s)", strings.Join(flags, ", "))
	}
	return b.String()
}

func params(p gev.Params) string {
	return fmt.Sprintf("shape=%s loc=%s scale=%s", num(p.Shape), num(p.Location), num(p.Scale))
}

// bound formats one parameter's interval; field is shape, location or scale.
func bound(b *attribution.ConfidenceBound, field string) string {
	if b == nil {
		return ""
	}
	pick := func(p gev.Params) float64 {
		switch field {
		case "shape":
			return p.Shape
		case "location":
			return p.Location
		}
		return p.Scale
	}
	return fmt.Sprintf("[%s, %s]", num(pick(b.Low)), num(pick(b.High)))
}

func percent(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return num(v)
	}
	return strconv.FormatFloat(100*v, 'f', 2, 64) + "%"
}
