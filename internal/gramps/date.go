package gramps

import (
	"fmt"
	"strings"
)

// DateModifier mirrors the Gramps date modifier values.
type DateModifier int

const (
	ModNone     DateModifier = 0
	ModBefore   DateModifier = 1
	ModAfter    DateModifier = 2
	ModAbout    DateModifier = 3
	ModRange    DateModifier = 4
	ModSpan     DateModifier = 5
	ModTextOnly DateModifier = 6
	ModFrom     DateModifier = 7
	ModTo       DateModifier = 8
)

// DateQuality mirrors the Gramps date quality values.
type DateQuality int

const (
	QualityNone       DateQuality = 0
	QualityEstimated  DateQuality = 1
	QualityCalculated DateQuality = 2
)

// DateValue is a possibly partial calendar date; zero fields are unknown.
type DateValue struct {
	Year  int
	Month int
	Day   int
}

func (v DateValue) isZero() bool {
	return v.Year == 0 && v.Month == 0 && v.Day == 0
}

// Date is a genealogical date. Stop is only used by ranges and spans.
type Date struct {
	Modifier DateModifier
	Quality  DateQuality
	Start    DateValue
	Stop     DateValue
	Text     string
}

// IsEmpty reports whether the date carries neither a value nor
// text-only content.
func (d Date) IsEmpty() bool {
	if d.Modifier == ModTextOnly && d.Text != "" {
		return false
	}
	return d.Start.isZero() && d.Stop.isZero()
}

// DateFormatter renders dates for display. Localized formatters live
// outside this module.
type DateFormatter interface {
	Format(d Date) string
}

// ISOFormatter renders dates as YYYY-MM-DD with English qualifiers,
// matching the Gramps default ISO display format.
type ISOFormatter struct{}

// Format implements DateFormatter.
func (ISOFormatter) Format(d Date) string {
	if d.Modifier == ModTextOnly {
		return d.Text
	}
	if d.IsEmpty() {
		return ""
	}

	start := isoValue(d.Start)
	var s string
	switch d.Modifier {
	case ModBefore:
		s = "before " + start
	case ModAfter:
		s = "after " + start
	case ModAbout:
		s = "about " + start
	case ModRange:
		s = fmt.Sprintf("between %s and %s", start, isoValue(d.Stop))
	case ModSpan:
		s = fmt.Sprintf("from %s to %s", start, isoValue(d.Stop))
	case ModFrom:
		s = "from " + start
	case ModTo:
		s = "to " + start
	default:
		s = start
	}

	switch d.Quality {
	case QualityEstimated:
		s = "estimated " + s
	case QualityCalculated:
		s = "calculated " + s
	}
	return s
}

func isoValue(v DateValue) string {
	var sb strings.Builder
	if v.Year == 0 {
		sb.WriteString("????")
	} else {
		sb.WriteString(fmt.Sprintf("%04d", v.Year))
	}
	if v.Month > 0 {
		sb.WriteString(fmt.Sprintf("-%02d", v.Month))
		if v.Day > 0 {
			sb.WriteString(fmt.Sprintf("-%02d", v.Day))
		}
	} else if v.Day > 0 {
		sb.WriteString(fmt.Sprintf("-??-%02d", v.Day))
	}
	return sb.String()
}
