package guide

import (
	"math"
	"strconv"
	"strings"
)

// RangeOpenEnd marks a range with no upper bound, as produced by the
// trailing "+" form.
const RangeOpenEnd = math.MaxInt32

// Range is an inclusive span of season or year numbers.
type Range struct {
	First int
	Last  int
}

func (r Range) contains(v int) bool { return v >= r.First && v <= r.Last }

// rangesContain reports whether v falls inside any range. An empty list
// places no restriction at all.
func rangesContain(ranges []Range, v int) bool {
	if len(ranges) == 0 {
		return true
	}
	for _, r := range ranges {
		if r.contains(v) {
			return true
		}
	}
	return false
}

// ParseRanges parses a season or year specification such as "1,3-5,7+"
// into inclusive ranges. Values must be positive and each range must be
// in ascending order; anything else fails the whole parse and returns
// ok=false with a nil list.
func ParseRanges(spec string) ([]Range, bool) {
	if strings.TrimSpace(spec) == "" {
		return nil, true
	}
	var ranges []Range
	for _, term := range strings.Split(spec, ",") {
		term = strings.TrimSpace(term)
		if term == "" {
			return nil, false
		}
		var r Range
		switch {
		case strings.HasSuffix(term, "+"):
			first, err := strconv.Atoi(strings.TrimSpace(strings.TrimSuffix(term, "+")))
			if err != nil || first <= 0 {
				return nil, false
			}
			r = Range{first, RangeOpenEnd}
		case strings.Contains(term, "-"):
			parts := strings.SplitN(term, "-", 2)
			first, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
			last, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
			if err1 != nil || err2 != nil || first <= 0 || last < first {
				return nil, false
			}
			r = Range{first, last}
		default:
			v, err := strconv.Atoi(term)
			if err != nil || v <= 0 {
				return nil, false
			}
			r = Range{v, v}
		}
		ranges = append(ranges, r)
	}
	return ranges, true
}

// FormatRanges is the inverse of ParseRanges, producing the canonical
// "1,3-5,7+" form.
func FormatRanges(ranges []Range) string {
	var b strings.Builder
	for i, r := range ranges {
		if i > 0 {
			b.WriteByte(',')
		}
		switch {
		case r.Last == RangeOpenEnd:
			b.WriteString(strconv.Itoa(r.First))
			b.WriteByte('+')
		case r.First == r.Last:
			b.WriteString(strconv.Itoa(r.First))
		default:
			b.WriteString(strconv.Itoa(r.First))
			b.WriteByte('-')
			b.WriteString(strconv.Itoa(r.Last))
		}
	}
	return b.String()
}
