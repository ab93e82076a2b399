package sim

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseYears expands a "start:end" range into the inclusive year list.
func ParseYears(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	start, end, ok := strings.Cut(s, ":")
	if !ok {
		return nil, fmt.Errorf("years must be in the format start:end, got %q", s)
	}
	first, err := strconv.Atoi(strings.TrimSpace(start))
	if err != nil {
		return nil, fmt.Errorf("bad start year %q", start)
	}
	last, err := strconv.Atoi(strings.TrimSpace(end))
	if err != nil {
		return nil, fmt.Errorf("bad end year %q", end)
	}
	if last < first {
		return nil, fmt.Errorf("year range %d:%d runs backwards", first, last)
	}
	years := make([]int, 0, last-first+1)
	for y := first; y <= last; y++ {
		years = append(years, y)
	}
	return years, nil
}
