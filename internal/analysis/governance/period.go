package governance

import (
	"fmt"
	"time"

	"github.com/farxc/licitacoes_analytics/internal/sentinel"
)

const periodLayout = "2006-01"

// Period is a calendar month, keyed as YYYY-MM.
type Period struct {
	Year  int
	Month time.Month
}

func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse(periodLayout, s)
	if err != nil {
		return Period{}, fmt.Errorf("period %q: %w", s, sentinel.ErrInvalidPeriod)
	}
	return Period{Year: t.Year(), Month: t.Month()}, nil
}

// CurrentPeriod returns the month containing now.
func CurrentPeriod(now time.Time) Period {
	return Period{Year: now.Year(), Month: now.Month()}
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Bounds returns the half-open range [first of month, first of next month).
func (p Period) Bounds() (start, end time.Time) {
	start = time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

func (p Period) Contains(t time.Time) bool {
	start, end := p.Bounds()
	return !t.Before(start) && t.Before(end)
}
