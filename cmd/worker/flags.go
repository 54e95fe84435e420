package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/farxc/licitacoes_analytics/internal/analysis/governance"
	"github.com/farxc/licitacoes_analytics/internal/domain"
	"github.com/farxc/licitacoes_analytics/internal/pncp"
	"github.com/farxc/licitacoes_analytics/internal/store"
)

// parseDay accepts yyyy-mm-dd and the dd/mm/yyyy form used by the portals.
func parseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.DateOnly, "02/01/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
}

// collectWindow resolves the --start/--end flags. With both empty the window
// is the configured lookback ending at now.
func collectWindow(start, end string, now time.Time, lookbackDays int) (time.Time, time.Time, error) {
	if start == "" && end == "" {
		from, to := pncp.Window(now, lookbackDays)
		return from, to, nil
	}

	to := now
	if end != "" {
		t, err := parseDay(end)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = t
	}
	from := to.AddDate(0, 0, -lookbackDays)
	if start != "" {
		t, err := parseDay(start)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = t
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("start %s is after end %s", from.Format(time.DateOnly), to.Format(time.DateOnly))
	}
	return from, to, nil
}

// ibgeCodes cleans the --codes values, dropping blanks and duplicates.
func ibgeCodes(raw []string) ([]string, error) {
	seen := make(map[string]bool, len(raw))
	var out []string
	for _, c := range raw {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		if len(c) != 7 || domain.CleanDocument(c) != c {
			return nil, fmt.Errorf("invalid IBGE code %q", c)
		}
		seen[c] = true
		out = append(out, c)
	}
	return out, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// optionalPeriod parses --periodo. Empty means the scorer's current month.
func optionalPeriod(s string) (*governance.Period, error) {
	if s == "" {
		return nil, nil
	}
	p, err := governance.ParsePeriod(s)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func triggerType(s string) (string, error) {
	switch s {
	case "", store.TriggerTypeManual:
		return store.TriggerTypeManual, nil
	case store.TriggerTypeScheduled:
		return store.TriggerTypeScheduled, nil
	}
	return "", fmt.Errorf("invalid trigger %q, expected manual or scheduled", s)
}
