package core

import (
	"errors"
	"fmt"
	"strings"
)

const (
	PeriodMonth PeriodKind = iota
	PeriodQuarter
	PeriodYear
	PeriodRange
)

type PeriodKind int

// Period is the time window of an aggregation request. Only the fields
// relevant to Kind are meaningful; Start and End are passed to the ledger
// as typed by the user.
type Period struct {
	Kind    PeriodKind
	Year    int
	Month   int // 1-12
	Quarter int // 1-4
	Start   string
	End     string
}

var (
	ErrInvalidPeriod  = errors.New("invalid period")
	ErrInvalidYear    = errors.New("invalid year")
	ErrInvalidMonth   = errors.New("invalid month")
	ErrInvalidQuarter = errors.New("invalid quarter")
	ErrEmptyRange     = errors.New("empty date range")
)

func MonthPeriod(year, month int) Period {
	return Period{Kind: PeriodMonth, Year: year, Month: month}
}

func QuarterPeriod(year, quarter int) Period {
	return Period{Kind: PeriodQuarter, Year: year, Quarter: quarter}
}

func YearPeriod(year int) Period {
	return Period{Kind: PeriodYear, Year: year}
}

func RangePeriod(start, end string) Period {
	return Period{Kind: PeriodRange, Start: strings.TrimSpace(start), End: strings.TrimSpace(end)}
}

// QuarterOf maps a month (1-12) to its quarter (1-4).
func QuarterOf(month int) int {
	return (month + 2) / 3
}

func (k PeriodKind) String() string {
	switch k {
	case PeriodMonth:
		return "month"
	case PeriodQuarter:
		return "quarter"
	case PeriodYear:
		return "year"
	case PeriodRange:
		return "range"
	}
	return "unknown"
}

func (p Period) Validate() error {
	switch p.Kind {
	case PeriodMonth:
		if p.Year <= 0 {
			return ErrInvalidYear
		}
		if p.Month < 1 || p.Month > 12 {
			return ErrInvalidMonth
		}
	case PeriodQuarter:
		if p.Year <= 0 {
			return ErrInvalidYear
		}
		if p.Quarter < 1 || p.Quarter > 4 {
			return ErrInvalidQuarter
		}
	case PeriodYear:
		if p.Year <= 0 {
			return ErrInvalidYear
		}
	case PeriodRange:
		if strings.TrimSpace(p.Start) == "" || strings.TrimSpace(p.End) == "" {
			return ErrEmptyRange
		}
	default:
		return ErrInvalidPeriod
	}
	return nil
}

// Label renders the period the way it appears in a reply.
func (p Period) Label() string {
	switch p.Kind {
	case PeriodMonth:
		return fmt.Sprintf("%02d/%d", p.Month, p.Year)
	case PeriodQuarter:
		return fmt.Sprintf("o trimestre %d de %d", p.Quarter, p.Year)
	case PeriodYear:
		return fmt.Sprintf("o ano de %d", p.Year)
	case PeriodRange:
		return fmt.Sprintf("o período de %s a %s", p.Start, p.End)
	}
	return ""
}
