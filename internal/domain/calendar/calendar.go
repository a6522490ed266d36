// Package calendar computes the month grid of the admin date filter.
package calendar

import (
	"time"

	"github.com/go-faster/errors"
)

const (
	MonthLayout = "2006-01"
	DateLayout  = "2006-01-02"
)

var monthNames = [...]string{
	"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
	"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre",
}

// Weekdays are the column headers, Sunday first.
var Weekdays = [7]string{"Dom", "Lun", "Mar", "Mié", "Jue", "Vie", "Sáb"}

// Cell is one grid position. Blank cells pad the first week.
type Cell struct {
	Blank    bool   `json:"blank"`
	Day      int    `json:"day,omitempty"`
	Date     string `json:"date,omitempty"`
	Selected bool   `json:"selected,omitempty"`
	Today    bool   `json:"today,omitempty"`
}

// Month is the widget state: the displayed month and the selected date.
type Month struct {
	year     int
	month    time.Month
	selected time.Time
	today    time.Time
}

// New displays the month containing selected.
func New(selected, today time.Time) Month {
	return Month{
		year:     selected.Year(),
		month:    selected.Month(),
		selected: day(selected),
		today:    day(today),
	}
}

// Parse builds the state from query values. An empty month shows the month of
// the selected date, an empty selected date defaults to today.
func Parse(month, selected string, today time.Time) (Month, error) {
	sel := day(today)
	if selected != "" {
		t, err := time.ParseInLocation(DateLayout, selected, today.Location())
		if err != nil {
			return Month{}, errors.Wrap(err, "parse selected date")
		}
		sel = t
	}

	m := New(sel, today)
	if month != "" {
		t, err := time.ParseInLocation(MonthLayout, month, today.Location())
		if err != nil {
			return Month{}, errors.Wrap(err, "parse month")
		}
		m.year, m.month = t.Year(), t.Month()
	}
	return m, nil
}

// Selected returns the selected date at midnight.
func (m Month) Selected() time.Time { return m.selected }

// First returns the first day of the displayed month.
func (m Month) First() time.Time {
	return time.Date(m.year, m.month, 1, 0, 0, 0, 0, m.today.Location())
}

// Title is the localized header, e.g. "Febrero 2024".
func (m Month) Title() string {
	return monthNames[m.month-1] + " " + m.First().Format("2006")
}

// DaysInMonth returns the number of days of the displayed month.
func (m Month) DaysInMonth() int {
	// Day 0 of the next month normalizes to the last day of this one.
	return time.Date(m.year, m.month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Prev moves the display one month back.
func (m Month) Prev() Month {
	t := m.First().AddDate(0, -1, 0)
	m.year, m.month = t.Year(), t.Month()
	return m
}

// Next moves the display one month forward.
func (m Month) Next() Month {
	t := m.First().AddDate(0, 1, 0)
	m.year, m.month = t.Year(), t.Month()
	return m
}

// Select changes the selected date without moving the display.
func (m Month) Select(t time.Time) Month {
	m.selected = day(t)
	return m
}

// Grid returns the leading blanks followed by one cell per day.
func (m Month) Grid() []Cell {
	first := m.First()
	blanks := int(first.Weekday())
	days := m.DaysInMonth()

	cells := make([]Cell, 0, blanks+days)
	for range blanks {
		cells = append(cells, Cell{Blank: true})
	}
	for d := 1; d <= days; d++ {
		t := time.Date(m.year, m.month, d, 0, 0, 0, 0, first.Location())
		cells = append(cells, Cell{
			Day:      d,
			Date:     t.Format(DateLayout),
			Selected: sameDay(t, m.selected),
			Today:    sameDay(t, m.today),
		})
	}
	return cells
}

// Contains reports whether t falls on the selected date.
func (m Month) Contains(t time.Time) bool {
	return sameDay(t.In(m.today.Location()), m.selected)
}

func day(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, t.Location())
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
