/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package callang

import (
	"io"
	"iter"
	"time"
)

// Weekday is a canonical day, ordered Monday through Sunday.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// Weekdays lists every day in week order.
var Weekdays = [7]Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

var weekdayNames = [7]string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

func (d Weekday) String() string {
	if d < Monday || d > Sunday {
		return "invalid"
	}
	return weekdayNames[d]
}

// Valid reports whether d is one of the seven canonical days.
func (d Weekday) Valid() bool { return d >= Monday && d <= Sunday }

// StdWeekday converts to the time package's Sunday-first numbering.
func (d Weekday) StdWeekday() time.Weekday {
	return time.Weekday((int(d) + 1) % 7)
}

// WeekdayOf converts a time.Weekday.
func WeekdayOf(wd time.Weekday) Weekday {
	return Weekday((int(wd) + 6) % 7)
}

// DayRange is an inclusive run of days. Ranges never wrap across Sunday.
type DayRange struct {
	Start Weekday
	End   Weekday
}

// NewDayRange validates that start does not come after end.
func NewDayRange(start, end Weekday) (DayRange, error) {
	if start > end {
		return DayRange{}, &RangeError{Start: start.String(), End: end.String()}
	}
	return DayRange{Start: start, End: end}, nil
}

// Days yields each day of the range in order. The sequence can be ranged over
// any number of times.
func (r DayRange) Days() iter.Seq[Weekday] {
	return func(yield func(Weekday) bool) {
		for d := r.Start; d <= r.End; d++ {
			if !yield(d) {
				return
			}
		}
	}
}

// DayEntry is one element of a day list: a single day or a range.
type DayEntry struct {
	Start   Weekday
	End     Weekday
	IsRange bool
}

// SingleDay returns an entry holding one day.
func SingleDay(d Weekday) DayEntry { return DayEntry{Start: d, End: d} }

// RangeOfDays returns an entry holding a validated range.
func RangeOfDays(r DayRange) DayEntry { return DayEntry{Start: r.Start, End: r.End, IsRange: true} }

// DayList is the parsed form of a day list such as "m, t-h, f, sun".
type DayList struct {
	Entries []DayEntry
}

// All yields every day of the list, expanding ranges, in list order.
func (l DayList) All() iter.Seq[Weekday] {
	return func(yield func(Weekday) bool) {
		for _, e := range l.Entries {
			for d := range (DayRange{Start: e.Start, End: e.End}).Days() {
				if !yield(d) {
					return
				}
			}
		}
	}
}

// Normalized flattens the list into individual days.
func (l DayList) Normalized() []Weekday {
	out := make([]Weekday, 0, 7)
	for d := range l.All() {
		out = append(out, d)
	}
	return out
}

// ParseDayList parses day list text.
func ParseDayList(text string) (DayList, error) {
	tz := NewTokenizer(text)
	var stack []DayEntry

	for {
		tok, err := tz.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return DayList{}, err
		}

		switch tok.Kind {
		case TokenDay:
			d, _ := lookupDay(tok.Text)
			stack = append(stack, SingleDay(d))
		case TokenDash:
			if len(stack) == 0 || stack[len(stack)-1].IsRange {
				return DayList{}, &ParseError{Token: tok, Message: "day range has no start day"}
			}
			start := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			next, err := tz.Next()
			if err == io.EOF {
				return DayList{}, &ParseError{Token: tok, Message: "day range has no end day"}
			}
			if err != nil {
				return DayList{}, err
			}
			if next.Kind != TokenDay {
				return DayList{}, &ParseError{Token: next, Message: "expected a day after dash"}
			}
			end, _ := lookupDay(next.Text)
			r, err := NewDayRange(start.Start, end)
			if err != nil {
				return DayList{}, err
			}
			stack = append(stack, RangeOfDays(r))
		case TokenComma:
		default:
			return DayList{}, &ParseError{Token: tok, Message: "unexpected token in day list"}
		}
	}

	if len(stack) == 0 {
		return DayList{}, &ParseError{Message: "empty day list"}
	}
	return DayList{Entries: stack}, nil
}
