/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package callang

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a wall clock time with no date attached.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// Clock builds a TimeOfDay.
func Clock(hour, minute, second int) TimeOfDay {
	return TimeOfDay{Hour: hour, Minute: minute, Second: second}
}

// ClockOf extracts the wall clock time of t in its own location.
func ClockOf(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return TimeOfDay{Hour: h, Minute: m, Second: s}
}

// Offset is the time elapsed since midnight.
func (t TimeOfDay) Offset() time.Duration {
	return time.Duration(t.Hour)*time.Hour + time.Duration(t.Minute)*time.Minute + time.Duration(t.Second)*time.Second
}

// Compare returns -1, 0 or +1 as t is before, equal to or after o.
func (t TimeOfDay) Compare(o TimeOfDay) int {
	a, b := t.Offset(), o.Offset()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Before reports whether t comes strictly before o.
func (t TimeOfDay) Before(o TimeOfDay) bool { return t.Compare(o) < 0 }

func (t TimeOfDay) String() string {
	if t.Second != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
	}
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// On places t on the calendar day of date, in date's location.
func (t TimeOfDay) On(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, t.Hour, t.Minute, t.Second, 0, date.Location())
}

// TimeRange is an inclusive pair of times within one day.
type TimeRange struct {
	Start TimeOfDay
	End   TimeOfDay
}

func (r TimeRange) String() string { return r.Start.String() + "-" + r.End.String() }

// TimeEntry is one element of a time list: a single time or a range.
type TimeEntry struct {
	Start   TimeOfDay
	End     TimeOfDay
	IsRange bool
}

// TimeList is the parsed form of a time list such as "8AM - 11 a, 1PM - 7:00PM".
type TimeList struct {
	Entries []TimeEntry
}

// Normalized returns the list as ranges, in list order. A single time becomes
// a range that starts and ends at the same instant.
func (l TimeList) Normalized() []TimeRange {
	out := make([]TimeRange, 0, len(l.Entries))
	for _, e := range l.Entries {
		out = append(out, TimeRange{Start: e.Start, End: e.End})
	}
	return out
}

// timeValue is a parsed numeral still waiting for a possible meridiem.
type timeValue struct {
	tod      TimeOfDay
	tok      Token
	meridiem bool
}

func (v *timeValue) applyMeridiem(tok Token) error {
	if v.meridiem {
		return &ParseError{Token: tok, Message: "time " + v.tok.Text + " already has a meridiem"}
	}
	if v.tod.Hour < 1 || v.tod.Hour > 12 {
		return &ParseError{Token: tok, Message: "hour " + strconv.Itoa(v.tod.Hour) + " cannot take a meridiem"}
	}
	switch {
	case isAfternoon(tok.Text) && v.tod.Hour < 12:
		v.tod.Hour += 12
	case !isAfternoon(tok.Text) && v.tod.Hour == 12:
		v.tod.Hour = 0
	}
	v.meridiem = true
	return nil
}

type timeItem struct {
	start   timeValue
	end     timeValue
	isRange bool
}

// ParseTimeList parses time list text. Numerals without a meridiem are read
// as 24 hour clock values; a meridiem only ever affects the numeral directly
// before it.
func ParseTimeList(text string) (TimeList, error) {
	tz := NewTokenizer(text)
	var (
		stack   []timeItem
		pending *timeValue
	)

	for {
		tok, err := tz.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return TimeList{}, err
		}

		switch tok.Kind {
		case TokenTime:
			tod, err := parseTimeValue(tok)
			if err != nil {
				return TimeList{}, err
			}
			v := timeValue{tod: tod, tok: tok}
			if pending != nil {
				stack = append(stack, timeItem{start: *pending, end: v, isRange: true})
				pending = nil
				continue
			}
			stack = append(stack, timeItem{start: v})
		case TokenMeridiem:
			if pending != nil || len(stack) == 0 {
				return TimeList{}, &ParseError{Token: tok, Message: "meridiem without a preceding time"}
			}
			top := &stack[len(stack)-1]
			target := &top.start
			if top.isRange {
				target = &top.end
			}
			if err := target.applyMeridiem(tok); err != nil {
				return TimeList{}, err
			}
		case TokenDash:
			if pending != nil || len(stack) == 0 || stack[len(stack)-1].isRange {
				return TimeList{}, &ParseError{Token: tok, Message: "time range has no start time"}
			}
			start := stack[len(stack)-1].start
			stack = stack[:len(stack)-1]
			pending = &start
		case TokenComma:
			if pending != nil {
				return TimeList{}, &ParseError{Token: tok, Message: "time range has no end time"}
			}
		default:
			return TimeList{}, &ParseError{Token: tok, Message: "unexpected token in time list"}
		}
	}

	if pending != nil {
		return TimeList{}, &ParseError{Token: pending.tok, Message: "time range has no end time"}
	}
	if len(stack) == 0 {
		return TimeList{}, &ParseError{Message: "empty time list"}
	}

	list := TimeList{Entries: make([]TimeEntry, 0, len(stack))}
	for _, item := range stack {
		if !item.isRange {
			list.Entries = append(list.Entries, TimeEntry{Start: item.start.tod, End: item.start.tod})
			continue
		}
		if item.end.tod.Before(item.start.tod) {
			return TimeList{}, &RangeError{Start: item.start.tod.String(), End: item.end.tod.String()}
		}
		list.Entries = append(list.Entries, TimeEntry{Start: item.start.tod, End: item.end.tod, IsRange: true})
	}
	return list, nil
}

func parseTimeValue(tok Token) (TimeOfDay, error) {
	parts := strings.Split(tok.Text, ":")
	fields := [3]int{}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return TimeOfDay{}, &ParseError{Token: tok, Message: "malformed time value"}
		}
		fields[i] = n
	}
	tod := TimeOfDay{Hour: fields[0], Minute: fields[1], Second: fields[2]}
	if tod.Hour > 23 || tod.Minute > 59 || tod.Second > 59 {
		return TimeOfDay{}, &ParseError{Token: tok, Message: "time value out of range"}
	}
	return tod, nil
}
