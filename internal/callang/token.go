/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package callang implements the small schedule language used in the work week
// configuration: day lists ("mon-f, sat") and time lists ("8AM - 11 a, 1PM - 7:00PM").
package callang

import (
	"regexp"
	"strings"
)

// TokenKind identifies the lexical category of a token.
type TokenKind int

const (
	TokenDay TokenKind = iota
	TokenComma
	TokenDash
	TokenTime
	TokenMeridiem
)

func (k TokenKind) String() string {
	switch k {
	case TokenDay:
		return "Day"
	case TokenComma:
		return "Comma"
	case TokenDash:
		return "Dash"
	case TokenTime:
		return "TimeValue"
	case TokenMeridiem:
		return "Meridiem"
	default:
		return "Unknown"
	}
}

// Token is a classified fragment of schedule text.
type Token struct {
	Kind TokenKind
	Text string
}

func (t Token) String() string {
	return t.Kind.String() + "(" + t.Text + ")"
}

// Day builds a day token.
func Day(text string) Token { return Token{Kind: TokenDay, Text: text} }

// Comma builds a comma token.
func Comma() Token { return Token{Kind: TokenComma, Text: ","} }

// Dash builds a dash token.
func Dash() Token { return Token{Kind: TokenDash, Text: "-"} }

// TimeVal builds a time value token.
func TimeVal(text string) Token { return Token{Kind: TokenTime, Text: text} }

// Merid builds a meridiem token.
func Merid(text string) Token { return Token{Kind: TokenMeridiem, Text: text} }

var (
	timeValueExpr = regexp.MustCompile(`^\d+(:\d+(:\d+)?)?$`)
	meridiemExpr  = regexp.MustCompile(`(?i)^[ap]\.?(m\.?)?$`)
)

// dayNames maps every accepted spelling to its canonical weekday.
var dayNames = map[string]Weekday{
	"m": Monday, "mo": Monday, "mon": Monday, "monday": Monday,
	"t": Tuesday, "tu": Tuesday, "tue": Tuesday, "tues": Tuesday, "tuesday": Tuesday,
	"w": Wednesday, "we": Wednesday, "wed": Wednesday, "weds": Wednesday, "wednesday": Wednesday,
	"h": Thursday, "th": Thursday, "thu": Thursday, "thur": Thursday, "thurs": Thursday, "thursday": Thursday,
	"f": Friday, "fr": Friday, "fri": Friday, "friday": Friday,
	"sa": Saturday, "sat": Saturday, "saturday": Saturday,
	"su": Sunday, "sun": Sunday, "sunday": Sunday,
}

func lookupDay(text string) (Weekday, bool) {
	d, ok := dayNames[strings.ToLower(text)]
	return d, ok
}

// classifier pairs a token kind with the predicate that recognizes it.
type classifier struct {
	kind  TokenKind
	match func(string) bool
}

// classifiers is evaluated in order; the first match wins.
var classifiers = []classifier{
	{kind: TokenDay, match: func(s string) bool { _, ok := lookupDay(s); return ok }},
	{kind: TokenComma, match: func(s string) bool { return s == "," }},
	{kind: TokenDash, match: func(s string) bool { return s == "-" }},
	{kind: TokenTime, match: timeValueExpr.MatchString},
	{kind: TokenMeridiem, match: meridiemExpr.MatchString},
}

func classify(text string) (Token, bool) {
	for _, c := range classifiers {
		if c.match(text) {
			return Token{Kind: c.kind, Text: text}, true
		}
	}
	return Token{}, false
}

// isAfternoon reports the semantic value of a meridiem token.
func isAfternoon(text string) bool {
	return strings.HasPrefix(strings.ToLower(text), "p")
}
