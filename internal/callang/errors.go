/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package callang

import (
	"errors"
	"fmt"
)

// ErrSyntax is matched by every error produced while reading schedule text.
var ErrSyntax = errors.New("callang: syntax error")

// TokenError reports input the tokenizer cannot accept: either a character
// outside the language or a word that matches no token kind.
type TokenError struct {
	Char rune
	Text string
	Pos  int
}

func (e *TokenError) Error() string {
	if e.Text != "" {
		return fmt.Sprintf("unrecognized token %q at index %d", e.Text, e.Pos)
	}
	return fmt.Sprintf("unrecognized character %q at index %d", e.Char, e.Pos)
}

func (e *TokenError) Is(target error) bool { return target == ErrSyntax }

// ParseError reports a well-formed token in a position the grammar does not allow.
type ParseError struct {
	Token   Token
	Message string
}

func (e *ParseError) Error() string {
	if e.Token.Text == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, e.Token)
}

func (e *ParseError) Is(target error) bool { return target == ErrSyntax }

// RangeError reports a range whose start comes after its end.
type RangeError struct {
	Start string
	End   string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("invalid range: %s is after %s", e.Start, e.End)
}

func (e *RangeError) Is(target error) bool { return target == ErrSyntax }
