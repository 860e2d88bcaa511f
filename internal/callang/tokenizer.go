/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package callang

import (
	"io"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Tokenizer splits schedule text into tokens in a single forward pass.
// It is not restartable; build a new one to scan the text again.
type Tokenizer struct {
	text     string
	pos      int
	stack    strings.Builder
	stackPos int
	pending  []Token
	err      error
}

// NewTokenizer returns a tokenizer positioned at the start of text.
func NewTokenizer(text string) *Tokenizer {
	return &Tokenizer{text: text}
}

// Tokenize scans all of text.
func Tokenize(text string) ([]Token, error) {
	tz := NewTokenizer(text)
	var out []Token
	for {
		tok, err := tz.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
	}
}

// Next returns the next token, io.EOF once the input is exhausted, or a
// *TokenError for input that cannot be tokenized. Errors are sticky.
func (t *Tokenizer) Next() (Token, error) {
	for len(t.pending) == 0 {
		if t.err != nil {
			return Token{}, t.err
		}
		if t.pos >= len(t.text) {
			if err := t.flush(); err != nil {
				t.err = err
				continue
			}
			if len(t.pending) == 0 {
				t.err = io.EOF
			}
			continue
		}
		r, size := utf8.DecodeRuneInString(t.text[t.pos:])
		if err := t.step(r, t.pos); err != nil {
			t.err = err
		}
		t.pos += size
	}
	tok := t.pending[0]
	t.pending = t.pending[1:]
	return tok, nil
}

func (t *Tokenizer) step(r rune, at int) error {
	switch {
	case unicode.IsSpace(r):
		return t.flush()
	case unicode.IsLetter(r) && t.stackIsNumeric():
		if err := t.flush(); err != nil {
			return err
		}
		t.push(r, at)
	case r == '-' || r == ',':
		if err := t.flush(); err != nil {
			return err
		}
		t.pending = append(t.pending, Token{Kind: symbolKind(r), Text: string(r)})
	case r == ':':
		if !t.stackIsNumeric() {
			return &TokenError{Char: r, Pos: at}
		}
		t.push(r, at)
	case r == '.':
		// Only meaningful inside a meridiem such as "a.m.".
		if t.stack.Len() == 0 || t.stackIsNumeric() {
			return &TokenError{Char: r, Pos: at}
		}
		t.push(r, at)
	case unicode.IsDigit(r), unicode.IsLetter(r):
		t.push(r, at)
	default:
		return &TokenError{Char: r, Pos: at}
	}
	return nil
}

func (t *Tokenizer) push(r rune, at int) {
	if t.stack.Len() == 0 {
		t.stackPos = at
	}
	t.stack.WriteRune(r)
}

func (t *Tokenizer) flush() error {
	if t.stack.Len() == 0 {
		return nil
	}
	text := t.stack.String()
	t.stack.Reset()
	tok, ok := classify(text)
	if !ok {
		return &TokenError{Text: text, Pos: t.stackPos}
	}
	t.pending = append(t.pending, tok)
	return nil
}

func (t *Tokenizer) stackIsNumeric() bool {
	s := t.stack.String()
	if s == "" {
		return false
	}
	for _, r := range s {
		if r != ':' && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func symbolKind(r rune) TokenKind {
	if r == ',' {
		return TokenComma
	}
	return TokenDash
}
