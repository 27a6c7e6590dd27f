package expressions

import (
	"strings"

	"github.com/rendis/integra/pkg/schema"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokOp
	tokLParen
	tokRParen
	tokComma
)

// token is one lexeme of an expression. spaced records whether whitespace
// preceded it, which decides implicit multiplication.
type token struct {
	kind   tokenKind
	text   string
	pos    int
	spaced bool
}

// mathNamespace is the qualifier accepted in front of library names, as in
// Math.sin or Math.PI.
const mathNamespace = "Math"

// multi-character operators, longest first.
var operators = []string{
	"**", "<=", ">=", "==", "!=", "&&", "||",
	"+", "-", "*", "/", "%", "^", "<", ">", "!", "?", ":",
}

// allowedRune reports whether r may appear anywhere in an expression.
func allowedRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == ' ', r == '\t', r == '\n', r == '\r':
		return true
	}
	return strings.ContainsRune(".+-*/%^<>=!&|?:(),", r)
}

// checkAllowList rejects text containing characters outside the expression
// alphabet. It runs before tokenization so nothing is evaluated on failure.
func checkAllowList(text string) error {
	for i, r := range text {
		if !allowedRune(r) {
			return schema.NewErrorf(schema.ErrCodeInvalidExpression,
				"character %q at position %d is not allowed", r, i).
				WithDetails(map[string]any{"position": i})
		}
	}
	return nil
}

// tokenize splits text into tokens. Identifiers qualified with the Math
// namespace are returned as a single token ("Math.sin").
func tokenize(text string) ([]token, error) {
	var toks []token
	spaced := false
	i := 0
	for i < len(text) {
		c := text[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			spaced = true
			i++
			continue
		case isDigit(c) || (c == '.' && i+1 < len(text) && isDigit(text[i+1])):
			end := scanNumber(text, i)
			toks = append(toks, token{kind: tokNumber, text: text[i:end], pos: i, spaced: spaced})
			i = end
		case isLetter(c):
			end := scanIdent(text, i)
			if text[i:end] == mathNamespace && end < len(text) && text[end] == '.' &&
				end+1 < len(text) && isLetter(text[end+1]) {
				end = scanIdent(text, end+1)
			}
			toks = append(toks, token{kind: tokIdent, text: text[i:end], pos: i, spaced: spaced})
			i = end
		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i, spaced: spaced})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i, spaced: spaced})
			i++
		case c == ',':
			toks = append(toks, token{kind: tokComma, text: ",", pos: i, spaced: spaced})
			i++
		default:
			op := matchOperator(text[i:])
			if op == "" {
				return nil, schema.NewErrorf(schema.ErrCodeInvalidExpression,
					"unexpected %q at position %d", string(c), i).
					WithDetails(map[string]any{"position": i})
			}
			toks = append(toks, token{kind: tokOp, text: op, pos: i, spaced: spaced})
			i += len(op)
		}
		spaced = false
	}
	toks = append(toks, token{kind: tokEOF, pos: len(text)})
	return toks, nil
}

func matchOperator(s string) string {
	for _, op := range operators {
		if strings.HasPrefix(s, op) {
			return op
		}
	}
	return ""
}

// scanNumber returns the end of the numeric literal starting at i. An
// exponent is consumed only when digits follow it, so "2e" lexes as 2 and e.
func scanNumber(s string, i int) int {
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
		}
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		if j < len(s) && isDigit(s[j]) {
			for j < len(s) && isDigit(s[j]) {
				j++
			}
			i = j
		}
	}
	return i
}

func scanIdent(s string, i int) int {
	for i < len(s) && (isLetter(s[i]) || isDigit(s[i])) {
		i++
	}
	return i
}

func isDigit(c byte) bool  { return c >= '0' && c <= '9' }
func isLetter(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
