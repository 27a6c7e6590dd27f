package expressions

import (
	"strings"

	"github.com/rendis/integra/pkg/schema"
)

// powerOperator is the canonical exponentiation operator after normalization.
const powerOperator = "**"

// normalize rewrites a token stream into canonical form. The passes run in a
// fixed order: exponentiation, implicit multiplication, then name mapping.
// Name mapping also rejects any identifier outside the library.
func normalize(toks []token) ([]token, error) {
	toks = rewritePower(toks)
	toks = expandImplicitMultiplication(toks)
	return resolveNames(toks)
}

func rewritePower(toks []token) []token {
	out := make([]token, len(toks))
	for i, t := range toks {
		if t.kind == tokOp && t.text == "^" {
			t.text = powerOperator
		}
		out[i] = t
	}
	return out
}

// expandImplicitMultiplication inserts "*" for 2x, xy and x2.
func expandImplicitMultiplication(toks []token) []token {
	out := make([]token, 0, len(toks))
	for _, t := range toks {
		if t.kind != tokIdent {
			out = append(out, t)
			continue
		}
		parts := []token{t}
		if isVariableRun(t.text) {
			parts = splitVariableRun(t)
		}
		if n := len(out); n > 0 && out[n-1].kind == tokNumber && !t.spaced && isValueName(parts[0].text) {
			out = append(out, token{kind: tokOp, text: "*", pos: t.pos})
		}
		out = append(out, parts...)
	}
	return out
}

// isVariableRun reports whether s is a juxtaposition of variables and digit
// runs starting with a variable, such as "xy", "x2" or "xyz".
func isVariableRun(s string) bool {
	if len(s) < 2 {
		return false
	}
	if _, ok := variables[s[:1]]; !ok {
		return false
	}
	for i := 1; i < len(s); i++ {
		if _, ok := variables[s[i:i+1]]; !ok && !isDigit(s[i]) {
			return false
		}
	}
	return true
}

func splitVariableRun(t token) []token {
	var parts []token
	s := t.text
	for i := 0; i < len(s); {
		if len(parts) > 0 {
			parts = append(parts, token{kind: tokOp, text: "*", pos: t.pos + i})
		}
		if isDigit(s[i]) {
			end := i
			for end < len(s) && isDigit(s[end]) {
				end++
			}
			parts = append(parts, token{kind: tokNumber, text: s[i:end], pos: t.pos + i})
			i = end
			continue
		}
		parts = append(parts, token{kind: tokIdent, text: s[i : i+1], pos: t.pos + i})
		i++
	}
	parts[0].spaced = t.spaced
	return parts
}

// isValueName reports whether an identifier names a variable or constant in
// any accepted spelling.
func isValueName(name string) bool {
	if _, ok := variables[name]; ok {
		return true
	}
	_, ok := constants[canonicalName(name)]
	return ok
}

// canonicalName maps Math-qualified and aliased spellings onto library names.
// Unknown names are returned unchanged.
func canonicalName(name string) string {
	if rest, ok := strings.CutPrefix(name, mathNamespace+"."); ok {
		switch rest {
		case "PI":
			return "pi"
		case "E":
			return "e"
		}
		if _, ok := functions[rest]; ok {
			return rest
		}
		return name
	}
	if alias, ok := aliases[name]; ok {
		return alias
	}
	return name
}

func resolveNames(toks []token) ([]token, error) {
	out := make([]token, len(toks))
	for i, t := range toks {
		if t.kind == tokIdent {
			t.text = canonicalName(t.text)
			if !knownName(t.text) {
				return nil, schema.NewErrorf(schema.ErrCodeInvalidExpression,
					"unknown identifier %q at position %d", t.text, t.pos).
					WithDetails(map[string]any{"position": t.pos, "identifier": t.text})
			}
		}
		out[i] = t
	}
	return out, nil
}

func knownName(name string) bool {
	if _, ok := variables[name]; ok {
		return true
	}
	if _, ok := constants[name]; ok {
		return true
	}
	_, ok := functions[name]
	return ok
}

// render joins normalized tokens into canonical text.
func render(toks []token) string {
	var b strings.Builder
	var prev *token
	for i := range toks {
		t := &toks[i]
		if t.kind == tokEOF {
			break
		}
		if prev != nil && needsSpace(prev, t, unaryAt(toks, i-1)) {
			b.WriteByte(' ')
		}
		b.WriteString(t.text)
		prev = t
	}
	return b.String()
}

func needsSpace(prev, cur *token, prevUnary bool) bool {
	switch {
	case prev.kind == tokLParen, cur.kind == tokRParen, cur.kind == tokComma:
		return false
	case cur.kind == tokLParen && prev.kind == tokIdent:
		return false
	case prevUnary:
		return false
	}
	return true
}

// unaryAt reports whether the operator at index i is a prefix operator.
func unaryAt(toks []token, i int) bool {
	if i < 0 || toks[i].kind != tokOp {
		return false
	}
	switch toks[i].text {
	case "-", "+", "!":
	default:
		return false
	}
	if i == 0 {
		return true
	}
	switch toks[i-1].kind {
	case tokOp, tokLParen, tokComma:
		return true
	}
	return false
}
