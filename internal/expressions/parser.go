package expressions

import (
	"strconv"

	"github.com/rendis/integra/pkg/schema"
)

// parser is a recursive-descent parser over normalized tokens.
//
//	expression := ternary
//	ternary    := or [ "?" ternary ":" ternary ]
//	or         := and { "||" and }
//	and        := equality { "&&" equality }
//	equality   := relation { ("==" | "!=") relation }
//	relation   := additive { ("<" | "<=" | ">" | ">=") additive }
//	additive   := term { ("+" | "-") term }
//	term       := unary { ("*" | "/" | "%") unary }
//	unary      := ("-" | "+" | "!") unary | power
//	power      := primary [ "**" unary ]
//	primary    := number | name [ "(" args ")" ] | "(" expression ")"
type parser struct {
	toks []token
	pos  int
}

func parse(toks []token) (node, error) {
	p := &parser{toks: toks}
	n, err := p.ternary()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.unexpected(t)
	}
	return n, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

// acceptOp consumes the next token if it is one of the given operators.
func (p *parser) acceptOp(ops ...string) (string, bool) {
	t := p.peek()
	if t.kind != tokOp {
		return "", false
	}
	for _, op := range ops {
		if t.text == op {
			p.pos++
			return op, true
		}
	}
	return "", false
}

func (p *parser) unexpected(t token) error {
	if t.kind == tokEOF {
		return schema.NewErrorf(schema.ErrCodeInvalidExpression, "unexpected end of expression").
			WithDetails(map[string]any{"position": t.pos})
	}
	return schema.NewErrorf(schema.ErrCodeInvalidExpression,
		"unexpected %q at position %d", t.text, t.pos).
		WithDetails(map[string]any{"position": t.pos})
}

func (p *parser) ternary() (node, error) {
	cond, err := p.or()
	if err != nil {
		return nil, err
	}
	if _, ok := p.acceptOp("?"); !ok {
		return cond, nil
	}
	then, err := p.ternary()
	if err != nil {
		return nil, err
	}
	if _, ok := p.acceptOp(":"); !ok {
		return nil, p.unexpected(p.peek())
	}
	otherwise, err := p.ternary()
	if err != nil {
		return nil, err
	}
	return &ternaryNode{cond: cond, then: then, otherwise: otherwise}, nil
}

func (p *parser) or() (node, error) {
	left, err := p.and()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.acceptOp("||"); !ok {
			return left, nil
		}
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		left = &logicalNode{and: false, left: left, right: right}
	}
}

func (p *parser) and() (node, error) {
	left, err := p.equality()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.acceptOp("&&"); !ok {
			return left, nil
		}
		right, err := p.equality()
		if err != nil {
			return nil, err
		}
		left = &logicalNode{and: true, left: left, right: right}
	}
}

func (p *parser) equality() (node, error) {
	return p.binary(p.relation, []string{"==", "!="})
}

func (p *parser) relation() (node, error) {
	return p.binary(p.additive, []string{"<=", ">=", "<", ">"})
}

func (p *parser) additive() (node, error) {
	return p.binary(p.term, []string{"+", "-"})
}

func (p *parser) term() (node, error) {
	return p.binary(p.unary, []string{"*", "/", "%"})
}

// binary parses a left-associative chain of the given operators.
func (p *parser) binary(operand func() (node, error), ops []string) (node, error) {
	left, err := operand()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.acceptOp(ops...)
		if !ok {
			return left, nil
		}
		right, err := operand()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) unary() (node, error) {
	if op, ok := p.acceptOp("-", "+", "!"); ok {
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &unaryNode{op: op, operand: operand}, nil
	}
	return p.power()
}

func (p *parser) power() (node, error) {
	base, err := p.primary()
	if err != nil {
		return nil, err
	}
	if _, ok := p.acceptOp(powerOperator); !ok {
		return base, nil
	}
	exp, err := p.unary()
	if err != nil {
		return nil, err
	}
	return &binaryNode{op: powerOperator, left: base, right: exp}, nil
}

func (p *parser) primary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		v, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeInvalidExpression,
				"invalid number %q at position %d", t.text, t.pos).WithCause(err)
		}
		return numberNode(v), nil
	case tokLParen:
		n, err := p.ternary()
		if err != nil {
			return nil, err
		}
		if r := p.next(); r.kind != tokRParen {
			return nil, p.unexpected(r)
		}
		return n, nil
	case tokIdent:
		return p.name(t)
	}
	return nil, p.unexpected(t)
}

func (p *parser) name(t token) (node, error) {
	if idx, ok := variables[t.text]; ok {
		return varNode(idx), nil
	}
	if v, ok := constants[t.text]; ok {
		return numberNode(v), nil
	}
	fn, ok := functions[t.text]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeInvalidExpression,
			"unknown identifier %q at position %d", t.text, t.pos)
	}
	if p.peek().kind != tokLParen {
		return nil, schema.NewErrorf(schema.ErrCodeInvalidExpression,
			"function %s at position %d must be called", t.text, t.pos)
	}
	p.next()
	args, err := p.args()
	if err != nil {
		return nil, err
	}
	if len(args) < fn.minArgs || (fn.maxArgs >= 0 && len(args) > fn.maxArgs) {
		return nil, schema.NewErrorf(schema.ErrCodeInvalidExpression,
			"wrong number of arguments to %s: got %d", t.text, len(args)).
			WithDetails(map[string]any{"function": t.text, "position": t.pos})
	}
	return &callNode{fn: fn, args: args}, nil
}

// args parses a comma-separated argument list after "(".
func (p *parser) args() ([]node, error) {
	var args []node
	if p.peek().kind == tokRParen {
		p.next()
		return args, nil
	}
	for {
		a, err := p.ternary()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		switch t := p.next(); t.kind {
		case tokRParen:
			return args, nil
		case tokComma:
		default:
			return nil, p.unexpected(t)
		}
	}
}
