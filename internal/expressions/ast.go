package expressions

import (
	"errors"
	"math"
)

var errDivisionByZero = errors.New("division by zero")

// env holds the variable bindings for one evaluation, indexed like variables.
type env [3]float64

// node is a syntax tree node. Evaluation reports failures as errors instead
// of panicking; the caller decides how to recover.
type node interface {
	eval(v *env) (float64, error)
}

type numberNode float64

func (n numberNode) eval(*env) (float64, error) { return float64(n), nil }

type varNode int

func (n varNode) eval(v *env) (float64, error) { return v[n], nil }

type unaryNode struct {
	op      string
	operand node
}

func (n *unaryNode) eval(v *env) (float64, error) {
	x, err := n.operand.eval(v)
	if err != nil {
		return 0, err
	}
	switch n.op {
	case "-":
		return -x, nil
	case "!":
		return boolean(!truthy(x)), nil
	}
	return x, nil
}

type binaryNode struct {
	op          string
	left, right node
}

func (n *binaryNode) eval(v *env) (float64, error) {
	x, err := n.left.eval(v)
	if err != nil {
		return 0, err
	}
	y, err := n.right.eval(v)
	if err != nil {
		return 0, err
	}
	switch n.op {
	case "+":
		return x + y, nil
	case "-":
		return x - y, nil
	case "*":
		return x * y, nil
	case "/":
		if y == 0 {
			return 0, errDivisionByZero
		}
		return x / y, nil
	case "%":
		if y == 0 {
			return 0, errDivisionByZero
		}
		return math.Mod(x, y), nil
	case powerOperator:
		return math.Pow(x, y), nil
	case "<":
		return boolean(x < y), nil
	case "<=":
		return boolean(x <= y), nil
	case ">":
		return boolean(x > y), nil
	case ">=":
		return boolean(x >= y), nil
	case "==":
		return boolean(x == y), nil
	case "!=":
		return boolean(x != y), nil
	}
	return 0, errors.New("unknown operator " + n.op)
}

// logicalNode short-circuits && and ||.
type logicalNode struct {
	and         bool
	left, right node
}

func (n *logicalNode) eval(v *env) (float64, error) {
	x, err := n.left.eval(v)
	if err != nil {
		return 0, err
	}
	if truthy(x) != n.and {
		return boolean(!n.and), nil
	}
	y, err := n.right.eval(v)
	if err != nil {
		return 0, err
	}
	return boolean(truthy(y)), nil
}

type ternaryNode struct {
	cond, then, otherwise node
}

func (n *ternaryNode) eval(v *env) (float64, error) {
	c, err := n.cond.eval(v)
	if err != nil {
		return 0, err
	}
	if truthy(c) {
		return n.then.eval(v)
	}
	return n.otherwise.eval(v)
}

type callNode struct {
	fn   mathFunc
	args []node
}

func (n *callNode) eval(v *env) (float64, error) {
	var buf [4]float64
	args := buf[:0]
	for _, a := range n.args {
		x, err := a.eval(v)
		if err != nil {
			return 0, err
		}
		args = append(args, x)
	}
	return n.fn.call(args), nil
}

func truthy(v float64) bool { return v != 0 && !math.IsNaN(v) }

func boolean(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
