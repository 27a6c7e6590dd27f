package expressions

import (
	"math"
	"sort"
)

// Variables bound by every compiled expression, in argument order.
var variables = map[string]int{"x": 0, "y": 1, "z": 2}

var constants = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}

// mathFunc is one entry of the fixed function library.
type mathFunc struct {
	minArgs int
	maxArgs int // negative means variadic
	call    func(args []float64) float64
}

func unary(fn func(float64) float64) mathFunc {
	return mathFunc{minArgs: 1, maxArgs: 1, call: func(a []float64) float64 { return fn(a[0]) }}
}

func binary(fn func(float64, float64) float64) mathFunc {
	return mathFunc{minArgs: 2, maxArgs: 2, call: func(a []float64) float64 { return fn(a[0], a[1]) }}
}

var functions = map[string]mathFunc{
	"sin":   unary(math.Sin),
	"cos":   unary(math.Cos),
	"tan":   unary(math.Tan),
	"asin":  unary(math.Asin),
	"acos":  unary(math.Acos),
	"atan":  unary(math.Atan),
	"sinh":  unary(math.Sinh),
	"cosh":  unary(math.Cosh),
	"tanh":  unary(math.Tanh),
	"exp":   unary(math.Exp),
	"log":   unary(math.Log),
	"log10": unary(math.Log10),
	"log2":  unary(math.Log2),
	"sqrt":  unary(math.Sqrt),
	"cbrt":  unary(math.Cbrt),
	"abs":   unary(math.Abs),
	"floor": unary(math.Floor),
	"ceil":  unary(math.Ceil),
	"round": unary(roundHalfUp),
	"trunc": unary(math.Trunc),
	"sign":  unary(sign),
	"atan2": binary(math.Atan2),
	"pow":   binary(math.Pow),
	"hypot": binary(math.Hypot),
	"min":   {minArgs: 1, maxArgs: -1, call: minOf},
	"max":   {minArgs: 1, maxArgs: -1, call: maxOf},
}

// aliases map alternative spellings onto library names. Names qualified
// with the Math namespace are resolved separately.
var aliases = map[string]string{
	"ln": "log",
	"PI": "pi",
	"E":  "e",
}

// roundHalfUp rounds halves toward positive infinity: round(-2.5) == -2.
func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return v
}

func minOf(args []float64) float64 {
	out := args[0]
	for _, a := range args[1:] {
		out = math.Min(out, a)
	}
	return out
}

func maxOf(args []float64) float64 {
	out := args[0]
	for _, a := range args[1:] {
		out = math.Max(out, a)
	}
	return out
}

// FunctionNames lists the function library in sorted order.
func FunctionNames() []string {
	names := make([]string, 0, len(functions))
	for name := range functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ConstantNames lists the named constants in sorted order.
func ConstantNames() []string {
	names := make([]string, 0, len(constants))
	for name := range constants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// VariableNames lists the bound variables in argument order.
func VariableNames() []string {
	names := make([]string, len(variables))
	for name, i := range variables {
		names[i] = name
	}
	return names
}
