package expressions

// NativeCompiler compiles expressions with the built-in recursive-descent
// parser into a tree that is walked per evaluation.
// Thread-safe: the compiler holds no state and compiled trees are read-only.
type NativeCompiler struct{}

// NewNativeCompiler creates a native compiler.
func NewNativeCompiler() *NativeCompiler {
	return &NativeCompiler{}
}

// Name returns the backend identifier.
func (c *NativeCompiler) Name() string {
	return BackendNative
}

// Compile checks, normalizes and parses text.
func (c *NativeCompiler) Compile(text string) (*Expression, error) {
	toks, err := prepare(text)
	if err != nil {
		return nil, err
	}
	root, err := parse(toks)
	if err != nil {
		return nil, err
	}
	return &Expression{
		text:       text,
		normalized: render(toks),
		backend:    BackendNative,
		program:    treeProgram{root: root},
	}, nil
}

type treeProgram struct {
	root node
}

func (p treeProgram) evaluate(x, y, z float64) (float64, error) {
	v := env{x, y, z}
	return p.root.eval(&v)
}

var _ Compiler = (*NativeCompiler)(nil)
