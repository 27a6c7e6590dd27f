package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rendis/integra/internal/logging"
	"github.com/rendis/integra/internal/presets"
	"github.com/rendis/integra/pkg/schema"
)

// requestFlags collects an integration request from the command line. A
// request file, when given, takes precedence over the inline flags.
type requestFlags struct {
	file       *string
	expression *string
	dimension  *int
	x, y, z    *string
	steps      *int
	resolution *int
	backend    *string
	query      *string
}

func addRequestFlags(fs *flag.FlagSet) *requestFlags {
	return &requestFlags{
		file:       fs.String("f", "", "JSON request document (\"-\" reads stdin)"),
		expression: fs.String("e", "", "expression in x, y and z"),
		dimension:  fs.Int("d", 1, "dimension: 1, 2 or 3"),
		x:          fs.String("x", "0,1", "x bounds as min,max"),
		y:          fs.String("y", "0,1", "y bounds as min,max"),
		z:          fs.String("z", "0,1", "z bounds as min,max"),
		steps:      fs.Int("steps", 0, "quadrature steps per axis (default resolution*5)"),
		resolution: fs.Int("resolution", 0, "sample intervals per axis (default from config)"),
		backend:    fs.String("backend", "", "expression backend: native or expr"),
		query:      fs.String("q", "", "jq filter applied to the samples"),
	}
}

// document returns the request as a JSON document for the service.
func (f *requestFlags) document(stdin io.Reader) ([]byte, error) {
	switch *f.file {
	case "":
	case "-":
		return io.ReadAll(stdin)
	default:
		return os.ReadFile(*f.file)
	}

	if *f.expression == "" {
		return nil, fmt.Errorf("an expression (-e) or request file (-f) is required")
	}
	req := schema.IntegrationRequest{
		Expression: *f.expression,
		Dimension:  *f.dimension,
		Steps:      *f.steps,
		Resolution: *f.resolution,
		Backend:    *f.backend,
		Query:      *f.query,
	}
	var err error
	if req.Box.X, err = parseRange(*f.x); err != nil {
		return nil, fmt.Errorf("-x: %w", err)
	}
	if req.Box.Y, err = parseRange(*f.y); err != nil {
		return nil, fmt.Errorf("-y: %w", err)
	}
	if req.Box.Z, err = parseRange(*f.z); err != nil {
		return nil, fmt.Errorf("-z: %w", err)
	}
	return json.Marshal(req)
}

// parseRange parses "min,max". The constants pi and e are accepted, with an
// optional sign, so "-pi,pi" works.
func parseRange(s string) (schema.Range, error) {
	a, b, ok := strings.Cut(s, ",")
	if !ok {
		return schema.Range{}, fmt.Errorf("want min,max, got %q", s)
	}
	lo, err := parseBound(a)
	if err != nil {
		return schema.Range{}, err
	}
	hi, err := parseBound(b)
	if err != nil {
		return schema.Range{}, err
	}
	return schema.Range{lo, hi}, nil
}

func parseBound(s string) (float64, error) {
	s = strings.TrimSpace(s)
	sign := 1.0
	switch {
	case strings.HasPrefix(s, "-"):
		sign, s = -1, s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	switch s {
	case "pi":
		return sign * math.Pi, nil
	case "e":
		return sign * math.E, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid bound %q", s)
	}
	return sign * v, nil
}

func runSolve(args []string, stdout io.Writer) error {
	fs := newFlagSet("solve", os.Stderr)
	rf := addRequestFlags(fs)
	preset := fs.String("preset", "", "solve a named preset")
	asJSON := fs.Bool("json", false, "print the full solution as JSON")
	noHistory := fs.Bool("no-history", false, "do not record the run")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := logging.WithSource(context.Background(), logging.SourceCLI)
	a, err := buildApp(ctx, cfg, !*noHistory)
	if err != nil {
		return err
	}
	defer a.Close()

	var sol *schema.Solution
	if *preset != "" {
		sol, err = a.svc.SolvePreset(ctx, *preset, *rf.steps, *rf.resolution, logging.SourceCLI)
	} else {
		var doc []byte
		if doc, err = rf.document(os.Stdin); err != nil {
			return err
		}
		sol, err = a.svc.SolveJSON(ctx, doc, logging.SourceCLI)
	}
	if err != nil {
		return err
	}

	if *asJSON {
		return writeJSON(stdout, sol)
	}
	return printSolution(stdout, sol)
}

func printSolution(w io.Writer, sol *schema.Solution) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "expression\t%s\n", sol.Normalized)
	fmt.Fprintf(tw, "backend\t%s\n", sol.Backend)
	fmt.Fprintf(tw, "dimension\t%d\n", sol.Dimension)
	for i, r := range sol.Box.Axes(sol.Dimension) {
		fmt.Fprintf(tw, "%s\t[%g, %g]\n", []string{"x", "y", "z"}[i], r.Min(), r.Max())
	}
	fmt.Fprintf(tw, "steps\t%d\n", sol.Steps)
	fmt.Fprintf(tw, "value\t%.10g\n", sol.Result.Value)
	if sol.Result.ErrorEstimate != nil {
		fmt.Fprintf(tw, "error estimate\t%.3g\n", *sol.Result.ErrorEstimate)
	}
	fmt.Fprintf(tw, "samples\t%d\n", len(sol.Samples))
	if len(sol.Filtered) > 0 {
		data, err := json.Marshal(sol.Filtered)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "query\t%s\n", data)
	}
	for _, warn := range sol.Warnings {
		fmt.Fprintf(tw, "warning\t%s\n", warn.Message)
	}
	if sol.RunID != "" {
		fmt.Fprintf(tw, "run\t%s\n", sol.RunID)
	}
	fmt.Fprintf(tw, "duration\t%s\n", sol.Duration)
	return tw.Flush()
}

func runSamples(args []string, stdout io.Writer) error {
	fs := newFlagSet("samples", os.Stderr)
	rf := addRequestFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := logging.WithSource(context.Background(), logging.SourceCLI)
	a, err := buildApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	doc, err := rf.document(os.Stdin)
	if err != nil {
		return err
	}
	set, err := a.svc.SamplesJSON(ctx, doc, logging.SourceCLI)
	if err != nil {
		return err
	}
	return writeJSON(stdout, set)
}

func runPresets(args []string, stdout io.Writer) error {
	fs := newFlagSet("presets", os.Stderr)
	asJSON := fs.Bool("json", false, "print presets as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	all := presets.All()
	if *asJSON {
		return writeJSON(stdout, all)
	}

	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDIM\tEXPRESSION\tEXPECTED\tTITLE")
	for _, p := range all {
		expected := "-"
		if p.Expected != nil {
			expected = strconv.FormatFloat(*p.Expected, 'g', 10, 64)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n",
			p.Name, p.Request.Dimension, p.Request.Expression, expected, p.Title)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
