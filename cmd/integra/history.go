package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/rendis/integra/internal/scheduler"
	"github.com/rendis/integra/internal/store"
)

func runHistory(args []string, stdout io.Writer) error {
	fs := newFlagSet("history", os.Stderr)
	id := fs.String("id", "", "show a single run")
	dimension := fs.Int("d", 0, "filter by dimension")
	source := fs.String("source", "", "filter by source: cli, http or mcp")
	backend := fs.String("backend", "", "filter by backend")
	expression := fs.String("e", "", "filter by expression substring")
	since := fs.Duration("since", 0, "only runs newer than this, e.g. 24h")
	limit := fs.Int("limit", 20, "maximum runs to list")
	offset := fs.Int("offset", 0, "runs to skip")
	prune := fs.Bool("prune", false, "delete runs older than the configured retention")
	asJSON := fs.Bool("json", false, "print runs as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.History {
		return fmt.Errorf("run history is disabled in the configuration")
	}
	ctx := context.Background()
	a, err := buildApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if *prune {
		return pruneHistory(ctx, a, stdout)
	}

	if *id != "" {
		run, err := a.svc.Run(ctx, *id)
		if err != nil {
			return err
		}
		return writeJSON(stdout, run)
	}

	filter := store.RunFilter{
		Dimension:  *dimension,
		Source:     *source,
		Backend:    *backend,
		Expression: *expression,
		Limit:      *limit,
		Offset:     *offset,
	}
	if *since > 0 {
		t := time.Now().UTC().Add(-*since)
		filter.Since = &t
	}
	runs, err := a.svc.Runs(ctx, filter)
	if err != nil {
		return err
	}
	if *asJSON {
		if runs == nil {
			runs = []*store.Run{}
		}
		return writeJSON(stdout, runs)
	}
	return printRuns(stdout, runs)
}

func pruneHistory(ctx context.Context, a *app, stdout io.Writer) error {
	retention, err := a.cfg.retention()
	if err != nil {
		return err
	}
	if retention == 0 {
		return fmt.Errorf("history_retention is 0, nothing to prune")
	}
	sched, err := scheduler.NewScheduler(a.store, scheduler.Config{
		Schedule:  a.cfg.PruneSchedule,
		Retention: retention,
	}, a.metrics, a.logger)
	if err != nil {
		return err
	}
	n, err := sched.PruneNow(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Pruned %d runs older than %s\n", n, retention)
	return nil
}

func printRuns(w io.Writer, runs []*store.Run) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tSOURCE\tDIM\tEXPRESSION\tVALUE\tERROR")
	for _, r := range runs {
		estimate := "-"
		if r.ErrorEstimate != nil {
			estimate = strconv.FormatFloat(*r.ErrorEstimate, 'g', 3, 64)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%.10g\t%s\n",
			r.ID, r.CreatedAt.Local().Format(time.DateTime), r.Source, r.Dimension,
			truncate(r.Expression, 40), r.Value, estimate)
	}
	return tw.Flush()
}

// truncate shortens s to n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
