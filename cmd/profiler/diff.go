package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"schemaprof/internal/diff"
	"schemaprof/internal/metrics"
	"schemaprof/internal/schema"
)

func (a *app) diffCommand() *cobra.Command {
	var (
		ef             extractFlags
		name           string
		v1, v2         int
		output         string
		failOnBreaking bool
		semantic       bool
	)
	cmd := &cobra.Command{
		Use:   "diff [FILE1 FILE2 | --name NAME [--v1 N --v2 M | FILE]]",
		Short: "Compare two schemas and classify the changes",
		Long: `Compare two schemas. The schemas come from two files, from two stored
versions of a dataset (--name with --v1 and --v2; when omitted, the last two
versions), or from the latest stored version of a dataset and a file.`,
		Example: "profiler diff old.json new.json --fail-on-breaking",
		Args:    cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(output); err != nil {
				return err
			}
			if err := ef.apply(cmd, &a.opts); err != nil {
				return err
			}
			if cmd.Flags().Changed("semantic-breaking") {
				a.opts.SemanticChangeBreaking = semantic
			}
			ctx := cmd.Context()
			policy := a.opts.Policy()

			var (
				res diff.Result
				err error
			)
			switch {
			case name == "" && len(args) == 2:
				res, err = a.diffFiles(ctx, args[0], args[1], policy)
			case name != "" && len(args) == 0:
				res, err = a.diffVersions(ctx, name, v1, v2, policy)
			case name != "" && len(args) == 1:
				res, err = a.diffLatest(ctx, name, args[0], policy)
			default:
				return fmt.Errorf("diff needs two files, or --name with optional versions or one file")
			}
			if err != nil {
				return err
			}

			if n := res.Summary.BreakingChanges; n > 0 {
				metrics.IncCounter(metrics.BreakingTotal, float64(n), nil)
			}
			a.log.Info("diff complete",
				zap.Int("added", res.Summary.FieldsAdded),
				zap.Int("removed", res.Summary.FieldsRemoved),
				zap.Int("modified", res.Summary.FieldsModified),
				zap.Int("breaking", res.Summary.BreakingChanges))

			if output == "json" {
				err = writeJSON(a.stdout, res)
			} else {
				err = diff.WriteTable(a.stdout, res)
			}
			if err != nil {
				return err
			}
			if failOnBreaking && res.HasBreaking() {
				return &exitError{code: exitBreaking, msg: fmt.Sprintf("breaking changes: %d", res.Summary.BreakingChanges)}
			}
			return nil
		},
	}
	ef.bind(cmd)
	f := cmd.Flags()
	f.StringVar(&name, "name", "", "dataset name in snapshot storage")
	f.IntVar(&v1, "v1", 0, "older stored version (default: the one before --v2)")
	f.IntVar(&v2, "v2", 0, "newer stored version (default: latest)")
	f.StringVarP(&output, "output", "o", "table", "output: table or json")
	f.BoolVar(&failOnBreaking, "fail-on-breaking", false, "exit with status 3 when breaking changes exist")
	f.BoolVar(&semantic, "semantic-breaking", false, "treat semantic type changes as breaking")
	return cmd
}

func (a *app) diffFiles(ctx context.Context, path1, path2 string, p diff.Policy) (diff.Result, error) {
	s1, err := a.snapshotOf(ctx, path1)
	if err != nil {
		return diff.Result{}, err
	}
	s2, err := a.snapshotOf(ctx, path2)
	if err != nil {
		return diff.Result{}, err
	}
	return diff.Compare(s1.Fields, s2.Fields, p), nil
}

func (a *app) diffVersions(ctx context.Context, name string, v1, v2 int, p diff.Policy) (diff.Result, error) {
	repo, err := a.repository(ctx)
	if err != nil {
		return diff.Result{}, err
	}
	if v1 <= 0 || v2 <= 0 {
		vs, err := repo.Versions(ctx, name)
		if err != nil {
			return diff.Result{}, err
		}
		if v2 <= 0 {
			v2 = vs[len(vs)-1].Version
		}
		if v1 <= 0 {
			v1 = v2 - 1
		}
	}
	if v1 <= 0 {
		return diff.Result{}, fmt.Errorf("%s has only version %d; nothing to compare", name, v2)
	}
	return diff.CompareVersions(ctx, repo, name, v1, v2, p)
}

func (a *app) diffLatest(ctx context.Context, name, path string, p diff.Policy) (diff.Result, error) {
	repo, err := a.repository(ctx)
	if err != nil {
		return diff.Result{}, err
	}
	prev, err := repo.Latest(ctx, name)
	if err != nil {
		return diff.Result{}, err
	}
	cur, err := a.snapshotOf(ctx, path)
	if err != nil {
		return diff.Result{}, err
	}
	return diff.Compare(prev.Fields, cur.Fields, p), nil
}

func (a *app) snapshotOf(ctx context.Context, path string) (schema.Snapshot, error) {
	p, err := a.profiler(false)
	if err != nil {
		return schema.Snapshot{}, err
	}
	popts, err := a.parserOptions()
	if err != nil {
		return schema.Snapshot{}, err
	}
	res, err := p.ProfileFile(ctx, path, popts, "")
	if err != nil {
		return schema.Snapshot{}, err
	}
	return res.Snapshot, nil
}
