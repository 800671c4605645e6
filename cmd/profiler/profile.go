package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"schemaprof/internal/profile"
)

func (a *app) profileCommand() *cobra.Command {
	var (
		ef     extractFlags
		save   string
		output string
	)
	cmd := &cobra.Command{
		Use:     "profile FILE",
		Short:   "Profile a file and print its inferred schema",
		Example: "profiler profile orders.json --save orders --output json",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(output); err != nil {
				return err
			}
			if err := ef.apply(cmd, &a.opts); err != nil {
				return err
			}
			ctx := cmd.Context()

			p, err := a.profiler(true)
			if err != nil {
				return err
			}
			popts, err := a.parserOptions()
			if err != nil {
				return err
			}
			res, err := p.ProfileFile(ctx, args[0], popts, save)
			if err != nil {
				return err
			}
			snap := res.Snapshot

			if save != "" {
				repo, err := a.repository(ctx)
				if err != nil {
					return err
				}
				v, err := repo.Save(ctx, save, snap)
				if err != nil {
					return err
				}
				snap.Version = v
				a.log.Info("snapshot saved", zap.String("name", save), zap.Int("version", v), zap.String("hash", snap.Hash))
				fmt.Fprintf(a.stderr, "saved %s version %d\n", save, v)
			}
			if res.Truncated {
				a.log.Info("sampling stopped at record limit", zap.Int("max_samples", a.opts.MaxSamples))
			}

			if output == "json" {
				return writeJSON(a.stdout, snap)
			}
			return profile.WriteTable(a.stdout, snap)
		},
	}
	ef.bind(cmd)
	cmd.Flags().StringVar(&save, "save", "", "store the snapshot under this dataset name")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output: table or json")
	return cmd
}

func (a *app) hashCommand() *cobra.Command {
	var ef extractFlags
	cmd := &cobra.Command{
		Use:   "hash FILE...",
		Short: "Print the schema hash of each file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ef.apply(cmd, &a.opts); err != nil {
				return err
			}
			p, err := a.profiler(false)
			if err != nil {
				return err
			}
			popts, err := a.parserOptions()
			if err != nil {
				return err
			}
			for _, path := range args {
				res, err := p.ProfileFile(cmd.Context(), path, popts, "")
				if err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "%s  %s\n", res.Snapshot.Hash, path)
			}
			return nil
		},
	}
	ef.bind(cmd)
	return cmd
}
