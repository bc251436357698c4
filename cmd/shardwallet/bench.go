package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/bitfsorg/shardwallet-go/bench"
	"github.com/bitfsorg/shardwallet-go/meter"
)

func newBenchCmd(a *app) *cobra.Command {
	var (
		jsonOut bool
		textOut bool
		file    string
		sched   string
		rate    uint64
	)
	cmd := &cobra.Command{
		Use:   "bench [pattern ...]",
		Short: "Report the metered cost of wallet operations",
		Long: `bench runs cost scenarios against a fresh in-memory wallet and prints the
metered cost of every labelled step. Patterns are case-insensitive regular
expressions matched against scenario names; use -- before a pattern that
starts with a dash.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOut && textOut {
				return errors.New("--json and --text are mutually exclusive")
			}
			scenarios := bench.Builtin()
			if file != "" {
				var err error
				if scenarios, err = bench.LoadScenarios(file); err != nil {
					return err
				}
			}
			patterns, err := bench.CompilePatterns(args)
			if err != nil {
				return err
			}

			mode := bench.Text
			if jsonOut {
				mode = bench.JSON
			}
			if !cmd.Flags().Changed("rate") {
				rate = a.cfg.CostRate
			}
			r := &bench.Runner{
				Reporter: &bench.Reporter{W: cmd.OutOrStdout(), Mode: mode, Rate: rate},
				Log:      a.logger,
			}
			if sched != "" {
				if r.Schedule, err = meter.LoadSchedule(sched); err != nil {
					return err
				}
			}
			return r.Run(cmd.Context(), bench.Select(scenarios, patterns))
		},
	}
	f := cmd.Flags()
	f.BoolVarP(&jsonOut, "json", "j", false, "one JSON object per step")
	f.BoolVarP(&textOut, "text", "t", false, "human-readable lines (default)")
	f.StringVar(&file, "file", "", "YAML scenario file instead of the built-in scenarios")
	f.StringVar(&sched, "schedule", "", "YAML price list overriding the default cost schedule")
	f.Uint64Var(&rate, "rate", bench.DefaultRate, "sample price in sat per cost unit for text output")
	return cmd
}
