package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kbukum/photoflow/errors"
	"github.com/kbukum/photoflow/ingest"
	"github.com/kbukum/photoflow/version"
)

// execute runs the command line and maps the outcome to a process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "photoflow: %v\n", err)
		return errors.ExitCode(err)
	}
	return errors.ExitOK
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "photoflow",
		Short: "Copy photo trees through composable filter and transform stages",
		Long: `photoflow walks an input directory, passes every photo through a
composition of stages and writes the survivors to a destination under
the same relative paths, downscaling photos whose long edge exceeds the
configured bound.

Exit codes:
  0  run completed (item faults are reported, not fatal)
  1  systemic fault: input or output unavailable, or run aborted
  2  configuration fault: unknown stage, bad topology or flag`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return errors.ConfigFault(err.Error())
	})

	root.AddCommand(newRunCmd(), newValidateCmd(), newStagesCmd(), newVersionCmd())
	return root
}

func newStagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stages",
		Short: "List registered stages and merge policies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg := ingest.NewRegistry(ingest.Settings{})
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Stages:")
			for _, name := range reg.Names() {
				fmt.Fprintf(out, "  %s\n", name)
			}
			fmt.Fprintln(out, "Merge policies:")
			for _, name := range reg.Policies() {
				fmt.Fprintf(out, "  %s\n", name)
			}
			return nil
		},
	}
}

func newValidateCmd() *cobra.Command {
	var o runOptions
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check configuration and topology without touching input or output",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := o.load(cmd)
			if err != nil {
				return err
			}
			p, err := newPlan(cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d streams, prelude %v, output %q\n",
				len(p.spec.Streams), p.spec.Prelude, p.spec.OutputStream())
			return nil
		},
	}
	o.bind(cmd)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.GetFullVersion())
		},
	}
}
