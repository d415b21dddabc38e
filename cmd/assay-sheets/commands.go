package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/a3tai/assay-sheets/internal/batch"
	"github.com/a3tai/assay-sheets/internal/job"
	"github.com/a3tai/assay-sheets/internal/mcp"
	"github.com/a3tai/assay-sheets/internal/probe"
)

func newSubmitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <pdf>...",
		Short: "Process one or more PDF reports",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := false
			for _, path := range args {
				res := a.orch.Submit(path)
				if err := printJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
				if res.Status == job.ResultFailed {
					failed = true
				}
			}
			if failed {
				return errJobsFailed
			}
			return nil
		},
	}
}

func newBatchCmd(a *app) *cobra.Command {
	var recursive bool

	cmd := &cobra.Command{
		Use:   "batch <dir>",
		Short: "Process every PDF in a directory sequentially",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := batch.FindPDFs(args[0], recursive)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			runner := batch.NewRunner(a.logger).OnResult(func(index, total int, res *job.Result) {
				fmt.Fprintf(out, "[%d/%d] %s\n", index, total, res)
			})
			summary := runner.Run(cmd.Context(), a.orch, files)

			fmt.Fprintf(out, "\nRun %s: %d done, %d failed, %d skipped", summary.RunID, summary.Done, summary.Failed, summary.Skipped)
			if summary.Pending > 0 {
				fmt.Fprintf(out, ", %d not started", summary.Pending)
			}
			fmt.Fprintln(out)

			if summary.Failed > 0 {
				return errJobsFailed
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Include PDFs in subdirectories")
	return cmd
}

func newJobsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "jobs [job_id]",
		Short: "Show persisted job state",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := a.orch.Store()
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				st, err := store.Load(args[0])
				if err != nil {
					return fmt.Errorf("job state not found: %s", args[0])
				}
				return printJSON(out, st)
			}

			states, err := store.List()
			if err != nil {
				return err
			}
			if len(states) == 0 {
				fmt.Fprintf(out, "No jobs found in %s\n", store.Dir())
				return nil
			}
			for _, st := range states {
				line := fmt.Sprintf("%s  %-15s  %s", st.JobID, st.Status, st.PDFPath)
				if st.Error != "" {
					line += "  (" + st.Error + ")"
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
}

func newRegexCmd(a *app) *cobra.Command {
	var (
		jobID string
		file  string
		flags string
		list  bool
	)

	cmd := &cobra.Command{
		Use:   "regex [pattern]",
		Short: "Test a regex against a job's debug dumps",
		Long: "Test a regular expression against a debug dump. Use --list to see the dumps\n" +
			"of a job, --file to pick one (a path or a name inside the jobs directory), or\n" +
			"--job to test against the job's normalized text.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			jobsDir := a.orch.Store().Dir()

			if list {
				dumps, err := probe.ListDumps(jobsDir, jobID)
				if err != nil {
					return err
				}
				for _, d := range dumps {
					fmt.Fprintln(out, filepath.Base(d))
				}
				return nil
			}

			if len(args) == 0 {
				return fmt.Errorf("pattern is required")
			}
			f, err := probe.ParseFlags(flags)
			if err != nil {
				return err
			}

			target := file
			switch {
			case target == "" && jobID != "":
				target = a.orch.Store().NormalizedDumpPath(jobID)
			case target == "":
				return fmt.Errorf("either --file or --job is required")
			case filepath.Base(target) == target:
				target = filepath.Join(jobsDir, target)
			}

			m, err := probe.TestFile(target, args[0], f)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "File: %s\nFlags: %s\nRegex: %s\n", filepath.Base(target), f, args[0])
			if !m.Found {
				fmt.Fprintln(out, "-> No match.")
				return nil
			}
			fmt.Fprintln(out, "-> Match found.")
			fmt.Fprintf(out, "   match[0]: %s\n", m.Text)
			for i, g := range m.Groups {
				fmt.Fprintf(out, "   group(%d): %s\n", i+1, g)
			}
			fmt.Fprintf(out, "\n--- Context (line %d) ---\n%s\n", m.Line, m.Context)
			return nil
		},
	}

	cmd.Flags().StringVar(&jobID, "job", "", "Job id whose dumps to use")
	cmd.Flags().StringVar(&file, "file", "", "Dump file to test against")
	cmd.Flags().StringVar(&flags, "flags", "MULTILINE", "NONE, MULTILINE, DOTALL or MULTILINE|DOTALL")
	cmd.Flags().BoolVar(&list, "list", false, "List debug dumps instead of testing")
	return cmd
}

func newCleanCmd(a *app) *cobra.Command {
	var jobs, output bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Delete job state and dumps or generated workbooks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !jobs && !output {
				return fmt.Errorf("nothing to clean: pass --jobs and/or --output")
			}
			layout := a.orch.Layout()

			var dirs []string
			if jobs {
				dirs = append(dirs, layout.JobsDir)
			}
			if output {
				dirs = append(dirs, layout.OutputDir)
			}
			for _, dir := range dirs {
				n, err := layout.ClearDir(dir)
				if err != nil {
					return err
				}
				a.logger.Info("Directory cleared", zap.String("dir", dir), zap.Int("removed", n))
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries from %s\n", n, dir)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jobs, "jobs", false, "Clear the jobs directory")
	cmd.Flags().BoolVar(&output, "output", false, "Clear the output directory")
	return cmd
}

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the pipeline as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			server, err := mcp.NewServer(a.cfg, a.orch, a.logger)
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}
			return server.Run(cmd.Context())
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}
