/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/valpere/chunktran/internal"
	"github.com/valpere/chunktran/internal/config"
)

var (
	historyDBPath string
	historyLimit  int
	historyJSON   bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect past translation runs",
	Long: `List, inspect, and delete recorded translation runs.

Every translate invocation with a database records the run and the outcome of
each chunk: its status, attempts, latency and, for failures, the error kind.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(historyDBPath)
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := db.ListRuns(cmd.Context(), historyLimit)
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(runs) == 0 {
			fmt.Fprintln(out, "No runs recorded.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTARTED\tSTATUS\tBACKEND\tMODEL\tLANGS\tCHUNKS\tFAILED\tINPUT")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s→%s\t%d\t%d\t%s\n",
				r.ID, r.StartedAt.Local().Format("2006-01-02 15:04"), r.Status, r.Backend,
				truncate(r.Model, 24), r.SourceLang, r.TargetLang, r.Chunks, r.Failed,
				truncate(r.InputPath, 40))
		}
		return w.Flush()
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run and its chunk journal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(historyDBPath)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		run, err := db.GetRun(ctx, args[0])
		if err != nil {
			return err
		}
		chunks, err := db.ListChunks(ctx, run.ID)
		if err != nil {
			return fmt.Errorf("failed to list chunks: %w", err)
		}

		out := cmd.OutOrStdout()
		if historyJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				*internal.Run
				ChunkResults []internal.ChunkRecord `json:"chunk_results"`
			}{run, chunks})
		}

		fmt.Fprintf(out, "Run:      %s\n", run.ID)
		fmt.Fprintf(out, "Status:   %s\n", run.Status)
		fmt.Fprintf(out, "Input:    %s\n", run.InputPath)
		fmt.Fprintf(out, "Output:   %s\n", run.OutputPath)
		fmt.Fprintf(out, "Backend:  %s (%s)\n", run.Backend, run.Model)
		fmt.Fprintf(out, "Language: %s → %s\n", run.SourceLang, run.TargetLang)
		fmt.Fprintf(out, "Started:  %s\n", run.StartedAt.Local().Format(time.DateTime))
		if !run.FinishedAt.IsZero() {
			fmt.Fprintf(out, "Finished: %s (%s)\n", run.FinishedAt.Local().Format(time.DateTime),
				run.FinishedAt.Sub(run.StartedAt).Round(time.Second))
		}
		if run.Error != "" {
			fmt.Fprintf(out, "Error:    %s\n", run.Error)
		}
		if len(chunks) == 0 {
			return nil
		}

		fmt.Fprintln(out)
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CHUNK\tSTATUS\tATTEMPTS\tLATENCY\tERROR\tSOURCE")
		for _, c := range chunks {
			errText := c.ErrorKind
			if c.Error != "" {
				errText = truncate(c.ErrorKind+": "+c.Error, 40)
			}
			fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%s\n",
				c.Index+1, c.Status, c.Attempts, c.Latency.Round(time.Millisecond), errText,
				truncate(c.Source, 40))
		}
		return w.Flush()
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete a run and its chunk journal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(historyDBPath)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.DeleteRun(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to delete run: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted run: %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.PersistentFlags().StringVar(&historyDBPath, "db", config.DefaultDBPath, "Database path")
	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to show (0 = all)")
	historyShowCmd.Flags().BoolVar(&historyJSON, "json", false, "Print the run and its chunks as JSON")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
}
