// cmd/runs.go
package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mjbeckett/stepflow/internal/config"
	"github.com/mjbeckett/stepflow/internal/runstore"
)

// newRunsCmd groups read access to the persisted run history.
func newRunsCmd() *cobra.Command {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect past run results",
	}
	runsCmd.AddCommand(newRunsListCmd())
	runsCmd.AddCommand(newRunsShowCmd())
	return runsCmd
}

func openRunStore() (*runstore.Store, error) {
	cfg, err := config.NewConfigFromViper(viper.GetViper())
	if err != nil {
		return nil, err
	}
	return runstore.Open(cfg.Storage.RunsDB)
}

func newRunsListCmd() *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Lists recorded runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openRunStore()
			if err != nil {
				return err
			}
			defer store.Close()

			projectID, _ := cmd.Flags().GetString("project")
			limit, _ := cmd.Flags().GetInt("limit")

			summaries, err := store.ListRuns(cmd.Context(), projectID, limit)
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Println("no runs recorded")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RUN ID\tSTATUS\tPROJECT\tSCENARIO\tSTARTED\tDURATION")
			for _, s := range summaries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%dms\n",
					s.RunID, s.Status, s.ProjectID, s.ScenarioID, s.StartTime, s.TotalDurationMs)
			}
			return w.Flush()
		},
	}
	listCmd.Flags().String("project", "", "filter by project id")
	listCmd.Flags().Int("limit", 20, "maximum rows (0 for all)")
	return listCmd
}

func newRunsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Prints the full result document for a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openRunStore()
			if err != nil {
				return err
			}
			defer store.Close()

			result, err := store.LoadResult(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if result == nil {
				return fmt.Errorf("run %q not found", args[0])
			}

			doc, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(doc))
			return nil
		},
	}
}
