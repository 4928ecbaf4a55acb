package cli

import (
	"encoding/json"
	"fmt"

	"bomflow/internal/repository"
	"bomflow/pkg/utils"

	"github.com/spf13/cobra"
)

var testTriggerData string

var testTriggerCmd = &cobra.Command{
	Use:   "test-trigger <id>",
	Short: "Execute one trigger with the given data, ignoring its condition and active flag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, ok := utils.ParseID(args[0])
		if !ok {
			return fmt.Errorf("invalid trigger id %q", args[0])
		}
		data, err := parseEventData(testTriggerData)
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cfg, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		result, execErr := a.triggers.TestTrigger(ctx, id, data)
		out := cmd.OutOrStdout()

		logs, _, err := a.triggers.ListLogs(ctx, repository.TriggerLogFilter{TriggerID: id, Page: 1, PageSize: 1})
		if err == nil && len(logs) > 0 {
			total, _ := a.triggers.LogCount(ctx, id)
			fmt.Fprintf(out, "logged #%d at %s (%d executions in total)\n", logs[0].ID, utils.FormatTime(logs[0].ExecutedAt), total)
		}
		if execErr != nil {
			return execErr
		}
		body, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(body))
		return nil
	},
}

func init() {
	testTriggerCmd.Flags().StringVarP(&testTriggerData, "data", "d", "{}", "input data as a JSON object")
	rootCmd.AddCommand(testTriggerCmd)
}
