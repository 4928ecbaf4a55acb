package cli

import (
	"encoding/json"
	"fmt"

	"bomflow/internal/automation"

	"github.com/spf13/cobra"
)

var fireData string

var fireCmd = &cobra.Command{
	Use:   "fire <event>",
	Short: "Fire a BOM event and run the matching triggers",
	Example: `  bomflow fire ON_TASK_CREATE --data '{"taskId": 12, "taskTypeId": 3}'
  bomflow fire ON_BOM_UPDATE --data '{"taskId": 12}'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := parseEventData(fireData)
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

		report := a.triggers.FireEvent(cmd.Context(), args[0], data)
		if report.Err != nil {
			return report.Err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "event %s: %d selected, %d skipped, %d failed\n",
			report.Event, report.Selected, report.Skipped, report.Failed())
		for _, at := range report.Attempts {
			status := "ok"
			if !at.Success {
				status = "FAILED: " + at.Error
			}
			fmt.Fprintf(out, "  #%d %-24s %-16s %s\n", at.TriggerID, at.Name, at.ActionType, status)
		}
		return nil
	},
}

func init() {
	fireCmd.Flags().StringVarP(&fireData, "data", "d", "{}", "event data as a JSON object")
	rootCmd.AddCommand(fireCmd)
}

func parseEventData(raw string) (automation.EventData, error) {
	data := automation.EventData{}
	if raw == "" {
		return data, nil
	}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("--data must be a JSON object: %w", err)
	}
	return data, nil
}
