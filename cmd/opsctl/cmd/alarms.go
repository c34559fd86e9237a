package cmd

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/opswatch/internal/models"
)

var alarmsCmd = &cobra.Command{
	Use:   "alarms",
	Short: "Inspect and work alarms",
}

var alarmsListJSON bool

var alarmsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active alarms, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Items []*models.Alarm `json:"items"`
			Count int             `json:"count"`
		}
		if err := callAPI("GET", "/api/v1/alarms", nil, &resp); err != nil {
			return err
		}

		if alarmsListJSON {
			return printJSON(resp.Items)
		}
		printAlarmTable(resp.Items)
		fmt.Printf("\n%d active alarm(s)\n", resp.Count)
		return nil
	},
}

var alarmsGetCmd = &cobra.Command{
	Use:   "get <alarm-id>",
	Short: "Show one active alarm",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var alarm models.Alarm
		if err := callAPI("GET", "/api/v1/alarms/"+args[0], nil, &alarm); err != nil {
			return err
		}
		return printJSON(alarm)
	},
}

var ackNote string

var alarmsAckCmd = &cobra.Command{
	Use:   "ack <alarm-id>",
	Short: "Acknowledge an alarm (stops escalation)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]string{}
		if ackNote != "" {
			body["note"] = ackNote
		}
		var alarm models.Alarm
		if err := callAPI("POST", "/api/v1/alarms/"+args[0]+"/acknowledge", body, &alarm); err != nil {
			return err
		}
		fmt.Printf("alarm %s acknowledged by %s\n", alarm.ID, alarm.AckBy)
		return nil
	},
}

var alarmsResolveCmd = &cobra.Command{
	Use:   "resolve <alarm-id>",
	Short: "Resolve an alarm and remove it from the active set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var alarm models.Alarm
		if err := callAPI("POST", "/api/v1/alarms/"+args[0]+"/resolve", nil, &alarm); err != nil {
			return err
		}
		fmt.Printf("alarm %s resolved\n", alarm.ID)
		return nil
	},
}

var clearRuleID string

var alarmsClearCmd = &cobra.Command{
	Use:   "clear [alarm-id]",
	Short: "Clear one alarm, one rule's alarms, or the whole active set",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			var alarm models.Alarm
			if err := callAPI("DELETE", "/api/v1/alarms/"+args[0], nil, &alarm); err != nil {
				return err
			}
			fmt.Printf("alarm %s cleared\n", alarm.ID)
			return nil
		}

		path := "/api/v1/alarms"
		if clearRuleID != "" {
			path += "?rule_id=" + url.QueryEscape(clearRuleID)
		}
		var resp struct {
			Cleared int `json:"cleared"`
		}
		if err := callAPI("DELETE", path, nil, &resp); err != nil {
			return err
		}
		fmt.Printf("%d alarm(s) cleared\n", resp.Cleared)
		return nil
	},
}

var (
	historyStatus string
	historyRule   string
	historyLimit  int
	historyJSON   bool
)

var alarmsHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List alarm history, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		q := url.Values{}
		if historyStatus != "" {
			q.Set("status", historyStatus)
		}
		if historyRule != "" {
			q.Set("rule_id", historyRule)
		}
		if historyLimit > 0 {
			q.Set("limit", fmt.Sprint(historyLimit))
		}

		var resp struct {
			Items []*models.Alarm `json:"items"`
			Count int             `json:"count"`
		}
		path := "/api/v1/alarms/history"
		if len(q) > 0 {
			path += "?" + q.Encode()
		}
		if err := callAPI("GET", path, nil, &resp); err != nil {
			return err
		}

		if historyJSON {
			return printJSON(resp.Items)
		}
		printAlarmTable(resp.Items)
		fmt.Printf("\n%d alarm(s)\n", resp.Count)
		return nil
	},
}

var alarmsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show alarm manager counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		var stats map[string]any
		if err := callAPI("GET", "/api/v1/alarms/stats", nil, &stats); err != nil {
			return err
		}
		return printJSON(stats)
	},
}

func printAlarmTable(items []*models.Alarm) {
	fmt.Printf("%-36s %-14s %-10s %-30s %s\n", "ID", "STATUS", "SEVERITY", "RULE", "TRIGGERED")
	for _, alarm := range items {
		fmt.Printf("%-36s %-14s %-10s %-30s %s\n",
			alarm.ID, alarm.Status, alarm.Severity, alarm.RuleName,
			alarm.TriggeredAt.Local().Format(time.DateTime))
	}
}

func init() {
	alarmsListCmd.Flags().BoolVar(&alarmsListJSON, "json", false, "output as JSON")
	alarmsAckCmd.Flags().StringVar(&ackNote, "note", "", "acknowledgement note")
	alarmsClearCmd.Flags().StringVar(&clearRuleID, "rule-id", "", "clear only this rule's alarms")
	alarmsHistoryCmd.Flags().StringVar(&historyStatus, "status", "", "filter by status (active, acknowledged, resolved, cleared)")
	alarmsHistoryCmd.Flags().StringVar(&historyRule, "rule-id", "", "filter by rule ID")
	alarmsHistoryCmd.Flags().IntVarP(&historyLimit, "limit", "n", 50, "maximum alarms to return")
	alarmsHistoryCmd.Flags().BoolVar(&historyJSON, "json", false, "output as JSON")

	alarmsCmd.AddCommand(alarmsListCmd)
	alarmsCmd.AddCommand(alarmsGetCmd)
	alarmsCmd.AddCommand(alarmsAckCmd)
	alarmsCmd.AddCommand(alarmsResolveCmd)
	alarmsCmd.AddCommand(alarmsClearCmd)
	alarmsCmd.AddCommand(alarmsHistoryCmd)
	alarmsCmd.AddCommand(alarmsStatsCmd)
	rootCmd.AddCommand(alarmsCmd)
}
