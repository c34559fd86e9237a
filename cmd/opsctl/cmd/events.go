package cmd

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/opswatch/internal/models"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Publish and inspect events",
}

var (
	publishType   string
	publishSource string
	publishData   string
)

var eventsPublishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish one event to the bus",
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]any{
			"type":   publishType,
			"source": publishSource,
		}
		if publishData != "" {
			var data map[string]any
			if err := json.Unmarshal([]byte(publishData), &data); err != nil {
				return fmt.Errorf("--data must be a JSON object: %w", err)
			}
			body["data"] = data
		}

		var evt models.Event
		if err := callAPI("POST", "/api/v1/events", body, &evt); err != nil {
			return err
		}
		fmt.Printf("published %s (%s)\n", evt.ID, evt.Type)
		return nil
	},
}

var (
	listType   string
	listSource string
	listLimit  int
	listJSON   bool
)

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent events, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		q := url.Values{}
		if listType != "" {
			q.Set("type", listType)
		}
		if listSource != "" {
			q.Set("source", listSource)
		}
		if listLimit > 0 {
			q.Set("limit", fmt.Sprint(listLimit))
		}

		var resp struct {
			Items []models.Event `json:"items"`
			Count int            `json:"count"`
		}
		path := "/api/v1/events"
		if len(q) > 0 {
			path += "?" + q.Encode()
		}
		if err := callAPI("GET", path, nil, &resp); err != nil {
			return err
		}

		if listJSON {
			return printJSON(resp.Items)
		}
		fmt.Printf("%-20s %-28s %-20s %s\n", "TIME", "TYPE", "SOURCE", "ID")
		for _, evt := range resp.Items {
			fmt.Printf("%-20s %-28s %-20s %s\n",
				evt.Timestamp.Local().Format(time.DateTime), evt.Type, evt.Source, evt.ID)
		}
		fmt.Printf("\n%d event(s)\n", resp.Count)
		return nil
	},
}

var eventsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show event bus counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		var stats map[string]any
		if err := callAPI("GET", "/api/v1/events/stats", nil, &stats); err != nil {
			return err
		}
		return printJSON(stats)
	},
}

func init() {
	eventsPublishCmd.Flags().StringVarP(&publishType, "type", "t", "", "event type (required)")
	eventsPublishCmd.Flags().StringVar(&publishSource, "source", "", "event source (required)")
	eventsPublishCmd.Flags().StringVarP(&publishData, "data", "d", "", "payload as a JSON object")
	eventsPublishCmd.MarkFlagRequired("type")
	eventsPublishCmd.MarkFlagRequired("source")

	eventsListCmd.Flags().StringVarP(&listType, "type", "t", "", "filter by event type")
	eventsListCmd.Flags().StringVar(&listSource, "source", "", "filter by event source")
	eventsListCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "maximum events to return")
	eventsListCmd.Flags().BoolVar(&listJSON, "json", false, "output as JSON")

	eventsCmd.AddCommand(eventsPublishCmd)
	eventsCmd.AddCommand(eventsListCmd)
	eventsCmd.AddCommand(eventsStatsCmd)
	rootCmd.AddCommand(eventsCmd)
}
