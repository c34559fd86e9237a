package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/opswatch/internal/models"
	"github.com/good-yellow-bee/opswatch/internal/rules"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage automation rules",
}

var rulesListJSON bool

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Items []*models.Rule `json:"items"`
			Count int            `json:"count"`
		}
		if err := callAPI("GET", "/api/v1/rules", nil, &resp); err != nil {
			return err
		}

		if rulesListJSON {
			return printJSON(resp.Items)
		}
		fmt.Printf("%-36s %-30s %-10s %-20s %s\n", "ID", "NAME", "ENABLED", "EVENT TYPE", "ACTIONS")
		for _, rule := range resp.Items {
			fmt.Printf("%-36s %-30s %-10t %-20s %d\n",
				rule.ID, rule.Name, rule.IsEnabled(), rule.Conditions.EventType, len(rule.Actions))
		}
		fmt.Printf("\n%d rule(s)\n", resp.Count)
		return nil
	},
}

var rulesGetCmd = &cobra.Command{
	Use:   "get <rule-id>",
	Short: "Show one rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var rule models.Rule
		if err := callAPI("GET", "/api/v1/rules/"+args[0], nil, &rule); err != nil {
			return err
		}
		return printJSON(rule)
	},
}

var rulesDeleteCmd = &cobra.Command{
	Use:   "delete <rule-id>",
	Short: "Remove one rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := callAPI("DELETE", "/api/v1/rules/"+args[0], nil, nil); err != nil {
			return err
		}
		fmt.Printf("rule %s deleted\n", args[0])
		return nil
	},
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate <rules-file>",
	Short: "Validate a rules file locally without loading it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := rules.LoadRulesFromFile(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d rule(s) OK\n", args[0], len(loaded))
		return nil
	},
}

var rulesLoadCmd = &cobra.Command{
	Use:   "load <rules-file>",
	Short: "Register every rule from a file on the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := rules.LoadRulesFromFile(args[0])
		if err != nil {
			return err
		}
		for _, rule := range loaded {
			var created models.Rule
			if err := callAPI("POST", "/api/v1/rules", rule, &created); err != nil {
				return fmt.Errorf("rule %q: %w", rule.Name, err)
			}
			fmt.Printf("registered %s (%s)\n", created.ID, created.Name)
		}
		return nil
	},
}

// setRuleEnabled flips a rule's enabled flag through the update endpoint.
func setRuleEnabled(id string, enabled bool) error {
	var rule models.Rule
	if err := callAPI("GET", "/api/v1/rules/"+id, nil, &rule); err != nil {
		return err
	}
	rule.Enabled = &enabled
	if err := callAPI("PUT", "/api/v1/rules/"+id, rule, nil); err != nil {
		return err
	}
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	fmt.Printf("rule %s %s\n", id, state)
	return nil
}

var rulesEnableCmd = &cobra.Command{
	Use:   "enable <rule-id>",
	Short: "Enable a rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setRuleEnabled(args[0], true)
	},
}

var rulesDisableCmd = &cobra.Command{
	Use:   "disable <rule-id>",
	Short: "Disable a rule without removing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setRuleEnabled(args[0], false)
	},
}

var rulesStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show rule engine counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		var stats map[string]any
		if err := callAPI("GET", "/api/v1/rules/stats", nil, &stats); err != nil {
			return err
		}
		return printJSON(stats)
	},
}

func init() {
	rulesListCmd.Flags().BoolVar(&rulesListJSON, "json", false, "output as JSON")

	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesGetCmd)
	rulesCmd.AddCommand(rulesDeleteCmd)
	rulesCmd.AddCommand(rulesEnableCmd)
	rulesCmd.AddCommand(rulesDisableCmd)
	rulesCmd.AddCommand(rulesValidateCmd)
	rulesCmd.AddCommand(rulesLoadCmd)
	rulesCmd.AddCommand(rulesStatsCmd)
	rootCmd.AddCommand(rulesCmd)
}
