// Package cmd contains the CLI commands for opsctl.
package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	// Used for flags
	serverURL string
	apiToken  string
	verbose   bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "opsctl",
	Short: "opsctl - opswatch operations CLI",
	Long: `opsctl talks to a running opswatch-server over its REST API.

Examples:
  # Publish an event
  opsctl events publish --type doorbell:pressed --source frontdoor

  # List active alarms
  opsctl alarms list

  # Acknowledge an alarm
  opsctl alarms ack 4f6b... --note "on my way"

  # Watch tracked aircraft
  opsctl aircraft list`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:8080", "opswatch server URL")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", "", "bearer token (or OPSWATCH_TOKEN env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

var httpClient = &http.Client{Timeout: 15 * time.Second}

// apiEnvelope is the server's standard response wrapper.
type apiEnvelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// callAPI performs one request against the server and decodes the data
// envelope into out when non-nil.
func callAPI(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, serverURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := resolveToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "%s %s\n", method, req.URL)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response (%s): %w", resp.Status, err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("%s: %s", envelope.Error.Code, envelope.Error.Message)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("server returned %s", resp.Status)
	}

	if out != nil && envelope.Data != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}

func resolveToken() string {
	if apiToken != "" {
		return apiToken
	}
	return os.Getenv("OPSWATCH_TOKEN")
}

// printJSON renders a response payload for the terminal.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
