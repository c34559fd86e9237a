package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/opswatch/internal/models"
)

var aircraftCmd = &cobra.Command{
	Use:   "aircraft",
	Short: "Inspect tracked aircraft",
}

var aircraftListJSON bool

var aircraftListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked aircraft, most recently seen first",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Items []*models.AircraftTrack `json:"items"`
			Count int                     `json:"count"`
		}
		if err := callAPI("GET", "/api/v1/aircraft", nil, &resp); err != nil {
			return err
		}

		if aircraftListJSON {
			return printJSON(resp.Items)
		}
		fmt.Printf("%-8s %-10s %-10s %-8s %-8s %-8s %-10s %s\n",
			"ICAO24", "CALLSIGN", "STATE", "ALT", "SPD", "RWY", "DIST(KM)", "LAST SEEN")
		for _, track := range resp.Items {
			fmt.Printf("%-8s %-10s %-10s %-8.0f %-8.0f %-8s %-10.1f %s\n",
				track.ICAO24, track.Callsign, track.State, track.Altitude, track.Speed,
				track.RunwayAssignment, track.Distance/1000,
				track.LastSeen.Local().Format(time.TimeOnly))
		}
		fmt.Printf("\n%d aircraft\n", resp.Count)
		return nil
	},
}

var aircraftGetCmd = &cobra.Command{
	Use:   "get <icao24>",
	Short: "Show one tracked aircraft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var track models.AircraftTrack
		if err := callAPI("GET", "/api/v1/aircraft/"+args[0], nil, &track); err != nil {
			return err
		}
		return printJSON(track)
	},
}

var reportFlags struct {
	icao24   string
	callsign string
	lat      float64
	lon      float64
	altitude float64
	speed    float64
	heading  float64
	squawk   string
}

var aircraftReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Submit one position report",
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]any{
			"icao24":    reportFlags.icao24,
			"callsign":  reportFlags.callsign,
			"latitude":  reportFlags.lat,
			"longitude": reportFlags.lon,
			"altitude":  reportFlags.altitude,
			"speed":     reportFlags.speed,
			"heading":   reportFlags.heading,
			"squawk":    reportFlags.squawk,
		}

		var track models.AircraftTrack
		if err := callAPI("POST", "/api/v1/aircraft/reports", body, &track); err != nil {
			return err
		}
		if track.ICAO24 == "" {
			fmt.Println("outside tracking radius, not tracked")
			return nil
		}
		fmt.Printf("%s: %s, %.1f km out", track.ICAO24, track.State, track.Distance/1000)
		if track.RunwayAssignment != "" {
			fmt.Printf(", runway %s", track.RunwayAssignment)
		}
		fmt.Println()
		return nil
	},
}

var aircraftStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show tracker counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		var stats map[string]any
		if err := callAPI("GET", "/api/v1/aircraft/stats", nil, &stats); err != nil {
			return err
		}
		return printJSON(stats)
	},
}

func init() {
	aircraftListCmd.Flags().BoolVar(&aircraftListJSON, "json", false, "output as JSON")

	aircraftReportCmd.Flags().StringVar(&reportFlags.icao24, "icao24", "", "ICAO 24-bit address (required)")
	aircraftReportCmd.Flags().StringVar(&reportFlags.callsign, "callsign", "", "callsign")
	aircraftReportCmd.Flags().Float64Var(&reportFlags.lat, "lat", 0, "latitude in degrees")
	aircraftReportCmd.Flags().Float64Var(&reportFlags.lon, "lon", 0, "longitude in degrees")
	aircraftReportCmd.Flags().Float64Var(&reportFlags.altitude, "altitude", 0, "altitude in feet")
	aircraftReportCmd.Flags().Float64Var(&reportFlags.speed, "speed", 0, "ground speed in knots")
	aircraftReportCmd.Flags().Float64Var(&reportFlags.heading, "heading", 0, "heading in degrees")
	aircraftReportCmd.Flags().StringVar(&reportFlags.squawk, "squawk", "", "transponder code")
	aircraftReportCmd.MarkFlagRequired("icao24")

	aircraftCmd.AddCommand(aircraftListCmd)
	aircraftCmd.AddCommand(aircraftGetCmd)
	aircraftCmd.AddCommand(aircraftReportCmd)
	aircraftCmd.AddCommand(aircraftStatsCmd)
	rootCmd.AddCommand(aircraftCmd)
}
