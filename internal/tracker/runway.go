package tracker

import "github.com/good-yellow-bee/opswatch/internal/models"

// headingTolerance is the angular window within which an aircraft heading
// still counts as aligned with a runway bearing.
const headingTolerance = 45.0

// runwayScore combines a proximity score and a heading-alignment score for
// one candidate runway. Proximity is 1 at the threshold and decays linearly
// to 0 at approachRadius; alignment is 1 on the exact bearing and decays
// linearly to 0 at the tolerance. Proximity dominates at 0.7 to 0.3.
func runwayScore(rw models.Runway, lat, lon, heading, approachRadius float64) float64 {
	dist := Distance(lat, lon, rw.ThresholdLat, rw.ThresholdLon)
	proximity := 1 - dist/approachRadius
	if proximity < 0 {
		proximity = 0
	}

	alignment := 1 - headingDelta(heading, rw.Heading)/headingTolerance
	if alignment < 0 {
		alignment = 0
	}

	return 0.7*proximity + 0.3*alignment
}

// assignRunway returns the name of the best-scoring runway for the
// aircraft position and heading. Ties resolve to the runway listed first in
// the configuration. Returns "" when no runways are configured.
func assignRunway(runways []models.Runway, lat, lon, heading, approachRadius float64) string {
	best := ""
	bestScore := -1.0
	for _, rw := range runways {
		if score := runwayScore(rw, lat, lon, heading, approachRadius); score > bestScore {
			best = rw.Name
			bestScore = score
		}
	}
	return best
}
