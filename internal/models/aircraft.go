package models

import "time"

// OperationalState classifies what an aircraft is doing relative to the
// reference aerodrome. The classification is memoryless: it is a pure
// function of the latest altitude, distance, and speed.
type OperationalState string

const (
	StateEnRoute   OperationalState = "en_route"
	StateApproach  OperationalState = "approach"
	StateLanding   OperationalState = "landing"
	StateTakeoff   OperationalState = "takeoff"
	StateDeparture OperationalState = "departure"
	StateUnknown   OperationalState = "unknown"
)

// AircraftReport is one raw position report from the telemetry feed.
// Altitude is in feet, speed in knots, heading in degrees clockwise from
// true north.
type AircraftReport struct {
	ICAO24    string    `json:"icao24"`
	Callsign  string    `json:"callsign,omitempty"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Altitude  float64   `json:"altitude"`
	Speed     float64   `json:"speed"`
	Heading   float64   `json:"heading"`
	Squawk    string    `json:"squawk,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AircraftTrack is the tracked state of one aircraft inside the tracking
// radius. Distance is the great-circle distance to the reference point in
// meters.
type AircraftTrack struct {
	ICAO24    string  `json:"icao24"`
	Callsign  string  `json:"callsign,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
	Speed     float64 `json:"speed"`
	Heading   float64 `json:"heading"`
	Squawk    string  `json:"squawk,omitempty"`

	Distance         float64          `json:"distance"`
	RunwayAssignment string           `json:"runway_assignment,omitempty"`
	State            OperationalState `json:"state"`

	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// Runway is static aerodrome geometry used for runway assignment.
// Heading is the runway bearing in degrees; Threshold* is the touchdown-end
// coordinate; Length is in meters.
type Runway struct {
	Name         string  `json:"name" yaml:"name"`
	Heading      float64 `json:"heading" yaml:"heading"`
	ThresholdLat float64 `json:"threshold_lat" yaml:"threshold_lat"`
	ThresholdLon float64 `json:"threshold_lon" yaml:"threshold_lon"`
	Length       float64 `json:"length" yaml:"length"`
}
