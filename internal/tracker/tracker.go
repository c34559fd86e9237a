package tracker

import (
	"sort"
	"sync"
	"time"

	"github.com/good-yellow-bee/opswatch/internal/metrics"
	"github.com/good-yellow-bee/opswatch/internal/models"
	"github.com/good-yellow-bee/opswatch/internal/ring"
)

// EventPublisher receives the state-transition events the tracker emits.
// Satisfied by *bus.Bus.
type EventPublisher interface {
	Publish(evt *models.Event) *models.Event
}

// Options configures the tracker geometry and limits. Distances are in
// meters, altitudes in feet, speeds in knots.
type Options struct {
	// ReferenceLat and ReferenceLon anchor all distance computations,
	// typically the aerodrome reference point.
	ReferenceLat float64
	ReferenceLon float64

	// TrackingRadius bounds the tracked set: aircraft beyond it are
	// evicted, not classified.
	TrackingRadius float64

	// ApproachRadius is the distance inside which an aircraft can be in
	// the approach state, and the decay range for runway proximity scores.
	ApproachRadius float64

	// RunwayThreshold is the distance inside which landing and takeoff
	// classifications apply.
	RunwayThreshold float64

	// Runways are the candidate runways for assignment.
	Runways []models.Runway

	// HistorySize bounds the processed-report history ring.
	HistorySize int

	// Source is the event source identifier used on emitted events.
	Source string
}

func (o *Options) setDefaults() {
	if o.TrackingRadius <= 0 {
		o.TrackingRadius = 100000
	}
	if o.ApproachRadius <= 0 {
		o.ApproachRadius = 50000
	}
	if o.RunwayThreshold <= 0 {
		o.RunwayThreshold = 5000
	}
	if o.HistorySize <= 0 {
		o.HistorySize = 500
	}
	if o.Source == "" {
		o.Source = "adsb-tracker"
	}
}

// Tracker maintains the aircraft track table and emits an aircraft:<state>
// event on every state transition. Classification is memoryless: a report
// near a threshold boundary can flap between states, and each flap is a
// real transition event.
type Tracker struct {
	opts Options
	pub  EventPublisher

	mu          sync.RWMutex
	tracks      map[string]*models.AircraftTrack
	history     *ring.Buffer[*models.AircraftTrack]
	transitions map[models.OperationalState]uint64
	processed   uint64
	evicted     uint64
}

// New creates a tracker publishing transition events to pub.
func New(pub EventPublisher, opts Options) *Tracker {
	opts.setDefaults()
	return &Tracker{
		opts:        opts,
		pub:         pub,
		tracks:      make(map[string]*models.AircraftTrack),
		history:     ring.New[*models.AircraftTrack](opts.HistorySize),
		transitions: make(map[models.OperationalState]uint64),
	}
}

// classify applies the ordered state rules. First match wins; the rules are
// mutually exclusive by construction.
func (t *Tracker) classify(altitude, distance, speed float64) models.OperationalState {
	switch {
	case altitude > 500 && altitude <= 3000 && distance <= t.opts.ApproachRadius && speed > 50:
		return models.StateApproach
	case altitude <= 500 && distance <= t.opts.RunwayThreshold:
		return models.StateLanding
	case altitude < 1000 && distance <= t.opts.RunwayThreshold && speed > 100:
		return models.StateTakeoff
	case altitude > 1000 && distance > t.opts.RunwayThreshold && speed > 100:
		return models.StateDeparture
	case altitude > 3000:
		return models.StateEnRoute
	default:
		return models.StateUnknown
	}
}

// ProcessUpdate ingests one position report. Reports beyond the tracking
// radius evict the aircraft and return nil; otherwise the updated track
// snapshot is returned and a transition event is published when the
// operational state changed.
func (t *Tracker) ProcessUpdate(report models.AircraftReport) *models.AircraftTrack {
	distance := Distance(report.Latitude, report.Longitude, t.opts.ReferenceLat, t.opts.ReferenceLon)

	if distance > t.opts.TrackingRadius {
		t.mu.Lock()
		if _, ok := t.tracks[report.ICAO24]; ok {
			delete(t.tracks, report.ICAO24)
			t.evicted++
			metrics.AircraftTracked.Dec()
		}
		t.mu.Unlock()
		return nil
	}

	state := t.classify(report.Altitude, distance, report.Speed)
	runway := assignRunway(t.opts.Runways, report.Latitude, report.Longitude, report.Heading, t.opts.ApproachRadius)

	now := report.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	t.mu.Lock()
	track, ok := t.tracks[report.ICAO24]
	var prev models.OperationalState
	if ok {
		prev = track.State
	} else {
		track = &models.AircraftTrack{ICAO24: report.ICAO24, FirstSeen: now}
		t.tracks[report.ICAO24] = track
		metrics.AircraftTracked.Inc()
	}
	if report.Callsign != "" {
		track.Callsign = report.Callsign
	}
	if report.Squawk != "" {
		track.Squawk = report.Squawk
	}
	track.Latitude = report.Latitude
	track.Longitude = report.Longitude
	track.Altitude = report.Altitude
	track.Speed = report.Speed
	track.Heading = report.Heading
	track.Distance = distance
	track.RunwayAssignment = runway
	track.State = state
	track.LastSeen = now

	snapshot := *track
	t.history.Append(&snapshot)
	t.processed++

	transitioned := !ok || prev != state
	if transitioned {
		t.transitions[state]++
	}
	t.mu.Unlock()

	if transitioned {
		metrics.StateTransitionsTotal.WithLabelValues(string(state)).Inc()
		t.emit(&snapshot)
	}

	return &snapshot
}

// emit publishes the aircraft:<state> transition event.
func (t *Tracker) emit(track *models.AircraftTrack) {
	if t.pub == nil {
		return
	}
	t.pub.Publish(&models.Event{
		Type:      "aircraft:" + string(track.State),
		Source:    t.opts.Source,
		Timestamp: track.LastSeen,
		Data: map[string]any{
			"icao24":    track.ICAO24,
			"callsign":  track.Callsign,
			"state":     string(track.State),
			"runway":    track.RunwayAssignment,
			"distance":  track.Distance,
			"latitude":  track.Latitude,
			"longitude": track.Longitude,
			"altitude":  track.Altitude,
			"speed":     track.Speed,
			"heading":   track.Heading,
			"squawk":    track.Squawk,
		},
	})
}

// Get returns a snapshot of one track.
func (t *Tracker) Get(icao24 string) (*models.AircraftTrack, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	track, ok := t.tracks[icao24]
	if !ok {
		return nil, false
	}
	snapshot := *track
	return &snapshot, true
}

// Tracks returns snapshots of all tracked aircraft, most recently seen
// first.
func (t *Tracker) Tracks() []*models.AircraftTrack {
	t.mu.RLock()
	out := make([]*models.AircraftTrack, 0, len(t.tracks))
	for _, track := range t.tracks {
		snapshot := *track
		out = append(out, &snapshot)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].LastSeen.After(out[j].LastSeen)
	})
	return out
}

// History returns up to limit processed-report snapshots, newest first.
// limit <= 0 returns everything retained.
func (t *Tracker) History(limit int) []*models.AircraftTrack {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.history.Recent(limit)
}

// Stats summarizes the tracker state.
type Stats struct {
	Tracked     int               `json:"tracked"`
	Processed   uint64            `json:"processed"`
	Evicted     uint64            `json:"evicted"`
	Transitions map[string]uint64 `json:"transitions"`
	HistorySize int               `json:"history_size"`
}

// GetStats returns processing counters and per-state transition counts.
func (t *Tracker) GetStats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Stats{
		Tracked:     len(t.tracks),
		Processed:   t.processed,
		Evicted:     t.evicted,
		Transitions: make(map[string]uint64, len(t.transitions)),
		HistorySize: t.history.Len(),
	}
	for state, n := range t.transitions {
		s.Transitions[string(state)] = n
	}
	return s
}
