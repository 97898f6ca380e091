package models

// ClosureType is the vocabulary the extraction contract allows for a closure.
type ClosureType string

const (
	ClosureFormation     ClosureType = "Formation"
	ClosureRoute         ClosureType = "Route"
	ClosureDispersal     ClosureType = "Dispersal"
	ClosureEmbargo       ClosureType = "Embargo"
	ClosureMiscellaneous ClosureType = "Miscellaneous"
)

// ClosureTypes lists every allowed closure type in the order the instruction text names them.
var ClosureTypes = []ClosureType{
	ClosureFormation,
	ClosureRoute,
	ClosureDispersal,
	ClosureEmbargo,
	ClosureMiscellaneous,
}

// ExtractionDocument is the unit persisted for each run.
type ExtractionDocument struct {
	Events []ClosureEvent `json:"events"`
}

// ClosureEvent is one named event with its street closures.
type ClosureEvent struct {
	EventName string    `json:"eventName"`
	EventDate string    `json:"eventDate"`
	Closures  []Closure `json:"closures"`
}

// Closure groups the street segments closed for one phase of an event.
type Closure struct {
	Type    ClosureType     `json:"type"`
	Streets []StreetSegment `json:"streets"`
}

// StreetSegment is one closed street range. Coordinates stay nil until both
// endpoints of the segment have been resolved.
type StreetSegment struct {
	StartLocation string   `json:"startLocation"`
	EndLocation   string   `json:"endLocation"`
	StartLat      *float64 `json:"startLat,omitempty"`
	StartLng      *float64 `json:"startLng,omitempty"`
	EndLat        *float64 `json:"endLat,omitempty"`
	EndLng        *float64 `json:"endLng,omitempty"`
}

// Coordinates is a resolved latitude/longitude pair.
type Coordinates struct {
	Lat float64
	Lng float64
}

// SetCoordinates attaches both endpoint pairs at once.
func (s *StreetSegment) SetCoordinates(start, end Coordinates) {
	s.StartLat, s.StartLng = &start.Lat, &start.Lng
	s.EndLat, s.EndLng = &end.Lat, &end.Lng
}

// Geocoded reports whether the segment carries coordinates.
func (s *StreetSegment) Geocoded() bool {
	return s.StartLat != nil && s.StartLng != nil && s.EndLat != nil && s.EndLng != nil
}

// SegmentCount returns the number of street segments across all events.
func (d *ExtractionDocument) SegmentCount() int {
	n := 0
	for _, ev := range d.Events {
		for _, c := range ev.Closures {
			n += len(c.Streets)
		}
	}
	return n
}
