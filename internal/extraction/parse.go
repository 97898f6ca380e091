package extraction

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Lllllllleong/trafficadvisoryflow/internal/models"
)

// The raw* types mirror the response schema with pointer fields so a missing
// key can be told apart from an empty string.
type rawDocument struct {
	Events *[]rawEvent `json:"events"`
}

type rawEvent struct {
	EventName *string       `json:"eventName"`
	EventDate *string       `json:"eventDate"`
	Closures  *[]rawClosure `json:"closures"`
}

type rawClosure struct {
	Type    *string      `json:"type"`
	Streets *[]rawStreet `json:"streets"`
}

type rawStreet struct {
	StartLocation *string  `json:"startLocation"`
	EndLocation   *string  `json:"endLocation"`
	StartLat      *float64 `json:"startLat"`
	StartLng      *float64 `json:"startLng"`
	EndLat        *float64 `json:"endLat"`
	EndLng        *float64 `json:"endLng"`
}

// maxReportedViolations caps how many problems end up in one error message.
const maxReportedViolations = 10

// Parse decodes and re-validates an extraction payload against the response
// schema. Malformed JSON wraps models.ErrParse; well-formed JSON that breaks
// the schema wraps models.ErrSchemaViolation. Closure types are matched
// case-insensitively and returned in canonical form.
func Parse(raw string) (*models.ExtractionDocument, error) {
	var doc rawDocument
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("%w: malformed JSON from extraction service: %v", models.ErrParse, err)
	}

	v := &violations{}
	out := &models.ExtractionDocument{Events: []models.ClosureEvent{}}
	if doc.Events == nil {
		v.add("events", "is required")
		return nil, v.err()
	}

	for i, re := range *doc.Events {
		path := fmt.Sprintf("events[%d]", i)
		ev := models.ClosureEvent{
			EventName: v.requireString(re.EventName, path+".eventName"),
			EventDate: v.requireString(re.EventDate, path+".eventDate"),
			Closures:  []models.Closure{},
		}
		if ev.EventDate != "" {
			if _, err := time.Parse(time.DateOnly, ev.EventDate); err != nil {
				v.add(path+".eventDate", fmt.Sprintf("%q is not YYYY-MM-DD", ev.EventDate))
			}
		}
		if re.Closures == nil {
			v.add(path+".closures", "is required")
		} else {
			for j, rc := range *re.Closures {
				ev.Closures = append(ev.Closures, parseClosure(v, rc, fmt.Sprintf("%s.closures[%d]", path, j)))
			}
		}
		out.Events = append(out.Events, ev)
	}

	if err := v.err(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseClosure(v *violations, rc rawClosure, path string) models.Closure {
	c := models.Closure{Streets: []models.StreetSegment{}}

	if rc.Type == nil {
		v.add(path+".type", "is required")
	} else if t, ok := CanonicalClosureType(*rc.Type); ok {
		c.Type = t
	} else {
		v.add(path+".type", fmt.Sprintf("%q is not one of %v", *rc.Type, models.ClosureTypes))
	}

	if rc.Streets == nil {
		v.add(path+".streets", "is required")
		return c
	}
	for k, rs := range *rc.Streets {
		sp := fmt.Sprintf("%s.streets[%d]", path, k)
		seg := models.StreetSegment{
			StartLocation: v.requireString(rs.StartLocation, sp+".startLocation"),
			EndLocation:   v.requireString(rs.EndLocation, sp+".endLocation"),
		}
		switch {
		case rs.StartLat != nil && rs.StartLng != nil && rs.EndLat != nil && rs.EndLng != nil:
			seg.SetCoordinates(
				models.Coordinates{Lat: *rs.StartLat, Lng: *rs.StartLng},
				models.Coordinates{Lat: *rs.EndLat, Lng: *rs.EndLng},
			)
		case rs.StartLat != nil || rs.StartLng != nil || rs.EndLat != nil || rs.EndLng != nil:
			v.add(sp, "has a partial coordinate set")
		}
		c.Streets = append(c.Streets, seg)
	}
	return c
}

// CanonicalClosureType maps s onto the closure vocabulary, ignoring case and
// surrounding whitespace.
func CanonicalClosureType(s string) (models.ClosureType, bool) {
	s = strings.TrimSpace(s)
	for _, t := range models.ClosureTypes {
		if strings.EqualFold(s, string(t)) {
			return t, true
		}
	}
	return "", false
}

// Encode renders a document the way it is persisted: indented JSON with
// empty arrays rather than nulls.
func Encode(doc *models.ExtractionDocument) ([]byte, error) {
	b, err := json.MarshalIndent(normalized(doc), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode extraction document: %w", err)
	}
	return b, nil
}

func normalized(doc *models.ExtractionDocument) models.ExtractionDocument {
	out := models.ExtractionDocument{Events: make([]models.ClosureEvent, 0, len(doc.Events))}
	for _, ev := range doc.Events {
		closures := make([]models.Closure, 0, len(ev.Closures))
		for _, c := range ev.Closures {
			if c.Streets == nil {
				c.Streets = []models.StreetSegment{}
			}
			closures = append(closures, c)
		}
		ev.Closures = closures
		out.Events = append(out.Events, ev)
	}
	return out
}

type violations struct {
	list []string
}

func (v *violations) add(path, problem string) {
	v.list = append(v.list, path+" "+problem)
}

func (v *violations) requireString(s *string, path string) string {
	if s == nil {
		v.add(path, "is required")
		return ""
	}
	return *s
}

func (v *violations) err() error {
	if len(v.list) == 0 {
		return nil
	}
	shown := v.list
	suffix := ""
	if len(shown) > maxReportedViolations {
		suffix = fmt.Sprintf("; and %d more", len(shown)-maxReportedViolations)
		shown = shown[:maxReportedViolations]
	}
	return fmt.Errorf("%w: %s%s", models.ErrSchemaViolation, strings.Join(shown, "; "), suffix)
}
