package models

import "errors"

// Error kinds shared by every stage. Wrap them with fmt.Errorf("...: %w", ErrX)
// and test with errors.Is.
var (
	ErrFetch              = errors.New("fetch error")
	ErrSectionNotFound    = errors.New("section not found")
	ErrConfiguration      = errors.New("configuration error")
	ErrUpstreamExtraction = errors.New("upstream extraction error")
	ErrParse              = errors.New("parse error")
	ErrSchemaViolation    = errors.New("schema violation")
	ErrPersist            = errors.New("persist error")
	ErrGeocodeUnresolved  = errors.New("geocode resolution failure")
)
