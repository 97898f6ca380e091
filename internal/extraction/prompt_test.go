package extraction

import (
	"strings"
	"testing"

	"cloud.google.com/go/vertexai/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegionDisplayName(t *testing.T) {
	tests := map[string]string{
		"manhattan":     "Manhattan",
		"staten-island": "Staten Island",
		"the_bronx":     "The Bronx",
		"":              "",
	}
	for in, want := range tests {
		assert.Equal(t, want, RegionDisplayName(in), in)
	}
}

func TestSystemInstruction(t *testing.T) {
	got := SystemInstruction("Manhattan")

	assert.NotContains(t, got, "{{")
	assert.Contains(t, got, "Only include Manhattan events")
	assert.Contains(t, got, "Formation, Route, Dispersal, Embargo, or Miscellaneous")
	assert.Contains(t, got, "Ignore any Embargo info")
	assert.Contains(t, got, "YYYY-MM-DD")
	assert.Contains(t, got, `"eventName": "2025 NYC Pride March"`)
	assert.Contains(t, got, "leave the field with empty string")
	assert.Equal(t, got, SystemInstruction("Manhattan"), "instruction must be stable across runs")
	assert.False(t, strings.Contains(SystemInstruction("Brooklyn"), "Only include Manhattan"))
}

func TestResponseSchema(t *testing.T) {
	s := ResponseSchema()
	require.Equal(t, genai.TypeObject, s.Type)
	assert.Equal(t, []string{"events"}, s.Required)

	events := s.Properties["events"]
	require.NotNil(t, events)
	require.Equal(t, genai.TypeArray, events.Type)
	event := events.Items
	assert.ElementsMatch(t, []string{"eventName", "eventDate", "closures"}, event.Required)

	closure := event.Properties["closures"].Items
	assert.ElementsMatch(t, []string{"type", "streets"}, closure.Required)
	assert.Equal(t, []string{"Formation", "Route", "Dispersal", "Embargo", "Miscellaneous"}, closure.Properties["type"].Enum)

	street := closure.Properties["streets"].Items
	assert.ElementsMatch(t, []string{"startLocation", "endLocation"}, street.Required)
	assert.Equal(t, genai.TypeString, street.Properties["startLocation"].Type)
	assert.NotContains(t, street.Properties, "startLat")
}
