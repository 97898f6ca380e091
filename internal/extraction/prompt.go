package extraction

import (
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Lllllllleong/trafficadvisoryflow/internal/models"
)

// ContractVersion identifies the instruction text and response schema below.
// Bump it whenever either changes shape.
const ContractVersion = "2025-06.1"

const systemInstructionTemplate = `
You are an AI assistant that extracts NYC DOT traffic advisories into a structured JSON format. Requirements:
- Analyze the following text and return a JSON object that adheres to the schema I provide.
- Ignore any Embargo info. An "Embargo:" block is metadata about the advisory, not a closure, and must not appear in the output.
- Respond with only valid JSON object.
- Only include {{REGION}} events and data in the output.
- Do not include any explanations or markdown formatting like "` + "```json" + `".
- If the input lacks certain information, leave the field with empty string.
- Dates must be formatted as YYYY-MM-DD.
- Closure types can be {{TYPES}}.

JSON Schema:

{
  "events": [
    {
      "eventName": "String",
      "eventDate": "YYYY-MM-DD",
      "closures": [
        {
          "type": "String (e.g., {{TYPES_LIST}})",
          "streets": [
            {
                "startLocation": "String (e.g., '5th Avenue & 33rd Street, New York, NY')",
                "endLocation": "String (e.g., '5th Avenue & 25th Street, New York, NY')"
            }
          ]
        }
      ]
    }
  ]
}

For a sample input like this:

"2025 NYC Pride March
The following streets will be closed for the 2025 NYC Pride March on Sunday, June 29th, 2025 at the discretion of the NYPD in {{REGION}}.

Embargo:    Special Event Construction Embargo / June 25th, 2025 – June 29th, 2025

Formation:
5th Avenue between 33rd Street and 25th Street
West/East 33rd Street between 6th Avenue and Madison Avenue

Route:
5th Avenue between 25th Street and 8th Street

Dispersal:
7th Avenue between 15th Street and 19th Street

Miscellaneous:
Christopher Street between West Street and 7th Avenue South"

The output would look like:

{
  "events": [
    {
      "eventName": "2025 NYC Pride March",
      "eventDate": "2025-06-29",
      "closures": [
        {
          "type": "Formation",
          "streets": [
            {
              "startLocation": "5th Avenue & 33rd Street, New York, NY",
              "endLocation": "5th Avenue & 25th Street, New York, NY"
            }
          ]
        },
        {
          "type": "Formation",
          "streets": [
            {
              "startLocation": "33rd Street & 6th Avenue, New York, NY",
              "endLocation": "33rd Street & Madison Avenue, New York, NY"
            }
          ]
        },
        {
          "type": "Route",
          "streets": [
            {
              "startLocation": "5th Avenue & 25th Street, New York, NY",
              "endLocation": "5th Avenue & 8th Street, New York, NY"
            }
          ]
        },
        {
          "type": "Dispersal",
          "streets": [
            {
              "startLocation": "7th Avenue & 15th Street, New York, NY",
              "endLocation": "7th Avenue & 19th Street, New York, NY"
            }
          ]
        },
        {
          "type": "Miscellaneous",
          "streets": [
            {
              "startLocation": "Christopher Street & West Street, New York, NY",
              "endLocation": "Christopher Street & 7th Avenue South, New York, NY"
            }
          ]
        }
      ]
    }
  ]
}
`

// RegionDisplayName turns an anchor such as "staten-island" into "Staten Island".
func RegionDisplayName(anchor string) string {
	words := strings.FieldsFunc(anchor, func(r rune) bool { return r == '-' || r == '_' || r == ' ' })
	return cases.Title(language.English).String(strings.Join(words, " "))
}

// SystemInstruction renders the fixed instruction text for the target region.
func SystemInstruction(regionName string) string {
	names := make([]string, len(models.ClosureTypes))
	for i, t := range models.ClosureTypes {
		names[i] = string(t)
	}
	types := strings.Join(names[:len(names)-1], ", ") + ", or " + names[len(names)-1]

	return strings.NewReplacer(
		"{{REGION}}", regionName,
		"{{TYPES}}", types,
		"{{TYPES_LIST}}", strings.Join(names, ", "),
	).Replace(systemInstructionTemplate)
}

// ResponseSchema is the structural constraint the model must satisfy.
func ResponseSchema() *genai.Schema {
	types := make([]string, len(models.ClosureTypes))
	for i, t := range models.ClosureTypes {
		types[i] = string(t)
	}

	street := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"startLocation": {Type: genai.TypeString},
			"endLocation":   {Type: genai.TypeString},
		},
		Required: []string{"startLocation", "endLocation"},
	}
	closure := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"type":    {Type: genai.TypeString, Format: "enum", Enum: types},
			"streets": {Type: genai.TypeArray, Items: street},
		},
		Required: []string{"type", "streets"},
	}
	event := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"eventName": {Type: genai.TypeString},
			"eventDate": {Type: genai.TypeString},
			"closures":  {Type: genai.TypeArray, Items: closure},
		},
		Required: []string{"eventName", "eventDate", "closures"},
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"events": {Type: genai.TypeArray, Items: event},
		},
		Required: []string{"events"},
	}
}
