package sunreport

import (
	"fmt"
	"strconv"
	"strings"
)

const promptTemplate = `
Target Location: %s.
Target Date: %s.

Act as a professional landscape photographer and meteorologist.

1. Identify the city/location name explicitly.
2. Find the EXACT sunrise and sunset times for the Target Date at this location.
3. Determine the Golden Hour times for that date.
4. Analyze the weather for that specific date.
   - If the date is in the PAST: Retrieve historical weather records (clouds, visibility) for that day.
   - If the date is TODAY or FUTURE: Use current forecast.
5. Search for the BEST specific local spots (parks, viewpoints, beaches, hills) nearby to watch the Sunrise and Sunset.
6. Rate the quality of the sunrise/sunset viewing experience (0-100).
   - For PAST dates: Rate it based on what the weather actually was.
   - For FUTURE dates: Rate based on forecast.
7. Provide specific advice for photographers/observers.

Return the result as a strictly formatted JSON object.
DO NOT use Markdown code blocks. Just return the raw JSON string.

JSON Structure:
{
  "locationName": "City, Region",
  "date": "The Target Date formatted readable (e.g., Oct 12, 2023)",
  "weather": {
    "temp": "temperature (with unit)",
    "condition": "short summary",
    "cloudCover": "percentage or description",
    "visibility": "distance"
  },
  "goldenHourMorning": "time range",
  "goldenHourEvening": "time range",
  "sunrise": {
    "time": "HH:MM AM/PM",
    "qualityScore": number (0-100),
    "qualityDescription": "short punchy verdict",
    "advice": "specific tip",
    "spots": [
      { "name": "Spot Name", "description": "Why it's good", "distance": "approx distance", "rating": "4.5" }
    ]
  },
  "sunset": {
    "time": "HH:MM AM/PM",
    "qualityScore": number (0-100),
    "qualityDescription": "short punchy verdict",
    "advice": "specific tip",
    "spots": [
      { "name": "Spot Name", "description": "Why it's good", "distance": "approx distance", "rating": "4.5" }
    ]
  }
}
`

// BuildPrompt renders the instruction sent to the model. The query text is
// interpolated as is.
func BuildPrompt(loc LocationInput, date string) string {
	return fmt.Sprintf(promptTemplate, describeLocation(loc), date)
}

func describeLocation(loc LocationInput) string {
	if loc.Kind == LocationCoords {
		return fmt.Sprintf("latitude: %s, longitude: %s", formatCoordinate(loc.Lat), formatCoordinate(loc.Lng))
	}
	return `location: "` + loc.Query + `"`
}

// formatCoordinate keeps full precision and always shows a decimal place.
func formatCoordinate(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// FormatCoordinates renders a "lat,lng" pair the same way the prompt does.
func FormatCoordinates(lat, lng float64) string {
	return formatCoordinate(lat) + "," + formatCoordinate(lng)
}
