package sunreport

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMalformedResponse marks model output that does not match the report schema.
var ErrMalformedResponse = errors.New("malformed model response")

const codeFence = "```"

// StripCodeFence removes a markdown code fence wrapped around the text. The
// opening marker may carry a language tag on the same line.
func StripCodeFence(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, codeFence) {
		return text
	}
	text = strings.TrimPrefix(text, codeFence)
	if idx := strings.IndexAny(text, "\n{["); idx >= 0 {
		tag := strings.TrimSpace(text[:idx])
		if isLanguageTag(tag) {
			text = text[idx:]
		}
	} else if isLanguageTag(strings.TrimSpace(text)) {
		text = ""
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, codeFence)
	return strings.TrimSpace(text)
}

func isLanguageTag(tag string) bool {
	for _, r := range tag {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '+' || r == '_') {
			return false
		}
	}
	return true
}

// ParseReport normalizes raw model output into a Report and attaches the
// citations. Any schema violation wraps ErrMalformedResponse.
func ParseReport(raw string, sources []Source) (Report, error) {
	body := StripCodeFence(raw)
	if body == "" {
		return Report{}, malformed("empty response")
	}

	var wire reportWire
	if err := json.Unmarshal([]byte(body), &wire); err != nil {
		return Report{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if strings.TrimSpace(wire.LocationName) == "" {
		return Report{}, malformed("locationName missing")
	}
	sunrise, err := wire.Sunrise.toPhase("sunrise")
	if err != nil {
		return Report{}, err
	}
	sunset, err := wire.Sunset.toPhase("sunset")
	if err != nil {
		return Report{}, err
	}

	report := Report{
		LocationName:      strings.TrimSpace(wire.LocationName),
		Date:              wire.Date,
		Sunrise:           sunrise,
		Sunset:            sunset,
		GoldenHourMorning: wire.GoldenHourMorning,
		GoldenHourEvening: wire.GoldenHourEvening,
		Sources:           normalizeSources(sources),
	}
	if wire.Weather != nil {
		report.Weather = *wire.Weather
	}
	return report, nil
}

func malformed(reason string) error {
	return fmt.Errorf("%w: %s", ErrMalformedResponse, reason)
}

func normalizeSources(sources []Source) []Source {
	out := make([]Source, 0, len(sources))
	for _, src := range sources {
		out = append(out, withSourceDefaults(src))
	}
	return out
}

func withSourceDefaults(src Source) Source {
	if strings.TrimSpace(src.Title) == "" {
		src.Title = "Source"
	}
	if strings.TrimSpace(src.URI) == "" {
		src.URI = "#"
	}
	return src
}

type reportWire struct {
	LocationName      string            `json:"locationName"`
	Date              string            `json:"date"`
	Weather           *WeatherCondition `json:"weather"`
	GoldenHourMorning string            `json:"goldenHourMorning"`
	GoldenHourEvening string            `json:"goldenHourEvening"`
	Sunrise           *phaseWire        `json:"sunrise"`
	Sunset            *phaseWire        `json:"sunset"`
}

type phaseWire struct {
	Time               string          `json:"time"`
	QualityScore       json.RawMessage `json:"qualityScore"`
	QualityDescription string          `json:"qualityDescription"`
	Advice             string          `json:"advice"`
	Spots              []spotWire      `json:"spots"`
}

type spotWire struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Distance    string          `json:"distance"`
	Rating      json.RawMessage `json:"rating"`
}

func (p *phaseWire) toPhase(name string) (SunPhaseData, error) {
	if p == nil {
		return SunPhaseData{}, malformed(name + " missing")
	}
	if strings.TrimSpace(p.Time) == "" {
		return SunPhaseData{}, malformed(name + ".time missing")
	}
	score, err := coerceScore(p.QualityScore)
	if err != nil {
		return SunPhaseData{}, fmt.Errorf("%w: %s.qualityScore: %v", ErrMalformedResponse, name, err)
	}
	spots := make([]SpotRecommendation, 0, len(p.Spots))
	for _, s := range p.Spots {
		rating, err := coerceText(s.Rating)
		if err != nil {
			return SunPhaseData{}, fmt.Errorf("%w: %s spot rating: %v", ErrMalformedResponse, name, err)
		}
		spots = append(spots, SpotRecommendation{
			Name:        s.Name,
			Description: s.Description,
			Distance:    s.Distance,
			Rating:      rating,
		})
	}
	return SunPhaseData{
		Time:               strings.TrimSpace(p.Time),
		QualityScore:       score,
		QualityDescription: p.QualityDescription,
		Advice:             p.Advice,
		Spots:              spots,
	}, nil
}

// coerceScore accepts a JSON number or a numeric string in [0,100].
func coerceScore(raw json.RawMessage) (int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, errors.New("missing")
	}
	var value float64
	switch raw[0] {
	case '"':
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, err
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return 0, fmt.Errorf("not numeric: %q", text)
		}
		value = parsed
	default:
		if err := json.Unmarshal(raw, &value); err != nil {
			return 0, err
		}
	}
	if math.IsNaN(value) || value < 0 || value > 100 {
		return 0, fmt.Errorf("out of range: %v", value)
	}
	return int(value + 0.5), nil
}

// coerceText accepts a JSON string or number and returns it as text.
func coerceText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return "", err
		}
		return text, nil
	}
	var number json.Number
	if err := json.Unmarshal(raw, &number); err != nil {
		return "", errors.New("unsupported rating format")
	}
	return number.String(), nil
}
