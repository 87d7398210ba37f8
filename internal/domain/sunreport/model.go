package sunreport

import (
	"context"

	"github.com/yanqian/horizon/pkg/metrics"
)

// LocationKind discriminates the two LocationInput variants.
type LocationKind string

const (
	LocationCoords LocationKind = "coords"
	LocationText   LocationKind = "text"
)

// LocationInput is either a coordinate pair or a free text place name.
type LocationInput struct {
	Kind  LocationKind `json:"type"`
	Lat   float64      `json:"lat,omitempty"`
	Lng   float64      `json:"lng,omitempty"`
	Query string       `json:"query,omitempty"`
}

// Coords builds a coordinate based location.
func Coords(lat, lng float64) LocationInput {
	return LocationInput{Kind: LocationCoords, Lat: lat, Lng: lng}
}

// Text builds a place name based location.
func Text(query string) LocationInput {
	return LocationInput{Kind: LocationText, Query: query}
}

// Request captures the payload accepted by the analysis service.
type Request struct {
	Location LocationInput `json:"location"`
	Date     string        `json:"date"`
}

// SpotRecommendation is a viewing spot suggested by the model.
type SpotRecommendation struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Distance    string `json:"distance,omitempty"`
	Rating      string `json:"rating"`
}

// SunPhaseData describes either the sunrise or the sunset.
type SunPhaseData struct {
	Time               string               `json:"time"`
	QualityScore       int                  `json:"qualityScore"`
	QualityDescription string               `json:"qualityDescription"`
	Advice             string               `json:"advice"`
	Spots              []SpotRecommendation `json:"spots"`
}

// WeatherCondition is free text as returned by the model.
type WeatherCondition struct {
	Temp       string `json:"temp"`
	Condition  string `json:"condition"`
	CloudCover string `json:"cloudCover"`
	Visibility string `json:"visibility"`
}

// Source is a grounding citation attached by the provider.
type Source struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// Report is the normalized answer for one query.
type Report struct {
	LocationName      string           `json:"locationName"`
	Date              string           `json:"date"`
	Weather           WeatherCondition `json:"weather"`
	Sunrise           SunPhaseData     `json:"sunrise"`
	Sunset            SunPhaseData     `json:"sunset"`
	GoldenHourMorning string           `json:"goldenHourMorning"`
	GoldenHourEvening string           `json:"goldenHourEvening"`
	Sources           []Source         `json:"sources"`
}

// GenerateRequest is a single completion call.
type GenerateRequest struct {
	Model           string
	Prompt          string
	Temperature     float32
	SearchGrounding bool
}

// Generation is the raw provider answer.
type Generation struct {
	Text    string
	Sources []Source
	Usage   metrics.TokenUsage
}

// Generator is implemented by the generative AI clients.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (Generation, error)
}

// MalformedCapture is the raw output of a response that failed normalization.
type MalformedCapture struct {
	Location LocationInput
	Date     string
	Model    string
	Raw      string
	Reason   string
}

// DiagnosticsSink keeps malformed outputs for later inspection.
type DiagnosticsSink interface {
	CaptureMalformed(ctx context.Context, capture MalformedCapture) error
}

// Config wires runtime dependencies for the analysis domain.
type Config struct {
	Model           string
	Temperature     float32
	SearchGrounding bool
}
