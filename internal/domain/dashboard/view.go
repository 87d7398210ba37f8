package dashboard

import (
	"net/url"
	"strings"

	"github.com/yanqian/horizon/internal/domain/session"
	"github.com/yanqian/horizon/internal/domain/sunreport"
)

// Screen names the top level view shown for a session.
type Screen string

const (
	ScreenHero      Screen = "hero"
	ScreenLoading   Screen = "loading"
	ScreenError     Screen = "error"
	ScreenDashboard Screen = "dashboard"
)

// Tier is the visual treatment of a quality score.
type Tier string

const (
	TierEmerald Tier = "emerald"
	TierYellow  Tier = "yellow"
	TierRed     Tier = "red"
)

const mapsSearchBase = "https://www.google.com/maps/search/?api=1&query="

// componentUnescaper undoes the escapes url.QueryEscape adds beyond what
// encodeURIComponent produces.
var componentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// View is everything the page needs to render a session.
type View struct {
	SessionID     string           `json:"sessionId"`
	State         session.State    `json:"state"`
	Screen        Screen           `json:"screen"`
	LocationQuery string           `json:"locationQuery"`
	Date          string           `json:"date"`
	Caption       string           `json:"caption,omitempty"`
	Error         *ErrorView       `json:"error,omitempty"`
	Dashboard     *DashboardView   `json:"dashboard,omitempty"`
	Geolocation   GeolocationHints `json:"geolocation"`
}

// ErrorView is the error card.
type ErrorView struct {
	Title      string `json:"title"`
	Message    string `json:"message"`
	RetryLabel string `json:"retryLabel"`
}

// GeolocationHints are the options the page passes to the browser.
type GeolocationHints struct {
	TimeoutMs          int64 `json:"timeoutMs"`
	EnableHighAccuracy bool  `json:"enableHighAccuracy"`
}

// DashboardView is the results screen.
type DashboardView struct {
	LocationName      string                     `json:"locationName"`
	Date              string                     `json:"date"`
	Weather           sunreport.WeatherCondition `json:"weather"`
	GoldenHourMorning string                     `json:"goldenHourMorning"`
	GoldenHourEvening string                     `json:"goldenHourEvening"`
	ActivePhase       session.Phase              `json:"activePhase"`
	Phases            []PhaseTab                 `json:"phases"`
	Active            PhaseView                  `json:"active"`
	Sources           []sunreport.Source         `json:"sources"`
}

// PhaseTab is one entry of the sunrise/sunset toggle.
type PhaseTab struct {
	Phase  session.Phase `json:"phase"`
	Label  string        `json:"label"`
	Time   string        `json:"time"`
	Active bool          `json:"active"`
}

// PhaseView is the detail panel of the selected phase.
type PhaseView struct {
	Title       string     `json:"title"`
	Time        string     `json:"time"`
	Score       int        `json:"score"`
	Tier        Tier       `json:"tier"`
	Verdict     string     `json:"verdict"`
	Advice      string     `json:"advice"`
	PhotoTip    string     `json:"photoTip"`
	SpotsHeader string     `json:"spotsHeader"`
	Spots       []SpotView `json:"spots"`
}

// SpotView is a recommended spot card.
type SpotView struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Distance    string `json:"distance"`
	Rating      string `json:"rating"`
	MapsURL     string `json:"mapsUrl"`
}

// ScoreTier classifies a 0-100 quality score.
func ScoreTier(score int) Tier {
	switch {
	case score >= 80:
		return TierEmerald
	case score >= 60:
		return TierYellow
	default:
		return TierRed
	}
}

// MapsSearchURL links to a map search for name, encoded like encodeURIComponent.
func MapsSearchURL(name string) string {
	return mapsSearchBase + componentUnescaper.Replace(url.QueryEscape(name))
}

// BuildView derives the page state from a session snapshot.
func BuildView(snap session.Snapshot) View {
	view := View{
		SessionID:     snap.ID,
		State:         snap.State,
		LocationQuery: snap.LocationQuery,
		Date:          snap.Date,
		Geolocation: GeolocationHints{
			TimeoutMs:          session.GeolocationTimeout.Milliseconds(),
			EnableHighAccuracy: session.GeolocationHighAccuracy,
		},
	}

	switch snap.State {
	case session.StateLocating:
		view.Screen = ScreenLoading
		view.Caption = "Locating you..."
	case session.StateFetchingData:
		view.Screen = ScreenLoading
		view.Caption = "Analyzing sky conditions for " + snap.Date + "..."
	case session.StateError:
		view.Screen = ScreenError
		view.Error = &ErrorView{
			Title:      "Something went wrong",
			Message:    snap.ErrorMessage,
			RetryLabel: "Try Again",
		}
	case session.StateSuccess:
		if snap.Report == nil {
			view.Screen = ScreenHero
			break
		}
		view.Screen = ScreenDashboard
		view.Dashboard = buildDashboard(*snap.Report, snap.ActivePhase)
	default:
		view.Screen = ScreenHero
	}
	return view
}

func buildDashboard(report sunreport.Report, active session.Phase) *DashboardView {
	if !active.Valid() {
		active = session.PhaseSunrise
	}
	sources := report.Sources
	if sources == nil {
		sources = []sunreport.Source{}
	}
	return &DashboardView{
		LocationName:      report.LocationName,
		Date:              report.Date,
		Weather:           report.Weather,
		GoldenHourMorning: report.GoldenHourMorning,
		GoldenHourEvening: report.GoldenHourEvening,
		ActivePhase:       active,
		Phases: []PhaseTab{
			{Phase: session.PhaseSunrise, Label: "Sunrise", Time: report.Sunrise.Time, Active: active == session.PhaseSunrise},
			{Phase: session.PhaseSunset, Label: "Sunset", Time: report.Sunset.Time, Active: active == session.PhaseSunset},
		},
		Active:  buildPhase(report, active),
		Sources: sources,
	}
}

func buildPhase(report sunreport.Report, phase session.Phase) PhaseView {
	data := report.Sunrise
	view := PhaseView{
		Title:       "Sunrise",
		PhotoTip:    "Arrive 30 mins early for the blue hour. Use a tripod for lower ISO.",
		SpotsHeader: "Recommended Sunrise Spots",
	}
	if phase == session.PhaseSunset {
		data = report.Sunset
		view.Title = "Sunset"
		view.PhotoTip = "Stay 20 mins after the sun dips for the most vibrant twilight colors."
		view.SpotsHeader = "Recommended Sunset Spots"
	}
	view.Time = data.Time
	view.Score = data.QualityScore
	view.Tier = ScoreTier(data.QualityScore)
	view.Verdict = data.QualityDescription
	view.Advice = data.Advice
	view.Spots = make([]SpotView, 0, len(data.Spots))
	for _, spot := range data.Spots {
		distance := spot.Distance
		if strings.TrimSpace(distance) == "" {
			distance = "Nearby"
		}
		view.Spots = append(view.Spots, SpotView{
			Name:        spot.Name,
			Description: spot.Description,
			Distance:    distance,
			Rating:      spot.Rating,
			MapsURL:     MapsSearchURL(spot.Name),
		})
	}
	return view
}
