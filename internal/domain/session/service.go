package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/horizon/internal/domain/auditlog"
	"github.com/yanqian/horizon/internal/domain/sunreport"
	apperrors "github.com/yanqian/horizon/pkg/errors"
	"github.com/yanqian/horizon/pkg/util"
)

// Error codes returned by the session service.
const (
	CodeNotFound          = "not_found"
	CodeInvalidTransition = "invalid_transition"
	CodeRequestInFlight   = "request_in_flight"
	CodeInvalidInput      = "invalid_input"
)

// ErrNotFound is returned for unknown or expired sessions.
var ErrNotFound = errors.New("session not found")

// Service is the application state controller.
type Service interface {
	Create(ctx context.Context) (Snapshot, error)
	Get(ctx context.Context, id string) (Snapshot, error)
	Search(ctx context.Context, id string, in SearchInput) (Snapshot, error)
	ReportPosition(ctx context.Context, id string, coords Coordinates) (Snapshot, error)
	ReportPositionFailure(ctx context.Context, id string, reason PositionFailure) (Snapshot, error)
	Cancel(ctx context.Context, id string) (Snapshot, error)
	Reset(ctx context.Context, id string) (Snapshot, error)
	SelectPhase(ctx context.Context, id string, phase Phase) (Snapshot, error)
}

// AuditRecorder receives one entry per finished attempt.
type AuditRecorder interface {
	Record(ctx context.Context, entry auditlog.Entry) error
}

type inflight struct {
	generation int64
	cancel     context.CancelFunc
}

type service struct {
	cfg      Config
	store    Store
	analyzer sunreport.Service
	audit    AuditRecorder
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string

	mu       sync.Mutex
	inflight map[string]inflight
}

// NewService wires the state controller.
func NewService(cfg Config, store Store, analyzer sunreport.Service, audit AuditRecorder, logger *slog.Logger) Service {
	if cfg.TTL <= 0 {
		cfg.TTL = 2 * time.Hour
	}
	return &service{
		cfg:      cfg,
		store:    store,
		analyzer: analyzer,
		audit:    audit,
		logger:   logger.With("component", "session.service"),
		now:      util.NowUTC,
		newID:    uuid.NewString,
		inflight: make(map[string]inflight),
	}
}

func (s *service) Create(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{
		ID:          s.newID(),
		State:       StateIdle,
		Date:        s.today(),
		ActivePhase: PhaseSunrise,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.save(ctx, &snap); err != nil {
		return Snapshot{}, err
	}
	s.logger.Info("session created", "session", snap.ID)
	return snap, nil
}

func (s *service) Get(ctx context.Context, id string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx, id)
}

// Search submits the form. A blank location asks the browser for its
// position; anything else starts the analysis right away.
func (s *service) Search(ctx context.Context, id string, in SearchInput) (Snapshot, error) {
	query := strings.TrimSpace(in.Location)
	date := strings.TrimSpace(in.Date)
	if date == "" {
		date = s.today()
	}

	s.mu.Lock()
	snap, err := s.load(ctx, id)
	if err != nil {
		s.mu.Unlock()
		return Snapshot{}, err
	}
	if snap.State == StateFetchingData {
		s.mu.Unlock()
		return Snapshot{}, apperrors.Wrap(CodeRequestInFlight, "an analysis is already running for this session", ErrInvalidTransition)
	}

	event := EventFetch
	loc := sunreport.Text(query)
	if query == "" {
		event = EventLocate
		loc = sunreport.LocationInput{}
	}
	if err := validateDate(date); err != nil {
		s.mu.Unlock()
		return Snapshot{}, err
	}
	next, err := Next(snap.State, event)
	if err != nil {
		s.mu.Unlock()
		return Snapshot{}, apperrors.Wrap(CodeInvalidTransition, "search is only allowed from the start screen", err)
	}

	snap.LocationQuery = query
	snap.Date = date
	snap.Coordinates = nil
	snap.ErrorMessage = ""
	snap.Report = nil

	if next == StateLocating {
		snap.State = next
		err := s.save(ctx, &snap)
		s.mu.Unlock()
		if err != nil {
			return Snapshot{}, err
		}
		return snap, nil
	}

	fetchCtx, err := s.beginFetchLocked(ctx, &snap)
	s.mu.Unlock()
	if err != nil {
		return Snapshot{}, err
	}
	return s.runFetch(fetchCtx, snap, loc), nil
}

func (s *service) ReportPosition(ctx context.Context, id string, coords Coordinates) (Snapshot, error) {
	loc := sunreport.Coords(coords.Lat, coords.Lng)
	if err := sunreport.ValidateRequest(sunreport.Request{Location: loc}); err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	snap, err := s.load(ctx, id)
	if err != nil {
		s.mu.Unlock()
		return Snapshot{}, err
	}
	if _, err := Next(snap.State, EventPositionFound); err != nil {
		s.mu.Unlock()
		return Snapshot{}, apperrors.Wrap(CodeInvalidTransition, "session is not waiting for a position", err)
	}
	snap.Coordinates = &Coordinates{Lat: coords.Lat, Lng: coords.Lng}
	fetchCtx, err := s.beginFetchLocked(ctx, &snap)
	s.mu.Unlock()
	if err != nil {
		return Snapshot{}, err
	}
	return s.runFetch(fetchCtx, snap, loc), nil
}

func (s *service) ReportPositionFailure(ctx context.Context, id string, reason PositionFailure) (Snapshot, error) {
	var message string
	switch reason {
	case PositionUnsupported:
		message = MessageGeolocationUnsupported
	case PositionDenied, PositionTimeout, PositionUnavailable:
		message = MessageGeolocationFailed
	default:
		return Snapshot{}, apperrors.Wrap(CodeInvalidInput, "reason must be one of unsupported, denied, timeout, unavailable", nil)
	}

	s.mu.Lock()
	snap, err := s.load(ctx, id)
	if err != nil {
		s.mu.Unlock()
		return Snapshot{}, err
	}
	next, err := Next(snap.State, EventPositionFailed)
	if err != nil {
		s.mu.Unlock()
		return Snapshot{}, apperrors.Wrap(CodeInvalidTransition, "session is not waiting for a position", err)
	}
	snap.State = next
	snap.ErrorMessage = message
	err = s.save(ctx, &snap)
	s.mu.Unlock()
	if err != nil {
		return Snapshot{}, err
	}
	s.logger.Info("geolocation failed", "session", id, "reason", reason)
	s.record(ctx, auditlog.Entry{
		SessionID:    id,
		LocationKind: string(sunreport.LocationCoords),
		Date:         snap.Date,
		Outcome:      auditlog.OutcomeGeolocationFailed,
	})
	return snap, nil
}

// Cancel abandons locating or an in-flight analysis. A late result of the
// cancelled request is discarded.
func (s *service) Cancel(ctx context.Context, id string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.load(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	next, err := Next(snap.State, EventCancel)
	if err != nil {
		return Snapshot{}, apperrors.Wrap(CodeInvalidTransition, "nothing to cancel", err)
	}
	if flight, ok := s.inflight[id]; ok {
		flight.cancel()
		delete(s.inflight, id)
	}
	snap.State = next
	snap.Generation++
	snap.ErrorMessage = ""
	snap.Report = nil
	if err := s.save(ctx, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Reset returns to the start screen from the dashboard or the error card.
func (s *service) Reset(ctx context.Context, id string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.load(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	next, err := Next(snap.State, EventReset)
	if err != nil {
		return Snapshot{}, apperrors.Wrap(CodeInvalidTransition, "reset is only allowed from results or errors", err)
	}
	snap.State = next
	snap.Report = nil
	snap.ErrorMessage = ""
	snap.Coordinates = nil
	snap.ActivePhase = PhaseSunrise
	if err := s.save(ctx, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// SelectPhase toggles the dashboard between sunrise and sunset.
func (s *service) SelectPhase(ctx context.Context, id string, phase Phase) (Snapshot, error) {
	if !phase.Valid() {
		return Snapshot{}, apperrors.Wrap(CodeInvalidInput, "phase must be sunrise or sunset", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.load(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	if _, err := Next(snap.State, EventSelectPhase); err != nil {
		return Snapshot{}, apperrors.Wrap(CodeInvalidTransition, "no results to display", err)
	}
	snap.ActivePhase = phase
	if err := s.save(ctx, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// beginFetchLocked moves snap to FETCHING_DATA and registers a cancellable
// context for the request. The context survives the caller going away.
func (s *service) beginFetchLocked(ctx context.Context, snap *Snapshot) (context.Context, error) {
	next, err := Next(snap.State, fetchEvent(snap.State))
	if err != nil {
		return nil, apperrors.Wrap(CodeInvalidTransition, "cannot start analysis", err)
	}
	snap.State = next
	snap.Generation++
	if err := s.save(ctx, snap); err != nil {
		return nil, err
	}
	fetchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.inflight[snap.ID] = inflight{generation: snap.Generation, cancel: cancel}
	return fetchCtx, nil
}

func fetchEvent(from State) Event {
	if from == StateLocating {
		return EventPositionFound
	}
	return EventFetch
}

// runFetch performs the analysis outside the lock and applies the result
// only if the session still waits for this generation.
func (s *service) runFetch(ctx context.Context, started Snapshot, loc sunreport.LocationInput) Snapshot {
	begin := time.Now()
	report, analyzeErr := s.analyzer.Analyze(ctx, sunreport.Request{Location: loc, Date: started.Date})
	latency := time.Since(begin)
	ctx = context.WithoutCancel(ctx)

	entry := auditlog.Entry{
		SessionID:    started.ID,
		LocationKind: string(loc.Kind),
		Location:     describe(loc),
		Date:         started.Date,
		LatencyMs:    latency.Milliseconds(),
	}

	current, stale, err := s.applyResult(ctx, started, report, analyzeErr)
	if err != nil {
		s.logger.Warn("session vanished during analysis", "session", started.ID, "error", err)
		return started
	}
	switch {
	case stale:
		entry.Outcome = auditlog.OutcomeCancelled
	case analyzeErr != nil:
		entry.Outcome = outcomeFor(analyzeErr)
	default:
		entry.Outcome = auditlog.OutcomeSuccess
		entry.SunriseScore = report.Sunrise.QualityScore
		entry.SunsetScore = report.Sunset.QualityScore
	}
	s.record(ctx, entry)
	return current
}

// applyResult stores the outcome of an analysis under the lock. stale is
// true when the session moved on and the result was discarded.
func (s *service) applyResult(ctx context.Context, started Snapshot, report sunreport.Report, analyzeErr error) (Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if flight, ok := s.inflight[started.ID]; ok && flight.generation == started.Generation {
		flight.cancel()
		delete(s.inflight, started.ID)
	}

	current, err := s.load(ctx, started.ID)
	if err != nil {
		return Snapshot{}, false, err
	}
	if current.State != StateFetchingData || current.Generation != started.Generation {
		s.logger.Info("discarding stale analysis result", "session", started.ID, "generation", started.Generation, "current_generation", current.Generation)
		return current, true, nil
	}

	if analyzeErr != nil {
		current.State, _ = Next(current.State, EventFailed)
		current.ErrorMessage = apperrors.Message(analyzeErr)
		s.logger.Warn("analysis failed", "session", current.ID, "error", analyzeErr)
	} else {
		current.State, _ = Next(current.State, EventSucceeded)
		current.Report = &report
		current.ActivePhase = PhaseSunrise
	}
	if err := s.save(ctx, &current); err != nil {
		s.logger.Error("failed to store analysis result", "session", current.ID, "error", err)
	}
	return current, false, nil
}

func outcomeFor(err error) auditlog.Outcome {
	switch apperrors.Code(err) {
	case sunreport.CodeMalformedResponse:
		return auditlog.OutcomeMalformed
	default:
		return auditlog.OutcomeAnalysisFailed
	}
}

func describe(loc sunreport.LocationInput) string {
	if loc.Kind == sunreport.LocationCoords {
		return sunreport.FormatCoordinates(loc.Lat, loc.Lng)
	}
	return loc.Query
}

func (s *service) record(ctx context.Context, entry auditlog.Entry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("audit record failed", "session", entry.SessionID, "error", err)
	}
}

func (s *service) load(ctx context.Context, id string) (Snapshot, error) {
	if strings.TrimSpace(id) == "" {
		return Snapshot{}, apperrors.Wrap(CodeNotFound, "session not found", ErrNotFound)
	}
	snap, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return Snapshot{}, apperrors.Wrap("session_store_error", "failed to load session", err)
	}
	if !ok {
		return Snapshot{}, apperrors.Wrap(CodeNotFound, "session not found", ErrNotFound)
	}
	return snap, nil
}

func (s *service) save(ctx context.Context, snap *Snapshot) error {
	snap.UpdatedAt = s.now()
	if err := s.store.Save(ctx, *snap, s.cfg.TTL); err != nil {
		return apperrors.Wrap("session_store_error", "failed to store session", err)
	}
	return nil
}

func (s *service) today() string {
	return util.CalendarDate(s.now())
}

func validateDate(date string) error {
	if _, err := util.ParseCalendarDate(date); err != nil {
		return apperrors.Wrap(CodeInvalidInput, "date must be formatted as YYYY-MM-DD", err)
	}
	return nil
}
