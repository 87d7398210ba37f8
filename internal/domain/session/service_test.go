package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/horizon/internal/domain/auditlog"
	"github.com/yanqian/horizon/internal/domain/sunreport"
	apperrors "github.com/yanqian/horizon/pkg/errors"
)

func TestCreateStartsIdle(t *testing.T) {
	svc, _, _, _ := newServiceUnderTest(nil)

	snap, err := svc.Create(context.Background())
	require.NoError(t, err)
	require.Equal(t, "session-1", snap.ID)
	require.Equal(t, StateIdle, snap.State)
	require.Equal(t, "2024-06-21", snap.Date)
	require.Equal(t, PhaseSunrise, snap.ActivePhase)
}

func TestSearchBlankLocationStartsLocating(t *testing.T) {
	svc, analyzer, _, _ := newServiceUnderTest(nil)
	snap := mustCreate(t, svc)

	snap, err := svc.Search(context.Background(), snap.ID, SearchInput{Location: "  ", Date: "2024-06-21"})
	require.NoError(t, err)
	require.Equal(t, StateLocating, snap.State)
	require.Zero(t, analyzer.callCount())
}

func TestReportPositionFetchesWithCoordinates(t *testing.T) {
	svc, analyzer, store, audit := newServiceUnderTest(nil)
	snap := mustCreate(t, svc)
	_, err := svc.Search(context.Background(), snap.ID, SearchInput{Date: "2024-06-21"})
	require.NoError(t, err)

	var stateDuringFetch State
	analyzer.hook = func(ctx context.Context, req sunreport.Request) {
		current, _, _ := store.Get(ctx, snap.ID)
		stateDuringFetch = current.State
	}

	snap, err = svc.ReportPosition(context.Background(), snap.ID, Coordinates{Lat: 37.7, Lng: -122.4})
	require.NoError(t, err)
	require.Equal(t, StateFetchingData, stateDuringFetch)
	require.Equal(t, StateSuccess, snap.State)
	require.Equal(t, sunreport.Coords(37.7, -122.4), analyzer.lastRequest.Location)
	require.Equal(t, "2024-06-21", analyzer.lastRequest.Date)
	require.Equal(t, &Coordinates{Lat: 37.7, Lng: -122.4}, snap.Coordinates)

	require.Len(t, audit.entries, 1)
	require.Equal(t, auditlog.OutcomeSuccess, audit.entries[0].Outcome)
	require.Equal(t, "37.7,-122.4", audit.entries[0].Location)
}

func TestReportPositionRequiresLocating(t *testing.T) {
	svc, _, _, _ := newServiceUnderTest(nil)
	snap := mustCreate(t, svc)

	_, err := svc.ReportPosition(context.Background(), snap.ID, Coordinates{Lat: 1, Lng: 1})
	require.True(t, apperrors.IsCode(err, CodeInvalidTransition))
}

func TestReportPositionValidatesRange(t *testing.T) {
	svc, _, _, _ := newServiceUnderTest(nil)
	snap := mustCreate(t, svc)
	_, err := svc.Search(context.Background(), snap.ID, SearchInput{})
	require.NoError(t, err)

	_, err = svc.ReportPosition(context.Background(), snap.ID, Coordinates{Lat: 120, Lng: 1})
	require.True(t, apperrors.IsCode(err, sunreport.CodeInvalidInput))
}

func TestPositionFailureMessages(t *testing.T) {
	cases := map[PositionFailure]string{
		PositionUnsupported: MessageGeolocationUnsupported,
		PositionDenied:      MessageGeolocationFailed,
		PositionTimeout:     MessageGeolocationFailed,
	}
	for reason, want := range cases {
		svc, _, _, audit := newServiceUnderTest(nil)
		snap := mustCreate(t, svc)
		_, err := svc.Search(context.Background(), snap.ID, SearchInput{})
		require.NoError(t, err)

		snap, err = svc.ReportPositionFailure(context.Background(), snap.ID, reason)
		require.NoError(t, err)
		require.Equal(t, StateError, snap.State)
		require.Equal(t, want, snap.ErrorMessage)
		require.Equal(t, auditlog.OutcomeGeolocationFailed, audit.entries[0].Outcome)
	}
}

func TestPositionFailureUnknownReason(t *testing.T) {
	svc, _, _, _ := newServiceUnderTest(nil)
	snap := mustCreate(t, svc)
	_, err := svc.ReportPositionFailure(context.Background(), snap.ID, "sunspots")
	require.True(t, apperrors.IsCode(err, CodeInvalidInput))
}

func TestSearchEndToEndAndPhaseToggle(t *testing.T) {
	svc, analyzer, _, _ := newServiceUnderTest(nil)
	snap := mustCreate(t, svc)

	snap, err := svc.Search(context.Background(), snap.ID, SearchInput{Location: "Paris", Date: "2024-06-21"})
	require.NoError(t, err)
	require.Equal(t, StateSuccess, snap.State)
	require.NotNil(t, snap.Report)
	require.NotEmpty(t, snap.Report.LocationName)
	require.Equal(t, sunreport.Text("Paris"), analyzer.lastRequest.Location)

	snap, err = svc.SelectPhase(context.Background(), snap.ID, PhaseSunset)
	require.NoError(t, err)
	require.Equal(t, PhaseSunset, snap.ActivePhase)
	require.Equal(t, StateSuccess, snap.State)
	require.Equal(t, 1, analyzer.callCount())

	_, err = svc.SelectPhase(context.Background(), snap.ID, "noon")
	require.True(t, apperrors.IsCode(err, CodeInvalidInput))
}

func TestSearchAnalysisFailureEndsInError(t *testing.T) {
	analyzer := &stubAnalyzer{err: apperrors.Wrap(sunreport.CodeMalformedResponse, sunreport.FailureMessage, sunreport.ErrMalformedResponse)}
	svc, _, _, audit := newServiceUnderTest(analyzer)
	snap := mustCreate(t, svc)

	snap, err := svc.Search(context.Background(), snap.ID, SearchInput{Location: "Paris", Date: "2024-06-21"})
	require.NoError(t, err)
	require.Equal(t, StateError, snap.State)
	require.Equal(t, sunreport.FailureMessage, snap.ErrorMessage)
	require.Nil(t, snap.Report)
	require.Equal(t, auditlog.OutcomeMalformed, audit.entries[0].Outcome)

	snap, err = svc.Reset(context.Background(), snap.ID)
	require.NoError(t, err)
	require.Equal(t, StateIdle, snap.State)
	require.Empty(t, snap.ErrorMessage)
	require.Equal(t, "Paris", snap.LocationQuery)
}

func TestSearchInvalidDate(t *testing.T) {
	svc, analyzer, _, _ := newServiceUnderTest(nil)
	snap := mustCreate(t, svc)

	_, err := svc.Search(context.Background(), snap.ID, SearchInput{Location: "Paris", Date: "June 21"})
	require.True(t, apperrors.IsCode(err, CodeInvalidInput))
	require.Zero(t, analyzer.callCount())
}

func TestSearchRejectedWhileInFlightAndCancelDiscardsResult(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	analyzer := &stubAnalyzer{
		hook: func(ctx context.Context, _ sunreport.Request) {
			close(started)
			<-release
		},
	}
	svc, _, _, audit := newServiceUnderTest(analyzer)
	snap := mustCreate(t, svc)

	type outcome struct {
		snap Snapshot
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := svc.Search(context.Background(), snap.ID, SearchInput{Location: "Paris", Date: "2024-06-21"})
		done <- outcome{snap: result, err: err}
	}()
	<-started

	_, err := svc.Search(context.Background(), snap.ID, SearchInput{Location: "Rome", Date: "2024-06-21"})
	require.True(t, apperrors.IsCode(err, CodeRequestInFlight))

	cancelled, err := svc.Cancel(context.Background(), snap.ID)
	require.NoError(t, err)
	require.Equal(t, StateIdle, cancelled.State)
	require.Error(t, analyzer.lastCtx.Err())

	close(release)
	var result outcome
	select {
	case result = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("search did not return")
	}
	require.NoError(t, result.err)
	require.Equal(t, StateIdle, result.snap.State)
	require.Nil(t, result.snap.Report)

	current, err := svc.Get(context.Background(), snap.ID)
	require.NoError(t, err)
	require.Equal(t, StateIdle, current.State)
	require.Equal(t, auditlog.OutcomeCancelled, audit.entries[0].Outcome)
}

func TestSlowAuditDoesNotBlockOtherSessions(t *testing.T) {
	svc, _, _, audit := newServiceUnderTest(nil)
	ids := []string{"session-a", "session-b"}
	svc.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}
	first := mustCreate(t, svc)
	second := mustCreate(t, svc)

	audit.entered = make(chan struct{}, 1)
	audit.release = make(chan struct{})
	searched := make(chan error, 1)
	go func() {
		_, err := svc.Search(context.Background(), first.ID, SearchInput{Location: "Paris", Date: "2024-06-21"})
		searched <- err
	}()

	select {
	case <-audit.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("audit was never recorded")
	}

	got := make(chan Snapshot, 1)
	go func() {
		snap, _ := svc.Get(context.Background(), second.ID)
		got <- snap
	}()
	select {
	case snap := <-got:
		require.Equal(t, StateIdle, snap.State)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("get waited on the audit write")
	}

	close(audit.release)
	require.NoError(t, <-searched)
}

func TestResetRequiresResultOrError(t *testing.T) {
	svc, _, _, _ := newServiceUnderTest(nil)
	snap := mustCreate(t, svc)

	_, err := svc.Reset(context.Background(), snap.ID)
	require.True(t, apperrors.IsCode(err, CodeInvalidTransition))
}

func TestUnknownSession(t *testing.T) {
	svc, _, _, _ := newServiceUnderTest(nil)
	_, err := svc.Get(context.Background(), "missing")
	require.True(t, apperrors.IsCode(err, CodeNotFound))
	require.True(t, errors.Is(err, ErrNotFound))
}

func mustCreate(t *testing.T, svc Service) Snapshot {
	t.Helper()
	snap, err := svc.Create(context.Background())
	require.NoError(t, err)
	return snap
}

func newServiceUnderTest(analyzer *stubAnalyzer) (*service, *stubAnalyzer, *stubStore, *stubAudit) {
	if analyzer == nil {
		analyzer = &stubAnalyzer{}
	}
	store := &stubStore{data: make(map[string]Snapshot)}
	audit := &stubAudit{}
	svc := &service{
		cfg:      Config{TTL: time.Hour},
		store:    store,
		analyzer: analyzer,
		audit:    audit,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now: func() time.Time {
			return time.Date(2024, 6, 21, 8, 0, 0, 0, time.UTC)
		},
		newID:    func() string { return "session-1" },
		inflight: make(map[string]inflight),
	}
	return svc, analyzer, store, audit
}

type stubAnalyzer struct {
	mu          sync.Mutex
	err         error
	calls       int
	lastRequest sunreport.Request
	lastCtx     context.Context
	hook        func(ctx context.Context, req sunreport.Request)
}

func (s *stubAnalyzer) Analyze(ctx context.Context, req sunreport.Request) (sunreport.Report, error) {
	s.mu.Lock()
	s.calls++
	s.lastRequest = req
	s.lastCtx = ctx
	hook := s.hook
	s.mu.Unlock()
	if hook != nil {
		hook(ctx, req)
	}
	if s.err != nil {
		return sunreport.Report{}, s.err
	}
	return sunreport.Report{
		LocationName: "Paris, France",
		Date:         "Jun 21, 2024",
		Sunrise:      sunreport.SunPhaseData{Time: "5:47 AM", QualityScore: 82},
		Sunset:       sunreport.SunPhaseData{Time: "9:58 PM", QualityScore: 45},
		Sources:      []sunreport.Source{},
	}, nil
}

func (s *stubAnalyzer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubStore struct {
	mu   sync.Mutex
	data map[string]Snapshot
}

func (s *stubStore) Get(_ context.Context, id string) (Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.data[id]
	return snap, ok, nil
}

func (s *stubStore) Save(_ context.Context, snap Snapshot, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[snap.ID] = snap
	return nil
}

func (s *stubStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

type stubAudit struct {
	mu      sync.Mutex
	entries []auditlog.Entry
	entered chan struct{}
	release chan struct{}
}

func (s *stubAudit) Record(_ context.Context, entry auditlog.Entry) error {
	if s.release != nil {
		s.entered <- struct{}{}
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}
