package views

import (
	"context"
	"testing"
	"time"

	"github.com/CMSgov/denial-review-app/denials/analysis"
	"github.com/CMSgov/denial-review-app/denials/client"
	"github.com/CMSgov/denial-review-app/denials/constants"
	"github.com/CMSgov/denial-review-app/denials/models"
	"github.com/CMSgov/denial-review-app/denials/testutils"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) ListDenials(ctx context.Context, f client.Filter) (interface{}, error) {
	args := m.Called(ctx, f)
	return args.Get(0), args.Error(1)
}

func (m *mockBackend) GetDenial(ctx context.Context, id string) (map[string]interface{}, error) {
	args := m.Called(ctx, id)
	raw, _ := args.Get(0).(map[string]interface{})
	return raw, args.Error(1)
}

func (m *mockBackend) UpdateStatus(ctx context.Context, id, status string) (map[string]interface{}, error) {
	args := m.Called(ctx, id, status)
	raw, _ := args.Get(0).(map[string]interface{})
	return raw, args.Error(1)
}

func TestFormatFieldName(t *testing.T) {
	tests := map[string]string{
		"providerSignature": "provider Signature",
		"PatientDOB":        "Patient D O B",
		"claim":             "claim",
		"":                  "",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatFieldName(in), in)
	}
}

type ListTestSuite struct {
	suite.Suite
	backend *mockBackend
	list    *ListController
}

func (s *ListTestSuite) SetupTest() {
	s.backend = new(mockBackend)
	s.list = NewListController(s.backend)
}

func TestListTestSuite(t *testing.T) {
	suite.Run(t, new(ListTestSuite))
}

func (s *ListTestSuite) TestFetchTranslatesStatuses() {
	want := client.Filter{Statuses: []string{"In Review", "Resolved"}, Locations: []string{"North"}}
	s.backend.On("ListDenials", testutils.CtxMatcher, want).Return([]interface{}{}, nil)

	view, err := s.list.Fetch(context.Background(), ListQuery{
		Filter:   client.Filter{Locations: []string{"North"}},
		Statuses: []models.Status{models.StatusInReview, models.StatusResolved, "Archived"},
	})
	s.NoError(err)
	s.Equal(0, view.Total)
	s.NotNil(view.Denials)
	s.Len(view.Counts, 4)
	s.backend.AssertExpectations(s.T())
}

func (s *ListTestSuite) TestFetchSearch() {
	s.backend.On("ListDenials", testutils.CtxMatcher, client.Filter{}).Return([]interface{}{
		map[string]interface{}{"id": "1", "patientName": "Jane Doe", "claimNumber": "CLM-1", "insurancePayer": "Aetna", "status": "New"},
		map[string]interface{}{"id": "2", "patientName": "John Roe", "claimNumber": "CLM-2", "insurancePayer": "Cigna", "status": "Denied"},
		map[string]interface{}{"id": "3", "patientName": "Ann Poe", "claimNumber": "XYZ-3", "insurancePayer": "Humana", "status": "Resolved"},
	}, nil)

	view, err := s.list.Fetch(context.Background(), ListQuery{Search: "  cigna "})
	s.NoError(err)
	s.Equal(1, view.Total)
	s.Equal("2", view.Denials[0].ID)
	s.Equal(models.StatusBadges[models.StatusDenied], view.Denials[0].Badge)
	s.Equal(1, view.Counts[models.StatusDenied])
	s.Equal(0, view.Counts[models.StatusInReview])

	view, err = s.list.Fetch(context.Background(), ListQuery{Search: "clm"})
	s.NoError(err)
	s.Equal(2, view.Total)
}

func (s *ListTestSuite) TestFetchError() {
	s.backend.On("ListDenials", testutils.CtxMatcher, client.Filter{}).
		Return(nil, &client.RequestError{Msg: constants.NetworkErr})

	_, err := s.list.Fetch(context.Background(), ListQuery{})
	var viewErr *Error
	s.Require().True(errors.As(err, &viewErr))
	s.True(viewErr.Retryable)
	s.Equal(constants.NetworkErr, viewErr.Msg)
}

type DetailTestSuite struct {
	suite.Suite
	backend *mockBackend
	details *DetailController
}

func (s *DetailTestSuite) SetupTest() {
	s.backend = new(mockBackend)
	s.details = NewDetailController(s.backend)
}

func TestDetailTestSuite(t *testing.T) {
	suite.Run(t, new(DetailTestSuite))
}

func (s *DetailTestSuite) TestFetchNotAvailable() {
	s.backend.On("GetDenial", testutils.CtxMatcher, "7").Return(map[string]interface{}{
		"id": "7", "status": "Denied", "claimType": "Professional",
	}, nil)

	view, err := s.details.Fetch(context.Background(), "7")
	s.NoError(err)
	s.Equal(models.StatusDenied, view.Denial.Status)
	s.Equal(models.StatusBadges[models.StatusDenied], view.Badge)
	s.Nil(view.RCA)

	fields := make(map[string]string)
	for _, f := range view.Fields {
		fields[f.Label] = f.Value
	}
	s.Equal("Professional", fields["Claim Type"])
	s.Equal(NotAvailable, fields["Summary"])
	s.Equal(NotAvailable, fields["Appeal Deadline"])
}

func (s *DetailTestSuite) TestFetchCachedAnalysis() {
	s.backend.On("GetDenial", testutils.CtxMatcher, "8").Return(map[string]interface{}{
		"id": "8", "status": "RCA Completed",
		"rcaResult": map[string]interface{}{"analysis": "Missing modifier 25."},
	}, nil)

	view, err := s.details.Fetch(context.Background(), "8")
	s.NoError(err)
	s.Require().NotNil(view.RCA)
	s.Equal(models.SourceCached, view.RCA.Source)
	s.Equal("Missing modifier 25.", view.RCA.Remote.Analysis)
	s.Equal("Missing modifier 25.", view.Denial.RootCause)
}

func (s *DetailTestSuite) TestUpdateStatus() {
	s.backend.On("UpdateStatus", testutils.CtxMatcher, "9", "Appeal Filed").
		Return(map[string]interface{}{"id": "9", "status": "Appeal Filed"}, nil)

	d, err := s.details.UpdateStatus(context.Background(), "9", models.StatusAppealFiled)
	s.NoError(err)
	s.Equal(models.StatusAppealFiled, d.Status)

	_, err = s.details.UpdateStatus(context.Background(), "9", "Archived")
	var viewErr *Error
	s.Require().True(errors.As(err, &viewErr))
	s.False(viewErr.Retryable)
	s.backend.AssertNumberOfCalls(s.T(), "UpdateStatus", 1)
}

// Exercises the controllers through the real gateway against the fake backend.
type EndToEndTestSuite struct {
	suite.Suite
	backend  *testutils.Backend
	gateway  *client.Client
	list     *ListController
	sessions *Sessions
}

func (s *EndToEndTestSuite) SetupTest() {
	s.backend = testutils.NewBackend(testutils.RandomRecords("New", "Appeal Generated", "Resolved")...)
	s.gateway = client.NewClient(s.backend.Config())
	s.list = NewListController(s.gateway)
	s.sessions = NewSessions(NewDetailController(s.gateway), analysis.NewOrchestrator(s.gateway), time.Minute)
}

func (s *EndToEndTestSuite) TearDownTest() {
	s.backend.Close()
}

func TestEndToEndTestSuite(t *testing.T) {
	suite.Run(t, new(EndToEndTestSuite))
}

func (s *EndToEndTestSuite) TestListCounts() {
	view, err := s.list.Fetch(context.Background(), ListQuery{})
	s.Require().NoError(err)
	s.Equal(3, view.Total)

	var statuses []models.Status
	for _, row := range view.Denials {
		statuses = append(statuses, row.Status)
	}
	s.Equal([]models.Status{models.StatusInReview, models.StatusAppealFiled, models.StatusResolved}, statuses)
	s.Equal(map[models.Status]int{
		models.StatusInReview:    1,
		models.StatusAppealFiled: 1,
		models.StatusDenied:      0,
		models.StatusResolved:    1,
	}, view.Counts)
}

func (s *EndToEndTestSuite) TestListFilterByStatus() {
	view, err := s.list.Fetch(context.Background(), ListQuery{Statuses: []models.Status{models.StatusResolved}})
	s.Require().NoError(err)
	s.Equal(1, view.Total)
	s.Equal("D-3", view.Denials[0].ID)
	s.Contains(s.backend.Requests(), "GET /api/Denials?status=Resolved")
}

func (s *EndToEndTestSuite) TestSessionAnalyzeFallsBackOffline() {
	sess := s.sessions.Get("screen-1", "D-1")
	st, err := sess.Analyze(context.Background())
	s.Require().NoError(err)
	s.Equal(models.SourceAPI, st.RCA.Source)
	s.Contains(st.StatusLine, "completed")

	s.backend.Fail("rca", 500)
	st, err = sess.Analyze(context.Background())
	s.Require().NoError(err)
	s.Equal(models.SourceOffline, st.RCA.Source)
	s.Nil(st.RCA.Remote)
	s.Len(st.RCA.Issues, 3)
	s.Contains(st.StatusLine, "offline intelligence")
}

func (s *EndToEndTestSuite) TestSessionRegenerateReplacesAppeal() {
	sess := s.sessions.Get("screen-1", "D-2")

	s.backend.Fail("appeal", 503)
	st, err := sess.Appeal(context.Background())
	s.Require().NoError(err)
	s.Equal(models.AppealGeneratedOffline, st.Appeal.Status)
	s.Contains(sess.Letter(), st.Detail.Denial.ClaimNumber)

	s.backend.Recover("appeal")
	st, err = sess.Appeal(context.Background())
	s.Require().NoError(err)
	s.Equal(models.AppealReadyToSubmit, st.Appeal.Status)
	s.Equal(models.SourceAPI, st.Appeal.Source)
	s.Empty(st.Appeal.MissingInformation)
	s.Equal(st.Appeal.EmailDraft, sess.Letter())
}

func (s *EndToEndTestSuite) TestSessionLoadError() {
	sess := s.sessions.Get("screen-1", "missing")
	_, err := sess.Analyze(context.Background())
	var viewErr *Error
	s.Require().True(errors.As(err, &viewErr))
	s.Equal("Denial not found", viewErr.Msg)
	s.True(viewErr.Retryable)

	// A failed load must not leave the operation marked as running.
	_, err = sess.Analyze(context.Background())
	s.Equal("Denial not found", err.Error())
}

func (s *EndToEndTestSuite) TestSessionLoadShowsBackendState() {
	sess := s.sessions.Get("screen-1", "D-1")
	s.backend.Fail("rca", 500)
	st, err := sess.Analyze(context.Background())
	s.Require().NoError(err)
	s.Equal(models.SourceOffline, st.RCA.Source)
	s.NotEmpty(st.StatusLine)

	rec := s.backend.Record("D-1")
	rec["status"] = "RCA Completed"
	rec["rcaResult"] = map[string]interface{}{
		"analysis":        "Missing prior authorization",
		"recommendations": "Obtain authorization and resubmit.",
		"status":          "completed",
		"jobId":           42,
	}
	s.backend.Put(rec)

	st, err = sess.Load(context.Background())
	s.Require().NoError(err)
	s.Require().NotNil(st.RCA)
	s.Equal(models.SourceCached, st.RCA.Source)
	s.Require().NotNil(st.RCA.Remote)
	s.Equal("Missing prior authorization", st.RCA.Remote.Analysis)
	s.Empty(st.StatusLine)
	s.Equal(models.StatusInReview, st.Detail.Denial.Status)
}

func (s *EndToEndTestSuite) TestSessionLoadDropsScreenAppeal() {
	sess := s.sessions.Get("screen-1", "D-1")
	s.backend.Fail("appeal", 503)
	st, err := sess.Appeal(context.Background())
	s.Require().NoError(err)
	s.NotNil(st.Appeal)

	st, err = sess.Load(context.Background())
	s.Require().NoError(err)
	s.Nil(st.Appeal)
	s.Empty(st.StatusLine)
}

func (s *EndToEndTestSuite) TestSessionRejectsConcurrentOperation() {
	sess := s.sessions.Get("screen-1", "D-1")
	sess.analyzing = true

	_, err := sess.Analyze(context.Background())
	var viewErr *Error
	s.Require().True(errors.As(err, &viewErr))
	s.True(viewErr.InProgress)
	s.False(viewErr.Retryable)
}

func (s *EndToEndTestSuite) TestSessionsAreKeyedByScreen() {
	first := s.sessions.Get("screen-1", "D-1")
	s.Same(first, s.sessions.Get("screen-1", "D-1"))
	s.NotSame(first, s.sessions.Get("screen-2", "D-1"))

	// Navigating a screen to another denial replaces its session.
	other := s.sessions.Get("screen-1", "D-2")
	s.NotSame(first, other)
	s.NotSame(first, s.sessions.Get("screen-1", "D-1"))

	kept := s.sessions.Get("screen-3", "D-1")
	s.sessions.Close("screen-3")
	s.NotSame(kept, s.sessions.Get("screen-3", "D-1"))

	s.NotSame(s.sessions.New("D-1"), s.sessions.New("D-1"))
}

func (s *EndToEndTestSuite) TestSessionsExpireIdleScreens() {
	now := time.Now()
	s.sessions.now = func() time.Time { return now }

	idle := s.sessions.Get("idle", "D-1")
	active := s.sessions.Get("active", "D-2")

	now = now.Add(45 * time.Second)
	s.Same(active, s.sessions.Get("active", "D-2"))

	now = now.Add(30 * time.Second)
	s.Same(active, s.sessions.Get("active", "D-2"))
	s.sessions.mu.Lock()
	_, ok := s.sessions.screens["idle"]
	s.sessions.mu.Unlock()
	s.False(ok)
	s.NotSame(idle, s.sessions.Get("idle", "D-1"))
}
