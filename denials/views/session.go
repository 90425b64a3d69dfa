package views

import (
	"context"
	"sync"
	"time"

	"github.com/CMSgov/denial-review-app/denials/analysis"
	"github.com/CMSgov/denial-review-app/denials/models"
)

const (
	analysisSubject = "Root cause analysis"
	appealSubject   = "Appeal"
)

// SessionState is everything the detail screen renders.
type SessionState struct {
	Detail     *DetailView          `json:"detail,omitempty"`
	RCA        *models.RCAResult    `json:"rca,omitempty"`
	Appeal     *models.AppealResult `json:"appeal,omitempty"`
	StatusLine string               `json:"statusLine,omitempty"`
	// MissingInformation is the appeal's missing field list formatted for display.
	MissingInformation []string `json:"missingInformation,omitempty"`
}

// Session is the transient state of one denial's detail screen. Analysis and appeal results
// live only here and are never written back to the backend. Each operation is rejected
// while the same operation is already running.
type Session struct {
	id       string
	details  *DetailController
	analyzer *analysis.Orchestrator

	mu         sync.Mutex
	view       *DetailView
	rca        *models.RCAResult
	appeal     *models.AppealResult
	statusLine string
	analyzing  bool
	appealing  bool
}

func NewSession(id string, details *DetailController, analyzer *analysis.Orchestrator) *Session {
	return &Session{id: id, details: details, analyzer: analyzer}
}

// Load fetches the denial and rebuilds the screen from it, as a fresh navigation does.
// Results produced earlier on this screen are dropped; any analysis or appeal the backend
// holds is shown as cached.
func (s *Session) Load(ctx context.Context) (SessionState, error) {
	view, err := s.details.Fetch(ctx, s.id)
	if err != nil {
		return SessionState{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = &view
	s.rca = nil
	s.appeal = nil
	s.statusLine = ""
	if view.RCA != nil {
		rca := *view.RCA
		s.rca = &rca
	}
	if view.Denial.AppealResult != nil {
		appeal := *view.Denial.AppealResult
		appeal.Source = models.SourceCached
		s.appeal = &appeal
	}
	return s.state(), nil
}

// Analyze runs a root cause analysis and replaces any earlier result.
func (s *Session) Analyze(ctx context.Context) (SessionState, error) {
	denial, err := s.begin(ctx, &s.analyzing, "analysis")
	if err != nil {
		return SessionState{}, err
	}

	out := s.analyzer.TriggerAnalysis(ctx, denial)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyzing = false
	result := out.Value
	s.rca = &result
	s.statusLine = analysis.StatusLine(out, analysisSubject)
	return s.state(), nil
}

// Appeal generates an appeal, or regenerates one. The new result replaces the old one
// wholesale.
func (s *Session) Appeal(ctx context.Context) (SessionState, error) {
	denial, err := s.begin(ctx, &s.appealing, "appeal generation")
	if err != nil {
		return SessionState{}, err
	}

	out := s.analyzer.PrepareAppeal(ctx, denial)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.appealing = false
	result := out.Value
	s.appeal = &result
	s.statusLine = analysis.StatusLine(out, appealSubject)
	return s.state(), nil
}

// begin marks an operation as running and returns the denial it runs against, loading the
// denial first if the screen has not been loaded yet.
func (s *Session) begin(ctx context.Context, running *bool, name string) (models.Denial, error) {
	s.mu.Lock()
	if *running {
		s.mu.Unlock()
		return models.Denial{}, &Error{Msg: name + " already in progress", InProgress: true}
	}
	*running = true
	loaded := s.view != nil
	s.mu.Unlock()

	if !loaded {
		if _, err := s.Load(ctx); err != nil {
			s.mu.Lock()
			*running = false
			s.mu.Unlock()
			return models.Denial{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.Denial.Denial, nil
}

// Letter is the appeal letter to download: the latest appeal on this screen, else the
// letter the backend holds. Empty when there is none.
func (s *Session) Letter() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appeal != nil && s.appeal.EmailDraft != "" {
		return s.appeal.EmailDraft
	}
	if s.view != nil {
		return s.view.Denial.AppealLetter
	}
	return ""
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state()
}

func (s *Session) state() SessionState {
	st := SessionState{Detail: s.view, RCA: s.rca, Appeal: s.appeal, StatusLine: s.statusLine}
	if s.appeal != nil {
		for _, f := range s.appeal.MissingInformation {
			st.MissingInformation = append(st.MissingInformation, FormatFieldName(f))
		}
	}
	return st
}

// Sessions keeps the session of each open detail screen. A screen is identified by a
// client-chosen id and shows one denial at a time; screens idle for longer than the TTL
// are dropped.
type Sessions struct {
	details  *DetailController
	analyzer *analysis.Orchestrator
	ttl      time.Duration
	now      func() time.Time

	mu      sync.Mutex
	screens map[string]*screen
}

type screen struct {
	session  *Session
	lastUsed time.Time
}

func NewSessions(details *DetailController, analyzer *analysis.Orchestrator, ttl time.Duration) *Sessions {
	return &Sessions{
		details:  details,
		analyzer: analyzer,
		ttl:      ttl,
		now:      time.Now,
		screens:  make(map[string]*screen),
	}
}

// Get returns the session of screenID for denialID. Pointing a screen at another denial is
// a navigation and starts a new session.
func (s *Sessions) Get(screenID, denialID string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.expire(now)
	sc, ok := s.screens[screenID]
	if !ok || sc.session.id != denialID {
		sc = &screen{session: s.New(denialID)}
		s.screens[screenID] = sc
	}
	sc.lastUsed = now
	return sc.session
}

// New returns a session that is not tied to any screen.
func (s *Sessions) New(denialID string) *Session {
	return NewSession(denialID, s.details, s.analyzer)
}

// Close drops the session of screenID, as when the screen is left.
func (s *Sessions) Close(screenID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.screens, screenID)
}

// expire must be called with mu held.
func (s *Sessions) expire(now time.Time) {
	if s.ttl <= 0 {
		return
	}
	for id, sc := range s.screens {
		if now.Sub(sc.lastUsed) > s.ttl {
			delete(s.screens, id)
		}
	}
}
