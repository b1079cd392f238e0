package assistant

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"paperlens/internal/cache"
	"paperlens/internal/metrics"
	"paperlens/internal/models"
	"paperlens/internal/service/ai"
	"paperlens/internal/worker"
	"paperlens/internal/workspace"
)

const (
	DefaultAnalysisTimeout = 5 * time.Minute
	DefaultChatTimeout     = 2 * time.Minute
)

// Analyzer produces the structured analysis of a paper.
type Analyzer interface {
	Analyze(ctx context.Context, file *models.PaperFile) (*models.PaperAnalysis, error)
}

// ChatOpener starts a conversation grounded on a paper.
type ChatOpener interface {
	Open(ctx context.Context, file *models.PaperFile) (*ai.ChatSession, error)
}

// RelatedFinder searches for papers related to an analysis. It never fails;
// an empty list means nothing was found.
type RelatedFinder interface {
	Find(ctx context.Context, title string, objectives []string) []models.RelatedPaper
}

// Narrator synthesizes the audio overview.
type Narrator interface {
	Narrate(ctx context.Context, text string) (*ai.Audio, error)
}

// Dispatcher runs analyses in the background.
type Dispatcher interface {
	Submit(job worker.Job) error
	CancelWorkspace(id string)
	Pending() int
}

// Deps wires the service. Cache and Metrics are optional.
type Deps struct {
	Store      *workspace.Store
	Analyzer   Analyzer
	Chat       ChatOpener
	Related    RelatedFinder
	Narrator   Narrator
	Dispatcher Dispatcher
	Cache      *cache.Analyses
	Metrics    *metrics.Metrics
	Logger     *zap.Logger

	AnalysisTimeout time.Duration
	ChatTimeout     time.Duration
}

// Service runs every workspace operation that talks to Gemini.
type Service struct {
	store      *workspace.Store
	analyzer   Analyzer
	chat       ChatOpener
	related    RelatedFinder
	narrator   Narrator
	dispatcher Dispatcher
	cache      *cache.Analyses
	metrics    *metrics.Metrics
	logger     *zap.Logger

	analysisTimeout time.Duration
	chatTimeout     time.Duration
}

// NewService builds a new assistant service.
func NewService(d Deps) (*Service, error) {
	switch {
	case d.Store == nil:
		return nil, errors.New("workspace store is required")
	case d.Analyzer == nil:
		return nil, errors.New("analyzer is required")
	case d.Chat == nil:
		return nil, errors.New("chat opener is required")
	case d.Related == nil:
		return nil, errors.New("related finder is required")
	case d.Narrator == nil:
		return nil, errors.New("narrator is required")
	case d.Dispatcher == nil:
		return nil, errors.New("dispatcher is required")
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.AnalysisTimeout <= 0 {
		d.AnalysisTimeout = DefaultAnalysisTimeout
	}
	if d.ChatTimeout <= 0 {
		d.ChatTimeout = DefaultChatTimeout
	}
	return &Service{
		store:           d.Store,
		analyzer:        d.Analyzer,
		chat:            d.Chat,
		related:         d.Related,
		narrator:        d.Narrator,
		dispatcher:      d.Dispatcher,
		cache:           d.Cache,
		metrics:         d.Metrics,
		logger:          d.Logger,
		analysisTimeout: d.AnalysisTimeout,
		chatTimeout:     d.ChatTimeout,
	}, nil
}

// Workspace returns the workspace for id, creating it on first use.
func (s *Service) Workspace(id string) *workspace.Workspace {
	ws := s.store.GetOrCreate(id)
	s.metrics.SetWorkspaces(s.store.Len())
	return ws
}

// Reset drops queued work for ws and returns it to idle.
func (s *Service) Reset(ws *workspace.Workspace) {
	s.dispatcher.CancelWorkspace(ws.ID)
	ws.Reset()
	s.logger.Info("workspace reset", zap.String("workspace", ws.ID))
}
