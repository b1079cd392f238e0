package assistant

import (
	"context"
	"encoding/base64"
	"errors"
	"iter"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"paperlens/internal/cache"
	"paperlens/internal/config"
	"paperlens/internal/metrics"
	"paperlens/internal/models"
	"paperlens/internal/service/ai"
	"paperlens/internal/storage"
	"paperlens/internal/worker"
	"paperlens/internal/workspace"
)

type fakeAnalyzer struct {
	calls   atomic.Int32
	result  *models.PaperAnalysis
	err     error
	block   chan struct{}
	started chan struct{}
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, _ *models.PaperFile) (*models.PaperAnalysis, error) {
	f.calls.Add(1)
	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ai.NewAnalysisError(ctx.Err())
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeStream struct {
	mu     sync.Mutex
	chunks []string
	sent   int
}

func (f *fakeStream) SendMessageStream(_ context.Context, _ ...genai.Part) iter.Seq2[*genai.GenerateContentResponse, error] {
	f.mu.Lock()
	f.sent++
	chunks := f.chunks
	f.mu.Unlock()
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		for _, c := range chunks {
			res := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
				Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: c}}},
			}}}
			if !yield(res, nil) {
				return
			}
		}
	}
}

type fakeOpener struct {
	opens  atomic.Int32
	stream *fakeStream
	err    error
}

func (f *fakeOpener) Open(_ context.Context, _ *models.PaperFile) (*ai.ChatSession, error) {
	f.opens.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return ai.NewChatSession(f.stream, nil), nil
}

type fakeFinder struct {
	calls  atomic.Int32
	papers []models.RelatedPaper
}

func (f *fakeFinder) Find(_ context.Context, _ string, _ []string) []models.RelatedPaper {
	f.calls.Add(1)
	return f.papers
}

type fakeNarrator struct {
	calls atomic.Int32
	audio *ai.Audio
	err   error
	text  string
}

func (f *fakeNarrator) Narrate(_ context.Context, text string) (*ai.Audio, error) {
	f.calls.Add(1)
	f.text = text
	if f.err != nil {
		return nil, f.err
	}
	return f.audio, nil
}

type harness struct {
	svc      *Service
	analyzer *fakeAnalyzer
	opener   *fakeOpener
	finder   *fakeFinder
	narrator *fakeNarrator
	store    *workspace.Store
}

func newHarness(t *testing.T, withCache bool) *harness {
	t.Helper()
	h := &harness{
		analyzer: &fakeAnalyzer{result: &models.PaperAnalysis{
			Title:          "Attention Is All You Need",
			Objectives:     []string{"Replace recurrence with attention"},
			ObjectivesEli5: "Look at everything at once",
			Conclusion:     models.Conclusion{SummaryEli5: "It works"},
		}},
		opener:   &fakeOpener{stream: &fakeStream{chunks: []string{"Hel", "lo"}}},
		finder:   &fakeFinder{papers: []models.RelatedPaper{{Title: "BERT", URI: "https://arxiv.org/abs/1810.04805", Source: "arxiv.org"}}},
		narrator: &fakeNarrator{audio: &ai.Audio{Data: base64.StdEncoding.EncodeToString([]byte{0, 0, 1, 1}), MIMEType: "audio/L16;codec=pcm;rate=24000"}},
		store:    workspace.NewStore(),
	}
	d := worker.NewDispatcher(worker.Config{MinWorkers: 1, MaxWorkers: 2, QueueSize: 4}, nil)
	t.Cleanup(d.Stop)

	var analyses *cache.Analyses
	if withCache {
		db, err := storage.Open(config.DatabaseConfig{Driver: "sqlite3", DSN: filepath.Join(t.TempDir(), "a.db")})
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		require.NoError(t, storage.Migrate(db, "sqlite3"))
		analyses = cache.New(nil, storage.NewAnalysisStore(db), time.Hour, nil)
	}

	svc, err := NewService(Deps{
		Store:      h.store,
		Analyzer:   h.analyzer,
		Chat:       h.opener,
		Related:    h.finder,
		Narrator:   h.narrator,
		Dispatcher: d,
		Cache:      analyses,
		Metrics:    metrics.New(),
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

func paper(hash string) *models.PaperFile {
	return &models.PaperFile{Name: "paper.pdf", MimeType: "application/pdf", Size: 2 << 20, Hash: hash, Data: []byte("%PDF-1.4")}
}

func waitStatus(t *testing.T, ws *workspace.Workspace, want workspace.Status) {
	t.Helper()
	require.Eventually(t, func() bool { return ws.Status() == want }, 2*time.Second, 5*time.Millisecond,
		"workspace stuck in %s", ws.Status())
}

func analyzed(t *testing.T, h *harness, id string) *workspace.Workspace {
	t.Helper()
	ws := h.svc.Workspace(id)
	require.NoError(t, h.svc.StartAnalysis(ws, paper("hash-"+id)))
	waitStatus(t, ws, workspace.StatusSuccess)
	return ws
}

func TestNewServiceRequiresDeps(t *testing.T) {
	_, err := NewService(Deps{})
	require.Error(t, err)
}

func TestAnalysisSucceeds(t *testing.T) {
	h := newHarness(t, false)
	ws := h.svc.Workspace("w1")
	require.NoError(t, h.svc.StartAnalysis(ws, paper("h1")))
	waitStatus(t, ws, workspace.StatusSuccess)

	snap := ws.Snapshot()
	require.Equal(t, "Attention Is All You Need", snap.Analysis.Title)
	require.Equal(t, "paper.pdf", snap.File.Name)

	require.ErrorIs(t, h.svc.StartAnalysis(ws, paper("h2")), workspace.ErrNotIdle)
}

func TestAnalysisFailureShowsMessage(t *testing.T) {
	h := newHarness(t, false)
	h.analyzer.err = ai.NewAnalysisError(errors.New("bad json"))
	ws := h.svc.Workspace("w1")
	require.NoError(t, h.svc.StartAnalysis(ws, paper("h1")))
	waitStatus(t, ws, workspace.StatusError)
	require.Equal(t, "Failed to analyze paper.", ws.Snapshot().Error)

	h.svc.Reset(ws)
	snap := ws.Snapshot()
	require.Equal(t, workspace.StatusIdle, snap.Status)
	require.Nil(t, snap.File)
	require.Empty(t, snap.Error)
}

func TestResetCancelsRunningAnalysis(t *testing.T) {
	h := newHarness(t, false)
	h.analyzer.block = make(chan struct{})
	h.analyzer.started = make(chan struct{})
	ws := h.svc.Workspace("w1")
	require.NoError(t, h.svc.StartAnalysis(ws, paper("h1")))
	<-h.analyzer.started

	h.svc.Reset(ws)
	require.Equal(t, workspace.StatusIdle, ws.Status())
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, workspace.StatusIdle, ws.Status())
	require.Nil(t, ws.Snapshot().Analysis)
}

func TestCachedAnalysisSkipsAnalyzer(t *testing.T) {
	h := newHarness(t, true)
	first := h.svc.Workspace("w1")
	require.NoError(t, h.svc.StartAnalysis(first, paper("same")))
	waitStatus(t, first, workspace.StatusSuccess)

	second := h.svc.Workspace("w2")
	require.NoError(t, h.svc.StartAnalysis(second, paper("same")))
	waitStatus(t, second, workspace.StatusSuccess)

	require.EqualValues(t, 1, h.analyzer.calls.Load())
	require.Equal(t, first.Snapshot().Analysis.Title, second.Snapshot().Analysis.Title)
}

func TestSendChatOpensOnceAndStreams(t *testing.T) {
	h := newHarness(t, false)
	ws := analyzed(t, h, "w1")

	var fragments []string
	err := h.svc.SendChat(context.Background(), ws, "Summarize", func(fragment string, _ models.ChatMessage) error {
		fragments = append(fragments, fragment)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"Hel", "lo"}, fragments)

	require.NoError(t, h.svc.SendChat(context.Background(), ws, "Again", nil))
	require.EqualValues(t, 1, h.opener.opens.Load())

	msgs := ws.Chat().Messages()
	require.Len(t, msgs, 5)
	require.Equal(t, "Hello", msgs[2].Text)
	require.False(t, msgs[2].Streaming)
}

func TestOpenChatFailure(t *testing.T) {
	h := newHarness(t, false)
	h.opener.err = errors.New("quota")
	ws := analyzed(t, h, "w1")

	var initErr *ai.ChatInitError
	require.ErrorAs(t, h.svc.OpenChat(context.Background(), ws), &initErr)
	require.False(t, ws.Chat().CanSend())
	require.ErrorIs(t, h.svc.SendChat(context.Background(), ws, "hi", nil), workspace.ErrChatUnavailable)
}

func TestChatNeedsPaper(t *testing.T) {
	h := newHarness(t, false)
	ws := h.svc.Workspace("w1")
	require.ErrorIs(t, h.svc.OpenChat(context.Background(), ws), workspace.ErrNoPaper)
}

func TestRelatedPapersSearchedOnce(t *testing.T) {
	h := newHarness(t, false)
	ws := analyzed(t, h, "w1")

	papers, err := h.svc.RelatedPapers(context.Background(), ws)
	require.NoError(t, err)
	require.Len(t, papers, 1)
	_, err = h.svc.RelatedPapers(context.Background(), ws)
	require.NoError(t, err)
	require.EqualValues(t, 1, h.finder.calls.Load())
}

func TestRelatedPapersEmptyIsNonNil(t *testing.T) {
	h := newHarness(t, false)
	h.finder.papers = nil
	ws := analyzed(t, h, "w1")
	papers, err := h.svc.RelatedPapers(context.Background(), ws)
	require.NoError(t, err)
	require.NotNil(t, papers)
	require.Empty(t, papers)
}

func TestToggleAudio(t *testing.T) {
	h := newHarness(t, false)
	ws := analyzed(t, h, "w1")

	st, err := h.svc.ToggleAudio(context.Background(), ws)
	require.NoError(t, err)
	require.True(t, st.Playing)
	require.NotEmpty(t, st.ClipID)
	require.Equal(t, "Analysis of Attention Is All You Need. Look at everything at once. It works", h.narrator.text)

	clip, err := h.svc.AudioClip(ws, st.ClipID)
	require.NoError(t, err)
	require.Equal(t, "audio/wav", clip.MIMEType)

	st, err = h.svc.ToggleAudio(context.Background(), ws)
	require.NoError(t, err)
	require.False(t, st.Playing)
	require.EqualValues(t, 1, h.narrator.calls.Load())
}

func TestToggleAudioFailureKeepsPlaybackOff(t *testing.T) {
	h := newHarness(t, false)
	h.narrator.err = &ai.AudioError{Err: ai.ErrNoAudio}
	ws := analyzed(t, h, "w1")

	st, err := h.svc.ToggleAudio(context.Background(), ws)
	var audioErr *ai.AudioError
	require.ErrorAs(t, err, &audioErr)
	require.False(t, st.Playing)
	require.False(t, st.Generating)
}

func TestJanitorEvictsIdleWorkspaces(t *testing.T) {
	h := newHarness(t, false)
	h.svc.Workspace("old")
	time.Sleep(10 * time.Millisecond)

	ids := h.svc.evictIdle(time.Millisecond)
	require.Equal(t, []string{"old"}, ids)
	require.Zero(t, h.store.Len())
}
