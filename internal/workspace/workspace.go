package workspace

import (
	"context"
	"errors"
	"sync"
	"time"

	"paperlens/internal/models"
)

// Status is the view controller state.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusAnalyzing Status = "analyzing"
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
)

const defaultFailureMsg = "Failed to analyze the paper. Please ensure the API key is valid and the file is a readable PDF."

var (
	ErrBusy    = errors.New("an analysis is already running")
	ErrNotIdle = errors.New("reset the workspace before uploading another paper")
	ErrNoPaper = errors.New("no analyzed paper in this workspace")
)

// userMessenger is implemented by errors that carry display text.
type userMessenger interface {
	UserMessage() string
}

// Workspace is one browser's view of one paper: the analysis lifecycle plus
// the chat, widget and audio state that hang off it.
type Workspace struct {
	ID string

	mu         sync.RWMutex
	status     Status
	file       *models.PaperFile
	analysis   *models.PaperAnalysis
	errMsg     string
	notice     string
	generation uint64
	cancel     context.CancelFunc
	chat       *Conversation
	widgets    *Widgets
	audio      *AudioPlayer
	related    []models.RelatedPaper
	hasRelated bool
	lastSeen   time.Time
}

func New(id string) *Workspace {
	return &Workspace{
		ID:       id,
		status:   StatusIdle,
		chat:     NewConversation(),
		widgets:  NewWidgets(),
		audio:    &AudioPlayer{},
		lastSeen: time.Now(),
	}
}

// Snapshot is an immutable copy of the view state.
type Snapshot struct {
	ID         string                `json:"id"`
	Status     Status                `json:"status"`
	File       *models.PaperFile     `json:"file,omitempty"`
	Analysis   *models.PaperAnalysis `json:"analysis,omitempty"`
	Error      string                `json:"error,omitempty"`
	Notice     string                `json:"notice,omitempty"`
	Generation uint64                `json:"generation"`
}

func (w *Workspace) Snapshot() Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return Snapshot{
		ID:         w.ID,
		Status:     w.status,
		File:       w.file,
		Analysis:   w.analysis,
		Error:      w.errMsg,
		Notice:     w.notice,
		Generation: w.generation,
	}
}

// Reject keeps the workspace idle and records a validation message.
func (w *Workspace) Reject(msg string) {
	w.mu.Lock()
	if w.status == StatusIdle {
		w.notice = msg
	}
	w.mu.Unlock()
}

// Begin moves idle to analyzing for file. The returned context is cancelled
// by Reset; the generation identifies this run to Complete and Fail.
func (w *Workspace) Begin(parent context.Context, file *models.PaperFile) (context.Context, uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.status {
	case StatusIdle:
	case StatusAnalyzing:
		return nil, 0, ErrBusy
	default:
		return nil, 0, ErrNotIdle
	}
	ctx, cancel := context.WithCancel(parent)
	w.generation++
	w.cancel = cancel
	w.status = StatusAnalyzing
	w.file = file
	w.analysis = nil
	w.errMsg = ""
	w.notice = ""
	w.discardDerivedLocked()
	return ctx, w.generation, nil
}

// Complete records a successful analysis. Results for a superseded run are
// dropped and false is returned.
func (w *Workspace) Complete(gen uint64, analysis *models.PaperAnalysis) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.generation || w.status != StatusAnalyzing || analysis == nil {
		return false
	}
	w.releaseRunLocked()
	w.status = StatusSuccess
	w.analysis = analysis
	return true
}

// Fail records a failed analysis, using the error's own message when it has one.
func (w *Workspace) Fail(gen uint64, err error) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.generation || w.status != StatusAnalyzing {
		return false
	}
	w.releaseRunLocked()
	w.status = StatusError
	w.errMsg = defaultFailureMsg
	var um userMessenger
	if errors.As(err, &um) && um.UserMessage() != "" {
		w.errMsg = um.UserMessage()
	}
	return true
}

// Reset returns to idle from any state, cancelling an in-flight analysis and
// discarding the file, analysis, chat, widget state and audio.
func (w *Workspace) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		w.cancel()
	}
	w.cancel = nil
	w.generation++
	w.status = StatusIdle
	w.file = nil
	w.analysis = nil
	w.errMsg = ""
	w.notice = ""
	w.discardDerivedLocked()
}

func (w *Workspace) releaseRunLocked() {
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
}

func (w *Workspace) discardDerivedLocked() {
	w.chat = NewConversation()
	w.widgets = NewWidgets()
	w.audio.Release()
	w.audio = &AudioPlayer{}
	w.related = nil
	w.hasRelated = false
}

func (w *Workspace) Status() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.status
}

// Paper returns the analyzed file and its analysis, or ErrNoPaper outside
// the success state.
func (w *Workspace) Paper() (*models.PaperFile, *models.PaperAnalysis, uint64, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.status != StatusSuccess {
		return nil, nil, 0, ErrNoPaper
	}
	return w.file, w.analysis, w.generation, nil
}

func (w *Workspace) Chat() *Conversation {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.chat
}

func (w *Workspace) Widgets() *Widgets {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.widgets
}

func (w *Workspace) Audio() *AudioPlayer {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.audio
}

// Related returns cached related papers and whether a search has finished.
func (w *Workspace) Related() ([]models.RelatedPaper, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.related, w.hasRelated
}

// SetRelated caches related papers for run gen.
func (w *Workspace) SetRelated(gen uint64, papers []models.RelatedPaper) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.generation {
		return false
	}
	w.related = papers
	w.hasRelated = true
	return true
}

// Touch records activity for idle eviction.
func (w *Workspace) Touch(now time.Time) {
	w.mu.Lock()
	w.lastSeen = now
	w.mu.Unlock()
}

func (w *Workspace) LastSeen() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastSeen
}
