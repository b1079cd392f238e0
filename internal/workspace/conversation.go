package workspace

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/cloudwego/eino/schema"

	"paperlens/internal/models"
	"paperlens/internal/service/ai"
)

// ChatState tracks a paper conversation.
type ChatState string

const (
	ChatUninitialized ChatState = "uninitialized"
	ChatReady         ChatState = "ready"
	ChatSending       ChatState = "sending"
	ChatIdle          ChatState = "idle"
	ChatFailed        ChatState = "error"
)

const chatGreeting = "I've analyzed the paper fully. Ask me about specific methodologies, results, or equations!"

var (
	ErrEmptyMessage    = errors.New("message is empty")
	ErrChatBusy        = errors.New("a reply is still streaming")
	ErrChatNotReady    = errors.New("chat session is not open")
	ErrChatUnavailable = errors.New("chat is unavailable for this paper")
)

// Streamer sends one user turn and yields the reply in fragments.
type Streamer interface {
	Stream(ctx context.Context, text string) (*schema.StreamReader[string], error)
}

// Dialer opens the conversation for the current paper.
type Dialer func(ctx context.Context) (Streamer, error)

// FragmentFunc observes the in-progress reply after every fragment.
type FragmentFunc func(fragment string, reply models.ChatMessage) error

// Conversation is the append-only transcript for one paper plus its session.
type Conversation struct {
	openMu sync.Mutex

	mu       sync.RWMutex
	state    ChatState
	session  Streamer
	messages []models.ChatMessage
}

func NewConversation() *Conversation {
	return &Conversation{state: ChatUninitialized}
}

// EnsureSession opens the session once. Later calls reuse it. A failed open
// leaves a single error message and disables input until a new paper.
func (c *Conversation) EnsureSession(ctx context.Context, dial Dialer) error {
	c.openMu.Lock()
	defer c.openMu.Unlock()

	c.mu.RLock()
	state, open := c.state, c.session != nil
	c.mu.RUnlock()
	if open {
		return nil
	}
	if state == ChatFailed {
		return ErrChatUnavailable
	}

	session, err := dial(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil || session == nil {
		if err == nil {
			err = ErrChatNotReady
		}
		initErr := &ai.ChatInitError{Err: err}
		c.state = ChatFailed
		c.messages = []models.ChatMessage{{Role: models.RoleModel, Text: initErr.UserMessage()}}
		return initErr
	}
	c.session = session
	c.state = ChatReady
	if len(c.messages) == 0 {
		c.messages = append(c.messages, models.ChatMessage{Role: models.RoleModel, Text: chatGreeting})
	}
	return nil
}

// Send appends the user message and streams the reply into a new model
// message. Fragments are applied in arrival order. A mid-stream failure
// appends an apology and keeps the session usable.
func (c *Conversation) Send(ctx context.Context, text string, onFragment FragmentFunc) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	c.mu.Lock()
	switch {
	case c.state == ChatSending:
		c.mu.Unlock()
		return ErrChatBusy
	case c.state == ChatFailed:
		c.mu.Unlock()
		return ErrChatUnavailable
	case c.session == nil:
		c.mu.Unlock()
		return ErrChatNotReady
	}
	session := c.session
	c.messages = append(c.messages,
		models.ChatMessage{Role: models.RoleUser, Text: text},
		models.ChatMessage{Role: models.RoleModel, Streaming: true},
	)
	reply := len(c.messages) - 1
	c.state = ChatSending
	c.mu.Unlock()

	sr, err := session.Stream(ctx, text)
	if err != nil {
		return c.fail(reply, err)
	}
	defer sr.Close()

	for {
		chunk, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return c.fail(reply, err)
		}
		c.mu.Lock()
		c.messages[reply].Text += chunk
		snapshot := c.messages[reply]
		c.mu.Unlock()
		if onFragment != nil {
			// A gone observer does not stop the transcript from completing.
			if cbErr := onFragment(chunk, snapshot); cbErr != nil {
				onFragment = nil
			}
		}
	}

	c.mu.Lock()
	c.messages[reply].Streaming = false
	c.state = ChatIdle
	c.mu.Unlock()
	return nil
}

func (c *Conversation) fail(reply int, cause error) error {
	sendErr := &ai.ChatSendError{Err: cause}
	c.mu.Lock()
	c.messages[reply].Streaming = false
	c.messages = append(c.messages, models.ChatMessage{Role: models.RoleModel, Text: sendErr.UserMessage()})
	c.state = ChatIdle
	c.mu.Unlock()
	return sendErr
}

// Messages returns a copy of the transcript.
func (c *Conversation) Messages() []models.ChatMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *Conversation) State() ChatState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// CanSend reports whether the input control should be enabled.
func (c *Conversation) CanSend() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session != nil && c.state != ChatSending && c.state != ChatFailed
}
