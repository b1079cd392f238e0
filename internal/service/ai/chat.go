package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"paperlens/internal/models"
)

const (
	chatSeedPrompt = "Here is the research paper I want to discuss. Please answer my questions based on this document."
	chatSeedReply  = "Understood. I have analyzed the paper. What would you like to know?"

	chatBuffer = 16
)

// ChatOpener starts conversations grounded on an uploaded paper.
type ChatOpener struct {
	factory ChatFactory
	model   string
	logger  *zap.Logger
}

func NewChatOpener(factory ChatFactory, model string, logger *zap.Logger) *ChatOpener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatOpener{factory: factory, model: model, logger: logger}
}

// SeedHistory is the two-turn preamble every paper conversation starts with.
func SeedHistory(file *models.PaperFile) []*genai.Content {
	return []*genai.Content{
		{
			Role: genai.RoleUser,
			Parts: []*genai.Part{
				inlineFile(file.MimeType, file.Data),
				{Text: chatSeedPrompt},
			},
		},
		{
			Role:  genai.RoleModel,
			Parts: []*genai.Part{{Text: chatSeedReply}},
		},
	}
}

// Open creates the conversation for file.
func (o *ChatOpener) Open(ctx context.Context, file *models.PaperFile) (*ChatSession, error) {
	if file == nil {
		return nil, errors.New("no paper selected")
	}
	stream, err := o.factory.Create(ctx, o.model, nil, SeedHistory(file))
	if err != nil {
		o.logger.Warn("open paper chat failed", zap.String("file", file.Name), zap.Error(err))
		return nil, fmt.Errorf("create chat: %w", err)
	}
	return NewChatSession(stream, o.logger), nil
}

// ChatSession is one open conversation. Stream may be called repeatedly; the
// underlying chat keeps the turn history.
type ChatSession struct {
	stream ChatStream
	logger *zap.Logger
}

func NewChatSession(stream ChatStream, logger *zap.Logger) *ChatSession {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatSession{stream: stream, logger: logger}
}

// Stream sends text and returns the reply as ordered text fragments. A failure
// after the first fragment arrives as an error from Recv.
func (s *ChatSession) Stream(ctx context.Context, text string) (*schema.StreamReader[string], error) {
	if text == "" {
		return nil, errors.New("message cannot be empty")
	}
	sr, sw := schema.Pipe[string](chatBuffer)
	go func() {
		defer sw.Close()
		for resp, err := range s.stream.SendMessageStream(ctx, genai.Part{Text: text}) {
			if err != nil {
				s.logger.Warn("chat stream interrupted", zap.Error(err))
				sw.Send("", err)
				return
			}
			if resp == nil {
				continue
			}
			chunk := resp.Text()
			if chunk == "" {
				continue
			}
			if closed := sw.Send(chunk, nil); closed {
				return
			}
		}
	}()
	return sr, nil
}
