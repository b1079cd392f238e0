package ai

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"google.golang.org/genai"
)

// Generator is the part of the Gemini models service the clients call.
// *genai.Models satisfies it.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// ChatStream is a multi-turn conversation that streams its replies.
type ChatStream interface {
	SendMessageStream(ctx context.Context, parts ...genai.Part) iter.Seq2[*genai.GenerateContentResponse, error]
}

// ChatFactory creates conversations seeded with history.
type ChatFactory interface {
	Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (ChatStream, error)
}

// Client owns the single Gemini credential shared by every AI feature.
type Client struct {
	inner *genai.Client
}

// NewClient connects to the Gemini API.
func NewClient(ctx context.Context, apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	inner, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{inner: inner}, nil
}

// Models exposes the one-shot generation service.
func (c *Client) Models() Generator {
	return c.inner.Models
}

// Chats exposes the conversation service.
func (c *Client) Chats() ChatFactory {
	return geminiChats{chats: c.inner.Chats}
}

type geminiChats struct {
	chats *genai.Chats
}

func (g geminiChats) Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (ChatStream, error) {
	chat, err := g.chats.Create(ctx, model, config, history)
	if err != nil {
		return nil, err
	}
	return chat, nil
}

func inlineFile(mimeType string, data []byte) *genai.Part {
	return &genai.Part{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}}
}
