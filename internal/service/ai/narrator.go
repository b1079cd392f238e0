package ai

import (
	"context"
	"encoding/base64"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const narrationPrefix = "Here is a summary of the research paper: "

// Audio is a synthesized clip. Data is base64 encoded.
type Audio struct {
	Data     string
	MIMEType string
}

// Narrator reads summaries aloud with a prebuilt voice.
type Narrator struct {
	gen    Generator
	model  string
	voice  string
	logger *zap.Logger
}

func NewNarrator(gen Generator, model, voice string, logger *zap.Logger) *Narrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if voice == "" {
		voice = "Kore"
	}
	return &Narrator{gen: gen, model: model, voice: voice, logger: logger}
}

// Narrate synthesizes speech for text. A response without audio is an
// *AudioError.
func (n *Narrator) Narrate(ctx context.Context, text string) (*Audio, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: n.voice},
			},
		},
	}
	contents := []*genai.Content{genai.NewContentFromText(narrationPrefix+text, genai.RoleUser)}
	res, err := n.gen.GenerateContent(ctx, n.model, contents, cfg)
	if err != nil {
		n.logger.Error("speech synthesis failed", zap.Error(err))
		return nil, &AudioError{Err: err}
	}
	blob := firstInlineData(res)
	if blob == nil || len(blob.Data) == 0 {
		return nil, &AudioError{Err: ErrNoAudio}
	}
	return &Audio{
		Data:     base64.StdEncoding.EncodeToString(blob.Data),
		MIMEType: blob.MIMEType,
	}, nil
}

func firstInlineData(res *genai.GenerateContentResponse) *genai.Blob {
	if res == nil || len(res.Candidates) == 0 {
		return nil
	}
	cand := res.Candidates[0]
	if cand == nil || cand.Content == nil || len(cand.Content.Parts) == 0 || cand.Content.Parts[0] == nil {
		return nil
	}
	return cand.Content.Parts[0].InlineData
}
