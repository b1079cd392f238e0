package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"iter"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"paperlens/internal/models"
)

type fakeGenerator struct {
	res      *genai.GenerateContentResponse
	err      error
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.contents = contents
	f.config = config
	return f.res, f.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func samplePaper() *models.PaperFile {
	return &models.PaperFile{Name: "paper.pdf", MimeType: "application/pdf", Data: []byte("%PDF-1.4"), Size: 8}
}

func TestParseAnalysisAppliesDefaults(t *testing.T) {
	analysis, err := ParseAnalysis(`{"title": "", "objectives": ["Speed up attention"]}`)
	require.NoError(t, err)

	require.Equal(t, "Untitled Paper", analysis.Title)
	require.Equal(t, []string{"Speed up attention"}, analysis.Objectives)
	require.Equal(t, "N/A", analysis.Citation.PublicationDate)
	require.Equal(t, "N/A", analysis.Citation.JournalOrConference)
	require.Equal(t, "", analysis.Citation.DOI)
	require.Equal(t, "No simplified explanation available.", analysis.ObjectivesEli5)
	require.Equal(t, "N/A", analysis.Methodology.ApproachName)
	require.Equal(t, "No simplified conclusion available.", analysis.Conclusion.SummaryEli5)
	require.Equal(t, "# No code prototype available", analysis.Implementation.CodeSnippet)

	for name, l := range map[string][]string{
		"authors":    analysis.Authors,
		"discovered": analysis.Gaps.Discovered,
		"fulfilled":  analysis.Gaps.Fulfilled,
		"datasets":   analysis.Datasets,
		"algorithms": analysis.Methodology.KeyAlgorithms,
		"metrics":    analysis.Evaluation.Metrics,
		"drawbacks":  analysis.Conclusion.Drawbacks,
		"future":     analysis.Conclusion.FutureWork,
		"models":     analysis.Implementation.Models,
		"steps":      analysis.Implementation.Steps,
	} {
		require.NotNil(t, l, name)
		require.Empty(t, l, name)
	}
	require.NotNil(t, analysis.StudyGuide.Equations)
	require.NotNil(t, analysis.StudyGuide.Quiz)
}

func TestParseAnalysisMapsStudyGuide(t *testing.T) {
	payload := "```json\n" + `{
		"title": "Attention Is All You Need",
		"authors": ["Vaswani"],
		"citation_date": "2017",
		"study_equations": [{"name": "Attention", "equation": "softmax(QK^T)V", "description": "weights", "variables": [{"symbol": "Q", "meaning": "queries"}]}],
		"study_quiz": [{"question": "What replaces recurrence?", "options": ["Attention", "Convolution"], "correct_index": 0, "explanation": "Self-attention."}]
	}` + "\n```"
	analysis, err := ParseAnalysis(payload)
	require.NoError(t, err)
	require.Equal(t, "Attention Is All You Need", analysis.Title)
	require.Equal(t, "Attention Is All You Need", analysis.Citation.Title)
	require.Equal(t, []string{"Vaswani"}, analysis.Citation.Authors)
	require.Equal(t, "2017", analysis.Citation.PublicationDate)
	require.Len(t, analysis.StudyGuide.Equations, 1)
	require.Equal(t, "Q", analysis.StudyGuide.Equations[0].Variables[0].Symbol)
	require.Len(t, analysis.StudyGuide.Quiz, 1)
	require.Equal(t, 0, analysis.StudyGuide.Quiz[0].CorrectAnswerIndex)
	require.Equal(t, "Self-attention.", analysis.StudyGuide.Quiz[0].Explanation)
}

func TestParseAnalysisRejectsBadPayloads(t *testing.T) {
	_, err := ParseAnalysis("")
	require.ErrorIs(t, err, ErrEmptyResponse)
	_, err = ParseAnalysis("not json")
	require.Error(t, err)
}

func TestAnalyzerBuildsStructuredRequest(t *testing.T) {
	gen := &fakeGenerator{res: textResponse(`{"title": "T", "objectives": ["o"]}`)}
	a := NewAnalyzer(gen, "gemini-3-pro-preview", 8192, nil)

	analysis, err := a.Analyze(context.Background(), samplePaper())
	require.NoError(t, err)
	require.Equal(t, "T", analysis.Title)

	require.Equal(t, "gemini-3-pro-preview", gen.model)
	require.Equal(t, "application/json", gen.config.ResponseMIMEType)
	require.NotNil(t, gen.config.ResponseSchema)
	require.Contains(t, gen.config.ResponseSchema.Required, "implementation_code")
	require.EqualValues(t, 8192, *gen.config.ThinkingConfig.ThinkingBudget)
	require.Len(t, gen.contents, 1)
	parts := gen.contents[0].Parts
	require.Equal(t, "application/pdf", parts[0].InlineData.MIMEType)
	require.Equal(t, []byte("%PDF-1.4"), parts[0].InlineData.Data)
	require.NotEmpty(t, parts[1].Text)
}

func TestAnalyzerFailuresAreAnalysisErrors(t *testing.T) {
	cases := map[string]*fakeGenerator{
		"transport":   {err: errors.New("503")},
		"empty":       {res: textResponse("")},
		"unparseable": {res: textResponse("{")},
	}
	for name, gen := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewAnalyzer(gen, "m", 0, nil).Analyze(context.Background(), samplePaper())
			var aErr *AnalysisError
			require.True(t, errors.As(err, &aErr))
			require.Equal(t, "Failed to analyze paper.", aErr.UserMessage())
		})
	}
}

func groundedResponse(chunks ...*genai.GroundingChunk) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			GroundingMetadata: &genai.GroundingMetadata{GroundingChunks: chunks},
		}},
	}
}

func web(title, uri string) *genai.GroundingChunk {
	return &genai.GroundingChunk{Web: &genai.GroundingChunkWeb{Title: title, URI: uri}}
}

func TestRelatedQueryUsesFirstTwoObjectives(t *testing.T) {
	q := RelatedQuery("Deep Nets", []string{"a", "b", "c"})
	require.Equal(t, `Find 5 recent research papers related to: "Deep Nets". Key objectives involved: a, b.`, q)
}

func TestRelatedFinderDedupesAndCaps(t *testing.T) {
	gen := &fakeGenerator{res: groundedResponse(
		web("One", "https://www.arxiv.org/abs/1"),
		web("One again", "https://www.arxiv.org/abs/1"),
		web("", "https://nature.com/2"),
		&genai.GroundingChunk{},
		web("Three", "https://example.org/3"),
		web("Four", "https://example.org/4"),
		web("Five", "https://example.org/5"),
		web("Six", "https://example.org/6"),
		web("Seven", "https://example.org/7"),
	)}
	f := NewRelatedFinder(gen, "gemini-2.5-flash", nil)

	papers := f.Find(context.Background(), "T", []string{"o"})
	require.Len(t, papers, 6)
	require.Equal(t, "One", papers[0].Title)
	require.Equal(t, "arxiv.org", papers[0].Source)
	require.Equal(t, "Unknown Title", papers[1].Title)
	require.Equal(t, "nature.com", papers[1].Source)
	seen := map[string]bool{}
	for _, p := range papers {
		require.False(t, seen[p.URI], "duplicate %s", p.URI)
		seen[p.URI] = true
	}
	require.Len(t, gen.config.Tools, 1)
	require.NotNil(t, gen.config.Tools[0].GoogleSearch)
}

func TestRelatedFinderSwallowsErrors(t *testing.T) {
	f := NewRelatedFinder(&fakeGenerator{err: errors.New("quota")}, "m", nil)
	papers := f.Find(context.Background(), "T", nil)
	require.NotNil(t, papers)
	require.Empty(t, papers)

	_, err := f.Search(context.Background(), "T", nil)
	var sErr *SearchError
	require.True(t, errors.As(err, &sErr))
}

func TestNarratorEncodesAudio(t *testing.T) {
	pcm := []byte{1, 2, 3, 4}
	gen := &fakeGenerator{res: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{InlineData: &genai.Blob{MIMEType: "audio/L16;codec=pcm;rate=24000", Data: pcm}}}},
		}},
	}}
	n := NewNarrator(gen, "gemini-2.5-flash-preview-tts", "Kore", nil)

	audio, err := n.Narrate(context.Background(), "Analysis of T.")
	require.NoError(t, err)
	require.Equal(t, base64.StdEncoding.EncodeToString(pcm), audio.Data)
	require.Equal(t, "audio/L16;codec=pcm;rate=24000", audio.MIMEType)
	require.Equal(t, []string{"AUDIO"}, gen.config.ResponseModalities)
	require.Equal(t, "Kore", gen.config.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName)
	require.Equal(t, "Here is a summary of the research paper: Analysis of T.", gen.contents[0].Parts[0].Text)
}

func TestNarratorWithoutAudio(t *testing.T) {
	_, err := NewNarrator(&fakeGenerator{res: textResponse("hi")}, "m", "", nil).Narrate(context.Background(), "x")
	var aErr *AudioError
	require.True(t, errors.As(err, &aErr))
	require.ErrorIs(t, err, ErrNoAudio)
}

type fakeChatStream struct {
	chunks []string
	err    error
	sent   []genai.Part
}

func (f *fakeChatStream) SendMessageStream(_ context.Context, parts ...genai.Part) iter.Seq2[*genai.GenerateContentResponse, error] {
	f.sent = append(f.sent, parts...)
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		for _, c := range f.chunks {
			if !yield(textResponse(c), nil) {
				return
			}
		}
		if f.err != nil {
			yield(nil, f.err)
		}
	}
}

type fakeChatFactory struct {
	stream  *fakeChatStream
	err     error
	history []*genai.Content
}

func (f *fakeChatFactory) Create(_ context.Context, _ string, _ *genai.GenerateContentConfig, history []*genai.Content) (ChatStream, error) {
	f.history = history
	if f.err != nil {
		return nil, f.err
	}
	return f.stream, nil
}

func drain(t *testing.T, s *ChatSession, text string) ([]string, error) {
	t.Helper()
	sr, err := s.Stream(context.Background(), text)
	require.NoError(t, err)
	defer sr.Close()
	var got []string
	for {
		chunk, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			return got, nil
		}
		if err != nil {
			return got, err
		}
		got = append(got, chunk)
	}
}

func TestChatOpenerSeedsHistory(t *testing.T) {
	factory := &fakeChatFactory{stream: &fakeChatStream{chunks: []string{"Hel", "lo"}}}
	session, err := NewChatOpener(factory, "gemini-3-pro-preview", nil).Open(context.Background(), samplePaper())
	require.NoError(t, err)

	require.Len(t, factory.history, 2)
	require.Equal(t, genai.RoleUser, factory.history[0].Role)
	require.NotNil(t, factory.history[0].Parts[0].InlineData)
	require.Equal(t, chatSeedPrompt, factory.history[0].Parts[1].Text)
	require.Equal(t, genai.RoleModel, factory.history[1].Role)
	require.Equal(t, chatSeedReply, factory.history[1].Parts[0].Text)

	got, err := drain(t, session, "What is new?")
	require.NoError(t, err)
	require.Equal(t, []string{"Hel", "lo"}, got)
	require.Equal(t, "What is new?", factory.stream.sent[0].Text)
}

func TestChatSessionSurfacesMidStreamError(t *testing.T) {
	stream := &fakeChatStream{chunks: []string{"partial"}, err: errors.New("reset")}
	got, err := drain(t, NewChatSession(stream, nil), "q")
	require.Equal(t, []string{"partial"}, got)
	require.EqualError(t, err, "reset")
}

func TestChatOpenerFailure(t *testing.T) {
	_, err := NewChatOpener(&fakeChatFactory{err: errors.New("denied")}, "m", nil).Open(context.Background(), samplePaper())
	require.Error(t, err)
}
