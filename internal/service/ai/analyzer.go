package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"paperlens/internal/models"
)

const (
	defaultTitle          = "Untitled Paper"
	notAvailable          = "N/A"
	defaultObjectivesEli5 = "No simplified explanation available."
	defaultConclusionEli5 = "No simplified conclusion available."
	defaultCodeSnippet    = "# No code prototype available"
)

// Analyzer turns a paper into a fully populated PaperAnalysis with one
// structured-output request.
type Analyzer struct {
	gen            Generator
	model          string
	thinkingBudget int32
	logger         *zap.Logger
}

func NewAnalyzer(gen Generator, model string, thinkingBudget int, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{gen: gen, model: model, thinkingBudget: int32(thinkingBudget), logger: logger}
}

// Analyze sends the file to the model. Any failure is an *AnalysisError and no
// partial result is returned.
func (a *Analyzer) Analyze(ctx context.Context, file *models.PaperFile) (*models.PaperAnalysis, error) {
	if file == nil || len(file.Data) == 0 {
		return nil, NewAnalysisError(errors.New("empty file"))
	}
	budget := a.thinkingBudget
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   analysisSchema(),
		ThinkingConfig:   &genai.ThinkingConfig{ThinkingBudget: &budget},
	}
	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			inlineFile(file.MimeType, file.Data),
			{Text: analysisPrompt},
		},
	}}

	start := time.Now()
	res, err := a.gen.GenerateContent(ctx, a.model, contents, cfg)
	if err != nil {
		a.logger.Error("gemini analysis request failed", zap.String("file", file.Name), zap.Error(err))
		return nil, NewAnalysisError(err)
	}
	text := ""
	if res != nil {
		text = res.Text()
	}
	analysis, err := ParseAnalysis(text)
	if err != nil {
		a.logger.Error("gemini analysis response unusable", zap.String("file", file.Name), zap.Error(err))
		return nil, NewAnalysisError(err)
	}
	a.logger.Info("paper analyzed",
		zap.String("file", file.Name),
		zap.String("title", analysis.Title),
		zap.Duration("elapsed", time.Since(start)),
	)
	return analysis, nil
}

// ParseAnalysis decodes the model's JSON payload and applies defaults so that
// every field of the result is populated.
func ParseAnalysis(payload string) (*models.PaperAnalysis, error) {
	payload = stripCodeFence(payload)
	if payload == "" {
		return nil, ErrEmptyResponse
	}
	var raw rawAnalysis
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	return raw.toModel(), nil
}

func (r *rawAnalysis) toModel() *models.PaperAnalysis {
	authors := list(r.Authors)
	return &models.PaperAnalysis{
		Title:   or(r.Title, defaultTitle),
		Authors: authors,
		Citation: models.Citation{
			Title:               r.Title,
			Authors:             authors,
			PublicationDate:     or(r.CitationDate, notAvailable),
			JournalOrConference: or(r.CitationJournal, notAvailable),
			DOI:                 r.CitationDOI,
		},
		Objectives:     list(r.Objectives),
		ObjectivesEli5: or(r.ObjectivesEli5, defaultObjectivesEli5),
		Gaps: models.Gaps{
			Discovered: list(r.GapsDiscovered),
			Fulfilled:  list(r.GapsFulfilled),
		},
		Datasets: list(r.DatasetsUsed),
		Methodology: models.Methodology{
			ApproachName:        or(r.MethodologyApproachName, notAvailable),
			Description:         r.MethodologyDescription,
			KeyAlgorithms:       list(r.MethodologyAlgorithms),
			ArchitectureDetails: r.MethodologyArchitecture,
		},
		Evaluation: models.Evaluation{
			Metrics:        list(r.EvaluationMetrics),
			ResultsSummary: r.EvaluationResults,
		},
		Conclusion: models.Conclusion{
			Summary:     r.ConclusionSummary,
			SummaryEli5: or(r.ConclusionSummaryEli5, defaultConclusionEli5),
			Drawbacks:   list(r.ConclusionDrawbacks),
			FutureWork:  list(r.ConclusionFutureWork),
		},
		Implementation: models.Implementation{
			Models:      list(r.ImplementationModels),
			CodeSnippet: or(r.ImplementationCode, defaultCodeSnippet),
			Steps:       list(r.ImplementationSteps),
		},
		StudyGuide: models.StudyGuide{
			Equations: equations(r.StudyEquations),
			Quiz:      quiz(r.StudyQuiz),
		},
	}
}

func equations(raw []rawEquation) []models.EquationExplanation {
	out := make([]models.EquationExplanation, 0, len(raw))
	for _, eq := range raw {
		vars := make([]models.Variable, 0, len(eq.Variables))
		for _, v := range eq.Variables {
			vars = append(vars, models.Variable{Symbol: v.Symbol, Meaning: v.Meaning})
		}
		out = append(out, models.EquationExplanation{
			Name:        eq.Name,
			Equation:    eq.Equation,
			Description: eq.Description,
			Variables:   vars,
		})
	}
	return out
}

func quiz(raw []rawQuiz) []models.QuizQuestion {
	out := make([]models.QuizQuestion, 0, len(raw))
	for _, q := range raw {
		out = append(out, models.QuizQuestion{
			Question:           q.Question,
			Options:            list(q.Options),
			CorrectAnswerIndex: q.CorrectIndex,
			Explanation:        q.Explanation,
		})
	}
	return out
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[idx+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

func or(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func list(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
