package ai

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"paperlens/internal/models"
)

const (
	maxRelatedPapers = 6
	unknownTitle     = "Unknown Title"
	missingURI       = "#"
)

// RelatedFinder looks up related work through search grounding.
type RelatedFinder struct {
	gen    Generator
	model  string
	logger *zap.Logger
}

func NewRelatedFinder(gen Generator, model string, logger *zap.Logger) *RelatedFinder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RelatedFinder{gen: gen, model: model, logger: logger}
}

// RelatedQuery builds the search instruction from the paper title and its
// first two objectives.
func RelatedQuery(title string, objectives []string) string {
	if len(objectives) > 2 {
		objectives = objectives[:2]
	}
	return fmt.Sprintf(`Find 5 recent research papers related to: "%s". Key objectives involved: %s.`, title, strings.Join(objectives, ", "))
}

// Find never fails: errors are logged and yield an empty list.
func (f *RelatedFinder) Find(ctx context.Context, title string, objectives []string) []models.RelatedPaper {
	papers, err := f.Search(ctx, title, objectives)
	if err != nil {
		f.logger.Warn("related paper search failed", zap.String("title", title), zap.Error(err))
		return []models.RelatedPaper{}
	}
	return papers
}

// Search runs the grounded query and returns at most six papers, unique by URL.
func (f *RelatedFinder) Search(ctx context.Context, title string, objectives []string) ([]models.RelatedPaper, error) {
	cfg := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	}
	contents := []*genai.Content{genai.NewContentFromText(RelatedQuery(title, objectives), genai.RoleUser)}
	res, err := f.gen.GenerateContent(ctx, f.model, contents, cfg)
	if err != nil {
		return nil, &SearchError{Err: err}
	}
	return collectRelated(res), nil
}

func collectRelated(res *genai.GenerateContentResponse) []models.RelatedPaper {
	papers := []models.RelatedPaper{}
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0] == nil {
		return papers
	}
	meta := res.Candidates[0].GroundingMetadata
	if meta == nil {
		return papers
	}
	seen := make(map[string]struct{}, len(meta.GroundingChunks))
	for _, chunk := range meta.GroundingChunks {
		if chunk == nil || chunk.Web == nil {
			continue
		}
		uri := or(chunk.Web.URI, missingURI)
		if _, ok := seen[uri]; ok {
			continue
		}
		seen[uri] = struct{}{}
		papers = append(papers, models.RelatedPaper{
			Title:  or(chunk.Web.Title, unknownTitle),
			URI:    uri,
			Source: sourceLabel(uri),
		})
		if len(papers) == maxRelatedPapers {
			break
		}
	}
	return papers
}

// sourceLabel is the host of uri without a leading "www.".
func sourceLabel(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
