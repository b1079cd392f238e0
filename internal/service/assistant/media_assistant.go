package assistant

import (
	"context"

	"go.uber.org/zap"

	"paperlens/internal/models"
	"paperlens/internal/service/ai"
	"paperlens/internal/workspace"
)

// RelatedPapers returns papers related to the analysis of ws. The search runs
// once per analysis; failures yield an empty list.
func (s *Service) RelatedPapers(ctx context.Context, ws *workspace.Workspace) ([]models.RelatedPaper, error) {
	if papers, ok := ws.Related(); ok {
		return papers, nil
	}
	_, analysis, gen, err := ws.Paper()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.chatTimeout)
	defer cancel()
	papers := s.related.Find(ctx, analysis.Title, analysis.Objectives)
	if papers == nil {
		papers = []models.RelatedPaper{}
	}
	s.metrics.Related(len(papers))
	if ctx.Err() == nil {
		ws.SetRelated(gen, papers)
	}
	return papers, nil
}

// ToggleAudio pauses or resumes the loaded overview, generating it first when
// nothing is loaded. A synthesis failure leaves playback unchanged.
func (s *Service) ToggleAudio(ctx context.Context, ws *workspace.Workspace) (workspace.AudioState, error) {
	player := ws.Audio()
	if st, ok := player.Toggle(); ok {
		return st, nil
	}
	_, analysis, _, err := ws.Paper()
	if err != nil {
		return player.State(), err
	}
	if err := player.BeginGenerate(); err != nil {
		return player.State(), err
	}

	ctx, cancel := context.WithTimeout(ctx, s.chatTimeout)
	defer cancel()
	audio, err := s.narrator.Narrate(ctx, analysis.AudioSummary())
	if err != nil {
		s.logger.Warn("audio overview failed", zap.String("workspace", ws.ID), zap.Error(err))
		s.metrics.Audio("error")
		return player.EndGenerate(nil), err
	}
	clip, err := workspace.DecodeClip(audio.Data, audio.MIMEType)
	if err != nil {
		s.logger.Warn("audio overview undecodable", zap.String("workspace", ws.ID), zap.Error(err))
		s.metrics.Audio("error")
		return player.EndGenerate(nil), &ai.AudioError{Err: err}
	}
	s.metrics.Audio("success")
	return player.EndGenerate(clip), nil
}

// AudioClip returns the loaded clip of ws when id matches it.
func (s *Service) AudioClip(ws *workspace.Workspace, id string) (*workspace.AudioClip, error) {
	return ws.Audio().Clip(id)
}

// AudioStopped records that playback reached the end.
func (s *Service) AudioStopped(ws *workspace.Workspace) workspace.AudioState {
	return ws.Audio().Stopped()
}
