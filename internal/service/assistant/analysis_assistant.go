package assistant

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"paperlens/internal/models"
	"paperlens/internal/service/ai"
	"paperlens/internal/worker"
	"paperlens/internal/workspace"
)

// StartAnalysis moves ws to analyzing and queues the analysis. It only fails
// when ws is not idle; a refused job is recorded as an analysis error.
func (s *Service) StartAnalysis(ws *workspace.Workspace, file *models.PaperFile) error {
	ctx, gen, err := ws.Begin(context.Background(), file)
	if err != nil {
		return err
	}
	s.logger.Info("analysis queued",
		zap.String("workspace", ws.ID),
		zap.String("file", file.Name),
		zap.Int64("size", file.Size),
		zap.Int("pages", file.PageCount))

	err = s.dispatcher.Submit(worker.Job{
		WorkspaceID: ws.ID,
		Name:        "analyze",
		Run:         func() { s.runAnalysis(ctx, ws, gen, file) },
	})
	if err != nil {
		s.logger.Warn("analysis rejected", zap.String("workspace", ws.ID), zap.Error(err))
		ws.Fail(gen, ai.NewAnalysisError(err))
		s.metrics.ObserveAnalysis("rejected", 0)
	}
	s.metrics.SetQueueDepth(s.dispatcher.Pending())
	return nil
}

func (s *Service) runAnalysis(ctx context.Context, ws *workspace.Workspace, gen uint64, file *models.PaperFile) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.analysisTimeout)
	defer cancel()
	log := s.logger.With(zap.String("workspace", ws.ID), zap.String("hash", file.Hash))

	if analysis, tier, ok := s.cache.Load(ctx, file.Hash); ok {
		s.metrics.CacheHit(string(tier))
		if ws.Complete(gen, analysis) {
			log.Info("analysis served from cache", zap.String("tier", string(tier)))
			s.metrics.ObserveAnalysis("cached", time.Since(start))
		}
		return
	}
	if s.cache.Enabled() {
		s.metrics.CacheMiss()
	}

	analysis, err := s.analyzer.Analyze(ctx, file)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			log.Info("analysis cancelled")
			s.metrics.ObserveAnalysis("cancelled", time.Since(start))
			return
		}
		log.Error("analysis failed", zap.Error(err))
		if ws.Fail(gen, err) {
			s.metrics.ObserveAnalysis("error", time.Since(start))
		}
		return
	}

	s.cache.Store(context.WithoutCancel(ctx), file, analysis)
	if !ws.Complete(gen, analysis) {
		log.Info("analysis discarded for superseded paper")
		s.metrics.ObserveAnalysis("discarded", time.Since(start))
		return
	}
	log.Info("analysis complete",
		zap.String("title", analysis.Title),
		zap.Duration("elapsed", time.Since(start)))
	s.metrics.ObserveAnalysis("success", time.Since(start))
}
