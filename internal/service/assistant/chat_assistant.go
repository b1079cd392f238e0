package assistant

import (
	"context"

	"go.uber.org/zap"

	"paperlens/internal/models"
	"paperlens/internal/workspace"
)

// OpenChat opens the paper conversation of ws once. Later calls are no-ops.
func (s *Service) OpenChat(ctx context.Context, ws *workspace.Workspace) error {
	file, _, _, err := ws.Paper()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.chatTimeout)
	defer cancel()
	err = ws.Chat().EnsureSession(ctx, func(ctx context.Context) (workspace.Streamer, error) {
		session, err := s.chat.Open(ctx, file)
		if err != nil {
			return nil, err
		}
		return session, nil
	})
	if err != nil {
		s.logger.Warn("chat open failed", zap.String("workspace", ws.ID), zap.Error(err))
	}
	return err
}

// SendChat sends text to the paper conversation, opening it when needed.
// The reply keeps streaming into the transcript even if the caller goes
// away; onFragment only observes it.
func (s *Service) SendChat(ctx context.Context, ws *workspace.Workspace, text string, onFragment workspace.FragmentFunc) error {
	conv := ws.Chat()
	if conv.State() == workspace.ChatUninitialized {
		if err := s.OpenChat(ctx, ws); err != nil {
			return err
		}
	}

	turnCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.chatTimeout)
	defer cancel()
	err := conv.Send(turnCtx, text, func(fragment string, reply models.ChatMessage) error {
		s.metrics.ChatFragment()
		if onFragment == nil {
			return nil
		}
		return onFragment(fragment, reply)
	})
	if err != nil {
		s.logger.Warn("chat turn failed", zap.String("workspace", ws.ID), zap.Error(err))
		s.metrics.ChatTurn("error")
		return err
	}
	s.metrics.ChatTurn("success")
	return nil
}
