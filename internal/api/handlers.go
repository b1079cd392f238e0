package api

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"paperlens/internal/auth"
	"paperlens/internal/metrics"
	"paperlens/internal/models"
	"paperlens/internal/render"
	"paperlens/internal/service/assistant"
	"paperlens/internal/upload"
	"paperlens/internal/workspace"
)

// maxRequestBytes caps request bodies. It sits above upload.MaxFileSize so
// oversized papers still reach the validator and get its message.
const maxRequestBytes = 64 << 20

// HealthCheck probes one backing dependency.
type HealthCheck func(ctx context.Context) error

// Handler wires HTTP routes to the assistant service.
type Handler struct {
	assistant *assistant.Service
	auth      *auth.Service
	templates *template.Template
	metrics   *metrics.Metrics
	logger    *zap.Logger
	checks    map[string]HealthCheck
}

// NewHandler constructs a Handler instance. metrics and logger may be nil.
func NewHandler(service *assistant.Service, authService *auth.Service, m *metrics.Metrics, logger *zap.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("assistant service is required")
	}
	if authService == nil {
		return nil, errors.New("auth service is required")
	}
	tmpl, err := render.New()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		assistant: service,
		auth:      authService,
		templates: tmpl,
		metrics:   m,
		logger:    logger,
		checks:    make(map[string]HealthCheck),
	}, nil
}

// AddHealthCheck registers a probe reported by /healthz.
func (h *Handler) AddHealthCheck(name string, check HealthCheck) {
	h.checks[name] = check
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.SetHTMLTemplate(h.templates)
	router.GET("/healthz", h.healthz)
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}

	app := router.Group("/")
	app.Use(limitBody(maxRequestBytes), h.auth.Middleware(), h.auth.CSRFMiddleware())
	app.GET("/", h.page)
	app.GET("/api/state", h.state)
	app.POST("/upload", h.uploadPaper)
	app.POST("/reset", h.reset)
	app.POST("/tab", h.selectTab)
	app.POST("/equations/:idx/zoom", h.toggleZoom)
	app.POST("/equations/:idx/variables/:var", h.toggleVariable)
	app.POST("/quiz/:idx", h.answerQuiz)
	app.GET("/related", h.related)
	app.POST("/audio/toggle", h.toggleAudio)
	app.POST("/audio/stopped", h.audioStopped)
	app.GET("/audio/:clip", h.audioClip)
	app.POST("/chat/open", h.openChat)
	app.POST("/chat/messages", h.sendMessage)
}

func (h *Handler) workspace(c *gin.Context) (*workspace.Workspace, bool) {
	id, ok := auth.WorkspaceIDFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "workspace cookie required"})
		return nil, false
	}
	ws := h.assistant.Workspace(id)
	ws.Touch(time.Now())
	return ws, true
}

func (h *Handler) page(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	c.Header("Cache-Control", "no-store")
	c.HTML(http.StatusOK, render.PageTemplate, render.NewPage(ws, auth.CSRFTokenFromContext(c)))
}

type stateResponse struct {
	workspace.Snapshot
	Tab       workspace.Tab         `json:"tab"`
	Chat      []models.ChatMessage  `json:"chat"`
	ChatState workspace.ChatState   `json:"chatState"`
	CanChat   bool                  `json:"canChat"`
	Audio     workspace.AudioState  `json:"audio"`
	Related   []models.RelatedPaper `json:"related,omitempty"`
}

func newStateResponse(ws *workspace.Workspace) stateResponse {
	related, _ := ws.Related()
	conv := ws.Chat()
	return stateResponse{
		Snapshot:  ws.Snapshot(),
		Tab:       ws.Widgets().Tab(),
		Chat:      conv.Messages(),
		ChatState: conv.State(),
		CanChat:   conv.CanSend(),
		Audio:     ws.Audio().State(),
		Related:   related,
	}
}

func (h *Handler) state(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, newStateResponse(ws))
}

func (h *Handler) uploadPaper(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	switch ws.Status() {
	case workspace.StatusIdle:
	case workspace.StatusAnalyzing:
		h.fail(c, workspace.ErrBusy)
		return
	default:
		h.fail(c, workspace.ErrNotIdle)
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.reject(c, ws, "size", upload.Validate(upload.PDFMimeType, tooLarge.Limit+1))
			return
		}
		h.reject(c, ws, "missing", upload.Validate("", 0))
		return
	}
	file, err := upload.Read(fh)
	if err != nil {
		var verr *upload.ValidationError
		if errors.As(err, &verr) {
			reason := "type"
			if fh.Size > upload.MaxFileSize {
				reason = "size"
			}
			h.reject(c, ws, reason, verr)
			return
		}
		h.logger.Warn("read upload failed", zap.String("workspace", ws.ID), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read the uploaded file"})
		return
	}
	if err := h.assistant.StartAnalysis(ws, file); err != nil {
		h.fail(c, err)
		return
	}
	h.logger.Info("paper accepted",
		zap.String("workspace", ws.ID),
		zap.String("file", file.Name),
		zap.Int64("size", file.Size))
	h.respond(c, http.StatusAccepted, ws)
}

func (h *Handler) reject(c *gin.Context, ws *workspace.Workspace, reason string, err error) {
	var verr *upload.ValidationError
	if !errors.As(err, &verr) {
		verr = &upload.ValidationError{Message: err.Error()}
	}
	ws.Reject(verr.UserMessage())
	h.metrics.Rejected(reason)
	if wantsJSON(c) {
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.UserMessage()})
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) reset(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	h.assistant.Reset(ws)
	h.respond(c, http.StatusOK, ws)
}

type tabRequest struct {
	Tab string `form:"tab" json:"tab"`
}

func (h *Handler) selectTab(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	var req tabRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	tab := workspace.ParseTab(req.Tab)
	ws.Widgets().SetTab(tab)
	// Entering the chat view opens the session. A failed open is kept in the
	// conversation state and shown on the page.
	if tab == workspace.TabChat && ws.Status() == workspace.StatusSuccess &&
		ws.Chat().State() == workspace.ChatUninitialized {
		_ = h.assistant.OpenChat(c.Request.Context(), ws)
	}
	if wantsJSON(c) {
		conv := ws.Chat()
		c.JSON(http.StatusOK, gin.H{"tab": tab, "chatState": conv.State(), "chat": conv.Messages()})
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) toggleZoom(c *gin.Context) {
	ws, analysis, ok := h.analyzed(c)
	if !ok {
		return
	}
	idx, ok := pathIndex(c, "idx", len(analysis.StudyGuide.Equations))
	if !ok {
		return
	}
	zoomed := ws.Widgets().ToggleZoom(idx)
	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"index": idx, "zoomed": zoomed})
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) toggleVariable(c *gin.Context) {
	ws, analysis, ok := h.analyzed(c)
	if !ok {
		return
	}
	equations := analysis.StudyGuide.Equations
	idx, ok := pathIndex(c, "idx", len(equations))
	if !ok {
		return
	}
	v, ok := pathIndex(c, "var", len(equations[idx].Variables))
	if !ok {
		return
	}
	active := ws.Widgets().ToggleVariable(idx, v)
	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"index": idx, "active": active})
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

type quizRequest struct {
	Option *int `form:"option" json:"option"`
}

func (h *Handler) answerQuiz(c *gin.Context) {
	ws, analysis, ok := h.analyzed(c)
	if !ok {
		return
	}
	quiz := analysis.StudyGuide.Quiz
	idx, ok := pathIndex(c, "idx", len(quiz))
	if !ok {
		return
	}
	var req quizRequest
	if err := c.ShouldBind(&req); err != nil || req.Option == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "option is required"})
		return
	}
	q := quiz[idx]
	if *req.Option < 0 || *req.Option >= len(q.Options) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "option out of range"})
		return
	}
	selected := ws.Widgets().SelectAnswer(idx, *req.Option)
	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{
			"index":       idx,
			"selected":    selected,
			"correct":     selected == q.CorrectAnswerIndex,
			"explanation": q.Explanation,
		})
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) related(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	papers, err := h.assistant.RelatedPapers(c.Request.Context(), ws)
	if err != nil {
		h.fail(c, err)
		return
	}
	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"papers": papers})
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) toggleAudio(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	st, err := h.assistant.ToggleAudio(c.Request.Context(), ws)
	if err != nil {
		h.fail(c, err)
		return
	}
	if wantsJSON(c) {
		c.JSON(http.StatusOK, st)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) audioStopped(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	st := h.assistant.AudioStopped(ws)
	if wantsJSON(c) {
		c.JSON(http.StatusOK, st)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) audioClip(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	clip, err := h.assistant.AudioClip(ws, c.Param("clip"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, clip.MIMEType, clip.Data)
}

func (h *Handler) healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	status := http.StatusOK
	deps := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			deps[name] = err.Error()
			continue
		}
		deps[name] = "ok"
	}
	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{"status": state, "dependencies": deps})
}

// analyzed resolves the workspace and its analysis, answering 409 when no
// paper has been analyzed yet.
func (h *Handler) analyzed(c *gin.Context) (*workspace.Workspace, *models.PaperAnalysis, bool) {
	ws, ok := h.workspace(c)
	if !ok {
		return nil, nil, false
	}
	_, analysis, _, err := ws.Paper()
	if err != nil {
		h.fail(c, err)
		return nil, nil, false
	}
	return ws, analysis, true
}

func (h *Handler) respond(c *gin.Context, status int, ws *workspace.Workspace) {
	if wantsJSON(c) {
		c.JSON(status, newStateResponse(ws))
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) fail(c *gin.Context, err error) {
	status, msg := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.Warn("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// userMessenger is implemented by errors that carry display text.
type userMessenger interface {
	UserMessage() string
}

func classify(err error) (int, string) {
	var um userMessenger
	switch {
	case errors.Is(err, workspace.ErrBusy), errors.Is(err, workspace.ErrNotIdle),
		errors.Is(err, workspace.ErrNoPaper), errors.Is(err, workspace.ErrChatBusy),
		errors.Is(err, workspace.ErrChatNotReady), errors.Is(err, workspace.ErrChatUnavailable),
		errors.Is(err, workspace.ErrAudioBusy):
		return http.StatusConflict, err.Error()
	case errors.Is(err, workspace.ErrEmptyMessage):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, workspace.ErrClipNotFound):
		return http.StatusNotFound, err.Error()
	case errors.As(err, &um):
		return http.StatusBadGateway, um.UserMessage()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func pathIndex(c *gin.Context, name string, n int) (int, bool) {
	idx, err := strconv.Atoi(c.Param(name))
	if err != nil || idx < 0 || idx >= n {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return idx, true
}

// wantsJSON reports whether the client prefers JSON over a page redirect.
func wantsJSON(c *gin.Context) bool {
	accept := c.GetHeader("Accept")
	return strings.Contains(accept, gin.MIMEJSON) || strings.Contains(accept, "text/event-stream")
}

// limitBody caps request bodies. A declared length over the cap is refused
// before the CSRF check reads the form, so the caller sees the size message.
func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > n {
			msg := upload.Validate(upload.PDFMimeType, c.Request.ContentLength).Error()
			if wantsJSON(c) {
				c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": msg})
				return
			}
			c.String(http.StatusRequestEntityTooLarge, msg)
			c.Abort()
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}
