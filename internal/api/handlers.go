package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"insightsnap/internal/auth"
	"insightsnap/internal/config"
	"insightsnap/internal/service/credential"
	"insightsnap/internal/service/insight"
	"insightsnap/internal/service/modeling"
	"insightsnap/internal/service/recognition"
	"insightsnap/internal/worker"
	"insightsnap/internal/workspace"
)

type WorkerManager interface {
	Submit(ctx context.Context, sessionID, kind string, fn worker.Task) error
	CancelSession(sessionID string)
	Stats() worker.Stats
}

// Services groups the collaborators a Handler routes to.
type Services struct {
	DB          *sql.DB
	Auth        *auth.Service
	Credentials *credential.Holder
	Workspace   *workspace.Registry
	Recognition *recognition.Adapter
	Modeling    *modeling.Adapter
	Insight     *insight.Service
	Workers     WorkerManager
}

// Options are the request-level limits taken from configuration.
type Options struct {
	DefaultLanguage  string
	MaxUploadBytes   int64
	PreviewRows      int
	RecognizeTimeout time.Duration
	ModelTimeout     time.Duration
	InsightTimeout   time.Duration
}

// OptionsFromConfig converts the configured seconds and sizes.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		DefaultLanguage:  cfg.OCR.DefaultLanguage,
		MaxUploadBytes:   cfg.BasicConfig.MaxUploadBytes,
		PreviewRows:      cfg.BasicConfig.PreviewRows,
		RecognizeTimeout: time.Duration(cfg.OCR.Timeout) * time.Second,
		ModelTimeout:     time.Duration(cfg.AutoML.Timeout) * time.Second,
		InsightTimeout:   time.Duration(cfg.Insight.Timeout) * time.Second,
	}
}

// Handler wires HTTP routes to the session-scoped services.
type Handler struct {
	svc    Services
	opts   Options
	logger *zap.Logger
}

// NewHandler constructs a Handler and registers the cleanup that runs when a session ends.
func NewHandler(svc Services, opts Options, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = "eng"
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 20 << 20
	}
	if opts.PreviewRows <= 0 {
		opts.PreviewRows = config.DefaultPreviewRows
	}
	h := &Handler{svc: svc, opts: opts, logger: logger}
	svc.Auth.OnEnd(h.endSession)
	svc.Auth.OnTouch(h.touchSession)
	return h
}

func (h *Handler) endSession(ctx context.Context, token string) {
	h.svc.Workers.CancelSession(token)
	h.svc.Workspace.Drop(ctx, token)
	if err := h.svc.Credentials.Clear(ctx, token); err != nil {
		h.logger.Warn("clear credential failed", zap.Error(err))
	}
}

// touchSession keeps redis-held session state alive as long as the session.
func (h *Handler) touchSession(ctx context.Context, token string) {
	h.svc.Workspace.Refresh(ctx, token)
	if err := h.svc.Credentials.Refresh(ctx, token); err != nil {
		h.logger.Warn("refresh credential failed", zap.Error(err))
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/", h.index)

	api := router.Group("/api")
	api.GET("/healthz", h.health)
	api.GET("/languages", h.languages)
	api.POST("/session", h.startSession)

	sessionRoutes := api.Group("")
	sessionRoutes.Use(h.svc.Auth.Middleware(), h.svc.Auth.CSRFMiddleware())
	sessionRoutes.DELETE("/session", h.endSessionHandler)
	sessionRoutes.GET("/session/state", h.sessionState)
	sessionRoutes.PUT("/credential", h.setCredential)
	sessionRoutes.GET("/credential", h.getCredential)
	sessionRoutes.POST("/recognize", h.recognize)
	sessionRoutes.POST("/table", h.uploadTable)
	sessionRoutes.POST("/model", h.runModel)
	sessionRoutes.POST("/insight", h.generateInsight)
}

func (h *Handler) sessionToken(c *gin.Context) (string, bool) {
	token, ok := auth.AuthTokenFromContext(c)
	if !ok || token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session required"})
		return "", false
	}
	return token, true
}

func (h *Handler) health(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok", "workers": h.svc.Workers.Stats()}
	if h.svc.DB != nil {
		if err := h.svc.DB.PingContext(c.Request.Context()); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["error"] = err.Error()
		}
	}
	c.JSON(status, body)
}

func (h *Handler) languages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"languages": recognition.Languages,
		"default":   h.opts.DefaultLanguage,
	})
}

func (h *Handler) startSession(c *gin.Context) {
	se, err := h.svc.Auth.IssueSession(c.Request.Context())
	if err != nil {
		h.logger.Error("issue session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue session failed"})
		return
	}
	h.svc.Auth.SetCookies(c, se)
	c.JSON(http.StatusCreated, gin.H{
		"session_token": se.Token,
		"csrf_token":    h.svc.Auth.NewCSRFToken(se.Token),
		"expires_at":    se.ExpiresAt,
	})
}

func (h *Handler) endSessionHandler(c *gin.Context) {
	token, ok := h.sessionToken(c)
	if !ok {
		return
	}
	if err := h.svc.Auth.RevokeToken(c.Request.Context(), token); err != nil {
		h.writeError(c, err)
		return
	}
	h.svc.Auth.ClearCookies(c)
	c.Status(http.StatusNoContent)
}

func (h *Handler) sessionState(c *gin.Context) {
	token, ok := h.sessionToken(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	cred, err := h.svc.Credentials.Get(ctx, token)
	if err != nil {
		h.writeError(c, err)
		return
	}
	text, hasText := h.svc.Workspace.Text(ctx, token)
	tbl, name, hasTable := h.svc.Workspace.Table(ctx, token)

	body := gin.H{
		"credential_present": cred.Present,
		"text_ready":         hasText && text.Text != "",
		"insight_ready":      hasText && insight.Ready(text.Text, cred),
		"table_ready":        hasTable,
	}
	if se, ok := auth.SessionFromContext(c); ok {
		body["expires_at"] = se.ExpiresAt
	}
	if hasTable {
		body["table"] = gin.H{
			"name":           name,
			"rows":           tbl.NumRows(),
			"columns":        tbl.Columns,
			"default_target": tbl.DefaultTarget(),
		}
	}
	c.JSON(http.StatusOK, body)
}

type credentialRequest struct {
	Secret string `json:"secret"`
}

func (h *Handler) setCredential(c *gin.Context) {
	token, ok := h.sessionToken(c)
	if !ok {
		return
	}
	var req credentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	stored, err := h.svc.Credentials.Set(c.Request.Context(), token, req.Secret)
	if err != nil {
		h.writeError(c, err)
		return
	}
	cred, err := h.svc.Credentials.Get(c.Request.Context(), token)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stored": stored, "present": cred.Present})
}

func (h *Handler) getCredential(c *gin.Context) {
	token, ok := h.sessionToken(c)
	if !ok {
		return
	}
	cred, err := h.svc.Credentials.Get(c.Request.Context(), token)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"present": cred.Present})
}
