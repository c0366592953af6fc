package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"insightsnap/internal/automl"
	"insightsnap/internal/chart"
	"insightsnap/internal/service/insight"
	"insightsnap/internal/service/modeling"
	"insightsnap/internal/service/recognition"
	"insightsnap/internal/table"
)

var (
	ErrNoTable       = errors.New("upload a table first")
	ErrFileRequired  = errors.New("file is required")
	ErrFileTooLarge  = errors.New("file too large")
	errInvalidUpload = errors.New("invalid multipart form")
)

// withTimeout bounds ctx by d; zero leaves it unbounded.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// readUpload returns the bytes and base name of the multipart "file" field.
func (h *Handler) readUpload(c *gin.Context) (string, []byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxUploadBytes+(1<<20))
	file, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return "", nil, ErrFileTooLarge
		case errors.Is(err, http.ErrMissingFile):
			return "", nil, ErrFileRequired
		default:
			return "", nil, fmt.Errorf("%w: %v", errInvalidUpload, err)
		}
	}
	if file.Size > h.opts.MaxUploadBytes {
		return "", nil, ErrFileTooLarge
	}
	data, err := readFileHeader(file)
	if err != nil {
		return "", nil, err
	}
	return filepath.Base(file.Filename), data, nil
}

func readFileHeader(file *multipart.FileHeader) ([]byte, error) {
	f, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

type recognizeResponse struct {
	Image    string `json:"image"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Text     string `json:"text"`
	Language string `json:"language"`
}

func (h *Handler) recognize(c *gin.Context) {
	token, ok := h.sessionToken(c)
	if !ok {
		return
	}
	name, data, err := h.readUpload(c)
	if err != nil {
		h.writeError(c, err)
		return
	}
	lang := c.PostForm("lang")
	if lang == "" {
		lang = h.opts.DefaultLanguage
	}

	ctx, cancel := withTimeout(c.Request.Context(), h.opts.RecognizeTimeout)
	defer cancel()
	var res *recognition.Result
	err = h.svc.Workers.Submit(ctx, token, "recognize", func(ctx context.Context) error {
		var err error
		res, err = h.svc.Recognition.Recognize(ctx, recognition.Upload{Name: name, Data: data}, lang)
		return err
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.svc.Workspace.SetText(c.Request.Context(), token, res.Text)
	c.JSON(http.StatusOK, recognizeResponse{
		Image:    res.Image,
		Width:    res.Width,
		Height:   res.Height,
		Text:     res.Text.Text,
		Language: res.Text.Language,
	})
}

func (h *Handler) uploadTable(c *gin.Context) {
	token, ok := h.sessionToken(c)
	if !ok {
		return
	}
	name, data, err := h.readUpload(c)
	if err != nil {
		h.writeError(c, err)
		return
	}
	tbl, err := table.Parse(name, bytes.NewReader(data))
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.svc.Workspace.SetTable(c.Request.Context(), token, name, tbl)
	h.logger.Info("table uploaded",
		zap.String("name", name),
		zap.Int("rows", tbl.NumRows()),
		zap.Int("columns", tbl.NumCols()),
	)
	c.JSON(http.StatusCreated, gin.H{
		"name":            name,
		"columns":         tbl.Columns,
		"rows":            tbl.NumRows(),
		"preview":         tbl.Head(h.opts.PreviewRows),
		"default_target":  tbl.DefaultTarget(),
		"numeric_columns": len(tbl.NumericColumns()),
	})
}

type modelRequest struct {
	Target string `json:"target"`
}

type modelResponse struct {
	Target          string        `json:"target"`
	Model           *automl.Model `json:"model"`
	Predictions     *table.Table  `json:"predictions"`
	PredictionRows  int           `json:"prediction_rows"`
	PredictionNames []string      `json:"prediction_columns"`
	Chart           *chart.Figure `json:"chart"`
}

func (h *Handler) runModel(c *gin.Context) {
	token, ok := h.sessionToken(c)
	if !ok {
		return
	}
	var req modelRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}
	tbl, _, ok := h.svc.Workspace.Table(c.Request.Context(), token)
	if !ok {
		h.writeError(c, ErrNoTable)
		return
	}

	ctx, cancel := withTimeout(c.Request.Context(), h.opts.ModelTimeout)
	defer cancel()
	var res *modeling.Result
	err := h.svc.Workers.Submit(ctx, token, "model", func(ctx context.Context) error {
		var err error
		res, err = h.svc.Modeling.Run(ctx, tbl, table.PolicyFor(req.Target))
		return err
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, modelResponse{
		Target:          res.Target,
		Model:           res.Model,
		Predictions:     res.Predictions.Head(h.opts.PreviewRows),
		PredictionRows:  res.Predictions.NumRows(),
		PredictionNames: res.Predictions.Names(),
		Chart:           res.Chart,
	})
}

func (h *Handler) generateInsight(c *gin.Context) {
	token, ok := h.sessionToken(c)
	if !ok {
		return
	}
	cred, err := h.svc.Credentials.Get(c.Request.Context(), token)
	if err != nil {
		h.writeError(c, err)
		return
	}
	text, _ := h.svc.Workspace.Text(c.Request.Context(), token)
	if !insight.Ready(text.Text, cred) {
		h.writeError(c, insight.ErrInsightUnavailable)
		return
	}

	ctx, cancel := withTimeout(c.Request.Context(), h.opts.InsightTimeout)
	defer cancel()
	var out string
	err = h.svc.Workers.Submit(ctx, token, "insight", func(ctx context.Context) error {
		var err error
		out, err = h.svc.Insight.Generate(ctx, text.Text, cred)
		return err
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"insight": out})
}
