package automl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"insightsnap/internal/table"
)

const clientEngine = "remote"

// Client calls an external AutoML service over HTTP.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient builds a client for the service at endpoint. A nil httpClient uses
// http.DefaultClient; timeouts come from the caller's context.
func NewClient(endpoint string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

type tablePayload struct {
	Columns []table.Column `json:"columns"`
	Rows    [][]any        `json:"rows"`
}

func newTablePayload(t *table.Table) tablePayload {
	rows := make([][]any, t.NumRows())
	for i := range rows {
		row := make([]any, t.NumCols())
		for j := range row {
			row[j] = t.Value(i, j)
		}
		rows[i] = row
	}
	return tablePayload{Columns: t.Columns, Rows: rows}
}

type fitRequest struct {
	tablePayload
	Target    string `json:"target"`
	SessionID int64  `json:"session_id"`
}

type fitResponse struct {
	ModelID     string `json:"model_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type predictRequest struct {
	tablePayload
	ModelID string `json:"model_id"`
}

type predictResponse struct {
	Label []any `json:"label"`
}

// Fit submits the table and target to the service and returns the selected model.
func (c *Client) Fit(ctx context.Context, req FitRequest) (*Model, error) {
	if err := validateFit(req); err != nil {
		return nil, err
	}
	body := fitRequest{
		tablePayload: newTablePayload(req.Table),
		Target:       req.Table.Columns[req.Target].Name,
		SessionID:    req.Seed,
	}
	var resp fitResponse
	if err := c.post(ctx, "fit", "/v1/fit", body, &resp); err != nil {
		return nil, err
	}
	if resp.ModelID == "" {
		return nil, &EngineError{Op: "fit", StatusCode: http.StatusOK, Message: "response has no model_id"}
	}
	c.logger.Debug("automl model selected", zap.String("model_id", resp.ModelID), zap.String("name", resp.Name))
	return &Model{ID: resp.ModelID, Name: resp.Name, Description: resp.Description, engine: clientEngine}, nil
}

// Predict applies a model from Fit to t and returns t with PredictionColumn appended.
func (c *Client) Predict(ctx context.Context, m *Model, t *table.Table) (*table.Table, error) {
	if m == nil || m.engine != clientEngine {
		return nil, errors.New("model was not produced by this engine")
	}
	var resp predictResponse
	if err := c.post(ctx, "predict", "/v1/predict", predictRequest{tablePayload: newTablePayload(t), ModelID: m.ID}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Label) != t.NumRows() {
		return nil, fmt.Errorf("%w: %d labels for %d rows", ErrBadPredictions, len(resp.Label), t.NumRows())
	}
	labels := make([]string, len(resp.Label))
	for i, v := range resp.Label {
		switch val := v.(type) {
		case nil:
		case json.Number:
			labels[i] = val.String()
		case string:
			labels[i] = val
		default:
			labels[i] = fmt.Sprint(val)
		}
	}
	return t.WithColumn(PredictionColumn, labels)
}

func (c *Client) post(ctx context.Context, op, path string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("automl %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &EngineError{Op: op, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}
