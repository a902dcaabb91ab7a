package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"

	"github.com/yungbote/ncertlens-backend/internal/platform/ctxutil"
	"github.com/yungbote/ncertlens-backend/internal/platform/logger"
)

const maxErrorBodyBytes = 1024

// Point is a vector with a numeric id and an arbitrary payload.
type Point struct {
	ID      uint64
	Vector  []float32
	Payload map[string]any
}

type Match struct {
	ID      uint64
	Score   float64
	Payload map[string]any
}

type SearchOptions struct {
	Limit int
	// ScoreThreshold is sent as score_threshold when > 0.
	ScoreThreshold float64
	Filter         map[string]any
}

type CollectionInfo struct {
	Name         string `json:"name"`
	Status       string `json:"status"`
	PointsCount  int64  `json:"pointsCount"`
	VectorsCount int64  `json:"vectorsCount"`
	VectorSize   int    `json:"vectorSize"`
	Distance     string `json:"distance"`
}

// Client talks to the Qdrant REST API.
type Client struct {
	log     *logger.Logger
	cfg     Config
	baseURL string
	http    *http.Client
}

type qdrantEnvelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
	Time   float64         `json:"time"`
}

type qdrantSearchResultItem struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

type qdrantCollectionResult struct {
	Status        string `json:"status"`
	PointsCount   int64  `json:"points_count"`
	VectorsCount  int64  `json:"vectors_count"`
	IndexedVecCnt int64  `json:"indexed_vectors_count"`
	Config        struct {
		Params struct {
			Vectors struct {
				Size     int    `json:"size"`
				Distance string `json:"distance"`
			} `json:"vectors"`
		} `json:"params"`
	} `json:"config"`
}

// New builds a client without touching the network; call Ping or EnsureCollection to verify.
func New(log *logger.Logger, cfg Config) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	hc := &http.Client{Timeout: cfg.Timeout}
	return newClient(log, cfg, hc), nil
}

func newClient(log *logger.Logger, cfg Config, hc *http.Client) *Client {
	return &Client{
		log:     log.With("service", "QdrantClient"),
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http:    hc,
	}
}

func (c *Client) Config() Config { return c.cfg }

func (c *Client) VectorDim() int { return c.cfg.VectorDim }

func (c *Client) Ping(ctx context.Context) error {
	const op = "ping"
	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodGet, c.baseURL+"/readyz", nil)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build ready request failed", err)
	}
	c.authorize(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant ready check failed", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant ready check returned status=%d", resp.StatusCode),
		}
	}
	return nil
}

// EnsureCollection creates the collection with cosine distance when absent and
// fails if an existing collection has a different vector size.
func (c *Client) EnsureCollection(ctx context.Context, name string) error {
	const op = "ensure_collection"
	info, err := c.CollectionInfo(ctx, name)
	if err == nil {
		if info.VectorSize != 0 && info.VectorSize != c.cfg.VectorDim {
			return &OperationError{
				Code:      OperationErrorValidation,
				Operation: op,
				Message: fmt.Sprintf(
					"qdrant collection %q vector size mismatch: expected=%d actual=%d",
					name, c.cfg.VectorDim, info.VectorSize,
				),
			}
		}
		return nil
	}
	var typed *OperationError
	if !errors.As(err, &typed) || typed.StatusCode != http.StatusNotFound {
		return err
	}

	req := map[string]any{
		"vectors": map[string]any{
			"size":     c.cfg.VectorDim,
			"distance": "Cosine",
		},
	}
	if err := c.doJSON(ctx, op, http.MethodPut, collectionPath(name, ""), req, nil); err != nil {
		return err
	}
	c.log.Info("Qdrant collection created", "collection", name, "vector_dim", c.cfg.VectorDim)
	return nil
}

func (c *Client) CollectionInfo(ctx context.Context, name string) (CollectionInfo, error) {
	var res qdrantCollectionResult
	if err := c.doJSON(ctx, "collection_info", http.MethodGet, collectionPath(name, ""), nil, &res); err != nil {
		return CollectionInfo{}, err
	}
	return CollectionInfo{
		Name:         name,
		Status:       res.Status,
		PointsCount:  res.PointsCount,
		VectorsCount: res.VectorsCount,
		VectorSize:   res.Config.Params.Vectors.Size,
		Distance:     res.Config.Params.Vectors.Distance,
	}, nil
}

// Upsert overwrites points by id.
func (c *Client) Upsert(ctx context.Context, collection string, points []Point) error {
	const op = "upsert"
	if len(points) == 0 {
		return nil
	}
	body := make([]map[string]any, 0, len(points))
	for _, p := range points {
		if p.ID == 0 {
			return opErr(op, OperationErrorValidation, "point id is required", nil)
		}
		if len(p.Vector) == 0 {
			return opErr(op, OperationErrorValidation, fmt.Sprintf("point %d has empty vector", p.ID), nil)
		}
		if c.cfg.VectorDim > 0 && len(p.Vector) != c.cfg.VectorDim {
			return opErr(
				op,
				OperationErrorValidation,
				fmt.Sprintf("point %d dimension mismatch: expected=%d got=%d", p.ID, c.cfg.VectorDim, len(p.Vector)),
				nil,
			)
		}
		payload := p.Payload
		if payload == nil {
			payload = map[string]any{}
		}
		body = append(body, map[string]any{
			"id":      p.ID,
			"vector":  p.Vector,
			"payload": payload,
		})
	}
	return c.doJSON(ctx, op, http.MethodPut, collectionPath(collection, "/points?wait=true"), map[string]any{"points": body}, nil)
}

// Search returns matches ordered by descending score.
func (c *Client) Search(ctx context.Context, collection string, vector []float32, opts SearchOptions) ([]Match, error) {
	const op = "search"
	if len(vector) == 0 {
		return nil, opErr(op, OperationErrorValidation, "query vector required", nil)
	}
	if c.cfg.VectorDim > 0 && len(vector) != c.cfg.VectorDim {
		return nil, opErr(
			op,
			OperationErrorValidation,
			fmt.Sprintf("query vector dimension mismatch: expected=%d got=%d", c.cfg.VectorDim, len(vector)),
			nil,
		)
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
		"with_vector":  false,
	}
	if opts.ScoreThreshold > 0 {
		req["score_threshold"] = opts.ScoreThreshold
	}
	if len(opts.Filter) > 0 {
		f, err := translateFilter(opts.Filter)
		if err != nil {
			c.log.Warn("qdrant search filter rejected", "collection", collection, "error", err)
			return nil, err
		}
		if m := f.asMap(); m != nil {
			req["filter"] = m
		}
	}

	var raw []qdrantSearchResultItem
	if err := c.doJSON(ctx, op, http.MethodPost, collectionPath(collection, "/points/search"), req, &raw); err != nil {
		return nil, err
	}

	out := make([]Match, 0, len(raw))
	for _, item := range raw {
		id, ok := decodePointID(item.ID)
		if !ok {
			continue
		}
		out = append(out, Match{ID: id, Score: item.Score, Payload: item.Payload})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].ID < out[j].ID
		}
		return out[i].Score > out[j].Score
	})
	return out, nil
}

func (c *Client) Delete(ctx context.Context, collection string, ids []uint64) error {
	const op = "delete"
	seen := make(map[uint64]struct{}, len(ids))
	points := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		points = append(points, id)
	}
	if len(points) == 0 {
		return nil
	}
	return c.doJSON(ctx, op, http.MethodPost, collectionPath(collection, "/points/delete?wait=true"), map[string]any{"points": points}, nil)
}

func (c *Client) authorize(req *http.Request) {
	if c.cfg.APIKey != "" {
		req.Header.Set("api-key", c.cfg.APIKey)
	}
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode request failed", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), method, c.baseURL+path, body)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant request failed", err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 64*maxErrorBodyBytes))
	if readErr != nil {
		return opErr(op, OperationErrorDecodeFailed, "read response failed", readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		}
	}

	var envelope qdrantEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant envelope failed", err)
	}
	if statusErr := parseEnvelopeStatus(envelope.Status); statusErr != "" {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    statusErr,
		}
	}

	if out == nil || len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant result failed", err)
	}
	return nil
}

func classifyHTTPCallError(op, message string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	return opErr(op, OperationErrorTransportFailed, message, err)
}

func parseEnvelopeStatus(raw json.RawMessage) string {
	status := strings.TrimSpace(string(raw))
	if status == "" || status == "null" {
		return ""
	}

	var statusString string
	if err := json.Unmarshal(raw, &statusString); err == nil {
		if strings.EqualFold(statusString, "ok") {
			return ""
		}
		return fmt.Sprintf("qdrant status=%q", statusString)
	}

	var statusObject struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &statusObject); err == nil && strings.TrimSpace(statusObject.Error) != "" {
		return strings.TrimSpace(statusObject.Error)
	}
	return fmt.Sprintf("qdrant status=%s", status)
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}

func collectionPath(name, suffix string) string {
	return "/collections/" + name + suffix
}

func decodePointID(raw json.RawMessage) (uint64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var id uint64
	if err := json.Unmarshal(raw, &id); err != nil || id == 0 {
		return 0, false
	}
	return id, true
}
