package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/yungbote/ncertlens-backend/internal/platform/envutil"
	"github.com/yungbote/ncertlens-backend/internal/platform/httpx"
	"github.com/yungbote/ncertlens-backend/internal/platform/llm"
	"github.com/yungbote/ncertlens-backend/internal/platform/logger"
)

const (
	defaultModel      = "gemini-1.5-flash"
	defaultEmbedModel = "embedding-001"
)

// Client generates text and embeddings through the Gemini API.
type Client struct {
	log        *logger.Logger
	gc         *genai.Client
	model      string
	embedModel string
}

// NewFromEnv returns nil, nil when GEMINI_API_KEY is unset.
func NewFromEnv(ctx context.Context, log *logger.Logger) (*Client, error) {
	apiKey := envutil.String("GEMINI_API_KEY", "")
	if apiKey == "" {
		return nil, nil
	}
	model := envutil.String("GEMINI_MODEL", defaultModel)
	embed := envutil.String("GEMINI_EMBED_MODEL", defaultEmbedModel)

	gc, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		log:        log.With("service", "GeminiClient"),
		gc:         gc,
		model:      model,
		embedModel: embed,
	}, nil
}

func (c *Client) Provider() string { return "gemini" }

func (c *Client) Close() error {
	if c == nil || c.gc == nil {
		return nil
	}
	return c.gc.Close()
}

func (c *Client) GenerateText(ctx context.Context, system string, user string) (string, error) {
	m := c.gc.GenerativeModel(c.model)
	if strings.TrimSpace(system) != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	resp, err := m.GenerateContent(ctx, genai.Text(user))
	if err != nil {
		return "", classify(err)
	}
	text := extractText(resp)
	if strings.TrimSpace(text) == "" {
		for _, cand := range resp.Candidates {
			if cand.FinishReason != genai.FinishReasonStop {
				c.log.Warn("Gemini stopped early", "finish_reason", cand.FinishReason.String())
			}
		}
		return "", fmt.Errorf("gemini: %w", llm.ErrEmptyResponse)
	}
	return text, nil
}

func (c *Client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}
	em := c.gc.EmbeddingModel(c.embedModel)
	batch := em.NewBatch()
	for _, s := range inputs {
		if strings.TrimSpace(s) == "" {
			s = " "
		}
		batch.AddContent(genai.Text(s))
	}
	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Embeddings) != len(inputs) {
		return nil, fmt.Errorf("gemini embeddings: requested=%d returned=%d", len(inputs), len(resp.Embeddings))
	}
	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, fmt.Errorf("gemini embeddings missing index %d", i)
		}
		out[i] = e.Values
	}
	return out, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				text.WriteString(string(t))
			}
		}
	}
	return text.String()
}

// classify maps gRPC and REST errors onto httpx.StatusError so callers can treat every provider alike.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return fmt.Errorf("gemini %v: %w", blocked, llm.ErrEmptyResponse)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &httpx.StatusError{Service: "gemini", StatusCode: gerr.Code, Body: gerr.Message}
	}
	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		return &httpx.StatusError{Service: "gemini", StatusCode: httpStatusFromCode(st.Code()), Body: st.Message()}
	}
	return err
}

func httpStatusFromCode(c codes.Code) int {
	switch c {
	case codes.OK:
		return http.StatusOK
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.NotFound:
		return http.StatusNotFound
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.Unimplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
