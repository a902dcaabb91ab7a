// Package llm defines the generative model capability shared by the AI providers.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyResponse marks a call that succeeded but produced no usable text
// (empty output, a refusal or a safety block).
var ErrEmptyResponse = errors.New("model returned an empty response")

// Client is a text generation and embedding provider.
type Client interface {
	GenerateText(ctx context.Context, system string, user string) (string, error)
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
	Provider() string
}

// EmbedOne embeds a single text and checks the result is non-empty.
func EmbedOne(ctx context.Context, c Client, text string) ([]float32, error) {
	if c == nil {
		return nil, fmt.Errorf("llm client unavailable")
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("embedding text cannot be empty")
	}
	vecs, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("%s returned no embedding", c.Provider())
	}
	return vecs[0], nil
}

// Truncate caps s at max runes, cutting at the last space when one is close.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	cut := string(r[:max])
	if i := strings.LastIndexByte(cut, ' '); i > max/2 {
		cut = cut[:i]
	}
	return cut
}
