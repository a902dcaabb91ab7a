// Package concepts asks the language model which NCERT concepts a transcript covers
// and where in the video each concept is discussed.
package concepts

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/yungbote/ncertlens-backend/internal/platform/llm"
	"github.com/yungbote/ncertlens-backend/internal/platform/logger"
)

const (
	DefaultMaxConcepts        = 5
	DefaultConceptThreshold   = 0.7
	DefaultTimestampThreshold = 0.6
	fallbackConfidence        = 0.5
	defaultSummaryWords       = 200
	defaultKeywordCount       = 10
)

// Candidate is one concept proposed by the model.
type Candidate struct {
	Concept     string   `json:"concept"`
	Subject     string   `json:"subject,omitempty"`
	Class       int      `json:"class,omitempty"`
	Chapter     string   `json:"chapter,omitempty"`
	Section     string   `json:"section,omitempty"`
	Confidence  float64  `json:"confidence"`
	Explanation string   `json:"explanation,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
}

type ExtractionKind string

const (
	// Parsed means the model returned a well-formed JSON array.
	Parsed ExtractionKind = "parsed"
	// Fallback means the concepts were salvaged from free-form text.
	Fallback ExtractionKind = "fallback"
	Empty    ExtractionKind = "empty"
)

type Extraction struct {
	Kind     ExtractionKind `json:"kind"`
	Concepts []Candidate    `json:"concepts"`
}

type ExtractOptions struct {
	// MaxConcepts <= 0 means DefaultMaxConcepts.
	MaxConcepts int
	// ConfidenceThreshold <= 0 means DefaultConceptThreshold.
	ConfidenceThreshold float64
	Subject             string
	Class               int
}

func (o ExtractOptions) withDefaults() ExtractOptions {
	if o.MaxConcepts <= 0 {
		o.MaxConcepts = DefaultMaxConcepts
	}
	if o.ConfidenceThreshold <= 0 {
		o.ConfidenceThreshold = DefaultConceptThreshold
	}
	return o
}

type Extractor struct {
	log *logger.Logger
	llm llm.Client
}

func NewExtractor(log *logger.Logger, client llm.Client) *Extractor {
	if log == nil {
		log = logger.Nop()
	}
	return &Extractor{log: log.With("component", "ConceptExtractor"), llm: client}
}

// Extract runs one model call. Model errors are returned unchanged and never retried;
// unparseable or empty output degrades to Fallback or Empty.
func (e *Extractor) Extract(ctx context.Context, text string, opts ExtractOptions) (Extraction, error) {
	opts = opts.withDefaults()
	if strings.TrimSpace(text) == "" {
		return Extraction{Kind: Empty, Concepts: []Candidate{}}, nil
	}
	prompt := render(conceptsTmpl, map[string]any{
		"Transcript": text,
		"Subject":    opts.Subject,
		"Class":      opts.Class,
		"Threshold":  strconv.FormatFloat(opts.ConfidenceThreshold, 'f', -1, 64),
	})
	raw, err := e.llm.GenerateText(ctx, systemPrompt, prompt)
	if errors.Is(err, llm.ErrEmptyResponse) {
		e.log.Warn("Concept response was empty", "error", err)
		return Extraction{Kind: Empty, Concepts: []Candidate{}}, nil
	}
	if err != nil {
		return Extraction{}, fmt.Errorf("find ncert concepts: %w", err)
	}

	res := ParseConcepts(raw, opts)
	if res.Kind != Parsed {
		e.log.Warn("Concept response was not a JSON array", "kind", string(res.Kind), "concepts", len(res.Concepts))
	}
	return res, nil
}

type rawCandidate struct {
	Concept     string      `json:"concept"`
	Name        string      `json:"name"`
	Subject     string      `json:"subject"`
	Class       flexNumber  `json:"class"`
	Chapter     flexString  `json:"chapter"`
	Section     flexString  `json:"section"`
	Confidence  flexNumber  `json:"confidence"`
	Explanation string      `json:"explanation"`
	Keywords    flexStrings `json:"keywords"`
}

// ParseConcepts interprets a model answer. Candidates below the threshold are dropped,
// model order is kept, and the result is capped at MaxConcepts.
func ParseConcepts(raw string, opts ExtractOptions) Extraction {
	opts = opts.withDefaults()

	var items []rawCandidate
	if decodeArray(raw, &items) {
		out := make([]Candidate, 0, len(items))
		for _, it := range items {
			name := strings.TrimSpace(it.Concept)
			if name == "" {
				name = strings.TrimSpace(it.Name)
			}
			if name == "" || !it.Confidence.Valid {
				continue
			}
			conf, ok := unitConfidence(it.Confidence.Value)
			if !ok {
				continue
			}
			out = append(out, Candidate{
				Concept:     name,
				Subject:     strings.TrimSpace(it.Subject),
				Class:       clampClass(it.Class),
				Chapter:     strings.TrimSpace(string(it.Chapter)),
				Section:     strings.TrimSpace(string(it.Section)),
				Confidence:  conf,
				Explanation: strings.TrimSpace(it.Explanation),
				Keywords:    []string(it.Keywords),
			})
		}
		return finalize(Parsed, out, opts)
	}

	return finalize(Fallback, parseConceptLines(raw), opts)
}

func finalize(kind ExtractionKind, in []Candidate, opts ExtractOptions) Extraction {
	out := make([]Candidate, 0, len(in))
	for _, c := range in {
		if c.Confidence < opts.ConfidenceThreshold {
			continue
		}
		out = append(out, c)
		if len(out) == opts.MaxConcepts {
			break
		}
	}
	if len(out) == 0 {
		return Extraction{Kind: Empty, Concepts: out}
	}
	return Extraction{Kind: kind, Concepts: out}
}

// parseConceptLines salvages "Concept: ...", "Subject: ...", "Confidence: ..." lines.
func parseConceptLines(raw string) []Candidate {
	var out []Candidate
	var cur *Candidate
	flush := func() {
		if cur != nil && cur.Concept != "" {
			out = append(out, *cur)
		}
		cur = nil
	}

	for _, line := range strings.Split(raw, "\n") {
		line = trimBullet(line)
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.Trim(key, " *_`\""))
		val = strings.Trim(val, " *_`\",")
		switch key {
		case "concept", "concept name":
			flush()
			cur = &Candidate{Concept: val, Confidence: fallbackConfidence}
		case "subject":
			if cur != nil {
				cur.Subject = val
			}
		case "confidence", "confidence score":
			if cur != nil {
				v, ok := parseLooseNumber(val)
				if ok {
					v, ok = unitConfidence(v)
				}
				if ok {
					cur.Confidence = v
				} else {
					cur.Confidence = fallbackConfidence
				}
			}
		}
	}
	flush()
	return out
}

func clampClass(n flexNumber) int {
	if !n.Valid {
		return 0
	}
	c := int(n.Value)
	if c < 1 || c > 12 {
		return 0
	}
	return c
}

// Summarize asks for a prose summary of roughly maxWords words.
func (e *Extractor) Summarize(ctx context.Context, text string, maxWords int, focusArea string) (string, error) {
	if maxWords <= 0 {
		maxWords = defaultSummaryWords
	}
	prompt := render(summaryTmpl, map[string]any{
		"Transcript": text,
		"MaxWords":   maxWords,
		"FocusArea":  strings.TrimSpace(focusArea),
	})
	out, err := e.llm.GenerateText(ctx, "", prompt)
	if err != nil {
		return "", fmt.Errorf("summarize video content: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// Keywords asks for a JSON array of keywords and falls back to splitting on commas and newlines.
func (e *Extractor) Keywords(ctx context.Context, text string, max int) ([]string, error) {
	if max <= 0 {
		max = defaultKeywordCount
	}
	out, err := e.llm.GenerateText(ctx, "", render(keywordsTmpl, map[string]any{"Text": text, "Max": max}))
	if err != nil {
		return nil, fmt.Errorf("extract keywords: %w", err)
	}
	return ParseKeywords(out, max), nil
}

func ParseKeywords(raw string, max int) []string {
	var arr []string
	var kws []string
	if decodeArray(raw, &arr) {
		for _, k := range arr {
			if k = strings.TrimSpace(k); k != "" {
				kws = append(kws, k)
			}
		}
	} else {
		kws = splitList(stripFences(raw))
	}
	if kws == nil {
		kws = []string{}
	}
	if max > 0 && len(kws) > max {
		kws = kws[:max]
	}
	return kws
}
