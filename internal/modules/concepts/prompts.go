package concepts

import (
	"bytes"
	"strings"
	"text/template"
)

const systemPrompt = "You map educational video content onto the NCERT school curriculum (classes 1-12). Answer with the requested format only."

var conceptsTmpl = template.Must(template.New("concepts").Parse(`
Analyze the following video transcript and identify relevant NCERT textbook concepts.
For each concept identified, provide:
1. The concept name
2. Subject area
3. Suggested class level (1-12)
4. Chapter/section reference
5. Confidence score (0-1)
6. Brief explanation of relevance
{{if .Subject}}
Focus on {{.Subject}} concepts.{{end}}{{if .Class}}
Prioritize class {{.Class}} level concepts.{{end}}

Transcript:
{{.Transcript}}

Please format your response as a JSON array with the following structure:
[
  {
    "concept": "concept name",
    "subject": "subject name",
    "class": number,
    "chapter": "chapter reference",
    "section": "section reference",
    "confidence": 0.85,
    "explanation": "why this concept is relevant",
    "keywords": ["key", "words", "from", "transcript"]
  }
]

Only include concepts with confidence >= {{.Threshold}}.
`))

var timestampsTmpl = template.Must(template.New("timestamps").Parse(`
Given the NCERT concept "{{.Concept}}" and the following video transcript chunks with timestamps,
identify which time segments are most relevant to this concept.

Concept: {{.Concept}}

Transcript chunks:
{{.Chunks}}

Please provide a JSON array of relevant timestamp ranges in seconds with confidence scores:
[
  {
    "startTime": 120.5,
    "endTime": 180.2,
    "confidence": 0.85,
    "relevantText": "specific text that relates to the concept",
    "explanation": "why this segment is relevant"
  }
]

Only include segments with confidence >= {{.Threshold}}.
`))

var summaryTmpl = template.Must(template.New("summary").Parse(`
Provide a concise summary of the following video transcript in approximately {{.MaxWords}} words.
{{if .FocusArea}}Focus particularly on {{.FocusArea}} aspects.{{end}}

Transcript:
{{.Transcript}}

Summary:
`))

var keywordsTmpl = template.Must(template.New("keywords").Parse(`
Extract the most important keywords and phrases from the following text.
Return exactly {{.Max}} keywords as a JSON array of strings.

Text:
{{.Text}}

Keywords (JSON array):
`))

func render(t *template.Template, data any) string {
	var b bytes.Buffer
	_ = t.Execute(&b, data)
	return strings.TrimSpace(b.String())
}
