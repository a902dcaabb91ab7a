// Package curriculum loads the NCERT concept catalog and keeps it embedded in the similarity index.
package curriculum

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"

	types "github.com/yungbote/ncertlens-backend/internal/domain"
)

const catalogPathEnv = "CURRICULUM_CATALOG_YAML"

//go:embed catalog.yaml
var catalogFS embed.FS

var difficulties = map[string]bool{"Basic": true, "Intermediate": true, "Advanced": true}

type catalogFile struct {
	Version  int            `yaml:"version"`
	Concepts []catalogEntry `yaml:"concepts"`
}

type catalogRef struct {
	Number string `yaml:"number"`
	Title  string `yaml:"title"`
}

type catalogEntry struct {
	ID                 string     `yaml:"id"`
	Title              string     `yaml:"title"`
	Description        string     `yaml:"description"`
	Subject            string     `yaml:"subject"`
	Class              int        `yaml:"class"`
	Chapter            catalogRef `yaml:"chapter"`
	Section            catalogRef `yaml:"section"`
	Content            string     `yaml:"content"`
	Keywords           []string   `yaml:"keywords"`
	LearningObjectives []string   `yaml:"learning_objectives"`
	Difficulty         string     `yaml:"difficulty"`
	Prerequisites      []string   `yaml:"prerequisites"`
}

// LoadCatalog reads the file named by CURRICULUM_CATALOG_YAML, or the embedded catalog.
func LoadCatalog() ([]*types.Concept, error) {
	var raw []byte
	var err error
	if path := strings.TrimSpace(os.Getenv(catalogPathEnv)); path != "" {
		raw, err = os.ReadFile(path)
	} else {
		raw, err = catalogFS.ReadFile("catalog.yaml")
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(raw)
}

// ParseCatalog decodes and validates a catalog document.
func ParseCatalog(raw []byte) ([]*types.Concept, error) {
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	seen := make(map[string]bool, len(f.Concepts))
	for i, e := range f.Concepts {
		if err := e.validate(); err != nil {
			return nil, fmt.Errorf("catalog entry %d: %w", i, err)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("catalog entry %d: duplicate id %q", i, e.ID)
		}
		seen[e.ID] = true
	}

	out := make([]*types.Concept, 0, len(f.Concepts))
	for _, e := range f.Concepts {
		for _, p := range e.Prerequisites {
			if !seen[p] {
				return nil, fmt.Errorf("concept %q: unknown prerequisite %q", e.ID, p)
			}
		}
		c, err := e.toConcept()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (e catalogEntry) validate() error {
	switch {
	case strings.TrimSpace(e.ID) == "":
		return fmt.Errorf("id required")
	case strings.TrimSpace(e.Title) == "":
		return fmt.Errorf("%s: title required", e.ID)
	case strings.TrimSpace(e.Content) == "":
		return fmt.Errorf("%s: content required", e.ID)
	case !types.IsSubject(e.Subject):
		return fmt.Errorf("%s: unknown subject %q", e.ID, e.Subject)
	case e.Class < 1 || e.Class > 12:
		return fmt.Errorf("%s: class must be 1-12, got %d", e.ID, e.Class)
	case e.Difficulty != "" && !difficulties[e.Difficulty]:
		return fmt.Errorf("%s: unknown difficulty %q", e.ID, e.Difficulty)
	}
	return nil
}

func (e catalogEntry) toConcept() (*types.Concept, error) {
	keywords, err := jsonList(e.Keywords)
	if err != nil {
		return nil, err
	}
	objectives, err := jsonList(e.LearningObjectives)
	if err != nil {
		return nil, err
	}
	prereqs, err := jsonList(e.Prerequisites)
	if err != nil {
		return nil, err
	}
	chapter, _ := strconv.Atoi(strings.TrimSpace(e.Chapter.Number))
	difficulty := e.Difficulty
	if difficulty == "" {
		difficulty = "Basic"
	}
	return &types.Concept{
		ConceptID:          e.ID,
		Title:              strings.TrimSpace(e.Title),
		Description:        strings.TrimSpace(e.Description),
		Subject:            e.Subject,
		Class:              e.Class,
		ChapterNumber:      chapter,
		ChapterTitle:       e.Chapter.Title,
		SectionNumber:      e.Section.Number,
		SectionTitle:       e.Section.Title,
		Content:            strings.TrimSpace(e.Content),
		Keywords:           keywords,
		LearningObjectives: objectives,
		Difficulty:         difficulty,
		Prerequisites:      prereqs,
	}, nil
}

func jsonList(v []string) (datatypes.JSON, error) {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// EmbeddingText is what gets embedded for a concept.
func EmbeddingText(c *types.Concept) string {
	var kws []string
	_ = json.Unmarshal(c.Keywords, &kws)
	parts := []string{c.Title, c.Description, c.Content}
	if len(kws) > 0 {
		parts = append(parts, "Keywords: "+strings.Join(kws, ", "))
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// PrerequisiteIDs decodes the prerequisite list of a concept.
func PrerequisiteIDs(c *types.Concept) []string {
	var out []string
	if len(c.Prerequisites) == 0 {
		return out
	}
	_ = json.Unmarshal(c.Prerequisites, &out)
	return out
}
