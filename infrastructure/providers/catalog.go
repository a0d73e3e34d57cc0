package providers

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"trails/application/ports"
	pkgerrors "trails/pkg/errors"
)

// builtinModels is the default model catalog. A YAML catalog file extends or
// overrides it at startup.
var builtinModels = []ports.ModelInfo{
	// OpenAI
	{ID: "gpt-4o", Name: "GPT-4o", Provider: "openai", Vision: true},
	{ID: "gpt-4o-mini", Name: "GPT-4o Mini", Provider: "openai", Vision: true},

	// Anthropic
	{ID: "claude-3-5-sonnet-20241022", Name: "Claude 3.5 Sonnet", Provider: "anthropic", Vision: true},
	{ID: "claude-3-opus-20240229", Name: "Claude 3 Opus", Provider: "anthropic", Vision: true},

	// Google
	{ID: "gemini-2.0-flash", Name: "Gemini 2.0 Flash", Provider: "google", Vision: true},
	{ID: "gemini-1.5-pro", Name: "Gemini 1.5 Pro", Provider: "google", Vision: true},

	// Cerebras
	{ID: "llama-3.3-70b", Name: "Llama 3.3 70B (Cerebras)", Provider: "cerebras"},
	{ID: "llama-3.1-70b", Name: "Llama 3.1 70B (Cerebras)", Provider: "cerebras"},
	{ID: "llama-3.1-8b", Name: "Llama 3.1 8B (Cerebras)", Provider: "cerebras"},

	// Groq
	{ID: "llama-3.1-70b-versatile", Name: "Llama 3.1 70B", Provider: "groq"},
	{ID: "mixtral-8x7b-32768", Name: "Mixtral 8x7B", Provider: "groq"},

	// Mistral
	{ID: "mistral-large-latest", Name: "Mistral Large", Provider: "mistral"},
	{ID: "mistral-small-latest", Name: "Mistral Small", Provider: "mistral"},

	// Ollama, local defaults
	{ID: "llama3", Name: "Llama 3 (Local)", Provider: "ollama"},
	{ID: "mistral", Name: "Mistral (Local)", Provider: "ollama"},
	{ID: "phi3", Name: "Phi 3 (Local)", Provider: "ollama"},

	// OpenRouter
	{ID: "anthropic/claude-3-opus", Name: "Claude 3 Opus (OR)", Provider: "openrouter", Vision: true},
	{ID: "google/gemini-pro-1.5", Name: "Gemini 1.5 Pro (OR)", Provider: "openrouter", Vision: true},
}

// visionPrefixes cover model families whose members all accept images, so
// catalog additions in those families work without a vision flag.
var visionPrefixes = []string{"claude-3", "gemini-1.5", "gemini-2.0"}

// Catalog is the static model catalog with optional YAML overrides
type Catalog struct {
	models []ports.ModelInfo
	byID   map[string]ports.ModelInfo
}

type catalogFile struct {
	Models []ports.ModelInfo `yaml:"models"`
}

// NewCatalog builds the catalog. An empty path yields the builtin catalog;
// otherwise the YAML file's models are merged over it by id.
func NewCatalog(path string) (*Catalog, error) {
	models := make([]ports.ModelInfo, len(builtinModels))
	copy(models, builtinModels)

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "reading model catalog "+path)
		}
		var file catalogFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, pkgerrors.Wrap(err, "parsing model catalog "+path)
		}
		models = mergeModels(models, file.Models)
	}

	byID := make(map[string]ports.ModelInfo, len(models))
	for _, m := range models {
		byID[m.ID] = m
	}
	return &Catalog{models: models, byID: byID}, nil
}

func mergeModels(base, overrides []ports.ModelInfo) []ports.ModelInfo {
	index := make(map[string]int, len(base))
	for i, m := range base {
		index[m.ID] = i
	}
	for _, m := range overrides {
		if i, ok := index[m.ID]; ok {
			base[i] = m
			continue
		}
		index[m.ID] = len(base)
		base = append(base, m)
	}
	return base
}

// Models returns every known model
func (c *Catalog) Models() []ports.ModelInfo {
	out := make([]ports.ModelInfo, len(c.models))
	copy(out, c.models)
	return out
}

// Lookup resolves a model id
func (c *Catalog) Lookup(modelID string) (ports.ModelInfo, bool) {
	m, ok := c.byID[modelID]
	return m, ok
}

// SupportsVision reports whether the model accepts image input. Models the
// catalog does not flag fall back to family-prefix matching, with provider
// prefixes like "anthropic/" stripped first.
func (c *Catalog) SupportsVision(modelID string) bool {
	if m, ok := c.byID[modelID]; ok && m.Vision {
		return true
	}
	bare := modelID
	if i := strings.LastIndex(bare, "/"); i >= 0 {
		bare = bare[i+1:]
	}
	for _, prefix := range visionPrefixes {
		if strings.HasPrefix(bare, prefix) {
			return true
		}
	}
	return false
}
