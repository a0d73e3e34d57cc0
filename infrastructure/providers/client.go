package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"trails/application/ports"
	pkgerrors "trails/pkg/errors"
)

// Provider base URLs. Cerebras, Groq, OpenRouter, and Ollama all speak the
// OpenAI chat-completions dialect; only Anthropic and Google need their own
// wire formats.
const (
	openAIBaseURL     = "https://api.openai.com/v1"
	mistralBaseURL    = "https://api.mistral.ai/v1"
	cerebrasBaseURL   = "https://api.cerebras.ai/v1"
	groqBaseURL       = "https://api.groq.com/openai/v1"
	openRouterBaseURL = "https://openrouter.ai/api/v1"

	anthropicBaseURL  = "https://api.anthropic.com"
	anthropicVersion  = "2023-06-01"
	anthropicMaxToken = 4096

	googleBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	maxResponseSize = 10 * 1024 * 1024
)

// Client executes completions against the provider behind each model id.
// One instance serves every provider; routing happens per request.
type Client struct {
	catalog       ports.ModelCatalog
	http          *http.Client
	fallbackKeys  map[string]string
	ollamaBaseURL string
	logger        *zap.Logger
}

// NewClient creates the completion client. fallbackKeys supplies credentials
// from the environment for providers the workspace has no stored key for.
func NewClient(catalog ports.ModelCatalog, timeout time.Duration, fallbackKeys map[string]string, ollamaBaseURL string, logger *zap.Logger) *Client {
	return &Client{
		catalog: catalog,
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
			Timeout: timeout,
		},
		fallbackKeys:  fallbackKeys,
		ollamaBaseURL: ollamaBaseURL,
		logger:        logger,
	}
}

// Complete runs one completion call, routing on the model's provider.
// Models missing from the catalog route by id prefix so conversations made
// against an older catalog still resubmit.
func (c *Client) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	provider := ""
	if info, ok := c.catalog.Lookup(req.ModelID); ok {
		provider = info.Provider
	} else {
		switch {
		case strings.HasPrefix(req.ModelID, "gpt"):
			provider = "openai"
		case strings.HasPrefix(req.ModelID, "claude"):
			provider = "anthropic"
		case strings.HasPrefix(req.ModelID, "gemini"):
			provider = "google"
		default:
			return "", pkgerrors.NewUnknownModelError(req.ModelID)
		}
	}

	// Image parts only reach models that accept them.
	messages := req.Messages
	if !c.catalog.SupportsVision(req.ModelID) {
		messages = stripImages(messages)
	}

	switch provider {
	case "openai":
		return c.completeOpenAI(ctx, openAIBaseURL, c.credential(req, "openai"), req.ModelID, messages, "openai")
	case "mistral":
		return c.completeOpenAI(ctx, mistralBaseURL, c.credential(req, "mistral"), req.ModelID, messages, "mistral")
	case "cerebras":
		return c.completeOpenAI(ctx, cerebrasBaseURL, c.credential(req, "cerebras"), req.ModelID, messages, "cerebras")
	case "groq":
		return c.completeOpenAI(ctx, groqBaseURL, c.credential(req, "groq"), req.ModelID, messages, "groq")
	case "openrouter":
		return c.completeOpenAI(ctx, openRouterBaseURL, c.credential(req, "openrouter"), req.ModelID, messages, "openrouter")
	case "ollama":
		// Ollama's OpenAI-compatible endpoint takes any key.
		baseURL := c.ollamaBaseURL
		if override := req.Credentials["ollama"]; override != "" {
			baseURL = override
		}
		return c.completeOpenAI(ctx, strings.TrimSuffix(baseURL, "/")+"/v1", "ollama", req.ModelID, messages, "")
	case "anthropic":
		return c.completeAnthropic(ctx, c.credential(req, "anthropic"), req.ModelID, messages)
	case "google":
		return c.completeGoogle(ctx, c.credential(req, "google"), req.ModelID, messages)
	default:
		return "", pkgerrors.NewUnknownProviderError(req.ModelID)
	}
}

// credential resolves a provider key: workspace-stored first, environment
// fallback second.
func (c *Client) credential(req ports.CompletionRequest, provider string) string {
	if key := req.Credentials[provider]; key != "" {
		return key
	}
	return c.fallbackKeys[provider]
}

func stripImages(messages []ports.Message) []ports.Message {
	out := make([]ports.Message, 0, len(messages))
	for _, m := range messages {
		if !m.HasImages() {
			out = append(out, m)
			continue
		}
		texts := make([]string, 0, len(m.Parts))
		for _, p := range m.Parts {
			if p.Kind == ports.PartText {
				texts = append(texts, p.Text)
			}
		}
		out = append(out, ports.Message{
			Role:  m.Role,
			Parts: []ports.ContentPart{ports.TextPart(strings.Join(texts, "\n"))},
		})
	}
	return out
}

func (c *Client) post(ctx context.Context, url string, headers map[string]string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "marshaling completion request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "building completion request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.NewTransportFailureError(0, err.Error())
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, pkgerrors.NewTransportFailureError(resp.StatusCode, err.Error())
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("provider call failed",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode))
		return nil, pkgerrors.NewTransportFailureError(resp.StatusCode, string(data))
	}
	return data, nil
}

// OpenAI chat-completions dialect

type openAIMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type openAIContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) completeOpenAI(ctx context.Context, baseURL, apiKey, modelID string, messages []ports.Message, providerName string) (string, error) {
	if apiKey == "" && providerName != "" {
		return "", pkgerrors.NewMissingCredentialError(providerName)
	}

	converted := make([]openAIMessage, 0, len(messages))
	for _, m := range messages {
		if !m.HasImages() {
			converted = append(converted, openAIMessage{Role: string(m.Role), Content: m.Text()})
			continue
		}
		parts := make([]openAIContentPart, 0, len(m.Parts))
		for _, p := range m.Parts {
			switch p.Kind {
			case ports.PartText:
				parts = append(parts, openAIContentPart{Type: "text", Text: p.Text})
			case ports.PartImage:
				parts = append(parts, openAIContentPart{Type: "image_url", ImageURL: &openAIImageURL{URL: p.Data}})
			}
		}
		converted = append(converted, openAIMessage{Role: string(m.Role), Content: parts})
	}

	payload := map[string]interface{}{
		"model":    modelID,
		"messages": converted,
	}
	headers := map[string]string{"Authorization": "Bearer " + apiKey}

	data, err := c.post(ctx, baseURL+"/chat/completions", headers, payload)
	if err != nil {
		return "", err
	}

	var parsed openAIResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", pkgerrors.Wrap(err, "decoding completion response")
	}
	if len(parsed.Choices) == 0 {
		return "", pkgerrors.NewTransportFailureError(0, "response contained no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// Anthropic messages dialect

type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicContentBlock struct {
	Type   string               `json:"type"`
	Text   string               `json:"text,omitempty"`
	Source *anthropicImageBlock `json:"source,omitempty"`
}

type anthropicImageBlock struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (c *Client) completeAnthropic(ctx context.Context, apiKey, modelID string, messages []ports.Message) (string, error) {
	if apiKey == "" {
		return "", pkgerrors.NewMissingCredentialError("anthropic")
	}

	var system string
	converted := make([]anthropicMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == ports.RoleSystem {
			system = m.Text()
			continue
		}
		blocks := make([]anthropicContentBlock, 0, len(m.Parts))
		for _, p := range m.Parts {
			switch p.Kind {
			case ports.PartText:
				blocks = append(blocks, anthropicContentBlock{Type: "text", Text: p.Text})
			case ports.PartImage:
				mediaType, data := splitDataURL(p.Data, p.MimeType)
				blocks = append(blocks, anthropicContentBlock{
					Type:   "image",
					Source: &anthropicImageBlock{Type: "base64", MediaType: mediaType, Data: data},
				})
			}
		}
		converted = append(converted, anthropicMessage{Role: string(m.Role), Content: blocks})
	}

	payload := map[string]interface{}{
		"model":      modelID,
		"max_tokens": anthropicMaxToken,
		"messages":   converted,
	}
	if system != "" {
		payload["system"] = system
	}
	headers := map[string]string{
		"x-api-key":         apiKey,
		"anthropic-version": anthropicVersion,
	}

	data, err := c.post(ctx, anthropicBaseURL+"/v1/messages", headers, payload)
	if err != nil {
		return "", err
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", pkgerrors.Wrap(err, "decoding completion response")
	}
	var texts []string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			texts = append(texts, block.Text)
		}
	}
	if len(texts) == 0 {
		return "", pkgerrors.NewTransportFailureError(0, "response contained no text blocks")
	}
	return strings.Join(texts, ""), nil
}

// Google generateContent dialect

type googleContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []googlePart `json:"parts"`
}

type googlePart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *googleInlineData `json:"inline_data,omitempty"`
}

type googleInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type googleResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (c *Client) completeGoogle(ctx context.Context, apiKey, modelID string, messages []ports.Message) (string, error) {
	if apiKey == "" {
		return "", pkgerrors.NewMissingCredentialError("google")
	}

	payload := map[string]interface{}{}
	var contents []googleContent
	for _, m := range messages {
		if m.Role == ports.RoleSystem {
			payload["systemInstruction"] = googleContent{
				Parts: []googlePart{{Text: m.Text()}},
			}
			continue
		}
		role := "user"
		if m.Role == ports.RoleAssistant {
			role = "model"
		}
		parts := make([]googlePart, 0, len(m.Parts))
		for _, p := range m.Parts {
			switch p.Kind {
			case ports.PartText:
				parts = append(parts, googlePart{Text: p.Text})
			case ports.PartImage:
				mimeType, data := splitDataURL(p.Data, p.MimeType)
				parts = append(parts, googlePart{InlineData: &googleInlineData{MimeType: mimeType, Data: data}})
			}
		}
		contents = append(contents, googleContent{Role: role, Parts: parts})
	}
	payload["contents"] = contents

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", googleBaseURL, modelID, apiKey)
	data, err := c.post(ctx, url, nil, payload)
	if err != nil {
		return "", err
	}

	var parsed googleResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", pkgerrors.Wrap(err, "decoding completion response")
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", pkgerrors.NewTransportFailureError(0, "response contained no candidates")
	}
	var texts []string
	for _, part := range parsed.Candidates[0].Content.Parts {
		texts = append(texts, part.Text)
	}
	return strings.Join(texts, ""), nil
}

// splitDataURL splits a base64 data URL into mime type and payload. Bare
// base64 input passes through with the supplied mime type.
func splitDataURL(dataURL, fallbackMime string) (string, string) {
	if !strings.HasPrefix(dataURL, "data:") {
		return fallbackMime, dataURL
	}
	rest := strings.TrimPrefix(dataURL, "data:")
	semi := strings.Index(rest, ";base64,")
	if semi < 0 {
		return fallbackMime, dataURL
	}
	return rest[:semi], rest[semi+len(";base64,"):]
}
