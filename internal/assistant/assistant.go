// Package assistant proxies the site's chat widget to the OpenAI
// chat-completions API, prefixing every conversation with a fixed system
// preamble assembled from the site's YAML data files.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ismaelpamplona/isma.codes/internal/retry"
	"github.com/ismaelpamplona/isma.codes/internal/yamlutil"
)

// Sentinel errors for assistant operations.
var (
	ErrMissingAPIKey  = errors.New("assistant API key is not configured")
	ErrNoMessages     = errors.New("chat requires at least one message")
	ErrInvalidRole    = errors.New("message role must be user, system, or assistant")
	ErrEmptyContent   = errors.New("message content cannot be empty")
	ErrPreambleSource = errors.New("assistant data file unreadable")
	ErrCompletion     = errors.New("chat completion failed")
)

// defaultModel matches the model the site has always used.
const defaultModel = openai.GPT3Dot5Turbo

// Message is one chat turn as received from the frontend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Config holds assistant settings.
type Config struct {
	APIKey string
	// BaseURL overrides the API endpoint; tests point it at a fake server.
	BaseURL string
	// Model defaults to gpt-3.5-turbo when empty.
	Model string
	// Instructions, Personal and Links are paths to the YAML data files
	// folded into the system preamble.
	Instructions string
	Personal     string
	Links        string
}

// Assistant forwards validated conversations to the completion API.
type Assistant struct {
	client *openai.Client
	model  string
	base   []openai.ChatCompletionMessage
}

// New creates an Assistant, reading the preamble data files once.
func New(cfg Config) (*Assistant, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	preamble, err := buildPreamble(cfg.Instructions, cfg.Personal, cfg.Links)
	if err != nil {
		return nil, err
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	return &Assistant{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		base: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: preamble},
			{Role: openai.ChatMessageRoleUser, Content: "Hello!"},
		},
	}, nil
}

// Chat validates msgs, appends them to the fixed preamble, and returns the
// completion response verbatim.
func (a *Assistant) Chat(ctx context.Context, msgs []Message) (openai.ChatCompletionResponse, error) {
	if err := ValidateMessages(msgs); err != nil {
		return openai.ChatCompletionResponse{}, err
	}

	conversation := make([]openai.ChatCompletionMessage, 0, len(a.base)+len(msgs))
	conversation = append(conversation, a.base...)
	for _, m := range msgs {
		conversation = append(conversation, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	return a.complete(ctx, conversation)
}

// Greeting runs the fixed preamble alone, producing the assistant's
// opening message for a fresh session.
func (a *Assistant) Greeting(ctx context.Context) (openai.ChatCompletionResponse, error) {
	return a.complete(ctx, a.base)
}

func (a *Assistant) complete(ctx context.Context, msgs []openai.ChatCompletionMessage) (openai.ChatCompletionResponse, error) {
	var resp openai.ChatCompletionResponse
	cfg := retry.Config{MaxAttempts: 2, InitialDelay: retry.DefaultConfig().InitialDelay}
	err := retry.Do(ctx, cfg, func() error {
		var callErr error
		resp, callErr = a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    a.model,
			Messages: msgs,
		})
		return callErr
	})
	if err != nil {
		return openai.ChatCompletionResponse{}, fmt.Errorf("%w: %v", ErrCompletion, err)
	}
	return resp, nil
}

// ValidateMessages rejects a non-conforming message array before any
// upstream call is attempted.
func ValidateMessages(msgs []Message) error {
	if len(msgs) == 0 {
		return ErrNoMessages
	}
	for i, m := range msgs {
		switch m.Role {
		case openai.ChatMessageRoleUser, openai.ChatMessageRoleSystem, openai.ChatMessageRoleAssistant:
		default:
			return fmt.Errorf("%w: message %d has role %q", ErrInvalidRole, i, m.Role)
		}
		if m.Content == "" {
			return fmt.Errorf("%w: message %d", ErrEmptyContent, i)
		}
	}
	return nil
}

// buildPreamble folds the YAML data files into the system message, keeping
// the structure the site frontend has always produced: each file is parsed
// and re-serialized as JSON inside a labeled section.
func buildPreamble(instructionsPath, personalPath, linksPath string) (string, error) {
	instructions, err := yamlFileAsJSON(instructionsPath)
	if err != nil {
		return "", err
	}
	personal, err := yamlFileAsJSON(personalPath)
	if err != nil {
		return "", err
	}
	links, err := yamlFileAsJSON(linksPath)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(
		"# Instructions:\n%s\n# Ismael's personal data:\n%s\nThis webpage links:\n%s\n",
		instructions, personal, links,
	), nil
}

// yamlFileAsJSON reads a YAML file and re-encodes its content as JSON.
func yamlFileAsJSON(path string) (string, error) {
	var data any
	if err := yamlutil.DecodeFile(path, &data); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrPreambleSource, path, err)
	}
	out, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrPreambleSource, path, err)
	}
	return string(out), nil
}
