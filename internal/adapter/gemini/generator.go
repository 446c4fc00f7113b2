package gemini

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"gurukul/internal/settings"
)

// Generator produces completions for agent turns, resolving the model
// name and API key from the settings store per call.
type Generator struct {
	settingsSvc *settings.Service
	client      *genai.Client
	currentKey  string
	mu          sync.Mutex
	clientOpts  []option.ClientOption
}

func NewGenerator(svc *settings.Service, opts ...option.ClientOption) *Generator {
	return &Generator{settingsSvc: svc, clientOpts: opts}
}

func (g *Generator) Generate(ctx context.Context, system, prompt string) (string, error) {
	s, err := g.settingsSvc.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get settings: %w", err)
	}
	if s.GeminiAPIKey == "" {
		return "", fmt.Errorf("gemini api key not configured")
	}

	client, err := g.getClient(ctx, s.GeminiAPIKey)
	if err != nil {
		return "", err
	}

	model := client.GenerativeModel(s.ModelName)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	res, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	if len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty completion received")
	}

	var out strings.Builder
	for _, part := range res.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			out.WriteString(string(txt))
		}
	}
	return out.String(), nil
}

func (g *Generator) getClient(ctx context.Context, key string) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil && g.currentKey == key {
		return g.client, nil
	}

	if g.client != nil {
		_ = g.client.Close()
	}

	opts := append(g.clientOpts, option.WithAPIKey(key))
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}

	g.client = client
	g.currentKey = key
	return client, nil
}
