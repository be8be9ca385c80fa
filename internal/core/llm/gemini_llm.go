package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/markdave123-py/smartdoc/internal/core"
)

// GenerationConfig holds the sampling knobs shared by providers.
type GenerationConfig struct {
	Model           string
	Temperature     float32
	MaxOutputTokens int32
}

// GeminiLLM answers prompts with Google's Gemini models. Only the server's
// own key keeps a long-lived client; a key brought by a session gets a client
// for the duration of one call.
type GeminiLLM struct {
	cfg       GenerationConfig
	opts      []option.ClientOption
	sharedKey string

	mu     sync.Mutex
	shared *genai.Client
}

func NewGeminiLLM(cfg GenerationConfig, sharedKey string, opts ...option.ClientOption) *GeminiLLM {
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	return &GeminiLLM{cfg: cfg, opts: opts, sharedKey: sharedKey}
}

func (g *GeminiLLM) Name() string { return "gemini" }

func (g *GeminiLLM) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.shared == nil {
		return nil
	}
	err := g.shared.Close()
	g.shared = nil
	return err
}

func (g *GeminiLLM) Generate(ctx context.Context, apiKey, prompt string) (string, error) {
	if apiKey == "" {
		return "", fmt.Errorf("%w: no gemini api key", core.ErrAuth)
	}

	cl, release, err := g.client(ctx, apiKey)
	if err != nil {
		return "", fmt.Errorf("%w: gemini client: %w", core.ErrTransport, err)
	}
	defer release()

	m := cl.GenerativeModel(g.cfg.Model)
	if g.cfg.Temperature > 0 {
		m.SetTemperature(g.cfg.Temperature)
	}
	if g.cfg.MaxOutputTokens > 0 {
		m.SetMaxOutputTokens(g.cfg.MaxOutputTokens)
	}

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", g.classify(apiKey, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}

// client returns a client for apiKey and the func that gives it back.
func (g *GeminiLLM) client(ctx context.Context, apiKey string) (*genai.Client, func(), error) {
	opts := append([]option.ClientOption{option.WithAPIKey(apiKey)}, g.opts...)

	if apiKey != g.sharedKey {
		cl, err := genai.NewClient(ctx, opts...)
		if err != nil {
			return nil, nil, err
		}
		return cl, func() { _ = cl.Close() }, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.shared == nil {
		cl, err := genai.NewClient(ctx, opts...)
		if err != nil {
			return nil, nil, err
		}
		g.shared = cl
	}
	return g.shared, func() {}, nil
}

// cached reports how many clients outlive a call.
func (g *GeminiLLM) cached() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.shared == nil {
		return 0
	}
	return 1
}

// classify wraps err with its kind. A rejected server key drops its client.
func (g *GeminiLLM) classify(apiKey string, err error) error {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return fmt.Errorf("%w: gemini: %w", core.ErrRefused, err)
	}

	kind := kindOf(err)
	if kind == core.ErrAuth && apiKey == g.sharedKey {
		_ = g.Close()
	}
	return fmt.Errorf("%w: gemini: %w", kind, err)
}

var _ core.LLMProvider = (*GeminiLLM)(nil)
