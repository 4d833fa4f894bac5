// Package cortex is the body's link to a language model. The model is a
// peripheral organ: the chemistry tunes its sampling parameters, and its
// token distribution is echoed back into the substrate as a stimulus.
package cortex

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"somata/internal/config"
)

// Mode distinguishes a reaction to something just perceived from a
// spontaneous thought surfacing on its own.
type Mode string

const (
	ModeListen Mode = "listen"
	ModeThink  Mode = "think"
)

// Request is one thought to articulate.
type Request struct {
	Mode        Mode
	Prompt      string
	Context     []string
	Temperature float32
	TopP        float32
	MaxTokens   int
}

// Response carries the text plus the echo vector distilled from the
// model's token logprobs.
type Response struct {
	Text string
	Echo []float32
	Err  error
}

// Client abstracts the language model so the daemon can run against a
// stub.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Tune derives sampling parameters from the body's state. Reward loosens
// the sampling, fatigue tightens it and shrinks the token budget,
// cognitive impairment shrinks the budget further, and an active trauma
// response caps the temperature outright.
func Tune(cfg config.Cortex, fatigue, reward, impairment, tempCeiling float32) (temp, topP float32, maxTokens int) {
	temp = clampf(cfg.Temperature+reward*0.5-fatigue*0.5, 0.1, 1.5)
	if tempCeiling > 0 && temp > tempCeiling {
		temp = tempCeiling
	}
	topP = clampf(0.95-fatigue*0.6, 0.2, 0.95)

	switch {
	case fatigue > 0.7:
		maxTokens = 15
	case fatigue > 0.4:
		maxTokens = 40
	default:
		maxTokens = cfg.MaxTokens
	}
	if impairment > 0 {
		maxTokens = int(float32(maxTokens) * (1 - clampf(impairment, 0, 1)*0.5))
		if maxTokens < 8 {
			maxTokens = 8
		}
	}
	return temp, topP, maxTokens
}

// OpenAIClient speaks to any OpenAI-compatible endpoint, typically a
// local llama server.
type OpenAIClient struct {
	cfg    config.Cortex
	client *openai.Client
}

func NewOpenAIClient(cfg config.Cortex) *OpenAIClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIClient{cfg: cfg, client: openai.NewClientWithConfig(clientCfg)}
}

const systemPrompt = "You are the inner voice of a small synthetic organism. " +
	"Speak in short, first-person fragments about what you perceive and feel. " +
	"Never explain yourself, never address anyone."

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (Response, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
	}
	for _, line := range req.Context {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleAssistant,
			Content: line,
		})
	}
	prompt := req.Prompt
	if req.Mode == ModeThink {
		prompt += " Nothing demands a reply; let a thought surface on its own."
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
		LogProbs:    true,
		TopLogProbs: 1,
	})
	if err != nil {
		return Response{}, fmt.Errorf("cortex completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, fmt.Errorf("cortex returned no choices")
	}

	choice := resp.Choices[0]
	text := strings.TrimSpace(choice.Message.Content)
	return Response{Text: text, Echo: c.echo(choice, text)}, nil
}

// echo folds the per-token probabilities into a fixed-length vector. When
// the endpoint does not return logprobs, the tokens of the text itself are
// hashed instead so the substrate always hears something.
func (c *OpenAIClient) echo(choice openai.ChatCompletionChoice, text string) []float32 {
	vec := make([]float32, c.cfg.EchoSize)
	if choice.LogProbs != nil && len(choice.LogProbs.Content) > 0 {
		for i, token := range choice.LogProbs.Content {
			vec[i%c.cfg.EchoSize] += float32(math.Exp(token.LogProb))
		}
		return vec
	}
	for _, word := range strings.Fields(text) {
		hasher := fnv.New32a()
		_, _ = hasher.Write([]byte(word))
		vec[int(hasher.Sum32()%uint32(c.cfg.EchoSize))] += 0.5
	}
	return vec
}

func clampf(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
