// Package anthropic provides a task executor backed by the Anthropic
// Claude Messages API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hupe1980/swarmexec/core"
	"github.com/hupe1980/swarmexec/executor"
)

// Options configures the Anthropic executor (model id, temperature, max
// tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string

	// System is prepended as a system prompt when non-empty.
	System string
}

// Executor sends each task's rendered prompt through the Anthropic Messages
// API and returns the concatenated text blocks as the task output.
type Executor struct {
	client *anthropic.Client
	opts   Options
}

var _ core.Executor = (*Executor)(nil)

// NewExecutor creates a new Anthropic executor using the official client
func NewExecutor(optFns ...func(o *Options)) *Executor {
	opts := applyOptions(optFns)

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Executor{
		client: &client,
		opts:   opts,
	}
}

// NewExecutorFromClient creates a new Anthropic executor from an existing client
func NewExecutorFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Executor {
	return &Executor{
		client: client,
		opts:   applyOptions(optFns),
	}
}

func applyOptions(optFns []func(o *Options)) Options {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return opts
}

// Execute implements core.Executor.
func (x *Executor) Execute(ctx context.Context, task core.Task) (core.TaskResult, error) {
	params := anthropic.MessageNewParams{
		Model:       x.opts.Model,
		MaxTokens:   x.opts.MaxTokens,
		Temperature: anthropic.Float(x.opts.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(executor.RenderPrompt(task))),
		},
	}

	if x.opts.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: x.opts.System}}
	}

	resp, err := x.client.Messages.New(ctx, params)
	if err != nil {
		return core.TaskResult{}, fmt.Errorf("anthropic api error: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.AsText().Text)
		}
	}

	return core.TaskResult{
		TaskID: task.ID,
		Status: core.TaskStatusSuccess,
		Output: b.String(),
	}, nil
}
