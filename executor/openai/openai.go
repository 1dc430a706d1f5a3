// Package openai provides a task executor backed by the OpenAI Chat
// Completions API. It renders each task into a single user message and maps
// the first choice back into the task output.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/hupe1980/swarmexec/core"
	"github.com/hupe1980/swarmexec/executor"
)

// Options configure the OpenAI executor.
// Fields mirror a subset of Chat Completion parameters intentionally kept
// minimal; extend via functional options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64

	// System is prepended as a system message when non-empty.
	System string
}

// Executor wraps the OpenAI Chat Completions API behind core.Executor.
type Executor struct {
	client *openai.Client
	opts   Options
}

var _ core.Executor = (*Executor)(nil)

// NewExecutor creates a new OpenAI executor using the official client
func NewExecutor(optFns ...func(o *Options)) *Executor {
	client := openai.NewClient()
	return NewExecutorFromClient(&client, optFns...)
}

// NewExecutorFromClient creates a new OpenAI executor from an existing client
func NewExecutorFromClient(client *openai.Client, optFns ...func(o *Options)) *Executor {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Executor{client: client, opts: opts}
}

// Execute implements core.Executor.
func (x *Executor) Execute(ctx context.Context, task core.Task) (core.TaskResult, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if x.opts.System != "" {
		messages = append(messages, openai.SystemMessage(x.opts.System))
	}
	messages = append(messages, openai.UserMessage(executor.RenderPrompt(task)))

	resp, err := x.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               x.opts.Model,
		Messages:            messages,
		Temperature:         openai.Float(x.opts.Temperature),
		MaxCompletionTokens: openai.Int(x.opts.MaxCompletionTokens),
	})
	if err != nil {
		return core.TaskResult{}, fmt.Errorf("openai api error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return core.TaskResult{}, fmt.Errorf("openai: empty response for task %s", task.ID)
	}

	return core.TaskResult{
		TaskID: task.ID,
		Status: core.TaskStatusSuccess,
		Output: resp.Choices[0].Message.Content,
	}, nil
}
