//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

package node

import (
	"context"
	"errors"
	"fmt"
	"os"

	openai "github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"trpc.group/trpc-go/trpc-flow-go/log"
)

const (
	// MockResponsePrefix marks the substituted response when the external
	// chat-completion service is unavailable.
	MockResponsePrefix = "[MOCK LLM RESPONSE]"

	openaiAPIKeyName  = "OPENAI_API_KEY"
	openaiBaseURLName = "OPENAI_BASE_URL"

	defaultModel       = "gpt-4o"
	defaultTemperature = 0.7
	defaultMaxTokens   = 1000
)

// llmNode calls an OpenAI-compatible chat-completion endpoint. Any transport
// or protocol failure is substituted with a clearly-marked mock response and
// zero usage; an llm node never fails the workflow.
type llmNode struct {
	id string
}

func (n *llmNode) ID() string { return n.id }

func (n *llmNode) Run(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	model := asString(inputs["model"], defaultModel)
	prompt := asString(inputs["prompt"], "")
	temperature := asFloat(inputs["temperature"], defaultTemperature)
	maxTokens := asInt(inputs["max_tokens"], defaultMaxTokens)

	text, usage, err := n.complete(ctx, model, prompt, temperature, maxTokens)
	if err != nil {
		log.Warnf("[%s] chat completion failed, falling back to mock response: %v", n.id, err)
		text = fmt.Sprintf("%s Based on the search results, here is the solution for your %q query.\n\n"+
			"(Real API call failed, this is a simulation.)", MockResponsePrefix, model)
		usage = map[string]any{
			"prompt_tokens":     0,
			"completion_tokens": 0,
			"total_tokens":      0,
		}
	}

	log.Debugf("[%s] response: %.100s", n.id, text)
	return map[string]any{
		"text":  text,
		"usage": usage,
		"model": model,
	}, nil
}

func (n *llmNode) complete(ctx context.Context, model, prompt string,
	temperature float64, maxTokens int) (string, map[string]any, error) {
	apiKey := os.Getenv(openaiAPIKeyName)
	if apiKey == "" {
		return "", nil, fmt.Errorf("%s environment variable not set", openaiAPIKeyName)
	}

	clientOpts := []openaiopt.RequestOption{openaiopt.WithAPIKey(apiKey)}
	if baseURL := os.Getenv(openaiBaseURLName); baseURL != "" {
		clientOpts = append(clientOpts, openaiopt.WithBaseURL(baseURL))
		log.Debugf("[%s] using custom base_url: %s", n.id, baseURL)
	}
	client := openai.NewClient(clientOpts...)

	log.Infof("[%s] calling %s, prompt: %.100s", n.id, model, prompt)
	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature:         openai.Float(temperature),
		MaxCompletionTokens: openai.Int(int64(maxTokens)),
	})
	if err != nil {
		return "", nil, err
	}
	if len(resp.Choices) == 0 {
		return "", nil, errors.New("no choices in response")
	}

	usage := map[string]any{
		"prompt_tokens":     int(resp.Usage.PromptTokens),
		"completion_tokens": int(resp.Usage.CompletionTokens),
		"total_tokens":      int(resp.Usage.TotalTokens),
	}
	return resp.Choices[0].Message.Content, usage, nil
}
