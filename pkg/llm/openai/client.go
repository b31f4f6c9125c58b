// Package openai реализует адаптер LLM провайдера для OpenAI-совместимых API.
//
// Используется с Groq (base_url https://api.groq.com/openai/v1), но подходит
// для любого сервиса, совместимого с Chat Completions и Function Calling.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ilkoid/agribot/pkg/config"
	"github.com/ilkoid/agribot/pkg/llm"
	"github.com/ilkoid/agribot/pkg/tools"
	"github.com/ilkoid/agribot/pkg/utils"
)

// defaultMaxTokens: лимит ответа, если он не задан ни в конфиге, ни в опциях.
const defaultMaxTokens = 1024

// Client реализует интерфейс llm.Provider для OpenAI-совместимых API.
type Client struct {
	api      *openai.Client
	defaults llm.GenerateOptions
}

// NewClient создает клиент на основе конфигурации модели.
//
// BaseURL позволяет ходить в non-OpenAI провайдеров (Groq и т.д.).
// Timeout ограничивает каждый HTTP запрос к API.
func NewClient(modelDef config.ModelDef) *Client {
	cfg := openai.DefaultConfig(modelDef.APIKey)
	if modelDef.BaseURL != "" {
		cfg.BaseURL = modelDef.BaseURL
	}
	if modelDef.Timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: modelDef.Timeout}
	}

	maxTokens := modelDef.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &Client{
		api: openai.NewClientWithConfig(cfg),
		defaults: llm.GenerateOptions{
			Model:       modelDef.ModelName,
			Temperature: modelDef.Temperature,
			MaxTokens:   maxTokens,
		},
	}
}

// Generate выполняет запрос к API и возвращает ответ модели.
//
// Если среди opts есть []tools.ToolDefinition, они передаются как functions
// с tool_choice=auto: модель сама решает, вызывать ли инструменты.
// Без них запрос уходит без tools (вторая фаза хода).
func (c *Client) Generate(ctx context.Context, messages []llm.Message, opts ...any) (llm.Message, error) {
	startTime := time.Now()
	params := llm.ApplyOptions(c.defaults, opts...)

	var toolDefs []tools.ToolDefinition
	for _, o := range opts {
		switch v := o.(type) {
		case []tools.ToolDefinition:
			toolDefs = v
		case llm.GenerateOption:
			// Уже применено
		default:
			return llm.Message{}, fmt.Errorf("unsupported generate option type %T", o)
		}
	}

	utils.Debug("LLM request started",
		"model", params.Model,
		"messages_count", len(messages),
		"tools_count", len(toolDefs))

	openaiMsgs := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		openaiMsgs[i] = mapToOpenAI(m)
	}

	req := openai.ChatCompletionRequest{
		Model:       params.Model,
		Messages:    openaiMsgs,
		MaxTokens:   params.MaxTokens,
		Temperature: float32(params.Temperature),
	}

	if len(toolDefs) > 0 {
		req.Tools = convertToolsToOpenAI(toolDefs)
		req.ToolChoice = "auto"
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		utils.Error("LLM API request failed",
			"error", err,
			"model", params.Model,
			"duration_ms", time.Since(startTime).Milliseconds())
		return llm.Message{}, fmt.Errorf("openai api error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return llm.Message{}, fmt.Errorf("no choices in response")
	}

	result := mapFromOpenAI(resp.Choices[0].Message)

	utils.Info("LLM response received",
		"model", params.Model,
		"tool_calls_count", len(result.ToolCalls),
		"content_length", len(result.Content),
		"duration_ms", time.Since(startTime).Milliseconds())

	return result, nil
}

// mapToOpenAI конвертирует наше сообщение в формат SDK.
func mapToOpenAI(m llm.Message) openai.ChatCompletionMessage {
	msg := openai.ChatCompletionMessage{
		Role:       string(m.Role),
		Content:    m.Content,
		ToolCallID: m.ToolCallID,
		Name:       m.Name,
	}

	if len(m.ToolCalls) > 0 {
		msg.ToolCalls = make([]openai.ToolCall, len(m.ToolCalls))
		for i, tc := range m.ToolCalls {
			msg.ToolCalls[i] = openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Args,
				},
			}
		}
	}

	return msg
}

// mapFromOpenAI конвертирует ответ SDK обратно в наш формат.
func mapFromOpenAI(choice openai.ChatCompletionMessage) llm.Message {
	role := llm.Role(choice.Role)
	if role == "" {
		role = llm.RoleAssistant
	}

	result := llm.Message{
		Role:    role,
		Content: choice.Content,
	}

	if len(choice.ToolCalls) > 0 {
		result.ToolCalls = make([]llm.ToolCall, len(choice.ToolCalls))
		for i, tc := range choice.ToolCalls {
			result.ToolCalls[i] = llm.ToolCall{
				ID:   tc.ID,
				Name: tc.Function.Name,
				Args: tc.Function.Arguments,
			}
		}
	}

	return result
}

// convertToolsToOpenAI конвертирует определения инструментов в формат
// OpenAI Function Calling. Parameters уже JSON Schema и передаётся как есть.
func convertToolsToOpenAI(defs []tools.ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, len(defs))

	for i, def := range defs {
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		}
	}

	return result
}
