package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ilkoid/agribot/pkg/config"
	"github.com/ilkoid/agribot/pkg/llm"
	"github.com/ilkoid/agribot/pkg/tools"
)

// TestNewClient тестирует создание клиента.
func TestNewClient(t *testing.T) {
	tests := []struct {
		name      string
		modelDef  config.ModelDef
		maxTokens int
	}{
		{
			name: "minimal config",
			modelDef: config.ModelDef{
				APIKey:    "test-key",
				ModelName: "llama-3.3-70b-versatile",
			},
			maxTokens: defaultMaxTokens,
		},
		{
			name: "with custom base url",
			modelDef: config.ModelDef{
				APIKey:    "test-key",
				ModelName: "gpt-4o-mini",
				BaseURL:   "https://api.groq.com/openai/v1",
				MaxTokens: 256,
			},
			maxTokens: 256,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(tt.modelDef)
			if client == nil {
				t.Fatal("expected non-nil client")
			}
			if client.defaults.Model != tt.modelDef.ModelName {
				t.Errorf("expected model %s, got %s", tt.modelDef.ModelName, client.defaults.Model)
			}
			if client.defaults.MaxTokens != tt.maxTokens {
				t.Errorf("expected max tokens %d, got %d", tt.maxTokens, client.defaults.MaxTokens)
			}
			if client.api == nil {
				t.Error("expected non-nil api client")
			}
		})
	}
}

// TestConvertToolsToOpenAI тестирует конвертацию tools.
func TestConvertToolsToOpenAI(t *testing.T) {
	input := []tools.ToolDefinition{
		{
			Name:        "search_products",
			Description: "Search products",
			Parameters: tools.JSONSchema{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string"},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        "get_farmer_products",
			Description: "List own products",
			Parameters:  tools.JSONSchema{"type": "object", "properties": map[string]any{}},
		},
	}

	result := convertToolsToOpenAI(input)

	if len(result) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(result))
	}
	if result[0].Type != "function" {
		t.Errorf("expected type function, got %s", result[0].Type)
	}
	if result[0].Function.Name != "search_products" {
		t.Errorf("expected name search_products, got %s", result[0].Function.Name)
	}
	if result[0].Function.Parameters == nil {
		t.Error("expected non-nil parameters")
	}
	if result[1].Function.Name != "get_farmer_products" {
		t.Errorf("expected name get_farmer_products, got %s", result[1].Function.Name)
	}
}

// TestMapToOpenAI тестирует конвертацию сообщений.
func TestMapToOpenAI(t *testing.T) {
	t.Run("assistant tool calls", func(t *testing.T) {
		msg := mapToOpenAI(llm.Message{
			Role: llm.RoleAssistant,
			ToolCalls: []llm.ToolCall{
				{ID: "call_123", Name: "create_product", Args: `{"product_name":"tomatoes"}`},
			},
		})
		if msg.Role != "assistant" {
			t.Errorf("expected role assistant, got %s", msg.Role)
		}
		if len(msg.ToolCalls) != 1 {
			t.Fatalf("expected 1 tool call, got %d", len(msg.ToolCalls))
		}
		if msg.ToolCalls[0].Function.Arguments != `{"product_name":"tomatoes"}` {
			t.Errorf("arguments not preserved: %s", msg.ToolCalls[0].Function.Arguments)
		}
	})

	t.Run("tool result", func(t *testing.T) {
		msg := mapToOpenAI(llm.Message{
			Role:       llm.RoleTool,
			ToolCallID: "call_123",
			Name:       "create_product",
			Content:    "✅ Successfully created tomatoes!",
		})
		if msg.ToolCallID != "call_123" {
			t.Errorf("expected tool_call_id call_123, got %s", msg.ToolCallID)
		}
		if msg.Name != "create_product" {
			t.Errorf("expected name create_product, got %s", msg.Name)
		}
	})
}

// TestGenerate_InvalidOptionType: неизвестный тип опции возвращается ошибкой.
func TestGenerate_InvalidOptionType(t *testing.T) {
	client := NewClient(config.ModelDef{APIKey: "test-key", ModelName: "gpt-4"})

	_, err := client.Generate(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "test"}}, "invalid type")
	if err == nil {
		t.Fatal("expected error for invalid option type, got nil")
	}
	if !strings.Contains(err.Error(), "unsupported generate option") {
		t.Errorf("unexpected error message: %v", err)
	}
}

// TestGenerate_WireFormat проверяет запрос и разбор ответа на фейковом API.
func TestGenerate_WireFormat(t *testing.T) {
	var captured map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected authorization %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		captured = nil
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Errorf("bad request body: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "llama-3.3-70b-versatile",
			"choices": [{
				"index": 0,
				"finish_reason": "tool_calls",
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{
						"id": "call_1",
						"type": "function",
						"function": {"name": "create_product", "arguments": "{\"product_name\":\"tomatoes\",\"quantity\":\"50\",\"price\":\"40\"}"}
					}]
				}
			}]
		}`)
	}))
	defer srv.Close()

	client := NewClient(config.ModelDef{
		APIKey:    "test-key",
		ModelName: "llama-3.3-70b-versatile",
		BaseURL:   srv.URL,
	})

	defs := []tools.ToolDefinition{{
		Name:        "create_product",
		Description: "Create product",
		Parameters:  tools.JSONSchema{"type": "object", "properties": map[string]any{}},
	}}

	msg, err := client.Generate(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Content: "system"},
		{Role: llm.RoleUser, Content: "I have 50kg tomatoes at 40 rupees"},
	}, defs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if captured["tool_choice"] != "auto" {
		t.Errorf("expected tool_choice auto, got %v", captured["tool_choice"])
	}
	if captured["max_tokens"] != float64(defaultMaxTokens) {
		t.Errorf("expected max_tokens %d, got %v", defaultMaxTokens, captured["max_tokens"])
	}
	if toolsSent, ok := captured["tools"].([]any); !ok || len(toolsSent) != 1 {
		t.Errorf("expected 1 tool in request, got %v", captured["tools"])
	}

	if msg.Role != llm.RoleAssistant {
		t.Errorf("expected role assistant, got %s", msg.Role)
	}
	if !msg.HasToolCalls() || msg.ToolCalls[0].Name != "create_product" || msg.ToolCalls[0].ID != "call_1" {
		t.Fatalf("tool call not mapped: %+v", msg.ToolCalls)
	}

	// Вторая фаза: без tools и с переопределением лимита
	_, err = client.Generate(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, llm.WithMaxTokens(64))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, has := captured["tools"]; has {
		t.Error("second phase must not send tools")
	}
	if _, has := captured["tool_choice"]; has {
		t.Error("second phase must not send tool_choice")
	}
	if captured["max_tokens"] != float64(64) {
		t.Errorf("expected max_tokens 64, got %v", captured["max_tokens"])
	}
}

// TestGenerate_APIError: ошибка API оборачивается, паники нет.
func TestGenerate_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"rate limited","type":"rate_limit"}}`)
	}))
	defer srv.Close()

	client := NewClient(config.ModelDef{APIKey: "k", ModelName: "m", BaseURL: srv.URL})
	_, err := client.Generate(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "openai api error") {
		t.Errorf("unexpected error: %v", err)
	}
}
