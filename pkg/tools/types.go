// Интерфейс Tool и структуры определений.

package tools

import (
	"context"

	"github.com/ilkoid/agribot/pkg/session"
)

// JSONSchema представляет JSON Schema для параметров инструмента.
//
// Формат соответствует JSON Schema specification для Function Calling API.
type JSONSchema map[string]any

// ToolDefinition описывает инструмент для LLM (Function Calling API format).
type ToolDefinition struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parameters  JSONSchema `json:"parameters"` // JSON Schema объекта аргументов
}

// Tool: контракт, который должен реализовать любой инструмент.
type Tool interface {
	// Definition возвращает описание инструмента для LLM.
	Definition() ToolDefinition

	// Execute выполняет логику инструмента в рамках сессии sess.
	// argsJSON: сырой JSON с аргументами, который прислала LLM.
	//
	// Бизнес-ошибки возвращаются текстом "Error: ..." в результате,
	// error: только для непредвиденных сбоев.
	Execute(ctx context.Context, sess session.Handle, argsJSON string) (string, error)
}
