// Реестр для хранения и поиска инструментов.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ilkoid/agribot/pkg/session"
)

// ErrUnknownTool: модель запросила инструмент, которого нет в реестре.
var ErrUnknownTool = errors.New("unknown tool")

// Registry: потокобезопасное хранилище инструментов.
//
// Порядок регистрации сохраняется: GetDefinitions отдаёт инструменты
// в том же порядке, что делает запрос к LLM детерминированным.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry создает новый пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// validateToolDefinition проверяет что ToolDefinition соответствует JSON Schema.
//
// Валидирует:
//   - Name не пустой
//   - Parameters является JSON объектом
//   - Parameters.type == "object"
//   - Parameters.required является массивом строк
func validateToolDefinition(def ToolDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}

	if def.Parameters == nil {
		return fmt.Errorf("tool '%s': parameters cannot be nil", def.Name)
	}

	// Сериализуем Parameters в JSON для проверки структуры
	paramsJSON, err := json.Marshal(def.Parameters)
	if err != nil {
		return fmt.Errorf("tool '%s': failed to marshal parameters: %w", def.Name, err)
	}

	var params map[string]any
	if err := json.Unmarshal(paramsJSON, &params); err != nil {
		return fmt.Errorf("tool '%s': parameters must be a JSON object, got: %s", def.Name, string(paramsJSON))
	}

	typeVal, ok := params["type"]
	if !ok {
		return fmt.Errorf("tool '%s': parameters must have 'type' field", def.Name)
	}

	typeStr, ok := typeVal.(string)
	if !ok {
		return fmt.Errorf("tool '%s': parameters.type must be a string, got: %T", def.Name, typeVal)
	}

	if typeStr != "object" {
		return fmt.Errorf("tool '%s': parameters.type must be 'object', got: '%s'", def.Name, typeStr)
	}

	if requiredVal, exists := params["required"]; exists {
		required, ok := requiredVal.([]any)
		if !ok {
			return fmt.Errorf("tool '%s': parameters.required must be an array", def.Name)
		}

		for i, item := range required {
			if _, ok := item.(string); !ok {
				return fmt.Errorf("tool '%s': parameters.required[%d] must be a string, got: %T", def.Name, i, item)
			}
		}
	}

	return nil
}

// Register добавляет инструмент в реестр с валидацией схемы.
//
// Возвращает ошибку если определение не валидно или имя уже занято.
func (r *Registry) Register(tool Tool) error {
	def := tool.Definition()

	if err := validateToolDefinition(def); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("tool '%s' already registered", def.Name)
	}
	r.tools[def.Name] = tool
	r.order = append(r.order, def.Name)
	return nil
}

// Get ищет инструмент по имени.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownTool, name)
	}
	return tool, nil
}

// GetDefinitions возвращает список всех определений для отправки в LLM.
func (r *Registry) GetDefinitions() []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Dispatch находит инструмент по имени и выполняет его в рамках сессии.
//
// Неизвестное имя: ErrUnknownTool, без вызова чего-либо.
func (r *Registry) Dispatch(ctx context.Context, sess session.Handle, name, argsJSON string) (string, error) {
	tool, err := r.Get(name)
	if err != nil {
		return "", err
	}
	return tool.Execute(ctx, sess, argsJSON)
}
