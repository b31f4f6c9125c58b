// Package llm определяет универсальный язык общения с моделями.
//
// Все адаптеры (OpenAI-совместимые, Groq и т.д.) работают через Provider
// и конвертируют свои форматы в Message.
package llm

// Role: роль автора сообщения.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message: одно сообщение транскрипта.
//
// Для RoleAssistant может содержать ToolCalls (запрос модели на вызов инструментов).
// Для RoleTool: результат одного вызова, связанный через ToolCallID.
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string // Только для RoleTool
	Name       string // Имя инструмента для RoleTool
}

// ToolCall: запрос модели на вызов инструмента.
type ToolCall struct {
	ID   string
	Name string
	Args string // JSON строка аргументов, как её прислала модель
}

// HasToolCalls сообщает, запросила ли модель вызов инструментов.
func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}
