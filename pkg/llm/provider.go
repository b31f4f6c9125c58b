// Интерфейс Провайдера через который работает всё приложение.

package llm

import "context"

// Provider: абстракция над LLM API.
type Provider interface {
	// Generate принимает контекст и историю сообщений.
	// Возвращает ответ модели в унифицированном формате Message.
	//
	// opts может содержать:
	//   - []tools.ToolDefinition: включает Function Calling с tool_choice=auto
	//   - GenerateOption: runtime переопределения параметров генерации
	Generate(ctx context.Context, messages []Message, opts ...any) (Message, error)
}
