// Package agent: цикл диалога AgriBot: один ход = до двух вызовов LLM.
//
// Фаза dispatch: транскрипт + декларации инструментов, tool_choice=auto.
// Фаза resolution: если модель запросила инструменты, они выполняются
// строго последовательно, затем второй вызов LLM без инструментов
// формулирует итоговый ответ.
package agent

import (
	"encoding/json"
	"time"
)

// Семантические действия хода.
const (
	ActionProductCreated = "product_created"
	ActionProductUpdated = "product_updated"
	ActionError          = "error"
)

// Языки ответа.
const (
	LanguageAuto    = "auto"
	LanguageEnglish = "en"
	LanguageTamil   = "ta"
)

// ChatRequest: входящий ход диалога.
type ChatRequest struct {
	Message  string `json:"message"`
	Language string `json:"language"`
	Token    string `json:"-"` // Bearer токен фермера, пусто = anonymous
}

// ChatResponse: ответ хода.
//
// Пустой Action сериализуется как null.
type ChatResponse struct {
	Response string
	Action   string
	Data     map[string]any
}

// MarshalJSON реализует формат {response, action, data}.
func (r ChatResponse) MarshalJSON() ([]byte, error) {
	var action *string
	if r.Action != "" {
		action = &r.Action
	}
	return json.Marshal(struct {
		Response string         `json:"response"`
		Action   *string        `json:"action"`
		Data     map[string]any `json:"data"`
	}{r.Response, action, r.Data})
}

// Observer получает события хода (метрики).
//
// Метки: строки, поэтому реализация не зависит от пакета agent.
type Observer interface {
	TurnCompleted(action string, elapsed time.Duration)
	ToolExecuted(tool, outcome string, elapsed time.Duration)
	LLMCompleted(phase string, elapsed time.Duration, err error)
	ImageUploaded(outcome string)
}

type nopObserver struct{}

func (nopObserver) TurnCompleted(string, time.Duration) {}
func (nopObserver) ToolExecuted(string, string, time.Duration) {}
func (nopObserver) LLMCompleted(string, time.Duration, error) {}
func (nopObserver) ImageUploaded(string) {}
