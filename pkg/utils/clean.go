// Package utils предоставляет вспомогательные функции для обработки данных.
//
// Включает утилиты для очистки аргументов tool calls от markdown-обёртки.
package utils

import (
	"strings"
)

// CleanJsonBlock удаляет markdown-обёртку вокруг JSON.
//
// LLM часто возвращает JSON обёрнутым в markdown кодовые блоки:
//
//	```json
//	{"key": "value"}
//	```
//
// Эта функция очищает такие обёртки, возвращая чистый JSON.
func CleanJsonBlock(s string) string {
	s = strings.TrimSpace(s)

	// Удаляем ```json в начале
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```Json")

	// Удаляем ``` в начале
	s = strings.TrimPrefix(s, "```")

	// Удаляем ``` в конце
	s = strings.TrimSuffix(s, "```")

	return strings.TrimSpace(s)
}

// NormalizeToolArgs готовит сырые аргументы tool call к json.Unmarshal.
//
// Модели без параметров присылают "", "null" или "{}": всё сводится к "{}".
func NormalizeToolArgs(s string) string {
	s = CleanJsonBlock(s)
	if s == "" || s == "null" {
		return "{}"
	}
	return s
}
