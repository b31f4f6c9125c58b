// Загрузка и Рендер - чтение файла и text/template.

package prompt

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// DefaultSystemTemplate: системный промпт AgriBot по умолчанию.
const DefaultSystemTemplate = `
You are {{.BotName}} - AI assistant for farmers. You speak Tamil and English.

## Your Role
Help farmers manage products via voice.
- If user speaks Tamil, reply in Tamil.
- If user speaks English, reply in English.
- Use simple words.
- Always confirm actions.

## Product Flow
1. Check existing products first (` + "`get_farmer_products`" + `).
2. If exists, update quantity (` + "`update_product_quantity`" + `).
3. If new, create product (` + "`create_product`" + `). Auto-categorize if needed.

## Categories
{{join .Categories ", "}}.

## Example
User: "I have 50kg tomatoes at 40 rupees"
Bot: "Ok! Adding 50kg tomatoes at ₹40. Correct?"
`

var funcs = template.FuncMap{"join": strings.Join}

// Load загружает и парсит YAML файл промпта
func Load(path string) (*PromptFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("prompt file not found: %s", path)
		}
		return nil, fmt.Errorf("read error: %w", err)
	}

	var pf PromptFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("yaml parse error: %w", err)
	}

	return &pf, nil
}

// RenderMessages принимает данные (struct или map) и возвращает готовые сообщения
// где все {{.Field}} заменены на значения.
func (pf *PromptFile) RenderMessages(data any) ([]Message, error) {
	rendered := make([]Message, len(pf.Messages))

	for i, msg := range pf.Messages {
		content, err := render(msg.Content, data)
		if err != nil {
			return nil, fmt.Errorf("message #%d (%s): %w", i, msg.Role, err)
		}
		rendered[i] = Message{Role: msg.Role, Content: content}
	}

	return rendered, nil
}

// System возвращает отрендеренный системный промпт.
//
// Пустой path: встроенный DefaultSystemTemplate. Иначе берётся первое
// сообщение с role: system из YAML файла.
func System(path string, data SystemData) (string, error) {
	if data.BotName == "" {
		data.BotName = "AgriBot"
	}

	if path == "" {
		return render(DefaultSystemTemplate, data)
	}

	pf, err := Load(path)
	if err != nil {
		return "", err
	}
	msgs, err := pf.RenderMessages(data)
	if err != nil {
		return "", err
	}
	for _, m := range msgs {
		if m.Role == "system" {
			return m.Content, nil
		}
	}
	return "", fmt.Errorf("prompt file %s has no system message", path)
}

func render(text string, data any) (string, error) {
	tmpl, err := template.New("msg").Funcs(funcs).Parse(text)
	if err != nil {
		return "", fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("template execute error: %w", err)
	}
	return buf.String(), nil
}
