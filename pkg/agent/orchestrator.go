package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ilkoid/agribot/pkg/imageprep"
	"github.com/ilkoid/agribot/pkg/journal"
	"github.com/ilkoid/agribot/pkg/llm"
	"github.com/ilkoid/agribot/pkg/s3storage"
	"github.com/ilkoid/agribot/pkg/session"
	"github.com/ilkoid/agribot/pkg/tools"
	"github.com/ilkoid/agribot/pkg/tools/farm"
	"github.com/ilkoid/agribot/pkg/utils"
)

// fallbackReply: ответ при непредвиденной ошибке хода.
const fallbackReply = "Sorry, there was an issue. Please try again."

// Фазы хода для метрик и логов.
const (
	phaseDispatch   = "dispatch"
	phaseResolution = "resolution"
)

// Config: зависимости Orchestrator.
type Config struct {
	Provider llm.Provider
	Tools    *tools.Registry
	Sessions session.Store

	Images         imageprep.Options
	MaxUploadBytes int // Жёсткий лимит входящего файла (0 = без лимита)
	MaxPendingMB   int // Лимит хранилища, только для текста ответа

	// Опциональные
	Observer Observer
	Journal  journal.Recorder
	Archive  s3storage.Archiver
}

// Orchestrator ведёт ходы диалога поверх Store, реестра инструментов и LLM.
//
// Безопасен для конкурентного использования: всё состояние живёт в Store.
type Orchestrator struct {
	provider llm.Provider
	registry *tools.Registry
	sessions session.Store

	images       imageprep.Options
	maxUpload    int
	maxPendingMB int

	observer Observer
	journal  journal.Recorder
	archive  s3storage.Archiver
}

// New проверяет обязательные зависимости и создаёт Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Provider == nil {
		return nil, errors.New("agent: provider is required")
	}
	if cfg.Tools == nil {
		return nil, errors.New("agent: tools registry is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("agent: session store is required")
	}

	o := &Orchestrator{
		provider:     cfg.Provider,
		registry:     cfg.Tools,
		sessions:     cfg.Sessions,
		images:       cfg.Images,
		maxUpload:    cfg.MaxUploadBytes,
		maxPendingMB: cfg.MaxPendingMB,
		observer:     cfg.Observer,
		journal:      cfg.Journal,
		archive:      cfg.Archive,
	}
	if o.observer == nil {
		o.observer = nopObserver{}
	}
	if o.journal == nil {
		o.journal = journal.Nop{}
	}
	return o, nil
}

// Chat выполняет текстовый ход. Ошибки не возвращаются: любой сбой
// превращается в ответ с action "error".
func (o *Orchestrator) Chat(ctx context.Context, req ChatRequest) ChatResponse {
	start := time.Now()
	resp := o.chat(ctx, req)
	o.observer.TurnCompleted(resp.Action, time.Since(start))
	return resp
}

// chat: ход без учёта в метриках (ChatWithImage считает ход сам).
func (o *Orchestrator) chat(ctx context.Context, req ChatRequest) (resp ChatResponse) {
	key := session.KeyFromToken(req.Token)
	sess := session.NewHandle(o.sessions, key)

	defer func() {
		if r := recover(); r != nil {
			utils.Error("Chat turn panicked", "session", sess.Hash(), "panic", fmt.Sprint(r))
			resp = failure(fallbackReply, fmt.Errorf("panic: %v", r))
		}
	}()

	action, reply, err := o.turn(ctx, sess, req)
	if err != nil {
		utils.Error("Chat turn failed", "session", sess.Hash(), "error", err)
		return failure(fallbackReply, err)
	}
	return ChatResponse{Response: reply, Action: action}
}

// turn: две фазы хода.
//
// Транскрипт фиксируется так:
//   - сообщение пользователя до первого вызова LLM
//   - assistant с tool_calls и все результаты инструментов вместе, после выполнения
//   - итоговый ответ после второго вызова
//
// Отмена во время выполнения инструментов оставляет в транскрипте только
// сообщение пользователя, без висящего tool_calls.
func (o *Orchestrator) turn(ctx context.Context, sess session.Handle, req ChatRequest) (string, string, error) {
	o.sessions.SetToken(sess.Key(), req.Token)
	o.sessions.Append(sess.Key(), llm.Message{
		Role:    llm.RoleUser,
		Content: withLanguageHint(req.Message, req.Language),
	})

	// Фаза 1: модель решает, нужны ли инструменты
	first, err := o.generate(ctx, phaseDispatch, o.sessions.Transcript(sess.Key()), o.registry.GetDefinitions())
	if err != nil {
		return "", "", err
	}

	if !first.HasToolCalls() {
		first.Role = llm.RoleAssistant
		o.sessions.Append(sess.Key(), first)
		return "", first.Content, nil
	}

	// Фаза 2: инструменты по порядку, затем итоговый ответ
	var action string
	pending := make([]llm.Message, 0, len(first.ToolCalls)+1)
	first.Role = llm.RoleAssistant
	pending = append(pending, first)

	for _, call := range first.ToolCalls {
		if a := actionFor(call.Name); a != "" {
			action = a
		}
		result := o.executeTool(ctx, sess, call)
		pending = append(pending, llm.Message{
			Role:       llm.RoleTool,
			Content:    result,
			ToolCallID: call.ID,
			Name:       call.Name,
		})
	}

	if err := ctx.Err(); err != nil {
		return "", "", fmt.Errorf("turn canceled during tool dispatch: %w", err)
	}
	o.sessions.Append(sess.Key(), pending...)

	final, err := o.generate(ctx, phaseResolution, o.sessions.Transcript(sess.Key()))
	if err != nil {
		return "", "", err
	}
	final.Role = llm.RoleAssistant
	final.ToolCalls = nil
	o.sessions.Append(sess.Key(), final)

	utils.Debug("Chat turn resolved",
		"session", sess.Hash(),
		"tools", len(first.ToolCalls),
		"action", action)

	return action, final.Content, nil
}

// generate вызывает LLM и сообщает длительность фазы.
func (o *Orchestrator) generate(ctx context.Context, phase string, messages []llm.Message, opts ...any) (llm.Message, error) {
	start := time.Now()
	msg, err := o.provider.Generate(ctx, messages, opts...)
	elapsed := time.Since(start)
	o.observer.LLMCompleted(phase, elapsed, err)
	if err != nil {
		return llm.Message{}, fmt.Errorf("llm %s call failed: %w", phase, err)
	}
	utils.Debug("LLM call completed", "phase", phase, "tool_calls", len(msg.ToolCalls), "duration", elapsed)
	return msg, nil
}

// executeTool выполняет один вызов и всегда возвращает текст для транскрипта.
//
// Ошибки обработчиков становятся строками "Error: ...", чтобы модель
// могла пересказать их фермеру. Паника уходит на границу хода.
func (o *Orchestrator) executeTool(ctx context.Context, sess session.Handle, call llm.ToolCall) string {
	start := time.Now()
	result, err := o.registry.Dispatch(ctx, sess, call.Name, call.Args)

	outcome := "ok"
	switch {
	case errors.Is(err, tools.ErrUnknownTool):
		utils.Warn("Model requested unknown tool", "tool", call.Name, "session", sess.Hash())
		result = fmt.Sprintf("Error: unknown tool '%s'", call.Name)
		outcome = "unknown"
	case err != nil:
		utils.Error("Tool execution failed", "tool", call.Name, "session", sess.Hash(), "error", err)
		result = "Error: " + err.Error()
		outcome = "error"
	case strings.HasPrefix(result, "Error:"):
		outcome = "error"
	}

	elapsed := time.Since(start)
	o.observer.ToolExecuted(call.Name, outcome, elapsed)
	utils.Info("Tool executed",
		"tool", call.Name,
		"session", sess.Hash(),
		"outcome", outcome,
		"duration", elapsed)

	entry := journal.Entry{
		SessionHash: sess.Hash(),
		Tool:        call.Name,
		Args:        call.Args,
		Result:      result,
		OK:          outcome == "ok",
		Duration:    elapsed,
		CreatedAt:   time.Now(),
	}
	if err := o.journal.Record(context.WithoutCancel(ctx), entry); err != nil {
		utils.Warn("Journal record failed", "tool", call.Name, "error", err)
	}

	return result
}

// actionFor сопоставляет инструмент семантическому действию.
func actionFor(toolName string) string {
	switch farm.Name(toolName) {
	case farm.CreateProduct:
		return ActionProductCreated
	case farm.UpdateProductQuantity:
		return ActionProductUpdated
	}
	return ""
}

// withLanguageHint просит модель ответить на выбранном языке.
// "auto" и неизвестные значения оставляют выбор модели.
func withLanguageHint(text, language string) string {
	switch language {
	case LanguageEnglish:
		return text + "\n\n(Reply in English.)"
	case LanguageTamil:
		return text + "\n\n(Reply in Tamil.)"
	}
	return text
}

func failure(reply string, err error) ChatResponse {
	return ChatResponse{
		Response: reply,
		Action:   ActionError,
		Data:     map[string]any{"error": err.Error()},
	}
}
