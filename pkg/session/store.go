// Package session хранит состояние разговоров с фермерами.
//
// Сессия определяется ключом (первые 16 символов bearer токена или "anonymous")
// и содержит транскрипт для LLM, токен и ожидающее изображение.
//
// Инструменты получают Handle явным аргументом: глобального "текущего"
// состояния нет.
package session

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/ilkoid/agribot/pkg/llm"
)

// AnonymousKey: ключ сессии без токена.
const AnonymousKey = "anonymous"

// keyPrefixLen: сколько символов токена идёт в ключ.
const keyPrefixLen = 16

// ErrImageTooLarge: ожидающее изображение больше лимита хранилища.
var ErrImageTooLarge = errors.New("pending image too large")

// KeyFromToken выводит ключ сессии из bearer токена.
func KeyFromToken(token string) string {
	if token == "" {
		return AnonymousKey
	}
	if len(token) > keyPrefixLen {
		return token[:keyPrefixLen]
	}
	return token
}

// Hash: короткий отпечаток ключа для логов и журнала.
// Сам ключ содержит часть токена и в логи не пишется.
func Hash(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:6])
}

// Snapshot: копия состояния сессии на момент чтения.
type Snapshot struct {
	Key             string
	Token           string
	HasPendingImage bool
	Transcript      []llm.Message
	LastActive      time.Time
}

// Store: хранилище сессий.
//
// Все методы безопасны для конкурентного вызова. Get и мутации лениво
// создают сессию, засеянную системным промптом.
type Store interface {
	Get(key string) Snapshot
	SetToken(key, token string)
	Token(key string) string
	SetPendingImage(key string, image []byte) error
	TakePendingImage(key string) ([]byte, bool)
	Transcript(key string) []llm.Message
	Append(key string, msgs ...llm.Message)
	Len() int
}

// Handle: сессия, привязанная к ключу. Передаётся в инструменты.
type Handle struct {
	key   string
	store Store
}

// NewHandle связывает ключ с хранилищем.
func NewHandle(store Store, key string) Handle {
	return Handle{key: key, store: store}
}

// Key возвращает ключ сессии.
func (h Handle) Key() string { return h.key }

// Hash возвращает отпечаток ключа для логов.
func (h Handle) Hash() string { return Hash(h.key) }

// Token возвращает bearer токен сессии (может быть пустым).
func (h Handle) Token() string {
	if h.store == nil {
		return ""
	}
	return h.store.Token(h.key)
}

// TakePendingImage забирает ожидающее изображение (чтение с очисткой).
func (h Handle) TakePendingImage() ([]byte, bool) {
	if h.store == nil {
		return nil, false
	}
	return h.store.TakePendingImage(h.key)
}
