package session

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"github.com/ilkoid/agribot/pkg/llm"
	"github.com/ilkoid/agribot/pkg/utils"
)

// MemoryOptions: параметры MemoryStore.
type MemoryOptions struct {
	SystemPrompt    string        // Первое сообщение каждого транскрипта
	TTL             time.Duration // Простой, после которого сессия удаляется (0 = никогда)
	MaxSessions     int           // LRU лимит (0 = без лимита)
	MaxPendingBytes int           // Лимит ожидающего изображения (0 = без лимита)

	// OnEvict вызывается после удаления сессии (под замком хранилища, без блокировок).
	OnEvict func(key string)

	now func() time.Time
}

type entry struct {
	key          string
	token        string
	pendingImage []byte
	transcript   []llm.Message
	lastActive   time.Time
	elem         *list.Element
}

// MemoryStore: in-memory Store с вытеснением по TTL и LRU.
//
// Все операции под одним мьютексом: конкуренция на сессию низкая,
// а операции над одним ключом не перемежаются частично.
type MemoryStore struct {
	mu       sync.Mutex
	opts     MemoryOptions
	sessions map[string]*entry
	lru      *list.List // Front: самая свежая
}

// NewMemoryStore создаёт пустое хранилище.
func NewMemoryStore(opts MemoryOptions) *MemoryStore {
	if opts.now == nil {
		opts.now = time.Now
	}
	return &MemoryStore{
		opts:     opts,
		sessions: make(map[string]*entry),
		lru:      list.New(),
	}
}

// touchLocked возвращает сессию, создавая её при необходимости.
func (s *MemoryStore) touchLocked(key string) *entry {
	now := s.opts.now()

	if e, ok := s.sessions[key]; ok {
		if s.opts.TTL > 0 && now.Sub(e.lastActive) > s.opts.TTL {
			s.removeLocked(e)
		} else {
			e.lastActive = now
			s.lru.MoveToFront(e.elem)
			return e
		}
	}

	e := &entry{key: key, lastActive: now}
	if s.opts.SystemPrompt != "" {
		e.transcript = []llm.Message{{Role: llm.RoleSystem, Content: s.opts.SystemPrompt}}
	}
	e.elem = s.lru.PushFront(e)
	s.sessions[key] = e

	s.evictLocked(now)
	return e
}

// evictLocked удаляет протухшие сессии с хвоста и соблюдает MaxSessions.
func (s *MemoryStore) evictLocked(now time.Time) {
	for back := s.lru.Back(); back != nil; back = s.lru.Back() {
		e := back.Value.(*entry)
		expired := s.opts.TTL > 0 && now.Sub(e.lastActive) > s.opts.TTL
		overCap := s.opts.MaxSessions > 0 && s.lru.Len() > s.opts.MaxSessions
		if !expired && !overCap {
			return
		}
		s.removeLocked(e)
	}
}

func (s *MemoryStore) removeLocked(e *entry) {
	s.lru.Remove(e.elem)
	delete(s.sessions, e.key)
	utils.Debug("Session evicted", "session", Hash(e.key))
	if s.opts.OnEvict != nil {
		s.opts.OnEvict(e.key)
	}
}

// Get возвращает копию состояния сессии.
func (s *MemoryStore) Get(key string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.touchLocked(key)
	return Snapshot{
		Key:             e.key,
		Token:           e.token,
		HasPendingImage: e.pendingImage != nil,
		Transcript:      copyMessages(e.transcript),
		LastActive:      e.lastActive,
	}
}

// SetToken привязывает bearer токен к сессии.
func (s *MemoryStore) SetToken(key, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked(key).token = token
}

// Token возвращает bearer токен сессии.
func (s *MemoryStore) Token(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touchLocked(key).token
}

// SetPendingImage сохраняет изображение до следующего create/update_image.
// Новое изображение заменяет предыдущее.
func (s *MemoryStore) SetPendingImage(key string, image []byte) error {
	if s.opts.MaxPendingBytes > 0 && len(image) > s.opts.MaxPendingBytes {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrImageTooLarge, len(image), s.opts.MaxPendingBytes)
	}

	buf := make([]byte, len(image))
	copy(buf, image)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked(key).pendingImage = buf
	return nil
}

// TakePendingImage забирает изображение: второй вызов подряд вернёт false.
func (s *MemoryStore) TakePendingImage(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.touchLocked(key)
	img := e.pendingImage
	e.pendingImage = nil
	return img, img != nil
}

// Transcript возвращает копию транскрипта.
func (s *MemoryStore) Transcript(key string) []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyMessages(s.touchLocked(key).transcript)
}

// Append добавляет сообщения в конец транскрипта одним шагом.
func (s *MemoryStore) Append(key string, msgs ...llm.Message) {
	if len(msgs) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.touchLocked(key)
	e.transcript = append(e.transcript, copyMessages(msgs)...)
}

// Len возвращает число живых сессий.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked(s.opts.now())
	return len(s.sessions)
}

func copyMessages(msgs []llm.Message) []llm.Message {
	out := make([]llm.Message, len(msgs))
	copy(out, msgs)
	for i := range out {
		if len(out[i].ToolCalls) > 0 {
			out[i].ToolCalls = append([]llm.ToolCall(nil), out[i].ToolCalls...)
		}
	}
	return out
}
