package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/agribot/pkg/llm"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestKeyFromToken(t *testing.T) {
	assert.Equal(t, AnonymousKey, KeyFromToken(""))
	assert.Equal(t, "short", KeyFromToken("short"))
	assert.Equal(t, "eyJhbGciOiJIUzI1", KeyFromToken("eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.payload"))
}

func TestHash_StableAndOpaque(t *testing.T) {
	h := Hash("eyJhbGciOiJIUzI1")
	assert.Len(t, h, 12)
	assert.Equal(t, h, Hash("eyJhbGciOiJIUzI1"))
	assert.NotContains(t, h, "eyJ")
}

func TestMemoryStore_LazyCreateSeedsSystemPrompt(t *testing.T) {
	s := NewMemoryStore(MemoryOptions{SystemPrompt: "You are AgriBot"})

	snap := s.Get("farmer-1")
	require.Len(t, snap.Transcript, 1)
	assert.Equal(t, llm.RoleSystem, snap.Transcript[0].Role)
	assert.Equal(t, "You are AgriBot", snap.Transcript[0].Content)
	assert.False(t, snap.HasPendingImage)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_TakePendingImageIsReadAndClear(t *testing.T) {
	s := NewMemoryStore(MemoryOptions{})

	_, ok := s.TakePendingImage("k")
	assert.False(t, ok, "nothing pending on fresh session")

	require.NoError(t, s.SetPendingImage("k", []byte{1, 2, 3}))
	assert.True(t, s.Get("k").HasPendingImage)

	img, ok := s.TakePendingImage("k")
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, img)

	img, ok = s.TakePendingImage("k")
	assert.False(t, ok)
	assert.Nil(t, img)
}

func TestMemoryStore_PendingImageReplacedAndCopied(t *testing.T) {
	s := NewMemoryStore(MemoryOptions{})

	first := []byte{1}
	require.NoError(t, s.SetPendingImage("k", first))
	first[0] = 9 // Мутация вызывающим не влияет на хранилище

	require.NoError(t, s.SetPendingImage("k", []byte{2}))
	img, _ := s.TakePendingImage("k")
	assert.Equal(t, []byte{2}, img)
}

func TestMemoryStore_PendingImageCap(t *testing.T) {
	s := NewMemoryStore(MemoryOptions{MaxPendingBytes: 4})

	require.NoError(t, s.SetPendingImage("k", make([]byte, 4)))
	err := s.SetPendingImage("k", make([]byte, 5))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrImageTooLarge))

	// Отказ не затирает предыдущее изображение
	img, ok := s.TakePendingImage("k")
	require.True(t, ok)
	assert.Len(t, img, 4)
}

func TestMemoryStore_TokenBinding(t *testing.T) {
	s := NewMemoryStore(MemoryOptions{})
	s.SetToken("k", "tok")
	assert.Equal(t, "tok", s.Token("k"))
	assert.Equal(t, "tok", s.Get("k").Token)

	h := NewHandle(s, "k")
	assert.Equal(t, "k", h.Key())
	assert.Equal(t, "tok", h.Token())
}

func TestMemoryStore_TranscriptIsCopy(t *testing.T) {
	s := NewMemoryStore(MemoryOptions{SystemPrompt: "sys"})
	s.Append("k",
		llm.Message{Role: llm.RoleUser, Content: "hi"},
		llm.Message{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: "c1", Name: "search_products"}}},
	)

	tr := s.Transcript("k")
	require.Len(t, tr, 3)
	tr[1].Content = "mutated"
	tr[2].ToolCalls[0].Name = "mutated"

	again := s.Transcript("k")
	assert.Equal(t, "hi", again[1].Content)
	assert.Equal(t, "search_products", again[2].ToolCalls[0].Name)
}

func TestMemoryStore_TTLEviction(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	var evicted []string
	s := NewMemoryStore(MemoryOptions{
		SystemPrompt: "sys",
		TTL:          time.Hour,
		OnEvict:      func(key string) { evicted = append(evicted, key) },
		now:          clock.Now,
	})

	s.Append("old", llm.Message{Role: llm.RoleUser, Content: "hello"})
	clock.Advance(30 * time.Minute)
	s.Get("fresh")
	clock.Advance(45 * time.Minute)

	assert.Equal(t, 1, s.Len(), "old session idle for 75m must be gone")
	assert.Equal(t, []string{"old"}, evicted)

	// Повторный доступ создаёт новую сессию с чистым транскриптом
	assert.Len(t, s.Transcript("old"), 1)
}

func TestMemoryStore_LRUCap(t *testing.T) {
	s := NewMemoryStore(MemoryOptions{MaxSessions: 2})

	s.Get("a")
	s.Get("b")
	s.Get("a") // a свежее b
	s.Get("c") // вытесняет b

	assert.Equal(t, 2, s.Len())
	s.mu.Lock()
	_, hasA := s.sessions["a"]
	_, hasB := s.sessions["b"]
	s.mu.Unlock()
	assert.True(t, hasA)
	assert.False(t, hasB)
}

func TestMemoryStore_Concurrent(t *testing.T) {
	s := NewMemoryStore(MemoryOptions{SystemPrompt: "sys"})

	const workers = 16
	const perWorker = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			own := fmt.Sprintf("farmer-%d", w)
			for i := 0; i < perWorker; i++ {
				s.Append("shared", llm.Message{Role: llm.RoleUser, Content: "x"})
				s.Append(own, llm.Message{Role: llm.RoleUser, Content: "y"})
				_ = s.SetPendingImage(own, []byte{byte(i)})
				s.TakePendingImage(own)
			}
		}(w)
	}
	wg.Wait()

	assert.Len(t, s.Transcript("shared"), 1+workers*perWorker)
	assert.Len(t, s.Transcript("farmer-0"), 1+perWorker)
	assert.Equal(t, workers+1, s.Len())
}
