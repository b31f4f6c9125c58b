package agent

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/agribot/pkg/catalog"
	"github.com/ilkoid/agribot/pkg/imageprep"
	"github.com/ilkoid/agribot/pkg/llm"
	"github.com/ilkoid/agribot/pkg/session"
)

// noiseImage: шум плохо сжимается, поэтому размер файла предсказуемо велик.
func noiseImage(w, h int) *image.RGBA {
	rng := rand.New(rand.NewSource(42))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255})
		}
	}
	return img
}

func largeJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, noiseImage(1500, 1500), &jpeg.Options{Quality: 100}))
	require.Greater(t, buf.Len(), 2*imageprep.MB, "fixture must exceed the compression target")
	return buf.Bytes()
}

func smallPNG(t *testing.T, side int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, noiseImage(side, side)))
	return buf.Bytes()
}

// fakeArchive: архив в памяти.
type fakeArchive struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (a *fakeArchive) PutImage(_ context.Context, sessionHash string, _ []byte, contentType string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return "", a.err
	}
	key := "uploads/" + sessionHash + "/" + contentType
	a.keys = append(a.keys, key)
	return key, nil
}

// Scenario C: большое фото сжимается и попадает в create_product как data-uri.
func TestChatWithImage_CompressAndCreate(t *testing.T) {
	f := newFixture(t, []llm.Message{
		toolCalls(llm.ToolCall{
			ID:   "call_1",
			Name: "create_product",
			Args: `{"product_name":"Carrot","quantity":"25","price":"60"}`,
		}),
		reply("Listed your carrots with the photo."),
	})
	archive := &fakeArchive{}
	f.orch.archive = archive

	img := largeJPEG(t)
	resp := f.orch.ChatWithImage(context.Background(), ChatRequest{Message: "add carrots", Token: testToken}, img)

	assert.Equal(t, ActionProductCreated, resp.Action)
	assert.Equal(t, true, resp.Data["imageUploaded"])
	sizeKB, ok := resp.Data["compressedSizeKb"].(float64)
	require.True(t, ok)
	assert.Less(t, sizeKB, 2048.0)
	assert.Greater(t, sizeKB, 0.0)

	call, ok := f.spy.Last(catalog.OpCreate)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(call.Product.Image, "data:image/jpeg;base64,"))

	user := f.llm.Calls[0][1]
	assert.True(t, strings.HasPrefix(user.Content, "add carrots\n\n"))
	assert.Contains(t, user.Content, "use the update_product_image tool")

	_, pending := f.store.TakePendingImage(session.KeyFromToken(testToken))
	assert.False(t, pending, "create_product consumed the pending image")

	require.Len(t, archive.keys, 1)
	assert.Contains(t, archive.keys[0], session.Hash(session.KeyFromToken(testToken)))

	assert.Equal(t, []string{uploadStored}, f.observer.uploads)
	assert.Equal(t, []string{ActionProductCreated}, f.observer.turns, "one turn recorded")
}

func TestChatWithImage_SmallImageStoredAsIs(t *testing.T) {
	f := newFixture(t, []llm.Message{reply("Nice photo! Which product is it for?")})
	img := smallPNG(t, 16)

	resp := f.orch.ChatWithImage(context.Background(), ChatRequest{Message: "here", Token: testToken}, img)

	assert.Empty(t, resp.Action)
	assert.Equal(t, true, resp.Data["imageUploaded"])

	stored, ok := f.store.TakePendingImage(session.KeyFromToken(testToken))
	require.True(t, ok)
	assert.Equal(t, img, stored)
}

func TestChatWithImage_Invalid(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.orch.ChatWithImage(context.Background(), ChatRequest{Message: "add", Token: testToken}, []byte("definitely not an image"))

	assert.Equal(t, ActionError, resp.Action)
	assert.True(t, strings.HasPrefix(resp.Response, "The uploaded image is not valid. Please upload a proper image file. Error: "))
	assert.Equal(t, map[string]any{}, resp.Data)
	assert.Zero(t, f.llm.CallCount())

	_, pending := f.store.TakePendingImage(session.KeyFromToken(testToken))
	assert.False(t, pending)
	assert.Equal(t, []string{uploadInvalid}, f.observer.uploads)
}

func TestChatWithImage_UploadTooLarge(t *testing.T) {
	f := newFixture(t, nil)
	f.orch.maxUpload = 1 * imageprep.MB

	resp := f.orch.ChatWithImage(context.Background(), ChatRequest{Message: "add", Token: testToken}, make([]byte, imageprep.MB+1))

	assert.Equal(t, "Error: Image too large. Maximum size is 1MB.", resp.Response)
	assert.Equal(t, ActionError, resp.Action)
	assert.Zero(t, f.llm.CallCount())
}

func TestChatWithImage_PendingCapacity(t *testing.T) {
	f := newFixture(t, nil)
	f.store = session.NewMemoryStore(session.MemoryOptions{MaxPendingBytes: 64})
	f.orch.sessions = f.store

	resp := f.orch.ChatWithImage(context.Background(), ChatRequest{Message: "add", Token: testToken}, smallPNG(t, 16))

	assert.Equal(t, "Error: Image too large. Maximum size is 2MB.", resp.Response)
	assert.Equal(t, ActionError, resp.Action)
	assert.Zero(t, f.llm.CallCount())
	assert.Equal(t, []string{uploadTooLarge}, f.observer.uploads)
}

func TestChatWithImage_ArchiveFailureIgnored(t *testing.T) {
	f := newFixture(t, []llm.Message{reply("Got it.")})
	f.orch.archive = &fakeArchive{err: errors.New("bucket gone")}

	resp := f.orch.ChatWithImage(context.Background(), ChatRequest{Message: "photo", Token: testToken}, smallPNG(t, 16))

	assert.Empty(t, resp.Action)
	assert.Equal(t, "Got it.", resp.Response)
	assert.Equal(t, true, resp.Data["imageUploaded"])
}

func TestChatWithImage_InnerFailureKeepsErrorData(t *testing.T) {
	f := newFixture(t, nil)
	f.llm.Err = errors.New("llm down")
	f.llm.ErrOnCall = 1

	resp := f.orch.ChatWithImage(context.Background(), ChatRequest{Message: "photo", Token: testToken}, smallPNG(t, 16))

	assert.Equal(t, ActionError, resp.Action)
	assert.Contains(t, resp.Data["error"], "llm down")
	assert.NotContains(t, resp.Data, "imageUploaded")
}
