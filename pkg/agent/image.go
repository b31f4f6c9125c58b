package agent

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/ilkoid/agribot/pkg/imageprep"
	"github.com/ilkoid/agribot/pkg/session"
	"github.com/ilkoid/agribot/pkg/utils"
)

// imageNote дописывается к тексту фермера, когда фото сохранено в сессии.
const imageNote = "[Image attached: The farmer has uploaded a product image. " +
	"If creating or updating a product, use the update_product_image tool to attach this image to the product.]"

const imageFallbackReply = "There was an error processing your image. " +
	"Please try again or describe your product without an image."

// Исходы загрузки фото для метрик.
const (
	uploadStored   = "stored"
	uploadInvalid  = "invalid"
	uploadTooLarge = "too_large"
)

// archiveTimeout ограничивает загрузку в архив, чтобы S3 не задерживал ход.
const archiveTimeout = 10 * time.Second

// ChatWithImage сохраняет фото как ожидающее изображение сессии и
// выполняет обычный текстовый ход с пометкой о вложении.
//
// Порядок: лимит загрузки, проверка формата, сжатие, лимит хранилища,
// архив (если включён), ход. Фото до модели не доходит: его прикрепляет
// инструмент update_product_image.
func (o *Orchestrator) ChatWithImage(ctx context.Context, req ChatRequest, image []byte) ChatResponse {
	start := time.Now()
	resp := o.chatWithImage(ctx, req, image)
	o.observer.TurnCompleted(resp.Action, time.Since(start))
	return resp
}

func (o *Orchestrator) chatWithImage(ctx context.Context, req ChatRequest, image []byte) (resp ChatResponse) {
	key := session.KeyFromToken(req.Token)
	hash := session.Hash(key)

	defer func() {
		if r := recover(); r != nil {
			utils.Error("Image turn panicked", "session", hash, "panic", fmt.Sprint(r))
			resp = failure(imageFallbackReply, fmt.Errorf("panic: %v", r))
		}
	}()

	o.sessions.SetToken(key, req.Token)

	if err := imageprep.CheckUpload(image, o.maxUpload); err != nil {
		utils.Warn("Image upload rejected", "session", hash, "error", err)
		o.observer.ImageUploaded(uploadTooLarge)
		return tooLarge(o.maxUpload / imageprep.MB)
	}

	if err := imageprep.Validate(image, o.images.MaxPixels); err != nil {
		utils.Warn("Invalid image uploaded", "session", hash, "error", err)
		o.observer.ImageUploaded(uploadInvalid)
		return ChatResponse{
			Response: fmt.Sprintf("The uploaded image is not valid. Please upload a proper image file. Error: %v", err),
			Action:   ActionError,
			Data:     map[string]any{},
		}
	}

	compressed, ok := imageprep.Compress(image, o.images)
	if !ok {
		utils.Warn("Image compression failed, using original", "session", hash, "size", len(image))
	}

	if err := o.sessions.SetPendingImage(key, compressed); err != nil {
		if errors.Is(err, session.ErrImageTooLarge) {
			o.observer.ImageUploaded(uploadTooLarge)
			return tooLarge(o.maxPendingMB)
		}
		utils.Error("Failed to store pending image", "session", hash, "error", err)
		return failure(imageFallbackReply, err)
	}
	o.observer.ImageUploaded(uploadStored)

	compressedKB := float64(len(compressed)) / 1024
	utils.Info("Image stored",
		"session", hash,
		"original_kb", math.Round(float64(len(image))/1024*10)/10,
		"compressed_kb", math.Round(compressedKB*10)/10)

	o.archiveImage(ctx, hash, compressed)

	resp = o.chat(ctx, ChatRequest{
		Message:  req.Message + "\n\n" + imageNote,
		Language: req.Language,
		Token:    req.Token,
	})
	if resp.Action != ActionError {
		resp.Data = map[string]any{
			"imageUploaded":    true,
			"compressedSizeKb": math.Round(compressedKB*10) / 10,
		}
	}
	return resp
}

// archiveImage копирует фото в S3. Ошибка не влияет на ход.
func (o *Orchestrator) archiveImage(ctx context.Context, sessionHash string, data []byte) {
	if o.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, archiveTimeout)
	defer cancel()

	objectKey, err := o.archive.PutImage(ctx, sessionHash, data, http.DetectContentType(data))
	if err != nil {
		utils.Warn("Image archive failed", "session", sessionHash, "error", err)
		return
	}
	utils.Debug("Image archived", "session", sessionHash, "key", objectKey)
}

func tooLarge(limitMB int) ChatResponse {
	return ChatResponse{
		Response: fmt.Sprintf("Error: Image too large. Maximum size is %dMB.", limitMB),
		Action:   ActionError,
		Data:     map[string]any{},
	}
}
