// Package imageprep проверяет и сжимает фото товаров перед отправкой в каталог.
//
// Сжатие: если файл больше цели: приводим к RGB, уменьшаем длинную сторону до
// MaxDimension (Lanczos3) и бинарным поиском подбираем JPEG качество.
// Сжатие никогда не "падает": худший случай: минимальное качество.
package imageprep

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif" // Регистрируем GIF декодер
	"image/jpeg"
	_ "image/png" // Регистрируем PNG декодер
	"net/http"
	"strings"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/webp" // Телефоны часто отдают WebP

	"github.com/ilkoid/agribot/pkg/utils"
)

const (
	// MB: мегабайт в байтах.
	MB = 1024 * 1024

	// initialQuality: первая проба поиска качества.
	initialQuality = 85

	// acceptRatio: результат в (acceptRatio*target, target] принимается сразу.
	acceptRatio = 0.8
)

var (
	// ErrInvalidImage: байты не являются корректным растровым изображением.
	ErrInvalidImage = errors.New("invalid image")

	// ErrUploadTooLarge: входящий файл больше жёсткого лимита загрузки.
	ErrUploadTooLarge = errors.New("image upload too large")
)

// Options: параметры сжатия.
type Options struct {
	TargetBytes  int // Цель по размеру
	MaxDimension int // Длинная сторона после ресайза
	MinQuality   int
	MaxQuality   int
	MaxProbes    int
	MaxPixels    int // Лимит ширина*высота до полного декодирования
}

// DefaultMaxPixels: около 50 мегапикселей, с запасом для камер телефонов.
const DefaultMaxPixels = 50_000_000

// DefaultOptions: 2MB, 1920px, качество [10, 95], 8 проб, 50MP.
func DefaultOptions() Options {
	return Options{
		TargetBytes:  2 * MB,
		MaxDimension: 1920,
		MinQuality:   10,
		MaxQuality:   95,
		MaxProbes:    8,
		MaxPixels:    DefaultMaxPixels,
	}
}

// Validate проверяет что data: корректное изображение не больше maxPixels
// (maxPixels <= 0 означает DefaultMaxPixels).
//
// Размер холста проверяется по заголовку до декодирования: маленький файл
// может объявить огромный холст.
// Ошибка оборачивает ErrInvalidImage и содержит причину декодера.
func Validate(data []byte, maxPixels int) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty data", ErrInvalidImage)
	}
	if err := checkPixels(data, maxPixels); err != nil {
		return err
	}
	// Полное декодирование ловит обрезанные файлы с валидным заголовком
	if _, _, err := image.Decode(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return nil
}

func checkPixels(data []byte, maxPixels int) error {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > int64(maxPixels) {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrInvalidImage, cfg.Width, cfg.Height, maxPixels)
	}
	return nil
}

// CheckUpload проверяет жёсткий лимит входящего файла.
func CheckUpload(data []byte, maxBytes int) error {
	if maxBytes > 0 && len(data) > maxBytes {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrUploadTooLarge, len(data), maxBytes)
	}
	return nil
}

// Compress ужимает изображение до opts.TargetBytes.
//
// Возвращает:
//   - data без изменений и true, если уже не больше цели
//   - JPEG и true после сжатия (в т.ч. fallback на минимальное качество)
//   - data без изменений и false, если декодирование или кодирование не удалось
func Compress(data []byte, opts Options) ([]byte, bool) {
	opts = opts.withDefaults()
	originalSize := len(data)

	if originalSize <= opts.TargetBytes {
		utils.Debug("Image already under target size", "size_kb", originalSize/1024)
		return data, true
	}

	if err := checkPixels(data, opts.MaxPixels); err != nil {
		utils.Error("Image compression failed", "stage", "bounds", "error", err)
		return data, false
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		utils.Error("Image compression failed", "stage", "decode", "error", err)
		return data, false
	}

	img = toRGB(img)
	img = fitDimension(img, opts.MaxDimension)

	var best []byte
	quality := initialQuality
	if quality > opts.MaxQuality || quality < opts.MinQuality {
		quality = (opts.MinQuality + opts.MaxQuality) / 2
	}
	low, high := opts.MinQuality, opts.MaxQuality

	for i := 0; i < opts.MaxProbes; i++ {
		encoded, err := encodeJPEG(img, quality)
		if err != nil {
			utils.Error("Image compression failed", "stage", "encode", "quality", quality, "error", err)
			return data, false
		}

		size := len(encoded)
		utils.Debug("Compression probe", "quality", quality, "size_kb", size/1024)

		if size <= opts.TargetBytes {
			best = encoded
			if float64(size) > float64(opts.TargetBytes)*acceptRatio {
				break
			}
			low = quality
		} else {
			high = quality
		}

		next := (low + high) / 2
		if next == quality {
			break
		}
		quality = next
	}

	if best != nil {
		utils.Info("Compressed image",
			"format", format,
			"original_kb", originalSize/1024,
			"compressed_kb", len(best)/1024)
		return best, true
	}

	// Последний шанс: минимальное качество
	encoded, err := encodeJPEG(img, opts.MinQuality)
	if err != nil {
		utils.Error("Image compression failed", "stage", "encode", "quality", opts.MinQuality, "error", err)
		return data, false
	}
	if len(encoded) > originalSize {
		// Сжатие не должно увеличивать файл
		return data, true
	}
	utils.Warn("Used minimum quality, result may be low quality",
		"original_kb", originalSize/1024,
		"compressed_kb", len(encoded)/1024)
	return encoded, true
}

// DataURI кодирует изображение в data-uri для поля image каталога.
func DataURI(data []byte) string {
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/jpeg"
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data))
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.TargetBytes <= 0 {
		o.TargetBytes = def.TargetBytes
	}
	if o.MaxDimension <= 0 {
		o.MaxDimension = def.MaxDimension
	}
	if o.MinQuality <= 0 {
		o.MinQuality = def.MinQuality
	}
	if o.MaxQuality <= 0 || o.MaxQuality > 100 {
		o.MaxQuality = def.MaxQuality
	}
	if o.MaxProbes <= 0 {
		o.MaxProbes = def.MaxProbes
	}
	if o.MaxPixels <= 0 {
		o.MaxPixels = def.MaxPixels
	}
	return o
}

// toRGB сводит изображение к непрозрачному RGB (прозрачность: на белом фоне).
func toRGB(img image.Image) image.Image {
	switch img.(type) {
	case *image.YCbCr, *image.Gray:
		return img
	}

	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

// fitDimension уменьшает изображение пропорционально, если длинная сторона больше maxDim.
func fitDimension(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	longest := w
	if h > longest {
		longest = h
	}
	if longest <= maxDim {
		return img
	}

	ratio := float64(maxDim) / float64(longest)
	newW := uint(float64(w) * ratio)
	newH := uint(float64(h) * ratio)
	if newW == 0 {
		newW = 1
	}
	if newH == 0 {
		newH = 1
	}

	utils.Debug("Resizing image", "from_w", w, "from_h", h, "to_w", newW, "to_h", newH)
	return resize.Resize(newW, newH, img, resize.Lanczos3)
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
