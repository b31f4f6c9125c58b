// Package utils предоставляет общий логгер приложения.
//
// API оставлен в стиле key/value: utils.Info("msg", "key", value, ...).
// Под капотом: zerolog, JSON строки в stdout или в файл.
// До вызова InitLogger сообщения отбрасываются (удобно для тестов).
package utils

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LoggerConfig: параметры логгера.
type LoggerConfig struct {
	Level   string    // "debug", "info", ... (пусто = info)
	File    string    // Путь к лог файлу (пусто = Output)
	Output  io.Writer // По умолчанию os.Stdout
	Service string    // Имя сервиса в каждой записи
}

var (
	logMutex sync.RWMutex
	base     = zerolog.Nop()
	logFile  *os.File
)

// InitLogger настраивает глобальный логгер.
//
// Повторный вызов переоткрывает вывод (старый файл закрывается).
func InitLogger(cfg LoggerConfig) error {
	logMutex.Lock()
	defer logMutex.Unlock()

	level := zerolog.InfoLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	writer := cfg.Output
	if writer == nil {
		writer = os.Stdout
	}

	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		closeFileLocked()
		logFile = f
		writer = f
	}

	service := cfg.Service
	if service == "" {
		service = "agribot"
	}

	zerolog.TimeFieldFormat = time.RFC3339
	base = zerolog.New(writer).Level(level).With().
		Timestamp().
		Str("service", service).
		Logger()

	return nil
}

// Info - информационное сообщение.
func Info(msg string, keyvals ...any) {
	log(zerolog.InfoLevel, msg, keyvals...)
}

// Error - сообщение об ошибке.
func Error(msg string, keyvals ...any) {
	log(zerolog.ErrorLevel, msg, keyvals...)
}

// Debug - отладочное сообщение.
func Debug(msg string, keyvals ...any) {
	log(zerolog.DebugLevel, msg, keyvals...)
}

// Warn - предупреждение.
func Warn(msg string, keyvals ...any) {
	log(zerolog.WarnLevel, msg, keyvals...)
}

// log - внутренняя функция записи в лог.
//
// Нечётный хвост keyvals пишется под ключом "extra".
func log(level zerolog.Level, msg string, keyvals ...any) {
	logMutex.RLock()
	l := base
	logMutex.RUnlock()

	event := l.WithLevel(level)
	if event == nil {
		return
	}

	for i := 0; i < len(keyvals); i += 2 {
		if i+1 >= len(keyvals) {
			event = event.Interface("extra", keyvals[i])
			break
		}
		key := fmt.Sprint(keyvals[i])
		switch v := keyvals[i+1].(type) {
		case error:
			event = event.AnErr(key, v)
		case time.Duration:
			event = event.Dur(key, v)
		default:
			event = event.Interface(key, v)
		}
	}

	event.Msg(msg)
}

// Close закрывает лог-файл.
//
// Вызывается через defer в main().
func Close() {
	logMutex.Lock()
	defer logMutex.Unlock()
	closeFileLocked()
	base = zerolog.Nop()
}

func closeFileLocked() {
	if logFile != nil {
		if err := logFile.Close(); err != nil {
			// Логгер уже закрывается, только stderr
			fmt.Fprintf(os.Stderr, "[LOGGER WARNING: Close failed: %v]\n", err)
		}
		logFile = nil
	}
}
