// Package utils предоставляет вспомогательные функции для graceful shutdown.
//
// Graceful Shutdown: корректное завершение сервиса при получении сигнала:
//   - SIGINT (Ctrl+C)
//   - SIGTERM (kill, остановка контейнера)
//
// Использование:
//
//	ctx, shutdown := utils.SetupGracefulShutdownWithContext()
//	defer shutdown()
package utils

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// SetupGracefulShutdown вызывает cancel при первом SIGINT/SIGTERM.
//
// Возвращает функцию очистки: снимает обработчик сигналов и закрывает лог.
// Функцию следует вызвать через defer.
func SetupGracefulShutdown(cancel context.CancelFunc) func() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sigChan:
			Info("Received signal, shutting down gracefully", "signal", sig.String())
			cancel()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigChan)
		close(done)
		Close()
	}
}

// SetupGracefulShutdownWithContext создаёт контекст и настраивает graceful shutdown.
func SetupGracefulShutdownWithContext() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	cleanup := SetupGracefulShutdown(cancel)
	return ctx, func() {
		cleanup()
		cancel()
	}
}
