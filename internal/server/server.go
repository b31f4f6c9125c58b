// Package server: HTTP вход AgriBot.
//
// Маршруты:
//
//	GET  /            статус сервиса
//	GET  /health      health check
//	POST /chat        текстовый ход (JSON)
//	POST /chat/image  ход с фото (multipart: message, language, image)
//	GET  /metrics     Prometheus
//
// Ход всегда отвечает 200 с ChatResponse: ошибки домена уже превращены
// в текст. 400 {detail} только для неразборчивого запроса.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ilkoid/agribot/pkg/agent"
	"github.com/ilkoid/agribot/pkg/config"
	"github.com/ilkoid/agribot/pkg/utils"
)

// Chatter: то, что сервер умеет вызывать. Реализуется *agent.Orchestrator.
type Chatter interface {
	Chat(ctx context.Context, req agent.ChatRequest) agent.ChatResponse
	ChatWithImage(ctx context.Context, req agent.ChatRequest, image []byte) agent.ChatResponse
}

// Deps: зависимости сервера.
type Deps struct {
	Chat Chatter

	// MaxUploadBytes: лимит фото. Тело multipart ограничено удвоенным
	// лимитом, чтобы файл чуть больше лимита получил понятный ответ хода.
	MaxUploadBytes int

	// Observer и Metrics опциональны: без Metrics маршрут /metrics не регистрируется.
	Observer HTTPObserver
	Metrics  http.Handler
}

// Server: HTTP сервер чата.
type Server struct {
	cfg    config.ServerConfig
	deps   Deps
	port   int
	router chi.Router
}

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second

	// multipartMemory: сколько multipart держать в памяти до временных файлов.
	multipartMemory = 32 << 20
)

// New собирает роутер с middleware.
func New(cfg config.ServerConfig, deps Deps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		port: portOf(cfg.Addr),
	}

	r := chi.NewRouter()
	r.Use(recoverer)
	r.Use(requestID)
	r.Use(chimw.RealIP)
	r.Use(cors(cfg.CORSOrigins))
	r.Use(observe(deps.Observer))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(rateLimit(cfg.RateLimit))
		r.Post("/chat", s.handleChat)
		r.Post("/chat/image", s.handleChatImage)
	})

	s.router = r
	return s
}

// Handler: корневой http.Handler (для тестов и встраивания).
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run слушает cfg.Addr до отмены ctx, затем корректно останавливается.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		utils.Info("HTTP server listening", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	utils.Info("HTTP server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func portOf(addr string) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	port, _ := strconv.Atoi(portStr)
	return port
}
