package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"

	"github.com/ilkoid/agribot/pkg/utils"
)

// HeaderRequestID: заголовок корреляции запросов.
const HeaderRequestID = "X-Request-ID"

// HTTPObserver получает итог каждого запроса (метрики).
type HTTPObserver interface {
	HTTPRequest(method, route string, status int, elapsed time.Duration)
}

// requestID берёт X-Request-ID клиента или выдаёт новый uuid.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(HeaderRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, reqID)
		next.ServeHTTP(w, r)
	})
}

// recoverer превращает панику обработчика в 500 JSON.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				buf := make([]byte, 8192)
				n := runtime.Stack(buf, false)
				utils.Error("Panic recovered in HTTP handler",
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", w.Header().Get(HeaderRequestID),
					"panic", fmt.Sprint(rec),
					"stack", string(buf[:n]))

				writeJSON(w, http.StatusInternalServerError, errorBody{Detail: "Internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// cors: список origin из конфига, "*" разрешает любой.
//
// С credentials браузер не принимает "*" в ответе, поэтому
// отражается сам Origin запроса.
func cors(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}
	allowAll := allowed["*"]

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowAll || allowed[origin]) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			w.Header().Add("Vary", "Origin")

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				reqHeaders := r.Header.Get("Access-Control-Request-Headers")
				if reqHeaders == "" {
					reqHeaders = "Content-Type, Authorization, " + HeaderRequestID
				}
				w.Header().Set("Access-Control-Allow-Headers", reqHeaders)
				w.Header().Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// rateLimit: скользящее окно в минуту на IP. limit <= 0 выключает лимит.
func rateLimit(limit int) func(http.Handler) http.Handler {
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		limit,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, errorBody{Detail: "Too many requests. Please try again later."})
		}),
	)
}

// observe пишет access log и метрики по шаблону маршрута chi.
func observe(obs HTTPObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			elapsed := time.Since(start)
			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if obs != nil {
				obs.HTTPRequest(r.Method, route, status, elapsed)
			}
			utils.Debug("HTTP request",
				"method", r.Method,
				"route", route,
				"status", status,
				"request_id", ww.Header().Get(HeaderRequestID),
				"duration", elapsed)
		})
	}
}

// bearerToken извлекает токен из "Authorization: Bearer <t>".
// Любой другой формат означает анонимный запрос.
func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, prefix))
}

type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		utils.Warn("Failed to write response", "error", err)
	}
}
