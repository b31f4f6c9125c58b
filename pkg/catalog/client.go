// Package catalog: клиент product service маркетплейса.
//
// Четыре операции: ListMine, Create, Update, SearchPublic. Каждая идёт одной
// попыткой с ограничением по времени; исход классифицируется в *Error
// (AuthFailed, Forbidden, Timeout, Upstream). Повторов нет: что делать с
// ошибкой, решает вызывающий.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ilkoid/agribot/pkg/config"
	"github.com/ilkoid/agribot/pkg/utils"
)

// Операции (метки лимитеров, логов и метрик).
const (
	OpListMine = "list_mine"
	OpCreate   = "create"
	OpUpdate   = "update"
	OpSearch   = "search"
)

// maxResponseBody: защита от гигантских ответов.
const maxResponseBody = 8 << 20

// HTTPClient интерфейс для выполнения HTTP запросов.
//
// Позволяет подменять транспорт в тестах. *http.Client реализует этот интерфейс.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Observer получает исход каждого запроса (для метрик).
// outcome: "ok" или ErrorKind.String().
type Observer func(op, outcome string, elapsed time.Duration)

// Gateway: операции каталога, которыми пользуются инструменты.
type Gateway interface {
	ListMine(ctx context.Context, token string) ([]Product, error)
	Create(ctx context.Context, token string, p NewProduct) (CreateResult, error)
	Update(ctx context.Context, token, productID string, patch Patch) error
	SearchPublic(ctx context.Context, query, token string) ([]Product, error)
}

// Client: HTTP клиент product service.
type Client struct {
	baseURL    string
	timeout    time.Duration
	rateLimit  int
	burst      int
	httpClient HTTPClient
	observer   Observer

	mu       sync.Mutex
	limiters map[string]*rate.Limiter // операция → limiter
}

var _ Gateway = (*Client)(nil)

// Option настраивает Client.
type Option func(*Client)

// WithHTTPClient подменяет HTTP транспорт.
func WithHTTPClient(hc HTTPClient) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithObserver подключает наблюдателя запросов.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// NewFromConfig создает клиент из конфигурации.
//
// Поля с нулевыми значениями берутся из CatalogConfig.GetDefaults().
func NewFromConfig(cfg config.CatalogConfig, opts ...Option) (*Client, error) {
	cfg = cfg.GetDefaults()

	timeout, err := cfg.TimeoutDuration()
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid catalog.base_url %q", cfg.BaseURL)
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    timeout,
		rateLimit:  cfg.RateLimit,
		burst:      cfg.BurstLimit,
		httpClient: &http.Client{},
		limiters:   make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ListMine возвращает товары владельца токена. GET {base}/my-products.
func (c *Client) ListMine(ctx context.Context, token string) ([]Product, error) {
	var list ProductList
	if err := c.do(ctx, OpListMine, http.MethodGet, c.baseURL+"/my-products", token, nil, &list); err != nil {
		return nil, err
	}
	return list.Products, nil
}

// Create создаёт товар. POST {base}.
func (c *Client) Create(ctx context.Context, token string, p NewProduct) (CreateResult, error) {
	var res CreateResult
	if err := c.do(ctx, OpCreate, http.MethodPost, c.baseURL, token, p, &res); err != nil {
		return CreateResult{}, err
	}
	return res, nil
}

// Update частично обновляет товар. PUT {base}/{id}.
//
// Обновление: установка значения, а не инкремент.
func (c *Client) Update(ctx context.Context, token, productID string, patch Patch) error {
	if productID == "" {
		return &Error{Op: OpUpdate, Kind: KindUpstream, Err: errors.New("empty product id")}
	}
	return c.do(ctx, OpUpdate, http.MethodPut, c.baseURL+"/"+url.PathEscape(productID), token, patch, nil)
}

// SearchPublic ищет товары всех продавцов. GET {base}?search=<q>.
// Токен необязателен.
func (c *Client) SearchPublic(ctx context.Context, query, token string) ([]Product, error) {
	params := url.Values{}
	params.Set("search", strings.TrimSpace(query))

	var list ProductList
	if err := c.do(ctx, OpSearch, http.MethodGet, c.baseURL+"?"+params.Encode(), token, nil, &list); err != nil {
		return nil, err
	}
	return list.Products, nil
}

// do выполняет один запрос: лимитер, таймаут, классификация исхода.
func (c *Client) do(ctx context.Context, op, method, rawURL, token string, body, dest any) (err error) {
	start := time.Now()
	defer func() {
		c.observe(op, err, time.Since(start))
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter(op).Wait(ctx); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return &Error{Op: op, Kind: KindUpstream, Err: ctx.Err()}
		}
		// Ожидание упирается в дедлайн запроса
		return &Error{Op: op, Kind: KindTimeout, Err: fmt.Errorf("rate limiter wait: %w", err)}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s body: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return &Error{Op: op, Kind: KindUpstream, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return transportError(op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		utils.Debug("Catalog request rejected", "op", op, "status", resp.StatusCode)
		return statusError(op, resp.StatusCode, respBody)
	}

	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, dest); err != nil {
		return &Error{Op: op, Kind: KindUpstream, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) observe(op string, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		kind, _ := KindOf(err)
		outcome = kind.String()
		utils.Warn("Catalog request failed", "op", op, "outcome", outcome, "error", err, "elapsed", elapsed)
	} else {
		utils.Debug("Catalog request ok", "op", op, "elapsed", elapsed)
	}
	if c.observer != nil {
		c.observer(op, outcome, elapsed)
	}
}

// limiter возвращает limiter операции, создавая при первом обращении.
// rateLimit задан в запросах в минуту.
func (c *Client) limiter(op string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	if l, ok := c.limiters[op]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(float64(c.rateLimit)/60.0), c.burst)
	c.limiters[op] = l
	return l
}
