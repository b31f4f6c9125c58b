// Package catalogtest: фейковый каталог для тестов инструментов и агента.
package catalogtest

import (
	"context"
	"strings"
	"sync"

	"github.com/ilkoid/agribot/pkg/catalog"
)

// Call: записанный вызов Gateway.
type Call struct {
	Op      string
	Token   string
	ID      string
	Query   string
	Product catalog.NewProduct
	Patch   catalog.Patch
}

// Spy: in-memory catalog.Gateway, записывающий все вызовы.
//
// Products: товары фермера (ListMine) и маркетплейса (SearchPublic по подстроке).
// Err<Op> задают ошибку операции.
type Spy struct {
	mu sync.Mutex

	Products     []catalog.Product
	CreateResult catalog.CreateResult

	ListErr   error
	CreateErr error
	UpdateErr error
	SearchErr error

	calls []Call
}

var _ catalog.Gateway = (*Spy)(nil)

// NewSpy создаёт шпиона с успешным ответом на Create.
func NewSpy(products ...catalog.Product) *Spy {
	return &Spy{
		Products:     products,
		CreateResult: catalog.CreateResult{Success: true, Message: "Product created"},
	}
}

func (s *Spy) record(c Call) {
	s.calls = append(s.calls, c)
}

// Calls возвращает копию журнала вызовов.
func (s *Spy) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallCount: число вызовов всех операций.
func (s *Spy) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// Last возвращает последний вызов операции op.
func (s *Spy) Last(op string) (Call, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.calls) - 1; i >= 0; i-- {
		if s.calls[i].Op == op {
			return s.calls[i], true
		}
	}
	return Call{}, false
}

func (s *Spy) ListMine(_ context.Context, token string) ([]catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(Call{Op: catalog.OpListMine, Token: token})
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	return append([]catalog.Product(nil), s.Products...), nil
}

func (s *Spy) Create(_ context.Context, token string, p catalog.NewProduct) (catalog.CreateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(Call{Op: catalog.OpCreate, Token: token, Product: p})
	if s.CreateErr != nil {
		return catalog.CreateResult{}, s.CreateErr
	}
	if s.CreateResult.Success {
		s.Products = append(s.Products, catalog.Product{
			ID:       "new-" + p.ProductName,
			Name:     p.ProductName,
			Quantity: catalog.Number(p.Quantity),
			Price:    catalog.Number(p.Price),
			Category: p.Category,
		})
	}
	return s.CreateResult, nil
}

func (s *Spy) Update(_ context.Context, token, productID string, patch catalog.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(Call{Op: catalog.OpUpdate, Token: token, ID: productID, Patch: patch})
	if s.UpdateErr != nil {
		return s.UpdateErr
	}
	for i := range s.Products {
		if s.Products[i].ID == productID && patch.Quantity != nil {
			s.Products[i].Quantity = *patch.Quantity
		}
	}
	return nil
}

func (s *Spy) SearchPublic(_ context.Context, query, token string) ([]catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(Call{Op: catalog.OpSearch, Token: token, Query: query})
	if s.SearchErr != nil {
		return nil, s.SearchErr
	}
	var out []catalog.Product
	q := strings.ToLower(query)
	for _, p := range s.Products {
		if strings.Contains(strings.ToLower(p.Name), q) {
			out = append(out, p)
		}
	}
	return out, nil
}
