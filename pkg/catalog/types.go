package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Number: числовое поле каталога.
//
// Product service отдаёт числа то числом, то строкой ("40"), поэтому
// декодер принимает оба варианта. null и пустая строка дают 0.
type Number float64

// UnmarshalJSON принимает число или числовую строку.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("catalog number %q: %w", s, err)
		}
		*n = Number(f)
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

// String форматирует число без лишних нулей: 40, 12.5.
func (n Number) String() string {
	return strconv.FormatFloat(float64(n), 'f', -1, 64)
}

// Product: товар из product service.
type Product struct {
	ID        string
	Name      string
	Quantity  Number // currentQuantity, иначе quantity
	Price     Number
	OwnerName string
	Category  string
}

// UnmarshalJSON разбирает товар с учётом альтернативных имён полей.
func (p *Product) UnmarshalJSON(data []byte) error {
	var raw struct {
		MongoID         string  `json:"_id"`
		ID              string  `json:"id"`
		ProductName     *string `json:"productName"`
		Name            string  `json:"name"`
		CurrentQuantity *Number `json:"currentQuantity"`
		Quantity        Number  `json:"quantity"`
		Price           Number  `json:"price"`
		OwnerName       string  `json:"ownerName"`
		Category        string  `json:"category"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	p.ID = raw.MongoID
	if p.ID == "" {
		p.ID = raw.ID
	}
	p.Name = raw.Name
	if raw.ProductName != nil {
		p.Name = *raw.ProductName
	}
	p.Quantity = raw.Quantity
	if raw.CurrentQuantity != nil {
		p.Quantity = *raw.CurrentQuantity
	}
	p.Price = raw.Price
	p.OwnerName = raw.OwnerName
	p.Category = raw.Category
	return nil
}

// ProductList: ответ GET /my-products и GET ?search=.
type ProductList struct {
	Products []Product `json:"products"`
}

// NewProduct: тело POST {base}.
type NewProduct struct {
	ProductName string `json:"productName"`
	Quantity    int    `json:"quantity"`
	Price       int    `json:"price"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Image       string `json:"image,omitempty"` // data-uri
}

// Patch: частичное обновление PUT {base}/{id}.
// Пустые поля не отправляются.
type Patch struct {
	Quantity *Number `json:"quantity,omitempty"`
	Image    string  `json:"image,omitempty"`
}

// MarshalJSON пишет Number как обычное JSON число.
func (n Number) MarshalJSON() ([]byte, error) {
	return []byte(n.String()), nil
}

// CreateResult: конверт ответа на создание товара.
type CreateResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// FindByName ищет товар по имени без учёта регистра.
// При дубликатах побеждает первый в порядке ответа сервиса.
func FindByName(products []Product, name string) (Product, bool) {
	target := strings.ToLower(name)
	for _, p := range products {
		if strings.ToLower(p.Name) == target {
			return p, true
		}
	}
	return Product{}, false
}
