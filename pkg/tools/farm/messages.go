package farm

import (
	"fmt"
	"strings"

	"github.com/ilkoid/agribot/pkg/catalog"
	"github.com/ilkoid/agribot/pkg/utils"
)

// Тексты результатов. Модель пересказывает их фермеру своими словами.
const (
	msgNoToken        = "Error: No authentication token. Please login first."
	msgAuthFailed     = "Error: Authentication failed. Please login again."
	msgTimeout        = "Error: Server took too long to respond. Please try again."
	msgCreateDenied   = "Error: You don't have permission to create products. Only farmers can add products."
	msgUpdateDenied   = "Error: You can only update your own products."
	msgEmptyName      = "Error: Product name cannot be empty."
	msgEmptyQuery     = "Error: Search query cannot be empty."
	msgNoProducts     = "You have no products listed yet. You can add your first product!"
	msgNoPendingImage = "No image uploaded. Please upload an image first, then ask me to update the product."

	// searchLimit: сколько результатов поиска показывать.
	searchLimit = 5
)

// catalogFailure переводит ошибку каталога в текст для модели.
//
// forbidden: текст для 403 (у create и update он разный), what: глагол
// для прочих сбоев ("fetching products"). Статус и тело ответа уходят
// только в лог: модель не должна пересказывать их фермеру.
func catalogFailure(err error, forbidden, what string) string {
	kind, ok := catalog.KindOf(err)
	if ok {
		switch kind {
		case catalog.KindAuthFailed:
			return msgAuthFailed
		case catalog.KindTimeout:
			return msgTimeout
		case catalog.KindForbidden:
			if forbidden != "" {
				return forbidden
			}
		}
	}
	utils.Warn("Catalog request failed", "operation", what, "error", err)
	return fmt.Sprintf("Error: Problem %s. Please try again later.", what)
}

func renderMyProducts(products []catalog.Product) string {
	if len(products) == 0 {
		return msgNoProducts
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You have %d products:\n", len(products))
	for _, p := range products {
		fmt.Fprintf(&b, "• %s: %s units, ₹%s/unit\n", p.Name, p.Quantity, p.Price)
	}
	return b.String()
}

func renderSearch(query string, products []catalog.Product) string {
	if len(products) == 0 {
		return fmt.Sprintf("No products found matching '%s'.", query)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d products matching '%s':\n", len(products), query)
	for i, p := range products {
		if i == searchLimit {
			break
		}
		owner := p.OwnerName
		if owner == "" {
			owner = "Unknown"
		}
		fmt.Fprintf(&b, "• %s from %s: %s units at ₹%s/unit\n", p.Name, owner, p.Quantity, p.Price)
	}
	return b.String()
}

func renderCreated(name string, qty, price int, withImage bool) string {
	note := ""
	if withImage {
		note = " with your uploaded image"
	}
	return fmt.Sprintf("✅ Successfully created %s%s! Quantity: %d units, Price: ₹%d/unit", name, note, qty, price)
}

func renderNotFound(name string) string {
	return fmt.Sprintf("Could not find product '%s' in your listings.", name)
}
