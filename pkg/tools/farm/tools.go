package farm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ilkoid/agribot/pkg/catalog"
	"github.com/ilkoid/agribot/pkg/classifier"
	"github.com/ilkoid/agribot/pkg/imageprep"
	"github.com/ilkoid/agribot/pkg/session"
	"github.com/ilkoid/agribot/pkg/tools"
	"github.com/ilkoid/agribot/pkg/utils"
)

// New создаёт инструмент по имени. Неизвестное имя: ошибка.
func New(name Name, gw catalog.Gateway) (tools.Tool, error) {
	switch name {
	case GetFarmerProducts:
		return &GetFarmerProductsTool{catalog: gw}, nil
	case CreateProduct:
		return &CreateProductTool{catalog: gw}, nil
	case UpdateProductQuantity:
		return &UpdateProductQuantityTool{catalog: gw}, nil
	case SearchProducts:
		return &SearchProductsTool{catalog: gw}, nil
	case CategorizeProduct:
		return &CategorizeProductTool{}, nil
	case UpdateProductImage:
		return &UpdateProductImageTool{catalog: gw}, nil
	default:
		return nil, fmt.Errorf("%w: '%s'", tools.ErrUnknownTool, name)
	}
}

// NewRegistry регистрирует все инструменты фермера в новом реестре.
func NewRegistry(gw catalog.Gateway) (*tools.Registry, error) {
	r := tools.NewRegistry()
	for _, name := range Names() {
		t, err := New(name, gw)
		if err != nil {
			return nil, err
		}
		if err := r.Register(t); err != nil {
			return nil, fmt.Errorf("register %s: %w", name, err)
		}
	}
	return r, nil
}

func stringProp(description string) map[string]any {
	return map[string]any{
		"type":        "string",
		"description": description,
	}
}

// === get_farmer_products ===

// GetFarmerProductsTool: список товаров текущего фермера.
type GetFarmerProductsTool struct {
	catalog catalog.Gateway
}

func (t *GetFarmerProductsTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        string(GetFarmerProducts),
		Description: "Get all products belonging to the currently authenticated farmer.",
		Parameters: tools.JSONSchema{
			"type":       "object",
			"properties": map[string]any{},
			"required":   []string{},
		},
	}
}

func (t *GetFarmerProductsTool) Execute(ctx context.Context, sess session.Handle, _ string) (string, error) {
	token := sess.Token()
	if token == "" {
		return msgNoToken, nil
	}

	products, err := t.catalog.ListMine(ctx, token)
	if err != nil {
		return catalogFailure(err, "", "fetching products"), nil
	}
	return renderMyProducts(products), nil
}

// === create_product ===

// CreateProductTool: новая позиция в каталоге.
//
// Забирает ожидающее фото сессии и прикладывает его data-uri.
type CreateProductTool struct {
	catalog catalog.Gateway
}

func (t *CreateProductTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        string(CreateProduct),
		Description: "Create a new product listing for the farmer.",
		Parameters: tools.JSONSchema{
			"type": "object",
			"properties": map[string]any{
				"product_name": stringProp("Name of the product"),
				"quantity":     stringProp("Quantity available in kg/units (number as string)"),
				"price":        stringProp("Price per kg/unit in rupees (number as string)"),
				"description":  stringProp("Brief description"),
				"category":     stringProp("Category: Vegetables, Fruits, Grains, Pulses, Dairy, Spices, Oils, Others"),
			},
			"required": []string{"product_name", "quantity", "price"},
		},
	}
}

func (t *CreateProductTool) Execute(ctx context.Context, sess session.Handle, argsJSON string) (string, error) {
	var args struct {
		ProductName string     `json:"product_name"`
		Quantity    FlexString `json:"quantity"`
		Price       FlexString `json:"price"`
		Description string     `json:"description"`
		Category    string     `json:"category"`
	}
	if err := decodeArgs(argsJSON, &args); err != nil {
		return "", err
	}

	token := sess.Token()
	if token == "" {
		return msgNoToken, nil
	}

	name := strings.TrimSpace(args.ProductName)
	if name == "" {
		return msgEmptyName, nil
	}

	qty, msg := parsePositiveInt(args.Quantity, "Quantity", maxQuantity)
	if msg != "" {
		return msg, nil
	}
	price, msg := parsePositiveInt(args.Price, "Price", maxPrice)
	if msg != "" {
		return msg, nil
	}

	category := strings.TrimSpace(args.Category)
	switch {
	case category == "":
		category = classifier.Categorize(name)
	case !classifier.IsValid(category):
		utils.Warn("Invalid category, defaulting to Others", "category", category)
		category = classifier.Others
	}

	description := strings.TrimSpace(args.Description)
	if description == "" {
		description = fmt.Sprintf("Fresh %s directly from farm", name)
	}

	payload := catalog.NewProduct{
		ProductName: name,
		Quantity:    qty,
		Price:       price,
		Description: description,
		Category:    category,
	}

	img, withImage := sess.TakePendingImage()
	if withImage {
		payload.Image = imageprep.DataURI(img)
		utils.Info("Using uploaded image for new product", "session", sess.Hash())
	}

	res, err := t.catalog.Create(ctx, token, payload)
	if err != nil {
		return catalogFailure(err, msgCreateDenied, "creating product"), nil
	}
	if !res.Success {
		reason := res.Message
		if reason == "" {
			reason = "Unknown error"
		}
		return fmt.Sprintf("Error: Failed to create product: %s", reason), nil
	}

	return renderCreated(name, qty, price, withImage), nil
}

// === update_product_quantity ===

// UpdateProductQuantityTool: пополнение остатка существующего товара.
//
// Новое значение считается на клиенте (текущее + добавка) и отправляется
// как абсолютное. Без compare-and-swap: два параллельных пополнения
// одного товара могут потерять одно из них.
type UpdateProductQuantityTool struct {
	catalog catalog.Gateway
}

func (t *UpdateProductQuantityTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        string(UpdateProductQuantity),
		Description: "Update quantity of an existing product.",
		Parameters: tools.JSONSchema{
			"type": "object",
			"properties": map[string]any{
				"product_name":    stringProp("Name of the product to update"),
				"quantity_to_add": stringProp("Quantity to add (number as string)"),
			},
			"required": []string{"product_name", "quantity_to_add"},
		},
	}
}

func (t *UpdateProductQuantityTool) Execute(ctx context.Context, sess session.Handle, argsJSON string) (string, error) {
	var args struct {
		ProductName   string     `json:"product_name"`
		QuantityToAdd FlexString `json:"quantity_to_add"`
	}
	if err := decodeArgs(argsJSON, &args); err != nil {
		return "", err
	}

	token := sess.Token()
	if token == "" {
		return msgNoToken, nil
	}

	add, msg := parsePositiveInt(args.QuantityToAdd, "Quantity to add", maxQuantityToAdd)
	if msg != "" {
		return msg, nil
	}

	products, err := t.catalog.ListMine(ctx, token)
	if err != nil {
		return catalogFailure(err, "", "updating product"), nil
	}

	product, ok := catalog.FindByName(products, strings.TrimSpace(args.ProductName))
	if !ok {
		return renderNotFound(args.ProductName), nil
	}

	newQty := product.Quantity + catalog.Number(add)
	if err := t.catalog.Update(ctx, token, product.ID, catalog.Patch{Quantity: &newQty}); err != nil {
		return catalogFailure(err, msgUpdateDenied, "updating product"), nil
	}

	return fmt.Sprintf("✅ Updated %s! Added %d units. New total: %s units.", args.ProductName, add, newQty), nil
}

// === search_products ===

// SearchProductsTool: поиск по всему маркетплейсу. Токен необязателен.
type SearchProductsTool struct {
	catalog catalog.Gateway
}

func (t *SearchProductsTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        string(SearchProducts),
		Description: "Search for products in the marketplace.",
		Parameters: tools.JSONSchema{
			"type": "object",
			"properties": map[string]any{
				"query": stringProp("Search term"),
			},
			"required": []string{"query"},
		},
	}
}

func (t *SearchProductsTool) Execute(ctx context.Context, sess session.Handle, argsJSON string) (string, error) {
	var args struct {
		Query string `json:"query"`
	}
	if err := decodeArgs(argsJSON, &args); err != nil {
		return "", err
	}

	query := strings.TrimSpace(args.Query)
	if query == "" {
		return msgEmptyQuery, nil
	}

	products, err := t.catalog.SearchPublic(ctx, query, sess.Token())
	if err != nil {
		return catalogFailure(err, "", "searching products"), nil
	}
	return renderSearch(query, products), nil
}

// === categorize_product ===

// CategorizeProductTool: категория по названию, без сети.
type CategorizeProductTool struct{}

func (t *CategorizeProductTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        string(CategorizeProduct),
		Description: "Determine category for a product.",
		Parameters: tools.JSONSchema{
			"type": "object",
			"properties": map[string]any{
				"product_name": stringProp("Product name"),
			},
			"required": []string{"product_name"},
		},
	}
}

func (t *CategorizeProductTool) Execute(_ context.Context, _ session.Handle, argsJSON string) (string, error) {
	var args struct {
		ProductName string `json:"product_name"`
	}
	if err := decodeArgs(argsJSON, &args); err != nil {
		return "", err
	}
	return classifier.Categorize(args.ProductName), nil
}

// === update_product_image ===

// UpdateProductImageTool: заменяет фото существующего товара ожидающим фото сессии.
type UpdateProductImageTool struct {
	catalog catalog.Gateway
}

func (t *UpdateProductImageTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        string(UpdateProductImage),
		Description: "Update the image for an existing product. Use when farmer uploads a photo to update their product image.",
		Parameters: tools.JSONSchema{
			"type": "object",
			"properties": map[string]any{
				"product_name": stringProp("Name of the product to update image for"),
			},
			"required": []string{"product_name"},
		},
	}
}

func (t *UpdateProductImageTool) Execute(ctx context.Context, sess session.Handle, argsJSON string) (string, error) {
	var args struct {
		ProductName string `json:"product_name"`
	}
	if err := decodeArgs(argsJSON, &args); err != nil {
		return "", err
	}

	token := sess.Token()
	if token == "" {
		return msgNoToken, nil
	}

	img, ok := sess.TakePendingImage()
	if !ok {
		return msgNoPendingImage, nil
	}

	products, err := t.catalog.ListMine(ctx, token)
	if err != nil {
		return catalogFailure(err, "", "updating product image"), nil
	}

	product, found := catalog.FindByName(products, strings.TrimSpace(args.ProductName))
	if !found {
		return renderNotFound(args.ProductName) + " Please check the name.", nil
	}

	if err := t.catalog.Update(ctx, token, product.ID, catalog.Patch{Image: imageprep.DataURI(img)}); err != nil {
		return catalogFailure(err, msgUpdateDenied, "updating product image"), nil
	}

	utils.Info("Image updated", "session", sess.Hash(), "product_id", product.ID)
	return fmt.Sprintf("✅ Successfully updated image for %s!", args.ProductName), nil
}
