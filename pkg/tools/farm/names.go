// Package farm: инструменты фермера для LLM: товары, остатки, поиск, категории, фото.
//
// Набор закрыт: шесть имён из Names() и конструктор New с полным switch.
// Модель может запросить только эти имена, остальное отвергается
// реестром как tools.ErrUnknownTool.
package farm

// Name: имя инструмента фермера.
type Name string

const (
	GetFarmerProducts     Name = "get_farmer_products"
	CreateProduct         Name = "create_product"
	UpdateProductQuantity Name = "update_product_quantity"
	SearchProducts        Name = "search_products"
	CategorizeProduct     Name = "categorize_product"
	UpdateProductImage    Name = "update_product_image"
)

// Names возвращает все инструменты в порядке объявления для LLM.
func Names() []Name {
	return []Name{
		GetFarmerProducts,
		CreateProduct,
		UpdateProductQuantity,
		SearchProducts,
		CategorizeProduct,
		UpdateProductImage,
	}
}
