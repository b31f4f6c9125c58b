// Package classifier определяет категорию товара по его названию.
//
// Правила проверяются в фиксированном порядке, первое совпадение побеждает.
// Ключевые слова: английские и тамильские названия.
package classifier

import "strings"

// Категории каталога.
const (
	Vegetables = "Vegetables"
	Fruits     = "Fruits"
	Grains     = "Grains"
	Pulses     = "Pulses"
	Dairy      = "Dairy"
	Spices     = "Spices"
	Oils       = "Oils"
	Others     = "Others"
)

// Rule связывает категорию со списком ключевых слов (в нижнем регистре).
type Rule struct {
	Category string
	Keywords []string
}

// Engine выполняет классификацию по упорядоченному списку правил.
type Engine struct {
	rules []Rule
}

// New создаёт Engine. Порядок rules определяет приоритет.
func New(rules []Rule) *Engine {
	return &Engine{rules: rules}
}

// Categorize возвращает категорию для названия товара.
//
// Совпадение: ключевое слово входит в название ИЛИ название входит в ключевое слово
// (без учёта регистра, пробелы по краям отбрасываются). "Others": если ничего не подошло.
func (e *Engine) Categorize(productName string) string {
	name := strings.ToLower(strings.TrimSpace(productName))
	if name == "" {
		// Пустая строка: подстрока любого слова
		return Others
	}

	for _, rule := range e.rules {
		for _, keyword := range rule.Keywords {
			if strings.Contains(name, keyword) || strings.Contains(keyword, name) {
				return rule.Category
			}
		}
	}

	return Others
}

var defaultEngine = New(DefaultRules())

// Categorize классифицирует через встроенный набор правил.
func Categorize(productName string) string {
	return defaultEngine.Categorize(productName)
}

// Categories возвращает все восемь категорий в порядке проверки.
func Categories() []string {
	return []string{Vegetables, Fruits, Grains, Pulses, Dairy, Spices, Oils, Others}
}

// IsValid сообщает, является ли строка одной из категорий каталога.
// Сравнение точное, как в product service.
func IsValid(category string) bool {
	for _, c := range Categories() {
		if c == category {
			return true
		}
	}
	return false
}

// DefaultRules возвращает встроенную таблицу ключевых слов.
func DefaultRules() []Rule {
	return []Rule{
		{Category: Vegetables, Keywords: []string{
			"tomato", "onion", "potato", "carrot", "brinjal", "cabbage", "cauliflower",
			"beans", "peas", "spinach", "ladyfinger", "okra", "drumstick", "bitter gourd",
			"bottle gourd", "cucumber", "radish", "beetroot", "green chilli", "capsicum",
			"தக்காளி", "வெங்காயம்", "உருளைக்கிழங்கு", "கேரட்", "கத்திரிக்காய்",
		}},
		{Category: Fruits, Keywords: []string{
			"mango", "banana", "apple", "orange", "grapes", "papaya", "guava", "pomegranate",
			"watermelon", "pineapple", "coconut", "lemon", "lime", "jackfruit",
			"மாம்பழம்", "வாழைப்பழம்", "ஆப்பிள்", "ஆரஞ்சு", "திராட்சை",
		}},
		{Category: Grains, Keywords: []string{
			"rice", "wheat", "maize", "corn", "millet", "barley", "oats", "ragi",
			"jowar", "bajra", "quinoa",
			"அரிசி", "கோதுமை", "சோளம்", "கேழ்வரகு",
		}},
		{Category: Pulses, Keywords: []string{
			"dal", "lentil", "chickpea", "chana", "moong", "urad", "toor", "masoor",
			"rajma", "kidney bean", "black gram", "green gram",
			"பருப்பு", "கடலை",
		}},
		{Category: Dairy, Keywords: []string{
			"milk", "curd", "yogurt", "butter", "ghee", "cheese", "paneer", "cream",
			"பால்", "தயிர்", "நெய்",
		}},
		{Category: Spices, Keywords: []string{
			"turmeric", "chilli", "pepper", "cardamom", "cinnamon", "clove", "cumin",
			"coriander", "mustard", "fenugreek", "ginger", "garlic",
			"மஞ்சள்", "மிளகு", "இஞ்சி", "பூண்டு",
		}},
		{Category: Oils, Keywords: []string{
			"groundnut oil", "coconut oil", "sesame oil", "mustard oil", "sunflower oil",
			"olive oil", "palm oil",
			"நல்லெண்ணெய்", "தேங்காய் எண்ணெய்",
		}},
	}
}
