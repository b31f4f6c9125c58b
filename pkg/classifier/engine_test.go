package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		name     string
		product  string
		expected string
	}{
		{"plural english", "tomatoes", Vegetables},
		{"mixed case", "Fresh ONION", Vegetables},
		{"fruit", "Alphonso Mango", Fruits},
		{"grain", "Basmati Rice", Grains},
		{"pulse", "Toor Dal", Pulses},
		{"dairy", "Paneer", Dairy},
		{"spice", "Turmeric powder", Spices},
		{"oil", "Sesame oil", Oils},
		{"tamil vegetable", "தக்காளி", Vegetables},
		{"tamil grain", "அரிசி", Grains},
		{"name inside keyword", "gourd", Vegetables},
		{"unknown", "Honey", Others},
		{"blank", "   ", Others},
		// Пробелы по краям не мешают обратному совпадению "название в слове"
		{"padded", "oil ", Oils},
		// Первое совпадение побеждает: "coconut" из Fruits раньше "coconut oil"
		{"first match wins", "coconut oil", Fruits},
		{"green chilli before spices", "green chilli", Vegetables},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Categorize(tt.product))
		})
	}
}

func TestCategorize_TotalAndDeterministic(t *testing.T) {
	inputs := []string{"", "x", "🍅", "rice rice rice", "Organic Cold-Pressed Groundnut Oil", "12345", "ஆ"}

	for _, in := range inputs {
		first := Categorize(in)
		assert.True(t, IsValid(first), "category %q for %q must be one of the fixed eight", first, in)
		for i := 0; i < 3; i++ {
			assert.Equal(t, first, Categorize(in))
		}
	}
}

func TestEngine_RuleOrder(t *testing.T) {
	e := New([]Rule{
		{Category: "A", Keywords: []string{"berry"}},
		{Category: "B", Keywords: []string{"straw"}},
	})

	assert.Equal(t, "A", e.Categorize("strawberry"))
	assert.Equal(t, "B", e.Categorize("straw hat"))
	assert.Equal(t, Others, e.Categorize("hat"))
}

func TestIsValid(t *testing.T) {
	assert.Len(t, Categories(), 8)
	assert.True(t, IsValid("Dairy"))
	assert.False(t, IsValid("dairy"), "comparison is exact")
	assert.False(t, IsValid("Meat"))
}
