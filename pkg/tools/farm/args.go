package farm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ilkoid/agribot/pkg/utils"
)

// Лимиты числовых аргументов.
const (
	maxQuantity      = 1000000
	maxPrice         = 100000
	maxQuantityToAdd = 100000
)

// FlexString: строковый аргумент, который модель может прислать числом.
//
// Схемы объявляют числа строками ("50"), но модели иногда присылают 50.
type FlexString string

// UnmarshalJSON принимает строку, число, bool или null.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*f = ""
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	case data[0] == '{' || data[0] == '[':
		return fmt.Errorf("expected string or number, got %s", string(data))
	default:
		*f = FlexString(data)
		return nil
	}
}

func (f FlexString) String() string { return string(f) }

// parsePositiveInt проверяет целое в (0, max].
//
// Возвращает пустое сообщение при успехе, иначе текст ошибки для модели.
// Дробные значения с нулевой частью ("50.0") принимаются.
func parsePositiveInt(value FlexString, label string, max int) (int, string) {
	s := strings.TrimSpace(string(value))

	n, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
			return 0, fmt.Sprintf("Error: %s must be a valid number.", label)
		}
		n = int(f)
	}

	if n <= 0 {
		return 0, fmt.Sprintf("Error: %s must be a positive number.", label)
	}
	if n > max {
		return 0, fmt.Sprintf("Error: %s is too large. Maximum is %d.", label, max)
	}
	return n, ""
}

// decodeArgs разбирает аргументы вызова. Пустые аргументы считаются {}.
func decodeArgs(argsJSON string, dest any) error {
	raw := utils.NormalizeToolArgs(argsJSON)
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return fmt.Errorf("invalid arguments json: %w", err)
	}
	return nil
}
