package llm

// GenerateOptions: параметры генерации.
// Значения по умолчанию берутся из config.yaml (ModelDef), опции переопределяют их на вызов.
type GenerateOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// GenerateOption: функциональная опция для GenerateOptions.
type GenerateOption func(*GenerateOptions)

// WithModel переопределяет модель.
func WithModel(model string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Model = model
	}
}

// WithTemperature переопределяет температуру.
func WithTemperature(temp float64) GenerateOption {
	return func(o *GenerateOptions) {
		o.Temperature = temp
	}
}

// WithMaxTokens ограничивает длину ответа.
func WithMaxTokens(tokens int) GenerateOption {
	return func(o *GenerateOptions) {
		o.MaxTokens = tokens
	}
}

// ApplyOptions применяет все GenerateOption из opts поверх base.
// Остальные элементы opts (например, определения инструментов) пропускаются.
func ApplyOptions(base GenerateOptions, opts ...any) GenerateOptions {
	for _, o := range opts {
		if fn, ok := o.(GenerateOption); ok && fn != nil {
			fn(&base)
		}
	}
	return base
}
