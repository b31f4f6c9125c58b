package utils

import (
	"testing"
)

func TestCleanJsonBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain JSON",
			input:    `{"key": "value"}`,
			expected: `{"key": "value"}`,
		},
		{
			name:     "JSON in markdown code block",
			input:    "```json\n{\"key\": \"value\"}\n```",
			expected: `{"key": "value"}`,
		},
		{
			name:     "JSON in lowercase markdown",
			input:    "```json\n{\"key\": \"value\"}\n```",
			expected: `{"key": "value"}`,
		},
		{
			name:     "JSON with extra text at start - cleaned only ``` at end",
			input:    "```json\n{\"key\": \"value\"}\n``` Конец",
			expected: "{\"key\": \"value\"}\n``` Конец",
		},
		{
			name:     "JSON with mixed case",
			input:    "```JSON\n{\"key\": \"value\"}\n```",
			expected: `{"key": "value"}`,
		},
		{
			name:     "JSON with only triple backticks",
			input:    "```\n{\"key\": \"value\"}\n```",
			expected: `{"key": "value"}`,
		},
		{
			name:     "JSON with extra whitespace",
			input:    "  ```json  \n  {\"key\": \"value\"}  \n  ```  ",
			expected: `{"key": "value"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CleanJsonBlock(tt.input)
			if result != tt.expected {
				t.Errorf("CleanJsonBlock() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestNormalizeToolArgs(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty", input: "", expected: "{}"},
		{name: "null", input: "null", expected: "{}"},
		{name: "whitespace", input: "  \n ", expected: "{}"},
		{name: "object passthrough", input: `{"query":"rice"}`, expected: `{"query":"rice"}`},
		{name: "fenced object", input: "```json\n{\"query\":\"rice\"}\n```", expected: `{"query":"rice"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeToolArgs(tt.input); got != tt.expected {
				t.Errorf("NormalizeToolArgs() = %q, want %q", got, tt.expected)
			}
		})
	}
}
