package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/agribot/pkg/session"
)

// MockTool: простой инструмент для тестов.
type MockTool struct {
	def    ToolDefinition
	result string
	calls  int
	last   string
}

func (m *MockTool) Definition() ToolDefinition { return m.def }

func (m *MockTool) Execute(_ context.Context, sess session.Handle, argsJSON string) (string, error) {
	m.calls++
	m.last = sess.Key() + ":" + argsJSON
	return m.result, nil
}

func newMock(name string) *MockTool {
	return &MockTool{
		def: ToolDefinition{
			Name:       name,
			Parameters: JSONSchema{"type": "object", "properties": map[string]any{}, "required": []string{}},
		},
		result: name + " done",
	}
}

func TestValidateToolDefinition(t *testing.T) {
	tests := []struct {
		name    string
		def     ToolDefinition
		wantErr bool
	}{
		{"valid", ToolDefinition{Name: "a", Parameters: JSONSchema{"type": "object"}}, false},
		{"empty name", ToolDefinition{Parameters: JSONSchema{"type": "object"}}, true},
		{"nil params", ToolDefinition{Name: "a"}, true},
		{"missing type", ToolDefinition{Name: "a", Parameters: JSONSchema{}}, true},
		{"wrong type", ToolDefinition{Name: "a", Parameters: JSONSchema{"type": "array"}}, true},
		{"required not array", ToolDefinition{Name: "a", Parameters: JSONSchema{"type": "object", "required": "x"}}, true},
		{"required with number", ToolDefinition{Name: "a", Parameters: JSONSchema{"type": "object", "required": []any{1}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateToolDefinition(tt.def)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRegistry_OrderAndDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newMock("b")))
	require.NoError(t, r.Register(newMock("a")))
	require.NoError(t, r.Register(newMock("c")))
	assert.Error(t, r.Register(newMock("a")))

	defs := r.GetDefinitions()
	require.Len(t, defs, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{defs[0].Name, defs[1].Name, defs[2].Name})
}

func TestRegistry_Dispatch(t *testing.T) {
	r := NewRegistry()
	mock := newMock("search_products")
	require.NoError(t, r.Register(mock))

	store := session.NewMemoryStore(session.MemoryOptions{})
	sess := session.NewHandle(store, "farmer")

	out, err := r.Dispatch(context.Background(), sess, "search_products", `{"query":"rice"}`)
	require.NoError(t, err)
	assert.Equal(t, "search_products done", out)
	assert.Equal(t, `farmer:{"query":"rice"}`, mock.last)

	_, err = r.Dispatch(context.Background(), sess, "delete_everything", `{}`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownTool))
	assert.Equal(t, 1, mock.calls)
}
