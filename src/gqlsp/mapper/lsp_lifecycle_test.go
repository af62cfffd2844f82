package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
)

func TestInitializeResultAppendExecuteCommandProvider(t *testing.T) {
	tests := []struct {
		name     string
		initial  *protocol.ExecuteCommandOptions
		toAppend *protocol.ExecuteCommandOptions
		expected []string
		wantErr  bool
	}{
		{
			name:     "empty result",
			toAppend: &protocol.ExecuteCommandOptions{Commands: []string{"a", "b"}},
			expected: []string{"a", "b"},
		},
		{
			name:     "nil options",
			initial:  &protocol.ExecuteCommandOptions{Commands: []string{"a"}},
			expected: []string{"a"},
		},
		{
			name:     "combined",
			initial:  &protocol.ExecuteCommandOptions{Commands: []string{"a"}},
			toAppend: &protocol.ExecuteCommandOptions{Commands: []string{"b", "c"}},
			expected: []string{"a", "b", "c"},
		},
		{
			name:     "duplicate",
			initial:  &protocol.ExecuteCommandOptions{Commands: []string{"a"}},
			toAppend: &protocol.ExecuteCommandOptions{Commands: []string{"b", "a"}},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			result := &protocol.InitializeResult{}
			result.Capabilities.ExecuteCommandProvider = tt.initial
			err := InitializeResultAppendExecuteCommandProvider(result, tt.toAppend)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.expected == nil {
				assert.Nil(t, result.Capabilities.ExecuteCommandProvider)
				return
			}
			assert.Equal(t, tt.expected, result.Capabilities.ExecuteCommandProvider.Commands)
		})
	}
}

func TestInitializeResultEnsureCodeLensProvider(t *testing.T) {
	result := &protocol.InitializeResult{}
	InitializeResultEnsureCodeLensProvider(result, false)
	require.NotNil(t, result.Capabilities.CodeLensProvider)
	assert.False(t, result.Capabilities.CodeLensProvider.ResolveProvider)

	InitializeResultEnsureCodeLensProvider(result, true)
	InitializeResultEnsureCodeLensProvider(result, false)
	assert.True(t, result.Capabilities.CodeLensProvider.ResolveProvider)
}

func TestInitializeResultEnsureIncrementalSync(t *testing.T) {
	result := &protocol.InitializeResult{}
	InitializeResultEnsureIncrementalSync(result)
	opts, ok := result.Capabilities.TextDocumentSync.(*protocol.TextDocumentSyncOptions)
	require.True(t, ok)
	assert.True(t, opts.OpenClose)
	assert.Equal(t, protocol.TextDocumentSyncKindIncremental, opts.Change)
}
