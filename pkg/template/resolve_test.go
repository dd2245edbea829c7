package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	data := map[string]any{
		"inputs": map[string]any{
			"portfolio_id": "pf-9",
			"limit":        25,
		},
		"positions": map[string]any{
			"rows": []any{map[string]any{"symbol": "AAPL"}},
		},
	}

	t.Run("whole reference keeps type", func(t *testing.T) {
		out, err := Resolve("{{inputs.limit}}", data)
		require.NoError(t, err)
		assert.Equal(t, 25, out)
	})

	t.Run("whole reference passes structures through", func(t *testing.T) {
		out, err := Resolve("{{positions.rows}}", data)
		require.NoError(t, err)
		assert.Len(t, out, 1)
	})

	t.Run("embedded reference interpolates", func(t *testing.T) {
		out, err := Resolve("portfolio {{inputs.portfolio_id}} top {{inputs.limit}}", data)
		require.NoError(t, err)
		assert.Equal(t, "portfolio pf-9 top 25", out)
	})

	t.Run("missing reference fails", func(t *testing.T) {
		_, err := Resolve("{{inputs.missing}}", data)
		require.Error(t, err)
		var missing *MissingVariableError
		assert.ErrorAs(t, err, &missing)
	})

	t.Run("optional missing resolves to nil", func(t *testing.T) {
		out, err := Resolve("{{?inputs.benchmark}}", data)
		require.NoError(t, err)
		assert.Nil(t, out)
	})

	t.Run("recurses through maps and slices", func(t *testing.T) {
		out, err := Resolve(map[string]any{
			"id":   "{{inputs.portfolio_id}}",
			"tags": []any{"{{inputs.limit}}", "static"},
		}, data)
		require.NoError(t, err)
		m := out.(map[string]any)
		assert.Equal(t, "pf-9", m["id"])
		assert.Equal(t, []any{25, "static"}, m["tags"])
	})

	t.Run("non-template values pass through", func(t *testing.T) {
		out, err := Resolve(42, data)
		require.NoError(t, err)
		assert.Equal(t, 42, out)
	})
}

func TestRefs(t *testing.T) {
	refs, err := Refs(map[string]any{
		"a": "{{inputs.portfolio_id}}",
		"b": []any{"{{?positions.totals}}"},
		"c": "plain",
	})
	require.NoError(t, err)
	require.Len(t, refs, 2)

	roots := map[string]bool{}
	for _, r := range refs {
		roots[r.Path.Root()] = true
	}
	assert.True(t, roots["inputs"])
	assert.True(t, roots["positions"])
}
