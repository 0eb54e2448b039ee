package action

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathanhui97/autoflow/internal/dom/domtest"
	"github.com/nathanhui97/autoflow/internal/pattern"
)

func inputValue(t *testing.T, p *domtest.Page, selector string) string {
	t.Helper()
	snap, err := p.El(selector).Snapshot(context.Background())
	require.NoError(t, err)
	return snap.Value
}

func TestTextInputSetsValue(t *testing.T) {
	t.Parallel()
	x := newExecutor(t)
	p := domtest.MustNew(`<html><body>
		<input id="name" type="text">
	</body></html>`)

	res := x.TextInput(context.Background(), p, p.El("#name"), pattern.TextInputData{Value: "Ada", Clear: true})

	require.True(t, res.OK)
	assert.Equal(t, "set-value", res.Method)
	assert.Equal(t, "Ada", inputValue(t, p, "#name"))
}

func TestTextInputAppendsWithoutClear(t *testing.T) {
	t.Parallel()
	x := newExecutor(t)
	p := domtest.MustNew(`<html><body>
		<input id="greet" value="Hello">
	</body></html>`)

	res := x.TextInput(context.Background(), p, p.El("#greet"), pattern.TextInputData{Value: " world"})

	require.True(t, res.OK)
	assert.Equal(t, "Hello world", inputValue(t, p, "#greet"))
}

func TestTextInputClearsValue(t *testing.T) {
	t.Parallel()
	x := newExecutor(t)
	p := domtest.MustNew(`<html><body>
		<input id="note" value="draft">
	</body></html>`)

	res := x.TextInput(context.Background(), p, p.El("#note"), pattern.TextInputData{Value: "", Clear: true})

	require.True(t, res.OK)
	assert.Empty(t, inputValue(t, p, "#note"))
}

func TestTextInputRejectsReadOnly(t *testing.T) {
	t.Parallel()
	x := newExecutor(t)
	p := domtest.MustNew(`<html><body>
		<input id="ref" readonly value="locked">
	</body></html>`)

	res := x.TextInput(context.Background(), p, p.El("#ref"), pattern.TextInputData{Value: "new", Clear: true})

	require.False(t, res.OK)
	assert.Equal(t, FailNotInteractable, res.Failure)
	assert.Contains(t, res.Reason, "read-only")
	assert.Equal(t, "locked", inputValue(t, p, "#ref"))
}

func TestTextInputRoutesSelectsThroughOptions(t *testing.T) {
	t.Parallel()
	x := newExecutor(t)
	p := domtest.MustNew(`<html><body>
		<select id="country">
			<option value="us">USA</option>
			<option value="ca">Canada</option>
		</select>
	</body></html>`)

	// Recorded text steps sometimes target a select; the platform mechanism
	// must be used instead of a literal value write.
	res := x.TextInput(context.Background(), p, p.El("#country"), pattern.TextInputData{Value: "Canada"})

	require.True(t, res.OK)
	assert.Equal(t, "select-option", res.Method)
	assert.Equal(t, "ca", inputValue(t, p, "#country"))
}

func TestTextInputSelectReportsOptionsOnMiss(t *testing.T) {
	t.Parallel()
	x := newExecutor(t)
	p := domtest.MustNew(`<html><body>
		<select id="country">
			<option value="us">USA</option>
			<option value="ca">Canada</option>
		</select>
	</body></html>`)

	res := x.TextInput(context.Background(), p, p.El("#country"), pattern.TextInputData{Value: "Narnia"})

	require.False(t, res.OK)
	assert.Equal(t, FailActionFailed, res.Failure)
	assert.Contains(t, res.Reason, `"Narnia"`)
	assert.ElementsMatch(t, []string{"USA", "Canada"}, res.Options)
}

func TestTextInputToleratesInputMask(t *testing.T) {
	t.Parallel()
	x := newExecutor(t)
	p := domtest.MustNew(`<html><body>
		<input id="phone" type="tel">
	</body></html>`)
	ctx := context.Background()
	p.OnEvent("#phone", "input", func() {
		_ = p.El("#phone").SetValue(ctx, "(555) 123-4567")
	})

	res := x.TextInput(ctx, p, p.El("#phone"), pattern.TextInputData{Value: "5551234567", Clear: true})

	require.True(t, res.OK, "a formatter rewriting the typed digits is still success")
	assert.Equal(t, "(555) 123-4567", inputValue(t, p, "#phone"))
}

func TestTextInputFallsBackToTypingForManagedInputs(t *testing.T) {
	t.Parallel()
	x := newExecutor(t)
	p := domtest.MustNew(`<html><body>
		<input id="sku" type="text">
	</body></html>`)
	ctx := context.Background()

	// Framework-managed inputs revert programmatic writes: the page keeps
	// its own value state and only trusts real key events.
	p.OnEvent("#sku", "input", func() {
		if len(p.Keys()) == 0 {
			_ = p.El("#sku").SetValue(ctx, "")
		}
	})

	res := x.TextInput(ctx, p, p.El("#sku"), pattern.TextInputData{Value: "X42", Clear: true})

	require.True(t, res.OK)
	assert.Equal(t, "type-keys", res.Method)
	assert.Equal(t, "X42", inputValue(t, p, "#sku"))
	require.Len(t, res.Attempts, 2)
	assert.False(t, res.Attempts[0].Verified)
}
