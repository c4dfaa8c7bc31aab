package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junyang168/smart-answer/internal/core/domain"
)

const samplePage = `<!DOCTYPE html>
<html>
<head><title>Connection Timeouts</title><style>body { color: red; }</style></head>
<body>
<nav><a href="/">Home</a><a href="/docs">Docs</a></nav>
<article id="content">
<h1>Connection Timeouts</h1>
<p>A timeout usually means the &amp; server did not respond in time.</p>
<blockquote>Always check the firewall first.</blockquote>
<table>
<tr><th>Code</th><th>Meaning</th></tr>
<tr><td>408</td><td>Request Timeout</td></tr>
</table>
</article>
<footer>Copyright 2026</footer>
<script>trackPageView();</script>
</body>
</html>`

func TestNormalize_StripsBoilerplate(t *testing.T) {
	n := New()

	text, err := n.Normalize(samplePage, Hints{})
	require.NoError(t, err)

	assert.Contains(t, text, "Connection Timeouts")
	assert.Contains(t, text, "server did not respond")
	assert.NotContains(t, text, "trackPageView")
	assert.NotContains(t, text, "color: red")
	assert.NotContains(t, text, "Copyright 2026")
	assert.NotContains(t, text, "Home")
}

func TestNormalize_DecodesEntities(t *testing.T) {
	n := New()

	text, err := n.Normalize(samplePage, Hints{})
	require.NoError(t, err)
	assert.Contains(t, text, "the & server")
}

func TestNormalize_PreservesStructure(t *testing.T) {
	n := New()

	text, err := n.Normalize(samplePage, Hints{})
	require.NoError(t, err)

	assert.Contains(t, text, "# Connection Timeouts", "heading structure should survive")
	assert.Contains(t, text, "> Always check the firewall first.", "block quotes should survive")
	assert.Contains(t, text, "| 408 | Request Timeout |", "table alignment should survive")
}

func TestNormalize_ContentSelector(t *testing.T) {
	n := New()

	t.Run("selects the region", func(t *testing.T) {
		text, err := n.Normalize(samplePage, Hints{ContentSelector: "#content"})
		require.NoError(t, err)
		assert.Contains(t, text, "Connection Timeouts")
	})

	t.Run("unmatched selector is a parse error", func(t *testing.T) {
		_, err := n.Normalize(samplePage, Hints{ContentSelector: "#missing"})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrParse)
	})
}

func TestNormalize_DropSelectors(t *testing.T) {
	n := New()

	text, err := n.Normalize(samplePage, Hints{DropSelectors: []string{"table"}})
	require.NoError(t, err)
	assert.NotContains(t, text, "408")
}

func TestNormalize_Deterministic(t *testing.T) {
	n := New()

	first, err := n.Normalize(samplePage, Hints{ContentSelector: "#content"})
	require.NoError(t, err)
	second, err := n.Normalize(samplePage, Hints{ContentSelector: "#content"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestNormalize_CollapsesBlankLines(t *testing.T) {
	n := New()

	text, err := n.Normalize("<body><p>one</p><br><br><br><p>two</p></body>", Hints{})
	require.NoError(t, err)
	assert.NotContains(t, text, "\n\n\n")
}

func TestTitle(t *testing.T) {
	n := New()

	t.Run("from title tag", func(t *testing.T) {
		assert.Equal(t, "Connection Timeouts", n.Title(samplePage))
	})

	t.Run("falls back to h1", func(t *testing.T) {
		assert.Equal(t, "Heading", n.Title("<body><h1>Heading</h1></body>"))
	})

	t.Run("empty when absent", func(t *testing.T) {
		assert.Equal(t, "", n.Title("<body><p>no title</p></body>"))
	})
}
