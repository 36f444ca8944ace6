package bookmark

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chain(depth int) []*Node {
	var build func(level int) *Node
	build = func(level int) *Node {
		n := &Node{Title: strings.Repeat("x", level), Level: level}
		if level < depth {
			n.Children = []*Node{build(level + 1)}
		}
		return n
	}
	return []*Node{build(1)}
}

// maxNesting returns the structural nesting depth, independent of the Level field
func maxNesting(tree []*Node) int {
	deepest := 0
	for _, n := range tree {
		if d := 1 + maxNesting(n.Children); d > deepest {
			deepest = d
		}
	}
	return deepest
}

func TestCalculateMaxDepth(t *testing.T) {
	assert.Equal(t, 0, CalculateMaxDepth(nil))
	assert.Equal(t, 1, CalculateMaxDepth([]*Node{{Title: "a", Level: 1}}))
	assert.Equal(t, 5, CalculateMaxDepth(chain(5)))
}

func TestCountBookmarks(t *testing.T) {
	assert.Equal(t, 0, CountBookmarks(nil))
	assert.Equal(t, 5, CountBookmarks(chain(5)))

	tree := []*Node{
		{Title: "a", Level: 1, Children: []*Node{{Title: "b", Level: 2}, {Title: "c", Level: 2}}},
		{Title: "d", Level: 1},
	}
	assert.Equal(t, 4, CountBookmarks(tree))
}

func TestEnforceMaxDepth(t *testing.T) {
	t.Run("demotes deep children to siblings in order", func(t *testing.T) {
		tree := []*Node{
			{Title: "1", Level: 1, Children: []*Node{
				{Title: "1.1", Level: 2, Children: []*Node{
					{Title: "1.1.1", Level: 3},
					{Title: "1.1.2", Level: 3},
				}},
				{Title: "1.2", Level: 2},
			}},
		}

		out := EnforceMaxDepth(tree, 2, 1)

		require.Len(t, out, 1)
		require.Len(t, out[0].Children, 4)
		var titles []string
		for _, c := range out[0].Children {
			titles = append(titles, c.Title)
			assert.Empty(t, c.Children)
		}
		assert.Equal(t, []string{"1.1", "1.1.1", "1.1.2", "1.2"}, titles)
		// levels are kept as they were
		assert.Equal(t, 3, out[0].Children[1].Level)
	})

	t.Run("preserves node count for every limit", func(t *testing.T) {
		tree := chain(6)
		tree = append(tree, &Node{Title: "side", Level: 1, Children: chain(3)[0].Children})
		before := CountBookmarks(tree)

		for maxDepth := 1; maxDepth <= 7; maxDepth++ {
			out := EnforceMaxDepth(tree, maxDepth, 1)
			assert.Equal(t, before, CountBookmarks(out), "maxDepth=%d", maxDepth)
			assert.LessOrEqual(t, maxNesting(out), maxDepth, "maxDepth=%d", maxDepth)
		}
	})

	t.Run("does not modify the input tree", func(t *testing.T) {
		tree := chain(4)
		_ = EnforceMaxDepth(tree, 1, 1)

		assert.Equal(t, 4, maxNesting(tree))
		require.Len(t, tree[0].Children, 1)
	})

	t.Run("leaves shallow trees unchanged", func(t *testing.T) {
		tree := chain(3)
		out := EnforceMaxDepth(tree, 5, 1)

		assert.Equal(t, flatten(tree), flatten(out))
		assert.Equal(t, 3, maxNesting(out))
	})
}

func TestTruncateTitle(t *testing.T) {
	cfg := Config{MaxDepth: 4, MaxTitleLength: 10, TruncationSuffix: "..."}

	t.Run("keeps short titles", func(t *testing.T) {
		assert.Equal(t, "short", TruncateTitle("short", cfg))
		assert.Equal(t, "exactly10!", TruncateTitle("exactly10!", cfg))
	})

	t.Run("truncates to exact length with suffix", func(t *testing.T) {
		for _, title := range []string{"eleven chars", strings.Repeat("a", 200), "16.2.1 - Listing of adverse events"} {
			got := TruncateTitle(title, cfg)
			assert.Len(t, []rune(got), cfg.MaxTitleLength)
			assert.True(t, strings.HasSuffix(got, "..."))
		}
		assert.Equal(t, "eleven ...", TruncateTitle("eleven chars", cfg))
	})

	t.Run("counts runes rather than bytes", func(t *testing.T) {
		got := TruncateTitle("Étude clinique à long terme", cfg)
		assert.Equal(t, "Étude c...", got)
	})
}

func TestNormalizeTree(t *testing.T) {
	cfg := Config{MaxDepth: 2, MaxTitleLength: 5, TruncationSuffix: "~"}
	tree := chain(3)
	tree[0].Title = "a very long title"

	out := NormalizeTree(tree, cfg)

	assert.Equal(t, "a ve~", out[0].Title)
	assert.Equal(t, "a very long title", tree[0].Title)
	assert.Equal(t, 3, CountBookmarks(out))
	assert.Equal(t, 2, maxNesting(out))
}
