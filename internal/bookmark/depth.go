package bookmark

// Config controls navigation depth and title length
type Config struct {
	MaxDepth         int    `mapstructure:"max_depth"`
	MaxTitleLength   int    `mapstructure:"max_title_length"`
	TruncationSuffix string `mapstructure:"truncation_suffix"`
}

// DefaultConfig returns the limits applied when none are configured
func DefaultConfig() Config {
	return Config{
		MaxDepth:         4,
		MaxTitleLength:   128,
		TruncationSuffix: "...",
	}
}

// CalculateMaxDepth returns the deepest level in the tree, 0 when empty
func CalculateMaxDepth(tree []*Node) int {
	maxDepth := 0
	for _, n := range tree {
		if n.Level > maxDepth {
			maxDepth = n.Level
		}
		if d := CalculateMaxDepth(n.Children); d > maxDepth {
			maxDepth = d
		}
	}
	return maxDepth
}

// CountBookmarks returns the number of nodes in the tree, nested ones included
func CountBookmarks(tree []*Node) int {
	count := 0
	for _, n := range tree {
		count += 1 + CountBookmarks(n.Children)
	}
	return count
}

// EnforceMaxDepth returns a rebuilt tree in which no node at or beyond maxDepth has children.
// Children of such a node are demoted to siblings placed right after it, in order, so no
// content is lost. The input tree is not modified.
func EnforceMaxDepth(tree []*Node, maxDepth, currentLevel int) []*Node {
	if maxDepth < 1 {
		maxDepth = 1
	}
	if currentLevel < 1 {
		currentLevel = 1
	}

	out := make([]*Node, 0, len(tree))
	for _, n := range tree {
		level := n.Level
		if currentLevel > level {
			level = currentLevel
		}
		if level >= maxDepth {
			out = append(out, flattenSubtree(n)...)
			continue
		}
		clone := *n
		clone.Children = EnforceMaxDepth(n.Children, maxDepth, currentLevel+1)
		out = append(out, &clone)
	}
	return out
}

// flattenSubtree emits the node and all of its descendants in pre-order, childless
func flattenSubtree(n *Node) []*Node {
	clone := *n
	clone.Children = nil
	out := []*Node{&clone}
	for _, c := range n.Children {
		out = append(out, flattenSubtree(c)...)
	}
	return out
}

// TruncateTitle shortens a title to exactly MaxTitleLength characters ending in the suffix.
// Lengths are counted in runes.
func TruncateTitle(title string, cfg Config) string {
	runes := []rune(title)
	if cfg.MaxTitleLength <= 0 || len(runes) <= cfg.MaxTitleLength {
		return title
	}
	suffix := []rune(cfg.TruncationSuffix)
	if len(suffix) >= cfg.MaxTitleLength {
		return string(suffix[len(suffix)-cfg.MaxTitleLength:])
	}
	head := cfg.MaxTitleLength - len(suffix)
	return string(runes[:head]) + string(suffix)
}

// NormalizeTree applies the depth limit and then truncates every title
func NormalizeTree(tree []*Node, cfg Config) []*Node {
	limited := EnforceMaxDepth(tree, cfg.MaxDepth, 1)
	truncateAll(limited, cfg)
	return limited
}

// truncateAll rewrites titles in place; only called on freshly cloned nodes
func truncateAll(tree []*Node, cfg Config) {
	for _, n := range tree {
		n.Title = TruncateTitle(n.Title, cfg)
		truncateAll(n.Children, cfg)
	}
}
