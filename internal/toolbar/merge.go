package toolbar

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

const (
	mergeTag = "!!merge"

	// maxMergeDepth bounds nested merge keys.
	maxMergeDepth = 32
)

// pair is one key/value entry of a mapping node, aliases resolved.
type pair struct {
	key, val *yaml.Node
}

func isMergeKey(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.ShortTag() == mergeTag
}

// mappingPairs returns the entries of mapping node n with merge keys
// (`<<: *anchor` or `<<: [*a, *b]`) expanded in place. Keys written in n take
// precedence over merged keys, and among merged mappings the first to declare
// a key wins. Repeated keys written in n are returned as they are.
func mappingPairs(n *yaml.Node) ([]pair, error) {
	return expandMapping(n, 0)
}

func expandMapping(n *yaml.Node, depth int) ([]pair, error) {
	if depth > maxMergeDepth {
		return nil, fmt.Errorf("line %d: merge keys nested deeper than %d", n.Line, maxMergeDepth)
	}

	explicit := make(map[string]bool, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		if key := resolveAlias(n.Content[i]); !isMergeKey(key) {
			explicit[key.Value] = true
		}
	}

	out := make([]pair, 0, len(n.Content)/2)
	merged := make(map[string]bool)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := resolveAlias(n.Content[i])
		val := resolveAlias(n.Content[i+1])
		if !isMergeKey(key) {
			out = append(out, pair{key: key, val: val})
			continue
		}

		sources := []*yaml.Node{val}
		if val.Kind == yaml.SequenceNode {
			sources = val.Content
		}
		for _, src := range sources {
			src = resolveAlias(src)
			if src.Kind != yaml.MappingNode {
				return nil, fmt.Errorf("line %d: merge value must be a mapping or a list of mappings, got %s",
					src.Line, nodeKind(src))
			}
			inner, err := expandMapping(src, depth+1)
			if err != nil {
				return nil, err
			}
			for _, p := range inner {
				if explicit[p.key.Value] || merged[p.key.Value] {
					continue
				}
				merged[p.key.Value] = true
				out = append(out, p)
			}
		}
	}
	return out, nil
}
