package repair

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/browserlet/browserlet/internal/bsl"
)

// rewriteStepHints finds steps[index].target.hints in the format-preserving
// document tree doc and replaces its sequence node in place, leaving every
// other node — comments, key order, anchors, unrelated steps — untouched.
func rewriteStepHints(doc *yaml.Node, index int, hints []bsl.Hint) error {
	root := documentRoot(doc)
	if root == nil || root.Kind != yaml.MappingNode {
		return fmt.Errorf("repair: document root is not a mapping")
	}

	stepsNode := mappingValue(root, "steps")
	if stepsNode == nil || stepsNode.Kind != yaml.SequenceNode {
		return fmt.Errorf("repair: no steps sequence in document")
	}
	if index < 0 || index >= len(stepsNode.Content) {
		return fmt.Errorf("repair: step index %d out of range (%d steps)", index, len(stepsNode.Content))
	}

	stepNode := stepsNode.Content[index]
	if stepNode.Kind != yaml.MappingNode {
		return fmt.Errorf("repair: step %d is not a mapping", index)
	}

	targetNode := mappingValue(stepNode, "target")
	if targetNode == nil {
		targetNode = appendMappingKey(stepNode, "target", &yaml.Node{Kind: yaml.MappingNode})
	}

	hintsNode := hintsSequenceNode(hints)
	if existing := mappingValue(targetNode, "hints"); existing != nil {
		*existing = *hintsNode
		return nil
	}
	appendMappingKey(targetNode, "hints", hintsNode)
	return nil
}

// documentRoot returns the top-level mapping node of a parsed document,
// unwrapping yaml.v3's DocumentNode wrapper if present.
func documentRoot(doc *yaml.Node) *yaml.Node {
	if doc == nil {
		return nil
	}
	if doc.Kind == yaml.DocumentNode {
		if len(doc.Content) == 0 {
			return nil
		}
		return doc.Content[0]
	}
	return doc
}

// mappingValue returns the value node for key in a mapping node, or nil.
func mappingValue(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

// appendMappingKey adds a new key/value pair to the end of mapping and
// returns the value node.
func appendMappingKey(mapping *yaml.Node, key string, value *yaml.Node) *yaml.Node {
	keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
	mapping.Content = append(mapping.Content, keyNode, value)
	return value
}

func hintsSequenceNode(hints []bsl.Hint) *yaml.Node {
	seq := &yaml.Node{Kind: yaml.SequenceNode}
	for _, h := range hints {
		seq.Content = append(seq.Content, hintNode(h))
	}
	return seq
}

func hintNode(h bsl.Hint) *yaml.Node {
	m := &yaml.Node{Kind: yaml.MappingNode}
	appendMappingKey(m, "type", scalar(string(h.Type)))
	if h.IsNamed() {
		nv := &yaml.Node{Kind: yaml.MappingNode}
		appendMappingKey(nv, "name", scalar(h.Named.Name))
		appendMappingKey(nv, "value", scalar(h.Named.Value))
		appendMappingKey(m, "value", nv)
		return m
	}
	appendMappingKey(m, "value", scalar(h.Value))
	return m
}

func scalar(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}
