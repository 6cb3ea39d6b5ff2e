// Package writer implements the document writer of §4.8: it substitutes
// computed values into the document's own YAML node tree in place, so key
// order, comments, indentation, and quoting style survive untouched
// (re-marshalling a fresh Go value cannot preserve any of that).
//
// Atomic persistence is grounded on aretext-aretext/file/save.go's
// renameio.NewPendingFile / CloseAtomicallyReplace / defer pf.Cleanup()
// pattern, generalised from a text editor's save path to a document
// rewrite.
package writer

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"

	"github.com/forgelang/forge/forgeerr"
	"github.com/forgelang/forge/model"
)

// Diff is the outcome of one write: the document's text before and after,
// and whether anything actually changed. Dry-run mode returns this without
// touching the filesystem (§4.8: "A dry-run mode skips persistence and
// returns the diff").
type Diff struct {
	Path    string
	Before  string
	After   string
	Changed bool
}

// Write rewrites the document named docName (as found in m) at path,
// substituting every formula-bearing scalar/column's computed value, per
// §4.8.
func Write(ctx context.Context, path string, m *model.Model, docName string, dryRun bool) (*Diff, error) {
	doc, ok := m.Document(docName)
	if !ok {
		return nil, forgeerr.IO(path, fmt.Errorf("document %q not found in model", docName))
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, forgeerr.IO(path, err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return nil, forgeerr.IO(path, err)
	}

	body := &root
	if body.Kind == yaml.DocumentNode && len(body.Content) > 0 {
		body = body.Content[0]
	}

	for _, s := range doc.Scalars {
		if s.Formula == "" {
			continue
		}
		if entry := findEntry(body, s.Path); entry != nil {
			setScalarValue(entry, s)
		}
	}
	for _, t := range doc.Tables {
		tableNode := findEntry(body, t.Name)
		if tableNode == nil {
			continue
		}
		for _, c := range t.Columns {
			if c.Formula == "" {
				continue
			}
			writeComputedColumn(tableNode, c)
		}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&root); err != nil {
		return nil, forgeerr.IO(path, err)
	}
	if err := enc.Close(); err != nil {
		return nil, forgeerr.IO(path, err)
	}

	diff := &Diff{Path: path, Before: string(raw), After: buf.String(), Changed: buf.String() != string(raw)}
	if dryRun || !diff.Changed {
		return diff, nil
	}

	pf, err := renameio.NewPendingFile(path)
	if err != nil {
		return nil, forgeerr.IO(path, err)
	}
	defer pf.Cleanup()
	if _, err := pf.Write(buf.Bytes()); err != nil {
		return nil, forgeerr.IO(path, err)
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return nil, forgeerr.IO(path, err)
	}
	return diff, nil
}

// findEntry returns the value node paired with key in mapping node m,
// nil if absent.
func findEntry(m *yaml.Node, key string) *yaml.Node {
	if m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

// setScalarValue updates (or appends) the "value" member of a scalar's own
// mapping node, per §4.8 ("Scalar nodes acquire a new value member, or the
// existing one is updated").
func setScalarValue(entry *yaml.Node, s *model.Scalar) {
	if entry.Kind != yaml.MappingNode {
		return
	}
	valueNode := valueToNode(s.Value)
	for i := 0; i+1 < len(entry.Content); i += 2 {
		if entry.Content[i].Value == "value" {
			entry.Content[i+1] = valueNode
			return
		}
	}
	keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: "value"}
	entry.Content = append(entry.Content, keyNode, valueNode)
}

// writeComputedColumn appends a "<name>_computed" sibling sequence holding
// the column's materialised values, immediately after the formula column's
// own entry, per §4.8 ("written back as the row-wise formula string plus a
// materialised sibling vector").
func writeComputedColumn(tableNode *yaml.Node, c *model.Column) {
	if tableNode.Kind != yaml.MappingNode {
		return
	}
	computedKey := c.Name + "_computed"
	seq := &yaml.Node{Kind: yaml.SequenceNode}
	for _, v := range c.Values {
		seq.Content = append(seq.Content, valueToNode(v))
	}

	for i := 0; i+1 < len(tableNode.Content); i += 2 {
		if tableNode.Content[i].Value == computedKey {
			tableNode.Content[i+1] = seq
			return
		}
	}
	for i := 0; i+1 < len(tableNode.Content); i += 2 {
		if tableNode.Content[i].Value == c.Name {
			keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: computedKey}
			insertAt := i + 2
			tableNode.Content = append(tableNode.Content[:insertAt],
				append([]*yaml.Node{keyNode, seq}, tableNode.Content[insertAt:]...)...)
			return
		}
	}
}

func valueToNode(v model.Value) *yaml.Node {
	switch v.Kind {
	case model.KindNumber:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: v.String()}
	case model.KindBool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: v.String()}
	case model.KindText:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v.Text}
	case model.KindError:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "#ERROR: " + v.Err.Error()}
	default:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	}
}
