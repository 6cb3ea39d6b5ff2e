// Package loader implements the document loader of §4.3: reads a document's
// text, resolves its includes transitively, and normalises its node graph
// into a *model.Model.
//
// Document text is YAML, parsed with gopkg.in/yaml.v3 (see DESIGN.md):
// only v3's yaml.Node preserves comments, key order, and quoting style,
// which the writer (§4.8) must round-trip.
package loader

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/forgelang/forge/forgeerr"
	"github.com/forgelang/forge/model"
)

// SupportedVersionRange is the highest _forge_version this engine
// understands; loading a document declaring a newer version fails fast
// rather than silently misparsing forward-incompatible syntax (§4.3).
const SupportedVersionRange = "v1.0.0"

// Loader resolves a document path (plus its transitive includes) into a
// *model.Model. It is not safe for concurrent use: loadDocument fills the
// include cache and the recursion stack without locking. Load builds a
// fresh Loader for each call, and a cached document is not changed once
// stored (§5).
type Loader struct {
	Log *logrus.Entry

	cache     map[string]*model.Document
	resolving map[string]bool // path set on the recursion stack, for cycle detection
	stack     []string
}

func New(log *logrus.Entry) *Loader {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Loader{Log: log, cache: map[string]*model.Document{}, resolving: map[string]bool{}}
}

// Load reads the document at path and every document it transitively
// includes, returning the fully resolved model.
func Load(path string) (*model.Model, error) {
	l := New(nil)
	doc, err := l.loadDocument(path)
	if err != nil {
		return nil, err
	}
	m := model.NewModel()
	var addAll func(d *model.Document)
	seen := map[string]bool{}
	addAll = func(d *model.Document) {
		if seen[d.Name] {
			return
		}
		seen[d.Name] = true
		m.AddDocument(d)
		for _, inc := range d.Includes {
			addAll(inc)
		}
	}
	addAll(doc)
	return m, nil
}

func (l *Loader) loadDocument(path string) (*model.Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, forgeerr.IO(path, err)
	}
	if cached, ok := l.cache[abs]; ok {
		return cached, nil
	}
	if l.resolving[abs] {
		return nil, forgeerr.Include(path, append(append([]string{}, l.stack...), path), "include cycle")
	}
	l.resolving[abs] = true
	l.stack = append(l.stack, path)
	defer func() {
		delete(l.resolving, abs)
		l.stack = l.stack[:len(l.stack)-1]
	}()

	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, forgeerr.IO(path, err)
	}

	docs, err := parseMultiDoc(raw)
	if err != nil {
		return nil, forgeerr.IO(path, err)
	}
	if len(docs) == 0 {
		return nil, forgeerr.IO(path, fmt.Errorf("empty document"))
	}

	name := strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))
	doc := model.NewDocument(name, abs)
	if err := normaliseInto(doc, docs[0]); err != nil {
		return nil, err
	}

	if doc.Version != "" && !versionSupported(doc.Version) {
		return nil, forgeerr.IO(path, fmt.Errorf("document version %s exceeds supported range %s", doc.Version, SupportedVersionRange))
	}

	for alias, rel := range doc.IncludePaths {
		incPath := rel
		if !filepath.IsAbs(rel) {
			incPath = filepath.Join(filepath.Dir(abs), rel)
		}
		incDoc, err := l.loadDocument(incPath)
		if err != nil {
			return nil, err
		}
		doc.Includes[alias] = incDoc
	}

	l.cache[abs] = doc
	return doc, nil
}

func versionSupported(v string) bool {
	norm := v
	if !strings.HasPrefix(norm, "v") {
		norm = "v" + norm
	}
	if !semver.IsValid(norm) {
		return true // unrecognised version string never blocks parsing
	}
	return semver.Compare(norm, SupportedVersionRange) <= 0
}

// parseMultiDoc splits a multi-document YAML stream into individual
// document root nodes, using yaml.Decoder's native "---" handling (§4.3:
// "the conventional document-separator").
func parseMultiDoc(raw []byte) ([]*yaml.Node, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	var docs []*yaml.Node
	for {
		var n yaml.Node
		err := dec.Decode(&n)
		if err != nil {
			if err == io.EOF {
				break
			}
			return docs, err
		}
		docs = append(docs, &n)
	}
	return docs, nil
}

// normaliseInto fills doc from the parsed YAML document root per §4.3's
// normalisation rules.
func normaliseInto(doc *model.Document, root *yaml.Node) error {
	body := root
	if body.Kind == yaml.DocumentNode {
		if len(body.Content) == 0 {
			return nil
		}
		body = body.Content[0]
	}
	if body.Kind != yaml.MappingNode {
		return forgeerr.IO(doc.Path, fmt.Errorf("document root must be a mapping"))
	}

	for i := 0; i+1 < len(body.Content); i += 2 {
		keyNode := body.Content[i]
		valNode := body.Content[i+1]
		key := keyNode.Value

		switch key {
		case "_forge_version":
			doc.Version = valNode.Value
			continue
		case "includes":
			if err := parseIncludes(doc, valNode); err != nil {
				return err
			}
			continue
		case "scenarios":
			continue // reserved, not otherwise interpreted by the core
		}

		switch classify(valNode) {
		case entityScalar:
			s, err := parseScalar(key, valNode)
			if err != nil {
				return err
			}
			doc.Scalars = append(doc.Scalars, s)
		case entityTable:
			tbl, err := parseTable(key, valNode)
			if err != nil {
				return err
			}
			doc.Tables = append(doc.Tables, tbl)
		default:
			return forgeerr.IO(doc.Path, fmt.Errorf("key %q is neither a scalar nor a table", key))
		}
	}
	return nil
}

type entityKind int

const (
	entityUnknown entityKind = iota
	entityScalar
	entityTable
)

// classify implements §4.3's shape rules: a mapping with a value/formula
// member is a scalar; a mapping whose members are all same-length ordered
// sequences of primitives (or row formula strings) is a table.
func classify(n *yaml.Node) entityKind {
	if n.Kind != yaml.MappingNode {
		return entityUnknown
	}
	hasValueOrFormula := false
	allSequences := len(n.Content) > 0
	for i := 0; i+1 < len(n.Content); i += 2 {
		k := n.Content[i].Value
		v := n.Content[i+1]
		if k == "value" || k == "formula" || k == "unit" {
			hasValueOrFormula = hasValueOrFormula || k == "value" || k == "formula"
		}
		if v.Kind != yaml.SequenceNode && !(v.Kind == yaml.ScalarNode && isRowFormula(v)) {
			allSequences = false
		}
	}
	if hasValueOrFormula {
		return entityScalar
	}
	if allSequences {
		return entityTable
	}
	return entityUnknown
}

func isRowFormula(n *yaml.Node) bool {
	return strings.HasPrefix(n.Value, "=")
}

func parseIncludes(doc *model.Document, n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return forgeerr.IO(doc.Path, fmt.Errorf("includes must be a mapping"))
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		alias := n.Content[i].Value
		path := n.Content[i+1].Value
		doc.IncludePaths[alias] = path
	}
	return nil
}

func parseScalar(key string, n *yaml.Node) (*model.Scalar, error) {
	s := &model.Scalar{Path: key}
	for i := 0; i+1 < len(n.Content); i += 2 {
		k := n.Content[i].Value
		v := n.Content[i+1]
		switch k {
		case "value":
			val, err := scalarNodeToValue(v)
			if err != nil {
				return nil, err
			}
			s.Value = val
			s.HasValue = true
		case "formula":
			s.Formula = v.Value
		case "unit":
			s.Unit = model.ParseUnit(v.Value)
		}
	}
	return s, nil
}

func parseTable(name string, n *yaml.Node) (*model.Table, error) {
	t := &model.Table{Name: name}
	longest := 0
	for i := 0; i+1 < len(n.Content); i += 2 {
		colName := n.Content[i].Value
		v := n.Content[i+1]
		col := &model.Column{Name: colName}
		if v.Kind == yaml.ScalarNode && isRowFormula(v) {
			col.Formula = v.Value
			t.Columns = append(t.Columns, col)
			continue
		}
		if v.Kind != yaml.SequenceNode {
			return nil, forgeerr.IO("", fmt.Errorf("column %q is neither a sequence nor a row formula", colName))
		}
		vals := make([]model.Value, len(v.Content))
		for j, item := range v.Content {
			val, err := scalarNodeToValue(item)
			if err != nil {
				return nil, err
			}
			vals[j] = val
		}
		col.Values = vals
		if len(vals) > longest {
			longest = len(vals)
		}
		t.Columns = append(t.Columns, col)
	}
	t.RowCount = longest
	for _, col := range t.Columns {
		if col.Formula == "" && len(col.Values) != longest {
			return nil, forgeerr.IO("", fmt.Errorf("table %q: column %q has %d rows, want %d", name, col.Name, len(col.Values), longest))
		}
	}
	return t, nil
}

func scalarNodeToValue(n *yaml.Node) (model.Value, error) {
	switch n.Tag {
	case "!!int", "!!float":
		f, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			return model.Value{}, forgeerr.IO("", err)
		}
		return model.Num(f), nil
	case "!!bool":
		return model.Boolean(n.Value == "true"), nil
	default:
		return model.Str(n.Value), nil
	}
}
