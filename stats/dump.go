package stats

import (
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// A Dumper writes a snapshot of a statistics tree.
type Dumper interface {
	Dump(root *Aggregate) error
}

// TextDumper writes the tree as indented "name: value # desc" lines.
type TextDumper struct {
	w io.Writer
}

// NewTextDumper creates a TextDumper writing to w.
func NewTextDumper(w io.Writer) *TextDumper {
	return &TextDumper{w: w}
}

// Dump writes root and everything below it.
func (d *TextDumper) Dump(root *Aggregate) error {
	var sb strings.Builder
	d.dump(&sb, root, 0)

	_, err := io.WriteString(d.w, sb.String())

	return err
}

func (d *TextDumper) dump(sb *strings.Builder, s Stat, depth int) {
	indent := strings.Repeat("  ", depth)

	switch st := s.(type) {
	case *Aggregate:
		fmt.Fprintf(sb, "%s%s: # %s\n", indent, st.name, st.desc)
		for _, c := range st.children {
			d.dump(sb, c, depth+1)
		}
	case *Counter:
		fmt.Fprintf(sb, "%s%s: %d # %s\n", indent, st.name, st.Get(), st.desc)
	case *VectorCounter:
		fmt.Fprintf(sb, "%s%s: # %s\n", indent, st.name, st.desc)
		for i := range st.counts {
			label := st.CounterName(i)
			if label == "" {
				label = strconv.Itoa(i)
			}
			fmt.Fprintf(sb, "%s  %s: %d\n", indent, label, st.counts[i])
		}
	default:
		log.Panicf("stats: unrecognized stat type %T", s)
	}
}

// YAMLDumper writes the tree as a YAML document, one mapping per aggregate,
// with descriptions kept as line comments.
type YAMLDumper struct {
	w io.Writer
}

// NewYAMLDumper creates a YAMLDumper writing to w.
func NewYAMLDumper(w io.Writer) *YAMLDumper {
	return &YAMLDumper{w: w}
}

// Dump writes root as a YAML document.
func (d *YAMLDumper) Dump(root *Aggregate) error {
	doc := &yaml.Node{Kind: yaml.MappingNode}
	key, value := d.node(root)
	doc.Content = append(doc.Content, key, value)

	enc := yaml.NewEncoder(d.w)
	enc.SetIndent(2)

	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode stats: %w", err)
	}

	return enc.Close()
}

func (d *YAMLDumper) node(s Stat) (key, value *yaml.Node) {
	key = &yaml.Node{Kind: yaml.ScalarNode, Value: s.Name()}

	switch st := s.(type) {
	case *Aggregate:
		key.LineComment = st.desc
		value = &yaml.Node{Kind: yaml.MappingNode}
		for _, c := range st.children {
			k, v := d.node(c)
			value.Content = append(value.Content, k, v)
		}
	case *Counter:
		value = uintNode(st.Get())
		value.LineComment = st.desc
	case *VectorCounter:
		key.LineComment = st.desc
		value = &yaml.Node{Kind: yaml.MappingNode}
		for i := range st.counts {
			label := st.CounterName(i)
			if label == "" {
				label = strconv.Itoa(i)
			}
			value.Content = append(value.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Value: label},
				uintNode(st.counts[i]))
		}
	default:
		log.Panicf("stats: unrecognized stat type %T", s)
	}

	return key, value
}

func uintNode(v uint64) *yaml.Node {
	return &yaml.Node{
		Kind:  yaml.ScalarNode,
		Tag:   "!!int",
		Value: strconv.FormatUint(v, 10),
	}
}
