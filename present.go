package wasmrepl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xirelogy/go-wasmrepl/internal/types"
)

// Stringify renders a raw word of static type t.
func Stringify(t Type, word int64) string {
	switch t.Tag {
	case types.TagNumber:
		return strconv.FormatInt(word, 10)
	case types.TagBool:
		if word != 0 {
			return "True"
		}
		return "False"
	case types.TagNone:
		return "None"
	case types.TagClass:
		return t.Name
	default:
		return t.String()
	}
}

// RenderTop renders an evaluation result.
func RenderTop(v Value) string {
	switch v.Kind {
	case KindNum:
		return strconv.FormatInt(int64(v.Num), 10)
	case KindBool:
		if v.Bool {
			return "True"
		}
		return "False"
	case KindNone:
		return "None"
	case KindObject:
		return fmt.Sprintf("<%s object at %d>", v.Class, v.Address)
	default:
		return v.Kind.String()
	}
}

// RenderTree renders materialized fields one per line, nested objects
// indented under their field.
func RenderTree(nodes []FieldNode) string {
	var b strings.Builder
	renderNodes(&b, nodes, 0)
	return b.String()
}

func renderNodes(b *strings.Builder, nodes []FieldNode, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, n := range nodes {
		fmt.Fprintf(b, "%s%s: %s\n", indent, n.Field, RenderTop(n.Value))
		if n.Branch {
			renderNodes(b, n.Children, depth+1)
		}
	}
}
