// Package format renders decoded tag.Values for example-program
// output; nothing in the core stack depends on it.
package format

import (
	"fmt"
	"strings"

	"github.com/greenridge/bacstack/tag"
)

// Value renders v the way a human reading a discovery log expects:
// the Go value for scalars, "Type:Instance" for object identifiers.
func Value(v tag.Value) string {
	switch v.Kind {
	case tag.KindNull:
		return "null"
	case tag.KindBoolean:
		return fmt.Sprintf("%v", v.Bool)
	case tag.KindUnsigned:
		return fmt.Sprintf("%d", v.Uint)
	case tag.KindSigned:
		return fmt.Sprintf("%d", v.Int)
	case tag.KindReal:
		return fmt.Sprintf("%g", v.Real)
	case tag.KindDouble:
		return fmt.Sprintf("%g", v.Double)
	case tag.KindOctetString:
		return fmt.Sprintf("% x", v.Octet)
	case tag.KindCharacterString:
		return v.Str
	case tag.KindEnumerated:
		return fmt.Sprintf("%d", v.Uint)
	case tag.KindObjectIdentifier:
		return fmt.Sprintf("%d:%d", v.Object.Type, v.Object.Instance)
	case tag.KindDate, tag.KindTime:
		return fmt.Sprintf("%+v", v)
	default:
		return fmt.Sprintf("%+v", v)
	}
}

// Values joins a slice of Values with ", ".
func Values(vs []tag.Value) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = Value(v)
	}
	return strings.Join(parts, ", ")
}
