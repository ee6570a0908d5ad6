package protoreg

import (
	"strings"

	"github.com/jhump/protoreflect/v2/protobuilder"

	"github.com/hanpama/fieldcover/internal/field"
)

// comment renders lines as a leading comment. Blank input lines are
// dropped; each kept line gets one space of indent after the slashes.
func comment(lines ...string) protobuilder.Comments {
	var b strings.Builder
	for _, l := range lines {
		for _, part := range strings.Split(l, "\n") {
			part = strings.TrimRight(part, " \t")
			if part == "" {
				continue
			}
			b.WriteString(" ")
			b.WriteString(part)
			b.WriteString("\n")
		}
	}
	return protobuilder.Comments{LeadingComment: b.String()}
}

// fieldComment documents a response field with its description and kind.
func fieldComment(f field.Field) protobuilder.Comments {
	kind := "Kind: " + f.Kind.String() + "."
	if f.Kind == field.KindAny {
		kind = "Kind: any, encoded as JSON."
	}
	return comment(f.Description, kind)
}
