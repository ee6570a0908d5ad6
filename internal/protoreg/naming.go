package protoreg

import (
	"strings"

	"google.golang.org/protobuf/reflect/protoreflect"
)

const (
	serviceName       protoreflect.Name = "Evaluator"
	methodName        protoreflect.Name = "Eval"
	requestMessage    protoreflect.Name = "EvalRequest"
	responseMessage   protoreflect.Name = "EvalResponse"
	requestFields     protoreflect.Name = "fields"
	requestInput      protoreflect.Name = "input"
	requestInputJSON  protoreflect.Name = "input_json"
	responseProviders protoreflect.Name = "providers"
)

func fileName(pkg string) string {
	return strings.ReplaceAll(pkg, ".", "/") + "/evaluator.proto"
}

func nameProtoField(fieldName string) protoreflect.Name {
	return protoreflect.Name(snakeCase(fieldName))
}

// snakeCase converts a string from CamelCase or PascalCase to snake_case.
func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}
