package protoreg

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/hanpama/fieldcover/internal/evaluator"
	"github.com/hanpama/fieldcover/internal/field"
)

// NewRequest builds an EvalRequest. A []float64 input travels in the
// repeated input field; anything else is sent as JSON.
func (r *Registry) NewRequest(fields []string, input any) (*dynamicpb.Message, error) {
	msg := dynamicpb.NewMessage(r.method.Input())
	list := msg.Mutable(r.fields).List()
	for _, f := range fields {
		list.Append(protoreflect.ValueOfString(f))
	}
	switch in := input.(type) {
	case nil:
	case []float64:
		l := msg.Mutable(r.input).List()
		for _, x := range in {
			l.Append(protoreflect.ValueOfFloat64(x))
		}
	default:
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode input: %w", err)
		}
		msg.Set(r.inputJSON, protoreflect.ValueOfString(string(b)))
	}
	return msg, nil
}

// ReadRequest extracts the query and input from an EvalRequest.
func (r *Registry) ReadRequest(msg protoreflect.Message) (fields []string, input any, err error) {
	list := msg.Get(r.fields).List()
	fields = make([]string, list.Len())
	for i := range fields {
		fields[i] = list.Get(i).String()
	}
	if s := msg.Get(r.inputJSON).String(); s != "" {
		if err := json.Unmarshal([]byte(s), &input); err != nil {
			return nil, nil, fmt.Errorf("decode input_json: %w", err)
		}
		return fields, input, nil
	}
	l := msg.Get(r.input).List()
	xs := make([]float64, l.Len())
	for i := range xs {
		xs[i] = l.Get(i).Float()
	}
	return fields, xs, nil
}

// EncodeResponse builds an EvalResponse from an evaluation result.
func (r *Registry) EncodeResponse(res *evaluator.Result, providers []string) (*dynamicpb.Message, error) {
	msg := dynamicpb.NewMessage(r.method.Output())
	for i, name := range res.Fields {
		pos, ok := r.universe.Index(name)
		if !ok {
			return nil, &field.UnknownFieldError{Field: name}
		}
		if err := setValue(msg, r.outputFields[pos], r.universe.At(pos), res.Values[i]); err != nil {
			return nil, err
		}
	}
	list := msg.Mutable(r.providers).List()
	for _, p := range providers {
		list.Append(protoreflect.ValueOfString(p))
	}
	return msg, nil
}

// DecodeResponse reads the values of fields, in order, and the provider
// list from an EvalResponse.
func (r *Registry) DecodeResponse(msg protoreflect.Message, fields []string) (values []any, providers []string, err error) {
	values = make([]any, len(fields))
	for i, name := range fields {
		pos, ok := r.universe.Index(name)
		if !ok {
			return nil, nil, &field.UnknownFieldError{Field: name}
		}
		v, err := getValue(msg, r.outputFields[pos], r.universe.At(pos))
		if err != nil {
			return nil, nil, err
		}
		values[i] = v
	}
	list := msg.Get(r.providers).List()
	providers = make([]string, list.Len())
	for i := range providers {
		providers[i] = list.Get(i).String()
	}
	return values, providers, nil
}

func setValue(msg *dynamicpb.Message, fd protoreflect.FieldDescriptor, f field.Field, v any) error {
	if !f.Kind.Check(v) {
		return fmt.Errorf("field %q: %T is not a %s", f.Name, v, f.Kind)
	}
	switch f.Kind {
	case field.KindInt:
		msg.Set(fd, protoreflect.ValueOfInt64(toInt64(v)))
	case field.KindFloat:
		switch x := v.(type) {
		case float64:
			msg.Set(fd, protoreflect.ValueOfFloat64(x))
		case float32:
			msg.Set(fd, protoreflect.ValueOfFloat64(float64(x)))
		}
	case field.KindString:
		msg.Set(fd, protoreflect.ValueOfString(v.(string)))
	case field.KindBool:
		msg.Set(fd, protoreflect.ValueOfBool(v.(bool)))
	case field.KindIntList:
		l := msg.Mutable(fd).List()
		switch xs := v.(type) {
		case []int:
			for _, x := range xs {
				l.Append(protoreflect.ValueOfInt64(int64(x)))
			}
		case []int64:
			for _, x := range xs {
				l.Append(protoreflect.ValueOfInt64(x))
			}
		}
	case field.KindFloatList:
		l := msg.Mutable(fd).List()
		for _, x := range v.([]float64) {
			l.Append(protoreflect.ValueOfFloat64(x))
		}
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("field %q: %w", f.Name, err)
		}
		msg.Set(fd, protoreflect.ValueOfString(string(b)))
	}
	return nil
}

func toInt64(v any) int64 {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	}
	return 0
}

func getValue(msg protoreflect.Message, fd protoreflect.FieldDescriptor, f field.Field) (any, error) {
	v := msg.Get(fd)
	switch f.Kind {
	case field.KindInt:
		return int(v.Int()), nil
	case field.KindFloat:
		return v.Float(), nil
	case field.KindString:
		return v.String(), nil
	case field.KindBool:
		return v.Bool(), nil
	case field.KindIntList:
		l := v.List()
		out := make([]int64, l.Len())
		for i := range out {
			out[i] = l.Get(i).Int()
		}
		return out, nil
	case field.KindFloatList:
		l := v.List()
		out := make([]float64, l.Len())
		for i := range out {
			out[i] = l.Get(i).Float()
		}
		return out, nil
	}
	s := v.String()
	if s == "" {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("field %q: %w", f.Name, err)
	}
	return out, nil
}
