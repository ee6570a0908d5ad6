// Package protoreg describes an Evaluator's Eval RPC as protobuf
// descriptors built at runtime from a field.Universe, and converts between
// those dynamic messages and evaluator values.
//
// The generated file looks like:
//
//	syntax = "proto3";
//	package fieldcover.v1;
//
//	message EvalRequest {
//	  repeated string fields = 1;
//	  repeated double input = 2;
//	  string input_json = 3;
//	}
//
//	message EvalResponse {
//	  double min = ...;
//	  repeated double sorted = ...;
//	  ...
//	  repeated string providers = ...;
//	}
//
//	service Evaluator {
//	  rpc Eval(EvalRequest) returns (EvalResponse);
//	}
//
// Response field numbers are derived from field names, so reordering the
// universe declaration does not change the wire format.
package protoreg

import (
	"fmt"

	"github.com/jhump/protoreflect/v2/protobuilder"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/hanpama/fieldcover/internal/field"
)

// Build generates the Evaluator service for u in package pkg.
func Build(u *field.Universe, pkg string) (*Registry, error) {
	if !protoreflect.FullName(pkg).IsValid() {
		return nil, fmt.Errorf("invalid proto package %q", pkg)
	}

	fb := protobuilder.NewFile(fileName(pkg))
	fb.SetPackageName(protoreflect.FullName(pkg))
	fb.SetSyntax(protoreflect.Proto3)

	req := protobuilder.NewMessage(requestMessage)
	req.SetComments(comment(
		"Fields lists the fields to evaluate, in response order.",
		"Input is passed to every provider; input_json takes precedence when set.",
	))
	for i, f := range []struct {
		name     protoreflect.Name
		kind     protoreflect.Kind
		repeated bool
	}{
		{requestFields, protoreflect.StringKind, true},
		{requestInput, protoreflect.DoubleKind, true},
		{requestInputJSON, protoreflect.StringKind, false},
	} {
		b := protobuilder.NewField(f.name, protobuilder.FieldTypeScalar(f.kind))
		if f.repeated {
			b.SetRepeated()
		} else {
			b.SetOptional()
		}
		b.SetNumber(protoreflect.FieldNumber(i + 1))
		req.AddField(b)
	}

	resp := protobuilder.NewMessage(responseMessage)
	resp.SetComments(comment("Only the requested fields are meaningful."))
	names := make(map[protoreflect.Name]string, u.Len()+1)
	names[responseProviders] = ""
	fieldBuilders := make([]*protobuilder.FieldBuilder, 0, u.Len()+1)
	for _, f := range u.Fields() {
		name := nameProtoField(f.Name)
		if !name.IsValid() {
			return nil, fmt.Errorf("field %q is not a valid proto identifier", f.Name)
		}
		if prev, ok := names[name]; ok {
			if prev == "" {
				return nil, fmt.Errorf("field %q collides with the reserved %q field", f.Name, responseProviders)
			}
			return nil, fmt.Errorf("fields %q and %q both map to proto field %q", prev, f.Name, name)
		}
		names[name] = f.Name
		kind, repeated := protoKind(f.Kind)
		b := protobuilder.NewField(name, protobuilder.FieldTypeScalar(kind))
		b.SetComments(fieldComment(f))
		if repeated {
			b.SetRepeated()
		} else {
			b.SetOptional()
		}
		fieldBuilders = append(fieldBuilders, b)
	}
	pb := protobuilder.NewField(responseProviders, protobuilder.FieldTypeScalar(protoreflect.StringKind))
	pb.SetComments(comment("Providers executed to answer the request, in execution order."))
	pb.SetRepeated()
	fieldBuilders = append(fieldBuilders, pb)
	numberFields(fieldBuilders)
	for _, b := range fieldBuilders {
		resp.AddField(b)
	}

	svc := protobuilder.NewService(serviceName)
	m := protobuilder.NewMethod(methodName,
		protobuilder.RpcTypeMessage(req, false),
		protobuilder.RpcTypeMessage(resp, false),
	)
	m.SetComments(comment("Eval runs the providers needed to produce the requested fields."))
	svc.AddMethod(m)

	fb.AddMessage(req)
	fb.AddMessage(resp)
	fb.AddService(svc)

	fd, err := fb.Build()
	if err != nil {
		return nil, fmt.Errorf("build descriptors: %w", err)
	}
	return newRegistry(u, fd)
}

// protoKind maps a field kind to its proto scalar. Values of KindAny travel
// as JSON text.
func protoKind(k field.Kind) (kind protoreflect.Kind, repeated bool) {
	switch k {
	case field.KindInt:
		return protoreflect.Int64Kind, false
	case field.KindFloat:
		return protoreflect.DoubleKind, false
	case field.KindString:
		return protoreflect.StringKind, false
	case field.KindBool:
		return protoreflect.BoolKind, false
	case field.KindIntList:
		return protoreflect.Int64Kind, true
	case field.KindFloatList:
		return protoreflect.DoubleKind, true
	}
	return protoreflect.StringKind, false
}
