package protoreg

import (
	"fmt"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/hanpama/fieldcover/internal/field"
)

// Registry holds the descriptors of one generated Evaluator service.
type Registry struct {
	universe *field.Universe
	file     protoreflect.FileDescriptor
	method   protoreflect.MethodDescriptor

	fields       protoreflect.FieldDescriptor
	input        protoreflect.FieldDescriptor
	inputJSON    protoreflect.FieldDescriptor
	providers    protoreflect.FieldDescriptor
	outputFields []protoreflect.FieldDescriptor // by canonical position
}

func newRegistry(u *field.Universe, fd protoreflect.FileDescriptor) (*Registry, error) {
	svc := fd.Services().ByName(serviceName)
	if svc == nil {
		return nil, fmt.Errorf("service %s missing from %s", serviceName, fd.Path())
	}
	m := svc.Methods().ByName(methodName)
	if m == nil {
		return nil, fmt.Errorf("method %s missing from %s", methodName, svc.FullName())
	}
	req, resp := m.Input().Fields(), m.Output().Fields()
	r := &Registry{
		universe:     u,
		file:         fd,
		method:       m,
		fields:       req.ByName(requestFields),
		input:        req.ByName(requestInput),
		inputJSON:    req.ByName(requestInputJSON),
		providers:    resp.ByName(responseProviders),
		outputFields: make([]protoreflect.FieldDescriptor, u.Len()),
	}
	for i, f := range u.Fields() {
		r.outputFields[i] = resp.ByName(nameProtoField(f.Name))
		if r.outputFields[i] == nil {
			return nil, fmt.Errorf("response field for %q missing", f.Name)
		}
	}
	return r, nil
}

// Universe returns the universe the descriptors were built from.
func (r *Registry) Universe() *field.Universe { return r.universe }

// File returns the generated file descriptor.
func (r *Registry) File() protoreflect.FileDescriptor { return r.file }

// Method returns the Eval method descriptor.
func (r *Registry) Method() protoreflect.MethodDescriptor { return r.method }

// FullMethod is the gRPC method path, e.g. "/fieldcover.v1.Evaluator/Eval".
func (r *Registry) FullMethod() string {
	return fmt.Sprintf("/%s/%s", r.method.Parent().FullName(), r.method.Name())
}

// ServiceName is the fully qualified service name.
func (r *Registry) ServiceName() string { return string(r.method.Parent().FullName()) }

// OutputField returns the response field carrying the named universe field.
func (r *Registry) OutputField(name string) (protoreflect.FieldDescriptor, bool) {
	i, ok := r.universe.Index(name)
	if !ok {
		return nil, false
	}
	return r.outputFields[i], true
}
