package protoreg

import (
	"io"
	"os"
	"path"

	"github.com/jhump/protoreflect/v2/protoprint"
)

// Render prints the generated .proto source to w.
func Render(r *Registry, w io.Writer) error {
	pp := protoprint.Printer{}
	return pp.PrintProtoFile(r.File(), w)
}

// RenderDir writes the generated .proto under outDir at its package path
// and returns the written path.
func RenderDir(r *Registry, outDir string) (string, error) {
	fp := path.Join(outDir, r.File().Path())
	if err := os.MkdirAll(path.Dir(fp), 0755); err != nil {
		return "", err
	}
	f, err := os.OpenFile(fp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := Render(r, f); err != nil {
		return "", err
	}
	return fp, f.Close()
}
