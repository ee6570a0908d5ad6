package protoreg

import (
	"hash/fnv"
	"sort"

	"github.com/jhump/protoreflect/v2/protobuilder"
	"google.golang.org/protobuf/reflect/protoreflect"
)

const (
	maxFieldNumber = 31767
	reservedLo     = 19000
	reservedHi     = 19999
)

// numberFields sets the tag of every builder from its name.
func numberFields(builders []*protobuilder.FieldBuilder) {
	names := make([]string, len(builders))
	for i, b := range builders {
		names[i] = string(b.Name())
	}
	for i, n := range hashNumbers(names) {
		builders[i].SetNumber(protoreflect.FieldNumber(n))
	}
}

// hashNumbers assigns each name the tag (FNV-32a(name) % maxFieldNumber)+1,
// stepping past the reserved 19000-19999 block and probing linearly on
// collision. Names are probed in sorted order, so the result depends only
// on the set of names.
func hashNumbers(names []string) []int {
	order := make([]int, len(names))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return names[order[a]] < names[order[b]] })

	out := make([]int, len(names))
	used := make(map[int]bool, len(names))
	for _, i := range order {
		start := int(fnv32a(names[i])%maxFieldNumber) + 1
		n := start
		for steps := 0; ; steps++ {
			if steps > maxFieldNumber {
				panic("protoreg: field number space exhausted")
			}
			if n >= reservedLo && n <= reservedHi {
				n = reservedHi + 1
			}
			if n > maxFieldNumber {
				n = 1
			}
			if !used[n] {
				break
			}
			n++
		}
		used[n] = true
		out[i] = n
	}
	return out
}

func fnv32a(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}
