package server

import (
	"bytes"
	"encoding/json"

	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/hanpama/fieldcover/internal/evaluator"
	"github.com/hanpama/fieldcover/internal/language"
)

// InputVariable names the variable holding the evaluation input.
const InputVariable = "input"

type query struct {
	selections []language.Selected
	// fields is the de-duplicated query handed to the evaluator; a field
	// may be selected more than once under different aliases.
	fields []string
	input  any
}

func parseQuery(req Request) (*query, error) {
	sel, err := language.Parse(req.Query, req.OperationName)
	if err != nil {
		return nil, err
	}
	q := &query{selections: sel, input: req.Variables[InputVariable]}
	seenAlias := make(map[string]bool, len(sel))
	seenField := make(map[string]bool, len(sel))
	for _, s := range sel {
		if seenAlias[s.Alias] {
			dup := gqlerror.Errorf("response key %q is selected more than once", s.Alias)
			dup.Extensions = map[string]any{"code": codeBadUserInput}
			return nil, dup
		}
		seenAlias[s.Alias] = true
		if !seenField[s.Name] {
			seenField[s.Name] = true
			q.fields = append(q.fields, s.Name)
		}
	}
	return q, nil
}

func (q *query) data(res *evaluator.Result) orderedData {
	vals := res.Map()
	out := make(orderedData, len(q.selections))
	for i, s := range q.selections {
		out[i] = entry{key: s.Alias, value: vals[s.Name]}
	}
	return out
}

type entry struct {
	key   string
	value any
}

// orderedData marshals as a JSON object whose keys keep selection order.
type orderedData []entry

func (d orderedData) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
