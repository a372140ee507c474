// Package gatmpl implements the double-brace template syntax actions are
// rendered with (spec.md §4.5): `{{ expr }}` interpolation, dotted
// attribute access on a root context of `event` and `env`, and pipe
// filters (`json_encode`, `slice(end=N)`).
//
// No library in the retrieved corpus implements this exact syntax —
// bare dotted access with no leading `.`, and named-argument filters —
// so this is a small hand-written renderer, explicitly sanctioned by
// spec.md §9 for exactly this situation. See DESIGN.md for the
// grounding and the libraries considered and rejected.
package gatmpl

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Context is the root scope a template renders against: the JSON-shaped
// view of an Event (including its original payload nested at
// `event.payload`) and the subset of the process environment named by
// the configuration's `*FromEnv` keys.
type Context struct {
	Event map[string]interface{}
	Env   map[string]string
}

func (c Context) root() map[string]interface{} {
	env := make(map[string]interface{}, len(c.Env))
	for k, v := range c.Env {
		env[k] = v
	}
	return map[string]interface{}{
		"event": c.Event,
		"env":   env,
	}
}

// Template is a parsed template ready to render repeatedly against
// different contexts. Parsing is a pure function of the source string;
// rendering is a pure function of (Template, Context), per spec.md §8.
type Template struct {
	src   string
	nodes []node
}

type nodeKind int

const (
	nodeLiteral nodeKind = iota
	nodeExpr
)

type node struct {
	kind    nodeKind
	literal string
	expr    *expr
}

type expr struct {
	path    []string
	filters []filterCall
}

type filterCall struct {
	name string
	args map[string]string
}

// Parse compiles a template string. A syntax error here is a
// configuration-load-time concern for callers that pre-validate
// templates; render-time failures (missing keys, unknown filters) are
// reported by Render, per spec.md §7's TemplateError disposition.
func Parse(src string) (*Template, error) {
	t := &Template{src: src}
	rest := src
	for {
		start := strings.Index(rest, "{{")
		if start == -1 {
			t.nodes = append(t.nodes, node{kind: nodeLiteral, literal: rest})
			break
		}
		if start > 0 {
			t.nodes = append(t.nodes, node{kind: nodeLiteral, literal: rest[:start]})
		}
		rest = rest[start+2:]
		end := strings.Index(rest, "}}")
		if end == -1 {
			return nil, fmt.Errorf("gatmpl: unterminated %q in %q", "{{", src)
		}
		raw := strings.TrimSpace(rest[:end])
		e, err := parseExpr(raw)
		if err != nil {
			return nil, fmt.Errorf("gatmpl: %w (in %q)", err, raw)
		}
		t.nodes = append(t.nodes, node{kind: nodeExpr, expr: e})
		rest = rest[end+2:]
	}
	return t, nil
}

// MustParse is a helper for literal templates known to be valid at
// compile time (tests, defaults); it panics on a parse error.
func MustParse(src string) *Template {
	t, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return t
}

func parseExpr(raw string) (*expr, error) {
	parts := strings.Split(raw, "|")
	pathPart := strings.TrimSpace(parts[0])
	if pathPart == "" {
		return nil, fmt.Errorf("empty expression")
	}
	path := strings.Split(pathPart, ".")
	for _, seg := range path {
		if seg == "" {
			return nil, fmt.Errorf("malformed attribute path %q", pathPart)
		}
	}

	e := &expr{path: path}
	for _, fp := range parts[1:] {
		fc, err := parseFilterCall(strings.TrimSpace(fp))
		if err != nil {
			return nil, err
		}
		e.filters = append(e.filters, fc)
	}
	return e, nil
}

func parseFilterCall(fp string) (filterCall, error) {
	name := fp
	argsStr := ""
	if i := strings.IndexByte(fp, '('); i != -1 {
		if !strings.HasSuffix(fp, ")") {
			return filterCall{}, fmt.Errorf("malformed filter call %q", fp)
		}
		name = strings.TrimSpace(fp[:i])
		argsStr = fp[i+1 : len(fp)-1]
	}
	if name == "" {
		return filterCall{}, fmt.Errorf("empty filter name")
	}

	args := map[string]string{}
	if strings.TrimSpace(argsStr) != "" {
		for _, a := range strings.Split(argsStr, ",") {
			kv := strings.SplitN(strings.TrimSpace(a), "=", 2)
			if len(kv) != 2 {
				return filterCall{}, fmt.Errorf("malformed filter argument %q in %q", a, fp)
			}
			args[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
		}
	}
	return filterCall{name: name, args: args}, nil
}

// Render evaluates t against ctx, producing the final string. Any
// dereference of a nested key that does not exist, or any unknown/
// malformed filter invocation, fails the render — it is the caller's
// responsibility to treat that as the action's TemplateError
// (spec.md §7).
func (t *Template) Render(ctx Context) (string, error) {
	var sb strings.Builder
	root := ctx.root()
	for _, n := range t.nodes {
		switch n.kind {
		case nodeLiteral:
			sb.WriteString(n.literal)
		case nodeExpr:
			v, err := resolve(root, n.expr.path)
			if err != nil {
				return "", fmt.Errorf("gatmpl: %w", err)
			}
			for _, f := range n.expr.filters {
				v, err = applyFilter(f, v)
				if err != nil {
					return "", fmt.Errorf("gatmpl: %w", err)
				}
			}
			sb.WriteString(stringify(v))
		}
	}
	return sb.String(), nil
}

// resolve walks path against root. A leaf key absent on an existing map
// renders as a missing value (nil, safe); a non-leaf segment that cannot
// be descended into — because the key is absent or the current value
// isn't a map — fails the render, per spec.md §4.5.
func resolve(root map[string]interface{}, path []string) (interface{}, error) {
	var cur interface{} = root
	for i, seg := range path {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("cannot dereference %q: %q is not an object", seg, strings.Join(path[:i], "."))
		}
		v, exists := m[seg]
		if !exists {
			if i == len(path)-1 {
				return nil, nil
			}
			return nil, fmt.Errorf("missing nested key %q in path %q", seg, strings.Join(path, "."))
		}
		cur = v
	}
	return cur, nil
}

func applyFilter(f filterCall, v interface{}) (interface{}, error) {
	switch f.name {
	case "json_encode":
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("json_encode: %w", err)
		}
		return string(b), nil
	case "slice":
		endStr, ok := f.args["end"]
		if !ok {
			return nil, fmt.Errorf("slice: missing required argument \"end\"")
		}
		end, err := strconv.Atoi(endStr)
		if err != nil {
			return nil, fmt.Errorf("slice: invalid end=%q: %w", endStr, err)
		}
		s := stringify(v)
		if end < 0 {
			return nil, fmt.Errorf("slice: end must be non-negative, got %d", end)
		}
		if end > len(s) {
			end = len(s)
		}
		return s[:end], nil
	default:
		return nil, fmt.Errorf("unknown filter %q", f.name)
	}
}

func stringify(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprintf("%v", x)
	}
}
