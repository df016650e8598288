package cmd

import (
	"fmt"
	"maps"
	"strconv"
	"strings"
)

// ParamType is the declared type of a command parameter.
type ParamType int

const (
	String ParamType = iota + 1
	Integer
	Number
	Boolean
	User
	Channel
	Role
)

func (t ParamType) String() string {
	switch t {
	case String:
		return "string"
	case Integer:
		return "integer"
	case Number:
		return "number"
	case Boolean:
		return "boolean"
	case User:
		return "user"
	case Channel:
		return "channel"
	case Role:
		return "role"
	}
	return "unknown"
}

// Param is one entry of a command's argument schema. The same schema is used
// for free-text tokens and for interaction options.
type Param struct {
	Name        string
	Description string
	Type        ParamType
	Required    bool
	// Greedy makes the last string param consume every remaining token.
	Greedy bool
}

// ArgError describes an argument that does not match the schema.
type ArgError struct {
	Param  string
	Reason string
}

func (e *ArgError) Error() string {
	if e.Param == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Param, e.Reason)
}

// Args holds arguments resolved against a schema. Values are typed:
// string for String/User/Channel/Role, int64, float64 and bool.
type Args struct {
	values map[string]any
}

// NewArgs builds Args directly from typed values.
func NewArgs(values map[string]any) Args {
	return Args{values: maps.Clone(values)}
}

func (a Args) Has(name string) bool {
	_, ok := a.values[name]
	return ok
}

func (a Args) Len() int { return len(a.values) }

func (a Args) String(name string) string {
	s, _ := a.values[name].(string)
	return s
}

func (a Args) Int(name string) int64 {
	n, _ := a.values[name].(int64)
	return n
}

func (a Args) Float(name string) float64 {
	f, _ := a.values[name].(float64)
	return f
}

func (a Args) Bool(name string) bool {
	b, _ := a.values[name].(bool)
	return b
}

// User returns the snowflake ID of a user argument.
func (a Args) User(name string) string { return a.String(name) }

// Map returns a copy of the resolved values.
func (a Args) Map() map[string]any { return maps.Clone(a.values) }

// ParseTokens maps positional text tokens onto params.
func ParseTokens(params []Param, tokens []string) (Args, error) {
	values := make(map[string]any, len(params))
	i := 0
	for _, p := range params {
		if i >= len(tokens) {
			if p.Required {
				return Args{}, &ArgError{Param: p.Name, Reason: "missing required argument"}
			}
			continue
		}
		raw := tokens[i]
		i++
		if p.Greedy {
			raw = strings.Join(tokens[i-1:], " ")
			i = len(tokens)
		}
		v, err := coerce(p, raw)
		if err != nil {
			return Args{}, err
		}
		values[p.Name] = v
	}
	if i < len(tokens) {
		return Args{}, &ArgError{Reason: fmt.Sprintf("expected at most %d argument(s), got %d", len(params), len(tokens))}
	}
	return Args{values: values}, nil
}

// ResolveOptions checks a structured option map against params.
func ResolveOptions(params []Param, options map[string]any) (Args, error) {
	known := make(map[string]bool, len(params))
	values := make(map[string]any, len(options))
	for _, p := range params {
		known[p.Name] = true
		raw, ok := options[p.Name]
		if !ok || raw == nil {
			if p.Required {
				return Args{}, &ArgError{Param: p.Name, Reason: "missing required option"}
			}
			continue
		}
		v, err := coerce(p, raw)
		if err != nil {
			return Args{}, err
		}
		values[p.Name] = v
	}
	for name := range options {
		if !known[name] {
			return Args{}, &ArgError{Param: name, Reason: "unknown option"}
		}
	}
	return Args{values: values}, nil
}

func coerce(p Param, raw any) (any, error) {
	bad := func() error {
		return &ArgError{Param: p.Name, Reason: fmt.Sprintf("expected %s, got %v", p.Type, raw)}
	}

	switch p.Type {
	case String:
		if s, ok := raw.(string); ok {
			return s, nil
		}
	case Integer:
		switch v := raw.(type) {
		case int64:
			return v, nil
		case int:
			return int64(v), nil
		case float64:
			if v == float64(int64(v)) {
				return int64(v), nil
			}
		case string:
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				return n, nil
			}
		}
	case Number:
		switch v := raw.(type) {
		case float64:
			return v, nil
		case int64:
			return float64(v), nil
		case int:
			return float64(v), nil
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f, nil
			}
		}
	case Boolean:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			switch strings.ToLower(v) {
			case "true", "yes", "y", "on", "1":
				return true, nil
			case "false", "no", "n", "off", "0":
				return false, nil
			}
		}
	case User, Channel, Role:
		if s, ok := raw.(string); ok {
			if id, ok := snowflake(s); ok {
				return id, nil
			}
		}
	}
	return nil, bad()
}

// snowflake accepts a bare ID or a mention (<@id>, <@!id>, <#id>, <@&id>).
func snowflake(s string) (string, bool) {
	if strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">") {
		s = strings.TrimSuffix(strings.TrimPrefix(s, "<"), ">")
		s = strings.TrimLeft(s, "@!#&")
	}
	if s == "" {
		return "", false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return s, true
}

// UsageHint renders how to invoke s as text, e.g. "!covid <country>".
func UsageHint(prefix string, s *Spec) string {
	if s.Usage != "" {
		return strings.TrimSpace(prefix + s.Name + " " + s.Usage)
	}
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(s.Name)
	for _, p := range s.Params {
		name := p.Name
		if p.Greedy {
			name += "..."
		}
		if p.Required {
			fmt.Fprintf(&b, " <%s>", name)
		} else {
			fmt.Fprintf(&b, " [%s]", name)
		}
	}
	return b.String()
}
