package condition

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/AaronLay10/SentientFX/internal/value"
)

var ErrUnknownOperator = errors.New("unknown comparison operator")

// Value is a resolved operand.
type Value struct {
	Kind    value.Kind
	V       any
	Present bool
}

// Operator compares a left and right value. An operator that does not apply
// to the runtime types it receives returns false.
type Operator struct {
	Name  string
	Unary bool
	Fn    func(left, right Value) bool
	// New, when set, is called once per predicate instead of sharing Fn,
	// for comparisons that keep state such as a compiled pattern.
	New   func() func(left, right Value) bool
}

func (op *Operator) bind() func(left, right Value) bool {
	if op.New != nil {
		return op.New()
	}
	return op.Fn
}

// Operators is a registry of comparison operators.
type Operators struct {
	mu  sync.RWMutex
	ops map[string]*Operator
}

// NewOperators returns a registry with the builtin operators.
func NewOperators() *Operators {
	r := &Operators{ops: make(map[string]*Operator)}
	r.Register(&Operator{Name: "equals", Fn: equals})
	r.Register(&Operator{Name: "not_equals", Fn: func(l, rv Value) bool {
		_, ok := coerceRight(l, rv)
		return ok && !equals(l, rv)
	}})
	r.Register(&Operator{Name: "greater_than", Fn: ordered(func(c int) bool { return c > 0 })})
	r.Register(&Operator{Name: "greater_or_equal", Fn: ordered(func(c int) bool { return c >= 0 })})
	r.Register(&Operator{Name: "less_than", Fn: ordered(func(c int) bool { return c < 0 })})
	r.Register(&Operator{Name: "less_or_equal", Fn: ordered(func(c int) bool { return c <= 0 })})
	r.Register(&Operator{Name: "contains", Fn: text(strings.Contains)})
	r.Register(&Operator{Name: "not_contains", Fn: text(func(s, sub string) bool { return !strings.Contains(s, sub) })})
	r.Register(&Operator{Name: "starts_with", Fn: text(strings.HasPrefix)})
	r.Register(&Operator{Name: "ends_with", Fn: text(strings.HasSuffix)})
	r.Register(&Operator{Name: "matches", New: newMatcher})
	r.Register(&Operator{Name: "is_null", Unary: true, Fn: func(l, _ Value) bool { return !l.Present || l.V == nil }})
	r.Register(&Operator{Name: "is_not_null", Unary: true, Fn: func(l, _ Value) bool { return l.Present && l.V != nil }})
	return r
}

// DefaultOperators is the process-wide registry used by NewPredicate.
var DefaultOperators = NewOperators()

// Register installs or replaces an operator.
func (r *Operators) Register(op *Operator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops[op.Name] = op
}

// Lookup returns the operator named name.
func (r *Operators) Lookup(name string) (*Operator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.ops[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperator, name)
	}
	return op, nil
}

// Names lists operator names in sorted order.
func (r *Operators) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.ops))
	for n := range r.ops {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Predicate builds a predicate bound to an operator from r.
func (r *Operators) Predicate(left, operator string, right Operand) (*Predicate, error) {
	op, err := r.Lookup(operator)
	if err != nil {
		return nil, err
	}
	return &Predicate{Left: left, Operator: operator, Right: right, op: op, fn: op.bind()}, nil
}

func numeric(v Value) (float64, bool) {
	if v.Kind == value.KindBool {
		return 0, false
	}
	return value.ToFloat(v.V)
}

// coerceRight converts right to the kind of left. Numbers compare as
// floats whether they are ints or floats.
func coerceRight(l, r Value) (any, bool) {
	if _, ok := numeric(l); ok {
		return numeric(r)
	}
	if l.Kind == value.KindAny {
		return r.V, true
	}
	return value.Coerce(r.V, l.Kind)
}

func equals(l, r Value) bool {
	if lf, ok := numeric(l); ok {
		rf, ok := numeric(r)
		return ok && lf == rf
	}
	rv, ok := coerceRight(l, r)
	return ok && reflect.DeepEqual(l.V, rv)
}

func ordered(accept func(int) bool) func(l, r Value) bool {
	return func(l, r Value) bool {
		if lf, ok := numeric(l); ok {
			rf, ok := numeric(r)
			if !ok {
				return false
			}
			switch {
			case lf < rf:
				return accept(-1)
			case lf > rf:
				return accept(1)
			}
			return accept(0)
		}
		ls, lok := l.V.(string)
		rs, rok := r.V.(string)
		if !lok || !rok {
			return false
		}
		return accept(strings.Compare(ls, rs))
	}
}

// text applies a case-insensitive string test. Enums count as strings.
func text(fn func(s, sub string) bool) func(l, r Value) bool {
	return func(l, r Value) bool {
		ls, lok := asString(l.V)
		rs, rok := asString(r.V)
		if !lok || !rok {
			return false
		}
		return fn(strings.ToLower(ls), strings.ToLower(rs))
	}
}

func asString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case value.Enum:
		return string(x), true
	}
	return "", false
}

// newMatcher returns a comparison testing the left string against the
// right operand as a regular expression. It keeps the last compiled
// pattern, so a static pattern compiles once and one read from state
// recompiles only when it changes. Invalid patterns never match.
func newMatcher() func(l, r Value) bool {
	var (
		mu  sync.Mutex
		src string
		re  *regexp.Regexp
		set bool
	)
	return func(l, r Value) bool {
		s, ok := asString(l.V)
		if !ok {
			return false
		}
		pat, ok := r.V.(string)
		if !ok {
			return false
		}
		mu.Lock()
		if !set || pat != src {
			src, set = pat, true
			re, _ = regexp.Compile(pat)
		}
		cur := re
		mu.Unlock()
		return cur != nil && cur.MatchString(s)
	}
}
