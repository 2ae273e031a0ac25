package route

import "fmt"

// Definition is one entry of a Table. It is immutable once added.
type Definition[T any] struct {
	Method        string
	Pattern       *Pattern
	SuccessStatus int
	Streaming     bool
	Handler       T
}

// Table is an ordered route list. Lookups return the first declared match,
// so more specific patterns must be added before more general ones.
type Table[T any] struct {
	routes []*Definition[T]
}

// Add appends a route. Declaring the same method and pattern twice is an
// error.
func (t *Table[T]) Add(method, pattern string, successStatus int, streaming bool, h T) error {
	for _, r := range t.routes {
		if r.Method == method && r.Pattern.String() == pattern {
			return fmt.Errorf("route: duplicate route %s %s", method, pattern)
		}
	}
	p, err := Compile(pattern)
	if err != nil {
		return err
	}
	t.routes = append(t.routes, &Definition[T]{
		Method:        method,
		Pattern:       p,
		SuccessStatus: successStatus,
		Streaming:     streaming,
		Handler:       h,
	})
	return nil
}

// Lookup finds the first route declared for method whose pattern matches
// path.
func (t *Table[T]) Lookup(method, path string) (*Definition[T], Params, bool) {
	for _, r := range t.routes {
		if r.Method != method {
			continue
		}
		if params, ok := r.Pattern.Match(path); ok {
			return r, params, true
		}
	}
	return nil, nil, false
}

// Routes returns the definitions in declaration order.
func (t *Table[T]) Routes() []*Definition[T] {
	return append([]*Definition[T](nil), t.routes...)
}
