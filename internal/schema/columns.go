package schema

import "time"

func strCol[T any](field, name string, p func(*T) *string) Column[T] {
	return Column[T]{
		Field: field,
		Name:  name,
		Get:   func(e *T) any { return *p(e) },
		Ptr:   func(e *T) any { return p(e) },
	}
}

func keyCol[T any](field, name string, p func(*T) *string) Column[T] {
	c := strCol(field, name, p)
	c.Key = true
	c.Immutable = true
	return c
}

func optStrCol[T any](field, name string, p func(*T) **string) Column[T] {
	return Column[T]{
		Field: field,
		Name:  name,
		Get: func(e *T) any {
			if v := *p(e); v != nil {
				return *v
			}
			return nil
		},
		Ptr: func(e *T) any { return p(e) },
	}
}

func boolCol[T any](field, name string, p func(*T) *bool) Column[T] {
	return Column[T]{
		Field: field,
		Name:  name,
		Get:   func(e *T) any { return *p(e) },
		Ptr:   func(e *T) any { return p(e) },
	}
}

func intCol[T any](field, name string, p func(*T) *int) Column[T] {
	return Column[T]{
		Field: field,
		Name:  name,
		Get:   func(e *T) any { return *p(e) },
		Ptr:   func(e *T) any { return p(e) },
	}
}

func int64Col[T any](field, name string, p func(*T) *int64) Column[T] {
	return Column[T]{
		Field: field,
		Name:  name,
		Get:   func(e *T) any { return *p(e) },
		Ptr:   func(e *T) any { return p(e) },
	}
}

func floatCol[T any](field, name string, p func(*T) *float64) Column[T] {
	return Column[T]{
		Field: field,
		Name:  name,
		Get:   func(e *T) any { return *p(e) },
		Ptr:   func(e *T) any { return p(e) },
	}
}

func timeCol[T any](field, name string, p func(*T) *time.Time) Column[T] {
	return Column[T]{
		Field: field,
		Name:  name,
		Get:   func(e *T) any { return *p(e) },
		Ptr:   func(e *T) any { return p(e) },
	}
}

func createdCol[T any](field, name string, p func(*T) *time.Time) Column[T] {
	c := timeCol(field, name, p)
	c.Immutable = true
	return c
}

func optTimeCol[T any](field, name string, p func(*T) **time.Time) Column[T] {
	return Column[T]{
		Field: field,
		Name:  name,
		Get: func(e *T) any {
			if v := *p(e); v != nil {
				return *v
			}
			return nil
		},
		Ptr: func(e *T) any { return p(e) },
	}
}
