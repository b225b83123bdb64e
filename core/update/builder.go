package update

import (
	"fmt"

	"github.com/asaidimu/go-mockdb/core/document"
)

// Builder provides a fluent API for building update expressions.
//
//	expr, err := update.NewBuilder().
//		Set("status", "done").
//		Inc("revision", 1).
//		Upsert(true).
//		Build()
type Builder struct {
	expr *Expression
	err  error
}

// NewBuilder creates a new, empty update builder.
func NewBuilder() *Builder {
	return &Builder{expr: NewExpression()}
}

// Build returns the constructed expression or the first conversion error.
func (b *Builder) Build() (*Expression, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.expr, nil
}

// MustBuild is like Build but panics on error.
func (b *Builder) MustBuild() *Expression {
	expr, err := b.Build()
	if err != nil {
		panic(err)
	}
	return expr
}

func (b *Builder) add(op Operator, field string, value any) *Builder {
	v, err := document.FromAny(value)
	if err != nil {
		if b.err == nil {
			b.err = fmt.Errorf("%w: %s on field %q: %v", ErrInvalidExpression, op, field, err)
		}
		return b
	}
	b.expr.add(op, field, v)
	return b
}

// Set replaces field with value.
func (b *Builder) Set(field string, value any) *Builder {
	return b.add(OperatorSet, field, value)
}

// Inc adds n to field.
func (b *Builder) Inc(field string, n float64) *Builder {
	return b.add(OperatorInc, field, n)
}

// Mul multiplies field by n.
func (b *Builder) Mul(field string, n float64) *Builder {
	return b.add(OperatorMul, field, n)
}

// Min lowers field to n when n is smaller.
func (b *Builder) Min(field string, n float64) *Builder {
	return b.add(OperatorMin, field, n)
}

// Max raises field to n when n is larger.
func (b *Builder) Max(field string, n float64) *Builder {
	return b.add(OperatorMax, field, n)
}

// Unset removes fields.
func (b *Builder) Unset(fields ...string) *Builder {
	for _, f := range fields {
		b.add(OperatorUnset, f, "")
	}
	return b
}

// Rename moves field from to field to.
func (b *Builder) Rename(from, to string) *Builder {
	return b.add(OperatorRename, from, to)
}

// AddToSet appends value to the array field unless an equal element exists.
func (b *Builder) AddToSet(field string, value any) *Builder {
	return b.add(OperatorAddToSet, field, value)
}

// PopFirst removes the first element of the array field.
func (b *Builder) PopFirst(field string) *Builder {
	return b.add(OperatorPop, field, -1)
}

// PopLast removes the last element of the array field.
func (b *Builder) PopLast(field string) *Builder {
	return b.add(OperatorPop, field, 1)
}

// Push appends value to the array field.
func (b *Builder) Push(field string, value any) *Builder {
	return b.add(OperatorPush, field, value)
}

// PullAll removes every element of the array field equal to one of values.
func (b *Builder) PullAll(field string, values ...any) *Builder {
	return b.add(OperatorPullAll, field, values)
}

// SetOnInsert sets field only when an upsert inserts a new document.
func (b *Builder) SetOnInsert(field string, value any) *Builder {
	return b.add(OperatorSetOnInsert, field, value)
}

// Upsert sets the upsert flag.
func (b *Builder) Upsert(upsert bool) *Builder {
	b.expr.Upsert = upsert
	return b
}
