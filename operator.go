package gosortable

import "fmt"

// Operator defines a comparison operator applied to the rank column.
type Operator string

const (
	OperatorGT  Operator = ">"
	OperatorLT  Operator = "<"
	OperatorGTE Operator = ">="
	OperatorLTE Operator = "<="

	// operatorEq is private: it is used ONLY while inflating page tokens.
	operatorEq Operator = "="
)

func (o Operator) Valid() bool {
	switch o {
	case OperatorGT, OperatorLT, OperatorGTE, OperatorLTE:
		return true
	default:
		return false
	}
}

// Inclusive returns the non-strict form of the operator.
func (o Operator) Inclusive() Operator {
	switch o {
	case OperatorGT, OperatorGTE:
		return OperatorGTE
	case OperatorLT, OperatorLTE:
		return OperatorLTE
	default:
		panic(fmt.Errorf("cannot make operator '%s' inclusive", o))
	}
}

// ForOrdering returns the direction which lists the nearest matching
// record first.
func (o Operator) ForOrdering() Direction {
	switch o {
	case OperatorGT, OperatorGTE:
		return DirectionASC
	case OperatorLT, OperatorLTE:
		return DirectionDESC
	default:
		panic(fmt.Errorf("cannot map operator '%s' to ordering", o))
	}
}

// Compare reports whether "a <op> b" holds.
func (o Operator) Compare(a, b int64) bool {
	switch o {
	case OperatorGT:
		return a > b
	case OperatorLT:
		return a < b
	case OperatorGTE:
		return a >= b
	case OperatorLTE:
		return a <= b
	case operatorEq:
		return a == b
	default:
		panic(fmt.Errorf("cannot compare with operator '%s'", o))
	}
}
