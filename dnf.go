package gosortable

import (
	"github.com/samber/lo"
	"gorm.io/gorm/clause"
)

type (
	tConjunct struct {
		Column   string
		Value    any
		Operator Operator
	}

	tDisjunct []tConjunct

	// tDNF represents the disjunctive normal form (DNF) of a logical expression.
	// Each disjunct is joined by OR, and each disjunct consists of a list of
	// conjuncts which are joined by AND. A conjunct is the value of
	// Operator(Column, Value).
	//
	// Thus:
	//
	//	DNF = X1 OR X2 ... OR Xn, where Xi = Ai1 AND Ai2 ... AND Aim.
	tDNF []tDisjunct
)

// inflateDNF turns a keyset position [(C1, O1, V1), (C2, O2, V2)... (Cn, On, Vn)]
// into the filter selecting every row that follows it:
//
//	(C1 O1 V1) OR (C1 = V1 AND C2 O2 V2) OR ...
//
// The last column must be unique for the position to be unambiguous.
func inflateDNF(position []tConjunct) tDNF {
	if len(position) == 0 {
		return nil
	}

	dnf := make(tDNF, 0, len(position))
	for i := range position {
		equalities := lo.Map(position[:i], func(item tConjunct, _ int) tConjunct {
			return item.withEquality()
		})

		disjunct := make(tDisjunct, 0, len(equalities)+1)
		disjunct = append(disjunct, equalities...)
		disjunct = append(disjunct, position[i])

		dnf = append(dnf, disjunct)
	}

	return dnf
}

func (c tConjunct) withEquality() tConjunct {
	c.Operator = operatorEq
	return c
}

// toGORMExpression converts a conjunct of the form Operator(Column, Value)
// into an SQL condition "Column Operator ?" represented as a clause.Expression.
//
// IMPORTANT: The method uses the SQL placeholder "?".
func (c tConjunct) toGORMExpression() clause.Expression {
	return clause.Expr{
		SQL:  c.Column + " " + string(c.Operator) + " ?",
		Vars: []any{c.Value},
	}
}

// toGORMExpression converts a disjunct (K1, K2, K3) into a gorm expression
// "K1 AND K2 AND K3" where each Ki is expanded via tConjunct.toGORMExpression.
func (d tDisjunct) toGORMExpression() clause.Expression {
	andExpressions := lo.Map(d, func(conjunct tConjunct, _ int) clause.Expression {
		return conjunct.toGORMExpression()
	})

	if len(andExpressions) == 1 {
		return andExpressions[0]
	} else if len(andExpressions) > 1 {
		return clause.And(andExpressions...)
	}

	return nil
}

// toGORMExpression converts a DNF (tDNF) into a clause.Expression.
// For each disjunct it calls tDisjunct.toGORMExpression and joins disjuncts with OR.
func (d tDNF) toGORMExpression() clause.Expression {
	orExpressions := make([]clause.Expression, 0, len(d))

	for _, disjunct := range d {
		andExpressions := disjunct.toGORMExpression()
		if andExpressions == nil {
			continue
		}

		orExpressions = append(orExpressions, andExpressions)
	}

	if len(orExpressions) == 1 {
		return orExpressions[0]
	} else if len(orExpressions) > 1 {
		return clause.Or(orExpressions...)
	}

	return nil
}
