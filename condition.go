package gosortable

import (
	"fmt"

	"gorm.io/gorm/clause"
)

// RankCondition restricts a query to ranks satisfying "<column> Operator Value".
type RankCondition struct {
	Operator Operator
	Value    int64
}

// Matches reports whether rank satisfies the condition.
func (c RankCondition) Matches(rank int64) bool {
	return c.Operator.Compare(rank, c.Value)
}

func (c RankCondition) validate() error {
	if !c.Operator.Valid() {
		return fmt.Errorf("invalid rank operator '%s'", c.Operator)
	}

	return nil
}

// toSQLClause converts the condition to an SQL condition of the form
// "column Operator ?" with a corresponding value.
//
// Example:
//
//	RankCondition{Operator: "<=", Value: 10}.toSQLClause("weight")
//
// Result:
//
//	("weight <= ?", 10)
func (c RankCondition) toSQLClause(column string) (string, any) {
	return fmt.Sprintf("%s %s ?", column, c.Operator), c.Value
}

// toGORMExpression converts the condition into a clause.Expression.
//
// IMPORTANT: The method uses the SQL placeholder "?".
func (c RankCondition) toGORMExpression(column string) clause.Expression {
	sqlClause, arg := c.toSQLClause(column)

	return clause.Expr{
		SQL:  sqlClause,
		Vars: []any{arg},
	}
}
