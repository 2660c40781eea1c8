package gosortable

import (
	"testing"

	"gorm.io/gorm/clause"
)

func Test_RankCondition_toExpression(t *testing.T) {
	tests := []struct {
		name     string
		cond     RankCondition
		column   string
		wantSQL  string
		wantVars []interface{}
	}{
		{
			name:     "greater than",
			cond:     RankCondition{Operator: OperatorGT, Value: 10},
			column:   "weight",
			wantSQL:  "weight > ?",
			wantVars: []interface{}{int64(10)},
		},
		{
			name:     "inclusive less than on a qualified column",
			cond:     RankCondition{Operator: OperatorLTE, Value: -3},
			column:   "t.position",
			wantSQL:  "t.position <= ?",
			wantVars: []interface{}{int64(-3)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr := tt.cond.toGORMExpression(tt.column)
			clauseExpr := expr.(clause.Expr)

			if clauseExpr.SQL != tt.wantSQL {
				t.Errorf("unexpected SQL: got %s, want %s", clauseExpr.SQL, tt.wantSQL)
			}

			if len(clauseExpr.Vars) != len(tt.wantVars) {
				t.Errorf("unexpected vars length: got %d, want %d", len(clauseExpr.Vars), len(tt.wantVars))
			}

			for i, wantVar := range tt.wantVars {
				if clauseExpr.Vars[i] != wantVar {
					t.Errorf("unexpected var[%d]: got %v, want %v", i, clauseExpr.Vars[i], wantVar)
				}
			}
		})
	}
}

func Test_RankCondition_Matches(t *testing.T) {
	tests := []struct {
		name string
		cond RankCondition
		rank int64
		want bool
	}{
		{"strict excludes bound", RankCondition{Operator: OperatorLT, Value: 5}, 5, false},
		{"inclusive keeps bound", RankCondition{Operator: OperatorLTE, Value: 5}, 5, true},
		{"greater", RankCondition{Operator: OperatorGT, Value: 5}, 6, true},
		{"negative ranks", RankCondition{Operator: OperatorGTE, Value: -2}, -3, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cond.Matches(tt.rank); got != tt.want {
				t.Errorf("%s: got %v want %v", tt.name, got, tt.want)
			}
		})
	}
}

func Test_RankCondition_validate(t *testing.T) {
	if err := (RankCondition{Operator: "=", Value: 1}).validate(); err == nil {
		t.Error("expected error for unsupported operator")
	}
	if err := (RankCondition{Operator: OperatorGTE, Value: 1}).validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
