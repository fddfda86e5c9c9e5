package shader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want Value
	}{
		{"0", Uint(0)},
		{"4294967295", Uint(4294967295)},
		{"-3", Int(-3)},
		{"1.5", Float(1.5)},
		{"4294967296", Float(4294967296)},
		{"true", Bool(true)},
		{"FALSE", Bool(false)},
		{"True", Bool(true)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseValue(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseValue("yes")
	assert.ErrorIs(t, err, ErrInvalidDefineValue)
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "7", Uint(7).String())
	assert.Equal(t, "-7", Int(-7).String())
	assert.Equal(t, "0.1", Float(0.1).String())
	assert.Equal(t, "2", Float(2).String())
	assert.Equal(t, "false", Bool(false).String())
	assert.Equal(t, "true", Def().String())
}

func TestCompareCoercion(t *testing.T) {
	tests := []struct {
		name string
		lhs  Value
		op   IfOp
		rhs  Value
		want bool
	}{
		{"bool lhs becomes uint", Bool(true), IfEq, Uint(1), true},
		{"bool rhs becomes uint", Uint(0), IfEq, Bool(false), true},
		{"def equals one", Def(), IfEq, Uint(1), true},
		{"def is not zero", Def(), IfNe, Uint(0), true},
		{"negative int wraps to uint", Uint(4294967295), IfEq, Int(-1), true},
		{"float saturates to uint zero", Uint(0), IfEq, Float(-5), true},
		{"float saturates to uint max", Uint(4294967295), IfEq, Float(1e20), true},
		{"float truncates to int", Int(2), IfEq, Float(2.9), true},
		{"uint casts to float", Float(2.5), IfGt, Uint(2), true},
		{"lhs type dominates", Int(-1), IfLt, Uint(0), true},
		{"uint lhs compares unsigned", Uint(0), IfLt, Int(-1), true},
		{"le", Uint(3), IfLe, Uint(3), true},
		{"ge false", Uint(2), IfGe, Uint(3), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.op.Compare(tt.lhs, tt.rhs)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompareDefHasNoOrdering(t *testing.T) {
	_, err := IfGt.Compare(Def(), Uint(0))
	assert.ErrorIs(t, err, ErrUnsupportedIfOperation)

	_, err = IfLe.Compare(Uint(1), Def())
	assert.ErrorIs(t, err, ErrUnsupportedIfOperation)
}
