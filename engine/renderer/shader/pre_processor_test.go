package shader

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, pp PreProcessor, src string, defs map[string]Value) string {
	t.Helper()
	out, err := pp.Build(src, defs, "test")
	require.NoError(t, err)
	return out.Code
}

func preprocessError(t *testing.T, err error) *PreprocessError {
	t.Helper()
	var pe *PreprocessError
	require.True(t, errors.As(err, &pe), "expected *PreprocessError, got %v", err)
	return pe
}

func TestBuildPlainSourceIsIdempotent(t *testing.T) {
	pp := NewPreProcessor()
	src := "fn main() {\n    let x = 1;\n}\n"

	once := build(t, pp, src, nil)
	assert.Equal(t, src, once)
	assert.Equal(t, once, build(t, pp, once, nil))
}

func TestBuildOutputIsIdempotent(t *testing.T) {
	pp := NewPreProcessor(
		WithIncludeModule("common::consts", "#ifndef SAMPLES\n#define SAMPLES 4\n#endif\nconst N: u32 = #{SAMPLES}u;"),
		WithIncludeModule("common::sky", "fn sky() -> f32 { return ${SKY}; }"),
	)
	tests := []struct {
		name string
		src  string
		defs map[string]Value
	}{
		{"include", "#include common::consts\nfn main() {}\n", nil},
		{"include with caller define", "#include common::consts\nfn main() {}\n", map[string]Value{"SAMPLES": Uint(8)}},
		{"if else", "#if SAMPLES > 4\nlet hi = 1;\n#else\nlet lo = 1;\n#endif\n", map[string]Value{"SAMPLES": Uint(2)}},
		{"nested ifdef with include", "#ifdef SKY\n#include common::sky\n#ifdef FOG\nfog();\n#endif\n#endif\nend();\n", map[string]Value{"SKY": Float(0.25)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			once := build(t, pp, tt.src, tt.defs)
			assert.NotContains(t, once, "#")
			assert.Equal(t, once, build(t, pp, once, tt.defs))
			assert.Equal(t, once, build(t, pp, once, nil), "output no longer depends on defines")
		})
	}
}

func TestBuildDropsComments(t *testing.T) {
	pp := NewPreProcessor()
	out := build(t, pp, "a\n  // gone\nb // kept\n", nil)
	assert.Equal(t, "a\nb // kept\n", out)
}

func TestBuildInclude(t *testing.T) {
	pp := NewPreProcessor(
		WithIncludeModule("common::a", "#include common::b\nA"),
		WithIncludeModule("common::b", "B"),
	)
	assert.Equal(t, "B\nA\nroot\n", build(t, pp, "#include common::a\nroot", nil))
	assert.Equal(t, []string{"common::a", "common::b"}, pp.IncludeModules())
}

func TestBuildDiamondIncludeIsNotACycle(t *testing.T) {
	pp := NewPreProcessor(
		WithIncludeModule("a", "#include c\na"),
		WithIncludeModule("b", "#include c\nb"),
		WithIncludeModule("c", "c"),
	)
	assert.Equal(t, "c\na\nc\nb\n", build(t, pp, "#include a\n#include b", nil))
}

func TestBuildIncludeCycle(t *testing.T) {
	pp := NewPreProcessor()
	pp.AddIncludeModule("a", "#include b")
	pp.AddIncludeModule("b", "#include a")

	_, err := pp.Build("#include a", nil, "cycle")
	require.ErrorIs(t, err, ErrIncludeCycle)

	pe := preprocessError(t, err)
	assert.Equal(t, "a", pe.Module)
	assert.Equal(t, []string{"a", "b"}, pe.Stack)
	assert.Equal(t, "cycle", pe.Label)
	assert.Contains(t, pe.Error(), "a -> b")
}

func TestBuildIncludeNotFound(t *testing.T) {
	_, err := NewPreProcessor().Build("#include missing::mod", nil, "")
	require.ErrorIs(t, err, ErrIncludeNotFound)
	assert.Equal(t, "missing::mod", preprocessError(t, err).Key)
}

func TestBuildSubstitution(t *testing.T) {
	pp := NewPreProcessor()
	src := "#define RUNTIME 4\nlet a = ${COUNT};\nlet b = #{RUNTIME};\nlet c = ${SCALE};"
	out := build(t, pp, src, map[string]Value{"COUNT": Uint(3), "SCALE": Float(0.5)})
	assert.Equal(t, "let a = 3;\nlet b = 4;\nlet c = 0.5;\n", out)
}

func TestBuildCallerDefsWinOverRuntimeDefines(t *testing.T) {
	pp := NewPreProcessor()
	src := "#ifndef N\n#define N 1\n#endif\n${N}"
	assert.Equal(t, "1\n", build(t, pp, src, nil))
	assert.Equal(t, "9\n", build(t, pp, src, map[string]Value{"N": Uint(9)}))
}

func TestBuildSubstitutionMissingKey(t *testing.T) {
	_, err := NewPreProcessor().Build("ok\nvalue ${NOPE}", map[string]Value{"A": Uint(1)}, "label")
	require.ErrorIs(t, err, ErrDefineNotFound)

	pe := preprocessError(t, err)
	assert.Equal(t, "NOPE", pe.Key)
	assert.Equal(t, 2, pe.LineNumber)
	assert.Equal(t, map[string]Value{"A": Uint(1)}, pe.Defs)
}

func TestBuildSubstitutionRunsInInactiveScopes(t *testing.T) {
	_, err := NewPreProcessor().Build("#ifdef OFF\n${NOPE}\n#endif", nil, "")
	assert.ErrorIs(t, err, ErrDefineNotFound)
}

func TestBuildNestedScopes(t *testing.T) {
	src := `#define X 1
#if X == 0
A
#ifdef Y
B_INNER
#endif
#else
B
#endif`
	assert.Equal(t, "B\n", build(t, NewPreProcessor(), src, map[string]Value{"Y": Def()}))
}

func TestBuildElseUnderFalseParent(t *testing.T) {
	src := `#ifdef OUTER
#ifdef INNER
A
#else
B
#endif
#endif
C`
	assert.Equal(t, "C\n", build(t, NewPreProcessor(), src, nil))
	assert.Equal(t, "B\nC\n", build(t, NewPreProcessor(), src, map[string]Value{"OUTER": Def()}))
	assert.Equal(t, "A\nC\n", build(t, NewPreProcessor(), src, map[string]Value{"OUTER": Def(), "INNER": Def()}))
}

func TestBuildDefineInInactiveScopeIsIgnored(t *testing.T) {
	src := "#ifdef OFF\n#define K 1\n#endif\n#ifdef K\nyes\n#else\nno\n#endif"
	assert.Equal(t, "no\n", build(t, NewPreProcessor(), src, nil))
}

func TestBuildIf(t *testing.T) {
	tests := []struct {
		name string
		src  string
		defs map[string]Value
		want string
	}{
		{"bare nonzero", "#if N\nyes\n#endif", map[string]Value{"N": Uint(2)}, "yes\n"},
		{"bare zero", "#if N\nyes\n#endif", map[string]Value{"N": Uint(0)}, ""},
		{"bare def", "#if N\nyes\n#endif", map[string]Value{"N": Def()}, "yes\n"},
		{"bare false", "#if N\nyes\n#endif", map[string]Value{"N": Bool(false)}, ""},
		{"literal lhs", "#if 3 > 2\nyes\n#endif", nil, "yes\n"},
		{"define rhs", "#if 2 >= M\nyes\n#endif", map[string]Value{"M": Uint(2)}, "yes\n"},
		{"no spaces", "#if N!=1\nyes\n#else\nno\n#endif", map[string]Value{"N": Uint(1)}, "no\n"},
		{"float lhs", "#if F < 1\nyes\n#endif", map[string]Value{"F": Float(0.5)}, "yes\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, build(t, NewPreProcessor(), tt.src, tt.defs))
		})
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		defs map[string]Value
		want error
	}{
		{"else at root", "#else", nil, ErrInvalidScope},
		{"endif at root", "a\n#endif", nil, ErrInvalidScope},
		{"unterminated", "#ifdef A\n#ifdef B\n#endif", nil, ErrUnterminatedScope},
		{"bad define word", "#define K maybe", nil, ErrInvalidDefineValue},
		{"unknown operand", "#if NOPE == 1\n#endif", nil, ErrInvalidDefineValue},
		{"bad operator", "#if N => 1\n#endif", map[string]Value{"N": Uint(1)}, ErrInvalidIfOperation},
		{"def ordering", "#if N > 0\n#endif", map[string]Value{"N": Def()}, ErrUnsupportedIfOperation},
		{"define without key", "#define", nil, ErrDirectiveSyntax},
		{"include without module", "#include", nil, ErrDirectiveSyntax},
		{"if missing rhs", "#if N ==\n#endif", map[string]Value{"N": Uint(1)}, ErrDirectiveSyntax},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPreProcessor().Build(tt.src, tt.defs, tt.name)
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.name, preprocessError(t, err).Label)
		})
	}
}

func TestBuildUnterminatedScopeDepth(t *testing.T) {
	_, err := NewPreProcessor().Build("#ifdef A\n#ifdef B\n", nil, "")
	pe := preprocessError(t, err)
	assert.Equal(t, 2, pe.Depth)
	assert.Contains(t, pe.Error(), "depth 2")
}

func TestBuildErrorLocatesIncludedLine(t *testing.T) {
	pp := NewPreProcessor(WithIncludeModule("mod", "ok\n#endif"))
	_, err := pp.Build("#include mod", nil, "")
	pe := preprocessError(t, err)
	assert.Equal(t, "mod", pe.Module)
	assert.Equal(t, 2, pe.LineNumber)
	assert.Equal(t, []string{"mod"}, pe.Stack)
}
