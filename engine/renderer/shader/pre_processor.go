// pre_processor.go implements the WGSL preprocessor. Build runs in two phases: includes are
// flattened into a single line list with an explicit include stack, then the flat list is
// interpreted top to bottom against a stack of scope flags.
//
// Supported directives:
//   - #include module::name
//   - #define KEY [VALUE]
//   - #ifdef KEY, #ifndef KEY
//   - #if LHS [op RHS] with op one of == != > >= < <=
//   - #else, #endif
//   - ${KEY} and #{KEY} substitution on every line
//
// Lines starting with // are dropped.
package shader

import (
	"maps"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-xr/common"
)

var (
	commentRegex   = regexp.MustCompile(`^\s*//`)
	includeRegex   = regexp.MustCompile(`^\s*#include\s+([a-zA-Z0-9_/.:]+)`)
	defineRegex    = regexp.MustCompile(`^\s*#define\s+(\w+)(?:\s+(\w+))?`)
	ifdefRegex     = regexp.MustCompile(`^\s*#ifdef\s+(\w+)`)
	ifndefRegex    = regexp.MustCompile(`^\s*#ifndef\s+(\w+)`)
	ifRegex        = regexp.MustCompile(`^\s*#if\s+(\w+)(?:\s*([!=><]+)\s*(\w+))?\s*(?://.*)?$`)
	elseRegex      = regexp.MustCompile(`^\s*#else`)
	endifRegex     = regexp.MustCompile(`^\s*#endif`)
	directiveRegex = regexp.MustCompile(`^\s*#(?:include|define|ifdef|ifndef|if)\b`)
	replaceRegex   = regexp.MustCompile(`[#$]\{(\w+)\}`)
)

// ModuleSource is preprocessed WGSL ready for shader module creation.
type ModuleSource struct {
	Label string
	Code  string
}

// sourceLine is one line of flattened source, tagged with where it came from.
type sourceLine struct {
	text   string
	module string
	number int
	stack  []string
}

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	mu      *sync.Mutex
	modules map[string]string
	logger  common.Logger
}

// PreProcessor expands includes, defines and conditional blocks in WGSL source.
// Registered include modules are shared by every Build call; defines are per call.
type PreProcessor interface {
	// AddIncludeModule registers or replaces an include module.
	//
	// Parameters:
	//   - name: the module name used by #include, e.g. "postproc::types"
	//   - source: the module's WGSL source, which may itself contain directives
	AddIncludeModule(name, source string)

	// IncludeModule returns the registered source for a module.
	//
	// Parameters:
	//   - name: the module name
	//
	// Returns:
	//   - string: the module source
	//   - bool: true if the module is registered
	IncludeModule(name string) (string, bool)

	// IncludeModules returns the registered module names in sorted order.
	//
	// Returns:
	//   - []string: the module names
	IncludeModules() []string

	// Build preprocesses source with the given defines.
	//
	// Parameters:
	//   - source: the root WGSL source
	//   - defs: caller defines, consulted before any #define in the source
	//   - label: the label carried into the result and into errors
	//
	// Returns:
	//   - ModuleSource: the expanded source
	//   - error: a *PreprocessError describing the first failure
	Build(source string, defs map[string]Value, label string) (ModuleSource, error)
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor with no include modules unless options add them.
//
// Parameters:
//   - options: optional builder options
//
// Returns:
//   - PreProcessor: the preprocessor
func NewPreProcessor(options ...PreProcessorBuilderOption) PreProcessor {
	p := &preProcessor{
		mu:      &sync.Mutex{},
		modules: make(map[string]string),
		logger:  common.NewNopLogger(),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *preProcessor) AddIncludeModule(name, source string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.modules[name] = source
}

func (p *preProcessor) IncludeModule(name string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	src, ok := p.modules[name]
	return src, ok
}

func (p *preProcessor) IncludeModules() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Sorted(maps.Keys(p.modules))
}

func (p *preProcessor) Build(source string, defs map[string]Value, label string) (ModuleSource, error) {
	p.mu.Lock()
	modules := maps.Clone(p.modules)
	p.mu.Unlock()

	lines, err := flatten(splitLines(source), "", nil, modules)
	if err != nil {
		err.Label = label
		err.Defs = defs
		return ModuleSource{}, err
	}

	code, err := interpret(lines, defs)
	if err != nil {
		err.Label = label
		err.Defs = defs
		return ModuleSource{}, err
	}

	p.logger.Debugf("preprocessed %s: %d flattened lines", label, len(lines))
	return ModuleSource{Label: label, Code: code}, nil
}

func splitLines(source string) []string {
	source = strings.ReplaceAll(source, "\r\n", "\n")
	return strings.Split(strings.TrimSuffix(source, "\n"), "\n")
}

// flatten inlines every #include. stack holds the modules currently being expanded.
func flatten(lines []string, module string, stack []string, modules map[string]string) ([]sourceLine, *PreprocessError) {
	out := make([]sourceLine, 0, len(lines))
	for i, text := range lines {
		m := includeRegex.FindStringSubmatch(text)
		if m == nil {
			if strings.HasPrefix(strings.TrimSpace(text), "#include") {
				return nil, &PreprocessError{Kind: ErrDirectiveSyntax, Module: module, Line: text, LineNumber: i + 1, Stack: stack}
			}
			out = append(out, sourceLine{text: text, module: module, number: i + 1, stack: stack})
			continue
		}

		name := m[1]
		if slices.Contains(stack, name) {
			return nil, &PreprocessError{
				Kind:       ErrIncludeCycle,
				Module:     name,
				Line:       text,
				LineNumber: i + 1,
				Stack:      slices.Clone(stack),
			}
		}
		src, ok := modules[name]
		if !ok {
			return nil, &PreprocessError{Kind: ErrIncludeNotFound, Module: module, Key: name, Line: text, LineNumber: i + 1, Stack: stack, detail: name}
		}

		inner, err := flatten(splitLines(src), name, append(slices.Clone(stack), name), modules)
		if err != nil {
			return nil, err
		}
		out = append(out, inner...)
	}
	return out, nil
}

// interpreter holds the per-Build state of the second phase.
type interpreter struct {
	defs    map[string]Value
	runtime map[string]Value
	scopes  []bool
}

func interpret(lines []sourceLine, defs map[string]Value) (string, *PreprocessError) {
	in := &interpreter{defs: defs, runtime: make(map[string]Value), scopes: []bool{true}}

	var sb strings.Builder
	for _, l := range lines {
		emit, err := in.step(l)
		if err != nil {
			err.Module = l.module
			err.Line = l.text
			err.LineNumber = l.number
			if err.Stack == nil {
				err.Stack = l.stack
			}
			err.RuntimeDefs = maps.Clone(in.runtime)
			return "", err
		}
		if emit != nil {
			sb.WriteString(*emit)
			sb.WriteByte('\n')
		}
	}

	if depth := len(in.scopes) - 1; depth != 0 {
		return "", &PreprocessError{Kind: ErrUnterminatedScope, Depth: depth, RuntimeDefs: maps.Clone(in.runtime)}
	}
	return sb.String(), nil
}

func (in *interpreter) writable() bool {
	return in.scopes[len(in.scopes)-1]
}

func (in *interpreter) lookup(key string) (Value, bool) {
	if v, ok := in.defs[key]; ok {
		return v, true
	}
	v, ok := in.runtime[key]
	return v, ok
}

func (in *interpreter) push(cond bool) {
	in.scopes = append(in.scopes, in.writable() && cond)
}

// step interprets one line and returns the text to emit, or nil.
func (in *interpreter) step(l sourceLine) (*string, *PreprocessError) {
	text, err := in.substitute(l.text)
	if err != nil {
		return nil, err
	}

	if m := defineRegex.FindStringSubmatch(text); m != nil {
		if !in.writable() {
			return nil, nil
		}
		v := Def()
		if m[2] != "" {
			parsed, perr := ParseValue(m[2])
			if perr != nil {
				return nil, &PreprocessError{Kind: ErrInvalidDefineValue, Key: m[1], detail: m[2]}
			}
			v = parsed
		}
		in.runtime[m[1]] = v
		return nil, nil
	}
	if m := ifdefRegex.FindStringSubmatch(text); m != nil {
		_, ok := in.lookup(m[1])
		in.push(ok)
		return nil, nil
	}
	if m := ifndefRegex.FindStringSubmatch(text); m != nil {
		_, ok := in.lookup(m[1])
		in.push(!ok)
		return nil, nil
	}
	if m := ifRegex.FindStringSubmatch(text); m != nil {
		cond, cerr := in.evalIf(m[1], m[2], m[3])
		if cerr != nil {
			return nil, cerr
		}
		in.push(cond)
		return nil, nil
	}
	if elseRegex.MatchString(text) {
		n := len(in.scopes)
		if n == 1 {
			return nil, &PreprocessError{Kind: ErrInvalidScope, detail: "#else without open scope"}
		}
		in.scopes[n-1] = in.scopes[n-2] && !in.scopes[n-1]
		return nil, nil
	}
	if endifRegex.MatchString(text) {
		if len(in.scopes) == 1 {
			return nil, &PreprocessError{Kind: ErrInvalidScope, detail: "#endif without open scope"}
		}
		in.scopes = in.scopes[:len(in.scopes)-1]
		return nil, nil
	}
	if directiveRegex.MatchString(text) {
		return nil, &PreprocessError{Kind: ErrDirectiveSyntax}
	}
	if commentRegex.MatchString(text) || !in.writable() {
		return nil, nil
	}
	return &text, nil
}

func (in *interpreter) substitute(text string) (string, *PreprocessError) {
	var missing string
	out := replaceRegex.ReplaceAllStringFunc(text, func(match string) string {
		key := match[2 : len(match)-1]
		v, ok := in.lookup(key)
		if !ok {
			if missing == "" {
				missing = key
			}
			return match
		}
		return v.String()
	})
	if missing != "" {
		return "", &PreprocessError{Kind: ErrDefineNotFound, Key: missing}
	}
	return out, nil
}

func (in *interpreter) operand(token string) (Value, *PreprocessError) {
	if v, ok := in.lookup(token); ok {
		return v, nil
	}
	v, err := ParseValue(token)
	if err != nil {
		return Value{}, &PreprocessError{Kind: ErrInvalidDefineValue, Key: token, detail: token}
	}
	return v, nil
}

func (in *interpreter) evalIf(lhsToken, opToken, rhsToken string) (bool, *PreprocessError) {
	lhs, err := in.operand(lhsToken)
	if err != nil {
		return false, err
	}
	if opToken == "" {
		ok, cerr := IfNe.Compare(lhs, Uint(0))
		if cerr != nil {
			return false, &PreprocessError{Kind: ErrUnsupportedIfOperation, Key: lhsToken, detail: cerr.Error()}
		}
		return ok, nil
	}

	op, ok := parseIfOp(opToken)
	if !ok {
		return false, &PreprocessError{Kind: ErrInvalidIfOperation, detail: opToken}
	}
	rhs, err := in.operand(rhsToken)
	if err != nil {
		return false, err
	}
	result, cerr := op.Compare(lhs, rhs)
	if cerr != nil {
		return false, &PreprocessError{Kind: ErrUnsupportedIfOperation, Key: lhsToken, detail: cerr.Error()}
	}
	return result, nil
}
