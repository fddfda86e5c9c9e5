package shader

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// Binding is one @group(N) @binding(M) resource declaration found in WGSL source.
type Binding struct {
	Group        uint32
	Binding      uint32
	Name         string
	AddressSpace string
	Type         string
}

// Reflection is what the engine reads back from preprocessed WGSL: entry points, vertex inputs,
// resource declarations and struct layouts. Pipelines take their entry points and vertex buffer
// layouts from it; GPU struct sizes are checked against it.
type Reflection struct {
	// VertexEntry is the first @vertex function name, or empty.
	VertexEntry string
	// FragmentEntry is the first @fragment function name, or empty.
	FragmentEntry string
	// VertexLayouts holds one layout per struct parameter of the vertex entry point, in parameter
	// order, so the slot index matches the parameter position. Structs whose name starts with
	// "Instance" step per instance.
	VertexLayouts []wgpu.VertexBufferLayout
	// Bindings holds every resource declaration, sorted by group then binding.
	Bindings []Binding

	structs map[string]typeLayout
}

type typeLayout struct {
	size  uint64
	align uint64
}

type parsedField struct {
	name      string
	typeName  string
	location  int
	isBuiltin bool
}

type parsedStruct struct {
	name   string
	fields []parsedField
}

type vertexFormatInfo struct {
	format wgpu.VertexFormat
	size   uint64
}

var vertexFormats = map[string]vertexFormatInfo{
	"f32":       {wgpu.VertexFormatFloat32, 4},
	"vec2f":     {wgpu.VertexFormatFloat32x2, 8},
	"vec2<f32>": {wgpu.VertexFormatFloat32x2, 8},
	"vec3f":     {wgpu.VertexFormatFloat32x3, 12},
	"vec3<f32>": {wgpu.VertexFormatFloat32x3, 12},
	"vec4f":     {wgpu.VertexFormatFloat32x4, 16},
	"vec4<f32>": {wgpu.VertexFormatFloat32x4, 16},
	"u32":       {wgpu.VertexFormatUint32, 4},
	"vec2<u32>": {wgpu.VertexFormatUint32x2, 8},
	"vec4<u32>": {wgpu.VertexFormatUint32x4, 16},
	"i32":       {wgpu.VertexFormatSint32, 4},
	"vec4<i32>": {wgpu.VertexFormatSint32x4, 16},
}

// Sizes and alignments per https://www.w3.org/TR/WGSL/#alignment-and-size
var primitiveLayouts = map[string]typeLayout{
	"f32":         {4, 4},
	"i32":         {4, 4},
	"u32":         {4, 4},
	"bool":        {4, 4},
	"vec2<f32>":   {8, 8},
	"vec2f":       {8, 8},
	"vec2<u32>":   {8, 8},
	"vec3<f32>":   {12, 16},
	"vec3f":       {12, 16},
	"vec3<u32>":   {12, 16},
	"vec4<f32>":   {16, 16},
	"vec4f":       {16, 16},
	"vec4<u32>":   {16, 16},
	"vec4<i32>":   {16, 16},
	"mat3x3<f32>": {48, 16},
	"mat4x4<f32>": {64, 16},
	"mat4x4f":     {64, 16},
}

var (
	structBlockRegex   = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)
	locationRegex      = regexp.MustCompile(`@location\((\d+)\)`)
	builtinRegex       = regexp.MustCompile(`@builtin\(\w+\)`)
	fieldRegex         = regexp.MustCompile(`(?:(?:@\w+\([^)]*\)\s*)*)*\s*(\w+)\s*:\s*(.+)`)
	vertexEntryRegex   = regexp.MustCompile(`(?s)@vertex\b.*?\bfn\s+(\w+)`)
	fragmentEntryRegex = regexp.MustCompile(`(?s)@fragment\b.*?\bfn\s+(\w+)`)
	bindingDeclRegex   = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)
)

// Reflect scans preprocessed WGSL source.
//
// Parameters:
//   - source: WGSL with all preprocessor directives already resolved
//
// Returns:
//   - Reflection: the entry points, vertex layouts, bindings and struct layouts found
func Reflect(source string) Reflection {
	cleaned := stripComments(source)
	structs := parseStructBlocks(cleaned)

	r := Reflection{structs: computeStructLayouts(structs)}
	if m := vertexEntryRegex.FindStringSubmatch(cleaned); m != nil {
		r.VertexEntry = m[1]
	}
	if m := fragmentEntryRegex.FindStringSubmatch(cleaned); m != nil {
		r.FragmentEntry = m[1]
	}

	byName := make(map[string]parsedStruct, len(structs))
	for _, ps := range structs {
		byName[ps.name] = ps
	}
	for _, typeName := range entryParamTypes(cleaned, r.VertexEntry) {
		ps, ok := byName[typeName]
		if !ok || !isVertexInput(ps) {
			continue
		}
		if layout, ok := vertexBufferLayout(ps); ok {
			r.VertexLayouts = append(r.VertexLayouts, layout)
		}
	}

	for _, m := range bindingDeclRegex.FindAllStringSubmatch(cleaned, -1) {
		group, _ := strconv.ParseUint(m[1], 10, 32)
		binding, _ := strconv.ParseUint(m[2], 10, 32)
		r.Bindings = append(r.Bindings, Binding{
			Group:        uint32(group),
			Binding:      uint32(binding),
			AddressSpace: strings.TrimSpace(m[3]),
			Name:         strings.TrimSpace(m[4]),
			Type:         strings.TrimSpace(m[5]),
		})
	}
	sort.Slice(r.Bindings, func(i, j int) bool {
		if r.Bindings[i].Group != r.Bindings[j].Group {
			return r.Bindings[i].Group < r.Bindings[j].Group
		}
		return r.Bindings[i].Binding < r.Bindings[j].Binding
	})
	return r
}

// StructSize returns the host-shareable size of a struct declared in the source.
func (r Reflection) StructSize(name string) (uint64, bool) {
	l, ok := r.structs[name]
	return l.size, ok
}

// Group returns the bindings declared for one group index.
func (r Reflection) Group(group uint32) []Binding {
	var out []Binding
	for _, b := range r.Bindings {
		if b.Group == group {
			out = append(out, b)
		}
	}
	return out
}

// entryParamTypes returns the parameter type names of fn name, in order.
func entryParamTypes(source, name string) []string {
	if name == "" {
		return nil
	}
	loc := regexp.MustCompile(`\bfn\s+` + regexp.QuoteMeta(name) + `\s*\(`).FindStringIndex(source)
	if loc == nil {
		return nil
	}

	start, depth := loc[1], 1
	end := start
	for ; end < len(source) && depth > 0; end++ {
		switch source[end] {
		case '(':
			depth++
		case ')':
			depth--
		}
	}
	params := source[start : end-1]

	var types []string
	for _, param := range splitAtTopLevelCommas(params) {
		if m := fieldRegex.FindStringSubmatch(strings.TrimSpace(param)); m != nil {
			types = append(types, strings.TrimSpace(m[2]))
		}
	}
	return types
}

func parseStructBlocks(source string) []parsedStruct {
	matches := structBlockRegex.FindAllStringSubmatch(source, -1)
	structs := make([]parsedStruct, 0, len(matches))
	for _, m := range matches {
		structs = append(structs, parsedStruct{name: m[1], fields: parseStructFields(m[2])})
	}
	return structs
}

func parseStructFields(body string) []parsedField {
	parts := splitAtTopLevelCommas(body)
	fields := make([]parsedField, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		field := parsedField{location: -1, isBuiltin: builtinRegex.MatchString(part)}
		if m := locationRegex.FindStringSubmatch(part); m != nil {
			field.location, _ = strconv.Atoi(m[1])
		}
		fm := fieldRegex.FindStringSubmatch(part)
		if fm == nil {
			continue
		}
		field.name = fm[1]
		field.typeName = strings.TrimSpace(fm[2])
		fields = append(fields, field)
	}
	return fields
}

// isVertexInput reports whether every field has a @location and none is a builtin. Vertex outputs mix
// @location with @builtin(position) and are skipped.
func isVertexInput(ps parsedStruct) bool {
	if len(ps.fields) == 0 {
		return false
	}
	for _, f := range ps.fields {
		if f.isBuiltin || f.location < 0 {
			return false
		}
	}
	return true
}

func vertexBufferLayout(ps parsedStruct) (wgpu.VertexBufferLayout, bool) {
	attrs := make([]wgpu.VertexAttribute, 0, len(ps.fields))
	var offset uint64
	for _, f := range ps.fields {
		info, ok := vertexFormats[f.typeName]
		if !ok {
			return wgpu.VertexBufferLayout{}, false
		}
		attrs = append(attrs, wgpu.VertexAttribute{
			Format:         info.format,
			Offset:         offset,
			ShaderLocation: uint32(f.location),
		})
		offset += info.size
	}

	step := wgpu.VertexStepModeVertex
	if strings.HasPrefix(ps.name, "Instance") {
		step = wgpu.VertexStepModeInstance
	}
	return wgpu.VertexBufferLayout{ArrayStride: offset, StepMode: step, Attributes: attrs}, true
}

func roundUp(alignment, value uint64) uint64 {
	if alignment == 0 {
		return value
	}
	return (value + alignment - 1) &^ (alignment - 1)
}

func resolveTypeLayout(typeName string, known map[string]typeLayout) (typeLayout, bool) {
	if l, ok := primitiveLayouts[typeName]; ok {
		return l, true
	}
	if l, ok := known[typeName]; ok {
		return l, true
	}
	if !strings.HasPrefix(typeName, "array<") || !strings.HasSuffix(typeName, ">") {
		return typeLayout{}, false
	}

	elemType, countStr, fixed := strings.Cut(typeName[6:len(typeName)-1], ",")
	elem, ok := resolveTypeLayout(strings.TrimSpace(elemType), known)
	if !ok {
		return typeLayout{}, false
	}
	stride := roundUp(elem.align, elem.size)
	if !fixed {
		return typeLayout{stride, elem.align}, true
	}
	count, err := strconv.ParseUint(strings.TrimSpace(countStr), 10, 64)
	if err != nil {
		return typeLayout{}, false
	}
	return typeLayout{count * stride, elem.align}, true
}

func computeStructLayouts(structs []parsedStruct) map[string]typeLayout {
	resolved := make(map[string]typeLayout, len(structs))
	remaining := append([]parsedStruct(nil), structs...)

	for len(remaining) > 0 {
		next := remaining[:0]
		for _, ps := range remaining {
			if l, ok := structLayout(ps, resolved); ok {
				resolved[ps.name] = l
			} else {
				next = append(next, ps)
			}
		}
		if len(next) == len(remaining) {
			break
		}
		remaining = next
	}
	return resolved
}

func structLayout(ps parsedStruct, known map[string]typeLayout) (typeLayout, bool) {
	offset, maxAlign := uint64(0), uint64(1)
	for _, f := range ps.fields {
		if f.isBuiltin {
			continue
		}
		l, ok := resolveTypeLayout(f.typeName, known)
		if !ok {
			return typeLayout{}, false
		}
		offset = roundUp(l.align, offset) + l.size
		maxAlign = max(maxAlign, l.align)
	}
	return typeLayout{roundUp(maxAlign, offset), maxAlign}, true
}

func splitAtTopLevelCommas(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

func stripComments(source string) string {
	return stripLineComments(stripBlockComments(source))
}

func stripLineComments(source string) string {
	var sb strings.Builder
	for line := range strings.SplitSeq(source, "\n") {
		if idx := strings.Index(line, "//"); idx >= 0 {
			line = line[:idx]
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// stripBlockComments removes /* */ comments, which nest in WGSL.
func stripBlockComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	depth := 0
	for i := 0; i < len(source); {
		if i+1 < len(source) {
			if source[i] == '/' && source[i+1] == '*' {
				depth++
				i += 2
				continue
			}
			if source[i] == '*' && source[i+1] == '/' {
				if depth > 0 {
					depth--
				}
				i += 2
				continue
			}
		}
		if depth == 0 {
			sb.WriteByte(source[i])
		}
		i++
	}
	return sb.String()
}
