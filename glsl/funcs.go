package glsl

import (
	"encoding/binary"
	"strconv"
	"strings"
)

// Function is a single top-level GLSL function definition discovered by
// [ExtractFunctions].
type Function struct {
	ReturnType string
	Name       string
	// Params is the parameter list including surrounding parentheses.
	Params string
	// Body is the function body including surrounding braces.
	Body string
}

// Source returns the full definition text of the function.
func (f Function) Source() string {
	return f.ReturnType + " " + f.Name + f.Params + " " + f.Body
}

// contentHash hashes everything except the function's name so that
// identical implementations under different names collide.
func (f Function) contentHash() uint64 {
	h := Hash([]byte(f.ReturnType), 0xff51afd7ed558ccd)
	h = Hash([]byte(f.Params), h)
	return Hash([]byte(f.Body), h)
}

// ExtractFunctions lexically scans src for top-level function definitions
// of the form `returnType name(params) { ... }` and separates them from the
// remaining statement text. The scan respects line comments, block comments
// and double-quoted strings. Candidates whose name is a GLSL keyword, or
// whose return type is a keyword that is not a type name, are left in place.
func ExtractFunctions(src string) (fns []Function, rest string) {
	var sb strings.Builder
	i := 0
	n := len(src)
	for i < n {
		c := src[i]
		switch {
		case c == '/' && i+1 < n && src[i+1] == '/':
			j := strings.IndexByte(src[i:], '\n')
			if j < 0 {
				j = n - i
			}
			sb.WriteString(src[i : i+j])
			i += j
		case c == '/' && i+1 < n && src[i+1] == '*':
			j := strings.Index(src[i+2:], "*/")
			end := n
			if j >= 0 {
				end = i + j + 4
			}
			sb.WriteString(src[i:end])
			i = end
		case c == '"':
			j := skipString(src, i)
			sb.WriteString(src[i:j])
			i = j
		case isIdentStart(c):
			fn, end, ok := matchFunction(src, i)
			if ok {
				fns = append(fns, fn)
				i = end
				// Swallow one trailing newline of the removed definition.
				if i < n && src[i] == '\n' {
					i++
				}
				continue
			}
			j := i
			for j < n && isIdentByte(src[j]) {
				j++
			}
			sb.WriteString(src[i:j])
			i = j
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return fns, sb.String()
}

// matchFunction attempts to parse a function definition starting at the
// identifier at src[i].
func matchFunction(src string, i int) (fn Function, end int, ok bool) {
	n := len(src)
	rtEnd := i
	for rtEnd < n && isIdentByte(src[rtEnd]) {
		rtEnd++
	}
	ret := src[i:rtEnd]
	if IsReservedWord(ret) && !isTypeWord(ret) {
		return fn, 0, false // Control keyword such as `return` or `else`.
	}
	j := skipSpace(src, rtEnd)
	if j == rtEnd || j >= n || !isIdentStart(src[j]) {
		return fn, 0, false
	}
	nameEnd := j
	for nameEnd < n && isIdentByte(src[nameEnd]) {
		nameEnd++
	}
	name := src[j:nameEnd]
	if IsReservedWord(name) {
		return fn, 0, false
	}
	k := skipSpace(src, nameEnd)
	if k >= n || src[k] != '(' {
		return fn, 0, false
	}
	paramEnd := matchDelims(src, k, '(', ')')
	if paramEnd < 0 {
		return fn, 0, false
	}
	b := skipSpace(src, paramEnd)
	if b >= n || src[b] != '{' {
		return fn, 0, false // Function prototype or call statement.
	}
	bodyEnd := matchDelims(src, b, '{', '}')
	if bodyEnd < 0 {
		return fn, 0, false
	}
	fn = Function{
		ReturnType: ret,
		Name:       name,
		Params:     src[k:paramEnd],
		Body:       src[b:bodyEnd],
	}
	return fn, bodyEnd, true
}

// matchDelims returns the index one past the closer matching the opener at
// src[i], skipping comments and strings, or -1 if unbalanced.
func matchDelims(src string, i int, open, close byte) int {
	depth := 0
	n := len(src)
	for i < n {
		c := src[i]
		switch {
		case c == '/' && i+1 < n && src[i+1] == '/':
			j := strings.IndexByte(src[i:], '\n')
			if j < 0 {
				return -1
			}
			i += j
		case c == '/' && i+1 < n && src[i+1] == '*':
			j := strings.Index(src[i+2:], "*/")
			if j < 0 {
				return -1
			}
			i += j + 4
		case c == '"':
			i = skipString(src, i)
		case c == open:
			depth++
			i++
		case c == close:
			depth--
			i++
			if depth == 0 {
				return i
			}
		default:
			i++
		}
	}
	return -1
}

func skipString(src string, i int) int {
	i++ // Opening quote.
	for i < len(src) {
		if src[i] == '\\' {
			i += 2
			continue
		}
		if src[i] == '"' {
			return i + 1
		}
		i++
	}
	return i
}

func skipSpace(src string, i int) int {
	for i < len(src) && (src[i] == ' ' || src[i] == '\t' || src[i] == '\n' || src[i] == '\r') {
		i++
	}
	return i
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentByte(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// FuncTable collects hoisted functions, deduplicating identical content and
// disambiguating same-named functions with different bodies.
type FuncTable struct {
	ordered []string          // Hoist order.
	sources map[string]string // name -> definition text.
	byHash  map[uint64]string // content hash -> canonical name.
	counter int
}

// NewFuncTable returns an empty hoisted-function table.
func NewFuncTable() *FuncTable {
	return &FuncTable{
		sources: make(map[string]string),
		byHash:  make(map[uint64]string),
	}
}

// Add hoists fn into the table and returns the name under which callers must
// invoke it. Identical-content functions dedupe to the first hoisted name.
// A name collision with different content mints a `name_<counter>` rename.
func (ft *FuncTable) Add(fn Function) (finalName string) {
	h := fn.contentHash()
	if name, ok := ft.byHash[h]; ok {
		return name // Identical function already hoisted.
	}
	name := fn.Name
	if _, taken := ft.sources[name]; taken {
		ft.counter++
		name = fn.Name + "_" + strconv.Itoa(ft.counter)
		fn.Name = name
	}
	ft.ordered = append(ft.ordered, name)
	ft.sources[name] = fn.Source()
	ft.byHash[h] = name
	return name
}

// Len returns the number of hoisted functions.
func (ft *FuncTable) Len() int { return len(ft.ordered) }

// AppendAll appends every hoisted function definition in hoist order.
func (ft *FuncTable) AppendAll(b []byte) []byte {
	for _, name := range ft.ordered {
		b = append(b, ft.sources[name]...)
		b = append(b, '\n', '\n')
	}
	return b
}

// RenameCalls rewrites call sites in src according to renames, skipping
// occurrences inside comments and string literals and identifiers that are
// merely substrings of longer names or member accesses.
func RenameCalls(src string, renames map[string]string) string {
	if len(renames) == 0 {
		return src
	}
	var sb strings.Builder
	i := 0
	n := len(src)
	for i < n {
		c := src[i]
		switch {
		case c == '/' && i+1 < n && src[i+1] == '/':
			j := strings.IndexByte(src[i:], '\n')
			if j < 0 {
				j = n - i
			}
			sb.WriteString(src[i : i+j])
			i += j
		case c == '/' && i+1 < n && src[i+1] == '*':
			j := strings.Index(src[i+2:], "*/")
			end := n
			if j >= 0 {
				end = i + j + 4
			}
			sb.WriteString(src[i:end])
			i = end
		case c == '"':
			j := skipString(src, i)
			sb.WriteString(src[i:j])
			i = j
		case isIdentStart(c) && (i == 0 || (!isIdentByte(src[i-1]) && src[i-1] != '.')):
			j := i
			for j < n && isIdentByte(src[j]) {
				j++
			}
			word := src[i:j]
			k := skipSpace(src, j)
			if repl, ok := renames[word]; ok && k < n && src[k] == '(' {
				sb.WriteString(repl)
			} else {
				sb.WriteString(word)
			}
			i = j
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String()
}

// Hash is the splitmix-style streaming hash used to fingerprint hoisted
// function content.
func Hash(b []byte, in uint64) uint64 {
	x := in
	for len(b) >= 8 {
		x ^= binary.LittleEndian.Uint64(b)
		x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
		x = (x ^ (x >> 27)) * 0x94d049bb133111eb
		x ^= x >> 31
		b = b[8:]
	}
	if len(b) > 0 {
		var buf [8]byte
		copy(buf[:], b)
		x ^= binary.LittleEndian.Uint64(buf[:])
		x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
		x = (x ^ (x >> 27)) * 0x94d049bb133111eb
		x ^= x >> 31
	}
	return x
}
