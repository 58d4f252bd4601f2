// Package keyword holds the process-wide keyword tables used by the lexer.
// The tables are built once in init() and never mutated afterwards, so they
// can be read from any goroutine without synchronization.
package keyword

// Keyword is the code of a language keyword
type Keyword int

const (
	Alignas Keyword = iota
	Alignof
	And
	AndEq
	Asm
	Auto
	Bitand
	Bitor
	Bool
	Break
	Case
	Catch
	Char
	Char8T
	Char16T
	Char32T
	Class
	CoAwait
	CoReturn
	CoYield
	Compl
	Concept
	Const
	Consteval
	Constexpr
	Constinit
	ConstCast
	Continue
	Decltype
	Default
	Delete
	Do
	Double
	DynamicCast
	Else
	Enum
	Explicit
	Export
	Extern
	False
	Float
	For
	Friend
	Goto
	If
	Inline
	Int
	Long
	Mutable
	Namespace
	New
	Noexcept
	Not
	NotEq
	Nullptr
	Operator
	Or
	OrEq
	Private
	Protected
	Public
	Register
	ReinterpretCast
	Requires
	Return
	Short
	Signed
	Sizeof
	Static
	StaticAssert
	StaticCast
	Struct
	Switch
	Template
	This
	ThreadLocal
	Throw
	True
	Try
	Typedef
	Typeid
	Typename
	Union
	Unsigned
	Using
	Virtual
	Void
	Volatile
	WcharT
	While
	Xor
	XorEq
	MaxKeyword
)

// PPKeyword is the code of a preprocessor directive name
type PPKeyword int

const (
	PPDefine PPKeyword = iota
	PPElif
	PPElifdef
	PPElifndef
	PPElse
	PPEndif
	PPError
	PPIf
	PPIfdef
	PPIfndef
	PPImport
	PPInclude
	PPIncludeNext
	PPLine
	PPPragma
	PPUndef
	PPWarning
	MaxPPKeyword
)

var names = [MaxKeyword]string{
	"alignas", "alignof", "and", "and_eq", "asm", "auto", "bitand", "bitor",
	"bool", "break", "case", "catch", "char", "char8_t", "char16_t", "char32_t",
	"class", "co_await", "co_return", "co_yield", "compl", "concept", "const",
	"consteval", "constexpr", "constinit", "const_cast", "continue", "decltype",
	"default", "delete", "do", "double", "dynamic_cast", "else", "enum",
	"explicit", "export", "extern", "false", "float", "for", "friend", "goto",
	"if", "inline", "int", "long", "mutable", "namespace", "new", "noexcept",
	"not", "not_eq", "nullptr", "operator", "or", "or_eq", "private",
	"protected", "public", "register", "reinterpret_cast", "requires", "return",
	"short", "signed", "sizeof", "static", "static_assert", "static_cast",
	"struct", "switch", "template", "this", "thread_local", "throw", "true",
	"try", "typedef", "typeid", "typename", "union", "unsigned", "using",
	"virtual", "void", "volatile", "wchar_t", "while", "xor", "xor_eq",
}

var ppNames = [MaxPPKeyword]string{
	"define", "elif", "elifdef", "elifndef", "else", "endif", "error", "if",
	"ifdef", "ifndef", "import", "include", "include_next", "line", "pragma",
	"undef", "warning",
}

var (
	keywords   = make(map[string]Keyword, MaxKeyword)
	ppKeywords = make(map[string]PPKeyword, MaxPPKeyword)
)

func init() {
	for i, name := range names {
		keywords[name] = Keyword(i)
	}
	for i, name := range ppNames {
		ppKeywords[name] = PPKeyword(i)
	}
}

// Lookup returns the keyword spelled s
func Lookup(s string) (Keyword, bool) {
	k, ok := keywords[s]
	return k, ok
}

// LookupPP returns the preprocessor directive spelled s
func LookupPP(s string) (PPKeyword, bool) {
	k, ok := ppKeywords[s]
	return k, ok
}

func (k Keyword) String() string {
	if k < 0 || k >= MaxKeyword {
		return "<invalid keyword>"
	}
	return names[k]
}

func (k PPKeyword) String() string {
	if k < 0 || k >= MaxPPKeyword {
		return "<invalid directive>"
	}
	return ppNames[k]
}

// IsBuiltinType reports whether k names a primitive type usable as a
// function return type or parameter type.
func IsBuiltinType(k Keyword) bool {
	switch k {
	case Auto, Bool, Char, Char8T, Char16T, Char32T, Double, Float, Int,
		Long, Short, Signed, Unsigned, Void, WcharT:
		return true
	}
	return false
}
