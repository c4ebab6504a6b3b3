package coil

// SectionKind identifies the content class of a section.
type SectionKind uint8

// Section kinds.
const (
	ProgBits SectionKind = iota // section with data in the file
	NoBits                      // zero-initialized, no data stored
	SymTab                      // symbol table
	StrTab                      // string table
)

var sectionKindNames = [...]string{"progbits", "nobits", "symtab", "strtab"}

func (k SectionKind) String() string {
	if int(k) < len(sectionKindNames) {
		return sectionKindNames[k]
	}
	return "unknown"
}

// SectionKinds maps attribute parameter names to section kinds.
var SectionKinds = map[string]SectionKind{
	"progbits": ProgBits,
	"nobits":   NoBits,
	"symtab":   SymTab,
	"strtab":   StrTab,
}

// SectionFlags is a bitset of section attributes.
type SectionFlags uint8

// Section flags.
const (
	FlagCode SectionFlags = 1 << iota
	FlagWrite
	FlagAlloc
	FlagMerge
	FlagTLS
)

// SectionFlagNames maps attribute parameter names to flag bits.
var SectionFlagNames = map[string]SectionFlags{
	"code":  FlagCode,
	"write": FlagWrite,
	"alloc": FlagAlloc,
	"merge": FlagMerge,
	"tls":   FlagTLS,
}

// Has reports whether all bits of mask are set.
func (f SectionFlags) Has(mask SectionFlags) bool {
	return f&mask == mask
}

// Names returns the attribute names of the set flags, in declaration order.
func (f SectionFlags) Names() []string {
	var names []string
	for _, n := range []string{"code", "write", "alloc", "merge", "tls"} {
		if f.Has(SectionFlagNames[n]) {
			names = append(names, n)
		}
	}
	return names
}

// Section is a named, contiguous byte region. For NoBits sections Data
// stays empty and the size is tracked by Offset alone.
type Section struct {
	Name   string
	Kind   SectionKind
	Flags  SectionFlags
	Data   []byte
	Offset uint64 // current emission offset, equals size after assembly
	Align  uint64
}

// Size returns the section size in bytes.
func (s *Section) Size() uint64 {
	if s.Kind == NoBits {
		return s.Offset
	}
	return uint64(len(s.Data))
}

// SymbolType classifies what a symbol names.
type SymbolType uint8

// Symbol types.
const (
	SymNoType SymbolType = iota
	SymFunc
	SymObject
	SymSection
)

// SymbolBinding is the linkage visibility of a symbol.
type SymbolBinding uint8

// Symbol bindings.
const (
	BindLocal SymbolBinding = iota
	BindGlobal
	BindWeak
)

// Symbol is a named offset within a section. Symbols refer to their section
// by name; an undefined symbol has an empty section name.
type Symbol struct {
	Name    string
	Value   uint64
	Section string
	Type    SymbolType
	Binding SymbolBinding
	Defined bool
}

// Relocation is a deferred patch: a symbol reference to be rewritten into a
// section's bytes once the symbol's value is known. Both the symbol and the
// containing section are referenced by name.
type Relocation struct {
	Symbol  string
	Section string
	Offset  uint64
	Width   int // 1, 2, 4 or 8 bytes
	PCRel   bool
	Addend  int64
}

// Object is the in-memory object-file container produced by the assembler.
// Sections and symbols keep the order in which they were first added.
type Object struct {
	Sections    []*Section
	Symbols     []*Symbol
	Relocations []Relocation
	Strings     StringTable

	// SymTabIndex is the 1-based section index of the symbol table
	// section, or 0 if the object has none.
	SymTabIndex uint16

	sectionIdx map[string]int
	symbolIdx  map[string]int
}

// NewObject creates an empty object.
func NewObject() *Object {
	return &Object{
		Strings:    NewStringTable(),
		sectionIdx: make(map[string]int),
		symbolIdx:  make(map[string]int),
	}
}

// AddSection appends a section and interns its name in the string table.
// Adding a name twice returns the existing section.
func (o *Object) AddSection(s *Section) *Section {
	if i, ok := o.sectionIdx[s.Name]; ok {
		return o.Sections[i]
	}
	o.Strings.Add(s.Name)
	o.sectionIdx[s.Name] = len(o.Sections)
	o.Sections = append(o.Sections, s)
	return s
}

// AddSymbol appends a symbol and interns its name in the string table.
func (o *Object) AddSymbol(sym *Symbol) {
	if _, ok := o.symbolIdx[sym.Name]; ok {
		return
	}
	o.Strings.Add(sym.Name)
	o.symbolIdx[sym.Name] = len(o.Symbols)
	o.Symbols = append(o.Symbols, sym)
}

// GetSectionIndex returns the 1-based index of a section, or 0 if the name
// is not present.
func (o *Object) GetSectionIndex(name string) uint16 {
	i, ok := o.sectionIdx[name]
	if !ok {
		return 0
	}
	return uint16(i + 1)
}

// SectionByName returns the named section, or nil.
func (o *Object) SectionByName(name string) *Section {
	i, ok := o.sectionIdx[name]
	if !ok {
		return nil
	}
	return o.Sections[i]
}

// SymbolByName returns the named symbol, or nil.
func (o *Object) SymbolByName(name string) *Symbol {
	i, ok := o.symbolIdx[name]
	if !ok {
		return nil
	}
	return o.Symbols[i]
}
