package assembler_test

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/LowLevelTeam/casm/assembler"
	"github.com/LowLevelTeam/casm/coil"
	"github.com/LowLevelTeam/casm/parser"
	"github.com/LowLevelTeam/casm/source"
)

// Assembles source and fails the test on any error diagnostic.
func assemble(t *testing.T, src string) *coil.Object {
	t.Helper()
	obj, diags := assembler.AssembleSource(src, "test.casm")
	if source.HasErrors(diags) {
		t.Fatalf("failed to assemble:\n%s\ndiagnostics: %v", src, diags)
	}
	return obj
}

func mustSection(t *testing.T, obj *coil.Object, name string) *coil.Section {
	t.Helper()
	s := obj.SectionByName(name)
	if s == nil {
		t.Fatalf("section %s missing from object", name)
	}
	return s
}

// Compares a section's data against an expected hex dump.
func matchHex(t *testing.T, obj *coil.Object, section, expectedHex string) {
	t.Helper()
	expected, err := hex.DecodeString(strings.ToLower(strings.Join(strings.Fields(expectedHex), "")))
	if err != nil {
		t.Fatalf("invalid expected hex string: %v", err)
	}
	s := mustSection(t, obj, section)
	if !bytes.Equal(s.Data, expected) {
		t.Fatalf("%s data mismatch\nexpected: % X\ngot:      % X", section, expected, s.Data)
	}
}

func TestNopOnly(t *testing.T) {
	obj := assemble(t, "nop\n")
	s := mustSection(t, obj, ".text")
	if s.Size() != 8 {
		t.Errorf("expected 8 bytes for nop, got %d", s.Size())
	}
	if s.Data[0] != byte(coil.OpNop) {
		t.Errorf("first byte should be the nop opcode, got %#x", s.Data[0])
	}
	if s.Data[2] != 0 {
		t.Errorf("operand type byte should be zero, got %#x", s.Data[2])
	}
	if len(obj.Symbols) != 0 {
		t.Errorf("expected no symbols, got %d", len(obj.Symbols))
	}
	if len(obj.Relocations) != 0 {
		t.Errorf("expected no relocations, got %d", len(obj.Relocations))
	}
}

func TestDataDirectives(t *testing.T) {
	tests := []struct {
		name, src, section, hex string
	}{
		{"I32Pair", ".section .data\n.i32 $id1, $id2\n", ".data", "01 00 00 00 02 00 00 00"},
		{"I8", ".section .data\n.i8 $id1, $id255\n", ".data", "01 FF"},
		{"I16", ".section .data\n.i16 $ix1234\n", ".data", "34 12"},
		{"I64", ".section .data\n.i64 $id1\n", ".data", "01 00 00 00 00 00 00 00"},
		{"I8Negative", ".section .data\n.i8 $id-1\n", ".data", "FF"},
		{"HexImmediate", ".section .data\n.u16 $ixBEEF\n", ".data", "EF BE"},
		{"BinaryImmediate", ".section .data\n.u8 $ib101\n", ".data", "05"},
		{"OctalImmediate", ".section .data\n.u8 $io17\n", ".data", "0F"},
		{"F32", ".section .data\n.f32 $fd1\n", ".data", "00 00 80 3F"},
		{"F64", ".section .data\n.f64 $fd1\n", ".data", "00 00 00 00 00 00 F0 3F"},
		{"Char", ".section .data\n.u8 $'A'\n", ".data", "41"},
		{"Ascii", ".section .data\n.ascii $\"Hi\"\n", ".data", "48 69"},
		{"Asciiz", ".section .data\n.asciiz $\"Hi\"\n", ".data", "48 69 00"},
		{"Zero", ".section .data\n.zero $id4\n", ".data", "00 00 00 00"},
		{"ByteAlias", ".section .data\n.byte 0x11, 0x22\n", ".data", "11 22"},
		{"StringInBytes", ".section .data\n.u8 $\"AB\", $id0\n", ".data", "41 42 00"},
		{"AlignPadding", ".section .data\n.i8 $id1\n.align 4\n.i8 $id2\n", ".data", "01 00 00 00 02"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			matchHex(t, assemble(t, tc.src), tc.section, tc.hex)
		})
	}
}

func TestInstructionEncodings(t *testing.T) {
	tests := []struct {
		name, src, hex string
	}{
		{"Nop", "nop\n", "00 00 00 00 00 00 00 00"},
		{"Ret", "ret\n", "04 00 00 00 00 00 00 00"},
		{"IncReg", "inc %r1\n", "65 00 10 00 01 00 00 00"},
		{"CmpRegImm", "cmp %r1, $id10\n", "05 00 18 00 01 00 00 00 0A 00 00 00"},
		{"MovRegReg", "mov %r3, %r4\n", "10 00 14 00 03 00 00 00 04 00 00 00"},
		{"AddThreeRegs", "add %r1, %r2, %r3\n",
			"60 00 15 00 01 00 00 00 02 00 00 00 03 00 00 00"},
		{"LoadMemory", "load %r1, [%r2+8]\n", "1C 00 1C 00 01 00 00 00 02 00 08 00"},
		{"StoreNegativeOffset", "store [%r2-4], %r1\n", "1D 00 34 00 02 00 FC FF 01 00 00 00"},
		{"CondFlag", "br ^eq @x\n#x\n", "02 01 40 00 00 00 00 00"},
		{"TypeSuffixTruncation", "mov.i64 %r1, $ix1122334455\n",
			"10 00 18 00 01 00 00 00 55 44 33 22"},
		{"TypeParameter", "mov ^u8 %r1, $ix1FF\n", "10 00 18 00 01 00 00 00 FF 00 00 00"},
		{"FloatImmediate", "mov.f32 %r1, $fd1\n", "10 00 18 00 01 00 00 00 00 00 80 3F"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			matchHex(t, assemble(t, tc.src), ".text", tc.hex)
		})
	}
}

func TestGlobalSymbol(t *testing.T) {
	obj := assemble(t, ".section .text\n.global @main\n#main\nret\n")
	sym := obj.SymbolByName("main")
	if sym == nil {
		t.Fatal("symbol main missing")
	}
	if sym.Binding != coil.BindGlobal {
		t.Errorf("main should have global binding, got %v", sym.Binding)
	}
	if sym.Section != ".text" {
		t.Errorf("main should live in .text, got %q", sym.Section)
	}
	if sym.Value != 0 {
		t.Errorf("main should have value 0, got %d", sym.Value)
	}
	if sym.Type != coil.SymFunc {
		t.Errorf("main should be a function symbol, got %v", sym.Type)
	}
}

func TestPCRelativeBranch(t *testing.T) {
	src := `.section .text
#loop
inc %r1
cmp %r1, $id10
br ^lt @loop
ret
`
	obj := assemble(t, src)
	s := mustSection(t, obj, ".text")

	// Layout: inc 0..8, cmp 8..20, br 20..28 with its patch site at 24.
	if s.Size() != 36 {
		t.Fatalf("expected 36 bytes of code, got %d", s.Size())
	}
	if s.Data[20] != byte(coil.OpBr) {
		t.Fatalf("expected br opcode at offset 20, got %#x", s.Data[20])
	}
	if s.Data[21] != byte(coil.CondLt) {
		t.Errorf("expected lt condition in flag0, got %#x", s.Data[21])
	}
	// PC-relative: 0 - (24 + 4) = -28.
	want := []byte{0xE4, 0xFF, 0xFF, 0xFF}
	if !bytes.Equal(s.Data[24:28], want) {
		t.Errorf("patched branch displacement\nexpected: % X\ngot:      % X", want, s.Data[24:28])
	}
}

func TestJumpDisplacementFormula(t *testing.T) {
	obj := assemble(t, "#target\nnop\njmp @target\n")
	s := mustSection(t, obj, ".text")
	// jmp at 8, patch site at 12: 0 - (12 + 4) = -16.
	want := []byte{0xF0, 0xFF, 0xFF, 0xFF}
	if !bytes.Equal(s.Data[12:16], want) {
		t.Errorf("jmp displacement\nexpected: % X\ngot:      % X", want, s.Data[12:16])
	}
}

func TestStringWithTerminator(t *testing.T) {
	obj := assemble(t, ".section .data\n#msg\n.asciiz $\"Hi\"\n")
	matchHex(t, obj, ".data", "48 69 00")
	sym := obj.SymbolByName("msg")
	if sym == nil {
		t.Fatal("symbol msg missing")
	}
	if sym.Value != 0 {
		t.Errorf("msg should have value 0, got %d", sym.Value)
	}
}

func TestUndefinedSymbolDiagnostic(t *testing.T) {
	obj, diags := assembler.AssembleSource(".section .text\njmp @nowhere\n", "test.casm")
	found := false
	for _, d := range diags {
		if d.Code == source.CodeUndefinedSymbol && strings.Contains(d.Message, "nowhere") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an undefined-symbol diagnostic for nowhere, got %v", diags)
	}
	s := obj.SectionByName(".text")
	if s == nil {
		t.Fatal("section .text missing")
	}
	if s.Data[0] != byte(coil.OpJmp) {
		t.Errorf("expected jmp opcode, got %#x", s.Data[0])
	}
	if !bytes.Equal(s.Data[4:8], []byte{0, 0, 0, 0}) {
		t.Errorf("unresolved label payload should stay zero, got % X", s.Data[4:8])
	}
}

func TestAllowUnresolved(t *testing.T) {
	asm := assembler.NewWithOptions(assembler.Options{AllowUnresolved: true})
	obj, diags := asm.Assemble(".section .text\n.global @ext\njmp @ext\n", "test.casm")
	if source.HasErrors(diags) {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	sym := obj.SymbolByName("ext")
	if sym == nil {
		t.Fatal("undefined global ext should be kept in the object")
	}
	if sym.Defined {
		t.Error("ext should be undefined")
	}
	if sym.Binding != coil.BindGlobal {
		t.Errorf("ext should be global, got %v", sym.Binding)
	}
}

func TestDuplicateDefinition(t *testing.T) {
	_, diags := assembler.AssembleSource("#a\nnop\n#a\nnop\n", "test.casm")
	count := 0
	for _, d := range diags {
		if d.Code == source.CodeDuplicateSymbol {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected exactly one duplicate-symbol diagnostic, got %d (%v)", count, diags)
	}
}

func TestAlignmentIdempotence(t *testing.T) {
	once := assemble(t, ".section .data\n.i8 $id1\n.align 4\n.i8 $id2\n")
	twice := assemble(t, ".section .data\n.i8 $id1\n.align 4\n.align 4\n.i8 $id2\n")
	if !bytes.Equal(mustSection(t, once, ".data").Data, mustSection(t, twice, ".data").Data) {
		t.Error("align N twice should produce the same bytes as align N once")
	}
}

func TestSectionDefaults(t *testing.T) {
	src := `.section .text
nop
.section .data
.i8 $id1
.section .bss
.zero $id4
.section .rodata
.i8 $id1
`
	obj := assemble(t, src)
	tests := []struct {
		name  string
		kind  coil.SectionKind
		flags coil.SectionFlags
	}{
		{".text", coil.ProgBits, coil.FlagCode | coil.FlagAlloc},
		{".data", coil.ProgBits, coil.FlagWrite | coil.FlagAlloc},
		{".bss", coil.NoBits, coil.FlagWrite | coil.FlagAlloc},
		{".rodata", coil.ProgBits, coil.FlagAlloc},
	}
	for _, tc := range tests {
		s := mustSection(t, obj, tc.name)
		if s.Kind != tc.kind {
			t.Errorf("%s: expected kind %v, got %v", tc.name, tc.kind, s.Kind)
		}
		if s.Flags != tc.flags {
			t.Errorf("%s: expected flags %v, got %v", tc.name, tc.flags.Names(), s.Flags.Names())
		}
	}
}

func TestCustomSectionAttributes(t *testing.T) {
	obj := assemble(t, ".section .tbss ^nobits ^write ^tls\n.zero $id8\n")
	s := mustSection(t, obj, ".tbss")
	if s.Kind != coil.NoBits {
		t.Errorf("expected nobits kind, got %v", s.Kind)
	}
	if !s.Flags.Has(coil.FlagWrite | coil.FlagTLS) {
		t.Errorf("expected write and tls flags, got %v", s.Flags.Names())
	}
	if s.Size() != 8 {
		t.Errorf("nobits size should be tracked by offset, got %d", s.Size())
	}
	if len(s.Data) != 0 {
		t.Errorf("nobits section must carry no data, got %d bytes", len(s.Data))
	}
}

func TestLabelOffsetsInData(t *testing.T) {
	src := `.section .data
.i16 $id1, $id2
#here
.i8 $id3
#end
`
	obj := assemble(t, src)
	if sym := obj.SymbolByName("here"); sym == nil || sym.Value != 4 {
		t.Errorf("here should sit after 4 bytes of data, got %+v", sym)
	}
	if sym := obj.SymbolByName("end"); sym == nil || sym.Value != 5 {
		t.Errorf("end should sit after 5 bytes of data, got %+v", sym)
	}
}

func TestDeterminism(t *testing.T) {
	src := `.section .text
.global @main
#main
mov %r1, $id0
#loop
add %r1, %r1, $id1
cmp %r1, $id10
br ^lt @loop
ret
.section .data
#msg
.asciiz $"done"
`
	obj1, diags1 := assembler.AssembleSource(src, "test.casm")
	obj2, diags2 := assembler.AssembleSource(src, "test.casm")
	if !bytes.Equal(obj1.Encode(), obj2.Encode()) {
		t.Error("two assemblies of the same source must be byte-equal")
	}
	if len(diags1) != len(diags2) {
		t.Fatalf("diagnostic lists differ in length: %d vs %d", len(diags1), len(diags2))
	}
	for i := range diags1 {
		if diags1[i] != diags2[i] {
			t.Errorf("diagnostic %d differs: %v vs %v", i, diags1[i], diags2[i])
		}
	}
}

func TestSectionOrderPreserved(t *testing.T) {
	src := `.section .data
.i8 $id1
.section .text
nop
.section .rodata
.i8 $id2
`
	obj := assemble(t, src)
	want := []string{".data", ".text", ".rodata"}
	if len(obj.Sections) < len(want) {
		t.Fatalf("expected at least %d sections, got %d", len(want), len(obj.Sections))
	}
	for i, name := range want {
		if obj.Sections[i].Name != name {
			t.Errorf("section %d: expected %s, got %s", i, name, obj.Sections[i].Name)
		}
	}
}

func TestOperandCountMismatch(t *testing.T) {
	obj, diags := assembler.AssembleSource("nop\nadd %r1, %r2\nret\n", "test.casm")
	found := false
	for _, d := range diags {
		if d.Code == source.CodeInvalidOperandCount {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an operand-count diagnostic, got %v", diags)
	}
	// The bad statement is skipped; nop and ret still encode back to back.
	s := obj.SectionByName(".text")
	if s == nil || s.Size() != 16 {
		t.Errorf("expected 16 bytes from the two valid instructions, got %v", s)
	}
}

func TestInstructionInDataSection(t *testing.T) {
	_, diags := assembler.AssembleSource(".section .data\nnop\n", "test.casm")
	if !source.HasErrors(diags) {
		t.Error("expected a diagnostic for an instruction outside a code section")
	}
}

func TestMemoryOffsetRange(t *testing.T) {
	_, diags := assembler.AssembleSource("load %r1, [%r2+40000]\n", "test.casm")
	found := false
	for _, d := range diags {
		if d.Code == source.CodeValueOutOfRange {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an out-of-range diagnostic for the memory offset, got %v", diags)
	}
}

func TestEmptyProgBitsSkipped(t *testing.T) {
	obj := assemble(t, ".section .text\n.section .data\n.i8 $id1\n")
	if obj.SectionByName(".text") != nil {
		t.Error("empty .text should not be emitted")
	}
	if obj.SectionByName(".data") == nil {
		t.Error(".data with content should be emitted")
	}
}

func TestAssembleStatements(t *testing.T) {
	stmts, diags := parser.Parse("nop\nret\n", "test.casm")
	if len(diags) != 0 {
		t.Fatalf("unexpected parse diagnostics: %v", diags)
	}
	obj, diags := assembler.New().AssembleStatements(stmts)
	if source.HasErrors(diags) {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	s := obj.SectionByName(".text")
	if s == nil || s.Size() != 16 {
		t.Fatalf("expected 16 bytes of code, got %v", s)
	}
}

func TestSymbolTableSections(t *testing.T) {
	obj := assemble(t, "#main\nret\n")
	if obj.SymTabIndex == 0 {
		t.Fatal("expected a symbol table section index")
	}
	if got := obj.GetSectionIndex(".symtab"); got != obj.SymTabIndex {
		t.Errorf("SymTabIndex %d does not match .symtab index %d", obj.SymTabIndex, got)
	}
	if obj.GetSectionIndex(".strtab") == 0 {
		t.Error("expected a string table section")
	}
}
