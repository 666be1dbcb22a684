// Package wasmtest assembles tiny waPC guest modules for tests, so engine and
// executor tests need no compiled guest binaries on disk.
package wasmtest

import (
	"bytes"
	"fmt"
)

const (
	version = 1

	sectionType     = 1
	sectionImport   = 2
	sectionFunction = 3
	sectionMemory   = 5
	sectionExport   = 7
	sectionCode     = 10
	sectionData     = 11

	kindFunc   = 0x00
	kindMemory = 0x02

	valI32   = 0x7f
	funcType = 0x60
)

// Opcodes used by the guests in this package.
const (
	OpUnreachable = 0x00
	OpIf          = 0x04
	OpElse        = 0x05
	OpEnd         = 0x0b
	OpCall        = 0x10
	OpDrop        = 0x1a
	OpLocalGet    = 0x20
	OpI32Const    = 0x41
)

// Builder accumulates a module with i32-only function signatures, one memory
// and active data segments. All imports must be added before any function.
type Builder struct {
	types    [][2]int
	imports  bytes.Buffer
	nimports uint32
	funcs    []uint32
	codes    [][]byte
	exports  bytes.Buffer
	nexports uint32
	data     bytes.Buffer
	ndata    uint32
	pages    uint32
}

// NewBuilder starts a module with the given number of 64KiB memory pages,
// exported as "memory".
func NewBuilder(pages uint32) *Builder {
	b := &Builder{pages: pages}
	b.exportKind("memory", kindMemory, 0)
	return b
}

func (b *Builder) typeIndex(params, results int) uint32 {
	for i, t := range b.types {
		if t[0] == params && t[1] == results {
			return uint32(i)
		}
	}
	b.types = append(b.types, [2]int{params, results})
	return uint32(len(b.types) - 1)
}

// ImportFunc imports a function and returns its index.
func (b *Builder) ImportFunc(module, name string, params, results int) uint32 {
	if len(b.funcs) > 0 {
		panic("wasmtest: import added after a function")
	}
	writeName(&b.imports, module)
	writeName(&b.imports, name)
	b.imports.WriteByte(kindFunc)
	writeU32(&b.imports, b.typeIndex(params, results))
	b.nimports++
	return b.nimports - 1
}

// Func defines a function with no extra locals and returns its index. body
// excludes the final end opcode.
func (b *Builder) Func(params, results int, body []byte) uint32 {
	b.funcs = append(b.funcs, b.typeIndex(params, results))

	var code bytes.Buffer
	code.WriteByte(0) // no local declarations
	code.Write(body)
	code.WriteByte(OpEnd)
	b.codes = append(b.codes, code.Bytes())
	return b.nimports + uint32(len(b.funcs)) - 1
}

// Export exports function idx under name.
func (b *Builder) Export(name string, idx uint32) {
	b.exportKind(name, kindFunc, idx)
}

func (b *Builder) exportKind(name string, kind byte, idx uint32) {
	writeName(&b.exports, name)
	b.exports.WriteByte(kind)
	writeU32(&b.exports, idx)
	b.nexports++
}

// Data places p at offset in memory 0.
func (b *Builder) Data(offset uint32, p []byte) {
	b.data.WriteByte(0) // active, memory 0
	b.data.WriteByte(OpI32Const)
	writeS32(&b.data, int32(offset))
	b.data.WriteByte(OpEnd)
	writeU32(&b.data, uint32(len(p)))
	b.data.Write(p)
	b.ndata++
}

// Bytes encodes the module.
func (b *Builder) Bytes() []byte {
	var out bytes.Buffer
	out.Write([]byte{0x00, 0x61, 0x73, 0x6d})
	out.Write([]byte{version, 0, 0, 0})

	var sec bytes.Buffer
	writeU32(&sec, uint32(len(b.types)))
	for _, t := range b.types {
		sec.WriteByte(funcType)
		writeU32(&sec, uint32(t[0]))
		for range t[0] {
			sec.WriteByte(valI32)
		}
		writeU32(&sec, uint32(t[1]))
		for range t[1] {
			sec.WriteByte(valI32)
		}
	}
	writeSection(&out, sectionType, sec.Bytes())

	if b.nimports > 0 {
		writeSection(&out, sectionImport, vec(b.nimports, b.imports.Bytes()))
	}

	sec.Reset()
	writeU32(&sec, uint32(len(b.funcs)))
	for _, t := range b.funcs {
		writeU32(&sec, t)
	}
	writeSection(&out, sectionFunction, sec.Bytes())

	sec.Reset()
	writeU32(&sec, 1)
	sec.WriteByte(0) // min only
	writeU32(&sec, b.pages)
	writeSection(&out, sectionMemory, sec.Bytes())

	writeSection(&out, sectionExport, vec(b.nexports, b.exports.Bytes()))

	sec.Reset()
	writeU32(&sec, uint32(len(b.codes)))
	for _, c := range b.codes {
		writeU32(&sec, uint32(len(c)))
		sec.Write(c)
	}
	writeSection(&out, sectionCode, sec.Bytes())

	if b.ndata > 0 {
		writeSection(&out, sectionData, vec(b.ndata, b.data.Bytes()))
	}
	return out.Bytes()
}

func vec(n uint32, items []byte) []byte {
	var buf bytes.Buffer
	writeU32(&buf, n)
	buf.Write(items)
	return buf.Bytes()
}

func writeSection(w *bytes.Buffer, id byte, data []byte) {
	w.WriteByte(id)
	writeU32(w, uint32(len(data)))
	w.Write(data)
}

func writeName(w *bytes.Buffer, s string) {
	writeU32(w, uint32(len(s)))
	w.WriteString(s)
}

func writeU32(w *bytes.Buffer, v uint32) {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		w.WriteByte(c)
		if v == 0 {
			return
		}
	}
}

func writeS32(w *bytes.Buffer, v int32) {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		done := (v == 0 && c&0x40 == 0) || (v == -1 && c&0x40 != 0)
		if !done {
			c |= 0x80
		}
		w.WriteByte(c)
		if done {
			return
		}
	}
}

// Code is an instruction sequence under construction.
type Code struct {
	buf bytes.Buffer
}

func (c *Code) Const(v int32) *Code {
	c.buf.WriteByte(OpI32Const)
	writeS32(&c.buf, v)
	return c
}

func (c *Code) Local(i uint32) *Code {
	c.buf.WriteByte(OpLocalGet)
	writeU32(&c.buf, i)
	return c
}

func (c *Code) Call(fn uint32) *Code {
	c.buf.WriteByte(OpCall)
	writeU32(&c.buf, fn)
	return c
}

// IfI32 opens an if block producing one i32.
func (c *Code) IfI32() *Code {
	c.buf.WriteByte(OpIf)
	c.buf.WriteByte(valI32)
	return c
}

func (c *Code) Op(ops ...byte) *Code {
	c.buf.Write(ops)
	return c
}

func (c *Code) Bytes() []byte {
	return c.buf.Bytes()
}

func (c *Code) String() string {
	return fmt.Sprintf("% x", c.buf.Bytes())
}
