package bytecode

import (
	"fmt"
	"io"
	"strings"
)

// DebugInfo stores source location for each bytecode byte
type DebugInfo struct {
	Line int
}

// Chunk is a compiled function prototype. The main chunk of a source is a
// Chunk with no parameters; nested functions appear as *Chunk constants.
type Chunk struct {
	Name      string // function name, "" for anonymous
	Source    string // chunk name the code was compiled from
	Line      int    // line where the function was defined
	NumParams int
	IsVararg  bool

	Code      []byte
	Constants []interface{}
	Debug     []DebugInfo
}

func NewChunk(name, source string) *Chunk {
	return &Chunk{
		Name:   name,
		Source: source,
	}
}

func (c *Chunk) WriteOp(op OpCode, line int) {
	c.WriteByte(byte(op), line)
}

func (c *Chunk) WriteByte(b byte, line int) {
	c.Code = append(c.Code, b)
	c.Debug = append(c.Debug, DebugInfo{Line: line})
}

func (c *Chunk) WriteShort(v int, line int) {
	c.WriteByte(byte((v>>8)&0xff), line)
	c.WriteByte(byte(v&0xff), line)
}

// PatchShort overwrites the two bytes at pos.
func (c *Chunk) PatchShort(pos, v int) {
	c.Code[pos] = byte((v >> 8) & 0xff)
	c.Code[pos+1] = byte(v & 0xff)
}

// AddConstant interns val in the constant pool.
func (c *Chunk) AddConstant(val interface{}) int {
	if _, isChunk := val.(*Chunk); !isChunk {
		for i, existing := range c.Constants {
			if existing == val {
				return i
			}
		}
	}
	c.Constants = append(c.Constants, val)
	return len(c.Constants) - 1
}

func (c *Chunk) GetDebugInfo(ip int) DebugInfo {
	if ip >= 0 && ip < len(c.Debug) {
		return c.Debug[ip]
	}
	return DebugInfo{}
}

// Disassemble writes a listing of c and its nested functions to w.
func (c *Chunk) Disassemble(w io.Writer) {
	name := c.Name
	if name == "" {
		name = "main"
	}
	fmt.Fprintf(w, "== %s (%s:%d) params=%d vararg=%v ==\n", name, c.Source, c.Line, c.NumParams, c.IsVararg)
	var nested []*Chunk
	for ip := 0; ip < len(c.Code); {
		op := OpCode(c.Code[ip])
		width := OperandWidth(op)
		operands := make([]string, 0, 2)
		switch width {
		case 1:
			operands = append(operands, fmt.Sprint(c.Code[ip+1]))
		case 3:
			operands = append(operands, fmt.Sprint(c.Code[ip+1]), fmt.Sprint(int(c.Code[ip+2])<<8|int(c.Code[ip+3])))
		case 2:
			if op == OpCall {
				operands = append(operands, fmt.Sprint(c.Code[ip+1]), fmt.Sprint(c.Code[ip+2]))
			} else {
				v := int(c.Code[ip+1])<<8 | int(c.Code[ip+2])
				operands = append(operands, fmt.Sprint(v))
				switch op {
				case OpConstant, OpGetGlobal, OpSetGlobal, OpSelf:
					operands = append(operands, fmt.Sprintf("; %v", c.Constants[v]))
				case OpClosure:
					if proto, ok := c.Constants[v].(*Chunk); ok {
						nested = append(nested, proto)
					}
				}
			}
		}
		fmt.Fprintf(w, "%04d %4d %-12s %s\n", ip, c.GetDebugInfo(ip).Line, op, strings.Join(operands, " "))
		ip += 1 + width
	}
	for _, proto := range nested {
		proto.Disassemble(w)
	}
}
