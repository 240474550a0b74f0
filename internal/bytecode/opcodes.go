package bytecode

type OpCode byte

// Operand notation: u8 is one byte, u16 two bytes big endian. Slots are
// relative to the frame base.
const (
	OpConstant    OpCode = iota // u16 const index; push constant
	OpNil                       // u8 count; push count nils
	OpPop                       // u8 count
	OpGetLocal                  // u8 slot
	OpSetLocal                  // u8 slot; pops
	OpGetGlobal                 // u16 name const
	OpSetGlobal                 // u16 name const; pops
	OpGetTable                  // pops key, table; pushes value
	OpSetTableAt                // u8 slot; pops value, assigns slot[slot+1] of table at slot
	OpNewTable                  // push empty table
	OpSetField                  // u8 table slot; pops value, key; raw set
	OpSetList                   // u8 table slot, u16 start index; moves slot+1..top into table[start..]
	OpSelf                      // u16 name const; t -> t[name], t
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpPow
	OpNegate
	OpConcat
	OpEqual
	OpNotEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual
	OpNot
	OpJump        // u16 forward offset
	OpJumpIfFalse // u16 forward offset; pops
	OpJumpIfTrue  // u16 forward offset; pops
	OpAndJump     // u16 forward offset; keeps the value if falsy, else pops
	OpOrJump      // u16 forward offset; keeps the value if truthy, else pops
	OpLoop        // u16 backward offset
	OpCall        // u8 function slot, u8 result count (MultRet = all)
	OpClosure     // u16 const index of a *Chunk
	OpReturn      // u8 first result slot; results run to the stack top
)

// MultRet as a result count keeps every value a call produces.
const MultRet = 255

var opNames = map[OpCode]string{
	OpConstant:     "CONSTANT",
	OpNil:          "NIL",
	OpPop:          "POP",
	OpGetLocal:     "GETLOCAL",
	OpSetLocal:     "SETLOCAL",
	OpGetGlobal:    "GETGLOBAL",
	OpSetGlobal:    "SETGLOBAL",
	OpGetTable:     "GETTABLE",
	OpSetTableAt:   "SETTABLEAT",
	OpNewTable:     "NEWTABLE",
	OpSetField:     "SETFIELD",
	OpSetList:      "SETLIST",
	OpSelf:         "SELF",
	OpAdd:          "ADD",
	OpSub:          "SUB",
	OpMul:          "MUL",
	OpDiv:          "DIV",
	OpPow:          "POW",
	OpNegate:       "NEGATE",
	OpConcat:       "CONCAT",
	OpEqual:        "EQ",
	OpNotEqual:     "NE",
	OpLess:         "LT",
	OpLessEqual:    "LE",
	OpGreater:      "GT",
	OpGreaterEqual: "GE",
	OpNot:          "NOT",
	OpJump:         "JUMP",
	OpJumpIfFalse:  "JUMPIFFALSE",
	OpJumpIfTrue:   "JUMPIFTRUE",
	OpAndJump:      "ANDJUMP",
	OpOrJump:       "ORJUMP",
	OpLoop:         "LOOP",
	OpCall:         "CALL",
	OpClosure:      "CLOSURE",
	OpReturn:       "RETURN",
}

func (op OpCode) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return "UNKNOWN"
}

// OperandWidth is the number of operand bytes following op.
func OperandWidth(op OpCode) int {
	switch op {
	case OpConstant, OpGetGlobal, OpSetGlobal, OpSelf, OpJump, OpJumpIfFalse,
		OpJumpIfTrue, OpAndJump, OpOrJump, OpLoop, OpClosure:
		return 2
	case OpNil, OpPop, OpGetLocal, OpSetLocal, OpSetTableAt, OpSetField, OpReturn:
		return 1
	case OpCall:
		return 2
	case OpSetList:
		return 3
	}
	return 0
}
