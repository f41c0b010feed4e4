package ink

import (
	"encoding/binary"
	"math"
)

func float64fromBits(b uint64) float64 { return math.Float64frombits(b) }
func float64bits(v float64) uint64     { return math.Float64bits(v) }

// cursor reads fixed-width little-endian operands out of a Story's
// instruction stream, advancing an ip as it goes. It never allocates on
// the hot path.
type cursor struct {
	code []byte
	pos  ip
}

func newCursor(story *Story, at ip) *cursor {
	return &cursor{code: story.Instructions, pos: at}
}

func (c *cursor) eof() bool { return int(c.pos) >= len(c.code) }

func (c *cursor) readByte() (byte, error) {
	if int(c.pos) >= len(c.code) {
		return 0, &FatalError{Msg: "instruction pointer ran past end of image"}
	}
	b := c.code[c.pos]
	c.pos++
	return b, nil
}

func (c *cursor) readOpcode() (Opcode, error) {
	b, err := c.readByte()
	if err != nil {
		return 0, err
	}
	if Opcode(b) >= opcodeCount {
		return 0, &FatalError{Msg: "unknown opcode in instruction stream"}
	}
	return Opcode(b), nil
}

func (c *cursor) need(n int) error {
	if int(c.pos)+n > len(c.code) {
		return &FatalError{Msg: "truncated instruction operand"}
	}
	return nil
}

func (c *cursor) readInt32() (int32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := int32(binary.LittleEndian.Uint32(c.code[c.pos:]))
	c.pos += 4
	return v, nil
}

func (c *cursor) readUint32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(c.code[c.pos:])
	c.pos += 4
	return v, nil
}

func (c *cursor) readFloat64() (float64, error) {
	if err := c.need(8); err != nil {
		return 0, err
	}
	bits := binary.LittleEndian.Uint64(c.code[c.pos:])
	c.pos += 8
	return float64fromBits(bits), nil
}

func (c *cursor) readDivertTarget() (divertTarget, error) {
	cid, err := c.readUint32()
	if err != nil {
		return divertTarget{}, err
	}
	off, err := c.readInt32()
	if err != nil {
		return divertTarget{}, err
	}
	return divertTarget{path: ip(off), container: containerID(cid)}, nil
}
