package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/gbcore"
	"github.com/hupe1980/gbcore/internal/conv"
	"github.com/hupe1980/gbcore/internal/hash"
	"github.com/hupe1980/gbcore/types"
)

const (
	magic      = 0x4e534247 // "GBSN"
	version    = 1
	headerSize = 28
)

var (
	// ErrCorrupt is returned for a snapshot that fails to decode or verify.
	ErrCorrupt = errors.New("snapshot: corrupt")

	// ErrUnknownType is returned when a snapshot names a user-defined type
	// that is not in the registry passed to Decode.
	ErrUnknownType = errors.New("snapshot: unknown type")
)

// Header describes an encoded snapshot.
//
// Layout, little endian:
//
//	Magic        uint32
//	Version      uint16
//	Compression  uint8
//	Reserved     uint8
//	Checksum     uint32  CRC32C of the uncompressed payload
//	RawLen       uint64
//	StoredLen    uint64
type Header struct {
	Version     uint16
	Compression Compression
	Checksum    uint32
	RawLen      uint64
	StoredLen   uint64
}

func (h *Header) marshal() []byte {
	b := make([]byte, 0, headerSize)
	b = binary.LittleEndian.AppendUint32(b, magic)
	b = binary.LittleEndian.AppendUint16(b, h.Version)
	b = append(b, byte(h.Compression), 0)
	b = binary.LittleEndian.AppendUint32(b, h.Checksum)
	b = binary.LittleEndian.AppendUint64(b, h.RawLen)
	b = binary.LittleEndian.AppendUint64(b, h.StoredLen)
	return b
}

// ParseHeader reads the fixed-size header at the start of data.
func ParseHeader(data []byte) (*Header, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorrupt, len(data))
	}
	if m := binary.LittleEndian.Uint32(data[0:4]); m != magic {
		return nil, fmt.Errorf("%w: invalid magic %x", ErrCorrupt, m)
	}
	h := &Header{
		Version:     binary.LittleEndian.Uint16(data[4:6]),
		Compression: Compression(data[6]),
		Checksum:    binary.LittleEndian.Uint32(data[8:12]),
		RawLen:      binary.LittleEndian.Uint64(data[12:20]),
		StoredLen:   binary.LittleEndian.Uint64(data[20:28]),
	}
	if h.Version != version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, h.Version)
	}
	return h, nil
}

// Encode serializes an exported matrix.
//
// Payload:
//
//	TypeCode uint8, TypeSize uint32, TypeName string
//	Nrows, Ncols uint64
//	Format uint8, Iso uint8
//	len(H) uint64, H []uint64
//	len(P) uint64, P []uint64
//	len(I) uint64, I []uint64
//	len(X) uint64, X []byte
func Encode(e *gbcore.Exported, c Compression) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	tsize, err := conv.IntToUint32(e.Type.Size)
	if err != nil {
		return nil, err
	}

	size := 64 + len(e.Type.Name) + 8*(len(e.H)+len(e.P)+len(e.I)) + len(e.X)
	pb := newPayloadBuffer(make([]byte, 0, size))
	pb.writeUint8(uint8(e.Type.Code))
	pb.writeUint32(tsize)
	pb.writeString(e.Type.Name)
	pb.writeUint64(e.Nrows)
	pb.writeUint64(e.Ncols)
	pb.writeUint8(uint8(e.Format))
	pb.writeBool(e.Iso)
	pb.writeUint64s(e.H)
	pb.writeUint64s(e.P)
	pb.writeUint64s(e.I)
	pb.writeBytes(e.X)
	if pb.err != nil {
		return nil, pb.err
	}

	payload := pb.buf
	stored, used, err := compress(payload, c)
	if err != nil {
		return nil, err
	}
	h := Header{
		Version:     version,
		Compression: used,
		Checksum:    hash.CRC32C(payload),
		RawLen:      uint64(len(payload)),
		StoredLen:   uint64(len(stored)),
	}
	return append(h.marshal(), stored...), nil
}

// Decode parses a snapshot produced by Encode. Built-in types resolve by
// code; user-defined types are looked up by name in reg, which may be nil
// when the snapshot holds a built-in type.
func Decode(data []byte, reg *types.Registry) (*gbcore.Exported, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	body := data[headerSize:]
	if uint64(len(body)) != h.StoredLen {
		return nil, fmt.Errorf("%w: %d stored bytes, header says %d", ErrCorrupt, len(body), h.StoredLen)
	}
	if h.RawLen > maxPayload {
		return nil, fmt.Errorf("%w: payload of %d bytes", ErrCorrupt, h.RawLen)
	}
	rawLen, err := conv.Uint64ToInt(h.RawLen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	payload, err := decompress(body, h.Compression, rawLen)
	if err != nil {
		return nil, err
	}
	if err := hash.Verify(payload, h.Checksum); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	pb := newPayloadBuffer(payload)
	code := types.Code(pb.readUint8())
	tsize, err := conv.Uint32ToInt(pb.readUint32())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	tname := pb.readString()
	e := &gbcore.Exported{
		Nrows:  pb.readUint64(),
		Ncols:  pb.readUint64(),
		Format: gbcore.Format(pb.readUint8()),
		Iso:    pb.readBool(),
	}
	e.H = pb.readUint64s()
	e.P = pb.readUint64s()
	e.I = pb.readUint64s()
	e.X = pb.readBytes()
	if pb.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, pb.err)
	}
	if pb.pos != len(pb.buf) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, len(pb.buf)-pb.pos)
	}

	if e.Type, err = resolveType(code, tsize, tname, reg); err != nil {
		return nil, err
	}
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return e, nil
}

func resolveType(code types.Code, size int, name string, reg *types.Registry) (*types.Type, error) {
	if code != types.UDT {
		t := types.Builtin(code)
		if t == nil || t.Size != size {
			return nil, fmt.Errorf("%w: type code %d of size %d", ErrCorrupt, code, size)
		}
		return t, nil
	}
	if reg == nil {
		return nil, fmt.Errorf("%w: %q (no registry)", ErrUnknownType, name)
	}
	t, ok := reg.Lookup(name)
	if !ok || !t.IsUserDefined() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	if t.Size != size {
		return nil, fmt.Errorf("%w: %q has size %d, snapshot says %d", ErrUnknownType, name, t.Size, size)
	}
	return t, nil
}

// maxPayload bounds the decompressed size a header may claim.
const maxPayload = 1 << 40

type payloadBuffer struct {
	buf []byte
	pos int
	err error
}

func newPayloadBuffer(b []byte) *payloadBuffer {
	return &payloadBuffer{buf: b}
}

func (p *payloadBuffer) writeUint8(v uint8) {
	if p.err != nil {
		return
	}
	p.buf = append(p.buf, v)
}

func (p *payloadBuffer) writeBool(v bool) {
	var b uint8
	if v {
		b = 1
	}
	p.writeUint8(b)
}

func (p *payloadBuffer) writeUint32(v uint32) {
	if p.err != nil {
		return
	}
	p.buf = binary.LittleEndian.AppendUint32(p.buf, v)
}

func (p *payloadBuffer) writeUint64(v uint64) {
	if p.err != nil {
		return
	}
	p.buf = binary.LittleEndian.AppendUint64(p.buf, v)
}

func (p *payloadBuffer) writeString(s string) {
	if p.err != nil {
		return
	}
	if len(s) > 65535 {
		p.err = fmt.Errorf("snapshot: string too long: %d", len(s))
		return
	}
	p.buf = binary.LittleEndian.AppendUint16(p.buf, uint16(len(s)))
	p.buf = append(p.buf, s...)
}

func (p *payloadBuffer) writeUint64s(v []uint64) {
	p.writeUint64(uint64(len(v)))
	for _, x := range v {
		p.writeUint64(x)
	}
}

func (p *payloadBuffer) writeBytes(v []byte) {
	p.writeUint64(uint64(len(v)))
	if p.err != nil {
		return
	}
	p.buf = append(p.buf, v...)
}

func (p *payloadBuffer) need(n uint64) bool {
	if p.err != nil {
		return false
	}
	if n > uint64(len(p.buf)-p.pos) {
		p.err = io.ErrUnexpectedEOF
		return false
	}
	return true
}

func (p *payloadBuffer) readUint8() uint8 {
	if !p.need(1) {
		return 0
	}
	v := p.buf[p.pos]
	p.pos++
	return v
}

func (p *payloadBuffer) readBool() bool {
	return p.readUint8() != 0
}

func (p *payloadBuffer) readUint32() uint32 {
	if !p.need(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(p.buf[p.pos:])
	p.pos += 4
	return v
}

func (p *payloadBuffer) readUint64() uint64 {
	if !p.need(8) {
		return 0
	}
	v := binary.LittleEndian.Uint64(p.buf[p.pos:])
	p.pos += 8
	return v
}

func (p *payloadBuffer) readString() string {
	if !p.need(2) {
		return ""
	}
	l := uint64(binary.LittleEndian.Uint16(p.buf[p.pos:]))
	p.pos += 2
	if !p.need(l) {
		return ""
	}
	s := string(p.buf[p.pos : p.pos+int(l)])
	p.pos += int(l)
	return s
}

func (p *payloadBuffer) readUint64s() []uint64 {
	n := p.readUint64()
	if n > uint64(len(p.buf)-p.pos)/8 {
		if p.err == nil {
			p.err = io.ErrUnexpectedEOF
		}
		return nil
	}
	if n == 0 {
		return nil
	}
	v := make([]uint64, n)
	for k := range v {
		v[k] = p.readUint64()
	}
	return v
}

func (p *payloadBuffer) readBytes() []byte {
	n := p.readUint64()
	if !p.need(n) {
		return nil
	}
	v := append([]byte(nil), p.buf[p.pos:p.pos+int(n)]...)
	p.pos += int(n)
	return v
}
