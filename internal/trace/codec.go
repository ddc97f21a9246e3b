package trace

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// HeaderSize is the length of the three u16 length prefixes.
const HeaderSize = 6

// MaxRecordSize is the largest record the three prefixes can describe.
const MaxRecordSize = HeaderSize + 3*math.MaxUint16

var (
	// ErrEmptyRecord is returned for nil or zero-length input.
	ErrEmptyRecord = errors.New("empty record")
	// ErrShortHeader is returned when the input cannot hold the header.
	ErrShortHeader = errors.New("record shorter than header")
	// ErrShortBody is returned when a declared field runs past the input.
	ErrShortBody = errors.New("record shorter than declared fields")
	// ErrFieldTooLong is returned by Encode for fields over 65535 bytes.
	ErrFieldTooLong = errors.New("field exceeds 65535 bytes")
)

// Entry is one reported callback event.
type Entry struct {
	Name        string `json:"name"`
	Profile     string `json:"profile"`
	CallerStack string `json:"caller_stack"`
}

// Decode parses one wire record:
//
//	u16 nameLen | u16 profileLen | u16 stackLen | name | profile | stack
//
// All integers are little-endian. Bytes after the stack are ignored.
func Decode(raw []byte) (Entry, error) {
	if len(raw) == 0 {
		return Entry{}, ErrEmptyRecord
	}

	r := reader{buf: raw}
	nameLen, ok1 := r.u16()
	profileLen, ok2 := r.u16()
	stackLen, ok3 := r.u16()
	if !ok1 || !ok2 || !ok3 {
		return Entry{}, fmt.Errorf("%w: %d bytes", ErrShortHeader, len(raw))
	}

	name, ok := r.field(int(nameLen))
	if !ok {
		return Entry{}, fmt.Errorf("%w: name wants %d, %d left", ErrShortBody, nameLen, r.remaining())
	}
	profile, ok := r.field(int(profileLen))
	if !ok {
		return Entry{}, fmt.Errorf("%w: profile wants %d, %d left", ErrShortBody, profileLen, r.remaining())
	}
	stack, ok := r.field(int(stackLen))
	if !ok {
		return Entry{}, fmt.Errorf("%w: stack wants %d, %d left", ErrShortBody, stackLen, r.remaining())
	}

	return Entry{
		Name:        string(name),
		Profile:     string(profile),
		CallerStack: string(stack),
	}, nil
}

// Encode builds the wire record for an entry.
func Encode(e Entry) ([]byte, error) {
	for _, f := range []string{e.Name, e.Profile, e.CallerStack} {
		if len(f) > math.MaxUint16 {
			return nil, ErrFieldTooLong
		}
	}

	buf := make([]byte, HeaderSize, HeaderSize+len(e.Name)+len(e.Profile)+len(e.CallerStack))
	binary.LittleEndian.PutUint16(buf[0:], uint16(len(e.Name)))
	binary.LittleEndian.PutUint16(buf[2:], uint16(len(e.Profile)))
	binary.LittleEndian.PutUint16(buf[4:], uint16(len(e.CallerStack)))
	buf = append(buf, e.Name...)
	buf = append(buf, e.Profile...)
	buf = append(buf, e.CallerStack...)
	return buf, nil
}

// reader is a bounds-checked cursor over a record.
type reader struct {
	buf []byte
	off int
}

func (r *reader) remaining() int {
	return len(r.buf) - r.off
}

func (r *reader) u16() (uint16, bool) {
	if r.remaining() < 2 {
		return 0, false
	}
	v := binary.LittleEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v, true
}

func (r *reader) field(n int) ([]byte, bool) {
	if n > r.remaining() {
		return nil, false
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, true
}
