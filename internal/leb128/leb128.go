// Package leb128 decodes and encodes the LEB128 integers used
// throughout the WebAssembly binary format.
package leb128

import (
	"errors"
	"io"
)

const (
	maxVarintLen32 = 5
	maxVarintLen64 = 10
)

var (
	errOverflow32 = errors.New("overflows a 32-bit integer")
	errOverflow33 = errors.New("overflows a 33-bit integer")
	errOverflow64 = errors.New("overflows a 64-bit integer")
)

// EncodeUint32 encodes the value into a buffer in LEB128 format.
func EncodeUint32(value uint32) []byte {
	return EncodeUint64(uint64(value))
}

// EncodeUint64 encodes the value into a buffer in LEB128 format.
func EncodeUint64(value uint64) (buf []byte) {
	for {
		b := byte(value & 0x7f)
		value >>= 7
		if value != 0 {
			b |= 0x80
		}
		buf = append(buf, b)
		if value == 0 {
			return
		}
	}
}

// EncodeInt32 encodes the signed value into a buffer in LEB128 format.
func EncodeInt32(value int32) []byte {
	return EncodeInt64(int64(value))
}

// EncodeInt64 encodes the signed value into a buffer in LEB128 format.
func EncodeInt64(value int64) (buf []byte) {
	for {
		b := byte(value & 0x7f)
		value >>= 7
		if (value == 0 && b&0x40 == 0) || (value == -1 && b&0x40 != 0) {
			return append(buf, b)
		}
		buf = append(buf, b|0x80)
	}
}

// DecodeUint32 reads an unsigned 32-bit integer, returning it with the
// number of bytes consumed.
func DecodeUint32(r io.ByteReader) (ret uint32, bytesRead uint64, err error) {
	var shift int
	for {
		b, e := r.ReadByte()
		if e != nil {
			return 0, 0, e
		}
		bytesRead++
		ret |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			// The top bits of a max-length encoding must be zero.
			if shift == (maxVarintLen32-1)*7 && b>>(32-shift) != 0 {
				return 0, 0, errOverflow32
			}
			return ret, bytesRead, nil
		}
		shift += 7
		if shift >= maxVarintLen32*7 {
			return 0, 0, errOverflow32
		}
	}
}

// DecodeUint64 reads an unsigned 64-bit integer, returning it with the
// number of bytes consumed.
func DecodeUint64(r io.ByteReader) (ret uint64, bytesRead uint64, err error) {
	var shift int
	for {
		b, e := r.ReadByte()
		if e != nil {
			return 0, 0, e
		}
		bytesRead++
		ret |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			if shift == (maxVarintLen64-1)*7 && b>>(64-shift) != 0 {
				return 0, 0, errOverflow64
			}
			return ret, bytesRead, nil
		}
		shift += 7
		if shift >= maxVarintLen64*7 {
			return 0, 0, errOverflow64
		}
	}
}

// DecodeInt32 reads a signed 32-bit integer, returning it with the
// number of bytes consumed.
func DecodeInt32(r io.ByteReader) (ret int32, bytesRead uint64, err error) {
	var shift int
	var b byte
	for {
		b, err = r.ReadByte()
		if err != nil {
			return 0, 0, err
		}
		bytesRead++
		ret |= int32(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
		if shift >= maxVarintLen32*7 {
			return 0, 0, errOverflow32
		}
	}
	if shift < 32 && b&0x40 != 0 {
		ret |= -1 << shift
	}
	if bytesRead == maxVarintLen32 {
		// The unused bits of the final byte must be a sign extension.
		if sext := b >> 3 & 0xf; sext != 0 && sext != 0xf {
			return 0, 0, errOverflow32
		}
	}
	return
}

// DecodeInt33AsInt64 reads a signed 33-bit integer (the encoding of a
// block type), returning it with the number of bytes consumed.
func DecodeInt33AsInt64(r io.ByteReader) (ret int64, bytesRead uint64, err error) {
	var shift int
	var b byte
	for {
		b, err = r.ReadByte()
		if err != nil {
			return 0, 0, err
		}
		bytesRead++
		ret |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
		if shift >= maxVarintLen32*7 {
			return 0, 0, errOverflow33
		}
	}
	if shift < 33 && b&0x40 != 0 {
		ret |= -1 << shift
	}
	if bytesRead == maxVarintLen32 {
		if sext := b >> 4 & 0x7; sext != 0 && sext != 0x7 {
			return 0, 0, errOverflow33
		}
	}
	return
}

// DecodeInt64 reads a signed 64-bit integer, returning it with the
// number of bytes consumed.
func DecodeInt64(r io.ByteReader) (ret int64, bytesRead uint64, err error) {
	var shift int
	var b byte
	for {
		b, err = r.ReadByte()
		if err != nil {
			return 0, 0, err
		}
		bytesRead++
		ret |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
		if shift >= maxVarintLen64*7 {
			return 0, 0, errOverflow64
		}
	}
	if shift < 64 && b&0x40 != 0 {
		ret |= -1 << shift
	}
	if bytesRead == maxVarintLen64 {
		if b != 0 && b != 0x7f {
			return 0, 0, errOverflow64
		}
	}
	return
}
