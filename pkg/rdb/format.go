package rdb

import (
	"bufio"
	"encoding/binary"
	"errors"
	"strconv"
)

// Markers and object-type tags from spec.md §4.G.
const (
	markerSelectDB byte = 0xFE
	markerEOF      byte = 0xFF
	markerExpire   byte = 0xFD

	typeString byte = 0
	typeList   byte = 1
	typeSet    byte = 2
)

// Length-prefix modes (top two bits of the first byte). lenModeEncode is
// the "11" mode: the remaining 6 bits select an encoded-object
// sub-format (encInt8/16/32/LZF) instead of a literal length.
const (
	lenMode6Bit   = 0x00
	lenMode14Bit  = 0x01
	lenMode32Bit  = 0x02
	lenModeEncode = 0x03

	encInt8  = 0
	encInt16 = 1
	encInt32 = 2
	encLZF   = 3
)

var errCorruptSnapshot = errors.New("rdb: corrupt or truncated snapshot")

// writeLength emits spec.md's length-prefix bit layout: 00/6-bit,
// 01/14-bit big-endian, or 10 + 4-byte big-endian for anything larger.
func writeLength(w *bufio.Writer, n int) error {
	switch {
	case n < 1<<6:
		return w.WriteByte(byte(lenMode6Bit<<6) | byte(n))
	case n < 1<<14:
		if err := w.WriteByte(byte(lenMode14Bit<<6) | byte(n>>8)); err != nil {
			return err
		}
		return w.WriteByte(byte(n))
	default:
		if err := w.WriteByte(lenMode32Bit << 6); err != nil {
			return err
		}
		var buf [4]byte
		binary.BigEndian.PutUint32(buf[:], uint32(n))
		_, err := w.Write(buf[:])
		return err
	}
}

// readLength decodes a length-prefix byte sequence. If the top two bits
// select the encoded-object mode, isEncoded is true and encType carries
// the sub-encoding (encInt8/16/32/LZF); n is meaningless in that case.
func readLength(r *bufio.Reader) (n int, isEncoded bool, encType byte, err error) {
	first, err := r.ReadByte()
	if err != nil {
		return 0, false, 0, err
	}
	switch first >> 6 {
	case lenMode6Bit:
		return int(first & 0x3F), false, 0, nil
	case lenMode14Bit:
		second, err := r.ReadByte()
		if err != nil {
			return 0, false, 0, err
		}
		return int(first&0x3F)<<8 | int(second), false, 0, nil
	case lenMode32Bit:
		var buf [4]byte
		if _, err := readFull(r, buf[:]); err != nil {
			return 0, false, 0, err
		}
		return int(binary.BigEndian.Uint32(buf[:])), false, 0, nil
	default: // lenModeEncode
		return 0, true, first & 0x3F, nil
	}
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// writeStringV1 chooses the smallest of: integer encoding (if the bytes
// round-trip-identically as a decimal integer fitting 8/16/32 bits),
// LZF encoding (if strictly smaller and the string exceeds 20 bytes),
// or raw length+bytes — spec.md §4.G's "string encoding choice".
func writeStringV1(w *bufio.Writer, s []byte) error {
	if n, ok := fitsRoundTripInt(s); ok {
		switch {
		case n >= -128 && n <= 127:
			if err := w.WriteByte(byte(lenModeEncode<<6) | encInt8); err != nil {
				return err
			}
			return w.WriteByte(byte(int8(n)))
		case n >= -32768 && n <= 32767:
			if err := w.WriteByte(byte(lenModeEncode<<6) | encInt16); err != nil {
				return err
			}
			var buf [2]byte
			binary.LittleEndian.PutUint16(buf[:], uint16(int16(n)))
			_, err := w.Write(buf[:])
			return err
		default:
			if err := w.WriteByte(byte(lenModeEncode<<6) | encInt32); err != nil {
				return err
			}
			var buf [4]byte
			binary.LittleEndian.PutUint32(buf[:], uint32(int32(n)))
			_, err := w.Write(buf[:])
			return err
		}
	}

	if len(s) > 20 {
		if compressed := Compress(s); compressed != nil && len(compressed) < len(s) {
			if err := w.WriteByte(byte(lenModeEncode<<6) | encLZF); err != nil {
				return err
			}
			if err := writeLength(w, len(compressed)); err != nil {
				return err
			}
			if err := writeLength(w, len(s)); err != nil {
				return err
			}
			_, err := w.Write(compressed)
			return err
		}
	}

	if err := writeLength(w, len(s)); err != nil {
		return err
	}
	_, err := w.Write(s)
	return err
}

// fitsRoundTripInt reports whether s is the canonical decimal rendering
// of an integer that fits in an int32 — i.e. strconv.FormatInt(n, 10)
// reproduces s exactly, ruling out leading zeros, "+", or whitespace.
func fitsRoundTripInt(s []byte) (int64, bool) {
	if len(s) == 0 || len(s) > 11 {
		return 0, false
	}
	n, err := strconv.ParseInt(string(s), 10, 64)
	if err != nil || n < -(1<<31) || n > (1<<31)-1 {
		return 0, false
	}
	if strconv.FormatInt(n, 10) != string(s) {
		return 0, false
	}
	return n, true
}

func readStringV1(r *bufio.Reader) ([]byte, error) {
	n, isEncoded, encType, err := readLength(r)
	if err != nil {
		return nil, err
	}
	if !isEncoded {
		buf := make([]byte, n)
		if _, err := readFull(r, buf); err != nil {
			return nil, err
		}
		return buf, nil
	}
	switch encType {
	case encInt8:
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		return []byte(strconv.FormatInt(int64(int8(b)), 10)), nil
	case encInt16:
		var buf [2]byte
		if _, err := readFull(r, buf[:]); err != nil {
			return nil, err
		}
		return []byte(strconv.FormatInt(int64(int16(binary.LittleEndian.Uint16(buf[:]))), 10)), nil
	case encInt32:
		var buf [4]byte
		if _, err := readFull(r, buf[:]); err != nil {
			return nil, err
		}
		return []byte(strconv.FormatInt(int64(int32(binary.LittleEndian.Uint32(buf[:]))), 10)), nil
	case encLZF:
		compLen, _, _, err := readLength(r)
		if err != nil {
			return nil, err
		}
		rawLen, _, _, err := readLength(r)
		if err != nil {
			return nil, err
		}
		comp := make([]byte, compLen)
		if _, err := readFull(r, comp); err != nil {
			return nil, err
		}
		return Decompress(comp, rawLen)
	default:
		return nil, errCorruptSnapshot
	}
}

// writeStringV0/readStringV0 implement the legacy format version 0:
// a plain 4-byte big-endian length with no integer or LZF encoding,
// kept only so Load can still read old dumps (spec.md §6.1).
func writeStringV0(w *bufio.Writer, s []byte) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(len(s)))
	if _, err := w.Write(buf[:]); err != nil {
		return err
	}
	_, err := w.Write(s)
	return err
}

func readStringV0(r *bufio.Reader) ([]byte, error) {
	var buf [4]byte
	if _, err := readFull(r, buf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(buf[:])
	out := make([]byte, n)
	if _, err := readFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}
