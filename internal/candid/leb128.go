package candid

import (
	"bytes"
	"errors"
	"io"
	"math/big"
)

var errOverflow = errors.New("leb128 value overflows 64 bits")

var (
	low7     = big.NewInt(0x7f)
	minusOne = big.NewInt(-1)
)

func writeNat(buf *bytes.Buffer, n *big.Int) {
	x := new(big.Int).Set(n)
	for {
		b := byte(new(big.Int).And(x, low7).Uint64())
		x.Rsh(x, 7)
		if x.Sign() == 0 {
			buf.WriteByte(b)
			return
		}
		buf.WriteByte(b | 0x80)
	}
}

func writeInt(buf *bytes.Buffer, n *big.Int) {
	x := new(big.Int).Set(n)
	for {
		b := byte(new(big.Int).And(x, low7).Uint64())
		x.Rsh(x, 7)
		done := (x.Sign() == 0 && b&0x40 == 0) || (x.Cmp(minusOne) == 0 && b&0x40 != 0)
		if done {
			buf.WriteByte(b)
			return
		}
		buf.WriteByte(b | 0x80)
	}
}

func writeUint(buf *bytes.Buffer, n uint64) {
	writeNat(buf, new(big.Int).SetUint64(n))
}

func writeSint(buf *bytes.Buffer, n int64) {
	writeInt(buf, big.NewInt(n))
}

// AppendUleb appends the unsigned LEB128 form of n.
func AppendUleb(dst []byte, n uint64) []byte {
	var buf bytes.Buffer
	writeUint(&buf, n)
	return append(dst, buf.Bytes()...)
}

func readNat(r *bytes.Reader) (*big.Int, error) {
	result := new(big.Int)
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, io.ErrUnexpectedEOF
		}
		chunk := new(big.Int).SetUint64(uint64(b & 0x7f))
		result.Or(result, chunk.Lsh(chunk, shift))
		shift += 7
		if b&0x80 == 0 {
			return result, nil
		}
	}
}

func readInt(r *bytes.Reader) (*big.Int, error) {
	result := new(big.Int)
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, io.ErrUnexpectedEOF
		}
		chunk := new(big.Int).SetUint64(uint64(b & 0x7f))
		result.Or(result, chunk.Lsh(chunk, shift))
		shift += 7
		if b&0x80 == 0 {
			if b&0x40 != 0 {
				result.Sub(result, new(big.Int).Lsh(big.NewInt(1), shift))
			}
			return result, nil
		}
	}
}

func readUint(r *bytes.Reader) (uint64, error) {
	n, err := readNat(r)
	if err != nil {
		return 0, err
	}
	if !n.IsUint64() {
		return 0, errOverflow
	}
	return n.Uint64(), nil
}

func readSint(r *bytes.Reader) (int64, error) {
	n, err := readInt(r)
	if err != nil {
		return 0, err
	}
	if !n.IsInt64() {
		return 0, errOverflow
	}
	return n.Int64(), nil
}

// ReadUleb decodes an unsigned LEB128 number occupying all of data.
func ReadUleb(data []byte) (uint64, error) {
	r := bytes.NewReader(data)
	n, err := readUint(r)
	if err != nil {
		return 0, err
	}
	if r.Len() != 0 {
		return 0, errors.New("trailing bytes after leb128 value")
	}
	return n, nil
}
