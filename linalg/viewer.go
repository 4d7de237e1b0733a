package linalg

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the block codec of the binary viewer
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionLZ4
	CompressionZSTD
)

const (
	magicSeqBAIJ = "DGBM"
	magicVec     = "DGBV"
	// header: magic[4] codec[1] uncompressed u32 stored u32
	headerSize = 13
)

// WriteSeqBAIJ writes the pattern and values of a in a self describing binary frame
func WriteSeqBAIJ(w io.Writer, a *SeqBAIJ, ct Compression) error {
	a.alive()
	var buf bytes.Buffer
	putInts(&buf, a.bs, a.m, a.n)
	putInts(&buf, a.rowLen...)
	for i := 0; i < a.mbs; i++ {
		putInts(&buf, a.RowIndices(i)...)
	}
	bsz := a.bs * a.bs
	for i := 0; i < a.mbs; i++ {
		s := a.rowStart[i]
		putFloats(&buf, a.vals[s*bsz:(s+a.rowLen[i])*bsz]...)
	}
	return writeFrame(w, magicSeqBAIJ, buf.Bytes(), ct)
}

// ReadSeqBAIJ reads a matrix written by WriteSeqBAIJ; it is returned assembled
func ReadSeqBAIJ(r io.Reader) (*SeqBAIJ, error) {
	payload, err := readFrame(r, magicSeqBAIJ)
	if err != nil {
		return nil, err
	}
	rd := bytes.NewReader(payload)
	dims, err := getInts(rd, 3)
	if err != nil {
		return nil, err
	}
	bs, m, n := dims[0], dims[1], dims[2]
	if bs < 1 || m < 0 || n < 0 || m%bs != 0 || n%bs != 0 {
		return nil, fmt.Errorf("corrupt matrix header %v", dims)
	}
	nnz, err := getInts(rd, m/bs)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, c := range nnz {
		total += c
	}
	cols, err := getInts(rd, total)
	if err != nil {
		return nil, err
	}
	vals, err := getFloats(rd, total*bs*bs)
	if err != nil {
		return nil, err
	}
	a, err := safeNewSeqBAIJ(bs, m, n, nnz)
	if err != nil {
		return nil, err
	}
	if err = a.SetColumnIndices(cols); err != nil {
		return nil, err
	}
	copy(a.vals, vals)
	a.AssemblyBegin()
	a.AssemblyEnd()
	return a, nil
}

func safeNewSeqBAIJ(bs, m, n int, nnz []int) (a *SeqBAIJ, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("corrupt matrix: %v", r)
		}
	}()
	return NewSeqBAIJ(bs, m, n, nnz), nil
}

// WriteVec writes the local values of v
func WriteVec(w io.Writer, v *Vec, ct Compression) error {
	v.alive()
	var buf bytes.Buffer
	putInts(&buf, v.n)
	putFloats(&buf, v.data...)
	return writeFrame(w, magicVec, buf.Bytes(), ct)
}

// ReadVec reads values written by WriteVec into a sequential vector
func ReadVec(r io.Reader) (*Vec, error) {
	payload, err := readFrame(r, magicVec)
	if err != nil {
		return nil, err
	}
	rd := bytes.NewReader(payload)
	n, err := getInts(rd, 1)
	if err != nil {
		return nil, err
	}
	if n[0] < 0 {
		return nil, fmt.Errorf("corrupt vector length %d", n[0])
	}
	data, err := getFloats(rd, n[0])
	if err != nil {
		return nil, err
	}
	return wrapSeq(data), nil
}

func writeFrame(w io.Writer, magic string, payload []byte, ct Compression) error {
	stored, err := compress(payload, ct)
	if err != nil {
		return fmt.Errorf("compress: %w", err)
	}
	if stored == nil {
		ct, stored = CompressionNone, payload
	}
	hdr := make([]byte, headerSize)
	copy(hdr, magic)
	hdr[4] = byte(ct)
	binary.LittleEndian.PutUint32(hdr[5:], uint32(len(payload)))
	binary.LittleEndian.PutUint32(hdr[9:], uint32(len(stored)))
	if _, err = w.Write(hdr); err != nil {
		return err
	}
	_, err = w.Write(stored)
	return err
}

func readFrame(r io.Reader, magic string) ([]byte, error) {
	hdr := make([]byte, headerSize)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if string(hdr[:4]) != magic {
		return nil, fmt.Errorf("bad magic %q, want %q", hdr[:4], magic)
	}
	size := binary.LittleEndian.Uint32(hdr[5:])
	stored := make([]byte, binary.LittleEndian.Uint32(hdr[9:]))
	if _, err := io.ReadFull(r, stored); err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return decompress(stored, Compression(hdr[4]), int(size))
}

// compress returns nil when the codec does not shrink the payload
func compress(data []byte, ct Compression) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	switch ct {
	case CompressionNone:
		return nil, nil
	case CompressionLZ4:
		out := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, out, nil)
		if err != nil || n == 0 {
			return nil, err
		}
		return out[:n], nil
	case CompressionZSTD:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		out := enc.EncodeAll(data, nil)
		if len(out) >= len(data) {
			return nil, nil
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown compression %d", ct)
	}
}

func decompress(stored []byte, ct Compression, size int) ([]byte, error) {
	switch ct {
	case CompressionNone:
		if len(stored) != size {
			return nil, errors.New("stored size differs from payload size")
		}
		return stored, nil
	case CompressionLZ4:
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(stored, out)
		if err != nil {
			return nil, fmt.Errorf("lz4: %w", err)
		}
		return out[:n], nil
	case CompressionZSTD:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		out, err := dec.DecodeAll(stored, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown compression %d", ct)
	}
}

func putInts(buf *bytes.Buffer, xs ...int) {
	var b [8]byte
	for _, x := range xs {
		binary.LittleEndian.PutUint64(b[:], uint64(int64(x)))
		buf.Write(b[:])
	}
}

func putFloats(buf *bytes.Buffer, xs ...float64) {
	var b [8]byte
	for _, x := range xs {
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(x))
		buf.Write(b[:])
	}
}

func getInts(r *bytes.Reader, n int) ([]int, error) {
	if n < 0 || n*8 > r.Len() {
		return nil, io.ErrUnexpectedEOF
	}
	out := make([]int, n)
	var b [8]byte
	for i := range out {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, err
		}
		out[i] = int(int64(binary.LittleEndian.Uint64(b[:])))
	}
	return out, nil
}

func getFloats(r *bytes.Reader, n int) ([]float64, error) {
	if n < 0 || n*8 > r.Len() {
		return nil, io.ErrUnexpectedEOF
	}
	out := make([]float64, n)
	var b [8]byte
	for i := range out {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, err
		}
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[:]))
	}
	return out, nil
}
