package indexer

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// On-disk layout, little endian:
//
//	magic "RAFI" | version u32 | rows u64 | dims u64
//	rows x (id length u32 | id bytes)
//	rows x dims x float32
const (
	indexMagic   = "RAFI"
	indexVersion = uint32(1)
	maxIDLength  = 1 << 16
	// preallocation cap, so a corrupt header cannot force a huge allocation
	// before any payload has been read.
	maxPrealloc = 1 << 16
)

// ErrCorruptIndex is returned when an encoded index cannot be decoded.
var ErrCorruptIndex = errors.New("corrupt index file")

// Encode writes the index in its binary form.
func (f *FlatIndex) Encode(w io.Writer) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.WriteString(indexMagic); err != nil {
		return err
	}
	header := []any{indexVersion, uint64(f.Rows()), uint64(f.dims)}
	for _, v := range header {
		if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("failed to write index header: %w", err)
		}
	}

	for _, id := range f.ids {
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(id))); err != nil {
			return fmt.Errorf("failed to write chunk id: %w", err)
		}
		if _, err := bw.WriteString(id); err != nil {
			return fmt.Errorf("failed to write chunk id: %w", err)
		}
	}

	var buf [4]byte
	for _, v := range f.vectors {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
		if _, err := bw.Write(buf[:]); err != nil {
			return fmt.Errorf("failed to write vectors: %w", err)
		}
	}

	return bw.Flush()
}

// DecodeFlatIndex reads an index written by Encode.
func DecodeFlatIndex(r io.Reader) (*FlatIndex, error) {
	br := bufio.NewReader(r)

	magic := make([]byte, len(indexMagic))
	if _, err := io.ReadFull(br, magic); err != nil || string(magic) != indexMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrCorruptIndex)
	}

	var (
		version    uint32
		rows, dims uint64
	)
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptIndex, err)
	}
	if version != indexVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptIndex, version)
	}
	if err := binary.Read(br, binary.LittleEndian, &rows); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptIndex, err)
	}
	if err := binary.Read(br, binary.LittleEndian, &dims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptIndex, err)
	}
	if dims == 0 || dims > math.MaxInt32 || rows > math.MaxInt32 {
		return nil, fmt.Errorf("%w: implausible shape %dx%d", ErrCorruptIndex, rows, dims)
	}

	f := &FlatIndex{dims: int(dims), ids: make([]string, 0, min(rows, maxPrealloc))}
	for i := uint64(0); i < rows; i++ {
		var n uint32
		if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptIndex, err)
		}
		if n > maxIDLength {
			return nil, fmt.Errorf("%w: chunk id length %d", ErrCorruptIndex, n)
		}
		id := make([]byte, n)
		if _, err := io.ReadFull(br, id); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptIndex, err)
		}
		f.ids = append(f.ids, string(id))
	}

	total := rows * dims
	f.vectors = make([]float32, 0, min(total, maxPrealloc))
	var buf [4]byte
	for i := uint64(0); i < total; i++ {
		if _, err := io.ReadFull(br, buf[:]); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptIndex, err)
		}
		f.vectors = append(f.vectors, math.Float32frombits(binary.LittleEndian.Uint32(buf[:])))
	}

	if _, err := br.ReadByte(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data", ErrCorruptIndex)
	}
	return f, nil
}
