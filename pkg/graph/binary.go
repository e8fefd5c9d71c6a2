package graph

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"unsafe"

	osmparser "access_router/pkg/osm"
)

const (
	magicBytes = "ACCROUTE"
	version    = uint32(1)
	maxNodes   = 50_000_000
	maxLinks   = 200_000_000
)

// Header flags for optional sections.
const (
	flagCoords uint32 = 1 << iota
	flagAttrs
)

// fileHeader is the binary header.
type fileHeader struct {
	Magic    [8]byte
	Version  uint32
	NumNodes int32
	NumLinks int32
	Flags    uint32
}

// WriteBinary serializes a Graph to a binary file. Tail and the in-link index
// are derived on load and not stored.
func WriteBinary(path string, g *Graph) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath) // clean up on error
	}()

	crcWriter := crc32Writer{w: f, hash: crc32.NewIEEE()}
	w := &crcWriter

	hdr := fileHeader{
		Version:  version,
		NumNodes: g.NumNodes,
		NumLinks: g.NumLinks,
	}
	if g.HasCoords() {
		hdr.Flags |= flagCoords
	}
	if g.Class != nil {
		hdr.Flags |= flagAttrs
	}
	copy(hdr.Magic[:], magicBytes)
	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	if err := writeSlice(w, g.FirstOut); err != nil {
		return fmt.Errorf("write FirstOut: %w", err)
	}
	if err := writeSlice(w, g.Head); err != nil {
		return fmt.Errorf("write Head: %w", err)
	}
	if err := writeSlice(w, g.Length); err != nil {
		return fmt.Errorf("write Length: %w", err)
	}
	if err := writeSlice(w, g.LinkID); err != nil {
		return fmt.Errorf("write LinkID: %w", err)
	}

	if hdr.Flags&flagCoords != 0 {
		if err := writeSlice(w, g.NodeLat); err != nil {
			return fmt.Errorf("write NodeLat: %w", err)
		}
		if err := writeSlice(w, g.NodeLon); err != nil {
			return fmt.Errorf("write NodeLon: %w", err)
		}
	}

	if hdr.Flags&flagAttrs != 0 {
		if err := writeSlice(w, g.Class); err != nil {
			return fmt.Errorf("write Class: %w", err)
		}
		if err := writeSlice(w, g.MaxSpeed); err != nil {
			return fmt.Errorf("write MaxSpeed: %w", err)
		}
		if err := writeSlice(w, g.Lanes); err != nil {
			return fmt.Errorf("write Lanes: %w", err)
		}
	}

	// Write CRC32 trailer.
	checksum := crcWriter.hash.Sum32()
	if err := binary.Write(f, binary.LittleEndian, checksum); err != nil {
		return fmt.Errorf("write CRC32: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	// Atomic rename.
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}

	return nil
}

// ReadBinary deserializes a Graph from a binary file.
func ReadBinary(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	crcReader := crc32Reader{r: f, hash: crc32.NewIEEE()}
	r := &crcReader

	var hdr fileHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if string(hdr.Magic[:]) != magicBytes {
		return nil, fmt.Errorf("invalid magic bytes: %q", hdr.Magic)
	}
	if hdr.Version != version {
		return nil, fmt.Errorf("unsupported version: %d", hdr.Version)
	}
	if hdr.NumNodes < 0 || hdr.NumNodes > maxNodes {
		return nil, fmt.Errorf("NumNodes %d outside [0, %d]", hdr.NumNodes, maxNodes)
	}
	if hdr.NumLinks < 0 || hdr.NumLinks > maxLinks {
		return nil, fmt.Errorf("NumLinks %d outside [0, %d]", hdr.NumLinks, maxLinks)
	}

	nodes, links := int(hdr.NumNodes), int(hdr.NumLinks)
	g := &Graph{NumNodes: hdr.NumNodes, NumLinks: hdr.NumLinks}

	if g.FirstOut, err = readSlice[int32](r, nodes+1); err != nil {
		return nil, fmt.Errorf("read FirstOut: %w", err)
	}
	if g.Head, err = readSlice[int32](r, links); err != nil {
		return nil, fmt.Errorf("read Head: %w", err)
	}
	if g.Length, err = readSlice[float64](r, links); err != nil {
		return nil, fmt.Errorf("read Length: %w", err)
	}
	if g.LinkID, err = readSlice[int64](r, links); err != nil {
		return nil, fmt.Errorf("read LinkID: %w", err)
	}

	if hdr.Flags&flagCoords != 0 {
		if g.NodeLat, err = readSlice[float64](r, nodes); err != nil {
			return nil, fmt.Errorf("read NodeLat: %w", err)
		}
		if g.NodeLon, err = readSlice[float64](r, nodes); err != nil {
			return nil, fmt.Errorf("read NodeLon: %w", err)
		}
	}

	if hdr.Flags&flagAttrs != 0 {
		if g.Class, err = readSlice[osmparser.RoadClass](r, links); err != nil {
			return nil, fmt.Errorf("read Class: %w", err)
		}
		if g.MaxSpeed, err = readSlice[float32](r, links); err != nil {
			return nil, fmt.Errorf("read MaxSpeed: %w", err)
		}
		if g.Lanes, err = readSlice[uint8](r, links); err != nil {
			return nil, fmt.Errorf("read Lanes: %w", err)
		}
	}

	// Read and validate CRC32.
	expectedCRC := crcReader.hash.Sum32()
	var storedCRC uint32
	if err := binary.Read(f, binary.LittleEndian, &storedCRC); err != nil {
		return nil, fmt.Errorf("read CRC32: %w", err)
	}
	if storedCRC != expectedCRC {
		return nil, fmt.Errorf("CRC32 mismatch: stored=%08x computed=%08x", storedCRC, expectedCRC)
	}

	if err := validateCSR(g.FirstOut, g.Head, g.NumNodes); err != nil {
		return nil, fmt.Errorf("CSR invalid: %w", err)
	}

	g.buildTails()
	g.buildInIndex()
	return g, nil
}

// validateCSR checks CSR invariants.
func validateCSR(firstOut, head []int32, numNodes int32) error {
	if int32(len(firstOut)) != numNodes+1 {
		return fmt.Errorf("FirstOut length %d != NumNodes+1 %d", len(firstOut), numNodes+1)
	}
	if firstOut[0] != 0 {
		return fmt.Errorf("FirstOut[0]=%d, want 0", firstOut[0])
	}
	numLinks := firstOut[numNodes]
	if int32(len(head)) != numLinks {
		return fmt.Errorf("Head length %d != FirstOut[NumNodes] %d", len(head), numLinks)
	}
	for i := int32(1); i <= numNodes; i++ {
		if firstOut[i] < firstOut[i-1] {
			return fmt.Errorf("FirstOut not monotonic at %d: %d < %d", i, firstOut[i], firstOut[i-1])
		}
	}
	for i, h := range head {
		if h < 0 || h >= numNodes {
			return fmt.Errorf("Head[%d]=%d outside [0, %d)", i, h, numNodes)
		}
	}
	return nil
}

// Zero-copy I/O helpers using unsafe.Slice.

type fixedSize interface {
	~int32 | ~int64 | ~uint8 | ~float32 | ~float64
}

func writeSlice[T fixedSize](w io.Writer, s []T) error {
	if len(s) == 0 {
		return nil
	}
	size := int(unsafe.Sizeof(s[0]))
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*size)
	_, err := w.Write(b)
	return err
}

func readSlice[T fixedSize](r io.Reader, n int) ([]T, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]T, n)
	size := int(unsafe.Sizeof(s[0]))
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*size)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return s, nil
}

// CRC32 wrapping writers/readers.

type crc32Hash interface {
	Write([]byte) (int, error)
	Sum32() uint32
}

type crc32Writer struct {
	w    io.Writer
	hash crc32Hash
}

func (cw *crc32Writer) Write(p []byte) (int, error) {
	cw.hash.Write(p)
	return cw.w.Write(p)
}

type crc32Reader struct {
	r    io.Reader
	hash crc32Hash
}

func (cr *crc32Reader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.hash.Write(p[:n])
	}
	return n, err
}
