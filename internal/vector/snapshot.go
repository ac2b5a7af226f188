package vector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/hyperjump/shirabe/internal/models"
)

// Save writes a binary snapshot of the index to path, creating parent
// directories as needed. Layout: dimensions (4), row count (4), then per row:
// text length (4) + text bytes, metadata length (4) + metadata JSON bytes,
// raw embedding (dimensions*4 bytes, little-endian float32).
func (idx *Index) Save(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := binary.Write(w, binary.LittleEndian, uint32(idx.dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(idx.chunks))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for i, ch := range idx.chunks {
		if err := writeBytes(w, []byte(ch.Text)); err != nil {
			return fmt.Errorf("write text %d: %w", i, err)
		}
		var meta []byte
		if ch.Metadata != nil {
			meta, err = json.Marshal(ch.Metadata)
			if err != nil {
				return fmt.Errorf("marshal metadata %d: %w", i, err)
			}
		}
		if err := writeBytes(w, meta); err != nil {
			return fmt.Errorf("write metadata %d: %w", i, err)
		}
		if _, err := w.Write(float32SliceToBytes(idx.embeddings[i])); err != nil {
			return fmt.Errorf("write embedding %d: %w", i, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush index file: %w", err)
	}
	return nil
}

// LoadIndex reads a snapshot written by Save and reconstructs the index,
// including the normalized rows.
func LoadIndex(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var dim, n uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return nil, fmt.Errorf("read dimensions: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("read count: %w", err)
	}

	idx := &Index{
		chunks:     make([]models.Chunk, 0, n),
		embeddings: make([][]float32, 0, n),
		normalized: make([][]float32, 0, n),
		dimensions: int(dim),
	}
	vecBuf := make([]byte, int(dim)*4)
	for i := uint32(0); i < n; i++ {
		text, err := readBytes(r)
		if err != nil {
			return nil, fmt.Errorf("read text %d: %w", i, err)
		}
		metaRaw, err := readBytes(r)
		if err != nil {
			return nil, fmt.Errorf("read metadata %d: %w", i, err)
		}
		var meta map[string]interface{}
		if len(metaRaw) > 0 {
			if err := json.Unmarshal(metaRaw, &meta); err != nil {
				return nil, fmt.Errorf("unmarshal metadata %d: %w", i, err)
			}
		}
		if _, err := io.ReadFull(r, vecBuf); err != nil {
			return nil, fmt.Errorf("read embedding %d: %w", i, err)
		}
		vec := bytesToFloat32Slice(vecBuf)
		idx.chunks = append(idx.chunks, models.Chunk{Text: string(text), Metadata: meta})
		idx.embeddings = append(idx.embeddings, vec)
		idx.normalized = append(idx.normalized, normalize(vec))
	}
	return idx, nil
}

func writeBytes(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// maxBlockLen bounds a single length-prefixed block so a corrupt or
// truncated snapshot cannot demand a huge allocation before the read fails.
const maxBlockLen = 64 << 20

func readBytes(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	if n > maxBlockLen {
		return nil, fmt.Errorf("block length %d exceeds limit %d", n, maxBlockLen)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
