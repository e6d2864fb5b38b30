package trace

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ChunkExt is the file extension of chunk files.
const ChunkExt = ".trace"

// DefaultChunkSize is the number of records per chunk file.
const DefaultChunkSize = 1024

// Chunked stores records in a directory of sequentially numbered chunk
// files (000000.trace, 000001.trace, ...), each holding exactly chunkSize
// records except possibly the last.
//
// Only the unflushed tail and one cached chunk are held in memory. Forget
// pulls the last full chunk back into the tail when needed, so trimming a
// long trace touches only its end.
type Chunked struct {
	dir       string
	chunkSize int

	// chunks counts the full chunk files on disk.
	chunks int
	// tail holds records after the full chunks. It may temporarily exceed
	// chunkSize after AppendSafe; Save splits it.
	tail []*Record

	cursor int

	cacheIdx int
	cache    []*Record
}

// NewChunked creates an empty chunked trace rooted at dir.
func NewChunked(dir string, chunkSize int) *Chunked {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Chunked{dir: dir, chunkSize: chunkSize, cacheIdx: -1}
}

// OpenChunked creates a chunked trace and loads it from dir.
func OpenChunked(dir string, chunkSize int) (*Chunked, error) {
	t := NewChunked(dir, chunkSize)
	if err := t.Load(); err != nil {
		return nil, err
	}
	return t, nil
}

// Dir returns the chunk directory.
func (t *Chunked) Dir() string {
	return t.dir
}

// ChunkSize returns the number of records per chunk.
func (t *Chunked) ChunkSize() int {
	return t.chunkSize
}

func chunkName(i int) string {
	return fmt.Sprintf("%06d%s", i, ChunkExt)
}

func (t *Chunked) chunkPath(i int) string {
	return filepath.Join(t.dir, chunkName(i))
}

func (t *Chunked) flushedLen() int {
	return t.chunks * t.chunkSize
}

// Append adds r to the tail, writing the tail out as a new chunk file
// once it holds a full chunk.
func (t *Chunked) Append(r *Record) error {
	t.tail = append(t.tail, r)
	if len(t.tail) < t.chunkSize {
		return nil
	}
	if err := t.writeChunk(t.chunks, t.tail[:t.chunkSize]); err != nil {
		t.tail = t.tail[:len(t.tail)-1]
		return err
	}
	t.chunks++
	t.tail = append([]*Record(nil), t.tail[t.chunkSize:]...)
	return nil
}

// Reserve makes room in the tail for n more records.
func (t *Chunked) Reserve(n int) {
	if cap(t.tail)-len(t.tail) >= n {
		return
	}
	grown := make([]*Record, len(t.tail), len(t.tail)+n)
	copy(grown, t.tail)
	t.tail = grown
}

// AppendSafe adds r into reserved tail capacity, or returns
// ErrNoCapacity. It never writes a chunk.
func (t *Chunked) AppendSafe(r *Record) error {
	if len(t.tail) == cap(t.tail) {
		return ErrNoCapacity
	}
	t.tail = append(t.tail, r)
	return nil
}

// Len counts flushed and tail records.
func (t *Chunked) Len() int {
	return t.flushedLen() + len(t.tail)
}

func (t *Chunked) recordAt(i int) (*Record, error) {
	if i >= t.flushedLen() {
		return t.tail[i-t.flushedLen()], nil
	}
	idx := i / t.chunkSize
	if idx != t.cacheIdx {
		records, err := t.readChunk(idx)
		if err != nil {
			return nil, err
		}
		if len(records) != t.chunkSize {
			return nil, fmt.Errorf("chunk %s holds %d records, want %d", chunkName(idx), len(records), t.chunkSize)
		}
		t.cache = records
		t.cacheIdx = idx
	}
	return t.cache[i%t.chunkSize], nil
}

// Next returns the first record at or after the cursor whose kind is in
// kinds, without moving past it. Flushed records are read through a
// one-chunk cache. Next panics if a flushed chunk can no longer be read:
// the trace is corrupt and cannot be trusted for replay.
func (t *Chunked) Next(kinds Kind) *Record {
	for t.cursor < t.Len() {
		r, err := t.recordAt(t.cursor)
		if err != nil {
			panic(fmt.Sprintf("trace: read %s: %v", t.dir, err))
		}
		if r.Kind&kinds != 0 {
			return r
		}
		t.cursor++
	}
	return nil
}

// Advance moves the cursor past the current record.
func (t *Chunked) Advance() {
	if t.cursor < t.Len() {
		t.cursor++
	}
}

// Rewind moves the cursor back to the first record.
func (t *Chunked) Rewind() {
	t.cursor = 0
}

// Last returns the final record, or nil for an empty trace.
func (t *Chunked) Last() *Record {
	if t.Len() == 0 {
		return nil
	}
	r, err := t.recordAt(t.Len() - 1)
	if err != nil {
		panic(fmt.Sprintf("trace: read %s: %v", t.dir, err))
	}
	return r
}

// Forget drops the final record. When the tail is empty the last chunk
// file is read back into it and removed first.
func (t *Chunked) Forget() {
	if len(t.tail) == 0 {
		if t.chunks == 0 {
			return
		}
		last := t.chunks - 1
		records, err := t.readChunk(last)
		if err != nil {
			panic(fmt.Sprintf("trace: read %s: %v", t.dir, err))
		}
		if err := os.Remove(t.chunkPath(last)); err != nil && !errors.Is(err, os.ErrNotExist) {
			panic(fmt.Sprintf("trace: drop chunk: %v", err))
		}
		t.chunks--
		t.tail = records
		t.invalidate()
	}
	t.tail[len(t.tail)-1] = nil
	t.tail = t.tail[:len(t.tail)-1]
	if t.cursor > t.Len() {
		t.cursor = t.Len()
	}
}

func (t *Chunked) invalidate() {
	t.cacheIdx = -1
	t.cache = nil
}

// Clear drops every record and removes the chunk files.
func (t *Chunked) Clear() error {
	files, err := t.chunkFiles()
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := os.Remove(filepath.Join(t.dir, f)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("clear trace %s: %w", t.dir, err)
		}
	}
	t.chunks = 0
	t.tail = nil
	t.cursor = 0
	t.invalidate()
	return nil
}

// Save flushes the tail. Full chunks are written as separate files and
// the remainder as a final partial chunk; stale chunk files beyond the
// current length are removed.
func (t *Chunked) Save() error {
	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return fmt.Errorf("save trace: %w", err)
	}
	for len(t.tail) >= t.chunkSize {
		if err := t.writeChunk(t.chunks, t.tail[:t.chunkSize]); err != nil {
			return err
		}
		t.chunks++
		t.tail = append([]*Record(nil), t.tail[t.chunkSize:]...)
	}

	next := t.chunks
	if len(t.tail) > 0 {
		if err := t.writeChunk(t.chunks, t.tail); err != nil {
			return err
		}
		next++
	}
	return t.removeFrom(next)
}

func (t *Chunked) removeFrom(first int) error {
	files, err := t.chunkFiles()
	if err != nil {
		return err
	}
	for _, f := range files {
		idx, _ := chunkIndex(f)
		if idx < first {
			continue
		}
		if err := os.Remove(filepath.Join(t.dir, f)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("truncate trace %s: %w", t.dir, err)
		}
	}
	return nil
}

// Load scans the directory. All chunks but the last must be full; a
// partial last chunk becomes the in-memory tail.
func (t *Chunked) Load() error {
	files, err := t.chunkFiles()
	if err != nil {
		return err
	}
	for i, f := range files {
		if idx, _ := chunkIndex(f); idx != i {
			return fmt.Errorf("load trace %s: missing chunk %s", t.dir, chunkName(i))
		}
	}

	t.chunks = len(files)
	t.tail = nil
	t.cursor = 0
	t.invalidate()
	if len(files) == 0 {
		return nil
	}

	last, err := t.readChunk(len(files) - 1)
	if err != nil {
		return err
	}
	if len(last) > t.chunkSize {
		return fmt.Errorf("load trace %s: chunk %s holds %d records, want at most %d",
			t.dir, files[len(files)-1], len(last), t.chunkSize)
	}
	if len(last) < t.chunkSize {
		t.chunks--
		t.tail = last
	}
	return nil
}

func (t *Chunked) chunkFiles() ([]string, error) {
	entries, err := os.ReadDir(t.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := chunkIndex(e.Name()); ok {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func chunkIndex(name string) (int, bool) {
	if !strings.HasSuffix(name, ChunkExt) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(name, ChunkExt))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func (t *Chunked) writeChunk(idx int, records []*Record) error {
	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return fmt.Errorf("write chunk: %w", err)
	}
	f, err := os.Create(t.chunkPath(idx))
	if err != nil {
		return fmt.Errorf("write chunk: %w", err)
	}
	bw := bufio.NewWriter(f)
	for _, r := range records {
		if err := Encode(bw, r); err != nil {
			f.Close()
			return fmt.Errorf("write chunk %s: %w", chunkName(idx), err)
		}
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write chunk %s: %w", chunkName(idx), err)
	}
	if idx == t.cacheIdx {
		t.invalidate()
	}
	return f.Close()
}

func (t *Chunked) readChunk(idx int) ([]*Record, error) {
	f, err := os.Open(t.chunkPath(idx))
	if err != nil {
		return nil, fmt.Errorf("read chunk: %w", err)
	}
	defer f.Close()
	records, err := decodeAll(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("read chunk %s: %w", chunkName(idx), err)
	}
	return records, nil
}
