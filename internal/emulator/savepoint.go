package emulator

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/nvandessel/nudge/internal/agent"
	"github.com/nvandessel/nudge/internal/behavior"
	"github.com/nvandessel/nudge/internal/clock"
	"github.com/nvandessel/nudge/internal/models"
)

// SavepointVersion is bumped whenever the savepoint layout changes.
const SavepointVersion = 1

// MaxDecompressedSize is the maximum allowed size of a decompressed savepoint (200MB).
const MaxDecompressedSize = 200 * 1024 * 1024

// SavepointHeader is the plain-text first line of a savepoint file.
type SavepointHeader struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Checksum  string    `json:"checksum"`
	StartDay  int       `json:"start_day"`
	EndDay    int       `json:"end_day"`
	Agent     string    `json:"agent"`
	Records   int       `json:"records"`
}

// Savepoint is the full resumable state of an emulator.
type Savepoint struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`

	Clock    clock.Snapshot     `json:"clock"`
	Phase    Phase              `json:"phase"`
	StartDay int                `json:"start_day"`
	EndDay   int                `json:"end_day"`
	LastSent models.TickKey     `json:"last_sent"`
	Rewards  models.RewardTable `json:"rewards"`

	Records []models.EmulationRecord `json:"records"`
	Round   []models.EmulationRecord `json:"round"`

	Agent    agent.Snapshot    `json:"agent"`
	Behavior behavior.Snapshot `json:"behavior"`
}

// WriteSavepoint writes sp as a header line followed by the gzip-compressed
// JSON payload. The header carries the payload's SHA-256.
func WriteSavepoint(path string, sp *Savepoint) error {
	payload, err := json.Marshal(sp)
	if err != nil {
		return fmt.Errorf("marshaling savepoint: %w", err)
	}

	var compressed bytes.Buffer
	gzw, err := gzip.NewWriterLevel(&compressed, gzip.DefaultCompression)
	if err != nil {
		return fmt.Errorf("creating gzip writer: %w", err)
	}
	if _, err := gzw.Write(payload); err != nil {
		return fmt.Errorf("compressing savepoint: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return fmt.Errorf("closing gzip writer: %w", err)
	}

	hash := sha256.Sum256(compressed.Bytes())
	header := SavepointHeader{
		Version:   sp.Version,
		CreatedAt: sp.CreatedAt,
		Checksum:  "sha256:" + hex.EncodeToString(hash[:]),
		StartDay:  sp.StartDay,
		EndDay:    sp.EndDay,
		Agent:     string(sp.Agent.Kind),
		Records:   len(sp.Records),
	}
	headerBytes, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("marshaling header: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating savepoint: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(headerBytes, '\n')); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := f.Write(compressed.Bytes()); err != nil {
		return fmt.Errorf("writing savepoint payload: %w", err)
	}
	return f.Sync()
}

func readHeader(r *bufio.Reader) (*SavepointHeader, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("reading header line: %w", err)
	}
	var header SavepointHeader
	if err := json.Unmarshal(bytes.TrimSpace(line), &header); err != nil {
		return nil, fmt.Errorf("parsing header: %w", err)
	}
	if header.Version != SavepointVersion {
		return nil, fmt.Errorf("unsupported savepoint version %d", header.Version)
	}
	return &header, nil
}

// ReadSavepointHeader reads only the header line.
func ReadSavepointHeader(path string) (*SavepointHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening savepoint: %w", err)
	}
	defer f.Close()
	return readHeader(bufio.NewReader(f))
}

// ReadSavepoint reads a savepoint, verifying its checksum.
func ReadSavepoint(path string) (*Savepoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening savepoint: %w", err)
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	header, err := readHeader(reader)
	if err != nil {
		return nil, err
	}

	compressed, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading savepoint payload: %w", err)
	}
	hash := sha256.Sum256(compressed)
	if actual := "sha256:" + hex.EncodeToString(hash[:]); actual != header.Checksum {
		return nil, fmt.Errorf("checksum mismatch: expected %s, got %s", header.Checksum, actual)
	}

	gzr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gzr.Close()

	decompressed, err := io.ReadAll(io.LimitReader(gzr, MaxDecompressedSize+1))
	if err != nil {
		return nil, fmt.Errorf("decompressing savepoint: %w", err)
	}
	if int64(len(decompressed)) > MaxDecompressedSize {
		return nil, fmt.Errorf("decompressed savepoint exceeds maximum size of %d bytes", MaxDecompressedSize)
	}

	var sp Savepoint
	if err := json.Unmarshal(decompressed, &sp); err != nil {
		return nil, fmt.Errorf("parsing savepoint: %w", err)
	}
	if sp.Version != header.Version || sp.StartDay != header.StartDay || sp.EndDay != header.EndDay {
		return nil, fmt.Errorf("savepoint payload does not match its header")
	}
	return &sp, nil
}
