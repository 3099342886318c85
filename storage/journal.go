package storage

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	log "github.com/lualive/livepatch/logger"
)

const (
	LogMetaDataLength = 4
	MaxRecordSize     = 8 * 1024 * 1024
)

// Journal is an append-only log of received patches. Each record is stored
// as a little-endian uint32 length followed by the record bytes.
type Journal struct {
	path    string
	closed  bool
	logPos  int64
	logFile *os.File
	pos     []int64
	mu      sync.RWMutex

	t []byte // metadata: reuse this across the lifetime of the journal
}

// OpenJournal opens the journal at path, creating it (and its directory) if
// it does not exist. Existing records are indexed by scanning the file.
func OpenJournal(path string) (*Journal, error) {
	var err error
	j := &Journal{path: path}
	j.t = make([]byte, LogMetaDataLength)
	// create directory if not exist
	if dir := filepath.Dir(path); dir != "" {
		if err = os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	j.logFile, err = os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	if err = j.loadLog(); err != nil {
		j.logFile.Close()
		return nil, err
	}
	return j, nil
}

// loadLog rebuilds the position index from the log file. A record cut short
// by a crash during Append is dropped and the file truncated before it.
func (j *Journal) loadLog() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	fi, err := j.logFile.Stat()
	if err != nil {
		return err
	}
	for {
		l, err := j.logFile.ReadAt(j.t, j.logPos)
		if err == io.EOF && l == 0 {
			break
		}
		if err != nil && err != io.EOF {
			return err
		}
		if l != LogMetaDataLength {
			return j.truncateTail(fi.Size())
		}
		ll := int64(binary.LittleEndian.Uint32(j.t))
		if ll > MaxRecordSize {
			return fmt.Errorf("Read journal %v error: record at %v too large (%v bytes)", j.path, j.logPos, ll)
		}
		if j.logPos+LogMetaDataLength+ll > fi.Size() {
			return j.truncateTail(fi.Size())
		}
		j.pos = append(j.pos, j.logPos)
		j.logPos += LogMetaDataLength + ll
	}
	return nil
}

func (j *Journal) truncateTail(size int64) error {
	log.Warningf("journal %v: dropping %v bytes of torn record at %v", j.path, size-j.logPos, j.logPos)
	return j.logFile.Truncate(j.logPos)
}

// Append writes record and returns its sequence number. Length and record
// go out in a single write.
func (j *Journal) Append(record string) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return 0, fmt.Errorf("Journal closed")
	}
	if len(record) > MaxRecordSize {
		return 0, fmt.Errorf("Record too large: %v bytes", len(record))
	}
	l := int64(len(record))
	b := make([]byte, LogMetaDataLength+l)
	binary.LittleEndian.PutUint32(b, uint32(l))
	copy(b[LogMetaDataLength:], record)
	if _, err := j.logFile.WriteAt(b, j.logPos); err != nil {
		j.logFile.Truncate(j.logPos)
		return 0, err
	}
	seq := int64(len(j.pos))
	j.pos = append(j.pos, j.logPos)
	j.logPos += LogMetaDataLength + l
	return seq, nil
}

func (j *Journal) Read(seq int64) (string, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return "", fmt.Errorf("Journal closed")
	}
	if seq < 0 || seq >= int64(len(j.pos)) {
		return "", fmt.Errorf("Record %v doesn't exist", seq)
	}
	t := make([]byte, LogMetaDataLength)
	pos := j.pos[seq]
	if _, err := j.logFile.ReadAt(t, pos); err != nil {
		return "", err
	}
	b := make([]byte, binary.LittleEndian.Uint32(t))
	if _, err := j.logFile.ReadAt(b, pos+LogMetaDataLength); err != nil && err != io.EOF {
		return "", err
	}
	return string(b), nil
}

// Len returns the number of records in the journal.
func (j *Journal) Len() int64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return int64(len(j.pos))
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return fmt.Errorf("Journal closed")
	}
	j.closed = true
	if err := j.logFile.Sync(); err != nil {
		j.logFile.Close()
		return err
	}
	return j.logFile.Close()
}
