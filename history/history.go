// Package history keeps the version history of every file sent to the
// listener. The history of foo.lua lives next to it in foo.lua_versions.json
// as a JSON array, oldest first. Entries are not validated: anything already
// in the array is kept as is.
package history

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"

	log "github.com/lualive/livepatch/logger"
)

const Suffix = "_versions.json"

// Path returns the history file that belongs to filename.
func Path(filename string) string {
	return filename + Suffix
}

// decode treats anything that is not a JSON array as an empty history.
func decode(b []byte) []json.RawMessage {
	var entries []json.RawMessage
	if err := json.Unmarshal(b, &entries); err != nil {
		log.Debugf("discarding unreadable history (%d bytes): %v", len(b), err)
		return []json.RawMessage{}
	}
	if entries == nil {
		return []json.RawMessage{}
	}
	return entries
}

func encodeString(s string) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Save appends contents to the history of filename, creating the history
// file if needed. The whole array is rewritten on every call and there is no
// locking between processes.
func Save(filename, contents string) error {
	p := Path(filename)
	f, err := os.OpenFile(p, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("open history %v: %w", p, err)
	}
	defer f.Close()

	b, err := ioutil.ReadAll(f)
	if err != nil {
		return fmt.Errorf("read history %v: %w", p, err)
	}
	entry, err := encodeString(contents)
	if err != nil {
		return fmt.Errorf("encode version: %w", err)
	}
	versions := append(decode(b), entry)

	if err = f.Truncate(0); err != nil {
		return fmt.Errorf("truncate history %v: %w", p, err)
	}
	if _, err = f.Seek(0, 0); err != nil {
		return fmt.Errorf("rewind history %v: %w", p, err)
	}
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	if err = enc.Encode(versions); err != nil {
		return fmt.Errorf("write history %v: %w", p, err)
	}
	log.Debugf("%v: recorded version %d", p, len(versions))
	return f.Close()
}

// Load returns the recorded versions of filename. A missing or unreadable
// history is empty. Entries that are not strings are returned as their JSON
// text.
func Load(filename string) ([]string, error) {
	b, err := ioutil.ReadFile(Path(filename))
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	entries := decode(b)
	versions := make([]string, len(entries))
	for i, e := range entries {
		if len(e) == 0 || e[0] != '"' || json.Unmarshal(e, &versions[i]) != nil {
			versions[i] = string(e)
		}
	}
	return versions, nil
}
