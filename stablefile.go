package main

import (
	"bytes"
	"encoding/json"
	"os"
	"time"
)

// StableReader reads files that are rewritten in place by external processes
// with no locking contract. A file is accepted only if two reads separated by
// the debounce interval observe the same modification time and the same
// content; anything else counts as a torn write and is discarded.
type StableReader struct {
	Debounce time.Duration
	sleep    func(time.Duration)
}

func NewStableReader(debounce time.Duration) *StableReader {
	return &StableReader{
		Debounce: debounce,
		sleep:    time.Sleep,
	}
}

func statRead(path string) ([]byte, time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, time.Time{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, time.Time{}, err
	}
	return data, info.ModTime(), nil
}

// Read returns the file content and whether it was stable across both reads.
func (r *StableReader) Read(path string) ([]byte, bool) {
	first, mtime1, err := statRead(path)
	if err != nil {
		return nil, false
	}

	r.sleep(r.Debounce)

	second, mtime2, err := statRead(path)
	if err != nil {
		return nil, false
	}
	if !mtime1.Equal(mtime2) || !bytes.Equal(first, second) {
		return nil, false
	}
	return second, true
}

// ReadJSON is Read plus a parse; a file whose stable content does not
// unmarshal into v is rejected the same way a torn write is.
func (r *StableReader) ReadJSON(path string, v interface{}) bool {
	data, ok := r.Read(path)
	if !ok {
		return false
	}
	return json.Unmarshal(data, v) == nil
}
