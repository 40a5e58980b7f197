package supervise

import (
	"bytes"
	"sync"
	"time"
)

// Transcript is the append-only record of a supervised process's
// output. Offsets are monotonic for the session's lifetime; readers
// scan from an offset and block for more data, re-checking the tail
// before every wait so appends between a scan and the block are never
// missed.
//
// All methods are safe for concurrent use.
type Transcript struct {
	mutex   sync.Mutex
	data    []byte
	updated chan struct{} // closed and replaced on every append
	closed  bool
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{updated: make(chan struct{})}
}

// Write appends bytes to the transcript. Implements io.Writer so the
// output-mirroring copy can target it directly.
func (t *Transcript) Write(p []byte) (int, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.closed {
		return len(p), nil
	}
	t.data = append(t.data, p...)
	t.broadcast()
	return len(p), nil
}

// Close marks the transcript complete (the process exited). Blocked
// readers wake and observe the final contents.
func (t *Transcript) Close() {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if !t.closed {
		t.closed = true
		t.broadcast()
	}
}

// broadcast wakes all waiting readers. Caller holds the mutex.
func (t *Transcript) broadcast() {
	close(t.updated)
	t.updated = make(chan struct{})
}

// Len returns the total number of bytes appended so far.
func (t *Transcript) Len() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return len(t.data)
}

// Bytes returns a copy of the transcript contents from offset onward.
func (t *Transcript) Bytes(offset int) []byte {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if offset >= len(t.data) {
		return nil
	}
	out := make([]byte, len(t.data)-offset)
	copy(out, t.data[offset:])
	return out
}

// WaitFor blocks until pattern appears in the transcript at or after
// offset, the transcript closes with no match, or the timeout elapses.
// On a match it returns true and the offset just past the match end;
// otherwise false and the original offset. Timeout is an expected
// outcome, not an error.
func (t *Transcript) WaitFor(pattern []byte, offset int, timeout time.Duration) (bool, int) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		t.mutex.Lock()
		if idx := bytes.Index(t.data[min(offset, len(t.data)):], pattern); idx != -1 {
			end := min(offset, len(t.data)) + idx + len(pattern)
			t.mutex.Unlock()
			return true, end
		}
		if t.closed {
			t.mutex.Unlock()
			return false, offset
		}
		updated := t.updated
		t.mutex.Unlock()

		select {
		case <-updated:
		case <-deadline.C:
			return false, offset
		}
	}
}
