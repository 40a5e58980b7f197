package supervise

import (
	"bytes"
	"testing"
	"time"
)

func TestTranscriptWriteAndBytes(t *testing.T) {
	tr := NewTranscript()
	tr.Write([]byte("hello "))
	tr.Write([]byte("world"))

	if got := string(tr.Bytes(0)); got != "hello world" {
		t.Errorf("Bytes(0) = %q", got)
	}
	if got := string(tr.Bytes(6)); got != "world" {
		t.Errorf("Bytes(6) = %q", got)
	}
	if got := tr.Bytes(100); got != nil {
		t.Errorf("Bytes past end = %q, want nil", got)
	}
	if tr.Len() != 11 {
		t.Errorf("Len = %d, want 11", tr.Len())
	}
}

func TestWaitForImmediateMatch(t *testing.T) {
	tr := NewTranscript()
	tr.Write([]byte("prompt> READY\n"))

	found, next := tr.WaitFor([]byte("READY"), 0, time.Second)
	if !found {
		t.Fatal("existing data not matched")
	}
	if next != len("prompt> READY") {
		t.Errorf("next offset = %d, want %d", next, len("prompt> READY"))
	}
}

func TestWaitForSeesDataAppendedWhileBlocked(t *testing.T) {
	tr := NewTranscript()
	go func() {
		time.Sleep(100 * time.Millisecond)
		tr.Write([]byte("later: MARKER"))
	}()

	start := time.Now()
	found, _ := tr.WaitFor([]byte("MARKER"), 0, 2*time.Second)
	if !found {
		t.Fatal("appended data not matched")
	}
	if time.Since(start) > time.Second {
		t.Error("match took longer than the write delay")
	}
}

func TestWaitForPatternSplitAcrossWrites(t *testing.T) {
	tr := NewTranscript()
	tr.Write([]byte("REA"))
	go func() {
		time.Sleep(50 * time.Millisecond)
		tr.Write([]byte("DY\n"))
	}()

	if found, _ := tr.WaitFor([]byte("READY"), 0, 2*time.Second); !found {
		t.Error("pattern spanning two writes not matched")
	}
}

func TestWaitForTimeout(t *testing.T) {
	tr := NewTranscript()
	tr.Write([]byte("nothing relevant"))

	start := time.Now()
	found, next := tr.WaitFor([]byte("MISSING"), 0, 200*time.Millisecond)
	if found {
		t.Error("found = true")
	}
	if next != 0 {
		t.Errorf("next = %d, want unchanged offset", next)
	}
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("returned after %s, before the timeout", elapsed)
	}
}

func TestWaitForReturnsOnClose(t *testing.T) {
	tr := NewTranscript()
	go func() {
		time.Sleep(50 * time.Millisecond)
		tr.Close()
	}()

	start := time.Now()
	found, _ := tr.WaitFor([]byte("MISSING"), 0, 10*time.Second)
	if found {
		t.Error("found = true after close")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("WaitFor blocked past Close")
	}
}

func TestWriteAfterCloseDropped(t *testing.T) {
	tr := NewTranscript()
	tr.Write([]byte("kept"))
	tr.Close()
	tr.Write([]byte(" dropped"))

	if !bytes.Equal(tr.Bytes(0), []byte("kept")) {
		t.Errorf("Bytes = %q, want %q", tr.Bytes(0), "kept")
	}
}
