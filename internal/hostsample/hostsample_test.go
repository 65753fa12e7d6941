package hostsample

import (
	"os"
	"testing"
)

func TestTakeCurrentProcess(t *testing.T) {
	s, err := Take(os.Getpid())
	if err != nil {
		t.Fatalf("Take failed: %v", err)
	}
	if s.PID != os.Getpid() {
		t.Fatalf("PID = %d, want %d", s.PID, os.Getpid())
	}
	if s.RSSBytes == 0 {
		t.Fatal("RSSBytes should be nonzero for the running process")
	}
}

func TestTakeUnknownPID(t *testing.T) {
	if _, err := Take(-1); err == nil {
		t.Fatal("Take(-1) should have failed")
	}
}
