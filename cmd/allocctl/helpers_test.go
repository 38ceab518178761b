package main

import (
	"bytes"
	"os"
	"testing"
)

// captureOutput captures stdout while running a function
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	origStdout := os.Stdout

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdout = w

	// Drain concurrently so large reports cannot fill the pipe buffer.
	done := make(chan struct{})
	var buf bytes.Buffer
	go func() {
		_, _ = buf.ReadFrom(r)
		close(done)
	}()

	fnErr := fn()

	w.Close()
	os.Stdout = origStdout
	<-done
	r.Close()

	return buf.String(), fnErr
}

// resetFlags restores global flags to their defaults.
func resetFlags(t *testing.T) {
	t.Helper()
	verbose, quiet, jsonOut, debug = false, false, false, false

	churnFrames, churnSpawn = 120, 32
	churnSlots, churnSlotSize = 64, 96
	churnStackSize, churnBuddySize = "64KiB", "1MiB"
	churnSeed, churnMapped, churnRecords = 1, false, false

	benchCount, benchSize, benchRounds = 10000, 64, 10
	benchKinds = []string{"pool", "stack", "buddy"}
	benchMapped = false
}
