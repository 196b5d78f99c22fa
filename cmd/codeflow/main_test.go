package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultSessionName(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	name := defaultSessionName()
	if !strings.HasPrefix(name, filepath.Base(wd)+"_") {
		t.Fatalf("session name %q should start with the directory name", name)
	}
	// The suffix is a timestamp, usable as a filename.
	if strings.ContainsAny(name, "/:") {
		t.Fatalf("session name %q is not filesystem-safe", name)
	}
}
