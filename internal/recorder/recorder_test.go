package recorder

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBeginAppendEndWritesFile(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, 16000, nil)

	r.BeginSegment()
	if !r.IsRecording() {
		t.Fatal("expected IsRecording true after BeginSegment")
	}
	r.AppendFrame([]int16{1, 2, 3})
	r.AppendFrame([]int16{4, 5})
	r.EndSegment()

	if r.IsRecording() {
		t.Fatal("expected IsRecording false after EndSegment")
	}
	if r.SegmentsSaved() != 1 {
		t.Fatalf("expected 1 segment saved, got %d", r.SegmentsSaved())
	}
	path := r.LastSegmentPath()
	if path == "" {
		t.Fatal("expected non-empty last segment path")
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("expected segment in %s, got %s", dir, path)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected file to exist: %v", err)
	}
	if info.Size() != 44+5*2 {
		t.Fatalf("expected %d bytes, got %d", 44+5*2, info.Size())
	}
}

func TestAppendFrameCopiesData(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, 16000, nil)
	r.BeginSegment()

	frame := []int16{10, 20, 30}
	r.AppendFrame(frame)
	frame[0] = 999 // mutate caller's backing array after appending

	r.EndSegment()
	data, err := os.ReadFile(r.LastSegmentPath())
	if err != nil {
		t.Fatal(err)
	}
	firstSample := int16(uint16(data[44]) | uint16(data[45])<<8)
	if firstSample != 10 {
		t.Fatalf("expected recorder to have copied the frame, got %d", firstSample)
	}
}

func TestEndSegmentNoopWhenNotRecording(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, 16000, nil)
	r.EndSegment()
	if r.SegmentsSaved() != 0 {
		t.Fatalf("expected 0 segments, got %d", r.SegmentsSaved())
	}
}

func TestBeginSegmentNoopIfAlreadyRecording(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, 16000, nil)
	r.BeginSegment()
	r.AppendFrame([]int16{1, 2, 3})
	r.BeginSegment() // should not clear the buffer
	r.EndSegment()

	data, err := os.ReadFile(r.LastSegmentPath())
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 44+3*2 {
		t.Fatalf("expected buffer preserved across redundant BeginSegment, got %d bytes", len(data))
	}
}

func TestSegmentIndexIncrements(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, 16000, nil)

	for i := 0; i < 3; i++ {
		r.BeginSegment()
		r.AppendFrame([]int16{1})
		r.EndSegment()
	}
	if r.SegmentsSaved() != 3 {
		t.Fatalf("expected 3 segments, got %d", r.SegmentsSaved())
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 files in outDir, got %d", len(entries))
	}
}
