package transcode

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestCachingReaderPromotesCompleteStream(t *testing.T) {
	final := filepath.Join(t.TempDir(), "out.mp3")
	payload := []byte("encoded audio bytes")

	r := newCachingReader(bytes.NewReader(payload), final)
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("read bytes differ from the source")
	}
	r.finish()

	cached, err := os.ReadFile(final)
	if err != nil {
		t.Fatalf("cache file missing: %v", err)
	}
	if !bytes.Equal(cached, payload) {
		t.Error("cached bytes differ from the source")
	}
	if _, err := os.Stat(final + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
}

func TestCachingReaderDiscardsIncompleteStream(t *testing.T) {
	final := filepath.Join(t.TempDir(), "out.mp3")
	payload := []byte("encoded audio bytes")

	r := newCachingReader(bytes.NewReader(payload), final)
	// read only part of the stream, then close (client disconnect)
	buf := make([]byte, 4)
	if _, err := r.Read(buf); err != nil {
		t.Fatal(err)
	}
	r.finish()

	if _, err := os.Stat(final); !os.IsNotExist(err) {
		t.Error("incomplete stream was promoted to the cache")
	}
	if _, err := os.Stat(final + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
}

func TestCachingReaderWithoutCache(t *testing.T) {
	payload := []byte("bytes")
	r := newCachingReader(bytes.NewReader(payload), "")
	got, err := io.ReadAll(r)
	if err != nil || !bytes.Equal(got, payload) {
		t.Errorf("read = %q, %v", got, err)
	}
	r.finish() // must be a no-op
}

func TestCachingReaderFinishDuringRead(t *testing.T) {
	final := filepath.Join(t.TempDir(), "out.mp3")
	pr, pw := io.Pipe()
	r := newCachingReader(pr, final)

	// a reader blocked on the encoder pipe, like a client waiting for bytes
	read := make(chan error, 1)
	go func() {
		buf := make([]byte, 32)
		_, err := r.Read(buf)
		read <- err
	}()

	// client disconnect: finish runs while the read is still in flight
	r.finish()

	if _, err := pw.Write([]byte("late encoder bytes")); err != nil {
		t.Fatal(err)
	}
	if err := pw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := <-read; err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if _, err := io.ReadAll(r); err != nil {
		t.Fatal(err)
	}
	r.finish()

	if _, err := os.Stat(final); !os.IsNotExist(err) {
		t.Error("cancelled stream left a cache file")
	}
	if _, err := os.Stat(final + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
}

func TestCachingReaderFinishIdempotent(t *testing.T) {
	final := filepath.Join(t.TempDir(), "out.mp3")
	r := newCachingReader(bytes.NewReader([]byte("x")), final)
	if _, err := io.ReadAll(r); err != nil {
		t.Fatal(err)
	}
	r.finish()
	r.finish()
	if _, err := os.Stat(final); err != nil {
		t.Errorf("cache file missing after double finish: %v", err)
	}
}
