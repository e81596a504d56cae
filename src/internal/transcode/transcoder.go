// Package transcode runs external encoder processes with bounded concurrency
// and serves their output as readable streams, teeing complete streams into
// an on-disk cache.
package transcode

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/pkg/errors"
	l "github.com/sirupsen/logrus"
)

var log *l.Entry = l.WithFields(l.Fields{"srv": "transcode"})

// ErrTranscoderUnavailable indicates that the encoder process could not be
// spawned
var ErrTranscoderUnavailable = errors.New("transcoder unavailable")

// Transcoder spawns encoder child processes. The number of concurrently
// running encoders is bounded by a semaphore
type Transcoder struct {
	ffmpegPath   string
	cacheDir     string // "" disables the cache
	cacheEnabled bool
	sema         chan struct{}
}

// New creates a transcoder running at most maxConcurrent encoder processes.
// cacheDir may be empty, which disables the transcoding cache regardless of
// cacheEnabled
func New(ffmpegPath, cacheDir string, cacheEnabled bool, maxConcurrent int) (*Transcoder, error) {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if cacheDir != "" {
		if err := os.MkdirAll(cacheDir, 0755); err != nil {
			return nil, errors.Wrapf(err, "cannot create transcoding cache directory '%s'", cacheDir)
		}
	}
	return &Transcoder{
		ffmpegPath:   ffmpegPath,
		cacheDir:     cacheDir,
		cacheEnabled: cacheEnabled && cacheDir != "",
		sema:         make(chan struct{}, maxConcurrent),
	}, nil
}

// Transcode returns a stream of the encoded audio. A cached result is served
// directly from disk without spawning an encoder; otherwise the encoder runs
// as a child process and its output is teed into the cache. The caller must
// close the returned stream; Close is idempotent and releases the encoder
// slot exactly once
func (me *Transcoder) Transcode(ctx context.Context, req Request) (io.ReadCloser, error) {
	cacheable := me.cacheEnabled && req.TimeOffset == 0 && req.SegmentDuration == 0

	var cachePath string
	if cacheable {
		cachePath = filepath.Join(me.cacheDir, CacheKey(req.SourcePath, req.Format, req.MaxBitrate))
		if f, err := os.Open(cachePath); err == nil {
			log.Debugf("serving '%s' from transcoding cache", req.SourcePath)
			return f, nil
		}
	}

	// admission control
	select {
	case me.sema <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	cmd := exec.Command(me.ffmpegPath, req.args()...)
	// own process group so that the whole encoder tree can be killed
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		<-me.sema
		return nil, errors.Wrapf(ErrTranscoderUnavailable, "cannot pipe encoder output: %v", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		<-me.sema
		return nil, errors.Wrapf(ErrTranscoderUnavailable, "cannot pipe encoder errors: %v", err)
	}

	if err := cmd.Start(); err != nil {
		<-me.sema
		return nil, errors.Wrapf(ErrTranscoderUnavailable, "cannot start encoder: %v", err)
	}

	// drain stderr to prevent backpressure
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			log.Debugf("encoder: %s", scanner.Text())
		}
	}()

	s := &stream{
		reader:  newCachingReader(stdout, cachePath),
		cmd:     cmd,
		release: func() { <-me.sema },
		done:    make(chan struct{}),
	}

	// cancellation kills the encoder and cleans up the temp file
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()

	return s, nil
}

// stream owns the encoder child process, the semaphore slot and the cache
// temp file of one transcoding job
type stream struct {
	reader  *cachingReader
	cmd     *exec.Cmd
	release func()
	once    sync.Once
	done    chan struct{}
}

func (me *stream) Read(p []byte) (int, error) {
	return me.reader.Read(p)
}

// Close finishes or discards the cache file, kills the encoder process group
// if it is still running and releases the encoder slot. It is idempotent
func (me *stream) Close() error {
	me.once.Do(func() {
		me.reader.finish()

		if me.cmd.Process != nil {
			_ = syscall.Kill(-me.cmd.Process.Pid, syscall.SIGKILL)
		}
		_ = me.cmd.Wait()

		close(me.done)
		me.release()
	})
	return nil
}

// cachingReader tees every successfully read chunk into <final>.tmp. When the
// stream was read to its end, finish promotes the temp file to its final
// path; an incomplete or failed stream leaves no cache file behind. Tee
// errors silently stop caching without failing the read.
//
// finish may run concurrently with a blocked Read (cancellation while the
// client waits for encoder bytes), so tmp and complete are guarded
type cachingReader struct {
	src       io.Reader
	tmpPath   string
	finalPath string

	mu       sync.Mutex
	tmp      *os.File
	complete bool
}

// newCachingReader wraps src. finalPath == "" disables caching
func newCachingReader(src io.Reader, finalPath string) *cachingReader {
	me := &cachingReader{src: src, finalPath: finalPath}
	if finalPath != "" {
		me.tmpPath = finalPath + ".tmp"
		tmp, err := os.Create(me.tmpPath)
		if err != nil {
			log.Debugf("cannot create cache temp file '%s': %v", me.tmpPath, err)
		} else {
			me.tmp = tmp
		}
	}
	return me
}

func (me *cachingReader) Read(p []byte) (n int, err error) {
	// the source read happens outside the lock so that finish never has to
	// wait for a blocked pipe
	n, err = me.src.Read(p)

	me.mu.Lock()
	defer me.mu.Unlock()
	if n > 0 && me.tmp != nil {
		if _, werr := me.tmp.Write(p[:n]); werr != nil {
			log.Debugf("cannot write cache temp file '%s': %v", me.tmpPath, werr)
			_ = me.tmp.Close()
			me.tmp = nil
			_ = os.Remove(me.tmpPath)
		}
	}
	if err == io.EOF {
		me.complete = true
	}
	return
}

// finish promotes the temp file if the stream is complete, otherwise deletes
// it. Safe to call multiple times and concurrently with Read
func (me *cachingReader) finish() {
	me.mu.Lock()
	defer me.mu.Unlock()
	if me.tmp == nil {
		return
	}
	_ = me.tmp.Close()
	me.tmp = nil

	if me.complete {
		if err := os.Rename(me.tmpPath, me.finalPath); err == nil {
			return
		}
	}
	_ = os.Remove(me.tmpPath)
}
