// Package channel opens raw per-channel sensor dumps and serves byte ranges
// from them.
package channel

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// IOError reports a failure to open, stat or read a channel file.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Source is an open channel file. Its length is fixed at open time.
type Source struct {
	path string
	f    *os.File
	size int64
}

// Open opens path for ranged reads. Missing, unreadable or non-regular
// files yield an *IOError.
func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &IOError{Op: "open", Path: path, Err: err}
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, &IOError{Op: "stat", Path: path, Err: err}
	}
	if !fi.Mode().IsRegular() {
		f.Close()
		return nil, &IOError{Op: "open", Path: path, Err: errors.New("not a regular file")}
	}
	return &Source{path: path, f: f, size: fi.Size()}, nil
}

// Path returns the file path the source was opened from.
func (s *Source) Path() string { return s.path }

// Len returns the total byte count.
func (s *Source) Len() int64 { return s.size }

// ReadRange fills p with the bytes at [off, off+len(p)). Requests that run
// past Len fail with an *IOError wrapping io.ErrUnexpectedEOF.
func (s *Source) ReadRange(off int64, p []byte) error {
	if off < 0 || off+int64(len(p)) > s.size {
		return &IOError{Op: "read", Path: s.path, Err: io.ErrUnexpectedEOF}
	}
	n, err := s.f.ReadAt(p, off)
	if n == len(p) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return &IOError{Op: "read", Path: s.path, Err: err}
}

// Close releases the file handle. It is safe to call more than once.
func (s *Source) Close() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

// Triple is the R, G, B sources of one capture side, indexed by channel.
type Triple [3]*Source

// OpenTriple opens three channel files. If any open fails the sources
// already opened are closed before returning.
func OpenTriple(paths [3]string) (Triple, error) {
	var t Triple
	for i, p := range paths {
		s, err := Open(p)
		if err != nil {
			t.Close()
			return Triple{}, err
		}
		t[i] = s
	}
	return t, nil
}

// Close closes every non-nil source and returns the first error.
func (t Triple) Close() error {
	var first error
	for _, s := range t {
		if s == nil {
			continue
		}
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
