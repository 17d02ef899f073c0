// Package serialize writes imported content objects to disk.
//
// Two formats are supported: indented JSON (".json") and Go's gob encoding
// (".bin"). Files are written atomically: content goes to a temp file in the
// destination directory, which is then renamed over the target.
package serialize

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrUnknownFormat    = errors.New("unknown format")
	ErrMissingDirectory = errors.New("missing directory")
	ErrEmptyPath        = errors.New("output path is empty")
	ErrEmptyFileName    = errors.New("output file name is empty")
	ErrInvalidFileName  = errors.New("invalid output file name")
	ErrOutsideRoot      = errors.New("output path outside allowed directory")
)

// relativeNotation marks paths resolved against the base directory.
const relativeNotation = ".."

// Format is an output encoding.
type Format string

const (
	FormatJSON   Format = "json"
	FormatBinary Format = "binary"
)

// ParseFormat accepts "json" or "binary" in any case.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatBinary:
		return FormatBinary, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Extension returns the file extension including the dot.
func (f Format) Extension() string {
	if f == FormatBinary {
		return ".bin"
	}
	return ".json"
}

// Encode writes content to w in format f.
func Encode(w io.Writer, content any, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(content)
	case FormatBinary:
		return gob.NewEncoder(w).Encode(content)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
	}
}

// Options says where and how to write.
type Options struct {
	BaseDir  string // anchor for paths starting with ".."
	Path     string // output directory
	FileName string // without extension; a bare name, never a path
	Format   Format

	// Root, when set, confines the resolved directory to Root or below it.
	Root string
}

// ResolvePath returns the destination file for opts. The directory must
// already exist.
func ResolvePath(opts Options) (string, error) {
	if strings.TrimSpace(opts.Path) == "" {
		return "", ErrEmptyPath
	}
	if strings.TrimSpace(opts.FileName) == "" {
		return "", ErrEmptyFileName
	}
	if err := checkFileName(opts.FileName); err != nil {
		return "", err
	}
	if _, err := ParseFormat(string(opts.Format)); err != nil {
		return "", err
	}

	dir := opts.Path
	if strings.HasPrefix(dir, relativeNotation) {
		base := opts.BaseDir
		if base == "" {
			base = "."
		}
		dir = filepath.Join(base, dir)
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", opts.Path, err)
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w '%s'", ErrMissingDirectory, dir)
	}

	if opts.Root != "" {
		if err := checkWithin(opts.Root, dir); err != nil {
			return "", err
		}
	}

	return filepath.Join(dir, opts.FileName+opts.Format.Extension()), nil
}

// checkFileName rejects names that would leave the output directory.
func checkFileName(name string) error {
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return fmt.Errorf("%w: %q", ErrInvalidFileName, name)
	}
	return nil
}

// checkWithin reports ErrOutsideRoot unless dir is root or lies below it.
// Symlinks are resolved on both sides first.
func checkWithin(root, dir string) error {
	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", root, err)
	}
	if r, err := filepath.EvalSymlinks(root); err == nil {
		root = r
	}
	if d, err := filepath.EvalSymlinks(dir); err == nil {
		dir = d
	}

	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%w: %s", ErrOutsideRoot, dir)
	}
	return nil
}

// WriteFile encodes content to the path resolved from opts and returns the
// path and the number of bytes written.
func WriteFile(content any, opts Options) (string, int64, error) {
	dest, err := ResolvePath(opts)
	if err != nil {
		return "", 0, err
	}

	n, err := writeAtomic(dest, func(w io.Writer) error {
		return Encode(w, content, opts.Format)
	})
	if err != nil {
		return "", 0, fmt.Errorf("write %s: %w", dest, err)
	}
	return dest, n, nil
}

func writeAtomic(dest string, encode func(io.Writer) error) (int64, error) {
	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return 0, err
	}
	tmpPath := tmp.Name()

	fail := func(err error) (int64, error) {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return 0, err
	}

	cw := &countingWriter{w: tmp}
	bw := bufio.NewWriter(cw)
	if err := encode(bw); err != nil {
		return fail(err)
	}
	if err := bw.Flush(); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return 0, err
	}
	_ = os.Chmod(tmpPath, 0o644)

	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return 0, err
	}
	return cw.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
