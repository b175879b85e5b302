package source

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/gobwas/glob"

	"github.com/codewithboateng/confcheck/internal/ir"
)

// ErrTooLarge is wrapped when a file exceeds Filter.MaxBytes.
var ErrTooLarge = errors.New("file exceeds size limit")

var skipDirs = map[string]bool{".git": true, ".hg": true, ".svn": true, "node_modules": true}

// Filter selects files found while walking directories. Files named
// explicitly on the command line bypass Include/Exclude.
type Filter struct {
	Include  []string // globs; empty = everything
	Exclude  []string // globs
	MaxBytes int64    // 0 = unlimited
}

type compiledFilter struct {
	include, exclude []glob.Glob
	maxBytes         int64
}

func compileGlobs(pats []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(pats))
	for _, p := range pats {
		g, err := glob.Compile(strings.TrimPrefix(p, "./"), '/')
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

func globHit(gs []glob.Glob, p string) bool {
	base := path.Base(p)
	for _, g := range gs {
		if g.Match(p) || g.Match(base) {
			return true
		}
	}
	return false
}

// Read expands paths into sources. A directory is walked recursively; a
// file is read as is. Read failures are returned per file and never stop
// the others. Sources come back sorted by path.
func Read(paths []string, f Filter) ([]ir.Source, []*ir.FileError, error) {
	inc, err := compileGlobs(f.Include)
	if err != nil {
		return nil, nil, err
	}
	exc, err := compileGlobs(f.Exclude)
	if err != nil {
		return nil, nil, err
	}
	cf := compiledFilter{include: inc, exclude: exc, maxBytes: f.MaxBytes}

	var (
		srcs []ir.Source
		errs []*ir.FileError
		seen = map[string]bool{}
	)
	add := func(p string, walked bool) {
		key := Normalize(p)
		if seen[key] {
			return
		}
		seen[key] = true
		src, skip, err := readFile(p, key, cf, walked)
		switch {
		case err != nil:
			errs = append(errs, &ir.FileError{Path: key, Err: err})
		case skip:
			slog.Debug("skipped file", "path", key)
		default:
			srcs = append(srcs, src)
		}
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			errs = append(errs, &ir.FileError{Path: Normalize(root), Err: err})
			continue
		}
		if !info.IsDir() {
			add(root, false)
			continue
		}
		werr := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				errs = append(errs, &ir.FileError{Path: Normalize(p), Err: err})
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				if p != root && skipDirs[d.Name()] {
					return fs.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			add(p, true)
			return nil
		})
		if werr != nil {
			errs = append(errs, &ir.FileError{Path: Normalize(root), Err: werr})
		}
	}
	sort.Slice(srcs, func(i, j int) bool { return srcs[i].Path < srcs[j].Path })
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Path < errs[j].Path })
	return srcs, errs, nil
}

func readFile(p, key string, cf compiledFilter, walked bool) (ir.Source, bool, error) {
	if walked {
		if len(cf.include) > 0 && !globHit(cf.include, key) {
			return ir.Source{}, true, nil
		}
		if globHit(cf.exclude, key) {
			return ir.Source{}, true, nil
		}
	}
	if cf.maxBytes > 0 {
		info, err := os.Stat(p)
		if err != nil {
			return ir.Source{}, false, err
		}
		if info.Size() > cf.maxBytes {
			return ir.Source{}, false, fmt.Errorf("%w (%d > %d bytes)", ErrTooLarge, info.Size(), cf.maxBytes)
		}
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return ir.Source{}, false, err
	}
	// binary files found by walking are skipped; named ones are checked as text
	if walked && looksBinary(b) {
		return ir.Source{}, true, nil
	}
	return ir.Source{Path: key, Text: string(b)}, false, nil
}

func looksBinary(b []byte) bool {
	head := b
	if len(head) > 8000 {
		head = head[:8000]
	}
	return bytes.IndexByte(head, 0) >= 0 || !utf8.Valid(trimPartialRune(head))
}

func trimPartialRune(b []byte) []byte {
	for i := 0; i < utf8.UTFMax && len(b) > 0; i++ {
		if utf8.Valid(b) {
			return b
		}
		b = b[:len(b)-1]
	}
	return b
}

// Normalize returns the slash-separated, cleaned form used in findings.
func Normalize(p string) string {
	return filepath.ToSlash(filepath.Clean(p))
}
