package sources

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

var (
	ErrNoMatches         = errors.New("no files matched")
	ErrDuplicateFilename = errors.New("duplicate filename")
)

// Collect expands paths, glob patterns and directories into a list of regular files.
// Directories are walked recursively and filtered by their .dropignore. The result keeps
// argument order, drops repeats, and rejects two files with the same base name since a
// transfer addresses files by name.
func Collect(args []string) ([]string, error) {
	var (
		files = make([]string, 0, len(args))
		seen  = make(map[string]struct{})
		names = make(map[string]string)
	)

	add := func(path string) error {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		if _, ok := seen[abs]; ok {
			return nil
		}
		name := filepath.Base(abs)
		if prev, ok := names[name]; ok {
			return fmt.Errorf("%w %q: %s and %s", ErrDuplicateFilename, name, prev, abs)
		}
		seen[abs] = struct{}{}
		names[name] = abs
		files = append(files, abs)
		return nil
	}

	for _, arg := range args {
		matches, err := expand(arg)
		if err != nil {
			return nil, err
		}

		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil {
				return nil, err
			}

			if !info.IsDir() {
				if err := add(match); err != nil {
					return nil, err
				}
				continue
			}

			walked, err := walkDir(match)
			if err != nil {
				return nil, err
			}
			for _, path := range walked {
				if err := add(path); err != nil {
					return nil, err
				}
			}
		}
	}

	if len(files) == 0 {
		return nil, ErrNoMatches
	}
	return files, nil
}

func expand(arg string) ([]string, error) {
	if !isGlob(arg) {
		return []string{arg}, nil
	}

	matches, err := doublestar.FilepathGlob(arg)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", arg, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoMatches, arg)
	}
	return matches, nil
}

func walkDir(root string) ([]string, error) {
	ignore := NewIgnoreList(root)
	ignore.Load()

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if ignore.ShouldIgnore(rel) || ignore.ShouldIgnore(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if ignore.ShouldIgnore(rel) {
			return nil
		}

		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return files, nil
}

func isGlob(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}
