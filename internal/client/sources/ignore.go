package sources

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/openmined/syftdrop/internal/utils"
	gitignore "github.com/sabhiram/go-gitignore"
)

const IgnoreFile = ".dropignore"

var defaultIgnoreLines = []string{
	IgnoreFile,
	// VCS
	".git",
	".hg",
	".svn",
	// OS-specific
	".DS_Store",
	"Thumbs.db",
	"desktop.ini",
	// partial downloads and editor leftovers
	"*.tmp",
	"*.swp",
	"*.crdownload",
	"*.part",
}

// IgnoreList filters files under a directory using the default rules plus the directory's .dropignore
type IgnoreList struct {
	baseDir string
	ignore  *gitignore.GitIgnore
}

func NewIgnoreList(baseDir string) *IgnoreList {
	return &IgnoreList{baseDir: baseDir}
}

func (s *IgnoreList) Load() {
	ignorePath := filepath.Join(s.baseDir, IgnoreFile)
	ignoreLines := append([]string(nil), defaultIgnoreLines...)

	if utils.FileExists(ignorePath) {
		ignoreLines = append(ignoreLines, readIgnoreLines(ignorePath)...)
	}

	s.ignore = gitignore.CompileIgnoreLines(ignoreLines...)
}

// ShouldIgnore matches a path relative to the base directory
func (s *IgnoreList) ShouldIgnore(relPath string) bool {
	if s.ignore == nil {
		s.Load()
	}
	return s.ignore.MatchesPath(filepath.ToSlash(relPath))
}

func readIgnoreLines(path string) []string {
	file, err := os.Open(path)
	if err != nil {
		slog.Warn("open ignore file", "path", path, "error", err)
		return nil
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		slog.Warn("read ignore file", "path", path, "error", err)
	} else {
		slog.Debug("loaded ignore file", "path", path, "rules", len(lines))
	}
	return lines
}
