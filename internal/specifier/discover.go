package specifier

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// skipDirs are never descended into unless the files glob names them.
var skipDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
}

// DiscoverOptions control file discovery.
type DiscoverOptions struct {
	// RespectGitignore skips paths matched by <workingDir>/.gitignore.
	RespectGitignore bool
}

// Discover returns the absolute paths of every file under the specifier's
// directory that matches its files glob, in lexical order. A missing
// directory yields no files.
func Discover(spec Specifier, workingDir string, opts DiscoverOptions) ([]string, error) {
	root := spec.AbsDir(workingDir)
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil, nil
	}

	var gi *ignore.GitIgnore
	if opts.RespectGitignore {
		if compiled, err := ignore.CompileIgnoreFile(filepath.Join(workingDir, ".gitignore")); err == nil {
			gi = compiled
		}
	}
	allowSkipped := strings.Contains(spec.Files, "node_modules")

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && skipDirs[d.Name()] && !allowSkipped {
				return filepath.SkipDir
			}
			if gi != nil && path != root && gi.MatchesPath(relTo(workingDir, path)+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), ".storyshot") {
			return nil
		}
		if gi != nil && gi.MatchesPath(relTo(workingDir, path)) {
			return nil
		}
		if spec.pattern.match(relTo(root, path)) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

func relTo(base, path string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
