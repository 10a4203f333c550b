package safety

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// ErrPathOutsideRoot is returned when a resolved path escapes the project
// root, whether directly, via a symlink, or via a hardlink alias.
var ErrPathOutsideRoot = errors.New("path resolves outside project root")

// ResolvePath confines requestedPath to root, following the same
// defense-in-depth steps as the teacher's internal/tools/filesystem.go
// resolvePath: clean-and-join, canonicalize both sides through symlinks,
// handle not-yet-existing targets (including broken symlinks) by resolving
// through the deepest existing ancestor, then reject any mutable-symlink
// parent or hardlinked regular file.
func ResolvePath(requestedPath, root string) (string, error) {
	if !filepath.IsAbs(requestedPath) {
		requestedPath = filepath.Join(root, requestedPath)
	} else {
		requestedPath = filepath.Clean(requestedPath)
	}

	rootReal, err := filepath.EvalSymlinks(root)
	if err != nil {
		rootReal = filepath.Clean(root)
	}

	target, err := filepath.EvalSymlinks(requestedPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("resolve path: %w", err)
		}
		target, err = resolveThroughExistingAncestors(requestedPath)
		if err != nil {
			return "", err
		}
	}

	if !isPathInside(target, rootReal) {
		return "", ErrPathOutsideRoot
	}
	if hasMutableSymlinkParent(target) {
		return "", fmt.Errorf("%w: mutable symlink parent", ErrPathOutsideRoot)
	}
	if checkHardlink(target) {
		return "", fmt.Errorf("%w: hardlinked file", ErrPathOutsideRoot)
	}
	return target, nil
}

// isPathInside reports whether child is parent or a descendant of parent,
// using string-prefix containment on already-canonicalized paths.
func isPathInside(child, parent string) bool {
	child = filepath.Clean(child)
	parent = filepath.Clean(parent)
	if child == parent {
		return true
	}
	return strings.HasPrefix(child, parent+string(filepath.Separator))
}

// resolveThroughExistingAncestors walks up from target to the deepest
// existing ancestor, canonicalizes it, and rebuilds target with the
// remaining (non-existent) tail components reattached. This lets a
// not-yet-created file (e.g. one about to be written) still be validated
// against a possibly-symlinked ancestor directory.
func resolveThroughExistingAncestors(target string) (string, error) {
	// Broken-symlink case: the leaf itself is a dangling symlink.
	if info, lerr := os.Lstat(target); lerr == nil && info.Mode()&os.ModeSymlink != 0 {
		linkTarget, rerr := os.Readlink(target)
		if rerr != nil {
			return "", fmt.Errorf("resolve symlink: %w", rerr)
		}
		if !filepath.IsAbs(linkTarget) {
			linkTarget = filepath.Join(filepath.Dir(target), linkTarget)
		}
		return resolveThroughExistingAncestors(linkTarget)
	}

	dir := filepath.Dir(target)
	tail := []string{filepath.Base(target)}
	for {
		if real, err := filepath.EvalSymlinks(dir); err == nil {
			rebuilt := real
			for i := len(tail) - 1; i >= 0; i-- {
				rebuilt = filepath.Join(rebuilt, tail[i])
			}
			return rebuilt, nil
		} else if !os.IsNotExist(err) {
			return "", fmt.Errorf("resolve ancestor: %w", err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return filepath.Join(append([]string{dir}, tail...)...), nil
		}
		tail = append([]string{filepath.Base(dir)}, tail...)
		dir = parent
	}
}

// hasMutableSymlinkParent walks every path component; if a component is a
// symlink and its own parent directory is writable, a TOCTOU rebind of that
// symlink could redirect a later operation outside root.
func hasMutableSymlinkParent(path string) bool {
	dir := filepath.Dir(path)
	for {
		info, err := os.Lstat(dir)
		if err != nil {
			if os.IsNotExist(err) {
				parent := filepath.Dir(dir)
				if parent == dir {
					return false
				}
				dir = parent
				continue
			}
			return false
		}
		if info.Mode()&os.ModeSymlink != 0 {
			parentDir := filepath.Dir(dir)
			if syscall.Access(parentDir, 0x2) == nil {
				return true
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return false
		}
		dir = parent
	}
}

// checkHardlink reports whether path is a regular file with more than one
// hardlink; directories are exempt (they cannot be hardlinked on Unix).
func checkHardlink(path string) bool {
	info, err := os.Lstat(path)
	if err != nil || info.IsDir() {
		return false
	}
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return false
	}
	return st.Nlink > 1
}

// MatchesPathPattern implements spec §4.2 step 3's pattern grammar:
// exact, *.ext, prefix.*, prefix.*.suffix, and path-suffix containment,
// case-insensitive.
func MatchesPathPattern(pattern, relPath string) bool {
	pattern = strings.ToLower(pattern)
	relPath = strings.ToLower(filepath.ToSlash(relPath))

	if pattern == relPath {
		return true
	}
	if strings.Contains(pattern, "/") && strings.HasSuffix(relPath, "/"+pattern) {
		return true
	}
	if ok, _ := filepath.Match(pattern, relPath); ok {
		return true
	}
	if ok, _ := filepath.Match(pattern, filepath.Base(relPath)); ok {
		return true
	}
	return false
}
