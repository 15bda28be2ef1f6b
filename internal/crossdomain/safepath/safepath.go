// Package safepath validates filesystem paths accepted from untrusted
// input (its one caller is the RTL SOP resolver, for context-supplied SOP
// paths) before they are ever passed to os.Open/os.WriteFile — rejecting shell
// metacharacters, traversal, and the system's own store path up front
// rather than relying on the filesystem to refuse later.
package safepath

import (
	"fmt"
	"path/filepath"
	"strings"
)

var disallowedChars = []string{";", "|", "&", "$", "`", "\n", "\x00"}

// Validator rejects paths outside an allowed root or containing shell
// metacharacters, and refuses to resolve to a protected path (the
// system's own SQLite store, typically).
type Validator struct {
	AllowedRoot    string
	ProtectedPaths []string
}

func New(allowedRoot string, protectedPaths ...string) *Validator {
	return &Validator{AllowedRoot: allowedRoot, ProtectedPaths: protectedPaths}
}

// Check validates path and returns its cleaned, absolute form.
func (v *Validator) Check(path string) (string, error) {
	for _, c := range disallowedChars {
		if strings.Contains(path, c) {
			return "", fmt.Errorf("path %q contains disallowed character %q", path, c)
		}
	}

	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", err
	}

	if v.AllowedRoot != "" {
		root, err := filepath.Abs(v.AllowedRoot)
		if err != nil {
			return "", err
		}
		rel, err := filepath.Rel(root, abs)
		if err != nil || strings.HasPrefix(rel, "..") {
			return "", fmt.Errorf("path %q escapes allowed root %q", path, root)
		}
	}

	for _, p := range v.ProtectedPaths {
		protectedAbs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		if abs == protectedAbs {
			return "", fmt.Errorf("path %q refers to a protected system path", path)
		}
	}

	return abs, nil
}
