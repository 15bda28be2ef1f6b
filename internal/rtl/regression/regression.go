// Package regression generates a regression-test stub for a pipeline
// failure, placed at the conventional co-located _test.go location so it
// surfaces in the next normal test run rather than requiring a separate
// discovery step.
package regression

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cortexd/cortexd/internal/domain"
)

// Generator writes regression-test stub files under a configured root.
type Generator struct {
	Root string
	now  func() time.Time
}

func New(root string) *Generator {
	return &Generator{Root: root, now: time.Now}
}

// Generate writes a stub test file for e and returns its path. The stub
// is marked t.Skip with the failure's id so a human fills in the real
// assertion; it is never auto-implemented.
func (g *Generator) Generate(e domain.FailureEvent) (string, error) {
	name := sanitize(e.RootCause)
	path := filepath.Join(g.Root, fmt.Sprintf("regression_%s_test.go", name))

	pkgName := filepath.Base(g.Root)
	if pkgName == "" || pkgName == "." {
		pkgName = "regression"
	}

	body := fmt.Sprintf(`package %s

import "testing"

// Generated %s from failure %s (%s). Fill in the reproduction and
// remove the Skip once the fix is verified.
func TestRegression_%s(t *testing.T) {
	t.Skip("regression stub for failure %s — not yet implemented")
}
`, pkgName, g.now().Format("2006-01-02"), e.ID, e.RootCause, exportedName(name), e.ID)

	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		return "", err
	}
	return path, nil
}

func sanitize(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func exportedName(s string) string {
	parts := strings.Split(s, "_")
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]) + p[1:])
	}
	return b.String()
}
