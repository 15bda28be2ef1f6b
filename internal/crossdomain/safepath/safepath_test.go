package safepath

import "testing"

func TestCheckRejectsShellMetacharacters(t *testing.T) {
	v := New("")
	if _, err := v.Check("/tmp/foo; rm -rf /"); err == nil {
		t.Fatal("expected rejection of path with shell metacharacter")
	}
}

func TestCheckRejectsEscapeFromAllowedRoot(t *testing.T) {
	v := New("/tmp/sop-root")
	if _, err := v.Check("/tmp/sop-root/../../etc/passwd"); err == nil {
		t.Fatal("expected rejection of path escaping allowed root")
	}
}

func TestCheckRejectsProtectedPath(t *testing.T) {
	v := New("", "/var/lib/cortexd/cortex.db")
	if _, err := v.Check("/var/lib/cortexd/cortex.db"); err == nil {
		t.Fatal("expected rejection of protected system path")
	}
}

func TestCheckAllowsOrdinaryPathWithinRoot(t *testing.T) {
	v := New("/tmp/sop-root")
	resolved, err := v.Check("/tmp/sop-root/tool-reliability.md")
	if err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected a resolved path")
	}
}
