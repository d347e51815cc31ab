package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInternalImportForbiddenPredicate(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"example.com/mod/internal/x", true},
		{"example.com/mod/pkg/x", false},
	}
	for _, c := range cases {
		if got := InternalImportForbidden(c.in); got != c.want {
			t.Fatalf("InternalImportForbidden(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestBackendImportForbiddenPredicate(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"database/sql", true},
		{"github.com/jackc/pgx/v5/stdlib", true},
		{"github.com/nats-io/nats.go/jetstream", true},
		{"github.com/aws/aws-sdk-go-v2/service/s3", true},
		{"encoding/json", false},
		{"github.com/google/uuid", false},
	}
	for _, c := range cases {
		if got := BackendImportForbidden(c.in); got != c.want {
			t.Fatalf("BackendImportForbidden(%q)=%v want %v", c.in, got, c.want)
		}
	}
	combined := AnyOf(InternalImportForbidden, BackendImportForbidden)
	if !combined("x/internal/y") || !combined("database/sql") || combined("fmt") {
		t.Fatalf("AnyOf did not combine predicates")
	}
}

// TestAssertNoDirectImports exercises the success path with a tiny temp package.
func TestAssertNoDirectImports(t *testing.T) {
	dir := t.TempDir()
	src := []byte("package tmp\nimport \"fmt\"\nfunc X(){fmt.Println(1)}")
	if err := os.WriteFile(filepath.Join(dir, "x.go"), src, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	AssertNoDirectImports(t, dir, func(string) bool { return false }, "none")
}

type captureFatal struct{ msg string }

func (c *captureFatal) Fatalf(format string, _ ...any) { c.msg = format }

func TestDirectImportViolationsReported(t *testing.T) {
	dir := t.TempDir()
	src := []byte("package tmp\nimport _ \"database/sql\"\n")
	if err := os.WriteFile(filepath.Join(dir, "x.go"), src, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "x_test.go"), []byte("package tmp\nimport _ \"github.com/aws/x\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	viols, err := directImportViolations(dir, BackendImportForbidden)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || !strings.HasPrefix(viols[0], "database/sql") {
		t.Fatalf("unexpected violations %v", viols)
	}
	var c captureFatal
	failIfDirectViolations(&c, "reason", viols)
	if c.msg == "" {
		t.Fatalf("expected fatal on violations")
	}
}
