package testutil

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var update = flag.Bool("update", false, "rewrite golden files under testdata")

// Golden checks rendered artifacts, such as crash reports, against
// <dir>/<name>.golden byte for byte.
type Golden struct {
	t   *testing.T
	dir string
}

func NewGolden(t *testing.T, dir string) *Golden {
	return &Golden{t: t, dir: dir}
}

// Assert fails on the first line where got differs from the golden file.
// With -update the file is rewritten instead.
func (g *Golden) Assert(name string, got []byte) {
	g.t.Helper()
	path := filepath.Join(g.dir, name+".golden")

	if *update {
		if err := os.MkdirAll(g.dir, 0o750); err != nil {
			g.t.Fatalf("creating %s: %v", g.dir, err)
		}
		if err := os.WriteFile(path, got, 0o600); err != nil {
			g.t.Fatalf("writing %s: %v", path, err)
		}
		return
	}

	want, err := os.ReadFile(path)
	if err != nil {
		g.t.Fatalf("reading %s: %v", path, err)
	}
	if string(got) == string(want) {
		return
	}

	gotLines := strings.Split(string(got), "\n")
	wantLines := strings.Split(string(want), "\n")
	for i := 0; i < max(len(gotLines), len(wantLines)); i++ {
		var gl, wl string
		if i < len(gotLines) {
			gl = gotLines[i]
		}
		if i < len(wantLines) {
			wl = wantLines[i]
		}
		if gl != wl {
			g.t.Fatalf("%s: line %d\n got: %q\nwant: %q", path, i+1, gl, wl)
		}
	}
}
