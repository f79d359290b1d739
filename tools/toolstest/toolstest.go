// Package toolstest installs fake external tools for tests.
//
// Fake tools are /bin/sh scripts placed in a temporary directory that
// replaces PATH for the duration of the test. Scripts should only rely on
// shell builtins since nothing else is on PATH.
package toolstest

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// Setup replaces PATH with an empty temporary directory and returns it.
// Tests are skipped on Windows where shell scripts cannot be executed.
func Setup(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tools are shell scripts")
	}

	dir := t.TempDir()
	t.Setenv("PATH", dir)
	return dir
}

// Script writes an executable shell script named name into dir.
func Script(t *testing.T, dir, name, body string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	content := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(content), 0755); err != nil {
		t.Fatalf("writing fake %s: %v", name, err)
	}
	return path
}

// Blender is a fake blender that writes every cross image the bake script
// would produce into the directory following --out and prints the
// progress markers.
const Blender = `out=""
while [ $# -gt 0 ]; do
  case "$1" in
    --out) out="$2"; shift ;;
  esac
  shift
done
if [ -z "$out" ]; then
  echo "missing --out" >&2
  exit 2
fi
for n in 0 1 2 3 4 5 6 7 8; do
  : > "$out/cubemap_mip$n.hdr"
  echo "envmap: baked mip $n"
done
: > "$out/cubemap_diffuse.hdr"
echo "envmap: baked diffuse"`

// OIIOTool is a fake oiiotool that creates the file following -o.
const OIIOTool = `out=""
while [ $# -gt 0 ]; do
  case "$1" in
    -o) out="$2"; shift ;;
  esac
  shift
done
: > "$out"`

// KTX is a fake ktx that writes a few bytes into its last argument.
const KTX = `if [ "$1" = "--version" ]; then
  echo "ktx version: v4.3.2"
  exit 0
fi
for last in "$@"; do :; done
echo "KTX2" > "$last"`

// Failing returns a script body that prints msg to stderr and exits with code.
func Failing(msg string, code string) string {
	return "echo \"" + msg + "\" >&2\nexit " + code
}
