// Package buildtesting maintains a pool of disposable Go build environments
// for tests that load real packages.
//
// Each environment is a one-file `test` module joined to the enclosing rig
// checkout through a Go workspace, so fixture code can import rig and its
// shipped providers without a published module.
package buildtesting

import (
	"context"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"
)

var envs chan string

// Run sets up the pool and runs the tests. Call it from TestMain:
//
//	func TestMain(m *testing.M) { buildtesting.Run(m) }
//
// Individual tests obtain an environment with [Prepare].
func Run(m *testing.M) {
	out, err := exec.CommandContext(context.Background(), "git", "rev-parse", "--show-toplevel").CombinedOutput()
	if err != nil {
		log.Fatalln("buildtesting:", err)
	}
	checkout := strings.TrimSpace(string(out))

	root, err := os.MkdirTemp("", "rig-buildtest-")
	if err != nil {
		log.Fatalln("buildtesting:", err)
	}
	size := runtime.NumCPU() * 2
	envs = make(chan string, size)
	for i := range size {
		envs <- newEnv(checkout, filepath.Join(root, strconv.Itoa(i)))
	}
	code := m.Run()
	_ = os.RemoveAll(root)
	os.Exit(code)
}

// Prepare checks an environment out of the pool, writes main as its main.go,
// and returns the environment's directory. The environment goes back into the
// pool, emptied, when the test completes.
func Prepare(t *testing.T, main string) string {
	t.Helper()
	dir := <-envs
	t.Cleanup(func() {
		err := os.Remove(filepath.Join(dir, "main.go"))
		assert.NoError(t, err)
		envs <- dir
	})
	err := os.WriteFile(filepath.Join(dir, "main.go"), []byte(main), 0600)
	assert.NoError(t, err)
	return dir
}

func newEnv(checkout, dir string) string {
	if err := os.MkdirAll(dir, 0750); err != nil {
		log.Fatalln("buildtesting:", err)
	}
	mustExec(dir, "go", "mod", "init", "test")
	mustExec(dir, "go", "work", "init", dir, checkout)
	return dir
}

func mustExec(dir string, args ...string) {
	cmd := exec.CommandContext(context.Background(), args[0], args[1:]...)
	out := &strings.Builder{}
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.Dir = dir
	if err := cmd.Run(); err != nil {
		log.Fatalln("buildtesting:", strings.Join(args, " "), err, out.String())
	}
}
