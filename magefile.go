//go:build mage

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
	"golang.org/x/term"
)

var (
	Go = "go"
)

// Build builds the library and the demo binary.
func Build() error {
	fmt.Println("Building...")
	if err := sh.Run(Go, "build", "-tags", "jwx_es256k", "./..."); err != nil {
		return err
	}
	return sh.Run(Go, "build", "-tags", "jwx_es256k", "-o", filepath.Join("bin", "vcengine"), "./cmd/vcengine")
}

// Clean deletes any build artifacts.
func Clean() {
	fmt.Println("Cleaning...")
	os.RemoveAll("bin")
}

// Demo issues, presents and verifies credentials using config/config.toml.
func Demo() error {
	return sh.RunWith(map[string]string{"VCENGINE_CONFIG_PATH": filepath.Join("config", "config.toml")},
		Go, "run", "-tags", "jwx_es256k", "./cmd/vcengine")
}

// Test runs unit tests without coverage.
// The mage `-v` option will trigger a verbose output of the test
func Test() error {
	return runTests()
}

// CITest runs unit tests with coverage as a part of CI.
// The mage `-v` option will trigger a verbose output of the test
func CITest() error {
	return runTests("-covermode=atomic", "-coverprofile=coverage.out")
}

// Lint runs golangci-lint when it is installed.
func Lint() error {
	linter := findOnPath("golangci-lint")
	if linter == "" {
		fmt.Println("golangci-lint not found on PATH, skipping")
		return nil
	}
	return sh.Run(linter, "run", "--build-tags", "jwx_es256k", "./...")
}

func runTests(extraTestArgs ...string) error {
	args := []string{"test"}
	if mg.Verbose() {
		args = append(args, "-v")
	}
	args = append(args, "-tags=jwx_es256k")
	args = append(args, "-race")
	args = append(args, extraTestArgs...)
	args = append(args, "./...")
	testEnv := map[string]string{
		"CGO_ENABLED": "1",
		"GO111MODULE": "on",
	}
	writer := ColorizeTestStdout()
	fmt.Printf("%+v\n", args)
	_, err := sh.Exec(testEnv, writer, os.Stderr, Go, args...)
	return err
}

func ColorizeTestOutput(w io.Writer) io.Writer {
	writer := NewRegexpWriter(w, `PASS.*`, "\033[32m$0\033[0m")
	return NewRegexpWriter(writer, `FAIL.*`, "\033[31m$0\033[0m")
}

func ColorizeTestStdout() io.Writer {
	if term.IsTerminal(int(os.Stdout.Fd())) {
		return ColorizeTestOutput(os.Stdout)
	}
	return os.Stdout
}

type regexpWriter struct {
	inner io.Writer
	re    *regexp.Regexp
	repl  []byte
}

func NewRegexpWriter(inner io.Writer, re string, repl string) io.Writer {
	return &regexpWriter{inner, regexp.MustCompile(re), []byte(repl)}
}

func (w *regexpWriter) Write(p []byte) (int, error) {
	r := w.re.ReplaceAll(p, w.repl)
	n, err := w.inner.Write(r)
	if n > len(r) {
		n = len(r)
	}
	return n, err
}

func findOnPath(execName string) string {
	pathDirectories := strings.Split(os.Getenv("PATH"), string(os.PathListSeparator))
	for _, pathDirectory := range pathDirectories {
		possible := filepath.Join(pathDirectory, execName)
		if stat, err := os.Stat(possible); err == nil && stat.Mode()&0111 != 0 {
			return possible
		}
	}
	return ""
}

// CBT runs clean; build; test.
func CBT() error {
	Clean()
	if err := Build(); err != nil {
		return err
	}
	return Test()
}
