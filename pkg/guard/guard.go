// Package guard checks that the installed node runtime has the same major
// version as the one pinned in the repository's .node-version file.
//
// The exit codes are relied on by pre-commit hooks and CI:
//
//	0  major versions match, or no pin file is configured
//	1  pin file is empty, malformed or unreadable
//	2  major versions differ
//	3  the runtime version could not be determined
package guard

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"unicode"

	"apk_release/pkg/shell"
)

// 退出码
const (
	ExitOK                 = 0
	ExitMalformed          = 1
	ExitMismatch           = 2
	ExitRuntimeUnavailable = 3
)

// RuntimeVersionFunc 返回当前运行时的版本号，例如 "v18.12.1"
type RuntimeVersionFunc func() (string, error)

// Guard 版本检查
type Guard struct {
	PinFile string
	Runtime RuntimeVersionFunc
	Stdout  io.Writer
	Stderr  io.Writer
}

// NodeVersion 通过 node --version 获取运行时版本
func NodeVersion(runner shell.Runner, nodeBin string) RuntimeVersionFunc {
	if nodeBin == "" {
		nodeBin = "node"
	}
	return func() (string, error) {
		out, err := runner.Output(nodeBin, "--version")
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(out)), nil
	}
}

// Normalize 去除首尾空白，并去掉一个开头的非数字标记字符（例如 "v"）
func Normalize(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	r := []rune(v)
	if !unicode.IsDigit(r[0]) {
		return string(r[1:])
	}
	return v
}

// Major 返回第一个 "." 之前的部分；没有 "." 时返回整个字符串
func Major(v string) string {
	major, _, _ := strings.Cut(v, ".")
	return major
}

// Check 执行检查并返回进程退出码。major 按字符串比较："9" 与 "09" 不相等。
func (g *Guard) Check() int {
	raw, err := os.ReadFile(g.PinFile)
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(g.Stdout, "%s file not found; skipping node version check.\n", g.PinFile)
		return ExitOK
	}
	if err != nil {
		fmt.Fprintf(g.Stderr, "Could not read %s: %v\n", g.PinFile, err)
		return ExitMalformed
	}

	pinned := strings.TrimSpace(string(raw))
	expectedMajor := Major(Normalize(pinned))
	if expectedMajor == "" {
		fmt.Fprintf(g.Stderr, "Could not parse %s; file is empty or malformed.\n", g.PinFile)
		return ExitMalformed
	}

	installedRaw, err := g.Runtime()
	if err != nil {
		fmt.Fprintf(g.Stderr, "Could not determine installed node version: %v\n", err)
		return ExitRuntimeUnavailable
	}
	installed := Normalize(installedRaw)
	installedMajor := Major(installed)

	if installedMajor == expectedMajor {
		fmt.Fprintf(g.Stdout, "OK: installed node %s matches %s %s (major %s)\n", installed, g.PinFile, pinned, expectedMajor)
		return ExitOK
	}

	fmt.Fprintf(g.Stderr, "Mismatch: installed node %s != %s %s\n", installed, g.PinFile, pinned)
	fmt.Fprintf(g.Stderr, "Please install/use node %s (e.g. nvm install %s && nvm use %s)\n", pinned, pinned, pinned)
	return ExitMismatch
}
