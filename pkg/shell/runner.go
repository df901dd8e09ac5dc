// Package shell runs the external tools (adb, npm, node) the release
// utilities delegate to, and maps their exit status into errors.
package shell

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Runner 外部命令执行接口
type Runner interface {
	// Output 执行命令并捕获标准输出
	Output(name string, args ...string) ([]byte, error)

	// Run 执行命令，标准输入输出直接继承给子进程
	Run(name string, args ...string) error
}

// ExecRunner 基于 os/exec 的 Runner 实现
type ExecRunner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// NewExecRunner 创建继承当前进程标准流的执行器
func NewExecRunner() *ExecRunner {
	return &ExecRunner{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Output 执行命令并返回标准输出，标准错误转发给 r.Stderr
func (r *ExecRunner) Output(name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	cmd.Stderr = r.Stderr

	output, err := cmd.Output()
	if err != nil {
		return output, newCommandError(name, args, err)
	}
	return output, nil
}

// Run 执行命令并阻塞等待其退出
func (r *ExecRunner) Run(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdin = r.Stdin
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr

	if err := cmd.Run(); err != nil {
		return newCommandError(name, args, err)
	}
	return nil
}

// CommandError 外部命令失败，携带其退出码
type CommandError struct {
	Command  string
	ExitCode int
	Err      error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q failed with exit status %d: %v", e.Command, e.ExitCode, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// exitNotFound 命令无法启动时使用的退出码，与 sh 的约定一致
const exitNotFound = 127

func newCommandError(name string, args []string, err error) *CommandError {
	ce := &CommandError{
		Command:  CommandLine(name, args...),
		ExitCode: 1,
		Err:      err,
	}

	var exitErr *exec.ExitError
	var execErr *exec.Error
	switch {
	case errors.As(err, &exitErr):
		// 被信号终止时 ExitCode 为 -1
		if code := exitErr.ExitCode(); code > 0 {
			ce.ExitCode = code
		}
	case errors.As(err, &execErr):
		ce.ExitCode = exitNotFound
	}
	return ce
}

// ExitCode 从错误中提取进程应使用的退出码：nil 为 0，非命令错误为 1
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce.ExitCode
	}
	return 1
}

// CommandLine 将命令格式化为便于日志阅读的单行文本
func CommandLine(name string, args ...string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}
