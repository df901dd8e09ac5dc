// Package adb wraps the adb command-line tool: listing connected devices and
// pushing or installing a release APK on one device at a time.
package adb

import (
	"fmt"
	"strings"

	"apk_release/pkg/shell"
)

// StatusMarker adb devices -l 输出中表示设备已连接可用的状态标记
const StatusMarker = "device "

// Client adb 命令封装
type Client struct {
	path   string
	runner shell.Runner
}

// NewClient 创建 adb 客户端，path 为 adb 可执行文件
func NewClient(path string, runner shell.Runner) *Client {
	if path == "" {
		path = "adb"
	}
	return &Client{
		path:   path,
		runner: runner,
	}
}

// Devices 执行 adb devices -l 并解析出设备标识
func (c *Client) Devices() ([]string, error) {
	output, err := c.runner.Output(c.path, "devices", "-l")
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return ParseDevices(string(output)), nil
}

// Push 把本地文件推送到设备上的 remote 路径
func (c *Client) Push(deviceID, local, remote string) error {
	if err := c.runner.Run(c.path, "-s", deviceID, "push", local, remote); err != nil {
		return fmt.Errorf("push to %s: %w", deviceID, err)
	}
	return nil
}

// Install 在设备上安装本地 APK
func (c *Client) Install(deviceID, local string) error {
	if err := c.runner.Run(c.path, "-s", deviceID, "install", local); err != nil {
		return fmt.Errorf("install on %s: %w", deviceID, err)
	}
	return nil
}

// ParseDevices 解析 adb devices -l 的输出。
//
// 第一行是表头，直接跳过。只有包含状态标记的行才算一台设备，
// 设备标识取标记之后的第一个空格分隔字段，例如
//
//	emulator-5554   device product:sdk_gphone64 model:Pixel_7 transport_id:1
//
// 得到 "product:sdk_gphone64"，可直接作为 adb -s 的参数。
func ParseDevices(output string) []string {
	lines := strings.Split(output, "\n")
	if len(lines) <= 1 {
		return []string{}
	}

	devices := make([]string, 0, len(lines)-1)
	for _, line := range lines[1:] {
		if id := deviceToken(strings.TrimRight(line, "\r")); id != "" {
			devices = append(devices, id)
		}
	}
	return devices
}

// deviceToken 取第一个与第二个状态标记之间、第一个空格之前的字段
func deviceToken(line string) string {
	idx := strings.Index(line, StatusMarker)
	if idx < 0 {
		return ""
	}

	rest := line[idx+len(StatusMarker):]
	if next := strings.Index(rest, StatusMarker); next >= 0 {
		rest = rest[:next]
	}
	if sp := strings.IndexByte(rest, ' '); sp >= 0 {
		rest = rest[:sp]
	}
	return rest
}
