package models

import (
	"fmt"
	"time"
)

// Artifact 本次发布产物的描述，每次调用只构建一次
type Artifact struct {
	Name      string `json:"name" yaml:"name"`           // 应用名称 (package.json 中的 appName)
	Version   string `json:"version" yaml:"version"`     // 版本号 (升级之后重新读取)
	Timestamp int64  `json:"timestamp" yaml:"timestamp"` // 调用时刻，毫秒时间戳
}

// FileName 返回 "{name}-{version}-{timestamp}" 形式的产物名称
func (a Artifact) FileName() string {
	return fmt.Sprintf("%s-%s-%d", a.Name, a.Version, a.Timestamp)
}

// Manifest package.json 中与发布相关的字段
type Manifest struct {
	Name    string `json:"name"`
	AppName string `json:"appName"`
	Version string `json:"version"`
}

// 设备操作类型
const (
	ActionPush    = "push"
	ActionInstall = "install"
)

// 设备操作状态
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// DeviceResult 单个设备上一次操作的结果
type DeviceResult struct {
	DeviceID string        `json:"device_id" yaml:"device_id"`
	Action   string        `json:"action" yaml:"action"`                   // push, install
	Status   string        `json:"status" yaml:"status"`                   // success, failed
	Error    string        `json:"error,omitempty" yaml:"error,omitempty"` // 错误信息（如果有）
	ExitCode int           `json:"exit_code" yaml:"exit_code"`             // 外部命令退出码
	Duration time.Duration `json:"duration" yaml:"duration"`               // 执行耗时
}

// RunReport 一次发布运行的汇总报告
type RunReport struct {
	RunID     string         `json:"run_id" yaml:"run_id"`
	Artifact  Artifact       `json:"artifact" yaml:"artifact"`
	Devices   []string       `json:"devices" yaml:"devices"` // 过滤后的目标设备，按发现顺序
	Results   []DeviceResult `json:"results" yaml:"results"` // 按执行顺序
	StartTime time.Time      `json:"start_time" yaml:"start_time"`
	EndTime   time.Time      `json:"end_time" yaml:"end_time"`
}

// Failed 返回第一个失败的设备结果
func (r *RunReport) Failed() (*DeviceResult, bool) {
	for i := range r.Results {
		if r.Results[i].Status == StatusFailed {
			return &r.Results[i], true
		}
	}
	return nil, false
}

// 发布事件类型
const (
	EventRunStarted      = "run_started"
	EventVersionBumped   = "version_bumped"
	EventDevicePushed    = "device_pushed"
	EventDeviceInstalled = "device_installed"
	EventDeviceFailed    = "device_failed"
	EventRunFinished     = "run_finished"
)

// ReleaseEvent 通过MQTT广播的发布事件
type ReleaseEvent struct {
	RunID     string   `json:"run_id"`
	Type      string   `json:"type"`
	Artifact  Artifact `json:"artifact"`
	DeviceID  string   `json:"device_id,omitempty"`
	Status    string   `json:"status,omitempty"`
	Error     string   `json:"error,omitempty"`
	Timestamp int64    `json:"timestamp"`
}
