// Package release builds the artifact name for a release and distributes the
// APK to connected devices, one device at a time.
package release

import (
	"time"

	"apk_release/pkg/config"
	"apk_release/pkg/logger"
	"apk_release/pkg/manifest"
	"apk_release/pkg/models"
	"apk_release/pkg/mqtt"
	"apk_release/pkg/shell"

	"github.com/google/uuid"
)

// DeviceBridge 设备桥接接口，由 adb.Client 实现
type DeviceBridge interface {
	Devices() ([]string, error)
	Push(deviceID, local, remote string) error
	Install(deviceID, local string) error
}

// VersionBumper 版本升级接口，由 manifest.Bumper 实现
type VersionBumper interface {
	BumpPatch() error
}

// Options 一次运行的参数
type Options struct {
	Publish   bool // 先升级补丁版本
	PushAPK   bool // 推送 APK 到设备下载目录
	Install   bool // 在设备上安装 APK
	KeepGoing bool // 失败后继续处理剩余设备

	AllowList AllowList

	ManifestPath string
	APKPath      string
	RemoteDir    string
}

// OptionsFromConfig 由配置生成运行参数
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Publish:      cfg.Publish,
		PushAPK:      cfg.InstallAPK,
		Install:      cfg.Install,
		KeepGoing:    cfg.KeepGoing,
		AllowList:    ResolveAllowList(cfg.AllowedDevices),
		ManifestPath: cfg.ManifestPath,
		APKPath:      cfg.APKPath,
		RemoteDir:    cfg.RemoteDir,
	}
}

// AnyDeviceMode 是否需要操作设备
func (o Options) AnyDeviceMode() bool {
	return o.PushAPK || o.Install
}

// Installer 发布安装流程
type Installer struct {
	bridge   DeviceBridge
	bumper   VersionBumper
	notifier mqtt.Notifier
	logger   logger.Logger

	now   func() time.Time
	newID func() string
}

// NewInstaller 创建安装流程，notifier 为 nil 时不发送通知
func NewInstaller(bridge DeviceBridge, bumper VersionBumper, notifier mqtt.Notifier, log logger.Logger) *Installer {
	if notifier == nil {
		notifier = mqtt.NopNotifier{}
	}
	if log == nil {
		log = logger.Discard
	}
	return &Installer{
		bridge:   bridge,
		bumper:   bumper,
		notifier: notifier,
		logger:   log,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// LoadArtifact 读取当前 manifest 并生成产物描述
func LoadArtifact(manifestPath string, timestamp int64) (models.Artifact, error) {
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return models.Artifact{}, err
	}
	return models.Artifact{Name: m.AppName, Version: m.Version, Timestamp: timestamp}, nil
}

// Targets 发现设备并按白名单过滤
func (in *Installer) Targets(allow AllowList) ([]string, error) {
	all, err := in.bridge.Devices()
	if err != nil {
		return nil, err
	}
	in.logger.Debug("Discovered devices: %v", all)
	return FilterDevices(all, allow), nil
}

// Run 执行一次发布：可选的版本升级、产物命名、设备发现与过滤，
// 然后依次推送、安装。默认遇到第一个失败立即中止；KeepGoing 时处理完
// 所有设备后返回第一个错误。报告在出错时同样返回。
//
// 产物确定之后才开始发送事件：先 run_started，最后总是 run_finished。
func (in *Installer) Run(opts Options) (*models.RunReport, error) {
	start := in.now()
	report := &models.RunReport{
		RunID:     in.newID(),
		StartTime: start,
		Results:   []models.DeviceResult{},
	}
	defer func() { report.EndTime = in.now() }()

	if opts.Publish {
		in.logger.Info("Bumping patch version")
		if err := in.bumper.BumpPatch(); err != nil {
			return report, err
		}
	}

	// 升级之后重新读取，产物名称必须反映新版本号
	artifact, err := LoadArtifact(opts.ManifestPath, start.UnixMilli())
	if err != nil {
		return report, err
	}
	report.Artifact = artifact
	in.logger.Info("Artifact: %s", artifact.FileName())

	in.notify(report, models.EventRunStarted, "", "", nil)
	if opts.Publish {
		in.notify(report, models.EventVersionBumped, "", models.StatusSuccess, nil)
	}

	err = in.distribute(report, opts)

	status := models.StatusSuccess
	if err != nil {
		status = models.StatusFailed
	}
	in.notify(report, models.EventRunFinished, "", status, err)
	return report, err
}

// distribute 发现设备后先全部推送，再全部安装
func (in *Installer) distribute(report *models.RunReport, opts Options) error {
	if !opts.AnyDeviceMode() {
		in.logger.Info("Neither HAS_INSTALL_APK nor HAS_INSTALL is set, nothing to do")
		return nil
	}

	devices, err := in.Targets(opts.AllowList)
	if err != nil {
		return err
	}
	report.Devices = devices
	in.logger.Info("Target devices: %v", devices)

	var firstErr error
	if opts.PushAPK {
		remote := RemoteArtifactPath(opts.RemoteDir, report.Artifact)
		firstErr = in.forEach(report, devices, models.ActionPush, opts.KeepGoing, func(id string) error {
			return in.bridge.Push(id, opts.APKPath, remote)
		})
	}
	if opts.Install && (firstErr == nil || opts.KeepGoing) {
		err := in.forEach(report, devices, models.ActionInstall, opts.KeepGoing, func(id string) error {
			return in.bridge.Install(id, opts.APKPath)
		})
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// forEach 按顺序对每台设备执行操作
func (in *Installer) forEach(report *models.RunReport, devices []string, action string, keepGoing bool, fn func(id string) error) error {
	var firstErr error
	for _, id := range devices {
		if err := in.step(report, id, action, fn); err != nil {
			if !keepGoing {
				return err
			}
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (in *Installer) step(report *models.RunReport, deviceID, action string, fn func(id string) error) error {
	in.logger.Info("%s %s on %s", action, report.Artifact.FileName(), deviceID)

	start := in.now()
	err := fn(deviceID)
	result := models.DeviceResult{
		DeviceID: deviceID,
		Action:   action,
		Status:   models.StatusSuccess,
		Duration: in.now().Sub(start),
	}

	event := models.EventDevicePushed
	if action == models.ActionInstall {
		event = models.EventDeviceInstalled
	}

	if err != nil {
		result.Status = models.StatusFailed
		result.Error = err.Error()
		result.ExitCode = shell.ExitCode(err)
		event = models.EventDeviceFailed
		in.logger.Error("%s failed on %s: %v", action, deviceID, err)
	}

	report.Results = append(report.Results, result)
	in.notify(report, event, deviceID, result.Status, err)
	return err
}

// notify 通知失败只记录警告，不影响运行结果
func (in *Installer) notify(report *models.RunReport, eventType, deviceID, status string, cause error) {
	event := models.ReleaseEvent{
		RunID:     report.RunID,
		Type:      eventType,
		Artifact:  report.Artifact,
		DeviceID:  deviceID,
		Status:    status,
		Timestamp: in.now().UnixMilli(),
	}
	if cause != nil {
		event.Error = cause.Error()
	}

	if err := in.notifier.Notify(event); err != nil {
		in.logger.Warn("MQTT notify %s failed: %v", eventType, err)
	}
}
