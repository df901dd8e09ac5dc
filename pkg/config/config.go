// Package config loads the release utilities' settings from an optional .env
// file and the environment using Viper. Everything is read once at start-up
// into an explicit Config that is passed to each operation.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/spf13/viper"
)

// DefaultEnvFile .env 文件的默认位置（相对当前工作目录）
const DefaultEnvFile = ".env"

// Config 应用程序配置
type Config struct {
	// Publish 对应 HAS_PUBLISH：命名产物前先执行 npm version patch
	Publish bool
	// InstallAPK 对应 HAS_INSTALL_APK：把 APK 推送到设备的下载目录
	InstallAPK bool
	// Install 对应 HAS_INSTALL：在设备上安装 APK
	Install bool
	// KeepGoing 对应 CONTINUE_ON_ERROR：某台设备失败后继续处理其余设备
	KeepGoing bool
	// AllowedDevices 逗号分隔的设备白名单原始值，空表示全部设备
	AllowedDevices string

	ADBPath      string
	NPMPath      string
	ManifestPath string
	APKPath      string
	RemoteDir    string

	NodeVersionFile string
	NodeBin         string

	MQTTBroker   string
	MQTTPort     string
	MQTTUsername string
	MQTTPassword string
	ReleaseTopic string

	HTTPAddr string
}

// env 环境变量的原始字符串形式
type env struct {
	HasPublish      string `mapstructure:"HAS_PUBLISH"`
	HasInstallAPK   string `mapstructure:"HAS_INSTALL_APK"`
	HasInstall      string `mapstructure:"HAS_INSTALL"`
	ContinueOnError string `mapstructure:"CONTINUE_ON_ERROR"`
	AllowedDevices  string `mapstructure:"ALLOWED_DEVICES"`

	ADBPath      string `mapstructure:"ADB_PATH"`
	NPMPath      string `mapstructure:"NPM_PATH"`
	ManifestPath string `mapstructure:"APP_MANIFEST"`
	APKPath      string `mapstructure:"APK_PATH"`
	RemoteDir    string `mapstructure:"REMOTE_DOWNLOAD_DIR"`

	NodeVersionFile string `mapstructure:"NODE_VERSION_FILE"`
	NodeBin         string `mapstructure:"NODE_BIN"`

	MQTTBroker   string `mapstructure:"MQTT_BROKER"`
	MQTTPort     string `mapstructure:"MQTT_PORT"`
	MQTTUsername string `mapstructure:"MQTT_USERNAME"`
	MQTTPassword string `mapstructure:"MQTT_PASSWORD"`
	ReleaseTopic string `mapstructure:"RELEASE_TOPIC"`

	HTTPAddr string `mapstructure:"HTTP_ADDR"`
}

// Load 加载发布工具的配置并校验
func Load(envFile string) (*Config, error) {
	cfg, err := read(envFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadGuard 加载版本检查用的配置，只关心 NODE_VERSION_FILE 与 NODE_BIN，
// 不校验发布相关的配置项
func LoadGuard(envFile string) (*Config, error) {
	return read(envFile)
}

// read 读取 envFile（不存在时忽略），再由环境变量覆盖
func read(envFile string) (*Config, error) {
	v := viper.New()

	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil && !isNotFound(err) {
			return nil, fmt.Errorf("config: read %s: %w", envFile, err)
		}
	}

	v.AutomaticEnv()

	v.SetDefault("HAS_PUBLISH", "")
	v.SetDefault("HAS_INSTALL_APK", "")
	v.SetDefault("HAS_INSTALL", "")
	v.SetDefault("CONTINUE_ON_ERROR", "")
	v.SetDefault("ALLOWED_DEVICES", "")
	v.SetDefault("ADB_PATH", "adb")
	v.SetDefault("NPM_PATH", "npm")
	v.SetDefault("APP_MANIFEST", "package.json")
	v.SetDefault("APK_PATH", "./android/app/build/outputs/apk/release/app-release.apk")
	v.SetDefault("REMOTE_DOWNLOAD_DIR", "/storage/emulated/0/Downloads")
	v.SetDefault("NODE_VERSION_FILE", ".node-version")
	v.SetDefault("NODE_BIN", "node")
	v.SetDefault("MQTT_BROKER", "")
	v.SetDefault("MQTT_PORT", "1883")
	v.SetDefault("MQTT_USERNAME", "")
	v.SetDefault("MQTT_PASSWORD", "")
	v.SetDefault("RELEASE_TOPIC", "release/events")
	v.SetDefault("HTTP_ADDR", ":8080")

	var e env
	if err := v.Unmarshal(&e); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg := &Config{
		Publish:         isSet(e.HasPublish),
		InstallAPK:      isSet(e.HasInstallAPK),
		Install:         isSet(e.HasInstall),
		KeepGoing:       isSet(e.ContinueOnError),
		AllowedDevices:  e.AllowedDevices,
		ADBPath:         e.ADBPath,
		NPMPath:         e.NPMPath,
		ManifestPath:    e.ManifestPath,
		APKPath:         e.APKPath,
		RemoteDir:       e.RemoteDir,
		NodeVersionFile: e.NodeVersionFile,
		NodeBin:         e.NodeBin,
		MQTTBroker:      e.MQTTBroker,
		MQTTPort:        e.MQTTPort,
		MQTTUsername:    e.MQTTUsername,
		MQTTPassword:    e.MQTTPassword,
		ReleaseTopic:    e.ReleaseTopic,
		HTTPAddr:        e.HTTPAddr,
	}
	return cfg, nil
}

// isNotFound 没有 .env 文件（例如CI）不算错误
func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

// Validate 检查必填项
func (c *Config) Validate() error {
	if c.ADBPath == "" {
		return errors.New("config: ADB_PATH must be set")
	}
	if c.APKPath == "" {
		return errors.New("config: APK_PATH must be set")
	}
	if c.ManifestPath == "" {
		return errors.New("config: APP_MANIFEST must be set")
	}
	if c.MQTTBroker != "" {
		if _, err := strconv.Atoi(c.MQTTPort); err != nil {
			return fmt.Errorf("config: MQTT_PORT must be numeric, got %q", c.MQTTPort)
		}
	}
	return nil
}

// AnyDeviceMode 是否需要对设备做任何操作
func (c *Config) AnyDeviceMode() bool {
	return c.InstallAPK || c.Install
}

// MQTTEnabled 是否配置了MQTT通知
func (c *Config) MQTTEnabled() bool {
	return c.MQTTBroker != ""
}

// BrokerURL 返回 tcp://host:port 形式的地址
func (c *Config) BrokerURL() string {
	return fmt.Sprintf("tcp://%s:%s", c.MQTTBroker, c.MQTTPort)
}

// isSet 与原有脚本一致：只要变量非空即视为开启（包括 "0" 和 "false"）
func isSet(value string) bool {
	return value != ""
}
