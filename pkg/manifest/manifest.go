// Package manifest reads the app's package.json and bumps its patch version
// through npm.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"

	"apk_release/pkg/models"
	"apk_release/pkg/shell"
)

// Load 读取 package.json。每次调用都重新读取文件，不做缓存，
// 这样版本升级之后拿到的一定是新版本号。
func Load(path string) (*models.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m models.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	if m.AppName == "" {
		return nil, fmt.Errorf("manifest %s: appName is empty", path)
	}
	if m.Version == "" {
		return nil, fmt.Errorf("manifest %s: version is empty", path)
	}
	return &m, nil
}

// Bumper 通过 npm version patch 原地升级补丁版本号
type Bumper struct {
	npm    string
	runner shell.Runner
}

// NewBumper 创建版本升级器，npm 为 npm 可执行文件
func NewBumper(npm string, runner shell.Runner) *Bumper {
	if npm == "" {
		npm = "npm"
	}
	return &Bumper{npm: npm, runner: runner}
}

// BumpPatch 执行 npm version patch，输出直接继承给当前进程
func (b *Bumper) BumpPatch() error {
	if err := b.runner.Run(b.npm, "version", "patch"); err != nil {
		return fmt.Errorf("bump version: %w", err)
	}
	return nil
}
