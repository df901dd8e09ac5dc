package release

import (
	"fmt"
	"strings"

	"apk_release/pkg/models"
)

// AllowList 设备白名单；nil 表示不过滤
type AllowList map[string]struct{}

// ResolveAllowList 解析 ALLOWED_DEVICES 的值。
//
// 空值返回 nil（操作全部设备）。否则按逗号切分并去除首尾空白，
// 空字段被丢弃，因为空标识不可能匹配真实设备。值非空但没有任何有效
// 字段时（例如 ","）返回空的非 nil 白名单：过滤仍然生效，不匹配任何设备。
func ResolveAllowList(value string) AllowList {
	if value == "" {
		return nil
	}
	return NewAllowList(strings.Split(value, ",")...)
}

// NewAllowList 由设备标识构建白名单，去除空白并丢弃空标识
func NewAllowList(ids ...string) AllowList {
	allow := make(AllowList, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			allow[id] = struct{}{}
		}
	}
	return allow
}

// Contains 判断设备是否在白名单中
func (a AllowList) Contains(deviceID string) bool {
	_, ok := a[deviceID]
	return ok
}

// FilterDevices 按白名单过滤设备，保持原有顺序和重复项；allow 为 nil 时原样返回
func FilterDevices(all []string, allow AllowList) []string {
	if allow == nil {
		return all
	}

	filtered := make([]string, 0, len(all))
	for _, id := range all {
		if allow.Contains(id) {
			filtered = append(filtered, id)
		}
	}
	return filtered
}

// ComputeArtifactName 生成 "{appName}-{version}-{timestamp}" 形式的产物名称
func ComputeArtifactName(appName, version string, timestamp int64) string {
	return models.Artifact{Name: appName, Version: version, Timestamp: timestamp}.FileName()
}

// RemoteArtifactPath 设备上保存 APK 的路径
func RemoteArtifactPath(remoteDir string, artifact models.Artifact) string {
	return fmt.Sprintf("%s/%s.apk", strings.TrimSuffix(remoteDir, "/"), artifact.FileName())
}
