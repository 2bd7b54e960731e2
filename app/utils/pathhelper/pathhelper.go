package pathhelper

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// IsSubPath 检查 p 是否在 prefix 之下
func IsSubPath(p, prefix string) bool {
	prefix = strings.TrimRight(prefix, "/")
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

// ArtifactPath 把产物的公开地址转换为存储目录中的本地路径。
// 地址不在 baseURL 之下或试图跳出存储目录时返回 false。
func ArtifactPath(rawURL, baseURL, root string) (string, bool) {
	if rawURL == "" || root == "" {
		return "", false
	}
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = "/"
	}
	if !IsSubPath(rawURL, base) && base != "/" {
		return "", false
	}
	rel := strings.TrimPrefix(rawURL, base)
	if u, err := url.Parse(rel); err == nil {
		rel = u.Path
	}
	rel = path.Clean("/" + rel)
	if rel == "/" {
		return "", false
	}
	return filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(rel, "/"))), true
}

// WithExt 输出路径没有扩展名时补上
func WithExt(p, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" || filepath.Ext(p) != "" {
		return p
	}
	return p + "." + ext
}

// URLExt 从地址中取出扩展名，不带点
func URLExt(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		rawURL = u.Path
	}
	return strings.TrimPrefix(path.Ext(rawURL), ".")
}
