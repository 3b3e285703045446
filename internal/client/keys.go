package client

import (
	"fmt"
	"strings"

	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/model"
)

// Object keys, grouped per session so a session's artifacts share a prefix.

func ClipKey(sessionID, clipID, ext string) string {
	return fmt.Sprintf("clips/%s/%s%s", sessionID, clipID, ext)
}

func RenderKey(sessionID, layerID string, tag model.StreamTag, jobID string) string {
	return fmt.Sprintf("renders/%s/%s-%s-%s.gif", sessionID, layerID, strings.ToLower(string(tag)), jobID)
}

func BlendKey(sessionID, layerID, jobID string) string {
	return fmt.Sprintf("blends/%s/%s-%s.gif", sessionID, layerID, jobID)
}

func MasterKey(sessionID, jobID string) string {
	return fmt.Sprintf("masters/%s/%s.gif", sessionID, jobID)
}

// ObjectURL joins a public base URL and a key
func ObjectURL(baseURL, key string) string {
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(key, "/")
}

// IsObjectKey reports whether path is a bucket key rather than an absolute URL
func IsObjectKey(path string) bool {
	return path != "" && !strings.Contains(path, "://")
}
