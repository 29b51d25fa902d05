package bot

import (
	"path/filepath"
	"strings"
)

// Allow-list for admin document uploads. Everything outside it is
// refused before the announcement is stored or forwarded.
var allowedExtensions = map[string]bool{
	".pdf": true, ".txt": true,
	".doc": true, ".docx": true,
	".xls": true, ".xlsx": true,
	".ppt": true, ".pptx": true,
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true,
	".mp3": true, ".mp4": true, ".wav": true,
	".zip": true, ".rar": true, ".7z": true,
}

var allowedMIMETypes = map[string]bool{
	"application/pdf": true,
	"text/plain":      true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"application/vnd.ms-powerpoint":                                     true,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": true,
	"image/jpeg": true, "image/png": true, "image/gif": true, "image/bmp": true,
	"audio/mpeg": true, "audio/wav": true,
	"video/mp4":       true,
	"application/zip": true, "application/x-rar-compressed": true,
	"application/x-7z-compressed": true,
}

// Blocked unconditionally, even if the allow-list would pass them.
var dangerousExtensions = map[string]bool{
	".exe": true, ".bat": true, ".cmd": true, ".sh": true,
	".js": true, ".php": true, ".py": true, ".jar": true,
}

// fileAllowed reports whether a document with the given name and declared
// MIME type may be broadcast. An empty MIME type is accepted as long as
// the extension passes.
func fileAllowed(fileName, mimeType string) bool {
	if fileName == "" {
		return false
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	if dangerousExtensions[ext] {
		return false
	}
	if !allowedExtensions[ext] {
		return false
	}
	if mimeType != "" && !allowedMIMETypes[mimeType] {
		return false
	}
	return true
}
