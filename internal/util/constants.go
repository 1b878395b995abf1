package util

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

// 口语录音上传相关常量
const (
	MaxRecordingBytes = 20 << 20
	RecordingPrefix   = "recordings"
)

var (
	// 浏览器 MediaRecorder 产出的 webm/ogg 会被识别为 video/webm 或 application/ogg
	AllowedRecordingMimeTypes  = []string{"audio/", "application/ogg", "video/webm"}
	AllowedRecordingExtensions = []string{".mp3", ".wav", ".ogg", ".webm", ".m4a", ".aac"}
)
