package store

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/RecoveryAshes/MediaHarvest/internal/mathx"
)

// Category 媒体类别(按类型分目录时的子目录名)
type Category string

const (
	CategoryImages    Category = "images"
	CategoryVideos    Category = "videos"
	CategoryAudio     Category = "audio"
	CategoryDocuments Category = "documents"
	CategoryOther     Category = "other"
)

// 各类别的扩展名集合
var (
	imageExtensions = map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
		".svg": true, ".bmp": true, ".ico": true, ".avif": true, ".tiff": true,
	}
	videoExtensions = map[string]bool{
		".mp4": true, ".webm": true, ".mkv": true, ".avi": true, ".mov": true,
		".flv": true, ".m4v": true, ".mpg": true, ".mpeg": true, ".3gp": true,
		".ts": true, ".m4s": true, ".m3u8": true, ".mpd": true, ".ism": true,
	}
	audioExtensions = map[string]bool{
		".mp3": true, ".wav": true, ".ogg": true, ".flac": true, ".m4a": true,
		".aac": true, ".wma": true, ".opus": true,
	}
	documentExtensions = map[string]bool{
		".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
		".ppt": true, ".pptx": true, ".txt": true, ".csv": true, ".rtf": true,
		".odt": true, ".epub": true, ".mobi": true,
	}

	// streamingExtensions 无法从类别推断时仍然保留的流媒体扩展名
	streamingExtensions = map[string]bool{
		".m3u8": true, ".mpd": true, ".webm": true, ".webp": true,
	}

	// typeHintExtensions 类型提示到默认扩展名
	typeHintExtensions = map[string]string{
		"image": ".jpg",
		"video": ".mp4",
		"audio": ".mp3",
	}

	unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)
)

// isMediaExtension 扩展名是否在媒体允许列表内
func isMediaExtension(ext string) bool {
	return imageExtensions[ext] || videoExtensions[ext] ||
		audioExtensions[ext] || documentExtensions[ext]
}

// CategoryOf 按扩展名归类
func CategoryOf(ext string) Category {
	ext = strings.ToLower(ext)
	switch {
	case imageExtensions[ext]:
		return CategoryImages
	case videoExtensions[ext]:
		return CategoryVideos
	case audioExtensions[ext]:
		return CategoryAudio
	case documentExtensions[ext]:
		return CategoryDocuments
	default:
		return CategoryOther
	}
}

// sanitizeFilename 将[A-Za-z0-9._-]之外的字符替换为下划线
func sanitizeFilename(name string) string {
	return unsafeChars.ReplaceAllString(name, "_")
}

// trailingExtension 提取URL路径末尾的扩展名(小写, 含点)
func trailingExtension(u *url.URL) string {
	ext := strings.ToLower(path.Ext(u.Path))
	// 截掉?后遗留的查询碎片
	if idx := strings.IndexAny(ext, "?&#"); idx >= 0 {
		ext = ext[:idx]
	}
	return ext
}

// DeriveFilename 从URL推导确定性的本地文件名
// 规则:
//   - 路径同时具有basename和扩展名时: 保留两者, 在扩展名前追加8位哈希防碰撞
//   - 否则合成 media_<16位哈希><扩展名>, 扩展名依次尝试:
//     媒体允许列表内的URL尾部扩展名 -> 流媒体扩展名 -> 类型提示 -> .bin
func DeriveFilename(rawURL string, typeHint string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "media_" + mathx.HashSuffix(rawURL, 16) + ".bin"
	}

	base := path.Base(parsed.Path)
	ext := trailingExtension(parsed)
	stem := strings.TrimSuffix(base, path.Ext(parsed.Path))

	if stem != "" && stem != "." && stem != "/" && ext != "" {
		// 保留原始名称, 8位哈希防碰撞
		return sanitizeFilename(stem) + "_" + mathx.HashSuffix(rawURL, 8) + sanitizeFilename(ext)
	}

	synth := synthesizeExtension(ext, typeHint)
	return "media_" + mathx.HashSuffix(rawURL, 16) + synth
}

// synthesizeExtension 为无名URL合成扩展名
func synthesizeExtension(ext, typeHint string) string {
	if ext != "" && isMediaExtension(ext) {
		return ext
	}
	if streamingExtensions[ext] {
		return ext
	}
	if hinted, ok := typeHintExtensions[strings.ToLower(typeHint)]; ok {
		return hinted
	}
	return ".bin"
}

// extensionOfFilename 提取文件名的扩展名(小写)
func extensionOfFilename(name string) string {
	return strings.ToLower(path.Ext(name))
}
