package extractors

import (
	"regexp"
	"strings"

	"github.com/RecoveryAshes/MediaHarvest/internal/models"
)

// 各提取器的URL特征集, 全部为纯函数便于单测

var (
	imageExtRe    = regexp.MustCompile(`(?i)\.(jpe?g|png|gif|webp|svg|bmp|ico|avif|tiff?)(\?|#|$)`)
	imageCDNRe    = regexp.MustCompile(`(?i)(cdn|img|image|static|media|assets)[^/]*\..*\.(jpe?g|png|gif|webp|avif)`)
	videoExtRe    = regexp.MustCompile(`(?i)\.(mp4|webm|ogv|mov|avi|mkv|flv|wmv|mpe?g|3gp)(\?|#|$)`)
	streamingRe   = regexp.MustCompile(`(?i)\.(m3u8|mpd|ism)(\?|#|$)`)
	segmentRe     = regexp.MustCompile(`(?i)\.(ts|m4s|mp4)(\?|#|$)`)
	videoCDNRe    = regexp.MustCompile(`(?i)(cdn|stream|video|media|vod|hls|dash)`)
	subtitleExtRe = regexp.MustCompile(`(?i)\.(vtt|srt|sub|ass|ttml|dfxp)(\?|#|$)`)
	audioExtRe    = regexp.MustCompile(`(?i)\.(mp3|wav|ogg|flac|m4a|aac|wma|opus|webm)(\?|#|$)`)
	audioCDNRe    = regexp.MustCompile(`(?i)(audio|music|podcast|stream|media|cdn)`)
	audioOnlyRe   = regexp.MustCompile(`(?i)(audio_only|audio-only|audioonly)`)
	urlShapedRe   = regexp.MustCompile(`(?i)^(https?:)?//`)
)

// documentExtensions 文档格式到扩展名的固定映射
var documentExtensions = map[string][]string{
	"pdf":        {".pdf"},
	"word":       {".doc", ".docx", ".odt", ".rtf"},
	"excel":      {".xls", ".xlsx", ".ods", ".csv"},
	"powerpoint": {".ppt", ".pptx", ".odp"},
	"text":       {".txt", ".md", ".json", ".xml"},
	"ebook":      {".epub", ".mobi", ".azw3"},
}

// documentFormats 分组匹配的固定顺序, 保证扩展名子串重叠时结果稳定
var documentFormats = []string{"pdf", "word", "excel", "powerpoint", "text", "ebook"}

// documentMIMEs 文档内容响应的MIME前缀
var documentMIMEs = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument",
	"application/vnd.ms-excel",
	"application/vnd.ms-powerpoint",
	"application/vnd.oasis.opendocument",
	"application/epub+zip",
	"text/csv",
}

// cloudDocHosts 云端文档平台的主机特征
var cloudDocHosts = []string{
	"docs.google.com", "drive.google.com",
	"onedrive.live.com", "sharepoint.com",
	"dropbox.com", "app.box.com",
	"scribd.com", "slideshare.net", "issuu.com",
}

// videoPlatforms 视频平台: 主机特征 -> {平台名, 视频ID提取, 规范嵌入URL模板}
type videoPlatform struct {
	Name     string
	HostRe   *regexp.Regexp
	IDRe     *regexp.Regexp
	EmbedTpl string // %s 为视频ID
}

var videoPlatforms = []videoPlatform{
	{"youtube", regexp.MustCompile(`(?i)(youtube\.com|youtu\.be)`),
		regexp.MustCompile(`(?i)(?:embed/|watch\?v=|youtu\.be/)([\w-]{6,})`),
		"https://www.youtube.com/embed/%s"},
	{"vimeo", regexp.MustCompile(`(?i)vimeo\.com`),
		regexp.MustCompile(`(?i)vimeo\.com/(?:video/)?(\d+)`),
		"https://player.vimeo.com/video/%s"},
	{"wistia", regexp.MustCompile(`(?i)wistia\.(com|net)`),
		regexp.MustCompile(`(?i)(?:medias|embed/iframe)/([\w]+)`),
		"https://fast.wistia.net/embed/iframe/%s"},
	{"dailymotion", regexp.MustCompile(`(?i)dailymotion\.com`),
		regexp.MustCompile(`(?i)/video/([\w]+)`),
		"https://www.dailymotion.com/embed/video/%s"},
	{"twitch", regexp.MustCompile(`(?i)twitch\.tv`),
		regexp.MustCompile(`(?i)videos/(\d+)`),
		"https://player.twitch.tv/?video=%s"},
	{"facebook", regexp.MustCompile(`(?i)facebook\.com`),
		regexp.MustCompile(`(?i)/videos/(\d+)`),
		"https://www.facebook.com/video/embed?video_id=%s"},
}

// audioPlatforms 音频平台主机特征
var audioPlatforms = map[string]string{
	"soundcloud.com": "soundcloud",
	"open.spotify.com": "spotify",
	"bandcamp.com":   "bandcamp",
	"mixcloud.com":   "mixcloud",
	"anchor.fm":      "anchor",
}

// IsImageURL URL是否命中图片特征集
func IsImageURL(rawURL string) bool {
	if strings.HasPrefix(rawURL, "data:image/") {
		return true
	}
	return imageExtRe.MatchString(rawURL) || imageCDNRe.MatchString(rawURL)
}

// IsVideoURL URL是否命中视频/流媒体特征集
func IsVideoURL(rawURL string) bool {
	if strings.HasPrefix(rawURL, "blob:http") {
		return true
	}
	if streamingRe.MatchString(rawURL) || videoExtRe.MatchString(rawURL) {
		return true
	}
	return videoCDNRe.MatchString(rawURL) && segmentRe.MatchString(rawURL)
}

// IsVideoMIME 响应Content-Type是否为视频类
func IsVideoMIME(mime string) bool {
	mime = strings.ToLower(mime)
	return strings.HasPrefix(mime, "video/") ||
		strings.HasPrefix(mime, "application/dash+xml") ||
		strings.HasPrefix(mime, "application/x-mpegurl") ||
		strings.HasPrefix(mime, "application/vnd.apple.mpegurl")
}

// IsSubtitleURL URL是否为字幕文件
func IsSubtitleURL(rawURL string) bool {
	return subtitleExtRe.MatchString(rawURL)
}

// IsAudioURL URL是否命中音频特征集
func IsAudioURL(rawURL string) bool {
	if audioExtRe.MatchString(rawURL) {
		return true
	}
	if audioOnlyRe.MatchString(rawURL) {
		return true
	}
	return streamingRe.MatchString(rawURL) && audioCDNRe.MatchString(rawURL)
}

// IsAudioMIME 响应Content-Type是否为音频类
func IsAudioMIME(mime string) bool {
	return strings.HasPrefix(strings.ToLower(mime), "audio/")
}

// IsDocumentURL URL是否携带受支持的文档扩展名
func IsDocumentURL(rawURL string, formats []string) bool {
	lower := strings.ToLower(rawURL)
	for _, format := range formats {
		for _, ext := range documentExtensions[format] {
			if strings.Contains(lower, ext) {
				return true
			}
		}
	}
	return false
}

// IsDocumentMIME 响应Content-Type是否为文档内容
func IsDocumentMIME(mime string) bool {
	lower := strings.ToLower(mime)
	for _, prefix := range documentMIMEs {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// IsURLShaped 值是否形如URL(绝对或协议相对)
func IsURLShaped(value string) bool {
	return strings.HasPrefix(value, "http") || urlShapedRe.MatchString(value)
}

// GroupVideoURL 视频导出分组
func GroupVideoURL(rawURL string, item models.ItemMetadata) string {
	lower := strings.ToLower(rawURL)
	switch {
	case item.Kind == "subtitles" || IsSubtitleURL(rawURL):
		return "subtitles"
	case strings.HasPrefix(lower, "blob:"):
		return "blob"
	case strings.Contains(lower, ".m3u8"):
		return "hls"
	case strings.Contains(lower, ".mpd"):
		return "dash"
	case item.Platform != "":
		return "embedded"
	case videoExtRe.MatchString(rawURL):
		return "direct"
	default:
		for _, platform := range videoPlatforms {
			if platform.HostRe.MatchString(rawURL) {
				return "embedded"
			}
		}
		return "other"
	}
}

// GroupAudioURL 音频导出分组: 按格式, 外加streaming/embedded/other
func GroupAudioURL(rawURL string, item models.ItemMetadata) string {
	if item.Platform != "" {
		return "embedded"
	}
	lower := strings.ToLower(rawURL)
	if streamingRe.MatchString(rawURL) {
		return "streaming"
	}
	if match := audioExtRe.FindStringSubmatch(lower); match != nil {
		return match[1]
	}
	return "other"
}

// GroupDocumentURL 文档导出分组
func GroupDocumentURL(rawURL string, item models.ItemMetadata) string {
	if item.Platform != "" {
		return "cloud"
	}
	lower := strings.ToLower(rawURL)
	for _, host := range cloudDocHosts {
		if strings.Contains(lower, host) {
			return "cloud"
		}
	}
	for _, format := range documentFormats {
		for _, ext := range documentExtensions[format] {
			if strings.Contains(lower, ext) {
				return format
			}
		}
	}
	return "other"
}

// CategorizeImage 图片归类: hero/gallery/thumbnails/icons/backgrounds/social/other
// context为元素的class与祖先标签拼接的小写描述串
func CategorizeImage(item models.ItemMetadata, context string) string {
	context = strings.ToLower(context)
	switch {
	case item.Source == models.SourceMeta:
		return "social"
	case item.Width > 0 && item.Width <= 64 && item.Height > 0 && item.Height <= 64:
		return "icons"
	case strings.Contains(context, "thumb"):
		return "thumbnails"
	case strings.Contains(context, "gallery") || strings.Contains(context, "carousel") || strings.Contains(context, "slider"):
		return "gallery"
	case (strings.Contains(context, "header") || strings.Contains(context, "main")) && item.Width >= 600:
		return "hero"
	case strings.Contains(context, "background"):
		return "backgrounds"
	default:
		return "other"
	}
}

// MatchVideoPlatform 匹配iframe地址对应的视频平台, 返回(平台名, 规范嵌入URL, 是否命中)
func MatchVideoPlatform(iframeURL string) (string, string, bool) {
	for _, platform := range videoPlatforms {
		if !platform.HostRe.MatchString(iframeURL) {
			continue
		}
		match := platform.IDRe.FindStringSubmatch(iframeURL)
		if match == nil {
			return platform.Name, iframeURL, true
		}
		return platform.Name, strings.Replace(platform.EmbedTpl, "%s", match[1], 1), true
	}
	return "", "", false
}

// MatchAudioPlatform 匹配音频平台
func MatchAudioPlatform(rawURL string) (string, bool) {
	lower := strings.ToLower(rawURL)
	for host, name := range audioPlatforms {
		if strings.Contains(lower, host) {
			return name, true
		}
	}
	return "", false
}
