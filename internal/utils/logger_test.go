package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestInitLogger(t *testing.T) {
	tempDir := t.TempDir()

	config := LogConfig{
		Level:      "debug",
		LogDir:     tempDir,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}

	if err := InitLogger(config); err != nil {
		t.Fatalf("初始化日志器失败: %v", err)
	}

	if _, err := os.Stat(tempDir); os.IsNotExist(err) {
		t.Errorf("日志目录未创建: %s", tempDir)
	}

	Info("测试信息日志")
	Warn("测试警告日志")
	Debug("测试调试日志")

	// 等待日志写入
	time.Sleep(100 * time.Millisecond)

	mainLogPath := filepath.Join(tempDir, "media_harvest.log")
	if _, err := os.Stat(mainLogPath); os.IsNotExist(err) {
		t.Errorf("主日志文件未创建: %s", mainLogPath)
	}
}

func TestInitLogger_InvalidLevel(t *testing.T) {
	config := DefaultLogConfig()
	config.LogDir = t.TempDir()
	config.Level = "nonsense"

	// 无效级别回退为info, 不应报错
	if err := InitLogger(config); err != nil {
		t.Fatalf("无效级别不应导致初始化失败: %v", err)
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"有效的HTTP URL", "http://example.com", false},
		{"有效的HTTPS URL", "https://example.com", false},
		{"带路径的URL", "https://example.com/path/to/resource", false},
		{"无效的协议", "ftp://example.com", true},
		{"无效的URL", "not a url", true},
		{"空URL", "", true},
		{"无协议", "example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestReadSeedsFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seeds.txt")
	content := "# 注释行\nhttps://example.com/a\n\nftp://invalid\nhttps://example.com/b\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	urls, err := ReadSeedsFromFile(path)
	if err != nil {
		t.Fatalf("读取种子文件失败: %v", err)
	}
	if len(urls) != 2 {
		t.Errorf("有效URL数 = %d, 期望 2", len(urls))
	}
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"不截断", "abc", 10, "abc"},
		{"恰好长度", "abc", 3, "abc"},
		{"截断", "abcdef", 3, "abc"},
		{"中文按rune截断", "中文测试", 2, "中文"},
		{"最大长度为0", "abc", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateString(tt.in, tt.max); got != tt.want {
				t.Errorf("TruncateString(%q, %d) = %q, 期望 %q", tt.in, tt.max, got, tt.want)
			}
		})
	}
}

func TestHostAndOrigin(t *testing.T) {
	if got := HostOf("https://cdn.example.com/a.jpg"); got != "cdn.example.com" {
		t.Errorf("HostOf() = %q", got)
	}
	if got := HostOf("::bad::"); got != "unknown" {
		t.Errorf("解析失败应返回unknown, 实际 %q", got)
	}
	if got := OriginOf("https://example.com/page?x=1"); got != "https://example.com" {
		t.Errorf("OriginOf() = %q", got)
	}
	if got := OriginOf("/relative"); got != "" {
		t.Errorf("相对URL的origin应为空, 实际 %q", got)
	}
}
