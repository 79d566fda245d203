package store

import (
	"strings"
	"testing"
)

func TestDeriveFilename(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		typeHint   string
		wantPrefix string
		wantSuffix string
	}{
		{"保留原名和扩展名", "https://example.com/photos/a.jpg", "", "a_", ".jpg"},
		{"无路径合成名称", "https://example.com/", "image", "media_", ".jpg"},
		{"流媒体扩展名", "https://cdn.example.com/live/index.m3u8", "", "index_", ".m3u8"},
		{"无扩展名用类型提示", "https://example.com/watch", "video", "", ".mp4"},
		{"无扩展名无提示", "https://example.com/stream", "", "", ".bin"},
		{"未知扩展名保留", "https://example.com/big.bin", "", "big_", ".bin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveFilename(tt.url, tt.typeHint)
			if tt.wantPrefix != "" && !strings.HasPrefix(got, tt.wantPrefix) {
				t.Errorf("DeriveFilename(%q) = %q, 期望前缀 %q", tt.url, got, tt.wantPrefix)
			}
			if !strings.HasSuffix(got, tt.wantSuffix) {
				t.Errorf("DeriveFilename(%q) = %q, 期望后缀 %q", tt.url, got, tt.wantSuffix)
			}
		})
	}
}

func TestDeriveFilename_Deterministic(t *testing.T) {
	a := DeriveFilename("https://example.com/a.jpg", "")
	b := DeriveFilename("https://example.com/a.jpg", "")
	if a != b {
		t.Errorf("相同URL应产生相同文件名: %s != %s", a, b)
	}

	c := DeriveFilename("https://other.com/a.jpg", "")
	if a == c {
		t.Error("不同URL的哈希后缀应不同")
	}
}

func TestDeriveFilename_CollisionHash(t *testing.T) {
	// 保留basename时扩展名前应有8位哈希
	got := DeriveFilename("https://example.com/a.jpg", "")
	parts := strings.Split(strings.TrimSuffix(got, ".jpg"), "_")
	if len(parts) != 2 || len(parts[1]) != 8 {
		t.Errorf("期望 a_<8位哈希>.jpg, 实际 %q", got)
	}
}

func TestDeriveFilename_SynthHashLength(t *testing.T) {
	got := DeriveFilename("https://example.com/", "image")
	hash := strings.TrimSuffix(strings.TrimPrefix(got, "media_"), ".jpg")
	if len(hash) != 16 {
		t.Errorf("合成名称应含16位哈希, 实际 %q (哈希长度%d)", got, len(hash))
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"normal-name_1.jpg", "normal-name_1.jpg"},
		{"带 空格.jpg", "____.jpg"},
		{"a%20b.png", "a_20b.png"},
		{"query?x=1", "query_x_1"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := sanitizeFilename(tt.in)
			if got != tt.want {
				t.Errorf("sanitizeFilename(%q) = %q, 期望 %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		ext  string
		want Category
	}{
		{".jpg", CategoryImages},
		{".webp", CategoryImages},
		{".mp4", CategoryVideos},
		{".m3u8", CategoryVideos},
		{".mp3", CategoryAudio},
		{".pdf", CategoryDocuments},
		{".bin", CategoryOther},
		{"", CategoryOther},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			if got := CategoryOf(tt.ext); got != tt.want {
				t.Errorf("CategoryOf(%q) = %s, 期望 %s", tt.ext, got, tt.want)
			}
		})
	}
}
