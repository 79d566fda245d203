package store

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RecoveryAshes/MediaHarvest/internal/models"
)

func newTestStore(t *testing.T, mutate func(*models.DownloadOptions)) *Store {
	t.Helper()
	opts := models.DefaultDownloadOptions()
	opts.DownloadDir = t.TempDir()
	if mutate != nil {
		mutate(&opts)
	}
	return NewStore(opts)
}

func TestStore_TimeoutFloor(t *testing.T) {
	// 低于5000毫秒的超时被提升到下限
	s := newTestStore(t, func(o *models.DownloadOptions) { o.TimeoutMs = 1000 })
	if s.Options().TimeoutMs != 5000 {
		t.Errorf("TimeoutMs = %d, 期望 5000", s.Options().TimeoutMs)
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		wantErr    bool
		wantSubstr string
	}{
		{"有效HTTP", "http://example.com/a.jpg", false, ""},
		{"有效HTTPS", "https://example.com/a.jpg", false, ""},
		{"空URL", "", true, "为空"},
		{"Blob URL", "blob:http://x/1", true, "Blob"},
		{"Data URL", "data:image/png;base64,AAAA", true, "Data"},
		{"FTP协议", "ftp://example.com/a.jpg", true, "协议"},
		{"无主机", "http:///a.jpg", true, "主机"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("validateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
			if err != nil && tt.wantSubstr != "" && !strings.Contains(err.Error(), tt.wantSubstr) {
				t.Errorf("错误信息 %q 应包含 %q", err.Error(), tt.wantSubstr)
			}
		})
	}
}

func TestStore_DownloadBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, ".jpg"):
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write([]byte("jpeg-bytes"))
		case strings.HasSuffix(r.URL.Path, ".bin"):
			_, _ = w.Write([]byte("binary-payload"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	s := newTestStore(t, func(o *models.DownloadOptions) { o.OrganizeByType = true })

	urls := []string{
		server.URL + "/a.jpg",
		"blob:http://x/1",
		server.URL + "/big.bin",
	}
	results := s.Download(context.Background(), urls)

	if len(results) != 3 {
		t.Fatalf("结果数 = %d, 期望 3 (与输入对齐)", len(results))
	}

	// 下标对齐验证
	if results[0].Status != models.DownloadSuccess {
		t.Errorf("results[0] = %+v, 期望success", results[0])
	}
	if !strings.Contains(results[0].Path, string(CategoryImages)) {
		t.Errorf("按类型分目录: %q 应包含images", results[0].Path)
	}
	if results[1].Status != models.DownloadFailure || !strings.Contains(results[1].Reason, "Blob") {
		t.Errorf("results[1] = %+v, 期望含Blob的失败", results[1])
	}
	if results[2].Status != models.DownloadSuccess {
		t.Errorf("results[2] = %+v, 期望success", results[2])
	}
	if !strings.Contains(results[2].Path, string(CategoryOther)) {
		t.Errorf("按类型分目录: %q 应包含other", results[2].Path)
	}

	stats := s.Stats()
	if stats.Total != 3 || stats.Successful != 2 || stats.Failed != 1 || stats.Skipped != 0 {
		t.Errorf("统计异常: %+v", stats)
	}
	if got := stats.SuccessRate().Percentage; got != "66.6" {
		t.Errorf("成功率 = %q, 期望 \"66.6\"", got)
	}

	// 文件确实落盘
	if _, err := os.Stat(results[0].Path); err != nil {
		t.Errorf("下载文件不存在: %v", err)
	}
}

func TestStore_SkipExisting(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("payload"))
	}))
	defer server.Close()

	s := newTestStore(t, nil)
	url := server.URL + "/photo.png"

	first := s.DownloadOne(context.Background(), url)
	if first.Status != models.DownloadSuccess {
		t.Fatalf("首次下载失败: %+v", first)
	}

	second := s.DownloadOne(context.Background(), url)
	if second.Status != models.DownloadSkipped {
		t.Errorf("重复下载应跳过, 实际 %+v", second)
	}
	if second.Path != first.Path {
		t.Errorf("跳过结果应携带既有路径")
	}

	stats := s.Stats()
	if stats.Total != 2 || stats.Successful != 1 || stats.Skipped != 1 {
		t.Errorf("统计异常: %+v", stats)
	}
}

func TestStore_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer server.Close()

	s := newTestStore(t, nil)
	result := s.DownloadOne(context.Background(), server.URL+"/missing.jpg")

	if result.Status != models.DownloadFailure {
		t.Fatalf("期望失败, 实际 %+v", result)
	}
	if result.ErrorType != models.ErrTypeHTTPError || result.StatusCode != 404 {
		t.Errorf("期望http_error 404, 实际 %+v", result)
	}
}

func TestStore_NetworkError(t *testing.T) {
	s := newTestStore(t, func(o *models.DownloadOptions) { o.RetryAttempts = 0 })

	// 端口未监听
	result := s.DownloadOne(context.Background(), "http://127.0.0.1:1/x.jpg")
	if result.Status != models.DownloadFailure {
		t.Fatalf("期望失败, 实际 %+v", result)
	}
	if result.ErrorType != models.ErrTypeNetworkError && result.ErrorType != models.ErrTypeTimeout {
		t.Errorf("期望network_error或timeout, 实际 %s", result.ErrorType)
	}
}

func TestStore_RetryOn5xx(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("recovered"))
	}))
	defer server.Close()

	s := newTestStore(t, func(o *models.DownloadOptions) { o.RetryAttempts = 1 })
	result := s.DownloadOne(context.Background(), server.URL+"/flaky.jpg")

	if result.Status != models.DownloadSuccess {
		t.Fatalf("重试后应成功, 实际 %+v", result)
	}
	if calls != 2 {
		t.Errorf("服务端调用次数 = %d, 期望 2", calls)
	}
}

func TestStore_OrganizeBySource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer server.Close()

	s := newTestStore(t, func(o *models.DownloadOptions) {
		o.OrganizeByType = true
		o.OrganizeBySource = true
	})

	result := s.DownloadOne(context.Background(), server.URL+"/pic.gif")
	if result.Status != models.DownloadSuccess {
		t.Fatalf("下载失败: %+v", result)
	}

	rel, err := filepath.Rel(s.Options().DownloadDir, result.Path)
	if err != nil {
		t.Fatal(err)
	}
	parts := strings.Split(rel, string(filepath.Separator))
	if len(parts) != 3 {
		t.Fatalf("期望 类别/主机/文件 三层结构, 实际 %q", rel)
	}
	if parts[0] != string(CategoryImages) {
		t.Errorf("第一层 = %q, 期望 images", parts[0])
	}
	if !strings.HasPrefix(parts[1], "127.0.0.1") {
		t.Errorf("第二层 = %q, 期望来源主机", parts[1])
	}
}

func TestStore_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer server.Close()

	s := newTestStore(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := s.DownloadOne(ctx, server.URL+"/x.jpg")
	if result.Status != models.DownloadFailure || result.ErrorType != models.ErrTypeAborted {
		t.Errorf("取消的请求应为aborted失败, 实际 %+v", result)
	}
}

func TestMonitor_EffectiveConcurrency(t *testing.T) {
	m := NewMonitor(DefaultMonitorConfig())
	got := m.EffectiveConcurrency(5)
	if got < 1 || got > 5 {
		t.Errorf("有效并发数%d应在[1, 5]内", got)
	}

	// 永远不超过配置上限
	if m.EffectiveConcurrency(1) != 1 {
		t.Error("配置为1时有效并发数必须为1")
	}
}
