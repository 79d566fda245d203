package store

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/RecoveryAshes/MediaHarvest/internal/models"
	"github.com/RecoveryAshes/MediaHarvest/internal/utils"
)

// Store 并发媒体下载器
// 每个URL产出一个DownloadResult, 从不抛出; 统计计数器单调递增
type Store struct {
	opts    models.DownloadOptions
	client  *http.Client
	monitor *Monitor // 可选, nil时不做资源降级

	mu       sync.RWMutex
	stats    models.DownloaderStats
	inFlight map[string]bool // 进行中的URL, 防止同批次重复写同一文件

	// ShowProgress 批量下载时显示进度条
	ShowProgress bool
}

// NewStore 创建媒体下载器
// 选项在此处限幅: 并发数[1,20], 超时下限5000毫秒
func NewStore(opts models.DownloadOptions) *Store {
	opts.Clamp()

	client := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, // 允许自签名/过期证书的媒体CDN
			},
			MaxIdleConnsPerHost: opts.MaxConcurrent,
		},
		// 单请求超时通过context控制, 客户端本身不设全局超时
	}

	return &Store{
		opts:     opts,
		client:   client,
		inFlight: make(map[string]bool),
	}
}

// SetMonitor 附加资源监控器(可选)
func (s *Store) SetMonitor(m *Monitor) {
	s.monitor = m
}

// Options 返回限幅后的选项快照
func (s *Store) Options() models.DownloadOptions {
	return s.opts
}

// validateURL 校验单个下载URL
// 拒绝: 空串, blob:, data:, 非http(s)
func validateURL(rawURL string) error {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return fmt.Errorf("URL为空")
	}
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "blob:") {
		return fmt.Errorf("不支持的Blob URL, 无法在浏览器外下载")
	}
	if strings.HasPrefix(lower, "data:") {
		return fmt.Errorf("不支持的Data URL, 内容已内联")
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return fmt.Errorf("URL格式无效: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL协议必须是http或https, 实际 %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL缺少主机名")
	}
	return nil
}

// destinationPath 计算目标路径: downloadDir[/类别[/来源主机]]/文件名
func (s *Store) destinationPath(rawURL, filename string) string {
	dir := s.opts.DownloadDir

	if s.opts.OrganizeByType {
		dir = filepath.Join(dir, string(CategoryOf(extensionOfFilename(filename))))
	}
	if s.opts.OrganizeBySource {
		dir = filepath.Join(dir, sanitizeFilename(utils.HostOf(rawURL)))
	}
	return filepath.Join(dir, filename)
}

// DownloadOne 下载单个URL
// 返回的结果状态三选一: success/skipped/failure, 统计同步更新
func (s *Store) DownloadOne(ctx context.Context, rawURL string) models.DownloadResult {
	result := s.downloadOne(ctx, rawURL)
	s.recordResult(result)
	return result
}

func (s *Store) downloadOne(ctx context.Context, rawURL string) models.DownloadResult {
	if err := validateURL(rawURL); err != nil {
		return models.FailureResult(rawURL, models.ErrTypeInvalidURL, err.Error())
	}

	filename := DeriveFilename(rawURL, s.opts.TypeHint)
	destPath := s.destinationPath(rawURL, filename)

	// 目标已存在则跳过
	if _, err := os.Stat(destPath); err == nil {
		utils.Debugf("文件已存在, 跳过: %s", destPath)
		return models.SkippedResult(rawURL, destPath)
	}

	// 同批次内同一目标只下载一次
	s.mu.Lock()
	if s.inFlight[destPath] {
		s.mu.Unlock()
		return models.SkippedResult(rawURL, destPath)
	}
	s.inFlight[destPath] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.inFlight, destPath)
		s.mu.Unlock()
	}()

	start := time.Now()
	var body []byte
	var lastResult models.DownloadResult

	attempts := 1 + s.opts.RetryAttempts
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			utils.Debugf("重试下载 (%d/%d): %s", attempt, s.opts.RetryAttempts, rawURL)
		}

		var retryable bool
		body, lastResult, retryable = s.fetch(ctx, rawURL)
		if lastResult.Status == models.DownloadSuccess {
			break
		}
		if !retryable {
			return lastResult
		}
	}
	if lastResult.Status != models.DownloadSuccess {
		return lastResult
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return models.FailureResult(rawURL, models.ErrTypeWriteError, fmt.Sprintf("创建目录失败: %v", err))
	}
	if err := os.WriteFile(destPath, body, 0644); err != nil {
		return models.FailureResult(rawURL, models.ErrTypeWriteError, fmt.Sprintf("写入文件失败: %v", err))
	}

	duration := time.Since(start).Milliseconds()
	utils.Infof("📥 下载成功: %s (%d bytes) - %s", filename, len(body), rawURL)
	return models.SuccessResult(rawURL, destPath, filename, int64(len(body)), duration)
}

// fetch 执行一次HTTP下载
// 返回(响应体, 结果, 是否可重试); 成功时结果Status为success但不含路径字段
func (s *Store) fetch(ctx context.Context, rawURL string) ([]byte, models.DownloadResult, bool) {
	timeout := time.Duration(s.opts.TimeoutMs) * time.Millisecond
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, models.FailureResult(rawURL, models.ErrTypeInvalidURL, fmt.Sprintf("构造请求失败: %v", err)), false
	}

	req.Header.Set("User-Agent", s.opts.UserAgent)
	referer := s.opts.Referer
	if referer == "" {
		referer = utils.OriginOf(rawURL)
	}
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, classifyFetchError(ctx, rawURL, err), true
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		result := models.FailureResult(rawURL, models.ErrTypeHTTPError,
			fmt.Sprintf("HTTP错误: %d %s", resp.StatusCode, resp.Status))
		result.StatusCode = resp.StatusCode
		// 5xx可重试, 4xx不可
		return nil, result, resp.StatusCode >= 500
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyFetchError(ctx, rawURL, err), true
	}

	body, err := decompressBody(raw, resp.Header.Get("Content-Encoding"))
	if err != nil {
		utils.Warnf("解压响应体失败, 保留原始数据 [%s]: %v", rawURL, err)
		body = raw
	}

	return body, models.DownloadResult{URL: rawURL, Status: models.DownloadSuccess}, false
}

// classifyFetchError 将传输错误分类为timeout/aborted/network_error
func classifyFetchError(parentCtx context.Context, rawURL string, err error) models.DownloadResult {
	if parentCtx.Err() != nil {
		return models.FailureResult(rawURL, models.ErrTypeAborted, fmt.Sprintf("请求已取消: %v", parentCtx.Err()))
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.FailureResult(rawURL, models.ErrTypeTimeout, "请求超时")
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return models.FailureResult(rawURL, models.ErrTypeTimeout, "请求超时")
	}
	return models.FailureResult(rawURL, models.ErrTypeNetworkError, fmt.Sprintf("网络错误: %v", err))
}

// Download 批量下载
// 将URL按maxConcurrent分批, 批内并发, 结果与输入下标对齐
// 单URL失败不影响整批
func (s *Store) Download(ctx context.Context, urls []string) []models.DownloadResult {
	results := make([]models.DownloadResult, len(urls))
	if len(urls) == 0 {
		return results
	}

	concurrency := s.opts.MaxConcurrent
	if s.monitor != nil {
		concurrency = s.monitor.EffectiveConcurrency(concurrency)
	}

	var bar interface{ Add(int) error }
	if s.ShowProgress {
		bar = utils.NewProgressBar(len(urls), "📥 下载媒体")
	}

	for batchStart := 0; batchStart < len(urls); batchStart += concurrency {
		batchEnd := batchStart + concurrency
		if batchEnd > len(urls) {
			batchEnd = len(urls)
		}

		var wg sync.WaitGroup
		for i := batchStart; i < batchEnd; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				defer func() {
					// 单个下载panic转换为失败结果, 不中断整批
					if r := recover(); r != nil {
						utils.Errorf("下载panic [%s]: %v", urls[idx], r)
						results[idx] = models.FailureResult(urls[idx], models.ErrTypeNetworkError,
							fmt.Sprintf("下载异常: %v", r))
						s.recordResult(results[idx])
					}
					if bar != nil {
						_ = bar.Add(1)
					}
				}()
				results[idx] = s.DownloadOne(ctx, urls[idx])
			}(i)
		}
		wg.Wait()
	}

	return results
}

// recordResult 更新聚合统计
func (s *Store) recordResult(r models.DownloadResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.Total++
	switch r.Status {
	case models.DownloadSuccess:
		s.stats.Successful++
		s.stats.TotalBytes += r.Bytes
		s.stats.TotalDurationMs += r.DurationMs
	case models.DownloadSkipped:
		s.stats.Skipped++
	case models.DownloadFailure:
		s.stats.Failed++
	}
}

// Stats 返回统计快照
func (s *Store) Stats() models.DownloaderStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}
