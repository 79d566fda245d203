package models

import (
	"encoding/json"
	"testing"
)

func TestExtractorOptions_Clamp(t *testing.T) {
	tests := []struct {
		name string
		in   ExtractorOptions
		want ExtractorOptions
	}{
		{
			name: "区间内不变",
			in:   ExtractorOptions{MaxDepth: 5, TimeoutMs: 30000, MaxConcurrentDownloads: 5, DownloadDir: "d"},
			want: ExtractorOptions{MaxDepth: 5, TimeoutMs: 30000, MaxConcurrentDownloads: 5, DownloadDir: "d"},
		},
		{
			name: "全部低于下界",
			in:   ExtractorOptions{MaxDepth: 0, TimeoutMs: 1000, MaxConcurrentDownloads: 0, DownloadDir: "d"},
			want: ExtractorOptions{MaxDepth: 1, TimeoutMs: 5000, MaxConcurrentDownloads: 1, DownloadDir: "d"},
		},
		{
			name: "全部高于上界",
			in:   ExtractorOptions{MaxDepth: 500, TimeoutMs: 999999, MaxConcurrentDownloads: 50, DownloadDir: "d"},
			want: ExtractorOptions{MaxDepth: 100, TimeoutMs: 300000, MaxConcurrentDownloads: 20, DownloadDir: "d"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.Clamp()
			if tt.in.MaxDepth != tt.want.MaxDepth ||
				tt.in.TimeoutMs != tt.want.TimeoutMs ||
				tt.in.MaxConcurrentDownloads != tt.want.MaxConcurrentDownloads {
				t.Errorf("Clamp() = %+v, 期望 %+v", tt.in, tt.want)
			}
		})
	}
}

func TestDownloadOptions_Clamp(t *testing.T) {
	// 超时下限提升到5000毫秒(约束以此为准)
	o := DownloadOptions{TimeoutMs: 1000, MaxConcurrent: 100}
	o.Clamp()
	if o.TimeoutMs != 5000 {
		t.Errorf("TimeoutMs = %d, 期望 5000", o.TimeoutMs)
	}
	if o.MaxConcurrent != 20 {
		t.Errorf("MaxConcurrent = %d, 期望 20", o.MaxConcurrent)
	}
	if o.DownloadDir == "" {
		t.Error("DownloadDir不应为空")
	}
}

func TestImageOptions_Clamp(t *testing.T) {
	o := ImageOptions{
		ExtractorOptions:     DefaultExtractorOptions(),
		MaxScrolls:           1000,
		ScrollStep:           10,
		ScrollDelayMs:        50,
		StabilizationDelayMs: 100,
		MinWidth:             -5,
	}
	o.Clamp()

	if o.MaxScrolls != 200 {
		t.Errorf("MaxScrolls = %d, 期望 200", o.MaxScrolls)
	}
	if o.ScrollStep != 100 {
		t.Errorf("ScrollStep = %d, 期望 100", o.ScrollStep)
	}
	if o.ScrollDelayMs != 100 {
		t.Errorf("ScrollDelayMs = %d, 期望 100", o.ScrollDelayMs)
	}
	if o.StabilizationDelayMs != 500 {
		t.Errorf("StabilizationDelayMs = %d, 期望 500", o.StabilizationDelayMs)
	}
	if o.MinWidth != 0 {
		t.Errorf("MinWidth = %d, 期望 0", o.MinWidth)
	}
}

func TestVideoOptions_Clamp(t *testing.T) {
	o := VideoOptions{ExtractorOptions: DefaultExtractorOptions(), ObservationWindowMs: 100, QualityPreference: "fastest"}
	o.Clamp()

	if o.ObservationWindowMs != 1000 {
		t.Errorf("ObservationWindowMs = %d, 期望 1000", o.ObservationWindowMs)
	}
	if o.QualityPreference != QualityAll {
		t.Errorf("无效质量偏好应回退为all, 实际 %s", o.QualityPreference)
	}
}

func TestLoopOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    LoopOptions
		wantErr bool
	}{
		{"默认选项有效", DefaultLoopOptions(), false},
		{"最大阶段数为0", LoopOptions{MaxPhases: 0, TensionThreshold: 0.5, StasisWindow: 3, SaveInterval: 10}, true},
		{"负张力阈值", LoopOptions{MaxPhases: 50, TensionThreshold: -1, StasisWindow: 3, SaveInterval: 10}, true},
		{"停滞窗口为0", LoopOptions{MaxPhases: 50, TensionThreshold: 0.5, StasisWindow: 0, SaveInterval: 10}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDownloaderStats_DerivedViews(t *testing.T) {
	s := DownloaderStats{Total: 3, Successful: 2, Failed: 1, TotalBytes: 2048, TotalDurationMs: 400}

	rate := s.SuccessRate()
	if rate.Percentage != "66.6" {
		t.Errorf("Percentage = %q, 期望 \"66.6\"", rate.Percentage)
	}
	if got := s.AverageSize(); got != 1024 {
		t.Errorf("AverageSize() = %v, 期望 1024", got)
	}
	if got := s.AverageDurationMs(); got != 200 {
		t.Errorf("AverageDurationMs() = %v, 期望 200", got)
	}

	// 零统计不产生NaN
	var empty DownloaderStats
	if got := empty.AverageSize(); got != 0 {
		t.Errorf("空统计AverageSize() = %v, 期望 0", got)
	}
}

func TestDownloadResult_Constructors(t *testing.T) {
	ok := SuccessResult("http://a/x.jpg", "/tmp/x.jpg", "x.jpg", 100, 50)
	if ok.Status != DownloadSuccess || ok.Bytes != 100 {
		t.Errorf("成功结果构造异常: %+v", ok)
	}

	skip := SkippedResult("http://a/x.jpg", "/tmp/x.jpg")
	if skip.Status != DownloadSkipped || skip.Path != "/tmp/x.jpg" {
		t.Errorf("跳过结果构造异常: %+v", skip)
	}

	fail := FailureResult("blob:http://a/1", ErrTypeInvalidURL, "不支持的Blob URL")
	if fail.Status != DownloadFailure || fail.ErrorType != ErrTypeInvalidURL {
		t.Errorf("失败结果构造异常: %+v", fail)
	}
}

func TestCheckpoint_SaveAndLoad(t *testing.T) {
	dir := t.TempDir()

	c := &Checkpoint{
		Phase: 10,
		Discovered: map[string]Discovery{
			"https://example.com/a": {URL: "https://example.com/a", AnchorText: "链接A", DiscoveredAtPhase: 2},
		},
		Tensions:  []float64{3, 1, 0},
		Timestamp: 1700000000000,
	}
	if err := c.SaveToFile(dir); err != nil {
		t.Fatalf("保存检查点失败: %v", err)
	}

	loaded, err := LoadCheckpointFromFile(dir)
	if err != nil {
		t.Fatalf("加载检查点失败: %v", err)
	}
	if loaded.Phase != 10 || len(loaded.Discovered) != 1 || len(loaded.Tensions) != 3 {
		t.Errorf("检查点往返不一致: %+v", loaded)
	}
}

func TestLoadCheckpointFromFile_Missing(t *testing.T) {
	if _, err := LoadCheckpointFromFile(t.TempDir()); err == nil {
		t.Error("缺失文件应返回错误")
	}
}

func TestLoopReport_NullAverageTension(t *testing.T) {
	r := LoopReport{Phases: 0, FinalBatchSize: 1}
	data, err := r.ToJSON()
	if err != nil {
		t.Fatalf("序列化失败: %v", err)
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("反序列化失败: %v", err)
	}
	if string(decoded["average_tension"]) != "null" {
		t.Errorf("无阶段时average_tension应为null, 实际 %s", decoded["average_tension"])
	}
}
