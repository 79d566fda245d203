package core

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/MediaHarvest/internal/models"
	"github.com/spf13/viper"
)

// Config 应用程序配置
type Config struct {
	Crawl    CrawlConfig            `mapstructure:"crawl"`
	Browser  models.BrowserOptions  `mapstructure:"browser"`
	Download models.DownloadOptions `mapstructure:"download"`
	Extract  ExtractConfig          `mapstructure:"extract"`
	Logging  LoggingConfig          `mapstructure:"logging"`
	Output   OutputConfig           `mapstructure:"output"`
}

// CrawlConfig 发现循环配置
type CrawlConfig struct {
	StartURL string             `mapstructure:"start_url"`
	Resume   bool               `mapstructure:"resume"`
	Loop     models.LoopOptions `mapstructure:",squash"`
}

// ExtractConfig 提取配置
type ExtractConfig struct {
	Toggles   models.ExtractToggles  `mapstructure:"toggles"`
	Images    models.ImageOptions    `mapstructure:"images"`
	Video     models.VideoOptions    `mapstructure:"video"`
	Audio     models.AudioOptions    `mapstructure:"audio"`
	Documents models.DocumentOptions `mapstructure:"documents"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// 设置配置文件
	if configPath != "" {
		// 使用指定的配置文件
		v.SetConfigFile(configPath)
	} else {
		// 搜索默认位置
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		// 添加配置搜索路径
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")

		// 用户主目录
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".mediaharvest"))
		}
	}

	// 设置默认值
	setDefaults(v)

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		// 如果配置文件不存在,使用默认值
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在,使用默认值
	}

	// 解析配置
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 发现循环默认值
	loop := models.DefaultLoopOptions()
	v.SetDefault("crawl.max_phases", loop.MaxPhases)
	v.SetDefault("crawl.tension_threshold", loop.TensionThreshold)
	v.SetDefault("crawl.stasis_window", loop.StasisWindow)
	v.SetDefault("crawl.save_interval", loop.SaveInterval)
	v.SetDefault("crawl.phase_delay_ms", loop.PhaseDelayMs)
	v.SetDefault("crawl.output_dir", loop.OutputDir)
	v.SetDefault("crawl.resume", false)

	// 浏览器默认值
	browser := models.DefaultBrowserOptions()
	v.SetDefault("browser.headless", browser.Headless)
	v.SetDefault("browser.viewport_width", browser.ViewportWidth)
	v.SetDefault("browser.viewport_height", browser.ViewportHeight)
	v.SetDefault("browser.default_timeout_ms", browser.DefaultTimeoutMs)
	v.SetDefault("browser.respect_robots", browser.RespectRobots)
	v.SetDefault("browser.rate_max_requests", browser.RateMaxRequests)
	v.SetDefault("browser.rate_interval_ms", browser.RateIntervalMs)

	// 下载默认值
	download := models.DefaultDownloadOptions()
	v.SetDefault("download.download_dir", download.DownloadDir)
	v.SetDefault("download.max_concurrent", download.MaxConcurrent)
	v.SetDefault("download.timeout_ms", download.TimeoutMs)
	v.SetDefault("download.user_agent", download.UserAgent)
	v.SetDefault("download.retry_attempts", download.RetryAttempts)

	// 提取默认值
	v.SetDefault("extract.toggles.text", true)
	v.SetDefault("extract.toggles.images", true)
	v.SetDefault("extract.toggles.video", true)
	v.SetDefault("extract.toggles.audio", true)
	v.SetDefault("extract.toggles.documents", true)

	// 日志配置默认值
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)

	// 输出配置默认值
	v.SetDefault("output.base_dir", "output")
}

// applyDefaults 补齐未出现在配置文件里的提取器选项
// viper默认值无法覆盖嵌套squash结构, 这里对零值字段回填默认
func (c *Config) applyDefaults() {
	if c.Extract.Images.MaxScrolls == 0 {
		base := c.Extract.Images
		c.Extract.Images = models.DefaultImageOptions()
		if base.DownloadMedia {
			c.Extract.Images.DownloadMedia = true
		}
	}
	if c.Extract.Video.ObservationWindowMs == 0 {
		base := c.Extract.Video
		c.Extract.Video = models.DefaultVideoOptions()
		if base.DownloadMedia {
			c.Extract.Video.DownloadMedia = true
		}
	}
	if c.Extract.Audio.ObservationWindowMs == 0 {
		base := c.Extract.Audio
		c.Extract.Audio = models.DefaultAudioOptions()
		if base.DownloadMedia {
			c.Extract.Audio.DownloadMedia = true
		}
	}
	if c.Extract.Documents.TimeoutMs == 0 {
		base := c.Extract.Documents
		c.Extract.Documents = models.DefaultDocumentOptions()
		if base.DownloadMedia {
			c.Extract.Documents.DownloadMedia = true
		}
	}
	c.Extract.Images.Clamp()
	c.Extract.Video.Clamp()
	c.Extract.Audio.Clamp()
	c.Extract.Documents.Clamp()
	c.Browser.Clamp()
	c.Download.Clamp()
}

// MergeCLIFlags 合并命令行参数到配置
func (c *Config) MergeCLIFlags(
	startURL string,
	maxPhases int,
	tensionThreshold float64,
	outputDir string,
	headless bool,
	resume bool,
	download bool,
	respectRobots bool,
) {
	// 命令行参数优先于配置文件
	if startURL != "" {
		c.Crawl.StartURL = startURL
	}
	if maxPhases > 0 {
		c.Crawl.Loop.MaxPhases = maxPhases
	}
	if tensionThreshold >= 0 {
		c.Crawl.Loop.TensionThreshold = tensionThreshold
	}
	if outputDir != "" {
		c.Crawl.Loop.OutputDir = outputDir
		c.Output.BaseDir = outputDir
	}
	c.Browser.Headless = headless
	c.Crawl.Resume = resume
	c.Browser.RespectRobots = respectRobots
	if download {
		c.Extract.Images.DownloadMedia = true
		c.Extract.Video.DownloadMedia = true
		c.Extract.Audio.DownloadMedia = true
		c.Extract.Documents.DownloadMedia = true
	}
}
