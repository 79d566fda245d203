package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/RecoveryAshes/MediaHarvest/internal/core"
	"github.com/RecoveryAshes/MediaHarvest/internal/utils"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile string
	verbose    bool
	logLevel   string

	// 采集参数
	targetURL        string
	urlFile          string
	mode             string
	maxPhases        int
	tensionThreshold float64
	headless         bool
	resume           bool
	download         bool
	respectRobots    bool
	outputDir        string

	// 批量处理参数
	batchDelay      int
	continueOnError bool
)

var rootCmd = &cobra.Command{
	Use:   "mediaharvest",
	Short: "网页媒体与链接采集工具",
	Long: `MediaHarvest - 基于无头浏览器的媒体与链接采集工具 (Go版本)

这是一个专门用于自动化采集网页媒体资源的工具,支持:
  • 自适应链接发现循环(滚动/翻页交替)
  • 图片/视频/音频/文档全量提取
  • 播放器API探测与网络流量捕获
  • 并发下载与资源感知限流
  • 断点续采功能
  • 批量URL处理

使用示例:
  # 链接发现
  mediaharvest -u https://example.com -m discover

  # 媒体提取并下载
  mediaharvest -u https://example.com -m extract --download

  # 批量处理
  mediaharvest -f urls.txt -m all

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 加载配置
		config, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}

		// 初始化日志系统
		logConfig := utils.LogConfig{
			Level:      config.Logging.Level,
			LogDir:     config.Logging.LogDir,
			MaxSize:    config.Logging.Rotation.MaxSize,
			MaxBackups: config.Logging.Rotation.MaxBackups,
			MaxAge:     config.Logging.Rotation.MaxAge,
			Compress:   config.Logging.Rotation.Compress,
		}

		// 命令行参数覆盖配置文件
		if logLevel != "" {
			logConfig.Level = logLevel
		}

		if err := utils.InitLogger(logConfig); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}

		if verbose {
			utils.Info("详细模式已启用")
		}

		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// 设置信号处理(Ctrl+C优雅退出)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

		go func() {
			sig := <-sigChan
			utils.Warnf("\n收到中断信号: %v, 正在优雅关闭...", sig)
			cancel()
		}()

		// 如果没有提供任何参数,显示帮助信息
		if targetURL == "" && urlFile == "" {
			return cmd.Help()
		}

		// 验证参数
		if err := ValidateFlags(targetURL, maxPhases, tensionThreshold, mode); err != nil {
			return err
		}

		// 加载配置并合并命令行参数
		appConfig, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}
		appConfig.MergeCLIFlags(
			targetURL,
			maxPhases,
			tensionThreshold,
			outputDir,
			headless,
			resume,
			download,
			respectRobots,
		)

		// 检查是否为批量处理模式
		if urlFile != "" {
			// 批量处理模式
			urls, err := utils.ReadSeedsFromFile(urlFile)
			if err != nil {
				return fmt.Errorf("读取URL文件失败: %w", err)
			}

			batchRunner := core.NewBatchRunner(appConfig, mode, batchDelay, continueOnError)
			if _, err := batchRunner.RunBatch(ctx, urls); err != nil {
				return fmt.Errorf("批量采集失败: %w", err)
			}

			utils.Info("✨ 批量采集任务完成!")
			return nil
		}

		// 单URL模式
		runner, err := core.NewRunner(targetURL, appConfig)
		if err != nil {
			return fmt.Errorf("创建任务协调器失败: %w", err)
		}

		if err := runner.Run(ctx, mode); err != nil {
			return fmt.Errorf("采集失败: %w", err)
		}

		utils.Info("✨ 采集任务完成!")
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("MediaHarvest %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
		fmt.Println("Go实现版本 - 无头浏览器媒体采集工具")
	},
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "详细输出模式")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")

	// 采集参数
	rootCmd.Flags().StringVarP(&targetURL, "url", "u", "", "目标URL (必需,除非使用 --url-file)")
	rootCmd.Flags().StringVarP(&urlFile, "url-file", "f", "", "包含URL列表的文件路径")
	rootCmd.Flags().StringVarP(&mode, "mode", "m", "all", "运行模式 (all|discover|extract)")
	rootCmd.Flags().IntVarP(&maxPhases, "max-phases", "p", 0, "发现循环最大阶段数 (0表示使用配置值)")
	rootCmd.Flags().Float64Var(&tensionThreshold, "tension-threshold", -1, "批次增长的张力阈值 (负数表示使用配置值)")
	rootCmd.Flags().BoolVar(&headless, "headless", true, "无头浏览器模式")
	rootCmd.Flags().BoolVar(&resume, "resume", false, "从检查点恢复")
	rootCmd.Flags().BoolVar(&download, "download", false, "下载提取到的媒体文件")
	rootCmd.Flags().BoolVar(&respectRobots, "respect-robots", false, "遵守robots.txt")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "", "输出目录 (默认使用配置值)")

	// 批量处理参数
	rootCmd.Flags().IntVar(&batchDelay, "batch-delay", 1, "批量处理URL间延迟(秒)")
	rootCmd.Flags().BoolVar(&continueOnError, "continue-on-error", true, "遇到错误继续处理")

	// 添加子命令
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
