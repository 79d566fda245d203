package extractors

import (
	"context"
	"fmt"
	"strings"

	"github.com/RecoveryAshes/MediaHarvest/internal/browser"
	"github.com/RecoveryAshes/MediaHarvest/internal/mathx"
	"github.com/RecoveryAshes/MediaHarvest/internal/models"
)

// pageTextJS 提取正文文本与结构计数
const pageTextJS = `() => {
	const main = document.querySelector('article, main, [role="main"]') || document.body;
	const text = (main.innerText || '').trim();
	return {
		text: text.slice(0, 200000),
		html_length: document.documentElement.outerHTML.length,
		paragraphs: main.querySelectorAll('p').length,
		title: document.title || '',
	};
}`

// 阅读速度基准, 每分钟单词数
const defaultWPM = 200

// TextReport 页面文本可读性报告
type TextReport struct {
	Title               string  `json:"title"`                  // 页面标题
	WordCount           int     `json:"word_count"`             // 单词数
	SentenceCount       int     `json:"sentence_count"`         // 句子数
	SyllableCount       int     `json:"syllable_count"`         // 音节数
	ParagraphCount      int     `json:"paragraph_count"`        // 段落数
	AvgWordsPerSentence float64 `json:"avg_words_per_sentence"` // 平均句长
	FleschScore         *int    `json:"flesch_score"`           // 可读性评分(四舍五入), 无效时为null
	FleschReason        string  `json:"flesch_reason,omitempty"` // 评分无效原因
	TextDensity         *float64 `json:"text_density"`          // 文本密度, 无效时为null
	QualityScore        float64 `json:"quality_score"`          // 质量评分[0,100]
	ReadingTimeMinutes  int     `json:"reading_time_minutes"`   // 预估阅读分钟数
}

// TextExtractor 文本可读性提取器
// 不产出媒体项, 只计算页面正文的可读性指标
type TextExtractor struct {
	*Base
	report *TextReport
}

// NewTextExtractor 构造文本提取器
func NewTextExtractor(session *browser.Session, opts models.ExtractorOptions, closeBrowser bool) *TextExtractor {
	return &TextExtractor{
		Base: NewBase("文本", session, opts, closeBrowser),
	}
}

// Run 执行完整提取生命周期
func (e *TextExtractor) Run(ctx context.Context, target string) error {
	return e.Base.Run(ctx, target, e)
}

// Initialize 就绪会话
func (e *TextExtractor) Initialize(ctx context.Context, target string) error {
	return e.session.Initialize(ctx, target)
}

// Extract 提取正文并计算指标
func (e *TextExtractor) Extract(ctx context.Context) error {
	page := e.page()
	if page == nil {
		return fmt.Errorf("页面不可用")
	}

	obj, err := page.Eval(pageTextJS)
	if err != nil {
		return fmt.Errorf("提取页面文本失败: %w", err)
	}

	text := obj.Value.Get("text").Str()
	htmlLength := obj.Value.Get("html_length").Int()
	paragraphs := obj.Value.Get("paragraphs").Int()
	title := obj.Value.Get("title").Str()

	e.report = analyzeText(text, htmlLength, paragraphs, title)
	return nil
}

// Cleanup 幂等清理
func (e *TextExtractor) Cleanup() {
	e.baseCleanup()
}

// Report 返回可读性报告, 未运行时为nil
func (e *TextExtractor) Report() *TextReport {
	return e.report
}

// analyzeText 对正文计算全部可读性指标
func analyzeText(text string, htmlLength, paragraphs int, title string) *TextReport {
	words := strings.Fields(text)
	sentences := countSentences(text)

	syllables := 0
	for _, word := range words {
		syllables += mathx.CountSyllables(word)
	}

	report := &TextReport{
		Title:          title,
		WordCount:      len(words),
		SentenceCount:  sentences,
		SyllableCount:  syllables,
		ParagraphCount: paragraphs,
	}
	if sentences > 0 {
		report.AvgWordsPerSentence = mathx.SafeDivide(float64(len(words)), float64(sentences), 0)
	}

	if flesch := mathx.FleschScore(len(words), sentences, syllables); flesch.Valid {
		v := flesch.Value
		report.FleschScore = &v
	} else {
		report.FleschReason = flesch.Reason
	}

	if density, ok := mathx.TextDensity(float64(len(text)), float64(htmlLength)); ok {
		report.TextDensity = &density
	}

	report.QualityScore = mathx.QualityScore(mathx.TextMetrics{
		WordCount:           len(words),
		ParagraphCount:      paragraphs,
		AvgWordsPerSentence: report.AvgWordsPerSentence,
	}, 50)

	if minutes, ok := mathx.ReadingTime(len(words), defaultWPM); ok {
		report.ReadingTimeMinutes = minutes
	}

	return report
}

// countSentences 按终止标点统计句子数
func countSentences(text string) int {
	count := 0
	for _, r := range text {
		switch r {
		case '.', '!', '?', '。', '！', '？':
			count++
		}
	}
	return count
}
