package mathx

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Epsilon 浮点比较精度
const Epsilon = 1e-10

// ErrInvalidRange 区间无效错误(lo > hi)
var ErrInvalidRange = errors.New("区间无效: 下界大于上界")

// SafeDivide 安全除法
// 当a或b不是有限数,或|b|小于等于Epsilon时,返回fallback
func SafeDivide(a, b, fallback float64) float64 {
	if math.IsNaN(a) || math.IsInf(a, 0) || math.IsNaN(b) || math.IsInf(b, 0) {
		return fallback
	}
	if math.Abs(b) <= Epsilon {
		return fallback
	}
	return a / b
}

// Clamp 将x限制在[lo, hi]区间内
// 规则:
//   - lo > hi 时返回ErrInvalidRange
//   - NaN映射为lo
//   - +Inf映射为hi, -Inf映射为lo
func Clamp(x, lo, hi float64) (float64, error) {
	if lo > hi {
		return 0, fmt.Errorf("%w: [%v, %v]", ErrInvalidRange, lo, hi)
	}
	if math.IsNaN(x) {
		return lo, nil
	}
	if math.IsInf(x, 1) {
		return hi, nil
	}
	if math.IsInf(x, -1) {
		return lo, nil
	}
	return math.Max(lo, math.Min(hi, x)), nil
}

// ClampInt 整数版Clamp
// 调用方保证lo <= hi(编译期已知的配置边界)
func ClampInt(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// FleschResult Flesch可读性评分结果
type FleschResult struct {
	Valid  bool   `json:"valid"`            // 是否有效
	Value  int    `json:"value"`            // 评分(0-100)
	Reason string `json:"reason,omitempty"` // 无效原因
}

// FleschScore 计算Flesch可读性评分
// 无效条件: words < 5 或 sentences < 1
// 公式: 206.835 - 1.015*(words/sentences) - 84.6*(syllables/words)
// 结果限制到[0, 100]并四舍五入
func FleschScore(words, sentences, syllables int) FleschResult {
	if words < 5 {
		return FleschResult{Valid: false, Reason: "单词数不足(少于5)"}
	}
	if sentences < 1 {
		return FleschResult{Valid: false, Reason: "句子数不足(少于1)"}
	}

	raw := 206.835 - 1.015*(float64(words)/float64(sentences)) - 84.6*(float64(syllables)/float64(words))
	clamped, _ := Clamp(raw, 0, 100)
	return FleschResult{Valid: true, Value: int(math.Round(clamped))}
}

// CountSyllables 估算单词音节数
// 启发式规则:
//   - 统计元音组数量(aeiouy)
//   - 词尾e为哑音,减1(以le结尾除外)
//   - 辅音+le结尾加1
//   - ia/ious/eous结尾加1
//
// 空字符串返回0, 非空字符串至少返回1
func CountSyllables(word string) int {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return 0
	}

	isVowel := func(c byte) bool {
		return strings.IndexByte("aeiouy", c) >= 0
	}

	// 统计元音组
	count := 0
	inGroup := false
	alphabetic := false
	for i := 0; i < len(word); i++ {
		c := word[i]
		if c < 'a' || c > 'z' {
			inGroup = false
			continue
		}
		alphabetic = true
		if isVowel(c) {
			if !inGroup {
				count++
				inGroup = true
			}
		} else {
			inGroup = false
		}
	}

	// 非字母输入按1个音节处理
	if !alphabetic {
		return 1
	}

	// 哑音e: 词尾e减1, 但le结尾除外
	if strings.HasSuffix(word, "e") && !strings.HasSuffix(word, "le") {
		count--
	}

	// 辅音+le结尾加1
	if len(word) >= 3 && strings.HasSuffix(word, "le") && !isVowel(word[len(word)-3]) {
		count++
	}

	// ia/ious/eous结尾加1
	if strings.HasSuffix(word, "ia") || strings.HasSuffix(word, "ious") || strings.HasSuffix(word, "eous") {
		count++
	}

	if count < 1 {
		count = 1
	}
	return count
}

// TextDensity 计算文本密度(文本长度/HTML长度)
// 返回值:
//   - 负数或NaN输入: ok=false
//   - 两者都为0: 0, ok=true
//   - htmlLen为0且textLen>0: ok=false
func TextDensity(textLen, htmlLen float64) (float64, bool) {
	if math.IsNaN(textLen) || math.IsNaN(htmlLen) || textLen < 0 || htmlLen < 0 {
		return 0, false
	}
	if textLen == 0 && htmlLen == 0 {
		return 0, true
	}
	if htmlLen == 0 {
		return 0, false
	}
	return textLen / htmlLen, true
}

// TextMetrics 文本质量指标
type TextMetrics struct {
	WordCount           int     `json:"word_count"`             // 单词数
	ParagraphCount      int     `json:"paragraph_count"`        // 段落数
	AvgWordsPerSentence float64 `json:"avg_words_per_sentence"` // 平均句长
}

// QualityScore 计算文本质量评分
// 在基础分上叠加加分项, 结果限制到[0, 100]:
//   - 单词数 >= 100: +10, >= 500: 再+10
//   - 段落数 >= 3: +5
//   - 平均句长在[10, 25]区间: +10, 超过35: -10
func QualityScore(m TextMetrics, base float64) float64 {
	score := base

	if m.WordCount >= 100 {
		score += 10
	}
	if m.WordCount >= 500 {
		score += 10
	}
	if m.ParagraphCount >= 3 {
		score += 5
	}
	if m.AvgWordsPerSentence >= 10 && m.AvgWordsPerSentence <= 25 {
		score += 10
	} else if m.AvgWordsPerSentence > 35 {
		score -= 10
	}

	clamped, _ := Clamp(score, 0, 100)
	return clamped
}

// ReadingTime 估算阅读时间(分钟, 向上取整)
// words为0或wpm<=0时ok=false
func ReadingTime(words, wpm int) (int, bool) {
	if words == 0 || wpm <= 0 {
		return 0, false
	}
	return int(math.Ceil(float64(words) / float64(wpm))), true
}

// byteUnits 字节单位(base 1024)
var byteUnits = []string{"Bytes", "KB", "MB", "GB", "TB", "PB"}

// FormatBytes 格式化字节数为人类可读字符串
// 规则:
//   - 负数或非有限数: ok=false
//   - 0: "0 Bytes"
//   - 选择使数值<1024的最高单位
//   - 数值<10保留2位小数, <100保留1位, 否则取整
func FormatBytes(n float64) (string, bool) {
	if math.IsNaN(n) || math.IsInf(n, 0) || n < 0 {
		return "", false
	}
	if n == 0 {
		return "0 Bytes", true
	}

	value := n
	unit := 0
	for value >= 1024 && unit < len(byteUnits)-1 {
		value /= 1024
		unit++
	}

	var formatted string
	switch {
	case value < 10:
		formatted = fmt.Sprintf("%.2f", value)
	case value < 100:
		formatted = fmt.Sprintf("%.1f", value)
	default:
		formatted = fmt.Sprintf("%.0f", value)
	}
	return formatted + " " + byteUnits[unit], true
}

// Rate 成功率
type Rate struct {
	Rate       float64 `json:"rate"`       // 比率[0, 1]
	Percentage string  `json:"percentage"` // 百分比字符串(截断到1位小数)
}

// SuccessRate 计算成功率
// successful和total都为0时返回{0, "0.0"}
// 百分比截断(而非四舍五入)到1位小数
func SuccessRate(successful, total int) Rate {
	rate := SafeDivide(float64(successful), float64(total), 0)
	rate, _ = Clamp(rate, 0, 1)

	// 截断到1位小数: 66.66% -> "66.6"
	truncated := math.Floor(rate*1000) / 10
	return Rate{
		Rate:       rate,
		Percentage: fmt.Sprintf("%.1f", truncated),
	}
}

// HashSuffix 生成输入的SHA-256摘要十六进制前缀
// length限制到[8, 64]
func HashSuffix(input string, length int) string {
	length = ClampInt(length, 8, 64)
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])[:length]
}

// RateLimitWait 计算速率限制等待时间
// 返回max(minWait, interval - elapsed)
func RateLimitWait(interval, elapsed, minWait time.Duration) time.Duration {
	wait := interval - elapsed
	if wait < minWait {
		wait = minWait
	}
	return wait
}

// SafeCompare 带精度的浮点比较
// |a-b| <= eps时返回0, 否则返回sign(a-b)
func SafeCompare(a, b, eps float64) int {
	if math.Abs(a-b) <= eps {
		return 0
	}
	if a > b {
		return 1
	}
	return -1
}

// ExceedsThreshold 判断v是否超过阈值t(带精度)
func ExceedsThreshold(v, t float64) bool {
	return v-t > Epsilon
}
