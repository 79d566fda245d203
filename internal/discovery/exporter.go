package discovery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/RecoveryAshes/MediaHarvest/internal/models"
	"github.com/RecoveryAshes/MediaHarvest/internal/utils"
)

// Exporter 把发现循环产物写到outputDir下的多种格式
type Exporter struct {
	outputDir string
}

// NewExporter 构造导出器
func NewExporter(outputDir string) *Exporter {
	return &Exporter{outputDir: outputDir}
}

// ExportAll 写出全部四种格式, 返回首个失败
func (e *Exporter) ExportAll(log []models.InteractionRecord) error {
	if err := e.ExportJSONL(log); err != nil {
		return err
	}
	if err := e.ExportMarkdown(log); err != nil {
		return err
	}
	if err := e.ExportTSV(log); err != nil {
		return err
	}
	return e.ExportCSV(log)
}

// jsonlEnvelope 指令微调格式的信封, 每条交互记录一行
type jsonlEnvelope struct {
	Instruction string                   `json:"instruction"`
	Context     string                   `json:"context"`
	Response    string                   `json:"response"`
	Record      models.InteractionRecord `json:"record"`
}

// ExportJSONL 每行一条带指令信封的交互记录
func (e *Exporter) ExportJSONL(log []models.InteractionRecord) error {
	var sb strings.Builder
	for _, record := range log {
		envelope := jsonlEnvelope{
			Instruction: "识别页面交互后新出现的链接",
			Context: fmt.Sprintf("阶段 %d 执行 %s, 批次大小 %d",
				record.Phase, record.InteractionKind, record.BatchSizeAtTime),
			Response: record.Discovery.URL,
			Record:   record,
		}
		line, err := json.Marshal(envelope)
		if err != nil {
			return fmt.Errorf("序列化JSONL记录失败: %w", err)
		}
		sb.Write(line)
		sb.WriteByte('\n')
	}
	return e.write("discoveries.jsonl", sb.String())
}

// ExportMarkdown 按阶段分组的Markdown摘要
func (e *Exporter) ExportMarkdown(log []models.InteractionRecord) error {
	byPhase := make(map[int][]models.InteractionRecord)
	var phases []int
	for _, record := range log {
		if _, ok := byPhase[record.Phase]; !ok {
			phases = append(phases, record.Phase)
		}
		byPhase[record.Phase] = append(byPhase[record.Phase], record)
	}
	sort.Ints(phases)

	var sb strings.Builder
	sb.WriteString("# 发现摘要\n\n")
	sb.WriteString(fmt.Sprintf("共 %d 条发现, %d 个阶段\n\n", len(log), len(phases)))

	for _, phase := range phases {
		records := byPhase[phase]
		sb.WriteString(fmt.Sprintf("## 阶段 %d (%s, %d 条)\n\n", phase, records[0].InteractionKind, len(records)))
		for _, record := range records {
			text := record.Discovery.AnchorText
			if text == "" {
				text = record.Discovery.URL
			}
			sb.WriteString(fmt.Sprintf("- [%s](%s)\n", text, record.Discovery.URL))
		}
		sb.WriteString("\n")
	}
	return e.write("discoveries.md", sb.String())
}

// ExportTSV 原始转储, 制表符分隔
func (e *Exporter) ExportTSV(log []models.InteractionRecord) error {
	var sb strings.Builder
	sb.WriteString("timestamp\tphase\tinteraction\turl\ttext\ttitle\n")
	for _, record := range log {
		fields := []string{
			strconv.FormatInt(record.Timestamp, 10),
			strconv.Itoa(record.Phase),
			string(record.InteractionKind),
			record.Discovery.URL,
			sanitizeTSV(record.Discovery.AnchorText),
			sanitizeTSV(record.Discovery.Title),
		}
		sb.WriteString(strings.Join(fields, "\t"))
		sb.WriteByte('\n')
	}
	return e.write("discoveries.tsv", sb.String())
}

func sanitizeTSV(s string) string {
	s = strings.ReplaceAll(s, "\t", " ")
	return strings.ReplaceAll(s, "\n", " ")
}

// ExportCSV 固定表头, 值用双引号包裹且内部引号翻倍
// 锚文本中的制表符与换行替换为空格, 保证一条记录占一个物理行
func (e *Exporter) ExportCSV(log []models.InteractionRecord) error {
	var sb strings.Builder
	sb.WriteString("timestamp,phase,interaction,url,text,title\n")
	for _, record := range log {
		fields := []string{
			strconv.FormatInt(record.Timestamp, 10),
			strconv.Itoa(record.Phase),
			string(record.InteractionKind),
			record.Discovery.URL,
			sanitizeTSV(record.Discovery.AnchorText),
			sanitizeTSV(record.Discovery.Title),
		}
		quoted := make([]string, len(fields))
		for i, f := range fields {
			quoted[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
		}
		sb.WriteString(strings.Join(quoted, ","))
		sb.WriteByte('\n')
	}
	return e.write("discoveries.csv", sb.String())
}

func (e *Exporter) write(filename, content string) error {
	if err := os.MkdirAll(e.outputDir, 0755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	path := filepath.Join(e.outputDir, filename)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("写入 %s 失败: %w", filename, err)
	}
	utils.Infof("📄 已导出: %s", path)
	return nil
}
