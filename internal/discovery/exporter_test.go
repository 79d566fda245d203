package discovery

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RecoveryAshes/MediaHarvest/internal/models"
)

func sampleLog() []models.InteractionRecord {
	return []models.InteractionRecord{
		{
			ID:              "r1",
			Discovery:       models.Discovery{URL: "https://a.com/1", AnchorText: `他说"你好"`, Title: "第一页"},
			Phase:           0,
			InteractionKind: models.InteractionScroll,
			BatchSizeAtTime: 1,
			Timestamp:       1700000000000,
		},
		{
			ID:              "r2",
			Discovery:       models.Discovery{URL: "https://a.com/2", AnchorText: "带\t制表符\n和换行", Title: ""},
			Phase:           1,
			InteractionKind: models.InteractionPageNext,
			BatchSizeAtTime: 2,
			Timestamp:       1700000001000,
		},
	}
}

func TestExporter_CSVQuoting(t *testing.T) {
	dir := t.TempDir()
	if err := NewExporter(dir).ExportCSV(sampleLog()); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "discoveries.csv"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")

	if lines[0] != "timestamp,phase,interaction,url,text,title" {
		t.Errorf("表头 = %q", lines[0])
	}
	if len(lines) != 3 {
		t.Fatalf("行数 = %d, 期望 3", len(lines))
	}
	// 内部双引号翻倍
	if !strings.Contains(lines[1], `"他说""你好"""`) {
		t.Errorf("引号未翻倍: %q", lines[1])
	}
	if !strings.HasPrefix(lines[1], `"1700000000000","0","scroll"`) {
		t.Errorf("字段未加引号: %q", lines[1])
	}
	// 含换行/制表符的锚文本压成空格, 记录仍占一个物理行
	if !strings.Contains(lines[2], `"带 制表符 和换行"`) {
		t.Errorf("控制字符未替换为空格: %q", lines[2])
	}
}

func TestExporter_JSONL(t *testing.T) {
	dir := t.TempDir()
	if err := NewExporter(dir).ExportJSONL(sampleLog()); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(filepath.Join(dir, "discoveries.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var envelope jsonlEnvelope
		if err := json.Unmarshal(scanner.Bytes(), &envelope); err != nil {
			t.Fatalf("第 %d 行不是合法JSON: %v", count+1, err)
		}
		if envelope.Instruction == "" || envelope.Response == "" {
			t.Errorf("信封字段缺失: %+v", envelope)
		}
		if envelope.Record.ID == "" {
			t.Error("原始记录应嵌入信封")
		}
		count++
	}
	if count != 2 {
		t.Errorf("行数 = %d, 期望 2", count)
	}
}

func TestExporter_TSVSanitizes(t *testing.T) {
	dir := t.TempDir()
	if err := NewExporter(dir).ExportTSV(sampleLog()); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "discoveries.tsv"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("行数 = %d, 期望 3", len(lines))
	}
	// 值内的制表符与换行被替换, 每行恰好6列
	for i, line := range lines[1:] {
		if cols := strings.Count(line, "\t"); cols != 5 {
			t.Errorf("第 %d 行列分隔符数 = %d, 期望 5", i+1, cols)
		}
	}
}

func TestExporter_MarkdownGroupsByPhase(t *testing.T) {
	dir := t.TempDir()
	if err := NewExporter(dir).ExportMarkdown(sampleLog()); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "discoveries.md"))
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if !strings.Contains(content, "## 阶段 0") || !strings.Contains(content, "## 阶段 1") {
		t.Errorf("缺少阶段分组:\n%s", content)
	}
	if strings.Index(content, "## 阶段 0") > strings.Index(content, "## 阶段 1") {
		t.Error("阶段应按序输出")
	}
}

func TestExporter_ExportAll(t *testing.T) {
	dir := t.TempDir()
	if err := NewExporter(dir).ExportAll(sampleLog()); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"discoveries.jsonl", "discoveries.md", "discoveries.tsv", "discoveries.csv"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("缺少导出文件 %s: %v", name, err)
		}
	}
}
