package extractors

import (
	"context"
	"fmt"
	"regexp"

	"github.com/RecoveryAshes/MediaHarvest/internal/browser"
	"github.com/RecoveryAshes/MediaHarvest/internal/models"
	"github.com/RecoveryAshes/MediaHarvest/internal/utils"
)

// scanDocumentsJS DOM文档扫描: 锚点、object/embed、iframe与下载按钮
// exts为小写扩展名数组
const scanDocumentsJS = `(exts) => {
	const out = [];
	const hasExt = url => exts.some(ext => url.toLowerCase().includes(ext));
	const push = (url, extra) => {
		if (url && url.startsWith('http')) out.push(Object.assign({url}, extra || {}));
	};

	document.querySelectorAll('a[href]').forEach(a => {
		if (hasExt(a.href)) push(a.href, {caption: (a.textContent || '').trim().slice(0, 100)});
	});

	document.querySelectorAll('object[data]').forEach(obj => {
		const data = obj.getAttribute('data') || '';
		if (data.toLowerCase().includes('.pdf')) push(data);
	});
	document.querySelectorAll('embed[src]').forEach(embed => {
		if (embed.src.toLowerCase().includes('.pdf')) push(embed.src);
	});

	document.querySelectorAll('iframe[src]').forEach(f => {
		if (hasExt(f.src)) push(f.src);
	});

	document.querySelectorAll('[download], [data-download], .download-btn, .download-link').forEach(el => {
		push(el.href || el.getAttribute('data-download') || el.getAttribute('data-url'));
	});

	return out;
}`

// viewerDocumentsJS PDF查看器: PDF.js全局、查看器iframe与canvas容器
const viewerDocumentsJS = `() => {
	const out = [];
	const push = (url, extra) => {
		if (url && url.startsWith('http')) out.push(Object.assign({url}, extra || {}));
	};

	try {
		const app = window.PDFViewerApplication;
		if (app && app.url) push(app.url, {kind: 'viewer'});
	} catch (e) {}

	document.querySelectorAll('iframe[src*="pdfjs"], iframe[src*="pdf.js"], iframe[src*="viewer"]').forEach(f => {
		try {
			const params = new URL(f.src).searchParams;
			['file', 'pdf', 'url'].forEach(key => {
				const v = params.get(key);
				if (v) push(decodeURIComponent(v), {kind: 'viewer'});
			});
		} catch (e) {}
	});

	document.querySelectorAll('[data-pdf], [data-url], [data-src]').forEach(el => {
		if (!el.querySelector('canvas')) return;
		['data-pdf', 'data-url', 'data-src'].forEach(attr => {
			push(el.getAttribute(attr), {kind: 'viewer'});
		});
	});

	return out;
}`

// cloudDocumentsJS 云端文档平台的iframe与锚点
const cloudDocumentsJS = `() => {
	const out = [];
	const hosts = ['docs.google.com', 'drive.google.com', 'onedrive.live.com', 'sharepoint.com',
		'dropbox.com', 'app.box.com', 'scribd.com', 'slideshare.net', 'issuu.com'];
	const push = url => {
		if (!url || !url.startsWith('http')) return;
		if (hosts.some(h => url.includes(h))) out.push({url});
	};
	document.querySelectorAll('iframe[src]').forEach(f => push(f.src));
	document.querySelectorAll('a[href]').forEach(a => push(a.href));
	return out;
}`

// dataScriptDocumentsJS data-*属性与内联脚本中的文档URL
const dataScriptDocumentsJS = `(exts) => {
	const out = [];
	const hasExt = url => exts.some(ext => url.toLowerCase().includes(ext));

	document.querySelectorAll('*').forEach(el => {
		for (const attr of el.attributes || []) {
			if (attr.name.startsWith('data-') && /^https?:\/\//.test(attr.value) && hasExt(attr.value)) {
				out.push({url: attr.value});
			}
		}
	});

	const pdfRe = /["'](https?:\/\/[^"']+\.pdf[^"']*)["']/gi;
	document.querySelectorAll('script:not([src])').forEach(s => {
		let m;
		while ((m = pdfRe.exec(s.textContent)) !== null) {
			out.push({url: m[1], kind: 'script'});
		}
	});

	return out;
}`

var googleDocIDRe = regexp.MustCompile(`/d/([\w-]{10,})`)

// DocumentExtractor 文档提取器
type DocumentExtractor struct {
	*Base
	opts    models.DocumentOptions
	formats []string
	exts    []string
	capture *Capture
}

// NewDocumentExtractor 构造文档提取器
// supportedFormats为空时启用全部已知格式
func NewDocumentExtractor(session *browser.Session, opts models.DocumentOptions, closeBrowser bool) *DocumentExtractor {
	opts.Clamp()

	formats := opts.SupportedFormats
	if len(formats) == 0 {
		formats = append(formats, documentFormats...)
	}
	var exts []string
	for _, format := range formats {
		exts = append(exts, documentExtensions[format]...)
	}

	return &DocumentExtractor{
		Base:    NewBase("文档", session, opts.ExtractorOptions, closeBrowser),
		opts:    opts,
		formats: formats,
		exts:    exts,
	}
}

// Run 执行完整提取生命周期
func (e *DocumentExtractor) Run(ctx context.Context, target string) error {
	return e.Base.Run(ctx, target, e)
}

// Initialize 就绪会话并安装文档网络拦截
func (e *DocumentExtractor) Initialize(ctx context.Context, target string) error {
	if err := e.session.Initialize(ctx, target); err != nil {
		return err
	}

	if e.opts.MonitorNetwork {
		e.capture = NewCapture(
			func(url string) (string, bool) {
				if IsDocumentURL(url, e.formats) {
					return "", true
				}
				return "", false
			},
			IsDocumentMIME,
		)
		if err := e.capture.Install(e.page()); err != nil {
			utils.Warnf("安装文档网络拦截失败: %v", err)
		}
	}
	return nil
}

// Extract 依序执行全部提取阶段
func (e *DocumentExtractor) Extract(ctx context.Context) error {
	passes := []pass{
		{"DOM文档扫描", e.domPass},
	}
	if e.opts.DetectViewers {
		passes = append(passes, pass{"PDF查看器", e.viewerPass})
	}
	passes = append(passes,
		pass{"云端文档平台", e.cloudPass},
		pass{"数据与脚本", e.dataScriptPass},
		pass{"网络捕获合并", e.drainNetworkPass},
	)
	if e.store != nil {
		passes = append(passes, pass{"批量下载", e.downloadPass})
	}

	e.runPasses(ctx, passes)
	return nil
}

// Cleanup 幂等清理
func (e *DocumentExtractor) Cleanup() {
	if e.capture != nil {
		e.capture.Stop()
	}
	e.baseCleanup()
}

func (e *DocumentExtractor) domPass(ctx context.Context) error {
	page := e.page()
	if page == nil {
		return fmt.Errorf("页面不可用")
	}
	obj, err := page.Eval(scanDocumentsJS, e.exts)
	if err != nil {
		return fmt.Errorf("DOM文档扫描失败: %w", err)
	}
	for _, entry := range obj.Value.Arr() {
		e.AddItem(entry.Get("url").Str(), models.ItemMetadata{
			Source:  models.SourceDOM,
			Caption: entry.Get("caption").Str(),
			Kind:    entry.Get("kind").Str(),
		})
	}
	return nil
}

func (e *DocumentExtractor) viewerPass(ctx context.Context) error {
	_, err := e.evalItems(viewerDocumentsJS, models.SourceDOM, nil)
	return err
}

// cloudPass 云端平台: Google文档合成PDF导出URL, 其余记录原始地址
func (e *DocumentExtractor) cloudPass(ctx context.Context) error {
	page := e.page()
	if page == nil {
		return fmt.Errorf("页面不可用")
	}
	obj, err := page.Eval(cloudDocumentsJS)
	if err != nil {
		return fmt.Errorf("枚举云端文档失败: %w", err)
	}
	for _, entry := range obj.Value.Arr() {
		rawURL := entry.Get("url").Str()
		item := models.ItemMetadata{Source: models.SourceIframe, Platform: "cloud"}

		if match := googleDocIDRe.FindStringSubmatch(rawURL); match != nil {
			exportURL := fmt.Sprintf("https://docs.google.com/document/d/%s/export?format=pdf", match[1])
			item.Platform = "google-docs"
			e.AddItem(exportURL, item)
			continue
		}
		e.AddItem(rawURL, item)
	}
	return nil
}

func (e *DocumentExtractor) dataScriptPass(ctx context.Context) error {
	page := e.page()
	if page == nil {
		return fmt.Errorf("页面不可用")
	}
	obj, err := page.Eval(dataScriptDocumentsJS, e.exts)
	if err != nil {
		return fmt.Errorf("数据脚本扫描失败: %w", err)
	}
	for _, entry := range obj.Value.Arr() {
		source := models.SourceDOM
		if entry.Get("kind").Str() == "script" {
			source = models.SourceScript
		}
		e.AddItem(entry.Get("url").Str(), models.ItemMetadata{Source: source})
	}
	return nil
}

func (e *DocumentExtractor) drainNetworkPass(ctx context.Context) error {
	if e.capture == nil {
		return nil
	}
	e.capture.DrainInto(e.Base, models.SourceNetwork)
	return nil
}

func (e *DocumentExtractor) downloadPass(ctx context.Context) error {
	_, err := e.DownloadMedia(ctx, nil)
	return err
}

// Export 导出结果, 按文档格式分组
func (e *DocumentExtractor) Export() *models.ExportResult {
	return e.ExportResults(GroupDocumentURL)
}
