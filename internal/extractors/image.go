package extractors

import (
	"context"
	"fmt"
	"time"

	"github.com/RecoveryAshes/MediaHarvest/internal/browser"
	"github.com/RecoveryAshes/MediaHarvest/internal/models"
	"github.com/RecoveryAshes/MediaHarvest/internal/utils"
)

// metaImagesJS 社交/元数据图片: OpenGraph, Twitter Cards, 图标, JSON-LD
const metaImagesJS = `() => {
	const out = [];
	const push = (url, kind) => { if (url && url.startsWith('http')) out.push({url, kind}); };
	document.querySelectorAll('meta[property="og:image"], meta[property="og:image:url"], meta[name="twitter:image"], meta[name="twitter:image:src"]')
		.forEach(m => push(m.content, 'social'));
	document.querySelectorAll('link[rel~="icon"], link[rel="apple-touch-icon"], link[rel="apple-touch-icon-precomposed"]')
		.forEach(l => push(l.href, 'icon'));
	document.querySelectorAll('script[type="application/ld+json"]').forEach(s => {
		try {
			const data = JSON.parse(s.textContent);
			const walk = obj => {
				if (!obj || typeof obj !== 'object') return;
				['image', 'logo'].forEach(key => {
					const v = obj[key];
					if (typeof v === 'string') push(v, 'social');
					else if (v && typeof v.url === 'string') push(v.url, 'social');
					else if (Array.isArray(v)) v.forEach(x => push(typeof x === 'string' ? x : x && x.url, 'social'));
				});
				Object.values(obj).forEach(walk);
			};
			walk(data);
		} catch (e) {}
	});
	return out;
}`

// scanImagesJS 扫描当前DOM的图片候选
// 覆盖img各来源属性、srcset、picture源、背景图、figure与懒加载容器
const scanImagesJS = `() => {
	const out = [];
	const ctxOf = el => {
		const classes = [];
		let node = el;
		for (let i = 0; node && i < 4; i++) {
			if (node.className && typeof node.className === 'string') classes.push(node.className);
			if (node.tagName) classes.push(node.tagName.toLowerCase());
			node = node.parentElement;
		}
		return classes.join(' ');
	};
	const push = (url, el, extra) => {
		if (!url || (!url.startsWith('http') && !url.startsWith('data:image/'))) return;
		out.push(Object.assign({
			url,
			width: el && el.naturalWidth || 0,
			height: el && el.naturalHeight || 0,
			alt: (el && el.alt) || '',
			context: el ? ctxOf(el) : '',
		}, extra || {}));
	};

	document.querySelectorAll('img').forEach(img => {
		push(img.currentSrc || img.src, img);
		['data-src', 'data-original', 'data-lazy-src', 'data-srcset'].forEach(attr => {
			const v = img.getAttribute(attr);
			if (v) v.split(',').forEach(part => push(part.trim().split(/\s+/)[0], img));
		});
		(img.getAttribute('srcset') || '').split(',').forEach(part => {
			push(part.trim().split(/\s+/)[0], img);
		});
	});

	document.querySelectorAll('picture source').forEach(src => {
		(src.getAttribute('srcset') || '').split(',').forEach(part => {
			push(part.trim().split(/\s+/)[0], src.parentElement.querySelector('img'));
		});
	});

	document.querySelectorAll('*').forEach(el => {
		const bg = getComputedStyle(el).backgroundImage;
		if (bg && bg !== 'none') {
			const m = bg.match(/url\(["']?([^"')]+)["']?\)/);
			if (m) push(m[1], null, {context: ctxOf(el) + ' background'});
		}
	});

	document.querySelectorAll('figure img').forEach(img => {
		const figcaption = img.closest('figure').querySelector('figcaption');
		push(img.currentSrc || img.src, img, {caption: figcaption ? figcaption.textContent.trim() : ''});
	});

	document.querySelectorAll('[data-bg], [data-background], .lazy, .lazyload, [loading="lazy"]').forEach(el => {
		for (const attr of el.attributes) {
			if (attr.name.startsWith('data-') && /^https?:\/\//.test(attr.value)) {
				push(attr.value, null, {context: ctxOf(el)});
			}
		}
	});

	return out;
}`

// triggerLazyJS 触发懒加载: 滚入视口中心并派发常见唤醒事件
const triggerLazyJS = `() => {
	document.querySelectorAll('img[data-src], img[loading="lazy"], .lazy, .lazyload').forEach(el => {
		try {
			el.scrollIntoView({block: 'center'});
			['mouseenter', 'mouseover', 'touchstart', 'focus'].forEach(type => {
				el.dispatchEvent(new Event(type, {bubbles: true}));
			});
		} catch (e) {}
	});
	window.dispatchEvent(new Event('scroll'));
	window.dispatchEvent(new Event('resize'));
}`

// responsiveImagesJS 显式picture源的响应式变体
const responsiveImagesJS = `() => {
	const out = [];
	document.querySelectorAll('picture source[media], picture source[type]').forEach(src => {
		(src.getAttribute('srcset') || '').split(',').forEach(part => {
			const url = part.trim().split(/\s+/)[0];
			if (url && url.startsWith('http')) {
				out.push({url, kind: 'responsive', quality: src.getAttribute('media') || src.getAttribute('type') || ''});
			}
		});
	});
	return out;
}`

// svgImagesJS 内联SVG序列化为data:URL, 外部use引用单独记录
const svgImagesJS = `() => {
	const out = [];
	document.querySelectorAll('svg').forEach(svg => {
		try {
			const xml = new XMLSerializer().serializeToString(svg);
			out.push({url: 'data:image/svg+xml;base64,' + btoa(unescape(encodeURIComponent(xml))), kind: 'svg'});
		} catch (e) {}
	});
	document.querySelectorAll('svg use').forEach(use => {
		const href = use.getAttribute('href') || use.getAttribute('xlink:href');
		if (href && href.startsWith('http')) out.push({url: href, kind: 'svg'});
	});
	return out;
}`

// canvasImagesJS 两个维度都大于10的canvas快照, 跳过被污染的canvas
const canvasImagesJS = `() => {
	const out = [];
	document.querySelectorAll('canvas').forEach(canvas => {
		if (canvas.width <= 10 || canvas.height <= 10) return;
		try {
			out.push({url: canvas.toDataURL('image/png'), kind: 'canvas', width: canvas.width, height: canvas.height});
		} catch (e) {}
	});
	return out;
}`

// mutationObserverJS 记录动态插入的img元素
const mutationObserverJS = `() => {
	if (window.__mhNewImages) return;
	window.__mhNewImages = [];
	new MutationObserver(mutations => {
		mutations.forEach(m => {
			m.addedNodes.forEach(node => {
				if (node.tagName === 'IMG' && node.src) window.__mhNewImages.push(node.src);
				if (node.querySelectorAll) {
					node.querySelectorAll('img').forEach(img => {
						if (img.src) window.__mhNewImages.push(img.src);
					});
				}
			});
		});
	}).observe(document.body, {childList: true, subtree: true});
}`

// drainNewImagesJS 取走观察器累积的新图片
const drainNewImagesJS = `() => {
	const out = (window.__mhNewImages || []).map(url => ({url}));
	window.__mhNewImages = [];
	return out;
}`

// imagePaginationSelectors "下一页/加载更多"候选选择器
var imagePaginationSelectors = []string{
	`a[rel="next"]`, `.load-more`, `.show-more`, `button.more`,
	`.pagination .next`, `a.next`, `[data-load-more]`,
}

// ImageExtractor 图片提取器
type ImageExtractor struct {
	*Base
	opts    models.ImageOptions
	capture *Capture
}

// NewImageExtractor 构造图片提取器
func NewImageExtractor(session *browser.Session, opts models.ImageOptions, closeBrowser bool) *ImageExtractor {
	opts.Clamp()
	return &ImageExtractor{
		Base: NewBase("图片", session, opts.ExtractorOptions, closeBrowser),
		opts: opts,
	}
}

// Run 执行完整提取生命周期
func (e *ImageExtractor) Run(ctx context.Context, target string) error {
	return e.Base.Run(ctx, target, e)
}

// Initialize 就绪会话并安装网络拦截与DOM观察器
func (e *ImageExtractor) Initialize(ctx context.Context, target string) error {
	if err := e.session.Initialize(ctx, target); err != nil {
		return err
	}

	e.capture = NewCapture(
		func(url string) (string, bool) {
			if IsImageURL(url) {
				return "", true
			}
			return "", false
		},
		func(mime string) bool { return len(mime) > 6 && mime[:6] == "image/" },
	)
	if err := e.capture.Install(e.page()); err != nil {
		utils.Warnf("安装图片网络拦截失败: %v", err)
	}
	if _, err := e.page().Eval(mutationObserverJS); err != nil {
		utils.Warnf("安装DOM观察器失败: %v", err)
	}
	return nil
}

// Extract 依序执行全部提取阶段
func (e *ImageExtractor) Extract(ctx context.Context) error {
	passes := []pass{
		{"社交元数据图片", e.metaPass},
		{"深度滚动扫描", e.depthLoop},
		{"响应式变体", e.responsivePass},
	}
	if e.opts.ExtractSvg {
		passes = append(passes, pass{"内联SVG", e.svgPass})
	}
	if e.opts.ExtractCanvas {
		passes = append(passes, pass{"Canvas快照", e.canvasPass})
	}
	passes = append(passes,
		pass{"分页加载", e.paginationPass},
		pass{"网络捕获合并", e.drainNetworkPass},
	)
	if e.store != nil {
		passes = append(passes, pass{"批量下载", e.downloadPass})
	}

	e.runPasses(ctx, passes)
	return nil
}

// Cleanup 幂等清理
func (e *ImageExtractor) Cleanup() {
	if e.capture != nil {
		e.capture.Stop()
	}
	e.baseCleanup()
}

func (e *ImageExtractor) metaPass(ctx context.Context) error {
	_, err := e.evalItems(metaImagesJS, models.SourceMeta, nil)
	return err
}

// depthLoop 滚动深度循环: 扫描 -> 尺寸过滤 -> 触发懒加载 -> 滚动 -> 稳定性检查
func (e *ImageExtractor) depthLoop(ctx context.Context) error {
	for depth := 0; depth < e.opts.MaxScrolls; depth++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		inserted, err := e.scanCurrentDOM()
		if err != nil {
			return err
		}
		inserted += e.drainMutations()

		if _, err := e.page().Eval(triggerLazyJS); err != nil {
			utils.Debugf("触发懒加载失败: %v", err)
		}

		scrollJS := fmt.Sprintf(`() => window.scrollBy(0, %d)`, e.opts.ScrollStep)
		if _, err := e.page().Eval(scrollJS); err != nil {
			return fmt.Errorf("滚动失败: %w", err)
		}
		time.Sleep(time.Duration(e.opts.ScrollDelayMs) * time.Millisecond)

		// 深度超过3且无新发现时提前退出
		if inserted == 0 && depth > 3 {
			utils.Debugf("图片集合稳定, 深度 %d 提前退出", depth)
			break
		}
	}
	return nil
}

// scanCurrentDOM 扫描当前DOM并应用尺寸过滤, 返回插入数
func (e *ImageExtractor) scanCurrentDOM() (int, error) {
	obj, err := e.page().Eval(scanImagesJS)
	if err != nil {
		return 0, fmt.Errorf("DOM图片扫描失败: %w", err)
	}

	inserted := 0
	for _, entry := range obj.Value.Arr() {
		rawURL := entry.Get("url").Str()
		width := entry.Get("width").Int()
		height := entry.Get("height").Int()

		// 尺寸过滤: 低于下限或图标尺寸的丢弃
		if width > 0 && width < e.opts.MinWidth {
			continue
		}
		if height > 0 && height < e.opts.MinHeight {
			continue
		}
		if e.opts.ExcludeIcons && width > 0 && width < 32 && height > 0 && height < 32 {
			continue
		}

		item := models.ItemMetadata{
			Source:  models.SourceDOM,
			Width:   width,
			Height:  height,
			AltText: entry.Get("alt").Str(),
			Caption: entry.Get("caption").Str(),
		}
		item.Kind = CategorizeImage(item, entry.Get("context").Str())
		if e.AddItem(rawURL, item) {
			inserted++
		}
	}
	return inserted, nil
}

// drainMutations 合并DOM观察器捕获的新图片
func (e *ImageExtractor) drainMutations() int {
	inserted, err := e.evalItems(drainNewImagesJS, models.SourceDOM, IsImageURL)
	if err != nil {
		utils.Debugf("读取DOM观察器失败: %v", err)
		return 0
	}
	return inserted
}

func (e *ImageExtractor) responsivePass(ctx context.Context) error {
	_, err := e.evalItems(responsiveImagesJS, models.SourceDOM, nil)
	return err
}

func (e *ImageExtractor) svgPass(ctx context.Context) error {
	_, err := e.evalItems(svgImagesJS, models.SourceDOM, nil)
	return err
}

func (e *ImageExtractor) canvasPass(ctx context.Context) error {
	_, err := e.evalItems(canvasImagesJS, models.SourceDOM, nil)
	return err
}

// paginationPass 尝试点击"下一页/加载更多", 集合增长则继续
func (e *ImageExtractor) paginationPass(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		clicked := false
		for _, sel := range imagePaginationSelectors {
			clickJS := fmt.Sprintf(`() => {
				const el = document.querySelector(%q);
				if (!el) return false;
				el.click();
				return true;
			}`, sel)
			obj, err := e.page().Eval(clickJS)
			if err == nil && obj.Value.Bool() {
				utils.Debugf("点击分页控件: %s", sel)
				clicked = true
				break
			}
		}
		if !clicked {
			return nil
		}

		time.Sleep(time.Duration(e.opts.StabilizationDelayMs) * time.Millisecond)

		inserted, err := e.scanCurrentDOM()
		if err != nil {
			return err
		}
		if inserted == 0 {
			return nil
		}
	}
}

func (e *ImageExtractor) drainNetworkPass(ctx context.Context) error {
	if e.capture == nil {
		return nil
	}
	e.capture.DrainInto(e.Base, models.SourceNetwork)
	return nil
}

func (e *ImageExtractor) downloadPass(ctx context.Context) error {
	_, err := e.DownloadMedia(ctx, nil)
	return err
}

// Export 导出结果, 按图片类别分组
func (e *ImageExtractor) Export() *models.ExportResult {
	return e.ExportResults(func(url string, item models.ItemMetadata) string {
		if item.Kind != "" {
			return item.Kind
		}
		return CategorizeImage(item, "")
	})
}
