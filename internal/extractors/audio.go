package extractors

import (
	"context"
	"fmt"
	"time"

	"github.com/RecoveryAshes/MediaHarvest/internal/browser"
	"github.com/RecoveryAshes/MediaHarvest/internal/models"
	"github.com/RecoveryAshes/MediaHarvest/internal/utils"
)

// webAudioProbeJS 在文档加载前包裹Audio与AudioContext构造, 记录创建
const webAudioProbeJS = `() => {
	if (window.__mhAudioProbe) return;
	window.__mhAudioProbe = [];

	const OrigAudio = window.Audio;
	if (OrigAudio) {
		window.Audio = function(src) {
			const audio = new OrigAudio(src);
			if (src) window.__mhAudioProbe.push(String(src));
			return audio;
		};
		window.Audio.prototype = OrigAudio.prototype;
	}

	['AudioContext', 'webkitAudioContext'].forEach(name => {
		const Orig = window[name];
		if (!Orig) return;
		window[name] = function(...args) {
			const ctx = new Orig(...args);
			window.__mhAudioProbe.push('context:' + name);
			return ctx;
		};
		window[name].prototype = Orig.prototype;
	});
}`

// drainWebAudioJS 取走Web Audio探针记录的媒体地址
const drainWebAudioJS = `() => {
	const out = (window.__mhAudioProbe || [])
		.filter(x => x.startsWith('http'))
		.map(url => ({url, kind: 'web-audio'}));
	window.__mhAudioProbe = (window.__mhAudioProbe || []).filter(x => !x.startsWith('http'));
	document.querySelectorAll('audio').forEach(a => {
		const src = a.currentSrc || a.src;
		if (src && src.startsWith('http')) out.push({url: src, kind: 'web-audio'});
	});
	return out;
}`

// scanAudioJS 扫描DOM中的音频候选
const scanAudioJS = `() => {
	const out = [];
	const push = (url, extra) => {
		if (url && url.startsWith('http')) out.push(Object.assign({url}, extra || {}));
	};

	document.querySelectorAll('audio').forEach(audio => {
		push(audio.currentSrc || audio.src);
		audio.querySelectorAll('source').forEach(src => push(src.src, {mime: src.type || ''}));
	});

	document.querySelectorAll('[data-audio], [data-track], [data-podcast], [data-episode]').forEach(el => {
		for (const attr of el.attributes) {
			if (attr.name.startsWith('data-') && /^https?:\/\//.test(attr.value)) push(attr.value);
		}
	});

	document.querySelectorAll('a[href]').forEach(a => {
		if (/\.(mp3|wav|ogg|flac|m4a|aac|wma|opus)(\?|#|$)/i.test(a.href)) {
			push(a.href, {caption: (a.textContent || '').trim().slice(0, 100)});
		}
	});

	return out;
}`

// podcastFeedsJS 播客feed: rss/xml类型的link与.rss或/feed锚点
const podcastFeedsJS = `() => {
	const out = [];
	const push = url => { if (url && url.startsWith('http')) out.push({url, kind: 'feed'}); };
	document.querySelectorAll('link[type*="rss"], link[type*="xml"]').forEach(l => push(l.href));
	document.querySelectorAll('a[href]').forEach(a => {
		if (/\.rss(\?|#|$)/i.test(a.href) || /\/feed\/?(\?|#|$)/i.test(a.href)) push(a.href);
	});
	return out;
}`

// audioEmbedsJS 音频平台嵌入: iframe与平台外链
const audioEmbedsJS = `() => {
	const out = [];
	document.querySelectorAll('iframe[src]').forEach(f => {
		if (f.src.startsWith('http')) out.push({url: f.src});
	});
	document.querySelectorAll('a[href]').forEach(a => {
		if (a.href.startsWith('http')) out.push({url: a.href});
	});
	return out;
}`

// AudioExtractor 音频提取器
type AudioExtractor struct {
	*Base
	opts    models.AudioOptions
	capture *Capture
}

// NewAudioExtractor 构造音频提取器
func NewAudioExtractor(session *browser.Session, opts models.AudioOptions, closeBrowser bool) *AudioExtractor {
	opts.Clamp()
	return &AudioExtractor{
		Base: NewBase("音频", session, opts.ExtractorOptions, closeBrowser),
		opts: opts,
	}
}

// Run 执行完整提取生命周期
func (e *AudioExtractor) Run(ctx context.Context, target string) error {
	return e.Base.Run(ctx, target, e)
}

// Initialize 注入Web Audio探针后就绪会话
// 探针用EvalOnNewDocument保证在页面脚本之前生效
func (e *AudioExtractor) Initialize(ctx context.Context, target string) error {
	if e.opts.ScanWebAudioAPI && e.page() != nil {
		if _, err := e.page().EvalOnNewDocument(webAudioProbeJS); err != nil {
			utils.Warnf("注入Web Audio探针失败: %v", err)
		}
	}

	if err := e.session.Initialize(ctx, target); err != nil {
		return err
	}

	if e.opts.ScanWebAudioAPI {
		// 页面先于会话创建时上面的注入不会执行, 这里兜底安装一次
		if _, err := e.page().Eval(webAudioProbeJS); err != nil {
			utils.Warnf("安装Web Audio探针失败: %v", err)
		}
	}

	if e.opts.MonitorNetwork {
		e.capture = NewCapture(
			func(url string) (string, bool) {
				if IsAudioURL(url) {
					return "", true
				}
				return "", false
			},
			IsAudioMIME,
		)
		if err := e.capture.Install(e.page()); err != nil {
			utils.Warnf("安装音频网络拦截失败: %v", err)
		}
	}
	return nil
}

// Extract 依序执行全部提取阶段
func (e *AudioExtractor) Extract(ctx context.Context) error {
	passes := []pass{
		{"DOM音频扫描", e.domPass},
		{"动态内容观察", e.observationPass},
		{"播放器API", e.playerPass},
		{"嵌入平台", e.platformPass},
		{"播客feed", e.feedPass},
	}
	if e.opts.ScanWebAudioAPI {
		passes = append(passes, pass{"Web Audio探针", e.webAudioPass})
	}
	passes = append(passes, pass{"网络捕获合并", e.drainNetworkPass})
	if e.store != nil {
		passes = append(passes, pass{"批量下载", e.downloadPass})
	}

	e.runPasses(ctx, passes)
	return nil
}

// Cleanup 幂等清理
func (e *AudioExtractor) Cleanup() {
	if e.capture != nil {
		e.capture.Stop()
	}
	e.baseCleanup()
}

func (e *AudioExtractor) domPass(ctx context.Context) error {
	_, err := e.evalItems(scanAudioJS, models.SourceDOM, nil)
	return err
}

func (e *AudioExtractor) observationPass(ctx context.Context) error {
	window := time.Duration(e.opts.ObservationWindowMs) * time.Millisecond
	deadline := time.Now().Add(window)
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		time.Sleep(500 * time.Millisecond)
	}
	return nil
}

func (e *AudioExtractor) playerPass(ctx context.Context) error {
	page := e.page()
	if page == nil {
		return fmt.Errorf("页面不可用")
	}
	for _, detector := range audioPlayerDetectors {
		obj, err := page.Eval(detector.DetectJS)
		if err != nil || !obj.Value.Bool() {
			continue
		}
		utils.Debugf("检测到音频播放器: %s", detector.Name)
		if _, err := e.evalItems(detector.ProbeJS, models.SourcePlayerAPI, nil); err != nil {
			utils.Warnf("音频播放器探测失败 [%s]: %v", detector.Name, err)
		}
	}
	_, err := e.evalItems(genericGlobalProbe(genericAudioGlobals), models.SourcePlayerAPI, nil)
	return err
}

// platformPass 匹配音频平台的iframe与外链
func (e *AudioExtractor) platformPass(ctx context.Context) error {
	obj, err := e.page().Eval(audioEmbedsJS)
	if err != nil {
		return fmt.Errorf("枚举嵌入失败: %w", err)
	}
	for _, entry := range obj.Value.Arr() {
		embedURL := entry.Get("url").Str()
		platform, ok := MatchAudioPlatform(embedURL)
		if !ok {
			continue
		}
		e.AddItem(embedURL, models.ItemMetadata{
			Source:   models.SourceIframe,
			Platform: platform,
		})
	}
	return nil
}

func (e *AudioExtractor) feedPass(ctx context.Context) error {
	_, err := e.evalItems(podcastFeedsJS, models.SourceDOM, nil)
	return err
}

func (e *AudioExtractor) webAudioPass(ctx context.Context) error {
	_, err := e.evalItems(drainWebAudioJS, models.SourcePlayerAPI, nil)
	return err
}

func (e *AudioExtractor) drainNetworkPass(ctx context.Context) error {
	if e.capture == nil {
		return nil
	}
	e.capture.DrainInto(e.Base, models.SourceNetwork)
	return nil
}

func (e *AudioExtractor) downloadPass(ctx context.Context) error {
	_, err := e.DownloadMedia(ctx, nil)
	return err
}

// Export 导出结果, 按音频格式分组
func (e *AudioExtractor) Export() *models.ExportResult {
	return e.ExportResults(GroupAudioURL)
}
