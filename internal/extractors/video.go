package extractors

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/ysmood/gson"

	"github.com/RecoveryAshes/MediaHarvest/internal/browser"
	"github.com/RecoveryAshes/MediaHarvest/internal/models"
	"github.com/RecoveryAshes/MediaHarvest/internal/utils"
)

// scanVideosJS 扫描DOM中的视频候选
// root参数控制是否递归同源frame与Shadow DOM
const scanVideosJS = `(deep) => {
	const out = [];
	const push = (url, extra) => {
		if (!url) return;
		if (!url.startsWith('http') && !url.startsWith('blob:')) return;
		out.push(Object.assign({url}, extra || {}));
	};

	const scanDoc = doc => {
		doc.querySelectorAll('video').forEach(video => {
			push(video.currentSrc || video.src);
			for (const attr of video.attributes) {
				if (attr.name.startsWith('data-') && /^(https?|blob):/.test(attr.value)) push(attr.value);
			}
			video.querySelectorAll('source').forEach(src => {
				push(src.src, {mime: src.type || '', quality: src.getAttribute('media') || ''});
			});
			video.querySelectorAll('track').forEach(track => {
				push(track.src, {kind: 'subtitles', quality: track.srclang || ''});
			});
		});

		doc.querySelectorAll('[data-video], [data-video-src], [data-video-url], [data-stream], [data-hls], [data-dash]').forEach(el => {
			for (const attr of el.attributes) {
				if (attr.name.startsWith('data-') && /^(https?|blob):/.test(attr.value)) push(attr.value);
			}
		});

		doc.querySelectorAll('embed[src]').forEach(embed => push(embed.src));
		doc.querySelectorAll('object[data]').forEach(obj => push(obj.getAttribute('data')));

		if (!deep) return;

		// Shadow DOM
		doc.querySelectorAll('*').forEach(el => {
			if (el.shadowRoot) {
				try {
					el.shadowRoot.querySelectorAll('video, source').forEach(m => {
						push(m.currentSrc || m.src, {kind: 'shadow'});
					});
				} catch (e) {}
			}
		});
	};

	scanDoc(document);

	if (deep) {
		// 同源frame, 跨域访问抛错则跳过
		for (let i = 0; i < window.frames.length; i++) {
			try {
				scanDoc(window.frames[i].document);
			} catch (e) {}
		}
	}
	return out;
}`

// videoMutationObserverJS 排队新插入的video/source元素
const videoMutationObserverJS = `() => {
	if (window.__mhNewVideos) return;
	window.__mhNewVideos = [];
	new MutationObserver(mutations => {
		mutations.forEach(m => {
			m.addedNodes.forEach(node => {
				const tag = node.tagName;
				if ((tag === 'VIDEO' || tag === 'SOURCE') && node.src) window.__mhNewVideos.push(node.src);
				if (node.querySelectorAll) {
					node.querySelectorAll('video, source').forEach(v => {
						const src = v.currentSrc || v.src;
						if (src) window.__mhNewVideos.push(src);
					});
				}
			});
		});
	}).observe(document.body, {childList: true, subtree: true});
}`

const drainNewVideosJS = `() => {
	const out = (window.__mhNewVideos || []).map(url => ({url}));
	window.__mhNewVideos = [];
	return out;
}`

// iframesJS 枚举全部iframe地址
const iframesJS = `() => {
	const out = [];
	document.querySelectorAll('iframe[src]').forEach(f => {
		if (f.src.startsWith('http')) out.push({url: f.src});
	});
	return out;
}`

// subtitlesJS 字幕来源: track元素、data-*字段与字幕扩展名锚点
const subtitlesJS = `() => {
	const out = [];
	const push = url => { if (url && url.startsWith('http')) out.push({url, kind: 'subtitles'}); };
	document.querySelectorAll('track[src]').forEach(t => push(t.src));
	document.querySelectorAll('[data-captions], [data-subtitles], [data-tracks]').forEach(el => {
		['data-captions', 'data-subtitles', 'data-tracks'].forEach(attr => {
			const v = el.getAttribute(attr);
			if (!v) return;
			try {
				const parsed = JSON.parse(v);
				(Array.isArray(parsed) ? parsed : [parsed]).forEach(entry => {
					push(typeof entry === 'string' ? entry : entry && (entry.src || entry.file || entry.url));
				});
			} catch (e) {
				push(v);
			}
		});
	});
	document.querySelectorAll('a[href]').forEach(a => {
		if (/\.(vtt|srt|sub)(\?|#|$)/i.test(a.href)) push(a.href);
	});
	return out;
}`

// audioTracksJS 枚举video元素上的音轨
const audioTracksJS = `() => {
	const out = [];
	document.querySelectorAll('video').forEach(v => {
		const tracks = v.audioTracks;
		if (!tracks) return;
		for (let i = 0; i < tracks.length; i++) {
			const t = tracks[i];
			out.push({url: (v.currentSrc || v.src || '') , kind: 'audio-track', quality: t.language || t.label || String(i)});
		}
	});
	return out.filter(x => x.url);
}`

// thumbnailsJS 视频缩略图来源
const thumbnailsJS = `() => {
	const out = [];
	const push = url => { if (url && url.startsWith('http')) out.push({url, kind: 'thumbnail'}); };
	document.querySelectorAll('video[poster]').forEach(v => push(v.poster));
	document.querySelectorAll('[data-poster], [data-thumbnail], [data-preview]').forEach(el => {
		['data-poster', 'data-thumbnail', 'data-preview'].forEach(attr => push(el.getAttribute(attr)));
	});
	document.querySelectorAll('meta[property="og:video:thumbnail"], meta[name="twitter:image"]').forEach(m => push(m.content));
	return out;
}`

var qualityHeightRe = regexp.MustCompile(`(\d{3,4})p`)

// VideoExtractor 视频提取器
type VideoExtractor struct {
	*Base
	opts    models.VideoOptions
	capture *Capture
}

// NewVideoExtractor 构造视频提取器
func NewVideoExtractor(session *browser.Session, opts models.VideoOptions, closeBrowser bool) *VideoExtractor {
	opts.Clamp()
	return &VideoExtractor{
		Base: NewBase("视频", session, opts.ExtractorOptions, closeBrowser),
		opts: opts,
	}
}

// Run 执行完整提取生命周期
func (e *VideoExtractor) Run(ctx context.Context, target string) error {
	return e.Base.Run(ctx, target, e)
}

// Initialize 就绪会话并安装流媒体网络拦截与DOM观察器
func (e *VideoExtractor) Initialize(ctx context.Context, target string) error {
	if err := e.session.Initialize(ctx, target); err != nil {
		return err
	}

	if e.opts.MonitorNetwork {
		e.capture = NewCapture(
			func(url string) (string, bool) {
				if IsSubtitleURL(url) {
					return "subtitles", true
				}
				if IsVideoURL(url) {
					return "", true
				}
				return "", false
			},
			IsVideoMIME,
		)
		if err := e.capture.Install(e.page()); err != nil {
			utils.Warnf("安装视频网络拦截失败: %v", err)
		}
	}
	if _, err := e.page().Eval(videoMutationObserverJS); err != nil {
		utils.Warnf("安装视频DOM观察器失败: %v", err)
	}
	return nil
}

// Extract 依序执行全部提取阶段
func (e *VideoExtractor) Extract(ctx context.Context) error {
	passes := []pass{
		{"DOM视频扫描", e.domPass},
		{"动态内容观察", e.observationPass},
	}
	if e.opts.ScanShadowDOM {
		passes = append(passes, pass{"深度扫描", e.deepScanPass})
	}
	passes = append(passes,
		pass{"播放器API", e.playerPass},
		pass{"嵌入平台", e.platformPass},
	)
	if e.opts.ExtractSubtitles {
		passes = append(passes, pass{"字幕", e.subtitlesPass})
	}
	if e.opts.ExtractAudioTracks {
		passes = append(passes, pass{"音轨", e.audioTracksPass})
	}
	if e.opts.ExtractThumbnails {
		passes = append(passes, pass{"缩略图", e.thumbnailsPass})
	}
	passes = append(passes, pass{"网络捕获合并", e.drainNetworkPass})
	if e.store != nil {
		passes = append(passes, pass{"批量下载", e.downloadPass})
	}

	e.runPasses(ctx, passes)
	return nil
}

// Cleanup 幂等清理
func (e *VideoExtractor) Cleanup() {
	if e.capture != nil {
		e.capture.Stop()
	}
	e.baseCleanup()
}

func (e *VideoExtractor) domPass(ctx context.Context) error {
	return e.scanDOM(false)
}

func (e *VideoExtractor) deepScanPass(ctx context.Context) error {
	return e.scanDOM(true)
}

func (e *VideoExtractor) scanDOM(deep bool) error {
	page := e.page()
	if page == nil {
		return fmt.Errorf("页面不可用")
	}
	obj, err := page.Eval(scanVideosJS, deep)
	if err != nil {
		return fmt.Errorf("DOM视频扫描失败: %w", err)
	}

	for _, entry := range obj.Value.Arr() {
		source := models.SourceDOM
		if entry.Get("kind").Str() == "shadow" {
			source = models.SourceShadowDOM
		}
		e.AddItem(entry.Get("url").Str(), models.ItemMetadata{
			Source:   source,
			MIMEType: entry.Get("mime").Str(),
			Quality:  entry.Get("quality").Str(),
			Kind:     entry.Get("kind").Str(),
		})
	}
	return nil
}

// observationPass 等待观察窗口让动态内容就位, 期间合并观察器发现
func (e *VideoExtractor) observationPass(ctx context.Context) error {
	window := time.Duration(e.opts.ObservationWindowMs) * time.Millisecond
	deadline := time.Now().Add(window)
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		time.Sleep(500 * time.Millisecond)
		if _, err := e.evalItems(drainNewVideosJS, models.SourceDOM, IsVideoURL); err != nil {
			utils.Debugf("读取视频观察器失败: %v", err)
		}
	}
	return nil
}

// playerPass 枚举已知播放器运行时, 附带质量偏好筛选
func (e *VideoExtractor) playerPass(ctx context.Context) error {
	for _, detector := range videoPlayerDetectors {
		obj, err := e.page().Eval(detector.DetectJS)
		if err != nil || !obj.Value.Bool() {
			continue
		}
		utils.Debugf("检测到播放器: %s", detector.Name)

		probe, err := e.page().Eval(detector.ProbeJS)
		if err != nil {
			utils.Warnf("播放器探测失败 [%s]: %v", detector.Name, err)
			continue
		}
		e.addProbedItems(probe.Value.Arr())
	}

	// 泛化全局名
	obj, err := e.page().Eval(genericGlobalProbe(genericVideoGlobals))
	if err == nil {
		e.addProbedItems(obj.Value.Arr())
	}
	return nil
}

// addProbedItems 合并播放器探测结果, 按质量偏好过滤
func (e *VideoExtractor) addProbedItems(entries []gson.JSON) {
	type probed struct {
		url     string
		player  string
		quality string
		height  int
	}
	var all []probed
	for _, entry := range entries {
		p := probed{
			url:     entry.Get("url").Str(),
			player:  entry.Get("player").Str(),
			quality: entry.Get("quality").Str(),
		}
		if p.url == "" {
			continue
		}
		p.height = qualityHeight(p.quality)
		all = append(all, p)
	}

	// 质量偏好: highest/lowest时每个播放器只保留极值质量, 无质量标签的保留
	if e.opts.QualityPreference != models.QualityAll {
		best := make(map[string]int)
		for _, p := range all {
			if p.height < 0 {
				continue
			}
			current, ok := best[p.player]
			if !ok {
				best[p.player] = p.height
				continue
			}
			if e.opts.QualityPreference == models.QualityHighest && p.height > current {
				best[p.player] = p.height
			}
			if e.opts.QualityPreference == models.QualityLowest && p.height < current {
				best[p.player] = p.height
			}
		}
		filtered := all[:0]
		for _, p := range all {
			if p.height < 0 || best[p.player] == p.height {
				filtered = append(filtered, p)
			}
		}
		all = filtered
	}

	for _, p := range all {
		e.AddItem(p.url, models.ItemMetadata{
			Source:  models.SourcePlayerAPI,
			Player:  p.player,
			Quality: p.quality,
		})
	}
}

func (e *VideoExtractor) platformPass(ctx context.Context) error {
	obj, err := e.page().Eval(iframesJS)
	if err != nil {
		return fmt.Errorf("枚举iframe失败: %w", err)
	}
	for _, entry := range obj.Value.Arr() {
		iframeURL := entry.Get("url").Str()
		platform, embedURL, ok := MatchVideoPlatform(iframeURL)
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

func (e *VideoExtractor) subtitlesPass(ctx context.Context) error {
	_, err := e.evalItems(subtitlesJS, models.SourceDOM, nil)
	return err
}

func (e *VideoExtractor) audioTracksPass(ctx context.Context) error {
	_, err := e.evalItems(audioTracksJS, models.SourceDOM, nil)
	return err
}

func (e *VideoExtractor) thumbnailsPass(ctx context.Context) error {
	_, err := e.evalItems(thumbnailsJS, models.SourceDOM, nil)
	return err
}

func (e *VideoExtractor) drainNetworkPass(ctx context.Context) error {
	if e.capture == nil {
		return nil
	}
	e.capture.DrainInto(e.Base, models.SourceNetwork)
	return nil
}

func (e *VideoExtractor) downloadPass(ctx context.Context) error {
	_, err := e.DownloadMedia(ctx, nil)
	return err
}

// Export 导出结果, 按流媒体类型分组
func (e *VideoExtractor) Export() *models.ExportResult {
	return e.ExportResults(GroupVideoURL)
}

// qualityHeight 解析"720p"形式的质量标签, 未知返回-1
func qualityHeight(quality string) int {
	match := qualityHeightRe.FindStringSubmatch(quality)
	if match == nil {
		return -1
	}
	h, err := strconv.Atoi(match[1])
	if err != nil {
		return -1
	}
	return h
}
