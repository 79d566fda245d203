package extractors

// PlayerDetector 播放器运行时探测描述符
// DetectJS在页面上下文求值返回布尔, ProbeJS返回该播放器可见的媒体项数组
// 每项形如 {url, player, quality?}
type PlayerDetector struct {
	Name     string // 播放器名称, 写入ItemMetadata.Player
	DetectJS string // 存在性探测表达式
	ProbeJS  string // 媒体项枚举函数
}

// videoPlayerDetectors 视频播放器探测表, 按流行度排列
var videoPlayerDetectors = []PlayerDetector{
	{
		Name:     "videojs",
		DetectJS: `() => typeof window.videojs === 'function'`,
		ProbeJS: `() => {
			const out = [];
			try {
				const players = window.videojs.getPlayers ? window.videojs.getPlayers() : {};
				Object.values(players).forEach(p => {
					const src = p.currentSrc && p.currentSrc();
					if (src) out.push({url: src, player: 'videojs'});
				});
			} catch (e) {}
			return out;
		}`,
	},
	{
		Name:     "hlsjs",
		DetectJS: `() => typeof window.Hls === 'function'`,
		ProbeJS: `() => {
			const out = [];
			try {
				document.querySelectorAll('video').forEach(v => {
					const hls = v.hls || (v.player && v.player.hls);
					if (!hls) return;
					if (hls.url) out.push({url: hls.url, player: 'hlsjs'});
					(hls.levels || []).forEach(l => {
						if (l.url && l.url[0]) out.push({url: l.url[0], player: 'hlsjs', quality: (l.height || 0) + 'p'});
					});
					(hls.audioTracks || []).forEach(t => {
						if (t.url) out.push({url: t.url, player: 'hlsjs', quality: 'audio'});
					});
				});
			} catch (e) {}
			return out;
		}`,
	},
	{
		Name:     "dashjs",
		DetectJS: `() => typeof window.dashjs === 'object' && !!window.dashjs`,
		ProbeJS: `() => {
			const out = [];
			try {
				document.querySelectorAll('video').forEach(v => {
					const p = v.dashPlayer || (v.player && v.player.dash);
					if (p && p.getSource) {
						const src = p.getSource();
						if (src) out.push({url: String(src), player: 'dashjs'});
					}
				});
			} catch (e) {}
			return out;
		}`,
	},
	{
		Name:     "shaka",
		DetectJS: `() => typeof window.shaka === 'object' && !!window.shaka`,
		ProbeJS: `() => {
			const out = [];
			try {
				document.querySelectorAll('video').forEach(v => {
					const p = v.shakaPlayer || v.player;
					if (!p || !p.getAssetUri) return;
					const uri = p.getAssetUri();
					if (uri) out.push({url: uri, player: 'shaka'});
					if (p.getVariantTracks) {
						p.getVariantTracks().forEach(t => {
							if (t.height) out.push({url: uri, player: 'shaka', quality: t.height + 'p'});
						});
					}
				});
			} catch (e) {}
			return out;
		}`,
	},
	{
		Name:     "jwplayer",
		DetectJS: `() => typeof window.jwplayer === 'function'`,
		ProbeJS: `() => {
			const out = [];
			try {
				const p = window.jwplayer();
				const playlist = (p.getPlaylist && p.getPlaylist()) || [];
				playlist.forEach(entry => {
					if (entry.file) out.push({url: entry.file, player: 'jwplayer'});
					(entry.sources || []).forEach(s => {
						if (s.file) out.push({url: s.file, player: 'jwplayer', quality: s.label || ''});
					});
					(entry.tracks || []).forEach(t => {
						if (t.file) out.push({url: t.file, player: 'jwplayer', quality: 'track'});
					});
				});
				if (p.getQualityLevels) {
					(p.getQualityLevels() || []).forEach(l => {
						if (l.file) out.push({url: l.file, player: 'jwplayer', quality: l.label || ''});
					});
				}
			} catch (e) {}
			return out;
		}`,
	},
	{
		Name:     "plyr",
		DetectJS: `() => typeof window.Plyr === 'function'`,
		ProbeJS: `() => {
			const out = [];
			try {
				document.querySelectorAll('.plyr video, .plyr audio, video.plyr, audio.plyr').forEach(m => {
					if (m.currentSrc || m.src) out.push({url: m.currentSrc || m.src, player: 'plyr'});
				});
			} catch (e) {}
			return out;
		}`,
	},
	{
		Name:     "flowplayer",
		DetectJS: `() => typeof window.flowplayer === 'function'`,
		ProbeJS: `() => {
			const out = [];
			try {
				document.querySelectorAll('.flowplayer video, .fp-engine').forEach(v => {
					if (v.src) out.push({url: v.src, player: 'flowplayer'});
				});
			} catch (e) {}
			return out;
		}`,
	},
	{
		Name:     "brightcove",
		DetectJS: `() => typeof window.bc === 'function' || !!document.querySelector('video-js[data-account]')`,
		ProbeJS: `() => {
			const out = [];
			try {
				document.querySelectorAll('video-js video, .video-js video').forEach(v => {
					if (v.currentSrc || v.src) out.push({url: v.currentSrc || v.src, player: 'brightcove'});
				});
			} catch (e) {}
			return out;
		}`,
	},
}

// audioPlayerDetectors 音频播放器探测表
var audioPlayerDetectors = []PlayerDetector{
	{
		Name:     "howler",
		DetectJS: `() => typeof window.Howl === 'function'`,
		ProbeJS: `() => {
			const out = [];
			try {
				const howls = (window.Howler && window.Howler._howls) || [];
				howls.forEach(h => {
					(h._src ? [].concat(h._src) : []).forEach(src => {
						out.push({url: src, player: 'howler'});
					});
				});
			} catch (e) {}
			return out;
		}`,
	},
	{
		Name:     "amplitude",
		DetectJS: `() => typeof window.Amplitude === 'object' && !!window.Amplitude`,
		ProbeJS: `() => {
			const out = [];
			try {
				const songs = (window.Amplitude.getConfig && window.Amplitude.getConfig().songs) || [];
				songs.forEach(s => {
					if (s.url) out.push({url: s.url, player: 'amplitude'});
				});
			} catch (e) {}
			return out;
		}`,
	},
	{
		Name:     "plyr",
		DetectJS: `() => typeof window.Plyr === 'function'`,
		ProbeJS: `() => {
			const out = [];
			try {
				document.querySelectorAll('.plyr audio, audio.plyr').forEach(a => {
					if (a.currentSrc || a.src) out.push({url: a.currentSrc || a.src, player: 'plyr'});
				});
			} catch (e) {}
			return out;
		}`,
	},
	{
		Name:     "mediaelement",
		DetectJS: `() => typeof window.MediaElementPlayer === 'function'`,
		ProbeJS: `() => {
			const out = [];
			try {
				document.querySelectorAll('.mejs__container audio, .mejs-container audio').forEach(a => {
					if (a.currentSrc || a.src) out.push({url: a.currentSrc || a.src, player: 'mediaelement'});
				});
			} catch (e) {}
			return out;
		}`,
	},
	{
		Name:     "jplayer",
		DetectJS: `() => !!(window.jQuery && window.jQuery.jPlayer)`,
		ProbeJS: `() => {
			const out = [];
			try {
				window.jQuery('.jp-jplayer').each(function() {
					const data = window.jQuery(this).data('jPlayer');
					const media = data && data.status && data.status.media;
					if (!media) return;
					Object.values(media).forEach(v => {
						if (typeof v === 'string' && v.startsWith('http')) out.push({url: v, player: 'jplayer'});
					});
				});
			} catch (e) {}
			return out;
		}`,
	},
}

// genericGlobalProbe 泛化全局变量探测, names为逗号分隔的JS数组字面量内容
func genericGlobalProbe(names string) string {
	return `() => {
		const out = [];
		[` + names + `].forEach(name => {
			try {
				const p = window[name];
				if (!p) return;
				const src = (p.currentSrc && p.currentSrc()) || p.src || p.url ||
					(p.getPlaylistItem && p.getPlaylistItem() && p.getPlaylistItem().file);
				if (typeof src === 'string' && src.startsWith('http')) out.push({url: src, player: name});
			} catch (e) {}
		});
		return out;
	}`
}

// 泛化全局名列表
const (
	genericVideoGlobals = `'player', 'videoPlayer', 'mediaPlayer', 'streamPlayer'`
	genericAudioGlobals = `'audioPlayer', 'musicPlayer', 'podcastPlayer', 'soundPlayer'`
)
