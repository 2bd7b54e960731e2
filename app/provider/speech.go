package provider

import (
	"context"
	"encoding/base64"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

const plainReadDirective = "Read the following text clearly and naturally, exactly as written without any changes."

// 阿拉伯语默认使用的电影旁白风格
const arabicCinematicBase = `أنت قارئ صوتي محترف.
اقرأ النص العربي التالي كما هو مكتوب حرفيًا دون أي تعديل أو إعادة صياغة.
نطق عربي فصيح واضح جدًا، مخارج حروف دقيقة، التزم بعلامات الترقيم.
بنبرة سينمائية فخمة، سرعة متوسطة، وقفات طبيعية بعد الجمل.
لا تغيّر الكلمات، لا تفسّر المعنى، اقرأ النص فقط.`

const arabicGenericBase = `أنت قارئ صوتي محترف.
اقرأ النص العربي التالي كما هو مكتوب حرفيًا دون أي تعديل أو إعادة صياغة.
نطق عربي فصيح واضح جدًا، مخارج حروف دقيقة، التزم بعلامات الترقيم.
لا تغيّر الكلمات، لا تفسّر المعنى، اقرأ النص فقط.`

var arabicStyleLines = map[string]string{
	"calm":      "بنبرة هادئة مطمئنة، سرعة بطيئة قليلاً، دون مبالغة.",
	"energetic": "بنبرة حماسية سريعة قليلاً، مع وضوح شديد.",
	"child":     "بصوت طفولي لطيف مع الحفاظ على نطق العربية الصحيح.",
}

// 音频字段按优先级排列
var audioPayloadKeys = []string{"audioBase64", "audioContent", "audio", "data"}

// SpeechRequest 语音合成请求
type SpeechRequest struct {
	Text      string
	VoiceName string
	Locale    string
	Speed     string // x-slow, slow, medium, fast, x-fast
	Pitch     string // x-low, low, medium, high, x-high
	Style     string // cinematic, calm, energetic, child
}

// Audio 合成得到的音频
type Audio struct {
	Data       []byte
	MimeType   string
	SampleRate int
}

type speechRequest struct {
	Text            string `json:"text"`
	VoiceName       string `json:"voiceName"`
	StyleHint       string `json:"styleHint"`
	ReturnWavBase64 bool   `json:"returnWavBase64"`
}

// IsArabicLocale 判断 locale 是否为阿拉伯语
func IsArabicLocale(locale string) bool {
	tag, err := language.Parse(locale)
	if err != nil {
		return strings.HasPrefix(strings.ToLower(locale), "ar-")
	}
	base, _ := tag.Base()
	return base.String() == "ar"
}

// BuildStyleHint 构造放在待读文本前面的朗读指令
func BuildStyleHint(locale, speed, pitch, style string) string {
	if !IsArabicLocale(locale) {
		return plainReadDirective
	}
	if style == "" || style == "cinematic" {
		return arabicCinematicBase
	}

	var b strings.Builder
	b.WriteString(arabicGenericBase)
	if line, ok := arabicStyleLines[style]; ok {
		b.WriteString("\n")
		b.WriteString(line)
	}

	switch speed {
	case "fast", "x-fast":
		b.WriteString(" اقرأ بسرعة معتدلة.")
	case "slow", "x-slow":
		b.WriteString(" اقرأ ببطء وتأنٍ.")
	}
	switch pitch {
	case "high", "x-high":
		b.WriteString(" استخدم نبرة صوت مرتفعة قليلاً.")
	case "low", "x-low":
		b.WriteString(" استخدم نبرة صوت منخفضة قليلاً.")
	}
	return b.String()
}

// NormalizeText NFC 规范化并去掉首尾空白，换行保留为停顿
func NormalizeText(text string) string {
	return strings.TrimSpace(norm.NFC.String(text))
}

// ExtractAudioPayload 按 audioBase64 > audioContent > audio > data 的顺序取第一个非空字段
func ExtractAudioPayload(payload map[string]any) (string, bool) {
	for _, key := range audioPayloadKeys {
		if s, ok := payload[key].(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

// decodeAudioBase64 兼容带 data URI 前缀和无填充的 base64
func decodeAudioBase64(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	s = strings.TrimSpace(s)
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
	}
	return data, err
}

// SynthesizeSpeech 文本转语音。JSON 响应从音频字段解码，其他类型直接作为音频字节。
func (g *Gateway) SynthesizeSpeech(ctx context.Context, req SpeechRequest) (*Audio, error) {
	const op = "synthesize_speech"
	text := NormalizeText(req.Text)
	if text == "" {
		return nil, &ProviderError{Op: op, Message: "文本不能为空"}
	}
	if req.VoiceName == "" {
		return nil, &ProviderError{Op: op, Message: "未指定发音人"}
	}

	body := speechRequest{
		Text:            text,
		VoiceName:       req.VoiceName,
		StyleHint:       BuildStyleHint(req.Locale, req.Speed, req.Pitch, req.Style),
		ReturnWavBase64: true,
	}

	r, cancel := g.request(ctx, 0)
	defer cancel()

	resp, err := r.SetHeader("Content-Type", "application/json; charset=utf-8").
		SetBody(body).
		Post(g.cfg.SpeechPath)
	if err != nil {
		return nil, transportError(op, err)
	}
	if perr := httpError(op, resp); perr != nil {
		return nil, perr
	}

	contentType := resp.Header().Get("Content-Type")
	if strings.Contains(contentType, "application/json") {
		var payload map[string]any
		if err := decode(op, resp, &payload); err != nil {
			return nil, err
		}
		encoded, ok := ExtractAudioPayload(payload)
		if !ok {
			return nil, &ProviderError{Op: op, StatusCode: resp.StatusCode(), Message: "响应中没有音频数据", Err: ErrEmptyAudio}
		}
		data, err := decodeAudioBase64(encoded)
		if err != nil {
			return nil, &ProviderError{Op: op, StatusCode: resp.StatusCode(), Message: "音频 base64 解码失败", Err: err}
		}
		if len(data) == 0 {
			return nil, &ProviderError{Op: op, StatusCode: resp.StatusCode(), Message: "音频数据为空", Err: ErrEmptyAudio}
		}
		audio := &Audio{Data: data, MimeType: "audio/wav"}
		if mt, ok := payload["mimeType"].(string); ok && mt != "" {
			audio.MimeType = mt
		}
		if sr, ok := payload["sampleRate"].(float64); ok {
			audio.SampleRate = int(sr)
		}
		g.logger.Debugf("语音合成完成: %d 字节 (%s)", len(audio.Data), audio.MimeType)
		return audio, nil
	}

	data := resp.Bytes()
	if len(data) == 0 {
		return nil, &ProviderError{Op: op, StatusCode: resp.StatusCode(), Message: "音频数据为空", Err: ErrEmptyAudio}
	}
	mime := contentType
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	if mime == "" {
		mime = "audio/wav"
	}
	g.logger.Debugf("语音合成完成: %d 字节 (%s)", len(data), mime)
	return &Audio{Data: data, MimeType: mime}, nil
}

// CloneVoice 声音克隆。服务商没有对应能力，明确返回不支持，而不是用普通合成代替。
func (g *Gateway) CloneVoice(ctx context.Context, sample []byte, text string) (*Audio, error) {
	return nil, ErrVoiceCloneUnsupported
}
