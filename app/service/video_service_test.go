package service

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"samco-studio/app/model"
	"samco-studio/app/poller"
	"samco-studio/app/provider"
	"samco-studio/app/remux"
)

type fakeVideoGateway struct {
	mu        sync.Mutex
	textReqs  []provider.TextToVideoRequest
	imageReqs []provider.ImageToVideoRequest
	speechReq []provider.SpeechRequest
	audio     *provider.Audio
	speechErr error
	submitErr error
}

func (g *fakeVideoGateway) SubmitTextToVideo(_ context.Context, req provider.TextToVideoRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.submitErr != nil {
		return "", g.submitErr
	}
	g.textReqs = append(g.textReqs, req)
	return "abc123", nil
}

func (g *fakeVideoGateway) SubmitImageToVideo(_ context.Context, req provider.ImageToVideoRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.submitErr != nil {
		return "", g.submitErr
	}
	g.imageReqs = append(g.imageReqs, req)
	return "img456", nil
}

func (g *fakeVideoGateway) SynthesizeSpeech(_ context.Context, req provider.SpeechRequest) (*provider.Audio, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.speechReq = append(g.speechReq, req)
	if g.speechErr != nil {
		return nil, g.speechErr
	}
	return g.audio, nil
}

func (g *fakeVideoGateway) VideoModel() string { return "kling-v2" }

func (g *fakeVideoGateway) speechCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.speechReq)
}

type fakePoller struct {
	url   string
	err   error
	calls atomic.Int32
	kind  model.TaskKind
}

func (p *fakePoller) PollUntilDone(_ context.Context, taskID string, kind model.TaskKind) (string, error) {
	p.calls.Add(1)
	p.kind = kind
	if p.err != nil {
		return "", p.err
	}
	return p.url, nil
}

type fakeCombiner struct {
	out   []byte
	err   error
	calls int
	audio remux.Source
	video remux.Source
}

func (c *fakeCombiner) Combine(_ context.Context, video, audio remux.Source, onProgress remux.ProgressFunc) ([]byte, error) {
	c.calls++
	c.video, c.audio = video, audio
	onProgress(50)
	if c.err != nil {
		return nil, c.err
	}
	onProgress(100)
	return c.out, nil
}

type progressLog struct {
	mu     sync.Mutex
	stages []RunStage
	values []float64
}

func (l *progressLog) record(stage RunStage, p float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stages = append(l.stages, stage)
	l.values = append(l.values, p)
}

func (l *progressLog) assertMonotonic(t *testing.T) {
	t.Helper()
	for i := 1; i < len(l.values); i++ {
		if l.values[i] < l.values[i-1] {
			t.Fatalf("进度回退: %v", l.values)
		}
	}
	if last := l.values[len(l.values)-1]; last != 100 {
		t.Fatalf("最终进度 = %v, want 100", last)
	}
	if l.stages[len(l.stages)-1] != StageDone {
		t.Fatalf("最终阶段 = %s", l.stages[len(l.stages)-1])
	}
}

const sourceURL = "https://cdn.example.com/v/abc123.mp4"

func newVideoFixture(t *testing.T, combiner Combiner, supported bool) (*VideoService, *fakeVideoGateway, *fakePoller, *HistoryService) {
	t.Helper()
	gw := &fakeVideoGateway{audio: &provider.Audio{Data: wavBytes([]int16{1, 2, 3}), MimeType: "audio/wav"}}
	p := &fakePoller{url: sourceURL}
	history := NewHistoryService(newTestDB(t), nil)
	svc := NewVideoService(gw, p, combiner, func() bool { return supported }, newTestStore(t), history, nil)
	return svc, gw, p, history
}

func TestVideoGenerateTextToVideo(t *testing.T) {
	svc, gw, p, history := newVideoFixture(t, nil, false)
	var log progressLog

	res, err := svc.Generate(context.Background(), VideoJob{
		Prompt:      "a falcon over the dunes",
		AspectRatio: "9:16",
		Duration:    "5",
	}, log.record)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.TaskID != "abc123" || res.SourceURL != sourceURL || res.OutputURL != sourceURL {
		t.Fatalf("result = %+v", res)
	}
	if res.Remuxed || res.Note != "" {
		t.Fatalf("无配音时不应合成: %+v", res)
	}
	if len(gw.textReqs) != 1 || gw.textReqs[0].ModelName != "kling-v2" {
		t.Fatalf("文生视频请求 = %+v", gw.textReqs)
	}
	if p.kind != model.TaskKindTextToVideo {
		t.Fatalf("轮询类型 = %s", p.kind)
	}
	log.assertMonotonic(t)

	if res.Generation == nil || res.Generation.ID == "" {
		t.Fatal("应写入历史")
	}
	saved, err := history.Get(context.Background(), res.Generation.ID)
	if err != nil {
		t.Fatal(err)
	}
	if saved.Mode != model.ModeTextToVideo || saved.AITool != "kling-v2" || saved.OutputURL != sourceURL {
		t.Fatalf("历史记录 = %+v", saved)
	}
	if saved.Metadata["task_id"] != "abc123" {
		t.Fatalf("metadata = %v", saved.Metadata)
	}
}

func TestVideoGenerateImageToVideo(t *testing.T) {
	svc, gw, p, _ := newVideoFixture(t, nil, false)
	img := []byte{0x89, 'P', 'N', 'G'}

	res, err := svc.Generate(context.Background(), VideoJob{Image: img, Duration: "10"}, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.TaskID != "img456" {
		t.Fatalf("task id = %s", res.TaskID)
	}
	if len(gw.textReqs) != 0 || len(gw.imageReqs) != 1 {
		t.Fatalf("应走图生视频: text=%d image=%d", len(gw.textReqs), len(gw.imageReqs))
	}
	if gw.imageReqs[0].Image != base64.StdEncoding.EncodeToString(img) {
		t.Fatalf("图片应 base64 编码: %q", gw.imageReqs[0].Image)
	}
	if p.kind != model.TaskKindImageToVideo {
		t.Fatalf("轮询类型 = %s", p.kind)
	}
	if res.Generation.Mode != model.ModeImageToVideo {
		t.Fatalf("mode = %s", res.Generation.Mode)
	}
}

func TestVideoGenerateWithVoiceOver(t *testing.T) {
	combiner := &fakeCombiner{out: []byte("muxed-mp4")}
	svc, gw, _, _ := newVideoFixture(t, combiner, true)
	var log progressLog

	res, err := svc.Generate(context.Background(), VideoJob{
		Prompt:    "market at dusk",
		VoiceOver: &VoiceOver{Text: "مرحبا", VoiceName: "ar-XA-Chirp3-HD-Charon", Locale: "ar-SA"},
	}, log.record)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if gw.speechCalls() != 1 || combiner.calls != 1 {
		t.Fatalf("speech=%d combine=%d", gw.speechCalls(), combiner.calls)
	}
	if !res.Remuxed || res.Note != "" {
		t.Fatalf("应合成成功: %+v", res)
	}
	if res.SourceURL != sourceURL || res.OutputURL == sourceURL || !strings.HasPrefix(res.OutputURL, "/files/videos/") {
		t.Fatalf("输出地址 = %s", res.OutputURL)
	}
	if combiner.audio.Ext() != "wav" {
		t.Fatalf("音频扩展名 = %s", combiner.audio.Ext())
	}
	if res.Generation.OutputURL != res.OutputURL {
		t.Fatalf("历史应记录合成后的地址: %s", res.Generation.OutputURL)
	}
	log.assertMonotonic(t)

	var sawRemux, sawSpeech bool
	for _, s := range log.stages {
		switch s {
		case StageRemuxing:
			sawRemux = true
		case StageSynthesizing:
			sawSpeech = true
		}
	}
	if !sawRemux {
		t.Fatalf("缺少合成阶段: %v", log.stages)
	}
	if !sawSpeech {
		t.Fatalf("缺少配音阶段: %v", log.stages)
	}
}

func TestVideoFallsBackToSilentVideoOnRemuxError(t *testing.T) {
	combiner := &fakeCombiner{err: &remux.RemuxError{Stage: "exec", Err: errors.New("ffmpeg exited 1")}}
	svc, _, _, history := newVideoFixture(t, combiner, true)

	res, err := svc.Generate(context.Background(), VideoJob{
		Prompt:    "market at dusk",
		VoiceOver: &VoiceOver{Text: "مرحبا", VoiceName: "ar-XA-Chirp3-HD-Charon"},
	}, nil)
	if err != nil {
		t.Fatalf("合成失败不应导致整体失败: %v", err)
	}
	if res.OutputURL != sourceURL || res.Remuxed {
		t.Fatalf("应返回无声视频: %+v", res)
	}
	if res.Note != noteRemuxFailed {
		t.Fatalf("note = %q", res.Note)
	}
	saved, err := history.Get(context.Background(), res.Generation.ID)
	if err != nil {
		t.Fatal(err)
	}
	if saved.Metadata["note"] != noteRemuxFailed || saved.Metadata["remuxed"] != false {
		t.Fatalf("metadata = %v", saved.Metadata)
	}
}

func TestVideoFallsBackWhenSpeechFails(t *testing.T) {
	combiner := &fakeCombiner{out: []byte("x")}
	svc, gw, _, _ := newVideoFixture(t, combiner, true)
	gw.speechErr = &provider.ProviderError{Op: "tts", StatusCode: 500, Message: "boom"}

	res, err := svc.Generate(context.Background(), VideoJob{
		Prompt:    "p",
		VoiceOver: &VoiceOver{Text: "hello", VoiceName: "en-US-Chirp3-HD-Puck"},
	}, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Note != noteSpeechFailed || res.OutputURL != sourceURL {
		t.Fatalf("result = %+v", res)
	}
	if combiner.calls != 0 {
		t.Fatal("配音失败时不应调用合成")
	}
}

func TestVideoRemuxUnsupported(t *testing.T) {
	combiner := &fakeCombiner{out: []byte("x")}
	svc, gw, _, _ := newVideoFixture(t, combiner, false)

	res, err := svc.Generate(context.Background(), VideoJob{
		Prompt:    "p",
		VoiceOver: &VoiceOver{Text: "hello", VoiceName: "en-US-Chirp3-HD-Puck"},
	}, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Note != noteRemuxUnsupported {
		t.Fatalf("note = %q", res.Note)
	}
	if gw.speechCalls() != 0 || combiner.calls != 0 {
		t.Fatal("不支持合成时不应合成配音")
	}
	if svc.RemuxSupported() {
		t.Fatal("RemuxSupported 应为 false")
	}
}

func TestVideoUsesUploadedAudio(t *testing.T) {
	combiner := &fakeCombiner{out: []byte("muxed")}
	svc, gw, _, _ := newVideoFixture(t, combiner, true)

	res, err := svc.Generate(context.Background(), VideoJob{
		Prompt:    "p",
		VoiceOver: &VoiceOver{Audio: []byte("ID3..."), AudioMIME: "audio/mpeg"},
	}, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if gw.speechCalls() != 0 {
		t.Fatal("上传音频时不应合成语音")
	}
	if !res.Remuxed || combiner.audio.Ext() != "mp3" {
		t.Fatalf("remuxed=%v ext=%s", res.Remuxed, combiner.audio.Ext())
	}
	data, err := os.ReadFile(strings.Replace(res.OutputURL, "/files", svc.store.Root(), 1))
	if err != nil {
		t.Fatalf("读取合成结果: %v", err)
	}
	if string(data) != "muxed" {
		t.Fatalf("内容 = %q", data)
	}
}

func TestVideoPollFailurePropagates(t *testing.T) {
	svc, _, p, history := newVideoFixture(t, nil, false)
	p.err = &poller.JobFailedError{TaskID: "abc123", Message: "content policy"}

	_, err := svc.Generate(context.Background(), VideoJob{Prompt: "p"}, nil)
	var jf *poller.JobFailedError
	if !errors.As(err, &jf) {
		t.Fatalf("err = %v, want JobFailedError", err)
	}
	items, total, err := history.List(context.Background(), model.GenerationFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if total != 0 || len(items) != 0 {
		t.Fatal("失败的任务不应写入历史")
	}
}

func TestVideoValidation(t *testing.T) {
	tests := []struct {
		name  string
		job   VideoJob
		field string
	}{
		{"empty prompt", VideoJob{}, "prompt"},
		{"bad duration", VideoJob{Prompt: "p", Duration: "7"}, "duration"},
		{"voice without speaker", VideoJob{Prompt: "p", VoiceOver: &VoiceOver{Text: "hi"}}, "voice_over.voice_name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, gw, p, _ := newVideoFixture(t, nil, false)
			_, err := svc.Generate(context.Background(), tt.job, nil)
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Fatalf("err = %v, want field %s", err, tt.field)
			}
			if len(gw.textReqs) != 0 || p.calls.Load() != 0 {
				t.Fatal("校验失败不应提交任务")
			}
		})
	}
}
