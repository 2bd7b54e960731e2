package service

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"strings"
	"testing"

	"samco-studio/app/model"
	"samco-studio/app/provider"
)

type fakeImageGateway struct {
	uri  string
	err  error
	reqs []provider.ImageRequest
}

func (g *fakeImageGateway) GenerateImage(_ context.Context, req provider.ImageRequest) (string, error) {
	g.reqs = append(g.reqs, req)
	return g.uri, g.err
}

func (g *fakeImageGateway) ImageModel() string { return "gemini-2.5-flash-image" }

func TestImageGenerateStoresAndRecords(t *testing.T) {
	png := pngBytes(t, 64, 32)
	gw := &fakeImageGateway{uri: "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)}
	history := NewHistoryService(newTestDB(t), nil)
	svc := NewImageService(gw, newTestStore(t), history, nil)

	res, err := svc.Generate(context.Background(), ImageJob{Prompt: "desert sunrise", AspectRatio: "16:9"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.HasPrefix(res.URL, "/files/images/") || !strings.HasSuffix(res.URL, ".png") {
		t.Fatalf("url = %s", res.URL)
	}
	if res.MimeType != "image/png" {
		t.Fatalf("mime = %s", res.MimeType)
	}
	if !strings.HasSuffix(res.ThumbnailURL, "_thumb.jpg") {
		t.Fatalf("thumbnail = %s", res.ThumbnailURL)
	}
	if gw.reqs[0].AspectRatio != "16:9" || gw.reqs[0].Reference != nil {
		t.Fatalf("request = %+v", gw.reqs[0])
	}
	if res.Generation == nil || res.Generation.Mode != model.ModeTextToImage || res.Generation.AITool != "gemini-2.5-flash-image" {
		t.Fatalf("generation = %+v", res.Generation)
	}
}

func TestImageGenerateWithReference(t *testing.T) {
	png := pngBytes(t, 8, 8)
	gw := &fakeImageGateway{uri: "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)}
	svc := NewImageService(gw, newTestStore(t), nil, nil)

	res, err := svc.Generate(context.Background(), ImageJob{Prompt: "make it night", Reference: png})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if gw.reqs[0].ReferenceMIME != "image/png" {
		t.Fatalf("reference mime = %s", gw.reqs[0].ReferenceMIME)
	}
	if res.Generation != nil {
		t.Fatal("没有历史服务时不应返回记录")
	}

	_, err = svc.Generate(context.Background(), ImageJob{Prompt: "x", Reference: []byte("plain text")})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "reference" {
		t.Fatalf("err = %v", err)
	}
}

func TestImageGenerateProviderError(t *testing.T) {
	gw := &fakeImageGateway{err: &provider.ProviderError{Op: "image", Err: provider.ErrNoImageFound}}
	svc := NewImageService(gw, newTestStore(t), nil, nil)

	_, err := svc.Generate(context.Background(), ImageJob{Prompt: "x"})
	if !errors.Is(err, provider.ErrNoImageFound) {
		t.Fatalf("err = %v", err)
	}
	if _, err := svc.Generate(context.Background(), ImageJob{Prompt: "  "}); err == nil {
		t.Fatal("空提示词应报错")
	}
}

type fakeSpeechGateway struct {
	audio *provider.Audio
	err   error
	req   provider.SpeechRequest
}

func (g *fakeSpeechGateway) SynthesizeSpeech(_ context.Context, req provider.SpeechRequest) (*provider.Audio, error) {
	g.req = req
	return g.audio, g.err
}

func (g *fakeSpeechGateway) CloneVoice(context.Context, []byte, string) (*provider.Audio, error) {
	return nil, provider.ErrVoiceCloneUnsupported
}

func TestSpeechSynthesizeWAV(t *testing.T) {
	wav := wavBytes([]int16{0, 8000, -8000, 16000, -16000, 0, 4000, -4000})
	gw := &fakeSpeechGateway{audio: &provider.Audio{Data: wav, MimeType: "audio/wav", SampleRate: 24000}}
	history := NewHistoryService(newTestDB(t), nil)
	store := newTestStore(t)
	svc := NewSpeechService(gw, store, history, nil)

	res, err := svc.Synthesize(context.Background(), provider.SpeechRequest{Text: "مرحبا", VoiceName: "ar-XA-Chirp3-HD-Kore"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if gw.req.Locale != "ar-SA" {
		t.Fatalf("默认语言 = %s", gw.req.Locale)
	}
	if !strings.HasSuffix(res.URL, ".wav") || res.Size != int64(len(wav)) {
		t.Fatalf("result = %+v", res)
	}
	if !strings.HasSuffix(res.WaveformURL, "_wave.png") {
		t.Fatalf("waveform = %s", res.WaveformURL)
	}
	stored, err := os.ReadFile(strings.Replace(res.URL, "/files", store.Root(), 1))
	if err != nil || len(stored) != len(wav) {
		t.Fatalf("读取音频: %v", err)
	}
	if res.Generation.Type != model.GenerationTypeAudio || res.Generation.AITool != "gemini-tts" {
		t.Fatalf("generation = %+v", res.Generation)
	}
}

func TestSpeechSynthesizeMP3SkipsWaveform(t *testing.T) {
	gw := &fakeSpeechGateway{audio: &provider.Audio{Data: []byte("ID3fake"), MimeType: "audio/mpeg"}}
	svc := NewSpeechService(gw, newTestStore(t), nil, nil)

	res, err := svc.Synthesize(context.Background(), provider.SpeechRequest{Text: "hi", VoiceName: "en-US-Chirp3-HD-Puck", Locale: "en-US"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(res.URL, ".mp3") || res.WaveformURL != "" {
		t.Fatalf("result = %+v", res)
	}
}

func TestSpeechValidationAndClone(t *testing.T) {
	svc := NewSpeechService(&fakeSpeechGateway{}, newTestStore(t), nil, nil)
	ctx := context.Background()

	var verr *ValidationError
	if _, err := svc.Synthesize(ctx, provider.SpeechRequest{VoiceName: "v"}); !errors.As(err, &verr) {
		t.Fatalf("空文本 err = %v", err)
	}
	if _, err := svc.Synthesize(ctx, provider.SpeechRequest{Text: "t"}); !errors.As(err, &verr) {
		t.Fatalf("缺少发音人 err = %v", err)
	}
	if _, err := svc.CloneVoice(ctx, []byte("sample"), "text"); !errors.Is(err, provider.ErrVoiceCloneUnsupported) {
		t.Fatalf("clone err = %v", err)
	}
	if _, err := svc.CloneVoice(ctx, nil, "text"); !errors.As(err, &verr) {
		t.Fatalf("缺少样本 err = %v", err)
	}
}
