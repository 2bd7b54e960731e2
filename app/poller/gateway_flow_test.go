package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"samco-studio/app/config"
	"samco-studio/app/model"
	"samco-studio/app/provider"
)

func TestSubmitAndPollAgainstGateway(t *testing.T) {
	var queries int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/videos/text2video", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["prompt"] != "a cat" || body["aspect_ratio"] != "9:16" || body["duration"] != "5" {
			t.Errorf("unexpected submit body: %v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"code":0,"message":"ok","data":{"task_id":"abc123","task_status":"submitted"}}`)
	})
	mux.HandleFunc("/v1/videos/text2video/abc123", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&queries, 1)
		w.Header().Set("Content-Type", "application/json")
		if n < 3 {
			_, _ = io.WriteString(w, `{"code":0,"data":{"task_id":"abc123","task_status":"processing"}}`)
			return
		}
		_, _ = fmt.Fprint(w, `{"code":0,"data":{"task_id":"abc123","task_status":"succeed","task_result":{"videos":[{"id":"v","url":"https://cdn/video.mp4","duration":"5"}]}}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	gw := provider.New(config.ProviderConfig{BaseURL: srv.URL, RequestTimeout: 5}, nil)
	defer gw.Close()

	taskID, err := gw.SubmitTextToVideo(context.Background(), provider.TextToVideoRequest{
		Prompt:      "a cat",
		AspectRatio: "9:16",
		Duration:    "5",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if taskID != "abc123" {
		t.Fatalf("task id = %q", taskID)
	}

	p := &Poller{
		Querier:     gw,
		MaxAttempts: 120,
		Interval:    5 * time.Second,
		Sleep:       func(context.Context, time.Duration) error { return nil },
	}
	url, err := p.PollUntilDone(context.Background(), taskID, model.TaskKindTextToVideo)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if url != "https://cdn/video.mp4" {
		t.Fatalf("url = %q", url)
	}
	if got := atomic.LoadInt32(&queries); got != 3 {
		t.Fatalf("queries = %d, want 3", got)
	}
}
