package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"samco-studio/app/config"
	"samco-studio/app/model"
	"samco-studio/app/storage"
)

func TestJanitorRunOnce(t *testing.T) {
	store := newTestStore(t)
	history := NewHistoryService(newTestDB(t), nil)
	ctx := context.Background()

	oldDir := filepath.Join(store.Root(), "images", "2020-01-01")
	if err := os.MkdirAll(oldDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(oldDir, "a.png"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	fresh, err := store.Save(storage.KindAudio, "wav", []byte("y"))
	if err != nil {
		t.Fatal(err)
	}

	old := &model.Generation{Type: model.GenerationTypeImage, Mode: model.ModeTextToImage, AITool: "x", OutputURL: "/files/images/2020-01-01/a.png", CreatedAt: time.Now().AddDate(0, 0, -30)}
	recent := &model.Generation{Type: model.GenerationTypeAudio, Mode: model.ModeTextToSpeech, AITool: "gemini-tts", OutputURL: fresh.URL}
	for _, g := range []*model.Generation{old, recent} {
		if err := history.Create(ctx, g); err != nil {
			t.Fatal(err)
		}
	}

	j := NewJanitor(config.JanitorConfig{Enabled: true, Schedule: "@daily", RetentionDays: 7}, store, history, nil)
	dirs, rows, err := j.RunOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if dirs != 1 || rows != 1 {
		t.Fatalf("dirs=%d rows=%d", dirs, rows)
	}
	if _, err := os.Stat(oldDir); !os.IsNotExist(err) {
		t.Fatal("过期目录应被删除")
	}
	if _, err := os.Stat(fresh.Path); err != nil {
		t.Fatalf("新文件不应删除: %v", err)
	}
	if _, err := history.Get(ctx, recent.ID); err != nil {
		t.Fatalf("新记录不应删除: %v", err)
	}
}

func TestJanitorStartRejectsBadSchedule(t *testing.T) {
	j := NewJanitor(config.JanitorConfig{Schedule: "not a schedule", RetentionDays: 1}, nil, nil, nil)
	if err := j.Start(); err == nil {
		t.Fatal("非法的 cron 表达式应报错")
	}
}

func TestJanitorStartStop(t *testing.T) {
	j := NewJanitor(config.JanitorConfig{Schedule: "@every 1h", RetentionDays: 1}, nil, nil, nil)
	if err := j.Start(); err != nil {
		t.Fatal(err)
	}
	j.Stop()
}
