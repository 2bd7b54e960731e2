package storage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	_ "golang.org/x/image/webp"
)

const (
	thumbnailSize  = 256
	waveformWidth  = 800
	waveformHeight = 160
)

func previewPath(a *Artifact, suffix string) (string, string) {
	ext := filepath.Ext(a.Path)
	full := strings.TrimSuffix(a.Path, ext) + suffix
	rel := strings.TrimSuffix(a.RelPath, filepath.Ext(a.RelPath)) + suffix
	return full, rel
}

// Thumbnail 为图片生成 JPEG 缩略图，保存在原图旁边
func (s *Store) Thumbnail(a *Artifact, data []byte) (*Artifact, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("解码图片失败: %w", err)
	}
	thumb := imaging.Fit(img, thumbnailSize, thumbnailSize, imaging.Lanczos)

	full, rel := previewPath(a, "_thumb.jpg")
	if err := imaging.Save(thumb, full, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("保存缩略图失败: %w", err)
	}
	return &Artifact{Path: full, RelPath: rel, URL: s.URLFor(rel)}, nil
}

// Waveform 为 WAV 音频绘制波形预览图
func (s *Store) Waveform(a *Artifact, wav []byte) (*Artifact, error) {
	samples, err := DecodePCM16(wav)
	if err != nil {
		return nil, err
	}
	peaks := Peaks(samples, waveformWidth/4)

	dc := gg.NewContext(waveformWidth, waveformHeight)
	dc.SetHexColor("#111827")
	dc.Clear()
	dc.SetHexColor("#38bdf8")
	mid := float64(waveformHeight) / 2
	barWidth := float64(waveformWidth) / float64(len(peaks))
	for i, p := range peaks {
		h := math.Max(1, p*(mid-4))
		dc.DrawRectangle(float64(i)*barWidth+1, mid-h, math.Max(1, barWidth-2), 2*h)
	}
	dc.Fill()

	full, rel := previewPath(a, "_wave.png")
	if err := dc.SavePNG(full); err != nil {
		return nil, fmt.Errorf("保存波形图失败: %w", err)
	}
	return &Artifact{Path: full, RelPath: rel, URL: s.URLFor(rel)}, nil
}

// DecodePCM16 读取 16 位 PCM WAV 的第一声道采样，归一化到 [-1, 1]
func DecodePCM16(wav []byte) ([]float64, error) {
	if len(wav) < 12 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return nil, errors.New("不是 WAV 文件")
	}
	var channels, bitsPerSample uint16
	pos := 12
	for pos+8 <= len(wav) {
		id := string(wav[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(wav[pos+4 : pos+8]))
		body := pos + 8
		end := body + size
		if end > len(wav) {
			end = len(wav)
		}
		switch id {
		case "fmt ":
			if end-body < 16 {
				return nil, errors.New("WAV fmt 块不完整")
			}
			channels = binary.LittleEndian.Uint16(wav[body+2 : body+4])
			bitsPerSample = binary.LittleEndian.Uint16(wav[body+14 : body+16])
		case "data":
			if bitsPerSample != 16 || channels == 0 {
				return nil, fmt.Errorf("仅支持 16 位 PCM，当前 %d 位 %d 声道", bitsPerSample, channels)
			}
			frame := int(channels) * 2
			n := (end - body) / frame
			samples := make([]float64, n)
			for i := 0; i < n; i++ {
				off := body + i*frame
				v := int16(binary.LittleEndian.Uint16(wav[off : off+2]))
				samples[i] = float64(v) / 32768
			}
			return samples, nil
		}
		// 块按偶数字节对齐
		pos = body + size + size%2
	}
	return nil, errors.New("WAV 中没有 data 块")
}

// Peaks 把采样分成 buckets 段，返回每段的峰值绝对值
func Peaks(samples []float64, buckets int) []float64 {
	if buckets <= 0 {
		return nil
	}
	peaks := make([]float64, buckets)
	if len(samples) == 0 {
		return peaks
	}
	per := float64(len(samples)) / float64(buckets)
	for i := range peaks {
		start := int(float64(i) * per)
		end := int(float64(i+1) * per)
		if end <= start {
			end = start + 1
		}
		if end > len(samples) {
			end = len(samples)
		}
		for _, v := range samples[start:end] {
			if a := math.Abs(v); a > peaks[i] {
				peaks[i] = a
			}
		}
	}
	return peaks
}
