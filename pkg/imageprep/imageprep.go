// Package imageprep 在调用视觉模型前缩放并重新编码上传的图片。
package imageprep

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"

	"golang.org/x/image/draw"
)

// 默认参数
const (
	DefaultMaxDimension = 1024
	DefaultQuality      = 85
)

// ErrEmptyImage 上传内容为空
var ErrEmptyImage = errors.New("图片内容为空")

// Prepared 处理后的图片
type Prepared struct {
	Bytes    []byte
	Base64   string
	MIMEType string
	Width    int
	Height   int
}

// DataURI 以 data URI 形式返回
func (p *Prepared) DataURI() string {
	return "data:" + p.MIMEType + ";base64," + p.Base64
}

// Prepare 解码图片，最长边缩放到 maxDim 以内后重新编码为 JPEG
func Prepare(r io.Reader, maxDim, quality int) (*Prepared, error) {
	if maxDim <= 0 {
		maxDim = DefaultMaxDimension
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("读取图片失败: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("解码图片失败: %w", err)
	}

	dst := resize(src, maxDim)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("编码图片失败: %w", err)
	}

	bounds := dst.Bounds()
	return &Prepared{
		Bytes:    buf.Bytes(),
		Base64:   base64.StdEncoding.EncodeToString(buf.Bytes()),
		MIMEType: "image/jpeg",
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
	}, nil
}

// resize 保持宽高比缩放，不放大
func resize(src image.Image, maxDim int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return src
	}

	var nw, nh int
	if w >= h {
		nw = maxDim
		nh = h * maxDim / w
	} else {
		nh = maxDim
		nw = w * maxDim / h
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}
