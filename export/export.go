// Package export rasterizes exportable frames to PNG. Rendering happens at
// the frame's stored width and height at scale 1, independent of whatever
// zoom the editor session is at.
package export

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"portaal/core"
)

// ImageSource resolves uploaded image assets by key. core.AssetStore
// satisfies it; a nil source renders image elements as empty space.
type ImageSource interface {
	GetAsset(ctx context.Context, key string) (*core.Asset, error)
}

var (
	fontOnce sync.Once
	fontTTF  *truetype.Font
	fontErr  error
)

func loadFont() (*truetype.Font, error) {
	fontOnce.Do(func() {
		fontTTF, fontErr = truetype.Parse(goregular.TTF)
	})
	return fontTTF, fontErr
}

// RenderFrame rasterizes one frame: its own fill as background, then every
// element in array order, last on top. Elements whose image asset cannot be
// fetched are skipped.
func RenderFrame(ctx context.Context, frame core.Frame, images ImageSource) (image.Image, error) {
	if frame.Width < 1 || frame.Height < 1 {
		return nil, fmt.Errorf("frame %s has no drawable area", frame.ID)
	}

	dc := gg.NewContext(frame.Width, frame.Height)
	setFill(dc, frame.Fill, frame.Opacity)
	dc.Clear()

	for _, el := range frame.Elements {
		switch el.Kind {
		case core.KindRectangle:
			setFill(dc, el.Fill, el.Opacity)
			dc.DrawRectangle(float64(el.X), float64(el.Y), float64(el.Width), float64(el.Height))
			dc.Fill()
		case core.KindText:
			drawText(dc, el)
		case core.KindImage:
			drawImage(ctx, dc, el, images)
		}
	}

	return dc.Image(), nil
}

func setFill(dc *gg.Context, fill core.Fill, opacity int) {
	dc.SetRGBA(
		float64(fill.R)/255,
		float64(fill.G)/255,
		float64(fill.B)/255,
		float64(opacity)/100,
	)
}

func drawText(dc *gg.Context, el core.FrameElement) {
	if el.TextValue == "" {
		return
	}
	ttf, err := loadFont()
	if err != nil {
		logrus.WithError(err).Warn("Failed to load export font, skipping text element")
		return
	}

	size := float64(el.Height) * 0.6
	if size < 8 {
		size = 8
	}
	face := truetype.NewFace(ttf, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	dc.SetFontFace(face)
	setFill(dc, el.Fill, el.Opacity)
	dc.DrawStringWrapped(
		el.TextValue,
		float64(el.X), float64(el.Y),
		0, 0,
		float64(el.Width), 1.2,
		gg.AlignLeft,
	)
}

func drawImage(ctx context.Context, dc *gg.Context, el core.FrameElement, images ImageSource) {
	if images == nil || el.ImageKey == "" || el.Width < 1 || el.Height < 1 {
		return
	}
	log := logrus.WithFields(logrus.Fields{
		"element_id": el.ID,
		"image_key":  el.ImageKey,
	})

	asset, err := images.GetAsset(ctx, el.ImageKey)
	if err != nil {
		log.WithError(err).Warn("Image asset not available, skipping element")
		return
	}
	src, _, err := image.Decode(bytes.NewReader(asset.Data))
	if err != nil {
		log.WithError(err).Warn("Failed to decode image asset, skipping element")
		return
	}

	scaled := image.NewRGBA(image.Rect(0, 0, el.Width, el.Height))
	draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), src, src.Bounds(), draw.Over, nil)
	dc.DrawImage(scaled, el.X, el.Y)
}

// Archive renders every frame flagged for export into a zip, one
// `{name}.png` entry per frame. Frames that cannot be rendered are skipped;
// an archive with zero renderable frames is an error.
func Archive(ctx context.Context, doc core.EditorDocument, images ImageSource) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	rendered := 0
	for _, frame := range doc.Frames {
		if !frame.SelectedForExport {
			continue
		}
		log := logrus.WithFields(logrus.Fields{
			"frame_id":   frame.ID,
			"frame_name": frame.Name,
		})

		img, err := RenderFrame(ctx, frame, images)
		if err != nil {
			log.WithError(err).Warn("Skipping frame in export")
			continue
		}

		entry, err := zw.Create(frame.Name + ".png")
		if err != nil {
			return nil, err
		}
		dc := gg.NewContextForImage(img)
		if err := dc.EncodePNG(entry); err != nil {
			return nil, err
		}
		rendered++
		log.Info("Frame rendered for export")
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	if rendered == 0 {
		return nil, fmt.Errorf("no frames selected for export")
	}
	return buf.Bytes(), nil
}
