// Package gif renders validation captions as an animated GIF, one frame per image.
package gif

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/freetype/truetype"
	"github.com/gorgonia/captioner"
	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/math/fixed"
)

var regular *truetype.Font

const (
	dpi        = 144.0
	fontsize   = 12.0
	lineheight = 1.2
	delay      = 200
)

func init() {
	var err error
	if regular, err = truetype.Parse(gomono.TTF); err != nil {
		panic(err)
	}
}

var globPalette = color.Palette{
	color.Gray{0},
	color.Gray{253},
}

// Encoder renders captioner.Results. It satisfies captioner.OutputEncoder.
//
// Frames are collected until Flush, which writes them to Writer, or if Writer is nil,
// to <Dir>/results/val_res_<epoch>.gif.
type Encoder struct {
	H, W int
	font.Drawer
	io.Writer
	Dir string

	out   *gif.GIF
	epoch int

	padH, padW int
}

// NewEncoder creates an encoder whose frames are h by w pixels.
func NewEncoder(dir string, h, w int) *Encoder {
	face := truetype.NewFace(regular, &truetype.Options{
		Size:    fontsize,
		DPI:     dpi,
		Hinting: font.HintingFull,
	})
	return &Encoder{
		H:    h,
		W:    w,
		Dir:  dir,
		padH: 10,
		padW: 10,

		Drawer: font.Drawer{
			Src:  image.Black,
			Face: face,
		},
		out: &gif.GIF{LoopCount: 0},
	}
}

// Encode renders one result as a frame.
func (enc *Encoder) Encode(r captioner.Result) error {
	if len(enc.out.Image) > 0 && r.Epoch != enc.epoch {
		return errors.Errorf("result of epoch %d encoded before epoch %d was flushed", r.Epoch, enc.epoch)
	}
	enc.epoch = r.Epoch

	im := image.NewPaletted(image.Rect(0, 0, enc.W, enc.H), globPalette)
	draw.Draw(im, im.Bounds(), image.White, image.Point{}, draw.Src)
	enc.Dst = im

	dy := int(math.Ceil(fontsize * lineheight * dpi / 72))
	y := enc.padH + dy
	lines := append([]string{fmt.Sprintf("Epoch %d, Image %d", r.Epoch, r.ImageID), ""}, enc.wrap(r.Caption)...)
	for _, s := range lines {
		if y > enc.H {
			break
		}
		enc.Dot = fixed.P(enc.padW, y)
		enc.DrawString(s)
		y += dy
	}

	enc.out.Image = append(enc.out.Image, im)
	enc.out.Delay = append(enc.out.Delay, delay)
	return nil
}

// wrap breaks a caption into lines that fit the frame.
func (enc *Encoder) wrap(caption string) []string {
	max := enc.W - 2*enc.padW
	var lines []string
	var line string
	for _, word := range strings.Fields(caption) {
		candidate := word
		if line != "" {
			candidate = line + " " + word
		}
		if line != "" && font.MeasureString(enc.Face, candidate).Ceil() > max {
			lines = append(lines, line)
			line = word
			continue
		}
		line = candidate
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}

// Flush writes the collected frames as one GIF and starts over. It does nothing if there are no frames.
func (enc *Encoder) Flush() error {
	if len(enc.out.Image) == 0 {
		return nil
	}
	defer func() { enc.out = &gif.GIF{LoopCount: 0} }()

	if enc.Writer != nil {
		return errors.WithStack(gif.EncodeAll(enc.Writer, enc.out))
	}

	filename := filepath.Join(enc.Dir, "results", fmt.Sprintf("val_res_%d.gif", enc.epoch))
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return errors.WithStack(err)
	}
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return errors.WithStack(err)
	}
	if err = gif.EncodeAll(f, enc.out); err != nil {
		f.Close()
		return errors.WithStack(err)
	}
	return errors.WithStack(f.Close())
}
