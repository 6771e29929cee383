// Package captcha renders short alphanumeric challenges as PNG images.
package captcha

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/big"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Ambiguous glyphs (0/O, 1/l/I) are left out.
const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghjkmnpqrstuvwxyz23456789"

type Generator struct {
	Width  int
	Height int
	Length int
	Lines  int
}

func NewGenerator() *Generator {
	return &Generator{Width: 120, Height: 40, Length: 4, Lines: 20}
}

type Challenge struct {
	Code string
	PNG  []byte
}

func (c Challenge) DataURL() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(c.PNG)
}

func (g *Generator) Generate() (Challenge, error) {
	code, err := randomCode(g.Length)
	if err != nil {
		return Challenge{}, err
	}

	// Glyphs are drawn at half size and scaled up so the 7x13 face stays legible.
	small := image.NewRGBA(image.Rect(0, 0, g.Width/2, g.Height/2))
	draw.Draw(small, small.Bounds(), image.NewUniform(color.RGBA{R: 245, G: 245, B: 245, A: 255}), image.Point{}, draw.Src)

	face := basicfont.Face7x13
	advance := (g.Width/2 - 4) / len(code)
	for i, ch := range code {
		ink, err := randomInk()
		if err != nil {
			return Challenge{}, err
		}
		jitter, err := randomInt(3)
		if err != nil {
			return Challenge{}, err
		}
		d := &font.Drawer{
			Dst:  small,
			Src:  image.NewUniform(ink),
			Face: face,
			Dot:  fixed.P(2+i*advance+advance/4, g.Height/4+face.Ascent/2+jitter-1),
		}
		d.DrawString(string(ch))
	}

	img := image.NewRGBA(image.Rect(0, 0, g.Width, g.Height))
	draw.ApproxBiLinear.Scale(img, img.Bounds(), small, small.Bounds(), draw.Src, nil)

	if err := g.addNoise(img); err != nil {
		return Challenge{}, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Challenge{}, fmt.Errorf("encode captcha: %w", err)
	}

	return Challenge{Code: code, PNG: buf.Bytes()}, nil
}

func (g *Generator) addNoise(img *image.RGBA) error {
	for i := 0; i < g.Lines; i++ {
		coords := make([]int, 4)
		for j := range coords {
			limit := g.Width
			if j%2 == 1 {
				limit = g.Height
			}
			v, err := randomInt(limit)
			if err != nil {
				return err
			}
			coords[j] = v
		}
		ink, err := randomInk()
		if err != nil {
			return err
		}
		ink.A = 90
		drawLine(img, coords[0], coords[1], coords[2], coords[3], ink)
	}
	return nil
}

func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		img.Set(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func randomCode(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("captcha length must be positive")
	}
	out := make([]byte, length)
	for i := range out {
		idx, err := randomInt(len(alphabet))
		if err != nil {
			return "", err
		}
		out[i] = alphabet[idx]
	}
	return string(out), nil
}

func randomInk() (color.RGBA, error) {
	var rgb [3]uint8
	for i := range rgb {
		v, err := randomInt(140)
		if err != nil {
			return color.RGBA{}, err
		}
		rgb[i] = uint8(v)
	}
	return color.RGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255}, nil
}

func randomInt(limit int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return 0, fmt.Errorf("captcha randomness: %w", err)
	}
	return int(n.Int64()), nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
