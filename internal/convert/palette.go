package convert

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
)

// Palette names accepted by Parse.
const (
	PaletteNone     = ""
	PaletteMono     = "mono"
	PaletteTricolor = "tricolor"
)

var (
	white = color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	black = color.NRGBA{A: 0xFF}
	red   = color.NRGBA{R: 0xFF, A: 0xFF}

	monoPalette     = color.Palette{white, black}
	tricolorPalette = color.Palette{white, black, red}
)

// ValidPalette reports whether name is a palette Reduce understands.
func ValidPalette(name string) error {
	switch name {
	case PaletteNone, PaletteMono, PaletteTricolor:
		return nil
	default:
		return fmt.Errorf("convert: unknown palette %q (want mono or tricolor)", name)
	}
}

// Reduce maps img onto a black/white (mono) or black/red/white (tricolor)
// palette for e-paper style displays. PaletteNone returns img unchanged.
//
// 픽셀 분류:
//   - 투명(alpha < 128) → white
//   - 매우 어두운 픽셀 → black
//   - 충분히 "빨간" 픽셀 → red (mono 에서는 black)
//   - 나머지 → white
func Reduce(img image.Image, palette string) (image.Image, error) {
	if err := ValidPalette(palette); err != nil {
		return nil, err
	}
	if palette == PaletteNone {
		return img, nil
	}

	b := img.Bounds()
	src, ok := img.(*image.NRGBA)
	if !ok {
		src = image.NewNRGBA(b)
		draw.Draw(src, b, img, b.Min, draw.Src)
	}

	pal := monoPalette
	if palette == PaletteTricolor {
		pal = tricolorPalette
	}
	dst := image.NewPaletted(b, pal)

	// stride 를 직접 사용해 At() 호출을 피한다.
	for y := b.Min.Y; y < b.Max.Y; y++ {
		rowOff := (y - b.Min.Y) * src.Stride
		for x := b.Min.X; x < b.Max.X; x++ {
			i := rowOff + (x-b.Min.X)*4
			c := color.NRGBA{R: src.Pix[i], G: src.Pix[i+1], B: src.Pix[i+2], A: src.Pix[i+3]}

			var idx uint8
			switch classifyPixel(c) {
			case inkBlack:
				idx = 1
			case inkRed:
				idx = 1
				if palette == PaletteTricolor {
					idx = 2
				}
			}
			dst.SetColorIndex(x, y, idx)
		}
	}
	return dst, nil
}

// inkColor indicates which ink a pixel should be drawn with.
type inkColor int

const (
	inkWhite inkColor = iota
	inkBlack
	inkRed
)

// classifyPixel decides whether a pixel should be black, red, or white.
//
// 기준(경험적):
//
//   - 밝기 Y = 0.299R + 0.587G + 0.114B
//   - redness = R - max(G, B)
//   - 어두운 픽셀(Y < 128) → black
//   - 충분히 빨간 픽셀(redness > 32, R > 128) → red
//   - 나머지 → white
func classifyPixel(c color.NRGBA) inkColor {
	// 완전 투명/반투명은 화면에서 보이지 않는다고 가정하고 white 취급.
	if c.A < 128 {
		return inkWhite
	}
	r, g, b := float64(c.R), float64(c.G), float64(c.B)

	y := 0.299*r + 0.587*g + 0.114*b

	maxGB := max(g, b)
	redness := r - maxGB

	if r > 128 && redness > 32 {
		return inkRed
	}
	if y < 128 {
		return inkBlack
	}
	return inkWhite
}
