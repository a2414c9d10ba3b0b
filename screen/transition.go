package screen

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// Transition codes below BlendTransition combine a direction in the low two
// bits with flags telling which of the surfaces slides. With neither flag
// set the new surface is wiped in over the old one.
const (
	TransitionLeft = iota
	TransitionRight
	TransitionTop
	TransitionBottom

	TransitionNewMoves = 1 << 2
	TransitionOldMoves = 1 << 3

	BlendTransition = 16
)

func direction(code int) image.Point {
	switch code & 3 {
	case TransitionLeft:
		return image.Pt(-1, 0)
	case TransitionRight:
		return image.Pt(1, 0)
	case TransitionTop:
		return image.Pt(0, -1)
	default:
		return image.Pt(0, 1)
	}
}

// renderTransition composes into dst the frame at progress p (0..1) of a
// transition from old to cur. All three images share the same bounds.
func renderTransition(dst, old, cur *image.RGBA, code int, p float64) {
	b := dst.Bounds()
	if code >= BlendTransition {
		draw.Copy(dst, b.Min, old, old.Bounds(), draw.Src, nil)
		mask := image.NewUniform(color.Alpha{A: uint8(p*255 + 0.5)})
		draw.DrawMask(dst, b, cur, cur.Bounds().Min, mask, image.Point{}, draw.Over)
		return
	}

	d := direction(code)
	shift := func(f float64) image.Point {
		return image.Pt(int(float64(d.X*b.Dx())*f), int(float64(d.Y*b.Dy())*f))
	}
	place := func(src *image.RGBA, off image.Point) {
		draw.Draw(dst, b.Add(off), src, src.Bounds().Min, draw.Src)
	}

	switch {
	case code&TransitionNewMoves != 0 && code&TransitionOldMoves != 0:
		place(old, shift(p))
		place(cur, shift(p-1))
	case code&TransitionNewMoves != 0:
		place(old, image.Point{})
		place(cur, shift(p-1))
	case code&TransitionOldMoves != 0:
		place(cur, image.Point{})
		place(old, shift(p))
	default:
		place(old, image.Point{})
		r := b.Add(shift(p - 1)).Intersect(b)
		draw.Draw(dst, r, cur, r.Min, draw.Src)
	}
}
