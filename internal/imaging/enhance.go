package imaging

import (
	"image"
	"sort"
)

// luma uses ITU-R 601-2 weights in 16.16 fixed point.
func luma(r, g, b uint8) int {
	return (int(r)*19595 + int(g)*38470 + int(b)*7471 + 0x8000) >> 16
}

// blend computes degenerate + factor*(v-degenerate), truncated and clamped to a byte.
func blend(degenerate, v uint8, factor float64) uint8 {
	t := float64(degenerate) + factor*(float64(v)-float64(degenerate))
	switch {
	case t <= 0:
		return 0
	case t >= 255:
		return 255
	default:
		return uint8(t)
	}
}

// adjustContrast blends every channel against the rounded mean luminance.
func adjustContrast(img *image.RGBA, factor float64) *image.RGBA {
	if factor == 1 {
		return img
	}
	var sum, n int
	for i := 0; i+3 < len(img.Pix); i += 4 {
		sum += luma(img.Pix[i], img.Pix[i+1], img.Pix[i+2])
		n++
	}
	if n == 0 {
		return img
	}
	mean := uint8(float64(sum)/float64(n) + 0.5)

	out := image.NewRGBA(img.Rect)
	for i := 0; i+3 < len(img.Pix); i += 4 {
		out.Pix[i] = blend(mean, img.Pix[i], factor)
		out.Pix[i+1] = blend(mean, img.Pix[i+1], factor)
		out.Pix[i+2] = blend(mean, img.Pix[i+2], factor)
		out.Pix[i+3] = 0xff
	}
	return out
}

// smoothKernel is the 3x3 smoothing kernel the sharpness step blends against.
var smoothKernel = [9]int{1, 1, 1, 1, 5, 1, 1, 1, 1}

const smoothDivisor = 13

// smooth convolves interior pixels with smoothKernel; border pixels are copied as is.
func smooth(img *image.RGBA) *image.RGBA {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	out := image.NewRGBA(img.Rect)
	copy(out.Pix, img.Pix)
	if w < 3 || h < 3 {
		return out
	}
	stride := img.Stride
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			for c := 0; c < 3; c++ {
				acc, k := 0, 0
				for dy := -1; dy <= 1; dy++ {
					row := (y+dy)*stride + c
					for dx := -1; dx <= 1; dx++ {
						acc += smoothKernel[k] * int(img.Pix[row+(x+dx)*4])
						k++
					}
				}
				out.Pix[y*stride+x*4+c] = uint8((acc + smoothDivisor/2) / smoothDivisor)
			}
		}
	}
	return out
}

// adjustSharpness blends the image away from its smoothed copy.
func adjustSharpness(img *image.RGBA, factor float64) *image.RGBA {
	if factor == 1 {
		return img
	}
	deg := smooth(img)
	out := image.NewRGBA(img.Rect)
	for i := 0; i+3 < len(img.Pix); i += 4 {
		out.Pix[i] = blend(deg.Pix[i], img.Pix[i], factor)
		out.Pix[i+1] = blend(deg.Pix[i+1], img.Pix[i+1], factor)
		out.Pix[i+2] = blend(deg.Pix[i+2], img.Pix[i+2], factor)
		out.Pix[i+3] = 0xff
	}
	return out
}

// medianFilter replaces each channel value with the median of its size x size
// neighbourhood. Edges are extended by replicating the border pixels.
func medianFilter(img *image.RGBA, size int) *image.RGBA {
	if size <= 1 {
		return img
	}
	if size%2 == 0 {
		size++
	}
	r := size / 2
	w, h := img.Rect.Dx(), img.Rect.Dy()
	stride := img.Stride
	out := image.NewRGBA(img.Rect)
	window := make([]int, 0, size*size)

	clamp := func(v, hi int) int {
		if v < 0 {
			return 0
		}
		if v > hi {
			return hi
		}
		return v
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for c := 0; c < 3; c++ {
				window = window[:0]
				for dy := -r; dy <= r; dy++ {
					yy := clamp(y+dy, h-1)
					for dx := -r; dx <= r; dx++ {
						xx := clamp(x+dx, w-1)
						window = append(window, int(img.Pix[yy*stride+xx*4+c]))
					}
				}
				sort.Ints(window)
				out.Pix[y*stride+x*4+c] = uint8(window[len(window)/2])
			}
			out.Pix[y*stride+x*4+3] = 0xff
		}
	}
	return out
}
