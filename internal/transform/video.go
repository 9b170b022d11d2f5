package transform

import (
	"fmt"

	"github.com/zsiec/avtranscode/internal/media"
)

// Video converts pixel format (yuv420p, rgb24, gray) and scales pictures
// with bilinear interpolation. Conversion happens at the source size and
// scaling runs per plane afterwards.
type Video struct {
	tmp []byte
}

// NewVideo returns a video transform.
func NewVideo() *Video {
	return &Video{}
}

// Convert implements Transform.
func (v *Video) Convert(src, dst *media.Frame) error {
	s, d := src.Video, dst.Video
	if s.FrameBytes() == 0 || d.FrameBytes() == 0 {
		return fmt.Errorf("transform: %w: invalid video shape %dx%d %s -> %dx%d %s", media.ErrConfiguration,
			s.Width, s.Height, s.PixelFormat, d.Width, d.Height, d.PixelFormat)
	}
	if src.Size() < s.FrameBytes() {
		return fmt.Errorf("transform: %w: picture has %d bytes, want %d", media.ErrCodec, src.Size(), s.FrameBytes())
	}
	if s.PixelFormat == d.PixelFormat && s.Width == d.Width && s.Height == d.Height {
		dst.CopyFrom(src)
		return nil
	}

	converted := src.Bytes()
	if s.PixelFormat != d.PixelFormat {
		size := d.PixelFormat.FrameSize(s.Width, s.Height)
		if cap(v.tmp) < size {
			v.tmp = make([]byte, size)
		}
		v.tmp = v.tmp[:size]
		convertPixels(src.Bytes(), s.PixelFormat, v.tmp, d.PixelFormat, s.Width, s.Height)
		converted = v.tmp
	}

	out := dst.SetSize(d.FrameBytes())
	if s.Width == d.Width && s.Height == d.Height {
		copy(out, converted)
		return nil
	}
	for _, p := range planes(d.PixelFormat, s.Width, s.Height) {
		q := planes(d.PixelFormat, d.Width, d.Height)[p.index]
		scalePlane(converted[p.offset:], p.width, p.height, p.comps, out[q.offset:], q.width, q.height)
	}
	return nil
}

type plane struct {
	index         int
	offset        int
	width, height int
	comps         int
}

func planes(pf media.PixelFormat, w, h int) []plane {
	switch pf {
	case media.PixelFormatYUV420P:
		cw, ch := (w+1)/2, (h+1)/2
		return []plane{
			{0, 0, w, h, 1},
			{1, w * h, cw, ch, 1},
			{2, w*h + cw*ch, cw, ch, 1},
		}
	case media.PixelFormatRGB24:
		return []plane{{0, 0, w, h, 3}}
	default:
		return []plane{{0, 0, w, h, 1}}
	}
}

// scalePlane scales one plane of interleaved comps-byte pixels using
// bilinear interpolation in 16.16 fixed point.
func scalePlane(src []byte, srcW, srcH, comps int, dst []byte, dstW, dstH int) {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return
	}
	xRatio := (srcW << 16) / dstW
	yRatio := (srcH << 16) / dstH
	srcStride := srcW * comps
	dstStride := dstW * comps

	for y := 0; y < dstH; y++ {
		srcYFP := y * yRatio
		y0 := srcYFP >> 16
		yWeight := srcYFP & 0xFFFF
		y1 := y0 + 1
		if y1 >= srcH {
			y1 = y0
		}
		for x := 0; x < dstW; x++ {
			srcXFP := x * xRatio
			x0 := srcXFP >> 16
			xWeight := srcXFP & 0xFFFF
			x1 := x0 + 1
			if x1 >= srcW {
				x1 = x0
			}
			for c := 0; c < comps; c++ {
				p00 := int(src[y0*srcStride+x0*comps+c])
				p10 := int(src[y0*srcStride+x1*comps+c])
				p01 := int(src[y1*srcStride+x0*comps+c])
				p11 := int(src[y1*srcStride+x1*comps+c])

				top := (p00*(0x10000-xWeight) + p10*xWeight) >> 16
				bottom := (p01*(0x10000-xWeight) + p11*xWeight) >> 16
				dst[y*dstStride+x*comps+c] = byte((top*(0x10000-yWeight) + bottom*yWeight) >> 16)
			}
		}
	}
}

func convertPixels(src []byte, sf media.PixelFormat, dst []byte, df media.PixelFormat, w, h int) {
	cw := (w + 1) / 2
	ch := (h + 1) / 2
	switch {
	case sf == media.PixelFormatYUV420P && df == media.PixelFormatGray8:
		copy(dst, src[:w*h])
	case sf == media.PixelFormatGray8 && df == media.PixelFormatYUV420P:
		copy(dst, src[:w*h])
		for i := w * h; i < len(dst); i++ {
			dst[i] = 128
		}
	case sf == media.PixelFormatYUV420P && df == media.PixelFormatRGB24:
		us, vs := src[w*h:], src[w*h+cw*ch:]
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				ci := (y/2)*cw + x/2
				r, g, b := yuvToRGB(src[y*w+x], us[ci], vs[ci])
				o := (y*w + x) * 3
				dst[o], dst[o+1], dst[o+2] = r, g, b
			}
		}
	case sf == media.PixelFormatRGB24 && df == media.PixelFormatYUV420P:
		ud, vd := dst[w*h:], dst[w*h+cw*ch:]
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				o := (y*w + x) * 3
				yy, u, v := rgbToYUV(src[o], src[o+1], src[o+2])
				dst[y*w+x] = yy
				if x%2 == 0 && y%2 == 0 {
					ci := (y/2)*cw + x/2
					ud[ci], vd[ci] = u, v
				}
			}
		}
	case sf == media.PixelFormatRGB24 && df == media.PixelFormatGray8:
		for i := 0; i < w*h; i++ {
			yy, _, _ := rgbToYUV(src[i*3], src[i*3+1], src[i*3+2])
			dst[i] = yy
		}
	case sf == media.PixelFormatGray8 && df == media.PixelFormatRGB24:
		for i := 0; i < w*h; i++ {
			r, g, b := yuvToRGB(src[i], 128, 128)
			dst[i*3], dst[i*3+1], dst[i*3+2] = r, g, b
		}
	}
}

// rgbToYUV converts RGB to YUV (BT.601, studio range).
func rgbToYUV(r, g, b uint8) (y, u, v uint8) {
	yf := 16.0 + 65.481*float64(r)/255.0 + 128.553*float64(g)/255.0 + 24.966*float64(b)/255.0
	uf := 128.0 - 37.797*float64(r)/255.0 - 74.203*float64(g)/255.0 + 112.0*float64(b)/255.0
	vf := 128.0 + 112.0*float64(r)/255.0 - 93.786*float64(g)/255.0 - 18.214*float64(b)/255.0

	y = uint8(clamp(yf+0.5, 16, 235))
	u = uint8(clamp(uf+0.5, 16, 240))
	v = uint8(clamp(vf+0.5, 16, 240))
	return
}

// yuvToRGB converts studio-range BT.601 YUV to RGB.
func yuvToRGB(y, u, v uint8) (r, g, b uint8) {
	yf := 1.164 * (float64(y) - 16)
	uf := float64(u) - 128
	vf := float64(v) - 128
	r = uint8(clamp(yf+1.596*vf+0.5, 0, 255))
	g = uint8(clamp(yf-0.392*uf-0.813*vf+0.5, 0, 255))
	b = uint8(clamp(yf+2.017*uf+0.5, 0, 255))
	return
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
