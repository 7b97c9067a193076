package tray

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"log"
	"runtime"
	"sync"
)

const iconSize = 32

var (
	iconOnce sync.Once
	iconData []byte
)

// iconBytes returns the tray icon: PNG, wrapped in an ICO container on Windows.
func iconBytes() []byte {
	iconOnce.Do(func() {
		data, err := renderIcon()
		if err != nil {
			log.Printf("Tray icon render failed: %v", err)
			return
		}
		if runtime.GOOS == "windows" {
			data = wrapICO(data, iconSize)
		}
		iconData = data
	})
	return iconData
}

// renderIcon draws a speaker with two sound waves.
func renderIcon() ([]byte, error) {
	img := image.NewNRGBA(image.Rect(0, 0, iconSize, iconSize))
	ink := color.NRGBA{R: 0x00, G: 0x78, B: 0xd4, A: 0xff}

	for y := 0; y < iconSize; y++ {
		for x := 0; x < iconSize; x++ {
			if speakerAt(x, y) || waveAt(x, y) {
				img.Set(x, y, ink)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func speakerAt(x, y int) bool {
	// Box 4..9 x 12..19, cone widening from x=10 to x=16.
	if x >= 4 && x <= 9 && y >= 12 && y <= 19 {
		return true
	}
	if x >= 10 && x <= 16 {
		spread := x - 10
		return y >= 12-spread && y <= 19+spread
	}
	return false
}

func waveAt(x, y int) bool {
	if x <= 17 {
		return false
	}
	dx, dy := float64(x-16), float64(y)-15.5
	d := dx*dx + dy*dy
	return (d >= 30 && d <= 42) || (d >= 90 && d <= 110)
}

// wrapICO embeds a PNG in a single-image ICO file.
func wrapICO(pngData []byte, size int) []byte {
	var buf bytes.Buffer
	// ICONDIR
	_ = binary.Write(&buf, binary.LittleEndian, [3]uint16{0, 1, 1})
	// ICONDIRENTRY; 0 encodes 256.
	dim := byte(size)
	if size >= 256 {
		dim = 0
	}
	buf.Write([]byte{dim, dim, 0, 0})
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(32))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pngData)))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(6+16))
	buf.Write(pngData)
	return buf.Bytes()
}
