// Package imagetest builds small encoded images with EXIF blocks for tests.
package imagetest

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
)

// Gradient returns a w×h image whose pixels all differ, so every
// orientation transform is observable.
func Gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 9), G: uint8(y * 5), B: uint8((x*31 + y*17) % 256), A: 255})
		}
	}
	return img
}

// Exif returns a little-endian TIFF-structured EXIF block holding an
// Orientation tag and, if datetime is not empty, a DateTimeOriginal tag
// ("2006:01:02 15:04:05").
func Exif(orientation int, datetime string) []byte {
	le := binary.LittleEndian
	var buf bytes.Buffer
	write := func(v any) { _ = binary.Write(&buf, le, v) }

	buf.WriteString("II")
	write(uint16(42))
	write(uint32(8))

	entries := uint16(1)
	if datetime != "" {
		entries = 2
	}
	ifd0Size := 2 + 12*int(entries) + 4
	exifIFD := uint32(8 + ifd0Size)

	write(entries)
	// Orientation, SHORT, count 1, value left-justified.
	write(uint16(0x0112))
	write(uint16(3))
	write(uint32(1))
	write(uint16(orientation))
	write(uint16(0))
	if datetime != "" {
		// ExifIFDPointer, LONG.
		write(uint16(0x8769))
		write(uint16(4))
		write(uint32(1))
		write(exifIFD)
	}
	write(uint32(0))

	if datetime != "" {
		value := append([]byte(datetime), 0)
		write(uint16(1))
		// DateTimeOriginal, ASCII.
		write(uint16(0x9003))
		write(uint16(2))
		write(uint32(len(value)))
		write(exifIFD + 2 + 12 + 4)
		write(uint32(0))
		buf.Write(value)
	}

	return buf.Bytes()
}

// JPEG encodes img and, when exif is not nil, inserts it as an APP1 segment.
func JPEG(img image.Image, exif []byte) []byte {
	var out bytes.Buffer
	if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: 95}); err != nil {
		panic(err)
	}
	data := out.Bytes()
	if exif == nil {
		return data
	}

	payload := append([]byte("Exif\x00\x00"), exif...)
	segment := []byte{0xFF, 0xE1, 0, 0}
	binary.BigEndian.PutUint16(segment[2:], uint16(len(payload)+2))
	segment = append(segment, payload...)

	result := append([]byte{}, data[:2]...)
	result = append(result, segment...)
	return append(result, data[2:]...)
}

// PNG encodes img and, when exif is not nil, inserts an eXIf chunk after IHDR.
func PNG(img image.Image, exif []byte) []byte {
	var out bytes.Buffer
	if err := png.Encode(&out, img); err != nil {
		panic(err)
	}
	data := out.Bytes()
	if exif == nil {
		return data
	}

	// Signature (8) + IHDR chunk (4 length + 4 type + 13 data + 4 crc).
	const ihdrEnd = 8 + 25
	chunk := make([]byte, 8, 12+len(exif))
	binary.BigEndian.PutUint32(chunk[:4], uint32(len(exif)))
	copy(chunk[4:8], "eXIf")
	chunk = append(chunk, exif...)
	crc := crc32.ChecksumIEEE(chunk[4:])
	chunk = binary.BigEndian.AppendUint32(chunk, crc)

	result := append([]byte{}, data[:ihdrEnd]...)
	result = append(result, chunk...)
	return append(result, data[ihdrEnd:]...)
}
