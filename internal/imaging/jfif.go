package imaging

import (
	"bytes"
	"encoding/binary"
	"errors"
)

var errNotJPEG = errors.New("not a JPEG stream")

// SetJPEGDensity tags a JPEG stream with a JFIF APP0 segment declaring dpi
// in both directions. An existing JFIF segment is rewritten in place.
// image/jpeg writes no APP0, so one is inserted right after SOI.
func SetJPEGDensity(data []byte, dpi int) ([]byte, error) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return nil, errNotJPEG
	}
	if dpi <= 0 {
		return data, nil
	}
	density := uint16(min(dpi, 0xFFFF))

	if data[2] == 0xFF && data[3] == 0xE0 && len(data) >= 18 && bytes.Equal(data[6:11], []byte("JFIF\x00")) {
		out := append([]byte(nil), data...)
		out[13] = 1 // units: dots per inch
		binary.BigEndian.PutUint16(out[14:16], density)
		binary.BigEndian.PutUint16(out[16:18], density)
		return out, nil
	}

	seg := make([]byte, 0, 18)
	seg = append(seg, 0xFF, 0xE0, 0x00, 0x10)
	seg = append(seg, 'J', 'F', 'I', 'F', 0x00)
	seg = append(seg, 0x01, 0x01) // version 1.01
	seg = append(seg, 0x01)       // units: dots per inch
	seg = binary.BigEndian.AppendUint16(seg, density)
	seg = binary.BigEndian.AppendUint16(seg, density)
	seg = append(seg, 0x00, 0x00) // no thumbnail

	out := make([]byte, 0, len(data)+len(seg))
	out = append(out, data[:2]...)
	out = append(out, seg...)
	out = append(out, data[2:]...)
	return out, nil
}

// JPEGDensity returns the horizontal density declared by a JFIF APP0
// segment in dots per inch, or 0 when there is none.
func JPEGDensity(data []byte) int {
	if len(data) < 18 || data[0] != 0xFF || data[1] != 0xD8 || data[2] != 0xFF || data[3] != 0xE0 {
		return 0
	}
	if !bytes.Equal(data[6:11], []byte("JFIF\x00")) || data[13] != 1 {
		return 0
	}
	return int(binary.BigEndian.Uint16(data[14:16]))
}
