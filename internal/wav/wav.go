// Package wav encodes raw little-endian s16le PCM samples as a canonical
// 44-byte-header WAV file.
package wav

import (
	"bytes"
	"encoding/binary"
	"io"
)

// Channels and BitsPerSample are fixed for this system: mono, 16-bit PCM.
const (
	Channels      = 1
	BitsPerSample = 16
)

// Encode writes a complete WAV file (header + payload) for the given
// samples at sampleRate to w. The header follows the canonical 44-byte
// RIFF/WAVE/fmt/data layout.
func Encode(w io.Writer, samples []int16, sampleRate int) error {
	dataSize := uint32(len(samples) * 2)
	fileSize := 36 + dataSize
	byteRate := uint32(sampleRate * Channels * BitsPerSample / 8)
	blockAlign := uint16(Channels * BitsPerSample / 8)

	if _, err := io.WriteString(w, "RIFF"); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, fileSize); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "WAVE"); err != nil {
		return err
	}

	if _, err := io.WriteString(w, "fmt "); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(16)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(1)); err != nil { // PCM
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(Channels)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(sampleRate)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, byteRate); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, blockAlign); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(BitsPerSample)); err != nil {
		return err
	}

	if _, err := io.WriteString(w, "data"); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, dataSize); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, samples)
}

// EncodeBytes is a convenience wrapper returning the encoded file as a byte
// slice, for callers that write the result atomically via a temp file.
func EncodeBytes(samples []int16, sampleRate int) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(44 + len(samples)*2)
	if err := Encode(&buf, samples, sampleRate); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
