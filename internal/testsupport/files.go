package testsupport

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// MediaBytes returns size bytes shaped like the media type implied by name:
// a RIFF/WAVE header for .wav, an ID3 tag followed by an MPEG frame header for
// .mp3, and zeroed bytes otherwise. The result is never shorter than the
// header.
func MediaBytes(name string, size int) []byte {
	var header []byte
	switch strings.ToLower(filepath.Ext(name)) {
	case ".wav":
		header = wavHeader(size)
	case ".mp3":
		header = []byte("ID3\x04\x00\x00\x00\x00\x00\x00\xff\xfb\x90\x64")
	}
	if size < len(header) {
		size = len(header)
	}
	if size <= 0 {
		size = 1
	}
	out := make([]byte, size)
	copy(out, header)
	return out
}

// wavHeader builds a 16-bit mono 16 kHz PCM header for a file of size bytes.
func wavHeader(size int) []byte {
	const headerLen = 44
	dataLen := max(size-headerLen, 0)
	h := make([]byte, headerLen)
	copy(h[0:], "RIFF")
	binary.LittleEndian.PutUint32(h[4:], uint32(36+dataLen))
	copy(h[8:], "WAVEfmt ")
	binary.LittleEndian.PutUint32(h[16:], 16)
	binary.LittleEndian.PutUint16(h[20:], 1)
	binary.LittleEndian.PutUint16(h[22:], 1)
	binary.LittleEndian.PutUint32(h[24:], 16000)
	binary.LittleEndian.PutUint32(h[28:], 32000)
	binary.LittleEndian.PutUint16(h[32:], 2)
	binary.LittleEndian.PutUint16(h[34:], 16)
	copy(h[36:], "data")
	binary.LittleEndian.PutUint32(h[40:], uint32(dataLen))
	return h
}

// WriteMedia writes MediaBytes(path, size) to path, creating parent
// directories.
func WriteMedia(t testing.TB, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, MediaBytes(path, size), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
