package speech

import (
	"encoding/binary"
	"testing"
)

func wav(pcm []byte) []byte {
	buf := make([]byte, 44+len(pcm))
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+len(pcm)))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(len(pcm)))
	copy(buf[44:], pcm)
	return buf
}

func TestToPCM(t *testing.T) {
	pcm := []byte{1, 2, 3, 4}

	got, err := toPCM(wav(pcm))
	if err != nil {
		t.Fatalf("wav: %v", err)
	}
	if string(got) != string(pcm) {
		t.Fatalf("expected data chunk %v, got %v", pcm, got)
	}

	got, err = toPCM([]byte{9, 8, 7})
	if err != nil {
		t.Fatalf("raw: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("odd raw PCM should be trimmed to whole samples, got %d bytes", len(got))
	}

	if _, err := toPCM(nil); err == nil {
		t.Fatal("expected error for empty audio")
	}
	if _, err := toPCM([]byte("RIFF....WAVE")); err == nil {
		t.Fatal("expected error for truncated wav")
	}
}
