package session

import (
	"testing"
	"time"
)

// FuzzSessionDecode exercises the record decoder with arbitrary inputs.
// Goal: no panics, and anything accepted must re-encode.
func FuzzSessionDecode(f *testing.F) {
	img := "http://img"
	credits := int64(3)
	encoded, err := Encode(&Profile{
		ID:       7,
		Username: "fuzz",
		Email:    "fuzz@example.com",
		Role:     "admin",
		ImageURL: &img,
		Credits:  &credits,
	}, time.UnixMilli(1_700_000_000_000))
	if err == nil {
		f.Add(encoded)
	}

	f.Add([]byte{})
	f.Add([]byte{0})
	f.Add([]byte{CurrentSchemaVersion})
	f.Add([]byte{CurrentSchemaVersion, '{', '}'})
	f.Add([]byte{255, 255, 255})
	if len(encoded) > 10 {
		f.Add(encoded[:10])
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		p, validatedAt, err := Decode(data)
		if err != nil {
			return
		}
		if p == nil {
			t.Fatal("Decode returned nil profile without error")
		}
		if _, err := Encode(p, validatedAt); err != nil {
			t.Fatalf("accepted record failed to re-encode: %v", err)
		}
	})
}
