package garment

import (
	"encoding/json"
	"testing"
)

func TestSetKeyIsCanonical(t *testing.T) {
	tests := []struct {
		set  Set
		want string
	}{
		{NewSet(Top), "top"},
		{NewSet(Chunni, Top), "top+chunni"},
		{NewSet(Chunni, Bottom), "bottom+chunni"},
		{NewSet(Chunni, Bottom, Top), "top+bottom+chunni"},
		{NewSet(), ""},
	}
	for _, tt := range tests {
		if got := tt.set.Key(); got != tt.want {
			t.Errorf("Key() = %q, want %q", got, tt.want)
		}
	}
}

func TestSetToggle(t *testing.T) {
	s := NewSet()
	s = s.Toggle(Bottom)
	if !s.Has(Bottom) || s.Len() != 1 {
		t.Fatalf("expected {bottom}, got %v", s)
	}
	s = s.Toggle(Bottom)
	if !s.Empty() {
		t.Errorf("expected empty set after second toggle, got %v", s)
	}
	if s.Has(Kind("sleeve")) {
		t.Error("unknown kind must never be a member")
	}
}

func TestSetJSONRoundTrip(t *testing.T) {
	in := NewSet(Top, Chunni)
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out Set
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out != in {
		t.Errorf("round trip = %v, want %v", out, in)
	}

	if err := json.Unmarshal([]byte(`{"sleeve":true}`), &out); err == nil {
		t.Error("expected error for unknown garment kind")
	}
}

func TestParseKind(t *testing.T) {
	if k, err := ParseKind(" Chunni "); err != nil || k != Chunni {
		t.Errorf("ParseKind(Chunni) = %q, %v", k, err)
	}
	if _, err := ParseKind("dupatta"); err == nil {
		t.Error("expected error for dupatta")
	}
}

func TestSourceDescribe(t *testing.T) {
	img := &ImageSource{Name: "silk.png"}
	if got := img.Describe(); got != "Direct image: silk.png" {
		t.Errorf("image Describe() = %q", got)
	}

	page := &PageSource{DocumentName: "catalog.pdf", Page: 3}
	if got := page.Describe(); got != "PDF: catalog.pdf (Page 3)" {
		t.Errorf("page Describe() = %q", got)
	}
	page.Crop = &Crop{Image: Payload{Data: []byte{1}, MIMEType: "image/png"}}
	if got := page.Describe(); got != "PDF: catalog.pdf (Page 3) [cropped]" {
		t.Errorf("cropped page Describe() = %q", got)
	}
}

func TestPageSourcePayloadPrefersCrop(t *testing.T) {
	page := &PageSource{Preview: Payload{Data: []byte("preview"), MIMEType: "image/png"}}
	if string(page.Payload().Data) != "preview" {
		t.Fatalf("expected preview payload without crop")
	}
	page.Crop = &Crop{Image: Payload{Data: []byte("crop"), MIMEType: "image/png"}}
	if string(page.Payload().Data) != "crop" {
		t.Errorf("expected cropped payload, got %q", page.Payload().Data)
	}
}
