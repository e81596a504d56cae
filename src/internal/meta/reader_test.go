package meta

import (
	"testing"

	"github.com/dhowden/tag"
)

func TestParseGain(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{in: "-8.50 dB", want: -8.5},
		{in: "+2.10 dB", want: 2.1},
		{in: "-8.50dB", want: -8.5},
		{in: "-8.50 db", want: -8.5},
		{in: " 0.00 dB ", want: 0},
		{in: "3.25", want: 3.25},
		{in: "garbage", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseGain(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseGain(%q) = %v, want error", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseGain(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseGain(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParsePeak(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{in: "0.950000", want: 0.95},
		{in: " 1.0 ", want: 1},
		{in: "peak", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParsePeak(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParsePeak(%q) = %v, want error", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParsePeak(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePeak(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRawIndex(t *testing.T) {
	raw := map[string]interface{}{
		// ID3v2 user-defined text frame: name in the Comm description
		"TXXX:0": &tag.Comm{Description: "REPLAYGAIN_TRACK_GAIN", Text: "-8.50 dB"},
		// vorbis comment
		"REPLAYGAIN_TRACK_PEAK": "0.950000",
		// MP4 freeform atom
		"----:com.apple.iTunes:replaygain_album_gain": "-7.00 dB",
		"TSRC": "USRC17607839",
	}

	idx := rawIndex(raw)

	if got := rawString(idx, "isrc", "tsrc"); got != "USRC17607839" {
		t.Errorf("ISRC = %q", got)
	}
	if g := rawGain(idx, "replaygain_track_gain"); g == nil || *g != -8.5 {
		t.Errorf("track gain = %v", g)
	}
	if p := rawPeak(idx, "replaygain_track_peak"); p == nil || *p != 0.95 {
		t.Errorf("track peak = %v", p)
	}
	if g := rawGain(idx, "replaygain_album_gain"); g == nil || *g != -7 {
		t.Errorf("album gain = %v", g)
	}
	if g := rawGain(idx, "replaygain_album_peak"); g != nil {
		t.Errorf("absent album peak = %v, want nil", g)
	}
}
