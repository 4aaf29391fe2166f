package diagram

import (
	"bytes"
	"compress/flate"
	"io"
	"strings"
	"testing"
)

func TestEncodeBytes(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"固定三字节", []byte{0x00, 0x10, 0x83}, "0123"},
		{"全1", []byte{0xFF, 0xFF, 0xFF}, "____"},
		{"单字节补齐", []byte{0xF8}, "-000"},
		{"双字节补齐", []byte{0x00, 0x10}, "0100"},
		{"两组", []byte{0x00, 0x10, 0x83, 0x28, 0x00, 0x00}, "0123A000"},
		{"空输入", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EncodeBytes(tt.data); got != tt.want {
				t.Errorf("EncodeBytes(%x) = %q, want %q", tt.data, got, tt.want)
			}
		})
	}
}

func TestEncode_RawDeflate(t *testing.T) {
	text := "@startmindmap\n* 站点\n** 首页 — https://example.test/\n@endmindmap\n"
	token := Encode(text)

	if len(token)%4 != 0 {
		t.Fatalf("token长度 %d 不是4的倍数", len(token))
	}
	for _, c := range token {
		if !strings.ContainsRune(alphabet, c) {
			t.Fatalf("token包含非法字符 %q", c)
		}
	}
	if Encode(text) != token {
		t.Error("Encode() 结果不确定")
	}

	// 去掉zlib头尾后必须是可以直接inflate的原始deflate流
	data, err := DecodeBytes(token)
	if err != nil {
		t.Fatalf("DecodeBytes() error = %v", err)
	}
	out, err := io.ReadAll(flate.NewReader(bytes.NewReader(data)))
	if err != nil {
		t.Fatalf("inflate error = %v", err)
	}
	if string(out) != text {
		t.Errorf("inflate = %q, want %q", out, text)
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"a",
		"@startmindmap\n* Site\n@endmindmap",
		strings.Repeat("** 页面标题 — https://example.test/path\n", 50),
	}

	for _, in := range inputs {
		got, err := Decode(Encode(in))
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if got != in {
			t.Errorf("round trip = %q, want %q", got, in)
		}
	}
}

func TestDecodeBytes_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"长度错误", "012"},
		{"非法字符", "01+3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeBytes(tt.token); err == nil {
				t.Errorf("DecodeBytes(%q) 应返回错误", tt.token)
			}
		})
	}
}
