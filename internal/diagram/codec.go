package diagram

import (
	"bytes"
	"compress/flate"
	"compress/zlib"
	"fmt"
	"io"
)

// alphabet PlantUML服务器使用的64字符编码表
const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-_"

// zlib头2字节,Adler-32校验4字节
const (
	zlibHeaderLen = 2
	zlibFooterLen = 4
)

var decodeMap = func() [256]int {
	var m [256]int
	for i := range m {
		m[i] = -1
	}
	for i := 0; i < len(alphabet); i++ {
		m[alphabet[i]] = i
	}
	return m
}()

// Encode 把图表文本压缩并编码为服务器URL中使用的token
func Encode(text string) string {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	// 写入bytes.Buffer不会失败
	_, _ = w.Write([]byte(text))
	_ = w.Close()

	raw := buf.Bytes()
	return EncodeBytes(raw[zlibHeaderLen : len(raw)-zlibFooterLen])
}

// EncodeBytes 每3个字节编码为4个字符,最后不足3字节时补0
func EncodeBytes(data []byte) string {
	out := make([]byte, 0, (len(data)+2)/3*4)
	for i := 0; i < len(data); i += 3 {
		var b1, b2, b3 byte
		b1 = data[i]
		if i+1 < len(data) {
			b2 = data[i+1]
		}
		if i+2 < len(data) {
			b3 = data[i+2]
		}
		out = append(out,
			alphabet[b1>>2],
			alphabet[(b1&0x3)<<4|b2>>4],
			alphabet[(b2&0xF)<<2|b3>>6],
			alphabet[b3&0x3F],
		)
	}
	return string(out)
}

// DecodeBytes EncodeBytes的逆过程,结果可能带有补齐的0字节
func DecodeBytes(token string) ([]byte, error) {
	if len(token)%4 != 0 {
		return nil, fmt.Errorf("token长度不是4的倍数: %d", len(token))
	}

	out := make([]byte, 0, len(token)/4*3)
	for i := 0; i < len(token); i += 4 {
		var c [4]byte
		for j := 0; j < 4; j++ {
			v := decodeMap[token[i+j]]
			if v < 0 {
				return nil, fmt.Errorf("token包含非法字符 %q (位置 %d)", token[i+j], i+j)
			}
			c[j] = byte(v)
		}
		out = append(out,
			c[0]<<2|c[1]>>4,
			(c[1]&0xF)<<4|c[2]>>2,
			(c[2]&0x3)<<6|c[3],
		)
	}
	return out, nil
}

// Decode 把token还原为图表文本
func Decode(token string) (string, error) {
	data, err := DecodeBytes(token)
	if err != nil {
		return "", err
	}

	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()

	text, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("解压token失败: %w", err)
	}
	return string(text), nil
}
