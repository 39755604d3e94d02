package network

import (
	"regexp"

	"golang.org/x/text/encoding/charmap"
)

// PayloadText 按 ISO-8859-1 逐字节解码载荷，使正则中的 \xNN 与字节 NN 一一对应。
// Go 的正则基于 UTF-8，直接匹配 []byte 时 0x80 以上的字节无法按值匹配。
func PayloadText(payload []byte) string {
	b, err := charmap.ISO8859_1.NewDecoder().Bytes(payload)
	if err != nil {
		// ISO-8859-1 覆盖全部 256 个字节值，不会出错
		return string(payload)
	}
	return string(b)
}

// MatchPayload 判断载荷是否匹配规则
func MatchPayload(pattern *regexp.Regexp, payload []byte) bool {
	return pattern.MatchString(PayloadText(payload))
}
