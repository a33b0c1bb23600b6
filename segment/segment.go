/*
 * Copyright 2024 The SparkBridge Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package segment implements the message-segment model shared by both
// protocol generations: v11 carries segments inline as CQ codes
// ("[CQ:at,qq=123]") inside the message string, v12 carries them as a JSON
// array. Both forms decode into []Segment.
//
// Package segment 实现两代协议共用的消息段模型。
package segment

import (
	"strings"

	"github.com/sparkbridge/sparkbridge3/utils/str"
)

// 常用消息段类型
const (
	TypeText = "text"
	TypeAt   = "at"
	TypeImg  = "image"
)

// Segment 单个消息段
type Segment struct {
	Type string            `json:"type"`
	Data map[string]string `json:"data"`
}

// Text 创建文本消息段
func Text(text string) Segment {
	return Segment{Type: TypeText, Data: map[string]string{"text": text}}
}

// At 创建 @某人 消息段（v11 的 key 是 qq）
func At(userID string) Segment {
	return Segment{Type: TypeAt, Data: map[string]string{"qq": userID}}
}

// Mention 创建 v12 的提及消息段
func Mention(userID string) Segment {
	return Segment{Type: "mention", Data: map[string]string{"user_id": userID}}
}

// Image 创建图片消息段，file 为路径、URL 或 base64:// 数据
func Image(file string) Segment {
	return Segment{Type: TypeImg, Data: map[string]string{"file": file}}
}

// PlainText concatenates the text segments, ignoring everything else. This
// is what the rule engine matches conditions against.
func PlainText(segments []Segment) string {
	var builder strings.Builder
	for _, seg := range segments {
		if seg.Type == TypeText {
			builder.WriteString(seg.Data["text"])
		}
	}
	return builder.String()
}

// escape 转义 CQ 码里的保留字符
func escape(s string, escapeComma bool) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "[", "&#91;")
	s = strings.ReplaceAll(s, "]", "&#93;")
	if escapeComma {
		s = strings.ReplaceAll(s, ",", "&#44;")
	}
	return s
}

func unescape(s string) string {
	s = strings.ReplaceAll(s, "&#44;", ",")
	s = strings.ReplaceAll(s, "&#91;", "[")
	s = strings.ReplaceAll(s, "&#93;", "]")
	s = strings.ReplaceAll(s, "&amp;", "&")
	return s
}

// ToCQString renders segments back into a v11 message string.
func ToCQString(segments []Segment) string {
	var builder strings.Builder
	for _, seg := range segments {
		if seg.Type == TypeText {
			builder.WriteString(escape(seg.Data["text"], false))
			continue
		}
		builder.WriteString("[CQ:")
		builder.WriteString(seg.Type)
		for k, v := range seg.Data {
			builder.WriteString(",")
			builder.WriteString(k)
			builder.WriteString("=")
			builder.WriteString(escape(v, true))
		}
		builder.WriteString("]")
	}
	return builder.String()
}

// parseSingleCode 解析一个完整的 "[CQ:type,k=v,...]" 片段
func parseSingleCode(code string) Segment {
	seg := Segment{Data: map[string]string{}}
	parts := strings.Split(code[1:len(code)-1], ",")
	if strings.HasPrefix(parts[0], "CQ:") {
		seg.Type = parts[0][3:]
	}
	for _, part := range parts[1:] {
		if i := strings.Index(part, "="); i > -1 {
			seg.Data[unescape(part[:i])] = unescape(part[i+1:])
		}
	}
	return seg
}

// ParseCQString splits a v11 message string into segments. Malformed CQ
// codes (no closing bracket) are kept as literal text.
func ParseCQString(s string) []Segment {
	var segments []Segment
	var textBuffer strings.Builder

	flush := func() {
		if textBuffer.Len() > 0 {
			segments = append(segments, Text(unescape(textBuffer.String())))
			textBuffer.Reset()
		}
	}

	for i := 0; i < len(s); i++ {
		if s[i] == '[' && strings.HasPrefix(s[i:], "[CQ:") {
			end := strings.IndexByte(s[i:], ']')
			if end != -1 {
				flush()
				segments = append(segments, parseSingleCode(s[i:i+end+1]))
				i += end
				continue
			}
		}
		textBuffer.WriteByte(s[i])
	}
	flush()
	return segments
}

// FromRaw decodes the message field of a raw event: a string is treated as a
// v11 CQ string, an array as segment objects of either generation.
func FromRaw(raw interface{}) []Segment {
	switch v := raw.(type) {
	case string:
		return ParseCQString(v)
	case []interface{}:
		var segments []Segment
		for _, item := range v {
			m, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			seg := Segment{Type: str.ToString(m["type"]), Data: map[string]string{}}
			if data, ok := m["data"].(map[string]interface{}); ok {
				for k, dv := range data {
					seg.Data[k] = str.ToString(dv)
				}
			}
			segments = append(segments, seg)
		}
		return segments
	default:
		return nil
	}
}
