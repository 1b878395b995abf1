package service

import (
	"bytes"
	"encoding/json"
	"strings"
)

// 作答内容的解析结果
type payloadStatus int

const (
	payloadOK payloadStatus = iota
	payloadEmpty
	payloadMalformed
)

// 选择题: "A" / ["A","C"] / {"selected": "A"} / {"selected": ["A","C"]}
type selectionPayload struct {
	Selected json.RawMessage `json:"selected"`
}

// 填空题: "word" / ["w1","w2"] / {"blanks": ["w1","w2"]}
type blanksPayload struct {
	Blanks json.RawMessage `json:"blanks"`
}

// 写作题: "essay" / {"text": "essay"}
type writingPayload struct {
	Text string `json:"text"`
}

// RecordingPayload 口语题的作答内容，由录音上传接口写入
type RecordingPayload struct {
	MediaKey    string  `json:"mediaKey"`
	DurationSec float64 `json:"durationSec,omitempty"`
}

func isEmptyPayload(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// decodeStrings 接受字符串或字符串数组
func decodeStrings(raw json.RawMessage) ([]string, payloadStatus) {
	if isEmptyPayload(raw) {
		return nil, payloadEmpty
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if strings.TrimSpace(single) == "" {
			return nil, payloadEmpty
		}
		return []string{single}, payloadOK
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) == 0 {
			return nil, payloadEmpty
		}
		return list, payloadOK
	}
	return nil, payloadMalformed
}

func decodeSelection(raw []byte) ([]string, payloadStatus) {
	if isEmptyPayload(raw) {
		return nil, payloadEmpty
	}
	if bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		var p selectionPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, payloadMalformed
		}
		return decodeStrings(p.Selected)
	}
	return decodeStrings(raw)
}

func decodeBlanks(raw []byte) ([]string, payloadStatus) {
	if isEmptyPayload(raw) {
		return nil, payloadEmpty
	}
	if bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		var p blanksPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, payloadMalformed
		}
		return decodeBlankList(p.Blanks)
	}
	return decodeBlankList(raw)
}

// 多空填空题中个别空未作答是合法的，不能当作整题未作答
func decodeBlankList(raw json.RawMessage) ([]string, payloadStatus) {
	values, status := decodeStrings(raw)
	if status != payloadOK {
		return nil, status
	}
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return values, payloadOK
		}
	}
	return nil, payloadEmpty
}

// decodeWriting 返回写作内容，格式不对时返回空字符串
func decodeWriting(raw []byte) string {
	if isEmptyPayload(raw) {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	var p writingPayload
	if err := json.Unmarshal(raw, &p); err == nil {
		return p.Text
	}
	return ""
}

func decodeRecording(raw []byte) (RecordingPayload, bool) {
	if isEmptyPayload(raw) {
		return RecordingPayload{}, false
	}
	var key string
	if err := json.Unmarshal(raw, &key); err == nil {
		return RecordingPayload{MediaKey: key}, key != ""
	}
	var p RecordingPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.MediaKey == "" {
		return RecordingPayload{}, false
	}
	return p, true
}

// 答案 key：填空题支持 ["a","b"]（单空的多个可接受答案）或 [["a","b"],["c"]]（每空一组）
func decodeAnswerKey(raw []byte) ([]string, bool) {
	values, status := decodeStrings(raw)
	return values, status == payloadOK
}

func decodeBlankKey(raw []byte) ([][]string, bool) {
	if isEmptyPayload(raw) {
		return nil, false
	}
	var nested [][]string
	if err := json.Unmarshal(raw, &nested); err == nil && len(nested) > 0 {
		return nested, true
	}
	flat, ok := decodeAnswerKey(raw)
	if !ok {
		return nil, false
	}
	return [][]string{flat}, true
}
