// Package interpreter 从视觉模型返回的文本中提取识别结果。
//
// 模型输出可能是纯文本、夹在说明文字或 markdown 代码块里的 JSON，
// 也可能是截断的 JSON。解析结果是二选一的：要么是结构化的检测列表，
// 要么是原样保留的文本，调用方必须显式处理两种情况。
package interpreter

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Kind 解析结果类型
type Kind int

const (
	// KindRaw 未能解析出 JSON，只保留原文
	KindRaw Kind = iota
	// KindStructured 解析出检测列表
	KindStructured
)

func (k Kind) String() string {
	if k == KindStructured {
		return "structured"
	}
	return "raw"
}

// MarshalJSON 输出为字符串
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// MaxPossibleSpecies 候选物种最多保留条数
const MaxPossibleSpecies = 5

// Box 归一化到 0-1 的边框，保证 X1<=X2、Y1<=Y2
type Box struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Detection 一条识别结果
type Detection struct {
	Label           string   `json:"label,omitempty"`
	Family          string   `json:"family,omitempty"`
	Genus           string   `json:"genus,omitempty"`
	Species         string   `json:"species,omitempty"`
	PossibleSpecies []string `json:"possibleSpecies,omitempty"`
	Confidence      *float64 `json:"confidence,omitempty"`
	Reasoning       string   `json:"reasoning,omitempty"`
	Box             *Box     `json:"box,omitempty"`
}

// Result 解析结果，Raw 总是原文
type Result struct {
	Kind       Kind        `json:"kind"`
	Detections []Detection `json:"detections"`
	Raw        string      `json:"raw"`
}

// IsStructured 是否解析成功
func (r Result) IsStructured() bool {
	return r.Kind == KindStructured
}

// Structured 返回检测列表，仅在解析成功时 ok 为 true
func (r Result) Structured() ([]Detection, bool) {
	if r.Kind != KindStructured {
		return nil, false
	}
	return r.Detections, true
}

// RawText 原始文本
func (r Result) RawText() string {
	return r.Raw
}

var (
	arrayPattern  = regexp.MustCompile(`\[[\s\S]*\]`)
	objectPattern = regexp.MustCompile(`\{[\s\S]*\}`)
)

var wrapperKeys = []string{"detections", "results", "predictions"}

// Interpret 解析模型输出，不会 panic 也不返回错误。
// 去掉代码块后以 '{' 开头的输出按对象解析，嵌在对象里的数组不会被当成结果列表
func Interpret(text string) Result {
	raw := Result{Kind: KindRaw, Detections: []Detection{}, Raw: text}

	parsers := []func(string) ([]Detection, bool){fromArray, fromObject}
	if strings.HasPrefix(ExtractJSONPayload(text), "{") {
		parsers = []func(string) ([]Detection, bool){fromObject, fromArray}
	}
	for _, parse := range parsers {
		if detections, ok := parse(text); ok {
			return Result{Kind: KindStructured, Detections: detections, Raw: text}
		}
	}
	return raw
}

// fromArray 先用贪婪匹配，失败后逐个 '[' 位置尝试解码；
// 落在可解码对象内部的数组跳过
func fromArray(text string) ([]Detection, bool) {
	spans := objectSpans(text)

	if loc := arrayPattern.FindStringIndex(text); loc != nil && !insideSpan(spans, loc[0]) {
		var items []json.RawMessage
		if err := json.Unmarshal([]byte(text[loc[0]:loc[1]]), &items); err == nil {
			if detections, ok := entriesFromItems(items); ok {
				return detections, true
			}
		}
	}

	for i := 0; i < len(text); i++ {
		if text[i] != '[' || insideSpan(spans, i) {
			continue
		}
		var items []json.RawMessage
		if err := json.NewDecoder(strings.NewReader(text[i:])).Decode(&items); err != nil {
			continue
		}
		if detections, ok := entriesFromItems(items); ok {
			return detections, true
		}
	}
	return nil, false
}

// span 文本中一个完整 JSON 对象的 [start, end) 区间
type span struct {
	start, end int
}

// objectSpans 找出所有能独立解码的最外层对象
func objectSpans(text string) []span {
	var spans []span
	for i := 0; i < len(text); i++ {
		if text[i] != '{' || insideSpan(spans, i) {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(text[i:]))
		var obj map[string]json.RawMessage
		if err := dec.Decode(&obj); err != nil {
			continue
		}
		spans = append(spans, span{start: i, end: i + int(dec.InputOffset())})
	}
	return spans
}

func insideSpan(spans []span, pos int) bool {
	for _, sp := range spans {
		if pos > sp.start && pos < sp.end {
			return true
		}
	}
	return false
}

func fromObject(text string) ([]Detection, bool) {
	if m := objectPattern.FindString(text); m != "" {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(m), &obj); err == nil {
			if detections, ok := entriesFromObject(obj); ok {
				return detections, true
			}
		}
	}

	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		var obj map[string]json.RawMessage
		if err := json.NewDecoder(strings.NewReader(text[i:])).Decode(&obj); err != nil {
			continue
		}
		if detections, ok := entriesFromObject(obj); ok {
			return detections, true
		}
	}
	return nil, false
}

// entriesFromItems 数组元素必须全部是对象；空数组视为零条结果
func entriesFromItems(items []json.RawMessage) ([]Detection, bool) {
	detections := make([]Detection, 0, len(items))
	for _, item := range items {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(item, &obj); err != nil {
			return nil, false
		}
		detections = append(detections, parseEntry(obj))
	}
	return detections, true
}

func entriesFromObject(obj map[string]json.RawMessage) ([]Detection, bool) {
	for _, key := range wrapperKeys {
		inner, ok := obj[key]
		if !ok {
			continue
		}
		var items []json.RawMessage
		if err := json.Unmarshal(inner, &items); err != nil {
			continue
		}
		return entriesFromItems(items)
	}

	if !hasKnownField(obj) {
		return nil, false
	}
	return []Detection{parseEntry(obj)}, true
}

var knownFields = []string{
	"box_2d", "bbox", "bounding_box",
	"label", "name", "common_name",
	"family", "genus",
	"species", "final_species", "scientific_name",
	"possible_species", "confidence", "reasoning",
}

func hasKnownField(obj map[string]json.RawMessage) bool {
	for _, f := range knownFields {
		if _, ok := obj[f]; ok {
			return true
		}
	}
	return false
}

func parseEntry(obj map[string]json.RawMessage) Detection {
	d := Detection{
		Label:     firstString(obj, "label", "name", "common_name"),
		Family:    firstString(obj, "family"),
		Genus:     firstString(obj, "genus"),
		Species:   firstString(obj, "final_species", "species", "scientific_name"),
		Reasoning: firstString(obj, "reasoning"),
	}

	if raw, ok := obj["possible_species"]; ok {
		d.PossibleSpecies = parseSpeciesList(raw)
	}

	if raw, ok := obj["confidence"]; ok {
		if v, ok := parseNumber(raw); ok {
			c := normalizeConfidence(v)
			d.Confidence = &c
		}
	}

	if raw, ok := obj["box_2d"]; ok {
		// [ymin, xmin, ymax, xmax]
		if v, ok := parseFour(raw); ok {
			b := NormalizeBox(v[1], v[0], v[3], v[2])
			d.Box = &b
		}
	}
	if d.Box == nil {
		for _, key := range []string{"bbox", "bounding_box"} {
			if raw, ok := obj[key]; ok {
				if v, ok := parseFour(raw); ok {
					b := NormalizeBox(v[0], v[1], v[2], v[3])
					d.Box = &b
					break
				}
			}
		}
	}

	return d
}

// NormalizeBox 两个角点 (a,b)、(c,d) 为 0-1000 坐标，
// 除以 1000 后按轴取最小/最大值，角点顺序不影响结果
func NormalizeBox(a, b, c, d float64) Box {
	return Box{
		X1: clamp01(minFloat(a, c) / 1000),
		Y1: clamp01(minFloat(b, d) / 1000),
		X2: clamp01(maxFloat(a, c) / 1000),
		Y2: clamp01(maxFloat(b, d) / 1000),
	}
}

// ExtractJSONPayload 去掉 markdown 代码块标记，截取最外层 JSON
func ExtractJSONPayload(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
		trimmed = strings.TrimSpace(trimmed)
	}

	start := strings.IndexAny(trimmed, "[{")
	if start < 0 {
		return trimmed
	}
	closer := "}"
	if trimmed[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(trimmed, closer)
	if end >= start {
		return trimmed[start : end+1]
	}
	return trimmed
}

func firstString(obj map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		raw, ok := obj[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// parseSpeciesList 兼容字符串数组和 {name|species} 对象数组
func parseSpeciesList(raw json.RawMessage) []string {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}

	out := make([]string, 0, MaxPossibleSpecies)
	for _, item := range items {
		if len(out) == MaxPossibleSpecies {
			break
		}
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
			continue
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(item, &obj); err == nil {
			if s := firstString(obj, "species", "scientific_name", "name"); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func parseNumber(raw json.RawMessage) (float64, bool) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSuffix(strings.TrimSpace(s), "%")
		n := json.Number(s)
		if v, err := n.Float64(); err == nil {
			return v, true
		}
	}
	return 0, false
}

func parseFour(raw json.RawMessage) ([4]float64, bool) {
	var out [4]float64

	var arr []float64
	if err := json.Unmarshal(raw, &arr); err == nil {
		if len(arr) != 4 {
			return out, false
		}
		copy(out[:], arr)
		return out, true
	}

	var obj struct {
		X1 *float64 `json:"x1"`
		Y1 *float64 `json:"y1"`
		X2 *float64 `json:"x2"`
		Y2 *float64 `json:"y2"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return out, false
	}
	if obj.X1 == nil || obj.Y1 == nil || obj.X2 == nil || obj.Y2 == nil {
		return out, false
	}
	return [4]float64{*obj.X1, *obj.Y1, *obj.X2, *obj.Y2}, true
}

// normalizeConfidence 0-100 的置信度折算到 0-1
func normalizeConfidence(v float64) float64 {
	if v > 1 {
		v = v / 100
	}
	return clamp01(v)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
