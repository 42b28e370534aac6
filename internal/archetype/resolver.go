package archetype

import (
	"sort"
	"strings"
	"sync"

	"github.com/dtsong/trainerlab-sub000/internal/model"

	"github.com/sirupsen/logrus"
)

// 自由文本兜底的预期取值，不属于映射表覆盖缺口
const (
	LabelUnknown = "Unknown"
	LabelRogue   = "Rogue"
)

// Resolver 卡组归类器：按优先级链把名次行的视觉/文本信号映射为规范卡组名。
// 链路：(1)指纹精确命中映射表→sprite_lookup；(2)部分指纹启发式→auto_derive；
// (3)清洗后的文本标签→text_label。永不返回错误。
type Resolver struct {
	logger  *logrus.Logger
	mapping map[string]string // 排序连接后的指纹键→卡组名
	// byPart 单个指纹→卡组名（仅指纹键唯一指向一个卡组时收录，供启发式用）
	byPart map[string]string

	mu        sync.Mutex
	uncovered map[string]int // 落到text_label的非预期标签→出现次数（覆盖缺口诊断）
}

// NewResolver 用指纹映射表构建归类器
func NewResolver(logger *logrus.Logger, fingerprints []*model.ArchetypeFingerprint) *Resolver {
	mapping := make(map[string]string, len(fingerprints))
	partHits := make(map[string]map[string]struct{})
	for _, fp := range fingerprints {
		mapping[fp.FingerprintKey] = fp.ArchetypeName
		for _, part := range strings.Split(fp.FingerprintKey, "+") {
			if partHits[part] == nil {
				partHits[part] = make(map[string]struct{})
			}
			partHits[part][fp.ArchetypeName] = struct{}{}
		}
	}
	byPart := make(map[string]string)
	for part, names := range partHits {
		if len(names) == 1 {
			for name := range names {
				byPart[part] = name
			}
		}
	}
	return &Resolver{
		logger:    logger,
		mapping:   mapping,
		byPart:    byPart,
		uncovered: make(map[string]int),
	}
}

// CanonicalKey 多个指纹排序后用"+"连接的规范形式（与映射表键一致）
func CanonicalKey(fingerprints []string) string {
	cleaned := make([]string, 0, len(fingerprints))
	for _, fp := range fingerprints {
		if fp = strings.TrimSpace(fp); fp != "" {
			cleaned = append(cleaned, fp)
		}
	}
	sort.Strings(cleaned)
	return strings.Join(cleaned, "+")
}

// Resolve 归类单个名次的卡组，返回卡组名与归类方式
func (r *Resolver) Resolve(fingerprints []string, rawLabel string) (string, string) {
	// 1. 指纹精确命中
	if key := CanonicalKey(fingerprints); key != "" {
		if name, ok := r.mapping[key]; ok {
			return name, model.MethodSpriteLookup
		}
		// 2. 部分指纹启发式：任一指纹唯一指向某个卡组即采用
		for _, part := range strings.Split(key, "+") {
			if name, ok := r.byPart[part]; ok {
				return name, model.MethodAutoDerive
			}
		}
	}

	// 3. 文本兜底
	label := cleanLabel(rawLabel)
	if label == "" {
		label = LabelUnknown
	}
	if label != LabelUnknown && label != LabelRogue {
		// Unknown/Rogue是预期结果，不计入覆盖缺口
		r.mu.Lock()
		r.uncovered[label]++
		r.mu.Unlock()
	}
	return label, model.MethodTextLabel
}

// Uncovered 返回映射表未覆盖的标签及出现次数（诊断用，已排除Unknown/Rogue）
func (r *Resolver) Uncovered() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.uncovered))
	for k, v := range r.uncovered {
		out[k] = v
	}
	return out
}

// cleanLabel 清洗文本标签：合并空白、去首尾、统一"unknown"/"rogue"大小写
func cleanLabel(s string) string {
	s = strings.TrimSpace(strings.Join(strings.Fields(s), " "))
	switch strings.ToLower(s) {
	case "unknown", "":
		return LabelUnknown
	case "rogue", "other", "others":
		return LabelRogue
	}
	return s
}
