package search

import (
	"encoding/json"
	"fmt"
)

// RangeCondition 数值范围条件，nil 字段表示该边界未设置
type RangeCondition struct {
	GT  *float64 `json:"gt,omitempty"`
	GTE *float64 `json:"gte,omitempty"`
	LT  *float64 `json:"lt,omitempty"`
	LTE *float64 `json:"lte,omitempty"`
}

// Condition 过滤条件的变体类型：等值匹配或数值范围，二者取其一
// 所有顶层条件按 AND 语义组合（must），不支持 OR
type Condition struct {
	Match any
	Range *RangeCondition
}

// MatchCondition 构造等值条件
func MatchCondition(value any) Condition {
	return Condition{Match: value}
}

// UnmarshalJSON 支持三种形态:
// {"match": v}、{"range": {"gte": 1}}、以及裸标量（等值简写）
func (c *Condition) UnmarshalJSON(data []byte) error {
	var shaped struct {
		Match *json.RawMessage `json:"match"`
		Range *RangeCondition  `json:"range"`
	}
	if err := json.Unmarshal(data, &shaped); err == nil && (shaped.Match != nil || shaped.Range != nil) {
		if shaped.Match != nil && shaped.Range != nil {
			return fmt.Errorf("过滤条件不能同时包含 match 与 range")
		}
		if shaped.Match != nil {
			var v any
			if err := json.Unmarshal(*shaped.Match, &v); err != nil {
				return err
			}
			c.Match = v
			return nil
		}
		c.Range = shaped.Range
		return nil
	}

	// 裸标量简写
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if _, isMap := v.(map[string]any); isMap {
		return fmt.Errorf("无法识别的过滤条件: %s", string(data))
	}
	c.Match = v
	return nil
}

// MarshalJSON 输出规范形态（match/range 显式标注）
func (c Condition) MarshalJSON() ([]byte, error) {
	if c.Range != nil {
		return json.Marshal(map[string]any{"range": c.Range})
	}
	return json.Marshal(map[string]any{"match": c.Match})
}

// canonical 返回条件的规范 map 表示，用于缓存键的稳定序列化
func (c Condition) canonical() map[string]any {
	if c.Range != nil {
		r := map[string]any{}
		if c.Range.GT != nil {
			r["gt"] = *c.Range.GT
		}
		if c.Range.GTE != nil {
			r["gte"] = *c.Range.GTE
		}
		if c.Range.LT != nil {
			r["lt"] = *c.Range.LT
		}
		if c.Range.LTE != nil {
			r["lte"] = *c.Range.LTE
		}
		return map[string]any{"range": r}
	}
	return map[string]any{"match": c.Match}
}

// canonicalConditions 将过滤条件映射转为规范表示
// encoding/json 对 map 键排序，保证不同插入顺序得到同一序列化结果
func canonicalConditions(conditions map[string]Condition) map[string]any {
	if len(conditions) == 0 {
		return nil
	}
	out := make(map[string]any, len(conditions))
	for key, cond := range conditions {
		out[key] = cond.canonical()
	}
	return out
}
