package search

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCondition_UnmarshalVariants(t *testing.T) {
	// 显式 match
	var c Condition
	require.NoError(t, json.Unmarshal([]byte(`{"match": "golang"}`), &c))
	if c.Match != "golang" || c.Range != nil {
		t.Fatalf("match 条件解析错误: %+v", c)
	}

	// 裸标量简写
	var bare Condition
	require.NoError(t, json.Unmarshal([]byte(`"golang"`), &bare))
	if bare.Match != "golang" {
		t.Fatalf("裸标量应按等值匹配解析: %+v", bare)
	}

	var num Condition
	require.NoError(t, json.Unmarshal([]byte(`42`), &num))
	if num.Match != float64(42) {
		t.Fatalf("数值标量解析错误: %+v", num)
	}

	// range 条件
	var rng Condition
	require.NoError(t, json.Unmarshal([]byte(`{"range": {"gte": 2020, "lt": 2024}}`), &rng))
	require.NotNil(t, rng.Range)
	if *rng.Range.GTE != 2020 || *rng.Range.LT != 2024 {
		t.Fatalf("range 边界解析错误: %+v", rng.Range)
	}
	if rng.Range.GT != nil || rng.Range.LTE != nil {
		t.Fatalf("未设置的边界应为 nil")
	}
}

func TestCondition_UnmarshalRejectsInvalid(t *testing.T) {
	// match 与 range 互斥
	var c Condition
	err := json.Unmarshal([]byte(`{"match": "a", "range": {"gt": 1}}`), &c)
	require.Error(t, err)

	// 未知形态的对象
	var unknown Condition
	err = json.Unmarshal([]byte(`{"fuzzy": "a"}`), &unknown)
	require.Error(t, err)
}

func TestCondition_MarshalCanonical(t *testing.T) {
	data, err := json.Marshal(MatchCondition("docs"))
	require.NoError(t, err)
	require.JSONEq(t, `{"match": "docs"}`, string(data))

	gte := 10.0
	data, err = json.Marshal(Condition{Range: &RangeCondition{GTE: &gte}})
	require.NoError(t, err)
	require.JSONEq(t, `{"range": {"gte": 10}}`, string(data))
}
