// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package runlog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Latency step id -> 耗时（秒，保留两位小数），按写入顺序
type Latency struct {
	keys []string
	secs map[string]float64
}

// NewLatency 创建空耗时表
func NewLatency() *Latency {
	return &Latency{secs: map[string]float64{}}
}

// Round 秒数保留两位小数
func Round(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}

// Record 记录一个 step 的耗时；同一 step id 重复记录时覆盖数值
func (l *Latency) Record(stepID string, d time.Duration) {
	if _, ok := l.secs[stepID]; !ok {
		l.keys = append(l.keys, stepID)
	}
	l.secs[stepID] = Round(d)
}

// Get 读取耗时
func (l *Latency) Get(stepID string) (float64, bool) {
	v, ok := l.secs[stepID]
	return v, ok
}

// Keys 按写入顺序返回 step id
func (l *Latency) Keys() []string {
	return append([]string(nil), l.keys...)
}

// Len 已记录的 step 数
func (l *Latency) Len() int {
	return len(l.keys)
}

// MarshalJSON 按写入顺序输出对象
func (l *Latency) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range l.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, _ := json.Marshal(k)
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(l.secs[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON 按出现顺序解析
func (l *Latency) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '{'); err != nil {
		return err
	}
	l.keys = nil
	l.secs = map[string]float64{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("latency key: unexpected %v", tok)
		}
		var v float64
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("latency %s: %w", key, err)
		}
		if _, dup := l.secs[key]; !dup {
			l.keys = append(l.keys, key)
		}
		l.secs[key] = v
	}
	return expectDelim(dec, '}')
}
