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

package observe

import (
	"context"

	"mini-rag/internal/pipeline"
	"mini-rag/pkg/metrics"
)

// Metrics 记录 step 耗时、失败次数与运行结果；name 作为 pipeline 标签
type Metrics struct {
	pipeline.NopObserver
	name string
}

// NewMetrics 创建指标观察者，name 如 "ingest"、"ask"
func NewMetrics(name string) *Metrics {
	return &Metrics{name: name}
}

// StepFinished 实现 pipeline.Observer
func (m *Metrics) StepFinished(_ context.Context, ev pipeline.StepEvent) {
	metrics.StepDuration.WithLabelValues(m.name, ev.Kind).Observe(ev.Elapsed.Seconds())
	if ev.Err != nil {
		metrics.StepFailTotal.WithLabelValues(m.name, ev.Kind).Inc()
	}
}

// RunFinished 实现 pipeline.Observer
func (m *Metrics) RunFinished(_ context.Context, info pipeline.RunInfo) {
	status := "completed"
	if info.Err != nil {
		status = "failed"
	}
	metrics.RunTotal.WithLabelValues(m.name, status).Inc()
}
