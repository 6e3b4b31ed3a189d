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
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrTraceNotFound 日志中没有该 trace_id
var ErrTraceNotFound = errors.New("trace not found")

const maxLineSize = 16 << 20

// ReadAll 读取全部记录；无法解析的行被跳过并计入 skipped
func ReadAll(r io.Reader) (records []*Record, skipped int, err error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		rec := &Record{}
		if err := json.Unmarshal(line, rec); err != nil {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	return records, skipped, sc.Err()
}

// Find 在日志文件中查找 trace_id 对应的记录；同一 trace 多次执行时返回最后一条
func Find(path, traceID string) (*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrTraceNotFound, traceID)
		}
		return nil, err
	}
	defer f.Close()

	records, _, err := ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].TraceID() == traceID {
			return records[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrTraceNotFound, traceID)
}
