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

package document

import (
	"regexp"
	"strings"
	"unicode"
)

var numberedHeading = regexp.MustCompile(`^(\d+(?:\.\d+)*)\.?\s+\S`)

const (
	maxHeadingRunes = 80
	maxHeadingWords = 10
)

// headingLevel 判断一行纯文本是否像标题："1.2 Results" 层级为 2，全大写短行层级为 1；0 表示正文
func headingLevel(line string) int {
	line = strings.TrimSpace(line)
	if line == "" || len([]rune(line)) > maxHeadingRunes {
		return 0
	}
	if strings.HasSuffix(line, ".") || strings.HasSuffix(line, ",") || strings.HasSuffix(line, ";") {
		return 0
	}
	if len(strings.Fields(line)) > maxHeadingWords {
		return 0
	}
	if m := numberedHeading.FindStringSubmatch(line); m != nil {
		rest := strings.TrimSpace(line[len(m[1]):])
		rest = strings.TrimPrefix(rest, ".")
		if !startsUpper(rest) {
			return 0
		}
		level := strings.Count(m[1], ".") + 1
		if level > 6 {
			level = 6
		}
		return level
	}
	letters, upper := 0, 0
	for _, r := range line {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters >= 3 && letters == upper {
		return 1
	}
	return 0
}

func startsUpper(s string) bool {
	for _, r := range strings.TrimSpace(s) {
		return unicode.IsUpper(r)
	}
	return false
}

// pageItems 将一页文本切成标题与段落；空行结束段落，段内换行折叠为空格
func pageItems(text string, page int) []Item {
	var items []Item
	var para []string
	flush := func() {
		if len(para) > 0 {
			items = append(items, Item{Kind: ItemText, Text: strings.Join(para, " "), Page: page})
			para = nil
		}
	}
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			flush()
			continue
		}
		if level := headingLevel(line); level > 0 {
			flush()
			items = append(items, Item{Kind: ItemHeading, Text: line, Level: level, Page: page})
			continue
		}
		para = append(para, line)
	}
	flush()
	return items
}
