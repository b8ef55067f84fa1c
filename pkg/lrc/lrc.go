// Package lrc parses and cleans LRC timed lyrics text.
package lrc

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Sentence 一句同步歌词
type Sentence struct {
	Time time.Duration `json:"time"`
	Text string        `json:"text"`
}

var (
	timeTagRe = regexp.MustCompile(`^\[(\d{1,3}):(\d{2})(?:[.:](\d{1,3}))?\]`)
	metaTagRe = regexp.MustCompile(`^\[(ar|ti|al|by|au|length|offset|re|ve|id|hash|sign|qq|total|kana|language):[^\]]*\]\s*$`)
)

// lines 按行切分，兼容 \r\n，不限制行长
func lines(text string) []string {
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}

// Parse 解析LRC歌词。结果按时间升序，第一项固定为 0 时刻的空句子（列表头），
// 没有任何时间标签时 ok 为 false。
func Parse(text string) (sentences []Sentence, ok bool) {
	// 零时刻空句子占位，对应列表的头部
	sentences = []Sentence{{Time: 0, Text: ""}}

	var timed []Sentence
	for _, line := range lines(text) {
		line = strings.TrimSpace(line)
		var stamps []time.Duration
		for {
			m := timeTagRe.FindStringSubmatch(line)
			if m == nil {
				break
			}
			stamps = append(stamps, tagTime(m[1], m[2], m[3]))
			line = line[len(m[0]):]
		}
		if len(stamps) == 0 {
			continue
		}
		line = strings.TrimSpace(line)
		for _, ts := range stamps {
			timed = append(timed, Sentence{Time: ts, Text: line})
		}
	}
	if len(timed) == 0 {
		return sentences, false
	}

	sort.SliceStable(timed, func(i, j int) bool { return timed[i].Time < timed[j].Time })
	return append(sentences, timed...), true
}

func tagTime(minStr, secStr, fracStr string) time.Duration {
	min, _ := strconv.Atoi(minStr)
	sec, _ := strconv.Atoi(secStr)
	ms := 0
	if fracStr != "" {
		ms, _ = strconv.Atoi(fracStr)
		// 根据小数位数换算毫秒
		switch len(fracStr) {
		case 1:
			ms *= 100
		case 2:
			ms *= 10
		}
	}
	return time.Duration(min)*time.Minute + time.Duration(sec)*time.Second + time.Duration(ms)*time.Millisecond
}

// StripMetadata drops LRC header tags such as [ar:] or [offset:].
func StripMetadata(text string) string {
	var b strings.Builder
	for _, line := range lines(text) {
		if metaTagRe.MatchString(strings.TrimSpace(line)) {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// PlainFromSynced removes time tags, keeping the text of each line.
func PlainFromSynced(text string) string {
	sentences, ok := Parse(text)
	if !ok {
		return strings.TrimSpace(text)
	}
	out := make([]string, 0, len(sentences)-1)
	for _, s := range sentences[1:] {
		out = append(out, s.Text)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
