package lyrics

import "lyrics-panel/pkg/lrc"

// Sentence 一句同步歌词
type Sentence = lrc.Sentence

// ParseLRC 解析LRC歌词，见 lrc.Parse
func ParseLRC(text string) ([]Sentence, bool) {
	return lrc.Parse(text)
}
