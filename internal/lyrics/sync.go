package lyrics

import (
	"sync"
	"time"
)

// Synchronized tracks the active sentence against a playback clock.
type Synchronized struct {
	Sentences []Sentence

	position func() time.Duration
	mu       sync.Mutex
	index    int
}

// NewSynchronized 创建同步歌词跟踪器，position 返回当前播放位置（已含提前量）
func NewSynchronized(sentences []Sentence, position func() time.Duration) *Synchronized {
	s := &Synchronized{Sentences: sentences, position: position}
	s.index = s.currentIndex()
	return s
}

// Index returns the active sentence index.
func (s *Synchronized) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// Update re-reads the clock and reports whether the active sentence changed.
func (s *Synchronized) Update() bool {
	newIndex := s.currentIndex()

	s.mu.Lock()
	defer s.mu.Unlock()
	if newIndex == s.index {
		return false
	}
	s.index = newIndex
	return true
}

func (s *Synchronized) currentIndex() int {
	return IndexAt(s.Sentences, s.position())
}

// IndexAt 返回 t 时刻对应的句子下标：最后一个 Time <= t 的句子，都不满足时返回 0
func IndexAt(sentences []Sentence, t time.Duration) int {
	if len(sentences) == 0 || t < sentences[0].Time {
		return 0
	}

	// 二分查找
	left, right := 0, len(sentences)-1
	result := 0
	for left <= right {
		mid := (left + right) / 2
		if sentences[mid].Time <= t {
			result = mid
			left = mid + 1
		} else {
			right = mid - 1
		}
	}
	return result
}
