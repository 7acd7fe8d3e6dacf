package domain

import "time"

// Article is a news item with three generated narrations.
// It is read-only once loaded.
type Article struct {
	Title       string    `json:"title"`
	Source      string    `json:"source,omitempty"`
	Summary     string    `json:"summary_short,omitempty"`
	SourceURL   string    `json:"url"`
	AudioShort  string    `json:"audio_short"`
	AudioMedium string    `json:"audio_medium"`
	AudioFull   string    `json:"audio_full"`
	Timestamp   time.Time `json:"timestamp"`
	Topic       string    `json:"topic,omitempty"`
}

// AudioFor returns the narration URI for the given level.
func (a Article) AudioFor(level NarrationLevel) string {
	switch level {
	case LevelMedium:
		return a.AudioMedium
	case LevelFull:
		return a.AudioFull
	default:
		return a.AudioShort
	}
}

// ArticleBatch is the response of one topic fetch.
type ArticleBatch struct {
	Success  bool      `json:"success"`
	Count    int       `json:"count"`
	Articles []Article `json:"articles"`
	Topic    string    `json:"topic,omitempty"`
}

// Empty reports whether the batch carries no usable data.
func (b ArticleBatch) Empty() bool {
	return !b.Success || len(b.Articles) == 0
}
