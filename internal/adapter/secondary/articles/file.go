package articles

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"pulse-voice/internal/domain"
)

// MaxPerTopic caps a batch, newest first, as the news server does.
const MaxPerTopic = 10

// FileSource serves batches from a JSON snapshot of the form
// {"technology": [article, ...], "sports": [...]}.
type FileSource struct {
	fs   afero.Fs
	path string
}

// NewFileSource reads snapshots from path on fs.
func NewFileSource(fs afero.Fs, path string) *FileSource {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &FileSource{fs: fs, path: path}
}

func (s *FileSource) read() (map[string][]domain.Article, error) {
	raw, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		return nil, errors.Wrapf(err, "articles: reading snapshot %s failed", s.path)
	}
	var byTopic map[string][]domain.Article
	if err := json.Unmarshal(raw, &byTopic); err != nil {
		return nil, errors.Wrapf(err, "articles: decoding snapshot %s failed", s.path)
	}
	return byTopic, nil
}

// Fetch returns the newest articles for topic. An unknown topic yields an
// unsuccessful, empty batch rather than an error.
func (s *FileSource) Fetch(ctx context.Context, topic string) (domain.ArticleBatch, error) {
	if err := ctx.Err(); err != nil {
		return domain.ArticleBatch{}, err
	}
	byTopic, err := s.read()
	if err != nil {
		return domain.ArticleBatch{}, err
	}
	list, ok := byTopic[topic]
	if !ok {
		return domain.ArticleBatch{Success: false, Topic: topic}, nil
	}
	list = append([]domain.Article(nil), list...)
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Timestamp.After(list[j].Timestamp)
	})
	if len(list) > MaxPerTopic {
		list = list[:MaxPerTopic]
	}
	for i := range list {
		list[i].Topic = topic
	}
	return domain.ArticleBatch{Success: true, Count: len(list), Articles: list, Topic: topic}, nil
}

// Topics lists the snapshot's topics in name order.
func (s *FileSource) Topics(ctx context.Context) ([]string, error) {
	byTopic, err := s.read()
	if err != nil {
		return nil, err
	}
	topics := make([]string, 0, len(byTopic))
	for t := range byTopic {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics, nil
}
