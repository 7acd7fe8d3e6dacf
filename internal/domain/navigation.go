package domain

// NavigationState tracks where the user is in the article list.
// It has value semantics: every operation returns a new state and leaves
// the receiver untouched. Index is -1 while the list is empty.
type NavigationState struct {
	Articles []Article
	Index    int
	Level    NarrationLevel
}

// NewNavigationState returns an empty state at Short level.
func NewNavigationState() NavigationState {
	return NavigationState{Index: -1, Level: LevelShort}
}

// Replace swaps the article list wholesale. Index resets to 0, Level is kept.
func (n NavigationState) Replace(articles []Article) NavigationState {
	out := NavigationState{Level: n.Level, Index: -1}
	if len(articles) > 0 {
		out.Articles = append([]Article(nil), articles...)
		out.Index = 0
	}
	return out
}

// Empty reports whether no articles are loaded.
func (n NavigationState) Empty() bool {
	return len(n.Articles) == 0
}

// Current returns the article at Index.
func (n NavigationState) Current() (Article, bool) {
	if n.Empty() || n.Index < 0 || n.Index >= len(n.Articles) {
		return Article{}, false
	}
	return n.Articles[n.Index], true
}

// Next moves forward one article, wrapping to the start.
func (n NavigationState) Next() (NavigationState, error) {
	if n.Empty() {
		return n, ErrNoArticles
	}
	n.Index = (n.Index + 1) % len(n.Articles)
	return n, nil
}

// Previous moves back one article, wrapping to the end.
func (n NavigationState) Previous() (NavigationState, error) {
	if n.Empty() {
		return n, ErrNoArticles
	}
	n.Index = (n.Index - 1 + len(n.Articles)) % len(n.Articles)
	return n, nil
}

// More upgrades the level by one step. At Full it returns ErrAlreadyFull.
func (n NavigationState) More() (NavigationState, error) {
	if n.Empty() {
		return n, ErrNoArticles
	}
	next, ok := n.Level.Upgrade()
	if !ok {
		return n, ErrAlreadyFull
	}
	n.Level = next
	return n, nil
}

// WithLevel sets the level for replaying the current article.
func (n NavigationState) WithLevel(level NarrationLevel) (NavigationState, error) {
	if n.Empty() {
		return n, ErrNoArticles
	}
	if !level.Valid() {
		return n, ErrInvalidLevel
	}
	n.Level = level
	return n, nil
}

// Select jumps to an article and level, as a card button does.
func (n NavigationState) Select(index int, level NarrationLevel) (NavigationState, error) {
	if n.Empty() {
		return n, ErrNoArticles
	}
	if index < 0 || index >= len(n.Articles) {
		return n, ErrIndexOutOfRange
	}
	if !level.Valid() {
		return n, ErrInvalidLevel
	}
	n.Index = index
	n.Level = level
	return n, nil
}
