package domain

import "errors"

var (
	// ErrNoArticles indicates a navigation command with an empty article list.
	ErrNoArticles = errors.New("no articles loaded")

	// ErrAlreadyFull indicates "more" was requested at the Full level.
	ErrAlreadyFull = errors.New("already playing full version")

	// ErrInvalidLevel indicates an unknown narration level.
	ErrInvalidLevel = errors.New("narration level must be short, medium or full")

	// ErrIndexOutOfRange indicates a selection outside the article list.
	ErrIndexOutOfRange = errors.New("article index out of range")

	// ErrInvalidTopic indicates an empty or malformed topic.
	ErrInvalidTopic = errors.New("topic must be a non-empty word")

	// ErrNotInSession indicates text was fed to the listener while no capture session was open.
	ErrNotInSession = errors.New("listening session is not open")

	// ErrNoSource indicates a playback operation before any audio was loaded.
	ErrNoSource = errors.New("no audio source loaded")
)
