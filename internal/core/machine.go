package core

import (
	"errors"
	"fmt"
	"time"

	"pulse-voice/internal/domain"
)

var commands = NewRegistry()

// HandleEvent is a pure function that takes the current state, an event and
// the device facts observed just before it, and returns the new state along
// with the effects to execute. It performs no I/O.
func HandleEvent(state State, event Event, facts DeviceFacts) (State, []Effect, error) {
	switch event.Type {
	case EventEnable:
		return handleEnable(state, facts)
	case EventDisable:
		return handleDisable(state)
	case EventToggle:
		if state.Enabled {
			return handleDisable(state)
		}
		return handleEnable(state, facts)
	case EventDeviceStarted:
		s, effects := silence(state)
		return s, effects, nil
	case EventDevicePaused:
		return handlePaused(state, facts)
	case EventDeviceEnded:
		return handleEnded(state)
	case EventDeviceError:
		state.TrackInfo = "Error loading audio"
		return state, []Effect{notice("Failed to load audio file", domain.NoticeDanger)}, nil
	case EventTranscript:
		if !state.Capturing {
			return state, nil, nil
		}
		state.Capturing = false
		return interpret(state, event.Text)
	case EventRecognitionError:
		return handleRecognitionError(state, event.Code)
	case EventSessionEnded:
		return handleSessionEnded(state, facts)
	case EventRestartDue:
		return handleRestartDue(state, event.Seq, facts)
	case EventArticlesLoaded:
		return handleArticles(state, event.Batch)
	case EventFetchFailed:
		return state, []Effect{notice("Error connecting to news server", domain.NoticeDanger)}, nil
	case EventCommand:
		return dispatch(state, event.Action)
	case EventInterpret:
		return interpret(state, event.Text)
	case EventSelect:
		nav, err := state.Nav.Select(event.Index, event.Level)
		if err != nil {
			return state, []Effect{navigationNotice(err)}, nil
		}
		state.Nav = nav
		return playCurrent(state)
	default:
		return state, nil, fmt.Errorf("unknown event type: %s", event.Type)
	}
}

func handleEnable(state State, facts DeviceFacts) (State, []Effect, error) {
	if state.Enabled {
		return state, nil, nil
	}
	state.Enabled = true
	effects := []Effect{notice("🎤 Voice commands enabled", domain.NoticeSuccess)}
	if facts.Paused && facts.HasSource && !facts.Playing {
		var eff Effect
		state, eff = scheduleRestart(state, GraceAfterEnable)
		effects = append(effects, eff)
	}
	return state, effects, nil
}

func handleDisable(state State) (State, []Effect, error) {
	state, effects := silence(state)
	state.Enabled = false
	effects = append(effects, notice("🔇 Voice commands disabled", domain.NoticeInfo))
	return state, effects, nil
}

func handlePaused(state State, facts DeviceFacts) (State, []Effect, error) {
	if !state.Enabled || facts.Ended {
		return state, nil, nil
	}
	state, eff := scheduleRestart(state, GraceAfterPause)
	return state, []Effect{
		notice("🎤 Voice commands active. Say a command...", domain.NoticeInfo),
		eff,
	}, nil
}

func handleEnded(state State) (State, []Effect, error) {
	state.TrackInfo = "Playback finished"
	if !state.Enabled {
		return state, nil, nil
	}
	state, eff := scheduleRestart(state, GraceAfterEnd)
	return state, []Effect{
		notice(`🎤 Say "next" or "repeat"`, domain.NoticeInfo),
		eff,
	}, nil
}

func handleRecognitionError(state State, code string) (State, []Effect, error) {
	if code == domain.RecognitionNoSpeech || code == domain.RecognitionAborted {
		return state, nil, nil
	}
	state.Capturing = false
	return state, []Effect{notice("Voice error: "+code, domain.NoticeDanger)}, nil
}

// handleSessionEnded re-checks the enabled flag here rather than trusting the
// caller of Stop, since sessionEnded may arrive after a disable.
func handleSessionEnded(state State, facts DeviceFacts) (State, []Effect, error) {
	state.SessionOpen = false
	state.Capturing = false
	if !state.Enabled || facts.Playing || !facts.Paused || facts.Ended {
		return state, nil, nil
	}
	state, eff := scheduleRestart(state, GraceAfterSession)
	return state, []Effect{eff}, nil
}

func handleRestartDue(state State, seq uint64, facts DeviceFacts) (State, []Effect, error) {
	if seq != state.RestartSeq || !state.Enabled || facts.Playing || state.SessionOpen {
		return state, nil, nil
	}
	state.SessionOpen = true
	state.Capturing = true
	return state, []Effect{{Type: EffectStartCapture}}, nil
}

func handleArticles(state State, batch domain.ArticleBatch) (State, []Effect, error) {
	if batch.Topic != "" {
		state.Topic = batch.Topic
	}
	if batch.Empty() {
		state.Nav = state.Nav.Replace(nil)
		msg := fmt.Sprintf("No %s news available. Try refreshing later.", state.Topic)
		return state, []Effect{notice(msg, domain.NoticeWarning)}, nil
	}
	state.Nav = state.Nav.Replace(batch.Articles)
	count := batch.Count
	if count <= 0 {
		count = len(batch.Articles)
	}
	msg := fmt.Sprintf("✓ Loaded %d %s articles", count, state.Topic)
	return state, []Effect{notice(msg, domain.NoticeSuccess)}, nil
}

// interpret resolves text through the registry. No match leaves state untouched.
func interpret(state State, text string) (State, []Effect, error) {
	entry, ok := commands.Lookup(text)
	if !ok {
		return state, []Effect{
			notice(fmt.Sprintf("❓ Unknown command: %q", Normalize(text)), domain.NoticeWarning),
			notice(HelpText, domain.NoticeInfo),
		}, nil
	}
	state, effects, err := dispatch(state, entry.Action)
	return state, append([]Effect{notice(fmt.Sprintf("✓ Command: %q", entry.Keyword), domain.NoticeSuccess)}, effects...), err
}

func dispatch(state State, action Action) (State, []Effect, error) {
	switch action {
	case ActionNext:
		return navigate(state, state.Nav.Next)
	case ActionPrevious:
		return navigate(state, state.Nav.Previous)
	case ActionMore:
		return navigate(state, state.Nav.More)
	case ActionFull:
		return replayAt(state, domain.LevelFull)
	case ActionShort:
		return replayAt(state, domain.LevelShort)
	case ActionMedium:
		return replayAt(state, domain.LevelMedium)
	case ActionPause:
		return state, []Effect{
			notice("⏸️ Paused", domain.NoticeInfo),
			{Type: EffectPause},
		}, nil
	case ActionResume:
		state, effects := silence(state)
		effects = append(effects, notice("▶️ Resumed", domain.NoticeSuccess), Effect{Type: EffectPlay})
		return state, effects, nil
	case ActionStop:
		// Explicit exit: capture stops even when voice commands are disabled.
		state.Capturing = false
		state.TrackInfo = "Stopped"
		return state, []Effect{
			notice("⏹️ Stopped", domain.NoticeInfo),
			{Type: EffectPause},
			{Type: EffectSeekToStart},
			{Type: EffectStopCapture},
		}, nil
	case ActionRepeat:
		state, effects := silence(state)
		effects = append(effects,
			notice("🔁 Repeating", domain.NoticeInfo),
			Effect{Type: EffectSeekToStart},
			Effect{Type: EffectPlay},
		)
		return state, effects, nil
	case ActionHelp:
		return state, []Effect{notice(HelpText, domain.NoticeInfo)}, nil
	default:
		return state, []Effect{notice(fmt.Sprintf("❓ Unknown command: %q", action), domain.NoticeWarning)}, nil
	}
}

func navigate(state State, move func() (domain.NavigationState, error)) (State, []Effect, error) {
	nav, err := move()
	if err != nil {
		return state, []Effect{navigationNotice(err)}, nil
	}
	state.Nav = nav
	return playCurrent(state)
}

func replayAt(state State, level domain.NarrationLevel) (State, []Effect, error) {
	return navigate(state, func() (domain.NavigationState, error) {
		return state.Nav.WithLevel(level)
	})
}

func playCurrent(state State) (State, []Effect, error) {
	article, ok := state.Nav.Current()
	if !ok {
		return state, []Effect{navigationNotice(domain.ErrNoArticles)}, nil
	}
	level := state.Nav.Level
	state.TrackInfo = fmt.Sprintf("%s - %s Version", article.Title, level.Title())
	state, effects := silence(state)
	effects = append(effects,
		notice(fmt.Sprintf("🎧 Now playing: %s version", level.Title()), domain.NoticeInfo),
		Effect{Type: EffectLoadAndPlay, URI: article.AudioFor(level)},
	)
	return state, effects, nil
}

func navigationNotice(err error) Effect {
	switch {
	case errors.Is(err, domain.ErrNoArticles):
		return notice("No articles loaded", domain.NoticeWarning)
	case errors.Is(err, domain.ErrAlreadyFull):
		return notice("Already playing full version", domain.NoticeInfo)
	default:
		return notice(err.Error(), domain.NoticeWarning)
	}
}

// silence stops capture and drops any pending restart. It runs before
// anything that makes the device output audio.
func silence(state State) (State, []Effect) {
	var effects []Effect
	if state.SessionOpen {
		effects = append(effects, Effect{Type: EffectStopCapture})
	}
	state.Capturing = false
	state.RestartSeq++
	effects = append(effects, Effect{Type: EffectCancelRestart})
	return state, effects
}

func scheduleRestart(state State, delay time.Duration) (State, Effect) {
	state.RestartSeq++
	return state, Effect{Type: EffectScheduleRestart, Delay: delay, Seq: state.RestartSeq}
}

func notice(message string, level domain.NoticeLevel) Effect {
	return Effect{Type: EffectNotify, Message: message, Level: level}
}

// HandleEffectResult updates state after an effect failed to execute.
func HandleEffectResult(state State, effect Effect, err error) State {
	if err == nil {
		return state
	}
	switch effect.Type {
	case EffectStartCapture:
		state.SessionOpen = false
		state.Capturing = false
	case EffectLoadAndPlay:
		state.TrackInfo = "Error loading audio"
	}
	return state
}
