package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	comicbot "github.com/opd-ai/montessoricomic/src"
)

const (
	DefaultExpiration = time.Hour
	CleanupInterval   = 10 * time.Minute
)

// State is everything one browser session has produced so far. Callers
// hold Lock while reading or mutating fields; UpdateOutput may be called
// without it.
type State struct {
	mu sync.Mutex

	ID            string
	Authenticated bool

	Theme         string
	Photo         *comicbot.Photo
	StoryText     string
	Stories       []comicbot.StoryOption
	SelectedStory string
	Prompts       []string
	Panels        map[int]*comicbot.GeneratedPanel

	History   *MessageHistory
	UpdatedAt time.Time
}

func newState(id string) *State {
	return &State{
		ID:        id,
		Panels:    make(map[int]*comicbot.GeneratedPanel),
		History:   &MessageHistory{},
		UpdatedAt: time.Now(),
	}
}

func (s *State) Lock()   { s.mu.Lock() }
func (s *State) Unlock() { s.mu.Unlock() }

// UpdateOutput records a progress message for the user.
func (s *State) UpdateOutput(message string) {
	s.History.AddMessage(Notice{Level: levelFor(message), Text: message})
}

func (s *State) AddNotice(level Level, text string) {
	s.History.AddMessage(Notice{Level: level, Text: text})
}

func levelFor(message string) Level {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "after") && strings.Contains(lower, "attempts"):
		return LevelError
	case strings.Contains(lower, "retrying"):
		return LevelWarning
	default:
		return LevelInfo
	}
}

// SetStories stores a fresh set of story options and discards everything
// derived from a previous run.
func (s *State) SetStories(theme string, photo *comicbot.Photo, text string, stories []comicbot.StoryOption) {
	s.Theme = theme
	s.Photo = photo
	s.StoryText = text
	s.Stories = stories
	s.SelectedStory = ""
	s.SetPrompts(nil)
}

// SelectStory records the story the panels are generated from.
func (s *State) SelectStory(story string) {
	s.SelectedStory = story
	s.SetPrompts(nil)
}

// SetPrompts replaces the panel prompts and clears every rendered panel.
func (s *State) SetPrompts(prompts []string) {
	s.Prompts = prompts
	s.Panels = make(map[int]*comicbot.GeneratedPanel)
	s.UpdatedAt = time.Now()
}

// SetPanel stores a rendered panel. The panel must match the prompt at its
// index.
func (s *State) SetPanel(panel comicbot.GeneratedPanel) error {
	if panel.Index < 0 || panel.Index >= len(s.Prompts) {
		return fmt.Errorf("panel index %d out of range (have %d prompts)", panel.Index, len(s.Prompts))
	}
	if s.Prompts[panel.Index] != panel.Prompt {
		return fmt.Errorf("panel %d prompt does not match", panel.Number())
	}
	s.Panels[panel.Index] = &panel
	s.UpdatedAt = time.Now()
	return nil
}

func (s *State) Panel(index int) (*comicbot.GeneratedPanel, bool) {
	panel, ok := s.Panels[index]
	return panel, ok
}

// Comic snapshots the session as a comic. Panels line up with Prompts;
// panels not rendered yet carry neither image nor error.
func (s *State) Comic() *comicbot.Comic {
	comic := &comicbot.Comic{
		Theme:     s.Theme,
		StoryText: s.StoryText,
		Stories:   s.Stories,
		Selected:  s.SelectedStory,
		Prompts:   s.Prompts,
		Panels:    make([]comicbot.GeneratedPanel, len(s.Prompts)),
	}
	for i, prompt := range s.Prompts {
		if panel, ok := s.Panels[i]; ok {
			comic.Panels[i] = *panel
		} else {
			comic.Panels[i] = comicbot.GeneratedPanel{Index: i, Prompt: prompt}
		}
	}
	return comic
}

// Store keeps session state in memory; idle sessions expire.
type Store struct {
	mu    sync.Mutex
	cache *cache.Cache
}

func NewStore(expiration, cleanup time.Duration) *Store {
	return &Store{cache: cache.New(expiration, cleanup)}
}

// Get returns the state for id, creating it when missing. Every call
// extends the session's lifetime.
func (s *Store) Get(id string) *State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.cache.Get(id); ok {
		state := v.(*State)
		s.cache.SetDefault(id, state)
		return state
	}
	state := newState(id)
	s.cache.SetDefault(id, state)
	return state
}

func (s *Store) Lookup(id string) (*State, bool) {
	v, ok := s.cache.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*State), true
}

func (s *Store) Delete(id string) {
	s.cache.Delete(id)
}

func (s *Store) Count() int {
	return s.cache.ItemCount()
}
