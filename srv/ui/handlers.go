package ui

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/opd-ai/montessoricomic/bookcompiler"
	"github.com/opd-ai/montessoricomic/srv/session"
	comicbot "github.com/opd-ai/montessoricomic/src"
)

type storyView struct {
	Number int
	comicbot.StoryOption
}

type panelView struct {
	Index    int
	Number   int
	Prompt   string
	HasImage bool
	Err      string
	Pending  bool
}

type pageData struct {
	LoginRequired bool
	Theme         string
	PhotoName     string
	Stories       []storyView
	SelectedStory string
	Panels        []panelView
	Notices       []session.Notice
	MaxPhotoMB    int
}

func buildPage(state *session.State) pageData {
	data := pageData{
		Theme:         state.Theme,
		SelectedStory: state.SelectedStory,
		Notices:       state.History.Drain(),
		MaxPhotoMB:    comicbot.MaxPhotoBytes >> 20,
	}
	if state.Photo != nil {
		data.PhotoName = state.Photo.Name
	}
	for i, story := range state.Stories {
		data.Stories = append(data.Stories, storyView{Number: i + 1, StoryOption: story})
	}
	for i, prompt := range state.Prompts {
		view := panelView{Index: i, Number: i + 1, Prompt: prompt, Pending: true}
		if panel, ok := state.Panel(i); ok {
			view.Pending = false
			view.HasImage = panel.Image != nil
			view.Err = panel.Err
		}
		data.Panels = append(data.Panels, view)
	}
	return data
}

func (ui *GeneratorUI) render(w http.ResponseWriter, status int, data pageData) {
	var buf bytes.Buffer
	if err := ui.templates.ExecuteTemplate(&buf, "index.html", data); err != nil {
		ui.log.Error("rendering page", zap.Error(err))
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (ui *GeneratorUI) handleHome(w http.ResponseWriter, r *http.Request) {
	state := stateFrom(r)
	if !ui.authenticated(state) {
		ui.render(w, http.StatusOK, pageData{LoginRequired: true, Notices: state.History.Drain()})
		return
	}

	state.Lock()
	data := buildPage(state)
	state.Unlock()
	ui.render(w, http.StatusOK, data)
}

func (ui *GeneratorUI) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}
	state := stateFrom(r)
	if ui.passwordEnabled() {
		password := r.PostFormValue("password")
		ok := subtle.ConstantTimeCompare([]byte(password), []byte(ui.password)) == 1
		state.Lock()
		state.Authenticated = ok
		state.Unlock()
		if !ok {
			ui.log.Warn("failed login", zap.String("session", state.ID))
			state.AddNotice(session.LevelError, "😕 Incorrect password")
		}
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (ui *GeneratorUI) handleLogout(w http.ResponseWriter, r *http.Request) {
	ui.sessions.Delete(stateFrom(r).ID)
	setSessionCookie(w, "", -1)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (ui *GeneratorUI) handleStories(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, comicbot.MaxPhotoBytes+1<<20)
	if err := r.ParseMultipartForm(comicbot.MaxPhotoBytes); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	theme := strings.TrimSpace(r.FormValue("theme"))
	if theme == "" {
		http.Error(w, "Theme is required", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("photo")
	if err != nil {
		http.Error(w, "Photo is required", http.StatusBadRequest)
		return
	}
	defer file.Close()
	photo, err := comicbot.DecodePhoto(header.Filename, file)
	if err != nil {
		ui.log.Info("rejected photo", zap.String("name", header.Filename), zap.Error(err))
		http.Error(w, "Photo must be a PNG or JPEG image", http.StatusBadRequest)
		return
	}

	state := stateFrom(r)
	state.Lock()
	defer state.Unlock()

	text, stories, err := comicbot.GenerateStoryOptions(r.Context(), ui.client, ui.parser, theme, state)
	if err != nil {
		ui.log.Error("generating story options", zap.String("session", state.ID), zap.Error(err))
		state.AddNotice(session.LevelError, "Failed to generate story options. Please try again.")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	state.SetStories(theme, photo, text, stories)
	http.Redirect(w, r, "/#stories", http.StatusSeeOther)
}

func (ui *GeneratorUI) handlePanels(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	state := stateFrom(r)
	state.Lock()
	defer state.Unlock()

	story, err := selectedStory(state, r.PostFormValue("story"), r.PostFormValue("option"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	state.SelectStory(story)

	prompts, err := comicbot.GenerateImagePrompts(r.Context(), ui.client, story, state.Photo, state)
	if err != nil {
		ui.log.Error("generating image prompts", zap.String("session", state.ID), zap.Error(err))
		state.AddNotice(session.LevelError, "Failed to generate image prompts. Please try again.")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	state.SetPrompts(prompts)

	_, err = comicbot.RenderPanels(r.Context(), ui.newRenderer(state), prompts, state, func(panel comicbot.GeneratedPanel) {
		if err := state.SetPanel(panel); err != nil {
			ui.log.Error("storing panel", zap.Int("panel", panel.Number()), zap.Error(err))
		}
		if panel.Err != "" {
			state.AddNotice(session.LevelError, panel.Err)
		}
	})
	if err != nil {
		ui.log.Warn("panel rendering stopped", zap.String("session", state.ID), zap.Error(err))
	}
	http.Redirect(w, r, "/#panels", http.StatusSeeOther)
}

// selectedStory resolves the story text: pasted text wins over a chosen
// 1-based option number.
func selectedStory(state *session.State, pasted, option string) (string, error) {
	if story := strings.TrimSpace(pasted); story != "" {
		return story, nil
	}
	if option == "" {
		return "", errors.New("select or paste a story first")
	}
	n, err := strconv.Atoi(option)
	if err != nil || n < 1 || n > len(state.Stories) {
		return "", errors.New("unknown story option")
	}
	return state.Stories[n-1].Text(), nil
}

func (ui *GeneratorUI) handlePanelImage(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	state := stateFrom(r)
	state.Lock()
	panel, ok := state.Panel(index)
	state.Unlock()
	if !ok || panel.Image == nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", panel.Image.MIME)
	w.Header().Set("Cache-Control", "private, no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(panel.Image.Data)))
	_, _ = w.Write(panel.Image.Data)
}

func (ui *GeneratorUI) handleComicPDF(w http.ResponseWriter, r *http.Request) {
	state := stateFrom(r)
	state.Lock()
	comic := state.Comic()
	state.Unlock()
	if len(comic.Prompts) == 0 {
		http.Error(w, "No comic panels yet", http.StatusNotFound)
		return
	}

	var buf bytes.Buffer
	if err := bookcompiler.NewBookCompiler().Compile(comic, &buf); err != nil {
		ui.log.Error("compiling comic PDF", zap.String("session", state.ID), zap.Error(err))
		http.Error(w, "Failed to build PDF", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="comic.pdf"`)
	w.Header().Set("Cache-Control", "private, no-store")
	_, _ = buf.WriteTo(w)
}

func (ui *GeneratorUI) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
	})
}
