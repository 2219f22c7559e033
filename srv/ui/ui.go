// srv/ui/ui.go
package ui

import (
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"

	"github.com/opd-ai/montessoricomic/srv/session"
	"github.com/opd-ai/montessoricomic/srv/util"
	comicbot "github.com/opd-ai/montessoricomic/src"
)

//go:embed templates/*.html
var templateFS embed.FS

// RendererFactory builds the panel renderer for one request; progress
// messages go to p.
type RendererFactory func(p comicbot.Progressor) comicbot.Renderer

type Options struct {
	Client      comicbot.Client
	Parser      *comicbot.StoryParser
	NewRenderer RendererFactory
	Sessions    *session.Store
	// Password enables the login form when non-empty.
	Password string
	// RateLimit is the number of POST requests allowed per IP and minute.
	// Zero disables the limit.
	RateLimit int
	Logger    *zap.Logger
}

type GeneratorUI struct {
	router      chi.Router
	client      comicbot.Client
	parser      *comicbot.StoryParser
	newRenderer RendererFactory
	sessions    *session.Store
	password    string
	rateLimit   int
	log         *zap.Logger
	templates   *template.Template
}

func NewGeneratorUI(opts Options) *GeneratorUI {
	ui := &GeneratorUI{
		router:      chi.NewRouter(),
		client:      opts.Client,
		parser:      opts.Parser,
		newRenderer: opts.NewRenderer,
		sessions:    opts.Sessions,
		password:    opts.Password,
		rateLimit:   opts.RateLimit,
		log:         opts.Logger,
		templates:   template.Must(template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")),
	}
	if ui.parser == nil {
		ui.parser = comicbot.NewStoryParser()
	}
	if ui.sessions == nil {
		ui.sessions = session.NewStore(session.DefaultExpiration, session.CleanupInterval)
	}
	if ui.log == nil {
		ui.log = zap.NewNop()
	}
	ui.setupRoutes()
	return ui
}

func (ui *GeneratorUI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ui.router.ServeHTTP(w, r)
}

func (ui *GeneratorUI) passwordEnabled() bool {
	return ui.password != ""
}

func (ui *GeneratorUI) setupRoutes() {
	ui.router.Use(middleware.RequestID)
	ui.router.Use(middleware.RealIP)
	ui.router.Use(util.LoggingMiddleware(ui.log))
	ui.router.Use(util.RecoveryMiddleware(ui.log))
	ui.router.Use(middleware.SetHeader("X-Content-Type-Options", "nosniff"))
	ui.router.Use(middleware.SetHeader("X-Frame-Options", "DENY"))
	ui.router.Use(middleware.SetHeader("Referrer-Policy", "same-origin"))
	ui.router.Use(middleware.SetHeader("Content-Security-Policy",
		"default-src 'self'; img-src 'self' data:; style-src 'self' 'unsafe-inline'"))

	ui.router.Get("/healthz", ui.handleHealthCheck)

	ui.router.Group(func(r chi.Router) {
		r.Use(ui.sessionMiddleware)
		r.Get("/", ui.handleHome)
		r.With(ui.requireAuth).Get("/panels/{index}/image", ui.handlePanelImage)
		r.With(ui.requireAuth).Get("/comic.pdf", ui.handleComicPDF)

		r.Group(func(r chi.Router) {
			if ui.rateLimit > 0 {
				r.Use(httprate.LimitByIP(ui.rateLimit, time.Minute))
			}
			r.Post("/login", ui.handleLogin)
			r.Post("/logout", ui.handleLogout)
			r.With(ui.requireAuth).Post("/stories", ui.handleStories)
			r.With(ui.requireAuth).Post("/panels", ui.handlePanels)
		})
	})
}
