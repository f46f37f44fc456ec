package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"genairadio"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/redis/go-redis/v9"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	cookieName         = "genai-radio"
	attemptLockStripes = 256
)

// radioStore is the slice of the database the web server needs
type radioStore interface {
	Authenticate(username, password string) (*genairadio.User, bool, error)
	GetPodcast(id string) (*genairadio.Podcast, error)
	ListPodcasts(username string, limit int) ([]genairadio.Podcast, error)
}

// podcastMaker produces a stored episode for a listener
type podcastMaker interface {
	Generate(ctx context.Context, req genairadio.PodcastRequest) (*genairadio.Podcast, error)
}

type Server struct {
	db        radioStore
	podcasts  podcastMaker
	quizzes   *genairadio.QuizBuilder
	attempts  genairadio.SessionStore
	store     sessions.Store
	templates map[string]*template.Template
	audioDir  string
	log       *zap.SugaredLogger

	genTimeout time.Duration
	locks      [attemptLockStripes]sync.Mutex
}

func main() {
	log := genairadio.Logger()

	cfg, err := genairadio.LoadConfig(true)
	if err != nil {
		log.Fatalw("Failed to load config", "error", err)
	}
	genairadio.SetVerbose(cfg.Verbose)

	db, err := genairadio.OpenDB(cfg.DBPath)
	if err != nil {
		log.Fatalw("Failed to open database", "error", err)
	}
	defer db.CloseDB()

	if err := db.CreateTables(); err != nil {
		log.Fatalw("Failed to create tables", "error", err)
	}

	client := openai.NewClient(cfg.OpenAIKey)
	generator := genairadio.NewPodcastGenerator(
		genairadio.NewOpenAINarrator(client, cfg.OpenAI.NarrationModel),
		genairadio.NewOpenAISpeech(client, cfg.OpenAI.SpeechModel, cfg.OpenAI.Voice),
		db,
		cfg.AudioDir,
		cfg.LogDir,
		cfg.Upstream.RetryPolicy(),
	)

	attempts, closeAttempts, err := newAttemptStore(cfg)
	if err != nil {
		log.Fatalw("Failed to create quiz session store", "error", err)
	}
	defer closeAttempts()

	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		log.Warnw("SESSION_SECRET not set, using a random key; logins will not survive a restart")
		secret = securecookie.GenerateRandomKey(32)
	}

	server := NewServer(
		db,
		generator,
		genairadio.NewQuizBuilder(nil, genairadio.DefaultDistractors(), cfg.Quiz.Length),
		attempts,
		newCookieStore(secret),
		cfg.AudioDir,
		// Narration runs up to MaxTries attempts per topic in parallel, then speech.
		2*time.Duration(cfg.Upstream.MaxTries)*cfg.Upstream.Timeout,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Infow("Starting server", "port", cfg.Port, "session_backend", cfg.Session.Backend)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalw("Server failed", "error", err)
	}
}

// NewServer wires the web handlers. genTimeout bounds a whole podcast generation.
func NewServer(db radioStore, podcasts podcastMaker, quizzes *genairadio.QuizBuilder, attempts genairadio.SessionStore, store sessions.Store, audioDir string, genTimeout time.Duration) *Server {
	return &Server{
		db:         db,
		podcasts:   podcasts,
		quizzes:    quizzes,
		attempts:   attempts,
		store:      store,
		templates:  loadTemplates(),
		audioDir:   audioDir,
		log:        genairadio.Logger().Named("web"),
		genTimeout: genTimeout,
	}
}

func newCookieStore(secret []byte) *sessions.CookieStore {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 3600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

func newAttemptStore(cfg *genairadio.Config) (genairadio.SessionStore, func(), error) {
	if cfg.Session.Backend != "redis" {
		return genairadio.NewMemorySessionStore(cfg.Session.Capacity), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Redis.Addr, err)
	}
	return genairadio.NewRedisSessionStore(client, cfg.Session.TTL), func() { client.Close() }, nil
}

func loadTemplates() map[string]*template.Template {
	funcMap := template.FuncMap{
		"add": func(a, b int) int {
			return a + b
		},
		"join": strings.Join,
		"has": func(list []string, v string) bool {
			for _, item := range list {
				if item == v {
					return true
				}
			}
			return false
		},
		"letter": func(i int) string {
			return string(rune('A' + i))
		},
		"percent": func(s genairadio.Score) string {
			return fmt.Sprintf("%.0f%%", s.Percent())
		},
	}

	templates := make(map[string]*template.Template)
	for _, name := range []string{"landing", "login", "podcast", "player", "question", "results", "error"} {
		templates[name] = template.Must(template.New(name).Funcs(funcMap).ParseFS(templateFS, "templates/base.html", "templates/"+name+".html"))
	}
	return templates
}
