package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"genairadio"

	"github.com/cespare/xxhash/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
)

type ctxKey int

const (
	usernameKey ctxKey = iota
	sidKey
)

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleLanding)
	r.Get("/login", s.handleLoginForm)
	r.Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(s.requireLogin)

		r.Get("/podcast", s.handlePodcastForm)
		r.Post("/podcast", s.handleGeneratePodcast)
		r.Get("/player/{podcastID}", s.handlePlayer)
		r.Get("/audio/{podcastID}", s.handleAudio)

		r.Get("/quiz/{podcastID}", s.handleQuiz)
		r.Post("/quiz/{podcastID}/start", s.handleQuizStart)
		r.Post("/quiz/{podcastID}/answer", s.handleAnswer)
		r.Post("/quiz/{podcastID}/reset", s.handleQuizReset)
	})

	return r
}

func (s *Server) session(r *http.Request) *sessions.Session {
	session, err := s.store.Get(r, cookieName)
	if err != nil {
		// A cookie signed with an old key decodes to a fresh session.
		s.log.Debugw("Discarding unreadable session cookie", "error", err)
	}
	return session
}

func (s *Server) requireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := s.session(r)
		username, _ := session.Values["username"].(string)
		sid, _ := session.Values["sid"].(string)
		if username == "" || sid == "" {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		ctx := context.WithValue(r.Context(), usernameKey, username)
		ctx = context.WithValue(ctx, sidKey, sid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func currentUser(r *http.Request) string {
	username, _ := r.Context().Value(usernameKey).(string)
	return username
}

func currentSID(r *http.Request) string {
	sid, _ := r.Context().Value(sidKey).(string)
	return sid
}

// attemptLock returns the stripe guarding sid's quiz attempt. The stripe
// count is fixed, so abandoned sessions leave nothing behind.
func (s *Server) attemptLock(sid string) *sync.Mutex {
	return &s.locks[xxhash.Sum64String(sid)%uint64(len(s.locks))]
}

// lockAttempt serializes requests that touch the same quiz attempt
func (s *Server) lockAttempt(sid string) func() {
	mu := s.attemptLock(sid)
	mu.Lock()
	return mu.Unlock
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data map[string]interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates[name].ExecuteTemplate(w, "base.html", data); err != nil {
		s.log.Errorw("Template error", "template", name, "error", err)
	}
}

func (s *Server) renderError(w http.ResponseWriter, status int, message, retryURL string) {
	s.render(w, status, "error", map[string]interface{}{
		"Message":  message,
		"RetryURL": retryURL,
	})
}

func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "landing", nil)
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "login", map[string]interface{}{"Username": ""})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")
	if username == "" || password == "" {
		s.render(w, http.StatusBadRequest, "login", map[string]interface{}{
			"Warning":  "Please enter both username and password.",
			"Username": username,
		})
		return
	}

	_, created, err := s.db.Authenticate(username, password)
	if errors.Is(err, genairadio.ErrWrongPassword) {
		s.render(w, http.StatusUnauthorized, "login", map[string]interface{}{
			"Error":    "Wrong password.",
			"Username": username,
		})
		return
	}
	if err != nil {
		s.log.Errorw("Login failed", "username", username, "error", err)
		s.renderError(w, http.StatusInternalServerError, "Login is unavailable right now.", "/login")
		return
	}
	if created {
		s.log.Infow("Signed up new listener", "username", username)
	}

	session := s.session(r)
	session.Values["username"] = username
	session.Values["sid"] = uuid.NewString()
	if err := session.Save(r, w); err != nil {
		s.log.Errorw("Session save error", "error", err)
	}
	http.Redirect(w, r, "/podcast", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	session := s.session(r)
	if sid, _ := session.Values["sid"].(string); sid != "" {
		if err := s.attempts.Delete(r.Context(), sid); err != nil {
			s.log.Warnw("Failed to drop quiz session", "error", err)
		}
	}
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		s.log.Errorw("Session save error", "error", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handlePodcastForm(w http.ResponseWriter, r *http.Request) {
	username := currentUser(r)
	recent, err := s.db.ListPodcasts(username, 5)
	if err != nil {
		s.log.Warnw("Failed to list podcasts", "username", username, "error", err)
	}
	s.render(w, http.StatusOK, "podcast", map[string]interface{}{
		"Username": username,
		"Topics":   genairadio.Topics,
		"Selected": []string{},
		"Recent":   recent,
	})
}

func (s *Server) handleGeneratePodcast(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	username := currentUser(r)
	topics := r.Form["topics"]
	if err := genairadio.ValidateTopics(topics); err != nil {
		s.render(w, http.StatusBadRequest, "podcast", map[string]interface{}{
			"Username": username,
			"Topics":   genairadio.Topics,
			"Selected": topics,
			"Warning":  fmt.Sprintf("Please select exactly %d topics!", genairadio.TopicsPerPodcast),
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.genTimeout)
	defer cancel()

	podcast, err := s.podcasts.Generate(ctx, genairadio.PodcastRequest{Username: username, Topics: topics})
	if err != nil {
		s.log.Errorw("Podcast generation failed", "username", username, "error", err)
		if errors.Is(err, genairadio.ErrUpstreamFailure) {
			s.renderError(w, http.StatusBadGateway, "We couldn't produce your podcast right now. Please try again.", "/podcast")
			return
		}
		s.renderError(w, http.StatusInternalServerError, "Something went wrong while saving your podcast.", "/podcast")
		return
	}

	http.Redirect(w, r, "/player/"+podcast.ID, http.StatusSeeOther)
}

// ownedPodcast loads the podcast in the URL, answering 404 unless it
// belongs to the logged-in listener
func (s *Server) ownedPodcast(w http.ResponseWriter, r *http.Request) (*genairadio.Podcast, bool) {
	podcast, err := s.db.GetPodcast(chi.URLParam(r, "podcastID"))
	if err != nil || podcast.Username != currentUser(r) {
		if err != nil && !errors.Is(err, genairadio.ErrNotFound) {
			s.log.Errorw("Failed to load podcast", "error", err)
		}
		http.NotFound(w, r)
		return nil, false
	}
	return podcast, true
}

func (s *Server) handlePlayer(w http.ResponseWriter, r *http.Request) {
	podcast, ok := s.ownedPodcast(w, r)
	if !ok {
		return
	}
	s.render(w, http.StatusOK, "player", map[string]interface{}{
		"Podcast": podcast,
	})
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	podcast, ok := s.ownedPodcast(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	http.ServeFile(w, r, filepath.Join(s.audioDir, filepath.Base(podcast.Filename)))
}

// loadAttempt returns the listener's attempt for podcast, building a fresh
// one when none exists or the stored one belongs to another podcast
func (s *Server) loadAttempt(ctx context.Context, sid string, podcast *genairadio.Podcast) (*genairadio.QuizSession, error) {
	attempt, err := s.attempts.Load(ctx, sid)
	if err == nil && attempt.PodcastID() == podcast.ID {
		return attempt, nil
	}
	if err != nil && !errors.Is(err, genairadio.ErrSessionNotFound) {
		return nil, err
	}
	return s.newAttempt(ctx, sid, podcast)
}

func (s *Server) newAttempt(ctx context.Context, sid string, podcast *genairadio.Podcast) (*genairadio.QuizSession, error) {
	attempt := s.quizzes.Build(podcast.ID, podcast.Narration)
	if err := s.attempts.Save(ctx, sid, attempt); err != nil {
		return nil, err
	}
	s.log.Debugw("Started quiz attempt", "podcast_id", podcast.ID, "questions", attempt.Len())
	return attempt, nil
}

func (s *Server) handleQuizStart(w http.ResponseWriter, r *http.Request) {
	podcast, ok := s.ownedPodcast(w, r)
	if !ok {
		return
	}
	sid := currentSID(r)
	defer s.lockAttempt(sid)()

	if _, err := s.newAttempt(r.Context(), sid, podcast); err != nil {
		s.log.Errorw("Failed to start quiz", "error", err)
		s.renderError(w, http.StatusInternalServerError, "Could not start the quiz.", "/player/"+podcast.ID)
		return
	}
	http.Redirect(w, r, "/quiz/"+podcast.ID, http.StatusSeeOther)
}

func (s *Server) handleQuiz(w http.ResponseWriter, r *http.Request) {
	podcast, ok := s.ownedPodcast(w, r)
	if !ok {
		return
	}
	sid := currentSID(r)
	defer s.lockAttempt(sid)()

	attempt, err := s.loadAttempt(r.Context(), sid, podcast)
	if err != nil {
		s.log.Errorw("Failed to load quiz", "error", err)
		s.renderError(w, http.StatusInternalServerError, "Could not load the quiz.", "/player/"+podcast.ID)
		return
	}
	s.renderAttempt(w, http.StatusOK, podcast, attempt, "")
}

func (s *Server) renderAttempt(w http.ResponseWriter, status int, podcast *genairadio.Podcast, attempt *genairadio.QuizSession, problem string) {
	if attempt.Completed() {
		score, _ := attempt.Score()
		s.render(w, status, "results", map[string]interface{}{
			"Podcast":   podcast,
			"Score":     score,
			"Short":     attempt.Short(),
			"Requested": s.quizzes.Length(),
		})
		return
	}

	question, _ := attempt.Current()
	state := attempt.State()
	s.render(w, status, "question", map[string]interface{}{
		"Podcast":  podcast,
		"Index":    state.Index,
		"Number":   state.Index + 1,
		"Total":    attempt.Len(),
		"Question": question,
		"Short":    attempt.Short(),
		"Problem":  problem,
	})
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	podcast, ok := s.ownedPodcast(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	sid := currentSID(r)
	defer s.lockAttempt(sid)()

	attempt, err := s.attempts.Load(r.Context(), sid)
	if err != nil || attempt.PodcastID() != podcast.ID {
		if err != nil && !errors.Is(err, genairadio.ErrSessionNotFound) {
			s.log.Errorw("Failed to load quiz", "error", err)
		}
		http.Redirect(w, r, "/quiz/"+podcast.ID, http.StatusSeeOther)
		return
	}

	index, convErr := strconv.Atoi(r.FormValue("index"))
	if convErr != nil {
		index = -1
	}
	err = attempt.AnswerQuestion(index, r.FormValue("answer"))
	switch {
	case errors.Is(err, genairadio.ErrStaleAnswer):
		s.log.Debugw("Ignoring answer for a question that is not current", "podcast_id", podcast.ID, "error", err)
		http.Redirect(w, r, "/quiz/"+podcast.ID, http.StatusSeeOther)
		return
	case errors.Is(err, genairadio.ErrInvalidSelection):
		s.renderAttempt(w, http.StatusUnprocessableEntity, podcast, attempt, "Please choose one of the listed answers.")
		return
	case errors.Is(err, genairadio.ErrQuizCompleted):
		http.Redirect(w, r, "/quiz/"+podcast.ID, http.StatusSeeOther)
		return
	case err != nil:
		s.log.Errorw("Failed to record answer", "error", err)
		s.renderError(w, http.StatusInternalServerError, "Could not record your answer.", "/quiz/"+podcast.ID)
		return
	}

	if err := s.attempts.Save(r.Context(), sid, attempt); err != nil {
		s.log.Errorw("Failed to save quiz", "error", err)
		s.renderError(w, http.StatusInternalServerError, "Could not record your answer.", "/quiz/"+podcast.ID)
		return
	}
	http.Redirect(w, r, "/quiz/"+podcast.ID, http.StatusSeeOther)
}

func (s *Server) handleQuizReset(w http.ResponseWriter, r *http.Request) {
	podcast, ok := s.ownedPodcast(w, r)
	if !ok {
		return
	}
	sid := currentSID(r)
	defer s.lockAttempt(sid)()

	attempt, err := s.loadAttempt(r.Context(), sid, podcast)
	if err != nil {
		s.log.Errorw("Failed to load quiz", "error", err)
		s.renderError(w, http.StatusInternalServerError, "Could not reset the quiz.", "/player/"+podcast.ID)
		return
	}
	attempt.Reset()
	if err := s.attempts.Save(r.Context(), sid, attempt); err != nil {
		s.log.Errorw("Failed to save quiz", "error", err)
	}
	http.Redirect(w, r, "/quiz/"+podcast.ID, http.StatusSeeOther)
}
