package cli

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	memberAuth "github.com/MrEthical07/memberAuth"
	"github.com/MrEthical07/memberAuth/metrics/export/prometheus"
	"github.com/MrEthical07/memberAuth/middleware"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the member site",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), runtimeOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			server := &http.Server{
				Addr:              addr,
				Handler:           newRouter(rt.engine, logger),
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       15 * time.Second,
				WriteTimeout:      30 * time.Second,
				IdleTimeout:       60 * time.Second,
			}

			done := make(chan error, 1)
			go func() {
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					done <- fmt.Errorf("server failed: %w", err)
					return
				}
				done <- nil
			}()
			logger.Info("listening", "addr", addr, "db", flagDB, "session_limit", rt.config.SessionLimit.Enabled)

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

			select {
			case sig := <-quit:
				logger.Info("shutting down", "signal", sig.String())
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Shutdown(ctx); err != nil {
					return fmt.Errorf("shutdown: %w", err)
				}
				return <-done
			case err := <-done:
				return err
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", envOr("MEMBERAUTH_ADDR", ":8080"), "Listen address (or MEMBERAUTH_ADDR env)")
	return cmd
}

var pageTemplate = template.Must(template.New("page").Parse(`<!doctype html>
<html><head><title>Members</title></head><body>
{{with .Message}}<p class="message">{{.}}</p>{{end}}
{{with .ClearLink}}<p><a href="{{.}}">Log out all other sessions</a></p>{{end}}
{{if .Member}}
<p>Welcome, {{.Member.FirstName}}{{if not .Member.FirstName}}{{.Member.Username}}{{end}}.</p>
{{with .Expires}}<p>Your membership ends on {{.}}.</p>{{end}}
<form method="post" action="/logout"><button type="submit">Log out</button></form>
{{else}}
<form method="post" action="/login">
<input name="username" placeholder="Username or email">
<input name="password" type="password" placeholder="Password">
<label><input name="remember_me" type="checkbox" value="1"> Remember me</label>
<button name="login" value="1" type="submit">Log in</button>
</form>
{{end}}
</body></html>
`))

type pageData struct {
	Message   string
	ClearLink string
	Member    *memberAuth.Member
	Expires   string
}

// newRouter builds the member site: a login page, a members-only area, a
// logout action and the metrics endpoint.
func newRouter(engine *memberAuth.Engine, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(loggingMiddleware(logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", prometheus.New(engine).Handler())

	page := pageHandler(logger)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(engine))

		r.Get("/", page)
		r.Post("/login", func(w http.ResponseWriter, r *http.Request) {
			ac, _ := memberAuth.FromContext(r.Context())
			if ac.IsLoggedIn() {
				http.Redirect(w, r, "/members", http.StatusSeeOther)
				return
			}
			page(w, r)
		})
		r.Post("/logout", func(w http.ResponseWriter, r *http.Request) {
			ac, _ := memberAuth.FromContext(r.Context())
			http.Redirect(w, r, ac.LogoutSilent(r.Context()), http.StatusSeeOther)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireMember("/"))
			r.Get("/members", page)
		})
	})

	return r
}

func pageHandler(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		renderPage(w, r, logger)
	}
}

func renderPage(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	ac, _ := memberAuth.FromContext(r.Context())
	data := pageData{
		Message:   ac.Message(),
		ClearLink: ac.ClearAllLink(),
		Member:    ac.Member(),
	}
	if end, ok := ac.ExpireDate(); ok {
		data.Expires = end.Format("January 2, 2006")
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := pageTemplate.Execute(w, data); err != nil {
		logger.Error("render page", "error", err)
	}
}

// loggingMiddleware logs HTTP requests at INFO level (method, path, status, duration).
func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sw, r)

			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration", time.Since(start).String(),
				"request_id", sw.Header().Get(middleware.RequestIDHeader),
			)
		})
	}
}

// statusWriter captures the response status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
