// Command authgated runs the authentication service over HTTP: a sqlite
// account store, a Redis session registry, and an SMTP relay for one-time
// codes, all behind the bearer-token gate.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	authgate "github.com/e202/authgate"
	"github.com/e202/authgate/accountstore"
	"github.com/e202/authgate/mailer"
	"github.com/e202/authgate/middleware"
)

var publicPaths = []string{
	"/auth/login",
	"/auth/signup",
	"/auth/signup/checkemail",
	"/auth/sendcode",
	"/auth/verifycode",
	"/auth/password/reset",
	"/healthz",
}

func main() {
	cfg := loadConfig()

	logger := newLogger(os.Getenv("LOG_LEVEL")).With("service", "authgated")
	slog.SetDefault(logger)

	db, err := gorm.Open(sqlite.Open(cfg.DatabasePath), &gorm.Config{})
	if err != nil {
		log.Fatalf("db open: %v", err)
	}

	accounts, err := accountstore.New(db)
	if err != nil {
		log.Fatalf("account store: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	err = rdb.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		log.Fatalf("redis ping: %v", err)
	}

	var mail authgate.Mailer
	if cfg.SMTPAddr != "" {
		mail = mailer.NewSMTP(cfg.SMTPAddr, cfg.SMTPHost, cfg.MailFrom, cfg.SMTPUsername, cfg.SMTPPassword)
	} else {
		logger.Warn("SMTP_ADDR not set, mail delivery disabled")
		mail = &mailer.Log{Logger: logger}
	}

	engineCfg := authgate.Config{}
	engineCfg.Token.SigningSecret = cfg.SigningSecret
	if cfg.LogoPath != "" {
		logo, err := os.ReadFile(cfg.LogoPath)
		if err != nil {
			log.Fatalf("logo read: %v", err)
		}
		engineCfg.Mail.LogoPNG = logo
	}

	engine, err := authgate.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithAccounts(accounts).
		WithMailer(mail).
		WithLogger(logger).
		Build()
	if err != nil {
		log.Fatalf("engine build: %v", err)
	}

	h := &handlers{engine: engine}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", h.login)
	mux.HandleFunc("POST /auth/signup", h.signup)
	mux.HandleFunc("GET /auth/signup/checkemail", h.checkEmail)
	mux.HandleFunc("POST /auth/sendcode", h.sendCode)
	mux.HandleFunc("POST /auth/verifycode", h.verifyCode)
	mux.HandleFunc("POST /auth/password/reset", h.resetPassword)
	mux.HandleFunc("POST /auth/refresh", h.refresh)
	mux.HandleFunc("POST /auth/logout", h.logout)
	mux.HandleFunc("POST /auth/password/change", h.changePassword)
	mux.HandleFunc("DELETE /auth/account", h.deleteAccount)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	gate := middleware.Gate(engine, publicPaths)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           gate(mux),
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	_ = rdb.Close()

	logger.Info("stopped")
}
