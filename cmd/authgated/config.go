package main

import (
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type daemonConfig struct {
	SigningSecret []byte
	RedisAddr     string
	DatabasePath  string

	SMTPAddr     string
	SMTPHost     string
	SMTPUsername string
	SMTPPassword string
	MailFrom     string

	LogoPath   string
	ServerPort string
}

func must(v string, name string) string {
	if v == "" {
		log.Fatalf("missing required env %s", name)
	}
	return v
}

func getenv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func loadConfig() *daemonConfig {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: could not load .env: %v", err)
	}

	return &daemonConfig{
		SigningSecret: []byte(must(os.Getenv("AUTHGATE_SIGNING_SECRET"), "AUTHGATE_SIGNING_SECRET")),
		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		DatabasePath:  getenv("DATABASE_PATH", "authgate.db"),
		SMTPAddr:      os.Getenv("SMTP_ADDR"),
		SMTPHost:      os.Getenv("SMTP_HOST"),
		SMTPUsername:  os.Getenv("SMTP_USERNAME"),
		SMTPPassword:  os.Getenv("SMTP_PASSWORD"),
		MailFrom:      os.Getenv("MAIL_FROM"),
		LogoPath:      os.Getenv("MAIL_LOGO_PATH"),
		ServerPort:    getenv("SERVER_PORT", "8080"),
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
