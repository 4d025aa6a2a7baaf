// Command webauthn-demo serves a minimal JSON API over the ceremony
// coordinators, backed by SQLite. It exists to exercise the library end
// to end; session issuance after login is deliberately absent.
package main

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/splitsecure/go-webauthn/sqlite"
	"github.com/splitsecure/go-webauthn/webauthn"
)

type config struct {
	Addr       string        `env:"ADDR" envDefault:":8080"`
	RPID       string        `env:"RP_ID" envDefault:"localhost"`
	RPName     string        `env:"RP_NAME" envDefault:"webauthn demo"`
	Origin     string        `env:"ORIGIN" envDefault:"http://localhost:8080"`
	DBPath     string        `env:"DB_PATH" envDefault:"webauthn-demo.db"`
	Timeout    time.Duration `env:"CEREMONY_TIMEOUT" envDefault:"60s"`
	MaxPerUser int           `env:"MAX_CREDENTIALS_PER_USER" envDefault:"10"`
}

// securityLog forwards counter-regression events to the process log.
type securityLog struct {
	log *slog.Logger
}

func (s securityLog) CounterRegressed(_ context.Context, userID string, credentialID []byte, stored, presented uint32) {
	s.log.Warn("possible cloned authenticator",
		"user_id", userID,
		"credential_id", base64.RawURLEncoding.EncodeToString(credentialID),
		"stored_count", stored,
		"presented_count", presented)
}

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Error("parse config", "err", err)
		os.Exit(1)
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		log.Error("open database", "err", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	rp, err := webauthn.New(webauthn.Config{
		RPID:                  cfg.RPID,
		RPName:                cfg.RPName,
		Origin:                cfg.Origin,
		Timeout:               cfg.Timeout,
		MaxCredentialsPerUser: cfg.MaxPerUser,
	}, store, store, webauthn.WithSecurityEventSink(securityLog{log: log}))
	if err != nil {
		log.Error("configure relying party", "err", err)
		os.Exit(1)
	}

	srv := &server{rp: rp, log: log}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /register/begin", srv.beginRegistration)
	mux.HandleFunc("POST /register/finish", srv.finishRegistration)
	mux.HandleFunc("POST /login/begin", srv.beginLogin)
	mux.HandleFunc("POST /login/finish", srv.finishLogin)

	log.Info("listening", "addr", cfg.Addr, "rp_id", cfg.RPID)
	if err := http.ListenAndServe(cfg.Addr, mux); err != nil {
		log.Error("serve", "err", err)
		os.Exit(1)
	}
}
