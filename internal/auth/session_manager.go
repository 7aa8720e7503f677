package auth

import (
	"net/http"
	"time"

	"github.com/alexedwards/scs/postgresstore"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/okarpov/stash/internal/config"
	"gorm.io/gorm"
)

// defaultSessionLifetime applies when SESSION_DURATION does not parse.
const defaultSessionLifetime = 168 * time.Hour

// NewSessionManager builds the scs manager that backs cookie sessions.
// Session rows live in the same database as accounts and files, keyed
// by cfg.DBType; an unrecognized type leaves scs on its in-memory
// store, which loses sessions on restart.
func NewSessionManager(db *gorm.DB, cfg *config.Config) (*scs.SessionManager, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	lifetime, err := time.ParseDuration(cfg.SessionDuration)
	if err != nil {
		lifetime = defaultSessionLifetime
	}

	sm := scs.New()
	sm.Lifetime = lifetime
	sm.Cookie.Name = "session_token"
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteStrictMode
	sm.Cookie.Secure = cfg.Env == "production"

	switch cfg.DBType {
	case "postgres":
		sm.Store = postgresstore.New(sqlDB)
	case "sqlite":
		sm.Store = sqlite3store.New(sqlDB)
	}

	return sm, nil
}
