package auth

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/okarpov/stash/internal/config"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"
)

func newSessionTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(&sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, &gorm.Config{})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	_, err = sqlDB.Exec(`CREATE TABLE sessions (
		token TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		expiry TIMESTAMP NOT NULL
	)`)
	if err != nil {
		t.Fatalf("create sessions table: %v", err)
	}
	return db
}

func TestNewSessionManager_Lifetime(t *testing.T) {
	db := newSessionTestDB(t)

	tests := []struct {
		name     string
		duration string
		want     time.Duration
	}{
		{name: "hours", duration: "24h", want: 24 * time.Hour},
		{name: "mixed units", duration: "1h30m", want: 90 * time.Minute},
		{name: "month-scale", duration: "720h", want: 720 * time.Hour},
		{name: "unparseable falls back to a week", duration: "one week", want: defaultSessionLifetime},
		{name: "empty falls back to a week", duration: "", want: defaultSessionLifetime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{DBType: "sqlite", SessionDuration: tt.duration, Env: "test"}
			sm, err := NewSessionManager(db, cfg)
			if err != nil {
				t.Fatalf("NewSessionManager failed: %v", err)
			}
			if sm.Lifetime != tt.want {
				t.Errorf("Lifetime = %v, want %v", sm.Lifetime, tt.want)
			}
		})
	}
}

func TestNewSessionManager_CookieAttributes(t *testing.T) {
	db := newSessionTestDB(t)

	cfg := &config.Config{DBType: "sqlite", SessionDuration: "24h", Env: "test"}
	sm, err := NewSessionManager(db, cfg)
	if err != nil {
		t.Fatalf("NewSessionManager failed: %v", err)
	}

	if sm.Cookie.Name != "session_token" {
		t.Errorf("cookie name = %q, want session_token", sm.Cookie.Name)
	}
	if !sm.Cookie.HttpOnly {
		t.Error("session cookie must be HttpOnly")
	}
	if sm.Cookie.SameSite != http.SameSiteStrictMode {
		t.Errorf("SameSite = %v, want Strict", sm.Cookie.SameSite)
	}
}

func TestNewSessionManager_SecureOnlyInProduction(t *testing.T) {
	db := newSessionTestDB(t)

	tests := []struct {
		env        string
		wantSecure bool
	}{
		{env: "production", wantSecure: true},
		{env: "development", wantSecure: false},
		{env: "test", wantSecure: false},
		{env: "", wantSecure: false},
	}

	for _, tt := range tests {
		t.Run("env="+tt.env, func(t *testing.T) {
			cfg := &config.Config{DBType: "sqlite", SessionDuration: "24h", Env: tt.env}
			sm, err := NewSessionManager(db, cfg)
			if err != nil {
				t.Fatalf("NewSessionManager failed: %v", err)
			}
			if sm.Cookie.Secure != tt.wantSecure {
				t.Errorf("Secure = %v for env %q, want %v", sm.Cookie.Secure, tt.env, tt.wantSecure)
			}
		})
	}
}

func TestNewSessionManager_StoreSelection(t *testing.T) {
	db := newSessionTestDB(t)

	for _, dbType := range []string{"sqlite", "postgres", "", "oracle"} {
		t.Run("dbtype="+dbType, func(t *testing.T) {
			cfg := &config.Config{DBType: dbType, SessionDuration: "24h", Env: "test"}
			sm, err := NewSessionManager(db, cfg)
			if err != nil {
				t.Fatalf("NewSessionManager failed: %v", err)
			}
			// Unrecognized types keep the scs memory store, so a manager
			// always comes back usable.
			if sm.Store == nil {
				t.Error("Store is nil")
			}
		})
	}
}
