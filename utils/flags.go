package utils

import (
	"flag"
	"strings"

	"github.com/micromdm/go4/env"
)

// FlagStore abstracts flag lookup so tests can substitute fixed values
// without re-parsing the process flag set.
type FlagStore interface {
	StringFlag(name, fallback string) string
	BoolFlag(name string, fallback bool) bool
}

type lookupStore struct{}

func (lookupStore) StringFlag(name, fallback string) string {
	f := flag.Lookup(name)
	if f == nil {
		return fallback
	}
	return f.Value.(flag.Getter).Get().(string)
}

func (lookupStore) BoolFlag(name string, fallback bool) bool {
	f := flag.Lookup(name)
	if f == nil {
		return fallback
	}
	return f.Value.(flag.Getter).Get().(bool)
}

// FlagProvider is the active flag source. Tests swap in a stub.
var FlagProvider FlagStore = lookupStore{}

func DebugMode() bool {
	return FlagProvider.BoolFlag("debug", false)
}

func LogLevel() string {
	return strings.ToLower(FlagProvider.StringFlag("loglevel", "warn"))
}

// ServerURL is the public base URL devices reach this server on.
func ServerURL() string {
	return strings.TrimRight(
		FlagProvider.StringFlag("server-url", "http://localhost:8000"),
		"/",
	)
}

func DBHost() string {
	return FlagProvider.StringFlag("db-host", "localhost")
}

func DBPort() string {
	return FlagProvider.StringFlag("db-port", "5432")
}

func DBUsername() string {
	return FlagProvider.StringFlag("db-username", "postgres")
}

func DBPassword() string {
	return FlagProvider.StringFlag("db-password", "")
}

func DBName() string {
	return FlagProvider.StringFlag("db-name", "mdmserver")
}

func DBSSLMode() string {
	return FlagProvider.StringFlag("db-sslmode", "disable")
}

func OrgName() string {
	return FlagProvider.StringFlag("org-name", "FocusPhone")
}

func OrgIdentifier() string {
	return FlagProvider.StringFlag("org-identifier", "com.focusphone")
}

// Topic is the management topic embedded in the push certificate. Every APNs
// request and the enrollment profile's MDM payload must carry it.
func Topic() string {
	return FlagProvider.StringFlag("topic", "")
}

func PushCertPath() string {
	return FlagProvider.StringFlag("push-cert", "")
}

func PushKeyPath() string {
	return FlagProvider.StringFlag("push-key", "")
}

func PushKeyPassword() string {
	return FlagProvider.StringFlag("push-key-password", "")
}

func APNSProduction() bool {
	return FlagProvider.BoolFlag("apns-production", true)
}

func RedisHost() string {
	return FlagProvider.StringFlag("redis-host", "localhost")
}

func RedisPort() string {
	return FlagProvider.StringFlag("redis-port", "6379")
}

func RedisPassword() string {
	return FlagProvider.StringFlag("redis-password", "")
}

func GetBasicAuthUser() string {
	return env.String("MDMSERVER_USERNAME", "mdmserver")
}

func GetBasicAuthPassword() string {
	return env.String("MDMSERVER_PASSWORD", "")
}
