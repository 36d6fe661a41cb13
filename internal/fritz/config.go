package fritz

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/hausnet/fritzcore/internal/cache"
)

// AVM factory defaults. The link-local address reaches a box that has not
// been configured yet; "dslf-config" is the historic TR-064 user every
// FritzOS release accepts.
const (
	DefaultAddress  = "169.254.1.1"
	DefaultUsername = "dslf-config"
	DefaultPort     = 49000
	DefaultTLSPort  = 49443
)

// Credentials can come from the environment instead of the Config, so
// they never need to be hardcoded.
const (
	envUsername = "FRITZ_USERNAME"
	envPassword = "FRITZ_PASSWORD"
)

const (
	defaultTimeout = 10 * time.Second

	// Sizing of the shared connection pool. Reusing connections matters
	// most with TLS, where every fresh handshake costs a round trip.
	poolConnections = 10
)

// Config describes one router connection. The zero value connects to a
// factory-default box without credentials.
type Config struct {
	// Address is the router host, with or without scheme and port. An
	// explicit port in the address wins over the Port field.
	Address string

	// Username and Password authenticate the TR-064 and AHA surfaces.
	// Empty fields fall back to FRITZ_USERNAME / FRITZ_PASSWORD, then to
	// the AVM default user with no password.
	Username string
	Password string

	// Port is the TR-064 port, defaulted per the UseTLS flag.
	Port   int
	UseTLS bool

	// VerifyTLS enables certificate verification. The router ships a
	// self-signed certificate, so verification is off by default.
	VerifyTLS bool

	Timeout time.Duration

	// Permissive drops unknown SOAP input arguments instead of rejecting
	// the call before I/O.
	Permissive bool

	// Cache persists the discovered capability model between sessions.
	// Nil disables caching; discovery then always runs live.
	Cache *cache.Store

	// VerifyCache checks a cache hit against the live box identity and
	// rediscovers on model changes or OS updates.
	VerifyCache bool

	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Address == "" {
		c.Address = DefaultAddress
	}
	if c.Username == "" {
		if user := os.Getenv(envUsername); user != "" {
			c.Username = user
		} else {
			c.Username = DefaultUsername
		}
	}
	if c.Password == "" {
		c.Password = os.Getenv(envPassword)
	}
	if c.Port == 0 {
		if c.UseTLS {
			c.Port = DefaultTLSPort
		} else {
			c.Port = DefaultPort
		}
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c
}

// setProtocol replaces any scheme on address with the one matching the
// useTLS flag. The address itself is not validated.
func setProtocol(address string, useTLS bool) string {
	if idx := strings.Index(address, "//"); idx >= 0 {
		address = address[idx+2:]
	}
	if useTLS {
		return "https://" + address
	}
	return "http://" + address
}

// hasPort reports whether the scheme-prefixed address carries an explicit
// port.
func hasPort(address string) bool {
	if idx := strings.Index(address, "//"); idx >= 0 {
		address = address[idx+2:]
	}
	return strings.Contains(address, ":")
}

// NormalizeServiceName expands the short service name forms: a missing
// numeric suffix defaults to "1" and the legacy colon form loses its
// colon. "WLANConfiguration" becomes "WLANConfiguration1",
// "WLANConfiguration:2" becomes "WLANConfiguration2".
func NormalizeServiceName(name string) string {
	if name == "" {
		return name
	}
	if prefix, suffix, found := strings.Cut(name, ":"); found {
		return prefix + suffix
	}
	if last := name[len(name)-1]; last < '0' || last > '9' {
		return name + "1"
	}
	return name
}
