package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/spf13/viper"

	"github.com/ayo6706/twinvest-bridge/internal/principal"
)

const (
	// CanisterIDVar names the required service address variable.
	CanisterIDVar = "TWINVEST_CANISTER_ID"
	HostVar       = "IC_HOST"
	IdentityVar   = "II_URL"

	DefaultHost             = "http://localhost:4943"
	DefaultIdentityProvider = "https://identity.ic0.app"
)

// ConfigurationError reports a missing or malformed required setting.
type ConfigurationError struct {
	Variable string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s is invalid: %s", e.Variable, e.Reason)
	}
	return fmt.Sprintf("%s is not set. Add it to your .env", e.Variable)
}

// Transport is the unresolved endpoint configuration. Tests construct it
// as a literal; processes read it with TransportFromEnv.
type Transport struct {
	Host       string
	CanisterID string
}

// Endpoint is a resolved Transport.
type Endpoint struct {
	Host     string
	Canister principal.Principal
}

// IsLocal reports whether the host is a loopback development replica.
func (e Endpoint) IsLocal() bool {
	u, err := url.Parse(e.Host)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// ResolveTransport validates t and applies the default host. It never
// touches the network.
func ResolveTransport(t Transport) (Endpoint, error) {
	id := strings.TrimSpace(t.CanisterID)
	if id == "" {
		return Endpoint{}, &ConfigurationError{Variable: CanisterIDVar}
	}
	canister, err := principal.Decode(id)
	if err != nil {
		return Endpoint{}, &ConfigurationError{Variable: CanisterIDVar, Reason: err.Error()}
	}
	host := strings.TrimRight(strings.TrimSpace(t.Host), "/")
	if host == "" {
		host = DefaultHost
	}
	u, err := url.Parse(host)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Endpoint{}, &ConfigurationError{Variable: HostVar, Reason: fmt.Sprintf("%q is not an http(s) URL", host)}
	}
	return Endpoint{Host: host, Canister: canister}, nil
}

// TransportFromEnv reads the transport variables on every call so that
// changes to the environment are picked up.
func TransportFromEnv() Transport {
	v := envViper()
	return Transport{
		Host:       v.GetString("ic_host"),
		CanisterID: v.GetString("canister_id"),
	}
}

// IdentityProviderFromEnv returns the federation login endpoint.
func IdentityProviderFromEnv() string {
	if u := strings.TrimSpace(envViper().GetString("ii_url")); u != "" {
		return u
	}
	return DefaultIdentityProvider
}

func envViper() *viper.Viper {
	v := viper.New()
	bindEnv(v, "canister_id", CanisterIDVar, "VITE_"+CanisterIDVar)
	bindEnv(v, "ic_host", HostVar, "VITE_"+HostVar)
	bindEnv(v, "ii_url", IdentityVar, "VITE_"+IdentityVar)
	return v
}
