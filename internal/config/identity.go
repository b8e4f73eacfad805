package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// lavacliIdentity is one entry of a lavacli.yaml identities file.
type lavacliIdentity struct {
	URI           string `yaml:"uri"`
	Username      string `yaml:"username"`
	Token         string `yaml:"token"`
	Proxy         string `yaml:"proxy"`
	Timeout       int    `yaml:"timeout"` // seconds
	VerifySSLCert *bool  `yaml:"verify_ssl_cert"`
}

type lavacliFile struct {
	Identities map[string]lavacliIdentity `yaml:"identities"`
}

// loadIdentity fills the fields left empty in the config from the named
// identity of the lavacli file.
func (l *LavaConfig) loadIdentity() error {
	b, err := os.ReadFile(l.IdentityFile)
	if err != nil {
		return fmt.Errorf("read identity file: %w", err)
	}
	var f lavacliFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("parse identity file: %w", err)
	}

	name := l.Identity
	if name == "" {
		name = "default"
	}
	id, ok := f.Identities[name]
	if !ok {
		return fmt.Errorf("identity %q not found in %s", name, l.IdentityFile)
	}

	if l.URI == "" {
		l.URI = id.URI
	}
	if l.Username == "" {
		l.Username = id.Username
	}
	if l.Token == "" {
		l.Token = id.Token
	}
	if l.Proxy == "" {
		l.Proxy = id.Proxy
	}
	if l.Timeout <= 0 && id.Timeout > 0 {
		l.Timeout = time.Duration(id.Timeout) * time.Second
	}
	if l.VerifySSLCert == nil {
		l.VerifySSLCert = id.VerifySSLCert
	}
	return nil
}
