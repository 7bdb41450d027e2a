package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/gophmail/internal/flagx"
	"github.com/dmitrijs2005/gophmail/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for the token lifetime, which accepts both string
// values such as "12h" and integer nanoseconds.
//
// Zero values are treated as "not set" and keep the current setting, except
// for verify_keys, which is a pointer so false can be given explicitly.
type JsonConfig struct {
	EndpointAddr  string         `json:"endpoint_addr"`
	DatabaseDSN   string         `json:"database_dsn"`
	SecretKey     string         `json:"secret_key"`
	VerifyKeys    *bool          `json:"verify_keys"`
	TokenValidity timex.Duration `json:"token_validity"`
	PublicURL     string         `json:"public_url"`
	LogLevel      string         `json:"log_level"`
	SMTPHost      string         `json:"smtp_host"`
	SMTPPort      int            `json:"smtp_port"`
	SMTPUser      string         `json:"smtp_user"`
	SMTPPassword  string         `json:"smtp_password"`
	SMTPSecurity  string         `json:"smtp_security"`
	MailFrom      string         `json:"mail_from"`
}

// parseJson loads configuration values from the JSON file named by the -c or
// -config flag into config. Without either flag nothing is loaded. If the
// file cannot be read or contains invalid JSON, the function panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigPath(os.Args[1:])
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	str := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	str(&config.EndpointAddr, c.EndpointAddr)
	str(&config.DatabaseDSN, c.DatabaseDSN)
	str(&config.SecretKey, c.SecretKey)
	str(&config.PublicURL, c.PublicURL)
	str(&config.LogLevel, c.LogLevel)
	str(&config.SMTPHost, c.SMTPHost)
	str(&config.SMTPUser, c.SMTPUser)
	str(&config.SMTPPassword, c.SMTPPassword)
	str(&config.SMTPSecurity, c.SMTPSecurity)
	str(&config.MailFrom, c.MailFrom)

	if c.VerifyKeys != nil {
		config.VerifyKeys = *c.VerifyKeys
	}
	if c.TokenValidity.Duration != 0 {
		config.TokenValidity = c.TokenValidity.Duration
	}
	if c.SMTPPort != 0 {
		config.SMTPPort = c.SMTPPort
	}
}
