package config

import (
	"flag"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/gophmail/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN, "" for in-memory storage
//	-s string   HMAC secret for verification tokens
//	-v bool     require mailed verification of uploaded keys
//	-t int      verification link validity, hours
//	-u string   public base URL used in verification links
//	-l string   log level
//
// The function first filters os.Args to the flags it recognizes using
// flagx.FilterArgs, so -c/-config (handled by parseJson) do not collide.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-v", "-t", "-u", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.BoolVar(&config.VerifyKeys, "v", config.VerifyKeys, "verify uploaded keys by mail")
	tokenValidity := fs.Int("t", int(config.TokenValidity.Hours()), "verification link validity (in hours)")
	fs.StringVar(&config.PublicURL, "u", config.PublicURL, "public base URL")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.TokenValidity = time.Duration(*tokenValidity) * time.Hour
}
