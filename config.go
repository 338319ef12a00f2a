package main

import (
	"flag"
	"fmt"
	"strconv"
	"time"

	"github.com/horgh/config"
	"github.com/pkg/errors"
)

// Config holds everything the core needs from its environment. Port and
// Password are the only two values spec section 6's command-line surface
// requires; the rest are ambient collaborator concerns (server identity,
// MOTD text, idle handling) the core is happy to receive defaults for.
type Config struct {
	Port     int
	Password string

	ServerName string
	Version    string
	CreatedAt  string
	MOTD       string

	// PingTime/DeadTime drive the optional idle-ping/disconnect behaviour
	// from spec section 5 ("may be added"). Zero DeadTime disables it.
	PingTime time.Duration
	DeadTime time.Duration
}

func defaultConfig() Config {
	return Config{
		ServerName: "irc.example.net",
		Version:    "miniircd-0.1",
		CreatedAt:  "unknown",
		MOTD:       "Welcome.",
		PingTime:   2 * time.Minute,
		DeadTime:   5 * time.Minute,
	}
}

// Args are the parsed command-line arguments. parseArgs implements the
// collaborator CLI surface from spec section 6: "program <port> <password>",
// plus optional ambient flags for identity/MOTD/idle handling and an
// optional -conf file (see applyConfFile) that can override those ambient
// values without touching the required positional arguments.
func parseArgs(argv []string) (Config, error) {
	fs := flag.NewFlagSet(progName(argv), flag.ContinueOnError)

	serverName := fs.String("server-name", "", "Server name to announce (overrides -conf).")
	motd := fs.String("motd", "", "Message of the day text (overrides -conf).")
	confFile := fs.String("conf", "", "Optional key/value configuration file.")
	pingTime := fs.Duration("ping-time", 2*time.Minute, "Idle time before a client is PINGed.")
	deadTime := fs.Duration("dead-time", 5*time.Minute, "Idle time before a client is disconnected. 0 disables.")

	if err := fs.Parse(argv[1:]); err != nil {
		return Config{}, err
	}

	rest := fs.Args()
	if len(rest) != 2 {
		return Config{}, fmt.Errorf("usage: %s [flags] <port:1-65535> <password>", progName(argv))
	}

	port, err := strconv.Atoi(rest[0])
	if err != nil || port < 1 || port > 65535 {
		return Config{}, fmt.Errorf("invalid port %q: must be 1-65535", rest[0])
	}

	cfg := defaultConfig()
	cfg.Port = port
	cfg.Password = rest[1]
	cfg.PingTime = *pingTime
	cfg.DeadTime = *deadTime

	if len(*confFile) > 0 {
		if err := applyConfFile(&cfg, *confFile); err != nil {
			return Config{}, errors.Wrapf(err, "loading -conf file %s", *confFile)
		}
	}

	if len(*serverName) > 0 {
		cfg.ServerName = *serverName
	}
	if len(*motd) > 0 {
		cfg.MOTD = *motd
	}

	return cfg, nil
}

// applyConfFile loads ambient overrides from an optional key/value file
// using the same ReadStringMap contract the teacher's horgh/config package
// exposes: "key = value" lines, '#' comments, case-insensitive keys. This
// gives that dependency a concrete home without expanding the core's
// configuration surface beyond what spec section 6 names (port, password
// stay positional arguments only).
func applyConfFile(cfg *Config, path string) error {
	values, err := config.ReadStringMap(path)
	if err != nil {
		return err
	}

	if v, ok := values["server-name"]; ok && len(v) > 0 {
		cfg.ServerName = v
	}
	if v, ok := values["version"]; ok && len(v) > 0 {
		cfg.Version = v
	}
	if v, ok := values["created-date"]; ok && len(v) > 0 {
		cfg.CreatedAt = v
	}
	if v, ok := values["motd"]; ok && len(v) > 0 {
		cfg.MOTD = v
	}

	return nil
}

func progName(argv []string) string {
	if len(argv) == 0 {
		return "ircd"
	}
	return argv[0]
}
