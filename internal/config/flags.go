package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"
)

// flagValues receives parsed flags. Only flags given on the command line are
// copied into the Config, so they override every other source without
// clobbering it with flag defaults.
type flagValues struct {
	configFile       string
	addr             string
	dbPath           string
	adminUser        string
	logPath          string
	listingsDSN      string
	storeTimeout     time.Duration
	degradeOnTimeout bool
}

const usage = `Usage: surplus [flags]

Flags:
  -c, -config <path>        JSON configuration file
  -d, -db <path>            SQLite database path (default: surplus.sqlite3)
  -a, -addr <host:port>     listen address (default: :8080)
  -u, -user <name>          admin username on first run (default: admin)
  -l, -log <path>           log file path (default: no file, stdout/stderr only)
  -listings-dsn <dsn>       keep listings in PostgreSQL instead of SQLite
  -store-timeout <dur>      bound on listing store calls (default: 5s)
  -degrade-on-timeout       answer with best-effort data when storage is slow
  -h, -help                 show this help and exit

Environment:
  SURPLUS_ADDR, SURPLUS_DB, SURPLUS_ADMIN_USER, SURPLUS_LOG,
  SURPLUS_LISTINGS_DSN, SURPLUS_STORE_TIMEOUT, SURPLUS_DEGRADE_ON_TIMEOUT,
  SAFETY_WINDOW_<FOOD_TYPE> (hours, e.g. SAFETY_WINDOW_PREPARED_MEAL=6)
`

func newFlagSet() (*flag.FlagSet, *flagValues) {
	fv := &flagValues{}
	fs := flag.NewFlagSet("surplus", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() { fmt.Fprint(os.Stdout, usage) }

	fs.StringVar(&fv.configFile, "config", "", "")
	fs.StringVar(&fv.configFile, "c", "", "")
	fs.StringVar(&fv.dbPath, "db", "", "")
	fs.StringVar(&fv.dbPath, "d", "", "")
	fs.StringVar(&fv.addr, "addr", "", "")
	fs.StringVar(&fv.addr, "a", "", "")
	fs.StringVar(&fv.adminUser, "user", "", "")
	fs.StringVar(&fv.adminUser, "u", "", "")
	fs.StringVar(&fv.logPath, "log", "", "")
	fs.StringVar(&fv.logPath, "l", "", "")
	fs.StringVar(&fv.listingsDSN, "listings-dsn", "", "")
	fs.DurationVar(&fv.storeTimeout, "store-timeout", 0, "")
	fs.BoolVar(&fv.degradeOnTimeout, "degrade-on-timeout", false, "")

	return fs, fv
}

func (fv *flagValues) apply(cfg *Config, fs *flag.FlagSet) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "db", "d":
			cfg.DBPath = fv.dbPath
		case "addr", "a":
			cfg.Addr = fv.addr
		case "user", "u":
			cfg.AdminUser = fv.adminUser
		case "log", "l":
			cfg.LogPath = fv.logPath
		case "listings-dsn":
			cfg.ListingsDSN = fv.listingsDSN
		case "store-timeout":
			cfg.StoreTimeout = fv.storeTimeout
		case "degrade-on-timeout":
			cfg.DegradeOnTimeout = fv.degradeOnTimeout
		}
	})
}
