package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

const envFileVariable = "CREDITS_ENV_FILE"

type Globals struct {
	Driver   string `help:"Database driver." enum:"postgres,sqlite3" default:"sqlite3" env:"CREDITS_DB_DRIVER"`
	DSN      string `help:"Database connection string." default:"file:credits.db?cache=shared&_fk=1" env:"CREDITS_DB_DSN" name:"dsn"`
	Debug    bool   `help:"Log SQL statements." env:"CREDITS_DEBUG"`
	LogLevel string `help:"Minimum log level." enum:"debug,info,warn,error" default:"info" env:"CREDITS_LOG_LEVEL"`
	Config   string `help:"Optional JSON file with credits configuration overrides." type:"existingfile" env:"CREDITS_CONFIG_FILE"`
}

type CLI struct {
	Globals

	Migrate  MigrateCmd  `cmd:"" help:"Apply the credits schema to the database."`
	Deploy   DeployCmd   `cmd:"" help:"Initialize the registry or marketplace contract."`
	Fund     FundCmd     `cmd:"" help:"Credit settlement balance to an account."`
	Serve    ServeCmd    `cmd:"" help:"Run the credits HTTP API."`
	Dispatch DispatchCmd `cmd:"" help:"Deliver pending outbox events."`
}

func newParser(cli *CLI, opts ...kong.Option) (*kong.Kong, error) {
	base := []kong.Option{
		kong.Name("creditsctl"),
		kong.Description("Operate the carbon credit registry and marketplace."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	}
	return kong.New(cli, append(base, opts...)...)
}

// loadEnvFile reads dotenv values before flags resolve their env defaults.
// A missing file is not an error.
func loadEnvFile() error {
	path := strings.TrimSpace(os.Getenv(envFileVariable))
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func main() {
	if err := loadEnvFile(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cli CLI
	parser, err := newParser(&cli, kong.BindTo(ctx, (*context.Context)(nil)))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	err = kctx.Run(&cli.Globals)
	kctx.FatalIfErrorf(err)
}
