// newsdeskctl 管理后台账户：创建、删除用户以及为用户签发 token。
// 与服务端读取同一套环境变量（含 .env），也可通过参数覆盖数据库连接。
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"newsdesk/internal/config"
	"newsdesk/internal/db"
	clog "newsdesk/internal/log"
	"newsdesk/internal/service"

	"github.com/spf13/pflag"
)

const usage = `Usage: newsdeskctl <command> [flags]

Commands:
  createuser   create an admin account (--username, --password)
  deleteuser   delete an account; its posts are kept with no author (--username)
  token        print the account's auth token, creating it if needed (--username)

Flags:
`

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	config.LoadDotenv()
	cfg := config.Load()

	var username, password string
	flagSet := pflag.NewFlagSet("newsdeskctl", pflag.ContinueOnError)
	flagSet.SetOutput(stdout)
	flagSet.StringVarP(&username, "username", "u", "", "account username")
	flagSet.StringVarP(&password, "password", "p", os.Getenv("NEWSDESK_PASSWORD"), "account password (default $NEWSDESK_PASSWORD)")
	flagSet.StringVar(&cfg.DatabaseDriver, "database-driver", cfg.DatabaseDriver, "postgres or sqlite")
	flagSet.StringVar(&cfg.DatabaseDSN, "database-dsn", cfg.DatabaseDSN, "database connection string")
	flagSet.Usage = func() {
		fmt.Fprint(stdout, usage)
		flagSet.PrintDefaults()
	}

	if len(args) == 0 {
		flagSet.Usage()
		return errors.New("missing command")
	}
	command := args[0]
	if err := flagSet.Parse(args[1:]); err != nil {
		return err
	}
	if extra := flagSet.Args(); len(extra) > 0 {
		return fmt.Errorf("unexpected argument: %s", extra[0])
	}
	if username == "" {
		return errors.New("--username is required")
	}

	clog.InitTo(cfg.Env, os.Stderr)
	gdb, err := db.Connect(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if sqlDB, err := gdb.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := db.Migrate(gdb); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	users := service.NewUserService(gdb)

	switch command {
	case "createuser":
		u, err := users.CreateUser(ctx, username, password)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "created user %q (id %d)\n", u.Username, u.ID)
	case "deleteuser":
		if err := users.DeleteUser(ctx, username); err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return fmt.Errorf("user %q not found", username)
			}
			return err
		}
		fmt.Fprintf(stdout, "deleted user %q\n", username)
	case "token":
		res, err := users.TokenFor(ctx, username)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return fmt.Errorf("user %q not found", username)
			}
			return err
		}
		fmt.Fprintln(stdout, res.Token)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
	return nil
}
