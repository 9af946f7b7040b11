package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/tinoosan/finman/internal/authz"
	"github.com/tinoosan/finman/internal/errs"
	"github.com/tinoosan/finman/internal/service/user"
	"github.com/tinoosan/finman/internal/storage"
	pgstore "github.com/tinoosan/finman/internal/storage/postgres"
	"github.com/tinoosan/finman/internal/storage/sqlite"
)

const defaultDBPath = "finman.db"

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("adduser", flag.ContinueOnError)
	fs.SetOutput(stderr)

	login := fs.String("user", "", "Login of the new user")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")
	admin := fs.Bool("admin", false, "Grant administrator rights")
	dbPath := fs.String("db", defaultDBPath, "Path to the SQLite database file")
	dsn := fs.String("dsn", "", "Postgres connection string (takes precedence over -db)")
	currency := fs.String("currency", "USD", "Bookkeeping currency of the store")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *login == "" {
		fmt.Fprintln(stdout, "Usage: adduser -user <login> [-password <password>] [-admin] [-db <db_path> | -dsn <postgres_dsn>]")
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: user")
	}

	password := *passwordFlag
	if password == "" {
		fmt.Fprint(stdout, "Password: ")
		var err error
		password, err = readPassword(stdin)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(stdout)
	}
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("password cannot be empty")
	}

	// Environment fills in the connection when the flags keep their defaults.
	if v := os.Getenv("DATABASE_URL"); v != "" && *dsn == "" {
		*dsn = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" && *dbPath == defaultDBPath {
		*dbPath = v
	}

	ctx := context.Background()
	store, err := openStore(ctx, *dsn, *dbPath, *currency)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	// Only Create is used, which needs neither tokens nor the admin protection.
	svc := user.New(store, store, nil, authz.Protector{})
	u, err := svc.Create(ctx, user.Credentials{Login: *login, Password: password}, *admin)
	if errors.Is(err, errs.ErrDuplicateLogin) {
		return fmt.Errorf("user %s already exists", *login)
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	role := "user"
	if u.IsAdmin {
		role = "admin"
	}
	fmt.Fprintf(stdout, "User %s (%s) created successfully with ID %d\n", u.Login, role, u.ID)
	return nil
}

func openStore(ctx context.Context, dsn, path, currency string) (storage.Store, error) {
	if dsn != "" {
		pg, err := pgstore.Open(ctx, dsn, currency)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		return pg, nil
	}
	lite, err := sqlite.Open(ctx, path, currency)
	if err != nil {
		return nil, err
	}
	return lite, nil
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	// pipes and tests
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
