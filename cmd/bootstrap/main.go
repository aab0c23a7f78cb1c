// Command bootstrap creates the first administrator account. The password
// is read from the terminal twice; the remaining server configuration comes
// from the usual env, JSON and flag layers.
//
//	bootstrap -email admin@example.com -first Ada -last Lovelace [-role ROLE_SYSADMIN]
package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/berboapp/internal/common"
	"github.com/dmitrijs2005/berboapp/internal/flagx"
	"github.com/dmitrijs2005/berboapp/internal/logging"
	"github.com/dmitrijs2005/berboapp/internal/server/auth"
	"github.com/dmitrijs2005/berboapp/internal/server/config"
	mailer "github.com/dmitrijs2005/berboapp/internal/server/mail"
	"github.com/dmitrijs2005/berboapp/internal/server/models"
	"github.com/dmitrijs2005/berboapp/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/berboapp/internal/server/services"
	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

var errPasswordMismatch = errors.New("passwords do not match")

type options struct {
	email     string
	firstName string
	lastName  string
	role      string
}

var bootstrapFlags = []string{"-email", "-first", "-last", "-role"}

func parseOptions(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("bootstrap", flag.ContinueOnError)
	fs.StringVar(&o.email, "email", "", "administrator email")
	fs.StringVar(&o.firstName, "first", "", "first name")
	fs.StringVar(&o.lastName, "last", "", "last name")
	fs.StringVar(&o.role, "role", models.RoleSysAdmin, "role to assign")
	if err := fs.Parse(flagx.FilterArgs(args, bootstrapFlags)); err != nil {
		return o, err
	}
	if o.email == "" || o.firstName == "" || o.lastName == "" {
		return o, errors.New("-email, -first and -last are required")
	}
	return o, nil
}

// readConfirmedPassword prompts twice and returns the password. The caller
// must wipe the returned slice.
func readConfirmedPassword(fd int, w io.Writer) ([]byte, error) {
	fmt.Fprint(w, "Password: ")
	first, err := readPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	fmt.Fprint(w, "Repeat password: ")
	second, err := readPassword(fd)
	fmt.Fprintln(w)
	defer common.WipeByteArray(second)
	if err != nil {
		common.WipeByteArray(first)
		return nil, err
	}
	if len(first) == 0 || !bytes.Equal(first, second) {
		common.WipeByteArray(first)
		return nil, errPasswordMismatch
	}
	return first, nil
}

// noMail rejects mail; administrators are created already enabled.
type noMail struct{}

func (noMail) Enqueue(context.Context, mailer.Message) error { return common.ErrEmailDeliveryFailed }

func run(ctx context.Context, o options, password []byte, cfg *config.Config, log logging.Logger) error {
	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db open error: %w", err)
	}
	defer db.Close()

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}

	accounts := services.NewAccountService(db, rm, noMail{}, auth.NewHasher(bcrypt.DefaultCost), cfg, log)
	u, err := accounts.CreateAdministrator(ctx, services.RegisterInput{
		FirstName: o.firstName,
		LastName:  o.lastName,
		Email:     o.email,
		Password:  string(password),
	}, o.role)
	if err != nil {
		return err
	}
	log.Info(ctx, "administrator ready", "user_id", u.ID, "email", u.Email, "role", o.role)
	return nil
}

func main() {
	ctx := context.Background()
	cfg := config.LoadConfig()
	log := logging.NewJSONLogger(os.Stderr, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	o, err := parseOptions(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	password, err := readConfirmedPassword(int(os.Stdin.Fd()), os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer common.WipeByteArray(password)

	if err := run(ctx, o, password, cfg, log); err != nil {
		log.Error(ctx, "bootstrap failed", "error", err)
		common.WipeByteArray(password)
		os.Exit(1)
	}
}
