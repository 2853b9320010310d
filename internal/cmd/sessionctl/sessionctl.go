// Package sessionctl implements the session control CLI: sign up, sign in,
// inspect, and tear down device sessions from a terminal.
package sessionctl

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/dugoutlabs/dugout/internal/account/credential"
	"github.com/dugoutlabs/dugout/internal/account/credential/identitytoolkit"
	"github.com/dugoutlabs/dugout/internal/account/credential/local"
	"github.com/dugoutlabs/dugout/internal/account/profilestore"
	"github.com/dugoutlabs/dugout/internal/account/profilestore/firestore"
	"github.com/dugoutlabs/dugout/internal/account/profilestore/memstore"
	mirrorsqlite "github.com/dugoutlabs/dugout/internal/mirror/sqlite"
	platformcmd "github.com/dugoutlabs/dugout/internal/platform/cmd"
	apperrors "github.com/dugoutlabs/dugout/internal/platform/errors"
	"github.com/dugoutlabs/dugout/internal/platform/errors/i18n"
	"github.com/dugoutlabs/dugout/internal/session"
	"github.com/dugoutlabs/dugout/internal/session/coordinator"
	"github.com/dugoutlabs/dugout/internal/telemetry"
)

// Config holds sessionctl configuration.
type Config struct {
	APIKey            string `env:"DUGOUT_API_KEY"`
	ProjectID         string `env:"DUGOUT_PROJECT_ID"`
	AuthEndpoint      string `env:"DUGOUT_AUTH_ENDPOINT"`
	FirestoreEndpoint string `env:"DUGOUT_FIRESTORE_ENDPOINT"`
	DBPath            string `env:"DUGOUT_DB_PATH" envDefault:"dugout.db"`
	LocalAuth         bool   `env:"DUGOUT_LOCAL_AUTH"`
	LocalAuthSecret   string `env:"DUGOUT_LOCAL_AUTH_SECRET"`
	Locale            string `env:"DUGOUT_LOCALE" envDefault:"en-US"`
}

// ParseConfig loads env defaults and then parses flags, leaving subcommand
// arguments in fs.Args().
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the local mirror database")
	fs.BoolVar(&cfg.LocalAuth, "local", cfg.LocalAuth, "Use the offline credential provider")
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	if err := platformcmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes one subcommand against a freshly wired coordinator.
func Run(ctx context.Context, cfg Config, args []string, out io.Writer) error {
	if len(args) == 0 {
		return usageError()
	}

	mirrorStore, err := mirrorsqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open mirror: %w", err)
	}
	defer mirrorStore.Close()

	provider, closeProvider, err := buildProvider(cfg)
	if err != nil {
		return err
	}
	defer closeProvider()
	profiles := buildProfileStore(cfg, provider)

	c, err := coordinator.New(ctx, coordinator.Config{
		Provider:  provider,
		Profiles:  profiles,
		Mirror:    mirrorStore,
		Telemetry: telemetry.NewEmitter(mirrorStore),
	})
	if err != nil {
		return fmt.Errorf("start coordinator: %w", err)
	}
	defer c.Close()

	if err := runCommand(ctx, c, args, out); err != nil {
		// Taxonomy errors carry a code; render the user-facing message in
		// the configured locale before surfacing the error itself.
		var domainErr *apperrors.Error
		if errors.As(err, &domainErr) {
			catalog := i18n.GetCatalog(cfg.Locale)
			fmt.Fprintln(out, catalog.Format(string(domainErr.Code), domainErr.Metadata))
		}
		return err
	}
	return nil
}

func buildProvider(cfg Config) (credential.Provider, func(), error) {
	if cfg.LocalAuth {
		secret := cfg.LocalAuthSecret
		if secret == "" {
			secret = "dugout-dev"
		}
		provider, err := local.Open(local.Config{Path: cfg.DBPath + ".auth", Secret: secret})
		if err != nil {
			return nil, nil, fmt.Errorf("open local provider: %w", err)
		}
		return provider, func() { _ = provider.Close() }, nil
	}
	client, err := identitytoolkit.New(identitytoolkit.Config{
		APIKey:   cfg.APIKey,
		Endpoint: cfg.AuthEndpoint,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("configure credential provider: %w", err)
	}
	return client, func() {}, nil
}

func buildProfileStore(cfg Config, provider credential.Provider) profilestore.Store {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return memstore.New()
	}
	client, err := firestore.New(firestore.Config{
		ProjectID: cfg.ProjectID,
		Endpoint:  cfg.FirestoreEndpoint,
		Token: func(ctx context.Context) (string, error) {
			sess, err := provider.CurrentSession(ctx)
			if err != nil {
				return "", err
			}
			return sess.Token.IDToken, nil
		},
	})
	if err != nil {
		return memstore.New()
	}
	return client
}

func runCommand(ctx context.Context, c *coordinator.Coordinator, args []string, out io.Writer) error {
	name, rest := args[0], args[1:]
	switch name {
	case "sign-up", "sign-up-coach":
		fs := flag.NewFlagSet(name, flag.ContinueOnError)
		email := fs.String("email", "", "Account email")
		password := fs.String("password", "", "Account password")
		displayName := fs.String("name", "", "Display name")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		var err error
		if name == "sign-up-coach" {
			err = c.SignUpAsCoach(ctx, *email, *password, *displayName)
		} else {
			err = c.SignUp(ctx, *email, *password, *displayName)
		}
		if err != nil {
			return err
		}
		return printState(out, c.Current())

	case "sign-in":
		fs := flag.NewFlagSet(name, flag.ContinueOnError)
		email := fs.String("email", "", "Account email")
		password := fs.String("password", "", "Account password")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if err := c.SignIn(ctx, *email, *password); err != nil {
			return err
		}
		return printState(out, c.Current())

	case "whoami":
		return printState(out, c.Current())

	case "complete-onboarding":
		if err := c.CompleteOnboarding(ctx); err != nil {
			return err
		}
		return printState(out, c.Current())

	case "sign-out":
		if err := c.SignOut(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "signed out")
		return nil

	case "delete-account":
		if err := c.DeleteAccount(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "account deleted")
		return nil

	case "reset-password":
		fs := flag.NewFlagSet(name, flag.ContinueOnError)
		email := fs.String("email", "", "Account email")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if err := c.SendPasswordReset(ctx, *email); err != nil {
			return err
		}
		fmt.Fprintf(out, "password reset sent to %s\n", strings.TrimSpace(*email))
		return nil

	default:
		return usageError()
	}
}

func printState(out io.Writer, state session.State) error {
	fmt.Fprintf(out, "phase: %s\n", state.Phase)
	if state.Identity != nil {
		fmt.Fprintf(out, "uid: %s\nemail: %s\n", state.Identity.UID, state.Identity.Email)
	}
	fmt.Fprintf(out, "role: %s\n", state.Role)
	if state.SignedIn() {
		fmt.Fprintf(out, "new signup: %t\nonboarding complete: %t\n", state.IsNewSignup, state.OnboardingComplete)
	}
	if state.Profile != nil {
		fmt.Fprintf(out, "display name: %s\n", state.Profile.DisplayName)
	}
	if state.PendingCoachInvites > 0 {
		fmt.Fprintf(out, "pending coach invites: %d\n", state.PendingCoachInvites)
	}
	return nil
}

func usageError() error {
	return fmt.Errorf("usage: sessionctl [flags] <sign-up|sign-up-coach|sign-in|whoami|complete-onboarding|sign-out|delete-account|reset-password>")
}
