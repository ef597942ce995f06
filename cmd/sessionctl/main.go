package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-auth-client/identity"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/internal/utils"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/jrsteele09/go-auth-client/session/filestore"
	"github.com/jrsteele09/go-auth-client/token"
	"github.com/rs/zerolog"
)

const usage = `usage: sessionctl <command>

commands:
  login    -email <email> [-password <password>]   sign in and persist the session
  whoami                                           show the current user
  token                                            print a valid access token (refreshing if needed)
  check    <path>                                  report whether the current session may visit a path
  logout                                           clear the session
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "sessionctl: %s\n", err)
		os.Exit(1)
	}
}

func run(args []string) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return errors.New("missing command")
	}

	c := config.New()
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	apiClient, err := identity.NewClient(c.GetBaseURL(),
		identity.WithHTTPClient(&http.Client{Timeout: c.GetHTTPTimeout()}),
		identity.WithLogger(log),
	)
	if err != nil {
		return err
	}

	store, err := filestore.New(c.GetSessionFile(), storeOptions(c)...)
	if err != nil {
		return err
	}

	manager, err := session.NewManager(store, apiClient,
		session.WithLogger(log),
		session.WithNavigator(func(path string) {
			log.Info().Str("path", path).Msg("redirect")
		}),
	)
	if err != nil {
		return err
	}

	ctx := context.Background()

	switch args[0] {
	case "login":
		return login(ctx, c, apiClient, manager, args[1:])
	case "whoami":
		return whoami(manager)
	case "token":
		return printToken(ctx, manager)
	case "check":
		return check(manager, args[1:])
	case "logout":
		return manager.Logout(ctx)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func storeOptions(c config.Config) []filestore.Option {
	if secret := c.GetSessionSecret(); secret != "" {
		return []filestore.Option{filestore.WithSecret([]byte(secret))}
	}
	return nil
}

func login(ctx context.Context, c config.Config, apiClient *identity.Client, manager *session.Manager, args []string) error {
	flags := flag.NewFlagSet("login", flag.ContinueOnError)
	email := flags.String("email", "", "account email")
	password := flags.String("password", "", "account password (prompted when omitted)")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return errors.New("login: -email is required")
	}
	if *password == "" {
		fmt.Print("password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return err
		}
		*password = strings.TrimSpace(line)
	}

	displayAppname(c.GetAppName())

	creds, err := apiClient.Login(ctx, *email, *password)
	if err != nil {
		var apiErr *identity.Error
		if errors.As(err, &apiErr) && apiErr.Kind == identity.KindValidation {
			// Retryable form errors, one per line
			for _, field := range apiErr.Fields {
				fmt.Fprintf(os.Stderr, "  %s\n", field)
			}
		}
		return err
	}

	if creds.Identity.Email == "" {
		// Older identity API versions omit the profile from the login
		// response; fetch it separately.
		id, err := apiClient.Me(ctx, creds.AccessToken)
		if err != nil {
			return err
		}
		creds.Identity = *id
	}

	if err := manager.Login(creds); err != nil {
		return err
	}
	fmt.Printf("signed in as %s %s <%s>\n", creds.Identity.FirstName, creds.Identity.LastName, creds.Identity.Email)
	return nil
}

func whoami(manager *session.Manager) error {
	if !manager.IsAuthenticated() {
		return errors.New("not signed in")
	}
	id := manager.Identity()
	fmt.Printf("%s %s <%s> role=%s\n", id.FirstName, id.LastName, id.Email, id.Role)
	return nil
}

func printToken(ctx context.Context, manager *session.Manager) error {
	accessToken, err := manager.ValidAccessToken(ctx)
	if err != nil {
		return err
	}
	if introspection, err := token.Introspect(accessToken); err == nil {
		expiry := time.Unix(utils.Value(introspection.Exp), 0)
		fmt.Fprintf(os.Stderr, "expires %s\n", expiry.Format(time.RFC3339))
	}
	fmt.Println(accessToken)
	return nil
}

func check(manager *session.Manager, args []string) error {
	if len(args) != 1 {
		return errors.New("check: exactly one path expected")
	}
	if manager.RouteAuthorized(args[0]) {
		fmt.Println("authorized")
		return nil
	}
	fmt.Println("denied")
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
