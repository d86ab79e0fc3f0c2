package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/ajay020/slotbook/api"
	"github.com/ajay020/slotbook/bridge"
	"github.com/ajay020/slotbook/credstore"
	"github.com/ajay020/slotbook/internal/config"
	"github.com/ajay020/slotbook/pipeline"
	"github.com/ajay020/slotbook/session"
)

const usage = `Usage: slotbook <command> [args]

Commands:
  login <email>               Log in (password read from stdin)
  register <name> <email>     Create an account (password read from stdin)
  logout                      Log out and clear stored credentials
  status                      Show the current session
  me                          Show the remote profile
  update <name> <email>       Update the profile
  slots <YYYY-MM-DD>          List slots for a date
  book <slot-id>              Book a slot
  create-slot <date> <HH:MM>  Publish a new slot (admin)
`

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %s\n", err)
	}
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	_ = godotenv.Load()
	c := config.New()

	logger := newLogger(c)

	app, err := newApp(c, logger)
	if err != nil {
		return err
	}
	app.session.Initialize()

	args := os.Args[1:]
	if len(args) == 0 {
		displayAppname(c.GetAppName())
		fmt.Print(usage)
		return nil
	}

	ctx := context.Background()
	return app.dispatch(ctx, args[0], args[1:])
}

// app wires the credential store, session, pipeline and API client the
// way the mobile shell wires its providers.
type app struct {
	session *session.Session
	api     *api.Client
	log     zerolog.Logger
}

func newApp(c config.Config, logger zerolog.Logger) (*app, error) {
	store, err := credstore.NewFileStore(
		filepath.Join(c.GetDataFolder(), "credentials.bin"),
		[]byte(c.GetStoreSecret()),
	)
	if err != nil {
		return nil, err
	}

	b := bridge.New(logger.With().Str("component", "bridge").Logger())

	sess, err := session.New(store, b,
		session.WithLogger(logger.With().Str("component", "session").Logger()),
		session.WithRedirect(func() {
			fmt.Println("Signed out. Run `slotbook login <email>` to sign back in.")
		}),
	)
	if err != nil {
		return nil, err
	}

	timeout, err := time.ParseDuration(c.GetHTTPTimeout())
	if err != nil {
		timeout = 10 * time.Second
	}

	pipe, err := pipeline.New(c.GetBaseURL(), store, b,
		pipeline.WithLogger(logger.With().Str("component", "pipeline").Logger()),
		pipeline.WithTimeout(timeout),
	)
	if err != nil {
		return nil, err
	}

	apiClient, err := api.New(pipe, api.WithLogger(logger.With().Str("component", "api").Logger()))
	if err != nil {
		return nil, err
	}

	return &app{session: sess, api: apiClient, log: logger}, nil
}

func (a *app) dispatch(ctx context.Context, command string, args []string) error {
	switch command {
	case "login":
		return a.login(ctx, args)
	case "register":
		return a.register(ctx, args)
	case "logout":
		a.session.Logout()
		return nil
	case "status":
		return a.status()
	case "me":
		return a.me(ctx)
	case "update":
		return a.update(ctx, args)
	case "slots":
		return a.slots(ctx, args)
	case "book":
		return a.book(ctx, args)
	case "create-slot":
		return a.createSlot(ctx, args)
	default:
		fmt.Print(usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) login(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: slotbook login <email>")
	}
	password, err := promptPassword()
	if err != nil {
		return err
	}

	creds, err := a.api.Login(ctx, args[0], password)
	if err != nil {
		return err
	}
	if err := a.session.Login(creds.AccessToken, creds.RefreshToken, creds.User); err != nil {
		return err
	}
	fmt.Printf("Logged in as %s (%s)\n", creds.User.Name, creds.User.Email)
	return nil
}

func (a *app) register(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: slotbook register <name> <email>")
	}
	password, err := promptPassword()
	if err != nil {
		return err
	}

	creds, err := a.api.Register(ctx, args[0], args[1], password)
	if err != nil {
		return err
	}
	if err := a.session.Login(creds.AccessToken, creds.RefreshToken, creds.User); err != nil {
		return err
	}
	fmt.Printf("Registered and logged in as %s (%s)\n", creds.User.Name, creds.User.Email)
	return nil
}

func (a *app) status() error {
	snapshot := a.session.Snapshot()
	if !snapshot.IsAuthenticated() {
		fmt.Println("Not logged in.")
		return nil
	}
	fmt.Printf("Logged in as %s (%s), role %s\n", snapshot.User.Name, snapshot.User.Email, snapshot.User.Role)
	return nil
}

func (a *app) me(ctx context.Context) error {
	user, err := a.api.Me(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s <%s> role=%s id=%s\n", user.Name, user.Email, user.Role, user.ID)
	return nil
}

func (a *app) update(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: slotbook update <name> <email>")
	}
	user, err := a.api.UpdateMe(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Printf("Profile updated: %s <%s>\n", user.Name, user.Email)
	return nil
}

func (a *app) slots(ctx context.Context, args []string) error {
	date := time.Now().Format("2006-01-02")
	if len(args) == 1 {
		date = args[0]
	}
	slots, err := a.api.SlotsByDate(ctx, date)
	if err != nil {
		return err
	}
	if len(slots) == 0 {
		fmt.Printf("No slots available on %s.\n", date)
		return nil
	}
	for _, slot := range slots {
		state := "available"
		if slot.IsBooked {
			state = "booked"
		}
		fmt.Printf("%-26s %s %s  %s\n", slot.ID, slot.Date, slot.Time, state)
	}
	return nil
}

func (a *app) book(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: slotbook book <slot-id>")
	}
	if err := a.api.BookSlot(ctx, args[0]); err != nil {
		return err
	}
	fmt.Println("Slot booked.")
	return nil
}

func (a *app) createSlot(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: slotbook create-slot <YYYY-MM-DD> <HH:MM>")
	}
	if !a.session.IsAdmin() {
		// Advisory only: the cached role can be stale, the server has
		// the final word.
		a.log.Warn().Msg("cached role is not admin, attempting anyway")
	}
	slot, err := a.api.CreateSlot(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Printf("Slot created: %s %s %s\n", slot.ID, slot.Date, slot.Time)
	return nil
}

func promptPassword() (string, error) {
	fmt.Print("Password: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func newLogger(c config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
