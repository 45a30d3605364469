package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/imrishuroy/go-storefront-checkout/internal/api"
	"github.com/imrishuroy/go-storefront-checkout/internal/config"
	"github.com/imrishuroy/go-storefront-checkout/internal/notify"
	"github.com/imrishuroy/go-storefront-checkout/internal/payment"
	"github.com/imrishuroy/go-storefront-checkout/internal/session"
)

func main() {
	if err := newApp(os.Stdin, os.Stdout).Run(os.Args); err != nil {
		if msg := errorMessage(err); msg != "" {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(1)
	}
}

// reportedError marks a failure the user has already seen as a notification.
type reportedError struct{ error }

func reported(err error) error {
	if err == nil {
		return nil
	}
	return reportedError{err}
}

func errorMessage(err error) string {
	var r reportedError
	if errors.As(err, &r) {
		return ""
	}
	var apiErr *api.Error
	if errors.As(err, &apiErr) || errors.Is(err, context.Canceled) {
		return api.UserMessage(err)
	}
	return err.Error()
}

// shell holds what every command needs once flags are parsed.
type shell struct {
	in       io.Reader
	out      io.Writer
	logger   *log.Logger
	sessions *session.FileStore
	client   *api.Client
	notes    notify.Notifier
	secret   string
	// gateway reads payment answers from in for the life of the shell.
	gateway *payment.TestModeGateway
}

func newApp(in io.Reader, out io.Writer) *cli.App {
	cfg, err := config.LoadClient()
	if err != nil {
		// fall back to built-in defaults; flags can still override
		cfg = config.Client{APIURL: "http://localhost:8080", PaymentSecret: "sandbox-secret", LogLevel: "warn"}
	}
	if cfg.SessionFile == "" {
		cfg.SessionFile = session.DefaultPath()
	}

	sh := &shell{in: in, out: out}
	app := &cli.App{
		Name:      "storefront",
		Usage:     "shop from the terminal: browse, manage your cart and check out",
		Writer:    out,
		ErrWriter: out,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "api-url", Value: cfg.APIURL, Usage: "storefront API base URL"},
			&cli.StringFlag{Name: "session-file", Value: cfg.SessionFile, Usage: "where the sign-in token is kept"},
			&cli.StringFlag{Name: "payment-secret", Value: cfg.PaymentSecret, Usage: "test-mode gateway signing secret"},
			&cli.StringFlag{Name: "log-level", Value: cfg.LogLevel},
		},
		Before: func(c *cli.Context) error {
			sh.setup(c)
			return nil
		},
		Commands: []*cli.Command{
			loginCommand(sh),
			logoutCommand(sh),
			productsCommand(sh),
			cartCommand(sh),
			couponCommand(sh),
			shippingCommand(sh),
			addressesCommand(sh),
			checkoutCommand(sh),
			ordersCommand(sh),
		},
	}
	return app
}

func (sh *shell) setup(c *cli.Context) {
	// the client packages log through the standard logger
	sh.logger = log.StandardLogger()
	sh.logger.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
	sh.logger.SetLevel(config.ParseLevel(c.String("log-level")))
	entry := sh.logger.WithField("app", "storefront")

	sh.secret = c.String("payment-secret")
	if sh.gateway == nil {
		sh.gateway = payment.NewTestModeGateway(sh.secret, sh.in, sh.out)
	}
	sh.sessions = session.NewFileStore(c.String("session-file"))
	sh.client = api.New(c.String("api-url"),
		api.WithTokenSource(sh.sessions),
		api.WithLogger(entry),
	)

	var notes notify.Notifier = notify.Func(sh.printNotification)
	if sh.logger.IsLevelEnabled(log.DebugLevel) {
		notes = notify.Multi{notes, notify.NewLogNotifier(entry)}
	}
	sh.notes = notes
}

func (sh *shell) printNotification(n notify.Notification) {
	mark := "*"
	switch n.Level {
	case notify.LevelSuccess:
		mark = "ok"
	case notify.LevelError:
		mark = "!!"
	}
	fmt.Fprintf(sh.out, "[%s] %s\n", mark, n.Message)
}

// requireSession gates account-scoped commands on a stored credential.
func (sh *shell) requireSession(c *cli.Context) error {
	if _, err := sh.sessions.Require(); err != nil {
		return errors.New("not signed in, run: storefront login --email you@example.com")
	}
	return nil
}
