package main

import (
	"bufio"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/jrsteele09/go-supplier-portal/cart"
	"github.com/jrsteele09/go-supplier-portal/internal/config"
	apperrors "github.com/jrsteele09/go-supplier-portal/internal/errors"
	"github.com/jrsteele09/go-supplier-portal/internal/logging"
	"github.com/jrsteele09/go-supplier-portal/portal"
	"github.com/jrsteele09/go-supplier-portal/session"
	"github.com/jrsteele09/go-supplier-portal/supplier"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// app holds the flags shared by every command and the Portal opened for the current one.
type app struct {
	envFile  string
	baseURL  string
	dataDir  string
	driver   string
	logLevel string
	format   string

	opts   []supplier.Option
	cfg    config.Config
	portal *supplier.Portal
}

func newApp(opts ...supplier.Option) *app {
	return &app{opts: opts}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:          "portal",
		Short:        "Supplier portal client",
		Long:         "Log in to the supplier portal, browse open procurement needs and submit proposals.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			displayAppname(cmd.OutOrStdout(), a.cfg.GetAppName())
			return cmd.Help()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	flags.StringVar(&a.baseURL, "base-url", "", "portal API base URL (PORTAL_BASE_URL)")
	flags.StringVar(&a.dataDir, "data-dir", "", "folder for persisted state (FOLDER)")
	flags.StringVar(&a.driver, "store", "", "store driver: memory, file or sqlite (STORE_DRIVER)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (LOG_LEVEL)")
	flags.StringVarP(&a.format, "output", "o", formatTable, "output format: table, json or yaml")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newRegisterCmd(a),
		newNeedsCmd(a),
		newCartCmd(a),
		newVersionCmd(a),
	)
	return root
}

func (a *app) open() error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return errors.Wrapf(err, "load %s", a.envFile)
		}
	}

	a.cfg = config.New(
		config.WithOverride(config.BaseURLVar, a.baseURL),
		config.WithOverride(config.FolderVar, a.dataDir),
		config.WithOverride(config.StoreDriverVar, a.driver),
		config.WithOverride(config.LogLevelVar, a.logLevel),
	)
	logging.Setup(a.cfg.GetEnv(), a.cfg.GetLogLevel())

	p, err := supplier.New(a.cfg, a.opts...)
	if err != nil {
		return err
	}
	a.portal = p

	state := p.Restore()
	log.Debug().Str("state", state.String()).Msg("Session restored")
	return nil
}

func (a *app) close() error {
	if a.portal == nil {
		return nil
	}
	err := a.portal.Close()
	a.portal = nil
	return err
}

func newLoginCmd(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with the supplier's email and password",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.portal.Session().State() == session.Authenticated {
				return errors.Errorf("already logged in as %s, log out first", a.portal.Session().Identity().DisplayName())
			}
			if password == "" {
				line, err := readLine(cmd, "Password: ")
				if err != nil {
					return err
				}
				password = line
			}

			if err := a.portal.Login(cmd.Context(), email, password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", a.portal.Session().Identity().DisplayName())
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "password, read from stdin when omitted")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the session and empty the proposal cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.portal.Logout()
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in supplier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			identity := a.portal.Session().Identity()
			if identity == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
				return nil
			}
			return printIdentity(cmd.OutOrStdout(), a.format, identity)
		},
	}
}

func newRegisterCmd(a *app) *cobra.Command {
	var reg portal.Registration
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Apply for a supplier account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if reg.Password == "" {
				line, err := readLine(cmd, "Password: ")
				if err != nil {
					return err
				}
				reg.Password = line
			}
			msg, err := a.portal.Register(cmd.Context(), reg)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
	cmd.Flags().StringVar(&reg.Name, "name", "", "organisation name")
	cmd.Flags().StringVar(&reg.INN, "inn", "", "taxpayer identification number")
	cmd.Flags().StringVar(&reg.Email, "email", "", "login email")
	cmd.Flags().StringVar(&reg.Password, "password", "", "password, read from stdin when omitted")
	for _, name := range []string{"name", "inn", "email"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newNeedsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "needs",
		Short: "List the open procurement needs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := a.portal.Needs(cmd.Context())
			if err != nil {
				return err
			}
			return printNeeds(cmd.OutOrStdout(), a.format, list, a.portal.Cart())
		},
	}
}

func newCartCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Manage the proposal cart",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Show the selected needs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := a.portal.Proposal(cmd.Context())
			if err != nil {
				log.Warn().Err(err).Msg("Needs unavailable, showing request ids only")
				return printRows(cmd.OutOrStdout(), a.format, idRows(a.portal.Cart().IDs()), false)
			}
			return printRows(cmd.OutOrStdout(), a.format, rows, true)
		},
	}

	add := &cobra.Command{
		Use:   "add REQUEST_ID...",
		Short: "Add needs to the proposal",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, id := range args {
				if err := a.portal.Cart().Add(id); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d selected\n", a.portal.Cart().Len())
			return nil
		},
	}

	remove := &cobra.Command{
		Use:   "remove REQUEST_ID...",
		Short: "Remove needs from the proposal",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, id := range args {
				if err := a.portal.Cart().Remove(id); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d selected\n", a.portal.Cart().Len())
			return nil
		},
	}

	var email string
	submit := &cobra.Command{
		Use:   "submit",
		Short: "Submit the selected needs as one proposal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n := a.portal.Cart().Len()
			if n == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to submit")
				return nil
			}
			if err := a.portal.Submit(cmd.Context(), email); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Proposal submitted for %d needs\n", n)
			return nil
		},
	}
	submit.Flags().StringVar(&email, "email", "", "submitter email when the portal accepts anonymous proposals")

	cmd.AddCommand(list, add, remove, submit)
	return cmd
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			displayAppname(cmd.OutOrStdout(), a.cfg.GetAppName())
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", a.cfg.GetAppName(), version)
			return nil
		},
	}
}

// idRows lists the cart without need details. Missing stays unset since nothing was checked.
func idRows(ids []string) []cart.Row {
	rows := make([]cart.Row, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, cart.Row{RequestID: id})
	}
	return rows
}

func readLine(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		if err != nil {
			return "", errors.Wrap(err, "read password")
		}
		return "", apperrors.Wrapf(apperrors.ErrInvalidRequest, "empty password")
	}
	return line, nil
}
