package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"bookmark-extract/lib/configutil"
	"bookmark-extract/lib/platforms/twitter"
	"bookmark-extract/lib/progress"
	"bookmark-extract/lib/recordset"
	"bookmark-extract/lib/restyutil"
	"bookmark-extract/lib/serviceutil"
	"bookmark-extract/services/extractor"
	"bookmark-extract/services/keychain"
	"bookmark-extract/services/session"

	pretty "github.com/jedib0t/go-pretty/v6/progress"
	"github.com/spf13/cobra"
)

type Config struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Driver   string `json:"driver"`
	Limit    int    `json:"limit"`
	Out      string `json:"out"`
	Keychain string `json:"keychain"`
}

var extractDriver *string
var extractLimit *int
var extractOut *string
var extractUsername *string
var extractDebugHttp *bool

func init() {
	extractDriver = extractCmd.Flags().String("driver", "", "The browser driver to run the session with.")
	extractLimit = extractCmd.Flags().Int("limit", 0, "Stop after this many bookmarks (0 takes everything).")
	extractOut = extractCmd.Flags().String("out", "", "Write the extracted bookmarks to this JSON file.")
	extractUsername = extractCmd.Flags().String("username", "", "The account to log in as.")
	extractDebugHttp = extractCmd.Flags().Bool("debug-http", false, "Dump every http exchange to .dev/resty.")
	rootCmd.AddCommand(extractCmd)
}

// resolveCredentials prefers the config file, then the keychain. It
// never prompts; `bookmark-extract login` is how passwords get stored.
func resolveCredentials(ctx context.Context, cfg Config) (twitter.Credentials, error) {
	if cfg.Username != "" && cfg.Password != "" {
		return twitter.Credentials{Username: cfg.Username, Password: cfg.Password}, nil
	}

	chain, err := keychain.Open(keychainPath(cfg))
	if err != nil {
		return twitter.Credentials{}, err
	}
	defer chain.Close()

	var cred keychain.Credential
	if cfg.Username != "" {
		cred, err = chain.Get(ctx, cfg.Username)
	} else {
		cred, err = chain.Latest(ctx)
	}
	if errors.Is(err, keychain.ErrNotFound) {
		return twitter.Credentials{}, errors.New("no stored credentials, run `bookmark-extract login` first")
	}
	if err != nil {
		return twitter.Credentials{}, err
	}
	return twitter.Credentials{Username: cred.Username, Password: cred.Password}, nil
}

func promptLine(label string) string {
	fmt.Print(label)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		serviceutil.Fatal("failed to read input", err)
	}
	return strings.TrimSpace(line)
}

// promptForCodes walks through however many code prompts the site
// throws up, blocking on stdin for each.
func promptForCodes(ctx context.Context, controller *session.Controller) error {
	for !controller.LoggedIn() {
		switch {
		case controller.Needs2FACode():
			code := promptLine("two-factor code: ")
			controller.EnterTwoFactorCode(ctx, code)
		case controller.NeedsConfirmationCode():
			code := promptLine("confirmation code: ")
			controller.EnterConfirmationCode(ctx, code)
		default:
			return errors.New("credentials were rejected")
		}
	}
	return nil
}

var extractCmd = &cobra.Command{
	Use:   "extract [--driver <name>] [--limit <n>] [--out <path/to/bookmarks.json>]",
	Short: "Logs in and extracts your saved bookmarks.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		cfg, err := configutil.ReadConfig[Config]("config.json5")
		if err != nil && !os.IsNotExist(err) {
			serviceutil.Fatal("failed to read config", err)
		}
		if *extractDriver != "" {
			cfg.Driver = *extractDriver
		}
		if *extractLimit > 0 {
			cfg.Limit = *extractLimit
		}
		if *extractOut != "" {
			cfg.Out = *extractOut
		}
		if *extractUsername != "" {
			cfg.Username = *extractUsername
			cfg.Password = ""
		}
		if cfg.Driver == "" {
			cfg.Driver = "chrome"
		}

		if *extractDebugHttp {
			output, err := restyutil.NewFilesystemOutput(".dev/resty")
			if err != nil {
				serviceutil.Fatal("failed to create http dump directory", err)
			}
			twitter.SetRestyInstrumentOutput(output)
		}

		creds, err := resolveCredentials(ctx, cfg)
		if err != nil {
			serviceutil.Fatal("failed to resolve credentials", err)
		}
		slog.Info("extracting bookmarks", "username", creds.Username, "driver", cfg.Driver)

		notifier := progress.NewNotifier()
		controller := session.NewController()

		var runErr error
		task := extractor.NewTask(extractor.Options{
			Credentials: creds,
			Driver:      cfg.Driver,
			Limit:       cfg.Limit,
			Filename:    cfg.Out,
			OnSuccess: func(records []recordset.Record) {
				slog.Info("extraction succeeded", "records", len(records))
			},
			OnError: func(err error) {
				runErr = err
			},
		}, controller, notifier)

		pw := pretty.NewWriter()
		pw.SetTrackerLength(25)
		pw.SetUpdateFrequency(time.Millisecond * 100)
		tracker := &pretty.Tracker{
			Message: "extracting bookmarks",
			Total:   int64(task.NumEvents()),
		}
		pw.AppendTracker(tracker)

		// events arrive synchronously on this goroutine, no locking needed
		var fixed, extracted int64
		sub := notifier.Subscribe(func(ev progress.Event) {
			if ev.IsMessage {
				pw.Log("%s", ev.Message)
				return
			}
			if ev.Kind == progress.KindExtraction {
				extracted = int64(ev.Ratio.Complete)
			} else {
				fixed++
			}
			tracker.SetValue(fixed + extracted)
		})
		defer sub.Unsubscribe()

		task.LogIn(ctx)
		if controller.State() == session.StateInactive {
			serviceutil.Fatal("failed to start session", errors.New("see errors above"))
		}

		err = promptForCodes(ctx, controller)
		if err != nil {
			controller.TearDown(ctx)
			serviceutil.Fatal("login failed", err)
		}

		// the bar only starts once stdin prompting is done
		go pw.Render()

		task.Run(ctx)
		// no-op on the success path, exports partial results on failure
		task.Stop(ctx)

		tracker.MarkAsDone()
		pw.Stop()
		for pw.IsRenderInProgress() {
			time.Sleep(time.Millisecond * 10)
		}

		if runErr != nil {
			serviceutil.Fatal("extraction failed", runErr)
		}
	},
}
