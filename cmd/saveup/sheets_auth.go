package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"saveup/internal/log"
	"saveup/internal/sheets/google"
)

var flagRedirectPort string

var sheetsAuthCmd = &cobra.Command{
	Use:   "sheets-auth",
	Short: "Authorize Google Sheets export with your Google account",
	Long: "Run the OAuth consent flow for the client in GOOGLE_OAUTH_CLIENT_FILE and save the token to GOOGLE_OAUTH_TOKEN_FILE. " +
		"Add http://localhost:<port>/callback to the client's authorized redirect URIs first.",
	RunE: runSheetsAuth,
}

func init() {
	sheetsAuthCmd.Flags().StringVar(&flagRedirectPort, "redirect-port", "8085", "Local port for the OAuth callback")
	rootCmd.AddCommand(sheetsAuthCmd)
}

func runSheetsAuth(_ *cobra.Command, _ []string) error {
	oc, err := google.OAuthConfig(cfg.GoogleOAuthClientFile)
	if err != nil {
		return err
	}
	oc.RedirectURL = "http://localhost:" + flagRedirectPort + "/callback"
	state := uuid.NewString()

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("error") != "":
			http.Error(w, "OAuth error: "+q.Get("error"), http.StatusBadRequest)
			notify(errCh, fmt.Errorf("authorization denied: %s", q.Get("error")))
		case q.Get("state") != state:
			http.Error(w, "state mismatch", http.StatusBadRequest)
		default:
			fmt.Fprintln(w, "You may close this window and return to the terminal.")
			notify(codeCh, q.Get("code"))
		}
	})
	srv := &http.Server{Addr: ":" + flagRedirectPort, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			notify(errCh, err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	fmt.Printf("\n  Open this URL to authorize:\n  %s\n\n", oc.AuthCodeURL(state, oauth2.AccessTypeOffline))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	select {
	case code := <-codeCh:
		tok, err := oc.Exchange(ctx, code)
		if err != nil {
			return fmt.Errorf("token exchange: %w", err)
		}
		if err := google.SaveToken(cfg.GoogleOAuthTokenFile, tok); err != nil {
			return err
		}
		logger.Debug("OAuth token saved", log.FieldPath, cfg.GoogleOAuthTokenFile)
		fmt.Printf("  Saved token to %s\n\n", cfg.GoogleOAuthTokenFile)
		return nil
	case err := <-errCh:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return errors.New("authorization timed out")
		}
		return errors.New("interrupted")
	}
}

// notify sends v unless a value is already waiting.
func notify[T any](ch chan<- T, v T) {
	select {
	case ch <- v:
	default:
	}
}
