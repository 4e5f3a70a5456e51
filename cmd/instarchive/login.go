package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"instarchive/pkg/auth"
	"instarchive/pkg/config"
	"instarchive/pkg/logger"
)

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store the Instagram session for the archive username",
	Long: `Store the session cookies of the archive username securely, in the system
keychain when available and otherwise in an encrypted file.

You will be prompted for:
  - Session ID (from the sessionid cookie)
  - CSRF Token (from the csrftoken cookie)
  - User Agent (optional, press Enter for the default)

Running login again refreshes a stored session.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

// logoutCmd represents the logout command
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored session of the archive username",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	e, err := setup(nil)
	if err != nil {
		return err
	}

	username, err := e.archive.Username()
	if err != nil {
		return err
	}
	if username == "" {
		e.out.Warning("No login is required for anonymous use.")
		return nil
	}

	manager, err := newCredentialManager(e.cfg.Instagram, e.log)
	if err != nil {
		return err
	}

	auth.WriteCookieGuide(os.Stdout)
	e.out.Info("Username", username)

	reader := bufio.NewReader(os.Stdin)

	fmt.Print("sessionid cookie value: ")
	sessionID, err := readSecret(reader)
	if err != nil {
		return fmt.Errorf("reading session id: %w", err)
	}

	fmt.Print("csrftoken cookie value: ")
	csrfToken, err := readSecret(reader)
	if err != nil {
		return fmt.Errorf("reading csrf token: %w", err)
	}

	fmt.Print("User Agent (press Enter to use default): ")
	userAgent, err := readLine(reader)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading user agent: %w", err)
	}

	creds := &auth.Credentials{
		Username:     username,
		SessionID:    sessionID,
		CSRFToken:    csrfToken,
		UserAgent:    userAgent,
		LastModified: time.Now(),
	}
	if err := manager.Store(creds); err != nil {
		return err
	}

	masked := creds.Masked()
	e.out.Info("Session ID", masked.SessionID)
	e.out.Info("CSRF Token", masked.CSRFToken)
	e.out.Success("Session stored for %s", username)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	e, err := setup(nil)
	if err != nil {
		return err
	}

	username, err := e.archive.Username()
	if err != nil {
		return err
	}
	if username == "" {
		e.out.Warning("No login is required for anonymous use.")
		return nil
	}

	manager, err := newCredentialManager(e.cfg.Instagram, e.log)
	if err != nil {
		return err
	}
	if err := manager.Delete(username); err != nil {
		return err
	}

	e.out.Success("Session removed for %s", username)
	return nil
}

// newCredentialManager opens the session store chain under the user
// config directory
func newCredentialManager(cfg config.InstagramConfig, log logger.Logger) (*auth.Manager, error) {
	dir, err := auth.DefaultConfigDir()
	if err != nil {
		return nil, err
	}
	return auth.NewManager(dir, cfg, log)
}

// readSecret reads a value from stdin without echoing when stdin is a
// terminal
func readSecret(reader *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(secret)), nil
	}
	return readLine(reader)
}

func readLine(reader *bufio.Reader) (string, error) {
	line, err := reader.ReadString('\n')
	if errors.Is(err, io.EOF) && line != "" {
		err = nil
	}
	return strings.TrimSpace(line), err
}
