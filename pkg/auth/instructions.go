package auth

import (
	"fmt"
	"io"
	"strings"
)

// WriteCookieGuide writes instructions for copying the session cookies out
// of a logged-in browser
func WriteCookieGuide(w io.Writer) {
	rule := strings.Repeat("=", 72)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "INSTAGRAM SESSION COOKIES")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Collection runs use the session of the archiving account. To copy it:")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  1. Log in at https://www.instagram.com as the archiving account")
	fmt.Fprintln(w, "  2. Open the developer tools (F12, or Cmd+Option+I on a Mac)")
	fmt.Fprintln(w, "  3. Application tab (Chrome) or Storage tab (Firefox) > Cookies >")
	fmt.Fprintln(w, "     https://www.instagram.com")
	fmt.Fprintln(w, "  4. Copy the values of 'sessionid' and 'csrftoken'")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Copy the whole value without quotes or semicolons. The cookies expire;")
	fmt.Fprintln(w, "run login again when a collection run reports an authentication error.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "These cookies give full access to the account. They are kept in the")
	fmt.Fprintln(w, "system keyring, or an encrypted file when no keyring is available.")
	fmt.Fprintln(w, rule)
}
