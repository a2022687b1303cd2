// Package cookies collects browser cookies for the download target and
// renders them as a Netscape cookies.txt attachment.
package cookies

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/browserutils/kooky"
	// Use all browsers for kooky:
	_ "github.com/browserutils/kooky/browser/all"
	"github.com/rs/zerolog"
	"golang.org/x/net/publicsuffix"
)

// ErrNoCookies is returned when no browser holds cookies for the target.
var ErrNoCookies = errors.New("cookies: none found")

const netscapeHeader = "# Netscape HTTP Cookie File\n# This is a generated file! Do not edit.\n\n"

// readBrowserCookies is replaced in tests.
var readBrowserCookies = func(ctx context.Context, domain string) ([]*http.Cookie, error) {
	found, err := kooky.ReadCookies(ctx, kooky.Valid, kooky.DomainHasSuffix(domain))
	return convertToHTTPCookies(found), err
}

// BaseDomain returns the registrable domain of rawURL, e.g. instagram.com
// for https://www.instagram.com/reel/ABC/.
func BaseDomain(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("parse url: no host in %q", rawURL)
	}
	return publicsuffix.EffectiveTLDPlusOne(u.Hostname())
}

// FromBrowser reads valid cookies for the domain of targetURL from every
// browser kooky can find. Browsers that fail to read are skipped as long as
// at least one cookie was found.
func FromBrowser(ctx context.Context, targetURL string, log zerolog.Logger) ([]*http.Cookie, error) {
	domain, err := BaseDomain(targetURL)
	if err != nil {
		return nil, err
	}

	found, err := readBrowserCookies(ctx, domain)
	if len(found) == 0 {
		if err != nil {
			return nil, fmt.Errorf("read browser cookies for %s: %w", domain, err)
		}
		return nil, fmt.Errorf("%w for %s", ErrNoCookies, domain)
	}
	if err != nil {
		log.Debug().Err(err).Str("domain", domain).Msg("some cookie stores could not be read")
	}

	log.Info().Int("count", len(found)).Str("domain", domain).Msg("read browser cookies")
	return found, nil
}

// convertToHTTPCookies converts kooky cookies to http.Cookie format.
func convertToHTTPCookies(kookyCookies []*kooky.Cookie) []*http.Cookie {
	httpCookies := make([]*http.Cookie, 0, len(kookyCookies))
	for _, c := range kookyCookies {
		if c == nil {
			continue
		}
		httpCookies = append(httpCookies, &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		})
	}
	return httpCookies
}

// WriteNetscape writes cookies in the Netscape cookies.txt format.
func WriteNetscape(w io.Writer, cookies []*http.Cookie) error {
	if _, err := io.WriteString(w, netscapeHeader); err != nil {
		return err
	}

	for _, c := range cookies {
		domain := c.Domain
		if domain == "" {
			continue
		}
		if c.HttpOnly {
			domain = "#HttpOnly_" + domain
		}

		includeSubdomains := "FALSE"
		if strings.HasPrefix(c.Domain, ".") {
			includeSubdomains = "TRUE"
		}

		path := c.Path
		if path == "" {
			path = "/"
		}

		secure := "FALSE"
		if c.Secure {
			secure = "TRUE"
		}

		var expires int64
		if !c.Expires.IsZero() {
			expires = c.Expires.Unix()
		}

		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			domain, includeSubdomains, path, secure, expires, c.Name, c.Value); err != nil {
			return err
		}
	}
	return nil
}

// Netscape renders cookies as a cookies.txt document.
func Netscape(cookies []*http.Cookie) []byte {
	var buf bytes.Buffer
	// Writes to a bytes.Buffer cannot fail.
	_ = WriteNetscape(&buf, cookies)
	return buf.Bytes()
}
