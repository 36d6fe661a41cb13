package ahahttp

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf16"

	"golang.org/x/crypto/pbkdf2"

	"github.com/hausnet/fritzcore/internal/fritzerr"
)

const (
	loginPath = "/login_sid.lua?version=2"

	// pbkdf2Indicator marks the vendor-recommended challenge format
	// "2$iter1$salt1$iter2$salt2"; anything else is the legacy md5 scheme.
	pbkdf2Indicator = "2$"

	// invalidSID is the sentinel the router returns when a login attempt
	// failed or a session has expired.
	invalidSID = "0000000000000000"
)

// sessionInfo maps the relevant parts of the login endpoint response.
type sessionInfo struct {
	SID       string `xml:"SID"`
	Challenge string `xml:"Challenge"`
	BlockTime int    `xml:"BlockTime"`
}

// login performs the challenge-response handshake and returns a fresh
// session id.
func (c *Client) login(ctx context.Context) (string, error) {
	info, err := c.fetchSessionInfo(ctx)
	if err != nil {
		return "", err
	}
	if info.BlockTime > 0 {
		return "", fritzerr.New(fritzerr.KindAuthorization,
			"login blocked for %d seconds after failed attempts", info.BlockTime)
	}

	var response string
	if strings.HasPrefix(info.Challenge, pbkdf2Indicator) {
		response, err = pbkdf2Response(info.Challenge, c.password)
		if err != nil {
			return "", err
		}
	} else {
		response = md5Response(info.Challenge, c.password)
	}

	sid, err := c.requestSID(ctx, response)
	if err != nil {
		return "", err
	}
	if sid == "" || sid == invalidSID {
		return "", fritzerr.New(fritzerr.KindAuthorization,
			"login rejected for user %q", c.username)
	}
	return sid, nil
}

func (c *Client) fetchSessionInfo(ctx context.Context) (*sessionInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.origin+loginPath, nil)
	if err != nil {
		return nil, fritzerr.Wrap(fritzerr.KindHTTPInterface, err, "building login request")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fritzerr.Wrap(fritzerr.KindConnectivity, err, "requesting login challenge")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fritzerr.Wrap(fritzerr.KindConnectivity, err, "reading login challenge")
	}
	info := &sessionInfo{}
	if err := xml.Unmarshal(body, info); err != nil {
		return nil, fritzerr.Wrap(fritzerr.KindHTTPInterface, err, "parsing login challenge")
	}
	return info, nil
}

func (c *Client) requestSID(ctx context.Context, response string) (string, error) {
	form := url.Values{
		"username": {c.username},
		"response": {response},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.origin+loginPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fritzerr.Wrap(fritzerr.KindHTTPInterface, err, "building login request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fritzerr.Wrap(fritzerr.KindConnectivity, err, "submitting login response")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fritzerr.Wrap(fritzerr.KindConnectivity, err, "reading login result")
	}
	info := &sessionInfo{}
	if err := xml.Unmarshal(body, info); err != nil {
		return "", fritzerr.Wrap(fritzerr.KindHTTPInterface, err, "parsing login result")
	}
	return info.SID, nil
}

// pbkdf2Response computes the two-stage hash for a "2$..." challenge.
// The first stage over the password is static per salt and the second
// binds it to the dynamic challenge salt.
func pbkdf2Response(challenge, password string) (string, error) {
	parts := strings.Split(challenge, "$")
	if len(parts) != 5 {
		return "", fritzerr.New(fritzerr.KindHTTPInterface,
			"malformed pbkdf2 challenge %q", challenge)
	}
	iter1, err1 := strconv.Atoi(parts[1])
	iter2, err2 := strconv.Atoi(parts[3])
	salt1, err3 := hex.DecodeString(parts[2])
	salt2, err4 := hex.DecodeString(parts[4])
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return "", fritzerr.New(fritzerr.KindHTTPInterface,
			"malformed pbkdf2 challenge %q", challenge)
	}

	static := pbkdf2.Key([]byte(password), salt1, iter1, sha256.Size, sha256.New)
	dynamic := pbkdf2.Key(static, salt2, iter2, sha256.Size, sha256.New)
	return parts[4] + "$" + hex.EncodeToString(dynamic), nil
}

// md5Response computes the legacy hash: md5 over the UTF-16-LE bytes of
// "challenge-password".
func md5Response(challenge, password string) string {
	sum := md5.Sum(utf16le(challenge + "-" + password))
	return fmt.Sprintf("%s-%s", challenge, hex.EncodeToString(sum[:]))
}

func utf16le(s string) []byte {
	codes := utf16.Encode([]rune(s))
	out := make([]byte, 0, len(codes)*2)
	for _, c := range codes {
		out = append(out, byte(c), byte(c>>8))
	}
	return out
}
