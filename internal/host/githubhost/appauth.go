package githubhost

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"strconv"
	"time"

	"github.com/google/go-github/v74/github"
	"gitlab.com/tozd/go/errors"
)

// appJWTLifetime is kept short and within GitHub's 10-minute ceiling for
// App authentication JWTs.
const appJWTLifetime = 9 * time.Minute

// AppAuth mints installation tokens for a GitHub App, signing the App
// JWT itself (RS256) rather than pulling in a JWT library: the pack
// carries no wired dependency for this, and the signing algorithm GitHub
// requires is a few dozen lines of stdlib crypto (see DESIGN.md).
type AppAuth struct {
	AppID      int64
	PrivateKey *rsa.PrivateKey
	APIBaseURL string // passed to github.NewClient's WithEnterpriseURLs; empty for github.com
}

// NewAppAuth parses a PEM-encoded PKCS#1 or PKCS#8 RSA private key as
// downloaded from the GitHub App settings page.
func NewAppAuth(appID int64, privateKeyPEM []byte) (*AppAuth, errors.E) {
	block, _ := pem.Decode(privateKeyPEM)
	if block == nil {
		return nil, errors.New("no PEM block found in GitHub App private key")
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		pkcs8, err2 := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err2 != nil {
			return nil, errors.Wrap(err, "cannot parse GitHub App private key")
		}
		rsaKey, ok := pkcs8.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("GitHub App private key is not RSA")
		}
		key = rsaKey
	}
	return &AppAuth{AppID: appID, PrivateKey: key}, nil
}

// jwt mints a fresh, short-lived App JWT (RFC 7519, RS256).
func (a *AppAuth) jwt() (string, errors.E) {
	now := time.Now()
	header := map[string]string{"alg": "RS256", "typ": "JWT"}
	claims := map[string]interface{}{
		"iat": now.Add(-30 * time.Second).Unix(), // allow for clock drift
		"exp": now.Add(appJWTLifetime).Unix(),
		"iss": strconv.FormatInt(a.AppID, 10),
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", errors.Wrap(err, "cannot encode JWT header")
	}
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return "", errors.Wrap(err, "cannot encode JWT claims")
	}

	signingInput := base64URL(headerJSON) + "." + base64URL(claimsJSON)
	digest := sha256.Sum256([]byte(signingInput))
	signature, err := rsa.SignPKCS1v15(rand.Reader, a.PrivateKey, crypto.SHA256, digest[:])
	if err != nil {
		return "", errors.Wrap(err, "cannot sign App JWT")
	}

	return signingInput + "." + base64URL(signature), nil
}

func base64URL(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// Fetcher returns a TokenCache-compatible TokenFetcher that authenticates
// as the App via a fresh JWT and exchanges it for an installation token
// through the Apps API.
func (a *AppAuth) Fetcher() TokenFetcher {
	return func(ctx context.Context, installationID int64) (string, time.Time, error) {
		token, err := a.jwt()
		if err != nil {
			return "", time.Time{}, err
		}
		client := github.NewClient(nil).WithAuthToken(token)
		if a.APIBaseURL != "" {
			enterprise, errURL := client.WithEnterpriseURLs(a.APIBaseURL, a.APIBaseURL)
			if errURL != nil {
				return "", time.Time{}, errors.Wrap(errURL, "invalid GitHub API base URL")
			}
			client = enterprise
		}
		installToken, _, err := client.Apps.CreateInstallationToken(ctx, installationID, nil)
		if err != nil {
			return "", time.Time{}, errors.Wrap(err, "cannot create installation token")
		}
		return installToken.GetToken(), installToken.GetExpiresAt().Time, nil
	}
}
