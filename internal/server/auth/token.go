// Package auth issues and verifies bearer tokens and hashes passwords.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/berboapp/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the token payload. Authorities is present only on access tokens;
// after parsing it is nil when the claim was absent.
type Claims struct {
	jwt.RegisteredClaims
	Authorities []string `json:"authorities"`
}

// CodecConfig configures a Codec. VerifyKeys holds retired keys, by kid, that
// are still accepted for verification; the signing key is always accepted.
type CodecConfig struct {
	SigningKey   []byte
	SigningKeyID string
	VerifyKeys   map[string][]byte
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	Issuer       string
	Audience     string
	Now          func() time.Time
}

// Codec creates and verifies HS512 tokens. It is safe for concurrent use.
type Codec struct {
	signingKey []byte
	kid        string
	keys       map[string][]byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	audience   string
	now        func() time.Time
	parser     *jwt.Parser
}

var ErrMissingSigningKey = errors.New("signing key is required")

func NewCodec(cfg CodecConfig) (*Codec, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, ErrMissingSigningKey
	}
	if cfg.Issuer == "" {
		cfg.Issuer = common.TokenIssuer
	}
	if cfg.Audience == "" {
		cfg.Audience = common.TokenAudience
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	keys := make(map[string][]byte, len(cfg.VerifyKeys)+1)
	for kid, k := range cfg.VerifyKeys {
		keys[kid] = k
	}
	keys[cfg.SigningKeyID] = cfg.SigningKey

	c := &Codec{
		signingKey: cfg.SigningKey,
		kid:        cfg.SigningKeyID,
		keys:       keys,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		now:        cfg.Now,
	}
	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithAudience(cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(cfg.Now),
	)
	return c, nil
}

// CreateAccessToken returns a signed token for subjectID carrying authorities.
func (c *Codec) CreateAccessToken(subjectID int64, authorities []string) (string, error) {
	if authorities == nil {
		authorities = []string{}
	}
	registered := c.registered(subjectID, c.accessTTL)
	return c.sign(Claims{RegisteredClaims: registered, Authorities: authorities})
}

// CreateRefreshToken returns a signed token for subjectID without authorities.
func (c *Codec) CreateRefreshToken(subjectID int64) (string, error) {
	return c.sign(c.registered(subjectID, c.refreshTTL))
}

func (c *Codec) registered(subjectID int64, ttl time.Duration) jwt.RegisteredClaims {
	now := c.now()
	return jwt.RegisteredClaims{
		Issuer:    c.issuer,
		Audience:  jwt.ClaimStrings{c.audience},
		Subject:   strconv.FormatInt(subjectID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (c *Codec) sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	token.Header["kid"] = c.kid

	signed, err := token.SignedString(c.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerifySubject checks signature, issuer, audience and expiry in one pass
// and returns the numeric subject.
func (c *Codec) VerifySubject(tokenString string) (int64, error) {
	claims, err := c.parse(tokenString)
	if err != nil {
		return 0, err
	}
	return subjectID(claims)
}

// Verify is VerifySubject plus the authorities claim, which must be present.
func (c *Codec) Verify(tokenString string) (Principal, error) {
	claims, err := c.parse(tokenString)
	if err != nil {
		return Principal{}, err
	}
	id, err := subjectID(claims)
	if err != nil {
		return Principal{}, err
	}
	if claims.Authorities == nil {
		return Principal{}, fmt.Errorf("%w: missing %s", common.ErrTokenInvalidClaim, common.AuthoritiesKey)
	}
	return Principal{ID: id, Authorities: claims.Authorities}, nil
}

// VerifyRefresh is VerifySubject for refresh tokens only. A token carrying
// the authorities claim is an access token and is rejected.
func (c *Codec) VerifyRefresh(tokenString string) (int64, error) {
	claims, err := c.parse(tokenString)
	if err != nil {
		return 0, err
	}
	if claims.Authorities != nil {
		return 0, fmt.Errorf("%w: unexpected %s", common.ErrTokenInvalidClaim, common.AuthoritiesKey)
	}
	return subjectID(claims)
}

// Authorities returns the authorities claim of a fully verified token.
func (c *Codec) Authorities(tokenString string) ([]string, error) {
	p, err := c.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	return p.Authorities, nil
}

// IsTokenValid reports whether the token verifies completely and belongs to
// expectedSubjectID. A zero id is never valid.
func (c *Codec) IsTokenValid(tokenString string, expectedSubjectID int64) bool {
	if expectedSubjectID == 0 {
		return false
	}
	id, err := c.VerifySubject(tokenString)
	return err == nil && id == expectedSubjectID
}

func (c *Codec) parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := c.parser.ParseWithClaims(tokenString, claims, c.keyFunc)
	if err != nil {
		return nil, classify(err)
	}
	return claims, nil
}

func (c *Codec) keyFunc(t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)
	key, ok := c.keys[kid]
	if !ok {
		return nil, jwt.ErrTokenSignatureInvalid
	}
	return key, nil
}

// classify maps jwt parser errors onto the token error taxonomy. Expiry is
// reported only for tokens whose signature checked out, since the parser
// verifies the signature before validating claims. Input that does not
// decode as a JWT counts as a bad signature; claim errors cover issuer,
// audience and required claims.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return common.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", common.ErrTokenInvalidSignature, err)
	default:
		return fmt.Errorf("%w: %v", common.ErrTokenInvalidClaim, err)
	}
}

func subjectID(claims *Claims) (int64, error) {
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: subject %q", common.ErrTokenInvalidClaim, claims.Subject)
	}
	return id, nil
}
