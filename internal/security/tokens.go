package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is used by Issue when the caller passes a non-positive ttl.
const DefaultTokenTTL = 15 * time.Minute

var (
	// ErrInvalidToken is returned when a token is malformed or invalid. Every verification
	// failure wraps it, so callers that do not care about the reason test only this one.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned when the exp claim is in the past.
	ErrTokenExpired = fmt.Errorf("%w: expired", ErrInvalidToken)
	// ErrInvalidSignature is returned when the signature does not verify or the algorithm is not accepted.
	ErrInvalidSignature = fmt.Errorf("%w: signature", ErrInvalidToken)
	// ErrTokenMalformed is returned when the token cannot be decoded or required claims are missing.
	ErrTokenMalformed = fmt.Errorf("%w: malformed", ErrInvalidToken)
)

// TokenType distinguishes access tokens from any other token kind signed with the same key.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims is the application claim set carried by a token.
type Claims struct {
	UserID    string
	SessionID string
	Type      TokenType
	// ExpiresAt is filled by Verify; ignored by Issue.
	ExpiresAt time.Time
}

// tokenClaims is the wire form of Claims.
type tokenClaims struct {
	jwt.RegisteredClaims
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	Type      TokenType `json:"type"`
}

// TokenProvider issues and validates JWTs using RS256 or ES256 (private/public key).
type TokenProvider struct {
	privateKey crypto.Signer
	publicKey  crypto.PublicKey
	issuer     string
	audience   string
	now        func() time.Time
	leeway     time.Duration
}

// TokenOption configures a TokenProvider.
type TokenOption func(*TokenProvider)

// WithClock sets the time source used for iat/exp and for expiry checks.
func WithClock(now func() time.Time) TokenOption {
	return func(p *TokenProvider) {
		if now != nil {
			p.now = now
		}
	}
}

// WithLeeway allows exp to be this far in the past when verifying.
func WithLeeway(d time.Duration) TokenOption {
	return func(p *TokenProvider) { p.leeway = d }
}

// NewTokenProvider returns a TokenProvider that signs with the given private key (RS256 or ES256).
// issuer and audience are set on claims and validated on Verify. publicKey may be a
// verification-only key distributed to other nodes.
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, opts ...TokenOption) *TokenProvider {
	p := &TokenProvider{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
		audience:   audience,
		now:        time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Issue signs claims with an absolute expiry of now+ttl (DefaultTokenTTL when ttl <= 0).
// Returns the token and its expiry, truncated to the second precision stored in exp.
func (p *TokenProvider) Issue(claims Claims, ttl time.Duration) (token string, expiresAt time.Time, err error) {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, err
	}
	now := p.now().UTC()
	exp := jwt.NewNumericDate(now.Add(ttl))
	tc := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   claims.UserID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: exp,
		},
		UserID:    claims.UserID,
		SessionID: claims.SessionID,
		Type:      claims.Type,
	}
	token, err = p.sign(tc)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp.Time.UTC(), nil
}

func (p *TokenProvider) sign(claims jwt.Claims) (string, error) {
	method := signingMethod(p.privateKey.Public())
	if method == nil {
		return "", ErrInvalidKey
	}
	t := jwt.NewWithClaims(method, claims)
	return t.SignedString(p.privateKey)
}

func signingMethod(pub crypto.PublicKey) jwt.SigningMethod {
	switch pub.(type) {
	case *rsa.PublicKey:
		return jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		return jwt.SigningMethodES256
	default:
		return nil
	}
}

// Verify parses and validates tokenString (signature, exp, iss, aud) and returns its claims.
// Errors wrap ErrInvalidToken and one of ErrTokenExpired, ErrInvalidSignature or ErrTokenMalformed
// when the reason is known. The reason is for logs only.
func (p *TokenProvider) Verify(tokenString string) (*Claims, error) {
	method := signingMethod(p.publicKey)
	if method == nil {
		return nil, ErrInvalidKey
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
		jwt.WithLeeway(p.leeway),
	)
	var tc tokenClaims
	token, err := parser.ParseWithClaims(tokenString, &tc, func(*jwt.Token) (any, error) {
		return p.publicKey, nil
	})
	if err != nil {
		return nil, classify(err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if tc.UserID == "" || tc.SessionID == "" || tc.Type == "" {
		return nil, ErrTokenMalformed
	}
	return &Claims{
		UserID:    tc.UserID,
		SessionID: tc.SessionID,
		Type:      tc.Type,
		ExpiresAt: tc.ExpiresAt.Time.UTC(),
	}, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenMalformed), errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return ErrTokenMalformed
	default:
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
