package auth

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/umirovdev/maktab/core"
	"github.com/umirovdev/maktab/core/user"
)

var (
	ErrInvalidToken = errors.New("invalid token")

	nowFunc = time.Now // mockable
)

// AccessClaims are the authorization claims carried by an access token.
// Validity is purely cryptographic + expiry; access tokens are never
// checked against a revocation list.
type AccessClaims struct {
	jwt.StandardClaims
	Role     user.Role `json:"role"`
	Username string    `json:"username"`
}

// RefreshClaims carry only the owning user id; everything else about a
// refresh token lives server-side.
type RefreshClaims struct {
	jwt.StandardClaims
}

// Issuer mints and verifies the paired access and refresh tokens.
// The two token kinds are signed with distinct secrets so one can never
// be presented in place of the other.
type Issuer struct {
	appName         string
	accessSecret    []byte
	refreshSecret   []byte
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
}

func NewIssuer(conf *core.Config) *Issuer {
	return &Issuer{
		appName:         conf.AppName,
		accessSecret:    []byte(conf.Auth.AccessSecret),
		refreshSecret:   []byte(conf.Auth.RefreshSecret),
		accessTokenTTL:  conf.Auth.AccessTokenTTL,
		refreshTokenTTL: conf.Auth.RefreshTokenTTL,
	}
}

func (iss *Issuer) RefreshTokenTTL() time.Duration { return iss.refreshTokenTTL }

// IssueAccess signs a short-lived access token carrying the user's
// identity and role.
func (iss *Issuer) IssueAccess(usr user.User) (string, error) {
	now := nowFunc()
	claims := &AccessClaims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    iss.appName,
			Subject:   usr.ID,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(iss.accessTokenTTL).Unix(),
		},
		Role:     usr.Role,
		Username: usr.Username,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(iss.accessSecret)
	return ss, errors.Wrap(err, "signing access token")
}

// IssueRefresh signs a refresh token for the given user id.
// The caller is responsible for recording it server-side.
// The jti makes every issued token unique; without it two tokens minted
// for the same user within a second would serialize identically and
// defeat single-use rotation.
func (iss *Issuer) IssueRefresh(userID string) (string, error) {
	now := nowFunc()
	claims := &RefreshClaims{
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.New().String(),
			Issuer:    iss.appName,
			Subject:   userID,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(iss.refreshTokenTTL).Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(iss.refreshSecret)
	return ss, errors.Wrap(err, "signing refresh token")
}

// VerifyAccess checks the signature and expiry of an access token.
// Any failure is reported as ErrInvalidToken; callers must treat it as
// "unauthenticated", not as a server error.
func (iss *Issuer) VerifyAccess(tokenStr string) (*AccessClaims, error) {
	claims := new(AccessClaims)
	if err := iss.verify(tokenStr, iss.accessSecret, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyRefresh checks the signature and expiry of a refresh token.
func (iss *Issuer) VerifyRefresh(tokenStr string) (*RefreshClaims, error) {
	claims := new(RefreshClaims)
	if err := iss.verify(tokenStr, iss.refreshSecret, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (iss *Issuer) verify(tokenStr string, secret []byte, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	return nil
}
