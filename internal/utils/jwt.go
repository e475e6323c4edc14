package utils // package utils provides token helpers for customer identity and tickets

import (
    "errors"
    "time"

    "github.com/golang-jwt/jwt/v5"

    "github.com/iliyamo/turf-slot-booking/internal/model"
)

// ErrInvalidToken is returned when a bearer token cannot be verified or
// does not carry a phone claim.
var ErrInvalidToken = errors.New("invalid token")

// AccessToken represents a signed customer JWT along with its expiry.
type AccessToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// CustomerClaims is the claim set issued by the identity provider for an
// authenticated customer.  The subject is the customer's phone number,
// which is the key of every per-venue customer ledger.
type CustomerClaims struct {
    Name string `json:"name,omitempty"`
    jwt.RegisteredClaims
}

// NewCustomerToken builds and signs an HS256 JWT for a customer.  It is
// used by the development tooling and tests; production tokens come from
// the identity provider sharing the same secret.
func NewCustomerToken(secret, phone, name string, ttl time.Duration) (AccessToken, error) {
    now := time.Now().UTC()
    exp := now.Add(ttl)
    claims := CustomerClaims{
        Name: name,
        RegisteredClaims: jwt.RegisteredClaims{
            Subject:   phone,
            IssuedAt:  jwt.NewNumericDate(now),
            ExpiresAt: jwt.NewNumericDate(exp),
        },
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseCustomerToken verifies raw with secret and returns the identity it
// carries.  Only HMAC signatures are accepted.
func ParseCustomerToken(secret, raw string) (model.Identity, error) {
    var claims CustomerClaims
    tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
        // Reject tokens signed with anything other than HMAC.
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, ErrInvalidToken
        }
        return []byte(secret), nil
    })
    if err != nil || !tok.Valid {
        return model.Identity{}, ErrInvalidToken
    }
    if claims.Subject == "" {
        return model.Identity{}, ErrInvalidToken
    }
    return model.Identity{Phone: claims.Subject, Name: claims.Name}, nil
}
