package app

import (
	"fmt"
	"time"

	"github.com/form3tech-oss/jwt-go"
)

// InviteService signs and checks group join tickets.
type InviteService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

type inviteClaims struct {
	SessionID string `json:"sid"`
	jwt.StandardClaims
}

// InviteTicket is a verified invite.
type InviteTicket struct {
	SessionID string
	InviterID string
	ExpiresAt time.Time
}

func NewInviteService(secret, issuer string, ttl time.Duration) *InviteService {
	return &InviteService{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue returns a ticket letting its holder join sessionID.
func (s *InviteService) Issue(sessionID, inviterID string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("invite service is nil")
	}
	if len(s.secret) == 0 {
		return "", fmt.Errorf("invite secret is not configured")
	}
	if sessionID == "" || inviterID == "" {
		return "", fmt.Errorf("session and inviter are required")
	}

	now := s.now()
	claims := inviteClaims{
		SessionID: sessionID,
		StandardClaims: jwt.StandardClaims{
			Issuer:    s.issuer,
			Subject:   inviterID,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(s.ttl).Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify checks the signature, issuer and expiry of ticket.
func (s *InviteService) Verify(ticket string) (InviteTicket, error) {
	if s == nil || len(s.secret) == 0 {
		return InviteTicket{}, fmt.Errorf("invite service is not configured")
	}

	claims := &inviteClaims{}
	token, err := jwt.ParseWithClaims(ticket, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return InviteTicket{}, err
	}
	if !token.Valid {
		return InviteTicket{}, fmt.Errorf("invite ticket is not valid")
	}
	if claims.ExpiresAt <= s.now().Unix() {
		return InviteTicket{}, fmt.Errorf("invite ticket expired")
	}
	if s.issuer != "" && !claims.VerifyIssuer(s.issuer, true) {
		return InviteTicket{}, fmt.Errorf("unexpected issuer %q", claims.Issuer)
	}
	if claims.SessionID == "" {
		return InviteTicket{}, fmt.Errorf("invite ticket has no session")
	}

	return InviteTicket{
		SessionID: claims.SessionID,
		InviterID: claims.Subject,
		ExpiresAt: time.Unix(claims.ExpiresAt, 0),
	}, nil
}
