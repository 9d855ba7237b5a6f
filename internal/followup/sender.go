package followup

import (
	"context"
	"errors"
	"strings"

	"leadfollowup_backend/internal/leads"

	"github.com/google/uuid"
)

// Identity is the outbound sender for one follow-up.
type Identity struct {
	Name        string
	Address     string
	ReplyTo     string
	PhoneNumber string
}

// SenderDefaults is the platform identity used when a client has no usable owner.
type SenderDefaults struct {
	Name        string
	Address     string
	PhoneNumber string
	// FreemailFallback sends from the platform address when the owner uses a
	// consumer mail domain, keeping the owner as Reply-To.
	FreemailFallback bool
}

// OwnerReader looks up client owners.
type OwnerReader interface {
	GetOwner(ctx context.Context, userID uuid.UUID) (leads.Owner, error)
}

// SenderResolver picks the From identity for a client's follow-ups.
type SenderResolver struct {
	owners   OwnerReader
	defaults SenderDefaults
}

func NewSenderResolver(owners OwnerReader, defaults SenderDefaults) *SenderResolver {
	return &SenderResolver{owners: owners, defaults: defaults}
}

var freemailDomains = map[string]bool{
	"gmail.com":      true,
	"googlemail.com": true,
	"yahoo.com":      true,
	"ymail.com":      true,
	"outlook.com":    true,
	"hotmail.com":    true,
	"live.com":       true,
	"msn.com":        true,
	"icloud.com":     true,
	"me.com":         true,
	"aol.com":        true,
	"proton.me":      true,
	"protonmail.com": true,
	"gmx.com":        true,
}

// ResolveSender returns the owner's identity when the client has an owner
// with an address, and the platform default otherwise. It never checks
// whether the address can actually send.
func (r *SenderResolver) ResolveSender(ctx context.Context, client leads.Client) (Identity, error) {
	identity := Identity{
		Name:        firstNonEmpty(client.Name, r.defaults.Name),
		Address:     r.defaults.Address,
		PhoneNumber: r.defaults.PhoneNumber,
	}
	if client.OwnerUserID == nil || r.owners == nil {
		return identity, nil
	}

	owner, err := r.owners.GetOwner(ctx, *client.OwnerUserID)
	if errors.Is(err, leads.ErrNotFound) {
		return identity, nil
	}
	if err != nil {
		return Identity{}, err
	}

	address := strings.TrimSpace(owner.Email)
	if address == "" {
		return identity, nil
	}
	identity.Name = firstNonEmpty(owner.Name, client.Name, r.defaults.Name)

	if r.defaults.FreemailFallback && isFreemail(address) && r.defaults.Address != "" {
		identity.ReplyTo = address
		return identity, nil
	}
	identity.Address = address
	return identity, nil
}

func isFreemail(address string) bool {
	at := strings.LastIndex(address, "@")
	if at < 0 {
		return false
	}
	return freemailDomains[strings.ToLower(address[at+1:])]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
