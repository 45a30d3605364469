package sandbox

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/imrishuroy/go-storefront-checkout/internal/storefront"
)

var ErrUnknownUser = errors.New("unknown user")

// Accounts is the sandbox user directory. Logging in with a new email creates the account.
type Accounts struct {
	mu       sync.RWMutex
	byEmail  map[string]string
	profiles map[string]*storefront.Profile
	tokens   map[string]string
}

func NewAccounts() *Accounts {
	return &Accounts{
		byEmail:  map[string]string{},
		profiles: map[string]*storefront.Profile{},
		tokens:   map[string]string{},
	}
}

// Login issues a new bearer token for email.
func (a *Accounts) Login(email, name string) string {
	email = strings.ToLower(strings.TrimSpace(email))

	a.mu.Lock()
	defer a.mu.Unlock()
	id, ok := a.byEmail[email]
	if !ok {
		id = "u_" + shortID()
		if name == "" {
			name = strings.SplitN(email, "@", 2)[0]
		}
		a.byEmail[email] = id
		a.profiles[id] = &storefront.Profile{ID: id, Name: name, Email: email, Addresses: []storefront.Address{}}
	}
	token := uuid.NewString()
	a.tokens[token] = id
	return token
}

// UserID resolves a bearer token.
func (a *Accounts) UserID(token string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	id, ok := a.tokens[token]
	return id, ok
}

func (a *Accounts) Profile(userID string) (storefront.Profile, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	p, ok := a.profiles[userID]
	if !ok {
		return storefront.Profile{}, ErrUnknownUser
	}
	out := *p
	out.Addresses = append([]storefront.Address{}, p.Addresses...)
	return out, nil
}

// AddAddress appends addr. The first address, or one flagged default, becomes the default.
func (a *Accounts) AddAddress(userID string, addr storefront.Address) (storefront.Address, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.profiles[userID]
	if !ok {
		return storefront.Address{}, ErrUnknownUser
	}
	addr.ID = "addr_" + shortID()
	if len(p.Addresses) == 0 {
		addr.IsDefault = true
	}
	if addr.IsDefault {
		for i := range p.Addresses {
			p.Addresses[i].IsDefault = false
		}
	}
	p.Addresses = append(p.Addresses, addr)
	return addr, nil
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
