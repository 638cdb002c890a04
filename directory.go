package govern

import (
	"strings"
	"sync"

	goerrors "github.com/goliatone/go-errors"
)

// Directory is the single source of truth for identity and account
// existence and cross-reference. It keeps three explicit indices so the
// identity and account id namespaces can never collide. All mutation
// goes through the Simulator; the exported surface is read-only.
//
// Accounts live only inside their owning identity's Accounts slice, the
// account index maps account id to owner id. Status can therefore never
// diverge between "the account" and "the identity's embedded copy".
type Directory struct {
	mu           sync.RWMutex
	byIdentityID map[string]*Identity
	byEmail      map[string]string
	byAccountID  map[string]string
	order        []string
}

// NewDirectory returns an empty in-memory directory.
func NewDirectory() *Directory {
	return &Directory{
		byIdentityID: make(map[string]*Identity),
		byEmail:      make(map[string]string),
		byAccountID:  make(map[string]string),
	}
}

// FindIdentity looks an identity up by id. When the exact index misses it
// falls back to resolving the id as an originating account id, matching
// the provider's overlapping id behavior without sharing a key space.
func (d *Directory) FindIdentity(id string) (*Identity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if identity, ok := d.byIdentityID[id]; ok {
		return identity.Clone(), nil
	}

	if ownerID, ok := d.byAccountID[id]; ok {
		if identity, ok := d.byIdentityID[ownerID]; ok {
			return identity.Clone(), nil
		}
	}

	return nil, ErrIdentityNotFound.WithMetadata(map[string]any{"identity_id": id})
}

// FindIdentityByEmail resolves the identity holding the given email.
// Emails are unique per created identity, so at most one record matches.
func (d *Directory) FindIdentityByEmail(email string) (*Identity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if id, ok := d.byEmail[normalizeEmail(email)]; ok {
		if identity, ok := d.byIdentityID[id]; ok {
			return identity.Clone(), nil
		}
	}

	return nil, ErrIdentityNotFound.WithMetadata(map[string]any{"email": email})
}

// FindIdentityByAccountID resolves the identity owning the given account.
func (d *Directory) FindIdentityByAccountID(accountID string) (*Identity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if ownerID, ok := d.byAccountID[accountID]; ok {
		if identity, ok := d.byIdentityID[ownerID]; ok {
			return identity.Clone(), nil
		}
	}

	return nil, ErrIdentityNotFound.WithMetadata(map[string]any{"account_id": accountID})
}

// Identities returns a snapshot of every record in creation order.
func (d *Directory) Identities() []*Identity {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*Identity, 0, len(d.order))
	for _, id := range d.order {
		if identity, ok := d.byIdentityID[id]; ok {
			out = append(out, identity.Clone())
		}
	}
	return out
}

// Len reports how many identities the directory holds.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byIdentityID)
}

// add registers a new identity and indexes its email and accounts.
// Emails and account ids are unique by construction, a collision means
// the caller is violating the provisioning contract.
func (d *Directory) add(identity *Identity) error {
	if identity == nil || identity.ID == "" {
		return goerrors.New("identity requires an id", goerrors.CategoryBadInput)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.byIdentityID[identity.ID]; exists {
		return goerrors.New("identity id already registered", goerrors.CategoryConflict).
			WithMetadata(map[string]any{"identity_id": identity.ID})
	}

	if email := normalizeEmail(identity.Email); email != "" {
		if _, exists := d.byEmail[email]; exists {
			return goerrors.New("identity email already registered", goerrors.CategoryConflict).
				WithMetadata(map[string]any{"email": identity.Email})
		}
		d.byEmail[email] = identity.ID
	}

	for _, account := range identity.Accounts {
		d.byAccountID[account.ID] = identity.ID
	}

	identity.EnsureLifecycleState()
	d.byIdentityID[identity.ID] = identity
	d.order = append(d.order, identity.ID)

	return nil
}

// update applies fn to the live record under the write lock. fn runs with
// exclusive access, keeping multi-field mutations (status cascades and
// the like) atomic with respect to readers.
func (d *Directory) update(identityID string, fn func(*Identity) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	identity, ok := d.byIdentityID[identityID]
	if !ok {
		return ErrIdentityNotFound.WithMetadata(map[string]any{"identity_id": identityID})
	}

	if err := fn(identity); err != nil {
		return err
	}

	// re-index accounts fn may have appended
	for _, account := range identity.Accounts {
		if _, ok := d.byAccountID[account.ID]; !ok {
			d.byAccountID[account.ID] = identity.ID
		}
	}

	return nil
}

// accountOwner resolves the owning identity id for an account id.
func (d *Directory) accountOwner(accountID string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ownerID, ok := d.byAccountID[accountID]
	return ownerID, ok
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
