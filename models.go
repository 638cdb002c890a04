package govern

import "time"

// LifecycleState is an identity lifecycle status
type LifecycleState = string

const (
	// LifecycleActive identity is in good standing
	LifecycleActive LifecycleState = "active"
	// LifecycleSuspended identity is on hold, accounts stay provisioned
	LifecycleSuspended LifecycleState = "suspended"
	// LifecycleTerminated identity left, terminal state
	LifecycleTerminated LifecycleState = "terminated"
)

// AccountStatus is the provisioning status of a source account
type AccountStatus = string

const (
	// AccountEnabled account can be used to log in on the source
	AccountEnabled AccountStatus = "enabled"
	// AccountDisabled account exists but logins are rejected
	AccountDisabled AccountStatus = "disabled"
)

// Access item types as reported by the provider
const (
	AccessTypeProfile     = "access profile"
	AccessTypeRole        = "role"
	AccessTypeEntitlement = "entitlement"
)

// ManagerRef is a weak reference to another identity, it carries no
// ownership and is not kept in sync with the referenced record.
type ManagerRef struct {
	ID          string `json:"id,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// AccessItem references a grantable capability (profile, role, or
// entitlement). The sandbox treats these as read-only catalog entries.
type AccessItem struct {
	ID          string `json:"id,omitempty"`
	Type        string `json:"type,omitempty"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Source      string `json:"source,omitempty"`
}

// Account is a login/credential on one source system. It is owned by
// exactly one identity at creation time and ownership never transfers.
type Account struct {
	ID             string        `json:"id,omitempty"`
	NativeIdentity string        `json:"native_identity,omitempty"`
	SourceID       string        `json:"source_id,omitempty"`
	SourceName     string        `json:"source_name,omitempty"`
	Status         AccountStatus `json:"status,omitempty"`
	PasswordHash   string        `json:"-"`
	CreatedAt      *time.Time    `json:"created_at,omitempty"`
}

// Identity is a governed person record
type Identity struct {
	ID             string            `json:"id,omitempty"`
	DisplayName    string            `json:"display_name,omitempty"`
	Email          string            `json:"email,omitempty"`
	Attributes     map[string]string `json:"attributes,omitempty"`
	LifecycleState LifecycleState    `json:"lifecycle_state,omitempty"`
	Manager        *ManagerRef       `json:"manager,omitempty"`
	Accounts       []Account         `json:"accounts,omitempty"`
	AccessItems    []AccessItem      `json:"access_items,omitempty"`
	CreatedAt      *time.Time        `json:"created_at,omitempty"`
	UpdatedAt      *time.Time        `json:"updated_at,omitempty"`
}

// Clone returns a deep copy; directory lookups hand these out so callers
// cannot mutate governed state behind the provisioning boundary.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}

	out := *i
	if i.Attributes != nil {
		out.Attributes = make(map[string]string, len(i.Attributes))
		for k, v := range i.Attributes {
			out.Attributes[k] = v
		}
	}
	if i.Manager != nil {
		manager := *i.Manager
		out.Manager = &manager
	}
	if i.Accounts != nil {
		out.Accounts = append([]Account(nil), i.Accounts...)
	}
	if i.AccessItems != nil {
		out.AccessItems = append([]AccessItem(nil), i.AccessItems...)
	}
	return &out
}

// EnsureLifecycleState defaults a blank state to active.
func (i *Identity) EnsureLifecycleState() {
	if i.LifecycleState == "" {
		i.LifecycleState = LifecycleActive
	}
}

// IsTerminated reports whether the identity reached the terminal lifecycle state.
func (i *Identity) IsTerminated() bool {
	return i != nil && i.LifecycleState == LifecycleTerminated
}

// AccountByID returns a pointer into the identity's embedded accounts
// list, or nil if the identity holds no account with that id.
func (i *Identity) AccountByID(accountID string) *Account {
	if i == nil {
		return nil
	}
	for idx := range i.Accounts {
		if i.Accounts[idx].ID == accountID {
			return &i.Accounts[idx]
		}
	}
	return nil
}

// SetAttribute will append information to the attribute map
func (i *Identity) SetAttribute(key, val string) *Identity {
	if i.Attributes == nil {
		i.Attributes = make(map[string]string)
	}
	i.Attributes[key] = val
	return i
}

// DeriveDisplayName resolves a display name the way the provider does:
// prefer an explicit displayName attribute, fall back to givenName plus
// sn (or lastName), then to the mail attribute.
func DeriveDisplayName(attributes map[string]string) string {
	if v := attributes["displayName"]; v != "" {
		return v
	}

	last := attributes["sn"]
	if last == "" {
		last = attributes["lastName"]
	}

	given := attributes["givenName"]
	switch {
	case given != "" && last != "":
		return given + " " + last
	case given != "":
		return given
	case last != "":
		return last
	}

	return attributes["mail"]
}
