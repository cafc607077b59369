// Package session handles local passcode registration, unlock and the
// inactivity timeout.
//
// A user's credentials are stored under auth_<userId> as a random salt and
// the SHA-256 verifier of the argon2id key derived from the passcode. The
// passcode itself is never stored. Activity is tracked as an epoch-ms stamp
// under last_activity_<userId>.
//
// Each user also owns an X25519 key pair. The public half is stored in the
// clear so others can wrap file keys for the user; the private half is
// sealed with a key derived from the passcode and only held in memory
// between Unlock and Clear.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/saveme/internal/accesslog"
	"github.com/dmitrijs2005/saveme/internal/common"
	"github.com/dmitrijs2005/saveme/internal/cryptox"
	"github.com/dmitrijs2005/saveme/internal/logging"
	"github.com/dmitrijs2005/saveme/internal/models"
	"github.com/dmitrijs2005/saveme/internal/store"
	"github.com/dmitrijs2005/saveme/internal/timex"
)

const (
	DefaultTimeout    = 15 * time.Minute
	MinPasscodeLength = 6
)

var (
	ErrNotRegistered = errors.New("user not registered")
	// ErrLocked is returned when an operation needs the private key of a
	// user whose vault is not unlocked in this process.
	ErrLocked = fmt.Errorf("%w: vault is locked", common.ErrorUnauthorized)
)

type credentials struct {
	Salt     []byte `json:"salt"`
	Verifier []byte `json:"verifier"`

	PublicKey  []byte `json:"publicKey,omitempty"`
	PrivateKey []byte `json:"privateKey,omitempty"` // sealed
	KeyNonce   []byte `json:"keyNonce,omitempty"`
}

type keyPair struct {
	pub, priv [32]byte
}

func authKey(userID string) string     { return "auth_" + userID }
func activityKey(userID string) string { return "last_activity_" + userID }

type Manager struct {
	store   store.Store
	audit   *accesslog.Logger
	logger  logging.Logger
	now     func() time.Time
	timeout time.Duration

	mu   sync.Mutex
	keys map[string]*keyPair
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

func New(s store.Store, audit *accesslog.Logger, logger logging.Logger, opts ...Option) *Manager {
	m := &Manager{store: s, audit: audit, logger: logger, now: time.Now, timeout: DefaultTimeout, keys: map[string]*keyPair{}}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Registered reports whether userID has credentials on this device.
func (m *Manager) Registered(ctx context.Context, userID string) (bool, error) {
	raw, err := m.store.Get(ctx, authKey(userID))
	if err != nil {
		return false, err
	}
	return raw != nil, nil
}

// Setup registers userID with passcode.
func (m *Manager) Setup(ctx context.Context, userID, passcode string) error {
	if userID == "" {
		return fmt.Errorf("%w: empty user id", common.ErrorValidation)
	}
	if len(passcode) < MinPasscodeLength {
		return fmt.Errorf("%w: passcode must be at least %d characters", common.ErrorValidation, MinPasscodeLength)
	}

	ok, err := m.Registered(ctx, userID)
	if err != nil {
		return err
	}
	if ok {
		return common.ErrorAlreadyExists
	}

	salt := common.GenerateRandByteArray(cryptox.SaltSize)
	key := cryptox.DeriveMasterKey([]byte(passcode), salt)
	defer common.WipeByteArray(key)

	c := credentials{Salt: salt, Verifier: cryptox.MakeVerifier(key)}
	kp, err := addKeyPair(&c, key)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(kp.priv[:])

	if err := m.putCredentials(ctx, userID, c); err != nil {
		return err
	}
	m.logger.Info(ctx, "user registered", "user_id", userID)
	return nil
}

// addKeyPair generates a key pair for c and seals its private half with a
// key derived from masterKey.
func addKeyPair(c *credentials, masterKey []byte) (*keyPair, error) {
	pub, priv, err := cryptox.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("generate key pair: %w", err)
	}
	wrap, err := cryptox.WrappingKey(masterKey)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(wrap)

	sealed, nonce, err := cryptox.Seal(priv[:], wrap)
	if err != nil {
		return nil, err
	}
	c.PublicKey, c.PrivateKey, c.KeyNonce = pub[:], sealed, nonce
	return &keyPair{pub: *pub, priv: *priv}, nil
}

// openKeyPair recovers the key pair sealed in c.
func openKeyPair(c credentials, masterKey []byte) (*keyPair, error) {
	wrap, err := cryptox.WrappingKey(masterKey)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(wrap)

	priv, err := cryptox.Open(c.PrivateKey, c.KeyNonce, wrap)
	if err != nil {
		return nil, fmt.Errorf("open private key: %w", err)
	}
	defer common.WipeByteArray(priv)
	if len(priv) != 32 || len(c.PublicKey) != 32 {
		return nil, fmt.Errorf("%w: bad key pair", cryptox.ErrDecrypt)
	}

	kp := &keyPair{}
	copy(kp.pub[:], c.PublicKey)
	copy(kp.priv[:], priv)
	return kp, nil
}

func (m *Manager) credentials(ctx context.Context, userID string) (*credentials, error) {
	raw, err := m.store.Get(ctx, authKey(userID))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, ErrNotRegistered
	}
	var c credentials
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	return &c, nil
}

func (m *Manager) putCredentials(ctx context.Context, userID string, c credentials) error {
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	if err := m.store.Set(ctx, authKey(userID), b); err != nil {
		return fmt.Errorf("store credentials: %w", err)
	}
	return nil
}

// Unlock checks passcode, loads the user's private key into memory and
// starts the activity clock. Credentials written before key pairs existed
// get one here.
func (m *Manager) Unlock(ctx context.Context, userID, passcode string) error {
	c, err := m.credentials(ctx, userID)
	if err != nil {
		return err
	}

	key := cryptox.DeriveMasterKey([]byte(passcode), c.Salt)
	defer common.WipeByteArray(key)

	if !cryptox.VerifierMatches(cryptox.MakeVerifier(key), c.Verifier) {
		m.auditLog(ctx, models.AccessFailedAuth, "Failed passcode attempt", userID)
		return common.ErrorUnauthorized
	}

	var kp *keyPair
	if len(c.PrivateKey) == 0 {
		if kp, err = addKeyPair(c, key); err != nil {
			return err
		}
		if err := m.putCredentials(ctx, userID, *c); err != nil {
			return err
		}
	} else if kp, err = openKeyPair(*c, key); err != nil {
		return err
	}

	if err := m.Touch(ctx, userID); err != nil {
		common.WipeByteArray(kp.priv[:])
		return err
	}
	m.setKeys(userID, kp)
	m.auditLog(ctx, models.AccessLogin, "User logged in", userID)
	return nil
}

// Touch records activity now.
func (m *Manager) Touch(ctx context.Context, userID string) error {
	ms := strconv.FormatInt(timex.Millis(m.now()), 10)
	if err := m.store.Set(ctx, activityKey(userID), []byte(ms)); err != nil {
		return fmt.Errorf("store activity: %w", err)
	}
	return nil
}

// Expired reports whether userID has been idle longer than the timeout.
// A missing or unreadable stamp starts a fresh window. When the session
// expires the stamp is cleared and a session_timeout event is logged.
func (m *Manager) Expired(ctx context.Context, userID string) bool {
	raw, err := m.store.Get(ctx, activityKey(userID))
	if err != nil {
		m.logger.Warn(ctx, "read activity failed", "user_id", userID, "error", err)
		return false
	}

	last, perr := strconv.ParseInt(string(raw), 10, 64)
	if raw == nil || perr != nil {
		if err := m.Touch(ctx, userID); err != nil {
			m.logger.Warn(ctx, "touch failed", "user_id", userID, "error", err)
		}
		return false
	}

	if m.now().Sub(timex.FromMillis(last)) <= m.timeout {
		return false
	}

	if err := m.Clear(ctx, userID); err != nil {
		m.logger.Warn(ctx, "clear session failed", "user_id", userID, "error", err)
	}
	m.auditLog(ctx, models.AccessSessionTimeout, "Session timed out", userID)
	return true
}

// Clear ends the session of userID and forgets its private key.
func (m *Manager) Clear(ctx context.Context, userID string) error {
	m.setKeys(userID, nil)
	return m.store.Delete(ctx, activityKey(userID))
}

func (m *Manager) setKeys(userID string, kp *keyPair) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.keys[userID]; ok {
		common.WipeByteArray(old.priv[:])
		delete(m.keys, userID)
	}
	if kp != nil {
		m.keys[userID] = kp
	}
}

// Unlocked reports whether the private key of userID is loaded.
func (m *Manager) Unlocked(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.keys[userID]
	return ok
}

// KeyPair returns copies of the key pair of an unlocked user. Callers wipe
// the private key when done.
func (m *Manager) KeyPair(userID string) (publicKey, privateKey *[32]byte, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kp, ok := m.keys[userID]
	if !ok {
		return nil, nil, ErrLocked
	}
	pub, priv := kp.pub, kp.priv
	return &pub, &priv, nil
}

// PublicKey returns the public key of any registered user.
func (m *Manager) PublicKey(ctx context.Context, userID string) (*[32]byte, error) {
	c, err := m.credentials(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(c.PublicKey) != 32 {
		return nil, fmt.Errorf("%w: %s has not unlocked since the upgrade", ErrNotRegistered, userID)
	}
	var pub [32]byte
	copy(pub[:], c.PublicKey)
	return &pub, nil
}

func (m *Manager) auditLog(ctx context.Context, t models.AccessType, details, userID string) {
	if err := m.audit.Log(ctx, t, details, accesslog.ForUser(userID)); err != nil {
		m.logger.Warn(ctx, "access log write failed", "type", t, "error", err)
	}
}
