package wallet

import (
	"context"
	"time"

	"github.com/TBD54566975/ssi-sdk/crypto"
	sdkutil "github.com/TBD54566975/ssi-sdk/util"
	"github.com/benbjohnson/clock"
	"github.com/goccy/go-json"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tbd54566975/vc-engine/internal/did"
	"github.com/tbd54566975/vc-engine/internal/keyaccess"
	"github.com/tbd54566975/vc-engine/internal/util"
	"github.com/tbd54566975/vc-engine/pkg/storage"
)

const (
	keyNamespace     = "keystore"
	serviceNamespace = "keystore-service"
	saltKey          = "service-key-salt"
	checkKey         = "service-key-check"
	checkValue       = "vc-engine"
)

// ErrWrongPassword is returned when the key store was created with a different password
var ErrWrongPassword = errors.New("wrong key store password")

// StoredKey is the encrypted at rest representation of a private key
type StoredKey struct {
	ID         string         `json:"id"`
	Controller string         `json:"controller"`
	KeyType    crypto.KeyType `json:"keyType"`
	Base58Key  string         `json:"key"`
	CreatedAt  string         `json:"createdAt"`
}

// KeyDetails describes a stored key without revealing it
type KeyDetails struct {
	ID         string         `json:"id"`
	Controller string         `json:"controller"`
	KeyType    crypto.KeyType `json:"keyType"`
	CreatedAt  string         `json:"createdAt"`
}

// KeyStore keeps private keys encrypted under a key derived from a password with argon2
type KeyStore struct {
	db    storage.ServiceStorage
	clock clock.Clock
}

// NewKeyStore opens the key store in db. The first call against a fresh db fixes the password.
func NewKeyStore(ctx context.Context, db storage.ServiceStorage, password string, c clock.Clock) (*KeyStore, error) {
	if db == nil {
		return nil, errors.New("storage cannot be nil")
	}
	if c == nil {
		c = clock.New()
	}
	serviceKey, err := deriveServiceKey(ctx, db, password)
	if err != nil {
		return nil, err
	}
	encrypted, err := storage.NewEncryptedWrapper(db, serviceKey)
	if err != nil {
		return nil, errors.Wrap(err, "creating encrypted storage")
	}

	check, err := encrypted.Read(ctx, serviceNamespace, checkKey)
	if err != nil {
		return nil, ErrWrongPassword
	}
	if check == nil {
		if err = encrypted.Write(ctx, serviceNamespace, checkKey, []byte(checkValue)); err != nil {
			return nil, errors.Wrap(err, "storing service key check")
		}
	} else if string(check) != checkValue {
		return nil, ErrWrongPassword
	}
	return &KeyStore{db: encrypted, clock: c}, nil
}

// deriveServiceKey reads the salt for the service key, creating one on first use
func deriveServiceKey(ctx context.Context, db storage.ServiceStorage, password string) ([]byte, error) {
	encodedSalt, err := db.Read(ctx, serviceNamespace, saltKey)
	if err != nil {
		return nil, errors.Wrap(err, "reading service key salt")
	}
	var salt []byte
	if encodedSalt == nil {
		if salt, err = util.GenerateSalt(util.Argon2SaltSize); err != nil {
			return nil, errors.Wrap(err, "generating service key salt")
		}
		if err = db.Write(ctx, serviceNamespace, saltKey, []byte(base58.Encode(salt))); err != nil {
			return nil, errors.Wrap(err, "storing service key salt")
		}
	} else if salt, err = base58.Decode(string(encodedSalt)); err != nil {
		return nil, errors.Wrap(err, "decoding service key salt")
	}
	key, err := util.Argon2KeyGen(password, salt, util.EncryptionKeySize)
	if err != nil {
		return nil, errors.Wrap(err, "deriving service key")
	}
	return key, nil
}

// CreateIdentity generates a did:key of the given type and stores its private key
func (ks *KeyStore) CreateIdentity(ctx context.Context, kt crypto.KeyType) (*did.Identity, error) {
	identity, err := did.CreateDIDKey(kt)
	if err != nil {
		return nil, err
	}
	if err = ks.StoreKey(ctx, identity.DID, *identity.Key); err != nil {
		return nil, err
	}
	return identity, nil
}

// StoreKey serializes and stores a private key under its ID
func (ks *KeyStore) StoreKey(ctx context.Context, controller string, key keyaccess.KeyHandle) error {
	if key.ID == "" {
		return sdkutil.LoggingNewError("could not store key without an ID")
	}
	if !key.CanSign() {
		return sdkutil.LoggingNewErrorf("could not store key<%s> without private key material", key.ID)
	}
	keyBytes, err := crypto.PrivKeyToBytes(key.PrivateKey)
	if err != nil {
		return sdkutil.LoggingErrorMsgf(err, "serializing key: %s", key.ID)
	}
	return ks.put(ctx, StoredKey{
		ID:         key.ID,
		Controller: controller,
		KeyType:    key.Type,
		Base58Key:  base58.Encode(keyBytes),
		CreatedAt:  ks.clock.Now().UTC().Format(time.RFC3339),
	})
}

func (ks *KeyStore) put(ctx context.Context, stored StoredKey) error {
	storedBytes, err := json.Marshal(stored)
	if err != nil {
		return sdkutil.LoggingErrorMsgf(err, "could not store key: %s", stored.ID)
	}
	if err = ks.db.Write(ctx, keyNamespace, stored.ID, storedBytes); err != nil {
		return sdkutil.LoggingErrorMsgf(err, "could not store key: %s", stored.ID)
	}
	logrus.Debugf("stored key<%s> for controller<%s>", stored.ID, stored.Controller)
	return nil
}

func (ks *KeyStore) getStored(ctx context.Context, id string) (*StoredKey, error) {
	storedBytes, err := ks.db.Read(ctx, keyNamespace, id)
	if err != nil {
		return nil, sdkutil.LoggingErrorMsgf(err, "could not get key: %s", id)
	}
	if len(storedBytes) == 0 {
		return nil, &NotFoundError{Kind: "key", ID: id}
	}
	var stored StoredKey
	if err = json.Unmarshal(storedBytes, &stored); err != nil {
		return nil, sdkutil.LoggingErrorMsgf(err, "could not unmarshal stored key: %s", id)
	}
	return &stored, nil
}

// GetKey returns a signing handle for the stored key and its controller
func (ks *KeyStore) GetKey(ctx context.Context, id string) (*keyaccess.KeyHandle, string, error) {
	stored, err := ks.getStored(ctx, id)
	if err != nil {
		return nil, "", err
	}
	keyBytes, err := base58.Decode(stored.Base58Key)
	if err != nil {
		return nil, "", sdkutil.LoggingErrorMsg(err, "could not deserialize key from base58")
	}
	privKey, err := crypto.BytesToPrivKey(keyBytes, stored.KeyType)
	if err != nil {
		return nil, "", sdkutil.LoggingErrorMsg(err, "could not reconstruct private key from storage")
	}
	handle, err := keyaccess.NewKeyHandle(stored.ID, privKey)
	if err != nil {
		return nil, "", err
	}
	return handle, stored.Controller, nil
}

func (ks *KeyStore) GetKeyDetails(ctx context.Context, id string) (*KeyDetails, error) {
	stored, err := ks.getStored(ctx, id)
	if err != nil {
		return nil, err
	}
	return &KeyDetails{
		ID:         stored.ID,
		Controller: stored.Controller,
		KeyType:    stored.KeyType,
		CreatedAt:  stored.CreatedAt,
	}, nil
}

// ListKeys returns details for every stored key
func (ks *KeyStore) ListKeys(ctx context.Context) ([]KeyDetails, error) {
	all, err := ks.db.ReadAll(ctx, keyNamespace)
	if err != nil {
		return nil, sdkutil.LoggingErrorMsg(err, "could not list keys")
	}
	details := make([]KeyDetails, 0, len(all))
	for id, storedBytes := range all {
		var stored StoredKey
		if err = json.Unmarshal(storedBytes, &stored); err != nil {
			return nil, sdkutil.LoggingErrorMsgf(err, "could not unmarshal stored key: %s", id)
		}
		details = append(details, KeyDetails{
			ID:         stored.ID,
			Controller: stored.Controller,
			KeyType:    stored.KeyType,
			CreatedAt:  stored.CreatedAt,
		})
	}
	return details, nil
}

func (ks *KeyStore) DeleteKey(ctx context.Context, id string) error {
	if _, err := ks.getStored(ctx, id); err != nil {
		return err
	}
	return ks.db.Delete(ctx, keyNamespace, id)
}

// ExportKey seals a stored key with a separate transport password
func (ks *KeyStore) ExportKey(ctx context.Context, id, password string) ([]byte, error) {
	stored, err := ks.getStored(ctx, id)
	if err != nil {
		return nil, err
	}
	storedBytes, err := json.Marshal(stored)
	if err != nil {
		return nil, errors.Wrapf(err, "marshaling key: %s", id)
	}
	return util.SealWithPassword(password, storedBytes)
}

// ImportKey opens a key sealed by ExportKey and stores it, returning its details
func (ks *KeyStore) ImportKey(ctx context.Context, sealed []byte, password string) (*KeyDetails, error) {
	storedBytes, err := util.OpenWithPassword(password, sealed)
	if err != nil {
		return nil, errors.Wrap(err, "opening exported key")
	}
	var stored StoredKey
	if err = json.Unmarshal(storedBytes, &stored); err != nil {
		return nil, errors.Wrap(err, "unmarshaling exported key")
	}
	if stored.ID == "" {
		return nil, errors.New("exported key has no ID")
	}
	if !crypto.IsSupportedKeyType(stored.KeyType) {
		return nil, errors.Errorf("unsupported key type: %s", stored.KeyType)
	}
	if err = ks.put(ctx, stored); err != nil {
		return nil, err
	}
	return &KeyDetails{
		ID:         stored.ID,
		Controller: stored.Controller,
		KeyType:    stored.KeyType,
		CreatedAt:  stored.CreatedAt,
	}, nil
}
