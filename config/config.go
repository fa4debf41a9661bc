package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ardanlabs/conf"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tbd54566975/vc-engine/pkg/credential"
	"github.com/tbd54566975/vc-engine/pkg/policy"
	"github.com/tbd54566975/vc-engine/pkg/sdjwt"
	"github.com/tbd54566975/vc-engine/pkg/storage"
)

const (
	DefaultConfigPath = "config/config.toml"
	ConfigFileName    = "config.toml"
	ServiceName       = "vc-engine"
	ConfigExtension   = ".toml"
)

type EnvironmentVariable string

const (
	ConfigPath EnvironmentVariable = "VCENGINE_CONFIG_PATH"
)

func (e EnvironmentVariable) String() string {
	return string(e)
}

type EngineConfig struct {
	conf.Version
	Log          LogConfig          `toml:"log"`
	Issuance     IssuanceConfig     `toml:"issuance"`
	Verification VerificationConfig `toml:"verification"`
	Wallet       WalletConfig       `toml:"wallet"`
}

type LogConfig struct {
	Level    string `toml:"level" conf:"default:info"`
	Location string `toml:"location"`
}

// IssuanceConfig holds the defaults applied to issued credentials
type IssuanceConfig struct {
	KeyType     string        `toml:"key_type" conf:"default:Ed25519"`
	BuilderType string        `toml:"builder_type" conf:"default:W3CV11"`
	ValidFor    time.Duration `toml:"valid_for" conf:"default:8760h"`
	DecoyMode   string        `toml:"decoy_mode" conf:"default:none"`
	DecoyCount  int           `toml:"decoy_count" conf:"default:0"`
	// DisclosableClaims are the credential subject claims made selectively disclosable
	DisclosableClaims []string `toml:"disclosable_claims"`
}

// SDMap builds the disclosure map for the configured claims
func (c IssuanceConfig) SDMap() (sdjwt.SDMap, error) {
	mode, err := sdjwt.ParseDecoyMode(c.DecoyMode)
	if err != nil {
		return sdjwt.SDMap{}, err
	}
	if c.DecoyCount < 0 {
		return sdjwt.SDMap{}, fmt.Errorf("decoy count must not be negative: %d", c.DecoyCount)
	}
	return sdjwt.NewSDMap(c.DisclosableClaims...).WithDecoys(mode, c.DecoyCount), nil
}

func (c IssuanceConfig) Builder() credential.BuilderType {
	return credential.BuilderType(c.BuilderType)
}

// PolicyConfig is one policy request as written in TOML
type PolicyConfig struct {
	Name string `toml:"policy"`
	Args any    `toml:"args"`
}

func ToRequests(configs []PolicyConfig) []policy.Request {
	requests := make([]policy.Request, 0, len(configs))
	for _, c := range configs {
		requests = append(requests, policy.Request{Name: c.Name, Args: c.Args})
	}
	return requests
}

type VerificationConfig struct {
	ResolutionMethods    []string       `toml:"resolution_methods"`
	PresentationPolicies []PolicyConfig `toml:"presentation_policies"`
	CredentialPolicies   []PolicyConfig `toml:"credential_policies"`
	// TypePolicies are run against nested credentials of the keyed type
	TypePolicies map[string][]PolicyConfig `toml:"type_policies"`
}

func (v VerificationConfig) SpecificRequests() map[string][]policy.Request {
	specific := make(map[string][]policy.Request, len(v.TypePolicies))
	for t, configs := range v.TypePolicies {
		specific[t] = ToRequests(configs)
	}
	return specific
}

type WalletConfig struct {
	Storage       string `toml:"storage" conf:"default:memory"`
	BoltPath      string `toml:"bolt_path"`
	RedisAddress  string `toml:"redis_address"`
	RedisPassword string `toml:"redis_password" conf:"noprint"`
	// Password is run through a KDF whose key encrypts stored private keys. The password is salted before use.
	Password       string         `toml:"password" conf:"noprint"`
	ImportPolicies []PolicyConfig `toml:"import_policies"`
}

// StorageOptions maps the wallet section onto options for storage.NewStorage
func (w WalletConfig) StorageOptions() []storage.Option {
	var opts []storage.Option
	switch storage.Type(w.Storage) {
	case storage.Bolt:
		opts = append(opts, storage.Option{ID: storage.BoltDBFilePathOption, Option: w.BoltPath})
	case storage.Redis:
		opts = append(opts,
			storage.Option{ID: storage.RedisAddressOption, Option: w.RedisAddress},
			storage.Option{ID: storage.PasswordOption, Option: w.RedisPassword},
		)
	}
	return opts
}

// LoadConfig attempts to load a TOML config file from the given path, and coerce it into our object model.
// Before loading, defaults are applied on certain properties, which are overwritten if specified in the TOML file.
func LoadConfig(path string) (*EngineConfig, error) {
	return loadConfig(path, os.Args[1:])
}

func loadConfig(path string, args []string) (*EngineConfig, error) {
	// no path, load default config
	defaultConfig := false
	if path == "" {
		logrus.Info("no config path provided, loading default config...")
		defaultConfig = true
	} else if filepath.Ext(path) != ConfigExtension {
		return nil, fmt.Errorf("path<%s> did not match the expected TOML format", path)
	}

	var config EngineConfig

	// parse and apply defaults
	if err := conf.Parse(args, ServiceName, &config); err != nil {
		switch {
		case errors.Is(err, conf.ErrHelpWanted):
			usage, err := conf.Usage(ServiceName, &config)
			if err != nil {
				return nil, errors.Wrap(err, "parsing config")
			}
			fmt.Println(usage)
			return nil, nil

		case errors.Is(err, conf.ErrVersionWanted):
			version, err := conf.VersionString(ServiceName, &config)
			if err != nil {
				return nil, errors.Wrap(err, "generating config version")
			}
			fmt.Println(version)
			return nil, nil
		}
		return nil, errors.Wrap(err, "parsing config")
	}

	if !defaultConfig {
		if _, err := toml.DecodeFile(path, &config); err != nil {
			return nil, errors.Wrapf(err, "could not load config: %s", path)
		}
	}
	applyDefaults(&config)
	return &config, nil
}

// applyDefaults fills the list valued settings conf cannot default
func applyDefaults(config *EngineConfig) {
	if len(config.Verification.ResolutionMethods) == 0 {
		config.Verification.ResolutionMethods = []string{"key"}
	}
	if len(config.Verification.CredentialPolicies) == 0 {
		config.Verification.CredentialPolicies = []PolicyConfig{
			{Name: policy.SignaturePolicy},
			{Name: policy.SDDisclosuresPolicy},
			{Name: policy.ExpiredPolicy},
			{Name: policy.NotBeforePolicy},
		}
	}
	if len(config.Verification.PresentationPolicies) == 0 {
		config.Verification.PresentationPolicies = []PolicyConfig{
			{Name: policy.SignaturePolicy},
			{Name: policy.HolderBindingPolicy},
		}
	}
	if config.Wallet.Password == "" {
		config.Wallet.Password = "default-password"
	}
}
