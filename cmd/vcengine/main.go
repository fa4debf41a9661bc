package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/TBD54566975/ssi-sdk/crypto"
	"github.com/ardanlabs/conf"
	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tbd54566975/vc-engine/config"
	"github.com/tbd54566975/vc-engine/internal/did"
	"github.com/tbd54566975/vc-engine/pkg/credential"
	"github.com/tbd54566975/vc-engine/pkg/envelope"
	"github.com/tbd54566975/vc-engine/pkg/policy"
	"github.com/tbd54566975/vc-engine/pkg/storage"
	"github.com/tbd54566975/vc-engine/pkg/wallet"
)

func main() {
	logrus.Info("Starting up...")

	if err := run(); err != nil {
		logrus.Fatalf("main: error: %s", err.Error())
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("no .env file found")
	}

	configPath := config.DefaultConfigPath
	envConfigPath, present := os.LookupEnv(config.ConfigPath.String())
	if present {
		logrus.Infof("loading config from env var path: %s", envConfigPath)
		configPath = envConfigPath
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return errors.Wrap(err, "could not instantiate config")
	}
	// help or version was requested
	if cfg == nil {
		return nil
	}

	if logFile := configureLogger(cfg.Log.Level, cfg.Log.Location); logFile != nil {
		defer func(logFile *os.File) {
			if err = logFile.Close(); err != nil {
				logrus.WithError(err).Error("failed to close log file")
			}
		}(logFile)
	}

	logrus.Infof("main: Started : Engine initializing : version %q", cfg.Version.SVN)
	defer logrus.Info("main: Completed")

	out, err := conf.String(cfg)
	if err != nil {
		return errors.Wrap(err, "serializing config")
	}
	logrus.Infof("main: Config: \n%v\n", out)

	return demo(context.Background(), cfg)
}

// demo issues a JWT VC and an SD-JWT VC, imports both into the wallet, presents them and verifies the
// presentation with the configured policies
func demo(ctx context.Context, cfg *config.EngineConfig) error {
	db, err := storage.NewStorage(storage.Type(cfg.Wallet.Storage), cfg.Wallet.StorageOptions()...)
	if err != nil {
		return errors.Wrap(err, "creating wallet storage")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logrus.WithError(err).Error("closing wallet storage")
		}
	}()

	resolver, err := did.BuildMultiMethodResolver(cfg.Verification.ResolutionMethods)
	if err != nil {
		return errors.Wrap(err, "building resolver")
	}
	verifier := policy.NewVerifier(policy.WithResolver(resolver))

	walletOpts := []wallet.Option{wallet.WithVerifier(verifier)}
	if len(cfg.Wallet.ImportPolicies) > 0 {
		walletOpts = append(walletOpts, wallet.WithImportPolicies(config.ToRequests(cfg.Wallet.ImportPolicies)...))
	}
	w, err := wallet.NewWallet(ctx, db, cfg.Wallet.Password, walletOpts...)
	if err != nil {
		return errors.Wrap(err, "opening wallet")
	}

	issuer, err := w.Keys.CreateIdentity(ctx, crypto.KeyType(cfg.Issuance.KeyType))
	if err != nil {
		return errors.Wrap(err, "creating issuer identity")
	}
	holder, err := w.Keys.CreateIdentity(ctx, crypto.P256)
	if err != nil {
		return errors.Wrap(err, "creating holder identity")
	}
	logrus.Infof("issuer<%s> holder<%s>", issuer.DID, holder.DID)

	doc, err := credential.NewBuilder(cfg.Issuance.Builder()).
		AddType("UniversityDegreeCredential").
		SetIssuer(issuer.DID).
		SetSubject(holder.DID).
		ValidFromNow().
		ValidFor(cfg.Issuance.ValidFor).
		UseData("name", "Alice Example").
		UseData("degree", map[string]any{"type": "BachelorDegree", "name": "Computer Science"}).
		Build()
	if err != nil {
		return errors.Wrap(err, "building credential")
	}

	jwtVC, err := w.Issue(ctx, issuer.Key.ID, doc, envelope.Options{})
	if err != nil {
		return errors.Wrap(err, "issuing credential")
	}
	sdMap, err := cfg.Issuance.SDMap()
	if err != nil {
		return errors.Wrap(err, "building disclosure map")
	}
	sdVC, err := w.IssueSD(ctx, issuer.Key.ID, doc, sdMap, envelope.Options{JWTID: doc.ID() + "#sd", HolderKey: holder.Key})
	if err != nil {
		return errors.Wrap(err, "issuing selective disclosure credential")
	}

	storedJWT, _, err := w.Credentials.Import(ctx, jwtVC, "degree")
	if err != nil {
		return errors.Wrap(err, "importing credential")
	}
	storedSD, _, err := w.Credentials.Import(ctx, sdVC, "degree-sd")
	if err != nil {
		return errors.Wrap(err, "importing selective disclosure credential")
	}

	nonce := strconv.FormatInt(time.Now().UnixNano(), 10)
	vp, err := w.Present(ctx, wallet.PresentRequest{
		HolderKeyID:   holder.Key.ID,
		CredentialIDs: []string{storedJWT.ID, storedSD.ID},
		Disclose:      map[string][]string{storedSD.ID: {"name"}},
		Nonce:         nonce,
	})
	if err != nil {
		return errors.Wrap(err, "presenting credentials")
	}

	vpRequests := append(config.ToRequests(cfg.Verification.PresentationPolicies), policy.Req(policy.NoncePolicy))
	report, err := verifier.VerifyPresentation(vp, vpRequests,
		config.ToRequests(cfg.Verification.CredentialPolicies),
		cfg.Verification.SpecificRequests(),
		map[string]any{policy.NonceValue: nonce})
	if err != nil {
		return errors.Wrap(err, "verifying presentation")
	}

	reportJSON, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling report")
	}
	fmt.Println(string(reportJSON))
	logrus.Infof("presentation verified: %t", report.OverallSuccess())
	return nil
}

// configureLogger configures the logger to logs to the given location and returns a file pointer to a logs
// file that should be closed upon shutdown
func configureLogger(level, location string) *os.File {
	if level != "" {
		logLevel, err := logrus.ParseLevel(level)
		if err != nil {
			logrus.WithError(err).Errorf("could not parse log level<%s>, setting to info", level)
			logrus.SetLevel(logrus.InfoLevel)
		} else {
			logrus.SetLevel(logLevel)
		}
	}

	logrus.SetFormatter(&logrus.JSONFormatter{
		DisableTimestamp: false,
		PrettyPrint:      true,
	})
	logrus.SetReportCaller(true)

	now := time.Now()
	logrus.SetOutput(os.Stdout)
	if location != "" {
		logFile := location + "/" + config.ServiceName + "-" + now.Format(time.DateOnly) + "-" + strconv.FormatInt(now.Unix(), 10) + ".log"
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			logrus.WithError(err).Warn("failed to create logs file, using default stdout")
			return nil
		}
		logrus.SetOutput(io.MultiWriter(os.Stdout, file))
		return file
	}
	return nil
}
