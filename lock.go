package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"timecapsule/capsule"
	"timecapsule/internal/logging"
	"timecapsule/lockbox"
)

type lockOptions struct {
	password    bool
	keyFiles    []string
	newKeyFiles []string
	cipher      string
	kdf         string
	memory      memoryValue
	iterations  uint32
	labels      map[string]string
}

func newLockCmd(root *rootOptions) *cobra.Command {
	opts := &lockOptions{memory: lockbox.DefaultArgon2Memory}

	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Lock data from STDIN into a capsule on STDOUT",
		Long: `Lock reads a payload from STDIN, encrypts it once under a fresh master key
and writes a capsule to STDOUT. The master key is wrapped once per credential:

  --password           a passphrase (from ` + PassphraseEnvVar + ` or the terminal)
  --key-file PATH      an existing base64 encoded 256-bit key
  --new-key-file PATH  a freshly generated key, written to PATH with mode 0600

With no credential flags, --password is assumed.`,
		Example: `  # Lock with a passphrase and a recovery key
  cat notes.txt | timecapsule lock --password --new-key-file recovery.key > notes.capsule

  # Lock with a stronger Argon2id cost
  cat notes.txt | timecapsule lock -m=1G -i=4 > notes.capsule`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLock(cmd, root, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.password, "password", "p", false, "add a passphrase challenge")
	cmd.Flags().StringArrayVarP(&opts.keyFiles, "key-file", "k", nil, "add a key challenge for an existing key file (repeatable)")
	cmd.Flags().StringArrayVar(&opts.newKeyFiles, "new-key-file", nil, "generate a key, write it to this path and add a key challenge (repeatable)")
	cmd.Flags().StringVar(&opts.cipher, "cipher", string(lockbox.AES256GCM), "cipher: aes-256-gcm, chacha20-poly1305, xchacha20-poly1305, xsalsa20-poly1305, aes256-gcm-hkdf-1mb")
	cmd.Flags().StringVar(&opts.kdf, "kdf", string(lockbox.Argon2id), "password key derivation: argon2id, scrypt, pbkdf2-sha256")
	cmd.Flags().VarP(&opts.memory, "memory", "m", "Argon2id memory cost, e.g. 64M, 256M, 1G")
	cmd.Flags().Uint32VarP(&opts.iterations, "iterations", "i", 0, "Argon2id passes or PBKDF2 iterations (default: algorithm default)")
	cmd.Flags().StringToStringVarP(&opts.labels, "label", "l", nil, "public label stored in the clear, as key=value (repeatable)")

	return cmd
}

func (o *lockOptions) configuration(cmd *cobra.Command, log logging.Logger) (lockbox.Configuration, error) {
	kd, err := lockbox.DefaultKeyDerivation(lockbox.KDFAlgorithm(o.kdf))
	if err != nil {
		return lockbox.Configuration{}, err
	}

	if cmd.Flags().Changed("memory") {
		if kd.Algorithm == lockbox.Argon2id {
			kd.Memory = uint32(o.memory)
		} else {
			log.Warnf("--memory only applies to argon2id; ignoring it for %s", kd.Algorithm)
		}
	}

	if cmd.Flags().Changed("iterations") {
		if o.iterations < 1 {
			return lockbox.Configuration{}, fmt.Errorf("iterations must be at least 1")
		}
		switch kd.Algorithm {
		case lockbox.Argon2id:
			kd.Time = o.iterations
		case lockbox.PBKDF2SHA256:
			kd.Iterations = int(o.iterations)
		default:
			log.Warnf("--iterations does not apply to %s; ignoring it", kd.Algorithm)
		}
	}

	cfg := lockbox.Configuration{
		Cipher:        lockbox.CipherConfiguration{Algorithm: lockbox.CipherAlgorithm(o.cipher)},
		KeyDerivation: kd,
	}
	if err := cfg.Validate(); err != nil {
		return lockbox.Configuration{}, err
	}

	return cfg, nil
}

// pendingKey is a generated key that is written out once the capsule is locked.
type pendingKey struct {
	path string
	key  []byte
}

func runLock(cmd *cobra.Command, root *rootOptions, opts *lockOptions) error {
	log := root.log

	cfg, err := opts.configuration(cmd, log)
	if err != nil {
		return err
	}

	usePassword := opts.password || (len(opts.keyFiles) == 0 && len(opts.newKeyFiles) == 0)

	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	defer lockbox.Zero(data)
	log.Infof("Read %d bytes from STDIN", len(data))

	masterKey, err := lockbox.GenerateKey()
	if err != nil {
		return fmt.Errorf("failed to generate master key: %w", err)
	}
	defer lockbox.Zero(masterKey)

	var challenges []capsule.Challenge

	for _, path := range opts.keyFiles {
		key, err := readKeyFile(path)
		if err != nil {
			return err
		}
		ch, err := capsule.GenerateRandomKeyChallenge(cfg, key, masterKey)
		lockbox.Zero(key)
		if err != nil {
			return err
		}
		challenges = append(challenges, ch)
		log.Infof("Added key challenge for %s", path)
	}

	var pending []pendingKey
	defer func() {
		for _, p := range pending {
			lockbox.Zero(p.key)
		}
	}()

	for _, path := range opts.newKeyFiles {
		ch, key, err := capsule.NewRandomKeyChallenge(cfg, masterKey)
		if err != nil {
			return err
		}
		pending = append(pending, pendingKey{path: path, key: key})
		challenges = append(challenges, ch)
		log.Infof("Added key challenge for new key %s", path)
	}

	if usePassword {
		passphrase, err := root.passphraseWithConfirm(cmd, "Enter passphrase: ", "Confirm passphrase: ")
		if err != nil {
			return fmt.Errorf("failed to get passphrase: %w", err)
		}
		defer lockbox.Zero(passphrase)

		if len(passphrase) == 0 {
			return fmt.Errorf("passphrase cannot be empty")
		}

		log.Debugf("Deriving key with %s", cfg.KeyDerivation.Algorithm)
		ch, err := capsule.GenerateRandomPasswordChallenge(cfg, passphrase, masterKey)
		if err != nil {
			return err
		}
		challenges = append(challenges, ch)
		log.Infof("Added password challenge (%s)", cfg.KeyDerivation.Algorithm)
	}

	iv, err := lockbox.RandomBytes(cfg.Cipher.IVLength())
	if err != nil {
		return fmt.Errorf("failed to generate iv: %w", err)
	}
	cipher, err := lockbox.BuildCipher(cfg.Cipher, iv)
	if err != nil {
		return err
	}

	public := Metadata{
		Version:   FormatVersion,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		Labels:    opts.labels,
	}

	c, err := capsule.Lock(cipher, challenges, masterKey, data, public)
	if errors.Is(err, capsule.ErrNoChallenges) {
		return fmt.Errorf("no credentials given: use --password, --key-file or --new-key-file")
	}
	if err != nil {
		return err
	}

	for _, p := range pending {
		if err := writeKeyFile(p.path, p.key); err != nil {
			return err
		}
		log.Infof("Wrote new key to %s", p.path)
	}

	if err := writeCapsule(cmd.OutOrStdout(), c); err != nil {
		return err
	}

	log.Infof("Locked capsule with %d challenge(s) using %s", len(c.Challenges), cipher.Algorithm)
	return nil
}
