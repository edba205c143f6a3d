package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"timecapsule/capsule"
	"timecapsule/lockbox"
)

type unlockOptions struct {
	keyFile   string
	challenge int
}

func newUnlockCmd(root *rootOptions) *cobra.Command {
	opts := &unlockOptions{challenge: -1}

	cmd := &cobra.Command{
		Use:   "unlock",
		Short: "Unlock a capsule from STDIN and write its payload to STDOUT",
		Long: `Unlock reads a capsule from STDIN and writes the original payload to STDOUT.

With --key-file the key challenges are tried in order; otherwise the passphrase
(from ` + PassphraseEnvVar + ` or the terminal) is tried against the password
challenges. --challenge selects a single challenge by its index, as listed by
'timecapsule inspect'.`,
		Example: `  cat notes.capsule | timecapsule unlock > notes.txt
  cat notes.capsule | timecapsule unlock --key-file recovery.key > notes.txt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnlock(cmd, root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.keyFile, "key-file", "k", "", "unlock with a key file instead of a passphrase")
	cmd.Flags().IntVarP(&opts.challenge, "challenge", "c", -1, "index of the challenge to solve")

	return cmd
}

func runUnlock(cmd *cobra.Command, root *rootOptions, opts *unlockOptions) error {
	log := root.log

	c, err := readCapsule(cmd.InOrStdin())
	if err != nil {
		return err
	}
	log.Debugf("Read capsule version %d with %d challenge(s)", c.Public.Version, len(c.Challenges))

	candidates, err := opts.candidates(c)
	if err != nil {
		return err
	}

	secret, err := opts.secret(cmd, root, candidates[0].Type())
	if err != nil {
		return err
	}
	defer lockbox.Zero(secret)

	for i, ch := range candidates {
		log.Debugf("Trying %s challenge %d of %d", ch.Type(), i+1, len(candidates))

		data, err := capsule.Unlock(c, ch, secret)
		switch {
		case errors.Is(err, capsule.ErrUnlockFailed):
			continue
		case errors.Is(err, lockbox.ErrInvalidKDFParameters), errors.Is(err, lockbox.ErrUnsupportedKDF):
			log.Debugf("Skipping %s challenge %d: %v", ch.Type(), i+1, err)
			continue
		}
		if err != nil {
			return err
		}
		defer lockbox.Zero(data)

		if _, err := cmd.OutOrStdout().Write(data); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}

		log.Infof("Unlocked %d bytes with a %s challenge", len(data), ch.Type())
		return nil
	}

	return fmt.Errorf("%w (wrong key or passphrase, or corrupted capsule)", capsule.ErrUnlockFailed)
}

// candidates returns the challenges to try, all of one type.
func (o *unlockOptions) candidates(c *sealedCapsule) ([]capsule.Challenge, error) {
	if o.challenge >= 0 {
		if o.challenge >= len(c.Challenges) {
			return nil, fmt.Errorf("challenge %d does not exist: capsule has %d challenge(s)", o.challenge, len(c.Challenges))
		}
		ch := c.Challenges[o.challenge]
		if o.keyFile != "" && ch.Type() != capsule.ChallengeTypeKey {
			return nil, fmt.Errorf("challenge %d is a %s challenge, not a key challenge", o.challenge, ch.Type())
		}
		return []capsule.Challenge{ch}, nil
	}

	kind := capsule.ChallengeTypePassword
	if o.keyFile != "" {
		kind = capsule.ChallengeTypeKey
	}

	found := c.Find(kind)
	if len(found) == 0 {
		return nil, fmt.Errorf("capsule has no %s challenge", kind)
	}
	return found, nil
}

// secret loads the credential for a challenge of the given kind.
func (o *unlockOptions) secret(cmd *cobra.Command, root *rootOptions, kind capsule.ChallengeType) ([]byte, error) {
	switch kind {
	case capsule.ChallengeTypeKey:
		if o.keyFile == "" {
			return nil, fmt.Errorf("a key challenge needs --key-file")
		}
		return readKeyFile(o.keyFile)
	case capsule.ChallengeTypePassword:
		passphrase, err := root.passphrase(cmd, "Enter passphrase: ")
		if err != nil {
			return nil, fmt.Errorf("failed to get passphrase: %w", err)
		}
		if len(passphrase) == 0 {
			return nil, fmt.Errorf("passphrase cannot be empty")
		}
		return passphrase, nil
	default:
		return nil, fmt.Errorf("%w: %q", capsule.ErrUnsupportedChallenge, string(kind))
	}
}
