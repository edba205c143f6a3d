package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"timecapsule/capsule"
	"timecapsule/lockbox"
)

func newInspectCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Show the public metadata and challenges of a capsule from STDIN",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := readCapsule(cmd.InOrStdin())
			if err != nil {
				return err
			}
			root.log.Debugf("Read capsule version %d", c.Public.Version)

			return printCapsule(cmd.OutOrStdout(), c)
		},
	}
}

func printCapsule(out io.Writer, c *sealedCapsule) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	fmt.Fprintf(w, "Version:\t%d\n", c.Public.Version)
	if !c.Public.CreatedAt.IsZero() {
		fmt.Fprintf(w, "Created:\t%s\n", c.Public.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Fprintf(w, "Cipher:\t%s\n", c.Cipher.Algorithm)
	fmt.Fprintf(w, "Payload:\t%d bytes encrypted\n", len(c.Ciphertext))

	if len(c.Public.Labels) > 0 {
		keys := make([]string, 0, len(c.Public.Labels))
		for k := range c.Public.Labels {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Fprintln(w, "Labels:")
		for _, k := range keys {
			fmt.Fprintf(w, "  %s\t%s\n", k, c.Public.Labels[k])
		}
	}

	fmt.Fprintln(w, "Challenges:")
	for i, ch := range c.Challenges {
		fmt.Fprintf(w, "  [%d]\t%s\t%s\n", i, ch.Type(), describeChallenge(ch))
	}

	return w.Flush()
}

func describeChallenge(ch capsule.Challenge) string {
	switch v := ch.(type) {
	case *capsule.KeyChallenge:
		return string(v.EncryptedMasterKey.Cipher.Algorithm)
	case *capsule.PasswordChallenge:
		kd := v.EncryptionKeyDerivation
		var cost string
		switch kd.Algorithm {
		case lockbox.Argon2id:
			cost = fmt.Sprintf("t=%d m=%dKiB p=%d", kd.Time, kd.Memory, kd.Threads)
		case lockbox.Scrypt:
			cost = fmt.Sprintf("N=%d r=%d p=%d", kd.N, kd.R, kd.P)
		case lockbox.PBKDF2SHA256:
			cost = fmt.Sprintf("iterations=%d", kd.Iterations)
		}
		return fmt.Sprintf("%s, %s %s", v.EncryptedMasterKey.Cipher.Algorithm, kd.Algorithm, cost)
	default:
		return "not supported by this version"
	}
}
