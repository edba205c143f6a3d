package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"timecapsule/lockbox"
)

// maxPassphraseLength bounds passphrases read from a non-terminal source.
const maxPassphraseLength = 4096

// openControllingTTY opens the terminal the process was started from. It is
// used when STDIN carries a payload or capsule.
func openControllingTTY() (io.ReadCloser, error) {
	return os.Open("/dev/tty")
}

// passphrase returns the passphrase from the environment or prompts for it
// once.
func (o *rootOptions) passphrase(cmd *cobra.Command, prompt string) ([]byte, error) {
	if envPass := os.Getenv(PassphraseEnvVar); envPass != "" {
		o.log.Debugf("Using passphrase from %s", PassphraseEnvVar)
		return []byte(envPass), nil
	}

	return o.readPassword(cmd, prompt)
}

// passphraseWithConfirm is passphrase with a second prompt that must match.
func (o *rootOptions) passphraseWithConfirm(cmd *cobra.Command, prompt, confirmPrompt string) ([]byte, error) {
	if envPass := os.Getenv(PassphraseEnvVar); envPass != "" {
		o.log.Debugf("Using passphrase from %s", PassphraseEnvVar)
		return []byte(envPass), nil
	}

	passphrase, err := o.readPassword(cmd, prompt)
	if err != nil {
		return nil, err
	}

	confirm, err := o.readPassword(cmd, confirmPrompt)
	if err != nil {
		lockbox.Zero(passphrase)
		return nil, err
	}
	defer lockbox.Zero(confirm)

	if !bytes.Equal(passphrase, confirm) {
		lockbox.Zero(passphrase)
		return nil, fmt.Errorf("passphrases do not match")
	}

	return passphrase, nil
}

// readPassword prompts on the command's error stream. Input comes from the
// command's input when that is a terminal, and from the controlling terminal
// otherwise.
func (o *rootOptions) readPassword(cmd *cobra.Command, prompt string) ([]byte, error) {
	out := cmd.ErrOrStderr()
	fmt.Fprint(out, prompt)
	defer fmt.Fprintln(out)

	if fd, ok := terminalFd(cmd.InOrStdin()); ok {
		return term.ReadPassword(fd)
	}

	tty, err := o.openTTY()
	if err != nil {
		if runtime.GOOS == "windows" {
			return nil, fmt.Errorf("passphrase must be set via %s environment variable when STDIN is piped", PassphraseEnvVar)
		}
		return nil, fmt.Errorf("cannot read passphrase: STDIN is piped and /dev/tty is not available. Set %s environment variable", PassphraseEnvVar)
	}
	defer tty.Close()

	if fd, ok := terminalFd(tty); ok {
		return term.ReadPassword(fd)
	}
	return readLine(tty)
}

func terminalFd(r io.Reader) (int, bool) {
	f, ok := r.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0, false
	}
	return int(f.Fd()), true
}

// readLine reads up to a newline one byte at a time, so nothing past the line
// is consumed from r.
func readLine(r io.Reader) ([]byte, error) {
	line := make([]byte, 0, maxPassphraseLength)
	b := make([]byte, 1)
	for {
		n, err := r.Read(b)
		if n == 1 {
			if b[0] == '\n' {
				break
			}
			if len(line) == maxPassphraseLength {
				lockbox.Zero(line)
				return nil, fmt.Errorf("passphrase longer than %d bytes", maxPassphraseLength)
			}
			line = append(line, b[0])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			lockbox.Zero(line)
			return nil, err
		}
	}
	return bytes.TrimSuffix(line, []byte("\r")), nil
}
