package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"daycal/internal/config"
	"daycal/internal/web"
)

// runHashPassword prompts for a password and prints its Argon2id hash.
// With -config and -user the hash is stored as basic_auth in that file.
func runHashPassword(args []string, stdin *os.File, stdout io.Writer) error {
	fs := flag.NewFlagSet("hash-password", flag.ContinueOnError)
	configPath := fs.String("config", "", "Store the hash as basic_auth in this config file")
	user := fs.String("user", "", "basic_auth username (required with -config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *configPath != "" && *user == "" {
		return errors.New("-user is required with -config")
	}

	br := bufio.NewReader(stdin)
	password, err := readPassword(stdin, br, stdout, "Enter password:   ")
	if err != nil {
		return err
	}
	confirm, err := readPassword(stdin, br, stdout, "Confirm password: ")
	if err != nil {
		return err
	}

	hash, err := hashConfirmed(password, confirm)
	if err != nil {
		return err
	}

	if *configPath == "" {
		fmt.Fprintln(stdout, hash)
		return nil
	}
	return storeHash(*configPath, *user, hash, stdout)
}

func hashConfirmed(password, confirm string) (string, error) {
	if password == "" {
		return "", errors.New("password cannot be empty")
	}
	if password != confirm {
		return "", errors.New("passwords do not match")
	}
	return web.HashPassword(password)
}

func storeHash(path, user, hash string, stdout io.Writer) error {
	conf, err := config.Load(path)
	if err != nil {
		return err
	}
	conf.BasicAuth = &config.BasicAuthConfig{Username: user, Password: hash}
	if err := conf.Save(path); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "basic_auth updated in %s (user: %s)\n", path, user)
	return nil
}

// readPassword reads without echo from a terminal, or a plain line
// otherwise (e.g. piped input in scripts).
func readPassword(in *os.File, br *bufio.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		return string(b), err
	}
	line, err := br.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
