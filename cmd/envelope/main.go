package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/absfs/envelope"
	"github.com/absfs/envelope/remote"
)

// app carries the I/O endpoints shared by all subcommands
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	env    string // path of the .env file
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr, env: ".env"}
	if p := os.Getenv("ENVELOPE_ENV_FILE"); p != "" {
		a.env = p
	}

	if err := a.run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) < 1 {
		a.printUsage()
		return errors.New("no command given")
	}

	switch args[0] {
	case "encrypt":
		return a.runEncrypt(ctx, args[1:])
	case "decrypt":
		return a.runDecrypt(ctx, args[1:])
	case "inspect":
		return a.runInspect(ctx, args[1:])
	case "demo":
		return a.runDemo(ctx, args[1:])
	case "help", "-h", "--help":
		a.printUsage()
		return nil
	default:
		a.printUsage()
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func (a *app) printUsage() {
	fmt.Fprint(a.stderr, `Usage: envelope <command> [flags] [input]

Commands:
  encrypt   Encrypt a message (argument or stdin) and print the base64 envelope
  decrypt   Decrypt a base64 envelope (argument or stdin) and print the message
  inspect   Show the layout of a base64 envelope without decrypting it (-raw writes its bytes)
  demo      Run the CBC and GCM round-trip scenarios, optionally against a key service

Common flags:
  -password   Password for key derivation (ENVELOPE_PASSWORD)
  -salt       Salt for key derivation (ENVELOPE_SALT)
  -mode       cbc or gcm (ENVELOPE_MODE)
  -iterations PBKDF2 iteration count, at least 100000 (ENVELOPE_ITERATIONS)
  -verbose    Debug logging and key fingerprints (ENVELOPE_VERBOSE)

Key service (demo -remote):
  -api-url    Base URL, overrides ENVELOPE_API_URL
              ENVELOPE_API_TIMEOUT and ENVELOPE_API_KEY are read from the environment
`)
}

// flags loads the config and binds the common flags over it
func (a *app) flags(name string) (*flag.FlagSet, *config, error) {
	cfg, err := loadConfig(a.env)
	if err != nil {
		return nil, nil, err
	}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.StringVar(&cfg.Password, "password", cfg.Password, "password for key derivation")
	fs.StringVar(&cfg.Salt, "salt", cfg.Salt, "salt for key derivation")
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "cipher mode: cbc or gcm")
	fs.IntVar(&cfg.Iterations, "iterations", cfg.Iterations, "PBKDF2 iteration count")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "enable debug logging")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: console or json")
	return fs, &cfg, nil
}

// input returns the positional arguments joined by spaces, or all of stdin
func (a *app) input(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(a.stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

func (a *app) runEncrypt(_ context.Context, args []string) error {
	fs, cfg, err := a.flags("encrypt")
	if err != nil {
		return err
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if cfg.Password == "" {
		return errors.New("password is required (-password or ENVELOPE_PASSWORD)")
	}

	logger, err := newLogger(cfg.LogFormat, cfg.Verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	c, err := cfg.cipher()
	if err != nil {
		return err
	}
	logKey(logger, c)

	msg, err := a.input(fs.Args())
	if err != nil {
		return err
	}

	start := time.Now()
	out, err := c.Encrypt(msg)
	if err != nil {
		return err
	}
	logger.Debug("encrypted",
		zap.Stringer("mode", c.Mode()),
		zap.Int("plaintext_bytes", len(msg)),
		zap.Int("envelope_bytes", c.Overhead(len(msg))),
		zap.Duration("elapsed", time.Since(start)))

	fmt.Fprintln(a.stdout, out)
	return nil
}

// runInspect prints the parts of an envelope. No password is needed since
// nothing is decrypted.
func (a *app) runInspect(_ context.Context, args []string) error {
	fs, cfg, err := a.flags("inspect")
	if err != nil {
		return err
	}
	raw := fs.Bool("raw", false, "write the raw envelope bytes instead of a summary")
	if err := fs.Parse(args); err != nil {
		return err
	}

	mode, err := envelope.ParseMode(cfg.Mode)
	if err != nil {
		return err
	}

	in, err := a.input(fs.Args())
	if err != nil {
		return err
	}

	e, err := envelope.DecodeEnvelope(mode, strings.TrimSpace(in))
	if err != nil {
		return err
	}
	if err := e.Validate(); err != nil {
		return err
	}

	if *raw {
		_, err := e.WriteTo(a.stdout)
		return err
	}

	fmt.Fprintf(a.stdout, "mode:       %s\n", e.Mode)
	fmt.Fprintf(a.stdout, "size:       %d bytes\n", e.Size())
	fmt.Fprintf(a.stdout, "iv:         %s\n", hex.EncodeToString(e.IV))
	if len(e.Tag) > 0 {
		fmt.Fprintf(a.stdout, "tag:        %s\n", hex.EncodeToString(e.Tag))
	}
	fmt.Fprintf(a.stdout, "ciphertext: %d bytes\n", len(e.Ciphertext))
	fmt.Fprintf(a.stdout, "envelope:   %s\n", e)
	return nil
}

func (a *app) runDecrypt(_ context.Context, args []string) error {
	fs, cfg, err := a.flags("decrypt")
	if err != nil {
		return err
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if cfg.Password == "" {
		return errors.New("password is required (-password or ENVELOPE_PASSWORD)")
	}

	logger, err := newLogger(cfg.LogFormat, cfg.Verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	c, err := cfg.cipher()
	if err != nil {
		return err
	}
	logKey(logger, c)

	in, err := a.input(fs.Args())
	if err != nil {
		return err
	}

	start := time.Now()
	msg, err := c.Decrypt(strings.TrimSpace(in))
	if err != nil {
		return err
	}
	logger.Debug("decrypted",
		zap.Stringer("mode", c.Mode()),
		zap.Int("plaintext_bytes", len(msg)),
		zap.Duration("elapsed", time.Since(start)))

	fmt.Fprintln(a.stdout, msg)
	return nil
}

// logKey logs the key fingerprint when the cipher was built with debugging
func logKey(logger *zap.Logger, c *envelope.Cipher) {
	if fp := c.Fingerprint(); fp != uuid.Nil {
		logger.Debug("derived key", zap.Stringer("mode", c.Mode()), zap.Stringer("fingerprint", fp))
	}
}

// scenario is one local round trip run by the demo command
type scenario struct {
	password string
	mode     envelope.Mode
	message  string
}

var demoScenarios = []scenario{
	{password: "cbcpassword", mode: envelope.ModeCBC, message: "CBC secret message"},
	{password: "gcmpassword", mode: envelope.ModeGCM, message: "Hello, World!"},
}

func (a *app) runDemo(ctx context.Context, args []string) error {
	fs, cfg, err := a.flags("demo")
	if err != nil {
		return err
	}
	useRemote := fs.Bool("remote", false, "also exercise the key service at ENVELOPE_API_URL")
	apiURL := fs.String("api-url", "", "key service base URL (overrides ENVELOPE_API_URL)")
	size := fs.Int("size", 0, "also round-trip a generated message of this many characters")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogFormat, cfg.Verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	scenarios := demoScenarios
	if *size > 0 {
		scenarios = append(scenarios[:len(scenarios):len(scenarios)],
			scenario{password: "largepassword", mode: envelope.ModeGCM, message: strings.Repeat("a", *size)},
			scenario{password: "largepassword", mode: envelope.ModeCBC, message: strings.Repeat("a", *size)},
		)
	}

	for _, s := range scenarios {
		if err := ctx.Err(); err != nil {
			return err
		}
		c, err := envelope.New(s.password, []byte(cfg.Salt), s.mode, envelope.WithIterations(cfg.Iterations))
		if err != nil {
			return err
		}
		if err := a.roundTrip(logger, c, s.message); err != nil {
			return fmt.Errorf("%s scenario: %w", s.mode, err)
		}
	}

	if !*useRemote {
		return nil
	}

	// .env has already been loaded into the environment by flags.
	rc, err := remote.ConfigFromEnv()
	if err != nil {
		return err
	}
	if *apiURL != "" {
		rc.BaseURL = *apiURL
	}
	client, err := remote.New(rc, remote.WithLogger(logger))
	if err != nil {
		return err
	}
	return a.remoteDemo(ctx, logger, client)
}

// roundTrip encrypts and decrypts msg with c and reports the envelope size
func (a *app) roundTrip(logger *zap.Logger, c *envelope.Cipher, msg string) error {
	start := time.Now()
	ct, err := c.Encrypt(msg)
	if err != nil {
		return err
	}
	encElapsed := time.Since(start)

	start = time.Now()
	pt, err := c.Decrypt(ct)
	if err != nil {
		return err
	}
	decElapsed := time.Since(start)

	if pt != msg {
		return errors.New("round trip mismatch")
	}

	logger.Info("round trip",
		zap.Stringer("mode", c.Mode()),
		zap.Int("plaintext_bytes", len(msg)),
		zap.Int("envelope_bytes", c.Overhead(len(msg))),
		zap.Duration("encrypt", encElapsed),
		zap.Duration("decrypt", decElapsed))

	fmt.Fprintf(a.stdout, "%s: %d-byte message, %d-byte envelope, round trip ok\n",
		c.Mode(), len(msg), c.Overhead(len(msg)))
	return nil
}

// remoteDemo runs the RSA and AES operations of the key service
func (a *app) remoteDemo(ctx context.Context, logger *zap.Logger, client *remote.Client) error {
	if _, err := client.PublicKey(ctx); err != nil {
		return fmt.Errorf("fetch public key: %w", err)
	}

	const rsaMsg = "Hello RSA"
	start := time.Now()
	ct, err := client.RSAEncrypt(ctx, rsaMsg)
	if err != nil {
		return fmt.Errorf("rsa encrypt: %w", err)
	}
	pt, err := client.RSADecrypt(ctx, ct)
	if err != nil {
		return fmt.Errorf("rsa decrypt: %w", err)
	}
	if pt != rsaMsg {
		return errors.New("rsa round trip mismatch")
	}
	logger.Info("remote round trip", zap.String("algorithm", "rsa"), zap.Duration("elapsed", time.Since(start)))
	fmt.Fprintln(a.stdout, "remote rsa: round trip ok")

	for _, mode := range []envelope.Mode{envelope.ModeCBC, envelope.ModeGCM} {
		const aesMsg = "Hello AES"
		start := time.Now()
		ct, err := client.AESEncrypt(ctx, aesMsg, mode)
		if err != nil {
			return fmt.Errorf("aes %s encrypt: %w", mode, err)
		}
		pt, err := client.AESDecrypt(ctx, ct, mode)
		if err != nil {
			return fmt.Errorf("aes %s decrypt: %w", mode, err)
		}
		if pt != aesMsg {
			return fmt.Errorf("aes %s round trip mismatch", mode)
		}
		logger.Info("remote round trip", zap.String("algorithm", "aes"), zap.Stringer("mode", mode),
			zap.Duration("elapsed", time.Since(start)))
		fmt.Fprintf(a.stdout, "remote aes %s: round trip ok\n", mode)
	}
	return nil
}
