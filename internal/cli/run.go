package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/darmado/postman2burp/internal/auth"
	"github.com/darmado/postman2burp/internal/collection"
	"github.com/darmado/postman2burp/internal/history"
	"github.com/darmado/postman2burp/internal/proxy"
	"github.com/darmado/postman2burp/internal/report"
	"github.com/darmado/postman2burp/internal/runner"
	"github.com/darmado/postman2burp/internal/vars"
)

// RunOptions holds the run command's flag values.
type RunOptions struct {
	Collection     string
	InsertionPoint string
	EnvFile        string

	Proxy          string
	ProxyHost      string
	ProxyPort      int
	ConfigPath     string
	VerifySSL      bool
	SkipProxyCheck bool
	NoAutoDetect   bool
	VerifyProxy    bool
	SaveConfig     bool

	AuthDir     string
	AuthProfile string

	Headers     []string
	Output      string
	HistoryPath string
	NoHistory   bool
	Interactive bool
	Verbose     bool
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Replay a collection through the proxy",
		Long: "Flatten the collection, resolve variables, apply authentication, and\n" +
			"send every request through the verified proxy in document order.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollection(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Collection, "collection", "c", "", "Collection file or directory (required)")
	cmd.Flags().StringVarP(&opts.InsertionPoint, "insertion-point", "i", "", "Insertion-point file with variable values")
	cmd.Flags().StringVar(&opts.EnvFile, "env-file", "", "Dotenv file loaded before variable resolution")
	cmd.Flags().StringVar(&opts.Proxy, "proxy", "", "Proxy as host:port (never overridden by auto-detection)")
	cmd.Flags().StringVar(&opts.ProxyHost, "proxy-host", "", "Proxy host")
	cmd.Flags().IntVar(&opts.ProxyPort, "proxy-port", 0, "Proxy port")
	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "Proxy config file (JSON or YAML)")
	cmd.Flags().BoolVar(&opts.VerifySSL, "verify-ssl", false, "Verify TLS certificates (off for intercepting proxies)")
	cmd.Flags().BoolVar(&opts.SkipProxyCheck, "skip-proxy-check", false, "Skip the proxy health gate")
	cmd.Flags().BoolVar(&opts.NoAutoDetect, "no-auto-detect", false, "Do not scan conventional proxy ports")
	cmd.Flags().BoolVar(&opts.VerifyProxy, "verify-proxy", false, "Send a functional probe through the proxy before the run")
	cmd.Flags().BoolVar(&opts.SaveConfig, "save-config", false, "Write the resolved proxy settings back to --config")
	cmd.Flags().StringVar(&opts.AuthDir, "auth-dir", "auth", "Auth profile store directory")
	cmd.Flags().StringVarP(&opts.AuthProfile, "auth-profile", "a", "", "Auth profile label from the store")
	cmd.Flags().StringArrayVarP(&opts.Headers, "header", "H", nil, "Custom header 'Key: Value' (wins on conflict, repeatable)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Write the JSON result log to this file")
	cmd.Flags().StringVar(&opts.HistoryPath, "history", "", "History database path (default ~/.postman2burp/history.db)")
	cmd.Flags().BoolVar(&opts.NoHistory, "no-history", false, "Do not record the run in the history database")
	cmd.Flags().BoolVar(&opts.Interactive, "interactive", false, "Prompt on ambiguous choices instead of failing")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Print per-request progress")
	cmd.MarkFlagRequired("collection")

	return cmd
}

func runCollection(cmd *cobra.Command, opts *RunOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	warn := func(format string, args ...interface{}) {
		fmt.Fprintf(errOut, "warning: "+format+"\n", args...)
	}

	if err := vars.LoadEnvFile(opts.EnvFile); err != nil {
		return fmt.Errorf("loading env file: %w", err)
	}

	var source ValueSource = NonInteractiveSource{}
	if opts.Interactive {
		source = InteractiveSource{}
	}

	collPath, err := resolveCollectionPath(opts.Collection, source)
	if err != nil {
		return err
	}

	coll, err := collection.Load(collPath)
	if err != nil {
		return err
	}
	descriptors, err := collection.Flatten(coll, warn)
	if err != nil {
		return err
	}

	var point *vars.InsertionPoint
	if opts.InsertionPoint != "" {
		point, err = vars.LoadInsertionPoint(opts.InsertionPoint)
		if err != nil {
			return err
		}
	}
	table, err := vars.Build(coll.Defaults(), point)
	if err != nil {
		return err
	}

	var authn *auth.Authenticator
	var profile *auth.Profile
	if opts.AuthProfile != "" {
		profile, err = auth.NewStore(opts.AuthDir).Load(opts.AuthProfile)
		if err != nil {
			return err
		}
	}

	proxyCfg, err := resolveProxy(opts, warn)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Proxy: %s\n", proxyCfg.Addr())

	if opts.SaveConfig {
		if opts.ConfigPath == "" {
			return fmt.Errorf("%w: --save-config requires --config", proxy.ErrConfig)
		}
		if err := proxy.SaveConfig(opts.ConfigPath, proxyCfg); err != nil {
			return err
		}
		fmt.Fprintf(out, "Saved proxy settings to %s\n", opts.ConfigPath)
	}

	transport, err := proxy.Transport(proxyCfg)
	if err != nil {
		return err
	}
	client := &http.Client{Transport: transport, Timeout: runner.DefaultTimeout}

	if profile != nil {
		authn = auth.NewAuthenticator(profile, client)
	}

	headers, err := parseHeaders(opts.Headers)
	if err != nil {
		return err
	}

	runnerOpts := []runner.Option{
		runner.WithHTTPClient(client),
		runner.WithCustomHeaders(headers),
	}
	if authn != nil {
		runnerOpts = append(runnerOpts, runner.WithAuthenticator(authn))
	}
	if opts.Verbose {
		runnerOpts = append(runnerOpts, runner.WithProgressCallback(report.PrintProgress(out)))
	}

	fmt.Fprintf(out, "Running collection: %s (%d requests)\n", coll.Info.Name, len(descriptors))
	summary := runner.New(table, runnerOpts...).Run(ctx, coll.Info.Name, descriptors)

	if opts.Output != "" {
		if err := report.SaveJSON(opts.Output, summary); err != nil {
			return err
		}
		fmt.Fprintf(out, "Result log written to %s\n", opts.Output)
	}

	if !opts.NoHistory {
		if err := recordHistory(ctx, opts.HistoryPath, summary); err != nil {
			warn("could not record run history: %v", err)
		}
	}

	// Per-request failures are reported through the summary, not the exit
	// code. Only load-time and gate errors are fatal.
	report.PrintSummary(out, summary)
	return nil
}

// resolveCollectionPath accepts a file directly, or a directory containing
// collection files. Several candidates in a directory go through the value
// source.
func resolveCollectionPath(path string, source ValueSource) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("collection path %s: %w", path, err)
	}
	if !info.IsDir() {
		return path, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return "", fmt.Errorf("reading collection directory: %w", err)
	}

	var candidates []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		full := filepath.Join(path, entry.Name())
		content, err := os.ReadFile(full)
		if err != nil || !collection.DetectFormat(content) {
			continue
		}
		candidates = append(candidates, full)
	}
	sort.Strings(candidates)

	switch len(candidates) {
	case 0:
		return "", fmt.Errorf("%w: no collection files in %s", collection.ErrParse, path)
	case 1:
		return candidates[0], nil
	default:
		return source.Select("Select a collection", candidates)
	}
}

// resolveProxy builds the explicit config from flags and config file, then
// runs the gate. Explicit settings always win over auto-detection.
func resolveProxy(opts *RunOptions, warn func(string, ...interface{})) (*proxy.Config, error) {
	var explicit *proxy.Config
	var err error

	switch {
	case opts.Proxy != "":
		explicit, err = proxy.ParseAddr(opts.Proxy)
		if err != nil {
			return nil, err
		}
	case opts.ProxyHost != "" && opts.ProxyPort > 0:
		explicit = &proxy.Config{Host: opts.ProxyHost, Port: opts.ProxyPort, Explicit: true}
	case opts.ProxyHost != "" || opts.ProxyPort > 0:
		return nil, fmt.Errorf("%w: --proxy-host and --proxy-port must be given together", proxy.ErrConfig)
	case opts.ConfigPath != "":
		explicit, err = proxy.LoadConfig(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
	}

	if explicit != nil {
		explicit.VerifySSL = explicit.VerifySSL || opts.VerifySSL
	}

	cfg, err := proxy.Resolve(proxy.GateOptions{
		Explicit:        explicit,
		SkipCheck:       opts.SkipProxyCheck,
		NoAutoDetect:    opts.NoAutoDetect,
		FunctionalCheck: opts.VerifyProxy,
		Warn:            warn,
	})
	if err != nil {
		return nil, err
	}
	if !cfg.Explicit {
		cfg.VerifySSL = opts.VerifySSL
	}
	return cfg, nil
}

func parseHeaders(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		key, value, found := strings.Cut(h, ":")
		if !found || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid header %q, expected 'Key: Value'", h)
		}
		headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return headers, nil
}

func recordHistory(ctx context.Context, path string, summary *runner.RunSummary) error {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		dir := filepath.Join(home, ".postman2burp")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		path = filepath.Join(dir, "history.db")
	}

	store, err := history.New(path)
	if err != nil {
		return err
	}
	defer store.Close()

	_, err = store.SaveRun(ctx, summary)
	return err
}
