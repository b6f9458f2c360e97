package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/darmado/postman2burp/internal/proxy"
)

// ProxyCheckOptions holds the proxy-check command's flag values.
type ProxyCheckOptions struct {
	Proxy       string
	ConfigPath  string
	VerifyProxy bool
}

// NewProxyCheckCommand creates the proxy-check command: run only the health
// gate and report what it found.
func NewProxyCheckCommand() *cobra.Command {
	opts := &ProxyCheckOptions{}

	cmd := &cobra.Command{
		Use:   "proxy-check",
		Short: "Verify proxy reachability without sending the collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkProxy(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Proxy, "proxy", "", "Proxy as host:port")
	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "Proxy config file (JSON or YAML)")
	cmd.Flags().BoolVar(&opts.VerifyProxy, "verify-proxy", false, "Also send a functional probe through the proxy")

	return cmd
}

func checkProxy(cmd *cobra.Command, opts *ProxyCheckOptions) error {
	out := cmd.OutOrStdout()
	warn := func(format string, args ...interface{}) {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: "+format+"\n", args...)
	}

	var explicit *proxy.Config
	var err error
	switch {
	case opts.Proxy != "":
		explicit, err = proxy.ParseAddr(opts.Proxy)
	case opts.ConfigPath != "":
		explicit, err = proxy.LoadConfig(opts.ConfigPath)
	}
	if err != nil {
		return err
	}

	cfg, err := proxy.Resolve(proxy.GateOptions{
		Explicit:        explicit,
		FunctionalCheck: opts.VerifyProxy,
		Warn:            warn,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Proxy %s is reachable\n", cfg.Addr())
	return nil
}
