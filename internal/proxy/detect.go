package proxy

// commonProxies lists the conventional local listeners of the usual
// intercepting proxies: Burp (8080), ZAP (8090), mitmproxy (8081), and
// Charles/Fiddler (8888).
var commonProxies = []Config{
	{Host: "localhost", Port: 8080},
	{Host: "127.0.0.1", Port: 8080},
	{Host: "localhost", Port: 8090},
	{Host: "127.0.0.1", Port: 8090},
	{Host: "localhost", Port: 8081},
	{Host: "127.0.0.1", Port: 8081},
	{Host: "localhost", Port: 8888},
	{Host: "127.0.0.1", Port: 8888},
}

// Detect scans the conventional proxy ports and returns the first endpoint
// with a listener, or nil when none answers. It runs only when no explicit
// configuration exists.
func Detect() *Config {
	return detect(commonProxies)
}

func detect(candidates []Config) *Config {
	for _, candidate := range candidates {
		cfg := candidate
		if err := CheckConnection(&cfg); err == nil {
			return &cfg
		}
	}
	return nil
}
