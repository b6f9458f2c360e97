package auth

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"hash"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OAuth1 signature methods.
const (
	SignatureHMACSHA1   = "HMAC-SHA1"
	SignatureHMACSHA256 = "HMAC-SHA256"
	SignaturePlaintext  = "PLAINTEXT"
)

// signOAuth1 computes an OAuth 1.0a signature over the request and injects
// the Authorization header carrying the signed parameter set.
func signOAuth1(req *http.Request, cfg *OAuth1Config) error {
	method := cfg.SignatureMethod
	if method == "" {
		method = SignatureHMACSHA1
	}

	oauthParams := map[string]string{
		"oauth_consumer_key":     cfg.ConsumerKey,
		"oauth_nonce":            strings.ReplaceAll(uuid.New().String(), "-", ""),
		"oauth_signature_method": method,
		"oauth_timestamp":        strconv.FormatInt(time.Now().Unix(), 10),
		"oauth_version":          "1.0",
	}
	if cfg.Token != "" {
		oauthParams["oauth_token"] = cfg.Token
	}

	signature, err := oauth1Signature(req, cfg, oauthParams, method)
	if err != nil {
		return err
	}
	oauthParams["oauth_signature"] = signature

	keys := make([]string, 0, len(oauthParams))
	for k := range oauthParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf(`%s="%s"`, k, rfc3986Encode(oauthParams[k])))
	}
	req.Header.Set("Authorization", "OAuth "+strings.Join(pairs, ", "))
	return nil
}

func oauth1Signature(req *http.Request, cfg *OAuth1Config, oauthParams map[string]string, method string) (string, error) {
	signingKey := rfc3986Encode(cfg.ConsumerSecret) + "&" + rfc3986Encode(cfg.TokenSecret)

	if method == SignaturePlaintext {
		return signingKey, nil
	}

	base := signatureBase(req, oauthParams)

	var mac hash.Hash
	switch method {
	case SignatureHMACSHA1:
		mac = hmac.New(sha1.New, []byte(signingKey))
	case SignatureHMACSHA256:
		mac = hmac.New(sha256.New, []byte(signingKey))
	default:
		return "", fmt.Errorf("%w: unknown OAuth1 signature method %q", ErrIncompleteProfile, method)
	}
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// signatureBase builds METHOD&enc(baseURL)&enc(sortedParams). The base URL
// strips the query; query parameters join the oauth parameters in the
// normalized, sorted parameter string.
func signatureBase(req *http.Request, oauthParams map[string]string) string {
	baseURL := baseStringURI(req.URL.Scheme, req.URL.Host, req.URL.Path)

	params := make(map[string][]string)
	for k, vs := range req.URL.Query() {
		params[k] = append(params[k], vs...)
	}
	for k, v := range oauthParams {
		params[k] = append(params[k], v)
	}

	type pair struct{ key, value string }
	var encoded []pair
	for k, vs := range params {
		for _, v := range vs {
			encoded = append(encoded, pair{rfc3986Encode(k), rfc3986Encode(v)})
		}
	}
	sort.Slice(encoded, func(i, j int) bool {
		if encoded[i].key != encoded[j].key {
			return encoded[i].key < encoded[j].key
		}
		return encoded[i].value < encoded[j].value
	})

	parts := make([]string, len(encoded))
	for i, p := range encoded {
		parts[i] = p.key + "=" + p.value
	}

	return strings.ToUpper(req.Method) + "&" +
		rfc3986Encode(baseURL) + "&" +
		rfc3986Encode(strings.Join(parts, "&"))
}

// baseStringURI normalizes scheme and host to lowercase and drops default
// ports, per RFC 5849 section 3.4.1.2.
func baseStringURI(scheme, host, path string) string {
	scheme = strings.ToLower(scheme)
	host = strings.ToLower(host)
	if h, port, ok := strings.Cut(host, ":"); ok {
		if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
			host = h
		}
	}
	return scheme + "://" + host + path
}

// rfc3986Encode percent-encodes everything outside the RFC 3986 unreserved
// set, as the OAuth1 spec requires.
func rfc3986Encode(value string) string {
	var b strings.Builder
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9' ||
			c == '-' || c == '_' || c == '.' || c == '~' {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}
