package middleware

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

var (
	corsMethods = strings.Join([]string{
		http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions,
	}, ", ")
	corsHeaders = "Authorization, Content-Type, X-Request-Id, X-Requested-With"
	corsMaxAge  = strconv.Itoa(600)
)

type originRule struct {
	scheme string
	host   string
	// wildcard exige ao menos um rótulo antes de host
	wildcard bool
}

func parseOriginRule(entry string) (originRule, bool) {
	entry = strings.TrimRight(strings.TrimSpace(entry), "/")
	if entry == "" {
		return originRule{}, false
	}
	if strings.HasPrefix(entry, "*.") {
		return originRule{host: strings.ToLower(entry[2:]), wildcard: true}, true
	}
	u, err := url.Parse(entry)
	if err != nil || u.Host == "" {
		return originRule{}, false
	}
	return originRule{scheme: strings.ToLower(u.Scheme), host: strings.ToLower(u.Host)}, true
}

func (r originRule) match(scheme, host, hostname string) bool {
	if r.wildcard {
		return strings.HasSuffix(hostname, "."+r.host)
	}
	return r.scheme == scheme && r.host == host
}

// OriginMatcher aceita origens exatas (https://app.monitorasaude.com.br) ou
// subdomínios declarados como *.dominio; o próprio domínio raiz não casa.
func OriginMatcher(allowedOrigins []string) func(origin string) bool {
	var rules []originRule
	for _, entry := range allowedOrigins {
		if rule, ok := parseOriginRule(entry); ok {
			rules = append(rules, rule)
		}
	}

	return func(origin string) bool {
		if origin == "" || len(rules) == 0 {
			return false
		}
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			return false
		}
		scheme, host, hostname := strings.ToLower(u.Scheme), strings.ToLower(u.Host), strings.ToLower(u.Hostname())
		for _, rule := range rules {
			if rule.match(scheme, host, hostname) {
				return true
			}
		}
		return false
	}
}

// CORS responde preflights e ecoa a origem quando permitida.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	isAllowed := OriginMatcher(allowedOrigins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Add("Vary", "Origin")

			origin := r.Header.Get("Origin")
			allowed := isAllowed(origin)
			if allowed {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Expose-Headers", "X-Request-Id, Retry-After")
			}

			if r.Method != http.MethodOptions || r.Header.Get("Access-Control-Request-Method") == "" {
				next.ServeHTTP(w, r)
				return
			}

			h.Add("Vary", "Access-Control-Request-Method")
			h.Add("Vary", "Access-Control-Request-Headers")
			if allowed {
				h.Set("Access-Control-Allow-Methods", corsMethods)
				h.Set("Access-Control-Allow-Headers", corsHeaders)
				h.Set("Access-Control-Max-Age", corsMaxAge)
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}
