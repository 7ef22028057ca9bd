package gateway

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/rs/cors"
)

// minRegistrationTokenLength is the entropy floor below which the
// registration token triggers a startup warning, not a hard failure.
const minRegistrationTokenLength = 16

type registeredServer struct {
	Domain    string `json:"domain"`
	URL       string `json:"url"`
	ToolCount int    `json:"tool_count"`
}

type addUpstreamRequest struct {
	Domain      string            `json:"domain"`
	URL         string            `json:"url"`
	Description *string           `json:"description,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
}

// mountRegistrationAPI wires GET/POST /registry/servers and
// DELETE /registry/servers/{domain} onto mux, each gated behind the
// configured bearer token. Both routes are CORS-enabled for GET, POST and
// DELETE, matching the teacher's CORS treatment of its metadata endpoint.
func (g *GatewayServer) mountRegistrationAPI(mux *http.ServeMux) {
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})

	mux.Handle("/registry/servers", corsHandler.Handler(g.requireRegistrationToken(g.handleRegistryServersCollection)))
	mux.Handle("/registry/servers/", corsHandler.Handler(g.requireRegistrationToken(g.handleRegistryServerItem)))
}

func (g *GatewayServer) requireRegistrationToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if !g.checkBearerToken(r.Header.Get("Authorization")) {
			writeJSONError(w, http.StatusUnauthorized, "missing or invalid bearer token")
			return
		}
		next(w, r)
	}
}

// checkBearerToken compares the request's bearer token against the
// configured registration token in constant time.
func (g *GatewayServer) checkBearerToken(header string) bool {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	token := strings.TrimPrefix(header, prefix)
	return subtle.ConstantTimeCompare([]byte(token), []byte(g.opts.RegistrationToken)) == 1
}

func (g *GatewayServer) handleRegistryServersCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		g.handleListServers(w, r)
	case http.MethodPost:
		g.handleAddServer(w, r)
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (g *GatewayServer) handleRegistryServerItem(w http.ResponseWriter, r *http.Request) {
	domain := strings.TrimPrefix(r.URL.Path, "/registry/servers/")
	domain = strings.Trim(domain, "/")
	if domain == "" {
		writeJSONError(w, http.StatusNotFound, "domain is required")
		return
	}
	if r.Method != http.MethodDelete {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	g.handleRemoveServer(w, r, domain)
}

// handleListServers snapshots ListUpstreams() alongside per-domain tool
// counts. ListUpstreams() and ListDomains() each take their own lock (the
// manager's, then the registry's), so each read is internally consistent,
// but the two are not read under one lock: a registration or removal that
// lands between them can pair a domain's URL with a tool count taken before
// or after that change.
func (g *GatewayServer) handleListServers(w http.ResponseWriter, r *http.Request) {
	urls := g.upstream.ListUpstreams()
	counts := make(map[string]int)
	for _, d := range g.registry.ListDomains() {
		counts[d.Name] = d.ToolCount
	}

	servers := make([]registeredServer, 0, len(urls))
	for domain, u := range urls {
		servers = append(servers, registeredServer{Domain: domain, URL: u, ToolCount: counts[domain]})
	}
	sort.Slice(servers, func(i, j int) bool { return servers[i].Domain < servers[j].Domain })

	writeJSON(w, http.StatusOK, struct {
		Servers []registeredServer `json:"servers"`
	}{Servers: servers})
}

func (g *GatewayServer) handleAddServer(w http.ResponseWriter, r *http.Request) {
	var req addUpstreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Domain == "" {
		writeJSONError(w, http.StatusBadRequest, "domain is required")
		return
	}
	if !validUpstreamURL(req.URL) {
		writeJSONError(w, http.StatusBadRequest, "url must be an absolute http or https URL")
		return
	}

	if _, err := g.upstream.AddUpstream(r.Context(), req.Domain, req.URL, req.Description, req.Headers); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "add upstream: "+err.Error())
		return
	}
	g.refreshToolRegistration()

	writeJSON(w, http.StatusCreated, struct {
		Domain string `json:"domain"`
	}{Domain: req.Domain})
}

func (g *GatewayServer) handleRemoveServer(w http.ResponseWriter, r *http.Request, domain string) {
	if err := g.upstream.RemoveUpstream(domain); err != nil {
		writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	g.refreshToolRegistration()
	w.WriteHeader(http.StatusNoContent)
}

func validUpstreamURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, struct {
		Error string `json:"error"`
	}{Error: message})
}

// protectedResourceMetadataHandler serves the minimal OAuth
// protected-resource metadata document the go-sdk auth middleware expects
// to be reachable at the URL it advertises in WWW-Authenticate.
func (g *GatewayServer) protectedResourceMetadataHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := struct {
			Resource             string   `json:"resource"`
			AuthorizationServers []string `json:"authorization_servers,omitempty"`
		}{Resource: g.opts.Path}
		if g.opts.AuthorizationServer != "" {
			payload.AuthorizationServers = []string{g.opts.AuthorizationServer}
		}
		writeJSON(w, http.StatusOK, payload)
	}
}

func corsWrap(h http.HandlerFunc) http.Handler {
	return cors.New(cors.Options{AllowedOrigins: []string{"*"}}).Handler(h)
}
