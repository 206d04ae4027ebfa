package control

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/getmockd/intercept/pkg/httputil"
	"github.com/getmockd/intercept/pkg/registry"
	"github.com/getmockd/intercept/pkg/stub"
)

// Server manages one registry over HTTP.
type Server struct {
	registry *registry.Registry
	log      *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the structured logger. Logging is off by default.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// NewServer creates a control server for reg.
func NewServer(reg *registry.Registry, opts ...Option) *Server {
	s := &Server{
		registry: reg,
		log:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the control API routes:
//
//	GET    /rules          list rules with usage accounting
//	POST   /rules          add rules (highest precedence)
//	PUT    /rules          replace all rules
//	DELETE /rules          clear all rules
//	POST   /rules/resolve  dry-run a request description
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /rules", s.handleList)
	mux.HandleFunc("POST /rules", s.handleAdd)
	mux.HandleFunc("PUT /rules", s.handleSet)
	mux.HandleFunc("DELETE /rules", s.handleReset)
	mux.HandleFunc("POST /rules/resolve", s.handleResolve)
	return mux
}

// ruleStatusJSON is the list-endpoint element: the rule plus its accounting.
type ruleStatusJSON struct {
	Rule        *stub.Rule             `json:"rule"`
	Consumption stub.ConsumptionPolicy `json:"consumption"`
	MatchCount  int                    `json:"matchCount"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	statuses := s.registry.Statuses()
	out := make([]ruleStatusJSON, len(statuses))
	for i, st := range statuses {
		out[i] = ruleStatusJSON{Rule: st.Rule, Consumption: st.Consumption, MatchCount: st.MatchCount}
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	rules, ok := s.decodeRules(w, r)
	if !ok {
		return
	}
	s.registry.Add(rules...)
	s.log.Info("rules added", "count", len(rules), "total", s.registry.Len())
	httputil.WriteJSON(w, http.StatusCreated, map[string]int{"added": len(rules)})
}

func (s *Server) handleSet(w http.ResponseWriter, r *http.Request) {
	rules, ok := s.decodeRules(w, r)
	if !ok {
		return
	}
	s.registry.Set(rules...)
	s.log.Info("rules replaced", "count", len(rules))
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"set": len(rules)})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.registry.Reset()
	s.log.Info("rules cleared")
	httputil.WriteNoContent(w)
}

// decodeRules validates the payload against the schema, decodes it, and runs
// the stricter per-rule validation. Any failure writes an error response and
// returns ok=false.
func (s *Server) decodeRules(w http.ResponseWriter, r *http.Request) ([]*stub.Rule, bool) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "reading body: "+err.Error())
		return nil, false
	}
	if err := validateRulesPayload(data); err != nil {
		httputil.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return nil, false
	}
	rules, err := stub.DecodeRules(data)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "decoding rules: "+err.Error())
		return nil, false
	}
	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			httputil.WriteError(w, http.StatusUnprocessableEntity, "rule "+rule.ID+": "+err.Error())
			return nil, false
		}
	}
	return rules, true
}

// resolveRequest describes a hypothetical request for the dry-run endpoint.
type resolveRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

// resolveResponse reports the winning rule, if any. When only exhausted rules
// match, AnyRuleID names the first of them so drivers can tell "rule used up"
// apart from "no rule at all".
type resolveResponse struct {
	Matched   bool             `json:"matched"`
	RuleID    string           `json:"ruleId,omitempty"`
	Outcome   stub.OutcomeKind `json:"outcome,omitempty"`
	AnyRuleID string           `json:"anyRuleId,omitempty"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "decoding request: "+err.Error())
		return
	}
	u, err := url.Parse(req.URL)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid url: "+err.Error())
		return
	}
	view := stub.RequestView{
		Method: req.Method,
		URL:    u,
		Header: req.Headers,
		Body:   []byte(req.Body),
	}

	var out resolveResponse
	if rule := s.registry.ResolveEligible(view); rule != nil {
		out = resolveResponse{Matched: true, RuleID: rule.ID, Outcome: rule.Outcome.Kind}
	} else if rule := s.registry.ResolveAny(view); rule != nil {
		out = resolveResponse{AnyRuleID: rule.ID}
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}
