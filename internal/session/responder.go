// ABOUTME: Pluggable auto-reply policy for incoming messages
// ABOUTME: Matches trigger words case-insensitively against TOML-defined rules

package session

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// Rule maps one trigger word to a canned reply.
type Rule struct {
	Trigger string `toml:"trigger"`
	Reply   string `toml:"reply"`
}

// Responder answers incoming messages whose text exactly matches a trigger,
// ignoring case and surrounding whitespace. It is policy, not lifecycle: the
// manager works identically with a nil Responder.
type Responder struct {
	rules []Rule
}

type rulesFile struct {
	Rules []Rule `toml:"rule"`
}

// DefaultResponder returns the built-in ping/pong rule set.
func DefaultResponder() *Responder {
	return &Responder{rules: []Rule{{Trigger: "ping", Reply: "Pong 🏓"}}}
}

// LoadResponder reads trigger/reply rules from a TOML file:
//
//	[[rule]]
//	trigger = "ping"
//	reply = "Pong 🏓"
func LoadResponder(path string) (*Responder, error) {
	var f rulesFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("loading responder rules: %w", err)
	}

	rules := make([]Rule, 0, len(f.Rules))
	for _, r := range f.Rules {
		if r.Trigger == "" || r.Reply == "" {
			return nil, fmt.Errorf("responder rule needs both trigger and reply")
		}
		rules = append(rules, r)
	}
	return &Responder{rules: rules}, nil
}

// ReplyTo returns the reply for text and whether any rule matched.
func (r *Responder) ReplyTo(text string) (string, bool) {
	candidate := strings.TrimSpace(text)
	for _, rule := range r.rules {
		if strings.EqualFold(candidate, rule.Trigger) {
			return rule.Reply, true
		}
	}
	return "", false
}
