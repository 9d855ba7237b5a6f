// Package classifier decides whether an inbound email is a sales lead.
package classifier

import (
	"context"
	"time"

	"leadfollowup_backend/platform/ai/openaicompat"
	"leadfollowup_backend/platform/config"
)

// Verdict is the classification of one message.
type Verdict int

const (
	VerdictNotLead Verdict = iota
	VerdictLead
)

func (v Verdict) String() string {
	if v == VerdictLead {
		return "lead"
	}
	return "not_lead"
}

// Input is the part of a message the classifier looks at.
type Input struct {
	FromName    string
	FromAddress string
	Subject     string
	Body        string
}

// Classifier labels messages. Classify must not have side effects; an error
// means the collaborator could not answer.
type Classifier interface {
	Classify(ctx context.Context, in Input) (Verdict, error)
}

// AcceptAll treats every message as a lead.
type AcceptAll struct{}

func (AcceptAll) Classify(context.Context, Input) (Verdict, error) { return VerdictLead, nil }

// New returns the rule pre-filter followed by the LLM oracle when a model
// API key is configured, and AcceptAll otherwise.
func New(cfg config.ClassifierConfig) Classifier {
	if !cfg.IsClassifierEnabled() {
		return AcceptAll{}
	}
	llm := openaicompat.NewModel(openaicompat.Config{
		APIKey:  cfg.GetClassifierAPIKey(),
		BaseURL: cfg.GetClassifierBaseURL(),
		Model:   cfg.GetClassifierModel(),
		Timeout: cfg.GetClassifierTimeout() + 5*time.Second,
	})
	return NewChain(DefaultRules(), NewLLM(llm, cfg.GetClassifierTimeout()))
}

// Chain consults the rules first and only asks the oracle when the rules
// cannot decide.
type Chain struct {
	rules  Rules
	oracle Classifier
}

func NewChain(rules Rules, oracle Classifier) *Chain {
	return &Chain{rules: rules, oracle: oracle}
}

func (c *Chain) Classify(ctx context.Context, in Input) (Verdict, error) {
	if verdict, decided := c.rules.Evaluate(in); decided {
		return verdict, nil
	}
	if c.oracle == nil {
		return VerdictLead, nil
	}
	return c.oracle.Classify(ctx, in)
}
