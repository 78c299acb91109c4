// Package classify decides what a token probably is when the RBAC endpoint
// cannot be asked. Classifiers run in registration order; the first match
// wins, so more specific shapes register before broader ones.
package classify

import (
	"errors"

	"github.com/campex/campex/pkg/rbac"
	"github.com/campex/campex/pkg/token"
)

type Source string

const (
	SourceRemote      Source = "remote"
	SourceLegacyAdmin Source = "legacy_admin"
	SourceTelegram    Source = "telegram"
)

type Result struct {
	Role   rbac.Role
	Source Source
}

type Classifier interface {
	Name() string
	Classify(claims token.Claims) (Result, bool)
}

var (
	ErrNilClassifier = errors.New("classify: classifier is nil")
	ErrEmptyName     = errors.New("classify: classifier name is empty")
	ErrDuplicateName = errors.New("classify: classifier already exists")
)

type Registry struct {
	ordered []Classifier
	byName  map[string]Classifier
}

func NewRegistry(classifiers ...Classifier) (*Registry, error) {
	r := &Registry{
		byName: map[string]Classifier{},
	}

	for _, classifier := range classifiers {
		if err := r.Register(classifier); err != nil {
			return nil, err
		}
	}

	return r, nil
}

func (r *Registry) Register(classifier Classifier) error {
	if classifier == nil {
		return ErrNilClassifier
	}

	name := classifier.Name()
	if name == "" {
		return ErrEmptyName
	}

	if _, exists := r.byName[name]; exists {
		return ErrDuplicateName
	}

	r.byName[name] = classifier
	r.ordered = append(r.ordered, classifier)
	return nil
}

func (r *Registry) Classifier(name string) (Classifier, bool) {
	classifier, ok := r.byName[name]
	return classifier, ok
}

// Classify runs the registered classifiers in order and returns the first
// match. False means no classifier recognized the claims.
func (r *Registry) Classify(claims token.Claims) (Result, bool) {
	if r == nil {
		return Result{}, false
	}

	for _, classifier := range r.ordered {
		if result, ok := classifier.Classify(claims); ok {
			return result, true
		}
	}

	return Result{}, false
}

type legacyAdminClassifier struct{}

func (legacyAdminClassifier) Name() string { return "legacy_admin" }

func (legacyAdminClassifier) Classify(claims token.Claims) (Result, bool) {
	if !claims.LooksLikeLegacyAdmin() {
		return Result{}, false
	}
	return Result{Role: rbac.RoleAdmin, Source: SourceLegacyAdmin}, true
}

type telegramClassifier struct{}

func (telegramClassifier) Name() string { return "telegram" }

func (telegramClassifier) Classify(claims token.Claims) (Result, bool) {
	if !claims.HasTelegramIdentity() {
		return Result{}, false
	}
	return Result{Role: rbac.RoleStudent, Source: SourceTelegram}, true
}

// DefaultRegistry carries the two shapes the login flow actually issues:
// legacy admin tokens and Telegram user tokens, checked in that order.
func DefaultRegistry() *Registry {
	registry, err := NewRegistry(legacyAdminClassifier{}, telegramClassifier{})
	if err != nil {
		// Static construction with unique names cannot fail.
		panic(err)
	}
	return registry
}
