// Package protocol holds the immutable catalog of surveillance protocol
// templates. Clinical content is authored elsewhere and loaded as data
// at startup; the catalog only resolves the applicable template for an
// episode.
package protocol

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/surveillance-engine/internal/model"
	apperrors "github.com/jwalitptl/surveillance-engine/pkg/errors"
	"github.com/jwalitptl/surveillance-engine/pkg/validator"
)

const (
	resolveCacheTTL     = 10 * time.Minute
	resolveCacheCleanup = 30 * time.Minute
)

type Service struct {
	templates []model.ProtocolTemplate
	byName    map[string]*model.ProtocolTemplate
	resolved  *cache.Cache
}

// Resolver is the catalog contract the scheduling engine depends on.
type Resolver interface {
	Resolve(conditionType, cancerType, stage, treatmentIntent string) (*model.ProtocolTemplate, error)
}

func NewService(templates []model.ProtocolTemplate) (*Service, error) {
	byName := make(map[string]*model.ProtocolTemplate, len(templates))
	for i := range templates {
		t := &templates[i]
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if _, dup := byName[t.ProtocolName]; dup {
			return nil, fmt.Errorf("duplicate protocol name %q", t.ProtocolName)
		}
		byName[t.ProtocolName] = t
	}
	return &Service{
		templates: templates,
		byName:    byName,
		resolved:  cache.New(resolveCacheTTL, resolveCacheCleanup),
	}, nil
}

// LoadFile reads protocol templates from a JSON file and builds the
// catalog.
func LoadFile(path string, val *validator.Validator) (*Service, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read protocol file: %w", err)
	}

	var templates []model.ProtocolTemplate
	if err := json.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("failed to parse protocol file %s: %w", path, err)
	}
	for i := range templates {
		if err := val.Validate(&templates[i]); err != nil {
			return nil, fmt.Errorf("invalid protocol template %q: %w", templates[i].ProtocolName, err)
		}
	}
	return NewService(templates)
}

// Get returns a template by name.
func (s *Service) Get(name string) (*model.ProtocolTemplate, error) {
	t, ok := s.byName[name]
	if !ok {
		return nil, apperrors.NotFound("protocol template", nil)
	}
	return t, nil
}

// Resolve selects the applicable template for an episode. Among
// templates matching condition and cancer type, a template explicitly
// covering the stage and treatment intent wins; otherwise the
// unrestricted template for that cancer type serves as fallback.
func (s *Service) Resolve(conditionType, cancerType, stage, treatmentIntent string) (*model.ProtocolTemplate, error) {
	key := strings.Join([]string{conditionType, cancerType, stage, treatmentIntent}, "|")
	if hit, ok := s.resolved.Get(key); ok {
		return hit.(*model.ProtocolTemplate), nil
	}

	var fallback *model.ProtocolTemplate
	for i := range s.templates {
		t := &s.templates[i]
		if t.ConditionType != conditionType || t.CancerType != cancerType {
			continue
		}
		if t.MatchesStageIntent(stage, treatmentIntent) {
			s.resolved.Set(key, t, cache.DefaultExpiration)
			return t, nil
		}
		if fallback == nil && t.Unrestricted() {
			fallback = t
		}
	}
	if fallback != nil {
		s.resolved.Set(key, fallback, cache.DefaultExpiration)
		return fallback, nil
	}
	return nil, apperrors.ProtocolNotFound(conditionType, cancerType)
}
