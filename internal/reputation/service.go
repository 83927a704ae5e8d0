package reputation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrLookupUnavailable signals that a reputation check could not complete.
// Callers must degrade to an unknown verdict rather than fail the analysis.
var ErrLookupUnavailable = errors.New("reputation lookup unavailable")

// Verdict is the outcome of a reputation check. All fields are zero for
// indicators the reference data knows nothing about.
type Verdict struct {
	KnownMalicious bool       `json:"known_malicious"`
	KnownSafe      bool       `json:"known_safe"`
	ThreatType     ThreatType `json:"threat_type,omitempty"`
	Shortener      bool       `json:"shortener,omitempty"`
}

// Config configures the reputation service.
type Config struct {
	ReferenceFile string        `yaml:"reference_file"`
	LookupTimeout time.Duration `yaml:"lookup_timeout"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		LookupTimeout: 5 * time.Second,
	}
}

// Service answers known-bad / known-good queries against the current
// reference Set. The Set is swapped wholesale on refresh so in-flight
// lookups always see one consistent snapshot.
type Service struct {
	mu      sync.RWMutex
	set     *Set
	timeout time.Duration
	logger  *zap.Logger
}

// NewService builds a Service from config, loading the reference file
// when one is configured and falling back to the built-in defaults.
func NewService(cfg Config, logger *zap.Logger) (*Service, error) {
	set := DefaultSet()
	if cfg.ReferenceFile != "" {
		loaded, err := LoadFile(cfg.ReferenceFile)
		if err != nil {
			return nil, err
		}
		set = loaded
	}

	timeout := cfg.LookupTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Service{set: set, timeout: timeout, logger: logger}, nil
}

// Current returns the active reference Set snapshot.
func (s *Service) Current() *Set {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set
}

// Refresh swaps in a freshly built Set. Lookups that started before the
// swap finish against the old snapshot.
func (s *Service) Refresh(set *Set) {
	s.mu.Lock()
	s.set = set
	s.mu.Unlock()
	s.logger.Info("reference data refreshed")
}

// ReloadFile rebuilds the Set from the reference file and swaps it in.
func (s *Service) ReloadFile(path string) error {
	set, err := LoadFile(path)
	if err != nil {
		return err
	}
	s.Refresh(set)
	return nil
}

// CheckDomain looks up a domain and its parent domains.
func (s *Service) CheckDomain(ctx context.Context, domain string) (Verdict, error) {
	if err := s.guard(ctx); err != nil {
		return Verdict{}, err
	}

	set := s.Current()
	if threat, ok := set.MaliciousDomain(domain); ok {
		return Verdict{KnownMalicious: true, ThreatType: threat}, nil
	}
	if set.SafeDomain(domain) {
		return Verdict{KnownSafe: true}, nil
	}
	if set.Shortener(domain) {
		return Verdict{Shortener: true}, nil
	}
	return Verdict{}, nil
}

// CheckEmailDomain looks up an email sender domain against the
// block list and the general domain lists.
func (s *Service) CheckEmailDomain(ctx context.Context, domain string) (Verdict, error) {
	if err := s.guard(ctx); err != nil {
		return Verdict{}, err
	}

	set := s.Current()
	if set.BlacklistedEmailDomain(domain) {
		return Verdict{KnownMalicious: true, ThreatType: ThreatSpam}, nil
	}
	return s.CheckDomain(ctx, domain)
}

// CheckNumber looks up a full phone number in the scam caller list.
func (s *Service) CheckNumber(ctx context.Context, number string) (Verdict, error) {
	if err := s.guard(ctx); err != nil {
		return Verdict{}, err
	}

	if s.Current().ScamNumber(strings.TrimSpace(number)) {
		return Verdict{KnownMalicious: true, ThreatType: ThreatScam}, nil
	}
	return Verdict{}, nil
}

// guard converts an expired or cancelled context into ErrLookupUnavailable
// so every lookup path degrades the same way.
func (s *Service) guard(ctx context.Context) error {
	select {
	case <-ctx.Done():
		s.logger.Warn("reputation lookup aborted", zap.Error(ctx.Err()))
		return ErrLookupUnavailable
	default:
		return nil
	}
}

// LookupTimeout returns the configured per-lookup deadline.
func (s *Service) LookupTimeout() time.Duration {
	return s.timeout
}
