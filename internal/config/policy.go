package config

import (
	"errors"
	"log"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// policyEnvBindings maps each policy key to the env var that overrides it.
var policyEnvBindings = map[string]string{
	"submission.runInterval":    "SUBMITTER_RUN_INTERVAL",
	"submission.batchSize":      "SUBMITTER_BATCH_SIZE",
	"submission.maxRetries":     "SUBMITTER_MAX_RETRIES",
	"submission.submitTimeout":  "SUBMITTER_SUBMIT_TIMEOUT",
	"submission.staleThreshold": "SUBMITTER_STALE_THRESHOLD",
	"submission.concurrency":    "SUBMITTER_CONCURRENCY",
}

// readPolicy assembles the policy key by key so that defaults, the config
// file and bound env vars all take effect in viper's precedence order.
func readPolicy(v *viper.Viper) SubmissionPolicy {
	return SubmissionPolicy{
		RunInterval:    v.GetDuration("submission.runInterval"),
		BatchSize:      v.GetInt("submission.batchSize"),
		MaxRetries:     v.GetInt("submission.maxRetries"),
		SubmitTimeout:  v.GetDuration("submission.submitTimeout"),
		StaleThreshold: v.GetDuration("submission.staleThreshold"),
		Concurrency:    v.GetInt("submission.concurrency"),
	}.withDefaults()
}

// SubmissionPolicy controls the submitter's retry and recovery behavior.
type SubmissionPolicy struct {
	RunInterval    time.Duration `mapstructure:"runInterval"`
	BatchSize      int           `mapstructure:"batchSize"`
	MaxRetries     int           `mapstructure:"maxRetries"`
	SubmitTimeout  time.Duration `mapstructure:"submitTimeout"`
	StaleThreshold time.Duration `mapstructure:"staleThreshold"`
	Concurrency    int           `mapstructure:"concurrency"`
}

func DefaultSubmissionPolicy() SubmissionPolicy {
	return SubmissionPolicy{
		RunInterval:    time.Minute,
		BatchSize:      50,
		MaxRetries:     3,
		SubmitTimeout:  30 * time.Second,
		StaleThreshold: 15 * time.Minute,
		Concurrency:    4,
	}
}

// SubmissionPolicyHolder serves the current policy and hot-reloads it when
// the config file changes on disk.
type SubmissionPolicyHolder struct {
	current atomic.Value // holds SubmissionPolicy
}

func NewSubmissionPolicyHolder() (*SubmissionPolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("submission")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/fatoora")
	v.AddConfigPath(".")

	defaults := DefaultSubmissionPolicy()
	v.SetDefault("submission.runInterval", defaults.RunInterval)
	v.SetDefault("submission.batchSize", defaults.BatchSize)
	v.SetDefault("submission.maxRetries", defaults.MaxRetries)
	v.SetDefault("submission.submitTimeout", defaults.SubmitTimeout)
	v.SetDefault("submission.staleThreshold", defaults.StaleThreshold)
	v.SetDefault("submission.concurrency", defaults.Concurrency)

	// UnmarshalKey never consults env for nested keys, so each key is
	// bound by name and read back with Get.
	for key, env := range policyEnvBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	policy := readPolicy(v)
	if err := validateSubmissionPolicy(policy); err != nil {
		return nil, err
	}

	holder := &SubmissionPolicyHolder{}
	holder.current.Store(policy)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated := readPolicy(v)
		if err := validateSubmissionPolicy(updated); err != nil {
			log.Printf("[submission-policy] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[submission-policy] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *SubmissionPolicyHolder) Get() SubmissionPolicy {
	return h.current.Load().(SubmissionPolicy)
}

// StaticSubmissionPolicyHolder pins a holder to one policy with no file
// watching. Used by tests and one-shot tools.
func StaticSubmissionPolicyHolder(p SubmissionPolicy) *SubmissionPolicyHolder {
	h := &SubmissionPolicyHolder{}
	h.current.Store(p.withDefaults())
	return h
}

func (p SubmissionPolicy) withDefaults() SubmissionPolicy {
	defaults := DefaultSubmissionPolicy()
	if p.RunInterval <= 0 {
		p.RunInterval = defaults.RunInterval
	}
	if p.BatchSize <= 0 {
		p.BatchSize = defaults.BatchSize
	}
	if p.MaxRetries <= 0 {
		p.MaxRetries = defaults.MaxRetries
	}
	if p.SubmitTimeout <= 0 {
		p.SubmitTimeout = defaults.SubmitTimeout
	}
	if p.StaleThreshold <= 0 {
		p.StaleThreshold = defaults.StaleThreshold
	}
	if p.Concurrency <= 0 {
		p.Concurrency = defaults.Concurrency
	}
	return p
}

func validateSubmissionPolicy(p SubmissionPolicy) error {
	if p.BatchSize > 1000 {
		return errors.New("submission.batchSize must be <= 1000")
	}
	if p.Concurrency > p.BatchSize {
		return errors.New("submission.concurrency must not exceed submission.batchSize")
	}
	return nil
}
