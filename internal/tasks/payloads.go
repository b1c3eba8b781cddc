// Package tasks defines the queued work units of the engine and the
// dispatchers and worker that run them.
package tasks

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"

	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/options"
)

// Task type names.
const (
	TypePricingGetNew     = "pricing:get_new"
	TypePublishFromObject = "pricing:publish_from_s3"
	TypeAlgoRun           = "algo:run"
)

// PricingPayload asks for fresh option chains of a ticker. Empty fetch types
// fall back to the configured datasets.
type PricingPayload struct {
	JobID           string   `json:"job_id,omitempty"`
	Ticker          string   `json:"ticker" validate:"required,max=16"`
	Provider        string   `json:"provider,omitempty"`
	PricingProvider string   `json:"pricing_provider,omitempty"`
	FetchTypes      []string `json:"fetch_types,omitempty" validate:"omitempty,dive,required"`
	Expiration      string   `json:"expiration,omitempty" validate:"omitempty,datetime=2006-01-02"`
	BaseKey         string   `json:"base_key,omitempty"`
	KeyOverrides    []string `json:"key_overrides,omitempty" validate:"omitempty,dive,required"`
	LatestClose     float64  `json:"latest_close,omitempty" validate:"gte=0"`
}

// RestorePayload copies datasets from the object store into Redis. Exactly
// one of S3Key and Prefix is set.
type RestorePayload struct {
	JobID    string `json:"job_id,omitempty"`
	S3Key    string `json:"s3_key,omitempty" validate:"required_without=Prefix,excluded_with=Prefix"`
	Prefix   string `json:"prefix,omitempty" validate:"required_without=S3Key"`
	RedisKey string `json:"redis_key,omitempty" validate:"excluded_with=Prefix"`
}

// AlgoPayload runs a backtest over pricing bars of a ticker. Bars come from
// CSVPath when set, otherwise from the pricing provider.
type AlgoPayload struct {
	RunID    string `json:"run_id,omitempty"`
	Ticker   string `json:"ticker" validate:"required,max=16"`
	Provider string `json:"provider,omitempty"`
	Strategy string `json:"strategy,omitempty" validate:"omitempty,oneof=threshold crossover"`
	Interval string `json:"interval,omitempty" validate:"omitempty,oneof=1m 1h 1d 1wk"`
	From     string `json:"from,omitempty" validate:"omitempty,datetime=2006-01-02"`
	To       string `json:"to,omitempty" validate:"omitempty,datetime=2006-01-02"`
	CSVPath  string `json:"csv_path,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks payload tags.
func Validate(payload any) error {
	if err := validate.Struct(payload); err != nil {
		return fmt.Errorf("tasks: invalid payload: %w", err)
	}
	return nil
}

// NewTask validates and encodes payload into a task.
func NewTask(taskType string, payload any, opts ...asynq.Option) (*asynq.Task, error) {
	if err := Validate(payload); err != nil {
		return nil, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("tasks: encode %s: %w", taskType, err)
	}
	return asynq.NewTask(taskType, data, opts...), nil
}

// decode unmarshals and validates a task payload. Bad payloads are never
// retried.
func decode(t *asynq.Task, out any) error {
	if err := json.Unmarshal(t.Payload(), out); err != nil {
		return fmt.Errorf("tasks: decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	if err := Validate(out); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return nil
}

func (p PricingPayload) fetchTypes(defaults []options.FetchType) ([]options.FetchType, error) {
	if len(p.FetchTypes) == 0 {
		return defaults, nil
	}
	return options.ParseFetchTypes(strings.Join(p.FetchTypes, ","))
}

func (p PricingPayload) expiration() (time.Time, error) {
	if p.Expiration == "" {
		return time.Time{}, nil
	}
	return time.Parse(options.DateLayout, p.Expiration)
}

func parseDay(raw string, def time.Time) (time.Time, error) {
	if raw == "" {
		return def, nil
	}
	return time.Parse(options.DateLayout, raw)
}
