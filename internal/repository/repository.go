// Package repository talks to the remote bed service. It attaches the
// session's bearer token to every call and maps failures onto the ward
// error kinds; it never caches or predicts bed state.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kingrea/wardboard/internal/session"
	"github.com/kingrea/wardboard/internal/ward"
)

const (
	bedsPath     = "/api/beds"
	assignPath   = "/api/beds/assign"
	bedPath      = "/api/beds/{id}"
	requestIDHdr = "X-Request-ID"
)

// Beds is the contract the workflows and the dashboard depend on.
type Beds interface {
	ListBeds(ctx context.Context) ([]ward.Bed, error)
	Assign(ctx context.Context, bedID ward.ID, intake ward.PatientIntake) error
	Deassign(ctx context.Context, bedID ward.ID) error
}

// Repository is the resty-backed Beds implementation.
type Repository struct {
	reads   *resty.Client
	writes  *resty.Client
	session session.Store
	logger  *zap.Logger
	timeout time.Duration
	retries int
}

// Option customizes Repository construction.
type Option func(*Repository)

// WithLogger overrides the default no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Repository) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithTimeout bounds each request. Zero leaves requests unbounded.
func WithTimeout(d time.Duration) Option {
	return func(r *Repository) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithRetries retries failed bed list reads. Mutations are never retried so
// a slow success can not be applied twice.
func WithRetries(n int) Option {
	return func(r *Repository) {
		if n > 0 {
			r.retries = n
		}
	}
}

// New prepares a repository for the bed service at baseURL.
func New(baseURL string, store session.Store, opts ...Option) *Repository {
	r := &Repository{
		session: store,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	r.reads = newClient(baseURL, r.timeout).
		SetRetryCount(r.retries).
		SetRetryWaitTime(250 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			return err != nil || resp.StatusCode() >= http.StatusInternalServerError
		})
	r.writes = newClient(baseURL, r.timeout)
	return r
}

func newClient(baseURL string, timeout time.Duration) *resty.Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return client
}

// ListBeds fetches every bed the service knows about.
func (r *Repository) ListBeds(ctx context.Context) ([]ward.Bed, error) {
	const op = "list beds"
	req, err := r.request(ctx, r.reads, op)
	if err != nil {
		return nil, err
	}
	resp, err := req.Get(bedsPath)
	if err := r.check(op, req, resp, err, false); err != nil {
		return nil, err
	}
	var beds []ward.Bed
	if err := json.Unmarshal(resp.Body(), &beds); err != nil {
		r.logger.Error("Bed list could not be decoded", zap.Error(err))
		return nil, &RequestError{Op: op, Status: resp.StatusCode(), Kind: ward.ErrNetwork, Err: fmt.Errorf("decode beds: %w", err)}
	}
	r.logger.Debug("Bed list fetched", zap.Int("bed_count", len(beds)))
	return beds, nil
}

type assignment struct {
	ward.PatientIntake
	BedID ward.ID `json:"bedId"`
}

type assignPayload struct {
	PatientData assignment `json:"patientData"`
}

// Assign binds intake to bedID.
func (r *Repository) Assign(ctx context.Context, bedID ward.ID, intake ward.PatientIntake) error {
	const op = "assign bed"
	req, err := r.request(ctx, r.writes, op)
	if err != nil {
		return err
	}
	resp, err := req.
		SetBody(assignPayload{PatientData: assignment{PatientIntake: intake, BedID: bedID}}).
		Post(assignPath)
	return r.check(op, req, resp, err, true)
}

// Deassign removes the patient from bedID.
func (r *Repository) Deassign(ctx context.Context, bedID ward.ID) error {
	const op = "deassign bed"
	req, err := r.request(ctx, r.writes, op)
	if err != nil {
		return err
	}
	resp, err := req.
		SetPathParam("id", bedID.String()).
		Delete(bedPath)
	return r.check(op, req, resp, err, false)
}

// request prepares an authenticated request. A missing token fails with
// ErrAuth before anything goes on the wire; a session store that cannot be
// read is a network failure, not an expired credential.
func (r *Repository) request(ctx context.Context, client *resty.Client, op string) (*resty.Request, error) {
	if r.session == nil {
		return nil, &RequestError{Op: op, Kind: ward.ErrAuth, Detail: "no session store"}
	}
	token, err := r.session.Token(ctx)
	if err != nil {
		r.logger.Error("Session store unavailable", zap.String("op", op), zap.Error(err))
		return nil, &RequestError{Op: op, Kind: ward.ErrNetwork, Detail: "session store unavailable", Err: err}
	}
	if token == "" {
		return nil, &RequestError{Op: op, Kind: ward.ErrAuth, Detail: "no active session"}
	}
	return client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader(requestIDHdr, uuid.NewString()), nil
}

func (r *Repository) check(op string, req *resty.Request, resp *resty.Response, err error, sendsPayload bool) error {
	requestID := req.Header.Get(requestIDHdr)
	if err != nil {
		r.logger.Error("Bed service call failed",
			zap.String("op", op),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return &RequestError{Op: op, Kind: ward.ErrNetwork, Err: err}
	}
	status := resp.StatusCode()
	if resp.IsError() || status >= 400 {
		detail := errorDetail(resp.Body())
		r.logger.Warn("Bed service rejected call",
			zap.String("op", op),
			zap.String("request_id", requestID),
			zap.Int("status_code", status),
			zap.String("detail", detail),
		)
		return &RequestError{Op: op, Status: status, Kind: classify(status, sendsPayload), Detail: detail}
	}
	r.logger.Info("Bed service call succeeded",
		zap.String("op", op),
		zap.String("request_id", requestID),
		zap.Int("status_code", status),
		zap.Duration("duration", resp.Time()),
	)
	return nil
}

const maxDetailRunes = 200

func errorDetail(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	text := []rune(strings.TrimSpace(string(body)))
	if len(text) > maxDetailRunes {
		text = text[:maxDetailRunes]
	}
	return string(text)
}
