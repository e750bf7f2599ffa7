package core

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

// ExpirationType selects how OrderRequest.ExpirationValue is interpreted.
type ExpirationType string

const (
	ExpireAfterDuration ExpirationType = "duration" // whole seconds from now
	ExpireAtDateTime    ExpirationType = "datetime" // absolute date-time
)

// dateTimeLayouts are tried in order for datetime expirations. The last two
// cover what HTML datetime-local inputs submit.
var dateTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// OrderRequest is a user-submitted order before validation.
type OrderRequest struct {
	Type            Side           `json:"type"`
	Asset           string         `json:"asset"`
	Quantity        float64        `json:"quantity"`
	Price           float64        `json:"price"`
	ExpirationType  ExpirationType `json:"expirationType"`
	ExpirationValue string         `json:"expirationValue"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every offending field of a rejected request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Field + ": " + f.Message
	}
	return "invalid order: " + strings.Join(msgs, "; ")
}

// Field returns the message recorded for field, if any.
func (e *ValidationError) Field(name string) (string, bool) {
	for _, f := range e.Fields {
		if f.Field == name {
			return f.Message, true
		}
	}
	return "", false
}

func (e *ValidationError) add(field, msg string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: msg})
}

// AssetChecker reports whether an asset may be traded.
type AssetChecker interface {
	Tradable(symbol string) bool
}

// Validate checks the request against the order acceptance rules and
// returns the resolved absolute expiration. A non-nil error is always a
// *ValidationError.
func (r OrderRequest) Validate(assets AssetChecker, now time.Time) (time.Time, error) {
	verr := &ValidationError{}

	if !r.Type.Valid() {
		verr.add("type", "Type must be buy or sell")
	}

	switch {
	case strings.TrimSpace(r.Asset) == "":
		verr.add("asset", "Asset is required")
	case assets != nil && !assets.Tradable(r.Asset):
		verr.add("asset", "Asset "+r.Asset+" is not supported")
	}

	if !positiveFinite(r.Quantity) {
		verr.add("quantity", "Quantity must be greater than 0")
	}
	if !positiveFinite(r.Price) {
		verr.add("price", "Price must be greater than 0")
	}

	expiration, msg := r.resolveExpiration(now)
	if msg != "" {
		field := "expirationValue"
		if r.ExpirationType == "" || (r.ExpirationType != ExpireAfterDuration && r.ExpirationType != ExpireAtDateTime) {
			field = "expirationType"
		}
		verr.add(field, msg)
	}

	if len(verr.Fields) > 0 {
		return time.Time{}, verr
	}
	return expiration, nil
}

func (r OrderRequest) resolveExpiration(now time.Time) (time.Time, string) {
	switch r.ExpirationType {
	case "":
		return time.Time{}, "Expiration type is required"
	case ExpireAfterDuration, ExpireAtDateTime:
	default:
		return time.Time{}, "Expiration type must be duration or datetime"
	}

	value := strings.TrimSpace(r.ExpirationValue)
	if value == "" {
		return time.Time{}, "Expiration value is required"
	}

	if r.ExpirationType == ExpireAfterDuration {
		secs, err := strconv.ParseInt(value, 10, 64)
		if err != nil || secs <= 0 || secs > math.MaxInt64/int64(time.Second) {
			return time.Time{}, "Expiration duration must be a positive whole number of seconds"
		}
		return now.Add(time.Duration(secs) * time.Second), ""
	}

	at, ok := parseDateTime(value, now.Location())
	if !ok {
		return time.Time{}, "Expiration must be a valid date-time"
	}
	if !at.After(now) {
		return time.Time{}, "Expiration must be in the future"
	}
	return at, ""
}

func parseDateTime(v string, loc *time.Location) (time.Time, bool) {
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// NewOrder validates req and builds an active order with a fresh id.
func NewOrder(req OrderRequest, assets AssetChecker, now time.Time) (Order, error) {
	expiration, err := req.Validate(assets, now)
	if err != nil {
		return Order{}, err
	}
	return Order{
		ID:         NewOrderID(),
		Type:       req.Type,
		Asset:      req.Asset,
		Quantity:   req.Quantity,
		Price:      req.Price,
		Expiration: expiration,
		Status:     StatusActive,
	}, nil
}

// AsValidationError unwraps err into a *ValidationError.
func AsValidationError(err error) (*ValidationError, bool) {
	var verr *ValidationError
	ok := errors.As(err, &verr)
	return verr, ok
}
