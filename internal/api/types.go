package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Op names one of the four lifecycle operations.
type Op string

const (
	OpRequest Op = "request"
	OpRenew   Op = "renew"
	OpReset   Op = "reset"
	OpStop    Op = "stop"
)

// Ops lists the lifecycle operations in display order.
var Ops = []Op{OpRequest, OpRenew, OpReset, OpStop}

func (o Op) String() string { return string(o) }

// path returns the plugin route for the operation.
func (o Op) path() string { return "/containers/api/" + string(o) }

// RawResponse is an undecided service reply: the HTTP status and whichever
// fields the body carried. Classification happens elsewhere.
type RawResponse struct {
	Op         Op
	StatusCode int
	Body       Payload
	RequestID  string
}

// Payload holds the response fields the plugin may send. A nil pointer means
// the field was absent from the body.
type Payload struct {
	Hostname *string  `json:"hostname,omitempty"`
	Port     *FlexInt `json:"port,omitempty"`
	Expires  *FlexInt `json:"expires,omitempty"`
	Error    *string  `json:"error,omitempty"`
	Message  *string  `json:"message,omitempty"`
	Status   *string  `json:"status,omitempty"`
	Success  *string  `json:"success,omitempty"`
}

// FlexInt decodes a JSON number or a numeric string. Docker reports host
// ports as strings while stored containers report them as integers.
type FlexInt int64

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("not an integer: %q", s)
		}
		*f = FlexInt(n)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	i, err := n.Int64()
	if err != nil {
		fl, ferr := n.Float64()
		if ferr != nil {
			return err
		}
		i = int64(fl)
	}
	*f = FlexInt(i)
	return nil
}

// Ptr helpers for building payloads in tests and the fake platform.
func String(s string) *string { return &s }

func Int(i int64) *FlexInt {
	f := FlexInt(i)
	return &f
}

type lifecycleRequest struct {
	ChallengeID int `json:"chal_id"`
}

type imagesResponse struct {
	Images []string `json:"images"`
	Error  *string  `json:"error,omitempty"`
}
