package normalize

import (
	"encoding/json"
	"errors"
)

var errNoBody = errors.New("envelope has no data or msg body")

// envelope is the common venue message wrapper. The body appears under
// "data" on some message variants and "msg" on others; both are accepted.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
	Msg  json.RawMessage `json:"msg"`
}

// parseEnvelope decodes the wrapper and determines the message type. A few
// variants omit the top-level type and carry it inside the body instead.
func parseEnvelope(payload []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return envelope{}, err
	}

	if env.Type == "" && len(env.Msg) > 0 {
		var nested struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(env.Msg, &nested); err == nil {
			env.Type = nested.Type
		}
	}

	return env, nil
}

// body returns the payload body, preferring "data" over "msg".
func (e envelope) body() (json.RawMessage, error) {
	if len(e.Data) > 0 {
		return e.Data, nil
	}
	if len(e.Msg) > 0 {
		return e.Msg, nil
	}
	return nil, errNoBody
}
