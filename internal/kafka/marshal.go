package kafka

import (
	"encoding/json"

	"github.com/ariefcatur/go-meatshop-orders/internal/events"
)

func MustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func UnmarshalEnvelope(b []byte) (events.Envelope, error) {
	var env events.Envelope
	err := json.Unmarshal(b, &env)
	return env, err
}
