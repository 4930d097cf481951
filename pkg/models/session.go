package models

import "fmt"

//go:generate easyjson -all session.go

// Slot keys the pages read and write.
const (
	KeyReferenceImage   = "referenceImage"
	KeyCapturedPhoto    = "capturedPhoto"
	KeyReproductionType = "reproductionType"
)

// ReproductionType is what the user wants to replicate from the reference photo.
type ReproductionType string

const (
	ReproducePose     ReproductionType = "pose"
	ReproduceScenario ReproductionType = "scenario"
	ReproduceBoth     ReproductionType = "both"
)

// ParseReproductionType validates a reproduction type sent by the client.
func ParseReproductionType(s string) (ReproductionType, error) {
	switch t := ReproductionType(s); t {
	case ReproducePose, ReproduceScenario, ReproduceBoth:
		return t, nil
	default:
		return "", fmt.Errorf("unknown reproduction type %q", s)
	}
}

// ImagePayload is the body of image reads and writes.
//
//easyjson:json
type ImagePayload struct {
	// Key is set on responses only.
	Key     string `json:"key,omitempty"`
	DataURL string `json:"data_url"`
}

// DataPayload is the body of small value reads and writes.
//
//easyjson:json
type DataPayload struct {
	Key   string `json:"key,omitempty"`
	Value string `json:"value"`
}

// ErrorPayload is returned with every non-2xx response.
//
//easyjson:json
type ErrorPayload struct {
	Message string `json:"message"`
}
