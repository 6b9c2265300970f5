package api

import "example.com/motion/internal/domain"

// PermissionResponse is returned by the permission endpoints.
type PermissionResponse struct {
	Status domain.PermissionStatus `json:"status"`
}

// TrackingResponse is returned by the tracking endpoints.
type TrackingResponse struct {
	Status domain.TrackingStatus `json:"status"`
}

// ConstantsResponse carries values fixed for the session.
type ConstantsResponse struct {
	Platform                      string `json:"platform"`
	IsGooglePlayServicesAvailable bool   `json:"isGooglePlayServicesAvailable"`
}

// SampleBatchRequest is the payload for POST /v1/native/coremotion/samples.
type SampleBatchRequest struct {
	Samples []domain.MotionSample `json:"samples"`
}

// SampleBatchResponse reports what happened to an ingested batch.
type SampleBatchResponse struct {
	Accepted    int `json:"accepted"`
	Delivered   int `json:"delivered"`
	StoreErrors int `json:"store_errors"`
}
