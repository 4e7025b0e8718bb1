package dto

import "wayfindr.app/relay/internal/model"

type StreamQuery struct {
	Origin string `form:"origin" binding:"omitempty,oneof=telemetry conversation"`
}

type SnapshotQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=500"`
}

type SnapshotResponse struct {
	Origin model.Origin        `json:"source"`
	Events []model.StreamEvent `json:"events"`
	Count  int                 `json:"count"`
}
